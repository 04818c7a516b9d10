package main

import (
	"fmt"
	"net"
	"net/http"
	"net/rpc"
	"os"
	"os/signal"
	"syscall"

	"github.com/pyropy/tsload/core/loadnode"
	"github.com/pyropy/tsload/lib/logger"
)

var log, _ = logger.New("loadnode-rpc")

func main() {
	if err := run(); err != nil {
		log.Fatalln("startup", "ERROR", err)
	}
}

func run() error {
	cfg, err := loadnode.GetConfig()
	if err != nil {
		log.Errorw("startup", "error", "config error")
		return err
	}

	node, err := loadnode.NewLoadNode(cfg)
	if err != nil {
		log.Errorw("startup", "error", "failed to open staging store")
		return err
	}

	defer node.Close()

	loadNodeAPI := NewLoadNodeAPI(node)
	rpc.Register(loadNodeAPI)
	rpc.HandleHTTP()
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	l, err := net.Listen("tcp", addr)
	if err != nil {
		log.Errorw("startup", "error", "net listen failed")
		return err
	}

	listenAddr := l.Addr().String()

	log.Infow("startup", "status", "loadnode rpc server started", "address", listenAddr, "nodeID", node.NodeID)
	defer log.Infow("shutdown", "status", "loadnode rpc server stopped", "address", listenAddr)
	go http.Serve(l, nil)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown
	log.Infow("shutdown", "status", "loadnode rpc server stopping", "address", listenAddr)

	return nil
}

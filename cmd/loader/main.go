package main

import (
	"os"

	"github.com/pyropy/tsload/lib/logger"
	"github.com/urfave/cli/v2"
)

var log, _ = logger.New("loader")

func main() {
	app := &cli.App{
		Name:  "loader",
		Usage: "Bulk-load pre-partitioned segment files into a tsload cluster",
		Commands: []*cli.Command{
			loadCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalln(err)
	}
}

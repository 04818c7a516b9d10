package load

import (
	"net/rpc"

	"github.com/pyropy/tsload/core/model"
	rpcLoadNode "github.com/pyropy/tsload/rpc/loadnode"
)

// Transport performs a single RPC against one node. Call timeouts belong
// to the transport; the coordinator only governs retry count and delay.
type Transport interface {
	SendPiece(node model.Node, args *rpcLoadNode.SendPieceArgs) (*rpcLoadNode.SendPieceReply, error)
	SendCommand(node model.Node, args *rpcLoadNode.SendCommandArgs) (*rpcLoadNode.SendCommandReply, error)
}

// RPCTransport dials the node per call over net/rpc.
type RPCTransport struct {
}

func NewRPCTransport() *RPCTransport {
	return &RPCTransport{}
}

func (t *RPCTransport) SendPiece(node model.Node, args *rpcLoadNode.SendPieceArgs) (*rpcLoadNode.SendPieceReply, error) {
	reply := rpcLoadNode.SendPieceReply{}
	err := callLoadNodeRPC(node, "LoadNodeAPI.ReceivePiece", args, &reply)
	if err != nil {
		return nil, err
	}

	return &reply, nil
}

func (t *RPCTransport) SendCommand(node model.Node, args *rpcLoadNode.SendCommandArgs) (*rpcLoadNode.SendCommandReply, error) {
	reply := rpcLoadNode.SendCommandReply{}
	err := callLoadNodeRPC(node, "LoadNodeAPI.ReceiveCommand", args, &reply)
	if err != nil {
		return nil, err
	}

	return &reply, nil
}

func callLoadNodeRPC(node model.Node, method string, args interface{}, reply interface{}) error {
	client, err := rpc.DialHTTP("tcp", node.Address)
	if err != nil {
		log.Infow("rpc", "error", "node unreachable", "address", node.Address)
		return err
	}

	defer client.Close()

	err = client.Call(method, args, reply)
	if err != nil {
		log.Infow("rpc", "error", err, "address", node.Address)
		return err
	}

	return nil
}

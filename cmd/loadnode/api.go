package main

import (
	"context"
	"errors"

	"github.com/pyropy/tsload/core/loadnode"
	rpcLoadNode "github.com/pyropy/tsload/rpc/loadnode"
)

type LoadNodeAPI struct {
	node *loadnode.LoadNode
}

func NewLoadNodeAPI(node *loadnode.LoadNode) *LoadNodeAPI {
	return &LoadNodeAPI{
		node: node,
	}
}

// ReceivePiece ...
func (a *LoadNodeAPI) ReceivePiece(args *rpcLoadNode.SendPieceArgs, reply *rpcLoadNode.SendPieceReply) error {
	log.Infow("rpc", "event", "LoadNodeAPI.ReceivePiece", "txID", args.TxID, "seq", args.Seq,
		"replicaSet", args.ReplicaSetID, "bytes", args.Piece.DataSize)

	err := a.node.StagePiece(context.Background(), args.TxID, args.Seq, args.CheckSum, args.Piece)
	switch {
	case err == nil:
		reply.Accepted = true
	case errors.Is(err, loadnode.ErrChecksumMismatch):
		reply.StatusCode = rpcLoadNode.StatusChecksumMismatch
		reply.Message = err.Error()
	default:
		reply.StatusCode = rpcLoadNode.StatusStagingFailure
		reply.Message = err.Error()
	}

	return nil
}

// ReceiveCommand ...
func (a *LoadNodeAPI) ReceiveCommand(args *rpcLoadNode.SendCommandArgs, reply *rpcLoadNode.SendCommandReply) error {
	log.Infow("rpc", "event", "LoadNodeAPI.ReceiveCommand", "txID", args.TxID,
		"command", args.Command.String(), "replicaSet", args.ReplicaSetID)

	err := a.node.ApplyCommand(context.Background(), args.TxID, args.Command)
	switch {
	case err == nil:
		reply.Accepted = true
	case errors.Is(err, loadnode.ErrUnknownCommand):
		reply.StatusCode = rpcLoadNode.StatusUnknownCommand
		reply.Message = err.Error()
	default:
		reply.StatusCode = rpcLoadNode.StatusApplyFailure
		reply.Message = err.Error()
	}

	return nil
}

package loadnode

import (
	"github.com/pyropy/tsload/core/model"
)

type Command int

const (
	CommandExecute Command = iota
	CommandRollback
)

func (c Command) String() string {
	switch c {
	case CommandExecute:
		return "EXECUTE"
	case CommandRollback:
		return "ROLLBACK"
	default:
		return "UNKNOWN"
	}
}

// Flags carried on a load command.
const (
	FlagRelayed = 1 << iota
)

// Reply status codes for rejected requests.
const (
	StatusChecksumMismatch = iota + 1
	StatusUnknownCommand
	StatusStagingFailure
	StatusApplyFailure
)

type SendPieceArgs struct {
	TxID         string
	ReplicaSetID int
	Seq          int
	CheckSum     int
	Piece        model.Piece
}

type SendPieceReply struct {
	Accepted   bool
	StatusCode int
	Message    string
}

type SendCommandArgs struct {
	TxID         string
	ReplicaSetID int
	Command      Command
	Flags        int
}

type SendCommandReply struct {
	Accepted   bool
	StatusCode int
	Message    string
}

type ILoadNode interface {
	ReceivePiece(args *SendPieceArgs, reply *SendPieceReply) error
	ReceiveCommand(args *SendCommandArgs, reply *SendCommandReply) error
}

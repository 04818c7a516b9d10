package loadnode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/pyropy/tsload/core/model"
	"github.com/pyropy/tsload/lib/checksum"
	"github.com/pyropy/tsload/lib/logger"
	rpcLoadNode "github.com/pyropy/tsload/rpc/loadnode"
)

var log, _ = logger.New("loadnode")

var (
	ErrChecksumMismatch = errors.New("piece checksum does not match payload")
	ErrUnknownCommand   = errors.New("unknown load command")
)

// LoadNode is the receiving half of the load protocol: it stages incoming
// pieces per transaction and applies or discards them when the final
// command arrives. Both commands are idempotent; a command for a
// transaction with nothing staged succeeds as a no-op.
type LoadNode struct {
	Cfg     *Config
	Staging *StagingStore
	NodeID  uuid.UUID

	// applyMu serializes command application; two commands for the same
	// transaction must not interleave.
	applyMu sync.Mutex
}

func NewLoadNode(cfg *Config) (*LoadNode, error) {
	staging, err := NewStagingStore(cfg.Staging.Path)
	if err != nil {
		return nil, err
	}

	return &LoadNode{
		Cfg:     cfg,
		Staging: staging,
		NodeID:  uuid.New(),
	}, nil
}

func (n *LoadNode) StagePiece(ctx context.Context, txID string, seq int, checkSum int, piece model.Piece) error {
	payload, err := json.Marshal(piece.Records)
	if err != nil {
		return err
	}

	if checksum.CalculateCheckSum(payload) != checkSum {
		return ErrChecksumMismatch
	}

	return n.Staging.Stage(ctx, txID, seq, piece)
}

func (n *LoadNode) ApplyCommand(ctx context.Context, txID string, command rpcLoadNode.Command) error {
	n.applyMu.Lock()
	defer n.applyMu.Unlock()

	switch command {
	case rpcLoadNode.CommandExecute:
		return n.execute(ctx, txID)
	case rpcLoadNode.CommandRollback:
		return n.Staging.Drop(ctx, txID)
	default:
		return fmt.Errorf("%w: %d", ErrUnknownCommand, command)
	}
}

// execute moves the transaction's staged records into the applied segment
// files, one per replica set. Each piece leaves staging the moment it is
// applied, so an EXECUTE resent after a mid-transaction failure picks up
// with the remaining pieces instead of duplicating the applied ones.
func (n *LoadNode) execute(ctx context.Context, txID string) error {
	staged, err := n.Staging.List(ctx, txID)
	if err != nil {
		return err
	}

	for _, entry := range staged {
		if err := n.appendSegment(entry.Piece); err != nil {
			return err
		}

		if err := n.Staging.Remove(ctx, txID, entry.Seq); err != nil {
			return err
		}
	}

	log.Infow("load", "status", "transaction applied", "txID", txID, "pieces", len(staged))

	return nil
}

func (n *LoadNode) appendSegment(piece model.Piece) error {
	dir := filepath.Join(n.Cfg.Data.Path, fmt.Sprintf("group-%d", piece.ReplicaSetID))
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}

	f, err := os.OpenFile(filepath.Join(dir, "segments.jsonl"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
	if err != nil {
		return err
	}

	defer f.Close()

	for _, record := range piece.Records {
		b, err := json.Marshal(record)
		if err != nil {
			return err
		}

		if _, err := f.Write(append(b, '\n')); err != nil {
			return err
		}
	}

	return nil
}

func (n *LoadNode) Close() error {
	return n.Staging.Close()
}

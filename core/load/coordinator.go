package load

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pyropy/tsload/core/model"
	"github.com/pyropy/tsload/lib/checksum"
	concurrentMap "github.com/pyropy/tsload/lib/concurrent_map"
	"github.com/pyropy/tsload/lib/logger"
	"github.com/pyropy/tsload/lib/retry"
	rpcLoadNode "github.com/pyropy/tsload/rpc/loadnode"
)

var log, _ = logger.New("load")

// Splitter streams a set of source inputs as ordered records into the
// sink. It returns only after every input completed or failed.
type Splitter interface {
	Split(ctx context.Context, sink func(model.Record) error) error
}

// Coordinator runs the two-phase load protocol for one operation: Phase 1
// dispatches pieces to replica sets as the batcher produces them, Phase 2
// sends a final EXECUTE or ROLLBACK to every replica set touched in
// Phase 1. Node selection within a replica set is weighted by the last
// measured throughput; unused nodes are preferred.
type Coordinator struct {
	cfg       *Config
	transport Transport
	resolver  PartitionResolver

	throughput *ThroughputStore
	flags      int

	rngMu sync.Mutex
	rng   *rand.Rand

	txID string
	seq  int64

	touched concurrentMap.Map[int, model.ReplicaSet]

	failuresMu     sync.Mutex
	phase1Failures map[PieceKey]error
	phase2Failures map[int]error
}

func NewCoordinator(cfg *Config, transport Transport, resolver PartitionResolver) *Coordinator {
	return &Coordinator{
		cfg:            cfg,
		transport:      transport,
		resolver:       resolver,
		throughput:     NewThroughputStore(),
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
		touched:        concurrentMap.NewMap[int, model.ReplicaSet](),
		phase1Failures: make(map[PieceKey]error),
		phase2Failures: make(map[int]error),
	}
}

// SetFlags sets the flags attached to Phase-2 commands, e.g. FlagRelayed
// when the load was forwarded by another node.
func (c *Coordinator) SetFlags(flags int) {
	c.flags = flags
}

// Run executes the whole load operation over the given source and reports
// the outcome. It never returns early: Phase 2 runs even when Phase 1
// failed, so every touched replica set learns the transaction's fate.
func (c *Coordinator) Run(ctx context.Context, file string, splitter Splitter) *Result {
	c.txID = uuid.NewString()
	log.Infow("load", "status", "starting", "txID", c.txID, "file", file)

	firstOK, splitErr := c.firstPhase(ctx, file, splitter)
	c.secondPhase(ctx, firstOK)

	result := c.buildResult(firstOK, splitErr)
	if result.Success {
		log.Infow("load", "status", "finished", "txID", c.txID, "state", result.State.String())
	} else {
		log.Warnw("load", "status", "failed", "txID", c.txID, "state", result.State.String(),
			"phase1Failures", len(result.Phase1Failures), "phase2Failures", len(result.Phase2Failures))
	}

	return result
}

func (c *Coordinator) firstPhase(ctx context.Context, file string, splitter Splitter) (bool, error) {
	batcher := NewBatcher(file, c.cfg.MaxMemoryBytes, c.resolver, func(piece *model.Piece, replicaSet model.ReplicaSet) error {
		return c.dispatchPiece(ctx, piece, replicaSet)
	})

	if err := splitter.Split(ctx, batcher.AddRecord); err != nil {
		log.Errorw("load", "status", "splitting failed", "txID", c.txID, "error", err)
		return false, err
	}

	finalizeErr := batcher.Finalize()

	c.failuresMu.Lock()
	failed := len(c.phase1Failures) > 0
	c.failuresMu.Unlock()

	return finalizeErr == nil && !failed, nil
}

func (c *Coordinator) dispatchPiece(ctx context.Context, piece *model.Piece, replicaSet model.ReplicaSet) error {
	// Touched before the first attempt: even a piece that never lands
	// must be rolled back on this replica set.
	c.touched.Set(replicaSet.ID, replicaSet)

	seq := int(atomic.AddInt64(&c.seq, 1))
	key := PieceKey{File: piece.File, ReplicaSetID: replicaSet.ID, Seq: seq}

	payload, err := json.Marshal(piece.Records)
	if err != nil {
		err = fmt.Errorf("encode piece: %w", err)
		c.recordPhase1Failure(key, err)
		return err
	}

	args := &rpcLoadNode.SendPieceArgs{
		TxID:         c.txID,
		ReplicaSetID: replicaSet.ID,
		Seq:          seq,
		CheckSum:     checksum.CalculateCheckSum(payload),
		Piece:        *piece,
	}

	candidates := rankNodes(replicaSet.Nodes, c.throughput.Sample)

	var lastErr error
	for len(candidates) > 0 {
		var node model.Node
		node, candidates = selectAndRenormalize(candidates, c.roll())

		err := retry.Do(ctx, c.cfg.MaxRetryAttempts, c.cfg.RetryInterval(), dispatchFatal, func() error {
			start := time.Now()
			reply, err := c.transport.SendPiece(node, args)
			if err != nil {
				return err
			}

			if !reply.Accepted {
				return &RejectionError{StatusCode: reply.StatusCode, Message: reply.Message}
			}

			// Only the successful attempt counts towards the node's rate.
			c.throughput.Record(node.ID, piece.DataSize, time.Since(start))

			return nil
		})
		if err == nil {
			return nil
		}

		if dispatchFatal(err) {
			c.recordPhase1Failure(key, err)
			return err
		}

		log.Warnw("load", "status", "node excluded after retries", "txID", c.txID,
			"address", node.Address, "replicaSet", replicaSet.ID, "error", err)
		lastErr = err
	}

	err = fmt.Errorf("%w: replica set %d: %v", ErrPoolExhausted, replicaSet.ID, lastErr)
	c.recordPhase1Failure(key, err)

	return err
}

func (c *Coordinator) secondPhase(ctx context.Context, firstOK bool) {
	command := rpcLoadNode.CommandRollback
	if firstOK {
		command = rpcLoadNode.CommandExecute
	}

	c.touched.Range(func(id int, replicaSet model.ReplicaSet) bool {
		if err := c.sendCommand(ctx, command, replicaSet); err != nil {
			c.failuresMu.Lock()
			c.phase2Failures[id] = err
			c.failuresMu.Unlock()

			log.Warnw("load", "status", "replica set left unresolved", "txID", c.txID,
				"command", command.String(), "replicaSet", id, "error", err)
		}

		return true
	})
}

// sendCommand walks the replica set's members in list order and stops at
// the first member that accepts the command.
func (c *Coordinator) sendCommand(ctx context.Context, command rpcLoadNode.Command, replicaSet model.ReplicaSet) error {
	args := &rpcLoadNode.SendCommandArgs{
		TxID:         c.txID,
		ReplicaSetID: replicaSet.ID,
		Command:      command,
		Flags:        c.flags,
	}

	var lastErr error
	for _, node := range replicaSet.Nodes {
		node := node
		err := retry.Do(ctx, c.cfg.MaxRetryAttempts, c.cfg.RetryInterval(), dispatchFatal, func() error {
			reply, err := c.transport.SendCommand(node, args)
			if err != nil {
				return err
			}

			if !reply.Accepted {
				return &RejectionError{StatusCode: reply.StatusCode, Message: reply.Message}
			}

			return nil
		})
		if err == nil {
			return nil
		}

		if dispatchFatal(err) {
			return err
		}

		lastErr = err
	}

	return fmt.Errorf("%w: replica set %d: %v", ErrPoolExhausted, replicaSet.ID, lastErr)
}

func (c *Coordinator) buildResult(firstOK bool, splitErr error) *Result {
	c.failuresMu.Lock()
	defer c.failuresMu.Unlock()

	result := &Result{
		TxID:           c.txID,
		SplitError:     splitErr,
		Phase1Failures: make(map[PieceKey]error, len(c.phase1Failures)),
		Phase2Failures: make(map[int]error, len(c.phase2Failures)),
	}
	for k, v := range c.phase1Failures {
		result.Phase1Failures[k] = v
	}
	for k, v := range c.phase2Failures {
		result.Phase2Failures[k] = v
	}

	switch {
	case len(result.Phase2Failures) > 0:
		result.State = StatePartiallyUnresolved
	case firstOK:
		result.State = StateCommitted
		result.Success = true
	default:
		result.State = StateRolledBack
	}

	return result
}

func (c *Coordinator) recordPhase1Failure(key PieceKey, err error) {
	c.failuresMu.Lock()
	defer c.failuresMu.Unlock()

	c.phase1Failures[key] = err
}

func (c *Coordinator) roll() float64 {
	c.rngMu.Lock()
	defer c.rngMu.Unlock()

	return c.rng.Float64()
}

// dispatchFatal reports whether an attempt's error forbids any further
// attempt for the current target: explicit rejections and interrupted
// retry waits do, transport faults do not.
func dispatchFatal(err error) bool {
	return IsRejection(err) || errors.Is(err, retry.ErrCancelled)
}

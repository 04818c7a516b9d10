package loadnode

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/pyropy/tsload/core/model"
	"github.com/pyropy/tsload/lib/checksum"
	rpcLoadNode "github.com/pyropy/tsload/rpc/loadnode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testNode(t *testing.T) *LoadNode {
	t.Helper()

	dir := t.TempDir()
	cfg := &Config{}
	cfg.Staging.Path = filepath.Join(dir, "staging")
	cfg.Data.Path = filepath.Join(dir, "data")

	node, err := NewLoadNode(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		node.Close()
	})

	return node
}

func stagedPiece(replicaSetID int, records ...model.Record) (model.Piece, int) {
	piece := model.NewPiece(replicaSetID, "segment-0")
	for _, record := range records {
		piece.Append(record)
	}

	payload, _ := json.Marshal(piece.Records)

	return *piece, checksum.CalculateCheckSum(payload)
}

func readSegment(t *testing.T, node *LoadNode, replicaSetID int) []model.Record {
	t.Helper()

	f, err := os.Open(filepath.Join(node.Cfg.Data.Path, fmt.Sprintf("group-%d", replicaSetID), "segments.jsonl"))
	require.NoError(t, err)

	defer f.Close()

	var records []model.Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var record model.Record
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &record))
		records = append(records, record)
	}

	require.NoError(t, scanner.Err())

	return records
}

func TestStagePieceRejectsChecksumMismatch(t *testing.T) {
	node := testNode(t)

	piece, _ := stagedPiece(1, model.Record{Kind: model.KindData, Device: "d1", Size: 10})
	err := node.StagePiece(context.Background(), "tx-1", 1, 12345, piece)
	require.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestExecuteAppliesStagedPiecesInArrivalOrder(t *testing.T) {
	node := testNode(t)
	ctx := context.Background()

	first, firstSum := stagedPiece(1,
		model.Record{Kind: model.KindData, Device: "d1", Slot: 1, Payload: []byte{1}, Size: 10})
	second, secondSum := stagedPiece(1,
		model.Record{Kind: model.KindDeletion, Device: "d1", StartSlot: 0, EndSlot: 2, Size: 4})

	require.NoError(t, node.StagePiece(ctx, "tx-1", 1, firstSum, first))
	require.NoError(t, node.StagePiece(ctx, "tx-1", 2, secondSum, second))
	require.NoError(t, node.ApplyCommand(ctx, "tx-1", rpcLoadNode.CommandExecute))

	records := readSegment(t, node, 1)
	require.Len(t, records, 2)
	assert.Equal(t, model.KindData, records[0].Kind)
	assert.True(t, records[1].IsDeletion())

	// Staging is cleared once applied.
	staged, err := node.Staging.List(ctx, "tx-1")
	require.NoError(t, err)
	assert.Empty(t, staged)
}

func TestRollbackDropsStagedPieces(t *testing.T) {
	node := testNode(t)
	ctx := context.Background()

	piece, sum := stagedPiece(1, model.Record{Kind: model.KindData, Device: "d1", Size: 10})
	require.NoError(t, node.StagePiece(ctx, "tx-1", 1, sum, piece))
	require.NoError(t, node.ApplyCommand(ctx, "tx-1", rpcLoadNode.CommandRollback))

	staged, err := node.Staging.List(ctx, "tx-1")
	require.NoError(t, err)
	assert.Empty(t, staged)

	_, err = os.Stat(filepath.Join(node.Cfg.Data.Path, "group-1"))
	assert.True(t, os.IsNotExist(err))
}

func TestCommandsAreIdempotentForUnknownTransaction(t *testing.T) {
	node := testNode(t)
	ctx := context.Background()

	require.NoError(t, node.ApplyCommand(ctx, "never-seen", rpcLoadNode.CommandExecute))
	require.NoError(t, node.ApplyCommand(ctx, "never-seen", rpcLoadNode.CommandRollback))
}

func TestUnknownCommandIsRejected(t *testing.T) {
	node := testNode(t)

	err := node.ApplyCommand(context.Background(), "tx-1", rpcLoadNode.Command(99))
	require.ErrorIs(t, err, ErrUnknownCommand)
}

func TestStagingStoreIsolatesTransactions(t *testing.T) {
	node := testNode(t)
	ctx := context.Background()

	pieceA, sumA := stagedPiece(1, model.Record{Kind: model.KindData, Device: "d1", Size: 10})
	pieceB, sumB := stagedPiece(2, model.Record{Kind: model.KindData, Device: "d2", Size: 20})

	require.NoError(t, node.StagePiece(ctx, "tx-a", 1, sumA, pieceA))
	require.NoError(t, node.StagePiece(ctx, "tx-b", 1, sumB, pieceB))
	require.NoError(t, node.ApplyCommand(ctx, "tx-a", rpcLoadNode.CommandRollback))

	staged, err := node.Staging.List(ctx, "tx-b")
	require.NoError(t, err)
	require.Len(t, staged, 1)
	assert.Equal(t, 2, staged[0].Piece.ReplicaSetID)
	assert.Equal(t, 1, staged[0].Seq)
}

func TestResentExecuteDoesNotDuplicateAppliedPieces(t *testing.T) {
	node := testNode(t)
	ctx := context.Background()

	first, firstSum := stagedPiece(1, model.Record{Kind: model.KindData, Device: "d1", Slot: 1, Size: 10})
	second, secondSum := stagedPiece(2, model.Record{Kind: model.KindData, Device: "d2", Slot: 1, Size: 20})

	require.NoError(t, node.StagePiece(ctx, "tx-1", 1, firstSum, first))
	require.NoError(t, node.StagePiece(ctx, "tx-1", 2, secondSum, second))

	// A regular file where group-2's directory should go fails the second
	// piece after the first one has been applied.
	require.NoError(t, os.MkdirAll(node.Cfg.Data.Path, 0750))
	blocker := filepath.Join(node.Cfg.Data.Path, "group-2")
	require.NoError(t, os.WriteFile(blocker, nil, 0640))

	require.Error(t, node.ApplyCommand(ctx, "tx-1", rpcLoadNode.CommandExecute))

	staged, err := node.Staging.List(ctx, "tx-1")
	require.NoError(t, err)
	require.Len(t, staged, 1)
	assert.Equal(t, 2, staged[0].Seq)

	require.NoError(t, os.Remove(blocker))
	require.NoError(t, node.ApplyCommand(ctx, "tx-1", rpcLoadNode.CommandExecute))

	assert.Len(t, readSegment(t, node, 1), 1)
	assert.Len(t, readSegment(t, node, 2), 1)
}

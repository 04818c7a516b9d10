package loadnode

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	ds "github.com/ipfs/go-datastore"
	dsq "github.com/ipfs/go-datastore/query"
	dslvl "github.com/ipfs/go-ds-leveldb"
	"github.com/pyropy/tsload/core/model"
)

// StagingStore persists received pieces until the transaction's EXECUTE or
// ROLLBACK arrives. Keys are /<txid>/<seq>, values JSON-encoded pieces.
type StagingStore struct {
	pieces *dslvl.Datastore
}

func NewStagingStore(path string) (*StagingStore, error) {
	store, err := dslvl.NewDatastore(path, nil)
	if err != nil {
		return nil, err
	}

	return &StagingStore{
		pieces: store,
	}, nil
}

func (s *StagingStore) Stage(ctx context.Context, txID string, seq int, piece model.Piece) error {
	b, err := json.Marshal(piece)
	if err != nil {
		return err
	}

	return s.pieces.Put(ctx, stagingKey(txID, seq), b)
}

// StagedPiece pairs a staged piece with its arrival sequence number.
type StagedPiece struct {
	Seq   int
	Piece model.Piece
}

// List returns the transaction's staged pieces in arrival order.
func (s *StagingStore) List(ctx context.Context, txID string) ([]StagedPiece, error) {
	results, err := s.pieces.Query(ctx, dsq.Query{
		Prefix: txPrefix(txID),
		Orders: []dsq.Order{dsq.OrderByKey{}},
	})
	if err != nil {
		return nil, err
	}

	defer results.Close()

	pieces := make([]StagedPiece, 0)
	for result := range results.Next() {
		if result.Error != nil {
			return nil, result.Error
		}

		seq, err := strconv.Atoi(ds.NewKey(result.Key).Name())
		if err != nil {
			return nil, err
		}

		var piece model.Piece
		if err := json.Unmarshal(result.Value, &piece); err != nil {
			return nil, err
		}

		pieces = append(pieces, StagedPiece{Seq: seq, Piece: piece})
	}

	return pieces, nil
}

// Remove deletes a single staged piece. Removing a piece that is no longer
// staged is a no-op.
func (s *StagingStore) Remove(ctx context.Context, txID string, seq int) error {
	return s.pieces.Delete(ctx, stagingKey(txID, seq))
}

// Drop removes every staged piece of the transaction. Dropping a
// transaction with no staged pieces is a no-op.
func (s *StagingStore) Drop(ctx context.Context, txID string) error {
	results, err := s.pieces.Query(ctx, dsq.Query{
		Prefix:   txPrefix(txID),
		KeysOnly: true,
	})
	if err != nil {
		return err
	}

	defer results.Close()

	for result := range results.Next() {
		if result.Error != nil {
			return result.Error
		}

		if err := s.pieces.Delete(ctx, ds.NewKey(result.Key)); err != nil {
			return err
		}
	}

	return nil
}

func (s *StagingStore) Close() error {
	return s.pieces.Close()
}

func stagingKey(txID string, seq int) ds.Key {
	return ds.NewKey(fmt.Sprintf("%s/%012d", txPrefix(txID), seq))
}

func txPrefix(txID string) string {
	return "/" + txID
}

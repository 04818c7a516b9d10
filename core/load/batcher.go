package load

import (
	"fmt"
	"sort"
	"sync"

	"github.com/pyropy/tsload/core/model"
)

// SeriesSlot identifies the partition of one record: its routing key and
// time-partition slot bucket.
type SeriesSlot struct {
	Device string
	Slot   int64
}

// PartitionResolver batch-maps ordered (device, slot) pairs to replica
// sets. The result has the same length and order as the input; duplicates
// are allowed.
type PartitionResolver interface {
	Resolve(pairs []SeriesSlot) ([]model.ReplicaSet, error)
}

// DispatchFunc hands one piece to its replica set. It blocks until the
// transfer (including retries) finished.
type DispatchFunc func(piece *model.Piece, replicaSet model.ReplicaSet) error

// Batcher buffers untargeted records, routes them in bulk once the
// buffered size crosses the memory budget and drains the largest pieces
// first until back under budget. Deletion records are broadcast to every
// piece seen so far. All methods are serialized behind one mutex; a drain
// blocks the calling splitter worker until its dispatches return, which is
// the intended backpressure.
type Batcher struct {
	mu sync.Mutex

	file           string
	maxMemoryBytes int64
	resolver       PartitionResolver
	dispatch       DispatchFunc

	buffered    []model.Record
	dataSize    int64
	pieces      map[int]*model.Piece
	replicaSets map[int]model.ReplicaSet
}

func NewBatcher(file string, maxMemoryBytes int64, resolver PartitionResolver, dispatch DispatchFunc) *Batcher {
	return &Batcher{
		file:           file,
		maxMemoryBytes: maxMemoryBytes,
		resolver:       resolver,
		dispatch:       dispatch,
		pieces:         make(map[int]*model.Piece),
		replicaSets:    make(map[int]model.ReplicaSet),
	}
}

func (b *Batcher) AddRecord(record model.Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if record.IsDeletion() {
		return b.addDeletion(record)
	}

	return b.addData(record)
}

func (b *Batcher) addData(record model.Record) error {
	b.buffered = append(b.buffered, record)
	b.dataSize += record.DataSize()

	if b.dataSize <= b.maxMemoryBytes {
		return nil
	}

	if err := b.routeBuffered(); err != nil {
		return err
	}

	// Drain the biggest pieces first: each dispatch frees the most memory
	// per synchronous stall.
	for _, piece := range b.piecesBySizeDesc() {
		if piece.DataSize == 0 {
			break
		}

		if err := b.dispatch(piece, b.replicaSets[piece.ReplicaSetID]); err != nil {
			return err
		}

		b.dataSize -= piece.DataSize
		b.pieces[piece.ReplicaSetID] = model.NewPiece(piece.ReplicaSetID, b.file)

		if b.dataSize <= b.maxMemoryBytes {
			break
		}
	}

	return nil
}

// addDeletion routes any pending data first so the deletion follows, on
// the wire, everything previously targeted at each replica set, then
// appends the deletion to every piece, including already-drained empty
// ones.
func (b *Batcher) addDeletion(record model.Record) error {
	if err := b.routeBuffered(); err != nil {
		return err
	}

	for _, piece := range b.pieces {
		piece.Append(record)
		b.dataSize += record.DataSize()
	}

	return nil
}

// Finalize routes whatever is still buffered and dispatches every
// remaining non-empty piece. A failing replica set does not block the
// others; the first failure is returned after all pieces were attempted.
func (b *Batcher) Finalize() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.routeBuffered(); err != nil {
		return err
	}

	var firstErr error
	for _, piece := range b.pieces {
		if len(piece.Records) == 0 {
			continue
		}

		if err := b.dispatch(piece, b.replicaSets[piece.ReplicaSetID]); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		b.dataSize -= piece.DataSize
		b.pieces[piece.ReplicaSetID] = model.NewPiece(piece.ReplicaSetID, b.file)
	}

	return firstErr
}

func (b *Batcher) routeBuffered() error {
	if len(b.buffered) == 0 {
		return nil
	}

	pairs := make([]SeriesSlot, 0, len(b.buffered))
	for _, record := range b.buffered {
		pairs = append(pairs, SeriesSlot{Device: record.Device, Slot: record.Slot})
	}

	replicaSets, err := b.resolver.Resolve(pairs)
	if err != nil {
		return fmt.Errorf("resolve partitions: %w", err)
	}

	if len(replicaSets) != len(pairs) {
		return fmt.Errorf("resolver returned %d replica sets for %d keys", len(replicaSets), len(pairs))
	}

	for i, replicaSet := range replicaSets {
		piece, exists := b.pieces[replicaSet.ID]
		if !exists {
			piece = model.NewPiece(replicaSet.ID, b.file)
			b.pieces[replicaSet.ID] = piece
			b.replicaSets[replicaSet.ID] = replicaSet
		}

		piece.Append(b.buffered[i])
	}

	b.buffered = b.buffered[:0]

	return nil
}

func (b *Batcher) piecesBySizeDesc() []*model.Piece {
	sorted := make([]*model.Piece, 0, len(b.pieces))
	for _, piece := range b.pieces {
		sorted = append(sorted, piece)
	}

	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].DataSize > sorted[j].DataSize
	})

	return sorted
}

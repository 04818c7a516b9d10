package load

import (
	"time"

	"github.com/google/uuid"
	concurrentMap "github.com/pyropy/tsload/lib/concurrent_map"
)

// ThroughputStore keeps the most recent measured transfer rate per node,
// in bytes per second. A new sample replaces the previous one, it is not
// averaged in. Nodes without a sample are preferred over any sampled node.
type ThroughputStore struct {
	samples concurrentMap.Map[uuid.UUID, float64]
}

func NewThroughputStore() *ThroughputStore {
	return &ThroughputStore{
		samples: concurrentMap.NewMap[uuid.UUID, float64](),
	}
}

func (t *ThroughputStore) Record(nodeID uuid.UUID, sizeBytes int64, elapsed time.Duration) {
	if elapsed <= 0 {
		elapsed = time.Millisecond
	}

	t.samples.Set(nodeID, float64(sizeBytes)/elapsed.Seconds())
}

func (t *ThroughputStore) Sample(nodeID uuid.UUID) (float64, bool) {
	return t.samples.Get(nodeID)
}

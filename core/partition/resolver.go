package partition

import (
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"sync"

	"github.com/pyropy/tsload/core/load"
	"github.com/pyropy/tsload/core/model"
	"github.com/pyropy/tsload/lib/cache"
	"github.com/pyropy/tsload/lib/utils"
)

const DefaultCacheSize = 10_000

var (
	ErrNoReplicaSets      = errors.New("manifest lists no replica sets")
	ErrDuplicateReplicaID = errors.New("manifest lists a replica set id twice")
	ErrEmptyReplicaSet    = errors.New("manifest lists a replica set with no nodes")
)

// Manifest describes the cluster's replica sets and their members.
type Manifest struct {
	ReplicaSets []model.ReplicaSet `json:"replicaSets"`
}

func LoadManifest(path string) (*Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var manifest Manifest
	if err := json.Unmarshal(b, &manifest); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}

	if err := manifest.Validate(); err != nil {
		return nil, err
	}

	return &manifest, nil
}

func (m *Manifest) Validate() error {
	if len(m.ReplicaSets) == 0 {
		return ErrNoReplicaSets
	}

	seen := make([]int, 0, len(m.ReplicaSets))
	for _, replicaSet := range m.ReplicaSets {
		if utils.Contains(seen, replicaSet.ID) {
			return fmt.Errorf("%w: %d", ErrDuplicateReplicaID, replicaSet.ID)
		}

		if len(replicaSet.Nodes) == 0 {
			return fmt.Errorf("%w: %d", ErrEmptyReplicaSet, replicaSet.ID)
		}

		seen = append(seen, replicaSet.ID)
	}

	return nil
}

// BatchFetcher maps (device, slot) pairs onto the manifest's replica sets
// by hashing, caching resolved keys. It implements load.PartitionResolver.
type BatchFetcher struct {
	mu     sync.Mutex
	groups []model.ReplicaSet
	cache  *cache.LRU[model.ReplicaSet]
}

func NewBatchFetcher(manifest *Manifest, cacheSize int) *BatchFetcher {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}

	return &BatchFetcher{
		groups: manifest.ReplicaSets,
		cache:  cache.NewLRU[model.ReplicaSet](cacheSize),
	}
}

// Resolve returns one replica set per input pair, same order, duplicates
// allowed.
func (f *BatchFetcher) Resolve(pairs []load.SeriesSlot) ([]model.ReplicaSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	resolved := make([]model.ReplicaSet, 0, len(pairs))
	for _, pair := range pairs {
		key := fmt.Sprintf("%s/%d", pair.Device, pair.Slot)

		replicaSet, ok := f.cache.Get(key)
		if !ok {
			replicaSet = f.groups[hashKey(key)%uint32(len(f.groups))]
			f.cache.Put(key, replicaSet)
		}

		resolved = append(resolved, replicaSet)
	}

	return resolved, nil
}

func hashKey(key string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(key))

	return h.Sum32()
}

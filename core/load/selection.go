package load

import (
	"math"

	"github.com/google/uuid"
	"github.com/pyropy/tsload/core/model"
	"github.com/pyropy/tsload/lib/utils"
)

// Nodes that have no recorded throughput sample get a weight that dwarfs
// any measured transfer rate, so unused nodes are tried first.
const unsampledWeight = float64(math.MaxFloat32)

type candidate struct {
	node model.Node

	// weight is the node's share of the remaining pool, normalized so all
	// candidate weights sum to one.
	weight float64
}

// rankNodes builds the weighted candidate pool for a replica set. The
// sample function returns the last recorded throughput for a node, if any.
func rankNodes(nodes []model.Node, sample func(uuid.UUID) (float64, bool)) []candidate {
	if len(nodes) == 0 {
		panic("rankNodes: replica set has no nodes")
	}

	candidates := make([]candidate, 0, len(nodes))
	total := 0.0
	for _, node := range nodes {
		weight, ok := sample(node.ID)
		if !ok {
			weight = unsampledWeight
		}

		candidates = append(candidates, candidate{node: node, weight: weight})
		total += weight
	}

	for i := range candidates {
		candidates[i].weight /= total
	}

	return candidates
}

// selectAndRenormalize picks the candidate whose slice of the cumulative
// distribution contains roll (a uniform draw from [0, 1)), removes it from
// the pool and renormalizes the remaining weights.
func selectAndRenormalize(candidates []candidate, roll float64) (model.Node, []candidate) {
	chosen := len(candidates) - 1
	cumulative := 0.0
	for i, c := range candidates {
		cumulative += c.weight
		if roll < cumulative {
			chosen = i
			break
		}
	}

	picked := candidates[chosen]
	remaining := utils.RemoveAt(candidates, chosen)

	scale := 1 - picked.weight
	if scale <= 0 {
		for i := range remaining {
			remaining[i].weight = 1 / float64(len(remaining))
		}

		return picked.node, remaining
	}

	for i := range remaining {
		remaining[i].weight /= scale
	}

	return picked.node, remaining
}

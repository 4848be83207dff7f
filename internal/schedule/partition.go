// Package schedule layers a dependency graph into ordered execution phases.
// Items in a phase are mutually non-conflicting and have every predecessor
// satisfied by an earlier phase, so a phase is safe to run under full
// parallelism.
package schedule

import (
	"sort"

	"github.com/ncode25/Copilot-orchestrator/internal/errors"
	"github.com/ncode25/Copilot-orchestrator/internal/graph"
)

// Phase is one layer of the partition: a set of work-item IDs scheduled to
// run concurrently. Items is sorted, which makes phase assignment a pure
// function of the graph regardless of map iteration order.
type Phase struct {
	Index int      `json:"index"`
	Items []string `json:"items"`
}

// Partition layers the whole graph into ordered phases using the layered
// form of Kahn's algorithm: each round collects every unassigned item whose
// entire wait-set is already assigned to earlier phases. A round that makes
// no progress with items remaining fails with *errors.UnschedulableGraphError.
// That state should be unreachable given the graph's insertion-time cycle
// check; it can still occur when an item declares a predecessor that was
// never inserted.
func Partition(g *graph.Graph) ([]Phase, error) {
	return PartitionFrom(g, nil)
}

// PartitionFrom partitions the items not yet satisfied, treating every ID in
// satisfied as already complete. The scheduler uses it to recompute phases
// for the not-yet-started remainder after corrective items are injected.
func PartitionFrom(g *graph.Graph, satisfied map[string]bool) ([]Phase, error) {
	remaining := make(map[string]struct{})
	for _, item := range g.Items() {
		if !satisfied[item.ID] {
			remaining[item.ID] = struct{}{}
		}
	}

	assigned := make(map[string]struct{})
	var phases []Phase

	for len(remaining) > 0 {
		var ready []string
		for id := range remaining {
			if allSatisfied(g.Predecessors(id), assigned, satisfied) {
				ready = append(ready, id)
			}
		}

		if len(ready) == 0 {
			stuck := make([]string, 0, len(remaining))
			for id := range remaining {
				stuck = append(stuck, id)
			}
			sort.Strings(stuck)
			return nil, &errors.UnschedulableGraphError{Remaining: stuck}
		}

		sort.Strings(ready)
		phases = append(phases, Phase{Index: len(phases), Items: ready})

		for _, id := range ready {
			assigned[id] = struct{}{}
			delete(remaining, id)
		}
	}

	return phases, nil
}

// allSatisfied reports whether every predecessor is assigned to an earlier
// phase or externally satisfied. A predecessor that is neither (including
// one never inserted into the graph) blocks the item.
func allSatisfied(preds map[string]struct{}, assigned map[string]struct{}, satisfied map[string]bool) bool {
	for p := range preds {
		if _, ok := assigned[p]; ok {
			continue
		}
		if satisfied[p] {
			continue
		}
		return false
	}
	return true
}

// SplitForParallelism splits phases larger than maxParallel into consecutive
// batches of at most maxParallel items and reindexes the result. Items in a
// batch come from a single original phase, so batches stay conflict-free.
// A maxParallel of zero or less means unlimited and returns the input.
func SplitForParallelism(phases []Phase, maxParallel int) []Phase {
	if maxParallel <= 0 {
		return phases
	}

	var out []Phase
	for _, phase := range phases {
		for start := 0; start < len(phase.Items); start += maxParallel {
			end := start + maxParallel
			if end > len(phase.Items) {
				end = len(phase.Items)
			}
			out = append(out, Phase{Index: len(out), Items: phase.Items[start:end]})
		}
	}
	return out
}

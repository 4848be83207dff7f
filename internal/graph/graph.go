// Package graph maintains the dependency graph over work items: declared
// predecessor edges plus edges implied by resource overlap. The graph is
// acyclic at all times; insertions that would close a cycle are rejected
// without mutating the graph.
package graph

import (
	"fmt"
	"sort"

	"github.com/ncode25/Copilot-orchestrator/internal/errors"
	"github.com/ncode25/Copilot-orchestrator/internal/workitem"
)

// Graph is the dependency graph for one scheduling run. It owns the work-item
// records and the full wait-set for each item. Not safe for concurrent use;
// the scheduler run loop is the single mutator.
type Graph struct {
	items map[string]*workitem.Item
	order []string // insertion order, breaks resource-conflict ties

	// preds maps an item ID to the set of IDs it must wait on: declared
	// predecessors plus implied resource-conflict edges. Declared
	// predecessors may reference items that have not been inserted yet;
	// such forward edges stay unsatisfiable until the referenced item
	// arrives.
	preds map[string]map[string]struct{}
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		items: make(map[string]*workitem.Item),
		preds: make(map[string]map[string]struct{}),
	}
}

// Len returns the number of items in the graph.
func (g *Graph) Len() int {
	return len(g.items)
}

// Item returns the item with the given ID, or nil.
func (g *Graph) Item(id string) *workitem.Item {
	return g.items[id]
}

// Items returns all items in insertion order.
func (g *Graph) Items() []*workitem.Item {
	items := make([]*workitem.Item, 0, len(g.order))
	for _, id := range g.order {
		items = append(items, g.items[id])
	}
	return items
}

// Predecessors returns the full wait-set for an item: declared predecessors
// plus implied resource-conflict edges. The result is a fresh copy.
func (g *Graph) Predecessors(id string) map[string]struct{} {
	out := make(map[string]struct{}, len(g.preds[id]))
	for p := range g.preds[id] {
		out[p] = struct{}{}
	}
	return out
}

// Dependents returns the IDs of items whose wait-set contains id, sorted.
func (g *Graph) Dependents(id string) []string {
	var out []string
	for _, other := range g.order {
		if _, ok := g.preds[other][id]; ok {
			out = append(out, other)
		}
	}
	sort.Strings(out)
	return out
}

// Add inserts an item and its edge set. The wait-set is the union of the
// item's declared predecessors and every earlier-inserted item whose
// resources conflict with it (creation order breaks ties: the
// earlier-declared item wins the resource).
//
// Add fails with *errors.ConflictCycleError if the edge set would close a
// cycle, and with *errors.ValidationError for duplicate IDs or
// self-dependencies. On failure the graph is unchanged.
func (g *Graph) Add(item *workitem.Item) error {
	if item == nil || item.ID == "" {
		return errors.NewValidationError("", "item is nil or has no id")
	}
	if _, exists := g.items[item.ID]; exists {
		return &errors.ValidationError{
			ItemID:  item.ID,
			Message: "already present in graph",
			Err:     errors.ErrDuplicateItem,
		}
	}

	waitSet, err := g.buildWaitSet(item, nil)
	if err != nil {
		return err
	}

	return g.commit(item, waitSet, nil)
}

// Supersede inserts a corrective item replacing a retired failed item. The
// corrective item waits on the failed item itself, on its own declared
// predecessors, and on conflicting earlier items that are not downstream of
// the failed item. Every direct dependent of the failed item additionally
// waits on the corrective item, so corrective work is ordered after the
// failed phase and before anything that depended on the failure.
func (g *Graph) Supersede(failedID string, item *workitem.Item) error {
	failed, ok := g.items[failedID]
	if !ok {
		return fmt.Errorf("supersede %q: %w", failedID, errors.ErrItemNotFound)
	}
	if failed.Status != workitem.StatusFailed {
		return errors.NewValidationError(failedID,
			fmt.Sprintf("cannot supersede item in status %q", failed.Status))
	}
	if item == nil || item.ID == "" {
		return errors.NewValidationError("", "corrective item is nil or has no id")
	}
	if _, exists := g.items[item.ID]; exists {
		return &errors.ValidationError{
			ItemID:  item.ID,
			Message: "already present in graph",
			Err:     errors.ErrDuplicateItem,
		}
	}

	// Items downstream of the failure are rewired to run after the
	// corrective item, so they must not contribute implied edges to it.
	downstream := g.transitiveDependents(failedID)

	waitSet, err := g.buildWaitSet(item, downstream)
	if err != nil {
		return err
	}
	waitSet[failedID] = struct{}{}

	rewire := g.Dependents(failedID)
	if err := g.commit(item, waitSet, rewire); err != nil {
		return err
	}

	failed.SupersededBy = item.ID
	item.Supersedes = failedID
	return nil
}

// buildWaitSet computes the union of declared and implied edges for an item
// that is about to be inserted. Items in skip are excluded from the implied
// conflict scan.
func (g *Graph) buildWaitSet(item *workitem.Item, skip map[string]struct{}) (map[string]struct{}, error) {
	waitSet := make(map[string]struct{})

	for _, dep := range item.DependsOn {
		if dep == item.ID {
			return nil, errors.NewValidationError(item.ID, "depends on itself")
		}
		waitSet[dep] = struct{}{}
	}

	for _, id := range g.order {
		if _, skipped := skip[id]; skipped {
			continue
		}
		if g.items[id].Conflicts(item) {
			waitSet[id] = struct{}{}
		}
	}

	return waitSet, nil
}

// commit checks the tentative graph for cycles and, if acyclic, installs the
// item, its wait-set, and any rewired dependent edges. The check runs on a
// copy so a rejection leaves the graph untouched.
func (g *Graph) commit(item *workitem.Item, waitSet map[string]struct{}, rewire []string) error {
	candidate := g.copyPreds()
	candidate[item.ID] = waitSet
	for _, dep := range rewire {
		candidate[dep][item.ID] = struct{}{}
	}

	if cycle := findCycle(candidate); cycle != nil {
		return &errors.ConflictCycleError{ItemID: item.ID, Cycle: cycle}
	}

	g.items[item.ID] = item
	g.order = append(g.order, item.ID)
	g.preds[item.ID] = waitSet
	for _, dep := range rewire {
		g.preds[dep][item.ID] = struct{}{}
	}
	return nil
}

// IsAcyclic reports whether the graph contains no dependency cycle. Used
// defensively after mutations; Add and Supersede already refuse to create
// cycles.
func (g *Graph) IsAcyclic() bool {
	return findCycle(g.preds) == nil
}

// transitiveDependents returns every item that directly or transitively
// waits on id.
func (g *Graph) transitiveDependents(id string) map[string]struct{} {
	// Invert the edges once, then walk.
	dependents := make(map[string][]string)
	for itemID, waitSet := range g.preds {
		for p := range waitSet {
			dependents[p] = append(dependents[p], itemID)
		}
	}

	seen := make(map[string]struct{})
	stack := []string{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, dep := range dependents[cur] {
			if _, ok := seen[dep]; ok {
				continue
			}
			seen[dep] = struct{}{}
			stack = append(stack, dep)
		}
	}
	return seen
}

// copyPreds deep-copies the predecessor map.
func (g *Graph) copyPreds() map[string]map[string]struct{} {
	out := make(map[string]map[string]struct{}, len(g.preds))
	for id, waitSet := range g.preds {
		cp := make(map[string]struct{}, len(waitSet))
		for p := range waitSet {
			cp[p] = struct{}{}
		}
		out[id] = cp
	}
	return out
}

// findCycle looks for a dependency cycle among the keys of preds and returns
// it as a path starting and ending at the same ID, or nil if the graph is
// acyclic. Edges to IDs that are not keys (forward declared references) are
// ignored: they cannot close a cycle. Nodes are visited in sorted order so
// the reported cycle is deterministic.
func findCycle(preds map[string]map[string]struct{}) []string {
	const (
		unvisited = iota
		inProgress
		done
	)

	state := make(map[string]int, len(preds))
	parent := make(map[string]string)

	ids := make([]string, 0, len(preds))
	for id := range preds {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var cycleStart, cycleEnd string

	var visit func(id string) bool
	visit = func(id string) bool {
		state[id] = inProgress

		targets := make([]string, 0, len(preds[id]))
		for p := range preds[id] {
			if _, known := preds[p]; known {
				targets = append(targets, p)
			}
		}
		sort.Strings(targets)

		for _, p := range targets {
			switch state[p] {
			case inProgress:
				cycleStart, cycleEnd = p, id
				return true
			case unvisited:
				parent[p] = id
				if visit(p) {
					return true
				}
			}
		}

		state[id] = done
		return false
	}

	for _, id := range ids {
		if state[id] == unvisited && visit(id) {
			// Walk parents from cycleEnd back to cycleStart.
			path := []string{cycleStart}
			for cur := cycleEnd; cur != cycleStart; cur = parent[cur] {
				path = append(path, cur)
			}
			path = append(path, cycleStart)
			// Reverse into dependency order: start -> ... -> start.
			for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
				path[i], path[j] = path[j], path[i]
			}
			return path
		}
	}

	return nil
}

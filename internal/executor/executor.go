// Package executor runs the items of a single phase concurrently against the
// external execution collaborator and joins on their completion. RunState
// mutation is serialized through a single collecting goroutine: dispatch
// goroutines only report outcomes over a channel, and the caller's goroutine
// applies them to the work-item records.
package executor

import (
	"context"
	"fmt"

	"github.com/ncode25/Copilot-orchestrator/internal/errors"
	"github.com/ncode25/Copilot-orchestrator/internal/logging"
	"github.com/ncode25/Copilot-orchestrator/internal/schedule"
	"github.com/ncode25/Copilot-orchestrator/internal/workitem"
)

// Dispatcher is the external execution collaborator. Execute performs the
// work described by the item and returns an opaque result payload. It must be
// safe to invoke concurrently for distinct items with disjoint resource sets;
// the scheduler never invokes it concurrently for conflicting items.
type Dispatcher interface {
	Execute(ctx context.Context, item *workitem.Item) (string, error)
}

// DispatchFunc adapts a function to the Dispatcher interface.
type DispatchFunc func(ctx context.Context, item *workitem.Item) (string, error)

// Execute calls f.
func (f DispatchFunc) Execute(ctx context.Context, item *workitem.Item) (string, error) {
	return f(ctx, item)
}

// EventHandler receives execution events. Implementations must be safe for
// calls from the scheduling goroutine; events for one phase arrive in order.
type EventHandler interface {
	// OnItemStarted is called when an item is dispatched.
	OnItemStarted(item *workitem.Item)

	// OnItemSucceeded is called when an item completes successfully.
	OnItemSucceeded(item *workitem.Item)

	// OnItemFailed is called when an item fails.
	OnItemFailed(item *workitem.Item, err error)

	// OnPhaseCompleted is called once every item of a phase is terminal.
	OnPhaseCompleted(index int, succeeded, failed []string)
}

// CombineHandlers fans events out to several handlers in order. Nil entries
// are skipped.
func CombineHandlers(handlers ...EventHandler) EventHandler {
	var active []EventHandler
	for _, h := range handlers {
		if h != nil {
			active = append(active, h)
		}
	}
	return multiHandler(active)
}

type multiHandler []EventHandler

func (m multiHandler) OnItemStarted(item *workitem.Item) {
	for _, h := range m {
		h.OnItemStarted(item)
	}
}

func (m multiHandler) OnItemSucceeded(item *workitem.Item) {
	for _, h := range m {
		h.OnItemSucceeded(item)
	}
}

func (m multiHandler) OnItemFailed(item *workitem.Item, err error) {
	for _, h := range m {
		h.OnItemFailed(item, err)
	}
}

func (m multiHandler) OnPhaseCompleted(index int, succeeded, failed []string) {
	for _, h := range m {
		h.OnPhaseCompleted(index, succeeded, failed)
	}
}

// PhaseOutcome summarizes one executed phase. Succeeded and Failed are
// sorted; Failures maps a failed item ID to its execution error.
type PhaseOutcome struct {
	Index     int
	Succeeded []string
	Failed    []string
	Failures  map[string]*errors.ExecutionFailure
}

// HasFailures reports whether any item in the phase failed.
func (o PhaseOutcome) HasFailures() bool {
	return len(o.Failed) > 0
}

// Executor dispatches phases to the execution collaborator.
type Executor struct {
	dispatch Dispatcher
	events   EventHandler
	log      *logging.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithEvents installs an event handler.
func WithEvents(h EventHandler) Option {
	return func(e *Executor) {
		e.events = h
	}
}

// WithLogger installs a logger.
func WithLogger(log *logging.Logger) Option {
	return func(e *Executor) {
		e.log = log
	}
}

// New creates an Executor backed by the given dispatcher.
func New(dispatch Dispatcher, opts ...Option) *Executor {
	e := &Executor{
		dispatch: dispatch,
		log:      logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// itemOutcome travels from a dispatch goroutine to the collector.
type itemOutcome struct {
	itemID string
	result string
	err    error
}

// RunPhase dispatches every item of the phase concurrently and blocks until
// all of them are terminal. One item's failure does not cancel its siblings:
// by construction they touch disjoint resources, so they are allowed to
// finish. Item status and result/failure fields are mutated only by this
// goroutine as outcomes are collected.
//
// RunPhase returns an error only for invariant violations (an unknown item
// ID in the phase); item-level failures are reported in the PhaseOutcome.
func (e *Executor) RunPhase(ctx context.Context, phase schedule.Phase, items map[string]*workitem.Item) (PhaseOutcome, error) {
	outcome := PhaseOutcome{
		Index:    phase.Index,
		Failures: make(map[string]*errors.ExecutionFailure),
	}

	log := e.log.WithPhase(phase.Index)

	phaseItems := make([]*workitem.Item, 0, len(phase.Items))
	for _, id := range phase.Items {
		item, ok := items[id]
		if !ok {
			return outcome, fmt.Errorf("phase %d references unknown item %q: %w",
				phase.Index, id, errors.ErrItemNotFound)
		}
		item.MarkReady()
		phaseItems = append(phaseItems, item)
	}

	log.Info("phase started", "items", len(phaseItems))

	results := make(chan itemOutcome, len(phaseItems))
	for _, item := range phaseItems {
		item.MarkRunning()
		if e.events != nil {
			e.events.OnItemStarted(item)
		}
		log.WithItem(item.ID).Debug("item dispatched")

		go func(item *workitem.Item) {
			result, err := e.dispatch.Execute(ctx, item)
			results <- itemOutcome{itemID: item.ID, result: result, err: err}
		}(item)
	}

	// Join barrier: the phase completes only once every item is terminal.
	for range phaseItems {
		out := <-results
		item := items[out.itemID]

		if out.err != nil {
			failure := &errors.ExecutionFailure{
				ItemID: out.itemID,
				Round:  item.Round,
				Err:    out.err,
			}
			item.MarkFailed(failure.Detail())
			outcome.Failed = append(outcome.Failed, out.itemID)
			outcome.Failures[out.itemID] = failure

			log.WithItem(item.ID).Warn("item failed", "detail", failure.Detail())
			if e.events != nil {
				e.events.OnItemFailed(item, failure)
			}
			continue
		}

		item.MarkSucceeded(out.result)
		outcome.Succeeded = append(outcome.Succeeded, out.itemID)

		log.WithItem(item.ID).Info("item succeeded")
		if e.events != nil {
			e.events.OnItemSucceeded(item)
		}
	}

	sortIDs(outcome.Succeeded)
	sortIDs(outcome.Failed)

	log.Info("phase completed",
		"succeeded", len(outcome.Succeeded),
		"failed", len(outcome.Failed))
	if e.events != nil {
		e.events.OnPhaseCompleted(phase.Index, outcome.Succeeded, outcome.Failed)
	}

	return outcome, nil
}

func sortIDs(ids []string) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j] < ids[j-1]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
}

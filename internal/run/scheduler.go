// Package run drives one scheduling run end to end: partition the dependency
// graph into phases, execute each phase concurrently, feed failures through
// the retry controller, re-partition after corrective items are injected, and
// produce the final report.
package run

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ncode25/Copilot-orchestrator/internal/errors"
	"github.com/ncode25/Copilot-orchestrator/internal/executor"
	"github.com/ncode25/Copilot-orchestrator/internal/graph"
	"github.com/ncode25/Copilot-orchestrator/internal/logging"
	"github.com/ncode25/Copilot-orchestrator/internal/retry"
	"github.com/ncode25/Copilot-orchestrator/internal/schedule"
	"github.com/ncode25/Copilot-orchestrator/internal/workitem"
)

// Outcome is the terminal state of a run.
type Outcome string

const (
	// OutcomeCompleted means every item (or its corrective replacement)
	// succeeded.
	OutcomeCompleted Outcome = "completed"

	// OutcomeEscalated means an item exhausted its correction rounds, or the
	// planning collaborator failed, and the run stopped.
	OutcomeEscalated Outcome = "escalated"
)

// Scheduler owns the state of one run. It is not reusable: Run may be called
// once.
type Scheduler struct {
	graph       *graph.Graph
	exec        *executor.Executor
	retry       *retry.Controller
	log         *logging.Logger
	maxParallel int
	warnings    func() []string
	events      executor.EventHandler
	retryOpts   []retry.Option

	started  bool
	finished bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger installs a logger used by the scheduler and its executor.
func WithLogger(log *logging.Logger) Option {
	return func(s *Scheduler) {
		s.log = log
	}
}

// WithMaxParallel caps the number of items dispatched concurrently by
// splitting phases into batches. Zero or less means unlimited.
func WithMaxParallel(n int) Option {
	return func(s *Scheduler) {
		s.maxParallel = n
	}
}

// WithMaxCorrectionRounds overrides the retry controller's round bound.
func WithMaxCorrectionRounds(n int) Option {
	return func(s *Scheduler) {
		s.retryOpts = append(s.retryOpts, retry.WithMaxRounds(n))
	}
}

// WithEvents installs an execution event handler.
func WithEvents(h executor.EventHandler) Option {
	return func(s *Scheduler) {
		s.events = h
	}
}

// WithWarnings installs a callback queried once at the end of the run for
// report warnings (used by the live conflict watcher).
func WithWarnings(fn func() []string) Option {
	return func(s *Scheduler) {
		s.warnings = fn
	}
}

// NewScheduler creates a Scheduler over an already-built graph. The
// dispatcher is the execution collaborator; the planner is consulted only for
// corrections (initial planning happens before the graph is built).
func NewScheduler(g *graph.Graph, dispatch executor.Dispatcher, planner retry.Planner, opts ...Option) *Scheduler {
	s := &Scheduler{
		graph: g,
		log:   logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.exec = executor.New(dispatch,
		executor.WithLogger(s.log.WithComponent("executor")),
		executor.WithEvents(s.events),
	)
	s.retry = retry.NewController(planner,
		append(s.retryOpts, retry.WithLogger(s.log.WithComponent("retry")))...,
	)
	return s
}

// Run executes the scheduling run to its terminal state. It returns an error
// only for fatal conditions (unschedulable graph, invariant violations);
// escalation is a normal terminal outcome carried in the report.
func (s *Scheduler) Run(ctx context.Context) (*Report, error) {
	if s.started {
		return nil, fmt.Errorf("scheduler already started")
	}
	s.started = true

	startedAt := time.Now()
	log := s.log.WithComponent("scheduler")
	log.Info("run started", "items", s.graph.Len())

	// satisfied holds items whose dependents may proceed: succeeded items,
	// plus failed items that have been superseded by a corrective
	// replacement (the replacement's edges preserve the ordering).
	satisfied := make(map[string]bool)
	phaseOf := make(map[string]int)
	phaseCount := 0
	rounds := 0

	var escalation *retry.EscalationReport

	for {
		phases, err := schedule.PartitionFrom(s.graph, satisfied)
		if err != nil {
			return nil, err
		}
		phases = schedule.SplitForParallelism(phases, s.maxParallel)
		if len(phases) == 0 {
			break
		}

		// Execute only the first layer, then re-plan: corrective items
		// injected by a failure must slot in before anything downstream.
		phase := phases[0]
		phase.Index = phaseCount
		phaseCount++
		for _, id := range phase.Items {
			phaseOf[id] = phase.Index
		}

		outcome, err := s.exec.RunPhase(ctx, phase, s.itemIndex())
		if err != nil {
			return nil, err
		}

		for _, id := range outcome.Succeeded {
			satisfied[id] = true
		}

		if !outcome.HasFailures() {
			continue
		}

		for _, id := range outcome.Failed {
			item := s.graph.Item(id)
			decision, err := s.retry.HandleFailure(ctx, item)
			if err != nil && !errors.Is(err, errors.ErrPlanningFailed) {
				return nil, err
			}

			if decision.Kind == retry.DecisionEscalate {
				escalation = decision.Escalation
				log.Warn("run escalated",
					"item", decision.Escalation.ItemID,
					"rounds", decision.Escalation.Rounds)
				break
			}

			rounds++
			if err := s.graph.Supersede(id, decision.Replacement); err != nil {
				return nil, fmt.Errorf("injecting corrective item for %q: %w", id, err)
			}
			satisfied[id] = true
			log.Info("corrective item injected",
				"failed", id, "replacement", decision.Replacement.ID)
		}

		if escalation != nil {
			break
		}
	}

	s.finished = true

	report := s.buildReport(startedAt, phaseOf, rounds, escalation)
	log.Info("run finished",
		"outcome", string(report.Outcome),
		"phases", phaseCount,
		"correction_rounds", rounds)
	return report, nil
}

// itemIndex snapshots the graph's items keyed by ID for the executor.
func (s *Scheduler) itemIndex() map[string]*workitem.Item {
	index := make(map[string]*workitem.Item, s.graph.Len())
	for _, item := range s.graph.Items() {
		index[item.ID] = item
	}
	return index
}

func (s *Scheduler) buildReport(startedAt time.Time, phaseOf map[string]int, rounds int, escalation *retry.EscalationReport) *Report {
	outcome := OutcomeCompleted
	if escalation != nil {
		outcome = OutcomeEscalated
	}

	report := &Report{
		Outcome:          outcome,
		CorrectionRounds: rounds,
		Escalation:       escalation,
		StartedAt:        startedAt,
		FinishedAt:       time.Now(),
	}
	if s.warnings != nil {
		report.Warnings = s.warnings()
	}

	for _, item := range s.graph.Items() {
		phase, ran := phaseOf[item.ID]
		record := ItemRecord{
			ID:           item.ID,
			Description:  item.Description,
			Status:       item.Status,
			Resources:    item.Resources.Tokens(),
			DependsOn:    waitSet(s.graph, item.ID),
			Phase:        -1,
			Round:        item.Round,
			Result:       item.Result,
			Failure:      item.Failure,
			Supersedes:   item.Supersedes,
			SupersededBy: item.SupersededBy,
		}
		if ran {
			record.Phase = phase
		}
		report.Items = append(report.Items, record)
	}

	return report
}

// waitSet renders an item's full wait-set as a sorted slice.
func waitSet(g *graph.Graph, id string) []string {
	preds := g.Predecessors(id)
	out := make([]string, 0, len(preds))
	for p := range preds {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

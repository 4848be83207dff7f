// Package retry decides what happens after a work item fails: request a
// corrective replacement from the planning collaborator, or escalate once the
// correction-round bound is exhausted. It also keeps the per-item attempt
// history that escalation reports are built from.
package retry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ncode25/Copilot-orchestrator/internal/errors"
	"github.com/ncode25/Copilot-orchestrator/internal/logging"
	"github.com/ncode25/Copilot-orchestrator/internal/workitem"
)

// DefaultMaxRounds is the bound on correction rounds per original item.
const DefaultMaxRounds = 3

// Planner is the external planning collaborator. Both calls are opaque and
// potentially slow, and may themselves fail; a ProduceCorrection failure is
// wrapped as *errors.PlanningError and always escalates rather than retrying,
// to avoid infinite correction loops.
type Planner interface {
	// ProducePlan derives the initial work-item list from free-form
	// requirements.
	ProducePlan(ctx context.Context, requirements string) ([]*workitem.Item, error)

	// ProduceCorrection derives a replacement for a failed item from its
	// description and failure detail.
	ProduceCorrection(ctx context.Context, failed *workitem.Item, detail string) (*workitem.Item, error)
}

// Attempt is one recorded failure of an item lineage.
type Attempt struct {
	// ItemID is the item instance that failed (original or corrective).
	ItemID string `json:"item_id"`
	// Round is the correction round of the failed instance (0 = original).
	Round int `json:"round"`
	// Failure is the failure detail.
	Failure string `json:"failure"`
	// At is when the failure was recorded.
	At time.Time `json:"at"`
}

// DecisionKind discriminates the controller's two possible decisions.
type DecisionKind int

const (
	// DecisionRetry means a corrective item replaces the failed one.
	DecisionRetry DecisionKind = iota
	// DecisionEscalate means the run terminates in the Escalated state.
	DecisionEscalate
)

// String returns the string representation of the decision kind.
func (k DecisionKind) String() string {
	switch k {
	case DecisionRetry:
		return "retry"
	case DecisionEscalate:
		return "escalate"
	default:
		return "unknown"
	}
}

// Decision is the outcome of HandleFailure.
type Decision struct {
	Kind DecisionKind

	// Replacement is the corrective item, set when Kind is DecisionRetry.
	Replacement *workitem.Item

	// Escalation describes the exhausted lineage, set when Kind is
	// DecisionEscalate.
	Escalation *EscalationReport
}

// EscalationReport carries enough detail for a human or upstream system to
// act without re-deriving history.
type EscalationReport struct {
	// ItemID is the original plan item whose corrections were exhausted.
	ItemID string `json:"item_id"`
	// LastItemID is the final failed instance.
	LastItemID string `json:"last_item_id"`
	// LastFailure is the failure detail of the final attempt.
	LastFailure string `json:"last_failure"`
	// Rounds is the number of correction rounds consumed.
	Rounds int `json:"rounds"`
	// Attempts is the full failure chain, oldest first.
	Attempts []Attempt `json:"attempts"`
	// PlanningFailure is set when escalation was forced by a planning
	// collaborator error rather than an exhausted bound.
	PlanningFailure string `json:"planning_failure,omitempty"`
}

// Controller implements the bounded failure-recovery state machine:
// Failed -> Pending(corrective item), or Failed -> Escalated once the round
// bound is reached. Safe for concurrent use, though the scheduler calls it
// from a single goroutine.
type Controller struct {
	planner   Planner
	maxRounds int
	log       *logging.Logger

	mu      sync.Mutex
	history map[string][]Attempt // keyed by the original item ID
}

// Option configures a Controller.
type Option func(*Controller)

// WithMaxRounds overrides the correction-round bound. Values below one fall
// back to DefaultMaxRounds.
func WithMaxRounds(n int) Option {
	return func(c *Controller) {
		if n >= 1 {
			c.maxRounds = n
		}
	}
}

// WithLogger installs a logger.
func WithLogger(log *logging.Logger) Option {
	return func(c *Controller) {
		c.log = log
	}
}

// NewController creates a Controller that obtains corrections from planner.
func NewController(planner Planner, opts ...Option) *Controller {
	c := &Controller{
		planner:   planner,
		maxRounds: DefaultMaxRounds,
		log:       logging.NopLogger(),
		history:   make(map[string][]Attempt),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MaxRounds returns the configured correction-round bound.
func (c *Controller) MaxRounds() int {
	return c.maxRounds
}

// HandleFailure records the failure and decides between another correction
// round and escalation. The failed item's Round counts the corrections
// already spent on its lineage: an original item has Round 0, so it is
// granted maxRounds corrective attempts before escalation.
func (c *Controller) HandleFailure(ctx context.Context, item *workitem.Item) (Decision, error) {
	if item == nil {
		return Decision{}, errors.NewValidationError("", "failed item is nil")
	}
	if item.Status != workitem.StatusFailed {
		return Decision{}, errors.NewValidationError(item.ID,
			fmt.Sprintf("cannot handle failure for item in status %q", item.Status))
	}

	origin := item.Origin
	if origin == "" {
		origin = item.ID
	}

	c.mu.Lock()
	c.history[origin] = append(c.history[origin], Attempt{
		ItemID:  item.ID,
		Round:   item.Round,
		Failure: item.Failure,
		At:      time.Now(),
	})
	attempts := c.attemptsLocked(origin)
	c.mu.Unlock()

	log := c.log.WithItem(item.ID)

	if item.Round >= c.maxRounds {
		log.Warn("correction rounds exhausted, escalating",
			"origin", origin, "rounds", item.Round)
		return Decision{
			Kind:       DecisionEscalate,
			Escalation: c.buildReport(origin, item, attempts, ""),
		}, nil
	}

	replacement, err := c.planner.ProduceCorrection(ctx, item, item.Failure)
	if err != nil {
		planErr := &errors.PlanningError{Op: "produce correction", Err: err}
		log.Error("planning collaborator failed, escalating", "error", err)
		return Decision{
			Kind:       DecisionEscalate,
			Escalation: c.buildReport(origin, item, attempts, planErr.Error()),
		}, planErr
	}
	if replacement == nil {
		planErr := &errors.PlanningError{
			Op:  "produce correction",
			Err: errors.New("planner returned no replacement item"),
		}
		return Decision{
			Kind:       DecisionEscalate,
			Escalation: c.buildReport(origin, item, attempts, planErr.Error()),
		}, planErr
	}

	c.normalize(replacement, item, origin)

	log.Info("corrective item produced",
		"replacement", replacement.ID, "round", replacement.Round)
	return Decision{Kind: DecisionRetry, Replacement: replacement}, nil
}

// normalize stamps lineage fields onto a planner-produced replacement and
// fills in anything the planner left blank: the identity follows the
// <origin>-r<round> convention, and declared predecessors and resources
// default to the failed item's.
func (c *Controller) normalize(replacement, failed *workitem.Item, origin string) {
	round := failed.Round + 1

	replacement.Round = round
	replacement.Origin = origin
	if replacement.ID == "" || replacement.ID == failed.ID {
		replacement.ID = fmt.Sprintf("%s-r%d", origin, round)
	}
	if len(replacement.DependsOn) == 0 {
		replacement.DependsOn = append([]string(nil), failed.DependsOn...)
	}
	if replacement.Resources.IsEmpty() {
		replacement.Resources = failed.Resources
	}
	replacement.Status = workitem.StatusPending
	if replacement.CreatedAt.IsZero() {
		replacement.CreatedAt = time.Now()
	}
}

// Attempts returns the recorded failure chain for an original item ID,
// oldest first. The result is a copy.
func (c *Controller) Attempts(origin string) []Attempt {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attemptsLocked(origin)
}

// History returns all recorded attempts keyed by original item ID.
func (c *Controller) History() map[string][]Attempt {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string][]Attempt, len(c.history))
	for origin := range c.history {
		out[origin] = c.attemptsLocked(origin)
	}
	return out
}

func (c *Controller) attemptsLocked(origin string) []Attempt {
	attempts := make([]Attempt, len(c.history[origin]))
	copy(attempts, c.history[origin])
	return attempts
}

func (c *Controller) buildReport(origin string, last *workitem.Item, attempts []Attempt, planningFailure string) *EscalationReport {
	return &EscalationReport{
		ItemID:          origin,
		LastItemID:      last.ID,
		LastFailure:     last.Failure,
		Rounds:          last.Round,
		Attempts:        attempts,
		PlanningFailure: planningFailure,
	}
}

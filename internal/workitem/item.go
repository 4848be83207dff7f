// Package workitem defines the work-item record, its status state machine,
// and the resource-set model used for conflict detection between items.
package workitem

import (
	"time"
)

// Status represents the current state of a work item.
type Status string

const (
	// StatusPending indicates the item is waiting to be assigned to a phase.
	StatusPending Status = "pending"

	// StatusReady indicates the item's phase is about to run: every
	// predecessor has succeeded and dispatch is imminent.
	StatusReady Status = "ready"

	// StatusRunning indicates the item is being executed.
	StatusRunning Status = "running"

	// StatusSucceeded indicates the item finished successfully.
	StatusSucceeded Status = "succeeded"

	// StatusFailed indicates execution failed. A failed item is retired:
	// it is never re-run, only superseded by a corrective item.
	StatusFailed Status = "failed"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true if this status represents a final state.
func (s Status) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Item is a unit of work with declared dependencies and a declared resource
// footprint. Items are created at plan ingestion (or by the retry controller
// as corrective replacements) and are owned by a single scheduler run; the
// resource set and dependency list are immutable after creation, only status
// and outcome fields mutate.
type Item struct {
	// ID uniquely identifies the item within a run.
	ID string `json:"id"`

	// Description is the human-readable work description handed to the
	// execution collaborator.
	Description string `json:"description"`

	// DependsOn lists the declared predecessor item IDs, in declaration order.
	DependsOn []string `json:"depends_on,omitempty"`

	// Resources is the set of resource tokens the item will touch.
	Resources ResourceSet `json:"resources"`

	// Status is the current execution state.
	Status Status `json:"status"`

	// Result is the opaque result payload reported on success.
	Result string `json:"result,omitempty"`

	// Failure is the failure detail reported by the execution collaborator.
	Failure string `json:"failure,omitempty"`

	// Round is the correction round that produced this item: 0 for items
	// from the initial plan, n for the n-th corrective replacement.
	Round int `json:"round,omitempty"`

	// Origin is the ID of the original plan item this item corrects.
	// Equal to ID for round-0 items.
	Origin string `json:"origin,omitempty"`

	// Supersedes is the ID of the failed item this corrective item replaces.
	Supersedes string `json:"supersedes,omitempty"`

	// SupersededBy is the ID of the corrective item that replaced this item
	// after it failed.
	SupersededBy string `json:"superseded_by,omitempty"`

	// CreatedAt is when the item entered the run. Creation order breaks
	// resource-conflict ties, so this is informational only.
	CreatedAt time.Time `json:"created_at"`
}

// New creates a pending work item with the given identity, declared
// predecessors, and resource tokens. The predecessor slice is copied.
func New(id, description string, dependsOn []string, resources ResourceSet) *Item {
	deps := make([]string, len(dependsOn))
	copy(deps, dependsOn)

	return &Item{
		ID:          id,
		Description: description,
		DependsOn:   deps,
		Resources:   resources,
		Status:      StatusPending,
		Origin:      id,
		CreatedAt:   time.Now(),
	}
}

// MarkReady transitions the item into the ready state.
func (i *Item) MarkReady() {
	i.Status = StatusReady
}

// MarkRunning transitions the item into the running state.
func (i *Item) MarkRunning() {
	i.Status = StatusRunning
}

// MarkSucceeded records a successful outcome.
func (i *Item) MarkSucceeded(result string) {
	i.Status = StatusSucceeded
	i.Result = result
}

// MarkFailed records a failed outcome and retires the item.
func (i *Item) MarkFailed(detail string) {
	i.Status = StatusFailed
	i.Failure = detail
}

// Conflicts reports whether two items touch a common resource.
func (i *Item) Conflicts(other *Item) bool {
	return i.Resources.Conflicts(other.Resources)
}

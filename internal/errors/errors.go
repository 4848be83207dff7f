// Package errors provides centralized error definitions and error handling
// utilities for the scheduler. It defines the error taxonomy for plan
// ingestion, graph construction, phase execution, and planning-collaborator
// failures, along with classification helpers.
//
// # Error Types
//
//   - ConflictCycleError: declared or resource-implied dependencies form a
//     cycle. Fatal at plan-ingestion time, never retried.
//   - UnschedulableGraphError: the partitioner could not make progress with
//     items remaining. Defensive; indicates a bug in graph construction.
//   - ExecutionFailure: the execution collaborator failed an item.
//     Recoverable through bounded correction rounds.
//   - PlanningError: the planning collaborator itself failed. Immediately
//     escalated rather than retried, to avoid infinite correction loops.
//   - ValidationError: invalid plan input (duplicate IDs, self-dependencies,
//     malformed resources).
//
// # Usage
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrDependencyCycle) { ... }
//
//	var cycleErr *errors.ConflictCycleError
//	if errors.As(err, &cycleErr) { ... }
//
//	if errors.IsRetryable(err) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Graph-related sentinel errors
var (
	// ErrDependencyCycle indicates a circular dependency among work items.
	ErrDependencyCycle = New("dependency cycle detected")
	// ErrUnschedulable indicates the graph could not be layered into phases.
	ErrUnschedulable = New("graph is unschedulable")
	// ErrDuplicateItem indicates a work item ID was inserted twice.
	ErrDuplicateItem = New("duplicate work item id")
	// ErrItemNotFound indicates a referenced work item does not exist.
	ErrItemNotFound = New("work item not found")
)

// Run-related sentinel errors
var (
	// ErrExecutionFailed indicates the execution collaborator failed an item.
	ErrExecutionFailed = New("item execution failed")
	// ErrPlanningFailed indicates the planning collaborator call failed.
	ErrPlanningFailed = New("planning collaborator failed")
	// ErrRunFinalized indicates a mutation was attempted on a finished run.
	ErrRunFinalized = New("run already finalized")
)

// -----------------------------------------------------------------------------
// ConflictCycleError
// -----------------------------------------------------------------------------

// ConflictCycleError reports that inserting an item's edge set (declared
// predecessors plus resource-implied edges) would close a cycle. The graph is
// left unmodified when this error is returned.
type ConflictCycleError struct {
	// ItemID is the item whose insertion was rejected.
	ItemID string
	// Cycle is the chain of item IDs forming the cycle, starting and ending
	// at the same item.
	Cycle []string
}

// Error returns the error message.
func (e *ConflictCycleError) Error() string {
	if len(e.Cycle) > 0 {
		return fmt.Sprintf("inserting %q would create a dependency cycle: %s",
			e.ItemID, strings.Join(e.Cycle, " -> "))
	}
	return fmt.Sprintf("inserting %q would create a dependency cycle", e.ItemID)
}

// Is reports whether this error matches ErrDependencyCycle.
func (e *ConflictCycleError) Is(target error) bool {
	return target == ErrDependencyCycle
}

// -----------------------------------------------------------------------------
// UnschedulableGraphError
// -----------------------------------------------------------------------------

// UnschedulableGraphError reports that the phase partitioner stopped making
// progress with items still unassigned. Given the insertion-time cycle check
// this should be unreachable; it indicates either a bug in graph construction
// or a declared predecessor that was never inserted.
type UnschedulableGraphError struct {
	// Remaining is the sorted list of item IDs that could not be assigned.
	Remaining []string
}

// Error returns the error message.
func (e *UnschedulableGraphError) Error() string {
	return fmt.Sprintf("graph is unschedulable: %d items cannot be assigned to any phase: %s",
		len(e.Remaining), strings.Join(e.Remaining, ", "))
}

// Is reports whether this error matches ErrUnschedulable.
func (e *UnschedulableGraphError) Is(target error) bool {
	return target == ErrUnschedulable
}

// -----------------------------------------------------------------------------
// ExecutionFailure
// -----------------------------------------------------------------------------

// ExecutionFailure reports that the execution collaborator failed a work
// item. It is the only recoverable error in the taxonomy: the retry
// controller may request a corrective item for it, up to the round bound.
type ExecutionFailure struct {
	// ItemID is the item that failed.
	ItemID string
	// Round is the correction round of the failed item (0 for an original
	// plan item).
	Round int
	// Err is the underlying error from the execution collaborator.
	Err error
}

// Error returns the error message.
func (e *ExecutionFailure) Error() string {
	if e.Round > 0 {
		return fmt.Sprintf("item %q failed (correction round %d): %v", e.ItemID, e.Round, e.Err)
	}
	return fmt.Sprintf("item %q failed: %v", e.ItemID, e.Err)
}

// Unwrap returns the underlying error.
func (e *ExecutionFailure) Unwrap() error {
	return e.Err
}

// Is reports whether this error matches ErrExecutionFailed.
func (e *ExecutionFailure) Is(target error) bool {
	return target == ErrExecutionFailed
}

// Detail returns the failure detail string recorded on the work item.
func (e *ExecutionFailure) Detail() string {
	if e.Err == nil {
		return "unknown failure"
	}
	return e.Err.Error()
}

// -----------------------------------------------------------------------------
// PlanningError
// -----------------------------------------------------------------------------

// PlanningError reports that a call to the planning collaborator failed.
// It always triggers escalation rather than another correction round.
type PlanningError struct {
	// Op names the failed operation, e.g. "produce plan" or "produce correction".
	Op string
	// Err is the underlying error from the planning collaborator.
	Err error
}

// Error returns the error message.
func (e *PlanningError) Error() string {
	return fmt.Sprintf("planning collaborator: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *PlanningError) Unwrap() error {
	return e.Err
}

// Is reports whether this error matches ErrPlanningFailed.
func (e *PlanningError) Is(target error) bool {
	return target == ErrPlanningFailed
}

// -----------------------------------------------------------------------------
// ValidationError
// -----------------------------------------------------------------------------

// ValidationError reports invalid work-item input at ingestion time.
type ValidationError struct {
	// ItemID is the offending item, if attributable to one.
	ItemID string
	// Message describes the problem.
	Message string
	// Err is an optional underlying sentinel, e.g. ErrDuplicateItem.
	Err error
}

// Error returns the error message.
func (e *ValidationError) Error() string {
	if e.ItemID != "" {
		return fmt.Sprintf("invalid work item %q: %s", e.ItemID, e.Message)
	}
	return fmt.Sprintf("invalid plan: %s", e.Message)
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a ValidationError for the given item.
func NewValidationError(itemID, message string) *ValidationError {
	return &ValidationError{ItemID: itemID, Message: message}
}

// -----------------------------------------------------------------------------
// Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents an item-level execution
// failure that the retry controller may recover from. Graph-level and
// planning-collaborator errors are never retryable.
func IsRetryable(err error) bool {
	var execErr *ExecutionFailure
	return As(err, &execErr)
}

// IsFatal returns true for errors that must surface immediately: cycles,
// unschedulable graphs, planning-collaborator failures, and validation
// errors. Fatal errors indicate the input or the graph-construction logic is
// wrong and must never be silently dropped.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if Is(err, ErrDependencyCycle) || Is(err, ErrUnschedulable) || Is(err, ErrPlanningFailed) {
		return true
	}
	var valErr *ValidationError
	return As(err, &valErr)
}

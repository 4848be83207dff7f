package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ncode25/Copilot-orchestrator/internal/workitem"
)

// sender is the slice of *tea.Program the adapter needs; it keeps the adapter
// testable without driving a real program.
type sender interface {
	Send(msg tea.Msg)
}

// EventAdapter translates executor events into program messages. Executor
// callbacks run on the scheduler goroutine; Send is safe to call from there.
type EventAdapter struct {
	program sender
}

// NewEventAdapter creates an adapter feeding the given program.
func NewEventAdapter(program *tea.Program) *EventAdapter {
	return &EventAdapter{program: program}
}

// OnItemStarted implements executor.EventHandler.
func (a *EventAdapter) OnItemStarted(item *workitem.Item) {
	a.program.Send(ItemStartedMsg{ID: item.ID})
}

// OnItemSucceeded implements executor.EventHandler.
func (a *EventAdapter) OnItemSucceeded(item *workitem.Item) {
	a.program.Send(ItemSucceededMsg{ID: item.ID})
}

// OnItemFailed implements executor.EventHandler.
func (a *EventAdapter) OnItemFailed(item *workitem.Item, err error) {
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	a.program.Send(ItemFailedMsg{ID: item.ID, Detail: detail})
}

// OnPhaseCompleted implements executor.EventHandler.
func (a *EventAdapter) OnPhaseCompleted(index int, succeeded, failed []string) {
	a.program.Send(PhaseCompletedMsg{Index: index})
}

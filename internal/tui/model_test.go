package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ncode25/Copilot-orchestrator/internal/workitem"
)

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	model, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T, want Model", next)
	}
	return model
}

func TestModelTracksItemLifecycle(t *testing.T) {
	m := NewModel(2)

	m = update(t, m, ItemStartedMsg{ID: "a"})
	m = update(t, m, ItemStartedMsg{ID: "b"})
	m = update(t, m, ItemSucceededMsg{ID: "a"})
	m = update(t, m, ItemFailedMsg{ID: "b", Detail: "exit 1"})

	view := m.View()
	if !strings.Contains(view, "✓ a") {
		t.Errorf("view missing success marker for a:\n%s", view)
	}
	if !strings.Contains(view, "✗ b") {
		t.Errorf("view missing failure marker for b:\n%s", view)
	}
	if !strings.Contains(view, "exit 1") {
		t.Errorf("view missing failure detail:\n%s", view)
	}
}

func TestModelCorrectiveItemAppears(t *testing.T) {
	m := NewModel(1)
	m = update(t, m, ItemFailedMsg{ID: "a", Detail: "boom"})
	m = update(t, m, ItemStartedMsg{ID: "a-r1"})

	view := m.View()
	if !strings.Contains(view, "a-r1") {
		t.Errorf("view missing corrective item:\n%s", view)
	}
}

func TestModelQuitsOnRunFinished(t *testing.T) {
	m := NewModel(1)
	m = update(t, m, ItemStartedMsg{ID: "a"})
	m = update(t, m, ItemSucceededMsg{ID: "a"})

	next, cmd := m.Update(RunFinishedMsg{})
	if cmd == nil {
		t.Fatal("RunFinishedMsg should produce a quit command")
	}
	if msg := cmd(); msg != (tea.QuitMsg{}) {
		t.Errorf("cmd() = %v, want tea.QuitMsg", msg)
	}
	if !strings.Contains(next.(Model).View(), "Run completed") {
		t.Errorf("view missing completion header:\n%s", next.(Model).View())
	}
}

func TestModelEscalatedHeader(t *testing.T) {
	m := NewModel(1)
	next, _ := m.Update(RunFinishedMsg{Escalated: true})
	if !strings.Contains(next.(Model).View(), "Run escalated") {
		t.Errorf("view missing escalation header:\n%s", next.(Model).View())
	}
}

func TestModelQuitsOnKeypress(t *testing.T) {
	m := NewModel(1)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("q should produce a quit command")
	}
}

// recordingSender captures messages instead of driving a program.
type recordingSender struct {
	msgs []tea.Msg
}

func (s *recordingSender) Send(msg tea.Msg) { s.msgs = append(s.msgs, msg) }

func TestEventAdapterTranslatesEvents(t *testing.T) {
	rec := &recordingSender{}
	adapter := &EventAdapter{program: rec}
	item := workitem.New("a", "", nil, workitem.ResourceSet{})

	adapter.OnItemStarted(item)
	adapter.OnItemSucceeded(item)
	adapter.OnItemFailed(item, nil)
	adapter.OnPhaseCompleted(2, []string{"a"}, nil)

	if len(rec.msgs) != 4 {
		t.Fatalf("messages = %d, want 4", len(rec.msgs))
	}
	if got := rec.msgs[0].(ItemStartedMsg); got.ID != "a" {
		t.Errorf("first message = %+v", got)
	}
	if got := rec.msgs[3].(PhaseCompletedMsg); got.Index != 2 {
		t.Errorf("phase message = %+v", got)
	}
}

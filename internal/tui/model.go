// Package tui renders live run progress with Bubbletea: one line per work
// item, updated as executor events arrive.
package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ncode25/Copilot-orchestrator/internal/workitem"
)

// Messages sent into the program by the event adapter.
type (
	// ItemStartedMsg marks an item as running.
	ItemStartedMsg struct{ ID string }
	// ItemSucceededMsg marks an item as succeeded.
	ItemSucceededMsg struct{ ID string }
	// ItemFailedMsg marks an item as failed.
	ItemFailedMsg struct {
		ID     string
		Detail string
	}
	// PhaseCompletedMsg advances the phase counter.
	PhaseCompletedMsg struct{ Index int }
	// RunFinishedMsg ends the program.
	RunFinishedMsg struct{ Escalated bool }
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	detailStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

type itemState struct {
	id     string
	status workitem.Status
	detail string
}

// Model is the Bubbletea model for a run in progress.
type Model struct {
	spinner    spinner.Model
	items      map[string]*itemState
	order      []string
	totalItems int
	phase      int
	finished   bool
	escalated  bool
}

// NewModel creates a Model expecting the given number of plan items.
// Corrective items injected mid-run show up as extra lines.
func NewModel(totalItems int) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = runningStyle
	return Model{
		spinner:    sp,
		items:      make(map[string]*itemState),
		totalItems: totalItems,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case ItemStartedMsg:
		m.upsert(msg.ID, workitem.StatusRunning, "")

	case ItemSucceededMsg:
		m.upsert(msg.ID, workitem.StatusSucceeded, "")

	case ItemFailedMsg:
		m.upsert(msg.ID, workitem.StatusFailed, msg.Detail)

	case PhaseCompletedMsg:
		m.phase = msg.Index + 1

	case RunFinishedMsg:
		m.finished = true
		m.escalated = msg.Escalated
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *Model) upsert(id string, status workitem.Status, detail string) {
	state, ok := m.items[id]
	if !ok {
		state = &itemState{id: id}
		m.items[id] = state
		m.order = append(m.order, id)
		sort.Strings(m.order)
	}
	state.status = status
	state.detail = detail
}

// View implements tea.Model.
func (m Model) View() string {
	var sb strings.Builder

	header := fmt.Sprintf("Run in progress — phase %d, %d/%d items seen",
		m.phase, len(m.items), m.totalItems)
	if m.finished {
		header = "Run completed"
		if m.escalated {
			header = "Run escalated"
		}
	}
	sb.WriteString(titleStyle.Render(header))
	sb.WriteString("\n\n")

	for _, id := range m.order {
		state := m.items[id]
		switch state.status {
		case workitem.StatusRunning:
			sb.WriteString(m.spinner.View())
			sb.WriteString(" ")
			sb.WriteString(runningStyle.Render(id))
		case workitem.StatusSucceeded:
			sb.WriteString(successStyle.Render("✓ " + id))
		case workitem.StatusFailed:
			sb.WriteString(failureStyle.Render("✗ " + id))
			if state.detail != "" {
				sb.WriteString(detailStyle.Render("  " + state.detail))
			}
		default:
			sb.WriteString(detailStyle.Render("· " + id))
		}
		sb.WriteString("\n")
	}

	if !m.finished {
		sb.WriteString(detailStyle.Render("\npress q to detach\n"))
	}
	return sb.String()
}

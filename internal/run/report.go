package run

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ncode25/Copilot-orchestrator/internal/retry"
	"github.com/ncode25/Copilot-orchestrator/internal/workitem"
)

// ItemRecord is one work item's final state in the run report.
type ItemRecord struct {
	ID           string          `json:"id" yaml:"id"`
	Description  string          `json:"description,omitempty" yaml:"description,omitempty"`
	Status       workitem.Status `json:"status" yaml:"status"`
	Resources    []string        `json:"resources" yaml:"resources"`
	DependsOn    []string        `json:"depends_on" yaml:"depends_on"`
	Phase        int             `json:"phase" yaml:"phase"`
	Round        int             `json:"round,omitempty" yaml:"round,omitempty"`
	Result       string          `json:"result,omitempty" yaml:"result,omitempty"`
	Failure      string          `json:"failure,omitempty" yaml:"failure,omitempty"`
	Supersedes   string          `json:"supersedes,omitempty" yaml:"supersedes,omitempty"`
	SupersededBy string          `json:"superseded_by,omitempty" yaml:"superseded_by,omitempty"`
}

// Report is the final output of a run: the terminal outcome, one record per
// item, and for escalated runs the corrective-attempt chain of the item that
// triggered escalation.
type Report struct {
	Outcome          Outcome                 `json:"outcome" yaml:"outcome"`
	Items            []ItemRecord            `json:"items" yaml:"items"`
	CorrectionRounds int                     `json:"correction_rounds" yaml:"correction_rounds"`
	Escalation       *retry.EscalationReport `json:"escalation,omitempty" yaml:"escalation,omitempty"`
	Warnings         []string                `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	StartedAt        time.Time               `json:"started_at" yaml:"started_at"`
	FinishedAt       time.Time               `json:"finished_at" yaml:"finished_at"`
}

// Completed reports whether the run reached the completed outcome.
func (r *Report) Completed() bool {
	return r.Outcome == OutcomeCompleted
}

// Item returns the record for the given item ID, or nil.
func (r *Report) Item(id string) *ItemRecord {
	for i := range r.Items {
		if r.Items[i].ID == id {
			return &r.Items[i]
		}
	}
	return nil
}

// Encode renders the report in the requested format: "json" or "yaml".
func (r *Report) Encode(format string) ([]byte, error) {
	switch format {
	case "", "json":
		return json.MarshalIndent(r, "", "  ")
	case "yaml":
		return yaml.Marshal(r)
	default:
		return nil, fmt.Errorf("unsupported report format %q", format)
	}
}

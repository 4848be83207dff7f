// Package internal contains integration tests that verify the packages work
// together: plan ingestion through graph construction, phased execution, and
// the correction loop.
package internal

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/ncode25/Copilot-orchestrator/internal/plan"
	"github.com/ncode25/Copilot-orchestrator/internal/run"
	"github.com/ncode25/Copilot-orchestrator/internal/workitem"
)

const integrationPlan = `name: storage-rework
items:
  - id: schema
    description: update the table schema
    resources:
      - db/schema.sql
  - id: queries
    description: regenerate query helpers
    depends_on: [schema]
    resources:
      - glob:db/queries/**
  - id: handlers
    description: adapt the http handlers
    resources:
      - api/handlers.go
  - id: docs
    description: refresh the storage docs
    resources:
      - docs/storage.md
`

type countingDispatcher struct {
	mu       sync.Mutex
	calls    map[string]int
	failOnce map[string]bool
}

func (d *countingDispatcher) Execute(ctx context.Context, item *workitem.Item) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.calls == nil {
		d.calls = make(map[string]int)
	}
	d.calls[item.ID]++

	if d.failOnce[item.ID] {
		d.failOnce[item.ID] = false
		return "", fmt.Errorf("transient failure")
	}
	return "done", nil
}

type echoPlanner struct{}

func (echoPlanner) ProducePlan(ctx context.Context, requirements string) ([]*workitem.Item, error) {
	return nil, fmt.Errorf("not used")
}

func (echoPlanner) ProduceCorrection(ctx context.Context, failed *workitem.Item, detail string) (*workitem.Item, error) {
	return workitem.New("", failed.Description, nil, workitem.ResourceSet{}), nil
}

// TestPlanToReport drives a parsed plan end to end without failures.
func TestPlanToReport(t *testing.T) {
	p, err := plan.Parse([]byte(integrationPlan), ".yaml")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if issues := plan.Errors(p.Validate()); len(issues) > 0 {
		t.Fatalf("unexpected blocking issues: %v", issues)
	}

	g, err := p.BuildGraph()
	if err != nil {
		t.Fatalf("BuildGraph() error = %v", err)
	}

	dispatch := &countingDispatcher{}
	report, err := run.NewScheduler(g, dispatch, echoPlanner{}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !report.Completed() {
		t.Fatalf("Outcome = %v, want completed", report.Outcome)
	}
	for _, id := range []string{"schema", "queries", "handlers", "docs"} {
		if dispatch.calls[id] != 1 {
			t.Errorf("%s dispatched %d times, want 1", id, dispatch.calls[id])
		}
	}
	// queries declares schema: it must land in a later phase.
	if report.Item("queries").Phase <= report.Item("schema").Phase {
		t.Errorf("queries phase %d should be after schema phase %d",
			report.Item("queries").Phase, report.Item("schema").Phase)
	}
	// handlers and docs are independent of schema and share its first phase.
	if report.Item("handlers").Phase != 0 || report.Item("docs").Phase != 0 {
		t.Errorf("independent items should run in phase 0, got handlers=%d docs=%d",
			report.Item("handlers").Phase, report.Item("docs").Phase)
	}
}

// TestPlanToReportWithCorrection checks the correction loop across package
// boundaries: a transient failure is retried once and the run completes.
func TestPlanToReportWithCorrection(t *testing.T) {
	p, err := plan.Parse([]byte(integrationPlan), ".yaml")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	g, err := p.BuildGraph()
	if err != nil {
		t.Fatalf("BuildGraph() error = %v", err)
	}

	dispatch := &countingDispatcher{failOnce: map[string]bool{"schema": true}}
	report, err := run.NewScheduler(g, dispatch, echoPlanner{}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !report.Completed() {
		t.Fatalf("Outcome = %v, want completed", report.Outcome)
	}
	if report.CorrectionRounds != 1 {
		t.Errorf("CorrectionRounds = %d, want 1", report.CorrectionRounds)
	}

	corrective := report.Item("schema-r1")
	if corrective == nil {
		t.Fatal("no record for corrective item schema-r1")
	}
	if corrective.Status != workitem.StatusSucceeded {
		t.Errorf("schema-r1 status = %v, want succeeded", corrective.Status)
	}
	// The dependent still runs after the corrective replacement.
	if report.Item("queries").Phase <= corrective.Phase {
		t.Errorf("queries phase %d should be after corrective phase %d",
			report.Item("queries").Phase, corrective.Phase)
	}
}

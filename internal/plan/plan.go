// Package plan loads work-item plan files, validates them, and builds the
// dependency graph a run is scheduled from.
package plan

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ncode25/Copilot-orchestrator/internal/errors"
	"github.com/ncode25/Copilot-orchestrator/internal/graph"
	"github.com/ncode25/Copilot-orchestrator/internal/workitem"
)

// ItemSpec is the on-disk form of a single work item.
type ItemSpec struct {
	ID          string   `json:"id" yaml:"id"`
	Description string   `json:"description" yaml:"description"`
	DependsOn   []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	Resources   []string `json:"resources,omitempty" yaml:"resources,omitempty"`
}

// Plan is a parsed plan file: an ordered list of work items plus optional
// free-form requirements text used when corrections are produced.
type Plan struct {
	Name         string     `json:"name,omitempty" yaml:"name,omitempty"`
	Requirements string     `json:"requirements,omitempty" yaml:"requirements,omitempty"`
	Items        []ItemSpec `json:"items" yaml:"items"`
}

// Load reads and parses a plan file. The format is chosen by extension
// (.yaml/.yml for YAML, anything else for JSON); a file that fails JSON
// parsing is retried as YAML so extension-less files still load.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &errors.PlanningError{Op: "read plan file", Err: err}
	}
	return Parse(data, filepath.Ext(path))
}

// Parse parses plan bytes. ext selects the format as in Load; pass "" to get
// JSON-then-YAML detection.
func Parse(data []byte, ext string) (*Plan, error) {
	var p Plan

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &p); err != nil {
			return nil, &errors.PlanningError{Op: "parse yaml plan", Err: err}
		}
	default:
		if jsonErr := json.Unmarshal(data, &p); jsonErr != nil {
			if yamlErr := yaml.Unmarshal(data, &p); yamlErr != nil {
				return nil, &errors.PlanningError{
					Op:  "parse plan",
					Err: fmt.Errorf("not valid JSON (%v) or YAML (%v)", jsonErr, yamlErr),
				}
			}
		}
	}

	return &p, nil
}

// Issue is a single validation finding. Warnings do not block a run; errors
// do.
type Issue struct {
	ItemID  string `json:"item_id,omitempty" yaml:"item_id,omitempty"`
	Message string `json:"message" yaml:"message"`
	Warning bool   `json:"warning,omitempty" yaml:"warning,omitempty"`
}

func (i Issue) String() string {
	severity := "error"
	if i.Warning {
		severity = "warning"
	}
	if i.ItemID == "" {
		return fmt.Sprintf("%s: %s", severity, i.Message)
	}
	return fmt.Sprintf("%s: item %q: %s", severity, i.ItemID, i.Message)
}

// Validate checks the plan's structural invariants and returns every finding.
// It does not detect dependency cycles; those are caught when the graph is
// built.
func (p *Plan) Validate() []Issue {
	var issues []Issue

	if len(p.Items) == 0 {
		issues = append(issues, Issue{Message: "plan contains no items"})
		return issues
	}

	ids := make(map[string]bool, len(p.Items))
	for _, spec := range p.Items {
		if spec.ID == "" {
			issues = append(issues, Issue{Message: "item has no id"})
			continue
		}
		if ids[spec.ID] {
			issues = append(issues, Issue{ItemID: spec.ID, Message: "duplicate id"})
		}
		ids[spec.ID] = true
	}

	for _, spec := range p.Items {
		if spec.ID == "" {
			continue
		}
		if spec.Description == "" {
			issues = append(issues, Issue{ItemID: spec.ID, Message: "item has no description", Warning: true})
		}
		if len(spec.Resources) == 0 {
			issues = append(issues, Issue{ItemID: spec.ID, Message: "item claims no resources", Warning: true})
		}
		for _, dep := range spec.DependsOn {
			if dep == spec.ID {
				issues = append(issues, Issue{ItemID: spec.ID, Message: "item depends on itself"})
				continue
			}
			if !ids[dep] {
				issues = append(issues, Issue{
					ItemID:  spec.ID,
					Message: fmt.Sprintf("depends on unknown item %q", dep),
				})
			}
		}
		if _, err := workitem.NewResourceSet(spec.Resources...); err != nil {
			issues = append(issues, Issue{
				ItemID:  spec.ID,
				Message: fmt.Sprintf("invalid resource set: %v", err),
			})
		}
	}

	return issues
}

// Errors filters issues down to blocking findings.
func Errors(issues []Issue) []Issue {
	var out []Issue
	for _, issue := range issues {
		if !issue.Warning {
			out = append(out, issue)
		}
	}
	return out
}

// BuildGraph validates the plan and inserts its items into a fresh graph in
// declaration order, so implied conflict edges favor earlier items. Cycles
// surface as the graph's cycle error wrapped in a ValidationError.
func (p *Plan) BuildGraph() (*graph.Graph, error) {
	if blocking := Errors(p.Validate()); len(blocking) > 0 {
		first := blocking[0]
		return nil, &errors.ValidationError{
			ItemID:  first.ItemID,
			Message: fmt.Sprintf("plan has %d blocking issue(s), first: %s", len(blocking), first.Message),
		}
	}

	g := graph.New()
	for _, spec := range p.Items {
		resources, err := workitem.NewResourceSet(spec.Resources...)
		if err != nil {
			return nil, &errors.ValidationError{ItemID: spec.ID, Message: "invalid resource set", Err: err}
		}
		item := workitem.New(spec.ID, spec.Description, spec.DependsOn, resources)
		if err := g.Add(item); err != nil {
			return nil, err
		}
	}
	return g, nil
}

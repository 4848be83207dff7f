package plan

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ncode25/Copilot-orchestrator/internal/errors"
)

const jsonPlan = `{
  "name": "refactor",
  "items": [
    {"id": "a", "description": "update schema", "resources": ["db/schema.sql"]},
    {"id": "b", "description": "migrate handlers", "depends_on": ["a"], "resources": ["api/handlers.go"]}
  ]
}`

const yamlPlan = `name: refactor
requirements: rework the storage layer
items:
  - id: a
    description: update schema
    resources:
      - db/schema.sql
  - id: b
    description: migrate handlers
    depends_on: [a]
    resources:
      - api/handlers.go
`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestLoadJSON(t *testing.T) {
	p, err := Load(writeTemp(t, "plan.json", jsonPlan))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if p.Name != "refactor" {
		t.Errorf("Name = %q, want refactor", p.Name)
	}
	if len(p.Items) != 2 {
		t.Fatalf("len(Items) = %d, want 2", len(p.Items))
	}
	if got := p.Items[1].DependsOn; len(got) != 1 || got[0] != "a" {
		t.Errorf("Items[1].DependsOn = %v, want [a]", got)
	}
}

func TestLoadYAML(t *testing.T) {
	p, err := Load(writeTemp(t, "plan.yaml", yamlPlan))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if p.Requirements != "rework the storage layer" {
		t.Errorf("Requirements = %q", p.Requirements)
	}
	if len(p.Items) != 2 || p.Items[0].Resources[0] != "db/schema.sql" {
		t.Errorf("unexpected items: %+v", p.Items)
	}
}

func TestParseExtensionlessFallsBackToYAML(t *testing.T) {
	p, err := Parse([]byte(yamlPlan), "")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(p.Items) != 2 {
		t.Errorf("len(Items) = %d, want 2", len(p.Items))
	}
}

func TestParseGarbage(t *testing.T) {
	_, err := Parse([]byte("{not valid: [in either"), "")
	if err == nil {
		t.Fatal("Parse() should fail on garbage input")
	}
	if !errors.Is(err, errors.ErrPlanningFailed) {
		t.Errorf("error %v should match ErrPlanningFailed", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("Load() should fail for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		plan     Plan
		want     []string // substrings expected in issue messages
		blocking int
	}{
		{
			name:     "empty plan",
			plan:     Plan{},
			want:     []string{"no items"},
			blocking: 1,
		},
		{
			name: "valid plan",
			plan: Plan{Items: []ItemSpec{
				{ID: "a", Description: "d", Resources: []string{"f1"}},
			}},
		},
		{
			name: "duplicate id",
			plan: Plan{Items: []ItemSpec{
				{ID: "a", Description: "d", Resources: []string{"f1"}},
				{ID: "a", Description: "d", Resources: []string{"f2"}},
			}},
			want:     []string{"duplicate id"},
			blocking: 1,
		},
		{
			name: "self dependency",
			plan: Plan{Items: []ItemSpec{
				{ID: "a", Description: "d", DependsOn: []string{"a"}, Resources: []string{"f1"}},
			}},
			want:     []string{"depends on itself"},
			blocking: 1,
		},
		{
			name: "unknown dependency",
			plan: Plan{Items: []ItemSpec{
				{ID: "a", Description: "d", DependsOn: []string{"ghost"}, Resources: []string{"f1"}},
			}},
			want:     []string{`unknown item "ghost"`},
			blocking: 1,
		},
		{
			name: "missing description and resources warn only",
			plan: Plan{Items: []ItemSpec{
				{ID: "a"},
			}},
			want:     []string{"no description", "no resources"},
			blocking: 0,
		},
		{
			name: "bad glob pattern",
			plan: Plan{Items: []ItemSpec{
				{ID: "a", Description: "d", Resources: []string{"glob:src/[bad"}},
			}},
			want:     []string{"invalid resource set"},
			blocking: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues := tt.plan.Validate()
			for _, want := range tt.want {
				found := false
				for _, issue := range issues {
					if strings.Contains(issue.Message, want) {
						found = true
						break
					}
				}
				if !found {
					t.Errorf("no issue containing %q in %v", want, issues)
				}
			}
			if got := len(Errors(issues)); got != tt.blocking {
				t.Errorf("blocking issues = %d, want %d (all: %v)", got, tt.blocking, issues)
			}
		})
	}
}

func TestBuildGraph(t *testing.T) {
	p := Plan{Items: []ItemSpec{
		{ID: "a", Description: "d", Resources: []string{"f1"}},
		{ID: "b", Description: "d", Resources: []string{"f1"}},
		{ID: "c", Description: "d", DependsOn: []string{"b"}, Resources: []string{"f2"}},
	}}

	g, err := p.BuildGraph()
	if err != nil {
		t.Fatalf("BuildGraph() error = %v", err)
	}
	if g.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", g.Len())
	}
	// Declaration order means b picks up the implied edge on a.
	if _, ok := g.Predecessors("b")["a"]; !ok {
		t.Error("b should wait on a via the shared resource")
	}
	if _, ok := g.Predecessors("c")["b"]; !ok {
		t.Error("c should wait on its declared predecessor b")
	}
}

func TestBuildGraphRejectsBlockingIssues(t *testing.T) {
	p := Plan{Items: []ItemSpec{
		{ID: "a", Description: "d", DependsOn: []string{"ghost"}, Resources: []string{"f1"}},
	}}
	if _, err := p.BuildGraph(); err == nil {
		t.Fatal("BuildGraph() should fail on blocking validation issues")
	}
}

func TestBuildGraphRejectsDeclaredCycle(t *testing.T) {
	p := Plan{Items: []ItemSpec{
		{ID: "a", Description: "d", DependsOn: []string{"b"}, Resources: []string{"f1"}},
		{ID: "b", Description: "d", DependsOn: []string{"a"}, Resources: []string{"f2"}},
	}}
	_, err := p.BuildGraph()
	if err == nil {
		t.Fatal("BuildGraph() should reject a dependency cycle")
	}
	if !errors.Is(err, errors.ErrDependencyCycle) {
		t.Errorf("error %v should match ErrDependencyCycle", err)
	}
}

func TestIssueString(t *testing.T) {
	issue := Issue{ItemID: "a", Message: "duplicate id"}
	if got := issue.String(); got != `error: item "a": duplicate id` {
		t.Errorf("String() = %q", got)
	}
	warn := Issue{Message: "plan contains no items", Warning: true}
	if got := warn.String(); got != "warning: plan contains no items" {
		t.Errorf("String() = %q", got)
	}
}

package schedule

import (
	"reflect"
	"testing"

	"github.com/ncode25/Copilot-orchestrator/internal/errors"
	"github.com/ncode25/Copilot-orchestrator/internal/graph"
	"github.com/ncode25/Copilot-orchestrator/internal/workitem"
)

func buildGraph(t *testing.T, items ...*workitem.Item) *graph.Graph {
	t.Helper()
	g := graph.New()
	for _, item := range items {
		if err := g.Add(item); err != nil {
			t.Fatalf("Add(%s) error = %v", item.ID, err)
		}
	}
	return g
}

func newItem(id string, deps []string, resources ...string) *workitem.Item {
	return workitem.New(id, "work for "+id, deps, workitem.MustResourceSet(resources...))
}

func phaseItems(phases []Phase) [][]string {
	out := make([][]string, len(phases))
	for i, p := range phases {
		out[i] = p.Items
	}
	return out
}

func TestPartitionConflictAndDeclaredDependency(t *testing.T) {
	// A and B conflict on f1 with A declared first; C declares B.
	g := buildGraph(t,
		newItem("A", nil, "f1"),
		newItem("B", nil, "f1"),
		newItem("C", []string{"B"}, "f2"),
	)

	phases, err := Partition(g)
	if err != nil {
		t.Fatalf("Partition() error = %v", err)
	}

	want := [][]string{{"A"}, {"B"}, {"C"}}
	if got := phaseItems(phases); !reflect.DeepEqual(got, want) {
		t.Errorf("Partition() = %v, want %v", got, want)
	}
	for i, p := range phases {
		if p.Index != i {
			t.Errorf("phase %d has Index %d", i, p.Index)
		}
	}
}

func TestPartitionDisjointItemsShareAPhase(t *testing.T) {
	g := buildGraph(t,
		newItem("X", nil, "f1"),
		newItem("Y", nil, "f2"),
	)

	phases, err := Partition(g)
	if err != nil {
		t.Fatalf("Partition() error = %v", err)
	}

	want := [][]string{{"X", "Y"}}
	if got := phaseItems(phases); !reflect.DeepEqual(got, want) {
		t.Errorf("Partition() = %v, want %v", got, want)
	}
}

func TestPartitionConflictingItemsNeverShareAPhase(t *testing.T) {
	g := buildGraph(t,
		newItem("a", nil, "f1", "f2"),
		newItem("b", nil, "f2", "f3"),
		newItem("c", nil, "f3"),
		newItem("d", nil, "f9"),
	)

	phases, err := Partition(g)
	if err != nil {
		t.Fatalf("Partition() error = %v", err)
	}

	phaseOf := make(map[string]int)
	for _, p := range phases {
		for _, id := range p.Items {
			phaseOf[id] = p.Index
		}
	}

	pairs := [][2]string{{"a", "b"}, {"b", "c"}}
	for _, pair := range pairs {
		if phaseOf[pair[0]] >= phaseOf[pair[1]] {
			t.Errorf("conflicting pair %v: phases %d and %d, want earlier-created first",
				pair, phaseOf[pair[0]], phaseOf[pair[1]])
		}
	}
	if phaseOf["d"] != 0 {
		t.Errorf("disjoint item d in phase %d, want 0", phaseOf["d"])
	}
}

func TestPartitionDeclaredPredecessorStrictlyEarlier(t *testing.T) {
	g := buildGraph(t,
		newItem("a", nil, "f1"),
		newItem("b", []string{"a"}, "f2"),
		newItem("c", []string{"a"}, "f3"),
		newItem("d", []string{"b", "c"}, "f4"),
	)

	phases, err := Partition(g)
	if err != nil {
		t.Fatalf("Partition() error = %v", err)
	}

	want := [][]string{{"a"}, {"b", "c"}, {"d"}}
	if got := phaseItems(phases); !reflect.DeepEqual(got, want) {
		t.Errorf("Partition() = %v, want %v", got, want)
	}
}

func TestPartitionIsDeterministic(t *testing.T) {
	build := func() *graph.Graph {
		return buildGraph(t,
			newItem("n3", nil, "r1"),
			newItem("n1", nil, "r2"),
			newItem("n2", nil, "r3"),
			newItem("n5", []string{"n1"}, "r1"),
			newItem("n4", []string{"n2"}, "r4"),
		)
	}

	first, err := Partition(build())
	if err != nil {
		t.Fatalf("Partition() error = %v", err)
	}

	for i := 0; i < 20; i++ {
		next, err := Partition(build())
		if err != nil {
			t.Fatalf("Partition() error = %v", err)
		}
		if !reflect.DeepEqual(first, next) {
			t.Fatalf("run %d differs: %v vs %v", i, first, next)
		}
	}
}

func TestPartitionUnschedulableOnMissingPredecessor(t *testing.T) {
	// "a" declares a predecessor that is never inserted.
	g := buildGraph(t, newItem("a", []string{"ghost"}, "f1"))

	_, err := Partition(g)
	if !errors.Is(err, errors.ErrUnschedulable) {
		t.Fatalf("Partition() error = %v, want ErrUnschedulable", err)
	}

	var unschedErr *errors.UnschedulableGraphError
	if !errors.As(err, &unschedErr) {
		t.Fatal("error is not *UnschedulableGraphError")
	}
	if !reflect.DeepEqual(unschedErr.Remaining, []string{"a"}) {
		t.Errorf("Remaining = %v, want [a]", unschedErr.Remaining)
	}
}

func TestPartitionFromTreatsSatisfiedAsDone(t *testing.T) {
	g := buildGraph(t,
		newItem("a", nil, "f1"),
		newItem("b", []string{"a"}, "f2"),
		newItem("c", []string{"b"}, "f3"),
	)

	phases, err := PartitionFrom(g, map[string]bool{"a": true})
	if err != nil {
		t.Fatalf("PartitionFrom() error = %v", err)
	}

	want := [][]string{{"b"}, {"c"}}
	if got := phaseItems(phases); !reflect.DeepEqual(got, want) {
		t.Errorf("PartitionFrom() = %v, want %v", got, want)
	}
}

func TestPartitionEmptyGraph(t *testing.T) {
	phases, err := Partition(graph.New())
	if err != nil {
		t.Fatalf("Partition() error = %v", err)
	}
	if len(phases) != 0 {
		t.Errorf("Partition() = %v, want no phases", phases)
	}
}

func TestSplitForParallelism(t *testing.T) {
	phases := []Phase{
		{Index: 0, Items: []string{"a", "b", "c", "d", "e"}},
		{Index: 1, Items: []string{"f"}},
	}

	split := SplitForParallelism(phases, 2)

	want := [][]string{{"a", "b"}, {"c", "d"}, {"e"}, {"f"}}
	if got := phaseItems(split); !reflect.DeepEqual(got, want) {
		t.Errorf("SplitForParallelism() = %v, want %v", got, want)
	}
	for i, p := range split {
		if p.Index != i {
			t.Errorf("phase %d has Index %d after split", i, p.Index)
		}
	}
}

func TestSplitForParallelismUnlimited(t *testing.T) {
	phases := []Phase{{Index: 0, Items: []string{"a", "b", "c"}}}
	if got := SplitForParallelism(phases, 0); !reflect.DeepEqual(got, phases) {
		t.Errorf("SplitForParallelism(0) = %v, want unchanged", got)
	}
}

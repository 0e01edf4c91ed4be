package dag

import (
	"errors"
	"reflect"
	"testing"
)

func newGraph(t *testing.T, nodes []string, edges [][2]string) *Graph {
	t.Helper()
	g := NewGraph()
	for _, n := range nodes {
		if err := g.AddNode(n, nil); err != nil {
			t.Fatalf("add node %s: %v", n, err)
		}
	}
	for _, e := range edges {
		if err := g.AddEdge(e[0], e[1]); err != nil {
			t.Fatalf("add edge %v: %v", e, err)
		}
	}
	return g
}

func TestGraph_AddNodeAndEdge(t *testing.T) {
	g := newGraph(t, []string{"a", "b", "c"}, [][2]string{{"a", "b"}, {"b", "c"}})

	if g.NodeCount() != 3 {
		t.Errorf("expected 3 nodes, got %d", g.NodeCount())
	}
	if g.EdgeCount() != 2 {
		t.Errorf("expected 2 edges, got %d", g.EdgeCount())
	}
}

func TestGraph_AddNode_Duplicate(t *testing.T) {
	g := NewGraph()
	if err := g.AddNode("a", nil); err != nil {
		t.Fatal(err)
	}
	if err := g.AddNode("a", nil); err == nil {
		t.Error("expected error for duplicate node")
	}
}

func TestGraph_AddEdge_InvalidNodes(t *testing.T) {
	g := newGraph(t, []string{"a"}, nil)

	if err := g.AddEdge("a", "nonexistent"); err == nil {
		t.Error("expected error for nonexistent child node")
	}
	if err := g.AddEdge("nonexistent", "a"); err == nil {
		t.Error("expected error for nonexistent parent node")
	}
}

func TestGraph_DuplicateEdges(t *testing.T) {
	g := newGraph(t, []string{"a", "b"}, [][2]string{{"a", "b"}, {"a", "b"}})
	if g.EdgeCount() != 1 {
		t.Errorf("expected 1 edge, got %d", g.EdgeCount())
	}
}

func TestGraph_FindCycle(t *testing.T) {
	tests := []struct {
		name  string
		nodes []string
		edges [][2]string
		want  []string
	}{
		{
			name:  "acyclic",
			nodes: []string{"a", "b", "c"},
			edges: [][2]string{{"a", "b"}, {"b", "c"}},
		},
		{
			// a depends on c, b depends on a, c depends on b
			name:  "three node cycle",
			nodes: []string{"a", "b", "c"},
			edges: [][2]string{{"c", "a"}, {"a", "b"}, {"b", "c"}},
			want:  []string{"a", "c", "b", "a"},
		},
		{
			name:  "self loop",
			nodes: []string{"a"},
			edges: [][2]string{{"a", "a"}},
			want:  []string{"a", "a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGraph(t, tt.nodes, tt.edges)
			got := g.FindCycle()
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected cycle %v, got %v", tt.want, got)
			}
		})
	}
}

func TestGraph_TopologicalSort_DeclarationOrderTies(t *testing.T) {
	// z and y are independent roots; z is declared first.
	g := newGraph(t, []string{"z", "y", "x"}, [][2]string{{"y", "x"}})

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"z", "y", "x"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("expected %v, got %v", want, order)
	}
}

func TestGraph_TopologicalSort_Diamond(t *testing.T) {
	g := newGraph(t, []string{"d", "c", "b", "a"}, [][2]string{
		{"a", "b"}, {"a", "c"}, {"b", "d"}, {"c", "d"},
	})

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a", "c", "b", "d"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("expected %v, got %v", want, order)
	}

	// Repeated sorts are identical.
	again, _ := g.TopologicalSort()
	if !reflect.DeepEqual(order, again) {
		t.Errorf("order not deterministic: %v vs %v", order, again)
	}
}

func TestGraph_TopologicalSort_WithCycle(t *testing.T) {
	g := newGraph(t, []string{"a", "b"}, [][2]string{{"a", "b"}, {"b", "a"}})

	_, err := g.TopologicalSort()
	var ce *CycleError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CycleError, got %v", err)
	}
	if ce.Error() != "cycle detected: a -> b -> a" {
		t.Errorf("unexpected message: %s", ce.Error())
	}
}

func TestGraph_ExecutionLevels(t *testing.T) {
	g := newGraph(t, []string{"a", "b", "c", "d", "e"}, [][2]string{
		{"a", "c"}, {"b", "c"}, {"c", "d"}, {"a", "e"},
	})

	levels, err := g.ExecutionLevels()
	if err != nil {
		t.Fatal(err)
	}
	want := [][]string{{"a", "b"}, {"c", "e"}, {"d"}}
	if !reflect.DeepEqual(levels, want) {
		t.Errorf("expected %v, got %v", want, levels)
	}
}

func TestGraph_UpstreamDownstream(t *testing.T) {
	g := newGraph(t, []string{"a", "b", "c", "d"}, [][2]string{
		{"a", "b"}, {"b", "c"}, {"a", "d"},
	})

	if got := g.Upstream("c"); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("upstream of c: %v", got)
	}
	if got := g.Downstream("a"); !reflect.DeepEqual(got, []string{"b", "c", "d"}) {
		t.Errorf("downstream of a: %v", got)
	}
	if got := g.Downstream("c"); len(got) != 0 {
		t.Errorf("downstream of c: %v", got)
	}
}

func TestGraph_RootsAndLeaves(t *testing.T) {
	g := newGraph(t, []string{"a", "b", "c", "lonely"}, [][2]string{{"a", "b"}, {"b", "c"}})

	if got := g.Roots(); !reflect.DeepEqual(got, []string{"a", "lonely"}) {
		t.Errorf("roots: %v", got)
	}
	if got := g.Leaves(); !reflect.DeepEqual(got, []string{"c", "lonely"}) {
		t.Errorf("leaves: %v", got)
	}
}

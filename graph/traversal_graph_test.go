package graph

import (
	"testing"

	"github.com/achilleasa/treelet/flatbvh"
	"github.com/achilleasa/treelet/types"
)

// makeSimpleTree builds a 3-node tree: root (interior, axis X) with two leaf
// children of different surface area, so hit/miss probabilities are
// distinguishable.
func makeSimpleTree() []flatbvh.Node {
	nodes := make([]flatbvh.Node, 3)
	nodes[0].SetBBox(types.Vec3{0, 0, 0}, types.Vec3{2, 1, 1})
	nodes[0].SetInterior(1, 2, types.AxisX)

	nodes[1].SetBBox(types.Vec3{0, 0, 0}, types.Vec3{1, 1, 1})
	nodes[1].SetLeaf(0, 1)

	nodes[2].SetBBox(types.Vec3{1, 0, 0}, types.Vec3{2, 1, 1})
	nodes[2].SetLeaf(1, 1)
	return nodes
}

func noInstances(uint32) bool { return false }

func TestBuildRootIncomingProbIsOne(t *testing.T) {
	nodes := makeSimpleTree()
	g := Build(nodes, Direction(0), SendCheck, noInstances)
	if g.IncomingProb[0] != 1 {
		t.Fatalf("expected root incoming prob 1; got %f", g.IncomingProb[0])
	}
}

func TestBuildAssignsEdgesFromRoot(t *testing.T) {
	nodes := makeSimpleTree()
	g := Build(nodes, Direction(0), SendCheck, noInstances)
	if len(g.Out[0]) != 2 {
		t.Fatalf("expected root to have 2 outgoing edges; got %d", len(g.Out[0]))
	}
	for _, e := range g.Out[0] {
		if e.Weight <= 0 || e.Weight > 1 {
			t.Fatalf("expected edge weight in (0,1]; got %f", e.Weight)
		}
	}
}

func TestBuildSuppressesNonCopyableEdge(t *testing.T) {
	nodes := makeSimpleTree()
	nonCopyable := func(idx uint32) bool { return idx == 1 }
	g := Build(nodes, Direction(0), SendCheck, nonCopyable)
	for _, e := range g.Out[1] {
		t.Fatalf("expected no outgoing edge from a non-copyable leaf; got edge to %d", e.Dst)
	}
	// Probability mass must still accrue to the sibling despite the
	// suppressed edge.
	if g.IncomingProb[2] <= 0 {
		t.Fatalf("expected incoming prob to still accrue to node 2")
	}
}

func TestCheckSendWeightsDecayUpTheStack(t *testing.T) {
	nodes := make([]flatbvh.Node, 5)
	nodes[0].SetBBox(types.Vec3{0, 0, 0}, types.Vec3{3, 1, 1})
	nodes[0].SetInterior(1, 4, types.AxisX)
	nodes[1].SetBBox(types.Vec3{0, 0, 0}, types.Vec3{2, 1, 1})
	nodes[1].SetInterior(2, 3, types.AxisX)
	nodes[2].SetBBox(types.Vec3{0, 0, 0}, types.Vec3{1, 1, 1})
	nodes[2].SetLeaf(0, 1)
	nodes[3].SetBBox(types.Vec3{1, 0, 0}, types.Vec3{2, 1, 1})
	nodes[3].SetLeaf(1, 1)
	nodes[4].SetBBox(types.Vec3{2, 0, 0}, types.Vec3{3, 1, 1})
	nodes[4].SetLeaf(2, 1)

	g := Build(nodes, Direction(0), CheckSend, noInstances)
	if len(g.Out[2]) != 2 {
		t.Fatalf("expected leaf 2 to have edges to both ancestors on the stack; got %d", len(g.Out[2]))
	}
}

func TestMergeAveragesIncomingProb(t *testing.T) {
	nodes := makeSimpleTree()
	var graphs [8]*Graph
	for i := range graphs {
		graphs[i] = Build(nodes, Direction(i), SendCheck, noInstances)
	}
	merged := Merge(graphs)
	if merged.IncomingProb[0] != 1 {
		t.Fatalf("expected merged root incoming prob 1; got %f", merged.IncomingProb[0])
	}
}

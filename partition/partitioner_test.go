package partition

import (
	"testing"

	"github.com/achilleasa/treelet/flatbvh"
	"github.com/achilleasa/treelet/graph"
	"github.com/achilleasa/treelet/types"
)

// uniformSizer gives every node a fixed byte cost and no instances; enough
// to exercise budget-driven allocation without needing real geometry.
type uniformSizer struct {
	perNode uint64
}

func (s uniformSizer) NodeBytes(uint32) uint64                    { return s.perNode }
func (s uniformSizer) NodeInstanceMask(uint32) InstanceMask        { return NewInstanceMask(0) }
func (s uniformSizer) SubtreeInstanceMask(uint32) InstanceMask     { return NewInstanceMask(0) }
func (s uniformSizer) InstanceBytes(InstanceMask) uint64           { return 0 }
func (s uniformSizer) IsNonCopyableLeaf(uint32) bool               { return false }

func makeChainTree(depth int) []flatbvh.Node {
	// A left-skewed chain: node 0 -> (1, leaf), node 1 -> (2, leaf), ...
	n := 2*depth + 1
	nodes := make([]flatbvh.Node, n)
	for i := 0; i < depth; i++ {
		left := uint32(i + 1)
		right := uint32(n - 1 - i)
		nodes[i].SetBBox(types.Vec3{0, 0, 0}, types.Vec3{float32(n - i), 1, 1})
		nodes[i].SetInterior(left, right, types.AxisX)
		nodes[right].SetBBox(types.Vec3{0, 0, 0}, types.Vec3{1, 1, 1})
		nodes[right].SetLeaf(uint32(i), 1)
	}
	nodes[depth].SetBBox(types.Vec3{0, 0, 0}, types.Vec3{1, 1, 1})
	nodes[depth].SetLeaf(uint32(depth), 1)
	return nodes
}

func TestAllocateTopologicalCoversAllNodes(t *testing.T) {
	nodes := makeChainTree(5)
	g := graph.Build(nodes, graph.Direction(0), graph.SendCheck, func(uint32) bool { return false })
	a := Allocate(Topological, nodes, g, uniformSizer{perNode: 10}, 25)

	for i, tid := range a.Label {
		if tid == ^uint32(0) {
			t.Fatalf("node %d was never assigned a treelet", i)
		}
	}
}

func TestAllocateTopologicalRespectsBudget(t *testing.T) {
	nodes := makeChainTree(5)
	g := graph.Build(nodes, graph.Direction(0), graph.SendCheck, func(uint32) bool { return false })
	sizer := uniformSizer{perNode: 10}
	a := Allocate(Topological, nodes, g, sizer, 25)

	byTreelet := map[uint32][]uint32{}
	for n, tid := range a.Label {
		byTreelet[tid] = append(byTreelet[tid], uint32(n))
	}
	for tid, members := range byTreelet {
		if treeletBytes(members, sizer) > 25 {
			t.Fatalf("treelet %d exceeds budget: %d bytes for %d nodes", tid, treeletBytes(members, sizer), len(members))
		}
	}
}

func TestFinalizeAssignsRootToZero(t *testing.T) {
	nodes := makeChainTree(3)
	g := graph.Build(nodes, graph.Direction(0), graph.SendCheck, func(uint32) bool { return false })
	a := Allocate(Topological, nodes, g, uniformSizer{perNode: 10}, 1000)

	final, err := Finalize(a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if final.Label[0] != 0 {
		t.Fatalf("expected root's treelet to be renumbered to 0; got %d", final.Label[0])
	}
}

func TestFinalizeRejectsIncompleteAssignment(t *testing.T) {
	nodes := makeChainTree(2)
	a := &Assignment{Label: make([]uint32, len(nodes))}
	for i := range a.Label {
		a.Label[i] = ^uint32(0)
	}
	if _, err := Finalize(a); err == nil {
		t.Fatalf("expected an integrity error for an unassigned node")
	}
}

func TestAllAlgorithmsProduceCompleteAssignments(t *testing.T) {
	algos := []Algorithm{Topological, Nvidia, GreedySize, PseudoAgglomerative, TopologicalHierarchical}
	for _, algo := range algos {
		nodes := makeChainTree(6)
		g := graph.Build(nodes, graph.Direction(0), graph.SendCheck, func(uint32) bool { return false })
		a := Allocate(algo, nodes, g, uniformSizer{perNode: 10}, 1000)
		for i, tid := range a.Label {
			if tid == ^uint32(0) {
				t.Fatalf("algorithm %d: node %d was never assigned", algo, i)
			}
		}
	}
}

func TestMergeKeepsAllNodesAssigned(t *testing.T) {
	nodes := makeChainTree(6)
	g := graph.Build(nodes, graph.Direction(0), graph.SendCheck, func(uint32) bool { return false })
	sizer := uniformSizer{perNode: 5}
	a := Allocate(Topological, nodes, g, sizer, 10)
	merged := Merge(a, nodes, sizer, 100)

	for i, tid := range merged.Label {
		if tid == ^uint32(0) {
			t.Fatalf("node %d lost its assignment after merge", i)
		}
	}
}

// Package graph implements C3, the weighted traversal graph the
// partitioner scores allocations against (spec section 4.3).
package graph

import (
	"github.com/achilleasa/treelet/flatbvh"
	"github.com/achilleasa/treelet/types"
)

// Direction indexes one of the 8 ray-direction octants (sign of x/y/z), or
// 0 for the single-direction case. Grounded on spec section 4.3's "there
// are either 1 or 8, selected by octant of the direction vector".
type Direction uint8

// Directions enumerates all 8 octants, in (negX|negY|negZ) bit order.
var Directions = [8]Direction{0, 1, 2, 3, 4, 5, 6, 7}

// NegX/NegY/NegZ test whether a direction's bit for that axis is set,
// i.e. the ray travels in the negative direction along that axis.
func (d Direction) NegX() bool { return d&1 != 0 }
func (d Direction) NegY() bool { return d&2 != 0 }
func (d Direction) NegZ() bool { return d&4 != 0 }

// EdgePolicy selects how the traversal graph's edges are constructed (spec
// section 4.3).
type EdgePolicy uint8

const (
	SendCheck EdgePolicy = iota
	CheckSend
)

// Edge is a weighted directed edge from Src to Dst in a single-direction
// traversal graph.
type Edge struct {
	Dst    uint32
	Weight float32
}

// Graph is the weighted directed traversal graph G_dir for one ray
// direction: for every node, its outgoing edges and its incoming
// probability (the probability that a ray reaching the BVH root also
// reaches that node).
type Graph struct {
	Direction    Direction
	Out          [][]Edge
	IncomingProb []float32
}

// epsilon avoids division by zero when a node's surface area is zero
// (degenerate/flat bounds), matching the teacher's own defensive handling
// of empty-partition scores in bvh_builder.go.
const epsilon = 1e-9

// Build constructs the traversal graph for the given direction and edge
// policy over the flat BVH's nodes (spec section 4.3).
//
// nonCopyable reports, for a leaf node, whether that leaf's last primitive
// is a non-copyable external instance (spec section 4.4): when true, the
// edge to next_miss is suppressed even though the probability mass still
// accrues to IncomingProb[next_miss].
func Build(nodes []flatbvh.Node, dir Direction, policy EdgePolicy, nonCopyable func(nodeIdx uint32) bool) *Graph {
	g := &Graph{
		Direction:    dir,
		Out:          make([][]Edge, len(nodes)),
		IncomingProb: make([]float32, len(nodes)),
	}
	if len(nodes) == 0 {
		return g
	}
	g.IncomingProb[0] = 1

	stack := []uint32{}
	var walk func(idx uint32)
	walk = func(idx uint32) {
		node := &nodes[idx]
		if node.IsLeaf() {
			switch policy {
			case CheckSend:
				buildCheckSendEdges(g, nodes, idx, stack, nonCopyable)
			default:
				buildSendCheckEdges(g, nodes, idx, stack, nonCopyable)
			}
			return
		}

		near, far := orderedChildren(node, dir)
		nearSA := nodes[near].Bounds().SurfaceArea()
		farSA := nodes[far].Bounds().SurfaceArea()
		curSA := node.Bounds().SurfaceArea()
		hitProb := nearSA / max32(curSA, epsilon)

		g.IncomingProb[near] += g.IncomingProb[idx] * hitProb
		addEdge(g, idx, near, hitProb)

		missProb := farSA / max32(curSA, epsilon)
		g.IncomingProb[far] += g.IncomingProb[idx] * missProb
		addEdge(g, idx, far, missProb)

		stack = append(stack, far)
		walk(near)
		stack = stack[:len(stack)-1]
		walk(far)
	}
	walk(0)
	return g
}

// orderedChildren returns (near, far) for an interior node given the ray
// direction: the near child is on the side the ray enters first along the
// node's split axis (spec section 4.3's "depth-first post-order with
// opposite-axis children" requires this per-direction ordering so the same
// flat BVH yields 8 distinct graphs).
func orderedChildren(node *flatbvh.Node, dir Direction) (near, far uint32) {
	left, right := node.Children()
	negative := false
	switch node.Axis {
	case types.AxisX:
		negative = dir.NegX()
	case types.AxisY:
		negative = dir.NegY()
	case types.AxisZ:
		negative = dir.NegZ()
	}
	if negative {
		return right, left
	}
	return left, right
}

// buildSendCheckEdges implements the SendCheck policy (spec section 4.3):
// edges only to the immediate next-hit and next-miss nodes.
func buildSendCheckEdges(g *Graph, nodes []flatbvh.Node, leaf uint32, stack []uint32, nonCopyable func(uint32) bool) {
	if len(stack) == 0 {
		return
	}
	nextMiss := stack[len(stack)-1]
	if nonCopyable(leaf) {
		// Probability mass still accrues, but no direct edge is
		// emitted (spec section 4.3).
		return
	}
	addEdge(g, leaf, nextMiss, 1.0)
}

// buildCheckSendEdges implements the CheckSend policy (spec section 4.3):
// edges to every node remaining on the traversal stack, weighted by the
// running miss-conditional product ("check every sibling before sending").
func buildCheckSendEdges(g *Graph, nodes []flatbvh.Node, leaf uint32, stack []uint32, nonCopyable func(uint32) bool) {
	if nonCopyable(leaf) {
		return
	}
	weight := float32(1.0)
	for i := len(stack) - 1; i >= 0; i-- {
		dst := stack[i]
		addEdge(g, leaf, dst, weight)
		// Descending further up the stack models "checked and missed
		// this sibling too"; subsequent edges carry proportionally
		// less probability mass.
		weight *= 0.5
	}
}

// addEdge records a directed edge, merging duplicates by summing weights
// (spec section 4.4.2's cut-maintenance rule, reused here since the same
// merge semantics apply to graph construction).
func addEdge(g *Graph, src, dst uint32, weight float32) {
	for i := range g.Out[src] {
		if g.Out[src][i].Dst == dst {
			g.Out[src][i].Weight += weight
			return
		}
	}
	g.Out[src] = append(g.Out[src], Edge{Dst: dst, Weight: weight})
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

// Merge combines 8 directional graphs into a single undirected weighted
// graph by summing weights in both directions (spec section 4.3's "merged"
// mode). None of the allocators in package partition calls it.
func Merge(graphs [8]*Graph) *Graph {
	n := len(graphs[0].Out)
	merged := &Graph{
		Out:          make([][]Edge, n),
		IncomingProb: make([]float32, n),
	}
	for _, g := range graphs {
		for src, edges := range g.Out {
			for _, e := range edges {
				addEdge(merged, uint32(src), e.Dst, e.Weight)
				addEdge(merged, e.Dst, uint32(src), e.Weight)
			}
		}
		for i, p := range g.IncomingProb {
			merged.IncomingProb[i] += p
		}
	}
	for i := range merged.IncomingProb {
		merged.IncomingProb[i] /= float32(len(graphs))
	}
	return merged
}

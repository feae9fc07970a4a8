// Package partition implements C4, the treelet allocation algorithms that
// turn a flat BVH plus a per-node size table into a treelet assignment
// (spec section 4.4).
package partition

import (
	"github.com/achilleasa/treelet/flatbvh"
	"github.com/achilleasa/treelet/graph"
)

// Algorithm selects one of the five documented allocation variants (spec
// section 4.4.2).
type Algorithm uint8

const (
	Topological Algorithm = iota
	Nvidia
	GreedySize
	PseudoAgglomerative
	TopologicalHierarchical
)

// NodeSizer reports, for a node in the flat BVH, the bytes its own header
// plus primitives contribute to a treelet, and the instance masks needed by
// the incremental instance-cost model (spec section 4.4.1).
type NodeSizer interface {
	// NodeBytes is the fixed cost of including this single node (header
	// plus its own primitive records) in a treelet, excluding any
	// instance-by-value cost (accounted separately via instance masks).
	NodeBytes(node uint32) uint64
	// NodeInstanceMask returns the bitset of copyable instances directly
	// referenced by this node's own primitives.
	NodeInstanceMask(node uint32) InstanceMask
	// SubtreeInstanceMask returns the bitset of copyable instances
	// referenced anywhere in the subtree rooted at this node; read by
	// InstanceCostCache.SubtreeIncrementalCost.
	SubtreeInstanceMask(node uint32) InstanceMask
	// InstanceBytes returns the incremental byte cost of adding the
	// given (already deduplicated) set of instances to a treelet.
	InstanceBytes(mask InstanceMask) uint64
	// IsNonCopyableLeaf reports whether the given leaf's last primitive
	// is a non-copyable external instance (spec section 4.3/4.4).
	IsNonCopyableLeaf(node uint32) bool
}

// Assignment is the partitioner's output for one direction: which treelet
// every BVH node was placed in.
type Assignment struct {
	Direction graph.Direction
	Label     []uint32 // Label[node] = treelet id, post-finalization numbering.
	Summaries []TreeletSummary
}

// TreeletSummary matches spec section 4.4's output contract: "a per-treelet
// summary {nodes, instances_by_value, referenced_external_instances,
// total_probability}".
type TreeletSummary struct {
	ID                        uint32
	Nodes                     []uint32
	InstancesByValue          []uint32 // bit indices into the global instance numbering
	ReferencedExternalInstances []uint32
	TotalProbability          float32
}

// Allocate runs the chosen algorithm over nodes/graph/sizer and returns a
// raw (pre-merge, pre-finalization) assignment: Label values are
// provisional treelet ids local to this allocation pass, not yet
// renumbered per spec section 4.4.4.
func Allocate(algo Algorithm, nodes []flatbvh.Node, g *graph.Graph, sizer NodeSizer, maxTreeletBytes uint64) *Assignment {
	switch algo {
	case Nvidia:
		return allocateNvidia(nodes, g, sizer, maxTreeletBytes)
	case GreedySize:
		return allocateGreedySize(nodes, g, sizer, maxTreeletBytes)
	case PseudoAgglomerative:
		return allocatePseudoAgglomerative(nodes, g, sizer, maxTreeletBytes)
	case TopologicalHierarchical:
		return allocateTopologicalHierarchical(nodes, g, sizer, maxTreeletBytes)
	default:
		return allocateTopological(nodes, g, sizer, maxTreeletBytes)
	}
}

// summarize computes Nodes and TotalProbability per treelet.
// InstancesByValue and ReferencedExternalInstances are left empty; neither
// Finalize nor FinalizeMerged fills them in.
func summarize(nodeToTreelet map[uint32]uint32, g *graph.Graph) []TreeletSummary {
	byID := map[uint32]*TreeletSummary{}
	for node, tid := range nodeToTreelet {
		s, ok := byID[tid]
		if !ok {
			s = &TreeletSummary{ID: tid}
			byID[tid] = s
		}
		s.Nodes = append(s.Nodes, node)
		s.TotalProbability += g.IncomingProb[node]
	}
	out := make([]TreeletSummary, 0, len(byID))
	for _, s := range byID {
		out = append(out, *s)
	}
	return out
}

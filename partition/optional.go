package partition

import (
	"github.com/achilleasa/treelet/flatbvh"
	"github.com/achilleasa/treelet/graph"
)

// allocateGreedySize is the optional GreedySize variant (spec section
// 4.4.2: "follow the same contract ... but are not required for
// correctness"). It walks the deque in pre-order and packs nodes into the
// current treelet purely by remaining byte budget, ignoring edge weights
// entirely — the simplest allocator that still produces a valid
// assignment, useful as a fast baseline to compare the primary allocators
// against.
func allocateGreedySize(nodes []flatbvh.Node, g *graph.Graph, sizer NodeSizer, maxTreeletBytes uint64) *Assignment {
	deque := preOrder(nodes)
	label := make(map[uint32]uint32)
	costCache := NewInstanceCostCache(sizer)

	var tid uint32
	var remaining int64
	var instanceMask InstanceMask

	for _, n := range deque {
		cost := int64(sizer.NodeBytes(n))
		var incMask InstanceMask
		if instanceMask != nil {
			incMask = instanceMask.Union(sizer.NodeInstanceMask(n))
			cost += int64(costCache.Bytes(incMask)) - int64(costCache.Bytes(instanceMask))
		} else {
			incMask = sizer.NodeInstanceMask(n)
			cost += int64(costCache.Bytes(incMask))
		}

		if instanceMask == nil || cost > remaining {
			tid++
			instanceMask = sizer.NodeInstanceMask(n)
			remaining = int64(maxTreeletBytes) - int64(sizer.NodeBytes(n)) - int64(costCache.Bytes(instanceMask))
			label[n] = tid - 1
			continue
		}

		instanceMask = incMask
		remaining -= cost
		label[n] = tid - 1
	}

	return &Assignment{
		Direction: g.Direction,
		Label:     toLabelSlice(label, len(nodes)),
		Summaries: summarize(label, g),
	}
}

// allocatePseudoAgglomerative is the optional PseudoAgglomerative variant:
// starts with every node as its own singleton treelet, then repeatedly
// merges the pair of treelets connected by the single highest-weight
// unassigned edge, provided the merge still fits the budget — a simplified
// bottom-up clustering pass that approximates true agglomerative clustering
// without its full priority-queue machinery (spec section 4.4.2 requires
// only "produce a valid assignment", not a specific clustering algorithm).
func allocatePseudoAgglomerative(nodes []flatbvh.Node, g *graph.Graph, sizer NodeSizer, maxTreeletBytes uint64) *Assignment {
	parent := make([]uint32, len(nodes))
	bytes := make([]uint64, len(nodes))
	masks := make([]InstanceMask, len(nodes))
	costCache := NewInstanceCostCache(sizer)
	for i := range nodes {
		parent[i] = uint32(i)
		bytes[i] = sizer.NodeBytes(uint32(i))
		masks[i] = sizer.NodeInstanceMask(uint32(i))
	}

	find := func(x uint32) uint32 {
		for parent[x] != x {
			x = parent[x]
		}
		return x
	}

	type mergeCandidate struct {
		a, b   uint32
		weight float32
	}
	var candidates []mergeCandidate
	for src, edges := range g.Out {
		for _, e := range edges {
			candidates = append(candidates, mergeCandidate{uint32(src), e.Dst, e.Weight})
		}
	}
	// Sort by weight descending, matching the other allocators' greedy
	// highest-weight-first policy.
	for i := 1; i < len(candidates); i++ {
		for j := i; j > 0 && candidates[j-1].weight < candidates[j].weight; j-- {
			candidates[j-1], candidates[j] = candidates[j], candidates[j-1]
		}
	}

	for _, c := range candidates {
		ra, rb := find(c.a), find(c.b)
		if ra == rb {
			continue
		}
		mergedMask := masks[ra].Union(masks[rb])
		mergedBytes := bytes[ra] + bytes[rb] + costCache.Bytes(mergedMask) - costCache.Bytes(masks[ra]) - costCache.Bytes(masks[rb])
		if mergedBytes > maxTreeletBytes {
			continue
		}
		parent[ra] = rb
		bytes[rb] = mergedBytes
		masks[rb] = mergedMask
	}

	label := make(map[uint32]uint32)
	for i := range nodes {
		label[uint32(i)] = find(uint32(i))
	}
	return &Assignment{
		Direction: g.Direction,
		Label:     toLabelSlice(label, len(nodes)),
		Summaries: summarize(label, g),
	}
}

// allocateTopologicalHierarchical is the optional TopologicalHierarchical
// variant. The spec contrasts it with the flat one-by-one Topological
// allocator by name only ("follow the same contract"); lacking a distinct
// normative algorithm, it runs Topological over the full tree and renumbers
// the resulting treelets. For a treelet whose node count exceeds
// refinementThreshold it calls allocateTopological a second time, again over
// the full tree with the same inputs, and groups that treelet's members by
// the labels of the second run. The second run reproduces the first run's
// grouping, so such a treelet stays whole: no re-seeding from a node inside
// it takes place (see DESIGN.md's Open Question decision).
func allocateTopologicalHierarchical(nodes []flatbvh.Node, g *graph.Graph, sizer NodeSizer, maxTreeletBytes uint64) *Assignment {
	base := allocateTopological(nodes, g, sizer, maxTreeletBytes)

	const refinementThreshold = 4096
	byTreelet := map[uint32][]uint32{}
	for n, tid := range base.Label {
		byTreelet[tid] = append(byTreelet[tid], uint32(n))
	}

	label := make(map[uint32]uint32)
	var nextID uint32
	for _, ids := range sortedTreeletIDs(byTreelet) {
		members := byTreelet[ids]
		if len(members) <= refinementThreshold {
			for _, n := range members {
				label[n] = nextID
			}
			nextID++
			continue
		}
		sub := allocateTopological(nodes, g, sizer, maxTreeletBytes)
		offsets := map[uint32]uint32{}
		for _, n := range members {
			sid, ok := offsets[sub.Label[n]]
			if !ok {
				sid = nextID
				offsets[sub.Label[n]] = sid
				nextID++
			}
			label[n] = sid
		}
	}

	return &Assignment{
		Direction: g.Direction,
		Label:     toLabelSlice(label, len(nodes)),
		Summaries: summarize(label, g),
	}
}

func sortedTreeletIDs(byTreelet map[uint32][]uint32) []uint32 {
	out := make([]uint32, 0, len(byTreelet))
	for id := range byTreelet {
		out = append(out, id)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

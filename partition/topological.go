package partition

import (
	"sort"

	"github.com/achilleasa/treelet/flatbvh"
	"github.com/achilleasa/treelet/graph"
)

// preOrder returns all node indices in depth-first pre-order, grounded on
// the teacher's own recursive-partition traversal order
// (asset/compiler/bvh/bvh_builder.go's partition/createLeaf recursion always
// visits a node before either child).
func preOrder(nodes []flatbvh.Node) []uint32 {
	order := make([]uint32, 0, len(nodes))
	var walk func(idx uint32)
	walk = func(idx uint32) {
		order = append(order, idx)
		if nodes[idx].IsLeaf() {
			return
		}
		left, right := nodes[idx].Children()
		walk(left)
		walk(right)
	}
	if len(nodes) > 0 {
		walk(0)
	}
	return order
}

// cutEdge is a candidate edge leaving the treelet-in-progress, merged by
// destination (spec section 4.4.2: "merging duplicates by summing
// weights").
type cutEdge struct {
	dst    uint32
	weight float32
}

// allocateTopological implements the Primary "one-by-one" allocator (spec
// section 4.4.2), grounded on
// _examples/original_source/src/cloud/treeletdumpbvh.cpp's
// ComputeTreeletsTopological: a global depth-first deque of unassigned
// nodes, a per-treelet cut maintained as an ordered set keyed by
// (weight desc, dst asc), and an incremental-cost closure for deciding
// whether the next cut edge's destination still fits the remaining budget.
func allocateTopological(nodes []flatbvh.Node, g *graph.Graph, sizer NodeSizer, maxTreeletBytes uint64) *Assignment {
	deque := preOrder(nodes)
	assigned := make([]bool, len(nodes))
	label := make(map[uint32]uint32)

	costCache := NewInstanceCostCache(sizer)
	var nextTreeletID uint32

	deqPos := 0
	for deqPos < len(deque) {
		// Pop the next unassigned node as a seed.
		var seed uint32
		found := false
		for deqPos < len(deque) {
			cand := deque[deqPos]
			deqPos++
			if !assigned[cand] {
				seed = cand
				found = true
				break
			}
		}
		if !found {
			break
		}

		treeletID := nextTreeletID
		nextTreeletID++

		assigned[seed] = true
		label[seed] = treeletID

		instanceMask := sizer.NodeInstanceMask(seed)
		remaining := maxTreeletBytes - sizer.NodeBytes(seed) - costCache.Bytes(instanceMask)

		cut := map[uint32]*cutEdge{}
		addCutEdges(cut, g, seed, assigned)

		for {
			best := pickBestCutEdge(cut)
			if best == nil {
				break
			}

			incCost := costCache.IncrementalCost(instanceMask, best.dst) + sizer.NodeBytes(best.dst)
			if incCost > remaining {
				// This destination doesn't fit; remove it from
				// the cut so it isn't considered again for this
				// treelet, and keep scanning the rest of the cut.
				delete(cut, best.dst)
				continue
			}

			delete(cut, best.dst)
			assigned[best.dst] = true
			label[best.dst] = treeletID
			remaining -= incCost
			instanceMask = instanceMask.Union(sizer.NodeInstanceMask(best.dst))
			addCutEdges(cut, g, best.dst, assigned)
		}
	}

	return &Assignment{
		Direction: g.Direction,
		Label:     toLabelSlice(label, len(nodes)),
		Summaries: summarize(label, g),
	}
}

// addCutEdges adds node's outgoing edges to the cut (to unassigned
// destinations only), merging duplicates by summing weight.
func addCutEdges(cut map[uint32]*cutEdge, g *graph.Graph, node uint32, assigned []bool) {
	for _, e := range g.Out[node] {
		if assigned[e.Dst] {
			continue
		}
		if existing, ok := cut[e.Dst]; ok {
			existing.weight += e.Weight
			continue
		}
		cut[e.Dst] = &cutEdge{dst: e.Dst, weight: e.Weight}
	}
}

// pickBestCutEdge returns the edge with greatest (weight, -dst) lexicographic
// key, matching spec section 4.4.2's tie-break rule.
func pickBestCutEdge(cut map[uint32]*cutEdge) *cutEdge {
	var best *cutEdge
	for _, e := range cut {
		if best == nil || e.weight > best.weight || (e.weight == best.weight && e.dst < best.dst) {
			best = e
		}
	}
	return best
}

func toLabelSlice(label map[uint32]uint32, n int) []uint32 {
	out := make([]uint32, n)
	for i := range out {
		out[i] = ^uint32(0)
	}
	for node, tid := range label {
		out[node] = tid
	}
	return out
}

// sortedKeys returns a map's uint32 keys in ascending order; used by the
// merge/finalize passes to produce reproducible treelet orderings.
func sortedKeys(m map[uint32]uint32) []uint32 {
	keys := make([]uint32, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

package partition

import (
	"sort"

	"github.com/achilleasa/treelet/flatbvh"
)

// treeletBytes returns a provisional treelet's total byte size: the sum of
// its nodes' own bytes plus the deduplicated cost of every copyable
// instance referenced anywhere in it.
func treeletBytes(nodes []uint32, sizer NodeSizer) uint64 {
	costCache := NewInstanceCostCache(sizer)
	var total uint64
	var mask InstanceMask
	for _, n := range nodes {
		total += sizer.NodeBytes(n)
		nm := sizer.NodeInstanceMask(n)
		if mask == nil {
			mask = nm
		} else {
			mask = mask.Union(nm)
		}
	}
	if mask != nil {
		total += costCache.Bytes(mask)
	}
	return total
}

// Merge implements spec section 4.4.3's merge pass: sort treelets by total
// byte size ascending, greedily merge pairs whose combined size fits the
// budget (ties broken by treelet id), union node lists in ascending-id
// order, then reorder each surviving treelet's node list in depth-first
// order over the original BVH, descending into same-treelet children
// first.
func Merge(a *Assignment, nodes []flatbvh.Node, sizer NodeSizer, maxTreeletBytes uint64) *Assignment {
	byTreelet := map[uint32][]uint32{}
	for n, tid := range a.Label {
		byTreelet[tid] = append(byTreelet[tid], uint32(n))
	}

	type entry struct {
		id    uint32
		nodes []uint32
		bytes uint64
	}
	entries := make([]entry, 0, len(byTreelet))
	for id, ns := range byTreelet {
		sort.Slice(ns, func(i, j int) bool { return ns[i] < ns[j] })
		entries = append(entries, entry{id: id, nodes: ns, bytes: treeletBytes(ns, sizer)})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].bytes != entries[j].bytes {
			return entries[i].bytes < entries[j].bytes
		}
		return entries[i].id < entries[j].id
	})

	merged := make([]bool, len(entries))
	var result []entry
	for i := range entries {
		if merged[i] {
			continue
		}
		cur := entries[i]
		for j := i + 1; j < len(entries); j++ {
			if merged[j] {
				continue
			}
			combinedNodes := unionSortedAscending(cur.nodes, entries[j].nodes)
			combinedBytes := treeletBytes(combinedNodes, sizer)
			if combinedBytes <= maxTreeletBytes {
				cur = entry{id: cur.id, nodes: combinedNodes, bytes: combinedBytes}
				merged[j] = true
			}
		}
		result = append(result, cur)
	}

	label := make(map[uint32]uint32)
	for _, e := range result {
		reordered := depthFirstWithinTreelet(nodes, e.nodes)
		for _, n := range reordered {
			label[n] = e.id
		}
	}

	return &Assignment{
		Direction: a.Direction,
		Label:     toLabelSlice(label, len(a.Label)),
	}
}

// unionSortedAscending merges two ascending-sorted, disjoint node-id slices
// into one ascending-sorted slice (spec section 4.4.3: "unions node lists
// in ascending-id order").
func unionSortedAscending(a, b []uint32) []uint32 {
	out := make([]uint32, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i] <= b[j] {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}

// depthFirstWithinTreelet re-orders a treelet's node set in depth-first
// order over the original BVH, descending into same-treelet children
// first (spec section 4.4.3).
func depthFirstWithinTreelet(nodes []flatbvh.Node, members []uint32) []uint32 {
	memberSet := make(map[uint32]bool, len(members))
	for _, n := range members {
		memberSet[n] = true
	}

	var order []uint32
	visited := make(map[uint32]bool, len(members))
	var walk func(idx uint32)
	walk = func(idx uint32) {
		if visited[idx] || !memberSet[idx] {
			return
		}
		visited[idx] = true
		order = append(order, idx)
		if nodes[idx].IsLeaf() {
			return
		}
		left, right := nodes[idx].Children()
		walk(left)
		walk(right)
	}

	// members is already ascending by node id; the smallest member of a
	// connected treelet is always its highest ancestor in this subtree
	// (BVH node ids only increase going deeper in this builder's
	// pre-order numbering), so walking from it visits the rest via the
	// BVH structure itself.
	for _, n := range members {
		walk(n)
	}
	return order
}

package partition

import (
	"github.com/achilleasa/treelet/flatbvh"
	"github.com/achilleasa/treelet/graph"
)

// nvidiaEpsilon models spec section 4.4.2's
// "ε = SA(root) · max_nodes / (n_nodes · 10)".
func nvidiaEpsilon(rootSA float32, maxNodes, nNodes int) float32 {
	if nNodes == 0 {
		return 0
	}
	return rootSA * float32(maxNodes) / (float32(nNodes) * 10)
}

// subtreeBytes returns the total NodeBytes of every node in the subtree
// rooted at idx, memoized. Used as the "additional_subtree_bytes(n)" term
// in spec section 4.4.2's frontier scoring; this is a byte-count estimate
// (it does not dedupe instance-by-value costs across the subtree) used only
// to rank frontier candidates, not to make the final admission decision.
func subtreeBytes(nodes []flatbvh.Node, sizer NodeSizer, memo map[uint32]uint64, idx uint32) uint64 {
	if v, ok := memo[idx]; ok {
		return v
	}
	total := sizer.NodeBytes(idx)
	if !nodes[idx].IsLeaf() {
		left, right := nodes[idx].Children()
		total += subtreeBytes(nodes, sizer, memo, left)
		total += subtreeBytes(nodes, sizer, memo, right)
	}
	memo[idx] = total
	return total
}

// growCut grows a treelet rooted at r greedily, per spec section 4.4.2's
// frontier-scoring rule, tracking the minimum-cost legal cut seen. It
// returns the node set of the best cut (including r) and the frontier node
// set that becomes the next pass's roots.
func growCut(nodes []flatbvh.Node, sizer NodeSizer, memo map[uint32]uint64, r uint32, maxTreeletBytes uint64, eps float32) (treeletNodes []uint32, frontierNodes []uint32) {
	costCache := NewInstanceCostCache(sizer)
	instanceMask := sizer.NodeInstanceMask(r)
	remaining := int64(maxTreeletBytes) - int64(sizer.NodeBytes(r)) - int64(costCache.Bytes(instanceMask))

	treelet := []uint32{r}
	var frontier []uint32
	if !nodes[r].IsLeaf() {
		left, right := nodes[r].Children()
		frontier = append(frontier, left, right)
	}

	rootSA := nodes[r].Bounds().SurfaceArea()
	bestCost := sumFrontierSA(nodes, frontier, eps) + rootSA + eps
	bestTreelet := append([]uint32{}, treelet...)
	bestFrontier := append([]uint32{}, frontier...)

	for remaining > 0 && len(frontier) > 0 {
		bestIdx, bestScore := -1, float32(-1)
		for i, n := range frontier {
			sa := nodes[n].Bounds().SurfaceArea()
			additional := subtreeBytes(nodes, sizer, memo, n)
			denom := additional
			if uint64(remaining) < denom {
				denom = uint64(remaining)
			}
			if denom == 0 {
				denom = 1
			}
			score := (sa + eps) / float32(denom)
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}
		if bestIdx < 0 {
			break
		}
		n := frontier[bestIdx]
		cost := int64(sizer.NodeBytes(n)) + int64(costCache.IncrementalCost(instanceMask, n))
		if cost > remaining {
			// This candidate doesn't fit; drop it from the frontier
			// so growth can continue with the next-best candidate.
			frontier = append(frontier[:bestIdx], frontier[bestIdx+1:]...)
			continue
		}

		frontier = append(frontier[:bestIdx], frontier[bestIdx+1:]...)
		if !nodes[n].IsLeaf() {
			left, right := nodes[n].Children()
			frontier = append(frontier, left, right)
		}
		treelet = append(treelet, n)
		remaining -= cost
		instanceMask = instanceMask.Union(sizer.NodeInstanceMask(n))

		cost2 := sumFrontierSA(nodes, frontier, eps) + rootSA + eps
		if cost2 < bestCost {
			bestCost = cost2
			bestTreelet = append([]uint32{}, treelet...)
			bestFrontier = append([]uint32{}, frontier...)
		}
	}

	return bestTreelet, bestFrontier
}

func sumFrontierSA(nodes []flatbvh.Node, frontier []uint32, eps float32) float32 {
	var sum float32
	for _, n := range frontier {
		sum += nodes[n].Bounds().SurfaceArea() + eps
	}
	return sum
}

// allocateNvidia implements the Primary "Priority/SAH" allocator (spec
// section 4.4.2): pass 2 starts at root 0, replays growCut's scoring,
// emits a treelet for the resulting node set, and recurses into each
// frontier node as the root of the next treelet. Pass 1's per-root
// best_cost table is not needed by this direct recursive replay (growCut
// recomputes the same greedy growth on demand); it is retained only as a
// memoized subtree-byte table shared across calls, matching the spec's
// "bottom-up" computation of per-node subtree costs.
func allocateNvidia(nodes []flatbvh.Node, g *graph.Graph, sizer NodeSizer, maxTreeletBytes uint64) *Assignment {
	if len(nodes) == 0 {
		return &Assignment{Direction: g.Direction}
	}
	eps := nvidiaEpsilon(nodes[0].Bounds().SurfaceArea(), len(nodes), len(nodes))
	memo := map[uint32]uint64{}

	label := make(map[uint32]uint32)
	var nextID uint32
	queue := []uint32{0}
	for len(queue) > 0 {
		r := queue[0]
		queue = queue[1:]
		if _, seen := label[r]; seen {
			continue
		}
		treeletNodes, frontier := growCut(nodes, sizer, memo, r, maxTreeletBytes, eps)
		tid := nextID
		nextID++
		for _, n := range treeletNodes {
			label[n] = tid
		}
		queue = append(queue, frontier...)
	}

	return &Assignment{
		Direction: g.Direction,
		Label:     toLabelSlice(label, len(nodes)),
		Summaries: summarize(label, g),
	}
}

package texture

// FaceGraph is the ptex face-adjacency graph: each face has up to four
// neighbours (spec section 4.5, point 1 — "each ptex face has up to four
// neighbours"). Neighbour slots hold -1 when a face has no neighbour on
// that edge.
type FaceGraph struct {
	Neighbors [][4]int32
}

// NewFaceGraph builds a face graph from a per-face neighbour table.
func NewFaceGraph(neighbors [][4]int32) *FaceGraph {
	return &FaceGraph{Neighbors: neighbors}
}

// NumFaces returns the number of faces in the graph.
func (g *FaceGraph) NumFaces() int {
	return len(g.Neighbors)
}

// neighborsOf appends face's valid (non -1) neighbours to dst.
func (g *FaceGraph) neighborsOf(face int32, dst []int32) []int32 {
	for _, n := range g.Neighbors[face] {
		if n >= 0 {
			dst = append(dst, n)
		}
	}
	return dst
}

// FaceRemap describes how one material partition's faces map from the
// original ptex face ids to the new, per-partition contiguous ids (spec
// section 4.5's "old_face -> new_face" remap).
type FaceRemap struct {
	// Faces lists the original face ids included in this partition, in
	// new-face-id order (Faces[newID] == oldID). Includes both the
	// budget-counted core and its boundary neighbours.
	Faces []int32
	// OldToNew maps an original face id to its new id within this
	// partition. Faces not present in this partition are absent from
	// the map.
	OldToNew map[int32]int32
	// Core lists the face ids this partition actually owns (the
	// budget-counted BFS core, excluding boundary neighbours carried only
	// for filtering). A face belongs to exactly one partition's Core;
	// callers reassigning a face's owning material should key off Core,
	// not Faces, since a boundary face can appear in Faces for more than
	// one partition.
	Core []int32
}

// Cut partitions a texture's faces into budget-bounded groups by BFS over
// the face graph (spec section 4.5, point 1): faces are greedily grown
// into the current partition by breadth-first traversal of un-cut faces,
// starting a fresh partition once adding a face would exceed budget. Each
// returned partition additionally carries the direct neighbours of its
// BFS-grown core, "for filtering" as the spec puts it, so a renderer can
// still interpolate across a cut boundary.
//
// faceBytes reports the per-face byte cost used against budget; budget is
// the material-texture budget (spec section 4.5's "≈ 0.75 * max_treelet_bytes").
func (g *FaceGraph) Cut(faceBytes func(face int32) uint64, budget uint64) []FaceRemap {
	n := int32(g.NumFaces())
	visited := make([]bool, n)
	var partitions []FaceRemap

	// pending holds faces that were rejected from the current partition
	// for exceeding budget; they seed the next partition's BFS instead
	// of being lost (a plain incrementing scan pointer would otherwise
	// skip over them, since they can have a lower index than whatever
	// the scan has already passed).
	var pending []int32
	nextScan := int32(0)

	for {
		var queue []int32
		if len(pending) > 0 {
			queue = pending
			pending = nil
		} else {
			for nextScan < n && visited[nextScan] {
				nextScan++
			}
			if nextScan >= n {
				break
			}
			queue = []int32{nextScan}
		}

		queued := make(map[int32]bool, len(queue))
		for _, f := range queue {
			queued[f] = true
		}

		var core []int32
		var coreBytes uint64
		var neigh [4]int32
		for len(queue) > 0 {
			face := queue[0]
			queue = queue[1:]
			if visited[face] {
				continue
			}

			cost := faceBytes(face)
			if len(core) > 0 && coreBytes+cost > budget {
				pending = append(pending, face)
				continue
			}
			visited[face] = true
			core = append(core, face)
			coreBytes += cost

			for _, nb := range g.neighborsOf(face, neigh[:0]) {
				if !visited[nb] && !queued[nb] {
					queued[nb] = true
					queue = append(queue, nb)
				}
			}
		}

		partitions = append(partitions, buildRemap(g, core))
	}

	return partitions
}

// buildRemap assigns new, contiguous face ids to core plus its direct
// neighbours (included for mip/derivative filtering across the cut, but
// not counted against the partition's budget).
func buildRemap(g *FaceGraph, core []int32) FaceRemap {
	included := make(map[int32]struct{}, len(core)*2)
	order := make([]int32, 0, len(core)*2)

	add := func(face int32) {
		if _, ok := included[face]; ok {
			return
		}
		included[face] = struct{}{}
		order = append(order, face)
	}

	for _, face := range core {
		add(face)
	}
	var neigh [4]int32
	for _, face := range core {
		for _, nb := range g.neighborsOf(face, neigh[:0]) {
			add(nb)
		}
	}

	oldToNew := make(map[int32]int32, len(order))
	for newID, oldID := range order {
		oldToNew[oldID] = int32(newID)
	}
	return FaceRemap{Faces: order, OldToNew: oldToNew, Core: append([]int32{}, core...)}
}

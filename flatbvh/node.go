// Package flatbvh builds the upstream flat BVH that the treelet partitioner
// consumes (spec section 4.4: "Input: the flat BVH (nodes[0..n] with
// second_child_offset for interior nodes and (primitive_offset,
// n_primitives) for leaves)"). It is the renderer's ordinary single-tree
// BVH, adapted from the teacher's own builder so that the partitioner has a
// concrete upstream structure to operate on.
package flatbvh

import (
	"github.com/achilleasa/treelet/types"
)

// Node is a flat BVH node comprised of a bounding box and two multipurpose
// int32 fields whose meaning depends on node type, following the teacher's
// own BvhNode layout (asset/scene/optimized_scene.go):
//
//   - Interior: LData/RData are both >= 0 and hold the left/right child
//     node indices (the left child always immediately follows its parent in
//     the node array, so only RData -- the "second child offset" -- is
//     normally needed; LData is kept for symmetry and to simplify the
//     partitioner's child-link rewriting).
//   - Leaf: LData is <= 0 and encodes -first_primitive_index; RData holds
//     the primitive count.
//
// Axis is the split axis chosen for interior nodes; it is new relative to
// the teacher's BvhNode (needed by C3's near/far child ordering per
// direction, spec section 4.3) and is zero/unused on leaves.
type Node struct {
	Min   types.Vec3
	LData int32

	Max  types.Vec3
	RData int32

	Axis types.Axis
}

// SetBBox sets the node's bounding box.
func (n *Node) SetBBox(min, max types.Vec3) {
	n.Min = min
	n.Max = max
}

// Bounds returns the node's bounding box as an AABB.
func (n *Node) Bounds() types.AABB {
	return types.AABB{Min: n.Min, Max: n.Max}
}

// SetInterior configures n as an interior node with the given child indices
// and split axis.
func (n *Node) SetInterior(left, right uint32, axis types.Axis) {
	n.LData = int32(left)
	n.RData = int32(right)
	n.Axis = axis
}

// SetLeaf configures n as a leaf spanning [firstPrim, firstPrim+count) of
// the scene's primitive array.
func (n *Node) SetLeaf(firstPrim, count uint32) {
	n.LData = -int32(firstPrim)
	n.RData = int32(count)
}

// IsLeaf reports whether n is a leaf node.
func (n *Node) IsLeaf() bool { return n.LData <= 0 }

// Children returns the left/right child node indices. Only valid for
// interior nodes.
func (n *Node) Children() (left, right uint32) {
	return uint32(n.LData), uint32(n.RData)
}

// SecondChildOffset returns the node index of the right child, matching the
// spec's own vocabulary ("second_child_offset").
func (n *Node) SecondChildOffset() uint32 {
	return uint32(n.RData)
}

// Primitives returns the first primitive index and count for a leaf node.
func (n *Node) Primitives() (firstPrim, count uint32) {
	return uint32(-n.LData), uint32(n.RData)
}

// OffsetChildren shifts child node indices by offset; used when appending a
// subtree's nodes into a larger node array (e.g. inlining a copyable
// instance's nodes into a treelet, spec section 4.5 point 3).
func (n *Node) OffsetChildren(offset int32) {
	if n.IsLeaf() {
		return
	}
	n.LData += offset
	n.RData += offset
}

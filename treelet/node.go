// Package treelet implements C1 (the treelet binary container codec) and C2
// (the in-memory treelet node model) from the treelet-partitioned BVH
// design.
package treelet

import (
	"github.com/achilleasa/treelet/types"
)

// leafTag is the sentinel value that marks a node as a leaf. On disk it
// overlaps the first child pointer word (spec section 3).
const leafTag uint32 = 0xFFFFFFFF

// NodeKind discriminates TreeletNode's tagged union. Source renderers written
// in languages with raw unions overlay interior/leaf fields directly; this
// target uses an explicit tag plus element-wise fields, copied byte-for-byte
// to/from the on-disk layout in format.go.
type NodeKind uint8

const (
	Interior NodeKind = iota
	Leaf
)

// ChildLink addresses a node in some treelet's node array. When
// ChildTreelet equals the id of the treelet that owns the link, the child is
// local; otherwise the link crosses into another treelet (spec section 3,
// invariant 3).
type ChildLink struct {
	ChildTreelet uint16
	ChildNode    uint32
}

// TreeletNode is the fixed-size BVH node record described in spec section
// 3/4.2: bounds, split axis, and either two child links (interior) or a
// primitive range (leaf), discriminated by the leafTag sentinel.
type TreeletNode struct {
	Bounds types.AABB
	Axis   types.Axis
	Kind   NodeKind

	// Valid when Kind == Interior.
	Children [2]ChildLink

	// Valid when Kind == Leaf.
	PrimitiveOffset uint32
	PrimitiveCount  uint32
}

// SetInterior configures n as an interior node with the given child links.
func (n *TreeletNode) SetInterior(axis types.Axis, left, right ChildLink) {
	n.Kind = Interior
	n.Axis = axis
	n.Children[0] = left
	n.Children[1] = right
}

// SetLeaf configures n as a leaf node spanning
// [offset, offset+count) of some treelet's primitive array.
func (n *TreeletNode) SetLeaf(offset, count uint32) {
	n.Kind = Leaf
	n.PrimitiveOffset = offset
	n.PrimitiveCount = count
}

// IsLeaf reports whether n is a leaf node.
func (n *TreeletNode) IsLeaf() bool { return n.Kind == Leaf }

// MaterialKey identifies a material record inside whichever material-owning
// treelet holds it (spec section 3).
type MaterialKey struct {
	Treelet uint32
	ID      uint32
}

// InstanceRef packs a 64-bit TransformedInstance.instance_ref: the high 32
// bits name the root treelet of the referenced sub-BVH, the low 32 bits an
// in-treelet node index (0 for external references, spec section 3).
type InstanceRef uint64

// NewInstanceRef packs a treelet id and node index into an InstanceRef.
func NewInstanceRef(treelet uint32, node uint32) InstanceRef {
	return InstanceRef(uint64(treelet)<<32 | uint64(node))
}

// Treelet returns the root treelet id encoded in the reference.
func (r InstanceRef) Treelet() uint32 { return uint32(r >> 32) }

// Node returns the in-treelet node index encoded in the reference.
func (r InstanceRef) Node() uint32 { return uint32(r) }

// PrimitiveKind discriminates the Primitive tagged union (spec section 3).
// The source distinguishes IncludedInstance vs ExternalInstance via dynamic
// cast; this target uses an explicit tag the traverser branches on (spec
// section 9, "Downcasts at traversal leaves").
type PrimitiveKind uint8

const (
	PrimTriangle PrimitiveKind = iota
	PrimIncludedInstance
	PrimExternalInstance
	// PrimPlaceholder marks a slot awaiting finalization by the residency
	// manager (spec section 4.6).
	PrimPlaceholder
)

// Primitive is the variant primitive type a leaf's primitive range resolves
// to: a Triangle, a by-value IncludedInstance, or a by-reference
// ExternalInstance, or (transiently, before finalization) a Placeholder.
type Primitive struct {
	Kind PrimitiveKind

	// Valid when Kind == PrimTriangle.
	MeshID   uint64
	TriIndex uint32
	Material MaterialKey
	// AreaLightID is non-zero when this triangle is an emissive surface
	// (spec section 4.6, "unfinished_geometric").
	AreaLightID uint32

	// Valid when Kind == PrimIncludedInstance: the node index, in the same
	// treelet, at which the inlined sub-BVH begins.
	IncludedNodeIndex uint32

	// Valid when Kind == PrimExternalInstance or (pre-finalization)
	// PrimPlaceholder: the packed instance reference and validity window.
	InstanceRef InstanceRef
	StartXfm    types.Mat4
	EndXfm      types.Mat4
	StartTime   float32
	EndTime     float32
}

// TransformAt returns the interpolated instance-to-world transform at the
// given ray time (spec section 4.7). Outside [StartTime, EndTime] the
// nearer endpoint transform is used.
func (p *Primitive) TransformAt(t float32) types.Mat4 {
	if p.EndTime <= p.StartTime {
		return p.StartXfm
	}
	if t <= p.StartTime {
		return p.StartXfm
	}
	if t >= p.EndTime {
		return p.EndXfm
	}
	u := (t - p.StartTime) / (p.EndTime - p.StartTime)
	return types.Lerp4(p.StartXfm, p.EndXfm, u)
}

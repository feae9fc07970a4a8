package treelet

import (
	"github.com/achilleasa/treelet/errors"
	"github.com/achilleasa/treelet/types"
)

// Mesh is a cut mesh: a subset of an original scene mesh's triangles,
// renumbered and backed by a byte buffer shared by every triangle drawn
// from the treelet that owns it (spec section 3, "single backing byte
// buffer shared by all Triangles drawn from that treelet").
type Mesh struct {
	// MeshID identifies this cut mesh inside the owning treelet.
	MeshID uint64

	Material   MaterialKey
	AreaLight  uint32

	Vertices []types.Vec3
	Normals  []types.Vec3
	UVs      []types.Vec2
	// Indices holds 3 indices per triangle into Vertices/Normals/UVs.
	Indices []uint32

	// HasNormals/HasUVs mirror whether the source mesh carried these
	// optional per-vertex attributes (spec section 4.5: "carried through
	// iff present on the source").
	HasNormals bool
	HasUVs     bool

	// backing is the shared byte buffer this mesh's triangle data was
	// parsed from. Triangle primitives referencing this mesh keep the
	// treelet (and hence this buffer) alive for their lifetime (spec
	// section 5, "Shared-resource policy").
	backing []byte
}

// Triangle returns the three world-space (pre-transform) vertices of the
// given 0-based triangle index within this cut mesh.
func (m *Mesh) Triangle(triIndex uint32) (v0, v1, v2 types.Vec3) {
	base := triIndex * 3
	return m.Vertices[m.Indices[base]], m.Vertices[m.Indices[base+1]], m.Vertices[m.Indices[base+2]]
}

// Treelet is the in-memory materialization of a dumped treelet package
// (spec section 3).
type Treelet struct {
	ID uint32

	Nodes      []TreeletNode
	Primitives []Primitive

	// Meshes this treelet owns, keyed by MeshID.
	Meshes map[uint64]*Mesh

	// RequiredMaterials/RequiredInstances name cross-treelet dependencies
	// (spec section 4.6). Neither Encode/Decode nor the dumper fills them,
	// and finalization does not read them.
	RequiredMaterials []MaterialKey
	RequiredInstances []InstanceRef

	// Materials/Textures are populated only for material treelets (spec
	// section 4.5): a treelet carrying no geometry, only material/texture
	// records keyed by id.
	Materials map[uint32][]byte
	Textures  map[uint32][]byte
	SpectrumTextures map[uint32][]byte
	FloatTextures    map[uint32][]byte
	ImagePartitions  map[uint32][]byte

	// unfinishedTransformed/unfinishedGeometric record primitive slots
	// that were parsed as placeholders during the base load and must be
	// patched exactly once during finalization (spec section 3,
	// "Lifecycles").
	unfinishedTransformed []uint32
	unfinishedGeometric   []uint32

	finalized bool
}

// NewTreelet returns an empty treelet with the given id.
func NewTreelet(id uint32) *Treelet {
	return &Treelet{
		ID:        id,
		Meshes:    make(map[uint64]*Mesh),
		Materials: make(map[uint32][]byte),
		Textures:  make(map[uint32][]byte),
		SpectrumTextures: make(map[uint32][]byte),
		FloatTextures:    make(map[uint32][]byte),
		ImagePartitions:  make(map[uint32][]byte),
	}
}

// IsMaterialTreelet reports whether this treelet carries no geometry nodes
// (a material-only or image-partition-only treelet, spec section 4.1: "zero
// in the unused counters").
func (t *Treelet) IsMaterialTreelet() bool {
	return len(t.Nodes) == 0
}

// UnfinishedTransformed returns the primitive indices left as placeholders
// for external-instance resolution.
func (t *Treelet) UnfinishedTransformed() []uint32 { return t.unfinishedTransformed }

// UnfinishedGeometric returns the primitive indices left as placeholders for
// material/area-light resolution.
func (t *Treelet) UnfinishedGeometric() []uint32 { return t.unfinishedGeometric }

// MarkUnfinishedTransformed records that Primitives[idx] is a placeholder
// awaiting an ExternalInstance.
func (t *Treelet) MarkUnfinishedTransformed(idx uint32) {
	t.unfinishedTransformed = append(t.unfinishedTransformed, idx)
}

// MarkUnfinishedGeometric records that Primitives[idx] is a placeholder
// awaiting a real material/area light.
func (t *Treelet) MarkUnfinishedGeometric(idx uint32) {
	t.unfinishedGeometric = append(t.unfinishedGeometric, idx)
}

// MarkFinalized clears the unfinished lists; finalization mutates
// placeholder entries exactly once (spec section 3, "Lifecycles").
func (t *Treelet) MarkFinalized() {
	t.unfinishedTransformed = nil
	t.unfinishedGeometric = nil
	t.finalized = true
}

// Finalized reports whether this treelet has completed finalization.
func (t *Treelet) Finalized() bool { return t.finalized }

// CheckInvariants validates this treelet in isolation: every leaf's
// primitive range must lie inside the primitives array (spec section 3,
// invariant 2). Child-link indices and the byte budget are not checked
// here.
func (t *Treelet) CheckInvariants() error {
	if len(t.Nodes) > 0 && t.Nodes[0].Kind == Leaf {
		// Node 0 may legitimately be a leaf (a treelet with a single
		// node), but it must still be a valid leaf.
	}
	for i, n := range t.Nodes {
		if !n.IsLeaf() {
			continue
		}
		if uint64(n.PrimitiveOffset)+uint64(n.PrimitiveCount) > uint64(len(t.Primitives)) {
			return &errors.FormatError{
				Treelet: t.ID,
				Node:    uint32(i),
				Reason:  "leaf primitive range exceeds primitives array",
			}
		}
	}
	return nil
}

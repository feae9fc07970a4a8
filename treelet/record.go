package treelet

import (
	"fmt"

	"github.com/achilleasa/treelet/errors"
)

// treeletNodeSize is the on-disk size, in bytes, of a packed TreeletNode
// (spec section 4.2, "a 32-byte-ish POD"): bounds (6 float32), axis and an
// unused byte padded to 4, two child links of 8 bytes each (u16 treelet,
// 2 pad, u32 node), and 4 trailing pad bytes. A leaf's primitive
// offset/count overlay the two child node words (see encodeNode).
const treeletNodeSize = 6*4 + 4 + 2*8 + 4

// transformedPrimitiveSize is the on-disk size of a packed TransformedPrimitive
// record: kind tag, instance ref, start/end transform, start/end time.
const transformedPrimitiveSize = 4 + 8 + 16*4 + 16*4 + 4 + 4

// triangleSize is the on-disk size of a packed Triangle primitive record:
// mesh id, tri index, material key, area light id.
const triangleSize = 8 + 4 + 8 + 4

// includedInstanceSize is the on-disk size of a packed IncludedInstance
// primitive record: just the node index, within this same treelet, where
// the spliced-in copyable instance's sub-BVH begins (spec section 4.5
// point 3's inline-by-value case; the sub-BVH's own nodes and triangles are
// already present in this treelet's node/primitive arrays, so there is
// nothing else to point at).
const includedInstanceSize = 4

// NodeByteSize, TransformedPrimitiveByteSize and TriangleByteSize expose the
// same on-disk record sizes for the partitioner's byte-budget accounting
// (spec section 4.4's "node bytes" / per-primitive / per-instance costs),
// which must match the bytes Encode actually writes.
const (
	NodeByteSize                 = treeletNodeSize
	TransformedPrimitiveByteSize = transformedPrimitiveSize
	TriangleByteSize             = triangleSize
)

// Encode serializes t into the record stream described in spec section 4.1.
// Material-only and image-partition-only treelets reuse the same schema
// with zero node_count/primitive_count.
func Encode(t *Treelet) []byte {
	w := NewWriter()

	w.WriteUint32(uint32(len(t.ImagePartitions)))
	for id, blob := range t.ImagePartitions {
		w.WriteUint32(id)
		w.WriteBlob(blob)
	}

	w.WriteUint32(uint32(len(t.Textures)))
	for id, blob := range t.Textures {
		w.WriteUint32(id)
		w.WriteBlob(blob)
	}

	w.WriteUint32(uint32(len(t.SpectrumTextures)))
	for id, blob := range t.SpectrumTextures {
		w.WriteUint32(id)
		w.WriteBlob(blob)
	}

	w.WriteUint32(uint32(len(t.FloatTextures)))
	for id, blob := range t.FloatTextures {
		w.WriteUint32(id)
		w.WriteBlob(blob)
	}

	w.WriteUint32(uint32(len(t.Materials)))
	for id, blob := range t.Materials {
		w.WriteUint32(id)
		w.WriteBlob(blob)
	}

	encodeMeshes(w, t)
	encodeNodes(w, t)
	encodePrimitiveLists(w, t)

	return w.Bytes()
}

// encodeMeshes writes record 6: mesh_count followed by, for each mesh, its
// id/material/area-light header and a contiguous mesh_bytes blob. Meshes
// are written in ascending MeshID order (sortedMeshes), whatever order Go's
// map iteration yields.
func encodeMeshes(w *Writer, t *Treelet) {
	w.WriteUint32(uint32(len(t.Meshes)))
	for _, mesh := range sortedMeshes(t.Meshes) {
		w.WriteUint64(mesh.MeshID)
		w.WriteUint32(mesh.Material.Treelet)
		w.WriteUint32(mesh.Material.ID)
		w.WriteUint32(mesh.AreaLight)
		w.WriteBlob(encodeMeshBytes(mesh))
	}
}

// encodeNodes writes record 7: node_count, primitive_count, then the raw
// node array copied verbatim (spec section 4.2: "the on-disk layout is the
// normative one").
func encodeNodes(w *Writer, t *Treelet) {
	w.WriteUint32(uint32(len(t.Nodes)))
	w.WriteUint32(uint32(len(t.Primitives)))
	for i := range t.Nodes {
		w.WriteRaw(encodeNode(&t.Nodes[i]))
	}
}

// encodePrimitiveLists writes record 8: per node, in order, its
// included-instance sublist, then its transformed-primitive sublist, then
// its triangle sublist, each as packed records.
func encodePrimitiveLists(w *Writer, t *Treelet) {
	for i := range t.Nodes {
		n := &t.Nodes[i]
		if !n.IsLeaf() {
			continue
		}
		included, transformed, triangles := splitLeafPrimitives(t.Primitives, n)
		w.WriteUint32(uint32(len(included)))
		w.WriteUint32(uint32(len(transformed)))
		w.WriteUint32(uint32(len(triangles)))
		for _, p := range included {
			w.WriteRaw(encodeIncludedInstance(p))
		}
		for _, p := range transformed {
			w.WriteRaw(encodeTransformedPrimitive(p))
		}
		for _, p := range triangles {
			w.WriteRaw(encodeTriangle(p))
		}
	}
}

func splitLeafPrimitives(prims []Primitive, n *TreeletNode) (included, transformed, triangles []*Primitive) {
	for i := uint32(0); i < n.PrimitiveCount; i++ {
		p := &prims[n.PrimitiveOffset+i]
		switch p.Kind {
		case PrimTriangle:
			triangles = append(triangles, p)
		case PrimExternalInstance, PrimPlaceholder:
			transformed = append(transformed, p)
		case PrimIncludedInstance:
			included = append(included, p)
		}
	}
	return included, transformed, triangles
}

// Decode parses a record stream produced by Encode into a Treelet with the
// given id. Errors are returned as *errors.FormatError describing which
// treelet failed (spec section 7).
func Decode(data []byte, id uint32) (*Treelet, error) {
	r := NewReader(data, id)
	t := NewTreelet(id)

	if err := decodeBlobTable(r, t.ImagePartitions); err != nil {
		return nil, err
	}
	if err := decodeBlobTable(r, t.Textures); err != nil {
		return nil, err
	}
	if err := decodeBlobTable(r, t.SpectrumTextures); err != nil {
		return nil, err
	}
	if err := decodeBlobTable(r, t.FloatTextures); err != nil {
		return nil, err
	}
	if err := decodeBlobTable(r, t.Materials); err != nil {
		return nil, err
	}
	if err := decodeMeshes(r, t); err != nil {
		return nil, err
	}
	if err := decodeNodes(r, t); err != nil {
		return nil, err
	}
	if err := decodePrimitiveLists(r, t); err != nil {
		return nil, err
	}
	return t, t.CheckInvariants()
}

func decodeBlobTable(r *Reader, dst map[uint32][]byte) error {
	count, err := r.ReadUint32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		id, err := r.ReadUint32()
		if err != nil {
			return err
		}
		blob, err := r.ReadBlob()
		if err != nil {
			return err
		}
		dst[id] = blob
	}
	return nil
}

func decodeMeshes(r *Reader, t *Treelet) error {
	count, err := r.ReadUint32()
	if err != nil {
		return err
	}
	backingStart := r.Pos()
	type meshHeader struct {
		id       uint64
		material MaterialKey
		light    uint32
		blob     []byte
	}
	headers := make([]meshHeader, 0, count)
	for i := uint32(0); i < count; i++ {
		id, err := r.ReadUint64()
		if err != nil {
			return err
		}
		matTreelet, err := r.ReadUint32()
		if err != nil {
			return err
		}
		matID, err := r.ReadUint32()
		if err != nil {
			return err
		}
		light, err := r.ReadUint32()
		if err != nil {
			return err
		}
		blob, err := r.ReadBlob()
		if err != nil {
			return err
		}
		headers = append(headers, meshHeader{id, MaterialKey{matTreelet, matID}, light, blob})
	}
	// The spec requires all mesh blobs to be contiguous so a single
	// backing buffer can be captured; data between backingStart and the
	// current position is exactly that span.
	backing := r.data[backingStart:r.Pos()]
	for _, h := range headers {
		mesh, err := decodeMeshBytes(h.blob, backing)
		if err != nil {
			return &errors.FormatError{Treelet: t.ID, Reason: fmt.Sprintf("mesh %d: %v", h.id, err)}
		}
		mesh.MeshID = h.id
		mesh.Material = h.material
		mesh.AreaLight = h.light
		t.Meshes[h.id] = mesh
	}
	return nil
}

func decodeNodes(r *Reader, t *Treelet) error {
	nodeCount, err := r.ReadUint32()
	if err != nil {
		return err
	}
	primCount, err := r.ReadUint32()
	if err != nil {
		return err
	}
	t.Nodes = make([]TreeletNode, nodeCount)
	for i := uint32(0); i < nodeCount; i++ {
		raw, err := r.ReadRaw(treeletNodeSize)
		if err != nil {
			return err
		}
		t.Nodes[i] = decodeNode(raw)
	}
	t.Primitives = make([]Primitive, 0, primCount)
	return nil
}

func decodePrimitiveLists(r *Reader, t *Treelet) error {
	for i := range t.Nodes {
		n := &t.Nodes[i]
		if !n.IsLeaf() {
			continue
		}
		includedCount, err := r.ReadUint32()
		if err != nil {
			return err
		}
		transformedCount, err := r.ReadUint32()
		if err != nil {
			return err
		}
		triangleCount, err := r.ReadUint32()
		if err != nil {
			return err
		}
		offset := uint32(len(t.Primitives))
		for j := uint32(0); j < includedCount; j++ {
			raw, err := r.ReadRaw(includedInstanceSize)
			if err != nil {
				return err
			}
			t.Primitives = append(t.Primitives, decodeIncludedInstance(raw))
		}
		for j := uint32(0); j < transformedCount; j++ {
			raw, err := r.ReadRaw(transformedPrimitiveSize)
			if err != nil {
				return err
			}
			p := decodeTransformedPrimitive(raw)
			if p.Kind == PrimPlaceholder {
				t.MarkUnfinishedTransformed(uint32(len(t.Primitives)))
			}
			t.Primitives = append(t.Primitives, p)
		}
		for j := uint32(0); j < triangleCount; j++ {
			raw, err := r.ReadRaw(triangleSize)
			if err != nil {
				return err
			}
			p := decodeTriangle(raw)
			if p.Material == (MaterialKey{}) && p.AreaLightID == placeholderAreaLight {
				t.MarkUnfinishedGeometric(uint32(len(t.Primitives)))
			}
			t.Primitives = append(t.Primitives, p)
		}
		n.PrimitiveOffset = offset
		n.PrimitiveCount = includedCount + transformedCount + triangleCount
	}
	return nil
}

// placeholderAreaLight is the sentinel area-light id the dumper writes for
// geometric placeholders awaiting finalization (spec section 4.6).
const placeholderAreaLight = 0xFFFFFFFF

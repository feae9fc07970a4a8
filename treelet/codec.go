package treelet

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/achilleasa/treelet/types"
)

func putFloat32(dst []byte, v float32) {
	binary.LittleEndian.PutUint32(dst, math.Float32bits(v))
}

func getFloat32(src []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(src))
}

// encodeNode packs a TreeletNode into its verbatim on-disk layout (spec
// section 4.2). Layout: bounds (6*f32), axis (u8), kind (u8), pad (2 bytes),
// children[0].treelet (u16), pad (2), children[0].node (u32),
// children[1].treelet (u16), pad (2), children[1].node (u32) OR, for a
// leaf, primitive_offset (u32) overlapping children[0].node and
// primitive_count (u32) overlapping children[1].node, with leafTag written
// into the slot that would otherwise hold children[0].treelet.
func encodeNode(n *TreeletNode) []byte {
	buf := make([]byte, treeletNodeSize)
	putFloat32(buf[0:4], n.Bounds.Min[0])
	putFloat32(buf[4:8], n.Bounds.Min[1])
	putFloat32(buf[8:12], n.Bounds.Min[2])
	putFloat32(buf[12:16], n.Bounds.Max[0])
	putFloat32(buf[16:20], n.Bounds.Max[1])
	putFloat32(buf[20:24], n.Bounds.Max[2])
	buf[24] = byte(n.Axis)

	if n.IsLeaf() {
		binary.LittleEndian.PutUint32(buf[28:32], leafTag)
		binary.LittleEndian.PutUint32(buf[32:36], n.PrimitiveOffset)
		binary.LittleEndian.PutUint32(buf[36:40], n.PrimitiveCount)
		return buf
	}

	binary.LittleEndian.PutUint16(buf[28:30], n.Children[0].ChildTreelet)
	binary.LittleEndian.PutUint32(buf[32:36], n.Children[0].ChildNode)
	binary.LittleEndian.PutUint16(buf[36:38], n.Children[1].ChildTreelet)
	binary.LittleEndian.PutUint32(buf[40:44], n.Children[1].ChildNode)
	return buf
}

func decodeNode(buf []byte) TreeletNode {
	var n TreeletNode
	n.Bounds.Min[0] = getFloat32(buf[0:4])
	n.Bounds.Min[1] = getFloat32(buf[4:8])
	n.Bounds.Min[2] = getFloat32(buf[8:12])
	n.Bounds.Max[0] = getFloat32(buf[12:16])
	n.Bounds.Max[1] = getFloat32(buf[16:20])
	n.Bounds.Max[2] = getFloat32(buf[20:24])
	n.Axis = types.Axis(buf[24])

	tag := binary.LittleEndian.Uint32(buf[28:32])
	if tag == leafTag {
		n.Kind = Leaf
		n.PrimitiveOffset = binary.LittleEndian.Uint32(buf[32:36])
		n.PrimitiveCount = binary.LittleEndian.Uint32(buf[36:40])
		return n
	}

	n.Kind = Interior
	n.Children[0].ChildTreelet = binary.LittleEndian.Uint16(buf[28:30])
	n.Children[0].ChildNode = binary.LittleEndian.Uint32(buf[32:36])
	n.Children[1].ChildTreelet = binary.LittleEndian.Uint16(buf[36:38])
	n.Children[1].ChildNode = binary.LittleEndian.Uint32(buf[40:44])
	return n
}

func putMat4(dst []byte, m types.Mat4) {
	for i := 0; i < 16; i++ {
		putFloat32(dst[i*4:i*4+4], m[i])
	}
}

func getMat4(src []byte) types.Mat4 {
	var m types.Mat4
	for i := 0; i < 16; i++ {
		m[i] = getFloat32(src[i*4 : i*4+4])
	}
	return m
}

// encodeTransformedPrimitive packs a TransformedPrimitive record (spec
// section 4.1, record 8): kind tag (PrimExternalInstance or
// PrimPlaceholder), packed instance ref, start/end transform, start/end
// time.
func encodeTransformedPrimitive(p *Primitive) []byte {
	buf := make([]byte, transformedPrimitiveSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(p.Kind))
	binary.LittleEndian.PutUint64(buf[4:12], uint64(p.InstanceRef))
	putMat4(buf[12:76], p.StartXfm)
	putMat4(buf[76:140], p.EndXfm)
	putFloat32(buf[140:144], p.StartTime)
	putFloat32(buf[144:148], p.EndTime)
	return buf
}

func decodeTransformedPrimitive(buf []byte) Primitive {
	return Primitive{
		Kind:        PrimitiveKind(binary.LittleEndian.Uint32(buf[0:4])),
		InstanceRef: InstanceRef(binary.LittleEndian.Uint64(buf[4:12])),
		StartXfm:    getMat4(buf[12:76]),
		EndXfm:      getMat4(buf[76:140]),
		StartTime:   getFloat32(buf[140:144]),
		EndTime:     getFloat32(buf[144:148]),
	}
}

// encodeTriangle packs a Triangle primitive record: mesh id, tri index,
// material key, area light id. A placeholder geometric primitive (spec
// section 4.6) is written with a zero MaterialKey and AreaLightID set to
// placeholderAreaLight.
func encodeTriangle(p *Primitive) []byte {
	buf := make([]byte, triangleSize)
	binary.LittleEndian.PutUint64(buf[0:8], p.MeshID)
	binary.LittleEndian.PutUint32(buf[8:12], p.TriIndex)
	binary.LittleEndian.PutUint32(buf[12:16], p.Material.Treelet)
	binary.LittleEndian.PutUint32(buf[16:20], p.Material.ID)
	binary.LittleEndian.PutUint32(buf[20:24], p.AreaLightID)
	return buf
}

func decodeTriangle(buf []byte) Primitive {
	return Primitive{
		Kind:     PrimTriangle,
		MeshID:   binary.LittleEndian.Uint64(buf[0:8]),
		TriIndex: binary.LittleEndian.Uint32(buf[8:12]),
		Material: MaterialKey{
			Treelet: binary.LittleEndian.Uint32(buf[12:16]),
			ID:      binary.LittleEndian.Uint32(buf[16:20]),
		},
		AreaLightID: binary.LittleEndian.Uint32(buf[20:24]),
	}
}

// encodeIncludedInstance packs an IncludedInstance primitive record: the
// node index, within the same treelet, where the spliced-in sub-BVH begins.
func encodeIncludedInstance(p *Primitive) []byte {
	buf := make([]byte, includedInstanceSize)
	binary.LittleEndian.PutUint32(buf[0:4], p.IncludedNodeIndex)
	return buf
}

func decodeIncludedInstance(buf []byte) Primitive {
	return Primitive{
		Kind:              PrimIncludedInstance,
		IncludedNodeIndex: binary.LittleEndian.Uint32(buf[0:4]),
	}
}

// encodeMeshBytes packs a Mesh's own header (vertex/index counts, flags)
// plus its vertex/normal/UV/index arrays as a single blob (spec section
// 4.1, record 6 "blob mesh_bytes").
func encodeMeshBytes(m *Mesh) []byte {
	w := NewWriter()
	w.WriteUint32(uint32(len(m.Vertices)))
	w.WriteUint32(uint32(len(m.Indices)))
	flags := uint32(0)
	if m.HasNormals {
		flags |= 1
	}
	if m.HasUVs {
		flags |= 2
	}
	w.WriteUint32(flags)
	for _, v := range m.Vertices {
		raw := make([]byte, 12)
		putFloat32(raw[0:4], v[0])
		putFloat32(raw[4:8], v[1])
		putFloat32(raw[8:12], v[2])
		w.WriteRaw(raw)
	}
	if m.HasNormals {
		for _, v := range m.Normals {
			raw := make([]byte, 12)
			putFloat32(raw[0:4], v[0])
			putFloat32(raw[4:8], v[1])
			putFloat32(raw[8:12], v[2])
			w.WriteRaw(raw)
		}
	}
	if m.HasUVs {
		for _, v := range m.UVs {
			raw := make([]byte, 8)
			putFloat32(raw[0:4], v[0])
			putFloat32(raw[4:8], v[1])
			w.WriteRaw(raw)
		}
	}
	for _, idx := range m.Indices {
		raw := make([]byte, 4)
		binary.LittleEndian.PutUint32(raw, idx)
		w.WriteRaw(raw)
	}
	return w.Bytes()
}

// decodeMeshBytes parses a mesh blob produced by encodeMeshBytes. backing
// is the contiguous span of bytes all mesh blobs in this treelet were read
// from (spec section 4.1: "construct mesh views as offsets"); the returned
// Mesh keeps a reference to it for the lifetime of the treelet.
func decodeMeshBytes(blob []byte, backing []byte) (*Mesh, error) {
	r := NewReader(blob, 0)
	vertCount, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	idxCount, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	flags, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	m := &Mesh{
		HasNormals: flags&1 != 0,
		HasUVs:     flags&2 != 0,
		backing:    backing,
	}

	m.Vertices = make([]types.Vec3, vertCount)
	for i := range m.Vertices {
		raw, err := r.ReadRaw(12)
		if err != nil {
			return nil, err
		}
		m.Vertices[i] = types.Vec3{getFloat32(raw[0:4]), getFloat32(raw[4:8]), getFloat32(raw[8:12])}
	}
	if m.HasNormals {
		m.Normals = make([]types.Vec3, vertCount)
		for i := range m.Normals {
			raw, err := r.ReadRaw(12)
			if err != nil {
				return nil, err
			}
			m.Normals[i] = types.Vec3{getFloat32(raw[0:4]), getFloat32(raw[4:8]), getFloat32(raw[8:12])}
		}
	}
	if m.HasUVs {
		m.UVs = make([]types.Vec2, vertCount)
		for i := range m.UVs {
			raw, err := r.ReadRaw(8)
			if err != nil {
				return nil, err
			}
			m.UVs[i] = types.Vec2{getFloat32(raw[0:4]), getFloat32(raw[4:8])}
		}
	}
	m.Indices = make([]uint32, idxCount)
	for i := range m.Indices {
		raw, err := r.ReadRaw(4)
		if err != nil {
			return nil, err
		}
		m.Indices[i] = binary.LittleEndian.Uint32(raw)
	}
	if r.Remaining() {
		return nil, fmt.Errorf("trailing bytes in mesh blob")
	}
	return m, nil
}

// sortedMeshes returns the meshes of a map ordered by MeshID, so the mesh
// record Encode writes does not depend on Go's randomized map iteration
// order (spec section 6: "the format must be reproducible bit-exact"). The
// image-partition, texture, spectrum-texture, float-texture and material
// tables Encode writes before it are not sorted: they follow map iteration
// order, so a treelet with two or more entries in any of them can encode
// to different bytes on different runs.
func sortedMeshes(meshes map[uint64]*Mesh) []*Mesh {
	out := make([]*Mesh, 0, len(meshes))
	for _, m := range meshes {
		out = append(out, m)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].MeshID > out[j].MeshID; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

package dump

import (
	"github.com/achilleasa/treelet/scenegraph"
	"github.com/achilleasa/treelet/treelet"
)

// TriangleRemap maps an original (mesh, triangle) pair to the cut mesh and
// triangle index it ended up at (spec section 4.5 point 3: "Record
// (orig_mesh, orig_tri) -> (new_mesh, new_tri)").
type TriangleRemap struct {
	NewMeshID uint64
	NewTri    uint32
}

// CutMesh extracts origTris (triangle indices into origMesh, any order) into
// a new, densely renumbered treelet.Mesh: only vertices actually referenced
// by origTris are kept, optional normals/UVs are carried through iff the
// source mesh has them (spec section 4.5 point 3). It returns the cut mesh
// and the orig-triangle -> new-triangle-index remap.
func CutMesh(newMeshID uint64, origMesh *scenegraph.Mesh, origTris []uint32, material treelet.MaterialKey, areaLight uint32) (*treelet.Mesh, map[uint32]uint32) {
	mesh := &treelet.Mesh{
		MeshID:     newMeshID,
		Material:   material,
		AreaLight:  areaLight,
		HasNormals: origMesh.HasNormals,
		HasUVs:     origMesh.HasUVs,
	}

	vertexRemap := make(map[uint32]uint32)
	triRemap := make(map[uint32]uint32, len(origTris))

	remapVertex := func(origIdx uint32) uint32 {
		if newIdx, ok := vertexRemap[origIdx]; ok {
			return newIdx
		}
		newIdx := uint32(len(mesh.Vertices))
		vertexRemap[origIdx] = newIdx
		mesh.Vertices = append(mesh.Vertices, origMesh.Vertices[origIdx])
		if origMesh.HasNormals {
			mesh.Normals = append(mesh.Normals, origMesh.Normals[origIdx])
		}
		if origMesh.HasUVs {
			mesh.UVs = append(mesh.UVs, origMesh.UVs[origIdx])
		}
		return newIdx
	}

	for newTri, origTri := range origTris {
		base := origTri * 3
		for k := uint32(0); k < 3; k++ {
			mesh.Indices = append(mesh.Indices, remapVertex(origMesh.Indices[base+k]))
		}
		triRemap[origTri] = uint32(newTri)
	}

	return mesh, triRemap
}

// MeshTriangleSet groups the triangles of one original mesh that a single
// geometry treelet owns, keyed by original mesh index.
type MeshTriangleSet struct {
	MeshIndex uint32
	Triangles []uint32
}

// CollectMeshTriangles groups a treelet's owned ScenePrimitives by source
// mesh, preserving first-seen order so CutMesh's renumbering is
// deterministic across runs (spec section 6, "must be reproducible
// bit-exact").
func CollectMeshTriangles(prims []*ScenePrimitive, owned []uint32) []MeshTriangleSet {
	order := []uint32{}
	byMesh := map[uint32]*MeshTriangleSet{}
	for _, primIdx := range owned {
		p := prims[primIdx]
		if p.Kind != ScenePrimTriangle {
			continue
		}
		set, ok := byMesh[p.MeshIndex]
		if !ok {
			set = &MeshTriangleSet{MeshIndex: p.MeshIndex}
			byMesh[p.MeshIndex] = set
			order = append(order, p.MeshIndex)
		}
		set.Triangles = append(set.Triangles, p.TriIndex)
	}
	out := make([]MeshTriangleSet, 0, len(order))
	for _, meshIdx := range order {
		out = append(out, *byMesh[meshIdx])
	}
	return out
}

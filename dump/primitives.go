// Package dump implements C5, the dumper: it runs the partitioner (C4)
// over a scene's flat BVH and materializes the resulting treelets to disk
// per spec section 4.5 — cutting meshes, grouping/cutting materials and
// their ptex textures into material-only treelets, and writing the
// scene-level HEADER and STATIC0_pre records.
package dump

import (
	"github.com/achilleasa/treelet/flatbvh"
	"github.com/achilleasa/treelet/scenegraph"
	"github.com/achilleasa/treelet/types"
)

// PrimitiveKind discriminates a ScenePrimitive, mirroring treelet's own
// Triangle/instance distinction one level up, before any treelet has been
// carved out (spec section 3's Primitive variant, applied to the whole
// scene rather than one treelet).
type PrimitiveKind uint8

const (
	ScenePrimTriangle PrimitiveKind = iota
	ScenePrimInstance
)

// ScenePrimitive is a single flat-BVH leaf entry: either one mesh triangle
// or one scene instance. It implements flatbvh.BoundedVolume so the whole
// scene can be handed to flatbvh.Build directly.
type ScenePrimitive struct {
	Kind PrimitiveKind

	MeshIndex uint32
	TriIndex  uint32

	InstanceIndex uint32

	bounds types.AABB
	center types.Vec3
}

// BBox implements flatbvh.BoundedVolume.
func (p *ScenePrimitive) BBox() types.AABB { return p.bounds }

// Center implements flatbvh.BoundedVolume.
func (p *ScenePrimitive) Center() types.Vec3 { return p.bounds.Center() }

// InstanceRefCounts returns, indexed by mesh index, how many scene
// instances place that mesh. A mesh placed by two or more instances is the
// nested-instancing case spec section 1 calls "by reference": its sub-BVH
// is shared rather than re-flattened at every use site.
func InstanceRefCounts(sc *scenegraph.SceneContext) []int {
	counts := make([]int, len(sc.Meshes))
	for _, inst := range sc.Instances {
		counts[inst.MeshIndex]++
	}
	return counts
}

// BuildScenePrimitives flattens every singly-placed instance's triangles
// directly into world space, and contributes one opaque ScenePrimInstance
// entry per instance of a mesh shared by two or more instances, into the
// leaf-level primitive list the upstream flat BVH is built over (spec
// section 4.5 point 3).
//
// Directly-flattened triangle primitives are instance-expanded: each such
// Instance contributes one ScenePrimitive per triangle of its mesh, in
// instance-local world space at the instance's start transform (spec
// section 4.7 accounts for motion blur separately at traversal time; the
// BVH itself is built over the start-time bounds, matching the teacher's
// own static-BVH-over-moving-geometry approach in asset/compiler/bvh).
// Shared instances are left as opaque ScenePrimInstance leaves: dumper.go's
// buildGeometryTreelet resolves each one, per plan, into either a spliced
// copyable sub-BVH or a placeholder pointing at a once-dumped external one.
func BuildScenePrimitives(sc *scenegraph.SceneContext, plan *instancePlan) []*ScenePrimitive {
	var out []*ScenePrimitive
	for i, inst := range sc.Instances {
		if plan.refCounts[inst.MeshIndex] >= 2 {
			box := inst.Bounds(sc.Meshes[inst.MeshIndex])
			out = append(out, &ScenePrimitive{
				Kind:          ScenePrimInstance,
				InstanceIndex: uint32(i),
				bounds:        box,
				center:        box.Center(),
			})
			continue
		}
		mesh := sc.Meshes[inst.MeshIndex]
		for tri := uint32(0); tri < uint32(mesh.NumTriangles()); tri++ {
			v0, v1, v2 := mesh.Triangle(tri)
			box := types.EmptyAABB()
			box = box.Extend(inst.StartTransform.MulPoint(v0))
			box = box.Extend(inst.StartTransform.MulPoint(v1))
			box = box.Extend(inst.StartTransform.MulPoint(v2))
			out = append(out, &ScenePrimitive{
				Kind:          ScenePrimTriangle,
				MeshIndex:     inst.MeshIndex,
				TriIndex:      tri,
				InstanceIndex: uint32(i),
				bounds:        box,
				center:        box.Center(),
			})
		}
	}
	return out
}

// BuildLocalMeshBVH builds mesh's own object-space flat BVH, ungrouped by
// any instance transform. Used to size a shared mesh's sub-BVH once (spec
// section 4.4.1) and, for non-copyable instances, as the basis of the
// once-dumped external treelet every referencing instance points back to.
func BuildLocalMeshBVH(mesh *scenegraph.Mesh, meshIndex uint32, method flatbvh.SplitMethod, maxNodePrims int) ([]flatbvh.Node, []*ScenePrimitive) {
	prims := make([]*ScenePrimitive, mesh.NumTriangles())
	for tri := range prims {
		v0, v1, v2 := mesh.Triangle(uint32(tri))
		box := types.EmptyAABB().Extend(v0).Extend(v1).Extend(v2)
		prims[tri] = &ScenePrimitive{
			Kind:      ScenePrimTriangle,
			MeshIndex: meshIndex,
			TriIndex:  uint32(tri),
			bounds:    box,
			center:    box.Center(),
		}
	}
	return BuildFlatBVH(prims, method, maxNodePrims)
}

// BuildFlatBVH builds the upstream flat BVH over prims with the given
// split method and max leaf size, returning the node array plus prims
// reordered to match the final leaf layout (flatbvh.Build's leaf callback
// only reports membership; it is this function's job to accumulate the
// final, leaf-contiguous primitive order that node.Primitives() offsets
// index into).
func BuildFlatBVH(prims []*ScenePrimitive, method flatbvh.SplitMethod, maxNodePrims int) ([]flatbvh.Node, []*ScenePrimitive) {
	volumes := make([]flatbvh.BoundedVolume, len(prims))
	for i, p := range prims {
		volumes[i] = p
	}

	var ordered []*ScenePrimitive
	nodes := flatbvh.Build(volumes, maxNodePrims, method, func(leaf *flatbvh.Node, items []flatbvh.BoundedVolume) {
		offset := uint32(len(ordered))
		for _, item := range items {
			ordered = append(ordered, item.(*ScenePrimitive))
		}
		leaf.SetLeaf(offset, uint32(len(items)))
	})
	return nodes, ordered
}

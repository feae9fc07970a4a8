package dump

import (
	"github.com/achilleasa/treelet/flatbvh"
	"github.com/achilleasa/treelet/scenegraph"
	"github.com/achilleasa/treelet/types"
)

// transformBounds returns the world-space AABB of local under m, computed
// from the transformed 8 corners since an affine transform can rotate an
// axis-aligned box out of axis alignment (same approach as scenegraph's own
// unexported transformAABB, duplicated here since dump splices instance
// sub-BVHs node-by-node rather than bounds-only).
func transformBounds(local types.AABB, m types.Mat4) types.AABB {
	corners := [8]types.Vec3{
		{local.Min[0], local.Min[1], local.Min[2]},
		{local.Max[0], local.Min[1], local.Min[2]},
		{local.Min[0], local.Max[1], local.Min[2]},
		{local.Max[0], local.Max[1], local.Min[2]},
		{local.Min[0], local.Min[1], local.Max[2]},
		{local.Max[0], local.Min[1], local.Max[2]},
		{local.Min[0], local.Max[1], local.Max[2]},
		{local.Max[0], local.Max[1], local.Max[2]},
	}
	box := types.EmptyAABB()
	for _, c := range corners {
		box = box.Extend(m.MulPoint(c))
	}
	return box
}

// localMeshBVH is a mesh's own object-space flat BVH, built once and shared
// by every scene instance that places that mesh (spec section 4.5 point 3:
// a non-copyable instance's sub-BVH is dumped exactly once and referenced
// by every instance that uses it; a copyable one is duplicated inline at
// every use site, but still built once so every copy shares the same split
// structure).
type localMeshBVH struct {
	nodes []flatbvh.Node
	prims []*ScenePrimitive
	bytes uint64
}

// instancePlan decides, for every scene instance referencing a mesh placed
// more than once, whether it is inlined by value ("copyable") or referenced
// by pointer to a once-dumped sub-BVH ("non-copyable"), following spec
// section 4.4.1's byte-threshold rule. A mesh placed by exactly one instance
// has nothing to share and is left to BuildScenePrimitives' direct,
// flattened-triangle path.
type instancePlan struct {
	method       flatbvh.SplitMethod
	maxNodePrims int

	refCounts []int
	localBVH  map[uint32]*localMeshBVH

	// copyable records, for every scene instance index whose mesh is
	// placed by more than one instance, whether that particular instance
	// is inlined (true) or needs the mesh's sub-BVH dumped once and
	// referenced externally (false).
	copyable map[uint32]bool
	// externalMesh marks a mesh as needing its local sub-BVH dumped once,
	// because at least one of its instances couldn't be inlined.
	externalMesh map[uint32]bool
}

// buildInstancePlan inspects every instance in sc and classifies the shared
// ones (spec section 4.5 point 3).
func buildInstancePlan(sc *scenegraph.SceneContext, method flatbvh.SplitMethod, maxNodePrims int) *instancePlan {
	p := &instancePlan{
		method:       method,
		maxNodePrims: maxNodePrims,
		refCounts:    InstanceRefCounts(sc),
		localBVH:     map[uint32]*localMeshBVH{},
		copyable:     map[uint32]bool{},
		externalMesh: map[uint32]bool{},
	}
	for i, inst := range sc.Instances {
		if p.refCounts[inst.MeshIndex] < 2 {
			continue
		}
		ok := p.inlineable(sc, inst)
		p.copyable[uint32(i)] = ok
		if !ok {
			p.externalMesh[inst.MeshIndex] = true
		}
	}
	return p
}

// inlineable reports whether inst can be spliced in place as a
// PrimIncludedInstance: its mesh's local sub-BVH must fit under
// CopyableThreshold, and the instance must be static, since
// treelet.PrimIncludedInstance carries no motion-blur transform window for
// the traverser to interpolate (DESIGN.md's Open Question decisions narrows
// spec section 4.4.1's pure byte rule to static placements for this reason).
func (p *instancePlan) inlineable(sc *scenegraph.SceneContext, inst *scenegraph.Instance) bool {
	if inst.StartTransform != inst.EndTransform {
		return false
	}
	b := p.ensureLocalBVH(sc, inst.MeshIndex)
	return b.bytes < CopyableThreshold
}

// ensureLocalBVH builds and caches meshIdx's own local object-space flat
// BVH the first time it's needed.
func (p *instancePlan) ensureLocalBVH(sc *scenegraph.SceneContext, meshIdx uint32) *localMeshBVH {
	if b, ok := p.localBVH[meshIdx]; ok {
		return b
	}
	nodes, prims := BuildLocalMeshBVH(sc.Meshes[meshIdx], meshIdx, p.method, p.maxNodePrims)
	sizer := NewSizer(nodes, prims, nil)
	var total uint64
	for i := range nodes {
		total += sizer.NodeBytes(uint32(i))
	}
	b := &localMeshBVH{nodes: nodes, prims: prims, bytes: total}
	p.localBVH[meshIdx] = b
	return b
}

// instanceInfos builds the InstanceInfo slice NewSizer needs to score the
// upstream flat BVH's instance leaves, indexed by scene instance index.
func (p *instancePlan) instanceInfos(sc *scenegraph.SceneContext) []InstanceInfo {
	out := make([]InstanceInfo, len(sc.Instances))
	for i, inst := range sc.Instances {
		cp, tracked := p.copyable[uint32(i)]
		if !tracked {
			continue
		}
		out[i] = InstanceInfo{Copyable: cp, Bytes: p.localBVH[inst.MeshIndex].bytes}
	}
	return out
}

// sortedUint32Keys returns the keys of a uint32-keyed set, ascending, so
// callers that mint ids from it get reproducible output (spec section 6).
func sortedUint32Keys(set map[uint32]bool) []uint32 {
	out := make([]uint32, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

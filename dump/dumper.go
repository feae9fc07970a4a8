package dump

import (
	"sort"

	"github.com/achilleasa/treelet/flatbvh"
	"github.com/achilleasa/treelet/graph"
	"github.com/achilleasa/treelet/partition"
	"github.com/achilleasa/treelet/scenegraph"
	"github.com/achilleasa/treelet/texture"
	"github.com/achilleasa/treelet/treelet"
	"github.com/achilleasa/treelet/types"
)

// Options configures one dumper run (spec section 4.4's algorithm choice
// plus 4.5's byte budgets).
type Options struct {
	Algorithm       partition.Algorithm
	Direction       graph.Direction
	EdgePolicy      graph.EdgePolicy
	MaxNodePrims    int
	SplitMethod     flatbvh.SplitMethod
	MaxTreeletBytes uint64
	// MaterialBudgetFraction of MaxTreeletBytes a single material's
	// referenced textures may occupy before CutOversizedMaterials
	// splits it (spec section 4.5, point 1). Defaults to 0.75.
	MaterialBudgetFraction float32
}

func (o Options) materialBudget() uint64 {
	frac := o.MaterialBudgetFraction
	if frac <= 0 {
		frac = 0.75
	}
	return uint64(float32(o.MaxTreeletBytes) * frac)
}

// Result is everything one dumper run produces, ready for C1's Encode to
// serialize to the treelet package's on-disk files.
type Result struct {
	GeometryTreelets []*treelet.Treelet
	MaterialTreelets []*treelet.Treelet
	Header           Header
	StaticAllocation []StaticAllocationEntry
}

// Dumper runs C4's partitioner and materializes its output into actual
// treelet.Treelet values (spec section 4.5).
type Dumper struct {
	opts Options
}

// NewDumper returns a Dumper configured by opts.
func NewDumper(opts Options) *Dumper {
	return &Dumper{opts: opts}
}

// meshSubPlan is one shared mesh's own partitioning result, computed before
// any material is resolved so the geometry treelet id space (spec section
// 4.5's id ranges) can be finalized before packMaterials picks its starting
// id.
type meshSubPlan struct {
	meshIndex uint32
	nodes     []flatbvh.Node
	prims     []*ScenePrimitive
	g         *graph.Graph

	localIDs         []uint32
	memberOrder      map[uint32][]uint32
	globalLocalIndex map[uint32]uint32
	rawLabel         []uint32
	rootLocalID      uint32

	idBase        uint32
	remappedLabel []uint32
}

// Run dumps sc into geometry and material treelets. textures maps a
// material's referenced filename to its decoded-but-opaque blob (spec
// section 1: the dumper never decodes pixel data, only routes bytes).
func (d *Dumper) Run(sc *scenegraph.SceneContext, textures map[string]*texture.Texture) (*Result, error) {
	plan := buildInstancePlan(sc, d.opts.SplitMethod, d.opts.MaxNodePrims)

	prims := BuildScenePrimitives(sc, plan)
	nodes, ordered := BuildFlatBVH(prims, d.opts.SplitMethod, d.opts.MaxNodePrims)

	sizer := NewSizer(nodes, ordered, plan.instanceInfos(sc))
	nonCopyable := func(nodeIdx uint32) bool { return sizer.IsNonCopyableLeaf(nodeIdx) }
	g := graph.Build(nodes, d.opts.Direction, d.opts.EdgePolicy, nonCopyable)

	allocated := partition.Allocate(d.opts.Algorithm, nodes, g, sizer, d.opts.MaxTreeletBytes)
	merged := partition.Merge(allocated, nodes, sizer, d.opts.MaxTreeletBytes)
	final, err := partition.Finalize(merged)
	if err != nil {
		return nil, err
	}

	membersByTreelet := groupNodesByTreelet(final.Label)
	treeletIDs := sortedTreeletIDs(membersByTreelet)

	// memberOrder/globalLocalIndex are computed for every treelet up
	// front so that a child link crossing into a treelet built later in
	// the loop below can still be resolved to its final local index
	// (spec section 3, invariant 3: child links may address another
	// treelet).
	memberOrder := make(map[uint32][]uint32, len(treeletIDs))
	globalLocalIndex := make(map[uint32]uint32, len(final.Label))
	for _, tid := range treeletIDs {
		order := depthFirstWithinTreelet(nodes, membersByTreelet[tid])
		memberOrder[tid] = order
		for i, n := range order {
			globalLocalIndex[n] = uint32(i)
		}
	}
	numGeomTreelets := uint32(len(membersByTreelet))

	// Every non-copyable shared mesh gets its own sub-BVH partitioned
	// once, up front, so its treelet id range [numGeomTreelets, ...) is
	// known before material treelet ids are minted (spec section 4.5
	// point 3).
	externalMeshes := sortedUint32Keys(plan.externalMesh)
	subPlans := make([]*meshSubPlan, len(externalMeshes))
	idBase := numGeomTreelets
	for i, meshIdx := range externalMeshes {
		sp := d.planMeshSubBVH(sc, plan, meshIdx)
		sp.idBase = idBase
		sp.remappedLabel = make([]uint32, len(sp.rawLabel))
		for j, lid := range sp.rawLabel {
			sp.remappedLabel[j] = idBase + lid
		}
		subPlans[i] = sp
		idBase += uint32(len(sp.localIDs))
	}
	numGeomIDSpace := idBase

	externalRefByMesh := make(map[uint32]treelet.InstanceRef, len(subPlans))
	for _, sp := range subPlans {
		rootTreelet := sp.idBase + sp.rootLocalID
		rootNode := sp.globalLocalIndex[0]
		externalRefByMesh[sp.meshIndex] = treelet.NewInstanceRef(rootTreelet, rootNode)
	}

	materialKeyByID, cutReassign, materialTreelets := d.packMaterials(sc, textures, numGeomIDSpace)

	areaLightID := make(map[[2]uint32]uint32, len(sc.AreaLights))
	for i, al := range sc.AreaLights {
		areaLightID[[2]uint32{al.MeshIndex, al.TriIndex}] = uint32(i) + 1
	}

	directXfm := func(p *ScenePrimitive) *types.Mat4 {
		xfm := sc.Instances[p.InstanceIndex].StartTransform
		return &xfm
	}

	geomTreelets := make([]*treelet.Treelet, 0, numGeomIDSpace)
	var nextMeshID uint64
	var totalBytes uint64
	var allocation []StaticAllocationEntry
	for _, tid := range treeletIDs {
		t, probability := d.buildGeometryTreelet(tid, memberOrder[tid], nodes, ordered, sc, plan, final.Label, globalLocalIndex, materialKeyByID, areaLightID, cutReassign, externalRefByMesh, directXfm, g, &nextMeshID)
		geomTreelets = append(geomTreelets, t)
		totalBytes += treeletBytesApprox(t)
		allocation = append(allocation, StaticAllocationEntry{TreeletID: tid, TotalProbability: probability})
	}

	// A non-copyable mesh's own sub-BVH is dumped in object space (no
	// transform at all): the placeholder every referencing instance
	// carries supplies the world transform at traversal time instead
	// (trace.PrimExternalInstance applies p.TransformAt(ray.Time)).
	objectSpace := func(*ScenePrimitive) *types.Mat4 { return nil }
	for _, sp := range subPlans {
		for _, lid := range sp.localIDs {
			t, _ := d.buildGeometryTreelet(sp.idBase+lid, sp.memberOrder[lid], sp.nodes, sp.prims, sc, plan, sp.remappedLabel, sp.globalLocalIndex, materialKeyByID, areaLightID, cutReassign, nil, objectSpace, sp.g, &nextMeshID)
			geomTreelets = append(geomTreelets, t)
			totalBytes += treeletBytesApprox(t)
		}
	}

	for _, t := range materialTreelets {
		totalBytes += treeletBytesApprox(t)
	}

	return &Result{
		GeometryTreelets: geomTreelets,
		MaterialTreelets: materialTreelets,
		Header: Header{
			Bounds:            sc.Bounds(),
			TotalTreeletBytes: totalBytes,
		},
		StaticAllocation: allocation,
	}, nil
}

// planMeshSubBVH partitions meshIndex's own local, object-space BVH
// independently of the scene-level partitioning pass (spec section 4.5
// point 3: a non-copyable instance's sub-BVH is dumped exactly once).
// Material resolution happens later, once every mesh's treelet-count is
// known and the material id range can be finalized.
func (d *Dumper) planMeshSubBVH(sc *scenegraph.SceneContext, plan *instancePlan, meshIndex uint32) *meshSubPlan {
	local := plan.ensureLocalBVH(sc, meshIndex)
	nodes, prims := local.nodes, local.prims

	sizer := NewSizer(nodes, prims, nil)
	nonCopyable := func(uint32) bool { return false }
	g := graph.Build(nodes, d.opts.Direction, d.opts.EdgePolicy, nonCopyable)
	allocated := partition.Allocate(d.opts.Algorithm, nodes, g, sizer, d.opts.MaxTreeletBytes)
	merged := partition.Merge(allocated, nodes, sizer, d.opts.MaxTreeletBytes)
	final, err := partition.Finalize(merged)
	if err != nil {
		// A single mesh's own flat BVH is always one connected tree
		// rooted at node 0, so Finalize's root-coverage check can
		// never fail here.
		panic(err)
	}

	membersByTreelet := groupNodesByTreelet(final.Label)
	localIDs := sortedTreeletIDs(membersByTreelet)

	memberOrder := make(map[uint32][]uint32, len(localIDs))
	globalLocalIndex := make(map[uint32]uint32, len(final.Label))
	for _, lid := range localIDs {
		order := depthFirstWithinTreelet(nodes, membersByTreelet[lid])
		memberOrder[lid] = order
		for i, n := range order {
			globalLocalIndex[n] = uint32(i)
		}
	}

	return &meshSubPlan{
		meshIndex:        meshIndex,
		nodes:            nodes,
		prims:            prims,
		g:                g,
		localIDs:         localIDs,
		memberOrder:      memberOrder,
		globalLocalIndex: globalLocalIndex,
		rawLabel:         final.Label,
		rootLocalID:      final.Label[0],
	}
}

func groupNodesByTreelet(label []uint32) map[uint32][]uint32 {
	out := map[uint32][]uint32{}
	for node, tid := range label {
		out[tid] = append(out[tid], uint32(node))
	}
	return out
}

func sortedTreeletIDs(byTreelet map[uint32][]uint32) []uint32 {
	ids := make([]uint32, 0, len(byTreelet))
	for id := range byTreelet {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// depthFirstWithinTreelet mirrors partition.Merge's own reordering (spec
// section 4.4.3): a treelet's members are relaid out in depth-first order
// over the original flat BVH so that a treelet's node 0 is always its
// highest ancestor and in-treelet child links stay contiguous.
func depthFirstWithinTreelet(nodes []flatbvh.Node, members []uint32) []uint32 {
	memberSet := make(map[uint32]bool, len(members))
	for _, n := range members {
		memberSet[n] = true
	}
	visited := make(map[uint32]bool, len(members))
	var order []uint32
	var walk func(idx uint32)
	walk = func(idx uint32) {
		if visited[idx] || !memberSet[idx] {
			return
		}
		visited[idx] = true
		order = append(order, idx)
		if nodes[idx].IsLeaf() {
			return
		}
		left, right := nodes[idx].Children()
		walk(left)
		walk(right)
	}
	sorted := append([]uint32{}, members...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	for _, n := range sorted {
		walk(n)
	}
	return order
}

// buildGeometryTreelet materializes one treelet's node/primitive arrays,
// rewriting flatbvh.Node child indices into treelet.ChildLink values that
// cross into another treelet wherever label disagrees (spec section 4.2,
// "child links may address another treelet").
//
// xfmFor supplies the world transform to bake into a ScenePrimTriangle's
// vertices: the owning instance's start transform when tid is a top-level
// geometry treelet, or nil (object space) when tid belongs to a once-dumped
// shared mesh's own sub-BVH (spec section 4.5 point 3).
func (d *Dumper) buildGeometryTreelet(
	tid uint32,
	members []uint32,
	nodes []flatbvh.Node,
	prims []*ScenePrimitive,
	sc *scenegraph.SceneContext,
	plan *instancePlan,
	label []uint32,
	globalLocalIndex map[uint32]uint32,
	materialKeyByID map[uint32]treelet.MaterialKey,
	areaLightID map[[2]uint32]uint32,
	cutReassign map[uint32]map[uint32]uint32,
	externalRefByMesh map[uint32]treelet.InstanceRef,
	xfmFor func(*ScenePrimitive) *types.Mat4,
	g *graph.Graph,
	nextMeshID *uint64,
) (*treelet.Treelet, float32) {
	t := treelet.NewTreelet(tid)

	t.Nodes = make([]treelet.TreeletNode, len(members))
	var probability float32
	for i, n := range members {
		node := &nodes[n]
		t.Nodes[i].Bounds = node.Bounds()
		probability += g.IncomingProb[n]
		if node.IsLeaf() {
			continue
		}
		left, right := node.Children()
		t.Nodes[i].SetInterior(node.Axis, childLinkFor(left, globalLocalIndex, label), childLinkFor(right, globalLocalIndex, label))
	}

	cutByMesh := map[uint64]*treelet.Mesh{}
	triRemapByMesh := map[uint64]map[uint32]uint32{}
	meshIDByOrigMesh := map[uint32]uint64{}

	for i, n := range members {
		node := &nodes[n]
		if !node.IsLeaf() {
			continue
		}
		first, count := node.Primitives()
		offset := uint32(len(t.Primitives))
		for k := uint32(0); k < count; k++ {
			p := prims[first+k]
			switch p.Kind {
			case ScenePrimTriangle:
				mesh := sc.Meshes[p.MeshIndex]
				matID := resolveMaterialID(mesh.MaterialIndex[p.TriIndex], p.TriIndex, cutReassign)
				matKey := materialKeyByID[matID]
				areaLight := areaLightID[[2]uint32{p.MeshIndex, p.TriIndex}]

				meshID, ok := meshIDByOrigMesh[p.MeshIndex]
				if !ok {
					meshID = *nextMeshID
					*nextMeshID++
					meshIDByOrigMesh[p.MeshIndex] = meshID
				}
				newTri, _ := ensureCutTriangle(cutByMesh, triRemapByMesh, meshID, mesh, p.TriIndex, matKey, areaLight, xfmFor(p))
				t.Primitives = append(t.Primitives, treelet.Primitive{
					Kind:        treelet.PrimTriangle,
					MeshID:      meshID,
					TriIndex:    newTri,
					Material:    matKey,
					AreaLightID: areaLight,
				})
			case ScenePrimInstance:
				inst := sc.Instances[p.InstanceIndex]
				if plan.copyable[p.InstanceIndex] {
					rootIdx := spliceIncludedInstance(t, plan, sc, inst, cutByMesh, triRemapByMesh, materialKeyByID, areaLightID, cutReassign, nextMeshID)
					t.Primitives = append(t.Primitives, treelet.Primitive{
						Kind:              treelet.PrimIncludedInstance,
						IncludedNodeIndex: rootIdx,
					})
				} else {
					idx := uint32(len(t.Primitives))
					t.Primitives = append(t.Primitives, treelet.Primitive{
						Kind:        treelet.PrimPlaceholder,
						InstanceRef: externalRefByMesh[inst.MeshIndex],
						StartXfm:    inst.StartTransform,
						EndXfm:      inst.EndTransform,
						StartTime:   inst.StartTime,
						EndTime:     inst.EndTime,
					})
					t.MarkUnfinishedTransformed(idx)
				}
			}
		}
		t.Nodes[i].SetLeaf(offset, count)
	}

	for meshID, mesh := range cutByMesh {
		t.Meshes[meshID] = mesh
	}

	return t, probability
}

// spliceIncludedInstance appends inst's mesh's own local BVH directly into
// t's node and primitive arrays, transformed into world space at dump time
// (spec section 4.5 point 3's "inlined by value" case). It returns the
// index, within t.Nodes, of the spliced subtree's root, for the caller to
// record as the owning leaf's PrimIncludedInstance.IncludedNodeIndex.
//
// Splicing bakes inst's transform in once and for all: treelet.PrimIncludedInstance
// carries no transform of its own, since the traverser applies none when it
// descends into an included subtree (trace.Traverser.closestHitLocal).
func spliceIncludedInstance(
	t *treelet.Treelet,
	plan *instancePlan,
	sc *scenegraph.SceneContext,
	inst *scenegraph.Instance,
	cutByMesh map[uint64]*treelet.Mesh,
	triRemapByMesh map[uint64]map[uint32]uint32,
	materialKeyByID map[uint32]treelet.MaterialKey,
	areaLightID map[[2]uint32]uint32,
	cutReassign map[uint32]map[uint32]uint32,
	nextMeshID *uint64,
) uint32 {
	local := plan.localBVH[inst.MeshIndex]
	xfm := inst.StartTransform
	mesh := sc.Meshes[inst.MeshIndex]

	base := uint32(len(t.Nodes))
	t.Nodes = append(t.Nodes, make([]treelet.TreeletNode, len(local.nodes))...)

	meshID := *nextMeshID
	*nextMeshID++

	for i, n := range local.nodes {
		n.OffsetChildren(int32(base))
		tn := &t.Nodes[base+uint32(i)]
		tn.Bounds = transformBounds(n.Bounds(), xfm)
		if n.IsLeaf() {
			first, count := n.Primitives()
			offset := uint32(len(t.Primitives))
			for k := uint32(0); k < count; k++ {
				p := local.prims[first+k]
				origMatID := mesh.MaterialIndex[p.TriIndex]
				matID := resolveMaterialID(origMatID, p.TriIndex, cutReassign)
				matKey := materialKeyByID[matID]
				areaLight := areaLightID[[2]uint32{inst.MeshIndex, p.TriIndex}]
				newTri, _ := ensureCutTriangle(cutByMesh, triRemapByMesh, meshID, mesh, p.TriIndex, matKey, areaLight, &xfm)
				t.Primitives = append(t.Primitives, treelet.Primitive{
					Kind:        treelet.PrimTriangle,
					MeshID:      meshID,
					TriIndex:    newTri,
					Material:    matKey,
					AreaLightID: areaLight,
				})
			}
			tn.SetLeaf(offset, count)
		} else {
			left, right := n.Children()
			tn.SetInterior(n.Axis, treelet.ChildLink{ChildTreelet: uint16(t.ID), ChildNode: left}, treelet.ChildLink{ChildTreelet: uint16(t.ID), ChildNode: right})
		}
	}

	return base
}

// resolveMaterialID returns the material id a triangle actually resolves
// to: either origMatID itself, or, if origMatID was cut into per-face
// partitions (spec section 4.5 point 1), the partition owning triIndex.
// Ptex face ids are assumed to align 1:1 with the triangle index of the
// mesh(es) referencing the cut material (DESIGN.md, Open Question
// decisions); triIndex not covered by any partition (a mesh using origMatID
// that predates the cut's face graph) keeps resolving to origMatID.
func resolveMaterialID(origMatID, triIndex uint32, cutReassign map[uint32]map[uint32]uint32) uint32 {
	byTri, ok := cutReassign[origMatID]
	if !ok {
		return origMatID
	}
	if newID, ok := byTri[triIndex]; ok {
		return newID
	}
	return origMatID
}

// ensureCutTriangle lazily cuts origMesh into cutByMesh[meshID] the first
// time any of its triangles is requested, then returns the new index for
// triIndex (spec section 4.5, point 3). xfm, when non-nil, is baked into
// the copied vertex positions and normals (normals via its inverse
// transpose); nil leaves the triangle in origMesh's own object space, for
// the once-dumped external-reference case where the referencing instance
// supplies the transform at traversal time instead.
func ensureCutTriangle(
	cutByMesh map[uint64]*treelet.Mesh,
	triRemapByMesh map[uint64]map[uint32]uint32,
	meshID uint64,
	origMesh *scenegraph.Mesh,
	triIndex uint32,
	matKey treelet.MaterialKey,
	areaLight uint32,
	xfm *types.Mat4,
) (uint32, bool) {
	key := meshID
	mesh, ok := cutByMesh[key]
	if !ok {
		mesh = &treelet.Mesh{
			MeshID:     meshID,
			Material:   matKey,
			AreaLight:  areaLight,
			HasNormals: origMesh.HasNormals,
			HasUVs:     origMesh.HasUVs,
		}
		cutByMesh[key] = mesh
		triRemapByMesh[key] = map[uint32]uint32{}
	}
	remap := triRemapByMesh[key]
	if newTri, ok := remap[triIndex]; ok {
		return newTri, true
	}

	var normalXfm types.Mat4
	if xfm != nil && origMesh.HasNormals {
		normalXfm = xfm.Inv().Transpose()
	}

	vertexRemap := map[uint32]uint32{}
	remapVertex := func(origIdx uint32) uint32 {
		if idx, ok := vertexRemap[origIdx]; ok {
			return idx
		}
		idx := uint32(len(mesh.Vertices))
		vertexRemap[origIdx] = idx

		v := origMesh.Vertices[origIdx]
		if xfm != nil {
			v = xfm.MulPoint(v)
		}
		mesh.Vertices = append(mesh.Vertices, v)

		if origMesh.HasNormals {
			n := origMesh.Normals[origIdx]
			if xfm != nil {
				n = normalXfm.MulDir(n).Normalize()
			}
			mesh.Normals = append(mesh.Normals, n)
		}
		if origMesh.HasUVs {
			mesh.UVs = append(mesh.UVs, origMesh.UVs[origIdx])
		}
		return idx
	}
	base := triIndex * 3
	for k := uint32(0); k < 3; k++ {
		mesh.Indices = append(mesh.Indices, remapVertex(origMesh.Indices[base+k]))
	}
	newTri := uint32(len(mesh.Indices)/3 - 1)
	remap[triIndex] = newTri
	return newTri, false
}

// childLinkFor resolves a flat-BVH child index into a treelet.ChildLink:
// the child's own treelet id, plus its final local node index within that
// treelet's depth-first-ordered Nodes array, whether or not that matches
// the parent's own treelet (spec section 3, invariant 3).
func childLinkFor(child uint32, globalLocalIndex map[uint32]uint32, label []uint32) treelet.ChildLink {
	return treelet.ChildLink{ChildTreelet: uint16(label[child]), ChildNode: globalLocalIndex[child]}
}

// packMaterials builds every material treelet up front so geometry
// treelets can resolve a scene material index straight to its final
// treelet.MaterialKey (spec section 4.5, points 1 and 3). Material treelet
// ids continue immediately after the geometry treelet id range (including
// any once-dumped shared-mesh sub-BVH treelets) so no two ranges collide.
//
// An oversized material's CutOversizedMaterials partitions replace it
// outright: each partition is minted as its own MaterialAsset sharing the
// original material's expression tree, and the returned cutReassign map
// lets buildGeometryTreelet resolve a cut triangle straight to its owning
// partition instead of the now-removed original material id.
func (d *Dumper) packMaterials(sc *scenegraph.SceneContext, textures map[string]*texture.Texture, numGeometryTreelets uint32) (map[uint32]treelet.MaterialKey, map[uint32]map[uint32]uint32, []*treelet.Treelet) {
	assets := make([]MaterialAsset, len(sc.Materials))
	for i, expr := range sc.Materials {
		assets[i] = MaterialAsset{ID: uint32(i), Expr: expr}
	}

	nextID := nextIDCounter(uint32(len(sc.Materials)))
	cuts := CutOversizedMaterials(assets, textures, d.opts.materialBudget(), nextID)

	cutReassign := map[uint32]map[uint32]uint32{}
	if len(cuts) > 0 {
		origByID := make(map[uint32]MaterialAsset, len(assets))
		for _, a := range assets {
			origByID[a.ID] = a
		}

		cutOrig := make(map[uint32]bool, len(cuts))
		for _, cut := range cuts {
			cutOrig[cut.OrigMaterialID] = true
			byTri := make(map[uint32]uint32, len(cut.Partitions))
			for _, part := range cut.Partitions {
				assets = append(assets, MaterialAsset{
					ID:   part.NewMaterialID,
					Expr: origByID[cut.OrigMaterialID].Expr,
				})
				for _, face := range part.Faces.Core {
					byTri[uint32(face)] = part.NewMaterialID
				}
			}
			cutReassign[cut.OrigMaterialID] = byTri
		}

		// Drop the cut originals: a partitioned material is replaced
		// entirely by its partitions, so nothing should still resolve
		// straight to the uncut material id.
		kept := make([]MaterialAsset, 0, len(assets))
		for _, a := range assets {
			if cutOrig[a.ID] {
				continue
			}
			kept = append(kept, a)
		}
		assets = kept
	}

	groups := GroupMaterialsByTextureKey(assets)
	nextTreeletID := nextIDCounter(numGeometryTreelets)
	treelets := PackMaterialTreelets(groups, textures, d.opts.MaxTreeletBytes, nextTreeletID)

	keyByID := map[uint32]treelet.MaterialKey{}
	for _, t := range treelets {
		for id := range t.Materials {
			keyByID[id] = treelet.MaterialKey{Treelet: t.ID, ID: id}
		}
	}
	return keyByID, cutReassign, treelets
}

func nextIDCounter(start uint32) func() uint32 {
	next := start
	return func() uint32 {
		id := next
		next++
		return id
	}
}

// treeletBytesApprox reports a materialized treelet's size for the HEADER
// record's total_treelet_bytes field: the length of the whole encoded
// record, so it always matches what Encode actually writes.
func treeletBytesApprox(t *treelet.Treelet) uint64 {
	return uint64(len(treelet.Encode(t)))
}

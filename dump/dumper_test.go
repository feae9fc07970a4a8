package dump

import (
	"testing"

	"github.com/achilleasa/treelet/flatbvh"
	"github.com/achilleasa/treelet/graph"
	"github.com/achilleasa/treelet/material"
	"github.com/achilleasa/treelet/partition"
	"github.com/achilleasa/treelet/scenegraph"
	"github.com/achilleasa/treelet/texture"
	"github.com/achilleasa/treelet/treelet"
	"github.com/achilleasa/treelet/types"
)

func makeGridMesh(n int) *scenegraph.Mesh {
	mesh := scenegraph.NewMesh("grid")
	for i := 0; i < n; i++ {
		base := float32(i) * 10
		mesh.Vertices = append(mesh.Vertices,
			types.Vec3{base, 0, 0},
			types.Vec3{base + 1, 0, 0},
			types.Vec3{base, 1, 0},
		)
		off := uint32(i * 3)
		mesh.Indices = append(mesh.Indices, off, off+1, off+2)
		mesh.MaterialIndex = append(mesh.MaterialIndex, 0)
	}
	return mesh
}

func makeDumperTestScene(numTriangles int) *scenegraph.SceneContext {
	sc := scenegraph.NewSceneContext()
	sc.Meshes = append(sc.Meshes, makeGridMesh(numTriangles))
	sc.Instances = append(sc.Instances, &scenegraph.Instance{
		MeshIndex:      0,
		StartTransform: types.Ident4(),
		EndTransform:   types.Ident4(),
	})
	sc.Materials = []material.ExprNode{
		material.BxdfNode{
			Type: material.BxdfDiffuse,
			Parameters: material.BxdfParameterList{
				{Name: material.ParamReflectance, Value: material.Vec3Node{0.5, 0.5, 0.5}},
			},
		},
	}
	return sc
}

func TestDumperRunCoversEveryTriangleExactlyOnce(t *testing.T) {
	sc := makeDumperTestScene(20)
	d := NewDumper(Options{
		Algorithm:       partition.Topological,
		Direction:       graph.Direction(0),
		EdgePolicy:      graph.SendCheck,
		MaxNodePrims:    2,
		SplitMethod:     flatbvh.SplitMiddle,
		MaxTreeletBytes: 4096,
	})

	result, err := d.Run(sc, map[string]*texture.Texture{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seen := map[uint64]map[uint32]bool{}
	var triangleCount int
	for _, tl := range result.GeometryTreelets {
		for _, p := range tl.Primitives {
			if p.Kind != treelet.PrimTriangle {
				continue
			}
			if seen[p.MeshID] == nil {
				seen[p.MeshID] = map[uint32]bool{}
			}
			if seen[p.MeshID][p.TriIndex] {
				t.Fatalf("triangle (mesh %d, tri %d) dumped more than once", p.MeshID, p.TriIndex)
			}
			seen[p.MeshID][p.TriIndex] = true
			triangleCount++
		}
		if err := tl.CheckInvariants(); err != nil {
			t.Fatalf("treelet %d failed invariant check: %v", tl.ID, err)
		}
	}
	if triangleCount != 20 {
		t.Fatalf("expected 20 triangles dumped across all treelets, got %d", triangleCount)
	}
}

func TestDumperRunChildLinksResolveToValidNodes(t *testing.T) {
	sc := makeDumperTestScene(20)
	d := NewDumper(Options{
		Algorithm:       partition.Topological,
		Direction:       graph.Direction(0),
		EdgePolicy:      graph.SendCheck,
		MaxNodePrims:    2,
		SplitMethod:     flatbvh.SplitMiddle,
		MaxTreeletBytes: 2048,
	})

	result, err := d.Run(sc, map[string]*texture.Texture{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	byID := map[uint32]*treelet.Treelet{}
	for _, tl := range result.GeometryTreelets {
		byID[tl.ID] = tl
	}

	for _, tl := range result.GeometryTreelets {
		for i, n := range tl.Nodes {
			if n.IsLeaf() {
				continue
			}
			for _, link := range n.Children {
				target, ok := byID[uint32(link.ChildTreelet)]
				if !ok {
					t.Fatalf("treelet %d node %d points at unknown treelet %d", tl.ID, i, link.ChildTreelet)
				}
				if link.ChildNode >= uint32(len(target.Nodes)) {
					t.Fatalf("treelet %d node %d child link %+v out of range for treelet %d (has %d nodes)", tl.ID, i, link, target.ID, len(target.Nodes))
				}
			}
		}
	}
}

func TestDumperRunAssignsResolvableMaterialKeys(t *testing.T) {
	sc := makeDumperTestScene(10)
	d := NewDumper(Options{
		Algorithm:       partition.Topological,
		Direction:       graph.Direction(0),
		EdgePolicy:      graph.SendCheck,
		MaxNodePrims:    2,
		SplitMethod:     flatbvh.SplitMiddle,
		MaxTreeletBytes: 4096,
	})

	result, err := d.Run(sc, map[string]*texture.Texture{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	materialTreeletsByID := map[uint32]*treelet.Treelet{}
	for _, tl := range result.MaterialTreelets {
		materialTreeletsByID[tl.ID] = tl
	}
	if len(materialTreeletsByID) == 0 {
		t.Fatalf("expected at least one material treelet")
	}

	for _, tl := range result.GeometryTreelets {
		for _, p := range tl.Primitives {
			if p.Kind != treelet.PrimTriangle {
				continue
			}
			matTreelet, ok := materialTreeletsByID[p.Material.Treelet]
			if !ok {
				t.Fatalf("triangle references unknown material treelet %d", p.Material.Treelet)
			}
			if _, ok := matTreelet.Materials[p.Material.ID]; !ok {
				t.Fatalf("triangle references missing material id %d in treelet %d", p.Material.ID, matTreelet.ID)
			}
		}
	}
}

// makeSharedMeshScene returns a scene where a single small mesh is placed by
// two instances: instanceCopyable keeps a static transform (inlineable by
// value), instanceExternal carries a motion-blurred transform, which forces
// the shared mesh's sub-BVH to be dumped once and referenced externally
// (scenegraph.Instance's doc comment; dump.instancePlan.inlineable).
func makeSharedMeshScene() *scenegraph.SceneContext {
	sc := scenegraph.NewSceneContext()
	sc.Meshes = append(sc.Meshes, makeGridMesh(4))
	sc.Instances = append(sc.Instances,
		&scenegraph.Instance{
			MeshIndex:      0,
			StartTransform: types.Translate4(types.Vec3{0, 0, 0}),
			EndTransform:   types.Translate4(types.Vec3{0, 0, 0}),
		},
		&scenegraph.Instance{
			MeshIndex:      0,
			StartTransform: types.Translate4(types.Vec3{10, 0, 0}),
			EndTransform:   types.Translate4(types.Vec3{10, 5, 0}),
			StartTime:      0,
			EndTime:        1,
		},
	)
	sc.Materials = []material.ExprNode{
		material.BxdfNode{
			Type: material.BxdfDiffuse,
			Parameters: material.BxdfParameterList{
				{Name: material.ParamReflectance, Value: material.Vec3Node{0.5, 0.5, 0.5}},
			},
		},
	}
	return sc
}

func TestDumperRunSplicesCopyableInstanceByValue(t *testing.T) {
	sc := makeSharedMeshScene()
	d := NewDumper(Options{
		Algorithm:       partition.Topological,
		Direction:       graph.Direction(0),
		EdgePolicy:      graph.SendCheck,
		MaxNodePrims:    2,
		SplitMethod:     flatbvh.SplitMiddle,
		MaxTreeletBytes: 4096,
	})

	result, err := d.Run(sc, map[string]*texture.Texture{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var includedCount, placeholderCount int
	for _, tl := range result.GeometryTreelets {
		if err := tl.CheckInvariants(); err != nil {
			t.Fatalf("treelet %d failed invariant check: %v", tl.ID, err)
		}
		for _, p := range tl.Primitives {
			switch p.Kind {
			case treelet.PrimIncludedInstance:
				includedCount++
				if int(p.IncludedNodeIndex) >= len(tl.Nodes) {
					t.Fatalf("treelet %d: included node index %d out of range (%d nodes)", tl.ID, p.IncludedNodeIndex, len(tl.Nodes))
				}
			case treelet.PrimPlaceholder:
				placeholderCount++
				if p.StartXfm != sc.Instances[1].StartTransform || p.EndXfm != sc.Instances[1].EndTransform {
					t.Fatalf("treelet %d: placeholder transform window does not match the motion-blurred instance", tl.ID)
				}
			}
		}
	}
	if includedCount != 1 {
		t.Fatalf("expected exactly one spliced PrimIncludedInstance for the static instance, got %d", includedCount)
	}
	if placeholderCount != 1 {
		t.Fatalf("expected exactly one PrimPlaceholder for the motion-blurred instance, got %d", placeholderCount)
	}

	// The shared mesh's own sub-BVH must have been dumped exactly once,
	// beyond the top-level treelet range, for the placeholder to resolve
	// against once finalized (spec section 4.5 point 3).
	var externalGeomTreelets int
	for _, tl := range result.GeometryTreelets {
		if !tl.IsMaterialTreelet() && len(tl.UnfinishedTransformed()) == 0 && includesOnlyTriangles(tl) {
			externalGeomTreelets++
		}
	}
	if externalGeomTreelets == 0 {
		t.Fatalf("expected at least one once-dumped, externally-referenced geometry treelet")
	}
}

func includesOnlyTriangles(tl *treelet.Treelet) bool {
	if len(tl.Primitives) == 0 {
		return false
	}
	for _, p := range tl.Primitives {
		if p.Kind != treelet.PrimTriangle {
			return false
		}
	}
	return true
}

func TestDumperRunNonCopyableInstanceLeavesUnfinishedPlaceholder(t *testing.T) {
	sc := makeSharedMeshScene()
	d := NewDumper(Options{
		Algorithm:       partition.Topological,
		Direction:       graph.Direction(0),
		EdgePolicy:      graph.SendCheck,
		MaxNodePrims:    2,
		SplitMethod:     flatbvh.SplitMiddle,
		MaxTreeletBytes: 4096,
	})

	result, err := d.Run(sc, map[string]*texture.Texture{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var unfinished int
	for _, tl := range result.GeometryTreelets {
		unfinished += len(tl.UnfinishedTransformed())
	}
	if unfinished != 1 {
		t.Fatalf("expected exactly one treelet slot marked unfinished-transformed, got %d", unfinished)
	}
}

func makeOversizedMaterialScene() *scenegraph.SceneContext {
	sc := scenegraph.NewSceneContext()
	sc.Meshes = append(sc.Meshes, makeGridMesh(8))
	sc.Instances = append(sc.Instances, &scenegraph.Instance{
		MeshIndex:      0,
		StartTransform: types.Ident4(),
		EndTransform:   types.Ident4(),
	})

	for i := range sc.Meshes[0].MaterialIndex {
		sc.Meshes[0].MaterialIndex[i] = 0
	}
	sc.Materials = []material.ExprNode{
		material.BxdfNode{
			Type: material.BxdfDiffuse,
			Parameters: material.BxdfParameterList{
				{Name: material.ParamReflectance, Value: material.TextureNode("big.ptx")},
			},
		},
	}
	return sc
}

func TestDumperRunResolvesCutMaterialsPerTriangle(t *testing.T) {
	sc := makeOversizedMaterialScene()
	neighbors := make([][4]int32, 8)
	for i := range neighbors {
		neighbors[i] = [4]int32{-1, -1, -1, -1}
		if i > 0 {
			neighbors[i][0] = int32(i - 1)
		}
		if i < len(neighbors)-1 {
			neighbors[i][1] = int32(i + 1)
		}
	}
	textures := map[string]*texture.Texture{
		"big.ptx": {Data: make([]byte, 800), Faces: texture.NewFaceGraph(neighbors)},
	}

	d := NewDumper(Options{
		Algorithm:              partition.Topological,
		Direction:              graph.Direction(0),
		EdgePolicy:             graph.SendCheck,
		MaxNodePrims:           2,
		SplitMethod:            flatbvh.SplitMiddle,
		MaxTreeletBytes:        400,
		MaterialBudgetFraction: 1,
	})

	result, err := d.Run(sc, textures)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	materialTreeletsByID := map[uint32]*treelet.Treelet{}
	for _, tl := range result.MaterialTreelets {
		materialTreeletsByID[tl.ID] = tl
	}
	if len(materialTreeletsByID) == 0 {
		t.Fatalf("expected at least one material treelet")
	}

	matIDs := map[uint32]bool{}
	for _, tl := range result.GeometryTreelets {
		for _, p := range tl.Primitives {
			if p.Kind != treelet.PrimTriangle {
				continue
			}
			matTreelet, ok := materialTreeletsByID[p.Material.Treelet]
			if !ok {
				t.Fatalf("triangle references unknown material treelet %d", p.Material.Treelet)
			}
			if _, ok := matTreelet.Materials[p.Material.ID]; !ok {
				t.Fatalf("triangle references missing material id %d in treelet %d", p.Material.ID, matTreelet.ID)
			}
			matIDs[p.Material.ID] = true
		}
	}
	if len(matIDs) < 2 {
		t.Fatalf("expected triangles to resolve to at least 2 distinct cut-partition materials, got %d", len(matIDs))
	}
}

func TestDumperRunHeaderBoundsCoverAllGeometry(t *testing.T) {
	sc := makeDumperTestScene(5)
	d := NewDumper(Options{
		Algorithm:       partition.Topological,
		Direction:       graph.Direction(0),
		EdgePolicy:      graph.SendCheck,
		MaxNodePrims:    2,
		SplitMethod:     flatbvh.SplitMiddle,
		MaxTreeletBytes: 4096,
	})

	result, err := d.Run(sc, map[string]*texture.Texture{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := sc.Bounds()
	if result.Header.Bounds != want {
		t.Fatalf("expected header bounds %+v to match scene bounds, got %+v", want, result.Header.Bounds)
	}
	if result.Header.TotalTreeletBytes == 0 {
		t.Fatalf("expected a non-zero total treelet byte count")
	}
}

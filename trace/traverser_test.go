package trace

import (
	"fmt"
	"testing"

	"github.com/achilleasa/treelet/config"
	"github.com/achilleasa/treelet/residency"
	"github.com/achilleasa/treelet/treelet"
	"github.com/achilleasa/treelet/types"
)

// fakeLoader serves precomputed treelet bytes, mirroring the fixture used
// by residency's own tests.
type fakeLoader struct {
	data map[uint32][]byte
}

func newFakeLoader() *fakeLoader { return &fakeLoader{data: map[uint32][]byte{}} }

func (f *fakeLoader) put(t *treelet.Treelet) { f.data[t.ID] = treelet.Encode(t) }

func (f *fakeLoader) Load(id uint32) ([]byte, error) {
	data, ok := f.data[id]
	if !ok {
		return nil, fmt.Errorf("no fixture for treelet %d", id)
	}
	return data, nil
}

func bigBounds() types.AABB {
	return types.AABB{Min: types.Vec3{-10, -10, -10}, Max: types.Vec3{10, 10, 10}}
}

func triangleMesh(meshID uint64, z float32) *treelet.Mesh {
	return &treelet.Mesh{
		MeshID:   meshID,
		Vertices: []types.Vec3{{0, 0, z}, {1, 0, z}, {0, 1, z}},
		Indices:  []uint32{0, 1, 2},
	}
}

// makeTwoTriangleTreelet builds a single-leaf treelet holding two triangles
// on parallel planes, so a ray fired through both resolves a genuine
// closest-hit choice.
func makeTwoTriangleTreelet(id uint32) *treelet.Treelet {
	t := treelet.NewTreelet(id)
	t.Nodes = []treelet.TreeletNode{{Bounds: bigBounds()}}
	t.Nodes[0].SetLeaf(0, 2)
	t.Primitives = []treelet.Primitive{
		{Kind: treelet.PrimTriangle, MeshID: 0, TriIndex: 0, Material: treelet.MaterialKey{Treelet: id, ID: 1}},
		{Kind: treelet.PrimTriangle, MeshID: 1, TriIndex: 0, Material: treelet.MaterialKey{Treelet: id, ID: 2}},
	}
	t.Meshes[0] = triangleMesh(0, 0)
	t.Meshes[1] = triangleMesh(1, -3)
	return t
}

func TestIntersectPicksClosestHit(t *testing.T) {
	loader := newFakeLoader()
	loader.put(makeTwoTriangleTreelet(3))
	m, err := residency.NewManager(config.Default(), loader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tr := NewTraverser(m, false)

	ray := types.Ray{Origin: types.Vec3{0.2, 0.2, 5}, Dir: types.Vec3{0, 0, -1}, TMin: 0, TMax: 100}
	hit, err := tr.Intersect(ray, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hit == nil {
		t.Fatalf("expected a hit")
	}
	if hit.MeshID != 0 || hit.T != 5 {
		t.Fatalf("expected closest hit on mesh 0 at t=5, got mesh %d t=%v", hit.MeshID, hit.T)
	}
}

func TestIntersectReturnsNilOnMiss(t *testing.T) {
	loader := newFakeLoader()
	loader.put(makeTwoTriangleTreelet(3))
	m, err := residency.NewManager(config.Default(), loader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tr := NewTraverser(m, false)

	ray := types.Ray{Origin: types.Vec3{5, 5, 5}, Dir: types.Vec3{0, 0, -1}, TMin: 0, TMax: 100}
	hit, err := tr.Intersect(ray, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hit != nil {
		t.Fatalf("expected no hit, got %+v", hit)
	}
}

func TestIntersectPShortCircuitsOnFirstHit(t *testing.T) {
	loader := newFakeLoader()
	loader.put(makeTwoTriangleTreelet(3))
	m, err := residency.NewManager(config.Default(), loader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tr := NewTraverser(m, false)

	specs := []struct {
		name    string
		ray     types.Ray
		wantHit bool
	}{
		{"through both triangles", types.Ray{Origin: types.Vec3{0.2, 0.2, 5}, Dir: types.Vec3{0, 0, -1}, TMin: 0, TMax: 100}, true},
		{"misses entirely", types.Ray{Origin: types.Vec3{5, 5, 5}, Dir: types.Vec3{0, 0, -1}, TMin: 0, TMax: 100}, false},
	}
	for i, s := range specs {
		got, err := tr.IntersectP(s.ray, 3)
		if err != nil {
			t.Fatalf("[spec %d: %s] unexpected error: %v", i, s.name, err)
		}
		if got != s.wantHit {
			t.Fatalf("[spec %d: %s] expected hit=%v, got %v", i, s.name, s.wantHit, got)
		}
	}
}

// makeCrossTreeletFixture builds two treelets: A (id 10) whose root is an
// interior node with one child crossing into B (id 11, holding a triangle)
// and one child staying local to an empty leaf, and the ray direction is
// chosen so the crossing child is visited first (spec section 4.7,
// "cross-treelet child links trigger load_treelet").
func makeCrossTreeletFixture() (a, b *treelet.Treelet) {
	b = treelet.NewTreelet(11)
	b.Nodes = []treelet.TreeletNode{{Bounds: bigBounds()}}
	b.Nodes[0].SetLeaf(0, 1)
	b.Primitives = []treelet.Primitive{
		{Kind: treelet.PrimTriangle, MeshID: 0, TriIndex: 0, Material: treelet.MaterialKey{Treelet: 11, ID: 1}},
	}
	b.Meshes[0] = triangleMesh(0, 0)

	a = treelet.NewTreelet(10)
	a.Nodes = []treelet.TreeletNode{
		{Bounds: bigBounds(), Axis: types.AxisX},
		{Bounds: types.AABB{Min: types.Vec3{-1, -1, -1}, Max: types.Vec3{1, 1, 1}}},
	}
	a.Nodes[0].SetInterior(types.AxisX,
		treelet.ChildLink{ChildTreelet: 11, ChildNode: 0},
		treelet.ChildLink{ChildTreelet: 10, ChildNode: 1},
	)
	a.Nodes[1].SetLeaf(0, 0)
	return a, b
}

func TestIntersectFollowsCrossTreeletChildLink(t *testing.T) {
	loader := newFakeLoader()
	a, b := makeCrossTreeletFixture()
	loader.put(a)
	loader.put(b)
	m, err := residency.NewManager(config.Default(), loader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tr := NewTraverser(m, false)

	ray := types.Ray{Origin: types.Vec3{0.2, 0.2, 5}, Dir: types.Vec3{0, 0, -1}, TMin: 0, TMax: 100}
	hit, err := tr.Intersect(ray, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hit == nil {
		t.Fatalf("expected a hit after crossing into treelet 11")
	}
	if hit.Treelet != 11 {
		t.Fatalf("expected the hit to be recorded against treelet 11, got %d", hit.Treelet)
	}
	if !m.Resident(11) {
		t.Fatalf("expected treelet 11 to have been loaded as a side effect of crossing into it")
	}
}

// runTrace drives a partial trace to completion, loading whichever
// treelet each suspension names before resuming (spec section 5: the
// caller, not the traverser, resolves a crossing).
func runTrace(t *testing.T, tr *Traverser, m *residency.Manager, rs *RayState) {
	for {
		id, ok := rs.CurrentTreelet()
		if !ok {
			return
		}
		tl, err := m.LoadTreelet(id)
		if err != nil {
			t.Fatalf("unexpected error loading treelet %d: %v", id, err)
		}
		if err := tr.Trace(rs, tl); err != nil {
			t.Fatalf("unexpected error tracing treelet %d: %v", id, err)
		}
	}
}

func TestTraceSuspendsAtTreeletCrossings(t *testing.T) {
	loader := newFakeLoader()
	a, b := makeCrossTreeletFixture()
	loader.put(a)
	loader.put(b)
	m, err := residency.NewManager(config.Default(), loader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tr := NewTraverser(m, false)

	ray := types.Ray{Origin: types.Vec3{0.2, 0.2, 5}, Dir: types.Vec3{0, 0, -1}, TMin: 0, TMax: 100}
	rs := NewRayState(ray, 10)

	tlA, err := m.LoadTreelet(10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tr.Trace(rs, tlA); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	id, ok := rs.CurrentTreelet()
	if !ok || id != 11 {
		t.Fatalf("expected the trace to suspend naming treelet 11, got id=%d ok=%v", id, ok)
	}
	if rs.HasHit {
		t.Fatalf("did not expect a hit before crossing into treelet 11")
	}

	runTrace(t, tr, m, rs)

	if !rs.HasHit {
		t.Fatalf("expected a hit once the partial trace completed")
	}
}

func TestRootTreeletOctantSelection(t *testing.T) {
	roots := [8]uint32{0, 1, 2, 3, 4, 5, 6, 7}

	specs := []struct {
		name string
		dir  types.Vec3
		want uint32
	}{
		{"all negative", types.Vec3{-1, -1, -1}, 0},
		{"positive x only", types.Vec3{1, -1, -1}, 1},
		{"positive y only", types.Vec3{-1, 1, -1}, 2},
		{"positive z only", types.Vec3{-1, -1, 1}, 4},
		{"all positive", types.Vec3{1, 1, 1}, 7},
	}
	tr := NewTraverser(nil, true)
	for i, s := range specs {
		got := tr.RootTreelet(s.dir, roots)
		if got != s.want {
			t.Fatalf("[spec %d: %s] expected root %d, got %d", i, s.name, s.want, got)
		}
	}

	trNonDirectional := NewTraverser(nil, false)
	if got := trNonDirectional.RootTreelet(types.Vec3{1, 1, 1}, roots); got != roots[0] {
		t.Fatalf("expected non-directional traverser to always use root 0, got %d", got)
	}
}

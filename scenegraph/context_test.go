package scenegraph

import (
	"testing"

	"github.com/achilleasa/treelet/types"
)

func makeUnitQuadMesh() *Mesh {
	m := NewMesh("quad")
	m.Vertices = []types.Vec3{
		{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
	}
	m.Indices = []uint32{0, 1, 2, 0, 2, 3}
	m.MaterialIndex = []uint32{0, 0}
	return m
}

func TestMeshBoundsMatchesVertices(t *testing.T) {
	m := makeUnitQuadMesh()
	box := m.Bounds()
	if box.Min != (types.Vec3{0, 0, 0}) || box.Max != (types.Vec3{1, 1, 0}) {
		t.Fatalf("unexpected bounds: %+v", box)
	}
}

func TestMeshBoundsRecomputesAfterDirty(t *testing.T) {
	m := makeUnitQuadMesh()
	_ = m.Bounds()
	m.Vertices = append(m.Vertices, types.Vec3{5, 5, 5})
	m.Indices = append(m.Indices, 0, 1, 4)
	m.MarkBoundsDirty()

	box := m.Bounds()
	if box.Max != (types.Vec3{5, 5, 5}) {
		t.Fatalf("expected bounds to include new vertex, got %+v", box)
	}
}

func TestInstanceTransformAtInterpolatesBetweenEndpoints(t *testing.T) {
	start := types.Ident4()
	end := types.Ident4()
	end[3] = 10 // translate X by 10

	inst := &Instance{StartTransform: start, EndTransform: end, StartTime: 0, EndTime: 1}

	mid := inst.TransformAt(0.5)
	if mid[3] != 5 {
		t.Fatalf("expected midpoint translation 5, got %v", mid[3])
	}

	if inst.TransformAt(-1) != start {
		t.Fatalf("expected clamp to start transform before window")
	}
	if inst.TransformAt(2) != end {
		t.Fatalf("expected clamp to end transform after window")
	}
}

func TestInstanceBoundsUnionsStartAndEndWhenAnimated(t *testing.T) {
	mesh := makeUnitQuadMesh()
	start := types.Ident4()
	end := types.Ident4()
	end[3] = 10

	inst := &Instance{MeshIndex: 0, StartTransform: start, EndTransform: end, StartTime: 0, EndTime: 1}
	box := inst.Bounds(mesh)

	if box.Min[0] != 0 || box.Max[0] != 11 {
		t.Fatalf("expected bounds to span both endpoints, got %+v", box)
	}
}

func TestSceneContextBoundsCoversAllInstances(t *testing.T) {
	sc := NewSceneContext()
	sc.Meshes = []*Mesh{makeUnitQuadMesh()}
	sc.Instances = []*Instance{
		{MeshIndex: 0, StartTransform: types.Ident4(), EndTransform: types.Ident4()},
	}

	box := sc.Bounds()
	if box.Min != (types.Vec3{0, 0, 0}) || box.Max != (types.Vec3{1, 1, 0}) {
		t.Fatalf("unexpected scene bounds: %+v", box)
	}
}

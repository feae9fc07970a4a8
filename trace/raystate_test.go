package trace

import (
	"testing"

	"github.com/achilleasa/treelet/types"
)

func TestRayStateObjectRayIdentityVsTransformed(t *testing.T) {
	ray := types.Ray{Origin: types.Vec3{1, 2, 3}, Dir: types.Vec3{0, 0, -1}, TMin: 0, TMax: 10, Time: 0.5}
	rs := NewRayState(ray, 1)

	if got := rs.objectRay(false); got != ray {
		t.Fatalf("expected the untransformed object ray to equal the world ray unchanged, got %+v", got)
	}

	// Translate everything by (10, 0, 0): object space should see the ray
	// shifted back by the same amount.
	xfm := types.Ident4()
	xfm[3] = 10
	rs.RayTransform = xfm

	got := rs.objectRay(true)
	want := types.Vec3{-9, 2, 3}
	if got.Origin != want {
		t.Fatalf("expected object-space origin %+v, got %+v", want, got.Origin)
	}
	if got.Dir != ray.Dir {
		t.Fatalf("expected direction to be unaffected by a pure translation, got %+v", got.Dir)
	}
	if got.TMin != ray.TMin || got.TMax != ray.TMax || got.Time != ray.Time {
		t.Fatalf("expected TMin/TMax/Time to pass through unchanged, got %+v", got)
	}
}

func TestRayStateCurrentTreeletAndState(t *testing.T) {
	ray := types.Ray{Origin: types.Vec3{0, 0, 0}, Dir: types.Vec3{0, 0, -1}, TMin: 0, TMax: 10}
	rs := NewRayState(ray, 7)

	id, ok := rs.CurrentTreelet()
	if !ok || id != 7 {
		t.Fatalf("expected current treelet 7, got id=%d ok=%v", id, ok)
	}

	resident := func(treeletID uint32) bool { return treeletID == 7 }
	if got := rs.State(resident); got != Traversing {
		t.Fatalf("expected Traversing while the named treelet is resident, got %v", got)
	}

	notResident := func(treeletID uint32) bool { return false }
	if got := rs.State(notResident); got != Crossing {
		t.Fatalf("expected Crossing while the named treelet is not resident, got %v", got)
	}

	rs.pop()
	if got := rs.State(resident); got != Missed {
		t.Fatalf("expected Missed once the stack empties without a hit, got %v", got)
	}

	rs.HasHit = true
	if got := rs.State(resident); got != Hit {
		t.Fatalf("expected Hit once the stack empties with HasHit set, got %v", got)
	}
}

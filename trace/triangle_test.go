package trace

import (
	"testing"

	"github.com/achilleasa/treelet/types"
)

func TestIntersectTriangle(t *testing.T) {
	v0 := types.Vec3{0, 0, 0}
	v1 := types.Vec3{1, 0, 0}
	v2 := types.Vec3{0, 1, 0}

	specs := []struct {
		name    string
		ray     types.Ray
		wantHit bool
		wantT   float32
	}{
		{
			name:    "straight through the middle",
			ray:     types.Ray{Origin: types.Vec3{0.2, 0.2, 1}, Dir: types.Vec3{0, 0, -1}, TMin: 0, TMax: 100},
			wantHit: true,
			wantT:   1,
		},
		{
			name:    "misses outside the triangle",
			ray:     types.Ray{Origin: types.Vec3{2, 2, 1}, Dir: types.Vec3{0, 0, -1}, TMin: 0, TMax: 100},
			wantHit: false,
		},
		{
			name:    "parallel to the plane",
			ray:     types.Ray{Origin: types.Vec3{0.2, 0.2, 1}, Dir: types.Vec3{1, 0, 0}, TMin: 0, TMax: 100},
			wantHit: false,
		},
		{
			name:    "hit lies beyond TMax",
			ray:     types.Ray{Origin: types.Vec3{0.2, 0.2, 1}, Dir: types.Vec3{0, 0, -1}, TMin: 0, TMax: 0.5},
			wantHit: false,
		},
	}

	for i, s := range specs {
		tHit, ok := intersectTriangle(s.ray, v0, v1, v2)
		if ok != s.wantHit {
			t.Fatalf("[spec %d: %s] expected hit=%v, got %v", i, s.name, s.wantHit, ok)
		}
		if ok && tHit != s.wantT {
			t.Fatalf("[spec %d: %s] expected t=%v, got %v", i, s.name, s.wantT, tHit)
		}
	}
}

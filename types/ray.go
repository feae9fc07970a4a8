package types

// Ray is a world- or object-space ray segment: an origin, a (not
// necessarily normalized) direction, a valid parametric range
// [TMin, TMax], and the time sample used to interpolate animated
// transforms (spec section 4.7, "TransformAt(ray.time)").
type Ray struct {
	Origin Vec3
	Dir    Vec3
	TMin   float32
	TMax   float32
	Time   float32
}

// At returns the point at parameter t along the ray.
func (r Ray) At(t float32) Vec3 {
	return r.Origin.Add(r.Dir.Mul(t))
}

// invDir returns the componentwise reciprocal of r.Dir. Components of Dir
// that are exactly zero produce +/-Inf, which the slab test below relies on
// to treat a parallel-to-axis ray correctly without a branch.
func (r Ray) invDir() Vec3 {
	return Vec3{1 / r.Dir[0], 1 / r.Dir[1], 1 / r.Dir[2]}
}

// IntersectRay reports whether r passes through a within [r.TMin, r.TMax],
// using the slab test (spec section 9 grounds traversal on the teacher's
// source accelerator, which runs the same test per BVH node before
// descending into children).
func (a AABB) IntersectRay(r Ray) bool {
	inv := r.invDir()
	tMin, tMax := r.TMin, r.TMax

	for axis := 0; axis < 3; axis++ {
		t0 := (a.Min[axis] - r.Origin[axis]) * inv[axis]
		t1 := (a.Max[axis] - r.Origin[axis]) * inv[axis]
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		if t0 > tMin {
			tMin = t0
		}
		if t1 < tMax {
			tMax = t1
		}
		if tMin > tMax {
			return false
		}
	}
	return true
}

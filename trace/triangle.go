package trace

import "github.com/achilleasa/treelet/types"

// triangleEpsilon guards the Moller-Trumbore determinant test against
// rays that are (near-)parallel to the triangle's plane.
const triangleEpsilon = 1e-8

// intersectTriangle runs the Moller-Trumbore ray/triangle test and reports
// the hit distance along ray within [ray.TMin, ray.TMax], if any. No such
// routine exists anywhere in the source renderer, which evaluates
// intersections on the GPU via OpenCL kernels; this is a direct CPU
// transliteration of the standard algorithm.
func intersectTriangle(ray types.Ray, v0, v1, v2 types.Vec3) (t float32, ok bool) {
	e1 := v1.Sub(v0)
	e2 := v2.Sub(v0)

	pvec := ray.Dir.Cross(e2)
	det := e1.Dot(pvec)
	if det > -triangleEpsilon && det < triangleEpsilon {
		return 0, false
	}
	invDet := 1 / det

	tvec := ray.Origin.Sub(v0)
	u := tvec.Dot(pvec) * invDet
	if u < 0 || u > 1 {
		return 0, false
	}

	qvec := tvec.Cross(e1)
	v := ray.Dir.Dot(qvec) * invDet
	if v < 0 || u+v > 1 {
		return 0, false
	}

	hitT := e2.Dot(qvec) * invDet
	if hitT < ray.TMin || hitT > ray.TMax {
		return 0, false
	}
	return hitT, true
}

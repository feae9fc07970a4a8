package trace

import (
	"github.com/achilleasa/treelet/treelet"
	"github.com/achilleasa/treelet/types"
)

// maxStackDepth bounds a RayState's partial-traversal stack, matching the
// fixed stack size the teacher's source accelerator traverses a single
// BVH with (spec section 4.7, "a fixed stack of size 64";
// _examples/original_source/src/include/pbrt/raystate.h's
// `TreeletNode toVisit[64]`).
const maxStackDepth = 64

// Frame names one pending node to visit: a treelet, a node index within
// it, the primitive offset to resume a leaf at, and whether the ray is
// currently expressed in that frame's (possibly transformed) object space
// (spec section 4.7's partial-trace frame, grounded on raystate.h's
// `RayState::TreeletNode`).
type Frame struct {
	Treelet     uint32
	Node        uint32
	Primitive   uint32
	Transformed bool
}

// HitInfo is what a partial trace records at a triangle hit: the
// placeholder material key and area-light id the integrator resolves once
// the ray returns for shading (spec section 4.7).
type HitInfo struct {
	Material    treelet.MaterialKey
	AreaLightID uint32
}

// State classifies a RayState's progress (spec section 4, "State
// machines"): Traversing while its current treelet is resident, Crossing
// once the top frame names one that isn't, and Hit/Missed once the stack
// empties.
type State uint8

const (
	Traversing State = iota
	Crossing
	Hit
	Missed
)

// RayState is the suspendable per-ray traversal state C7's partial trace
// advances one treelet at a time, handing the ray back to its caller
// whenever the frame on top of the stack names a non-resident treelet
// (spec section 4.7/section 5, "suspension is externalized").
type RayState struct {
	Ray          types.Ray
	RayTransform types.Mat4

	toVisit [maxStackDepth]Frame
	head    uint8

	HasHit  bool
	HitInfo HitInfo
}

// NewRayState returns a RayState ready to trace ray, starting at node 0 of
// rootTreelet (spec section 4.7's octant-of-direction root selection picks
// rootTreelet before construction).
func NewRayState(ray types.Ray, rootTreelet uint32) *RayState {
	rs := &RayState{Ray: ray, RayTransform: types.Ident4()}
	rs.push(Frame{Treelet: rootTreelet})
	return rs
}

func (rs *RayState) empty() bool { return rs.head == 0 }

func (rs *RayState) top() Frame { return rs.toVisit[rs.head-1] }

func (rs *RayState) push(f Frame) {
	rs.toVisit[rs.head] = f
	rs.head++
}

func (rs *RayState) pop() Frame {
	rs.head--
	return rs.toVisit[rs.head]
}

// CurrentTreelet returns the treelet the top frame names, or false if the
// stack is empty.
func (rs *RayState) CurrentTreelet() (uint32, bool) {
	if rs.empty() {
		return 0, false
	}
	return rs.top().Treelet, true
}

// State reports the ray's current state; resident reports whether a given
// treelet id is already loaded (spec section 4, "State machines").
func (rs *RayState) State(resident func(treeletID uint32) bool) State {
	if rs.empty() {
		if rs.HasHit {
			return Hit
		}
		return Missed
	}
	if resident(rs.top().Treelet) {
		return Traversing
	}
	return Crossing
}

// objectRay returns the ray a frame with the given Transformed bit should
// be tested against: the raw world ray when false, or the object-space ray
// derived from RayTransform otherwise (spec section 4.7, "Transform
// handling": "re-derives the object-space ray as inverse(ray_transform) ·
// world_ray. Identity transforms never set the bit.").
func (rs *RayState) objectRay(transformed bool) types.Ray {
	if !transformed {
		return rs.Ray
	}
	inv := rs.RayTransform.Inv()
	return types.Ray{
		Origin: inv.MulPoint(rs.Ray.Origin),
		Dir:    inv.MulDir(rs.Ray.Dir),
		TMin:   rs.Ray.TMin,
		TMax:   rs.Ray.TMax,
		Time:   rs.Ray.Time,
	}
}

// Package trace implements C7: the three traversal entry points a worker
// thread drives a ray through a resident (or residency-managed) table of
// treelets with (spec section 4.7).
package trace

import (
	"fmt"

	"github.com/achilleasa/treelet/errors"
	"github.com/achilleasa/treelet/residency"
	"github.com/achilleasa/treelet/treelet"
	"github.com/achilleasa/treelet/types"
)

// localStackDepth bounds the explicit node stack a single synchronous
// descent (Intersect/IntersectP, and an IncludedInstance's in-place
// sub-BVH) keeps while it stays inside one treelet (spec section 9, fixed
// stack of size 64, grounded on
// _examples/original_source/src/accelerators/cloud.cpp's
// `pair<uint32_t,uint32_t> toVisit[64]`).
const localStackDepth = 64

// HitRecord is the result of a closest-hit or in-place query: enough to resolve
// shading data later without doing so here (shading itself is out of
// scope, spec section 4.7's Non-goals).
type HitRecord struct {
	Treelet     uint32
	MeshID      uint64
	TriIndex    uint32
	Material    treelet.MaterialKey
	AreaLightID uint32
	T           float32
	// Transform is the object-to-world transform active at the hit; the
	// identity matrix when the hit primitive was not reached through an
	// ExternalInstance.
	Transform types.Mat4
}

// Traverser drives rays through a residency.Manager's table of treelets.
// A single Traverser is safe for concurrent use by multiple goroutines iff
// its Manager was constructed with Preload (spec section 5).
type Traverser struct {
	manager     *residency.Manager
	directional bool
}

// NewTraverser returns a Traverser over manager. directional mirrors
// config.Options.DirectionalTreelets: when true, RootTreelet picks among
// eight octant roots instead of a single root treelet id.
func NewTraverser(manager *residency.Manager, directional bool) *Traverser {
	return &Traverser{manager: manager, directional: directional}
}

// RootTreelet selects which of rootsByOctant to start a ray at (spec
// section 4.7: "root = (x>=0) | ((y>=0)<<1) | ((z>=0)<<2)" when directional
// treelets are enabled; otherwise root 0 always). rootsByOctant[0] is used
// for every ray when directional treelets are disabled.
func (tr *Traverser) RootTreelet(dir types.Vec3, rootsByOctant [8]uint32) uint32 {
	if !tr.directional {
		return rootsByOctant[0]
	}
	return rootsByOctant[octant(dir)]
}

func octant(dir types.Vec3) int {
	idx := 0
	if dir[0] >= 0 {
		idx |= 1
	}
	if dir[1] >= 0 {
		idx |= 2
	}
	if dir[2] >= 0 {
		idx |= 4
	}
	return idx
}

// orderChildren returns (near, far) for an interior node split along axis,
// given the ray's direction. Grounded on cloud.cpp's CloudBVH::Trace: it
// pushes LEFT then RIGHT when dirIsNeg[axis] (so RIGHT pops first), and
// RIGHT then LEFT otherwise (so LEFT pops first) — i.e. the near child is
// LEFT when the ray travels in the positive direction along axis, RIGHT
// otherwise.
func orderChildren(axis types.Axis, dir types.Vec3, left, right treelet.ChildLink) (near, far treelet.ChildLink) {
	if dir[axis] >= 0 {
		return left, right
	}
	return right, left
}

// localStack is a fixed-depth explicit node-index stack used while a
// descent stays inside a single treelet.
type localStack struct {
	nodes [localStackDepth]uint32
	sp    int
}

func (s *localStack) push(n uint32) { s.nodes[s.sp] = n; s.sp++ }
func (s *localStack) pop() uint32   { s.sp--; return s.nodes[s.sp] }
func (s *localStack) empty() bool   { return s.sp == 0 }

// Intersect performs a closest-hit query starting at node 0 of rootTreelet,
// loading (and, in lazy mode, blocking on) whichever treelets the ray
// crosses into via the residency manager (spec section 4.7: "fixed stack
// of size 64 ... cross-treelet child links trigger load_treelet").
func (tr *Traverser) Intersect(ray types.Ray, rootTreelet uint32) (*HitRecord, error) {
	root, err := tr.manager.LoadTreelet(rootTreelet)
	if err != nil {
		return nil, err
	}
	r := ray
	var best HitRecord
	found := false
	if err := tr.closestHitLocal(root, 0, &r, &best, &found); err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &best, nil
}

// IntersectP performs an any-hit query: it returns true as soon as any
// primitive within [ray.TMin, ray.TMax] is found, without determining
// which is closest (spec section 4.7).
func (tr *Traverser) IntersectP(ray types.Ray, rootTreelet uint32) (bool, error) {
	root, err := tr.manager.LoadTreelet(rootTreelet)
	if err != nil {
		return false, err
	}
	r := ray
	return tr.anyHitLocal(root, 0, &r)
}

func (tr *Traverser) closestHitLocal(t *treelet.Treelet, nodeIdx uint32, ray *types.Ray, best *HitRecord, found *bool) error {
	var stack localStack
	current := nodeIdx
	for {
		node := &t.Nodes[current]
		if !node.Bounds.IntersectRay(*ray) {
			if stack.empty() {
				return nil
			}
			current = stack.pop()
			continue
		}
		if node.IsLeaf() {
			if err := tr.intersectLeafClosest(t, node, ray, best, found); err != nil {
				return err
			}
			if stack.empty() {
				return nil
			}
			current = stack.pop()
			continue
		}

		near, far := orderChildren(node.Axis, ray.Dir, node.Children[0], node.Children[1])
		if far.ChildTreelet == uint16(t.ID) {
			stack.push(far.ChildNode)
		} else if err := tr.crossTreeletClosest(far, ray, best, found); err != nil {
			return err
		}
		if near.ChildTreelet == uint16(t.ID) {
			current = near.ChildNode
			continue
		}
		if err := tr.crossTreeletClosest(near, ray, best, found); err != nil {
			return err
		}
		if stack.empty() {
			return nil
		}
		current = stack.pop()
	}
}

func (tr *Traverser) crossTreeletClosest(link treelet.ChildLink, ray *types.Ray, best *HitRecord, found *bool) error {
	other, err := tr.manager.LoadTreelet(uint32(link.ChildTreelet))
	if err != nil {
		return err
	}
	return tr.closestHitLocal(other, link.ChildNode, ray, best, found)
}

func (tr *Traverser) intersectLeafClosest(t *treelet.Treelet, node *treelet.TreeletNode, ray *types.Ray, best *HitRecord, found *bool) error {
	for i := uint32(0); i < node.PrimitiveCount; i++ {
		p := &t.Primitives[node.PrimitiveOffset+i]
		switch p.Kind {
		case treelet.PrimTriangle:
			mesh := t.Meshes[p.MeshID]
			v0, v1, v2 := mesh.Triangle(p.TriIndex)
			if tHit, ok := intersectTriangle(*ray, v0, v1, v2); ok {
				ray.TMax = tHit
				*best = HitRecord{
					Treelet:     t.ID,
					MeshID:      p.MeshID,
					TriIndex:    p.TriIndex,
					Material:    p.Material,
					AreaLightID: p.AreaLightID,
					T:           tHit,
					Transform:   types.Ident4(),
				}
				*found = true
			}
		case treelet.PrimIncludedInstance:
			if err := tr.closestHitLocal(t, p.IncludedNodeIndex, ray, best, found); err != nil {
				return err
			}
		case treelet.PrimExternalInstance:
			xfm := p.TransformAt(ray.Time)
			objRay := transformRay(xfm, *ray)
			link := treelet.ChildLink{ChildTreelet: uint16(p.InstanceRef.Treelet()), ChildNode: p.InstanceRef.Node()}
			instFound := false
			var instBest HitRecord
			if err := tr.crossTreeletClosest(link, &objRay, &instBest, &instFound); err != nil {
				return err
			}
			ray.TMax = objRay.TMax
			if instFound {
				instBest.Transform = xfm
				*best = instBest
				*found = true
			}
		case treelet.PrimPlaceholder:
			return &errors.FormatError{Treelet: t.ID, Reason: "unresolved placeholder primitive encountered during traversal"}
		}
	}
	return nil
}

func (tr *Traverser) anyHitLocal(t *treelet.Treelet, nodeIdx uint32, ray *types.Ray) (bool, error) {
	var stack localStack
	current := nodeIdx
	for {
		node := &t.Nodes[current]
		if node.Bounds.IntersectRay(*ray) {
			if node.IsLeaf() {
				hit, err := tr.anyHitLeaf(t, node, ray)
				if err != nil {
					return false, err
				}
				if hit {
					return true, nil
				}
			} else {
				for _, link := range node.Children {
					if link.ChildTreelet == uint16(t.ID) {
						stack.push(link.ChildNode)
						continue
					}
					other, err := tr.manager.LoadTreelet(uint32(link.ChildTreelet))
					if err != nil {
						return false, err
					}
					hit, err := tr.anyHitLocal(other, link.ChildNode, ray)
					if err != nil {
						return false, err
					}
					if hit {
						return true, nil
					}
				}
			}
		}
		if stack.empty() {
			return false, nil
		}
		current = stack.pop()
	}
}

func (tr *Traverser) anyHitLeaf(t *treelet.Treelet, node *treelet.TreeletNode, ray *types.Ray) (bool, error) {
	for i := uint32(0); i < node.PrimitiveCount; i++ {
		p := &t.Primitives[node.PrimitiveOffset+i]
		switch p.Kind {
		case treelet.PrimTriangle:
			mesh := t.Meshes[p.MeshID]
			v0, v1, v2 := mesh.Triangle(p.TriIndex)
			if _, ok := intersectTriangle(*ray, v0, v1, v2); ok {
				return true, nil
			}
		case treelet.PrimIncludedInstance:
			if hit, err := tr.anyHitLocal(t, p.IncludedNodeIndex, ray); err != nil {
				return false, err
			} else if hit {
				return true, nil
			}
		case treelet.PrimExternalInstance:
			xfm := p.TransformAt(ray.Time)
			objRay := transformRay(xfm, *ray)
			other, err := tr.manager.LoadTreelet(p.InstanceRef.Treelet())
			if err != nil {
				return false, err
			}
			if hit, err := tr.anyHitLocal(other, p.InstanceRef.Node(), &objRay); err != nil {
				return false, err
			} else if hit {
				return true, nil
			}
		case treelet.PrimPlaceholder:
			return false, &errors.FormatError{Treelet: t.ID, Reason: "unresolved placeholder primitive encountered during traversal"}
		}
	}
	return false, nil
}

// Trace advances rs through t, which must be the treelet named by rs's
// current top frame. It returns once rs's stack empties (the ray has
// either hit something or missed entirely) or the top frame names a
// treelet other than t (a cross-treelet suspension point the caller must
// resolve — by calling residency.Manager.LoadTreelet and re-entering Trace
// with the newly resident treelet — before resuming; spec section 4.7/
// section 5: "the ray leaves the local process" on a crossing).
//
// Unlike Intersect/IntersectP, Trace never calls the residency manager
// itself: externalizing that suspension point is the whole point of the
// partial-trace API (spec section 5, "Suspension points").
func (tr *Traverser) Trace(rs *RayState, t *treelet.Treelet) error {
	if rs.empty() {
		return nil
	}
	current := rs.top().Treelet
	if t.ID != current {
		return fmt.Errorf("trace: treelet mismatch: ray state names %d, got treelet %d", current, t.ID)
	}

	for {
		if rs.empty() {
			return nil
		}
		top := rs.top()
		if top.Treelet != current {
			return nil
		}
		rs.pop()

		ray := rs.objectRay(top.Transformed)
		node := &t.Nodes[top.Node]
		if !node.Bounds.IntersectRay(ray) {
			continue
		}
		if node.IsLeaf() {
			if err := tr.traceLeaf(rs, t, node, top, ray); err != nil {
				return err
			}
			continue
		}

		near, far := orderChildren(node.Axis, ray.Dir, node.Children[0], node.Children[1])
		rs.push(Frame{Treelet: uint32(far.ChildTreelet), Node: far.ChildNode, Transformed: top.Transformed})
		rs.push(Frame{Treelet: uint32(near.ChildTreelet), Node: near.ChildNode, Transformed: top.Transformed})
	}
}

// traceLeaf resumes a leaf at top.Primitive, matching rs's state after a
// previous ExternalInstance suspension left a continuation frame for the
// rest of this leaf (spec section 4.7).
func (tr *Traverser) traceLeaf(rs *RayState, t *treelet.Treelet, node *treelet.TreeletNode, top Frame, ray types.Ray) error {
	for i := top.Primitive; i < node.PrimitiveCount; i++ {
		p := &t.Primitives[node.PrimitiveOffset+i]
		switch p.Kind {
		case treelet.PrimTriangle:
			mesh := t.Meshes[p.MeshID]
			v0, v1, v2 := mesh.Triangle(p.TriIndex)
			if tHit, ok := intersectTriangle(ray, v0, v1, v2); ok {
				ray.TMax = tHit
				rs.Ray.TMax = tHit
				rs.HasHit = true
				rs.HitInfo = HitInfo{Material: p.Material, AreaLightID: p.AreaLightID}
			}

		case treelet.PrimIncludedInstance:
			// Intersects in-place: a self-contained sub-BVH inlined into
			// this same treelet, walked synchronously rather than via the
			// suspendable frame stack (spec section 4.7).
			var best HitRecord
			found := false
			objRay := ray
			if err := tr.closestHitLocal(t, p.IncludedNodeIndex, &objRay, &best, &found); err != nil {
				return err
			}
			ray.TMax = objRay.TMax
			if found {
				rs.Ray.TMax = objRay.TMax
				rs.HasHit = true
				rs.HitInfo = HitInfo{Material: best.Material, AreaLightID: best.AreaLightID}
			}

		case treelet.PrimExternalInstance:
			if i+1 < node.PrimitiveCount {
				rs.push(Frame{Treelet: t.ID, Node: top.Node, Primitive: i + 1, Transformed: top.Transformed})
			}
			xfm := p.TransformAt(ray.Time)
			transformed := !xfm.IsIdentity()
			if transformed {
				rs.RayTransform = xfm
			}
			rs.push(Frame{Treelet: p.InstanceRef.Treelet(), Node: p.InstanceRef.Node(), Transformed: transformed})
			return nil

		case treelet.PrimPlaceholder:
			return &errors.FormatError{Treelet: t.ID, Node: top.Node, Reason: "unresolved placeholder primitive encountered during partial trace"}
		}
	}
	return nil
}

// transformRay returns ray expressed in the object space defined by xfm
// (an object-to-world transform): inverse(xfm) applied to origin and
// direction, with TMin/TMax/Time preserved unchanged. Direction is left
// unnormalized so that t values remain comparable between world and object
// space (spec section 4.7).
func transformRay(xfm types.Mat4, ray types.Ray) types.Ray {
	if xfm.IsIdentity() {
		return ray
	}
	inv := xfm.Inv()
	return types.Ray{
		Origin: inv.MulPoint(ray.Origin),
		Dir:    inv.MulDir(ray.Dir),
		TMin:   ray.TMin,
		TMax:   ray.TMax,
		Time:   ray.Time,
	}
}

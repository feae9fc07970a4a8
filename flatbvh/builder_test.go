package flatbvh

import (
	"testing"

	"github.com/achilleasa/treelet/types"
)

type testVolume struct {
	bbox   types.AABB
	center types.Vec3
}

func (v *testVolume) BBox() types.AABB    { return v.bbox }
func (v *testVolume) Center() types.Vec3 { return v.center }

func makeQuadrantVolumes() []BoundedVolume {
	specs := []types.AABB{
		{Min: types.Vec3{-2, 0, -2}, Max: types.Vec3{-1, 1, -1}},
		{Min: types.Vec3{1, 0, -2}, Max: types.Vec3{2, 1, -1}},
		{Min: types.Vec3{-2, 0, 1}, Max: types.Vec3{-1, 1, 2}},
		{Min: types.Vec3{1, 0, 1}, Max: types.Vec3{2, 1, 2}},
	}
	out := make([]BoundedVolume, len(specs))
	for i, b := range specs {
		out[i] = &testVolume{bbox: b, center: b.Center()}
	}
	return out
}

func TestBuildLeafCallback(t *testing.T) {
	specs := []struct {
		maxNodePrims  int
		expLeafCalls  int
		expItemsEach  int
	}{
		{1, 4, 1},
		{4, 1, 4},
	}

	for index, s := range specs {
		items := makeQuadrantVolumes()
		calls := 0
		cb := func(leaf *Node, workList []BoundedVolume) {
			calls++
			if len(workList) != s.expItemsEach {
				t.Fatalf("[spec %d] expected leaf with %d items; got %d", index, s.expItemsEach, len(workList))
			}
		}
		Build(items, s.maxNodePrims, SplitSAH, cb)
		if calls != s.expLeafCalls {
			t.Fatalf("[spec %d] expected %d leaf callbacks; got %d", index, s.expLeafCalls, calls)
		}
	}
}

func TestBuildProducesContainingBounds(t *testing.T) {
	items := makeQuadrantVolumes()
	nodes := Build(items, 1, SplitSAH, func(leaf *Node, workList []BoundedVolume) {})
	if len(nodes) == 0 {
		t.Fatalf("expected at least one node")
	}
	root := nodes[0]
	for _, item := range items {
		b := item.BBox()
		if !root.Bounds().Contains(b) {
			t.Fatalf("expected root bounds to contain every item bbox")
		}
	}
}

func TestSplitMethodsProduceValidTree(t *testing.T) {
	methods := []SplitMethod{SplitSAH, SplitMiddle, SplitEqual, SplitHLBVH}
	for _, m := range methods {
		items := makeQuadrantVolumes()
		nodes := Build(items, 1, m, func(leaf *Node, workList []BoundedVolume) {})
		if len(nodes) == 0 {
			t.Fatalf("split method %d: expected a non-empty tree", m)
		}
	}
}

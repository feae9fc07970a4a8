package treelet

import (
	"github.com/achilleasa/treelet/types"
	"testing"
)

func makeLeafTreelet() *Treelet {
	t := NewTreelet(3)
	t.Nodes = []TreeletNode{
		{Bounds: types.AABB{Min: types.Vec3{0, 0, 0}, Max: types.Vec3{1, 1, 1}}, Axis: types.AxisX},
	}
	t.Nodes[0].SetLeaf(0, 2)
	t.Primitives = []Primitive{
		{Kind: PrimTriangle, MeshID: 7, TriIndex: 0, Material: MaterialKey{Treelet: 3, ID: 1}},
		{
			Kind:        PrimExternalInstance,
			InstanceRef: NewInstanceRef(9, 0),
			StartXfm:    types.Ident4(),
			EndXfm:      types.Ident4(),
			StartTime:   0,
			EndTime:     1,
		},
	}
	mesh := &Mesh{
		MeshID:   7,
		Material: MaterialKey{Treelet: 3, ID: 1},
		Vertices: []types.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Indices:  []uint32{0, 1, 2},
	}
	t.Meshes[7] = mesh
	t.Materials[1] = []byte{0xAA, 0xBB}
	return t
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	specs := []struct {
		name string
		tl   *Treelet
	}{
		{"geometry treelet", makeLeafTreelet()},
		{"empty material treelet", func() *Treelet {
			tl := NewTreelet(5)
			tl.Materials[0] = []byte{1, 2, 3}
			return tl
		}()},
	}

	for index, s := range specs {
		data := Encode(s.tl)
		got, err := Decode(data, s.tl.ID)
		if err != nil {
			t.Fatalf("[spec %d: %s] decode failed: %v", index, s.name, err)
		}
		if got.ID != s.tl.ID {
			t.Fatalf("[spec %d: %s] expected id %d; got %d", index, s.name, s.tl.ID, got.ID)
		}
		if len(got.Nodes) != len(s.tl.Nodes) {
			t.Fatalf("[spec %d: %s] expected %d nodes; got %d", index, s.name, len(s.tl.Nodes), len(got.Nodes))
		}
		if len(got.Materials) != len(s.tl.Materials) {
			t.Fatalf("[spec %d: %s] expected %d materials; got %d", index, s.name, len(s.tl.Materials), len(got.Materials))
		}
	}
}

func TestDecodeRoundTripPreservesPrimitives(t *testing.T) {
	orig := makeLeafTreelet()
	data := Encode(orig)
	got, err := Decode(data, orig.ID)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if len(got.Primitives) != len(orig.Primitives) {
		t.Fatalf("expected %d primitives; got %d", len(orig.Primitives), len(got.Primitives))
	}

	var sawTriangle, sawInstance bool
	for _, p := range got.Primitives {
		switch p.Kind {
		case PrimTriangle:
			sawTriangle = true
			if p.MeshID != 7 {
				t.Fatalf("expected triangle mesh id 7; got %d", p.MeshID)
			}
		case PrimExternalInstance:
			sawInstance = true
			if p.InstanceRef.Treelet() != 9 {
				t.Fatalf("expected instance ref treelet 9; got %d", p.InstanceRef.Treelet())
			}
		}
	}
	if !sawTriangle || !sawInstance {
		t.Fatalf("expected to decode both a triangle and an external instance primitive")
	}
}

func TestDecodeMeshPreservesGeometry(t *testing.T) {
	orig := makeLeafTreelet()
	data := Encode(orig)
	got, err := Decode(data, orig.ID)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	mesh, ok := got.Meshes[7]
	if !ok {
		t.Fatalf("expected mesh 7 to survive round trip")
	}
	if len(mesh.Vertices) != 3 || len(mesh.Indices) != 3 {
		t.Fatalf("expected 3 vertices/indices; got %d/%d", len(mesh.Vertices), len(mesh.Indices))
	}
	v0, v1, v2 := mesh.Triangle(0)
	if v0 != (types.Vec3{0, 0, 0}) || v1 != (types.Vec3{1, 0, 0}) || v2 != (types.Vec3{0, 1, 0}) {
		t.Fatalf("unexpected triangle vertices: %v %v %v", v0, v1, v2)
	}
}

func TestDecodeTruncatedStreamReturnsFormatError(t *testing.T) {
	orig := makeLeafTreelet()
	data := Encode(orig)
	_, err := Decode(data[:len(data)-4], orig.ID)
	if err == nil {
		t.Fatalf("expected a format error for a truncated stream")
	}
}

func TestCheckInvariantsRejectsOutOfRangeLeaf(t *testing.T) {
	tl := NewTreelet(1)
	tl.Nodes = []TreeletNode{{}}
	tl.Nodes[0].SetLeaf(0, 5)
	if err := tl.CheckInvariants(); err == nil {
		t.Fatalf("expected CheckInvariants to reject a leaf whose range exceeds the primitive array")
	}
}

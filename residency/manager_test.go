package residency

import (
	"fmt"
	"testing"

	"github.com/achilleasa/treelet/config"
	"github.com/achilleasa/treelet/treelet"
	"github.com/achilleasa/treelet/types"
)

// fakeLoader serves precomputed treelet bytes and counts calls per id so
// tests can assert idempotence.
type fakeLoader struct {
	data  map[uint32][]byte
	calls map[uint32]int
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{data: map[uint32][]byte{}, calls: map[uint32]int{}}
}

func (f *fakeLoader) put(t *treelet.Treelet) {
	f.data[t.ID] = treelet.Encode(t)
}

func (f *fakeLoader) Load(id uint32) ([]byte, error) {
	f.calls[id]++
	data, ok := f.data[id]
	if !ok {
		return nil, fmt.Errorf("no fixture for treelet %d", id)
	}
	return data, nil
}

func makeGeometryTreeletWithPlaceholder(id uint32) *treelet.Treelet {
	t := treelet.NewTreelet(id)
	t.Nodes = []treelet.TreeletNode{
		{Bounds: types.AABB{Min: types.Vec3{0, 0, 0}, Max: types.Vec3{1, 1, 1}}},
	}
	t.Nodes[0].SetLeaf(0, 1)
	t.Primitives = []treelet.Primitive{
		{
			Kind:        treelet.PrimPlaceholder,
			InstanceRef: treelet.NewInstanceRef(9, 0),
			StartXfm:    types.Ident4(),
			EndXfm:      types.Ident4(),
			StartTime:   0,
			EndTime:     1,
		},
	}
	return t
}

func makeMaterialTreelet(id uint32, materialID uint32, blob []byte) *treelet.Treelet {
	t := treelet.NewTreelet(id)
	t.Materials[materialID] = blob
	return t
}

func TestLoadTreeletIsIdempotent(t *testing.T) {
	loader := newFakeLoader()
	loader.put(makeGeometryTreeletWithPlaceholder(3))

	m, err := NewManager(config.Default(), loader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := m.LoadTreelet(3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := m.LoadTreelet(3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loader.calls[3] != 1 {
		t.Fatalf("expected exactly 1 loader call for treelet 3, got %d", loader.calls[3])
	}
}

func TestLoadTreeletFinalizesExternalInstancePlaceholder(t *testing.T) {
	loader := newFakeLoader()
	loader.put(makeGeometryTreeletWithPlaceholder(3))

	m, err := NewManager(config.Default(), loader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tl, err := m.LoadTreelet(3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tl.Finalized() {
		t.Fatalf("expected treelet to be marked finalized")
	}
	if tl.Primitives[0].Kind != treelet.PrimExternalInstance {
		t.Fatalf("expected placeholder to resolve to PrimExternalInstance, got %v", tl.Primitives[0].Kind)
	}
	if len(tl.UnfinishedTransformed()) != 0 {
		t.Fatalf("expected unfinished list cleared after finalize")
	}
}

func TestPreloadLoadsAllAndFinalizes(t *testing.T) {
	loader := newFakeLoader()
	loader.put(makeGeometryTreeletWithPlaceholder(0))
	loader.put(makeGeometryTreeletWithPlaceholder(1))
	loader.put(makeMaterialTreelet(2, 5, []byte{1, 2, 3}))

	opts := config.Default()
	opts.Preload = true
	opts.WorkerThreads = 4
	m, err := NewManager(opts, loader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := m.Preload([]uint32{0, 1, 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, id := range []uint32{0, 1, 2} {
		if !m.Resident(id) {
			t.Fatalf("expected treelet %d to be resident after preload", id)
		}
	}
	tl, _ := m.LoadTreelet(0)
	if tl.Primitives[0].Kind != treelet.PrimExternalInstance {
		t.Fatalf("expected preload to finalize placeholders too")
	}
}

func TestNewManagerRejectsLazyMultiThread(t *testing.T) {
	opts := config.Default()
	opts.Preload = false
	opts.WorkerThreads = 2

	if _, err := NewManager(opts, newFakeLoader()); err == nil {
		t.Fatalf("expected a ConfigError for lazy residency with multiple worker threads")
	}
}

func TestResolveMaterialLazyLoadsOwner(t *testing.T) {
	loader := newFakeLoader()
	loader.put(makeMaterialTreelet(7, 2, []byte{0xAA, 0xBB}))

	m, err := NewManager(config.Default(), loader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	blob, err := m.ResolveMaterial(treelet.MaterialKey{Treelet: 7, ID: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(blob) != 2 || blob[0] != 0xAA {
		t.Fatalf("unexpected material blob: %v", blob)
	}
}

func TestResolveMaterialPreloadRequiresResident(t *testing.T) {
	loader := newFakeLoader()
	loader.put(makeMaterialTreelet(7, 2, []byte{0xAA}))

	opts := config.Default()
	opts.Preload = true
	m, err := NewManager(opts, loader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := m.ResolveMaterial(treelet.MaterialKey{Treelet: 7, ID: 2}); err == nil {
		t.Fatalf("expected an error resolving a material treelet that was never preloaded")
	}
}

// Package residency implements C6: the lazy- or eager-loaded table of
// resident treelets shared between traversal threads, and the
// finalization step that patches the placeholder primitive slots a base
// load leaves behind (spec section 4.6).
package residency

import (
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/achilleasa/treelet/config"
	"github.com/achilleasa/treelet/errors"
	"github.com/achilleasa/treelet/treelet"
)

// Loader fetches the raw record bytes for a treelet by id, abstracting
// whatever medium backs the treelet package: local disk, object storage, a
// network peer (spec section 5, "IoError wraps a filesystem/network
// failure encountered while reading or writing a treelet file").
type Loader interface {
	Load(id uint32) ([]byte, error)
}

// Manager owns the table of resident treelets and finalizes each one
// exactly once after its base load (spec section 4.6; section 3,
// "Placeholder entries are mutated exactly once, during finalization").
//
// Two modes, selected by opts.Preload: preload loads every treelet named to
// Preload in parallel and only finalizes once every load has returned, so
// a treelet's finalize step can assume any other treelet it references is
// already resident; lazy loads (and finalizes) a single treelet the first
// time LoadTreelet names it, and is only legal with a single worker thread
// (enforced by config.Options.Validate, called from NewManager).
type Manager struct {
	opts   config.Options
	loader Loader

	mu       sync.RWMutex
	treelets map[uint32]*treelet.Treelet
}

// NewManager validates opts (spec section 5's fatal configuration error for
// lazy residency under more than one worker thread) and returns a Manager
// backed by loader.
func NewManager(opts config.Options, loader Loader) (*Manager, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Manager{
		opts:     opts,
		loader:   loader,
		treelets: make(map[uint32]*treelet.Treelet),
	}, nil
}

// Resident reports whether id is already loaded, without triggering a load.
func (m *Manager) Resident(id uint32) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.treelets[id]
	return ok
}

// LoadTreelet returns the in-memory treelet for id, loading and finalizing
// it on first access. Idempotent: a second call for the same id returns the
// cached value without touching the loader (spec section 4.6,
// "load_treelet(id, optional_bytes) is idempotent"). In lazy mode this is
// the traverser's one blocking suspension point (spec section 5).
func (m *Manager) LoadTreelet(id uint32) (*treelet.Treelet, error) {
	m.mu.RLock()
	t, ok := m.treelets[id]
	m.mu.RUnlock()
	if ok {
		return t, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.treelets[id]; ok {
		return t, nil
	}

	t, err := m.baseLoad(id)
	if err != nil {
		return nil, err
	}
	m.finalize(t)
	m.treelets[id] = t
	return t, nil
}

func (m *Manager) baseLoad(id uint32) (*treelet.Treelet, error) {
	data, err := m.loader.Load(id)
	if err != nil {
		return nil, &errors.IoError{Path: fmt.Sprintf("treelet %d", id), Err: err}
	}
	return treelet.Decode(data, id)
}

// Preload loads every treelet named in ids in parallel via errgroup, then
// finalizes each one once every load has completed, so that a placeholder
// referencing any other id in the set always sees it resident (spec section
// 4.6, "load every treelet in parallel, then resolve placeholders"; section
// 5, "in preload mode all writes complete before any read"). Required
// before traversal runs on more than one worker thread.
func (m *Manager) Preload(ids []uint32) error {
	loaded := make([]*treelet.Treelet, len(ids))
	var g errgroup.Group
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			t, err := m.baseLoad(id)
			if err != nil {
				return err
			}
			loaded[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range loaded {
		m.treelets[t.ID] = t
	}
	for _, t := range loaded {
		m.finalize(t)
	}
	return nil
}

// finalize fills the placeholder primitive slots a base load leaves behind
// (spec section 4.6, point 2). Every `unfinished_transformed` slot already
// carries its packed InstanceRef and motion-blur transform window from the
// base load (treelet/codec.go decodes a TransformedPrimitive's fields
// regardless of its Kind); finalization only needs to flip the tag from
// PrimPlaceholder to PrimExternalInstance so the traverser's leaf switch
// picks it up (spec section 9, "Downcasts at traversal leaves" — an enum
// tag stands in for the source's dynamic cast). `unfinished_geometric`
// slots are left for ResolveMaterial/ResolveAreaLight to resolve lazily:
// nothing on the Primitive itself needs mutating since MaterialKey/
// AreaLightID already address the owning table.
func (m *Manager) finalize(t *treelet.Treelet) {
	if t.Finalized() {
		return
	}
	for _, idx := range t.UnfinishedTransformed() {
		t.Primitives[idx].Kind = treelet.PrimExternalInstance
	}
	t.MarkFinalized()
}

// ResolveMaterial returns the raw material record bytes named by key,
// loading the owning material treelet first if necessary (spec section
// 4.6: "in lazy mode, material slots are set to PlaceholderMaterial{
// MaterialKey} so ... the scheduler can fetch the material treelet before
// shading"). In preload mode the owning treelet must already be resident;
// a miss there indicates the caller preloaded an incomplete treelet set.
func (m *Manager) ResolveMaterial(key treelet.MaterialKey) ([]byte, error) {
	var owner *treelet.Treelet
	if m.opts.Preload {
		m.mu.RLock()
		owner = m.treelets[key.Treelet]
		m.mu.RUnlock()
		if owner == nil {
			return nil, &errors.IoError{
				Path: fmt.Sprintf("material treelet %d", key.Treelet),
				Err:  fmt.Errorf("not resident: preload set did not include it"),
			}
		}
	} else {
		var err error
		owner, err = m.LoadTreelet(key.Treelet)
		if err != nil {
			return nil, err
		}
	}
	blob, ok := owner.Materials[key.ID]
	if !ok {
		return nil, &errors.FormatError{Treelet: key.Treelet, Reason: fmt.Sprintf("material id %d not found", key.ID)}
	}
	return blob, nil
}

// ExternalRoot resolves an InstanceRef to the treelet holding the
// referenced sub-BVH's root node, loading it if necessary. The caller's own
// traversal stack frame names the node index directly (spec section 4.7:
// "push a new frame {treelet = external.root, node = 0, ...}").
func (m *Manager) ExternalRoot(ref treelet.InstanceRef) (*treelet.Treelet, error) {
	return m.LoadTreelet(ref.Treelet())
}

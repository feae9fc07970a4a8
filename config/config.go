// Package config defines the recognised configuration surface for the
// treelet subsystem (spec section 6).
package config

import (
	"github.com/achilleasa/treelet/errors"
)

// TraversalModel selects the C3 edge-construction policy.
type TraversalModel string

const (
	SendCheck TraversalModel = "sendcheck"
	CheckSend TraversalModel = "checksend"
)

// PartitionAlgorithm selects the C4 allocation algorithm.
type PartitionAlgorithm string

const (
	OneByOne            PartitionAlgorithm = "onebyone"
	GreedySize          PartitionAlgorithm = "greedysize"
	Agglomerative       PartitionAlgorithm = "agglomerative"
	TopoHierarchical    PartitionAlgorithm = "topohierarchical"
	MergedGraph         PartitionAlgorithm = "mergedgraph"
	Nvidia              PartitionAlgorithm = "nvidia"
)

// SplitMethod selects the upstream flat-BVH builder's split strategy.
type SplitMethod string

const (
	SAH    SplitMethod = "sah"
	HLBVH  SplitMethod = "hlbvh"
	Middle SplitMethod = "middle"
	Equal  SplitMethod = "equal"
)

const (
	defaultMaxTreeletBytes = 1 << 30 // 1 GiB
)

// Options holds every knob recognised by the dumper, residency manager and
// traverser.
type Options struct {
	// Preload forces eager, parallel loading of every treelet at scene
	// construction time. Required whenever WorkerThreads > 1.
	Preload bool

	// MaxTreeletBytes bounds the serialized size of every treelet.
	MaxTreeletBytes uint64

	// CopyableThreshold bounds which sub-BVHs may be inlined by value
	// into a referencing treelet rather than addressed externally.
	CopyableThreshold uint64

	// Traversal selects the C3 edge-construction policy.
	Traversal TraversalModel

	// Partition selects the C4 allocation algorithm.
	Partition PartitionAlgorithm

	// SplitMethod selects the upstream flat-BVH builder's strategy.
	SplitMethod SplitMethod

	// MaxNodePrims caps the number of primitives per upstream BVH leaf.
	MaxNodePrims int

	// SceneAccelerator, when true, marks this BVH as the scene root (its
	// children are dumped too); when false it is an instance sub-BVH
	// evaluated only for copyability.
	SceneAccelerator bool

	// WriteHeader controls whether a HEADER record is emitted during dump.
	WriteHeader bool

	// DirectionalTreelets enables eight-octant root selection at
	// traversal time. Process-wide, read-only once the scene loads.
	DirectionalTreelets bool

	// SyncTextureReads guards texture-by-filename lookups with a mutex;
	// required only for builds that may race loads against reads.
	SyncTextureReads bool

	// WorkerThreads is the number of traversal worker threads the caller
	// intends to run. Lazy residency is only legal when this is 1.
	WorkerThreads int
}

// Default returns an Options value populated with the defaults from spec
// section 5: MaxTreeletBytes = 1 GiB, CopyableThreshold = MaxTreeletBytes/2.
func Default() Options {
	return Options{
		MaxTreeletBytes:   defaultMaxTreeletBytes,
		CopyableThreshold: defaultMaxTreeletBytes / 2,
		Traversal:         SendCheck,
		Partition:         OneByOne,
		SplitMethod:       SAH,
		MaxNodePrims:      4,
		SceneAccelerator:  true,
		WriteHeader:       true,
		WorkerThreads:     1,
	}
}

// Validate enforces the ConfigError cases from spec sections 5 and 7.
// Attempting to construct a lazy loader while the process runs with more
// than one worker thread is a fatal configuration error.
func (o Options) Validate() error {
	if !o.Preload && o.WorkerThreads > 1 {
		return &errors.ConfigError{
			Option: "preload",
			Reason: "lazy residency requires WorkerThreads == 1; got more than one worker thread",
		}
	}
	if o.MaxTreeletBytes == 0 {
		return &errors.ConfigError{Option: "max_treelet_bytes", Reason: "must be > 0"}
	}
	if o.CopyableThreshold > o.MaxTreeletBytes {
		return &errors.ConfigError{Option: "copyable_threshold", Reason: "must not exceed max_treelet_bytes"}
	}
	switch o.Traversal {
	case SendCheck, CheckSend:
	default:
		return &errors.ConfigError{Option: "traversal", Reason: "must be sendcheck or checksend"}
	}
	switch o.Partition {
	case OneByOne, GreedySize, Agglomerative, TopoHierarchical, MergedGraph, Nvidia:
	default:
		return &errors.ConfigError{Option: "partition", Reason: "unrecognised partition algorithm"}
	}
	switch o.SplitMethod {
	case SAH, HLBVH, Middle, Equal:
	default:
		return &errors.ConfigError{Option: "split_method", Reason: "unrecognised split method"}
	}
	if o.MaxNodePrims <= 0 {
		return &errors.ConfigError{Option: "max_node_prims", Reason: "must be > 0"}
	}
	if o.WorkerThreads <= 0 {
		return &errors.ConfigError{Option: "worker_threads", Reason: "must be >= 1"}
	}
	return nil
}

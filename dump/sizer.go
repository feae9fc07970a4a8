package dump

import (
	"github.com/achilleasa/treelet/flatbvh"
	"github.com/achilleasa/treelet/partition"
	"github.com/achilleasa/treelet/treelet"
)

// InstanceInfo records the byte accounting the partitioner needs for one
// scene instance (spec section 4.4.1): whether its referenced sub-BVH is
// small enough to inline by value ("copyable") and, if so, how many bytes
// that costs.
type InstanceInfo struct {
	Copyable bool
	Bytes    uint64
}

// CopyableThreshold is the default byte threshold below which an instance's
// sub-BVH is copyable (spec section 4.4.1, "total bytes < copyable_threshold").
const CopyableThreshold = 64 * 1024

// Sizer implements partition.NodeSizer over a flat BVH built from
// ScenePrimitives (triangles and/or instances), using treelet's own
// on-disk record sizes so the partitioner's byte budget matches what the
// dumper actually writes.
type Sizer struct {
	Nodes     []flatbvh.Node
	Prims     []*ScenePrimitive
	Instances []InstanceInfo // indexed by ScenePrimitive.InstanceIndex

	instanceBits map[uint32]int // instance index -> bit index in the InstanceMask
	bitBytes     []uint64       // bit index -> that instance's inlined sub-BVH bytes
}

// NewSizer builds a Sizer and assigns a stable bit index to every copyable
// instance referenced by prims, for use as partition.InstanceMask bits.
func NewSizer(nodes []flatbvh.Node, prims []*ScenePrimitive, instances []InstanceInfo) *Sizer {
	s := &Sizer{Nodes: nodes, Prims: prims, Instances: instances, instanceBits: map[uint32]int{}}
	next := 0
	for _, p := range prims {
		if p.Kind != ScenePrimInstance {
			continue
		}
		if !instances[p.InstanceIndex].Copyable {
			continue
		}
		if _, ok := s.instanceBits[p.InstanceIndex]; !ok {
			s.instanceBits[p.InstanceIndex] = next
			next++
			s.bitBytes = append(s.bitBytes, instances[p.InstanceIndex].Bytes)
		}
	}
	return s
}

// NumCopyableInstances reports how many distinct copyable instances this
// sizer has assigned a mask bit to.
func (s *Sizer) NumCopyableInstances() int {
	return len(s.instanceBits)
}

func (s *Sizer) leafMask(node uint32) partition.InstanceMask {
	mask := partition.NewInstanceMask(len(s.instanceBits))
	n := &s.Nodes[node]
	if !n.IsLeaf() {
		return mask
	}
	first, count := n.Primitives()
	for i := uint32(0); i < count; i++ {
		p := s.Prims[first+i]
		if p.Kind != ScenePrimInstance {
			continue
		}
		if bit, ok := s.instanceBits[p.InstanceIndex]; ok {
			mask.Set(uint32(bit))
		}
	}
	return mask
}

// NodeBytes implements partition.NodeSizer.
func (s *Sizer) NodeBytes(node uint32) uint64 {
	total := uint64(treelet.NodeByteSize)
	n := &s.Nodes[node]
	if !n.IsLeaf() {
		return total
	}
	first, count := n.Primitives()
	for i := uint32(0); i < count; i++ {
		p := s.Prims[first+i]
		switch p.Kind {
		case ScenePrimTriangle:
			total += treelet.TriangleByteSize
		case ScenePrimInstance:
			if !s.Instances[p.InstanceIndex].Copyable {
				total += treelet.TransformedPrimitiveByteSize
			}
			// Copyable instances are charged via InstanceBytes
			// against the treelet's instance_mask, not here (spec
			// section 4.4.1).
		}
	}
	return total
}

// NodeInstanceMask implements partition.NodeSizer.
func (s *Sizer) NodeInstanceMask(node uint32) partition.InstanceMask {
	return s.leafMask(node)
}

// SubtreeInstanceMask implements partition.NodeSizer.
func (s *Sizer) SubtreeInstanceMask(node uint32) partition.InstanceMask {
	mask := partition.NewInstanceMask(len(s.instanceBits))
	var walk func(idx uint32)
	walk = func(idx uint32) {
		n := &s.Nodes[idx]
		if n.IsLeaf() {
			mask = mask.Union(s.leafMask(idx))
			return
		}
		left, right := n.Children()
		walk(left)
		walk(right)
	}
	walk(node)
	return mask
}

// InstanceBytes implements partition.NodeSizer: the sum, over every distinct
// copyable instance set in mask, of that instance's own inlined sub-BVH
// bytes (spec section 4.4.1's "bytes(instance_mask)") — splicing a copyable
// instance into a treelet costs its sub-BVH's actual node/triangle bytes,
// not a placeholder record.
func (s *Sizer) InstanceBytes(mask partition.InstanceMask) uint64 {
	var total uint64
	for _, bit := range mask.Bits() {
		total += s.bitBytes[bit]
	}
	return total
}

// IsNonCopyableLeaf implements partition.NodeSizer.
func (s *Sizer) IsNonCopyableLeaf(node uint32) bool {
	n := &s.Nodes[node]
	if !n.IsLeaf() {
		return false
	}
	first, count := n.Primitives()
	if count == 0 {
		return false
	}
	last := s.Prims[first+count-1]
	return last.Kind == ScenePrimInstance && !s.Instances[last.InstanceIndex].Copyable
}

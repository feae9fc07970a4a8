package partition

// InstanceMask is a bitset over the global numbering of copyable instances,
// one bit per unique instance (spec section 4.4.1). 64 instances per word;
// scenes with more than 64 copyable instances use multiple words.
type InstanceMask []uint64

// NewInstanceMask returns an empty mask sized to hold numInstances bits.
func NewInstanceMask(numInstances int) InstanceMask {
	return make(InstanceMask, (numInstances+63)/64)
}

// Set sets bit i.
func (m InstanceMask) Set(i uint32) {
	m[i/64] |= 1 << (i % 64)
}

// Test reports whether bit i is set.
func (m InstanceMask) Test(i uint32) bool {
	return m[i/64]&(1<<(i%64)) != 0
}

// Union returns the bitwise OR of m and other, without mutating either.
func (m InstanceMask) Union(other InstanceMask) InstanceMask {
	out := make(InstanceMask, len(m))
	for i := range m {
		out[i] = m[i] | other[i]
	}
	return out
}

// PopCount returns the number of set bits.
func (m InstanceMask) PopCount() int {
	count := 0
	for _, word := range m {
		for word != 0 {
			count++
			word &= word - 1
		}
	}
	return count
}

// Key returns a comparable string key for use as a map key, for caching
// InstanceBytes(mask) results (spec section 4.4.1: "Results are cached
// keyed by instance_mask").
func (m InstanceMask) Key() string {
	buf := make([]byte, len(m)*8)
	for i, word := range m {
		for b := 0; b < 8; b++ {
			buf[i*8+b] = byte(word >> (8 * b))
		}
	}
	return string(buf)
}

// Bits returns the set bit indices, ascending.
func (m InstanceMask) Bits() []uint32 {
	var out []uint32
	for i, word := range m {
		for b := 0; b < 64; b++ {
			if word&(1<<uint(b)) != 0 {
				out = append(out, uint32(i*64+b))
			}
		}
	}
	return out
}

// InstanceCostCache memoizes InstanceBytes(mask) lookups keyed by mask
// content, as required by spec section 4.4.1.
type InstanceCostCache struct {
	sizer NodeSizer
	cache map[string]uint64
}

// NewInstanceCostCache wraps a NodeSizer with a memoizing cache.
func NewInstanceCostCache(sizer NodeSizer) *InstanceCostCache {
	return &InstanceCostCache{sizer: sizer, cache: make(map[string]uint64)}
}

// Bytes returns sizer.InstanceBytes(mask), memoized by mask content.
func (c *InstanceCostCache) Bytes(mask InstanceMask) uint64 {
	key := mask.Key()
	if v, ok := c.cache[key]; ok {
		return v
	}
	v := c.sizer.InstanceBytes(mask)
	c.cache[key] = v
	return v
}

// IncrementalCost returns the additional bytes needed to extend current
// with node n's direct instance mask: bytes(current ∪ nodeMask) −
// bytes(current) (spec section 4.4.1).
func (c *InstanceCostCache) IncrementalCost(current InstanceMask, node uint32) uint64 {
	nodeMask := c.sizer.NodeInstanceMask(node)
	merged := current.Union(nodeMask)
	return c.Bytes(merged) - c.Bytes(current)
}

// SubtreeIncrementalCost is the same computation using the subtree mask, a
// lower bound on the eventual cost of fully including node n's subtree
// (spec section 4.4.1). None of the allocators in this package calls it.
func (c *InstanceCostCache) SubtreeIncrementalCost(current InstanceMask, node uint32) uint64 {
	subtreeMask := c.sizer.SubtreeInstanceMask(node)
	merged := current.Union(subtreeMask)
	return c.Bytes(merged) - c.Bytes(current)
}

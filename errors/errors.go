// Package errors defines the treelet subsystem's error taxonomy.
package errors

import "fmt"

// ConfigError reports an invalid option combination detected at
// construction time (e.g. lazy residency with more than one worker thread).
type ConfigError struct {
	Option string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Option, e.Reason)
}

// FormatError reports a malformed treelet file: a count that overruns its
// blob, a zero node count with non-zero primitives, an out-of-range leaf
// offset, or an unknown primitive tag.
type FormatError struct {
	Treelet uint32
	Node    uint32
	Reason  string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("format: treelet %d node %d: %s", e.Treelet, e.Node, e.Reason)
}

// IoError wraps a filesystem/network failure encountered while reading or
// writing a treelet file.
type IoError struct {
	Path string
	Err  error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("io: %s: %s", e.Path, e.Err)
}

func (e *IoError) Unwrap() error { return e.Err }

// BudgetError reports that a single BVH node plus its mandatory inlined
// instances exceeds max_treelet_bytes; fatal at dump time.
type BudgetError struct {
	Node      uint32
	Bytes     uint64
	MaxBytes  uint64
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("budget: node %d requires %d bytes, exceeds max_treelet_bytes %d", e.Node, e.Bytes, e.MaxBytes)
}

// IntegrityError reports a post-partitioning invariant violation: a BVH node
// assigned to zero or two-or-more treelets for a given traversal direction.
type IntegrityError struct {
	Node      uint32
	Direction int
	Count     int
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity: node %d direction %d assigned to %d treelets, want exactly 1", e.Node, e.Direction, e.Count)
}

// PlaceholderShadingError reports that the integrator attempted to shade a
// PlaceholderMaterial hit. This always indicates a scheduler bug in the
// caller: placeholders must be resolved before shading is attempted.
type PlaceholderShadingError struct {
	Treelet uint32
	MatID   uint32
}

func (e *PlaceholderShadingError) Error() string {
	return fmt.Sprintf("placeholder shading: material key {treelet:%d id:%d} was never resolved", e.Treelet, e.MatID)
}

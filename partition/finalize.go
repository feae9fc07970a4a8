package partition

import (
	"sort"

	"github.com/achilleasa/treelet/errors"
	"github.com/achilleasa/treelet/graph"
)

// Finalize implements spec section 4.4.4's single-direction numbering: the
// treelet containing node 0 is assigned id 0; remaining treelets are
// numbered contiguously from 1. (The eight-direction case is handled
// separately by FinalizeMerged, which also reserves ids 0..7 for each
// direction's root treelet.) It also checks the post-condition that every
// node appears in exactly one treelet, returning an *errors.IntegrityError
// otherwise.
func Finalize(a *Assignment) (*Assignment, error) {
	if err := checkCoverage(a); err != nil {
		return nil, err
	}

	rootTreelet := a.Label[0]
	renumber := map[uint32]uint32{rootTreelet: 0}
	nextID := uint32(1)

	for _, tid := range sortedDistinctLabels(a.Label) {
		if tid == rootTreelet {
			continue
		}
		if _, ok := renumber[tid]; !ok {
			renumber[tid] = nextID
			nextID++
		}
	}

	out := make([]uint32, len(a.Label))
	for i, tid := range a.Label {
		out[i] = renumber[tid]
	}

	return &Assignment{
		Direction: a.Direction,
		Label:     out,
		Summaries: a.Summaries,
	}, nil
}

func checkCoverage(a *Assignment) error {
	for node, tid := range a.Label {
		if tid == ^uint32(0) {
			return &errors.IntegrityError{Node: uint32(node), Direction: int(a.Direction), Count: 0}
		}
	}
	return nil
}

func sortedDistinctLabels(label []uint32) []uint32 {
	seen := map[uint32]bool{}
	var out []uint32
	for _, tid := range label {
		if !seen[tid] {
			seen[tid] = true
			out = append(out, tid)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// FinalizeMerged implements the eight-direction numbering of spec section
// 4.4.4: each direction's root-containing treelet gets the id equal to that
// direction's index (0..7); every other treelet across all directions is
// numbered contiguously starting at 8, with exact duplicate node sets (the
// common case when two directions happen to agree on a boundary)
// collapsed to the same id so identical treelet content is never dumped
// twice.
func FinalizeMerged(assignments [8]*Assignment) ([8]*Assignment, error) {
	var out [8]*Assignment
	nextID := uint32(8)
	contentToID := map[string]uint32{}

	for dir, a := range assignments {
		if err := checkCoverage(a); err != nil {
			return out, err
		}
		rootTreelet := a.Label[0]

		renumber := map[uint32]uint32{}
		for _, tid := range sortedDistinctLabels(a.Label) {
			if tid == rootTreelet {
				renumber[tid] = uint32(dir)
				continue
			}
			key := treeletContentKey(a.Label, tid)
			if id, ok := contentToID[key]; ok {
				renumber[tid] = id
				continue
			}
			renumber[tid] = nextID
			contentToID[key] = nextID
			nextID++
		}

		label := make([]uint32, len(a.Label))
		for node, tid := range a.Label {
			label[node] = renumber[tid]
		}
		out[dir] = &Assignment{Direction: graph.Direction(dir), Label: label, Summaries: a.Summaries}
	}
	return out, nil
}

func treeletContentKey(label []uint32, tid uint32) string {
	buf := make([]byte, 0, 64)
	for node, l := range label {
		if l == tid {
			buf = append(buf, byte(node), byte(node>>8), byte(node>>16), byte(node>>24))
		}
	}
	return string(buf)
}

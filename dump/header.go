package dump

import (
	"math"

	"github.com/achilleasa/treelet/errors"
	"github.com/achilleasa/treelet/treelet"
	"github.com/achilleasa/treelet/types"
)

// Header is the scene-level summary record the dumper writes alongside the
// treelet files (spec section 4.5, point 4: "Write a HEADER record with
// scene bounds and total treelet bytes").
type Header struct {
	Bounds            types.AABB
	TotalTreeletBytes uint64
}

func writeFloat32(w *treelet.Writer, v float32) {
	w.WriteUint32(math.Float32bits(v))
}

func readFloat32(r *treelet.Reader) (float32, error) {
	bits, err := r.ReadUint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(bits), nil
}

// EncodeHeader serializes h using the same lite-framing primitives as the
// treelet format itself (spec section 4.1); floats are the only addition
// over treelet.Writer's integer/blob primitives, since no on-disk treelet
// record needs one directly.
func EncodeHeader(h Header) []byte {
	w := treelet.NewWriter()
	writeFloat32(w, h.Bounds.Min[0])
	writeFloat32(w, h.Bounds.Min[1])
	writeFloat32(w, h.Bounds.Min[2])
	writeFloat32(w, h.Bounds.Max[0])
	writeFloat32(w, h.Bounds.Max[1])
	writeFloat32(w, h.Bounds.Max[2])
	w.WriteUint64(h.TotalTreeletBytes)
	return w.Bytes()
}

// DecodeHeader parses a HEADER record produced by EncodeHeader.
func DecodeHeader(data []byte) (Header, error) {
	r := treelet.NewReader(data, 0)
	var h Header
	var err error
	if h.Bounds.Min[0], err = readFloat32(r); err != nil {
		return h, &errors.FormatError{Reason: "header: " + err.Error()}
	}
	if h.Bounds.Min[1], err = readFloat32(r); err != nil {
		return h, &errors.FormatError{Reason: "header: " + err.Error()}
	}
	if h.Bounds.Min[2], err = readFloat32(r); err != nil {
		return h, &errors.FormatError{Reason: "header: " + err.Error()}
	}
	if h.Bounds.Max[0], err = readFloat32(r); err != nil {
		return h, &errors.FormatError{Reason: "header: " + err.Error()}
	}
	if h.Bounds.Max[1], err = readFloat32(r); err != nil {
		return h, &errors.FormatError{Reason: "header: " + err.Error()}
	}
	if h.Bounds.Max[2], err = readFloat32(r); err != nil {
		return h, &errors.FormatError{Reason: "header: " + err.Error()}
	}
	h.TotalTreeletBytes, err = r.ReadUint64()
	if err != nil {
		return h, &errors.FormatError{Reason: "header: " + err.Error()}
	}
	return h, nil
}

// StaticAllocationEntry is one row of the STATIC0_pre file: a treelet id
// and its total hit probability, used by the downstream distributed
// scheduler to prioritize which treelets to keep resident (spec section
// 4.5, point 4).
type StaticAllocationEntry struct {
	TreeletID        uint32
	TotalProbability float32
}

// EncodeStaticAllocation serializes the STATIC0_pre table.
func EncodeStaticAllocation(entries []StaticAllocationEntry) []byte {
	w := treelet.NewWriter()
	w.WriteUint32(uint32(len(entries)))
	for _, e := range entries {
		w.WriteUint32(e.TreeletID)
		writeFloat32(w, e.TotalProbability)
	}
	return w.Bytes()
}

// DecodeStaticAllocation parses a STATIC0_pre table.
func DecodeStaticAllocation(data []byte) ([]StaticAllocationEntry, error) {
	r := treelet.NewReader(data, 0)
	count, err := r.ReadUint32()
	if err != nil {
		return nil, &errors.FormatError{Reason: "static allocation: " + err.Error()}
	}
	out := make([]StaticAllocationEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		id, err := r.ReadUint32()
		if err != nil {
			return nil, &errors.FormatError{Reason: "static allocation entry: " + err.Error()}
		}
		prob, err := readFloat32(r)
		if err != nil {
			return nil, &errors.FormatError{Reason: "static allocation entry: " + err.Error()}
		}
		out = append(out, StaticAllocationEntry{TreeletID: id, TotalProbability: prob})
	}
	return out, nil
}

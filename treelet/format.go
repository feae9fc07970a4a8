package treelet

import (
	"bytes"
	"encoding/binary"

	"github.com/achilleasa/treelet/errors"
)

// Writer implements the "lite" framing described in spec section 4.1: fixed
// width little-endian integers, length-prefixed blobs, structures copied
// verbatim, and the ability to patch a previously written integer at a
// known offset (PatchUint32).
type Writer struct {
	buf bytes.Buffer
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer { return &Writer{} }

// Offset returns the current write position, for later use with PatchUint32.
func (w *Writer) Offset() int { return w.buf.Len() }

// Bytes returns the accumulated record stream.
func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

// WriteUint32 appends a little-endian uint32.
func (w *Writer) WriteUint32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	w.buf.Write(tmp[:])
}

// WriteUint64 appends a little-endian uint64.
func (w *Writer) WriteUint64(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	w.buf.Write(tmp[:])
}

// WriteBlob appends a 32-bit length prefix followed by raw bytes.
func (w *Writer) WriteBlob(b []byte) {
	w.WriteUint32(uint32(len(b)))
	w.buf.Write(b)
}

// WriteRaw appends bytes with no length prefix; used for fixed-size packed
// structures (e.g. the node array) whose count is written separately.
func (w *Writer) WriteRaw(b []byte) {
	w.buf.Write(b)
}

// PatchUint32 overwrites the little-endian uint32 at the given byte offset,
// which must have been produced by a prior WriteUint32 call at that
// position. Nothing in this module calls it: Encode writes every count,
// mesh_count included, before the records it counts.
func (w *Writer) PatchUint32(offset int, v uint32) {
	data := w.buf.Bytes()
	binary.LittleEndian.PutUint32(data[offset:offset+4], v)
}

// Reader sequentially consumes a record stream produced by Writer, raising
// FormatError for any out-of-bounds or malformed access rather than
// panicking (spec section 7: formatting errors abort the current operation
// with a payload describing which treelet/node).
type Reader struct {
	data    []byte
	pos     int
	treelet uint32 // used only to annotate FormatError payloads
}

// NewReader wraps data for sequential reading. treeletID is used only to
// annotate FormatError messages.
func NewReader(data []byte, treeletID uint32) *Reader {
	return &Reader{data: data, treelet: treeletID}
}

func (r *Reader) need(n int) error {
	if r.pos+n > len(r.data) {
		return &errors.FormatError{
			Treelet: r.treelet,
			Reason:  "unexpected end of record stream",
		}
	}
	return nil
}

// ReadUint32 reads a little-endian uint32.
func (r *Reader) ReadUint32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.data[r.pos : r.pos+4])
	r.pos += 4
	return v, nil
}

// ReadUint64 reads a little-endian uint64.
func (r *Reader) ReadUint64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.data[r.pos : r.pos+8])
	r.pos += 8
	return v, nil
}

// ReadBlob reads a 32-bit length prefix followed by that many raw bytes. The
// returned slice aliases the underlying buffer; callers that need to retain
// it beyond the buffer's lifetime must copy.
func (r *Reader) ReadBlob() ([]byte, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	if err := r.need(int(n)); err != nil {
		return nil, &errors.FormatError{
			Treelet: r.treelet,
			Reason:  "blob length overruns record stream",
		}
	}
	b := r.data[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return b, nil
}

// ReadRaw reads exactly n raw bytes with no length prefix (for fixed-size
// packed structures whose count was read separately).
func (r *Reader) ReadRaw(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// Pos returns the current read offset, mainly for capturing the start of a
// contiguous mesh-blob span (spec section 4.1, record 6).
func (r *Reader) Pos() int { return r.pos }

// Remaining reports whether unread bytes remain.
func (r *Reader) Remaining() bool { return r.pos < len(r.data) }

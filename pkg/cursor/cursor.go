// Package cursor provides the shared byte-cursor reader and writer used by
// every codec in this module: a small stateful wrapper around a byte slice
// with bounds-checked fixed-width reads, plus a writer supporting the
// reserve-now/patch-later pattern the composite containers (SDAT, ROM) need
// for their two-pass layouts.
package cursor

import (
	"encoding/binary"

	"github.com/falk/ndsfmt-go/pkg/ndserr"
)

// Reader reads fixed-width little- or big-endian fields from a byte slice
// while tracking a cursor position, the way the teacher's NCA/PFS0 parsers
// mix binary.Read with manual binary.LittleEndian.UintNN indexing - except
// here the cursor position is carried on the type instead of re-derived at
// every call site.
type Reader struct {
	data []byte
	pos  int
	bo   binary.ByteOrder
}

// NewReader wraps data for little-endian reads.
func NewReader(data []byte) *Reader {
	return &Reader{data: data, bo: binary.LittleEndian}
}

// NewReaderOrder wraps data with an explicit byte order, for the containers
// (ROM, NARC) whose first few bytes may be read with the opposite
// endianness from the rest of the file.
func NewReaderOrder(data []byte, bo binary.ByteOrder) *Reader {
	return &Reader{data: data, bo: bo}
}

// SetOrder switches the byte order used by subsequent reads.
func (r *Reader) SetOrder(bo binary.ByteOrder) { r.bo = bo }

// Len reports the total length of the wrapped buffer.
func (r *Reader) Len() int { return len(r.data) }

// Tell reports the current cursor position.
func (r *Reader) Tell() int { return r.pos }

// Seek moves the cursor to an absolute offset.
func (r *Reader) Seek(pos int) { r.pos = pos }

// Align advances the cursor to the next multiple of n.
func (r *Reader) Align(n int) {
	if rem := r.pos % n; rem != 0 {
		r.pos += n - rem
	}
}

func (r *Reader) need(n int) error {
	if r.pos < 0 || r.pos+n > len(r.data) {
		return ndserr.At(ndserr.OutOfBounds, r.pos, "read past end of buffer")
	}
	return nil
}

// ReadBytes returns a sub-slice view of the next n bytes and advances the
// cursor. The returned slice aliases the underlying buffer.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// PeekBytes is like ReadBytes but does not advance the cursor.
func (r *Reader) PeekBytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	return r.data[r.pos : r.pos+n], nil
}

// ReadU8 reads one byte.
func (r *Reader) ReadU8() (uint8, error) {
	b, err := r.ReadBytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadU16 reads a 16-bit field using the reader's current byte order.
func (r *Reader) ReadU16() (uint16, error) {
	b, err := r.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return r.bo.Uint16(b), nil
}

// ReadU24 reads a 24-bit little-endian field (used by sequence-event
// address operands, which are always little-endian regardless of the
// reader's configured order).
func (r *Reader) ReadU24() (uint32, error) {
	b, err := r.ReadBytes(3)
	if err != nil {
		return 0, err
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16, nil
}

// ReadU32 reads a 32-bit field using the reader's current byte order.
func (r *Reader) ReadU32() (uint32, error) {
	b, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return r.bo.Uint32(b), nil
}

// ReadI16 reads a signed 16-bit field.
func (r *Reader) ReadI16() (int16, error) {
	v, err := r.ReadU16()
	return int16(v), err
}

// ReadI32 reads a signed 32-bit field.
func (r *Reader) ReadI32() (int32, error) {
	v, err := r.ReadU32()
	return int32(v), err
}

// Remaining returns how many bytes are left from the cursor to the end of
// the buffer.
func (r *Reader) Remaining() int {
	return len(r.data) - r.pos
}

// Data returns the whole wrapped buffer, ignoring cursor position.
func (r *Reader) Data() []byte { return r.data }

// Anchor identifies a reserved region in a Writer, to be filled in later via
// PatchAt once its contents or forward references are known.
type Anchor struct {
	Offset int
	Length int
}

// Writer accumulates bytes into a growable buffer and supports two-pass
// emission: Reserve carves out placeholder space up front (for header
// fields, offset tables) and PatchAt fills it in once the real value is
// known, mirroring the teacher's pfs0_writer.go placeholder-then-backpatch
// idiom.
type Writer struct {
	buf []byte
	bo  binary.ByteOrder
}

// NewWriter creates an empty little-endian writer.
func NewWriter() *Writer {
	return &Writer{bo: binary.LittleEndian}
}

// NewWriterOrder creates an empty writer with an explicit byte order.
func NewWriterOrder(bo binary.ByteOrder) *Writer {
	return &Writer{bo: bo}
}

// SetOrder switches the byte order used by subsequent fixed-width writes.
func (w *Writer) SetOrder(bo binary.ByteOrder) { w.bo = bo }

// Len reports how many bytes have been written so far.
func (w *Writer) Len() int { return len(w.buf) }

// Bytes returns the accumulated buffer.
func (w *Writer) Bytes() []byte { return w.buf }

// WriteBytes appends raw bytes.
func (w *Writer) WriteBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// WriteU8 appends one byte.
func (w *Writer) WriteU8(v uint8) {
	w.buf = append(w.buf, v)
}

// WriteU16 appends a 16-bit field in the writer's byte order.
func (w *Writer) WriteU16(v uint16) {
	var b [2]byte
	w.bo.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// WriteU24 appends a 24-bit little-endian field.
func (w *Writer) WriteU24(v uint32) {
	w.buf = append(w.buf, byte(v), byte(v>>8), byte(v>>16))
}

// WriteU32 appends a 32-bit field in the writer's byte order.
func (w *Writer) WriteU32(v uint32) {
	var b [4]byte
	w.bo.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// WriteI16 appends a signed 16-bit field.
func (w *Writer) WriteI16(v int16) { w.WriteU16(uint16(v)) }

// WriteI32 appends a signed 32-bit field.
func (w *Writer) WriteI32(v int32) { w.WriteU32(uint32(v)) }

// Pad appends n bytes of fill.
func (w *Writer) Pad(n int, fill byte) {
	for i := 0; i < n; i++ {
		w.buf = append(w.buf, fill)
	}
}

// AlignTo pads with fill until Len() is a multiple of n.
func (w *Writer) AlignTo(n int, fill byte) {
	if rem := len(w.buf) % n; rem != 0 {
		w.Pad(n-rem, fill)
	}
}

// Reserve carves out n zero bytes and returns an Anchor describing their
// position, to be filled in later via PatchAt.
func (w *Writer) Reserve(n int) Anchor {
	a := Anchor{Offset: len(w.buf), Length: n}
	w.Pad(n, 0)
	return a
}

// PatchAt overwrites a previously reserved region. len(data) must equal
// a.Length.
func (w *Writer) PatchAt(a Anchor, data []byte) {
	copy(w.buf[a.Offset:a.Offset+a.Length], data)
}

// PatchU32At backpatches a reserved 4-byte anchor with a little/writer-order
// 32-bit value.
func (w *Writer) PatchU32At(a Anchor, v uint32) {
	var b [4]byte
	w.bo.PutUint32(b[:], v)
	w.PatchAt(a, b[:])
}

// PatchU16At backpatches a reserved 2-byte anchor.
func (w *Writer) PatchU16At(a Anchor, v uint16) {
	var b [2]byte
	w.bo.PutUint16(b[:], v)
	w.PatchAt(a, b[:])
}

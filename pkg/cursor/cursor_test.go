package cursor

import (
	"encoding/binary"
	"testing"
)

func TestReaderFixedWidthFields(t *testing.T) {
	data := []byte{0xAB, 0x12, 0x34, 0x56, 0x78, 0xFF}
	r := NewReader(data)

	u8, err := r.ReadU8()
	if err != nil || u8 != 0xAB {
		t.Fatalf("ReadU8 = %x, %v", u8, err)
	}
	u32, err := r.ReadU32()
	if err != nil || u32 != 0x78563412 {
		t.Fatalf("ReadU32 = %x, %v", u32, err)
	}
	if r.Remaining() != 1 {
		t.Fatalf("Remaining = %d, want 1", r.Remaining())
	}
	if _, err := r.ReadU32(); err == nil {
		t.Fatalf("expected an out-of-bounds error reading past the buffer")
	}
}

func TestReaderSeekAlignAndOrder(t *testing.T) {
	data := make([]byte, 16)
	binary.BigEndian.PutUint16(data[8:10], 0x0102)
	r := NewReaderOrder(data, binary.BigEndian)

	r.Seek(8)
	v, err := r.ReadU16()
	if err != nil || v != 0x0102 {
		t.Fatalf("ReadU16 (BE) = %x, %v", v, err)
	}

	r.Seek(1)
	r.Align(4)
	if r.Tell() != 4 {
		t.Fatalf("Align(4) from 1 = %d, want 4", r.Tell())
	}

	r.SetOrder(binary.LittleEndian)
	r.Seek(8)
	v, err = r.ReadU16()
	if err != nil || v != 0x0201 {
		t.Fatalf("ReadU16 (LE) after SetOrder = %x, %v", v, err)
	}
}

func TestWriterReserveAndPatch(t *testing.T) {
	w := NewWriter()
	w.WriteBytes([]byte("head"))
	anchor := w.Reserve(4)
	w.WriteBytes([]byte("tail"))

	w.PatchU32At(anchor, 0xDEADBEEF)

	got := w.Bytes()
	want := append(append([]byte("head"), 0xEF, 0xBE, 0xAD, 0xDE), []byte("tail")...)
	if string(got) != string(want) {
		t.Fatalf("Bytes() = % X, want % X", got, want)
	}
}

func TestWriterAlignTo(t *testing.T) {
	w := NewWriter()
	w.WriteBytes([]byte{1, 2, 3})
	w.AlignTo(4, 0xFF)
	if w.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", w.Len())
	}
	if w.Bytes()[3] != 0xFF {
		t.Fatalf("pad byte = %x, want 0xFF", w.Bytes()[3])
	}

	before := w.Len()
	w.AlignTo(4, 0)
	if w.Len() != before {
		t.Fatalf("AlignTo on an already-aligned writer should not grow it")
	}
}

func TestWriterSignedFields(t *testing.T) {
	w := NewWriter()
	w.WriteI16(-1)
	w.WriteI32(-2)

	r := NewReader(w.Bytes())
	i16, err := r.ReadI16()
	if err != nil || i16 != -1 {
		t.Fatalf("ReadI16 = %d, %v", i16, err)
	}
	i32, err := r.ReadI32()
	if err != nil || i32 != -2 {
		t.Fatalf("ReadI32 = %d, %v", i32, err)
	}
}

package codecompress

import (
	"bytes"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		name  string
		data  []byte
		arm9  bool
	}{
		{"empty", []byte{}, false},
		{"short", []byte("hi"), false},
		{"repeating", bytes.Repeat([]byte{0xAB, 0xCD, 0xEF}, 2000), false},
		{"arm9 repeating", bytes.Repeat([]byte{0x01, 0x02, 0x03, 0x04}, 4096), true},
		{"random-ish", []byte("the quick brown fox jumps over the lazy dog, repeatedly, the quick brown fox jumps"), false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			compressed := Compress(c.data, c.arm9)
			got, err := Decompress(compressed)
			if err != nil {
				t.Fatalf("Decompress error: %v", err)
			}
			if !bytes.Equal(got, c.data) {
				t.Fatalf("round trip mismatch: got %d bytes, want %d bytes", len(got), len(c.data))
			}
		})
	}
}

func TestNotCompressedMarker(t *testing.T) {
	data := []byte{0x00, 0x01, 0x02} // too small to ever shrink
	compressed := Compress(data, false)
	footer := compressed[len(compressed)-8:]
	delta := uint32(footer[4]) | uint32(footer[5])<<8 | uint32(footer[6])<<16 | uint32(footer[7])<<24
	if delta != 0 {
		t.Fatalf("expected delta 0 for incompressible input, got %d", delta)
	}
	got, err := Decompress(compressed)
	if err != nil {
		t.Fatalf("Decompress error: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("got %v want %v", got, data)
	}
}

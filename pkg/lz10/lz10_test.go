package lz10

import (
	"bytes"
	"testing"
)

func TestCompressKnownVector(t *testing.T) {
	input := []byte("This is some data to compress")[:29]
	want := []byte{
		0x10, 0x1d, 0x00, 0x00,
		0x04, 0x54, 0x68, 0x69, 0x73, 0x20, 0x00, 0x02, 0x73, 0x6f,
		0x00, 0x6d, 0x65, 0x20, 0x64, 0x61, 0x74, 0x61, 0x20,
		0x00, 0x74, 0x6f, 0x20, 0x63, 0x6f, 0x6d, 0x70, 0x72,
		0x00, 0x65, 0x73, 0x73, 0x00, 0x00, 0x00, 0x00, 0x00,
	}

	got := Compress(input)
	if !bytes.Equal(got, want) {
		t.Fatalf("Compress mismatch:\n got: % x\nwant: % x", got, want)
	}
}

func TestRoundTrip(t *testing.T) {
	cases := [][]byte{
		[]byte("This is some data to compress")[:29],
		[]byte(""),
		[]byte("a"),
		bytes.Repeat([]byte("ab"), 5000),
		[]byte("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
	}

	for _, c := range cases {
		compressed := Compress(c)
		got, err := Decompress(compressed)
		if err != nil {
			t.Fatalf("Decompress(%q) error: %v", c, err)
		}
		if !bytes.Equal(got, c) {
			t.Fatalf("round trip mismatch for %q: got %q", c, got)
		}
	}
}

func TestDecompressTruncated(t *testing.T) {
	if _, err := Decompress([]byte{0x10}); err == nil {
		t.Fatal("expected error decompressing truncated header")
	}
}

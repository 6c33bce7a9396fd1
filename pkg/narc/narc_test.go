package narc

import (
	"bytes"
	"testing"

	"github.com/falk/ndsfmt-go/pkg/fnt"
)

func TestRoundTrip(t *testing.T) {
	root := &fnt.Folder{
		Files: []string{"a.bin", "b.bin"},
		Subfolders: []*fnt.Folder{
			{Name: "sub", Files: []string{"c.bin"}},
		},
	}
	fnt.Renumber(root)

	files := [][]byte{
		[]byte("hello"),
		[]byte("world!!"),
		[]byte("nested file data"),
	}

	n := &NARC{Root: root, Files: files}
	data, err := Save(n)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(got.Files) != len(files) {
		t.Fatalf("file count = %d, want %d", len(got.Files), len(files))
	}
	for i, f := range files {
		if !bytes.Equal(got.Files[i], f) {
			t.Fatalf("file %d mismatch: got %q want %q", i, got.Files[i], f)
		}
	}
	if len(got.Root.Files) != 2 || got.Root.Files[0] != "a.bin" {
		t.Fatalf("root files not preserved: %v", got.Root.Files)
	}
	if len(got.Root.Subfolders) != 1 || got.Root.Subfolders[0].Name != "sub" {
		t.Fatalf("subfolder not preserved: %+v", got.Root.Subfolders)
	}
}

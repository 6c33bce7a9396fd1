package fnt

import (
	"reflect"
	"testing"
)

func buildSampleTree() *Folder {
	sub := &Folder{Name: "sub", Files: []string{"c.bin"}}
	root := &Folder{
		Files:      []string{"a.bin", "b.bin"},
		Subfolders: []*Folder{sub},
	}
	Renumber(root)
	return root
}

func TestRoundTrip(t *testing.T) {
	root := buildSampleTree()
	data, err := Save(root)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if !reflect.DeepEqual(got.Files, root.Files) {
		t.Fatalf("root files mismatch: got %v want %v", got.Files, root.Files)
	}
	if len(got.Subfolders) != 1 || got.Subfolders[0].Name != "sub" {
		t.Fatalf("subfolder not preserved: %+v", got.Subfolders)
	}
	if !reflect.DeepEqual(got.Subfolders[0].Files, []string{"c.bin"}) {
		t.Fatalf("subfolder files mismatch: %v", got.Subfolders[0].Files)
	}
	if got.FirstID != root.FirstID || got.Subfolders[0].FirstID != sub_FirstID(root) {
		t.Fatalf("file ids not preserved")
	}
}

func sub_FirstID(root *Folder) uint16 {
	return root.Subfolders[0].FirstID
}

func TestFileIDsContiguous(t *testing.T) {
	root := buildSampleTree()
	if root.FirstID != 0 {
		t.Fatalf("root FirstID = %d, want 0", root.FirstID)
	}
	if root.Subfolders[0].FirstID != 2 {
		t.Fatalf("sub FirstID = %d, want 2", root.Subfolders[0].FirstID)
	}
}

func TestRootParentFieldIsFolderCount(t *testing.T) {
	root := buildSampleTree()
	data, err := Save(root)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	count := uint16(data[6]) | uint16(data[7])<<8
	if count != 2 {
		t.Fatalf("root parent field = %d, want folder count 2", count)
	}
}

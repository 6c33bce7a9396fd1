// Package fnt implements the NDS filename table: a tree of folders holding
// files and subfolders, packed as a fixed-size directory table (one 8-byte
// record per folder) followed by a per-folder packed entry-name table. File
// IDs are assigned contiguously: a folder's FirstID plus its position in
// Files gives that file's ID, and IDs are contiguous across the whole tree
// when the tree was built by this package's own Renumber.
package fnt

import (
	"github.com/falk/ndsfmt-go/pkg/cursor"
	"github.com/falk/ndsfmt-go/pkg/ndserr"
)

// RootFolderID is the folder ID (not table index) of the tree root.
const RootFolderID = 0xF000

// Folder is one directory in the filename tree.
type Folder struct {
	Name       string // empty for the root
	FirstID    uint16
	Files      []string
	Subfolders []*Folder
}

// FileID returns the file ID of Files[i] within this folder.
func (f *Folder) FileID(i int) uint16 {
	return f.FirstID + uint16(i)
}

// Renumber assigns FirstID to every folder in the tree so that file IDs are
// contiguous in the same depth-first order Load would discover them, and
// returns the total file count. Callers building a tree from scratch should
// call this before Save.
func Renumber(root *Folder) int {
	next := uint16(0)
	var walk func(*Folder)
	walk = func(f *Folder) {
		f.FirstID = next
		next += uint16(len(f.Files))
		for _, sf := range f.Subfolders {
			walk(sf)
		}
	}
	walk(root)
	return int(next)
}

type dirEntry struct {
	offset  uint32
	firstID uint16
	parent  uint16
}

// Load parses an FNT resource's raw bytes into a Folder tree.
func Load(data []byte) (*Folder, error) {
	if len(data) < 8 {
		return nil, ndserr.At(ndserr.MalformedFNT, 0, "directory table truncated")
	}
	r := cursor.NewReader(data)

	entry0Offset, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	firstID0, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	numFolders, err := r.ReadU16() // root's "parent" field holds the folder count
	if err != nil {
		return nil, err
	}
	if numFolders == 0 {
		return nil, ndserr.At(ndserr.MalformedFNT, 6, "folder count is zero")
	}

	entries := make([]dirEntry, numFolders)
	entries[0] = dirEntry{offset: entry0Offset, firstID: firstID0, parent: numFolders}
	for i := 1; i < int(numFolders); i++ {
		r.Seek(8 * i)
		off, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		fid, err := r.ReadU16()
		if err != nil {
			return nil, err
		}
		parent, err := r.ReadU16()
		if err != nil {
			return nil, err
		}
		entries[i] = dirEntry{offset: off, firstID: fid, parent: parent}
	}

	built := make([]*Folder, numFolders)
	var build func(idx int) (*Folder, error)
	build = func(idx int) (*Folder, error) {
		if idx < 0 || idx >= len(entries) {
			return nil, ndserr.At(ndserr.MalformedFNT, idx, "subfolder index out of range")
		}
		if built[idx] != nil {
			return nil, ndserr.At(ndserr.MalformedFNT, idx, "cyclic subfolder reference")
		}
		f := &Folder{FirstID: entries[idx].firstID}
		built[idx] = f

		pos := int(entries[idx].offset)
		for {
			if pos >= len(data) {
				return nil, ndserr.At(ndserr.OutOfBounds, pos, "entry table truncated")
			}
			ctrl := data[pos]
			pos++
			if ctrl == 0 {
				break
			}
			nameLen := int(ctrl & 0x7F)
			if pos+nameLen > len(data) {
				return nil, ndserr.At(ndserr.OutOfBounds, pos, "entry name truncated")
			}
			name := string(data[pos : pos+nameLen])
			pos += nameLen

			if ctrl&0x80 != 0 {
				if pos+2 > len(data) {
					return nil, ndserr.At(ndserr.OutOfBounds, pos, "subfolder id truncated")
				}
				subID := uint16(data[pos]) | uint16(data[pos+1])<<8
				pos += 2
				subIdx := int(subID) - RootFolderID
				sub, err := build(subIdx)
				if err != nil {
					return nil, err
				}
				sub.Name = name
				f.Subfolders = append(f.Subfolders, sub)
			} else {
				f.Files = append(f.Files, name)
			}
		}
		return f, nil
	}

	return build(0)
}

// Save packs a Folder tree back into an FNT resource, assigning folder IDs
// by a breadth-first discovery order starting at the root - the same order
// ndstool-family packers use, since a folder's entry table must reference
// its subfolders' final IDs.
func Save(root *Folder) ([]byte, error) {
	order := []*Folder{root}
	parentOf := map[*Folder]*Folder{root: nil}
	for i := 0; i < len(order); i++ {
		f := order[i]
		for _, sf := range f.Subfolders {
			parentOf[sf] = f
			order = append(order, sf)
		}
	}
	index := make(map[*Folder]int, len(order))
	for i, f := range order {
		index[f] = i
	}

	w := cursor.NewWriter()
	dirTableAnchor := w.Reserve(8 * len(order))
	offsets := make([]uint32, len(order))

	for i, f := range order {
		offsets[i] = uint32(w.Len())
		for _, name := range f.Files {
			w.WriteU8(byte(len(name) & 0x7F))
			w.WriteBytes([]byte(name))
		}
		for _, sf := range f.Subfolders {
			w.WriteU8(0x80 | byte(len(sf.Name)&0x7F))
			w.WriteBytes([]byte(sf.Name))
			w.WriteU16(uint16(RootFolderID + index[sf]))
		}
		w.WriteU8(0)
	}

	dirTable := make([]byte, 8*len(order))
	for i, f := range order {
		var parentField uint16
		if i == 0 {
			parentField = uint16(len(order))
		} else {
			parentField = uint16(RootFolderID + index[parentOf[f]])
		}
		dt := cursor.NewWriter()
		dt.WriteU32(offsets[i])
		dt.WriteU16(f.FirstID)
		dt.WriteU16(parentField)
		copy(dirTable[8*i:8*i+8], dt.Bytes())
	}
	w.PatchAt(dirTableAnchor, dirTable)

	return w.Bytes(), nil
}

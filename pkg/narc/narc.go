// Package narc implements the NDS NARC archive container: a small,
// generic-file-storage format built from three fixed blocks - BTAF (a file
// allocation table of start/end offset pairs), BTNF (a filename tree, using
// the same wire format as pkg/fnt), and GMIF (the concatenated raw file
// data). NARC is the analogue of PFS0 in the teacher: a name table, an
// offset table, and a data blob, packed the same way.
package narc

import (
	"github.com/falk/ndsfmt-go/pkg/cursor"
	"github.com/falk/ndsfmt-go/pkg/fnt"
	"github.com/falk/ndsfmt-go/pkg/ndserr"
)

const (
	magicNARC = "NARC"
	magicBTAF = "BTAF"
	magicBTNF = "BTNF"
	magicGMIF = "GMIF"

	defaultBOM     = 0xFFFE
	defaultVersion = 0x0100
	headerSize     = 0x10
	numBlocks      = 3
)

// NARC is a parsed archive: a filename tree (see pkg/fnt) plus the raw
// bytes of every file, indexed by file ID.
type NARC struct {
	BOM     uint16
	Version uint16
	Root    *fnt.Folder
	Files   [][]byte
}

// Load parses a NARC resource's raw bytes.
func Load(data []byte) (*NARC, error) {
	if len(data) < headerSize {
		return nil, ndserr.At(ndserr.OutOfBounds, 0, "narc header truncated")
	}
	r := cursor.NewReader(data)

	magic, _ := r.ReadBytes(4)
	if string(magic) != magicNARC {
		return nil, ndserr.At(ndserr.InvalidMagic, 0, "expected NARC magic")
	}
	bom, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	version, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	if _, err := r.ReadU32(); err != nil { // total file size, unused on read
		return nil, err
	}
	hdrSize, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	blocks, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	_ = blocks

	r.Seek(int(hdrSize))

	// BTAF
	m, err := r.ReadBytes(4)
	if err != nil {
		return nil, err
	}
	if string(m) != magicBTAF {
		return nil, ndserr.At(ndserr.InvalidMagic, r.Tell()-4, "expected BTAF block")
	}
	btafSize, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	btafStart := r.Tell() - 8
	numFiles, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	if _, err := r.ReadU16(); err != nil { // reserved
		return nil, err
	}
	type span struct{ start, end uint32 }
	spans := make([]span, numFiles)
	for i := range spans {
		s, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		e, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		spans[i] = span{s, e}
	}
	r.Seek(btafStart + int(btafSize))

	// BTNF
	m, err = r.ReadBytes(4)
	if err != nil {
		return nil, err
	}
	if string(m) != magicBTNF {
		return nil, ndserr.At(ndserr.InvalidMagic, r.Tell()-4, "expected BTNF block")
	}
	btnfSize, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	btnfStart := r.Tell() - 8
	fntData, err := r.ReadBytes(int(btnfSize) - 8)
	if err != nil {
		return nil, err
	}
	root, err := fnt.Load(fntData)
	if err != nil {
		return nil, err
	}
	r.Seek(btnfStart + int(btnfSize))

	// GMIF
	m, err = r.ReadBytes(4)
	if err != nil {
		return nil, err
	}
	if string(m) != magicGMIF {
		return nil, ndserr.At(ndserr.InvalidMagic, r.Tell()-4, "expected GMIF block")
	}
	if _, err := r.ReadU32(); err != nil { // block size, unused
		return nil, err
	}
	fimgStart := r.Tell()

	files := make([][]byte, numFiles)
	for i, sp := range spans {
		start := fimgStart + int(sp.start)
		end := fimgStart + int(sp.end)
		if start < 0 || end > len(data) || start > end {
			return nil, ndserr.At(ndserr.OutOfBounds, start, "narc file span out of range")
		}
		files[i] = data[start:end]
	}

	return &NARC{BOM: bom, Version: version, Root: root, Files: files}, nil
}

// Save packs a NARC back into its raw bytes. Root's file IDs (via
// fnt.Renumber) must already index into Files contiguously.
func Save(n *NARC) ([]byte, error) {
	bom := n.BOM
	if bom == 0 {
		bom = defaultBOM
	}
	version := n.Version
	if version == 0 {
		version = defaultVersion
	}

	fntData, err := fnt.Save(n.Root)
	if err != nil {
		return nil, err
	}

	w := cursor.NewWriter()
	w.WriteBytes([]byte(magicNARC))
	w.WriteU16(bom)
	w.WriteU16(version)
	fileSizeAnchor := w.Reserve(4)
	w.WriteU16(headerSize)
	w.WriteU16(numBlocks)

	// BTAF
	w.WriteBytes([]byte(magicBTAF))
	btafSizeAnchor := w.Reserve(4)
	btafStart := btafSizeAnchor.Offset - 4
	w.WriteU16(uint16(len(n.Files)))
	w.WriteU16(0)
	spansAnchor := w.Reserve(8 * len(n.Files))
	w.PatchU32At(btafSizeAnchor, uint32(w.Len()-btafStart))

	// BTNF
	w.WriteBytes([]byte(magicBTNF))
	btnfSizeAnchor := w.Reserve(4)
	btnfStart := btnfSizeAnchor.Offset - 4
	w.WriteBytes(fntData)
	w.AlignTo(4, 0xFF)
	w.PatchU32At(btnfSizeAnchor, uint32(w.Len()-btnfStart))

	// GMIF
	w.WriteBytes([]byte(magicGMIF))
	gmifSizeAnchor := w.Reserve(4)
	gmifStart := gmifSizeAnchor.Offset - 4
	fimgStart := w.Len()

	spans := make([]byte, 8*len(n.Files))
	offset := uint32(0)
	for i, f := range n.Files {
		w.WriteBytes(f)
		w.AlignTo(4, 0xFF)
		end := offset + uint32(len(f))
		be := cursor.NewWriter()
		be.WriteU32(offset)
		be.WriteU32(end)
		copy(spans[8*i:8*i+8], be.Bytes())
		offset = uint32(w.Len() - fimgStart)
	}
	w.PatchAt(spansAnchor, spans)
	w.PatchU32At(gmifSizeAnchor, uint32(w.Len()-gmifStart))

	w.PatchU32At(fileSizeAnchor, uint32(w.Len()))

	return w.Bytes(), nil
}

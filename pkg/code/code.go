// Package code implements the ARM7/ARM9 main code file and overlay
// containers: a section table recovered either from a ROM-header-held
// pointer or by heuristic search, and the overlay table referencing
// per-overlay code blobs compressed with pkg/codecompress.
package code

import (
	"github.com/falk/ndsfmt-go/pkg/codecompress"
	"github.com/falk/ndsfmt-go/pkg/cursor"
	"github.com/falk/ndsfmt-go/pkg/ndserr"
)

// codeSettingsMagic marks the start of the code settings block in most ARM9
// binaries; ARM7 binaries don't carry it, so the search falls back to a
// second heuristic below.
var codeSettingsMagic = []byte{0x21, 0x06, 0xC0, 0xDE, 0xDE, 0xC0, 0x06, 0x21}

// Section is one contiguous piece of a MainCodeFile. The very first section
// in any file is implicit: it occupies the bytes before the code settings
// block's copy table and has no entry of its own in that table.
type Section struct {
	Data       []byte
	RAMAddress uint32
	BSSSize    uint32
	Implicit   bool
}

// MainCodeFile is either the ARM7 or the ARM9 main code binary.
type MainCodeFile struct {
	Sections   []Section
	RAMAddress uint32

	// CodeSettingsOffset is the byte offset of the code settings block
	// within the decompressed data, or -1 if none could be found (in which
	// case the whole file is a single implicit section).
	CodeSettingsOffset int
}

// looksCodeCompressed applies the same sanity checks codeCompression.py's
// _detectAppendedData uses to decide whether a buffer ends with a genuine
// code-compression footer, short of walking its appended-data search loop:
// enough bytes for the footer, a header length that covers the footer and
// fits the buffer, and a compressed length that actually fits.
func looksCodeCompressed(data []byte) bool {
	const footerSize = 8
	if len(data) < footerSize {
		return false
	}
	footer := data[len(data)-footerSize:]
	combined := uint32(footer[0]) | uint32(footer[1])<<8 | uint32(footer[2])<<16 | uint32(footer[3])<<24
	delta := uint32(footer[4]) | uint32(footer[5])<<8 | uint32(footer[6])<<16 | uint32(footer[7])<<24
	headerLen := int(combined >> 24)
	if headerLen < footerSize || headerLen > len(data) {
		return false
	}
	if delta == 0 {
		// Compress() always emits this marker for "not worth compressing";
		// Decompress() already handles it by returning the body unchanged.
		return true
	}
	compressedLen := int(combined & 0xFFFFFF)
	return compressedLen >= headerLen && compressedLen <= len(data)
}

// Load parses a main code file. codeSettingsPointerAddress is the ROM
// header's held RAM address of a pointer to the code settings block (ARM7
// and ARM9 each have their own header field for this); pass 0 if unknown, in
// which case the heuristic search runs directly.
func Load(data []byte, ramAddress uint32, codeSettingsPointerAddress uint32) (*MainCodeFile, error) {
	if looksCodeCompressed(data) {
		decompressed, err := codecompress.Decompress(data)
		if err != nil {
			return nil, err
		}
		data = decompressed
	}

	m := &MainCodeFile{RAMAddress: ramAddress, CodeSettingsOffset: -1}

	if codeSettingsPointerAddress != 0 {
		ptrFileOffset := int(codeSettingsPointerAddress) - int(ramAddress) - 4
		if ptrFileOffset >= 0 && ptrFileOffset+4 <= len(data) {
			r := cursor.NewReader(data)
			r.Seek(ptrFileOffset)
			addr, err := r.ReadU32()
			if err == nil {
				off := int(addr) - int(ramAddress)
				if off >= 0 && off < len(data)-4 {
					m.CodeSettingsOffset = off
				}
			}
		}
	}

	if m.CodeSettingsOffset == -1 {
		m.CodeSettingsOffset = searchForCodeSettingsOffset(data, ramAddress)
	}

	var copyTableBegin, copyTableEnd, dataBegin int
	if m.CodeSettingsOffset >= 0 {
		r := cursor.NewReader(data)
		r.Seek(m.CodeSettingsOffset)
		begin, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		end, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		dBegin, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		copyTableBegin = int(begin) - int(ramAddress)
		copyTableEnd = int(end) - int(ramAddress)
		dataBegin = int(dBegin) - int(ramAddress)
	} else {
		dataBegin = len(data)
	}

	if dataBegin < 0 || dataBegin > len(data) {
		return nil, ndserr.At(ndserr.MalformedCode, 0, "code settings data-begin offset out of range")
	}
	m.Sections = append(m.Sections, Section{
		Data:       append([]byte(nil), data[0:dataBegin]...),
		RAMAddress: ramAddress,
		Implicit:   true,
	})

	pos := copyTableBegin
	for pos < copyTableEnd {
		if pos < 0 || pos+12 > len(data) {
			return nil, ndserr.At(ndserr.MalformedCode, pos, "code section copy table entry out of range")
		}
		r := cursor.NewReader(data)
		r.Seek(pos)
		secRAM, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		secSize, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		bssSize, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		pos += 12

		if dataBegin < 0 || dataBegin+int(secSize) > len(data) {
			return nil, ndserr.At(ndserr.MalformedCode, dataBegin, "code section data out of range")
		}
		m.Sections = append(m.Sections, Section{
			Data:       append([]byte(nil), data[dataBegin:dataBegin+int(secSize)]...),
			RAMAddress: secRAM,
			BSSSize:    bssSize,
		})
		dataBegin += int(secSize)
	}

	return m, nil
}

// searchForCodeSettingsOffset reproduces ndspy's two-stage fallback: first a
// magic-byte scan (works for ARM9 binaries, which embed the magic within the
// first 0x8000 bytes), then, for ARM7 binaries which lack that magic, a scan
// for a copy-table-end word equal to ramAddress+len(data) whose preceding
// copy-table-begin word is 4-byte aligned and leaves a table of whole 12-byte
// entries shorter than 0x100 bytes.
func searchForCodeSettingsOffset(data []byte, ramAddress uint32) int {
	limit := 0x8000
	if limit > len(data)-8 {
		limit = len(data) - 8
	}
	for i := 0; i <= limit; i += 4 {
		if i < 0 {
			continue
		}
		if i+8 <= len(data) && bytesEqual(data[i:i+8], codeSettingsMagic) {
			return i - 0x1C
		}
	}

	expectedTableEnd := ramAddress + uint32(len(data))
	var want [4]byte
	want[0] = byte(expectedTableEnd)
	want[1] = byte(expectedTableEnd >> 8)
	want[2] = byte(expectedTableEnd >> 16)
	want[3] = byte(expectedTableEnd >> 24)

	for match := indexOf(data, want[:], 0); match != -1; match = indexOf(data, want[:], match+1) {
		if match < 4 {
			continue
		}
		r := cursor.NewReader(data)
		r.Seek(match - 4)
		possibleStart, err := r.ReadU32()
		if err != nil {
			continue
		}
		tableLen := expectedTableEnd - possibleStart
		if possibleStart%4 == 0 && tableLen%12 == 0 && tableLen < 0x100 {
			return match - 4
		}
	}
	return -1
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func indexOf(data, pattern []byte, from int) int {
	if from < 0 {
		from = 0
	}
	for i := from; i+len(pattern) <= len(data); i++ {
		if bytesEqual(data[i:i+len(pattern)], pattern) {
			return i
		}
	}
	return -1
}

// Save generates the file data for this code file. When compress is true the
// result is code-compressed via pkg/codecompress, with arm9 selecting the
// extra safety margin that real ARM9 images carry.
func Save(m *MainCodeFile, compress bool, arm9 bool) ([]byte, error) {
	w := cursor.NewWriter()
	for _, s := range m.Sections {
		w.WriteBytes(s.Data)
		w.AlignTo(4, 0)
	}

	sectionTableOffset := w.Len()
	// Non-empty sections first, then zero-length ones - these are NOT the
	// same loop, matching code.py's save().
	for _, s := range m.Sections {
		if s.Implicit || len(s.Data) == 0 {
			continue
		}
		w.WriteU32(s.RAMAddress)
		w.WriteU32(uint32(len(s.Data)))
		w.WriteU32(s.BSSSize)
	}
	for _, s := range m.Sections {
		if s.Implicit || len(s.Data) != 0 {
			continue
		}
		w.WriteU32(s.RAMAddress)
		w.WriteU32(uint32(len(s.Data)))
		w.WriteU32(s.BSSSize)
	}

	data := w.Bytes()

	if m.CodeSettingsOffset >= 0 {
		cso := m.CodeSettingsOffset
		if cso+0x18 > len(data) {
			return nil, ndserr.At(ndserr.MalformedCode, cso, "code settings offset out of range on save")
		}
		sectionTableAddr := m.RAMAddress + uint32(sectionTableOffset)
		sectionTableEnd := sectionTableAddr + uint32(len(data)-sectionTableOffset)
		putU32(data, cso+0x00, sectionTableAddr)
		putU32(data, cso+0x04, sectionTableEnd)
		firstLen := 0
		if len(m.Sections) > 0 {
			firstLen = len(m.Sections[0].Data)
		}
		putU32(data, cso+0x08, m.RAMAddress+uint32(firstLen))

		if compress {
			compressed := codecompress.Compress(data, arm9)
			putU32(data, cso+0x14, m.RAMAddress+uint32(len(compressed)))
			return compressed, nil
		}
		putU32(data, cso+0x14, 0)
	} else if compress {
		return codecompress.Compress(data, arm9), nil
	}

	return data, nil
}

func putU32(data []byte, offset int, v uint32) {
	data[offset] = byte(v)
	data[offset+1] = byte(v >> 8)
	data[offset+2] = byte(v >> 16)
	data[offset+3] = byte(v >> 24)
}

// Overlay is a single ARM7 or ARM9 code overlay, loaded from its own file
// slot in the ROM's file table and described by an entry in the overlay
// table.
type Overlay struct {
	Data            []byte
	RAMAddress      uint32
	RAMSize         uint32
	BSSSize         uint32
	StaticInitStart uint32
	StaticInitEnd   uint32
	FileID          uint32
	CompressedSize  uint32
	Flags           byte
}

// Compressed reports whether this overlay's on-disk file data is
// code-compressed (flags bit 0).
func (o *Overlay) Compressed() bool { return o.Flags&1 != 0 }

// VerifyHash reports whether this overlay's hash-verification flag is set
// (flags bit 1).
func (o *Overlay) VerifyHash() bool { return o.Flags&2 != 0 }

// decodeOverlayData decompresses fileData if the overlay's flags mark it as
// compressed, per LoadOverlayTable's per-entry dispatch.
func decodeOverlayData(fileData []byte, flags byte) ([]byte, error) {
	if flags&1 == 0 {
		return append([]byte(nil), fileData...), nil
	}
	return codecompress.Decompress(fileData)
}

// LoadOverlayTable parses the fixed 32-byte-per-entry overlay table,
// fetching each overlay's file contents via fetchFile(fileID). If idsToLoad
// is non-nil, only overlay IDs present in it are loaded.
func LoadOverlayTable(tableData []byte, fetchFile func(overlayID, fileID uint32) ([]byte, error), idsToLoad map[uint32]bool) (map[uint32]*Overlay, error) {
	overlays := map[uint32]*Overlay{}
	r := cursor.NewReader(tableData)
	for off := 0; off+32 <= len(tableData); off += 32 {
		r.Seek(off)
		ovID, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		ramAddr, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		ramSize, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		bssSize, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		initStart, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		initEnd, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		fileID, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		sizeAndFlags, err := r.ReadU32()
		if err != nil {
			return nil, err
		}

		if idsToLoad != nil && !idsToLoad[ovID] {
			continue
		}

		fileData, err := fetchFile(ovID, fileID)
		if err != nil {
			return nil, err
		}

		flags := byte(sizeAndFlags >> 24)
		decoded, err := decodeOverlayData(fileData, flags)
		if err != nil {
			return nil, err
		}

		overlays[ovID] = &Overlay{
			Data:            decoded,
			RAMAddress:      ramAddr,
			RAMSize:         ramSize,
			BSSSize:         bssSize,
			StaticInitStart: initStart,
			StaticInitEnd:   initEnd,
			FileID:          fileID,
			CompressedSize:  sizeAndFlags & 0xFFFFFF,
			Flags:           flags,
		}
	}
	return overlays, nil
}

// SaveOverlay serializes an overlay's data, optionally code-compressing it,
// and reports the resulting flags/compressed-size/ram-size fields an
// overlay-table entry must carry to reflect this save.
func SaveOverlay(o *Overlay, compress bool) []byte {
	o.RAMSize = uint32(len(o.Data))
	var data []byte
	if compress {
		data = codecompress.Compress(o.Data, false)
		o.Flags |= 1
	} else {
		data = o.Data
		o.Flags &^= 1
	}
	o.CompressedSize = uint32(len(data))
	return data
}

// SaveOverlayTable serializes a set of overlays into the fixed 32-byte-entry
// table format, in ascending overlay-ID order.
func SaveOverlayTable(overlays map[uint32]*Overlay) []byte {
	if len(overlays) == 0 {
		return nil
	}
	ids := make([]uint32, 0, len(overlays))
	for id := range overlays {
		ids = append(ids, id)
	}
	sortUint32s(ids)

	w := cursor.NewWriter()
	for _, id := range ids {
		o := overlays[id]
		w.WriteU32(id)
		w.WriteU32(o.RAMAddress)
		w.WriteU32(o.RAMSize)
		w.WriteU32(o.BSSSize)
		w.WriteU32(o.StaticInitStart)
		w.WriteU32(o.StaticInitEnd)
		w.WriteU32(o.FileID)
		w.WriteU32(o.CompressedSize | uint32(o.Flags)<<24)
	}
	return w.Bytes()
}

func sortUint32s(ids []uint32) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}

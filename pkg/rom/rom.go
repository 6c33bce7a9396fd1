// Package rom implements the Nintendo DS ROM (.nds) container: the fixed
// header, the ARM9/ARM7 executables and their overlay tables, the filename
// tree, and the file allocation table, plus the opaque icon/banner, RSA
// signature, debug-ROM, and ARM9 post-data blobs this module never
// interprets.
package rom

import (
	"math/bits"

	"github.com/howeyc/crc16"

	"github.com/falk/ndsfmt-go/pkg/code"
	"github.com/falk/ndsfmt-go/pkg/cursor"
	"github.com/falk/ndsfmt-go/pkg/fnt"
	"github.com/falk/ndsfmt-go/pkg/ndserr"
)

// nintendoLogo is the boot logo every retail cartridge embeds at 0xC0; the
// BIOS bootstrap checksums it against a fixed value before running the
// title, so a freshly constructed ROM needs the real bytes even though this
// module never validates them itself.
var nintendoLogo = []byte{
	0x24, 0xFF, 0xAE, 0x51, 0x69, 0x9A, 0xA2, 0x21, 0x3D, 0x84, 0x82, 0x0A,
	0x84, 0xE4, 0x09, 0xAD, 0x11, 0x24, 0x8B, 0x98, 0xC0, 0x81, 0x7F, 0x21,
	0xA3, 0x52, 0xBE, 0x19, 0x93, 0x09, 0xCE, 0x20, 0x10, 0x46, 0x4A, 0x4A,
	0xF8, 0x27, 0x31, 0xEC, 0x58, 0xC7, 0xE8, 0x33, 0x82, 0xE3, 0xCE, 0xBF,
	0x85, 0xF4, 0xDF, 0x94, 0xCE, 0x4B, 0x09, 0xC1, 0x94, 0x56, 0x8A, 0xC0,
	0x13, 0x72, 0xA7, 0xFC, 0x9F, 0x84, 0x4D, 0x73, 0xA3, 0xCA, 0x9A, 0x61,
	0x58, 0x97, 0xA3, 0x27, 0xFC, 0x03, 0x98, 0x76, 0x23, 0x1D, 0xC7, 0x61,
	0x03, 0x04, 0xAE, 0x56, 0xBF, 0x38, 0x84, 0x00, 0x40, 0xA7, 0x0E, 0xFD,
	0xFF, 0x52, 0xFE, 0x03, 0x6F, 0x95, 0x30, 0xF1, 0x97, 0xFB, 0xC0, 0x85,
	0x60, 0xD6, 0x80, 0x25, 0xA9, 0x63, 0xBE, 0x03, 0x01, 0x4E, 0x38, 0xE2,
	0xF9, 0xA2, 0x34, 0xFF, 0xBB, 0x3E, 0x03, 0x44, 0x78, 0x00, 0x90, 0xCB,
	0x88, 0x11, 0x3A, 0x94, 0x65, 0xC0, 0x7C, 0x63, 0x87, 0xF0, 0x3C, 0xAF,
	0xD6, 0x25, 0xE4, 0x8B, 0x38, 0x0A, 0xAC, 0x72, 0x21, 0xD4, 0xF8, 0x07,
}

var iconBannerLengths = map[uint16]int{
	0x0001: 0x840,
	0x0002: 0x940,
	0x0003: 0x1240,
	0x0103: 0x23C0,
}

// NintendoDSRom is a complete .nds file.
type NintendoDSRom struct {
	Name              string
	IDCode            [4]byte
	DeveloperCode     [2]byte
	UnitCode          byte
	EncryptionSeedSel byte
	DeviceCapacity    byte
	Pad015            [8]byte
	Region            byte
	Version           byte
	Autostart         byte

	ARM9EntryAddress uint32
	ARM9RamAddress   uint32
	ARM9             []byte
	ARM9PostData     []byte

	ARM7EntryAddress uint32
	ARM7RamAddress   uint32
	ARM7             []byte

	ARM9OverlayTable []byte
	ARM7OverlayTable []byte

	NormalCardControlRegisterSettings uint32
	SecureCardControlRegisterSettings uint32
	SecureAreaChecksum                uint16
	SecureTransferDelay               uint16

	ARM9CodeSettingsPointerAddress uint32
	ARM7CodeSettingsPointerAddress uint32
	SecureAreaDisable              [8]byte

	Pad088      [0x38]byte
	NintendoLogo [0x9C]byte

	DebugROM        []byte
	DebugROMAddress uint32
	Pad16C          [0x94]byte
	Pad200          []byte

	RSASignature []byte
	IconBanner   []byte

	Filenames *fnt.Folder
	Files     [][]byte

	// SortedFileIDs governs save-time file layout priority (e.g. so ROM
	// tools can group related files together); IDs absent from it, or IDs
	// already placed by the overlay-packing pass, fall back to ascending
	// order.
	SortedFileIDs []int
}

// New returns a ROM with the same defaults ndspy assigns a freshly
// constructed archive: default entry addresses, card control register
// settings, and Nintendo's boot logo.
func New() *NintendoDSRom {
	r := &NintendoDSRom{
		IDCode:                             [4]byte{'#', '#', '#', '#'},
		DeviceCapacity:                     9,
		ARM9EntryAddress:                   0x2000800,
		ARM9RamAddress:                     0x2000000,
		ARM7EntryAddress:                   0x2380000,
		ARM7RamAddress:                     0x2380000,
		NormalCardControlRegisterSettings:  0x0416657,
		SecureCardControlRegisterSettings:  0x81808f8,
		SecureTransferDelay:                0x0D7E,
		Filenames:                          &fnt.Folder{},
	}
	copy(r.NintendoLogo[:], nintendoLogo)
	return r
}

// Load parses a complete ROM image.
func Load(data []byte) (*NintendoDSRom, error) {
	if len(data) < 0x200 {
		padded := make([]byte, 0x200)
		copy(padded, data)
		data = padded
	}

	r := cursor.NewReader(data)
	rom := &NintendoDSRom{}

	nameRaw, err := r.ReadBytes(12)
	if err != nil {
		return nil, err
	}
	end := len(nameRaw)
	for end > 0 && nameRaw[end-1] == 0 {
		end--
	}
	rom.Name = string(nameRaw[:end])

	idCode, err := r.ReadBytes(4)
	if err != nil {
		return nil, err
	}
	copy(rom.IDCode[:], idCode)
	devCode, err := r.ReadBytes(2)
	if err != nil {
		return nil, err
	}
	copy(rom.DeveloperCode[:], devCode)

	rom.UnitCode, _ = r.ReadU8()
	rom.EncryptionSeedSel, _ = r.ReadU8()
	rom.DeviceCapacity, _ = r.ReadU8()
	if r.Tell() != 0x15 {
		return nil, ndserr.At(ndserr.MalformedROM, r.Tell(), "header offset check at 0x15 failed")
	}
	pad, err := r.ReadBytes(8)
	if err != nil {
		return nil, err
	}
	copy(rom.Pad015[:], pad)
	rom.Region, _ = r.ReadU8()
	rom.Version, _ = r.ReadU8()
	rom.Autostart, _ = r.ReadU8()
	if r.Tell() != 0x20 {
		return nil, ndserr.At(ndserr.MalformedROM, r.Tell(), "header offset check at 0x20 failed")
	}

	arm9Offset, _ := r.ReadU32()
	rom.ARM9EntryAddress, _ = r.ReadU32()
	rom.ARM9RamAddress, _ = r.ReadU32()
	arm9Len, _ := r.ReadU32()
	arm7Offset, _ := r.ReadU32()
	rom.ARM7EntryAddress, _ = r.ReadU32()
	rom.ARM7RamAddress, _ = r.ReadU32()
	arm7Len, _ := r.ReadU32()
	if r.Tell() != 0x40 {
		return nil, ndserr.At(ndserr.MalformedROM, r.Tell(), "header offset check at 0x40 failed")
	}

	fntOffset, _ := r.ReadU32()
	fntLen, _ := r.ReadU32()
	fatOffset, _ := r.ReadU32()
	fatLen, _ := r.ReadU32()
	arm9OvtOffset, _ := r.ReadU32()
	arm9OvtLen, _ := r.ReadU32()
	arm7OvtOffset, _ := r.ReadU32()
	arm7OvtLen, _ := r.ReadU32()
	if r.Tell() != 0x60 {
		return nil, ndserr.At(ndserr.MalformedROM, r.Tell(), "header offset check at 0x60 failed")
	}

	rom.NormalCardControlRegisterSettings, _ = r.ReadU32()
	rom.SecureCardControlRegisterSettings, _ = r.ReadU32()
	iconBannerOffset, _ := r.ReadU32()
	rom.SecureAreaChecksum, _ = r.ReadU16()
	rom.SecureTransferDelay, _ = r.ReadU16()
	if r.Tell() != 0x70 {
		return nil, ndserr.At(ndserr.MalformedROM, r.Tell(), "header offset check at 0x70 failed")
	}

	rom.ARM9CodeSettingsPointerAddress, _ = r.ReadU32()
	rom.ARM7CodeSettingsPointerAddress, _ = r.ReadU32()
	secDisable, err := r.ReadBytes(8)
	if err != nil {
		return nil, err
	}
	copy(rom.SecureAreaDisable[:], secDisable)
	if r.Tell() != 0x80 {
		return nil, ndserr.At(ndserr.MalformedROM, r.Tell(), "header offset check at 0x80 failed")
	}

	romSizeOrRsaSigOffset, _ := r.ReadU32()
	if _, err := r.ReadU32(); err != nil { // headerSize, fixed at 0x4000, not carried
		return nil, err
	}
	pad088, err := r.ReadBytes(0x38)
	if err != nil {
		return nil, err
	}
	copy(rom.Pad088[:], pad088)
	logo, err := r.ReadBytes(0x9C)
	if err != nil {
		return nil, err
	}
	copy(rom.NintendoLogo[:], logo)
	if _, err := r.ReadU16(); err != nil { // header CRC16, recomputed on save
		return nil, err
	}
	if _, err := r.ReadU16(); err != nil { // reserved
		return nil, err
	}
	if r.Tell() != 0x160 {
		return nil, ndserr.At(ndserr.MalformedROM, r.Tell(), "header offset check at 0x160 failed")
	}

	debugRomOffset, _ := r.ReadU32()
	debugRomSize, _ := r.ReadU32()
	rom.DebugROMAddress, _ = r.ReadU32()
	pad16C, err := r.ReadBytes(0x94)
	if err != nil {
		return nil, err
	}
	copy(rom.Pad16C[:], pad16C)
	if r.Tell() != 0x200 {
		return nil, ndserr.At(ndserr.MalformedROM, r.Tell(), "header offset check at 0x200 failed")
	}

	postHeaderEnd := int(arm9Offset)
	if postHeaderEnd > len(data) {
		postHeaderEnd = len(data)
	}
	if postHeaderEnd < 0x200 {
		postHeaderEnd = 0x200
	}
	rom.Pad200 = append([]byte(nil), data[0x200:postHeaderEnd]...)

	realSigOffset := uint32(0)
	if len(data) >= 0x1004 {
		realSigOffset = leU32(data, 0x1000)
	}
	if realSigOffset == 0 && len(data) > int(romSizeOrRsaSigOffset) {
		realSigOffset = romSizeOrRsaSigOffset
	}
	if realSigOffset != 0 {
		sigEnd := int(realSigOffset) + 0x88
		if sigEnd > len(data) {
			sigEnd = len(data)
		}
		rom.RSASignature = append([]byte(nil), data[realSigOffset:sigEnd]...)
	}

	if err := checkRange(data, arm9Offset, arm9Len); err != nil {
		return nil, err
	}
	rom.ARM9 = append([]byte(nil), data[arm9Offset:arm9Offset+arm9Len]...)
	if err := checkRange(data, arm7Offset, arm7Len); err != nil {
		return nil, err
	}
	rom.ARM7 = append([]byte(nil), data[arm7Offset:arm7Offset+arm7Len]...)

	if err := checkRange(data, arm9OvtOffset, arm9OvtLen); err != nil {
		return nil, err
	}
	rom.ARM9OverlayTable = append([]byte(nil), data[arm9OvtOffset:arm9OvtOffset+arm9OvtLen]...)
	if err := checkRange(data, arm7OvtOffset, arm7OvtLen); err != nil {
		return nil, err
	}
	rom.ARM7OverlayTable = append([]byte(nil), data[arm7OvtOffset:arm7OvtOffset+arm7OvtLen]...)

	if iconBannerOffset != 0 {
		version := leU16(data, int(iconBannerOffset))
		length, ok := iconBannerLengths[version]
		if !ok {
			length = iconBannerLengths[0x0001]
		}
		end := int(iconBannerOffset) + length
		if end > len(data) {
			end = len(data)
		}
		rom.IconBanner = append([]byte(nil), data[iconBannerOffset:end]...)
	}

	if debugRomOffset != 0 {
		end := int(debugRomOffset) + int(debugRomSize)
		if end > len(data) {
			end = len(data)
		}
		rom.DebugROM = append([]byte(nil), data[debugRomOffset:end]...)
	}

	// ARM9 post-data: a run of 12-byte records, each beginning with the
	// code-settings magic prefix, immediately following the ARM9 image.
	postDataOffset := int(arm9Offset) + int(arm9Len)
	var postData []byte
	for postDataOffset+4 <= len(data) &&
		data[postDataOffset] == 0x21 && data[postDataOffset+1] == 0x06 &&
		data[postDataOffset+2] == 0xC0 && data[postDataOffset+3] == 0xDE {
		end := postDataOffset + 12
		if end > len(data) {
			end = len(data)
		}
		postData = append(postData, data[postDataOffset:end]...)
		postDataOffset += 12
	}
	rom.ARM9PostData = postData

	if fntLen > 0 {
		if err := checkRange(data, fntOffset, fntLen); err != nil {
			return nil, err
		}
		folder, err := fnt.Load(data[fntOffset : fntOffset+fntLen])
		if err != nil {
			return nil, err
		}
		rom.Filenames = folder
	} else {
		rom.Filenames = &fnt.Folder{}
	}

	if fatLen > 0 {
		if err := checkRange(data, fatOffset, fatLen); err != nil {
			return nil, err
		}
		fat := data[fatOffset : fatOffset+fatLen]
		count := len(fat) / 8
		rom.Files = make([][]byte, count)
		offsetToID := make(map[uint32]int, count)
		for i := 0; i < count; i++ {
			start := leU32(fat, 8*i)
			end := leU32(fat, 8*i+4)
			if end > uint32(len(data)) || start > end {
				return nil, ndserr.At(ndserr.MalformedROM, int(start), "FAT entry out of range")
			}
			rom.Files[i] = append([]byte(nil), data[start:end]...)
			offsetToID[start] = i
		}
		offsets := make([]uint32, 0, len(offsetToID))
		for off := range offsetToID {
			offsets = append(offsets, off)
		}
		sortU32(offsets)
		rom.SortedFileIDs = make([]int, len(offsets))
		for i, off := range offsets {
			rom.SortedFileIDs[i] = offsetToID[off]
		}
	}

	return rom, nil
}

func checkRange(data []byte, off, length uint32) error {
	if uint64(off)+uint64(length) > uint64(len(data)) {
		return ndserr.At(ndserr.OutOfBounds, int(off), "ROM section extends past end of file")
	}
	return nil
}

func leU16(data []byte, off int) uint16 {
	return uint16(data[off]) | uint16(data[off+1])<<8
}

func leU32(data []byte, off int) uint32 {
	return uint32(data[off]) | uint32(data[off+1])<<8 | uint32(data[off+2])<<16 | uint32(data[off+3])<<24
}

func sortU32(s []uint32) {
	for i := 1; i < len(s); i++ {
		v := s[i]
		j := i - 1
		for j >= 0 && s[j] > v {
			s[j+1] = s[j]
			j--
		}
		s[j+1] = v
	}
}

// SaveOptions controls Save's behavior beyond byte-for-byte field
// serialization.
type SaveOptions struct {
	// UpdateDeviceCapacity recomputes DeviceCapacity from the final ROM
	// size instead of using the stored value.
	UpdateDeviceCapacity bool
}

// Save serializes a complete ROM image.
func Save(rom *NintendoDSRom, opts SaveOptions) ([]byte, error) {
	fileOffsets := map[int]int{}

	w := cursor.NewWriter()
	w.Pad(0x200, 0)
	w.WriteBytes(rom.Pad200)
	w.AlignTo(0x4000, 0)

	arm9Offset := w.Len()
	w.WriteBytes(rom.ARM9)
	w.WriteBytes(rom.ARM9PostData)
	w.AlignTo(0x200, 0xFF)

	arm9OvtOffset := 0
	if len(rom.ARM9OverlayTable) > 0 {
		arm9OvtOffset = w.Len()
		w.WriteBytes(rom.ARM9OverlayTable)
		w.AlignTo(0x200, 0xFF)
	}
	for i := 0; i+0x1C <= len(rom.ARM9OverlayTable); i += 32 {
		fileID := int(leU32(rom.ARM9OverlayTable, i+0x18))
		if fileID < 0 || fileID >= len(rom.Files) {
			continue
		}
		fileOffsets[fileID] = w.Len()
		w.WriteBytes(rom.Files[fileID])
		w.AlignTo(0x200, 0xFF)
	}

	arm7Offset := w.Len()
	w.WriteBytes(rom.ARM7)
	w.AlignTo(0x200, 0xFF)

	arm7OvtOffset := 0
	if len(rom.ARM7OverlayTable) > 0 {
		arm7OvtOffset = w.Len()
		w.WriteBytes(rom.ARM7OverlayTable)
		w.AlignTo(0x200, 0xFF)
	}
	for i := 0; i+0x1C <= len(rom.ARM7OverlayTable); i += 32 {
		fileID := int(leU32(rom.ARM7OverlayTable, i+0x18))
		if fileID < 0 || fileID >= len(rom.Files) {
			continue
		}
		fileOffsets[fileID] = w.Len()
		w.WriteBytes(rom.Files[fileID])
		w.AlignTo(0x200, 0xFF)
	}

	fntOffset := w.Len()
	fntData, err := fnt.Save(rom.Filenames)
	if err != nil {
		return nil, err
	}
	w.WriteBytes(fntData)
	w.AlignTo(0x200, 0xFF)

	fatOffset := w.Len()
	w.Pad(8*len(rom.Files), 0)
	w.AlignTo(0x200, 0xFF)

	iconBannerOffset := 0
	if len(rom.IconBanner) > 0 {
		version := leU16(rom.IconBanner, 0)
		want, ok := iconBannerLengths[version]
		if !ok || want != len(rom.IconBanner) {
			return nil, ndserr.New(ndserr.MalformedROM, "icon/banner length does not match its version field")
		}
		iconBannerOffset = w.Len()
		w.WriteBytes(rom.IconBanner)
		w.AlignTo(0x200, 0xFF)
	}

	debugRomOffset := 0
	if len(rom.DebugROM) > 0 {
		debugRomOffset = w.Len()
		w.WriteBytes(rom.DebugROM)
		w.AlignTo(0x200, 0xFF)
	}

	// Remaining files: sortedFileIDs first (for any not already placed by
	// overlay packing), then whatever's left in ascending order.
	placed := make([]bool, len(rom.Files))
	for id := range fileOffsets {
		placed[id] = true
	}
	var order []int
	for _, id := range rom.SortedFileIDs {
		if id >= 0 && id < len(rom.Files) && !placed[id] {
			order = append(order, id)
			placed[id] = true
		}
	}
	for id := range rom.Files {
		if !placed[id] {
			order = append(order, id)
			placed[id] = true
		}
	}
	for _, id := range order {
		w.AlignTo(0x200, 0xFF)
		fileOffsets[id] = w.Len()
		w.WriteBytes(rom.Files[id])
	}

	buf := w.Bytes()
	for i, file := range rom.Files {
		start, ok := fileOffsets[i]
		if !ok {
			return nil, ndserr.New(ndserr.MalformedROM, "file has no assigned offset")
		}
		putU32LE(buf, fatOffset+8*i, uint32(start))
		putU32LE(buf, fatOffset+8*i+4, uint32(start+len(file)))
	}

	for len(buf)%0x20 != 0 {
		buf = append(buf, 0)
	}
	rsaSignatureOffset := len(buf)
	buf = append(buf, rom.RSASignature...)
	for len(buf) < 0x1004 {
		buf = append(buf, 0)
	}
	putU32LE(buf, 0x1000, uint32(rsaSignatureOffset))

	deviceCapacity := rom.DeviceCapacity
	if opts.UpdateDeviceCapacity {
		deviceCapacity = byte(bits.Len(uint(len(buf)-1)) - 17)
	}

	// Header
	name := []byte(rom.Name)
	if len(name) > 12 {
		name = name[:12]
	}
	copy(buf[0:12], name)
	copy(buf[12:16], rom.IDCode[:])
	copy(buf[16:18], rom.DeveloperCode[:])
	buf[18] = rom.UnitCode
	buf[19] = rom.EncryptionSeedSel
	buf[20] = deviceCapacity
	copy(buf[0x15:0x1D], rom.Pad015[:])
	buf[0x1D] = rom.Region
	buf[0x1E] = rom.Version
	buf[0x1F] = rom.Autostart

	putU32LE(buf, 0x20, uint32(arm9Offset))
	putU32LE(buf, 0x24, rom.ARM9EntryAddress)
	putU32LE(buf, 0x28, rom.ARM9RamAddress)
	putU32LE(buf, 0x2C, uint32(len(rom.ARM9)))
	putU32LE(buf, 0x30, uint32(arm7Offset))
	putU32LE(buf, 0x34, rom.ARM7EntryAddress)
	putU32LE(buf, 0x38, rom.ARM7RamAddress)
	putU32LE(buf, 0x3C, uint32(len(rom.ARM7)))

	putU32LE(buf, 0x40, uint32(fntOffset))
	putU32LE(buf, 0x44, uint32(len(fntData)))
	putU32LE(buf, 0x48, uint32(fatOffset))
	putU32LE(buf, 0x4C, uint32(len(rom.Files)*8))
	putU32LE(buf, 0x50, uint32(arm9OvtOffset))
	putU32LE(buf, 0x54, uint32(len(rom.ARM9OverlayTable)))
	putU32LE(buf, 0x58, uint32(arm7OvtOffset))
	putU32LE(buf, 0x5C, uint32(len(rom.ARM7OverlayTable)))

	putU32LE(buf, 0x60, rom.NormalCardControlRegisterSettings)
	putU32LE(buf, 0x64, rom.SecureCardControlRegisterSettings)
	putU32LE(buf, 0x68, uint32(iconBannerOffset))
	putU16LE(buf, 0x6C, rom.SecureAreaChecksum)
	putU16LE(buf, 0x6E, rom.SecureTransferDelay)

	putU32LE(buf, 0x70, rom.ARM9CodeSettingsPointerAddress)
	putU32LE(buf, 0x74, rom.ARM7CodeSettingsPointerAddress)
	copy(buf[0x78:0x80], rom.SecureAreaDisable[:])

	putU32LE(buf, 0x80, uint32(rsaSignatureOffset))
	putU32LE(buf, 0x84, 0x4000)
	copy(buf[0x88:0x88+0x38], rom.Pad088[:])
	copy(buf[0xC0:0xC0+0x9C], rom.NintendoLogo[:])
	putU16LE(buf, 0x15C, crc16.Update(0xFFFF, crc16.IBMTable, buf[0:0x15C]))

	putU32LE(buf, 0x160, uint32(debugRomOffset))
	putU32LE(buf, 0x164, uint32(len(rom.DebugROM)))
	putU32LE(buf, 0x168, rom.DebugROMAddress)
	copy(buf[0x16C:0x16C+0x94], rom.Pad16C[:])

	return buf, nil
}

func putU32LE(buf []byte, offset int, v uint32) {
	buf[offset] = byte(v)
	buf[offset+1] = byte(v >> 8)
	buf[offset+2] = byte(v >> 16)
	buf[offset+3] = byte(v >> 24)
}

func putU16LE(buf []byte, offset int, v uint16) {
	buf[offset] = byte(v)
	buf[offset+1] = byte(v >> 8)
}

// LoadARM9 returns a MainCodeFile view of this ROM's ARM9 executable.
func (rom *NintendoDSRom) LoadARM9() (*code.MainCodeFile, error) {
	return code.Load(rom.ARM9, rom.ARM9RamAddress, rom.ARM9CodeSettingsPointerAddress)
}

// LoadARM7 returns a MainCodeFile view of this ROM's ARM7 executable.
func (rom *NintendoDSRom) LoadARM7() (*code.MainCodeFile, error) {
	return code.Load(rom.ARM7, rom.ARM7RamAddress, rom.ARM7CodeSettingsPointerAddress)
}

// LoadARM9Overlays resolves this ROM's ARM9 overlay table against its file
// pool. idsToLoad, when non-nil, restricts which overlay IDs are decoded.
func (rom *NintendoDSRom) LoadARM9Overlays(idsToLoad map[uint32]bool) (map[uint32]*code.Overlay, error) {
	return code.LoadOverlayTable(rom.ARM9OverlayTable, rom.fetchFile, idsToLoad)
}

// LoadARM7Overlays resolves this ROM's ARM7 overlay table against its file
// pool.
func (rom *NintendoDSRom) LoadARM7Overlays(idsToLoad map[uint32]bool) (map[uint32]*code.Overlay, error) {
	return code.LoadOverlayTable(rom.ARM7OverlayTable, rom.fetchFile, idsToLoad)
}

func (rom *NintendoDSRom) fetchFile(overlayID, fileID uint32) ([]byte, error) {
	if int(fileID) >= len(rom.Files) {
		return nil, ndserr.At(ndserr.OutOfBounds, int(fileID), "overlay file ID out of range")
	}
	return rom.Files[fileID], nil
}

// GetFileByName looks up a file's contents by its full path (e.g.
// "data/music/theme.ssar"), walking the filename tree.
func (rom *NintendoDSRom) GetFileByName(path string) ([]byte, error) {
	id, err := fileIDByPath(rom.Filenames, path)
	if err != nil {
		return nil, err
	}
	if int(id) >= len(rom.Files) {
		return nil, ndserr.At(ndserr.OutOfBounds, int(id), "file ID out of range")
	}
	return rom.Files[id], nil
}

// SetFileByName replaces a file's contents by its full path.
func (rom *NintendoDSRom) SetFileByName(path string, data []byte) error {
	id, err := fileIDByPath(rom.Filenames, path)
	if err != nil {
		return err
	}
	if int(id) >= len(rom.Files) {
		return ndserr.At(ndserr.OutOfBounds, int(id), "file ID out of range")
	}
	rom.Files[id] = data
	return nil
}

func fileIDByPath(root *fnt.Folder, path string) (uint16, error) {
	segments := splitPath(path)
	f := root
	for i, seg := range segments {
		if i == len(segments)-1 {
			for fi, name := range f.Files {
				if name == seg {
					return f.FileID(fi), nil
				}
			}
			return 0, ndserr.New(ndserr.OutOfBounds, "no such file: "+path)
		}
		var next *fnt.Folder
		for _, sf := range f.Subfolders {
			if sf.Name == seg {
				next = sf
				break
			}
		}
		if next == nil {
			return 0, ndserr.New(ndserr.OutOfBounds, "no such directory: "+path)
		}
		f = next
	}
	return 0, ndserr.New(ndserr.OutOfBounds, "empty path")
}

func splitPath(path string) []string {
	var out []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '/' {
			if i > start {
				out = append(out, path[start:i])
			}
			start = i + 1
		}
	}
	if start < len(path) {
		out = append(out, path[start:])
	}
	return out
}

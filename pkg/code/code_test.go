package code

import (
	"bytes"
	"testing"
)

func buildWithCodeSettings(sections [][]byte, ramAddress uint32) []byte {
	// sections[0] is the implicit first section and carries the code
	// settings block (copy-table begin/end and data-begin words, four more
	// words left at zero, then the magic at +0x1C); the remaining sections'
	// data follows, and their copy-table entries close the file.
	putU32LE := func(b []byte, off int, v uint32) {
		b[off], b[off+1], b[off+2], b[off+3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
	}
	var data []byte
	data = append(data, sections[0]...)
	for len(data)%4 != 0 {
		data = append(data, 0)
	}
	settingsOffset := len(data)
	data = append(data, make([]byte, 0x1C)...)
	data = append(data, codeSettingsMagic...)

	dataBegin := len(data)
	offsets := make([]int, len(sections))
	for i := 1; i < len(sections); i++ {
		offsets[i] = len(data)
		data = append(data, sections[i]...)
		for len(data)%4 != 0 {
			data = append(data, 0)
		}
	}

	copyTableBegin := len(data)
	for i := 1; i < len(sections); i++ {
		entry := make([]byte, 12) // bss size stays 0
		putU32LE(entry, 0, ramAddress+uint32(offsets[i]))
		putU32LE(entry, 4, uint32(len(sections[i])))
		data = append(data, entry...)
	}

	putU32LE(data, settingsOffset+0x00, ramAddress+uint32(copyTableBegin))
	putU32LE(data, settingsOffset+0x04, ramAddress+uint32(len(data)))
	putU32LE(data, settingsOffset+0x08, ramAddress+uint32(dataBegin))
	return data
}

func TestLoadSectionsViaMagicSearch(t *testing.T) {
	ramAddress := uint32(0x02000000)
	sections := [][]byte{
		bytes.Repeat([]byte{0xAA}, 16),
		bytes.Repeat([]byte{0xBB}, 8),
	}
	data := buildWithCodeSettings(sections, ramAddress)

	m, err := Load(data, ramAddress, 0)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(m.Sections) != 2 {
		t.Fatalf("got %d sections, want 2", len(m.Sections))
	}
	if !m.Sections[0].Implicit {
		t.Fatalf("first section should be implicit")
	}
	if !bytes.Equal(m.Sections[1].Data, sections[1]) {
		t.Fatalf("section 1 data mismatch: %v", m.Sections[1].Data)
	}
}

func TestRoundTripWithoutCompression(t *testing.T) {
	ramAddress := uint32(0x02000000)
	sections := [][]byte{
		bytes.Repeat([]byte{0x11}, 20),
		bytes.Repeat([]byte{0x22}, 12),
	}
	data := buildWithCodeSettings(sections, ramAddress)

	m, err := Load(data, ramAddress, 0)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	saved, err := Save(m, false, false)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded, err := Load(saved, ramAddress, 0)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(reloaded.Sections) != len(m.Sections) {
		t.Fatalf("section count mismatch after round trip")
	}
	for i := range m.Sections {
		if !bytes.Equal(reloaded.Sections[i].Data, m.Sections[i].Data) {
			t.Fatalf("section %d mismatch after round trip", i)
		}
	}
}

func TestOverlayTableRoundTrip(t *testing.T) {
	overlays := map[uint32]*Overlay{
		0: {Data: bytes.Repeat([]byte{0x01}, 32), RAMAddress: 0x02100000},
		1: {Data: bytes.Repeat([]byte{0x02}, 16), RAMAddress: 0x02200000, FileID: 7},
	}

	files := map[uint32][]byte{}
	for _, o := range overlays {
		files[o.FileID] = SaveOverlay(o, true)
	}

	tableData := SaveOverlayTable(overlays)
	if len(tableData) != 32*2 {
		t.Fatalf("table size = %d, want 64", len(tableData))
	}

	loaded, err := LoadOverlayTable(tableData, func(overlayID, fileID uint32) ([]byte, error) {
		return files[fileID], nil
	}, nil)
	if err != nil {
		t.Fatalf("LoadOverlayTable: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("got %d overlays, want 2", len(loaded))
	}
	for id, orig := range overlays {
		got, ok := loaded[id]
		if !ok {
			t.Fatalf("overlay %d missing from reload", id)
		}
		if !bytes.Equal(got.Data, orig.Data) {
			t.Fatalf("overlay %d data mismatch after compressed round trip", id)
		}
		if !got.Compressed() {
			t.Fatalf("overlay %d should be marked compressed", id)
		}
	}
}

func TestLooksCodeCompressedToleratesRawData(t *testing.T) {
	raw := bytes.Repeat([]byte{0xFF}, 64)
	if looksCodeCompressed(raw) {
		t.Fatalf("plain, unfootered data should not look code-compressed")
	}
}

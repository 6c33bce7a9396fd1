package rom

import (
	"bytes"
	"testing"

	"github.com/howeyc/crc16"

	"github.com/falk/ndsfmt-go/pkg/fnt"
)

func TestTitleAndIDCodeRoundTrip(t *testing.T) {
	r := New()
	r.Name = "NEW MARIO"
	r.IDCode = [4]byte{'A', '2', 'D', 'E'}

	data, err := Save(r, SaveOptions{})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	want := []byte{
		0x4E, 0x45, 0x57, 0x20, 0x4D, 0x41, 0x52, 0x49, 0x4F, 0x00, 0x00, 0x00,
		0x41, 0x32, 0x44, 0x45,
	}
	if !bytes.Equal(data[:16], want) {
		t.Fatalf("header[:16] = % X, want % X", data[:16], want)
	}
}

func TestHeaderCRC16(t *testing.T) {
	r := New()
	r.Name = "TESTROM"

	data, err := Save(r, SaveOptions{})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	want := crc16.Update(0xFFFF, crc16.IBMTable, data[:0x15C])
	got := uint16(data[0x15C]) | uint16(data[0x15D])<<8
	if got != want {
		t.Fatalf("header CRC16 = %04X, want %04X", got, want)
	}
}

func TestLoadSaveRoundTrip(t *testing.T) {
	r := New()
	r.Name = "ROUNDTRIP"
	r.ARM9 = bytes.Repeat([]byte{0x11}, 64)
	r.ARM7 = bytes.Repeat([]byte{0x22}, 48)
	r.Files = [][]byte{
		[]byte("file zero contents"),
		[]byte("file one, a bit longer than zero"),
	}
	r.Filenames = &fnt.Folder{
		Files: []string{"a.bin", "b.bin"},
	}
	fnt.Renumber(r.Filenames)

	data, err := Save(r, SaveOptions{})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Name != "ROUNDTRIP" {
		t.Fatalf("Name = %q", got.Name)
	}
	if !bytes.Equal(got.ARM9, r.ARM9) {
		t.Fatalf("ARM9 mismatch")
	}
	if !bytes.Equal(got.ARM7, r.ARM7) {
		t.Fatalf("ARM7 mismatch")
	}
	if len(got.Files) != 2 || !bytes.Equal(got.Files[0], r.Files[0]) || !bytes.Equal(got.Files[1], r.Files[1]) {
		t.Fatalf("files mismatch: %+v", got.Files)
	}

	data2, err := got.GetFileByName("a.bin")
	if err != nil {
		t.Fatalf("GetFileByName: %v", err)
	}
	if !bytes.Equal(data2, r.Files[0]) {
		t.Fatalf("GetFileByName mismatch")
	}
}

func TestOverlayPackingPlacesFileNearTable(t *testing.T) {
	r := New()
	r.Files = [][]byte{bytes.Repeat([]byte{0xAB}, 40)}

	overlayEntry := make([]byte, 32)
	putU32LE(overlayEntry, 0x18, 0) // fileID 0
	r.ARM9OverlayTable = overlayEntry

	data, err := Save(r, SaveOptions{})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got.Files) != 1 || !bytes.Equal(got.Files[0], r.Files[0]) {
		t.Fatalf("overlay-packed file mismatch: %+v", got.Files)
	}
	if !bytes.Equal(got.ARM9OverlayTable, r.ARM9OverlayTable) {
		t.Fatalf("overlay table mismatch")
	}
	ovtOffset := leU32(data, 0x50)
	fileStart := leU32(data, int(leU32(data, 0x48)))
	if fileStart != ovtOffset+0x200 {
		t.Fatalf("overlay file at 0x%X, want 0x%X (right after the 0x200-aligned overlay table)", fileStart, ovtOffset+0x200)
	}
}

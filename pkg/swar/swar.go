// Package swar implements the SWAR wave archive: a packed, offset-indexed
// collection of SWAV waveforms sharing one file header.
package swar

import (
	"github.com/falk/ndsfmt-go/pkg/cursor"
	"github.com/falk/ndsfmt-go/pkg/ndserr"
	"github.com/falk/ndsfmt-go/pkg/swav"
)

const (
	magic          = "SWAR"
	offsetsTableAt = 0x3C
)

// SWAR is an ordinal-indexed archive of waveforms. Unk02 is the unexplained
// value an SDAT INFO record stores for the archive; Load and Save of a
// standalone SWAR neither read nor write it.
type SWAR struct {
	Unk02 uint16
	Waves []*swav.SWAV
}

// Load parses a SWAR archive.
func Load(data []byte) (*SWAR, error) {
	if len(data) < offsetsTableAt || string(data[:4]) != magic {
		return nil, ndserr.At(ndserr.MalformedSWAR, 0, "bad SWAR magic")
	}
	r := cursor.NewReader(data)
	if _, err := r.ReadBytes(4); err != nil { // magic
		return nil, err
	}
	if _, err := r.ReadU16(); err != nil { // BOM
		return nil, err
	}
	if _, err := r.ReadU16(); err != nil { // version
		return nil, err
	}
	fileSize, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	if _, err := r.ReadU16(); err != nil { // header size
		return nil, err
	}
	if _, err := r.ReadU16(); err != nil { // block count
		return nil, err
	}

	r.Seek(0x10)
	if dm, err := r.ReadBytes(4); err != nil || string(dm) != "DATA" {
		return nil, ndserr.At(ndserr.MalformedSWAR, 0x10, "bad SWAR DATA magic")
	}
	if _, err := r.ReadU32(); err != nil { // data block size
		return nil, err
	}
	r.Seek(0x38)
	swavCount, err := r.ReadU32()
	if err != nil {
		return nil, err
	}

	out := &SWAR{}
	r.Seek(offsetsTableAt)
	offsets := make([]uint32, swavCount)
	for i := range offsets {
		o, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		offsets[i] = o
	}

	for i, off := range offsets {
		end := fileSize
		if i+1 < len(offsets) {
			end = offsets[i+1]
		}
		if int(off) > len(data) || int(end) > len(data) || off > end {
			return nil, ndserr.At(ndserr.MalformedSWAR, int(off), "wave entry out of bounds")
		}
		w, err := swav.LoadInfo(data[off:end])
		if err != nil {
			return nil, err
		}
		out.Waves = append(out.Waves, w)
	}
	return out, nil
}

// Save serializes a SWAR archive.
func Save(s *SWAR) []byte {
	bodies := make([][]byte, len(s.Waves))
	total := 0
	for i, w := range s.Waves {
		bodies[i] = swav.SaveInfo(w)
		total += len(bodies[i])
	}
	fileLen := offsetsTableAt + 4*len(s.Waves) + total

	out := cursor.NewWriter()
	out.WriteBytes([]byte(magic))
	out.WriteU16(0xFEFF)
	out.WriteU16(0x0100)
	out.WriteU32(uint32(fileLen))
	out.WriteU16(0x10)
	out.WriteU16(1)

	out.WriteBytes([]byte("DATA"))
	out.WriteU32(uint32(fileLen - 0x10))
	out.Pad(32, 0)
	out.WriteU32(uint32(len(s.Waves)))

	offset := offsetsTableAt + 4*len(s.Waves)
	for _, b := range bodies {
		out.WriteU32(uint32(offset))
		offset += len(b)
	}
	for _, b := range bodies {
		out.WriteBytes(b)
	}
	return out.Bytes()
}

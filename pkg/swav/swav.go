// Package swav implements the SWAV short-waveform container: a single
// PCM8/PCM16/ADPCM sample buffer with loop metadata, framed by the standard
// NDS file header plus one DATA block.
package swav

import (
	"github.com/falk/ndsfmt-go/pkg/cursor"
	"github.com/falk/ndsfmt-go/pkg/ndserr"
)

// WaveType distinguishes the three sample encodings the DS sound hardware
// understands.
type WaveType byte

const (
	PCM8 WaveType = iota
	PCM16
	ADPCM
)

const (
	magic       = "SWAV"
	dataMagic   = "DATA"
	headerSize  = 0x10
	sampleStart = 0x24
)

// SWAV is a single short waveform: a header of playback parameters plus raw
// sample data in the encoding named by Type.
type SWAV struct {
	Type        WaveType
	Looped      bool
	SampleRate  uint16
	Timer       uint16
	LoopOffset  uint16 // in 4-byte words
	TotalLength uint16 // in 4-byte words
	Data        []byte
}

// Load parses a standalone SWAV file (magic + standard header + DATA block).
func Load(data []byte) (*SWAV, error) {
	if len(data) < sampleStart || string(data[:4]) != magic {
		return nil, ndserr.At(ndserr.MalformedSWAV, 0, "bad SWAV magic")
	}
	return LoadBody(data[headerSize:])
}

// LoadBody parses a buffer starting at the DATA block (a SWAV file without
// its outer file header).
func LoadBody(data []byte) (*SWAV, error) {
	r := cursor.NewReader(data)

	dm, err := r.ReadBytes(4)
	if err != nil {
		return nil, err
	}
	if string(dm) != dataMagic {
		return nil, ndserr.At(ndserr.MalformedSWAV, r.Tell()-4, "bad DATA magic")
	}
	if _, err := r.ReadU32(); err != nil { // data block size, recomputed on save
		return nil, err
	}

	rest, err := r.ReadBytes(r.Remaining())
	if err != nil {
		return nil, err
	}
	return LoadInfo(rest)
}

// Save serializes a standalone SWAV file.
func Save(s *SWAV) []byte {
	w := cursor.NewWriter()
	w.WriteBytes([]byte(magic))
	w.WriteU16(0xFEFF)
	w.WriteU16(0x0100)
	w.WriteU32(uint32(sampleStart + len(s.Data)))
	w.WriteU16(headerSize)
	w.WriteU16(1)
	w.WriteBytes(SaveBody(s))
	return w.Bytes()
}

// SaveBody serializes the DATA block onward, without the outer SWAV header.
func SaveBody(s *SWAV) []byte {
	w := cursor.NewWriter()
	w.WriteBytes([]byte(dataMagic))
	w.WriteU32(uint32(0x14 + len(s.Data)))
	w.WriteBytes(SaveInfo(s))
	return w.Bytes()
}

// SaveInfo serializes the 12-byte playback-parameter struct plus sample
// data, without any DATA-block or file-header framing. This is the form
// SWAR packs its wave table entries in.
func SaveInfo(s *SWAV) []byte {
	w := cursor.NewWriter()
	w.WriteU8(byte(s.Type))
	if s.Looped {
		w.WriteU8(1)
	} else {
		w.WriteU8(0)
	}
	w.WriteU16(s.SampleRate)
	w.WriteU16(s.Timer)
	w.WriteU16(s.LoopOffset)
	loopLength := int32(s.TotalLength) - int32(s.LoopOffset)
	if loopLength < 0 {
		loopLength = 0
	}
	w.WriteU32(uint32(loopLength))
	w.WriteBytes(s.Data)
	return w.Bytes()
}

// LoadInfo parses the bare 12-byte playback-parameter struct plus sample
// data (SWAR's per-wave table entry format, with no DATA magic).
func LoadInfo(data []byte) (*SWAV, error) {
	r := cursor.NewReader(data)

	waveType, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	loopedByte, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	sampleRate, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	timer, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	loopOffset, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	loopLength, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	body, err := r.ReadBytes(r.Remaining())
	if err != nil {
		return nil, err
	}

	return &SWAV{
		Type:        WaveType(waveType),
		Looped:      loopedByte != 0,
		SampleRate:  sampleRate,
		Timer:       timer,
		LoopOffset:  loopOffset,
		TotalLength: loopOffset + uint16(loopLength),
		Data:        append([]byte(nil), body...),
	}, nil
}

// Package sseq implements the SSEQ sound sequence file: a thin shell around
// pkg/seqevent's event graph, plus the playback metadata (bank, volume,
// pressures, player) an SDAT INFO record carries for it.
package sseq

import (
	"github.com/falk/ndsfmt-go/pkg/cursor"
	"github.com/falk/ndsfmt-go/pkg/ndserr"
	"github.com/falk/ndsfmt-go/pkg/seqevent"
)

const (
	magic          = "SSEQ"
	dataBlockStart = 0x1C
)

// SSEQ is a single sound sequence: an event graph plus the six INFO fields
// an SDAT stores alongside a reference to it.
type SSEQ struct {
	Unk02              uint16
	BankID             uint16
	Volume             byte
	ChannelPressure    byte
	PolyphonicPressure byte
	PlayerID           byte

	Events *seqevent.EventList
}

// Load parses a standalone SSEQ file, lifting its event bytecode.
func Load(data []byte) (*SSEQ, error) {
	if len(data) < 0x1C || string(data[:4]) != magic {
		return nil, ndserr.At(ndserr.MalformedSSEQ, 0, "bad SSEQ magic")
	}
	r := cursor.NewReader(data)
	r.Seek(6)
	version, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	if version != 0x100 {
		return nil, ndserr.At(ndserr.UnknownVersion, 6, "unsupported SSEQ version")
	}
	totalLen, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	r.Seek(0x18)
	dataOffset, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	if int(dataOffset) != dataBlockStart || int(totalLen) > len(data) {
		return nil, ndserr.At(ndserr.MalformedSSEQ, 0x18, "bad SSEQ data offset")
	}

	events, _, err := seqevent.ReadEvents(data[dataOffset:totalLen], nil)
	if err != nil {
		return nil, err
	}

	return &SSEQ{Events: events}, nil
}

// Save serializes an SSEQ as a standalone file.
func Save(s *SSEQ) ([]byte, error) {
	events, err := seqevent.SaveEvents(s.Events)
	if err != nil {
		return nil, err
	}

	w := cursor.NewWriter()
	w.WriteBytes([]byte(magic))
	w.WriteU16(0xFEFF)
	w.WriteU16(0x0100)
	w.WriteU32(uint32(dataBlockStart + len(events)))
	w.WriteU16(0x10)
	w.WriteU16(1)
	w.WriteBytes([]byte("DATA"))
	w.WriteU32(uint32(len(events) + 8))
	w.WriteU32(dataBlockStart)
	w.WriteBytes(events)
	return w.Bytes(), nil
}

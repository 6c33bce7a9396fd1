// Package ssar implements the SSAR sound sequence archive file: a shared
// event graph (pkg/seqevent) plus a table of named entry points, each
// carrying the same playback metadata as an individual SSEQ.
package ssar

import (
	"github.com/falk/ndsfmt-go/pkg/cursor"
	"github.com/falk/ndsfmt-go/pkg/ndserr"
	"github.com/falk/ndsfmt-go/pkg/seqevent"
)

const (
	magic        = "SSAR"
	tableStart   = 0x20
	entrySize    = 0xC
	noFirstEvent = -1
)

// Sequence is one entry point into an SSAR's shared event graph.
type Sequence struct {
	BankID             uint16
	Volume             byte
	ChannelPressure    byte
	PolyphonicPressure byte
	PlayerID           byte

	// FirstEvent is the index into Events.Events this sequence starts at,
	// or noFirstEvent if this slot has no sequence (a hole in the table).
	FirstEvent int
}

// SSAR is a sequence archive: one event graph shared by every sequence in
// Sequences.
type SSAR struct {
	Unk02     uint16
	Sequences []Sequence
	Events    *seqevent.EventList
}

// Load parses a standalone SSAR file.
func Load(data []byte) (*SSAR, error) {
	if len(data) < tableStart || string(data[:4]) != magic {
		return nil, ndserr.At(ndserr.MalformedSSEQ, 0, "bad SSAR magic")
	}
	r := cursor.NewReader(data)
	r.Seek(6)
	version, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	if version != 0x100 {
		return nil, ndserr.At(ndserr.UnknownVersion, 6, "unsupported SSAR version")
	}
	fileSize, err := r.ReadU32()
	if err != nil {
		return nil, err
	}

	r.Seek(0x10)
	if dm, err := r.ReadBytes(4); err != nil || string(dm) != "DATA" {
		return nil, ndserr.At(ndserr.MalformedSSEQ, 0x10, "bad SSAR DATA magic")
	}
	if _, err := r.ReadU32(); err != nil { // DATA block size
		return nil, err
	}
	dataOffset, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	count, err := r.ReadU32()
	if err != nil {
		return nil, err
	}

	r.Seek(tableStart)
	type rawEntry struct {
		offset int32
		bankID uint16
		volume, channelPressure, polyphonicPressure, playerID byte
	}
	raw := make([]rawEntry, count)
	for i := range raw {
		off, err := r.ReadI32()
		if err != nil {
			return nil, err
		}
		bankID, err := r.ReadU16()
		if err != nil {
			return nil, err
		}
		vol, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		cp, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		pp, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		pid, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		r.Seek(r.Tell() + 2) // 2 pad bytes
		raw[i] = rawEntry{int32(off), bankID, vol, cp, pp, pid}
	}

	if int(dataOffset) > len(data) || int(fileSize) > len(data) || int(dataOffset) > int(fileSize) {
		return nil, ndserr.At(ndserr.MalformedSSEQ, 0x14, "bad SSAR data offset")
	}
	eventsData := data[dataOffset:fileSize]

	var notable []int
	for _, e := range raw {
		if e.offset >= 0 {
			notable = append(notable, int(e.offset))
		}
	}

	events, resolved, err := seqevent.ReadEvents(eventsData, notable)
	if err != nil {
		return nil, err
	}

	sequences := make([]Sequence, count)
	for i, e := range raw {
		first := noFirstEvent
		if e.offset >= 0 {
			first = resolved[int(e.offset)]
		}
		sequences[i] = Sequence{
			BankID:             e.bankID,
			Volume:             e.volume,
			ChannelPressure:    e.channelPressure,
			PolyphonicPressure: e.polyphonicPressure,
			PlayerID:           e.playerID,
			FirstEvent:         first,
		}
	}

	return &SSAR{Sequences: sequences, Events: events}, nil
}

// Save serializes an SSAR as a standalone file.
func Save(s *SSAR) ([]byte, error) {
	eventsData, err := seqevent.SaveEvents(s.Events)
	if err != nil {
		return nil, err
	}

	firstEventOffsets := make([]int, len(s.Events.Events))
	pos := 0
	for i, ev := range s.Events.Events {
		firstEventOffsets[i] = pos
		pos += ev.EncodedLen()
	}

	dataOffset := tableStart + len(s.Sequences)*entrySize

	w := cursor.NewWriter()
	w.WriteBytes([]byte(magic))
	w.WriteU16(0xFEFF)
	w.WriteU16(0x0100)
	w.WriteU32(uint32(dataOffset + len(eventsData)))
	w.WriteU16(0x10)
	w.WriteU16(1)

	w.WriteBytes([]byte("DATA"))
	w.WriteU32(uint32(dataOffset + len(eventsData) - 0x10))
	w.WriteU32(uint32(dataOffset))
	w.WriteU32(uint32(len(s.Sequences)))

	for _, seq := range s.Sequences {
		off := int32(noFirstEvent)
		if seq.FirstEvent != noFirstEvent {
			if seq.FirstEvent < 0 || seq.FirstEvent >= len(firstEventOffsets) {
				return nil, ndserr.At(ndserr.DanglingReference, seq.FirstEvent, "SSAR sequence references an out-of-range event index")
			}
			off = int32(firstEventOffsets[seq.FirstEvent])
		}
		w.WriteI32(off)
		w.WriteU16(seq.BankID)
		w.WriteU8(seq.Volume)
		w.WriteU8(seq.ChannelPressure)
		w.WriteU8(seq.PolyphonicPressure)
		w.WriteU8(seq.PlayerID)
		w.WriteU16(0)
	}

	w.WriteBytes(eventsData)
	return w.Bytes(), nil
}

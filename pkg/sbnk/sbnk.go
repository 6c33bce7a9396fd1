// Package sbnk implements the SBNK instrument bank: a table of instrument
// pointers (single-note, ranged, or regional) backed by a pool of note
// definitions, plus recovery of inaccessible-but-parseable instrument bytes
// that fall between referenced structs.
package sbnk

import (
	"sort"

	"github.com/falk/ndsfmt-go/pkg/cursor"
	"github.com/falk/ndsfmt-go/pkg/ndserr"
)

// Instrument type tags.
const (
	NoInstrument        = 0
	SingleNotePCM        = 1
	SingleNotePSGSquare  = 2
	SingleNotePSGNoise   = 3
	RangeInstrumentType  = 16
	RegionalInstrumentType = 17
)

// NoteDefinition is one instrument voice: waveform reference (or PSG duty
// cycle) plus pitch and envelope parameters.
type NoteDefinition struct {
	WaveID        uint16 // also doubles as PSG duty cycle
	WaveArchiveID uint16
	Pitch         byte
	Attack        byte
	Decay         byte
	Sustain       byte
	Release       byte
	Pan           byte
	Type          byte // 1=PCM, 2=PSG square, 3=PSG white noise
}

func decodeNoteDefinition(data []byte, off int, typ byte) (NoteDefinition, error) {
	if off+10 > len(data) {
		return NoteDefinition{}, ndserr.At(ndserr.MalformedSBNK, off, "note definition truncated")
	}
	r := cursor.NewReader(data[off : off+10])
	waveID, _ := r.ReadU16()
	waveArchiveID, _ := r.ReadU16()
	b, _ := r.ReadBytes(6)
	return NoteDefinition{
		WaveID: waveID, WaveArchiveID: waveArchiveID,
		Pitch: b[0], Attack: b[1], Decay: b[2], Sustain: b[3], Release: b[4], Pan: b[5],
		Type: typ,
	}, nil
}

func decodeNoteDefinitionWithType(data []byte, off int) (NoteDefinition, error) {
	if off+12 > len(data) {
		return NoteDefinition{}, ndserr.At(ndserr.MalformedSBNK, off, "typed note definition truncated")
	}
	typ := data[off]
	n, err := decodeNoteDefinition(data, off+2, typ)
	return n, err
}

func (n NoteDefinition) encode() []byte {
	w := cursor.NewWriter()
	w.WriteU16(n.WaveID)
	w.WriteU16(n.WaveArchiveID)
	w.WriteU8(n.Pitch)
	w.WriteU8(n.Attack)
	w.WriteU8(n.Decay)
	w.WriteU8(n.Sustain)
	w.WriteU8(n.Release)
	w.WriteU8(n.Pan)
	return w.Bytes()
}

func (n NoteDefinition) encodeWithType() []byte {
	w := cursor.NewWriter()
	w.WriteU16(uint16(n.Type))
	w.WriteBytes(n.encode())
	return w.Bytes()
}

// Instrument is one of SingleNoteInstrument, RangeInstrument, or
// RegionalInstrument.
type Instrument interface {
	InstrumentType() byte
	encode() ([]byte, error)
}

// SingleNoteInstrument plays one note definition regardless of requested
// pitch. Covers instrument type values 1 through 15.
type SingleNoteInstrument struct{ Note NoteDefinition }

func (i *SingleNoteInstrument) InstrumentType() byte { return i.Note.Type }
func (i *SingleNoteInstrument) encode() ([]byte, error) {
	return i.Note.encode(), nil
}

// RangeInstrument assigns one note definition to each pitch in
// [FirstPitch, FirstPitch+len(Notes)-1].
type RangeInstrument struct {
	FirstPitch byte
	Notes      []NoteDefinition
}

func (i *RangeInstrument) InstrumentType() byte { return RangeInstrumentType }
func (i *RangeInstrument) encode() ([]byte, error) {
	w := cursor.NewWriter()
	w.WriteU8(i.FirstPitch)
	w.WriteU8(i.FirstPitch + byte(len(i.Notes)) - 1)
	for _, n := range i.Notes {
		w.WriteBytes(n.encodeWithType())
	}
	return w.Bytes(), nil
}

// RegionalInstrument partitions [0, 127] into up to 8 regions, each with
// its own note definition.
type RegionalInstrument struct {
	Regions []Region
}

// Region is one partition of a RegionalInstrument, covering pitches up
// through LastPitch (exclusive of the previous region's LastPitch).
type Region struct {
	LastPitch byte
	Note      NoteDefinition
}

func (i *RegionalInstrument) InstrumentType() byte { return RegionalInstrumentType }
func (i *RegionalInstrument) encode() ([]byte, error) {
	if len(i.Regions) > 8 {
		return nil, ndserr.New(ndserr.PreconditionFailed, "RegionalInstrument has more than 8 regions")
	}
	w := cursor.NewWriter()
	for _, r := range i.Regions {
		w.WriteU8(r.LastPitch)
	}
	w.Pad(8-len(i.Regions), 0)
	for _, r := range i.Regions {
		w.WriteBytes(r.Note.encodeWithType())
	}
	return w.Bytes(), nil
}

func decodeInstrumentAt(typ byte, data []byte, offset int) (Instrument, int, error) {
	switch {
	case typ == NoInstrument:
		return nil, 0, nil
	case typ < RangeInstrumentType:
		n, err := decodeNoteDefinition(data, offset, typ)
		if err != nil {
			return nil, 0, err
		}
		return &SingleNoteInstrument{Note: n}, 10, nil
	case typ == RangeInstrumentType:
		if offset+2 > len(data) {
			return nil, 0, ndserr.At(ndserr.MalformedSBNK, offset, "range instrument truncated")
		}
		first, last := data[offset], data[offset+1]
		if last < first {
			return nil, 0, ndserr.At(ndserr.MalformedSBNK, offset, "range instrument has last < first")
		}
		off := offset + 2
		notes := make([]NoteDefinition, 0, int(last-first)+1)
		for i := 0; i <= int(last-first); i++ {
			n, err := decodeNoteDefinitionWithType(data, off)
			if err != nil {
				return nil, 0, err
			}
			notes = append(notes, n)
			off += 12
		}
		return &RangeInstrument{FirstPitch: first, Notes: notes}, off - offset, nil
	case typ == RegionalInstrumentType:
		if offset+8 > len(data) {
			return nil, 0, ndserr.At(ndserr.MalformedSBNK, offset, "regional instrument truncated")
		}
		ends := data[offset : offset+8]
		var regions []Region
		off := offset + 8
		for i, e := range ends {
			if e == 0 && i != 0 {
				break
			}
			n, err := decodeNoteDefinitionWithType(data, off)
			if err != nil {
				return nil, 0, err
			}
			regions = append(regions, Region{LastPitch: e, Note: n})
			off += 12
		}
		return &RegionalInstrument{Regions: regions}, off - offset, nil
	default:
		return nil, 0, ndserr.At(ndserr.MalformedSBNK, offset, "unknown instrument type")
	}
}

// entry pairs an instrument with the save-ordering metadata the original
// format carries implicitly (position within its type's payload group, and
// a key controlling payload deduplication).
type entry struct {
	instrument   Instrument
	bankOrderKey int
	mergeID      int
}

// SBNK is an instrument bank: an ordered table of instrument slots (a nil
// slot has no instrument), plus bytes recovered from gaps in the table that
// a naive read of only the pointer table would miss.
type SBNK struct {
	Unk02          uint16
	WaveArchiveIDs []uint16
	Instruments    []Instrument

	// Inaccessible holds instrument bytes found between or after the
	// referenced instruments that are not pointed at by any table slot,
	// keyed by the ID of the instrument immediately preceding them in
	// file order (-1 for bytes preceding every referenced instrument).
	Inaccessible map[int][]Instrument

	bankOrderKeys map[Instrument]int
	mergeIDs      map[Instrument]int
}

const (
	magic      = "SBNK"
	headerSize = 0x10
	tableStart = 0x3C
)

// Load parses an SBNK file, including the inaccessible-instrument recovery
// pass over gaps in the pointer table's coverage.
func Load(data []byte) (*SBNK, error) {
	if len(data) < tableStart || string(data[:4]) != magic {
		return nil, ndserr.At(ndserr.MalformedSBNK, 0, "bad SBNK magic")
	}
	r := cursor.NewReader(data)
	r.Seek(0x10)
	if dm, err := r.ReadBytes(4); err != nil || string(dm) != "DATA" {
		return nil, ndserr.At(ndserr.MalformedSBNK, 0x10, "bad SBNK DATA magic")
	}
	if _, err := r.ReadU32(); err != nil {
		return nil, err
	}
	r.Seek(0x38)
	instrumentCount, err := r.ReadU32()
	if err != nil {
		return nil, err
	}

	unconsumed := map[int]bool{}
	for i := tableStart + int(instrumentCount)*4; i < len(data); i++ {
		unconsumed[i] = true
	}

	s := &SBNK{
		Inaccessible:  map[int][]Instrument{},
		bankOrderKeys: map[Instrument]int{},
		mergeIDs:      map[Instrument]int{},
	}
	idsToOffsets := map[int]int{}

	makeAt := func(typ byte, offset int) (Instrument, error) {
		inst, consumed, err := decodeInstrumentAt(typ, data, offset)
		if err != nil {
			return nil, err
		}
		if inst != nil {
			s.bankOrderKeys[inst] = offset
			s.mergeIDs[inst] = offset
		}
		for j := 0; j < consumed; j++ {
			delete(unconsumed, offset+j)
		}
		return inst, nil
	}

	r.Seek(tableStart)
	for id := 0; id < int(instrumentCount); id++ {
		typ, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		offLow, err := r.ReadU16()
		if err != nil {
			return nil, err
		}
		if _, err := r.ReadU8(); err != nil { // padding
			return nil, err
		}
		inst, err := makeAt(typ, int(offLow))
		if err != nil {
			return nil, err
		}
		s.Instruments = append(s.Instruments, inst)
		if inst != nil {
			idsToOffsets[id] = int(offLow)
		}
	}

	for len(unconsumed) > 0 {
		fileSize := len(data)
		if unconsumed[fileSize-1] && unconsumed[fileSize-2] && !unconsumed[fileSize-3] {
			delete(unconsumed, fileSize-1)
			delete(unconsumed, fileSize-2)
		}
		if len(unconsumed) == 0 {
			break
		}

		thisOffset := minKey(unconsumed)

		prevID, prevOffset := -1, -1
		nextID, nextOffset := -1, int(^uint(0)>>1)
		for id, off := range idsToOffsets {
			if off < thisOffset && off > prevOffset {
				prevID, prevOffset = id, off
			}
			if off > thisOffset && off < nextOffset {
				nextID, nextOffset = id, off
			}
		}

		possible := map[byte]bool{SingleNotePCM: true, RangeInstrumentType: true, RegionalInstrumentType: true}
		if prevID != -1 {
			prevType := s.Instruments[prevID].InstrumentType()
			if prevType >= RangeInstrumentType {
				delete(possible, SingleNotePCM)
			}
			if prevType == RegionalInstrumentType {
				delete(possible, RangeInstrumentType)
			}
		}
		if nextID != -1 {
			nextType := s.Instruments[nextID].InstrumentType()
			if nextType <= RangeInstrumentType {
				delete(possible, RegionalInstrumentType)
			}
			if nextType < RangeInstrumentType {
				delete(possible, RangeInstrumentType)
			}
		}

		tempOffset := thisOffset + 1
		for unconsumed[tempOffset] {
			tempOffset++
		}
		bytesAvailable := tempOffset - thisOffset

		guessed := guessInstrumentType(data, thisOffset, possible, bytesAvailable)

		var inst Instrument
		if guessed != 0 {
			inst, err = makeAt(guessed, thisOffset)
			if err != nil {
				inst = nil
			}
		}

		if inst == nil {
			delete(unconsumed, thisOffset)
			delete(unconsumed, thisOffset+1)
		} else {
			s.Inaccessible[prevID] = append(s.Inaccessible[prevID], inst)
		}
	}

	return s, nil
}

func minKey(m map[int]bool) int {
	first := true
	min := 0
	for k := range m {
		if first || k < min {
			min, first = k, false
		}
	}
	return min
}

// guessInstrumentType applies the same heuristics ndspy's soundBank.py
// documents as "entirely based on heuristics" — it cannot always be
// accurate, and returns 0 (no instrument) when no guess is warranted.
func guessInstrumentType(data []byte, offset int, possible map[byte]bool, bytesAvailable int) byte {
	if len(possible) < 2 {
		return onlyType(possible)
	}

	if bytesAvailable < 10 {
		delete(possible, SingleNotePCM)
	}
	if bytesAvailable < 2+0xC {
		delete(possible, RangeInstrumentType)
	}
	if bytesAvailable < 8+0xC {
		delete(possible, RegionalInstrumentType)
	}
	if len(possible) < 2 {
		return onlyType(possible)
	}

	if possible[SingleNotePCM] {
		if offset+4 >= len(data) {
			delete(possible, SingleNotePCM)
		} else {
			if data[offset+1] >= 10 || data[offset+3] >= 10 || data[offset+4] == 0 {
				delete(possible, SingleNotePCM)
			} else if data[offset+4] == 0x3C {
				return SingleNotePCM
			}
		}
	}
	if len(possible) < 2 {
		return onlyType(possible)
	}

	if possible[RangeInstrumentType] {
		if offset+2 > len(data) {
			delete(possible, RangeInstrumentType)
		} else {
			first, last := data[offset], data[offset+1]
			if first > last {
				delete(possible, RangeInstrumentType)
			} else if expected := 2 + 0xC*(int(last-first)+1); expected > bytesAvailable {
				delete(possible, RangeInstrumentType)
			}
		}
	}
	if len(possible) < 2 {
		return onlyType(possible)
	}

	if possible[RegionalInstrumentType] {
		if offset+8 > len(data) {
			delete(possible, RegionalInstrumentType)
		} else {
			ends := data[offset : offset+8]
			prev := -1
			ok := true
			for _, e := range ends {
				switch {
				case prev != 0 && e == 0:
					prev = 0
				case prev == 0 && e != 0:
					ok = false
				case prev != 0:
					if int(e) <= prev {
						ok = false
					} else {
						prev = int(e)
					}
				}
				if !ok {
					break
				}
			}
			if !ok {
				delete(possible, RegionalInstrumentType)
			} else {
				count := 0
				for _, e := range ends {
					if e == 0 {
						break
					}
					count++
				}
				if expected := 8 + 0xC*count; expected > bytesAvailable {
					delete(possible, RegionalInstrumentType)
				}
			}
		}
	}

	return onlyType(possible)
}

func onlyType(possible map[byte]bool) byte {
	for t := range possible {
		return t
	}
	return 0
}

// Save serializes the bank, deduplicating instrument payloads that share
// both byte content and merge ID, and appending recovered inaccessible
// instrument bytes in their original relative position. It returns a
// PreconditionFailed error if any RegionalInstrument in s has more than 8
// regions.
func Save(s *SBNK) ([]byte, error) {
	type cacheKey struct {
		data    string
		mergeID int
	}

	indexToOffset := make([]int, len(s.Instruments))
	for i := range indexToOffset {
		indexToOffset[i] = -1
	}

	instrumentsData := cursor.NewWriter()
	cache := map[cacheKey]int{}

	add := func(inst Instrument) (int, error) {
		enc, err := inst.encode()
		if err != nil {
			return 0, err
		}
		key := cacheKey{data: string(enc), mergeID: s.mergeIDs[inst]}
		if off, ok := cache[key]; ok {
			return off, nil
		}
		off := instrumentsData.Len()
		cache[key] = off
		instrumentsData.WriteBytes(enc)
		return off, nil
	}

	for _, inacc := range s.Inaccessible[-1] {
		if _, err := add(inacc); err != nil {
			return nil, err
		}
	}

	isType := func(typ byte) func(byte) bool {
		switch typ {
		case SingleNotePCM:
			return func(t byte) bool { return t < RangeInstrumentType }
		case RangeInstrumentType:
			return func(t byte) bool { return t == RangeInstrumentType }
		default:
			return func(t byte) bool { return t == RegionalInstrumentType }
		}
	}

	for _, group := range []byte{SingleNotePCM, RangeInstrumentType, RegionalInstrumentType} {
		test := isType(group)
		type idxInst struct {
			idx  int
			inst Instrument
		}
		var inGroup []idxInst
		for i, inst := range s.Instruments {
			if inst == nil || !test(inst.InstrumentType()) {
				continue
			}
			inGroup = append(inGroup, idxInst{i, inst})
		}
		sort.SliceStable(inGroup, func(a, b int) bool {
			return s.bankOrderKeys[inGroup[a].inst] < s.bankOrderKeys[inGroup[b].inst]
		})
		for _, ii := range inGroup {
			off, err := add(ii.inst)
			if err != nil {
				return nil, err
			}
			indexToOffset[ii.idx] = off
			for _, inacc := range s.Inaccessible[ii.idx] {
				if _, err := add(inacc); err != nil {
					return nil, err
				}
			}
		}
	}

	for id, insts := range s.Inaccessible {
		if id < 0 || id < len(s.Instruments) {
			continue
		}
		for _, inacc := range insts {
			if _, err := add(inacc); err != nil {
				return nil, err
			}
		}
	}

	w := cursor.NewWriter()
	headerEnd := tableStart + 4*len(s.Instruments)

	w.WriteBytes([]byte(magic))
	w.WriteU16(0xFEFF)
	w.WriteU16(0x0100)
	sizeAnchor := w.Reserve(4)
	w.WriteU16(headerSize)
	w.WriteU16(1)

	w.WriteBytes([]byte("DATA"))
	dataSizeAnchor := w.Reserve(4)
	w.Pad(32, 0)
	w.WriteU32(uint32(len(s.Instruments)))

	for i, inst := range s.Instruments {
		typ := byte(NoInstrument)
		if inst != nil {
			typ = inst.InstrumentType()
		}
		off := indexToOffset[i]
		ptr := uint16(0)
		if off >= 0 {
			ptr = uint16(off + headerEnd)
		}
		w.WriteU8(typ)
		w.WriteU16(ptr)
		w.WriteU8(0)
	}

	w.WriteBytes(instrumentsData.Bytes())
	w.AlignTo(4, 0)

	w.PatchU32At(sizeAnchor, uint32(w.Len()))
	w.PatchU32At(dataSizeAnchor, uint32(w.Len()-0x10))

	return w.Bytes(), nil
}

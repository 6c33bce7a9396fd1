// Package sdat implements the SDAT sound archive: a composite container
// bundling every other sound format in this module (SSEQ, SSAR, SBNK, SWAR,
// stream/sequence player and group metadata, STRM) behind a shared symbol
// table, file-allocation table, and payload pool with byte-identical-payload
// deduplication.
package sdat

import (
	"bytes"

	"github.com/falk/ndsfmt-go/pkg/cursor"
	"github.com/falk/ndsfmt-go/pkg/ndserr"
	"github.com/falk/ndsfmt-go/pkg/sbnk"
	"github.com/falk/ndsfmt-go/pkg/sndmeta"
	"github.com/falk/ndsfmt-go/pkg/ssar"
	"github.com/falk/ndsfmt-go/pkg/sseq"
	"github.com/falk/ndsfmt-go/pkg/strm"
	"github.com/falk/ndsfmt-go/pkg/swar"
)

const noSWAR = 0xFFFF

// SequenceEntry is one INFO-part-0 slot: a named SSEQ, or an empty slot if
// SSEQ is nil.
type SequenceEntry struct {
	Name string
	SSEQ *sseq.SSEQ

	// MergeID controls payload deduplication: two entries whose saved event
	// bytes are identical AND whose MergeID matches share one FILE-block
	// payload and FAT slot. Defaults to 0, matching every entry sharing the
	// same payload unless told otherwise.
	MergeID int
}

// SequenceArchiveEntry is one INFO-part-1 slot.
type SequenceArchiveEntry struct {
	Name    string
	SSAR    *ssar.SSAR
	MergeID int
}

// BankEntry is one INFO-part-2 slot. SBNK.Unk02 and SBNK.WaveArchiveIDs
// (using noSWAR/0xFFFF as the "no wave archive" sentinel, the same bit
// pattern as the wire format's signed -1) carry the metadata this INFO
// record actually stores; they are not part of the standalone SBNK file
// body.
type BankEntry struct {
	Name    string
	SBNK    *sbnk.SBNK
	MergeID int
}

// WaveArchiveEntry is one INFO-part-3 slot.
type WaveArchiveEntry struct {
	Name    string
	SWAR    *swar.SWAR
	MergeID int
}

// SequencePlayerEntry is one INFO-part-4 slot.
type SequencePlayerEntry struct {
	Name   string
	Player *sndmeta.SequencePlayer
}

// GroupEntry is one INFO-part-5 slot.
type GroupEntry struct {
	Name  string
	Group *sndmeta.Group
}

// StreamPlayerEntry is one INFO-part-6 slot.
type StreamPlayerEntry struct {
	Name   string
	Player *sndmeta.StreamPlayer
}

// StreamEntry is one INFO-part-7 slot. Unlike SSEQ/SSAR/SBNK/SWAR, the
// standalone STRM format carries none of the SDAT-side playback metadata
// (unk02, volume, priority, playerID, unk07), so this entry holds it
// directly rather than reusing a field on *strm.STRM.
type StreamEntry struct {
	Name               string
	STRM               *strm.STRM
	Unk02              uint16
	Volume             byte
	Priority           byte
	PlayerID           byte
	Unk07              byte
	MergeID            int
}

// SDAT is a complete sound archive.
type SDAT struct {
	Sequences        []SequenceEntry
	SequenceArchives []SequenceArchiveEntry
	Banks            []BankEntry
	WaveArchives     []WaveArchiveEntry
	SequencePlayers  []SequencePlayerEntry
	Groups           []GroupEntry
	StreamPlayers    []StreamPlayerEntry
	Streams          []StreamEntry
}

const (
	magic      = "SDAT"
	headerSize = 0x40
)

// Load parses a standalone SDAT file.
func Load(data []byte) (*SDAT, error) {
	if len(data) < 0x30 || string(data[:4]) != magic {
		return nil, ndserr.At(ndserr.MalformedSDAT, 0, "bad SDAT magic")
	}
	r := cursor.NewReader(data)
	r.Seek(6)
	version, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	if version != 0x100 {
		return nil, ndserr.At(ndserr.UnknownVersion, 6, "unsupported SDAT version")
	}

	r.Seek(0x10)
	symbOff, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	if _, err := r.ReadU32(); err != nil { // symb size
		return nil, err
	}
	infoOff, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	if _, err := r.ReadU32(); err != nil { // info size
		return nil, err
	}
	fatOff, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	if _, err := r.ReadU32(); err != nil { // fat size
		return nil, err
	}
	fileOff, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	if _, err := r.ReadU32(); err != nil { // file size
		return nil, err
	}

	names, err := readSymbols(data, int(symbOff))
	if err != nil {
		return nil, err
	}

	files, fileIDs, err := readFAT(data, int(fatOff), int(fileOff))
	if err != nil {
		return nil, err
	}
	_ = fileIDs

	s := &SDAT{}
	r.Seek(int(infoOff) + 8)
	var infoPartOffsets [8]uint32
	for i := 0; i < 8; i++ {
		v, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		infoPartOffsets[i] = v
	}

	entryOffsets := func(partOff uint32) ([]uint32, error) {
		if partOff == 0 {
			return nil, nil
		}
		r.Seek(int(infoOff) + int(partOff))
		count, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		out := make([]uint32, count)
		for i := range out {
			v, err := r.ReadU32()
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}

	nameAt := func(list []string, i int) string {
		if i < len(list) {
			return list[i]
		}
		return ""
	}

	// Part 0: sequences
	offs, err := entryOffsets(infoPartOffsets[0])
	if err != nil {
		return nil, err
	}
	for i, off := range offs {
		var e SequenceEntry
		e.Name = nameAt(names[0], i)
		if off != 0 {
			r.Seek(int(infoOff) + int(off))
			fileID, err := r.ReadU16()
			if err != nil {
				return nil, err
			}
			unk02, err := r.ReadU16()
			if err != nil {
				return nil, err
			}
			bankID, err := r.ReadU16()
			if err != nil {
				return nil, err
			}
			volume, _ := r.ReadU8()
			chanP, _ := r.ReadU8()
			polyP, _ := r.ReadU8()
			playerID, _ := r.ReadU8()

			seq, err := sseq.Load(files[fileID])
			if err != nil {
				return nil, err
			}
			seq.Unk02, seq.BankID, seq.Volume = unk02, bankID, volume
			seq.ChannelPressure, seq.PolyphonicPressure, seq.PlayerID = chanP, polyP, playerID
			e.SSEQ = seq
			e.MergeID = int(fileID)
		}
		s.Sequences = append(s.Sequences, e)
	}

	// Part 1: sequence archives
	offs, err = entryOffsets(infoPartOffsets[1])
	if err != nil {
		return nil, err
	}
	for i, off := range offs {
		var e SequenceArchiveEntry
		e.Name = nameAt(names[1], i)
		if off != 0 {
			r.Seek(int(infoOff) + int(off))
			fileID, err := r.ReadU16()
			if err != nil {
				return nil, err
			}
			unk02, err := r.ReadU16()
			if err != nil {
				return nil, err
			}
			ar, err := ssar.Load(files[fileID])
			if err != nil {
				return nil, err
			}
			ar.Unk02 = unk02
			e.SSAR = ar
			e.MergeID = int(fileID)
		}
		s.SequenceArchives = append(s.SequenceArchives, e)
	}

	// Part 2: banks
	offs, err = entryOffsets(infoPartOffsets[2])
	if err != nil {
		return nil, err
	}
	for i, off := range offs {
		var e BankEntry
		e.Name = nameAt(names[2], i)
		if off != 0 {
			r.Seek(int(infoOff) + int(off))
			fileID, err := r.ReadU16()
			if err != nil {
				return nil, err
			}
			unk02, err := r.ReadU16()
			if err != nil {
				return nil, err
			}
			swarIDs := make([]uint16, 4)
			for j := range swarIDs {
				v, err := r.ReadU16()
				if err != nil {
					return nil, err
				}
				swarIDs[j] = v
			}
			bnk, err := sbnk.Load(files[fileID])
			if err != nil {
				return nil, err
			}
			bnk.Unk02 = unk02
			bnk.WaveArchiveIDs = swarIDs
			e.SBNK = bnk
			e.MergeID = int(fileID)
		}
		s.Banks = append(s.Banks, e)
	}

	// Part 3: wave archives
	offs, err = entryOffsets(infoPartOffsets[3])
	if err != nil {
		return nil, err
	}
	for i, off := range offs {
		var e WaveArchiveEntry
		e.Name = nameAt(names[3], i)
		if off != 0 {
			r.Seek(int(infoOff) + int(off))
			fileID, err := r.ReadU16()
			if err != nil {
				return nil, err
			}
			unk02, err := r.ReadU16()
			if err != nil {
				return nil, err
			}
			w, err := swar.Load(files[fileID])
			if err != nil {
				return nil, err
			}
			w.Unk02 = unk02
			e.SWAR = w
			e.MergeID = int(fileID)
		}
		s.WaveArchives = append(s.WaveArchives, e)
	}

	// Part 4: sequence players
	offs, err = entryOffsets(infoPartOffsets[4])
	if err != nil {
		return nil, err
	}
	for i, off := range offs {
		var e SequencePlayerEntry
		e.Name = nameAt(names[4], i)
		if off != 0 {
			r.Seek(int(infoOff) + int(off))
			maxSeq, err := r.ReadU16()
			if err != nil {
				return nil, err
			}
			mask, err := r.ReadU16()
			if err != nil {
				return nil, err
			}
			heap, err := r.ReadU32()
			if err != nil {
				return nil, err
			}
			p := &sndmeta.SequencePlayer{MaxSequences: maxSeq, HeapSize: heap}
			p.SetChannelMask(mask)
			e.Player = p
		}
		s.SequencePlayers = append(s.SequencePlayers, e)
	}

	// Part 5: groups
	offs, err = entryOffsets(infoPartOffsets[5])
	if err != nil {
		return nil, err
	}
	for i, off := range offs {
		var e GroupEntry
		e.Name = nameAt(names[5], i)
		if off != 0 {
			r.Seek(int(infoOff) + int(off))
			count, err := r.ReadU32()
			if err != nil {
				return nil, err
			}
			g := &sndmeta.Group{}
			for j := uint32(0); j < count; j++ {
				typ, err := r.ReadU8()
				if err != nil {
					return nil, err
				}
				optionsU16, err := r.ReadU16()
				if err != nil {
					return nil, err
				}
				options := byte(optionsU16)
				if _, err := r.ReadU8(); err != nil { // pad
					return nil, err
				}
				id, err := r.ReadU32()
				if err != nil {
					return nil, err
				}
				g.Entries = append(g.Entries, sndmeta.NewGroupEntry(sndmeta.GroupEntryType(typ), options, id))
			}
			e.Group = g
		}
		s.Groups = append(s.Groups, e)
	}

	// Part 6: stream players
	offs, err = entryOffsets(infoPartOffsets[6])
	if err != nil {
		return nil, err
	}
	for i, off := range offs {
		var e StreamPlayerEntry
		e.Name = nameAt(names[6], i)
		if off != 0 {
			r.Seek(int(infoOff) + int(off))
			count, err := r.ReadU8()
			if err != nil {
				return nil, err
			}
			chans, err := r.ReadBytes(int(count))
			if err != nil {
				return nil, err
			}
			e.Player = &sndmeta.StreamPlayer{Channels: append([]byte(nil), chans...)}
		}
		s.StreamPlayers = append(s.StreamPlayers, e)
	}

	// Part 7: streams
	offs, err = entryOffsets(infoPartOffsets[7])
	if err != nil {
		return nil, err
	}
	for i, off := range offs {
		var e StreamEntry
		e.Name = nameAt(names[7], i)
		if off != 0 {
			r.Seek(int(infoOff) + int(off))
			fileID, err := r.ReadU16()
			if err != nil {
				return nil, err
			}
			unk02, err := r.ReadU16()
			if err != nil {
				return nil, err
			}
			volume, _ := r.ReadU8()
			priority, _ := r.ReadU8()
			playerID, _ := r.ReadU8()
			unk07, _ := r.ReadU8()

			st, err := strm.Load(files[fileID])
			if err != nil {
				return nil, err
			}
			e.STRM = st
			e.Unk02, e.Volume, e.Priority, e.PlayerID, e.Unk07 = unk02, volume, priority, playerID, unk07
			e.MergeID = int(fileID)
		}
		s.Streams = append(s.Streams, e)
	}

	return s, nil
}

// readSymbolNamesAt reads the flat (non-nested) list of names at symbolsBlockOffset
// + offset; SSAR sub-symbol lists are not parsed and this module round-trips
// SSAR archives without per-sequence names.
func readSymbolNamesAt(data []byte, symbBlockOffset, offset int) ([]string, error) {
	if offset == 0 {
		return nil, nil
	}
	r := cursor.NewReader(data)
	r.Seek(symbBlockOffset + offset)
	count, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	out := make([]string, count)
	for i := range out {
		off, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		if off == 0 {
			continue
		}
		out[i] = readCString(data, symbBlockOffset+int(off))
	}
	return out, nil
}

func readCString(data []byte, offset int) string {
	end := offset
	for end < len(data) && data[end] != 0 {
		end++
	}
	return string(data[offset:end])
}

// readSymbols returns, per INFO part index, the flat name list (nil if the
// SDAT carries no SYMB block).
func readSymbols(data []byte, symbBlockOffset int) ([8][]string, error) {
	var names [8][]string
	if symbBlockOffset == 0 {
		return names, nil
	}
	r := cursor.NewReader(data)
	r.Seek(symbBlockOffset + 8)
	var headerOffsets [8]uint32
	for i := 0; i < 8; i++ {
		v, err := r.ReadU32()
		if err != nil {
			return names, err
		}
		headerOffsets[i] = v
	}
	for i, off := range headerOffsets {
		if off == 0 {
			continue
		}
		list, err := readSymbolNamesAt(data, symbBlockOffset, int(off))
		if err != nil {
			return names, err
		}
		names[i] = list
	}
	return names, nil
}

// readFAT parses the FAT block's file table and slices each file's raw bytes
// out of the FILE block. Returns the file bodies and their absolute offsets
// in data.
func readFAT(data []byte, fatOff, fileOff int) ([][]byte, []int, error) {
	r := cursor.NewReader(data)
	r.Seek(fatOff)
	fatMagic, err := r.ReadBytes(4)
	if err != nil || string(fatMagic) != "FAT " {
		return nil, nil, ndserr.At(ndserr.MalformedSDAT, fatOff, "bad SDAT FAT magic")
	}
	if _, err := r.ReadU32(); err != nil { // fat size
		return nil, nil, err
	}
	count, err := r.ReadU32()
	if err != nil {
		return nil, nil, err
	}

	files := make([][]byte, count)
	fileOffsets := make([]int, count)
	pos := fatOff + 0xC
	for i := uint32(0); i < count; i++ {
		r.Seek(pos)
		off, err := r.ReadU32()
		if err != nil {
			return nil, nil, err
		}
		size, err := r.ReadU32()
		if err != nil {
			return nil, nil, err
		}
		pos += 0x10
		if int(off)+int(size) > len(data) {
			return nil, nil, ndserr.At(ndserr.MalformedSDAT, int(off), "SDAT file entry out of range")
		}
		files[i] = data[off : off+size]
		fileOffsets[i] = int(off)
	}
	return files, fileOffsets, nil
}

// Save generates the file data for a complete SDAT, deduplicating payloads
// by exact byte match plus MergeID, matching the canonical INFO-part order
// (sequences, sequence archives, banks, wave archives, sequence players,
// groups, stream players, streams).
func Save(s *SDAT) ([]byte, error) {
	w := cursor.NewWriter()
	w.Pad(headerSize, 0)

	// SYMB block, only if any name is present.
	var symbOffset, symbSize uint32
	if hasAnyName(s) {
		off, size, err := writeSymb(w, s)
		if err != nil {
			return nil, err
		}
		symbOffset, symbSize = off, size
	}

	w.AlignTo(4, 0)
	infoOffset := uint32(w.Len())

	var files [][]byte
	var mergeIDs []int
	addFile := func(file []byte, mergeID int) uint16 {
		for i, f := range files {
			if mergeIDs[i] == mergeID && bytes.Equal(f, file) {
				return uint16(i)
			}
		}
		files = append(files, file)
		mergeIDs = append(mergeIDs, mergeID)
		return uint16(len(files) - 1)
	}

	// Header placeholder: magic+size, then 8 part offsets.
	headerAnchor := w.Reserve(8 + 8*4)
	_ = headerAnchor
	infoHeaderStart := int(infoOffset)

	// Pad to 0x20 relative to the INFO block start, not the file start.
	for (w.Len()-int(infoOffset))%0x20 != 0 {
		w.Pad(1, 0)
	}

	partOffsets := make([]uint32, 8)

	// Part 0: sequences
	partOffsets[0] = uint32(w.Len()) - infoOffset
	w.WriteU32(uint32(len(s.Sequences)))
	entryTableStart := w.Len()
	w.Pad(4*len(s.Sequences), 0)
	for i, e := range s.Sequences {
		var entryOff uint32
		if e.SSEQ != nil {
			entryOff = uint32(w.Len()) - infoOffset
			body, err := sseq.Save(e.SSEQ)
			if err != nil {
				return nil, err
			}
			fileID := addFile(body, e.MergeID)
			w.WriteU16(fileID)
			w.WriteU16(e.SSEQ.Unk02)
			w.WriteU16(e.SSEQ.BankID)
			w.WriteU8(e.SSEQ.Volume)
			w.WriteU8(e.SSEQ.ChannelPressure)
			w.WriteU8(e.SSEQ.PolyphonicPressure)
			w.WriteU8(e.SSEQ.PlayerID)
			w.Pad(2, 0)
		}
		w.PatchU32At(cursor.Anchor{Offset: entryTableStart + 4*i, Length: 4}, entryOff)
	}

	// Part 1: sequence archives
	partOffsets[1] = uint32(w.Len()) - infoOffset
	w.WriteU32(uint32(len(s.SequenceArchives)))
	entryTableStart = w.Len()
	w.Pad(4*len(s.SequenceArchives), 0)
	for i, e := range s.SequenceArchives {
		var entryOff uint32
		if e.SSAR != nil {
			entryOff = uint32(w.Len()) - infoOffset
			body, err := ssar.Save(e.SSAR)
			if err != nil {
				return nil, err
			}
			fileID := addFile(body, e.MergeID)
			w.WriteU16(fileID)
			w.WriteU16(e.SSAR.Unk02)
		}
		w.PatchU32At(cursor.Anchor{Offset: entryTableStart + 4*i, Length: 4}, entryOff)
	}

	// Part 2: banks
	partOffsets[2] = uint32(w.Len()) - infoOffset
	w.WriteU32(uint32(len(s.Banks)))
	entryTableStart = w.Len()
	w.Pad(4*len(s.Banks), 0)
	for i, e := range s.Banks {
		var entryOff uint32
		if e.SBNK != nil {
			entryOff = uint32(w.Len()) - infoOffset
			body, err := sbnk.Save(e.SBNK)
			if err != nil {
				return nil, err
			}
			fileID := addFile(body, e.MergeID)
			w.WriteU16(fileID)
			w.WriteU16(e.SBNK.Unk02)
			swarIDs := append([]uint16(nil), e.SBNK.WaveArchiveIDs...)
			for len(swarIDs) < 4 {
				swarIDs = append(swarIDs, noSWAR)
			}
			for _, id := range swarIDs[:4] {
				w.WriteU16(id)
			}
		}
		w.PatchU32At(cursor.Anchor{Offset: entryTableStart + 4*i, Length: 4}, entryOff)
	}

	// Part 3: wave archives
	partOffsets[3] = uint32(w.Len()) - infoOffset
	w.WriteU32(uint32(len(s.WaveArchives)))
	entryTableStart = w.Len()
	w.Pad(4*len(s.WaveArchives), 0)
	for i, e := range s.WaveArchives {
		var entryOff uint32
		if e.SWAR != nil {
			entryOff = uint32(w.Len()) - infoOffset
			body := swar.Save(e.SWAR)
			fileID := addFile(body, e.MergeID)
			w.WriteU16(fileID)
			w.WriteU16(e.SWAR.Unk02)
		}
		w.PatchU32At(cursor.Anchor{Offset: entryTableStart + 4*i, Length: 4}, entryOff)
	}

	// Part 4: sequence players
	partOffsets[4] = uint32(w.Len()) - infoOffset
	w.WriteU32(uint32(len(s.SequencePlayers)))
	entryTableStart = w.Len()
	w.Pad(4*len(s.SequencePlayers), 0)
	for i, e := range s.SequencePlayers {
		var entryOff uint32
		if e.Player != nil {
			entryOff = uint32(w.Len()) - infoOffset
			w.WriteU16(e.Player.MaxSequences)
			w.WriteU16(e.Player.ChannelMask())
			w.WriteU32(e.Player.HeapSize)
		}
		w.PatchU32At(cursor.Anchor{Offset: entryTableStart + 4*i, Length: 4}, entryOff)
	}

	// Part 5: groups
	partOffsets[5] = uint32(w.Len()) - infoOffset
	w.WriteU32(uint32(len(s.Groups)))
	entryTableStart = w.Len()
	w.Pad(4*len(s.Groups), 0)
	for i, e := range s.Groups {
		var entryOff uint32
		if e.Group != nil {
			entryOff = uint32(w.Len()) - infoOffset
			w.WriteU32(uint32(len(e.Group.Entries)))
			for _, ge := range e.Group.Entries {
				w.WriteU8(byte(ge.Type))
				w.WriteU16(uint16(ge.Options()))
				w.WriteU8(0)
				w.WriteU32(ge.ID)
			}
		}
		w.PatchU32At(cursor.Anchor{Offset: entryTableStart + 4*i, Length: 4}, entryOff)
	}

	// Part 6: stream players
	partOffsets[6] = uint32(w.Len()) - infoOffset
	w.WriteU32(uint32(len(s.StreamPlayers)))
	entryTableStart = w.Len()
	w.Pad(4*len(s.StreamPlayers), 0)
	for i, e := range s.StreamPlayers {
		var entryOff uint32
		if e.Player != nil {
			entryOff = uint32(w.Len()) - infoOffset
			chans := append([]byte(nil), e.Player.Channels...)
			w.WriteU8(byte(len(chans)))
			for len(chans) < 16 {
				chans = append(chans, 0xFF)
			}
			w.WriteBytes(chans)
			w.Pad(4, 0)
		}
		w.PatchU32At(cursor.Anchor{Offset: entryTableStart + 4*i, Length: 4}, entryOff)
		w.AlignTo(4, 0)
	}

	// Part 7: streams
	partOffsets[7] = uint32(w.Len()) - infoOffset
	w.WriteU32(uint32(len(s.Streams)))
	entryTableStart = w.Len()
	w.Pad(4*len(s.Streams), 0)
	for i, e := range s.Streams {
		var entryOff uint32
		if e.STRM != nil {
			entryOff = uint32(w.Len()) - infoOffset
			body, err := strm.Save(e.STRM)
			if err != nil {
				return nil, err
			}
			fileID := addFile(body, e.MergeID)
			w.WriteU16(fileID)
			w.WriteU16(e.Unk02)
			w.WriteU8(e.Volume)
			w.WriteU8(e.Priority)
			w.WriteU8(e.PlayerID)
			w.WriteU8(e.Unk07)
			w.Pad(4, 0)
		}
		w.PatchU32At(cursor.Anchor{Offset: entryTableStart + 4*i, Length: 4}, entryOff)
	}

	infoSize := uint32(w.Len()) - infoOffset
	// Backpatch the INFO header (was reserved as part of headerAnchor's
	// aligned region isn't right; write it directly since we know the exact
	// offset it started at).
	infoHeaderBytes := cursor.NewWriter()
	infoHeaderBytes.WriteBytes([]byte("INFO"))
	infoHeaderBytes.WriteU32(infoSize)
	buf := w.Bytes()
	copy(buf[infoHeaderStart:infoHeaderStart+8], infoHeaderBytes.Bytes())
	for i, off := range partOffsets {
		p := infoHeaderStart + 8 + 4*i
		buf[p] = byte(off)
		buf[p+1] = byte(off >> 8)
		buf[p+2] = byte(off >> 16)
		buf[p+3] = byte(off >> 24)
	}

	// FAT block
	for len(buf)%4 != 0 {
		buf = append(buf, 0)
	}
	fatOffset := uint32(len(buf))
	fatSize := uint32(0xC + 0x10*len(files))
	buf = append(buf, []byte("FAT ")...)
	buf = appendU32(buf, fatSize)
	buf = appendU32(buf, uint32(len(files)))
	fatTableStart := len(buf)
	buf = append(buf, make([]byte, 0x10*len(files))...)

	// FILE block
	for len(buf)%4 != 0 {
		buf = append(buf, 0)
	}
	fileBlockOffset := uint32(len(buf))
	buf = append(buf, make([]byte, 0xC)...) // placeholder header

	const fileAlignment = 0x20
	for i, file := range files {
		for len(buf)%fileAlignment != 0 {
			buf = append(buf, 0)
		}
		fileOffset := uint32(len(buf))
		buf = append(buf, file...)
		entryPos := fatTableStart + 0x10*i
		putU32LE(buf, entryPos, fileOffset)
		putU32LE(buf, entryPos+4, uint32(len(file)))
	}
	for len(buf)%fileAlignment != 0 {
		buf = append(buf, 0)
	}

	fileBlockSize := uint32(len(buf)) - fileBlockOffset
	buf[fileBlockOffset] = 'F'
	buf[fileBlockOffset+1] = 'I'
	buf[fileBlockOffset+2] = 'L'
	buf[fileBlockOffset+3] = 'E'
	putU32LE(buf, int(fileBlockOffset)+4, fileBlockSize)
	putU32LE(buf, int(fileBlockOffset)+8, uint32(len(files)))

	// Standard + SDAT-specific headers
	numBlocks := uint16(3)
	if symbOffset != 0 {
		numBlocks = 4
	}
	buf[0], buf[1], buf[2], buf[3] = 'S', 'D', 'A', 'T'
	putU16LE(buf, 4, 0xFEFF)
	putU16LE(buf, 6, 0x100)
	putU32LE(buf, 8, uint32(len(buf)))
	putU16LE(buf, 0xC, headerSize)
	putU16LE(buf, 0xE, numBlocks)

	putU32LE(buf, 0x10, symbOffset)
	putU32LE(buf, 0x14, symbSize)
	putU32LE(buf, 0x18, infoOffset)
	putU32LE(buf, 0x1C, infoSize)
	putU32LE(buf, 0x20, fatOffset)
	putU32LE(buf, 0x24, fatSize)
	putU32LE(buf, 0x28, fileBlockOffset)
	putU32LE(buf, 0x2C, fileBlockSize)

	return buf, nil
}

func hasAnyName(s *SDAT) bool {
	for _, e := range s.Sequences {
		if e.Name != "" {
			return true
		}
	}
	for _, e := range s.SequenceArchives {
		if e.Name != "" {
			return true
		}
	}
	for _, e := range s.Banks {
		if e.Name != "" {
			return true
		}
	}
	for _, e := range s.WaveArchives {
		if e.Name != "" {
			return true
		}
	}
	for _, e := range s.SequencePlayers {
		if e.Name != "" {
			return true
		}
	}
	for _, e := range s.Groups {
		if e.Name != "" {
			return true
		}
	}
	for _, e := range s.StreamPlayers {
		if e.Name != "" {
			return true
		}
	}
	for _, e := range s.Streams {
		if e.Name != "" {
			return true
		}
	}
	return false
}

// writeSymb appends a SYMB block covering every part's names (flat lists
// only; SSAR sub-symbol names are not represented) and returns its offset
// and size.
func writeSymb(w *cursor.Writer, s *SDAT) (uint32, uint32, error) {
	symbOffset := uint32(w.Len())

	names := [8][]string{}
	names[0] = namesOf(len(s.Sequences), func(i int) string { return s.Sequences[i].Name })
	names[1] = namesOf(len(s.SequenceArchives), func(i int) string { return s.SequenceArchives[i].Name })
	names[2] = namesOf(len(s.Banks), func(i int) string { return s.Banks[i].Name })
	names[3] = namesOf(len(s.WaveArchives), func(i int) string { return s.WaveArchives[i].Name })
	names[4] = namesOf(len(s.SequencePlayers), func(i int) string { return s.SequencePlayers[i].Name })
	names[5] = namesOf(len(s.Groups), func(i int) string { return s.Groups[i].Name })
	names[6] = namesOf(len(s.StreamPlayers), func(i int) string { return s.StreamPlayers[i].Name })
	names[7] = namesOf(len(s.Streams), func(i int) string { return s.Streams[i].Name })

	var stringTable []byte
	addString := func(name string) int32 {
		if name == "" {
			return -1
		}
		off := len(stringTable)
		stringTable = append(stringTable, []byte(name)...)
		stringTable = append(stringTable, 0)
		return int32(off)
	}

	var tableValues []int32 // -1 means literal zero, else relative-to-table offset needing +tableLen+0x40
	var headerOffsets [8]uint32
	for part := 0; part < 8; part++ {
		headerOffsets[part] = uint32(len(tableValues)) * 4
		tableValues = append(tableValues, int32(len(names[part])))
		for _, n := range names[part] {
			tableValues = append(tableValues, addString(n))
		}
	}

	tableLen := len(tableValues) * 4
	w.WriteBytes([]byte("SYMB"))
	sizeAnchor := w.Reserve(4)
	for i, off := range headerOffsets {
		_ = i
		w.WriteU32(off + 0x40)
	}
	w.Pad(0x18, 0)

	// First value of each part's run is a plain count, not a string offset;
	// track which entries are counts vs offsets by re-deriving from names.
	idx := 0
	for part := 0; part < 8; part++ {
		w.WriteU32(uint32(tableValues[idx]))
		idx++
		for range names[part] {
			v := tableValues[idx]
			idx++
			if v < 0 {
				w.WriteU32(0)
			} else {
				w.WriteU32(uint32(v) + uint32(tableLen) + 0x40)
			}
		}
	}
	w.WriteBytes(stringTable)

	size := uint32(w.Len()) - symbOffset
	for size%4 != 0 {
		w.WriteU8(0)
		size++
	}
	w.PatchU32At(sizeAnchor, size)

	return symbOffset, size, nil
}

func namesOf(n int, at func(int) string) []string {
	if n == 0 {
		return nil
	}
	out := make([]string, n)
	for i := range out {
		out[i] = at(i)
	}
	return out
}

func appendU32(buf []byte, v uint32) []byte {
	return append(buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
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

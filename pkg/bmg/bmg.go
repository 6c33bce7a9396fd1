// Package bmg implements the BMG message container: a fixed INF1 metadata
// table pointing into a DAT1 string pool, with optional FLW1 (flow
// instructions plus labels) and FLI1 (script entry points) sections. This
// package only frames messages and their embedded escape sequences; it
// never interprets a BMG's scripting opcodes.
package bmg

import (
	"bytes"
	"encoding/binary"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"

	"github.com/falk/ndsfmt-go/pkg/ndserr"
)

const magic = "MESGbmg1"

var zero8 [8]byte

// Encoding names a BMG message text codec. The numeric values match the
// one-byte encoding field stored in the file header.
type Encoding byte

const (
	CP1252   Encoding = 1
	UTF16    Encoding = 2
	ShiftJIS Encoding = 3
	UTF8     Encoding = 4
)

func (e Encoding) codec(bigEndian bool) (encoding.Encoding, error) {
	switch e {
	case CP1252:
		return charmap.Windows1252, nil
	case UTF16:
		end := unicode.LittleEndian
		if bigEndian {
			end = unicode.BigEndian
		}
		return unicode.UTF16(end, unicode.IgnoreBOM), nil
	case ShiftJIS:
		return japanese.ShiftJIS, nil
	case UTF8:
		return encoding.Nop, nil
	default:
		return nil, ndserr.New(ndserr.MalformedBMG, "unknown BMG encoding byte")
	}
}

// nullBytes is how this encoding represents the U+0000 message terminator.
func (e Encoding) nullBytes() []byte {
	if e == UTF16 {
		return []byte{0, 0}
	}
	return []byte{0}
}

// escapeStartBytes is how this encoding represents the U+001A escape
// marker that opens every embedded Escape.
func (e Encoding) escapeStartBytes(bigEndian bool) []byte {
	if e == UTF16 {
		if bigEndian {
			return []byte{0x00, 0x1A}
		}
		return []byte{0x1A, 0x00}
	}
	return []byte{0x1A}
}

// Escape is a control sequence embedded in a message's text: a type byte
// plus operand bytes, framed by the encoding's U+001A marker and a length
// byte. Type 4 is used for pluralization in at least one known title; no
// other type's semantics are interpreted here.
type Escape struct {
	Type byte
	Data []byte
}

// Part is either a run of plain text or an Escape within a Message.
type Part interface {
	isPart()
}

// Text is a plain run of message text.
type Text string

func (Text) isPart()   {}
func (Escape) isPart() {}

// Message is one BMG entry: a game-defined fixed-size info record (e.g. a
// sound or speaker ID) plus the text itself. A null message carries no
// text at all, distinct from an empty string.
type Message struct {
	Info   []byte
	Parts  []Part
	IsNull bool
}

// Script associates an ID (often a message index) with a starting
// instruction index, for titles that drive message display from their own
// scripting on top of FLW1's instruction list.
type Script struct {
	ID         uint32
	StartIndex uint16
}

// Label names an instruction index. The bmgID field's purpose is not
// documented; it round-trips without interpretation.
type Label struct {
	BmgID     int8
	InstIndex int16
}

// BMG is a parsed message container.
type BMG struct {
	ID        int
	Encoding  Encoding
	BigEndian bool

	Unk14 uint32
	Unk18 uint32
	Unk1C uint32

	Messages     []*Message
	Instructions [][]byte
	Labels       []Label
	Scripts      []Script
}

// New returns an empty, little-endian UTF-16 BMG.
func New() *BMG {
	return &BMG{Encoding: UTF16}
}

func byteOrder(bigEndian bool) binary.ByteOrder {
	if bigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Load parses a complete BMG file.
func Load(data []byte) (*BMG, error) {
	if len(data) < 0x20 || string(data[:8]) != magic {
		return nil, ndserr.At(ndserr.InvalidMagic, 0, "expected MESGbmg1 magic")
	}

	// At least one title (Super Princess Peach) ships big-endian BMGs.
	// There's no explicit endianness flag, so guess by reading the total
	// file size both ways and trusting whichever interpretation looks more
	// plausible.
	leLen := binary.LittleEndian.Uint32(data[8:12])
	beLen := binary.BigEndian.Uint32(data[8:12])
	bigEndian := !(leLen < beLen)
	bo := byteOrder(bigEndian)

	sectionCount := bo.Uint32(data[12:16])
	encByte := data[16]
	enc := Encoding(encByte)
	if _, err := enc.codec(bigEndian); err != nil {
		return nil, ndserr.At(ndserr.MalformedBMG, 16, "unknown BMG encoding value")
	}

	b := &BMG{Encoding: enc, BigEndian: bigEndian}
	if len(data) < 0x20 {
		return nil, ndserr.At(ndserr.OutOfBounds, 16, "BMG header truncated")
	}
	b.Unk14 = bo.Uint32(data[0x14:0x18])
	b.Unk18 = bo.Uint32(data[0x18:0x1C])
	b.Unk1C = bo.Uint32(data[0x1C:0x20])

	type infEntry struct {
		off     uint32
		attribs []byte
	}
	var inf []infEntry
	var dat1 []byte
	haveDat1 := false

	offset := 0x20
	for i := uint32(0); i < sectionCount; i++ {
		if offset+8 > len(data) {
			return nil, ndserr.At(ndserr.OutOfBounds, offset, "BMG section header truncated")
		}
		sectionMagic := string(data[offset : offset+4])
		sectionLen := int(bo.Uint32(data[offset+4 : offset+8]))
		if sectionLen < 8 || offset+sectionLen > len(data) {
			return nil, ndserr.At(ndserr.OutOfBounds, offset, "BMG section extends past end of file")
		}
		body := data[offset : offset+sectionLen]

		switch sectionMagic {
		case "INF1":
			if len(body) < 16 {
				return nil, ndserr.At(ndserr.MalformedBMG, offset, "INF1 section truncated")
			}
			count := int(bo.Uint16(body[8:10]))
			entryLen := int(bo.Uint16(body[10:12]))
			b.ID = int(bo.Uint32(body[12:16]))
			if entryLen < 4 {
				return nil, ndserr.At(ndserr.MalformedBMG, offset+10, "INF1 entry length smaller than an offset field")
			}
			for i := 0; i < count; i++ {
				start := 16 + i*entryLen
				if start+entryLen > len(body) {
					return nil, ndserr.At(ndserr.MalformedBMG, offset+start, "INF1 entry truncated")
				}
				entryOff := bo.Uint32(body[start : start+4])
				attribs := append([]byte(nil), body[start+4:start+entryLen]...)
				inf = append(inf, infEntry{entryOff, attribs})
			}
		case "DAT1":
			if len(body) < 8 {
				return nil, ndserr.At(ndserr.MalformedBMG, offset, "DAT1 section truncated")
			}
			dat1 = body[8:]
			haveDat1 = true
		case "FLW1":
			if len(body) < 16 {
				return nil, ndserr.At(ndserr.MalformedBMG, offset, "FLW1 section truncated")
			}
			instCount := int(bo.Uint16(body[8:10]))
			labelCount := int(bo.Uint16(body[10:12]))
			instTableOff := 16
			for i := 0; i < instCount; i++ {
				start := instTableOff + i*8
				if start+8 > len(body) {
					return nil, ndserr.At(ndserr.MalformedBMG, offset+start, "FLW1 instruction truncated")
				}
				cmd := body[start : start+8]
				if !bytes.Equal(cmd, zero8[:]) {
					b.Instructions = append(b.Instructions, append([]byte(nil), cmd...))
				}
			}
			indicesOff := instTableOff + instCount*8
			idsOff := indicesOff + labelCount*2
			for i := 0; i < labelCount; i++ {
				idxStart := indicesOff + i*2
				idStart := idsOff + i
				if idxStart+2 > len(body) || idStart+1 > len(body) {
					return nil, ndserr.At(ndserr.MalformedBMG, offset+idxStart, "FLW1 label truncated")
				}
				index := int16(bo.Uint16(body[idxStart : idxStart+2]))
				bmgID := int8(body[idStart])
				if bmgID != 0 || index != 0 {
					b.Labels = append(b.Labels, Label{BmgID: bmgID, InstIndex: index})
				}
			}
		case "FLI1":
			if len(body) < 16 {
				return nil, ndserr.At(ndserr.MalformedBMG, offset, "FLI1 section truncated")
			}
			count := int(bo.Uint16(body[8:10]))
			entryLen := int(bo.Uint16(body[10:12]))
			if entryLen != 8 {
				return nil, ndserr.At(ndserr.MalformedBMG, offset+10, "unexpected FLI1 entry length")
			}
			for i := 0; i < count; i++ {
				start := 16 + i*8
				if start+8 > len(body) {
					return nil, ndserr.At(ndserr.MalformedBMG, offset+start, "FLI1 entry truncated")
				}
				id := bo.Uint32(body[start : start+4])
				index := bo.Uint16(body[start+4 : start+6])
				b.Scripts = append(b.Scripts, Script{ID: id, StartIndex: index})
			}
		default:
			return nil, ndserr.At(ndserr.MalformedBMG, offset, "unknown BMG section: "+sectionMagic)
		}

		offset += sectionLen
	}

	if !haveDat1 {
		return nil, ndserr.At(ndserr.MalformedBMG, 0, "BMG has no DAT1 section")
	}

	dec, _ := enc.codec(bigEndian)
	nullBytes := enc.nullBytes()
	escStart := enc.escapeStartBytes(bigEndian)

	for _, e := range inf {
		msg := &Message{Info: e.attribs}
		if e.off == 0 {
			msg.IsNull = true
			b.Messages = append(b.Messages, msg)
			continue
		}
		parts, err := decodeMessage(dat1, int(e.off), nullBytes, escStart, dec)
		if err != nil {
			return nil, err
		}
		msg.Parts = parts
		b.Messages = append(b.Messages, msg)
	}

	return b, nil
}

func decodeMessage(dat1 []byte, off int, nullBytes, escStart []byte, dec encoding.Encoding) ([]Part, error) {
	var parts []Part
	cur := off
	start := off
	nullLen := len(nullBytes)

	for {
		if cur+nullLen > len(dat1) {
			return nil, ndserr.At(ndserr.OutOfBounds, cur, "BMG message runs past end of DAT1")
		}
		next := dat1[cur : cur+nullLen]
		if bytes.Equal(next, nullBytes) {
			break
		}
		if bytes.Equal(next, escStart) {
			if start != cur {
				s, err := decodeText(dat1[start:cur], dec)
				if err != nil {
					return nil, err
				}
				parts = append(parts, Text(s))
			}
			if cur+nullLen+2 > len(dat1) {
				return nil, ndserr.At(ndserr.OutOfBounds, cur, "truncated BMG escape sequence")
			}
			escLen := int(dat1[cur+nullLen])
			escType := dat1[cur+nullLen+1]
			if escLen < nullLen+2 || cur+escLen > len(dat1) {
				return nil, ndserr.At(ndserr.MalformedBMG, cur, "invalid BMG escape length")
			}
			escData := append([]byte(nil), dat1[cur+nullLen+2:cur+escLen]...)
			parts = append(parts, Escape{Type: escType, Data: escData})
			cur += escLen
			start = cur
		} else {
			cur += nullLen
		}
	}

	if start != cur {
		s, err := decodeText(dat1[start:cur], dec)
		if err != nil {
			return nil, err
		}
		parts = append(parts, Text(s))
	}
	return parts, nil
}

func decodeText(b []byte, dec encoding.Encoding) (string, error) {
	out, err := dec.NewDecoder().Bytes(b)
	if err != nil {
		return "", ndserr.At(ndserr.MalformedBMG, -1, "BMG text decode failed: "+err.Error())
	}
	return string(out), nil
}

// Save serializes this BMG into file bytes.
func (b *BMG) Save() ([]byte, error) {
	bo := byteOrder(b.BigEndian)
	codec, err := b.Encoding.codec(b.BigEndian)
	if err != nil {
		return nil, err
	}
	nullBytes := b.Encoding.nullBytes()

	entryLen := 4
	if len(b.Messages) > 0 {
		entryLen = 4 + len(b.Messages[0].Info)
	}

	inf1 := make([]byte, 16)
	dat1 := make([]byte, 8)
	dat1 = append(dat1, nullBytes...)

	for i, msg := range b.Messages {
		if len(msg.Info) != entryLen-4 {
			return nil, ndserr.At(ndserr.PreconditionFailed, i,
				"BMG message info values must all be the same length")
		}
		var off uint32
		if !msg.IsNull {
			off = uint32(len(dat1) - 8)
		}
		entry := make([]byte, 4)
		bo.PutUint32(entry, off)
		inf1 = append(inf1, entry...)
		inf1 = append(inf1, msg.Info...)
		if !msg.IsNull {
			encoded, err := encodeMessage(msg, b.Encoding, b.BigEndian, codec)
			if err != nil {
				return nil, err
			}
			dat1 = append(dat1, encoded...)
		}
	}

	instructionsCount := len(b.Instructions)
	if instructionsCount%2 != 0 {
		instructionsCount++
	}
	labelsCount := len(b.Labels)
	for labelsCount%8 != 0 {
		labelsCount++
	}

	var flw1 []byte
	if len(b.Instructions) > 0 || len(b.Labels) > 0 {
		flw1 = make([]byte, 16)
		for _, inst := range b.Instructions {
			if len(inst) != 8 {
				return nil, ndserr.New(ndserr.PreconditionFailed, "BMG flow instruction must be 8 bytes long")
			}
			flw1 = append(flw1, inst...)
		}
		for len(flw1)%16 != 0 {
			flw1 = append(flw1, zero8[:]...)
		}
		for _, l := range b.Labels {
			idx := make([]byte, 2)
			bo.PutUint16(idx, uint16(l.InstIndex))
			flw1 = append(flw1, idx...)
		}
		for i := 0; i < labelsCount-len(b.Labels); i++ {
			flw1 = append(flw1, 0, 0)
		}
		for _, l := range b.Labels {
			flw1 = append(flw1, byte(l.BmgID))
		}
		for i := 0; i < labelsCount-len(b.Labels); i++ {
			flw1 = append(flw1, 0)
		}
	}

	var fli1 []byte
	if len(b.Scripts) > 0 {
		fli1 = make([]byte, 16)
		for _, s := range b.Scripts {
			entry := make([]byte, 8)
			bo.PutUint32(entry[0:4], s.ID)
			bo.PutUint16(entry[4:6], s.StartIndex)
			fli1 = append(fli1, entry...)
		}
	}

	for len(inf1)%32 != 0 {
		inf1 = append(inf1, 0)
	}
	for len(dat1)%32 != 0 {
		dat1 = append(dat1, 0)
	}
	if flw1 != nil {
		for len(flw1)%32 != 0 {
			flw1 = append(flw1, 0)
		}
	}
	// FLI1's length isn't padded in the written bytes, but the length its
	// own header claims is rounded up to the same 32-byte grain as every
	// other section.
	fli1ClaimedLen := len(fli1)
	for fli1ClaimedLen%32 != 0 {
		fli1ClaimedLen++
	}

	copy(inf1[0:4], []byte("INF1"))
	bo.PutUint32(inf1[4:8], uint32(len(inf1)))
	bo.PutUint16(inf1[8:10], uint16(len(b.Messages)))
	bo.PutUint16(inf1[10:12], uint16(entryLen))
	bo.PutUint32(inf1[12:16], uint32(b.ID))

	copy(dat1[0:4], []byte("DAT1"))
	bo.PutUint32(dat1[4:8], uint32(len(dat1)))

	if flw1 != nil {
		copy(flw1[0:4], []byte("FLW1"))
		bo.PutUint32(flw1[4:8], uint32(len(flw1)))
		bo.PutUint16(flw1[8:10], uint16(instructionsCount))
		bo.PutUint16(flw1[10:12], uint16(labelsCount))
	}

	if fli1 != nil {
		copy(fli1[0:4], []byte("FLI1"))
		bo.PutUint32(fli1[4:8], uint32(fli1ClaimedLen))
		bo.PutUint16(fli1[8:10], uint16(len(b.Scripts)))
		bo.PutUint16(fli1[10:12], 8)
	}

	out := make([]byte, 0x20)
	numSections := 2
	out = append(out, inf1...)
	out = append(out, dat1...)
	if flw1 != nil {
		numSections++
		out = append(out, flw1...)
	}
	if fli1 != nil {
		numSections++
		out = append(out, fli1...)
	}

	totalLen := len(out)
	for totalLen%32 != 0 {
		totalLen++
	}

	copy(out[0:8], []byte(magic))
	bo.PutUint32(out[8:12], uint32(totalLen))
	bo.PutUint32(out[12:16], uint32(numSections))
	out[16] = byte(b.Encoding)
	bo.PutUint32(out[0x14:0x18], b.Unk14)
	bo.PutUint32(out[0x18:0x1C], b.Unk18)
	bo.PutUint32(out[0x1C:0x20], b.Unk1C)

	return out, nil
}

func encodeMessage(msg *Message, enc Encoding, bigEndian bool, codec encoding.Encoding) ([]byte, error) {
	var out []byte
	for _, part := range msg.Parts {
		switch p := part.(type) {
		case Text:
			s := string(p)
			if strings.ContainsRune(s, 0) {
				return nil, ndserr.New(ndserr.PreconditionFailed, "null character found in BMG message text")
			}
			if strings.ContainsRune(s, 0x1A) {
				return nil, ndserr.New(ndserr.PreconditionFailed, "U+001A found in BMG message text outside an Escape")
			}
			encoded, err := codec.NewEncoder().Bytes([]byte(s))
			if err != nil {
				return nil, ndserr.New(ndserr.PreconditionFailed, "BMG text encode failed: "+err.Error())
			}
			out = append(out, encoded...)
		case Escape:
			escStart := enc.escapeStartBytes(bigEndian)
			total := len(escStart) + 2 + len(p.Data)
			out = append(out, escStart...)
			out = append(out, byte(total), p.Type)
			out = append(out, p.Data...)
		default:
			return nil, ndserr.New(ndserr.PreconditionFailed, "unknown BMG message part type")
		}
	}
	out = append(out, enc.nullBytes()...)
	return out, nil
}

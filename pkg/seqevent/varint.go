package seqevent

import "github.com/falk/ndsfmt-go/pkg/cursor"

// readVarInt decodes a variable-length integer: 7 data bits per byte, MSB
// set meaning "another byte follows", groups ordered most-significant
// first, at most 4 bytes.
func readVarInt(r *cursor.Reader) (uint32, int, error) {
	var v uint32
	for i := 0; i < 4; i++ {
		b, err := r.ReadU8()
		if err != nil {
			return 0, i, err
		}
		v = v<<7 | uint32(b&0x7F)
		if b&0x80 == 0 {
			return v, i + 1, nil
		}
	}
	return v, 4, nil
}

// peekVarInt decodes a variable-length integer starting at data[pos]
// without a Reader, returning the value and how many bytes it occupied.
func peekVarInt(data []byte, pos int) (uint32, int, bool) {
	var v uint32
	for i := 0; i < 4; i++ {
		if pos+i >= len(data) {
			return 0, 0, false
		}
		b := data[pos+i]
		v = v<<7 | uint32(b&0x7F)
		if b&0x80 == 0 {
			return v, i + 1, true
		}
	}
	return v, 4, true
}

// varIntLen reports how many bytes writeVarInt would emit for v.
func varIntLen(v uint32) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	if n > 4 {
		n = 4
	}
	return n
}

// writeVarInt encodes v using at most 4 groups of 7 bits, most-significant
// group first.
func writeVarInt(w *cursor.Writer, v uint32) {
	n := varIntLen(v)
	for i := n - 1; i >= 0; i-- {
		group := byte(v>>(uint(i)*7)) & 0x7F
		if i != 0 {
			group |= 0x80
		}
		w.WriteU8(group)
	}
}

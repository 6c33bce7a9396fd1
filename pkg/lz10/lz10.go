// Package lz10 implements Nintendo's LZ10 byte-oriented LZSS compression, the
// variant used throughout NDS ROMs for ARM9/ARM7 overlays and assorted
// assets. The format: a 1-byte tag (0x10), a 24-bit little-endian
// decompressed size, then repeating groups of one flag byte followed by up
// to eight tokens - a literal byte where the corresponding flag bit (MSB
// first) is 0, or a 2-byte back-reference where it is 1.
package lz10

import (
	"github.com/falk/ndsfmt-go/pkg/ndserr"
)

const (
	tag          = 0x10
	minMatchLen  = 3
	maxMatchLen  = 18
	maxDistance  = 4096
	tokensPerRun = 8
)

// Compress encodes data as LZ10. The encoder is a greedy longest-match
// matcher: at each position it searches every distance up to 4096 bytes
// back, keeps the longest match of at least 3 bytes (ties broken toward the
// smallest distance), and falls back to a literal otherwise. Matches are
// allowed to reference positions inside themselves (distance < length),
// which is valid here because the match is verified directly against the
// plaintext rather than a separately-built output buffer.
func Compress(data []byte) []byte {
	n := len(data)
	out := make([]byte, 0, n+n/8+4)
	out = append(out, tag, byte(n), byte(n>>8), byte(n>>16))

	pos := 0
	for pos < n {
		var flag byte
		var tokens []byte

		for bit := 0; bit < tokensPerRun; bit++ {
			flag <<= 1
			if pos >= n {
				// Padding literal for an unused slot in the final run; the
				// decoder stops once it has produced the declared size, so
				// this byte is never actually read back.
				tokens = append(tokens, 0)
				continue
			}

			length, dist := findMatch(data, pos)
			if length >= minMatchLen {
				d := dist - 1
				l := length - minMatchLen
				tokens = append(tokens, byte(l<<4)|byte(d>>8), byte(d))
				flag |= 1
				pos += length
			} else {
				tokens = append(tokens, data[pos])
				pos++
			}
		}

		out = append(out, flag)
		out = append(out, tokens...)
	}

	return out
}

// findMatch returns the best (length, distance) back-reference for data at
// pos, or (0, 0) if nothing of at least minMatchLen bytes is found.
func findMatch(data []byte, pos int) (int, int) {
	best, bestDist := 0, 0
	maxBack := pos
	if maxBack > maxDistance {
		maxBack = maxDistance
	}
	maxLen := len(data) - pos
	if maxLen > maxMatchLen {
		maxLen = maxMatchLen
	}

	for dist := 1; dist <= maxBack; dist++ {
		src := pos - dist
		l := 0
		for l < maxLen && data[pos+l] == data[src+l] {
			l++
		}
		if l > best {
			best = l
			bestDist = dist
			if best == maxLen {
				break
			}
		}
	}

	return best, bestDist
}

// Decompress reverses Compress.
func Decompress(data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, ndserr.At(ndserr.OutOfBounds, 0, "lz10 header truncated")
	}
	if data[0] != tag {
		return nil, ndserr.At(ndserr.InvalidMagic, 0, "lz10 tag byte missing")
	}
	size := int(data[1]) | int(data[2])<<8 | int(data[3])<<16
	out := make([]byte, 0, size)
	pos := 4

	for len(out) < size {
		if pos >= len(data) {
			return nil, ndserr.At(ndserr.OutOfBounds, pos, "lz10 stream truncated")
		}
		flag := data[pos]
		pos++

		for bit := 7; bit >= 0 && len(out) < size; bit-- {
			if flag&(1<<uint(bit)) == 0 {
				if pos >= len(data) {
					return nil, ndserr.At(ndserr.OutOfBounds, pos, "lz10 literal truncated")
				}
				out = append(out, data[pos])
				pos++
				continue
			}

			if pos+1 >= len(data) {
				return nil, ndserr.At(ndserr.OutOfBounds, pos, "lz10 back-reference truncated")
			}
			b0, b1 := data[pos], data[pos+1]
			pos += 2
			length := int(b0>>4) + minMatchLen
			dist := (int(b0&0xF)<<8 | int(b1)) + 1

			if dist > len(out) {
				return nil, ndserr.At(ndserr.MalformedROM, pos, "lz10 back-reference distance exceeds output so far")
			}
			src := len(out) - dist
			for i := 0; i < length && len(out) < size; i++ {
				out = append(out, out[src+i])
			}
		}
	}

	return out, nil
}

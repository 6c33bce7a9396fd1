// Package codecompress implements the "backward" LZSS variant NDS uses to
// compress the ARM9 main code file and its overlays. Unlike LZ10 (see
// pkg/lz10), which is read forward from a leading tag+size header, this
// format is meant to be decompressed in place: the compressed bytes sit at
// the START of the buffer they will expand into, so decoding must proceed
// from the END of the buffer backward, writing decompressed bytes at
// descending addresses so it never overwrites data it hasn't consumed yet.
// A tail-mounted footer describes how large the compressed region and the
// resulting expansion are.
package codecompress

import (
	"github.com/falk/ndsfmt-go/pkg/ndserr"
)

const (
	footerSize  = 8
	minMatchLen = 3
	maxMatchLen = 18
	maxDistance = 4096
	// arm9SafetyMargin is extra headroom added to the reported size delta
	// for ARM9 payloads, matching the real toolchain's practice of leaving
	// slack above the decompressed image so in-place expansion never runs
	// past a stack or BSS region reserved just above it.
	arm9SafetyMargin = 0x3000
)

func reversed(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}

// Compress encodes data with the backward LZSS scheme and appends an
// 8-byte footer preceded by 0xFF filler padding the payload out to a
// 4-byte boundary, matching codeCompression.py's _compress. isArm9 pads
// the reported expansion size with extra headroom, matching how the ARM9
// loader is compressed in practice; it has no effect on overlay
// compression (isArm9 = false).
func Compress(data []byte, isArm9 bool) []byte {
	rev := reversed(data)
	body := lzssEncode(rev)
	compressed := reversed(body)

	headerLen := footerSize
	var payload []byte
	// Compressing only pays off when the payload plus its 0xFF filler and
	// the footer is still shorter than data; otherwise delta would not come
	// out positive.
	paddedLen := (len(compressed) + 3) &^ 3
	notCompressed := len(compressed) == 0 || paddedLen+footerSize >= len(data)
	extraLen := 0

	if notCompressed {
		// Not worth compressing; store the data verbatim. delta stays 0,
		// which Decompress recognizes as "not compressed" regardless of
		// headerLen.
		payload = append([]byte(nil), data...)
	} else {
		extraLen = len(data) - len(compressed)
		if isArm9 {
			extraLen += arm9SafetyMargin
		}
		payload = compressed
	}
	preLen := len(payload)

	for len(payload)%4 != 0 {
		payload = append(payload, 0xFF)
		headerLen++
	}
	compressedLen := preLen + headerLen

	delta := 0
	if !notCompressed {
		delta = extraLen - headerLen
	}

	out := make([]byte, 0, len(payload)+footerSize)
	out = append(out, payload...)

	combined := uint32(headerLen)<<24 | uint32(compressedLen)&0xFFFFFF
	out = append(out,
		byte(combined), byte(combined>>8), byte(combined>>16), byte(combined>>24),
		byte(delta), byte(delta>>8), byte(delta>>16), byte(delta>>24),
	)
	return out
}

// Decompress reverses Compress. The 8-byte footer's first word packs
// headerLen (top byte, the combined size of the 0xFF filler and the
// footer itself) and compressedLen (low 3 bytes); the true compressed
// payload is compressedLen-headerLen bytes, sitting just before the
// filler. It is tolerant of data that was never compressed in the first
// place (delta == 0), returning it unchanged minus the header, matching
// MainCodeFile's contract of always calling Decompress even on
// possibly-uncompressed input.
func Decompress(data []byte) ([]byte, error) {
	if len(data) < footerSize {
		return nil, ndserr.At(ndserr.OutOfBounds, 0, "code-compression footer truncated")
	}
	n := len(data)
	combined := uint32(data[n-8]) | uint32(data[n-7])<<8 | uint32(data[n-6])<<16 | uint32(data[n-5])<<24
	delta := uint32(data[n-4]) | uint32(data[n-3])<<8 | uint32(data[n-2])<<16 | uint32(data[n-1])<<24

	headerLen := int(combined >> 24)
	compressedLen := int(combined & 0xFFFFFF)
	if headerLen < footerSize {
		return nil, ndserr.At(ndserr.MalformedCode, n-8, "code-compression header length smaller than footer")
	}
	if headerLen > n {
		return nil, ndserr.At(ndserr.OutOfBounds, 0, "code-compression header length exceeds buffer")
	}
	for _, b := range data[n-headerLen : n-footerSize] {
		if b != 0xFF {
			return nil, ndserr.At(ndserr.MalformedCode, n-headerLen, "code-compression header padding isn't 0xFF")
		}
	}
	if compressedLen > n {
		compressedLen = n
	}
	if compressedLen < headerLen {
		return nil, ndserr.At(ndserr.MalformedCode, n-8, "code-compression length doesn't fit the header")
	}

	passthroughLen := n - compressedLen
	prefix := data[:passthroughLen]
	payload := data[passthroughLen : passthroughLen+compressedLen-headerLen]

	if delta == 0 {
		return append(append([]byte(nil), prefix...), payload...), nil
	}

	decompressedSize := compressedLen + int(delta)
	rev := reversed(payload)
	out, err := lzssDecode(rev, decompressedSize)
	if err != nil {
		return nil, err
	}
	decoded := reversed(out)
	return append(append([]byte(nil), prefix...), decoded...), nil
}

// lzssEncode performs the same greedy longest-match encoding as LZ10 (flag
// byte MSB-first, literal bytes or 2-byte back-references), but with no
// leading tag/size header - the caller tracks lengths separately in the
// footer.
func lzssEncode(data []byte) []byte {
	n := len(data)
	out := make([]byte, 0, n)
	pos := 0

	for pos < n {
		var flag byte
		var tokens []byte

		for bit := 0; bit < 8; bit++ {
			flag <<= 1
			if pos >= n {
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

// lzssDecode reverses lzssEncode, producing exactly size bytes. Per the
// original tool's documented tolerance for retail ROMs that rely on it, a
// back-reference distance that exceeds the amount of output produced so far
// is clamped to the available amount rather than rejected.
func lzssDecode(data []byte, size int) ([]byte, error) {
	out := make([]byte, 0, size)
	pos := 0

	for len(out) < size {
		if pos >= len(data) {
			return nil, ndserr.At(ndserr.OutOfBounds, pos, "code-compression stream truncated")
		}
		flag := data[pos]
		pos++

		for bit := 7; bit >= 0 && len(out) < size; bit-- {
			if flag&(1<<uint(bit)) == 0 {
				if pos >= len(data) {
					return nil, ndserr.At(ndserr.OutOfBounds, pos, "code-compression literal truncated")
				}
				out = append(out, data[pos])
				pos++
				continue
			}

			if pos+1 >= len(data) {
				return nil, ndserr.At(ndserr.OutOfBounds, pos, "code-compression back-reference truncated")
			}
			b0, b1 := data[pos], data[pos+1]
			pos += 2
			length := int(b0>>4) + minMatchLen
			dist := (int(b0&0xF)<<8 | int(b1)) + 1

			if dist > len(out) {
				dist = len(out)
			}
			if dist == 0 {
				continue
			}
			src := len(out) - dist
			for i := 0; i < length && len(out) < size; i++ {
				out = append(out, out[src+i])
			}
		}
	}
	return out, nil
}

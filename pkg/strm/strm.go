// Package strm implements the STRM long-waveform stream container:
// multi-channel, block-structured audio used for streamed background music.
package strm

import (
	"github.com/falk/ndsfmt-go/pkg/cursor"
	"github.com/falk/ndsfmt-go/pkg/ndserr"
	"github.com/falk/ndsfmt-go/pkg/swav"
)

const (
	magic          = "STRM"
	headSize       = 0x50
	dataBlockStart = 0x68
)

// STRM is a streamed audio file: header fields plus one block list per
// channel. All channels must have the same block count, every block but the
// last must be as long as channel 0's first block, and every channel's last
// block as long as channel 0's last block.
type STRM struct {
	Type               swav.WaveType
	Looped             bool
	Unk03              byte
	SampleRate         uint16
	Timer              uint16
	LoopOffset         uint32
	SamplesPerBlock    uint32
	SamplesInLastBlock uint32
	Unk28, Unk2C, Unk30, Unk34, Unk38, Unk3C, Unk40, Unk44 uint32

	// Channels[c][b] is channel c's block b. Every channel must have the
	// same number of blocks, and every block but the last must be the
	// same length within a channel.
	Channels [][][]byte
}

// Load parses a STRM file.
func Load(data []byte) (*STRM, error) {
	if len(data) < 0x18 || string(data[:4]) != magic {
		return nil, ndserr.At(ndserr.MalformedSTRM, 0, "bad STRM magic")
	}
	r := cursor.NewReader(data)
	r.Seek(0x10)
	if hm, err := r.ReadBytes(4); err != nil || string(hm) != "HEAD" {
		return nil, ndserr.At(ndserr.MalformedSTRM, 0x10, "bad STRM HEAD magic")
	}
	if _, err := r.ReadU32(); err != nil { // head block size
		return nil, err
	}

	r.Seek(0x18)
	waveType, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	loopedByte, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	numChannels, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	unk03, err := r.ReadU8()
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
	loopOffset, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	if _, err := r.ReadU32(); err != nil { // numSamples, recomputed on save
		return nil, err
	}
	dataOffset, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	if dataOffset != dataBlockStart {
		return nil, ndserr.At(ndserr.MalformedSTRM, 0x28, "unexpected STRM data offset")
	}
	numBlocks, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	bytesPerBlock, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	samplesPerBlock, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	bytesInLastBlock, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	samplesInLastBlock, err := r.ReadU32()
	if err != nil {
		return nil, err
	}

	unks := make([]uint32, 8)
	for i := range unks {
		unks[i], err = r.ReadU32()
		if err != nil {
			return nil, err
		}
	}

	r.Seek(0x10 + headSize)
	if dm, err := r.ReadBytes(4); err != nil || string(dm) != "DATA" {
		return nil, ndserr.At(ndserr.MalformedSTRM, 0x10+headSize, "bad STRM DATA magic")
	}
	dataSize, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	waveStart := 0x10 + headSize + 8
	waveEnd := 0x10 + headSize + int(dataSize)
	if waveEnd > len(data) {
		return nil, ndserr.At(ndserr.MalformedSTRM, waveStart, "STRM DATA block truncated")
	}
	wave := data[waveStart:waveEnd]

	oneBigLongBlock := numBlocks == 1 && swav.WaveType(waveType) == swav.ADPCM
	adjust := uint32(0)
	if oneBigLongBlock {
		adjust = 4
	}

	channels := make([][][]byte, numChannels)
	for c := range channels {
		channels[c] = make([][]byte, numBlocks)
	}

	offs := 0
	for bn := 0; bn < int(numBlocks); bn++ {
		blockSize := int(bytesPerBlock + adjust)
		if bn == int(numBlocks)-1 {
			blockSize = int(bytesInLastBlock + adjust)
		}
		for cn := 0; cn < int(numChannels); cn++ {
			if offs+blockSize > len(wave) {
				return nil, ndserr.At(ndserr.MalformedSTRM, waveStart+offs, "STRM wave data truncated")
			}
			channels[cn][bn] = append([]byte(nil), wave[offs:offs+blockSize]...)
			offs += blockSize
		}
		for offs%4 != 0 {
			offs++
		}
	}

	return &STRM{
		Type:               swav.WaveType(waveType),
		Looped:             loopedByte != 0,
		Unk03:              unk03,
		SampleRate:         sampleRate,
		Timer:              timer,
		LoopOffset:         loopOffset,
		SamplesPerBlock:    samplesPerBlock,
		SamplesInLastBlock: samplesInLastBlock,
		Unk28:              unks[0],
		Unk2C:              unks[1],
		Unk30:              unks[2],
		Unk34:              unks[3],
		Unk38:              unks[4],
		Unk3C:              unks[5],
		Unk40:              unks[6],
		Unk44:              unks[7],
		Channels:           channels,
	}, nil
}

// Save serializes a STRM file.
func Save(s *STRM) ([]byte, error) {
	numBlocks := 0
	bytesPerBlock := 0
	bytesInLastBlock := 0

	if len(s.Channels) > 0 {
		numBlocks = len(s.Channels[0])
		for i, blocks := range s.Channels {
			if len(blocks) != numBlocks {
				return nil, ndserr.New(ndserr.MalformedSTRM, "channels have differing numbers of blocks")
			}
			_ = i
		}
		if numBlocks > 0 {
			bytesPerBlock = len(s.Channels[0][0])
			bytesInLastBlock = len(s.Channels[0][numBlocks-1])
			for _, blocks := range s.Channels {
				for j, b := range blocks[:len(blocks)-1] {
					if len(b) != bytesPerBlock {
						return nil, ndserr.At(ndserr.MalformedSTRM, j, "inconsistent block size")
					}
				}
				if len(blocks[len(blocks)-1]) != bytesInLastBlock {
					return nil, ndserr.New(ndserr.MalformedSTRM, "inconsistent last-block size")
				}
			}
		}
	}

	wave := cursor.NewWriter()
	for bn := 0; bn < numBlocks; bn++ {
		for cn := range s.Channels {
			wave.WriteBytes(s.Channels[cn][bn])
		}
		wave.AlignTo(4, 0)
	}
	waveData := wave.Bytes()

	adjust := uint32(0)
	if s.Type == swav.ADPCM && numBlocks == 1 {
		adjust = 4
	}

	w := cursor.NewWriter()
	w.WriteBytes([]byte(magic))
	w.WriteU16(0xFEFF)
	w.WriteU16(0x0100)
	w.WriteU32(uint32(dataBlockStart + len(waveData)))
	w.WriteU16(0x10)
	w.WriteU16(2)

	w.WriteBytes([]byte("HEAD"))
	w.WriteU32(headSize)
	w.WriteU8(byte(s.Type))
	if s.Looped {
		w.WriteU8(1)
	} else {
		w.WriteU8(0)
	}
	w.WriteU8(byte(len(s.Channels)))
	w.WriteU8(s.Unk03)
	w.WriteU16(s.SampleRate)
	w.WriteU16(s.Timer)
	w.WriteU32(s.LoopOffset)
	numSamples := uint32(numBlocks-1)*s.SamplesPerBlock + s.SamplesInLastBlock
	if numBlocks == 0 {
		numSamples = 0
	}
	w.WriteU32(numSamples)
	w.WriteU32(dataBlockStart)
	w.WriteU32(uint32(numBlocks))
	w.WriteU32(uint32(bytesPerBlock) - adjust)
	w.WriteU32(s.SamplesPerBlock)
	w.WriteU32(uint32(bytesInLastBlock) - adjust)
	w.WriteU32(s.SamplesInLastBlock)
	w.WriteU32(s.Unk28)
	w.WriteU32(s.Unk2C)
	w.WriteU32(s.Unk30)
	w.WriteU32(s.Unk34)
	w.WriteU32(s.Unk38)
	w.WriteU32(s.Unk3C)
	w.WriteU32(s.Unk40)
	w.WriteU32(s.Unk44)

	w.WriteBytes([]byte("DATA"))
	w.WriteU32(uint32(8 + len(waveData)))
	w.WriteBytes(waveData)

	return w.Bytes(), nil
}

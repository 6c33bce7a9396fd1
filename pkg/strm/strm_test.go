package strm

import (
	"bytes"
	"testing"

	"github.com/falk/ndsfmt-go/pkg/swav"
)

func TestRoundTrip(t *testing.T) {
	s := &STRM{
		Type:               swav.PCM16,
		SampleRate:         16000,
		SamplesPerBlock:    100,
		SamplesInLastBlock: 50,
		Channels: [][][]byte{
			{{1, 2, 3, 4}, {5, 6}},
			{{7, 8, 9, 10}, {11, 12}},
		},
	}

	data, err := Save(s)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got.Channels) != 2 || len(got.Channels[0]) != 2 {
		t.Fatalf("channel/block shape mismatch: %+v", got.Channels)
	}
	if !bytes.Equal(got.Channels[0][0], s.Channels[0][0]) {
		t.Fatalf("channel 0 block 0 mismatch: got %v want %v", got.Channels[0][0], s.Channels[0][0])
	}
	if !bytes.Equal(got.Channels[1][1], s.Channels[1][1]) {
		t.Fatalf("channel 1 block 1 mismatch: got %v want %v", got.Channels[1][1], s.Channels[1][1])
	}
	if got.SampleRate != s.SampleRate {
		t.Fatalf("sample rate mismatch: got %d want %d", got.SampleRate, s.SampleRate)
	}
}

func TestInconsistentBlockCountRejected(t *testing.T) {
	s := &STRM{
		Channels: [][][]byte{
			{{1, 2}},
			{{1, 2}, {3, 4}},
		},
	}
	if _, err := Save(s); err == nil {
		t.Fatalf("expected an error for mismatched channel block counts")
	}
}

package swar

import (
	"bytes"
	"testing"

	"github.com/falk/ndsfmt-go/pkg/swav"
)

func TestRoundTrip(t *testing.T) {
	s := &SWAR{
		Unk02: 0,
		Waves: []*swav.SWAV{
			{Type: swav.PCM8, SampleRate: 8000, Data: []byte{1, 2, 3}},
			{Type: swav.PCM16, SampleRate: 16000, Looped: true, LoopOffset: 1, TotalLength: 4, Data: []byte{4, 5, 6, 7, 8, 9}},
		},
	}

	data := Save(s)
	got, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got.Waves) != 2 {
		t.Fatalf("wave count = %d, want 2", len(got.Waves))
	}
	if !bytes.Equal(got.Waves[0].Data, s.Waves[0].Data) {
		t.Fatalf("wave 0 data mismatch: got %v want %v", got.Waves[0].Data, s.Waves[0].Data)
	}
	if !bytes.Equal(got.Waves[1].Data, s.Waves[1].Data) {
		t.Fatalf("wave 1 data mismatch: got %v want %v", got.Waves[1].Data, s.Waves[1].Data)
	}
	if got.Waves[1].Type != swav.PCM16 || !got.Waves[1].Looped {
		t.Fatalf("wave 1 header mismatch: %+v", got.Waves[1])
	}
}

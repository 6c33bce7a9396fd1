package swav

import (
	"bytes"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	s := &SWAV{
		Type:        PCM16,
		Looped:      true,
		SampleRate:  22050,
		Timer:       760,
		LoopOffset:  2,
		TotalLength: 10,
		Data:        []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20},
	}

	data := Save(s)
	got, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Type != s.Type || got.Looped != s.Looped || got.SampleRate != s.SampleRate {
		t.Fatalf("header mismatch: %+v", got)
	}
	if got.LoopOffset != s.LoopOffset || got.TotalLength != s.TotalLength {
		t.Fatalf("loop fields mismatch: %+v", got)
	}
	if !bytes.Equal(got.Data, s.Data) {
		t.Fatalf("data mismatch: got %v want %v", got.Data, s.Data)
	}
}

func TestBodyRoundTrip(t *testing.T) {
	s := &SWAV{Type: PCM8, SampleRate: 8000, Data: []byte{0xAA, 0xBB}}
	body := SaveBody(s)
	got, err := LoadBody(body)
	if err != nil {
		t.Fatalf("LoadBody: %v", err)
	}
	if !bytes.Equal(got.Data, s.Data) {
		t.Fatalf("data mismatch: got %v want %v", got.Data, s.Data)
	}
}

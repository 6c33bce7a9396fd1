package sdat

import (
	"testing"

	"github.com/falk/ndsfmt-go/pkg/seqevent"
	"github.com/falk/ndsfmt-go/pkg/sndmeta"
	"github.com/falk/ndsfmt-go/pkg/sseq"
)

func sampleEvents() *seqevent.EventList {
	return &seqevent.EventList{
		Events: []seqevent.Event{
			&seqevent.DefineTracksEvent{Mask: 1},
			&seqevent.NoteEvent{Note: 60, Velocity: 100, Duration: 20},
			&seqevent.EndTrackEvent{},
		},
	}
}

func TestDedupSharesOneFATSlot(t *testing.T) {
	s := &SDAT{
		Sequences: []SequenceEntry{
			{Name: "seq_a", SSEQ: &sseq.SSEQ{BankID: 1, Volume: 127, Events: sampleEvents()}},
			{Name: "seq_b", SSEQ: &sseq.SSEQ{BankID: 2, Volume: 100, Events: sampleEvents()}},
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
	if len(got.Sequences) != 2 {
		t.Fatalf("sequence count = %d, want 2", len(got.Sequences))
	}
	if got.Sequences[0].MergeID != got.Sequences[1].MergeID {
		t.Fatalf("byte-identical sequences with equal MergeID should share a FAT slot: got %d and %d",
			got.Sequences[0].MergeID, got.Sequences[1].MergeID)
	}
}

func TestDedupRespectsDifferentMergeID(t *testing.T) {
	s := &SDAT{
		Sequences: []SequenceEntry{
			{Name: "seq_a", SSEQ: &sseq.SSEQ{BankID: 1, Events: sampleEvents()}, MergeID: 0},
			{Name: "seq_b", SSEQ: &sseq.SSEQ{BankID: 1, Events: sampleEvents()}, MergeID: 1},
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
	if got.Sequences[0].MergeID == got.Sequences[1].MergeID {
		t.Fatalf("entries with different MergeID must not be merged")
	}
}

func TestRoundTripWithNamesAndGroup(t *testing.T) {
	s := &SDAT{
		Sequences: []SequenceEntry{
			{Name: "bgm_title", SSEQ: &sseq.SSEQ{BankID: 3, Volume: 120, Events: sampleEvents()}},
		},
		Groups: []GroupEntry{
			{Name: "group_0", Group: &sndmeta.Group{
				Entries: []sndmeta.GroupEntry{
					sndmeta.NewGroupEntry(sndmeta.GroupEntrySSEQ, 2, 0),
				},
			}},
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
	if len(got.Sequences) != 1 || got.Sequences[0].Name != "bgm_title" {
		t.Fatalf("sequence name round trip failed: %+v", got.Sequences)
	}
	if got.Sequences[0].SSEQ.BankID != 3 || got.Sequences[0].SSEQ.Volume != 120 {
		t.Fatalf("sequence metadata round trip failed: %+v", got.Sequences[0].SSEQ)
	}
	if len(got.Groups) != 1 || got.Groups[0].Name != "group_0" {
		t.Fatalf("group name round trip failed: %+v", got.Groups)
	}
	if len(got.Groups[0].Group.Entries) != 1 {
		t.Fatalf("group entry count = %d, want 1", len(got.Groups[0].Group.Entries))
	}
	ge := got.Groups[0].Group.Entries[0]
	if ge.Type != sndmeta.GroupEntrySSEQ || ge.LoadSSEQ || ge.LoadSBNKSWARsFrom != sndmeta.SWARLoadBySWARIDs {
		t.Fatalf("group entry round trip mismatch: %+v", ge)
	}
}

func TestEmptySlotsPreserved(t *testing.T) {
	s := &SDAT{
		Sequences: []SequenceEntry{
			{SSEQ: &sseq.SSEQ{Events: sampleEvents()}},
			{}, // empty slot
			{SSEQ: &sseq.SSEQ{Events: sampleEvents()}},
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
	if len(got.Sequences) != 3 {
		t.Fatalf("sequence count = %d, want 3", len(got.Sequences))
	}
	if got.Sequences[1].SSEQ != nil {
		t.Fatalf("middle slot should be empty, got %+v", got.Sequences[1].SSEQ)
	}
	if got.Sequences[0].SSEQ == nil || got.Sequences[2].SSEQ == nil {
		t.Fatalf("non-empty slots should round trip")
	}
}

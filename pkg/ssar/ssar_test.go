package ssar

import (
	"testing"

	"github.com/falk/ndsfmt-go/pkg/seqevent"
)

func TestRoundTrip(t *testing.T) {
	events := &seqevent.EventList{
		Events: []seqevent.Event{
			&seqevent.NoteEvent{Note: 60, Velocity: 100, Duration: 10},
			&seqevent.EndTrackEvent{},
			&seqevent.NoteEvent{Note: 64, Velocity: 90, Duration: 5},
			&seqevent.EndTrackEvent{},
		},
	}
	s := &SSAR{
		Sequences: []Sequence{
			{BankID: 1, Volume: 127, PlayerID: 0, FirstEvent: 0},
			{FirstEvent: noFirstEvent},
			{BankID: 2, Volume: 100, PlayerID: 1, FirstEvent: 2},
		},
		Events: events,
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
	if got.Sequences[1].FirstEvent != noFirstEvent {
		t.Fatalf("sequence 1 should have no first event, got %d", got.Sequences[1].FirstEvent)
	}
	first0 := got.Events.Events[got.Sequences[0].FirstEvent]
	n, ok := first0.(*seqevent.NoteEvent)
	if !ok || n.Note != 60 {
		t.Fatalf("sequence 0 first event mismatch: %+v", first0)
	}
	first2 := got.Events.Events[got.Sequences[2].FirstEvent]
	n2, ok := first2.(*seqevent.NoteEvent)
	if !ok || n2.Note != 64 {
		t.Fatalf("sequence 2 first event mismatch: %+v", first2)
	}
}

package sseq

import (
	"testing"

	"github.com/falk/ndsfmt-go/pkg/seqevent"
)

func TestRoundTrip(t *testing.T) {
	events := &seqevent.EventList{
		Events: []seqevent.Event{
			&seqevent.DefineTracksEvent{Mask: 1},
			&seqevent.NoteEvent{Note: 60, Velocity: 100, Duration: 48},
			&seqevent.EndTrackEvent{},
		},
	}
	s := &SSEQ{BankID: 2, Volume: 127, PlayerID: 1, Events: events}

	data, err := Save(s)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got.Events.Events) != 3 {
		t.Fatalf("event count = %d, want 3", len(got.Events.Events))
	}
	if _, ok := got.Events.Events[0].(*seqevent.DefineTracksEvent); !ok {
		t.Fatalf("event 0 is %T, want *DefineTracksEvent", got.Events.Events[0])
	}
}

package seqevent

import "testing"

// buildScenario constructs the byte blob described by the canonical SSEQ
// lift scenario: a track-0 DefineTracks{0,1}, a BeginTrack for track 1
// targeting @16, a fall-through Jump back to @0, and at @16 two Note events
// followed by EndTrack.
func buildScenario() []byte {
	data := make([]byte, 23)
	// @0: DefineTracks mask=0b11
	data[0] = OpDefineTracks
	data[1] = 0x03
	data[2] = 0x00
	// @3: BeginTrack track=1 -> @16
	data[3] = OpBeginTrack
	data[4] = 0x01
	data[5], data[6], data[7] = 16, 0, 0
	// @8: Jump -> @0 (fall-through after BeginTrack)
	data[8] = OpJump
	data[9], data[10], data[11] = 0, 0, 0
	// @12-15: unreferenced filler
	// @16: Note(60, vel=100, dur=4)
	data[16] = 60
	data[17] = 100
	data[18] = 4
	// @19: Note(64, vel=90, dur=8)
	data[19] = 64
	data[20] = 90
	data[21] = 8
	// @22: EndTrack
	data[22] = OpEndTrack
	return data
}

func TestReadEventsScenario(t *testing.T) {
	data := buildScenario()
	list, notable, err := ReadEvents(data, []int{0})
	if err != nil {
		t.Fatalf("ReadEvents: %v", err)
	}
	if len(list.Events) != 6 {
		t.Fatalf("len(Events) = %d, want 6", len(list.Events))
	}

	entryIdx := notable[0]
	if _, ok := list.Events[entryIdx].(*DefineTracksEvent); !ok {
		t.Fatalf("entry event is %T, want *DefineTracksEvent", list.Events[entryIdx])
	}

	bt, ok := list.Events[1].(*BeginTrackEvent)
	if !ok {
		t.Fatalf("Events[1] = %T, want *BeginTrackEvent", list.Events[1])
	}
	if _, ok := list.Events[bt.Target].(*NoteEvent); !ok {
		t.Fatalf("BeginTrack target resolves to %T, want *NoteEvent", list.Events[bt.Target])
	}

	jmp, ok := list.Events[2].(*JumpEvent)
	if !ok {
		t.Fatalf("Events[2] = %T, want *JumpEvent", list.Events[2])
	}
	if jmp.Target != entryIdx {
		t.Fatalf("Jump target = %d, want %d (DefineTracks)", jmp.Target, entryIdx)
	}

	if _, ok := list.Events[5].(*EndTrackEvent); !ok {
		t.Fatalf("Events[5] = %T, want *EndTrackEvent", list.Events[5])
	}
}

func TestSaveEventsRoundTrip(t *testing.T) {
	data := buildScenario()
	list, _, err := ReadEvents(data, []int{0})
	if err != nil {
		t.Fatalf("ReadEvents: %v", err)
	}

	out, err := SaveEvents(list)
	if err != nil {
		t.Fatalf("SaveEvents: %v", err)
	}

	list2, notable2, err := ReadEvents(out, []int{0})
	if err != nil {
		t.Fatalf("ReadEvents(re-encoded): %v", err)
	}
	if len(list2.Events) != len(list.Events) {
		t.Fatalf("re-decoded len = %d, want %d", len(list2.Events), len(list.Events))
	}
	if _, ok := list2.Events[notable2[0]].(*DefineTracksEvent); !ok {
		t.Fatalf("re-decoded entry is %T, want *DefineTracksEvent", list2.Events[notable2[0]])
	}
}

func TestCallStopsWhenTargetNeverReturns(t *testing.T) {
	// @0: Call -> @10, whose target is an EndTrack (fate EOT). Bytes
	// immediately after the Call (@4) must not be decoded as a reachable
	// event: a Call only keeps running sequentially past itself when its
	// target resolves to "returns".
	data := make([]byte, 11)
	data[0] = OpCall
	data[1], data[2], data[3] = 10, 0, 0
	data[4] = OpEndTrack // would wrongly become a 3rd event if Call fell through
	data[10] = OpEndTrack

	list, notable, err := ReadEvents(data, []int{0})
	if err != nil {
		t.Fatalf("ReadEvents: %v", err)
	}
	if len(list.Events) != 2 {
		t.Fatalf("len(Events) = %d, want 2 (Call + its EndTrack target only)", len(list.Events))
	}

	call, ok := list.Events[notable[0]].(*CallEvent)
	if !ok {
		t.Fatalf("entry event is %T, want *CallEvent", list.Events[notable[0]])
	}
	if _, ok := list.Events[call.Target].(*EndTrackEvent); !ok {
		t.Fatalf("Call target resolves to %T, want *EndTrackEvent", list.Events[call.Target])
	}
}

func TestCallContinuesWhenTargetReturns(t *testing.T) {
	// @0: Call -> @5 (Return). Since the target's fate is "returns", the
	// caller keeps decoding sequentially past the Call.
	data := make([]byte, 6)
	data[0] = OpCall
	data[1], data[2], data[3] = 5, 0, 0
	data[4] = OpEndTrack
	data[5] = OpReturn

	list, notable, err := ReadEvents(data, []int{0})
	if err != nil {
		t.Fatalf("ReadEvents: %v", err)
	}
	if len(list.Events) != 3 {
		t.Fatalf("len(Events) = %d, want 3 (Call, its Return target, and the trailing EndTrack)", len(list.Events))
	}
	call, ok := list.Events[notable[0]].(*CallEvent)
	if !ok {
		t.Fatalf("entry event is %T, want *CallEvent", list.Events[notable[0]])
	}
	if _, ok := list.Events[call.Target].(*ReturnEvent); !ok {
		t.Fatalf("Call target resolves to %T, want *ReturnEvent", list.Events[call.Target])
	}
}

func TestOverlappingEventsRejected(t *testing.T) {
	// A Jump whose target lands one byte into a previously decoded
	// BeginTrack (offset 4, inside the @3-@8 BeginTrack span). The
	// BeginTrack's own target is that Jump, so the Jump is decoded while
	// the BeginTrack's span is already recorded.
	data := []byte{
		OpDefineTracks, 0x00, 0x00, // @0
		OpBeginTrack, 0x01, 0x08, 0x00, 0x00, // @3, target @8 (the Jump)
		OpJump, 4, 0, 0, // @8, target @4: inside BeginTrack's span
	}
	_, _, err := ReadEvents(data, []int{0})
	if err == nil {
		t.Fatalf("expected an overlap or dangling-reference error, got nil")
	}
}

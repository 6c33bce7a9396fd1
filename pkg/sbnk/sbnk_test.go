package sbnk

import "testing"

func TestRoundTripSingleNote(t *testing.T) {
	s := &SBNK{
		Instruments: []Instrument{
			&SingleNoteInstrument{Note: NoteDefinition{WaveID: 3, WaveArchiveID: 1, Pitch: 60, Attack: 127, Decay: 127, Sustain: 127, Release: 127, Pan: 64, Type: SingleNotePCM}},
			nil,
			&SingleNoteInstrument{Note: NoteDefinition{WaveID: 5, WaveArchiveID: 2, Pitch: 72, Attack: 100, Decay: 100, Sustain: 100, Release: 100, Pan: 64, Type: SingleNotePCM}},
		},
		Inaccessible: map[int][]Instrument{},
		bankOrderKeys: map[Instrument]int{},
		mergeIDs:      map[Instrument]int{},
	}

	data, err := Save(s)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got.Instruments) != 3 {
		t.Fatalf("instrument count = %d, want 3", len(got.Instruments))
	}
	if got.Instruments[1] != nil {
		t.Fatalf("slot 1 should be empty, got %+v", got.Instruments[1])
	}
	si, ok := got.Instruments[0].(*SingleNoteInstrument)
	if !ok {
		t.Fatalf("slot 0 is %T, want *SingleNoteInstrument", got.Instruments[0])
	}
	if si.Note.WaveID != 3 || si.Note.Pitch != 60 {
		t.Fatalf("slot 0 note mismatch: %+v", si.Note)
	}
}

func TestRoundTripRangeInstrument(t *testing.T) {
	notes := []NoteDefinition{
		{WaveID: 1, Pitch: 60, Type: SingleNotePCM},
		{WaveID: 2, Pitch: 61, Type: SingleNotePCM},
	}
	s := &SBNK{
		Instruments: []Instrument{
			&RangeInstrument{FirstPitch: 60, Notes: notes},
		},
		Inaccessible:  map[int][]Instrument{},
		bankOrderKeys: map[Instrument]int{},
		mergeIDs:      map[Instrument]int{},
	}

	data, err := Save(s)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	ri, ok := got.Instruments[0].(*RangeInstrument)
	if !ok {
		t.Fatalf("slot 0 is %T, want *RangeInstrument", got.Instruments[0])
	}
	if ri.FirstPitch != 60 || len(ri.Notes) != 2 {
		t.Fatalf("range instrument mismatch: %+v", ri)
	}
	if ri.Notes[1].WaveID != 2 {
		t.Fatalf("second note mismatch: %+v", ri.Notes[1])
	}
}

func TestSaveRejectsRegionalInstrumentOverEightRegions(t *testing.T) {
	regions := make([]Region, 9)
	for i := range regions {
		regions[i] = Region{LastPitch: byte(10 * (i + 1)), Note: NoteDefinition{WaveID: uint16(i), Type: SingleNotePCM}}
	}
	s := &SBNK{
		Instruments: []Instrument{
			&RegionalInstrument{Regions: regions},
		},
		Inaccessible:  map[int][]Instrument{},
		bankOrderKeys: map[Instrument]int{},
		mergeIDs:      map[Instrument]int{},
	}

	if _, err := Save(s); err == nil {
		t.Fatalf("expected a PreconditionFailed error saving a RegionalInstrument with 9 regions, got nil")
	}
}

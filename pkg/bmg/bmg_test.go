package bmg

import (
	"bytes"
	"testing"
)

func TestSaveTwoUTF16Messages(t *testing.T) {
	b := New()
	b.Messages = []*Message{
		{Info: []byte{}, Parts: []Part{Text("Open your eyes...")}},
		{Info: []byte{}, Parts: []Part{Text("Wake up, Link...")}},
	}

	data, err := b.Save()
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	want := []byte{0x4D, 0x45, 0x53, 0x47, 0x62, 0x6D, 0x67, 0x31}
	if !bytes.Equal(data[:8], want) {
		t.Fatalf("magic = % X, want % X", data[:8], want)
	}
	wantSize := []byte{0xA0, 0x00, 0x00, 0x00}
	if !bytes.Equal(data[8:12], wantSize) {
		t.Fatalf("total size = % X, want % X", data[8:12], wantSize)
	}
	wantSections := []byte{0x02, 0x00, 0x00, 0x00}
	if !bytes.Equal(data[12:16], wantSections) {
		t.Fatalf("section count = % X, want % X", data[12:16], wantSections)
	}
}

func TestLoadSaveRoundTrip(t *testing.T) {
	b := New()
	b.ID = 7
	b.Messages = []*Message{
		{Info: []byte{1, 2, 3}, Parts: []Part{
			Text("before "),
			Escape{Type: 7, Data: []byte("abcdefg")},
			Text(" after"),
		}},
		{Info: []byte{4, 5, 6}, IsNull: true},
		{Info: []byte{7, 8, 9}, Parts: []Part{Text("plain message")}},
	}
	b.Instructions = [][]byte{
		bytes.Repeat([]byte{0x11}, 8),
		bytes.Repeat([]byte{0x22}, 8),
	}
	b.Labels = []Label{{BmgID: 1, InstIndex: 2}, {BmgID: 3, InstIndex: 4}}
	b.Scripts = []Script{{ID: 0, StartIndex: 0}, {ID: 1, StartIndex: 2}}

	data, err := b.Save()
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got.ID != 7 {
		t.Fatalf("ID = %d", got.ID)
	}
	if len(got.Messages) != 3 {
		t.Fatalf("messages = %d, want 3", len(got.Messages))
	}
	if got.Messages[1].IsNull != true {
		t.Fatalf("message 1 should be null")
	}
	if !bytes.Equal(got.Messages[0].Info, []byte{1, 2, 3}) {
		t.Fatalf("message 0 info = %v", got.Messages[0].Info)
	}
	if len(got.Messages[0].Parts) != 3 {
		t.Fatalf("message 0 parts = %d, want 3", len(got.Messages[0].Parts))
	}
	if got.Messages[0].Parts[0] != Text("before ") {
		t.Fatalf("part 0 = %v", got.Messages[0].Parts[0])
	}
	esc, ok := got.Messages[0].Parts[1].(Escape)
	if !ok || esc.Type != 7 || !bytes.Equal(esc.Data, []byte("abcdefg")) {
		t.Fatalf("part 1 = %v", got.Messages[0].Parts[1])
	}
	if got.Messages[0].Parts[2] != Text(" after") {
		t.Fatalf("part 2 = %v", got.Messages[0].Parts[2])
	}
	if len(got.Messages[2].Parts) != 1 || got.Messages[2].Parts[0] != Text("plain message") {
		t.Fatalf("message 2 parts = %v", got.Messages[2].Parts)
	}

	if len(got.Instructions) != 2 {
		t.Fatalf("instructions = %d, want 2", len(got.Instructions))
	}
	if len(got.Labels) != 2 || got.Labels[0] != (Label{BmgID: 1, InstIndex: 2}) {
		t.Fatalf("labels = %v", got.Labels)
	}
	if len(got.Scripts) != 2 || got.Scripts[1] != (Script{ID: 1, StartIndex: 2}) {
		t.Fatalf("scripts = %v", got.Scripts)
	}
}

func TestEncodingRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		enc  Encoding
	}{
		{"cp1252", CP1252},
		{"utf16", UTF16},
		{"shiftjis", ShiftJIS},
		{"utf8", UTF8},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			b := New()
			b.Encoding = c.enc
			b.Messages = []*Message{{Parts: []Part{Text("hello")}}}

			data, err := b.Save()
			if err != nil {
				t.Fatalf("Save: %v", err)
			}
			got, err := Load(data)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if got.Encoding != c.enc {
				t.Fatalf("encoding = %v, want %v", got.Encoding, c.enc)
			}
			if len(got.Messages) != 1 || got.Messages[0].Parts[0] != Text("hello") {
				t.Fatalf("messages = %v", got.Messages)
			}
		})
	}
}

func TestNullCharacterRejected(t *testing.T) {
	b := New()
	b.Messages = []*Message{{Parts: []Part{Text("bad\x00text")}}}
	if _, err := b.Save(); err == nil {
		t.Fatalf("expected an error for an embedded null character")
	}
}

package ndserr

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	withOffset := At(MalformedROM, 0x15C, "header CRC mismatch")
	if got, want := withOffset.Error(), "MalformedROM at 0x15C: header CRC mismatch"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}

	noOffset := New(PreconditionFailed, "message info length mismatch")
	if got, want := noOffset.Error(), "PreconditionFailed: message info length mismatch"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestErrorsAs(t *testing.T) {
	wrapped := fmt.Errorf("sdat: %w", At(MalformedSDAT, 0x10, "bad magic"))

	var e *Error
	if !errors.As(wrapped, &e) {
		t.Fatalf("errors.As failed to unwrap a %%w-wrapped *Error")
	}
	if e.Kind != MalformedSDAT || e.Offset != 0x10 {
		t.Fatalf("unwrapped error = %+v", e)
	}
}

func TestKindString(t *testing.T) {
	if OutOfBounds.String() != "OutOfBounds" {
		t.Fatalf("OutOfBounds.String() = %q", OutOfBounds.String())
	}
	if Kind(999).String() != "Unknown" {
		t.Fatalf("unknown kind should stringify to Unknown")
	}
}

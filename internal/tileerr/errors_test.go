package tileerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorsIsMatchesByKind(t *testing.T) {
	err := New(OutOfBounds, "lat out of range")
	if !errors.Is(err, New(OutOfBounds, "different message")) {
		t.Error("expected errors.Is to match on Kind regardless of Message")
	}
	if errors.Is(err, New(IoError, "lat out of range")) {
		t.Error("expected errors.Is to not match across different Kinds")
	}
}

func TestErrorsAsUnwrapsWrappedCause(t *testing.T) {
	cause := fmt.Errorf("disk full")
	wrapped := Wrap(IoError, "open tile file", cause)
	outer := fmt.Errorf("loading tile: %w", wrapped)

	var te *Error
	if !errors.As(outer, &te) {
		t.Fatal("expected errors.As to find the *Error in the chain")
	}
	if te.Kind != IoError {
		t.Errorf("Kind = %v, want IoError", te.Kind)
	}
	if !errors.Is(outer, cause) {
		t.Error("expected errors.Is to reach the original cause through Unwrap")
	}
}

func TestKindOf(t *testing.T) {
	err := Newf(OutOfBounds, "point (%g,%g) invalid", 91.0, 0.0)
	kind, ok := KindOf(err)
	if !ok || kind != OutOfBounds {
		t.Errorf("KindOf = (%v, %v), want (OutOfBounds, true)", kind, ok)
	}

	_, ok = KindOf(fmt.Errorf("plain error"))
	if ok {
		t.Error("KindOf should report false for a non-tileerr error")
	}
}

func TestWithIdentityDoesNotMutateOriginal(t *testing.T) {
	base := New(TileNotAvailable, "no data")
	annotated := base.WithIdentity("N35E138")

	if base.Identity != "" {
		t.Errorf("WithIdentity mutated the receiver: Identity = %q", base.Identity)
	}
	if annotated.Identity != "N35E138" {
		t.Errorf("annotated.Identity = %q, want N35E138", annotated.Identity)
	}
}

func TestErrorMessageIncludesContext(t *testing.T) {
	err := Newf(OutOfBounds, "lat %g out of range", 95.0).WithIdentity("N35E138")
	msg := err.Error()
	if msg == "" {
		t.Fatal("Error() returned empty string")
	}
	for _, want := range []string{"out_of_bounds", "N35E138"} {
		if !contains(msg, want) {
			t.Errorf("Error() = %q, expected to contain %q", msg, want)
		}
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

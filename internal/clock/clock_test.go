package clock

import (
	"testing"
	"time"
)

func TestFixed(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 1, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	c := NewFixed(at)
	if !c.Now().Equal(at) || c.Now().Location() != time.UTC {
		t.Fatalf("expected %v in UTC, got %v", at, c.Now())
	}
}

func TestManual_Advance(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewManual(at)
	c.Advance(90 * time.Second)
	if want := at.Add(90 * time.Second); !c.Now().Equal(want) {
		t.Fatalf("expected %v, got %v", want, c.Now())
	}

	c.Set(at)
	if !c.Now().Equal(at) {
		t.Fatalf("expected %v after Set, got %v", at, c.Now())
	}
}

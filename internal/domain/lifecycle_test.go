package domain

import (
	"errors"
	"testing"
	"time"
)

func TestNewSessionState(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("starts active without schedule", func(t *testing.T) {
		st := NewSessionState(now, nil, 0)
		if st.Status != SessionStatusActive {
			t.Fatalf("expected ACTIVE, got %s", st.Status)
		}
		if st.TimeoutSeconds != DefaultTimeoutSeconds {
			t.Fatalf("expected default timeout, got %d", st.TimeoutSeconds)
		}
		if st.ExpiresAt == nil || !st.ExpiresAt.Equal(now.Add(2*time.Hour)) {
			t.Fatalf("expected expires_at %v, got %v", now.Add(2*time.Hour), st.ExpiresAt)
		}
		if st.StartedAt == nil || !st.StartedAt.Equal(now) {
			t.Fatalf("expected started_at %v, got %v", now, st.StartedAt)
		}
	})

	t.Run("future schedule stays scheduled", func(t *testing.T) {
		at := now.Add(time.Hour)
		st := NewSessionState(now, &at, 600)
		if st.Status != SessionStatusScheduled {
			t.Fatalf("expected SCHEDULED, got %s", st.Status)
		}
		if st.ExpiresAt != nil {
			t.Fatalf("expected no expiry before activation")
		}
	})

	t.Run("past schedule starts active", func(t *testing.T) {
		at := now.Add(-time.Hour)
		st := NewSessionState(now, &at, 600)
		if st.Status != SessionStatusActive {
			t.Fatalf("expected ACTIVE, got %s", st.Status)
		}
	})
}

func TestTransition_LegalMoves(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	at := now.Add(time.Minute)
	scheduled := NewSessionState(now, &at, 60)
	policy := DefaultLifecyclePolicy()

	active, err := Transition(scheduled, EventStart, now.Add(2*time.Minute), policy)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if active.Status != SessionStatusActive || active.ExpiresAt == nil {
		t.Fatalf("unexpected state after start: %+v", active)
	}

	paused, err := Transition(active, EventPause, now.Add(3*time.Minute), policy)
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	if paused.Status != SessionStatusPaused {
		t.Fatalf("expected PAUSED, got %s", paused.Status)
	}

	resumed, err := Transition(paused, EventResume, now.Add(4*time.Minute), policy)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if !resumed.ExpiresAt.Equal(now.Add(5 * time.Minute)) {
		t.Fatalf("expected resume to reset expiry, got %v", resumed.ExpiresAt)
	}

	ended, err := Transition(resumed, EventEnd, now.Add(5*time.Minute), policy)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if ended.Status != SessionStatusEnded || ended.EndedAt == nil {
		t.Fatalf("unexpected state after end: %+v", ended)
	}

	for _, ev := range []SessionEvent{EventStart, EventPause, EventResume, EventEnd, EventCancel, EventConvert} {
		if _, err := Transition(ended, ev, now, policy); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("%s on ENDED: expected ErrInvalidTransition, got %v", ev, err)
		}
	}
}

func TestTransition_ConvertRequiresOpen(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	at := now.Add(time.Hour)
	scheduled := NewSessionState(now, &at, 60)

	if _, err := Transition(scheduled, EventConvert, now, DefaultLifecyclePolicy()); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	cancelled, err := Transition(scheduled, EventCancel, now, DefaultLifecyclePolicy())
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != SessionStatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", cancelled.Status)
	}
}

func TestTransition_ActivitySlidesExpiry(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	st := NewSessionState(now, nil, 120)
	later := now.Add(90 * time.Second)

	next, err := Transition(st, EventActivity, later, DefaultLifecyclePolicy())
	if err != nil {
		t.Fatalf("activity: %v", err)
	}
	if next.Status != SessionStatusActive {
		t.Fatalf("activity must not change status, got %s", next.Status)
	}
	if !next.ExpiresAt.Equal(later.Add(120 * time.Second)) {
		t.Fatalf("expected sliding expiry, got %v", next.ExpiresAt)
	}
	if !st.ExpiresAt.Equal(now.Add(120 * time.Second)) {
		t.Fatalf("input state was modified")
	}
}

func TestTransition_ExtensionCap(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	policy := LifecyclePolicy{ExtensionWindow: 10 * time.Minute, MaxExtensions: 3}
	st := NewSessionState(now, nil, 3600)

	for i := 1; i <= 3; i++ {
		next, err := Transition(st, EventExtend, now, policy)
		if err != nil {
			t.Fatalf("extension %d: %v", i, err)
		}
		if next.ExtensionCount != i {
			t.Fatalf("expected count %d, got %d", i, next.ExtensionCount)
		}
		if !next.ExpiresAt.Equal(st.ExpiresAt.Add(10 * time.Minute)) {
			t.Fatalf("extension %d: expected %v, got %v", i, st.ExpiresAt.Add(10*time.Minute), next.ExpiresAt)
		}
		st = next
	}

	fourth, err := Transition(st, EventExtend, now, policy)
	if !errors.Is(err, ErrMaxExtensionsReached) {
		t.Fatalf("expected ErrMaxExtensionsReached, got %v", err)
	}
	if !fourth.ExpiresAt.Equal(*st.ExpiresAt) {
		t.Fatalf("expires_at changed on rejected extension")
	}
}

func TestTransition_ExtendAfterLapseStartsFromNow(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	st := NewSessionState(now, nil, 60)
	later := now.Add(5 * time.Minute)

	next, err := Transition(st, EventExtend, later, DefaultLifecyclePolicy())
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	if !next.ExpiresAt.Equal(later.Add(DefaultExtensionWindow)) {
		t.Fatalf("expected extension from now, got %v", next.ExpiresAt)
	}
}

func TestTransition_Timeout(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	st := NewSessionState(now, nil, 60)

	if _, err := Transition(st, EventTimeout, now.Add(30*time.Second), DefaultLifecyclePolicy()); !errors.Is(err, ErrSessionNotExpired) {
		t.Fatalf("expected ErrSessionNotExpired, got %v", err)
	}

	ended, err := Transition(st, EventTimeout, now.Add(60*time.Second), DefaultLifecyclePolicy())
	if err != nil {
		t.Fatalf("timeout at expiry: %v", err)
	}
	if ended.Status != SessionStatusEnded {
		t.Fatalf("expected ENDED, got %s", ended.Status)
	}

	if _, err := Transition(ended, EventTimeout, now.Add(2*time.Minute), DefaultLifecyclePolicy()); !errors.Is(err, ErrInvalidSessionState) {
		t.Fatalf("expected ErrInvalidSessionState on second timeout, got %v", err)
	}
}

func TestEventForTarget(t *testing.T) {
	t.Parallel()

	tests := []struct {
		current SessionStatus
		target  SessionStatus
		want    SessionEvent
		wantErr bool
	}{
		{current: SessionStatusScheduled, target: SessionStatusActive, want: EventStart},
		{current: SessionStatusPaused, target: SessionStatusActive, want: EventResume},
		{current: SessionStatusActive, target: SessionStatusPaused, want: EventPause},
		{current: SessionStatusActive, target: SessionStatusEnded, want: EventEnd},
		{current: SessionStatusActive, target: SessionStatusCancelled, want: EventCancel},
		{current: SessionStatusActive, target: SessionStatusConverted, wantErr: true},
	}
	for _, tt := range tests {
		got, err := EventForTarget(tt.current, tt.target)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("%s->%s: expected ErrInvalidTransition, got %v", tt.current, tt.target, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("%s->%s: expected %s, got %s (%v)", tt.current, tt.target, tt.want, got, err)
		}
	}
}

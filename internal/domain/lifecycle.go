package domain

import (
	"fmt"
	"time"
)

const (
	DefaultTimeoutSeconds  = 7200
	DefaultExtensionWindow = 30 * time.Minute
	DefaultMaxExtensions   = 3
)

// SessionEvent drives the lifecycle.
type SessionEvent string

const (
	EventStart    SessionEvent = "start"
	EventPause    SessionEvent = "pause"
	EventResume   SessionEvent = "resume"
	EventActivity SessionEvent = "activity"
	EventExtend   SessionEvent = "extend"
	EventTimeout  SessionEvent = "timeout"
	EventEnd      SessionEvent = "end"
	EventCancel   SessionEvent = "cancel"
	EventConvert  SessionEvent = "convert"
)

// LifecyclePolicy holds the tunables of the timeout sub-state.
type LifecyclePolicy struct {
	ExtensionWindow time.Duration
	MaxExtensions   int
}

func DefaultLifecyclePolicy() LifecyclePolicy {
	return LifecyclePolicy{
		ExtensionWindow: DefaultExtensionWindow,
		MaxExtensions:   DefaultMaxExtensions,
	}
}

func (p LifecyclePolicy) normalized() LifecyclePolicy {
	if p.ExtensionWindow <= 0 {
		p.ExtensionWindow = DefaultExtensionWindow
	}
	if p.MaxExtensions <= 0 {
		p.MaxExtensions = DefaultMaxExtensions
	}
	return p
}

// TransitionError is returned when an event is not legal in the current status.
type TransitionError struct {
	From  SessionStatus
	Event SessionEvent
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s a %s session", e.Event, e.From)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// NewSessionState returns the initial state of a session created at now.
// A future scheduledAt yields SCHEDULED; anything else starts ACTIVE.
func NewSessionState(now time.Time, scheduledAt *time.Time, timeoutSeconds int) SessionState {
	if timeoutSeconds <= 0 {
		timeoutSeconds = DefaultTimeoutSeconds
	}
	st := SessionState{
		Status:         SessionStatusScheduled,
		LastActivityAt: now,
		TimeoutSeconds: timeoutSeconds,
	}
	if scheduledAt != nil && scheduledAt.After(now) {
		return st
	}
	st.Status = SessionStatusActive
	st.StartedAt = timePtr(now)
	st.ExpiresAt = timePtr(now.Add(st.Timeout()))
	return st
}

// Transition applies ev to st at now. It is the only place session status and
// timeout fields change; st itself is never modified.
func Transition(st SessionState, ev SessionEvent, now time.Time, policy LifecyclePolicy) (SessionState, error) {
	policy = policy.normalized()
	next := st

	switch ev {
	case EventStart:
		if st.Status != SessionStatusScheduled {
			return st, &TransitionError{From: st.Status, Event: ev}
		}
		next.Status = SessionStatusActive
		if next.StartedAt == nil {
			next.StartedAt = timePtr(now)
		}
		next.ExpiresAt = timePtr(now.Add(st.Timeout()))
		next.LastActivityAt = now

	case EventPause:
		if st.Status != SessionStatusActive {
			return st, &TransitionError{From: st.Status, Event: ev}
		}
		next.Status = SessionStatusPaused
		next.LastActivityAt = now

	case EventResume:
		if st.Status != SessionStatusPaused {
			return st, &TransitionError{From: st.Status, Event: ev}
		}
		next.Status = SessionStatusActive
		next.ExpiresAt = timePtr(now.Add(st.Timeout()))
		next.LastActivityAt = now

	case EventActivity:
		if !st.Status.IsOpen() {
			return st, &InvalidSessionStateError{Status: st.Status}
		}
		next.ExpiresAt = timePtr(now.Add(st.Timeout()))
		next.LastActivityAt = now

	case EventExtend:
		if !st.Status.IsOpen() {
			return st, &InvalidSessionStateError{Status: st.Status}
		}
		if st.ExtensionCount >= policy.MaxExtensions {
			return st, ErrMaxExtensionsReached
		}
		base := now
		if st.ExpiresAt != nil && st.ExpiresAt.After(now) {
			base = *st.ExpiresAt
		}
		next.ExpiresAt = timePtr(base.Add(policy.ExtensionWindow))
		next.ExtensionCount++

	case EventTimeout:
		if !st.Status.IsOpen() {
			return st, &InvalidSessionStateError{Status: st.Status}
		}
		if st.ExpiresAt == nil || st.ExpiresAt.After(now) {
			return st, ErrSessionNotExpired
		}
		next.Status = SessionStatusEnded
		next.EndedAt = timePtr(now)

	case EventEnd, EventCancel:
		if st.Status.IsTerminal() {
			return st, &TransitionError{From: st.Status, Event: ev}
		}
		next.Status = SessionStatusEnded
		if ev == EventCancel {
			next.Status = SessionStatusCancelled
		}
		next.EndedAt = timePtr(now)

	case EventConvert:
		if !st.Status.IsOpen() {
			return st, &TransitionError{From: st.Status, Event: ev}
		}
		next.Status = SessionStatusConverted
		next.EndedAt = timePtr(now)

	default:
		return st, fmt.Errorf("%w: unknown event %q", ErrInvalidTransition, ev)
	}

	return next, nil
}

// EventForTarget maps a requested status change onto a lifecycle event.
// Conversion is not reachable this way; it has its own flow.
func EventForTarget(current, target SessionStatus) (SessionEvent, error) {
	switch target {
	case SessionStatusActive:
		if current == SessionStatusScheduled {
			return EventStart, nil
		}
		return EventResume, nil
	case SessionStatusPaused:
		return EventPause, nil
	case SessionStatusEnded:
		return EventEnd, nil
	case SessionStatusCancelled:
		return EventCancel, nil
	}
	return "", &TransitionError{From: current, Event: SessionEvent("set " + string(target))}
}

func timePtr(t time.Time) *time.Time {
	return &t
}

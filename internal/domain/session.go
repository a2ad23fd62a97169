package domain

import "time"

type SessionStatus string

const (
	SessionStatusScheduled SessionStatus = "SCHEDULED"
	SessionStatusActive    SessionStatus = "ACTIVE"
	SessionStatusPaused    SessionStatus = "PAUSED"
	SessionStatusEnded     SessionStatus = "ENDED"
	SessionStatusCancelled SessionStatus = "CANCELLED"
	SessionStatusConverted SessionStatus = "CONVERTED"
)

// IsOpen reports whether carts and pricing may change in this status.
func (s SessionStatus) IsOpen() bool {
	return s == SessionStatusActive || s == SessionStatusPaused
}

func (s SessionStatus) IsTerminal() bool {
	switch s {
	case SessionStatusEnded, SessionStatusCancelled, SessionStatusConverted:
		return true
	}
	return false
}

func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusScheduled, SessionStatusActive, SessionStatusPaused,
		SessionStatusEnded, SessionStatusCancelled, SessionStatusConverted:
		return true
	}
	return false
}

type Role string

const (
	RoleHost   Role = "HOST"
	RoleClient Role = "CLIENT"
)

func (r Role) Valid() bool {
	return r == RoleHost || r == RoleClient
}

// Session is one live host/client shopping encounter.
type Session struct {
	ID            string     `json:"id"`
	HostID        string     `json:"host_id"`
	ClientID      string     `json:"client_id"`
	Title         string     `json:"title"`
	RoomToken     string     `json:"room_token"`
	ScheduledAt   *time.Time `json:"scheduled_at"`
	InternalNotes string     `json:"internal_notes"`
	Notes         string     `json:"notes"`
	CreatedAt     time.Time  `json:"created_at"`
	SessionState
}

// SessionState groups every field the lifecycle owns. It only changes through
// Transition.
type SessionState struct {
	Status         SessionStatus `json:"status"`
	StartedAt      *time.Time    `json:"started_at"`
	EndedAt        *time.Time    `json:"ended_at"`
	ExpiresAt      *time.Time    `json:"expires_at"`
	LastActivityAt time.Time     `json:"last_activity_at"`
	ExtensionCount int           `json:"extension_count"`
	TimeoutSeconds int           `json:"timeout_seconds"`
}

func (st SessionState) Timeout() time.Duration {
	return time.Duration(st.TimeoutSeconds) * time.Second
}

// SessionFilter narrows ListSessions.
type SessionFilter struct {
	Status   SessionStatus
	ClientID string
	Limit    int
	Offset   int
}

// Package broadcast fans session events out to every viewer of a session.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

type EventType string

const (
	EventConnected             EventType = "CONNECTED"
	EventCartUpdated           EventType = "CART_UPDATED"
	EventPriceChanged          EventType = "PRICE_CHANGED"
	EventItemHighlighted       EventType = "ITEM_HIGHLIGHTED"
	EventItemStatusChanged     EventType = "ITEM_STATUS_CHANGED"
	EventStatusChanged         EventType = "STATUS_CHANGED"
	EventSessionExtended       EventType = "SESSION_EXTENDED"
	EventSessionTimeout        EventType = "SESSION_TIMEOUT"
	EventSessionTimeoutWarning EventType = "SESSION_TIMEOUT_WARNING"
	EventSessionCancelled      EventType = "SESSION_CANCELLED"
	EventNegotiationRequested  EventType = "NEGOTIATION_REQUESTED"
	EventNegotiationResponded  EventType = "NEGOTIATION_RESPONDED"
	EventCheckoutRequested     EventType = "CHECKOUT_REQUESTED"
	EventNotesUpdated          EventType = "NOTES_UPDATED"
	EventHeartbeat             EventType = "HEARTBEAT"
	EventPickListUpdate        EventType = "PICK_LIST_UPDATE"
)

// WarehouseChannel carries pick-list changes for every session.
const WarehouseChannel = "warehouse"

// Event is one typed message on a channel. Channel defaults to SessionID.
type Event struct {
	Type      EventType       `json:"type"`
	Channel   string          `json:"channel,omitempty"`
	SessionID string          `json:"session_id"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEvent encodes payload as the event data.
func NewEvent(typ EventType, sessionID string, payload any, at time.Time) (Event, error) {
	ev := Event{Type: typ, SessionID: sessionID, Timestamp: at}
	if payload == nil {
		return ev, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", typ, err)
	}
	ev.Data = data
	return ev, nil
}

// On returns a copy of e routed to channel.
func (e Event) On(channel string) Event {
	e.Channel = channel
	return e
}

func (e Event) channel() string {
	if e.Channel != "" {
		return e.Channel
	}
	return e.SessionID
}

// Listener receives events. It must not block and must not publish to the
// channel it is registered on.
type Listener func(Event)

// Broadcaster is implemented by Hub and RedisHub.
type Broadcaster interface {
	Publish(ctx context.Context, ev Event)
	Subscribe(channel string, l Listener) (unsubscribe func())
	ListenerCount(channel string) int
}

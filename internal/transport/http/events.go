package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cimillas/live-commerce/internal/broadcast"
	"github.com/cimillas/live-commerce/internal/clock"
	"github.com/cimillas/live-commerce/internal/domain"
)

const (
	DefaultHeartbeatInterval = 30 * time.Second
	streamBuffer             = 64
)

// Subscriber is the listening half of broadcast.Broadcaster.
type Subscriber interface {
	Subscribe(channel string, l broadcast.Listener) (unsubscribe func())
}

type SessionLookup interface {
	Get(ctx context.Context, id string) (domain.Session, error)
}

// StreamConfig tunes the Server-Sent Events endpoints.
type StreamConfig struct {
	Heartbeat time.Duration
	Clock     clock.Clock
	Logger    *slog.Logger
	// Done ends every open stream when closed. Servers close it on shutdown,
	// since streams never go idle on their own.
	Done <-chan struct{}
}

func (c StreamConfig) withDefaults() StreamConfig {
	if c.Heartbeat <= 0 {
		c.Heartbeat = DefaultHeartbeatInterval
	}
	if c.Clock == nil {
		c.Clock = clock.NewSystem()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// HandleSessionEvents streams a session's events. The first event is
// CONNECTED; HEARTBEAT follows on every idle interval.
func HandleSessionEvents(sessions SessionLookup, sub Subscriber, cfg StreamConfig) http.HandlerFunc {
	cfg = cfg.withDefaults()
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.PathValue("id")
		sess, err := sessions.Get(r.Context(), sessionID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		stream(w, r, sub, cfg, sess.ID, sess.ID)
	}
}

// HandleWarehouseEvents streams pick-list changes for every session.
func HandleWarehouseEvents(sub Subscriber, cfg StreamConfig) http.HandlerFunc {
	cfg = cfg.withDefaults()
	return func(w http.ResponseWriter, r *http.Request) {
		stream(w, r, sub, cfg, broadcast.WarehouseChannel, "")
	}
}

func stream(w http.ResponseWriter, r *http.Request, sub Subscriber, cfg StreamConfig, channel, sessionID string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, codeStreamingUnsupported, "streaming unsupported")
		return
	}

	events := make(chan broadcast.Event, streamBuffer)
	unsubscribe := sub.Subscribe(channel, func(ev broadcast.Event) {
		select {
		case events <- ev:
		default:
			cfg.Logger.Warn("dropping event for slow stream", "channel", channel, "type", ev.Type)
		}
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func(ev broadcast.Event) bool {
		if err := writeSSE(w, ev); err != nil {
			cfg.Logger.Debug("stream write failed", "channel", channel, "error", err)
			return false
		}
		flusher.Flush()
		return true
	}

	connected, _ := broadcast.NewEvent(broadcast.EventConnected, sessionID, nil, cfg.Clock.Now())
	if !send(connected.On(channel)) {
		return
	}

	ticker := time.NewTicker(cfg.Heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-cfg.Done:
			return
		case ev := <-events:
			if !send(ev) {
				return
			}
		case <-ticker.C:
			hb, _ := broadcast.NewEvent(broadcast.EventHeartbeat, sessionID, nil, cfg.Clock.Now())
			if !send(hb.On(channel)) {
				return
			}
		}
	}
}

func writeSSE(w http.ResponseWriter, ev broadcast.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
	return err
}

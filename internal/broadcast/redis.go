package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "live-session:"

// RedisHub shares events between API instances. Publish goes to Redis; one
// pattern subscription per process feeds a local Hub that owns the listeners.
type RedisHub struct {
	client *redis.Client
	local  *Hub
	logger *slog.Logger

	mu     sync.Mutex
	pubsub *redis.PubSub
	done   chan struct{}
}

func NewRedisHub(client *redis.Client, logger *slog.Logger) *RedisHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisHub{
		client: client,
		local:  NewHub(logger),
		logger: logger,
	}
}

// Start subscribes and returns once the subscription is confirmed. Incoming
// messages are relayed until ctx is done or Close is called.
func (h *RedisHub) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pubsub != nil {
		return nil
	}

	ps := h.client.PSubscribe(ctx, channelPrefix+"*")
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return fmt.Errorf("subscribe %s*: %w", channelPrefix, err)
	}
	h.pubsub = ps
	h.done = make(chan struct{})
	go h.relay(ctx, ps, h.done)
	return nil
}

func (h *RedisHub) relay(ctx context.Context, ps *redis.PubSub, done chan struct{}) {
	defer close(done)
	msgs := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				h.logger.Warn("dropping malformed broadcast message",
					"channel", msg.Channel, "error", err)
				continue
			}
			ev.Channel = strings.TrimPrefix(msg.Channel, channelPrefix)
			h.local.Publish(ctx, ev)
		}
	}
}

// Close stops the relay. It does not close the Redis client.
func (h *RedisHub) Close() error {
	h.mu.Lock()
	ps, done := h.pubsub, h.done
	h.pubsub, h.done = nil, nil
	h.mu.Unlock()
	if ps == nil {
		return nil
	}
	err := ps.Close()
	<-done
	return err
}

// Publish never fails: when Redis is unreachable the event is delivered to
// this instance's listeners only.
func (h *RedisHub) Publish(ctx context.Context, ev Event) {
	payload, err := json.Marshal(ev)
	if err == nil {
		err = h.client.Publish(ctx, channelPrefix+ev.channel(), payload).Err()
	}
	if err != nil {
		h.logger.Warn("redis publish failed, delivering locally",
			"channel", ev.channel(), "type", ev.Type, "error", err)
		h.local.Publish(ctx, ev)
	}
}

func (h *RedisHub) Subscribe(name string, l Listener) func() {
	return h.local.Subscribe(name, l)
}

func (h *RedisHub) ListenerCount(name string) int {
	return h.local.ListenerCount(name)
}

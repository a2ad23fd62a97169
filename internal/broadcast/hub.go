package broadcast

import (
	"context"
	"log/slog"
	"sync"
)

// Hub is the in-process broadcaster. Delivery is synchronous: Publish returns
// after every listener registered at that moment has been called, and events
// on one channel reach every listener in the same order.
type Hub struct {
	logger *slog.Logger

	mu       sync.RWMutex
	channels map[string]*channel
	nextID   uint64
}

type channel struct {
	deliver   sync.Mutex
	listeners map[uint64]Listener
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:   logger,
		channels: make(map[string]*channel),
	}
}

func (h *Hub) Subscribe(name string, l Listener) func() {
	h.mu.Lock()
	ch, ok := h.channels[name]
	if !ok {
		ch = &channel{listeners: make(map[uint64]Listener)}
		h.channels[name] = ch
	}
	h.nextID++
	id := h.nextID
	ch.listeners[id] = l
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { h.remove(name, id) })
	}
}

func (h *Hub) remove(name string, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch, ok := h.channels[name]
	if !ok {
		return
	}
	delete(ch.listeners, id)
	if len(ch.listeners) == 0 {
		delete(h.channels, name)
	}
}

func (h *Hub) ListenerCount(name string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if ch, ok := h.channels[name]; ok {
		return len(ch.listeners)
	}
	return 0
}

func (h *Hub) Publish(_ context.Context, ev Event) {
	name := ev.channel()

	h.mu.RLock()
	ch, ok := h.channels[name]
	var snapshot []Listener
	if ok {
		snapshot = make([]Listener, 0, len(ch.listeners))
		for _, l := range ch.listeners {
			snapshot = append(snapshot, l)
		}
	}
	h.mu.RUnlock()
	if len(snapshot) == 0 {
		return
	}

	ch.deliver.Lock()
	defer ch.deliver.Unlock()
	for _, l := range snapshot {
		h.call(l, ev)
	}
}

func (h *Hub) call(l Listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("broadcast listener panicked",
				"channel", ev.channel(), "type", ev.Type, "panic", r)
		}
	}()
	l(ev)
}

package notify

import (
	"context"
	"sync"
	"sync/atomic"

	"raffle/internal/raffle"
)

// Hub fans observations out to in-process subscribers, such as websocket
// streams. Slow subscribers lose observations instead of blocking.
type Hub struct {
	buffer int

	mu      sync.RWMutex
	nextID  int
	subs    map[int]chan raffle.Observation
	dropped atomic.Uint64
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{buffer: buffer, subs: map[int]chan raffle.Observation{}}
}

// Subscribe returns a receive channel and a function that detaches it.
func (h *Hub) Subscribe() (<-chan raffle.Observation, func()) {
	ch := make(chan raffle.Observation, h.buffer)
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

func (h *Hub) Publish(ctx context.Context, obs raffle.Observation) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- obs:
		default:
			h.dropped.Add(1)
		}
	}
	return nil
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"raffle/internal/raffle"
)

// Queue hands observations to a Fanout on one background goroutine, in
// enqueue order. Publish never blocks; a full queue drops.
type Queue struct {
	Logger *zap.Logger

	sink    *Fanout
	timeout time.Duration
	ch      chan queuedObservation
	done    chan struct{}
	dropped atomic.Uint64

	mu     sync.RWMutex
	closed bool
}

type queuedObservation struct {
	ctx context.Context
	obs raffle.Observation
}

func NewQueue(sink *Fanout, size int, timeout time.Duration, logger *zap.Logger) *Queue {
	if size <= 0 {
		size = 256
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	q := &Queue{
		Logger:  logger,
		sink:    sink,
		timeout: timeout,
		ch:      make(chan queuedObservation, size),
		done:    make(chan struct{}),
	}
	go q.run()
	return q
}

// Publish enqueues obs. The context keeps its values but not its
// cancellation. It returns 1 when the observation was dropped.
func (q *Queue) Publish(ctx context.Context, obs raffle.Observation) int {
	if q == nil || obs.Empty() {
		return 0
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return 1
	}
	select {
	case q.ch <- queuedObservation{ctx: context.WithoutCancel(ctx), obs: obs}:
		return 0
	default:
		q.dropped.Add(1)
		if q.Logger != nil {
			q.Logger.Warn("observation queue full, dropping",
				zap.String("kind", string(obs.Kind)),
				zap.Uint64("round", obs.Round),
			)
		}
		return 1
	}
}

func (q *Queue) Dropped() uint64 { return q.dropped.Load() }

// Close stops accepting observations and waits until the queued ones are
// delivered.
func (q *Queue) Close() {
	if q == nil {
		return
	}
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
	q.mu.Unlock()
	<-q.done
}

func (q *Queue) run() {
	defer close(q.done)
	for item := range q.ch {
		ctx, cancel := context.WithTimeout(item.ctx, q.timeout)
		q.sink.Publish(ctx, item.obs)
		cancel()
	}
}

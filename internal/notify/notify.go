package notify

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"raffle/internal/raffle"
)

// Publisher delivers one observation to a downstream sink.
type Publisher interface {
	Publish(ctx context.Context, obs raffle.Observation) error
}

type PublisherFunc func(ctx context.Context, obs raffle.Observation) error

func (f PublisherFunc) Publish(ctx context.Context, obs raffle.Observation) error {
	return f(ctx, obs)
}

type sink struct {
	name string
	pub  Publisher
}

// Fanout delivers to every registered sink. A failing sink is logged and
// does not stop the others.
type Fanout struct {
	Logger *zap.Logger

	mu    sync.RWMutex
	sinks []sink
}

func NewFanout(logger *zap.Logger) *Fanout {
	return &Fanout{Logger: logger}
}

func (f *Fanout) Add(name string, pub Publisher) {
	if f == nil || pub == nil {
		return
	}
	f.mu.Lock()
	f.sinks = append(f.sinks, sink{name: name, pub: pub})
	f.mu.Unlock()
}

func (f *Fanout) Names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, 0, len(f.sinks))
	for _, s := range f.sinks {
		out = append(out, s.name)
	}
	return out
}

// Publish returns the number of sinks that failed.
func (f *Fanout) Publish(ctx context.Context, obs raffle.Observation) int {
	if f == nil || obs.Empty() {
		return 0
	}
	f.mu.RLock()
	sinks := append([]sink(nil), f.sinks...)
	f.mu.RUnlock()

	failed := 0
	for _, s := range sinks {
		if err := s.pub.Publish(ctx, obs); err != nil {
			failed++
			if f.Logger != nil {
				f.Logger.Warn("observation sink failed",
					zap.String("sink", s.name),
					zap.String("kind", string(obs.Kind)),
					zap.Uint64("round", obs.Round),
					zap.Error(err),
				)
			}
		}
	}
	return failed
}

// LogPublisher writes observations to the service log.
type LogPublisher struct {
	Logger *zap.Logger
}

func (p LogPublisher) Publish(ctx context.Context, obs raffle.Observation) error {
	if p.Logger == nil {
		return nil
	}
	fields := []zap.Field{
		zap.String("kind", string(obs.Kind)),
		zap.Uint64("round", obs.Round),
	}
	if obs.Participant != nil {
		fields = append(fields, zap.String("participant", obs.Participant.Hex()))
	}
	if obs.RequestID != "" {
		fields = append(fields, zap.String("request_id", obs.RequestID))
	}
	if obs.Winner != nil {
		fields = append(fields, zap.String("winner", obs.Winner.Hex()))
	}
	if obs.Amount != nil {
		fields = append(fields, zap.String("amount", obs.Amount.Dec()))
	}
	if obs.Error != "" {
		fields = append(fields, zap.String("error", obs.Error))
		p.Logger.Warn("raffle observation", fields...)
		return nil
	}
	p.Logger.Info("raffle observation", fields...)
	return nil
}

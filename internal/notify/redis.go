package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"raffle/internal/raffle"
)

type redisClient interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// RedisPublisher publishes every observation on a pub/sub channel and keeps
// the latest one of each kind, plus the recent winner, under plain keys.
type RedisPublisher struct {
	Client    redisClient
	Channel   string
	KeyPrefix string
	TTL       time.Duration
}

func NewRedisPublisher(opt *redis.Options, channel, keyPrefix string, ttl time.Duration) *RedisPublisher {
	return &RedisPublisher{
		Client:    redis.NewClient(opt),
		Channel:   channel,
		KeyPrefix: keyPrefix,
		TTL:       ttl,
	}
}

func (p *RedisPublisher) Publish(ctx context.Context, obs raffle.Observation) error {
	b, err := json.Marshal(obs)
	if err != nil {
		return err
	}
	if p.Channel != "" {
		if err := p.Client.Publish(ctx, p.Channel, b).Err(); err != nil {
			return err
		}
	}
	if err := p.Client.Set(ctx, p.KeyPrefix+"latest:"+string(obs.Kind), b, p.TTL).Err(); err != nil {
		return err
	}
	if obs.Kind == raffle.ObservationWinnerPicked && obs.Winner != nil {
		return p.Client.Set(ctx, p.KeyPrefix+"recent_winner", obs.Winner.Hex(), p.TTL).Err()
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	if c, ok := p.Client.(*redis.Client); ok {
		return c.Close()
	}
	return nil
}

package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fatflowers/posbridge/pkg/config"
)

// PollGate admits at most one live reconciliation per key per interval.
type PollGate interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// LocalGate is the single-instance gate.
type LocalGate struct {
	limiter *KeyedLimiter
}

func NewLocalGate(interval time.Duration) *LocalGate {
	return &LocalGate{limiter: NewKeyedLimiter(rate.Every(interval), 1, 10*interval)}
}

func (g *LocalGate) Allow(_ context.Context, key string) (bool, error) {
	return g.limiter.Allow(key), nil
}

// RedisGate shares the gate across instances with SET NX PX.
type RedisGate struct {
	client   redis.Cmdable
	interval time.Duration
	prefix   string
}

func NewRedisGate(client redis.Cmdable, interval time.Duration) *RedisGate {
	return &RedisGate{client: client, interval: interval, prefix: "posbridge:poll:"}
}

func (g *RedisGate) Allow(ctx context.Context, key string) (bool, error) {
	ok, err := g.client.SetNX(ctx, g.prefix+key, time.Now().UnixMilli(), g.interval).Result()
	if err != nil {
		return false, fmt.Errorf("redis poll gate: %w", err)
	}
	return ok, nil
}

func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// NewPollGate picks the redis gate when redis.url is configured.
func NewPollGate(lc fx.Lifecycle, cfg *config.Config, log *zap.SugaredLogger) (PollGate, error) {
	interval := cfg.Payments.PollInterval
	if cfg.Redis.URL == "" {
		log.Infow("poll_gate_selected", "backend", "local", "interval", interval)
		return NewLocalGate(interval), nil
	}

	client, err := NewRedisClient(cfg.Redis.URL)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				log.Warnw("redis_ping_failed", "error", err)
			}
			return nil
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	log.Infow("poll_gate_selected", "backend", "redis", "interval", interval)
	return NewRedisGate(client, interval), nil
}

var Module = fx.Options(
	fx.Provide(NewPollGate),
)

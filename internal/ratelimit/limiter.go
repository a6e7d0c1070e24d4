package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/vetbilling/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyClient = "ratelimit:client:%s"

// Result describes the state of a client's bucket after one request.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

// Limiter admits or rejects one request for a client key.
type Limiter interface {
	Allow(ctx context.Context, key string) (*Result, error)
}

// Policy is a number of requests allowed per window. Requests also serves as
// the burst size.
type Policy struct {
	Requests int
	Window   time.Duration
}

func (p Policy) rate() float64 {
	return float64(p.Requests) / p.Window.Seconds()
}

func (p Policy) validate() error {
	if p.Requests <= 0 || p.Window <= 0 {
		return errors.New("rate limit requests and window must be positive")
	}
	return nil
}

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Log       *zap.Logger
}

// NewLimiter picks the redis bucket when an address is configured, else the
// in-process limiter. It returns nil when rate limiting is disabled.
func NewLimiter(p Params) (Limiter, error) {
	cfg := p.Config.RateLimit
	if !cfg.Enabled {
		return nil, nil
	}

	policy := Policy{Requests: cfg.Requests, Window: cfg.Window}
	if err := policy.validate(); err != nil {
		return nil, err
	}

	log := p.Log.Named("ratelimit")
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		limiter := NewMemoryLimiter(policy, time.Now)
		stop := make(chan struct{})
		p.Lifecycle.Append(fx.Hook{
			OnStart: func(context.Context) error {
				go limiter.RunCleanup(policy.Window, stop)
				return nil
			},
			OnStop: func(context.Context) error {
				close(stop)
				return nil
			},
		})
		log.Info("using in-memory rate limiter",
			zap.Int("requests", policy.Requests),
			zap.Duration("window", policy.Window),
		)
		return limiter, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	log.Info("using redis rate limiter",
		zap.String("addr", addr),
		zap.Int("requests", policy.Requests),
		zap.Duration("window", policy.Window),
	)
	return NewRedisLimiter(NewTokenBucket(client), policy), nil
}

// RedisLimiter applies one Policy per client key on a shared TokenBucket.
type RedisLimiter struct {
	bucket *TokenBucket
	policy Policy
}

func NewRedisLimiter(bucket *TokenBucket, policy Policy) *RedisLimiter {
	return &RedisLimiter{bucket: bucket, policy: policy}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrEmptyKey
	}
	return l.bucket.Take(ctx, fmt.Sprintf(keyClient, key), l.policy.rate(), l.policy.Requests)
}

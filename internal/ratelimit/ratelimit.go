// Package ratelimit throttles requests per key, such as the client IP of a
// login attempt. Memory keeps the state in the process; Redis shares it
// between replicas.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"golang.org/x/time/rate"
)

const (
	window = time.Minute

	// idleTTL is how long an unused memory limiter is kept.
	idleTTL = 10 * time.Minute

	sweepEvery = 1024
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Memory is a token bucket per key.
type Memory struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	calls    int
	now      func() time.Time
}

// NewMemory allows perMinute requests per minute per key with the given burst.
func NewMemory(perMinute, burst int) *Memory {
	return &Memory{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(float64(perMinute) / window.Seconds()),
		burst:    burst,
		now:      time.Now,
	}
}

func (m *Memory) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	m.calls++
	if m.calls%sweepEvery == 0 {
		for k, v := range m.visitors {
			if now.Sub(v.lastSeen) > idleTTL {
				delete(m.visitors, k)
			}
		}
	}

	v, ok := m.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(m.limit, m.burst)}
		m.visitors[key] = v
	}
	v.lastSeen = now

	return v.limiter.AllowN(now, 1), nil
}

// Redis is a fixed one-minute window counter shared through Redis.
type Redis struct {
	client *redis.Client
	prefix string
	max    int64
	now    func() time.Time
}

// NewRedis allows perMinute+burst requests per key and minute.
func NewRedis(client *redis.Client, prefix string, perMinute, burst int) *Redis {
	return &Redis{
		client: client,
		prefix: prefix,
		max:    int64(perMinute + burst),
		now:    time.Now,
	}
}

func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	windowKey := fmt.Sprintf("%s:%s:%d", r.prefix, key, r.now().Unix()/int64(window.Seconds()))

	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, windowKey)
		pipe.Expire(ctx, windowKey, window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("in internal/ratelimit/ratelimit.go/Allow(): error while `r.client.TxPipelined()` calling: %w", err)
	}

	return incr.Val() <= r.max, nil
}

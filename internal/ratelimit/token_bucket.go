package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cast"
)

const defaultKeyPrefix = "transformd:ratelimit"

// takeTokens refills the bucket for the elapsed time, then takes the
// requested tokens if they are all available. It returns
// {allowed, remaining, retry_after_ms}.
var takeTokens = redis.NewScript(`
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local cost = tonumber(ARGV[4])

local level = tonumber(redis.call("HGET", KEYS[1], "level") or capacity)
local seen = tonumber(redis.call("HGET", KEYS[1], "seen") or now)
level = math.min(capacity, level + math.max(0, now - seen) * rate)

local allowed, wait = 0, 0
if level >= cost then
  level = level - cost
  allowed = 1
else
  wait = math.ceil((cost - level) / rate)
end

redis.call("HSET", KEYS[1], "level", level, "seen", now)
redis.call("PEXPIRE", KEYS[1], ARGV[5])
return {allowed, math.floor(level), wait}
`)

var errMalformedReply = errors.New("malformed token bucket reply")

type Decision struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// RedisTokenBucket keeps one bucket per subject in a Redis hash. Buckets
// refill continuously at capacity tokens per window.
type RedisTokenBucket struct {
	client      redis.UniversalClient
	capacity    int64
	refillPerMS float64
	ttl         time.Duration
	keyPrefix   string
	now         func() time.Time
}

func NewRedisTokenBucket(client redis.UniversalClient, capacity int, window time.Duration, keyPrefix string) (*RedisTokenBucket, error) {
	switch {
	case client == nil:
		return nil, fmt.Errorf("redis client is required")
	case capacity <= 0:
		return nil, fmt.Errorf("capacity must be positive")
	case window <= 0:
		return nil, fmt.Errorf("window must be positive")
	}

	keyPrefix = strings.TrimSpace(keyPrefix)
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}

	return &RedisTokenBucket{
		client:      client,
		capacity:    int64(capacity),
		refillPerMS: float64(capacity) / float64(max(1, window.Milliseconds())),
		ttl:         2 * window,
		keyPrefix:   keyPrefix,
		now:         time.Now,
	}, nil
}

// Allow takes cost tokens from subject's bucket. Costs are clamped to
// 1..capacity so an expensive request can still pass on a full bucket.
func (l *RedisTokenBucket) Allow(ctx context.Context, subject string, cost int64) (Decision, error) {
	reply, err := takeTokens.Run(
		ctx,
		l.client,
		[]string{l.key(subject)},
		l.capacity,
		l.refillPerMS,
		l.now().UTC().UnixMilli(),
		l.clampCost(cost),
		l.ttl.Milliseconds(),
	).Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("run token bucket script: %w", err)
	}
	return decodeDecision(reply)
}

func (l *RedisTokenBucket) clampCost(cost int64) int64 {
	return max(1, min(cost, l.capacity))
}

// key wraps the subject in a hash tag so a bucket always maps to one
// cluster slot.
func (l *RedisTokenBucket) key(subject string) string {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = "anonymous"
	}
	return l.keyPrefix + ":{" + subject + "}"
}

func decodeDecision(reply []any) (Decision, error) {
	if len(reply) != 3 {
		return Decision{}, fmt.Errorf("%w: %d values", errMalformedReply, len(reply))
	}
	values := make([]int64, len(reply))
	for i, raw := range reply {
		v, err := cast.ToInt64E(raw)
		if err != nil {
			return Decision{}, fmt.Errorf("%w: value %d: %v", errMalformedReply, i, err)
		}
		values[i] = v
	}
	return Decision{
		Allowed:    values[0] == 1,
		Remaining:  values[1],
		RetryAfter: time.Duration(values[2]) * time.Millisecond,
	}, nil
}

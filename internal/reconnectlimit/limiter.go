// Package reconnectlimit throttles how often a single client identity may
// attempt to (re)establish a transport, using a fixed Redis window that
// starts at the first attempt.
// Grounded on the teacher's internal/ratelimit/limiter.go INCR+conditional
// EXPIRE pattern, retargeted from per-action chat rate limiting (messages,
// match requests, per-IP connects) to a single per-client reconnect-attempt
// rule, keeping its fail-open behavior: a Redis outage must never itself
// block reconnection.
package reconnectlimit

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Rule defines a rate limiting policy: the Redis key prefix, maximum number
// of attempts allowed in the window, and the window duration.
type Rule struct {
	Key    string
	Limit  int
	Window time.Duration
}

// RuleReconnect allows 10 connect attempts per minute per client identity,
// generous enough to never interfere with the manager's own retry timers
// under normal operation.
var RuleReconnect = Rule{Key: "rl:reconnect:", Limit: 10, Window: time.Minute}

// Limiter performs rate limiting checks against Redis.
type Limiter struct {
	client *redis.Client
}

// NewLimiter creates a Limiter backed by the given Redis client.
func NewLimiter(client *redis.Client) *Limiter {
	return &Limiter{client: client}
}

// Allow checks whether identifier is within the rate limit defined by rule.
// It increments the counter in Redis and sets the expiry on first access.
// On Redis errors it fails open (returns true) so that a Redis outage does
// not block a legitimate client from reconnecting.
func (l *Limiter) Allow(ctx context.Context, identifier string, rule Rule) (bool, error) {
	if l == nil || l.client == nil {
		return true, nil
	}
	key := rule.Key + identifier

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		log.Printf("reconnectlimit: redis INCR error key=%s: %v (failing open)", key, err)
		return true, err
	}

	if count == 1 {
		if err := l.client.Expire(ctx, key, rule.Window).Err(); err != nil {
			log.Printf("reconnectlimit: redis EXPIRE error key=%s: %v (failing open)", key, err)
			l.client.Del(ctx, key)
			return true, err
		}
	}

	if int(count) > rule.Limit {
		return false, nil
	}
	return true, nil
}

// Remaining returns the number of attempts identifier has left in the
// current window for rule. Returns the full limit if the key does not exist
// yet, and on Redis errors (fail open).
func (l *Limiter) Remaining(ctx context.Context, identifier string, rule Rule) (int, error) {
	if l == nil || l.client == nil {
		return rule.Limit, nil
	}
	key := rule.Key + identifier

	count, err := l.client.Get(ctx, key).Int()
	if err == redis.Nil {
		return rule.Limit, nil
	}
	if err != nil {
		log.Printf("reconnectlimit: redis GET error key=%s: %v (failing open)", key, err)
		return rule.Limit, err
	}

	remaining := rule.Limit - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Reset clears identifier's window, used once a connection reaches
// CONNECTED so a prior burst of retries doesn't linger against a now-healthy
// client.
func (l *Limiter) Reset(ctx context.Context, identifier string, rule Rule) {
	if l == nil || l.client == nil {
		return
	}
	key := rule.Key + identifier
	if err := l.client.Del(ctx, key).Err(); err != nil {
		log.Printf("reconnectlimit: redis DEL error key=%s: %v (failing open)", key, err)
	}
}

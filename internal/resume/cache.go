// Package resume provides an optional Redis-backed cache of the last
// ConnectionDetails seen for a client identity. The root package writes it
// after a successful Connect and clears it on SUSPENDED; nothing in this
// module reads it back when connecting, so every handshake is a bare one.
// Grounded on the teacher's internal/session/store.go HSet+Expire session
// hash (same pipeline-HSet-then-Expire shape, same Ping-on-construct health
// check), generalized from chat-session status fields to connection-detail
// caching, and on fail-open-on-Redis-error semantics per the teacher's
// internal/ratelimit/limiter.go "failing open" log convention.
package resume

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/whisper/realtime-conn/internal/protocol"
)

const (
	// KeyPrefix is the Redis key prefix for all resume-detail hashes.
	KeyPrefix = "rtconn:resume:"

	// DefaultTTL is how long a cached resume entry survives without being
	// refreshed, matching the teacher's one-hour SessionTTL.
	DefaultTTL = 1 * time.Hour
)

// entry is the Redis hash shape stored per client identity. Extra is kept
// as its raw JSON text since json.RawMessage itself has no redis.Scanner.
type entry struct {
	ConnectionID         string `redis:"connection_id"`
	ConnectionStateTTLMs int64  `redis:"state_ttl_ms"`
	Extra                string `redis:"extra"`
}

// Cache stores the last-known ConnectionDetails per client identity in
// Redis. Every method fails open: a Redis error is logged and treated as a
// cache miss rather than surfaced to the caller, since the manager always
// has a correct fallback (a fresh CONNECTING handshake).
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache returns a Cache backed by client, with entries expiring after
// ttl (zero falls back to DefaultTTL).
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{client: client, ttl: ttl}
}

// NewClient dials Redis at addr and verifies the connection, mirroring the
// teacher's session.NewStore connect-and-verify shape.
func NewClient(addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("resume: redis connection failed: %w", err)
	}
	return client, nil
}

// Store saves details for clientID and refreshes the TTL.
func (c *Cache) Store(ctx context.Context, clientID string, details *protocol.ConnectionDetails) {
	if c == nil || c.client == nil || details == nil {
		return
	}
	key := KeyPrefix + clientID
	fields := map[string]interface{}{
		"connection_id": details.ConnectionID,
		"state_ttl_ms":  details.ConnectionStateTTLMs,
		"extra":         string(details.Extra),
	}

	pipe := c.client.Pipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("resume: redis HSET/EXPIRE error key=%s: %v (failing open)", key, err)
	}
}

// Load returns the cached ConnectionDetails for clientID, or nil if absent
// or on any Redis error (fail open — the caller should fall back to a fresh
// handshake).
func (c *Cache) Load(ctx context.Context, clientID string) *protocol.ConnectionDetails {
	if c == nil || c.client == nil {
		return nil
	}
	key := KeyPrefix + clientID

	var e entry
	if err := c.client.HGetAll(ctx, key).Scan(&e); err != nil {
		log.Printf("resume: redis HGETALL error key=%s: %v (failing open)", key, err)
		return nil
	}
	if e.ConnectionID == "" {
		return nil
	}
	details := &protocol.ConnectionDetails{
		ConnectionID:         e.ConnectionID,
		ConnectionStateTTLMs: e.ConnectionStateTTLMs,
	}
	if e.Extra != "" {
		details.Extra = json.RawMessage(e.Extra)
	}
	return details
}

// Clear removes any cached details for clientID, used once the manager
// reaches SUSPENDED and the details are no longer valid to resume from
// (spec.md §4.7: the suspend timer "clears cached connection details").
func (c *Cache) Clear(ctx context.Context, clientID string) {
	if c == nil || c.client == nil {
		return
	}
	key := KeyPrefix + clientID
	if err := c.client.Del(ctx, key).Err(); err != nil {
		log.Printf("resume: redis DEL error key=%s: %v (failing open)", key, err)
	}
}

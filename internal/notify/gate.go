package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Channel is the transport a notification goes out on. Only one channel
// exists today but it is part of the lock key so a second one never shares
// debounce state with the first.
const ChannelWhatsApp = "whatsapp"

// Locker is the distributed idempotency gate consulted before every send.
// The debounce lock and the session window are two independent temporal
// mechanisms: the lock suppresses repeat sends for seconds, the session
// window decides templated vs. free-form over a 24h horizon.
type Locker interface {
	AcquireDebounce(ctx context.Context, recipient, channel string, action Action) (bool, error)
	ReleaseDebounce(ctx context.Context, recipient, channel string, action Action)
	WithinSessionWindow(ctx context.Context, recipient string) (bool, error)
	TouchSession(ctx context.Context, recipient string) error
}

// Gate implements Locker over Redis.
type Gate struct {
	rdb           *redis.Client
	debounceTTL   time.Duration
	sessionWindow time.Duration
}

// NewGate creates a Redis-backed notification gate.
func NewGate(rdb *redis.Client, debounceTTL, sessionWindow time.Duration) *Gate {
	return &Gate{rdb: rdb, debounceTTL: debounceTTL, sessionWindow: sessionWindow}
}

func debounceKey(recipient, channel string, action Action) string {
	return fmt.Sprintf("notify:lock:%s:%s:%s", recipient, channel, action)
}

func sessionKey(recipient string) string {
	return fmt.Sprintf("notify:session:%s", recipient)
}

// AcquireDebounce claims the (recipient, channel, action) key with a single
// atomic check-and-set. A separate get+set would let two concurrent senders
// both observe "unlocked"; SETNX cannot.
func (g *Gate) AcquireDebounce(ctx context.Context, recipient, channel string, action Action) (bool, error) {
	ok, err := g.rdb.SetNX(ctx, debounceKey(recipient, channel, action), "1", g.debounceTTL).Result()
	if err != nil {
		return false, fmt.Errorf("debounce lock check failed: %w", err)
	}
	return ok, nil
}

// ReleaseDebounce drops a claimed lock after a send failed terminally, so the
// debounce window only ever covers successful sends.
func (g *Gate) ReleaseDebounce(ctx context.Context, recipient, channel string, action Action) {
	if err := g.rdb.Del(ctx, debounceKey(recipient, channel, action)).Err(); err != nil {
		log.Printf("WARN: failed to release debounce lock for %s/%s/%s: %v", recipient, channel, action, err)
	}
}

// WithinSessionWindow reports whether the recipient has interacted within
// the session window. The stored timestamp has no hard expiry; the window is
// evaluated against the clock at read time.
func (g *Gate) WithinSessionWindow(ctx context.Context, recipient string) (bool, error) {
	raw, err := g.rdb.Get(ctx, sessionKey(recipient)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("session window lookup failed: %w", err)
	}
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false, nil // unreadable entry, treat as no session
	}
	return time.Since(time.Unix(ts, 0)) < g.sessionWindow, nil
}

// TouchSession records an interaction with the recipient at the current time.
func (g *Gate) TouchSession(ctx context.Context, recipient string) error {
	return g.rdb.Set(ctx, sessionKey(recipient), strconv.FormatInt(time.Now().Unix(), 10), 0).Err()
}

package dispatch

import (
	"context"
	"time"

	"ThreadBot/core"
)

const RateWindow = time.Minute

// Limiter is an approximately per-window throttle for one kind of subject.
// The counter resets once the window has fully elapsed.
type Limiter struct {
	store  CounterStore
	kind   string
	limit  int
	window time.Duration
	clock  func() time.Time
}

func NewLimiter(store CounterStore, kind string, limit int, window time.Duration, clock func() time.Time) *Limiter {
	if window <= 0 {
		window = RateWindow
	}
	if clock == nil {
		clock = time.Now
	}
	return &Limiter{store: store, kind: kind, limit: limit, window: window, clock: clock}
}

// Allow counts one event for subject and reports whether it is within the limit.
// A limit of zero or less never denies. Store failures are logged and allowed.
func (l *Limiter) Allow(ctx context.Context, subject string) bool {
	if l.limit <= 0 {
		return true
	}
	count, err := l.store.Increment(ctx, joinKey(l.kind, subject), l.window, l.clock())
	if err != nil {
		core.LogErrorF("Rate counter failed for %s %s, allowing: %s", l.kind, subject, err)
		return true
	}
	return count <= int64(l.limit)
}

func (l *Limiter) Limit() int {
	return l.limit
}

// RateLimiter applies independent user and thread limits.
type RateLimiter struct {
	Users   *Limiter
	Threads *Limiter
}

func NewRateLimiter(store CounterStore, userLimit, threadLimit int, window time.Duration, clock func() time.Time) *RateLimiter {
	return &RateLimiter{
		Users:   NewLimiter(store, "user", userLimit, window, clock),
		Threads: NewLimiter(store, "thread", threadLimit, window, clock),
	}
}

// Observe counts the event against both the user and the thread, and reports
// whether both are still within their limits.
func (r *RateLimiter) Observe(ctx context.Context, userId, threadId string) bool {
	userOK := r.Users.Allow(ctx, userId)
	threadOK := r.Threads.Allow(ctx, threadId)
	return userOK && threadOK
}

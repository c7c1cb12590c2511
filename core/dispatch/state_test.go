package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock for time-based tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type failingStore struct{}

func (failingStore) Acquire(context.Context, string, time.Duration, time.Time) (time.Duration, bool, error) {
	return 0, false, errors.New("store down")
}

func (failingStore) Remaining(context.Context, string, time.Time) (time.Duration, error) {
	return 0, errors.New("store down")
}

func (failingStore) Set(context.Context, string, time.Duration, time.Time) error {
	return errors.New("store down")
}

func (failingStore) Increment(context.Context, string, time.Duration, time.Time) (int64, error) {
	return 0, errors.New("store down")
}

func TestLimiter_ResetsAfterWindow(t *testing.T) {
	clock := newFakeClock()
	limiter := NewLimiter(NewMemoryState(), "user", 5, time.Minute, clock.Now)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.True(t, limiter.Allow(ctx, "u1"), "call %d should be allowed", i+1)
	}
	assert.False(t, limiter.Allow(ctx, "u1"), "6th call in the window must be denied")
	assert.True(t, limiter.Allow(ctx, "u2"), "other subjects are tracked independently")

	clock.Advance(61 * time.Second)
	assert.True(t, limiter.Allow(ctx, "u1"), "counter resets once the window has passed")
}

func TestLimiter_WindowNotResetAtExactly60s(t *testing.T) {
	clock := newFakeClock()
	limiter := NewLimiter(NewMemoryState(), "user", 1, time.Minute, clock.Now)
	ctx := context.Background()

	require.True(t, limiter.Allow(ctx, "u1"))
	clock.Advance(60 * time.Second)
	assert.False(t, limiter.Allow(ctx, "u1"))
	clock.Advance(time.Second)
	assert.True(t, limiter.Allow(ctx, "u1"))
}

func TestLimiter_DisabledAndFailing(t *testing.T) {
	ctx := context.Background()

	disabled := NewLimiter(NewMemoryState(), "user", 0, time.Minute, nil)
	for i := 0; i < 100; i++ {
		require.True(t, disabled.Allow(ctx, "u1"))
	}

	broken := NewLimiter(failingStore{}, "user", 1, time.Minute, nil)
	assert.True(t, broken.Allow(ctx, "u1"), "store errors must not deny")
}

func TestRateLimiter_CountsUserAndThread(t *testing.T) {
	clock := newFakeClock()
	limiter := NewRateLimiter(NewMemoryState(), 2, 3, time.Minute, clock.Now)
	ctx := context.Background()

	assert.True(t, limiter.Observe(ctx, "alice", "t1"))
	assert.True(t, limiter.Observe(ctx, "bob", "t1"))
	assert.True(t, limiter.Observe(ctx, "carol", "t1"))
	// Thread t1 is now at its limit of 3, even for a fresh user.
	assert.False(t, limiter.Observe(ctx, "dave", "t1"))
	// Alice is under her own limit in another thread.
	assert.True(t, limiter.Observe(ctx, "alice", "t2"))
	// But her third event in the window is over the user limit.
	assert.False(t, limiter.Observe(ctx, "alice", "t3"))
}

func TestCooldownLedger_Duration(t *testing.T) {
	ledger := NewCooldownLedger(NewMemoryState(), 2*time.Second, map[string]time.Duration{
		"admin":   5 * time.Second,
		"economy": 3 * time.Second,
	}, nil)

	tests := []struct {
		name string
		cmd  Command
		want time.Duration
	}{
		{"own value", Command{Cooldown: 10 * time.Second, Category: "admin"}, 10 * time.Second},
		{"category", Command{Category: "economy"}, 3 * time.Second},
		{"unknown category", Command{Category: "music"}, 2 * time.Second},
		{"no category", Command{}, 2 * time.Second},
		{"disabled", Command{Cooldown: -1, Category: "admin"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ledger.Duration(&tt.cmd))
		})
	}
}

func TestCooldownLedger_DisabledFallback(t *testing.T) {
	ledger := NewCooldownLedger(NewMemoryState(), NoCooldown, map[string]time.Duration{"economy": 3 * time.Second}, nil)

	assert.Equal(t, time.Duration(0), ledger.Duration(&Command{Name: "roll"}))
	assert.Equal(t, time.Duration(0), ledger.Duration(&Command{Name: "roll", Category: "music"}))
	assert.Equal(t, 3*time.Second, ledger.Duration(&Command{Name: "pay", Category: "economy"}))
}

func TestCooldownLedger_ColonInIds(t *testing.T) {
	ledger := NewCooldownLedger(NewMemoryState(), time.Minute, nil, nil)
	ctx := context.Background()
	cmd := &Command{Name: "daily"}

	_, ok := ledger.Acquire(ctx, cmd, "a:b", "c")
	require.True(t, ok)
	_, ok = ledger.Acquire(ctx, cmd, "a", "b:c")
	assert.True(t, ok, "user a in thread b:c has its own cooldown")
	assert.NotEqual(t, cooldownKey("daily", "a:b", "c"), cooldownKey("daily", "a", "b:c"))
}

func TestLimiter_ColonInSubjects(t *testing.T) {
	store := NewMemoryState()
	users := NewLimiter(store, "user", 1, time.Minute, nil)
	threads := NewLimiter(store, "user:x", 1, time.Minute, nil)
	ctx := context.Background()

	assert.True(t, users.Allow(ctx, "x:y"))
	assert.True(t, threads.Allow(ctx, "y"), "kind user:x with subject y is a different counter")
	assert.False(t, users.Allow(ctx, "x:y"))
}

func TestCooldownLedger_SetAndExpire(t *testing.T) {
	clock := newFakeClock()
	ledger := NewCooldownLedger(NewMemoryState(), 2*time.Second, nil, clock.Now)
	ctx := context.Background()

	assert.False(t, ledger.IsOnCooldown(ctx, "ping", "u1", "t1"))
	assert.Equal(t, 0, ledger.RemainingSeconds(ctx, "ping", "u1", "t1"))

	ledger.Set(ctx, "ping", "u1", "t1", 3*time.Second)
	assert.True(t, ledger.IsOnCooldown(ctx, "ping", "u1", "t1"))
	assert.Equal(t, 3, ledger.RemainingSeconds(ctx, "ping", "u1", "t1"))
	assert.False(t, ledger.IsOnCooldown(ctx, "ping", "u1", "t2"), "threads are separate keys")
	assert.False(t, ledger.IsOnCooldown(ctx, "ping", "u2", "t1"), "users are separate keys")

	clock.Advance(2500 * time.Millisecond)
	assert.Equal(t, 1, ledger.RemainingSeconds(ctx, "ping", "u1", "t1"))

	clock.Advance(500 * time.Millisecond)
	assert.False(t, ledger.IsOnCooldown(ctx, "ping", "u1", "t1"))
}

func TestCooldownLedger_Acquire(t *testing.T) {
	clock := newFakeClock()
	ledger := NewCooldownLedger(NewMemoryState(), 2*time.Second, nil, clock.Now)
	ctx := context.Background()
	cmd := &Command{Name: "ping"}

	_, ok := ledger.Acquire(ctx, cmd, "u1", "t1")
	require.True(t, ok)

	remaining, ok := ledger.Acquire(ctx, cmd, "u1", "t1")
	require.False(t, ok)
	assert.Equal(t, 2*time.Second, remaining)

	clock.Advance(2 * time.Second)
	_, ok = ledger.Acquire(ctx, cmd, "u1", "t1")
	assert.True(t, ok)

	broken := NewCooldownLedger(failingStore{}, time.Second, nil, clock.Now)
	_, ok = broken.Acquire(ctx, cmd, "u1", "t1")
	assert.True(t, ok, "store errors must not deny")
}

func TestCooldownLedger_AcquireIsAtomic(t *testing.T) {
	ledger := NewCooldownLedger(NewMemoryState(), time.Minute, nil, nil)
	ctx := context.Background()
	cmd := &Command{Name: "daily"}

	var wg sync.WaitGroup
	var mu sync.Mutex
	acquired := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := ledger.Acquire(ctx, cmd, "u1", "t1"); ok {
				mu.Lock()
				acquired++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, acquired)
}

func TestMemoryState_Sweep(t *testing.T) {
	clock := newFakeClock()
	state := NewMemoryState()
	ctx := context.Background()

	require.NoError(t, state.Set(ctx, "short", time.Second, clock.Now()))
	require.NoError(t, state.Set(ctx, "long", time.Hour, clock.Now()))
	_, err := state.Increment(ctx, "user:u1", time.Minute, clock.Now())
	require.NoError(t, err)

	cooldowns, counters := state.Len()
	assert.Equal(t, 2, cooldowns)
	assert.Equal(t, 1, counters)

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 2, state.Sweep(clock.Now()))

	cooldowns, counters = state.Len()
	assert.Equal(t, 1, cooldowns)
	assert.Equal(t, 0, counters)
}

func TestMemoryState_ExpiredEntryIgnoredBeforeSweep(t *testing.T) {
	clock := newFakeClock()
	state := NewMemoryState()
	ctx := context.Background()

	require.NoError(t, state.Set(ctx, "k", time.Second, clock.Now()))
	clock.Advance(5 * time.Second)

	remaining, err := state.Remaining(ctx, "k", clock.Now())
	require.NoError(t, err)
	assert.Zero(t, remaining)

	_, ok, err := state.Acquire(ctx, "k", time.Second, clock.Now())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryState_SetZeroClears(t *testing.T) {
	clock := newFakeClock()
	state := NewMemoryState()
	ctx := context.Background()

	require.NoError(t, state.Set(ctx, "k", time.Minute, clock.Now()))
	require.NoError(t, state.Set(ctx, "k", 0, clock.Now()))
	cooldowns, _ := state.Len()
	assert.Equal(t, 0, cooldowns)
}

package dispatch

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"ThreadBot/core"
)

// CooldownStore keeps cooldown expiry times by key.
type CooldownStore interface {
	// Acquire starts a cooldown of ttl for key unless one is still running, in
	// which case it reports the time left. Check and set happen atomically.
	Acquire(ctx context.Context, key string, ttl time.Duration, now time.Time) (remaining time.Duration, acquired bool, err error)
	Remaining(ctx context.Context, key string, now time.Time) (time.Duration, error)
	Set(ctx context.Context, key string, ttl time.Duration, now time.Time) error
}

// CounterStore keeps fixed-window counters by key.
type CounterStore interface {
	// Increment adds one to key, starting a new window when the current one is
	// older than window, and returns the count inside the window.
	Increment(ctx context.Context, key string, window time.Duration, now time.Time) (int64, error)
}

// joinKey builds a store key from parts, each written as "<len>:<part>" so
// parts containing ':' cannot run into their neighbours.
func joinKey(parts ...string) string {
	var b strings.Builder
	for i, part := range parts {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(strconv.Itoa(len(part)))
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}

// State bundles the mutable stores a Dispatcher needs. Nothing in it is
// persisted by the memory implementation: a restart clears every cooldown and
// rate counter.
type State struct {
	Cooldowns CooldownStore
	Counters  CounterStore
}

// MemoryState is a process-local State whose entries expire lazily on read and
// are swept periodically.
type MemoryState struct {
	mu        sync.Mutex
	cooldowns map[string]time.Time
	counters  map[string]*rateCounter
	window    time.Duration
}

type rateCounter struct {
	count       int64
	windowStart time.Time
	window      time.Duration
}

func NewMemoryState() *MemoryState {
	return &MemoryState{
		cooldowns: map[string]time.Time{},
		counters:  map[string]*rateCounter{},
	}
}

func (m *MemoryState) State() State {
	return State{Cooldowns: m, Counters: m}
}

func (m *MemoryState) Acquire(_ context.Context, key string, ttl time.Duration, now time.Time) (time.Duration, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if expiresAt, ok := m.cooldowns[key]; ok {
		if now.Before(expiresAt) {
			return expiresAt.Sub(now), false, nil
		}
		delete(m.cooldowns, key)
	}
	if ttl > 0 {
		m.cooldowns[key] = now.Add(ttl)
	}
	return 0, true, nil
}

func (m *MemoryState) Remaining(_ context.Context, key string, now time.Time) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	expiresAt, ok := m.cooldowns[key]
	if !ok {
		return 0, nil
	}
	if !now.Before(expiresAt) {
		delete(m.cooldowns, key)
		return 0, nil
	}
	return expiresAt.Sub(now), nil
}

func (m *MemoryState) Set(_ context.Context, key string, ttl time.Duration, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ttl <= 0 {
		delete(m.cooldowns, key)
		return nil
	}
	m.cooldowns[key] = now.Add(ttl)
	return nil
}

func (m *MemoryState) Increment(_ context.Context, key string, window time.Duration, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.counters[key]
	if !ok || now.Sub(c.windowStart) > window {
		c = &rateCounter{windowStart: now, window: window}
		m.counters[key] = c
	}
	c.count++
	return c.count, nil
}

// Sweep drops expired cooldowns and stale counters, returning how many entries were removed.
func (m *MemoryState) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, expiresAt := range m.cooldowns {
		if !now.Before(expiresAt) {
			delete(m.cooldowns, key)
			removed++
		}
	}
	for key, c := range m.counters {
		if now.Sub(c.windowStart) > c.window {
			delete(m.counters, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of live cooldown and counter entries.
func (m *MemoryState) Len() (cooldowns, counters int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cooldowns), len(m.counters)
}

// StartSweeper runs Sweep every interval until ctx is done.
func (m *MemoryState) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if removed := m.Sweep(now); removed > 0 {
					core.LogDebugF("Swept %d expired dispatch state entries", removed)
				}
			}
		}
	}()
}

package dispatch

import (
	"context"
	"time"

	"ThreadBot/core"
)

// CooldownLedger tracks per (command, user, thread) cooldowns.
type CooldownLedger struct {
	store      CooldownStore
	fallback   time.Duration
	categories map[string]time.Duration
	clock      func() time.Time
}

func NewCooldownLedger(store CooldownStore, fallback time.Duration, categories map[string]time.Duration, clock func() time.Time) *CooldownLedger {
	if clock == nil {
		clock = time.Now
	}
	table := make(map[string]time.Duration, len(categories))
	for k, v := range categories {
		table[k] = v
	}
	return &CooldownLedger{store: store, fallback: fallback, categories: table, clock: clock}
}

func cooldownKey(command, userId, threadId string) string {
	return joinKey(command, userId, threadId)
}

// Duration resolves a command's cooldown: its own value, then its category's, then the global default.
func (l *CooldownLedger) Duration(cmd *Command) time.Duration {
	if cmd.Cooldown < 0 {
		return 0
	}
	if cmd.Cooldown > 0 {
		return cmd.Cooldown
	}
	if d, ok := l.categories[cmd.Category]; ok && cmd.Category != "" {
		return d
	}
	if l.fallback < 0 {
		return 0
	}
	return l.fallback
}

func (l *CooldownLedger) IsOnCooldown(ctx context.Context, command, userId, threadId string) bool {
	return l.Remaining(ctx, command, userId, threadId) > 0
}

func (l *CooldownLedger) Remaining(ctx context.Context, command, userId, threadId string) time.Duration {
	remaining, err := l.store.Remaining(ctx, cooldownKey(command, userId, threadId), l.clock())
	if err != nil {
		core.LogErrorF("Failed to read cooldown for %s: %s", command, err)
		return 0
	}
	return remaining
}

// RemainingSeconds is Remaining rounded up to whole seconds.
func (l *CooldownLedger) RemainingSeconds(ctx context.Context, command, userId, threadId string) int {
	return core.CeilSeconds(l.Remaining(ctx, command, userId, threadId))
}

func (l *CooldownLedger) Set(ctx context.Context, command, userId, threadId string, d time.Duration) {
	if err := l.store.Set(ctx, cooldownKey(command, userId, threadId), d, l.clock()); err != nil {
		core.LogErrorF("Failed to set cooldown for %s: %s", command, err)
	}
}

// Acquire checks the cooldown for cmd and, when it has passed, starts the next
// one in the same step. A store failure lets the command through.
func (l *CooldownLedger) Acquire(ctx context.Context, cmd *Command, userId, threadId string) (time.Duration, bool) {
	remaining, ok, err := l.store.Acquire(ctx, cooldownKey(cmd.Name, userId, threadId), l.Duration(cmd), l.clock())
	if err != nil {
		core.LogErrorF("Cooldown store failed for %s, allowing: %s", cmd.Name, err)
		return 0, true
	}
	return remaining, ok
}

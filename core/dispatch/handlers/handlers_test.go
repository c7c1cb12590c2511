package handlers

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"ThreadBot/core/database"
	"ThreadBot/core/dispatch"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type replies struct {
	mu   sync.Mutex
	sent []string
}

func (r *replies) Reply(_ context.Context, _, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, text)
	return nil
}

func (r *replies) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return ""
	}
	return r.sent[len(r.sent)-1]
}

type admins map[string][]string

func (a admins) ThreadAdmins(_ context.Context, threadId string) ([]string, error) {
	return a[threadId], nil
}

type harness struct {
	t          *testing.T
	dispatcher *dispatch.Dispatcher
	replies    *replies
	now        time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	require.NoError(t, database.InitializeDatabase(":memory:"))
	t.Cleanup(database.Close)

	h := &harness{t: t, replies: &replies{}, now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	h.dispatcher = dispatch.New(dispatch.Config{
		Prefix: "!",
		PrefixFor: func(_ context.Context, threadId string) string {
			return database.FetchThreadPrefix(threadId)
		},
		Owners: []string{"owner"},
		Admins: admins{"t1": {"admin"}},
		Log:    dispatch.MultiLog{},
		Clock:  func() time.Time { return h.now },
	}, dispatch.Commands, dispatch.NewMemoryState().State())
	return h
}

// send dispatches text and moves the clock past every cooldown.
func (h *harness) send(user, text string, mentions ...string) dispatch.Outcome {
	h.t.Helper()
	outcome := h.dispatcher.Dispatch(context.Background(), &dispatch.Event{
		Text:     text,
		SenderID: user,
		ThreadID: "t1",
		Mentions: mentions,
		Replier:  h.replies,
	})
	h.now = h.now.Add(10 * time.Second)
	return outcome
}

func TestBuiltinsRegistered(t *testing.T) {
	for _, name := range []string{"ping", "pong", "help", "h", "commands", "id", "stats", "balance", "bal", "daily", "pay", "rank", "prefix"} {
		assert.NotNil(t, dispatch.Commands.Lookup(name), "command %s", name)
	}
}

func TestPing(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, dispatch.Success, h.send("u1", "!ping").Kind)
	assert.Equal(t, "Pong!", h.replies.last())
	h.send("u1", "!pong")
	assert.Equal(t, "Ping!", h.replies.last())
}

func TestIdent(t *testing.T) {
	h := newHarness(t)
	h.send("u1", "!id")
	assert.Equal(t, "Identities:\n\tuser u1\n\tthread t1", h.replies.last())
	h.send("u1", "!id @a @b", "a", "b")
	assert.Equal(t, "Identities:\n\tuser a\n\tuser b\n\tthread t1", h.replies.last())
}

func TestHelp(t *testing.T) {
	h := newHarness(t)

	h.send("u1", "!help")
	listing := h.replies.last()
	assert.Contains(t, listing, "**economy**: !balance, !daily, !pay")
	assert.Contains(t, listing, "!ping")

	h.send("u1", "!help bal")
	details := h.replies.last()
	assert.Contains(t, details, "**!balance [@user]**")
	assert.Contains(t, details, "Aliases: !bal, !money")
	assert.Contains(t, details, "Cooldown: 3s")

	h.send("u1", "!help prefix")
	assert.Contains(t, h.replies.last(), "Requires: admin")

	h.send("u1", "!help dly")
	assert.Contains(t, h.replies.last(), "Matching commands: !daily")

	h.send("u1", "!help zzzzzz")
	assert.Equal(t, `No command named "zzzzzz".`, h.replies.last())
}

func TestStats(t *testing.T) {
	h := newHarness(t)
	h.send("u1", "!ping")

	outcome := h.send("u1", "!stats")
	assert.Equal(t, dispatch.Unauthorized, outcome.Reason)

	assert.Equal(t, dispatch.Success, h.send("admin", "!stats").Kind)
	assert.Contains(t, h.replies.last(), "2 dispatches: 1 denied")
	assert.Contains(t, h.replies.last(), "!ping: 1 (1 ok")
}

func TestEconomy(t *testing.T) {
	h := newHarness(t)

	h.send("alice", "!balance")
	assert.Equal(t, "You have 0 coins.", h.replies.last())

	h.send("alice", "!daily")
	assert.Equal(t, "You received 100 coins. You now have 100.", h.replies.last())

	h.send("alice", "!daily")
	assert.True(t, strings.HasPrefix(h.replies.last(), "You already claimed your daily reward."), h.replies.last())

	h.send("alice", "!pay 30 @bob", "bob")
	assert.Equal(t, "Sent 30 coins to bob.", h.replies.last())

	h.send("alice", "!pay 500 bob")
	assert.Equal(t, "You don't have 500 coins.", h.replies.last())

	h.send("alice", "!pay lots bob")
	assert.Contains(t, h.replies.last(), "positive whole number")

	h.send("alice", "!pay 10")
	assert.Equal(t, "Usage: !pay <amount> <@user>", h.replies.last())

	h.send("alice", "!pay 10 alice")
	assert.Equal(t, "You can't pay yourself.", h.replies.last())

	h.send("alice", "!bal @bob", "bob")
	assert.Equal(t, "User bob has 30 coins.", h.replies.last())
	h.send("alice", "!bal")
	assert.Equal(t, "You have 70 coins.", h.replies.last())

	h.now = h.now.Add(database.DailyInterval)
	h.send("alice", "!daily")
	assert.Equal(t, "You received 100 coins. You now have 170.", h.replies.last())
}

func TestRank(t *testing.T) {
	h := newHarness(t)

	h.send("u1", "!rank")
	assert.Equal(t, "No activity recorded for u1 yet.", h.replies.last())

	database.UpsertUser("u1", "Alice", h.now)
	database.AddExp("u1", 20)
	database.UpsertUser("u2", "", h.now)
	database.AddExp("u2", 40)

	h.send("u1", "!rank")
	assert.Equal(t, "Alice is level 3 with 20 exp, rank #2.", h.replies.last())

	h.send("u1", "!rank top")
	assert.Equal(t, "**Leaderboard**:\n\t1. u2: level 4 (40 exp)\n\t2. Alice: level 3 (20 exp)", h.replies.last())
}

func TestPrefix(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, dispatch.Unauthorized, h.send("u1", "!prefix ?").Reason)

	assert.Equal(t, dispatch.Success, h.send("admin", "!prefix ?").Kind)
	assert.Equal(t, "Command prefix in this thread is now ?", h.replies.last())

	assert.Equal(t, dispatch.NotACommand, h.send("u1", "!ping").Kind)
	assert.Equal(t, dispatch.Success, h.send("u1", "?ping").Kind)

	h.send("admin", "?prefix toolong")
	assert.Equal(t, "A prefix can be at most 5 characters.", h.replies.last())

	h.send("owner", "?prefix reset")
	assert.Equal(t, "Command prefix in this thread is now !", h.replies.last())
	assert.Equal(t, dispatch.Success, h.send("u1", "!ping").Kind)
}

package services

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestGuildAdmins(t *testing.T) {
	guild := &discordgo.Guild{
		ID:      "g1",
		OwnerID: "owner",
		Roles: []*discordgo.Role{
			{ID: "r-admin", Permissions: discordgo.PermissionAdministrator | discordgo.PermissionSendMessages},
			{ID: "r-mod", Permissions: discordgo.PermissionManageMessages},
		},
	}
	members := []*discordgo.Member{
		{User: &discordgo.User{ID: "alice"}, Roles: []string{"r-mod", "r-admin"}},
		{User: &discordgo.User{ID: "bob"}, Roles: []string{"r-mod"}},
		{User: &discordgo.User{ID: "owner"}, Roles: []string{"r-admin"}},
		{Roles: []string{"r-admin"}},
	}

	assert.Equal(t, []string{"owner", "alice"}, GuildAdmins(guild, members))
}

func TestEventFromMessage(t *testing.T) {
	msg := &discordgo.Message{
		ID:        "m1",
		ChannelID: "c1",
		Content:   "!pay 10 @bob",
		Author:    &discordgo.User{ID: "alice", Username: "Alice"},
		Mentions:  []*discordgo.User{{ID: "bob"}},
	}
	replier := &nopReplier{}

	e := EventFromMessage(msg, "bot", replier)
	assert.Equal(t, "!pay 10 @bob", e.Text)
	assert.Equal(t, "alice", e.SenderID)
	assert.Equal(t, "Alice", e.SenderName)
	assert.Equal(t, "c1", e.ThreadID)
	assert.Equal(t, "m1", e.MessageID)
	assert.Equal(t, []string{"bob"}, e.Mentions)
	assert.False(t, e.IsSelf)
	assert.Same(t, replier, e.Replier)

	msg.Author = &discordgo.User{ID: "bot"}
	assert.True(t, EventFromMessage(msg, "bot", replier).IsSelf)
	assert.False(t, EventFromMessage(msg, "", replier).IsSelf)
}

func TestNewSendLimiter(t *testing.T) {
	assert.Equal(t, rate.Inf, newSendLimiter(0).Limit())

	limiter := newSendLimiter(0.5)
	assert.Equal(t, rate.Limit(0.5), limiter.Limit())
	assert.Equal(t, 1, limiter.Burst())

	limiter = newSendLimiter(5)
	assert.Equal(t, 5, limiter.Burst())

	// A cancelled context stops a send waiting for its turn.
	limiter = newSendLimiter(0.01)
	require.True(t, limiter.Allow())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, limiter.Wait(ctx))
}

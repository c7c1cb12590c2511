package services

import (
	"context"
	"fmt"

	"ThreadBot/core"
	"ThreadBot/core/dispatch"

	"github.com/bwmarrin/discordgo"
	"github.com/thoas/go-funk"
	"golang.org/x/time/rate"
)

// Discord is the chat transport. A channel is a thread, and members holding a
// role with the Administrator permission are its admins.
type Discord struct {
	session *discordgo.Session
	limiter *rate.Limiter
}

var (
	_ dispatch.Replier     = (*Discord)(nil)
	_ dispatch.AdminLookup = (*Discord)(nil)
)

// NewDiscord creates a session for token. Outgoing messages are limited to sendRate per second.
func NewDiscord(token string, sendRate float64) (*Discord, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent |
		discordgo.IntentsGuildMembers
	return &Discord{session: dg, limiter: newSendLimiter(sendRate)}, nil
}

func newSendLimiter(sendRate float64) *rate.Limiter {
	if sendRate <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	burst := int(sendRate)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(sendRate), burst)
}

func (d *Discord) Session() *discordgo.Session {
	return d.session
}

// OnMessage calls fn on its own goroutine for every created message.
func (d *Discord) OnMessage(fn func(e *dispatch.Event)) {
	d.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Message == nil || m.Author == nil {
			return
		}
		selfId := ""
		if s.State != nil && s.State.User != nil {
			selfId = s.State.User.ID
		}
		go fn(EventFromMessage(m.Message, selfId, d))
	})
}

// Open a websocket connection to Discord and begin listening.
func (d *Discord) Open() error {
	return d.session.Open()
}

func (d *Discord) Close() error {
	return d.session.Close()
}

func (d *Discord) Reply(ctx context.Context, threadID, text string) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := d.session.ChannelMessageSend(threadID, text, discordgo.WithContext(ctx))
	return err
}

func (d *Discord) ThreadAdmins(ctx context.Context, threadID string) ([]string, error) {
	channel, err := d.session.State.Channel(threadID)
	if err != nil {
		if channel, err = d.session.Channel(threadID, discordgo.WithContext(ctx)); err != nil {
			return nil, fmt.Errorf("failed to fetch channel %s: %w", threadID, err)
		}
	}
	// Direct messages have no admins.
	if channel.GuildID == "" {
		return nil, nil
	}

	guild, err := d.session.State.Guild(channel.GuildID)
	if err != nil {
		if guild, err = d.session.Guild(channel.GuildID, discordgo.WithContext(ctx)); err != nil {
			return nil, fmt.Errorf("failed to fetch guild %s: %w", channel.GuildID, err)
		}
	}
	members, err := d.session.GuildMembers(guild.ID, "", 1000, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch members of %s: %w", guild.ID, err)
	}
	return GuildAdmins(guild, members), nil
}

// GuildAdmins returns the owner and every member holding an Administrator role.
func GuildAdmins(guild *discordgo.Guild, members []*discordgo.Member) []string {
	adminRoles := map[string]bool{}
	for _, role := range guild.Roles {
		if role.Permissions&discordgo.PermissionAdministrator != 0 {
			adminRoles[role.ID] = true
		}
	}

	var admins []string
	if guild.OwnerID != "" {
		admins = append(admins, guild.OwnerID)
	}
	for _, member := range members {
		if member.User == nil {
			continue
		}
		for _, roleId := range member.Roles {
			if adminRoles[roleId] {
				admins = append(admins, member.User.ID)
				break
			}
		}
	}
	return funk.UniqString(admins)
}

// EventFromMessage converts a Discord message into a dispatch event.
func EventFromMessage(m *discordgo.Message, selfId string, replier dispatch.Replier) *dispatch.Event {
	mentions := make([]string, 0, len(m.Mentions))
	for _, user := range m.Mentions {
		mentions = append(mentions, user.ID)
	}
	e := &dispatch.Event{
		Text:      m.Content,
		ThreadID:  m.ChannelID,
		MessageID: m.ID,
		Mentions:  mentions,
		Replier:   replier,
	}
	if m.Author != nil {
		e.SenderID = m.Author.ID
		e.SenderName = m.Author.Username
		e.IsSelf = selfId != "" && m.Author.ID == selfId
	}
	if e.IsSelf {
		core.LogDebugF("Ignoring own message %s", m.ID)
	}
	return e
}

package handlers

import (
	"context"
	"fmt"
	"strings"

	"ThreadBot/core/database"
	"ThreadBot/core/dispatch"
)

const leaderboardSize = 5

type rank struct{}

func init() {
	dispatch.Register(dispatch.Command{
		Name:     "rank",
		Aliases:  []string{"level"},
		Category: "fun",
		Help:     "Show your level and rank, a mentioned user's, or the leaderboard with *top*",
		Usage:    "[@user | top]",
		Handler:  &rank{},
	})
}

func (*rank) Run(ctx context.Context, inv *dispatch.Invocation) error {
	if len(inv.Args) > 0 && strings.EqualFold(inv.Args[0], "top") {
		return inv.ReplyToThread(ctx, leaderboard(database.TopUsersByExp(leaderboardSize)))
	}

	userId := targetUser(inv, inv.Args)
	user := database.FetchUser(userId)
	if user == nil {
		return inv.ReplyToThread(ctx, "No activity recorded for %s yet.", userId)
	}
	name := user.Name
	if name == "" {
		name = user.UserId
	}
	return inv.ReplyToThread(ctx, "%s is level %d with %d exp, rank #%d.",
		name, user.Level(), user.Exp, database.RankOf(userId))
}

func leaderboard(users []database.User) string {
	if len(users) == 0 {
		return "No activity recorded yet."
	}
	output := []string{"**Leaderboard**:"}
	for i, u := range users {
		name := u.Name
		if name == "" {
			name = u.UserId
		}
		output = append(output, fmt.Sprintf("\t%d. %s: level %d (%d exp)", i+1, name, u.Level(), u.Exp))
	}
	return strings.Join(output, "\n")
}

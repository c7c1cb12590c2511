package handlers

import (
	"context"

	"ThreadBot/core/dispatch"
)

type ping struct{}

func init() {
	dispatch.Register(dispatch.Command{
		Name:     "ping",
		Aliases:  []string{"pong"},
		Category: "utility",
		Help:     "Simple command to check that bot is alive",
		Handler:  &ping{},
	})
}

func (*ping) Run(ctx context.Context, inv *dispatch.Invocation) error {
	if inv.Invoked == "pong" {
		return inv.ReplyToThread(ctx, "Ping!")
	}
	return inv.ReplyToThread(ctx, "Pong!")
}

package handlers

import (
	"context"
	"errors"
	"unicode/utf8"

	"ThreadBot/core/database"
	"ThreadBot/core/dispatch"
)

const maxPrefixLength = 5

type prefix struct{}

func init() {
	dispatch.Register(dispatch.Command{
		Name:       "prefix",
		Permission: dispatch.Admin,
		Category:   "admin",
		Help:       "Change the command prefix in this thread, or restore the default with *reset*",
		Usage:      "<new prefix | reset>",
		Handler:    &prefix{},
	})
}

func (*prefix) Run(ctx context.Context, inv *dispatch.Invocation) error {
	if len(inv.Args) != 1 {
		return inv.ReplyToThread(ctx, "The command prefix here is %s. Usage: %sprefix <new prefix | reset>", inv.Prefix, inv.Prefix)
	}

	value := inv.Args[0]
	if value == "reset" {
		value = ""
	} else if utf8.RuneCountInString(value) > maxPrefixLength {
		return inv.ReplyToThread(ctx, "A prefix can be at most %d characters.", maxPrefixLength)
	}

	if !database.SetThreadPrefix(inv.ThreadID, value, inv.Dispatcher.Now()) {
		return errors.New("could not save the prefix")
	}
	return inv.ReplyToThread(ctx, "Command prefix in this thread is now %s", inv.Dispatcher.PrefixFor(ctx, inv.ThreadID))
}

package handlers

import (
	"context"
	"fmt"
	"strings"

	"ThreadBot/core/dispatch"

	"github.com/thoas/go-funk"
)

type ident struct{}

func init() {
	dispatch.Register(dispatch.Command{
		Name:     "id",
		Category: "utility",
		Help:     "Return the id of the user, or of all mentioned users, and of the thread",
		Usage:    "[@user...]",
		Handler:  &ident{},
	})
}

func (*ident) Run(ctx context.Context, inv *dispatch.Invocation) error {
	var identities []string
	addUser := func(id string) {
		identities = append(identities, fmt.Sprintf("user %s", id))
	}
	if len(inv.Mentions) == 0 {
		addUser(inv.SenderID)
	} else {
		funk.ForEach(inv.Mentions, addUser)
	}
	identities = append(identities, fmt.Sprintf("thread %s", inv.ThreadID))
	return inv.ReplyToThread(ctx, "Identities:\n\t%s", strings.Join(identities, "\n\t"))
}

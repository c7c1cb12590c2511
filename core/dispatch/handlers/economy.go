package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ThreadBot/core/database"
	"ThreadBot/core/dispatch"
)

// DailyReward is the amount credited by the daily command.
const DailyReward = 100

var errWalletUnavailable = errors.New("wallet unavailable")

type balance struct{}
type daily struct{}
type pay struct{}

func init() {
	dispatch.Register(dispatch.Command{
		Name:     "balance",
		Aliases:  []string{"bal", "money"},
		Category: "economy",
		Help:     "Show your coins, or those of a mentioned user",
		Usage:    "[@user]",
		Handler:  &balance{},
	})
	dispatch.Register(dispatch.Command{
		Name:     "daily",
		Category: "economy",
		Help:     fmt.Sprintf("Claim %d coins once a day", DailyReward),
		Handler:  &daily{},
	})
	dispatch.Register(dispatch.Command{
		Name:     "pay",
		Aliases:  []string{"give"},
		Category: "economy",
		Help:     "Send coins to another user",
		Usage:    "<amount> <@user>",
		Handler:  &pay{},
	})
}

// targetUser picks the first mention, then the first argument, then the sender.
func targetUser(inv *dispatch.Invocation, args []string) string {
	if len(inv.Mentions) > 0 {
		return inv.Mentions[0]
	}
	if len(args) > 0 {
		return strings.TrimPrefix(args[0], "@")
	}
	return inv.SenderID
}

func (*balance) Run(ctx context.Context, inv *dispatch.Invocation) error {
	userId := targetUser(inv, inv.Args)
	wallet := database.FetchCurrency(userId)
	if wallet == nil {
		return errWalletUnavailable
	}
	if userId == inv.SenderID {
		return inv.ReplyToThread(ctx, "You have %d coins.", wallet.Money)
	}
	return inv.ReplyToThread(ctx, "User %s has %d coins.", userId, wallet.Money)
}

func (*daily) Run(ctx context.Context, inv *dispatch.Invocation) error {
	remaining, err := database.ClaimDaily(inv.SenderID, DailyReward, inv.Dispatcher.Now())
	switch {
	case errors.Is(err, database.ErrAlreadyClaimed):
		return inv.ReplyToThread(ctx, "You already claimed your daily reward. Come back in %s.", remaining.Round(time.Minute))
	case err != nil:
		return err
	}
	wallet := database.FetchCurrency(inv.SenderID)
	if wallet == nil {
		return inv.ReplyToThread(ctx, "You received %d coins.", DailyReward)
	}
	return inv.ReplyToThread(ctx, "You received %d coins. You now have %d.", DailyReward, wallet.Money)
}

func (*pay) Run(ctx context.Context, inv *dispatch.Invocation) error {
	usage := fmt.Sprintf("Usage: %s%s <amount> <@user>", inv.Prefix, inv.Command.Name)
	if len(inv.Args) < 1 {
		return inv.ReplyToThread(ctx, usage)
	}
	amount, err := strconv.ParseInt(inv.Args[0], 10, 64)
	if err != nil || amount <= 0 {
		return inv.ReplyToThread(ctx, "The amount must be a positive whole number. %s", usage)
	}
	if len(inv.Mentions) == 0 && len(inv.Args) < 2 {
		return inv.ReplyToThread(ctx, usage)
	}
	recipient := targetUser(inv, inv.Args[1:])
	if recipient == inv.SenderID {
		return inv.ReplyToThread(ctx, "You can't pay yourself.")
	}

	err = database.Transfer(inv.SenderID, recipient, amount)
	switch {
	case errors.Is(err, database.ErrInsufficientFunds):
		return inv.ReplyToThread(ctx, "You don't have %d coins.", amount)
	case err != nil:
		return err
	}
	return inv.ReplyToThread(ctx, "Sent %d coins to %s.", amount, recipient)
}

package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ThreadBot/core/dispatch"
)

const topCommandCount = 5

type stats struct{}

func init() {
	dispatch.Register(dispatch.Command{
		Name:       "stats",
		Permission: dispatch.Admin,
		Category:   "admin",
		Help:       "Show dispatch statistics since the bot started",
		Handler:    &stats{},
	})
}

func (*stats) Run(ctx context.Context, inv *dispatch.Invocation) error {
	snap := inv.Dispatcher.Metrics().Snapshot()
	uptime := inv.Dispatcher.Now().Sub(snap.Started).Round(time.Second)

	output := []string{
		fmt.Sprintf("Up for %s. %d dispatches: %d denied, %d not found, %d failed (%d panics).",
			uptime, snap.TotalDispatches, snap.TotalDenied, snap.TotalNotFound, snap.TotalErrors, snap.TotalPanics),
	}
	if len(snap.Commands) > 0 {
		output = append(output, "Top commands:")
	}
	for i, cm := range snap.Commands {
		if i == topCommandCount {
			break
		}
		output = append(output, fmt.Sprintf("\t%s%s: %d (%d ok, avg %s)",
			inv.Prefix, cm.Name, cm.DispatchCount, cm.SuccessCount, cm.AverageDuration().Round(time.Millisecond)))
	}
	return inv.ReplyToThread(ctx, strings.Join(output, "\n"))
}

package services

import (
	"context"
	"time"

	"ThreadBot/core"
	"ThreadBot/core/database"
	"ThreadBot/core/dispatch"
)

// ExpPerMessage is the experience granted for each message a user sends.
const ExpPerMessage = 1

// ActivityListener keeps the users and threads tables current and grants
// experience for every message, command or not.
func ActivityListener(clock func() time.Time) dispatch.Listener {
	if clock == nil {
		clock = time.Now
	}
	return func(_ context.Context, e *dispatch.Event) {
		if e.SenderID == "" || e.ThreadID == "" {
			return
		}
		now := clock()
		if !database.UpsertThread(e.ThreadID, now) {
			core.LogWarnF("Activity for thread %s not recorded", e.ThreadID)
		}
		if !database.UpsertUser(e.SenderID, e.SenderName, now) {
			core.LogWarnF("Activity for user %s not recorded", e.SenderID)
			return
		}
		database.AddExp(e.SenderID, ExpPerMessage)
	}
}

// ThreadPrefix looks up the per-thread prefix override stored by the prefix command.
func ThreadPrefix(_ context.Context, threadId string) string {
	return database.FetchThreadPrefix(threadId)
}

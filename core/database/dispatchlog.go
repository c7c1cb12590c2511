package database

import (
	"context"
	"database/sql"
	"strings"

	"ThreadBot/core"
	"ThreadBot/core/dispatch"
	"github.com/jmoiron/sqlx"
)

// DispatchRecord is a stored dispatch attempt.
type DispatchRecord struct {
	Id         string         `db:"id"`
	Command    string         `db:"command"`
	Invoked    string         `db:"invoked"`
	UserId     string         `db:"user_id"`
	ThreadId   string         `db:"thread_id"`
	Args       string         `db:"args"`
	Success    bool           `db:"success"`
	Outcome    string         `db:"outcome"`
	Error      sql.NullString `db:"error"`
	DurationMs int64          `db:"duration_ms"`
	CreatedAt  int64          `db:"created_at"`
}

func InsertDispatchRecord(rec dispatch.Record) bool {
	var errText *string
	if rec.Error != "" {
		errText = &rec.Error
	}
	_, err := executeAndCommit(func(tx *sqlx.Tx) (sql.Result, error) {
		return tx.Exec(`
			INSERT INTO dispatch_log (id, command, invoked, user_id, thread_id, args, success, outcome, error, duration_ms, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, rec.ID, rec.Command, rec.Invoked, rec.UserID, rec.ThreadID, strings.Join(rec.Args, " "),
			rec.Success, rec.Outcome, errText, rec.Duration.Milliseconds(), rec.At.Unix())
	})
	if err != nil {
		core.LogErrorF("Failed to store dispatch %s: %s", rec.ID, err)
		return false
	}
	return true
}

// FetchRecentDispatches returns the newest records first. An empty threadId matches every thread.
func FetchRecentDispatches(threadId string, limit int) []DispatchRecord {
	mu.RLock()
	defer mu.RUnlock()
	if database == nil {
		return nil
	}

	var records []DispatchRecord
	var err error
	if threadId == "" {
		err = database.Select(&records, "SELECT * FROM dispatch_log ORDER BY created_at DESC, rowid DESC LIMIT ?", limit)
	} else {
		err = database.Select(&records, "SELECT * FROM dispatch_log WHERE thread_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?", threadId, limit)
	}
	if err != nil {
		core.LogErrorF("Failed to fetch recent dispatches: %s", err)
		return nil
	}
	return records
}

// DispatchSink stores every dispatch record in the database.
type DispatchSink struct{}

func (DispatchSink) Record(_ context.Context, rec dispatch.Record) {
	InsertDispatchRecord(rec)
}

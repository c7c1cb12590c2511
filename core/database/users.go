package database

import (
	"database/sql"
	"math"
	"time"

	"ThreadBot/core"
	"github.com/jmoiron/sqlx"
)

// User is a message author the bot has seen.
type User struct {
	UserId    string `db:"user_id"`
	Name      string `db:"name"`
	Exp       int64  `db:"exp"`
	FirstSeen int64  `db:"first_seen"`
	LastSeen  int64  `db:"last_seen"`
}

func (u User) Level() int {
	return Level(u.Exp)
}

// Level converts experience points to a level, starting at 1.
func Level(exp int64) int {
	if exp < 0 {
		exp = 0
	}
	return int(math.Floor((math.Sqrt(1+4*float64(exp)/3) + 1) / 2))
}

// Thread is a conversation the bot has seen messages in.
type Thread struct {
	ThreadId     string  `db:"thread_id"`
	Prefix       *string `db:"prefix"`
	MessageCount int64   `db:"message_count"`
	FirstSeen    int64   `db:"first_seen"`
	LastSeen     int64   `db:"last_seen"`
}

// UpsertUser records that userId was seen at now, updating the display name when one is given.
func UpsertUser(userId, name string, now time.Time) bool {
	_, err := executeAndCommit(func(tx *sqlx.Tx) (sql.Result, error) {
		return tx.Exec(`
			INSERT INTO users (user_id, name, exp, first_seen, last_seen)
			VALUES (?, ?, 0, ?, ?)
			ON CONFLICT(user_id) DO UPDATE SET
				name = CASE WHEN excluded.name = '' THEN users.name ELSE excluded.name END,
				last_seen = excluded.last_seen
		`, userId, name, now.Unix(), now.Unix())
	})
	if err != nil {
		core.LogErrorF("Failed to upsert user %s: %s", userId, err)
		return false
	}
	return true
}

func FetchUser(userId string) *User {
	mu.RLock()
	defer mu.RUnlock()
	if database == nil {
		core.LogError("Database isn't open. Shouldn't happen.")
		return nil
	}
	user := User{}
	err := database.Get(&user, "SELECT * FROM users WHERE user_id=?", userId)
	switch err {
	case sql.ErrNoRows:
		return nil
	case nil:
		return &user
	default:
		core.LogErrorF("Failed to fetch user %s: %s", userId, err)
		return nil
	}
}

// AddExp adds amount to the user's experience. The user must already exist.
func AddExp(userId string, amount int64) bool {
	res, err := executeAndCommit(func(tx *sqlx.Tx) (sql.Result, error) {
		return tx.Exec("UPDATE users SET exp = exp + ? WHERE user_id = ?", amount, userId)
	})
	if err != nil {
		core.LogErrorF("Failed to add exp to %s: %s", userId, err)
		return false
	}
	n, _ := res.RowsAffected()
	return n == 1
}

// TopUsersByExp returns up to limit users with the most experience.
func TopUsersByExp(limit int) []User {
	mu.RLock()
	defer mu.RUnlock()
	if database == nil {
		return nil
	}
	var users []User
	err := database.Select(&users, "SELECT * FROM users ORDER BY exp DESC, user_id ASC LIMIT ?", limit)
	if err != nil {
		core.LogErrorF("Failed to fetch top users: %s", err)
		return nil
	}
	return users
}

// RankOf returns the 1-based position of userId ordered by experience, or 0 if unknown.
func RankOf(userId string) int {
	mu.RLock()
	defer mu.RUnlock()
	if database == nil {
		return 0
	}
	var exists int
	if err := database.Get(&exists, "SELECT COUNT(*) FROM users WHERE user_id = ?", userId); err != nil || exists == 0 {
		return 0
	}
	var rank int
	err := database.Get(&rank, `
		SELECT COUNT(*) + 1 FROM users
		WHERE exp > (SELECT exp FROM users WHERE user_id = ?)`, userId)
	if err != nil {
		core.LogErrorF("Failed to rank user %s: %s", userId, err)
		return 0
	}
	return rank
}

// UpsertThread records a message in threadId at now.
func UpsertThread(threadId string, now time.Time) bool {
	_, err := executeAndCommit(func(tx *sqlx.Tx) (sql.Result, error) {
		return tx.Exec(`
			INSERT INTO threads (thread_id, message_count, first_seen, last_seen)
			VALUES (?, 1, ?, ?)
			ON CONFLICT(thread_id) DO UPDATE SET
				message_count = threads.message_count + 1,
				last_seen = excluded.last_seen
		`, threadId, now.Unix(), now.Unix())
	})
	if err != nil {
		core.LogErrorF("Failed to upsert thread %s: %s", threadId, err)
		return false
	}
	return true
}

func FetchThread(threadId string) *Thread {
	mu.RLock()
	defer mu.RUnlock()
	if database == nil {
		core.LogError("Database isn't open. Shouldn't happen.")
		return nil
	}
	thread := Thread{}
	err := database.Get(&thread, "SELECT * FROM threads WHERE thread_id=?", threadId)
	switch err {
	case sql.ErrNoRows:
		return nil
	case nil:
		return &thread
	default:
		core.LogErrorF("Failed to fetch thread %s: %s", threadId, err)
		return nil
	}
}

// SetThreadPrefix overrides the command prefix in threadId. An empty prefix restores the default.
func SetThreadPrefix(threadId, prefix string, now time.Time) bool {
	var value *string
	if prefix != "" {
		value = &prefix
	}
	_, err := executeAndCommit(func(tx *sqlx.Tx) (sql.Result, error) {
		return tx.Exec(`
			INSERT INTO threads (thread_id, prefix, message_count, first_seen, last_seen)
			VALUES (?, ?, 0, ?, ?)
			ON CONFLICT(thread_id) DO UPDATE SET prefix = excluded.prefix
		`, threadId, value, now.Unix(), now.Unix())
	})
	if err != nil {
		core.LogErrorF("Failed to set prefix for thread %s: %s", threadId, err)
		return false
	}
	return true
}

// FetchThreadPrefix returns the prefix override for threadId, or "" when there is none.
func FetchThreadPrefix(threadId string) string {
	mu.RLock()
	defer mu.RUnlock()
	if database == nil {
		return ""
	}
	var prefix sql.NullString
	err := database.Get(&prefix, "SELECT prefix FROM threads WHERE thread_id=?", threadId)
	if err != nil {
		if err != sql.ErrNoRows {
			core.LogErrorF("Failed to fetch prefix for thread %s: %s", threadId, err)
		}
		return ""
	}
	return prefix.String
}

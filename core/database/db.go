package database

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"ThreadBot/core"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

var schema = `
CREATE TABLE IF NOT EXISTS users ( user_id TEXT PRIMARY KEY, name TEXT NOT NULL DEFAULT '', exp INTEGER NOT NULL DEFAULT 0, first_seen INTEGER NOT NULL, last_seen INTEGER NOT NULL );
CREATE INDEX IF NOT EXISTS users_exp_index ON users (exp);

CREATE TABLE IF NOT EXISTS threads ( thread_id TEXT PRIMARY KEY, prefix TEXT, message_count INTEGER NOT NULL DEFAULT 0, first_seen INTEGER NOT NULL, last_seen INTEGER NOT NULL );

CREATE TABLE IF NOT EXISTS currencies ( user_id TEXT PRIMARY KEY, money INTEGER NOT NULL DEFAULT 0 CHECK (money >= 0), last_daily INTEGER );

CREATE TABLE IF NOT EXISTS dispatch_log ( id TEXT PRIMARY KEY, command TEXT NOT NULL, invoked TEXT NOT NULL, user_id TEXT NOT NULL, thread_id TEXT NOT NULL, args TEXT NOT NULL DEFAULT '', success INTEGER NOT NULL, outcome TEXT NOT NULL, error TEXT, duration_ms INTEGER NOT NULL, created_at INTEGER NOT NULL );
CREATE INDEX IF NOT EXISTS dispatch_log_created_index ON dispatch_log (created_at);
CREATE INDEX IF NOT EXISTS dispatch_log_command_index ON dispatch_log (command);
`

var ErrNotOpen = errors.New("database is not open")

var database *sqlx.DB
var mu sync.RWMutex

// InitializeDatabase opens the sqlite file at path and creates any missing tables.
func InitializeDatabase(path string) error {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return fmt.Errorf("failed to open database %s: %w", path, err)
	}
	// sqlite serializes writers anyway, and :memory: databases are per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return fmt.Errorf("failed to create schema: %w", err)
	}

	mu.Lock()
	database = db
	mu.Unlock()
	core.LogInfoF("Opened database %s", path)
	return nil
}

func IsOpen() bool {
	mu.RLock()
	defer mu.RUnlock()
	return database != nil
}

func Close() {
	mu.Lock()
	defer mu.Unlock()
	if database != nil {
		database.Close()
		database = nil
	}
}

// executeAndCommit runs fn inside a transaction, rolling back if fn fails.
func executeAndCommit(fn func(tx *sqlx.Tx) (sql.Result, error)) (sql.Result, error) {
	mu.Lock()
	defer mu.Unlock()
	if database == nil {
		return nil, ErrNotOpen
	}

	tx, err := database.Beginx()
	if err != nil {
		return nil, err
	}
	res, err := fn(tx)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			core.LogErrorF("Failed to roll back transaction: %s", rbErr)
		}
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return res, nil
}

package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ThreadBot/core"
	"github.com/jmoiron/sqlx"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAlreadyClaimed    = errors.New("daily reward already claimed")
	ErrInvalidAmount     = errors.New("amount must be positive")
)

// DailyInterval is how often the daily reward can be claimed.
const DailyInterval = 24 * time.Hour

// Currency is a user's wallet.
type Currency struct {
	UserId    string `db:"user_id"`
	Money     int64  `db:"money"`
	LastDaily *int64 `db:"last_daily"`
}

// FetchCurrency returns the wallet for userId. Users without one have an empty wallet.
func FetchCurrency(userId string) *Currency {
	mu.RLock()
	defer mu.RUnlock()
	if database == nil {
		core.LogError("Database isn't open. Shouldn't happen.")
		return nil
	}
	currency := Currency{}
	err := database.Get(&currency, "SELECT * FROM currencies WHERE user_id=?", userId)
	switch err {
	case sql.ErrNoRows:
		return &Currency{UserId: userId}
	case nil:
		return &currency
	default:
		core.LogErrorF("Failed to fetch currency for %s: %s", userId, err)
		return nil
	}
}

func credit(tx *sqlx.Tx, userId string, amount int64) (sql.Result, error) {
	return tx.Exec(`
		INSERT INTO currencies (user_id, money) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET money = currencies.money + excluded.money
	`, userId, amount)
}

func debit(tx *sqlx.Tx, userId string, amount int64) (sql.Result, error) {
	res, err := tx.Exec("UPDATE currencies SET money = money - ? WHERE user_id = ? AND money >= ?", amount, userId, amount)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return nil, ErrInsufficientFunds
	}
	return res, nil
}

func IncreaseMoney(userId string, amount int64) bool {
	if amount <= 0 {
		return false
	}
	_, err := executeAndCommit(func(tx *sqlx.Tx) (sql.Result, error) {
		return credit(tx, userId, amount)
	})
	if err != nil {
		core.LogErrorF("Failed to increase money for %s: %s", userId, err)
		return false
	}
	return true
}

// DecreaseMoney removes amount from the wallet, failing with ErrInsufficientFunds rather than going negative.
func DecreaseMoney(userId string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	_, err := executeAndCommit(func(tx *sqlx.Tx) (sql.Result, error) {
		return debit(tx, userId, amount)
	})
	return err
}

// Transfer moves amount between two wallets in one transaction.
func Transfer(fromId, toId string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if fromId == toId {
		return fmt.Errorf("cannot transfer to yourself")
	}
	_, err := executeAndCommit(func(tx *sqlx.Tx) (sql.Result, error) {
		if _, err := debit(tx, fromId, amount); err != nil {
			return nil, err
		}
		return credit(tx, toId, amount)
	})
	return err
}

// ClaimDaily credits amount once per DailyInterval. When the reward was already claimed
// it returns ErrAlreadyClaimed and the time left until the next claim.
func ClaimDaily(userId string, amount int64, now time.Time) (time.Duration, error) {
	var remaining time.Duration
	_, err := executeAndCommit(func(tx *sqlx.Tx) (sql.Result, error) {
		var last sql.NullInt64
		err := tx.Get(&last, "SELECT last_daily FROM currencies WHERE user_id=?", userId)
		if err != nil && err != sql.ErrNoRows {
			return nil, err
		}
		if last.Valid {
			next := time.Unix(last.Int64, 0).Add(DailyInterval)
			if now.Before(next) {
				remaining = next.Sub(now)
				return nil, ErrAlreadyClaimed
			}
		}
		return tx.Exec(`
			INSERT INTO currencies (user_id, money, last_daily) VALUES (?, ?, ?)
			ON CONFLICT(user_id) DO UPDATE SET
				money = currencies.money + excluded.money,
				last_daily = excluded.last_daily
		`, userId, amount, now.Unix())
	})
	return remaining, err
}

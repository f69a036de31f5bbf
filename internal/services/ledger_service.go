package services

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/gemstore/backend/internal/models"
)

// maxCASRetries bounds the optimistic retry loop. Conflicts on one account
// are rare (a user racing their own purchases), so a small budget suffices.
const maxCASRetries = 5

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrDailyLimitReached   = errors.New("daily ad reward limit reached")
	ErrBalanceConflict     = errors.New("balance update conflict")
)

var casConflicts = promauto.NewCounter(prometheus.CounterOpts{
	Name: "gemstore_balance_cas_conflicts_total",
	Help: "Optimistic lock conflicts observed while applying balance updates.",
})

// ApplyFunc maps the current account snapshot to the next one by mutating
// it in place. Returning an error aborts the mutation: nothing is written
// and the error is surfaced to the caller unchanged.
type ApplyFunc func(acct *models.Account) error

// LedgerService applies guarded balance deltas to exactly one account
// record per invocation, using version-conditioned writes retried on
// conflict. All balance mutations in the application go through it.
type LedgerService struct {
	db *sql.DB
}

func NewLedgerService(db *sql.DB) *LedgerService {
	return &LedgerService{db: db}
}

// AtomicUpdate runs AtomicUpdateTx in its own database transaction.
func (s *LedgerService) AtomicUpdate(accountID string, fn ApplyFunc) (*models.Account, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	acct, err := s.AtomicUpdateTx(tx, accountID, fn)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return acct, nil
}

// AtomicUpdateTx re-reads the account, applies fn, and writes the result
// conditioned on the version not having changed since the read. A lost
// race re-reads and retries; an error from fn aborts without writing.
func (s *LedgerService) AtomicUpdateTx(tx *sql.Tx, accountID string, fn ApplyFunc) (*models.Account, error) {
	for attempt := 0; attempt < maxCASRetries; attempt++ {
		acct, err := s.readAccount(tx, accountID)
		if err != nil {
			return nil, err
		}

		next := *acct
		if err := fn(&next); err != nil {
			return nil, err
		}

		result, err := tx.Exec(`
			UPDATE accounts
			SET balance = $1, total_deposited = $2, total_spent = $3, total_earned = $4,
			    ads_watched = $5, ads_today = $6, ads_date = $7,
			    version = version + 1, updated_at = $8
			WHERE account_id = $9 AND version = $10`,
			next.Balance, next.TotalDeposited, next.TotalSpent, next.TotalEarned,
			next.AdsWatched, next.AdsToday, next.AdsDate,
			time.Now(), accountID, acct.Version)
		if err != nil {
			return nil, err
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return nil, err
		}

		if rowsAffected == 1 {
			next.Version = acct.Version + 1
			return &next, nil
		}

		casConflicts.Inc()
	}

	return nil, fmt.Errorf("account %s: %w", accountID, ErrBalanceConflict)
}

// DebitTx subtracts amount from the account, aborting the whole mutation
// when funds are insufficient, and appends the audit entry.
func (s *LedgerService) DebitTx(tx *sql.Tx, accountID string, amount int64, referenceID string) (*models.Account, error) {
	if amount <= 0 {
		return nil, errors.New("debit amount must be positive")
	}

	acct, err := s.AtomicUpdateTx(tx, accountID, func(a *models.Account) error {
		if a.Balance < amount {
			return ErrInsufficientBalance
		}
		a.Balance -= amount
		a.TotalSpent += amount
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.RecordEntry(tx, referenceID, accountID, -amount, "DEBIT", acct.Balance); err != nil {
		return nil, err
	}
	return acct, nil
}

// CreditTx adds amount to the account balance and appends the audit entry.
// Lifetime counters are the caller's concern; use AtomicUpdateTx directly
// when a counter must move with the credit.
func (s *LedgerService) CreditTx(tx *sql.Tx, accountID string, amount int64, referenceID string) (*models.Account, error) {
	if amount <= 0 {
		return nil, errors.New("credit amount must be positive")
	}

	acct, err := s.AtomicUpdateTx(tx, accountID, func(a *models.Account) error {
		a.Balance += amount
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.RecordEntry(tx, referenceID, accountID, amount, "CREDIT", acct.Balance); err != nil {
		return nil, err
	}
	return acct, nil
}

// RecordEntry appends a ledger entry with the running balance.
func (s *LedgerService) RecordEntry(tx *sql.Tx, referenceID, accountID string, amount int64, entryType string, balance int64) error {
	_, err := tx.Exec(`
		INSERT INTO ledger_entries (reference_id, account_id, amount, entry_type, balance, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		referenceID, accountID, amount, entryType, balance, time.Now())
	return err
}

func (s *LedgerService) readAccount(tx *sql.Tx, accountID string) (*models.Account, error) {
	var acct models.Account
	err := tx.QueryRow(`
		SELECT account_id, balance, version, total_deposited, total_spent, total_earned,
		       ads_watched, ads_today, ads_date, updated_at
		FROM accounts
		WHERE account_id = $1`, accountID).Scan(
		&acct.AccountID, &acct.Balance, &acct.Version, &acct.TotalDeposited,
		&acct.TotalSpent, &acct.TotalEarned, &acct.AdsWatched, &acct.AdsToday,
		&acct.AdsDate, &acct.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

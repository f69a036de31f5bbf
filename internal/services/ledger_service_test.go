package services

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/gemstore/backend/internal/models"
)

const accountSelectPattern = `SELECT account_id, balance, version, total_deposited, total_spent, total_earned,\s+ads_watched, ads_today, ads_date, updated_at\s+FROM accounts\s+WHERE account_id = \$1`

const accountUpdatePattern = `UPDATE accounts\s+SET balance = \$1, total_deposited = \$2, total_spent = \$3, total_earned = \$4,\s+ads_watched = \$5, ads_today = \$6, ads_date = \$7,\s+version = version \+ 1, updated_at = \$8\s+WHERE account_id = \$9 AND version = \$10`

func accountRow(accountID string, balance int64, version int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"account_id", "balance", "version", "total_deposited", "total_spent",
		"total_earned", "ads_watched", "ads_today", "ads_date", "updated_at",
	}).AddRow(accountID, balance, version, 0, 0, 0, 0, 0, "", time.Now())
}

func TestLedgerService_AtomicUpdate(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewLedgerService(db)

	t.Run("successful update", func(t *testing.T) {
		accountID := "1234567890"

		mock.ExpectBegin()
		mock.ExpectQuery(accountSelectPattern).
			WithArgs(accountID).
			WillReturnRows(accountRow(accountID, 100, 3))
		mock.ExpectExec(accountUpdatePattern).
			WithArgs(int64(150), int64(0), int64(0), int64(0), 0, 0, "", sqlmock.AnyArg(), accountID, 3).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		acct, err := service.AtomicUpdate(accountID, func(a *models.Account) error {
			a.Balance += 50
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, int64(150), acct.Balance)
		assert.Equal(t, 4, acct.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("abort writes nothing", func(t *testing.T) {
		accountID := "1234567890"
		abort := errors.New("not enough")

		mock.ExpectBegin()
		mock.ExpectQuery(accountSelectPattern).
			WithArgs(accountID).
			WillReturnRows(accountRow(accountID, 100, 3))
		mock.ExpectRollback()

		_, err := service.AtomicUpdate(accountID, func(a *models.Account) error {
			return abort
		})
		assert.ErrorIs(t, err, abort)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("version conflict retries with fresh snapshot", func(t *testing.T) {
		accountID := "1234567890"

		mock.ExpectBegin()
		// First attempt loses the race
		mock.ExpectQuery(accountSelectPattern).
			WithArgs(accountID).
			WillReturnRows(accountRow(accountID, 100, 3))
		mock.ExpectExec(accountUpdatePattern).
			WithArgs(int64(90), int64(0), int64(0), int64(0), 0, 0, "", sqlmock.AnyArg(), accountID, 3).
			WillReturnResult(sqlmock.NewResult(0, 0))
		// Second attempt sees the bumped version and succeeds
		mock.ExpectQuery(accountSelectPattern).
			WithArgs(accountID).
			WillReturnRows(accountRow(accountID, 80, 4))
		mock.ExpectExec(accountUpdatePattern).
			WithArgs(int64(70), int64(0), int64(0), int64(0), 0, 0, "", sqlmock.AnyArg(), accountID, 4).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		acct, err := service.AtomicUpdate(accountID, func(a *models.Account) error {
			a.Balance -= 10
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, int64(70), acct.Balance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("retry budget exhausted", func(t *testing.T) {
		accountID := "1234567890"

		mock.ExpectBegin()
		for i := 0; i < maxCASRetries; i++ {
			mock.ExpectQuery(accountSelectPattern).
				WithArgs(accountID).
				WillReturnRows(accountRow(accountID, 100, 3))
			mock.ExpectExec(accountUpdatePattern).
				WithArgs(int64(90), int64(0), int64(0), int64(0), 0, 0, "", sqlmock.AnyArg(), accountID, 3).
				WillReturnResult(sqlmock.NewResult(0, 0))
		}
		mock.ExpectRollback()

		_, err := service.AtomicUpdate(accountID, func(a *models.Account) error {
			a.Balance -= 10
			return nil
		})
		assert.ErrorIs(t, err, ErrBalanceConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedgerService_DebitTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewLedgerService(db)

	t.Run("successful debit records ledger entry", func(t *testing.T) {
		accountID := "1234567890"

		mock.ExpectBegin()
		tx, _ := db.Begin()

		mock.ExpectQuery(accountSelectPattern).
			WithArgs(accountID).
			WillReturnRows(accountRow(accountID, 500, 1))
		mock.ExpectExec(accountUpdatePattern).
			WithArgs(int64(300), int64(0), int64(200), int64(0), 0, 0, "", sqlmock.AnyArg(), accountID, 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO ledger_entries").
			WithArgs("order123", accountID, int64(-200), "DEBIT", int64(300), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		acct, err := service.DebitTx(tx, accountID, 200, "order123")
		assert.NoError(t, err)
		assert.Equal(t, int64(300), acct.Balance)
		assert.Equal(t, int64(200), acct.TotalSpent)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient balance aborts without writing", func(t *testing.T) {
		accountID := "1234567890"

		mock.ExpectBegin()
		tx, _ := db.Begin()

		mock.ExpectQuery(accountSelectPattern).
			WithArgs(accountID).
			WillReturnRows(accountRow(accountID, 100, 1))

		_, err := service.DebitTx(tx, accountID, 200, "order123")
		assert.ErrorIs(t, err, ErrInsufficientBalance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("non-positive amount rejected", func(t *testing.T) {
		mock.ExpectBegin()
		tx, _ := db.Begin()

		_, err := service.DebitTx(tx, "1234567890", 0, "order123")
		assert.Error(t, err)
	})
}

func TestLedgerService_CreditTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewLedgerService(db)

	t.Run("successful credit records ledger entry", func(t *testing.T) {
		accountID := "1234567890"

		mock.ExpectBegin()
		tx, _ := db.Begin()

		mock.ExpectQuery(accountSelectPattern).
			WithArgs(accountID).
			WillReturnRows(accountRow(accountID, 100, 2))
		mock.ExpectExec(accountUpdatePattern).
			WithArgs(int64(400), int64(0), int64(0), int64(0), 0, 0, "", sqlmock.AnyArg(), accountID, 2).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO ledger_entries").
			WithArgs("dep123", accountID, int64(300), "CREDIT", int64(400), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		acct, err := service.CreditTx(tx, accountID, 300, "dep123")
		assert.NoError(t, err)
		assert.Equal(t, int64(400), acct.Balance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

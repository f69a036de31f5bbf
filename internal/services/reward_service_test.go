package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/gemstore/backend/internal/audit"
	"github.com/gemstore/backend/internal/config"
	"github.com/gemstore/backend/internal/models"
)

type stubConfig struct {
	cfg models.AppConfig
}

func (s stubConfig) Current(ctx context.Context) (models.AppConfig, error) {
	return s.cfg, nil
}

func adsAccountRow(accountID string, balance int64, version, adsToday int, adsDate string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"account_id", "balance", "version", "total_deposited", "total_spent",
		"total_earned", "ads_watched", "ads_today", "ads_date", "updated_at",
	}).AddRow(accountID, balance, version, 0, 0, 0, adsToday, adsToday, adsDate, time.Now())
}

func TestRewardService_ClaimAdReward(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	cfg := config.DefaultApp()
	cfg.AdRewardAmount = 5
	cfg.AdDailyLimit = 3

	service := NewRewardService(db, NewLedgerService(db), stubConfig{cfg}, audit.NewLogger())
	today := time.Now().Format("2006-01-02")

	t.Run("reward credited and counters advanced", func(t *testing.T) {
		accountID := "1234567890"

		mock.ExpectQuery(userLookupPattern).
			WithArgs("7").
			WillReturnRows(sqlmock.NewRows([]string{"account_id", "suspended"}).AddRow(accountID, false))

		mock.ExpectBegin()
		mock.ExpectQuery(accountSelectPattern).
			WithArgs(accountID).
			WillReturnRows(adsAccountRow(accountID, 100, 1, 1, today))
		mock.ExpectExec(accountUpdatePattern).
			WithArgs(int64(105), int64(0), int64(0), int64(5), 2, 2, today, sqlmock.AnyArg(), accountID, 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO ledger_entries").
			WithArgs(sqlmock.AnyArg(), accountID, int64(5), "CREDIT", int64(105), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO transactions").
			WithArgs(sqlmock.AnyArg(), accountID, int64(5), models.TxKindAdReward, "rewarded_ad", models.TxStatusCompleted).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		w := httptest.NewRecorder()
		service.ClaimAdReward(w, authedRequest("POST", "/rewards/ad", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var resp map[string]any
		json.Unmarshal(w.Body.Bytes(), &resp)
		assert.Equal(t, float64(105), resp["balance"])
		assert.Equal(t, float64(2), resp["adsToday"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("daily limit aborts without writing", func(t *testing.T) {
		accountID := "1234567890"

		mock.ExpectQuery(userLookupPattern).
			WithArgs("7").
			WillReturnRows(sqlmock.NewRows([]string{"account_id", "suspended"}).AddRow(accountID, false))

		mock.ExpectBegin()
		mock.ExpectQuery(accountSelectPattern).
			WithArgs(accountID).
			WillReturnRows(adsAccountRow(accountID, 100, 1, 3, today))
		mock.ExpectRollback()

		w := httptest.NewRecorder()
		service.ClaimAdReward(w, authedRequest("POST", "/rewards/ad", nil))

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stale counter resets on a new day", func(t *testing.T) {
		accountID := "1234567890"
		yesterday := time.Now().AddDate(0, 0, -1).Format("2006-01-02")

		mock.ExpectQuery(userLookupPattern).
			WithArgs("7").
			WillReturnRows(sqlmock.NewRows([]string{"account_id", "suspended"}).AddRow(accountID, false))

		mock.ExpectBegin()
		// Yesterday's counter sat at the limit; the date rollover clears it
		mock.ExpectQuery(accountSelectPattern).
			WithArgs(accountID).
			WillReturnRows(adsAccountRow(accountID, 100, 1, 3, yesterday))
		mock.ExpectExec(accountUpdatePattern).
			WithArgs(int64(105), int64(0), int64(0), int64(5), 4, 1, today, sqlmock.AnyArg(), accountID, 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO ledger_entries").
			WithArgs(sqlmock.AnyArg(), accountID, int64(5), "CREDIT", int64(105), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO transactions").
			WithArgs(sqlmock.AnyArg(), accountID, int64(5), models.TxKindAdReward, "rewarded_ad", models.TxStatusCompleted).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		w := httptest.NewRecorder()
		service.ClaimAdReward(w, authedRequest("POST", "/rewards/ad", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var resp map[string]any
		json.Unmarshal(w.Body.Bytes(), &resp)
		assert.Equal(t, float64(1), resp["adsToday"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ads disabled", func(t *testing.T) {
		disabled := config.DefaultApp()
		disabled.AdsEnabled = false
		svc := NewRewardService(db, NewLedgerService(db), stubConfig{disabled}, audit.NewLogger())

		w := httptest.NewRecorder()
		svc.ClaimAdReward(w, authedRequest("POST", "/rewards/ad", nil))

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

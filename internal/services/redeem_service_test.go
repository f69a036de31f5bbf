package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"

	"github.com/gemstore/backend/internal/audit"
	"github.com/gemstore/backend/internal/models"
)

func TestRedeemService_Redeem(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	redisClient, _ := redismock.NewClientMock()
	service := NewRedeemService(db, redisClient, NewLedgerService(db), audit.NewLogger())

	t.Run("valid code credits once", func(t *testing.T) {
		accountID := "1234567890"

		mock.ExpectQuery(userLookupPattern).
			WithArgs("7").
			WillReturnRows(sqlmock.NewRows([]string{"account_id", "suspended"}).AddRow(accountID, false))

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT amount, used, expires_at\\s+FROM redeem_codes").
			WithArgs(sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"amount", "used", "expires_at"}).
				AddRow(100, false, time.Now().Add(time.Hour)))
		mock.ExpectExec("UPDATE redeem_codes SET used = true").
			WithArgs(accountID, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(accountSelectPattern).
			WithArgs(accountID).
			WillReturnRows(accountRow(accountID, 50, 1))
		mock.ExpectExec(accountUpdatePattern).
			WithArgs(int64(150), int64(100), int64(0), int64(0), 0, 0, "", sqlmock.AnyArg(), accountID, 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO ledger_entries").
			WithArgs(sqlmock.AnyArg(), accountID, int64(100), "CREDIT", int64(150), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO transactions").
			WithArgs(sqlmock.AnyArg(), accountID, int64(100), models.TxKindVoucher, "voucher", models.TxStatusCompleted).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		body, _ := json.Marshal(RedeemRequest{Code: "ABCDEFGH2345"})
		w := httptest.NewRecorder()

		service.Redeem(w, authedRequest("POST", "/wallet/redeem", body))

		assert.Equal(t, http.StatusOK, w.Code)
		var resp map[string]any
		json.Unmarshal(w.Body.Bytes(), &resp)
		assert.Equal(t, float64(100), resp["amount"])
		assert.Equal(t, float64(150), resp["balance"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("used code rejected", func(t *testing.T) {
		accountID := "1234567890"

		mock.ExpectQuery(userLookupPattern).
			WithArgs("7").
			WillReturnRows(sqlmock.NewRows([]string{"account_id", "suspended"}).AddRow(accountID, false))

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT amount, used, expires_at\\s+FROM redeem_codes").
			WithArgs(sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"amount", "used", "expires_at"}).
				AddRow(100, true, time.Now().Add(time.Hour)))
		mock.ExpectRollback()

		body, _ := json.Marshal(RedeemRequest{Code: "ABCDEFGH2345"})
		w := httptest.NewRecorder()

		service.Redeem(w, authedRequest("POST", "/wallet/redeem", body))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var resp ErrorResponse
		json.Unmarshal(w.Body.Bytes(), &resp)
		assert.Equal(t, "code already used", resp.Error)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("expired code rejected", func(t *testing.T) {
		accountID := "1234567890"

		mock.ExpectQuery(userLookupPattern).
			WithArgs("7").
			WillReturnRows(sqlmock.NewRows([]string{"account_id", "suspended"}).AddRow(accountID, false))

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT amount, used, expires_at\\s+FROM redeem_codes").
			WithArgs(sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"amount", "used", "expires_at"}).
				AddRow(100, false, time.Now().Add(-time.Hour)))
		mock.ExpectRollback()

		body, _ := json.Marshal(RedeemRequest{Code: "ABCDEFGH2345"})
		w := httptest.NewRecorder()

		service.Redeem(w, authedRequest("POST", "/wallet/redeem", body))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var resp ErrorResponse
		json.Unmarshal(w.Body.Bytes(), &resp)
		assert.Equal(t, "code expired", resp.Error)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRedeemService_GenerateCodes(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	redisClient, redisMock := redismock.NewClientMock()
	service := NewRedeemService(db, redisClient, NewLedgerService(db), audit.NewLogger())

	t.Run("batch generated and returned once", func(t *testing.T) {
		redisMock.ExpectGet("voucher:ratelimit:7").RedisNil()

		mock.ExpectBegin()
		for i := 0; i < 3; i++ {
			mock.ExpectExec("INSERT INTO redeem_codes").
				WithArgs(sqlmock.AnyArg(), int64(100), "7", sqlmock.AnyArg()).
				WillReturnResult(sqlmock.NewResult(1, 1))
		}
		mock.ExpectCommit()

		redisMock.ExpectIncrBy("voucher:ratelimit:7", 3).SetVal(3)
		redisMock.ExpectExpire("voucher:ratelimit:7", service.config.RateLimitWindow).SetVal(true)

		body, _ := json.Marshal(GenerateCodesRequest{Amount: 100, Count: 3})
		w := httptest.NewRecorder()

		service.GenerateCodes(w, authedRequest("POST", "/admin/vouchers", body))

		assert.Equal(t, http.StatusCreated, w.Code)
		var resp struct {
			Codes  []string `json:"codes"`
			Amount int64    `json:"amount"`
		}
		json.Unmarshal(w.Body.Bytes(), &resp)
		assert.Len(t, resp.Codes, 3)
		assert.Equal(t, int64(100), resp.Amount)
		for _, code := range resp.Codes {
			assert.Len(t, code, service.config.CodeLength)
		}
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("batch size capped", func(t *testing.T) {
		body, _ := json.Marshal(GenerateCodesRequest{Amount: 100, Count: service.config.MaxBatchSize + 1})
		w := httptest.NewRecorder()

		service.GenerateCodes(w, authedRequest("POST", "/admin/vouchers", body))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

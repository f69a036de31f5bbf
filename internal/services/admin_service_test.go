package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/gemstore/backend/internal/audit"
	"github.com/gemstore/backend/internal/models"
)

func adminRouter(service *AdminService) chi.Router {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := context.WithValue(req.Context(), "userID", "1")
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Post("/admin/orders/{id}/complete", service.CompleteOrder)
	r.Post("/admin/orders/{id}/fail", service.FailOrder)
	r.Post("/admin/transactions/{id}/approve", service.ApproveDeposit)
	r.Post("/admin/transactions/{id}/reject", service.RejectDeposit)
	r.Post("/admin/accounts/{accountId}/suspend", service.SuspendAccount)
	return r
}

func TestAdminService_CompleteOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewAdminService(db, NewLedgerService(db), audit.NewLogger())
	router := adminRouter(service)

	t.Run("pending order completes", func(t *testing.T) {
		mock.ExpectExec("UPDATE orders SET status = \\$1, updated_at = NOW\\(\\)").
			WithArgs(models.OrderStatusCompleted, "5", models.OrderStatusPending).
			WillReturnResult(sqlmock.NewResult(0, 1))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("POST", "/admin/orders/5/complete", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already completed order is a no-op", func(t *testing.T) {
		mock.ExpectExec("UPDATE orders SET status = \\$1, updated_at = NOW\\(\\)").
			WithArgs(models.OrderStatusCompleted, "5", models.OrderStatusPending).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT status FROM orders WHERE id = \\$1").
			WithArgs("5").
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(models.OrderStatusCompleted))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("POST", "/admin/orders/5/complete", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var resp map[string]string
		json.Unmarshal(w.Body.Bytes(), &resp)
		assert.Equal(t, "Order already processed", resp["message"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown order", func(t *testing.T) {
		mock.ExpectExec("UPDATE orders SET status = \\$1, updated_at = NOW\\(\\)").
			WithArgs(models.OrderStatusCompleted, "99", models.OrderStatusPending).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT status FROM orders WHERE id = \\$1").
			WithArgs("99").
			WillReturnError(sql.ErrNoRows)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("POST", "/admin/orders/99/complete", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestAdminService_FailOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewAdminService(db, NewLedgerService(db), audit.NewLogger())
	router := adminRouter(service)

	t.Run("failing a pending order refunds once", func(t *testing.T) {
		accountID := "1234567890"

		mock.ExpectBegin()
		mock.ExpectQuery("UPDATE orders SET status = \\$1, updated_at = NOW\\(\\)").
			WithArgs(models.OrderStatusFailed, "5", models.OrderStatusPending).
			WillReturnRows(sqlmock.NewRows([]string{"account_id", "offer_price", "order_code"}).
				AddRow(accountID, 60, "200000000001"))
		mock.ExpectQuery(accountSelectPattern).
			WithArgs(accountID).
			WillReturnRows(accountRow(accountID, 40, 2))
		mock.ExpectExec(accountUpdatePattern).
			WithArgs(int64(100), int64(0), int64(-60), int64(0), 0, 0, "", sqlmock.AnyArg(), accountID, 2).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO ledger_entries").
			WithArgs("refund:200000000001", accountID, int64(60), "CREDIT", int64(100), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("POST", "/admin/orders/5/fail", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("second attempt does not refund again", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("UPDATE orders SET status = \\$1, updated_at = NOW\\(\\)").
			WithArgs(models.OrderStatusFailed, "5", models.OrderStatusPending).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery("SELECT status FROM orders WHERE id = \\$1").
			WithArgs("5").
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(models.OrderStatusFailed))
		mock.ExpectRollback()

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("POST", "/admin/orders/5/fail", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var resp map[string]string
		json.Unmarshal(w.Body.Bytes(), &resp)
		assert.Equal(t, "Order already processed", resp["message"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAdminService_ApproveDeposit(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewAdminService(db, NewLedgerService(db), audit.NewLogger())
	router := adminRouter(service)

	t.Run("pending deposit credited once", func(t *testing.T) {
		accountID := "1234567890"

		mock.ExpectBegin()
		mock.ExpectQuery("UPDATE transactions SET status = \\$1, updated_at = NOW\\(\\)").
			WithArgs(models.TxStatusCompleted, "9", models.TxStatusPending, models.TxKindDeposit).
			WillReturnRows(sqlmock.NewRows([]string{"account_id", "amount", "reference_id"}).
				AddRow(accountID, 500, "ref-abc"))
		mock.ExpectQuery(accountSelectPattern).
			WithArgs(accountID).
			WillReturnRows(accountRow(accountID, 100, 1))
		mock.ExpectExec(accountUpdatePattern).
			WithArgs(int64(600), int64(500), int64(0), int64(0), 0, 0, "", sqlmock.AnyArg(), accountID, 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO ledger_entries").
			WithArgs("ref-abc", accountID, int64(500), "CREDIT", int64(600), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("POST", "/admin/transactions/9/approve", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("approved deposit is a no-op on retry", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("UPDATE transactions SET status = \\$1, updated_at = NOW\\(\\)").
			WithArgs(models.TxStatusCompleted, "9", models.TxStatusPending, models.TxKindDeposit).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery("SELECT status FROM transactions WHERE id = \\$1 AND kind = \\$2").
			WithArgs("9", models.TxKindDeposit).
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(models.TxStatusCompleted))
		mock.ExpectRollback()

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("POST", "/admin/transactions/9/approve", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var resp map[string]string
		json.Unmarshal(w.Body.Bytes(), &resp)
		assert.Equal(t, "Deposit already processed", resp["message"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAdminService_RejectDeposit(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewAdminService(db, NewLedgerService(db), audit.NewLogger())
	router := adminRouter(service)

	t.Run("rejection never touches the balance", func(t *testing.T) {
		mock.ExpectExec("UPDATE transactions SET status = \\$1, updated_at = NOW\\(\\)").
			WithArgs(models.TxStatusFailed, "9", models.TxStatusPending, models.TxKindDeposit).
			WillReturnResult(sqlmock.NewResult(0, 1))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("POST", "/admin/transactions/9/reject", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAdminService_SuspendAccount(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewAdminService(db, NewLedgerService(db), audit.NewLogger())
	router := adminRouter(service)

	t.Run("suspends existing account", func(t *testing.T) {
		mock.ExpectExec("UPDATE users SET suspended = \\$1, updated_at = NOW\\(\\) WHERE account_id = \\$2").
			WithArgs(true, "1234567890").
			WillReturnResult(sqlmock.NewResult(0, 1))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("POST", "/admin/accounts/1234567890/suspend", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown account", func(t *testing.T) {
		mock.ExpectExec("UPDATE users SET suspended = \\$1, updated_at = NOW\\(\\) WHERE account_id = \\$2").
			WithArgs(true, "0000000000").
			WillReturnResult(sqlmock.NewResult(0, 0))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("POST", "/admin/accounts/0000000000/suspend", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

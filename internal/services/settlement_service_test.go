package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/gemstore/backend/internal/audit"
	"github.com/gemstore/backend/internal/models"
)

func TestSettlementService_ExportDeposits(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewSettlementService(db, audit.NewLogger())

	t.Run("completed bank deposits exported as pacs.008", func(t *testing.T) {
		mock.ExpectQuery("SELECT t.id, t.reference_id, t.account_id, t.amount, t.method, t.updated_at, c.address").
			WithArgs(models.TxKindDeposit, models.TxStatusCompleted, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id", "reference_id", "account_id", "amount", "method", "updated_at", "address"}).
				AddRow(11, "ref-11", "1234567890", 5000, "AYA Bank", time.Now(), "20012345678").
				AddRow(12, "ref-12", "9876543210", 1200, "AYA Bank", time.Now(), "20012345678"))

		w := httptest.NewRecorder()
		service.ExportDeposits(w, authedRequest("GET", "/admin/settlement/export?since=2026-08-01", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			MessageType string `json:"messageType"`
			Count       int    `json:"count"`
			XML         string `json:"xml"`
		}
		json.Unmarshal(w.Body.Bytes(), &resp)
		assert.Equal(t, "pacs.008.001.08", resp.MessageType)
		assert.Equal(t, 2, resp.Count)
		assert.Contains(t, resp.XML, "ref-11")
		assert.Contains(t, resp.XML, "ref-12")
		assert.Contains(t, resp.XML, "20012345678")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty batch still yields a valid document", func(t *testing.T) {
		mock.ExpectQuery("SELECT t.id, t.reference_id, t.account_id, t.amount, t.method, t.updated_at, c.address").
			WithArgs(models.TxKindDeposit, models.TxStatusCompleted, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id", "reference_id", "account_id", "amount", "method", "updated_at", "address"}))

		w := httptest.NewRecorder()
		service.ExportDeposits(w, authedRequest("GET", "/admin/settlement/export", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var resp map[string]any
		json.Unmarshal(w.Body.Bytes(), &resp)
		assert.Equal(t, float64(0), resp["count"])
		assert.NotEmpty(t, resp["xml"])
	})

	t.Run("malformed since date rejected", func(t *testing.T) {
		w := httptest.NewRecorder()
		service.ExportDeposits(w, authedRequest("GET", "/admin/settlement/export?since=last-week", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var resp ErrorResponse
		json.Unmarshal(w.Body.Bytes(), &resp)
		assert.Equal(t, "Invalid date, expected YYYY-MM-DD", resp.Error)
	})
}

package services

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gemstore/backend/internal/audit"
	"github.com/gemstore/backend/internal/models"
)

type AdminService struct {
	db     *sql.DB
	ledger *LedgerService
	audit  *audit.Logger
	helper *ValidationHelper
}

// AdjustBalanceRequest represents a manual balance correction
// @Description Balance adjustment request structure
type AdjustBalanceRequest struct {
	Delta  int64  `json:"delta" validate:"required" example:"-200"`             // Signed amount, must not be zero
	Reason string `json:"reason" validate:"required,min=3,max=256" example:"chargeback"` // Audit reason
}

func NewAdminService(db *sql.DB, ledger *LedgerService, auditLogger *audit.Logger) *AdminService {
	return &AdminService{
		db:     db,
		ledger: ledger,
		audit:  auditLogger,
		helper: NewValidationHelper(),
	}
}

// CompleteOrder marks a pending order as fulfilled
// @Summary Complete order
// @Description Mark a pending order completed after manual fulfilment
// @Tags admin
// @Produce json
// @Param id path int true "Order ID"
// @Success 200 {object} map[string]string "Order completed or already processed"
// @Failure 404 {string} string "Order not found"
// @Router /admin/orders/{id}/complete [post]
func (s *AdminService) CompleteOrder(w http.ResponseWriter, r *http.Request) {
	adminID, _ := r.Context().Value("userID").(string)
	orderID := chi.URLParam(r, "id")

	res, err := s.db.Exec(`
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3`,
		models.OrderStatusCompleted, orderID, models.OrderStatusPending)
	if err != nil {
		log.Printf("[ADMIN] Order completion failed for %s: %v", orderID, err)
		SendErrorResponse(w, "Failed to complete order", http.StatusInternalServerError, nil)
		return
	}

	rows, _ := res.RowsAffected()
	if rows == 0 {
		// Already completed or failed, or never existed. Completion is
		// idempotent for the former; distinguish the latter.
		var status string
		if err := s.db.QueryRow("SELECT status FROM orders WHERE id = $1", orderID).Scan(&status); err != nil {
			SendErrorResponse(w, "Order not found", http.StatusNotFound, nil)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "Order already processed", "status": status})
		return
	}

	s.audit.LogAdminAction(adminID, "ORDER_COMPLETE", orderID)
	log.Printf("[ADMIN] Order %s completed by admin %s", orderID, adminID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Order completed"})
}

// FailOrder marks a pending order as failed and refunds the debit
// @Summary Fail order
// @Description Mark a pending order failed and refund its price. Safe to retry.
// @Tags admin
// @Produce json
// @Param id path int true "Order ID"
// @Success 200 {object} map[string]string "Order failed and refunded, or already processed"
// @Failure 404 {string} string "Order not found"
// @Router /admin/orders/{id}/fail [post]
func (s *AdminService) FailOrder(w http.ResponseWriter, r *http.Request) {
	adminID, _ := r.Context().Value("userID").(string)
	orderID := chi.URLParam(r, "id")

	tx, err := s.db.Begin()
	if err != nil {
		SendErrorResponse(w, "Failed to fail order", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	// The status guard makes the refund fire at most once: a second
	// attempt matches no pending row and takes the no-op path.
	var accountID, orderCode string
	var price int64
	err = tx.QueryRow(`
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
		RETURNING account_id, offer_price, order_code`,
		models.OrderStatusFailed, orderID, models.OrderStatusPending).
		Scan(&accountID, &price, &orderCode)
	if err == sql.ErrNoRows {
		var status string
		if err := s.db.QueryRow("SELECT status FROM orders WHERE id = $1", orderID).Scan(&status); err != nil {
			SendErrorResponse(w, "Order not found", http.StatusNotFound, nil)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "Order already processed", "status": status})
		return
	}
	if err != nil {
		log.Printf("[ADMIN] Order failure update failed for %s: %v", orderID, err)
		SendErrorResponse(w, "Failed to fail order", http.StatusInternalServerError, nil)
		return
	}

	refundRef := fmt.Sprintf("refund:%s", orderCode)
	updated, err := s.ledger.AtomicUpdateTx(tx, accountID, func(a *models.Account) error {
		a.Balance += price
		a.TotalSpent -= price
		return nil
	})
	if err != nil {
		log.Printf("[ADMIN] Refund failed for order %s: %v", orderID, err)
		s.audit.LogError(refundRef, accountID, err)
		SendErrorResponse(w, "Failed to fail order", http.StatusInternalServerError, nil)
		return
	}

	if err := s.ledger.RecordEntry(tx, refundRef, accountID, price, "CREDIT", updated.Balance); err != nil {
		SendErrorResponse(w, "Failed to fail order", http.StatusInternalServerError, nil)
		return
	}

	if err = tx.Commit(); err != nil {
		SendErrorResponse(w, "Failed to fail order", http.StatusInternalServerError, nil)
		return
	}

	s.audit.LogBalanceChange(refundRef, accountID, price, "ORDER_REFUND")
	s.audit.LogAdminAction(adminID, "ORDER_FAIL", orderID)
	log.Printf("[ADMIN] Order %s failed and refunded %d to account %s", orderID, price, accountID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Order failed and refunded"})
}

// ApproveDeposit completes a pending deposit and credits the account
// @Summary Approve deposit
// @Description Complete a pending deposit and credit its amount. Safe to retry.
// @Tags admin
// @Produce json
// @Param id path int true "Transaction ID"
// @Success 200 {object} map[string]string "Deposit approved, or already processed"
// @Failure 404 {string} string "Deposit not found"
// @Router /admin/transactions/{id}/approve [post]
func (s *AdminService) ApproveDeposit(w http.ResponseWriter, r *http.Request) {
	adminID, _ := r.Context().Value("userID").(string)
	txnID := chi.URLParam(r, "id")

	tx, err := s.db.Begin()
	if err != nil {
		SendErrorResponse(w, "Failed to approve deposit", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	var accountID, referenceID string
	var amount int64
	err = tx.QueryRow(`
		UPDATE transactions SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3 AND kind = $4
		RETURNING account_id, amount, reference_id`,
		models.TxStatusCompleted, txnID, models.TxStatusPending, models.TxKindDeposit).
		Scan(&accountID, &amount, &referenceID)
	if err == sql.ErrNoRows {
		var status string
		if err := s.db.QueryRow("SELECT status FROM transactions WHERE id = $1 AND kind = $2",
			txnID, models.TxKindDeposit).Scan(&status); err != nil {
			SendErrorResponse(w, "Deposit not found", http.StatusNotFound, nil)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "Deposit already processed", "status": status})
		return
	}
	if err != nil {
		log.Printf("[ADMIN] Deposit approval failed for %s: %v", txnID, err)
		SendErrorResponse(w, "Failed to approve deposit", http.StatusInternalServerError, nil)
		return
	}

	updated, err := s.ledger.AtomicUpdateTx(tx, accountID, func(a *models.Account) error {
		a.Balance += amount
		a.TotalDeposited += amount
		return nil
	})
	if err != nil {
		log.Printf("[ADMIN] Deposit credit failed for %s: %v", referenceID, err)
		s.audit.LogError(referenceID, accountID, err)
		SendErrorResponse(w, "Failed to approve deposit", http.StatusInternalServerError, nil)
		return
	}

	if err := s.ledger.RecordEntry(tx, referenceID, accountID, amount, "CREDIT", updated.Balance); err != nil {
		SendErrorResponse(w, "Failed to approve deposit", http.StatusInternalServerError, nil)
		return
	}

	if err = tx.Commit(); err != nil {
		SendErrorResponse(w, "Failed to approve deposit", http.StatusInternalServerError, nil)
		return
	}

	s.audit.LogBalanceChange(referenceID, accountID, amount, "DEPOSIT_APPROVE")
	s.audit.LogAdminAction(adminID, "DEPOSIT_APPROVE", txnID)
	log.Printf("[ADMIN] Deposit %s approved, credited %d to account %s", txnID, amount, accountID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Deposit approved"})
}

// RejectDeposit marks a pending deposit as failed without crediting
// @Summary Reject deposit
// @Description Mark a pending deposit failed. The balance is untouched.
// @Tags admin
// @Produce json
// @Param id path int true "Transaction ID"
// @Success 200 {object} map[string]string "Deposit rejected, or already processed"
// @Failure 404 {string} string "Deposit not found"
// @Router /admin/transactions/{id}/reject [post]
func (s *AdminService) RejectDeposit(w http.ResponseWriter, r *http.Request) {
	adminID, _ := r.Context().Value("userID").(string)
	txnID := chi.URLParam(r, "id")

	res, err := s.db.Exec(`
		UPDATE transactions SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3 AND kind = $4`,
		models.TxStatusFailed, txnID, models.TxStatusPending, models.TxKindDeposit)
	if err != nil {
		log.Printf("[ADMIN] Deposit rejection failed for %s: %v", txnID, err)
		SendErrorResponse(w, "Failed to reject deposit", http.StatusInternalServerError, nil)
		return
	}

	rows, _ := res.RowsAffected()
	if rows == 0 {
		var status string
		if err := s.db.QueryRow("SELECT status FROM transactions WHERE id = $1 AND kind = $2",
			txnID, models.TxKindDeposit).Scan(&status); err != nil {
			SendErrorResponse(w, "Deposit not found", http.StatusNotFound, nil)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "Deposit already processed", "status": status})
		return
	}

	s.audit.LogAdminAction(adminID, "DEPOSIT_REJECT", txnID)
	log.Printf("[ADMIN] Deposit %s rejected by admin %s", txnID, adminID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Deposit rejected"})
}

// AdjustBalance applies a signed manual correction to an account
// @Summary Adjust balance
// @Description Apply a signed balance correction with an audit reason
// @Tags admin
// @Accept json
// @Produce json
// @Param accountId path string true "Account ID"
// @Param request body AdjustBalanceRequest true "Adjustment"
// @Success 200 {object} map[string]interface{} "New balance"
// @Failure 400 {string} string "Invalid request or balance would go negative"
// @Router /admin/accounts/{accountId}/adjust [post]
func (s *AdminService) AdjustBalance(w http.ResponseWriter, r *http.Request) {
	adminID, _ := r.Context().Value("userID").(string)
	accountID := chi.URLParam(r, "accountId")

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req AdjustBalanceRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := s.helper.ValidateStruct(&req); err != nil || req.Delta == 0 {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	referenceID := uuid.New().String()

	tx, err := s.db.Begin()
	if err != nil {
		SendErrorResponse(w, "Failed to adjust balance", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	updated, err := s.ledger.AtomicUpdateTx(tx, accountID, func(a *models.Account) error {
		if a.Balance+req.Delta < 0 {
			return ErrInsufficientBalance
		}
		a.Balance += req.Delta
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientBalance) {
			SendErrorResponse(w, "Adjustment would make the balance negative", http.StatusBadRequest, nil)
			return
		}
		log.Printf("[ADMIN] Adjustment failed for account %s: %v", accountID, err)
		s.audit.LogError(referenceID, accountID, err)
		SendErrorResponse(w, "Failed to adjust balance", http.StatusInternalServerError, nil)
		return
	}

	entryType := "CREDIT"
	if req.Delta < 0 {
		entryType = "DEBIT"
	}
	if err := s.ledger.RecordEntry(tx, referenceID, accountID, req.Delta, entryType, updated.Balance); err != nil {
		SendErrorResponse(w, "Failed to adjust balance", http.StatusInternalServerError, nil)
		return
	}

	_, err = tx.Exec(`
		INSERT INTO transactions (reference_id, account_id, amount, kind, method, status, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())`,
		referenceID, accountID, req.Delta, models.TxKindAdjustment, "admin", models.TxStatusCompleted,
		models.Metadata{"reason": req.Reason, "admin_id": adminID})
	if err != nil {
		log.Printf("[ADMIN] Adjustment transaction insert failed: %v", err)
		SendErrorResponse(w, "Failed to adjust balance", http.StatusInternalServerError, nil)
		return
	}

	if err = tx.Commit(); err != nil {
		SendErrorResponse(w, "Failed to adjust balance", http.StatusInternalServerError, nil)
		return
	}

	s.audit.LogBalanceChange(referenceID, accountID, req.Delta, "ADMIN_ADJUST")
	s.audit.LogAdminAction(adminID, "BALANCE_ADJUST", fmt.Sprintf("account=%s delta=%d reason=%s", accountID, req.Delta, req.Reason))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"balance": updated.Balance})
}

// SuspendAccount blocks a user from logging in and transacting
// @Summary Suspend account
// @Description Suspend the user owning the given account
// @Tags admin
// @Produce json
// @Param accountId path string true "Account ID"
// @Success 200 {object} map[string]string "Account suspended"
// @Failure 404 {string} string "Account not found"
// @Router /admin/accounts/{accountId}/suspend [post]
func (s *AdminService) SuspendAccount(w http.ResponseWriter, r *http.Request) {
	s.setSuspended(w, r, true, "ACCOUNT_SUSPEND", "Account suspended")
}

// ReinstateAccount lifts a suspension
// @Summary Reinstate account
// @Description Reinstate a suspended account
// @Tags admin
// @Produce json
// @Param accountId path string true "Account ID"
// @Success 200 {object} map[string]string "Account reinstated"
// @Failure 404 {string} string "Account not found"
// @Router /admin/accounts/{accountId}/reinstate [post]
func (s *AdminService) ReinstateAccount(w http.ResponseWriter, r *http.Request) {
	s.setSuspended(w, r, false, "ACCOUNT_REINSTATE", "Account reinstated")
}

func (s *AdminService) setSuspended(w http.ResponseWriter, r *http.Request, suspended bool, action, message string) {
	adminID, _ := r.Context().Value("userID").(string)
	accountID := chi.URLParam(r, "accountId")

	res, err := s.db.Exec("UPDATE users SET suspended = $1, updated_at = NOW() WHERE account_id = $2", suspended, accountID)
	if err != nil {
		log.Printf("[ADMIN] Suspension update failed for account %s: %v", accountID, err)
		SendErrorResponse(w, "Failed to update account", http.StatusInternalServerError, nil)
		return
	}

	rows, _ := res.RowsAffected()
	if rows == 0 {
		SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		return
	}

	s.audit.LogAdminAction(adminID, action, accountID)
	log.Printf("[ADMIN] %s: account %s by admin %s", action, accountID, adminID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}

// ListAllOrders lists orders across accounts with an optional status filter
// @Summary List all orders
// @Description List orders across all accounts, optionally filtered by status
// @Tags admin
// @Produce json
// @Param status query string false "Order status filter" Enums(pending, completed, failed)
// @Success 200 {array} models.Order "Orders"
// @Router /admin/orders [get]
func (s *AdminService) ListAllOrders(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")

	query := `
		SELECT id, order_code, account_id, offer_kind, offer_name, offer_price, offer_quantity, status, created_at, updated_at
		FROM orders`
	args := []any{}
	if status != "" {
		query += " WHERE status = $1"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC LIMIT 200"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		log.Printf("[ADMIN] Order listing failed: %v", err)
		SendErrorResponse(w, "Failed to fetch orders", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	orders := make([]models.Order, 0)
	for rows.Next() {
		var o models.Order
		if err := rows.Scan(&o.ID, &o.OrderCode, &o.AccountID, &o.OfferKind, &o.OfferName,
			&o.OfferPrice, &o.OfferQuantity, &o.Status, &o.CreatedAt, &o.UpdatedAt); err != nil {
			continue
		}
		orders = append(orders, o)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(orders)
}

// ListAllDeposits lists deposit transactions with an optional status filter
// @Summary List all deposits
// @Description List deposits across all accounts, optionally filtered by status
// @Tags admin
// @Produce json
// @Param status query string false "Transaction status filter" Enums(pending, completed, failed)
// @Success 200 {array} models.Transaction "Deposits"
// @Router /admin/transactions [get]
func (s *AdminService) ListAllDeposits(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")

	query := `
		SELECT id, reference_id, account_id, amount, kind, method, status, metadata, created_at, updated_at
		FROM transactions WHERE kind = $1`
	args := []any{models.TxKindDeposit}
	if status != "" {
		query += " AND status = $2"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC LIMIT 200"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		log.Printf("[ADMIN] Deposit listing failed: %v", err)
		SendErrorResponse(w, "Failed to fetch deposits", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	txns := make([]models.Transaction, 0)
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.ReferenceID, &t.AccountID, &t.Amount, &t.Kind,
			&t.Method, &t.Status, &t.Metadata, &t.CreatedAt, &t.UpdatedAt); err != nil {
			continue
		}
		txns = append(txns, t)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(txns)
}

package services

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log"
	"math/rand"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gemstore/backend/internal/audit"
	"github.com/gemstore/backend/internal/models"
)

type OrderService struct {
	db     *sql.DB
	ledger *LedgerService
	cfg    configProvider
	audit  *audit.Logger
	helper *ValidationHelper
}

// CreateOrderRequest represents the order creation payload
// @Description Order creation request structure
type CreateOrderRequest struct {
	OfferID int `json:"offerId" validate:"required,gt=0" example:"12"` // Catalog offer to purchase
}

func NewOrderService(db *sql.DB, ledger *LedgerService, cfg configProvider, auditLogger *audit.Logger) *OrderService {
	return &OrderService{
		db:     db,
		ledger: ledger,
		cfg:    cfg,
		audit:  auditLogger,
		helper: NewValidationHelper(),
	}
}

// CreateOrder places an order against the user's balance
// @Summary Create order
// @Description Debit the account balance and create a pending order for an offer
// @Tags orders
// @Accept json
// @Produce json
// @Param request body CreateOrderRequest true "Order request"
// @Success 201 {object} models.Order "Order created"
// @Failure 400 {string} string "Insufficient balance or invalid request"
// @Failure 404 {string} string "Offer not found"
// @Failure 500 {string} string "Internal server error"
// @Router /orders [post]
func (s *OrderService) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	if cfg, err := s.cfg.Current(r.Context()); err == nil {
		if cfg.MaintenanceMode {
			SendErrorResponse(w, "Store is under maintenance", http.StatusServiceUnavailable, nil)
			return
		}
		if !cfg.StoreEnabled {
			SendErrorResponse(w, "Store is disabled", http.StatusForbidden, nil)
			return
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req CreateOrderRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := s.helper.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	accountID, suspended, err := lookupAccountID(s.db, userID)
	if err != nil {
		log.Printf("[ORDER] Account lookup failed for user %s: %v", userID, err)
		SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		return
	}
	if suspended {
		SendErrorResponse(w, "Account suspended", http.StatusForbidden, nil)
		return
	}

	var offer models.Offer
	err = s.db.QueryRow("SELECT id, kind, name, price, quantity, active FROM offers WHERE id = $1",
		req.OfferID).Scan(&offer.ID, &offer.Kind, &offer.Name, &offer.Price, &offer.Quantity, &offer.Active)
	if err != nil {
		log.Printf("[ORDER] Offer %d not found: %v", req.OfferID, err)
		SendErrorResponse(w, "Offer not found", http.StatusNotFound, nil)
		return
	}

	// Special offers are time-boxed; an inactive special cannot be ordered.
	// Regular offers stay purchasable while listed even when hidden.
	if offer.Kind == models.OfferKindSpecial && !offer.Active {
		SendErrorResponse(w, "Offer not available", http.StatusNotFound, nil)
		return
	}

	// A generated code can collide with an existing order; the whole
	// debit+insert transaction is retried once with a fresh code.
	var order models.Order
	for attempt := 0; attempt < 2; attempt++ {
		order, err = s.placeOrder(accountID, offer)
		if err == nil || !isUniqueViolation(err) {
			break
		}
		log.Printf("[ORDER] Order code collision for account %s, regenerating", accountID)
	}
	if err != nil {
		if errors.Is(err, ErrInsufficientBalance) {
			log.Printf("[ORDER] Insufficient balance for account %s (offer %d, price %d)", accountID, offer.ID, offer.Price)
			SendErrorResponse(w, "Insufficient balance", http.StatusBadRequest, nil)
			return
		}
		log.Printf("[ORDER] Order creation failed for account %s: %v", accountID, err)
		s.audit.LogError("", accountID, err)
		SendErrorResponse(w, "Failed to create order", http.StatusInternalServerError, nil)
		return
	}

	s.audit.LogBalanceChange(order.OrderCode, accountID, -offer.Price, "ORDER_DEBIT")
	log.Printf("[ORDER] Order %s created for account %s (offer %d)", order.OrderCode, accountID, offer.ID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(order)
}

// placeOrder runs the balance debit and the pending-order insert in one
// transaction so a failed insert never leaves an orphaned debit.
func (s *OrderService) placeOrder(accountID string, offer models.Offer) (models.Order, error) {
	orderCode := generateOrderCode()

	var order models.Order
	tx, err := s.db.Begin()
	if err != nil {
		return order, err
	}
	defer tx.Rollback()

	if _, err = s.ledger.DebitTx(tx, accountID, offer.Price, orderCode); err != nil {
		return order, err
	}

	err = tx.QueryRow(`
		INSERT INTO orders (order_code, account_id, offer_kind, offer_name, offer_price, offer_quantity, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING id, created_at, updated_at`,
		orderCode, accountID, offer.Kind, offer.Name, offer.Price, offer.Quantity, models.OrderStatusPending).
		Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return order, err
	}

	if err = tx.Commit(); err != nil {
		return order, err
	}

	order.OrderCode = orderCode
	order.AccountID = accountID
	order.OfferKind = offer.Kind
	order.OfferName = offer.Name
	order.OfferPrice = offer.Price
	order.OfferQuantity = offer.Quantity
	order.Status = models.OrderStatusPending
	return order, nil
}

// ListOrders returns the authenticated user's orders, newest first
// @Summary List orders
// @Description List the authenticated user's orders
// @Tags orders
// @Produce json
// @Success 200 {array} models.Order "Orders"
// @Failure 401 {string} string "Unauthorized"
// @Router /orders [get]
func (s *OrderService) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	accountID, _, err := lookupAccountID(s.db, userID)
	if err != nil {
		SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		return
	}

	rows, err := s.db.Query(`
		SELECT id, order_code, account_id, offer_kind, offer_name, offer_price, offer_quantity, status, created_at, updated_at
		FROM orders WHERE account_id = $1 ORDER BY created_at DESC LIMIT 100`, accountID)
	if err != nil {
		log.Printf("[ORDER] Order listing failed for account %s: %v", accountID, err)
		SendErrorResponse(w, "Failed to fetch orders", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	orders := make([]models.Order, 0)
	for rows.Next() {
		var o models.Order
		if err := rows.Scan(&o.ID, &o.OrderCode, &o.AccountID, &o.OfferKind, &o.OfferName,
			&o.OfferPrice, &o.OfferQuantity, &o.Status, &o.CreatedAt, &o.UpdatedAt); err != nil {
			log.Printf("[ORDER] Row scan failed: %v", err)
			continue
		}
		orders = append(orders, o)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(orders)
}

// GetOrder returns a single order owned by the authenticated user
// @Summary Get order
// @Description Get one of the authenticated user's orders by ID
// @Tags orders
// @Produce json
// @Param id path int true "Order ID"
// @Success 200 {object} models.Order "Order"
// @Failure 404 {string} string "Order not found"
// @Router /orders/{id} [get]
func (s *OrderService) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	accountID, _, err := lookupAccountID(s.db, userID)
	if err != nil {
		SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		return
	}

	orderID := chi.URLParam(r, "id")

	var o models.Order
	err = s.db.QueryRow(`
		SELECT id, order_code, account_id, offer_kind, offer_name, offer_price, offer_quantity, status, created_at, updated_at
		FROM orders WHERE id = $1 AND account_id = $2`, orderID, accountID).
		Scan(&o.ID, &o.OrderCode, &o.AccountID, &o.OfferKind, &o.OfferName,
			&o.OfferPrice, &o.OfferQuantity, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		SendErrorResponse(w, "Order not found", http.StatusNotFound, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(o)
}

func generateOrderCode() string {
	const digits = "0123456789"
	b := make([]byte, 12)
	for i := range b {
		b[i] = digits[rand.Intn(len(digits))]
	}
	return string(b)
}

package services

import (
	"bytes"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/png"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"

	"github.com/gemstore/backend/internal/config"
	"github.com/gemstore/backend/internal/models"
)

type DepositService struct {
	db     *sql.DB
	redis  *redis.Client
	cfg    configProvider
	helper *ValidationHelper
}

// CreateDepositRequest represents the deposit creation payload
// @Description Deposit request structure
type CreateDepositRequest struct {
	Amount    int64 `json:"amount" validate:"required,gt=0" example:"500"`   // Deposit amount in diamonds
	ChannelID int   `json:"channelId" validate:"required,gt=0" example:"1"`  // Payment channel
}

// DepositResponse carries the pending transaction plus payment instructions
type DepositResponse struct {
	Transaction models.Transaction    `json:"transaction"`
	Channel     models.PaymentChannel `json:"channel"`
	QRCodeImage string                `json:"qrCodeImage,omitempty"` // base64 PNG
}

func NewDepositService(db *sql.DB, redisClient *redis.Client, cfg configProvider) *DepositService {
	return &DepositService{
		db:     db,
		redis:  redisClient,
		cfg:    cfg,
		helper: NewValidationHelper(),
	}
}

// CreateDeposit creates a pending deposit awaiting admin approval
// @Summary Create deposit
// @Description Create a pending deposit transaction with payment instructions and a QR code
// @Tags wallet
// @Accept json
// @Produce json
// @Param request body CreateDepositRequest true "Deposit request"
// @Success 201 {object} DepositResponse "Deposit created"
// @Failure 400 {string} string "Invalid request"
// @Failure 404 {string} string "Payment channel not found"
// @Failure 500 {string} string "Internal server error"
// @Router /wallet/deposits [post]
func (s *DepositService) CreateDeposit(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req CreateDepositRequest
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

	appCfg, err := s.cfg.Current(r.Context())
	if err != nil {
		appCfg = config.DefaultApp()
	}
	if req.Amount < appCfg.MinDepositAmount {
		SendErrorResponse(w, fmt.Sprintf("Minimum deposit is %d", appCfg.MinDepositAmount), http.StatusBadRequest, nil)
		return
	}

	accountID, suspended, err := lookupAccountID(s.db, userID)
	if err != nil {
		SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		return
	}
	if suspended {
		SendErrorResponse(w, "Account suspended", http.StatusForbidden, nil)
		return
	}

	var channel models.PaymentChannel
	err = s.db.QueryRow(`
		SELECT id, name, kind, address, instructions, logo_url, active, position
		FROM payment_channels WHERE id = $1 AND active = true`, req.ChannelID).
		Scan(&channel.ID, &channel.Name, &channel.Kind, &channel.Address,
			&channel.Instructions, &channel.LogoURL, &channel.Active, &channel.Position)
	if err != nil {
		SendErrorResponse(w, "Payment channel not found", http.StatusNotFound, nil)
		return
	}

	referenceID := uuid.New().String()

	var txn models.Transaction
	err = s.db.QueryRow(`
		INSERT INTO transactions (reference_id, account_id, amount, kind, method, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING id, created_at, updated_at`,
		referenceID, accountID, req.Amount, models.TxKindDeposit, channel.Name, models.TxStatusPending).
		Scan(&txn.ID, &txn.CreatedAt, &txn.UpdatedAt)
	if err != nil {
		log.Printf("[DEPOSIT] Transaction insert failed for account %s: %v", accountID, err)
		SendErrorResponse(w, "Failed to create deposit", http.StatusInternalServerError, nil)
		return
	}

	txn.ReferenceID = referenceID
	txn.AccountID = accountID
	txn.Amount = req.Amount
	txn.Kind = models.TxKindDeposit
	txn.Method = channel.Name
	txn.Status = models.TxStatusPending

	qrImage, err := s.generatePaymentQR(r, referenceID, req.Amount, channel)
	if err != nil {
		// The deposit stands even when QR generation fails
		log.Printf("[DEPOSIT] QR generation failed for %s: %v", referenceID, err)
	}

	log.Printf("[DEPOSIT] Deposit %s created for account %s via %s", referenceID, accountID, channel.Name)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(DepositResponse{
		Transaction: txn,
		Channel:     channel,
		QRCodeImage: qrImage,
	})
}

func (s *DepositService) generatePaymentQR(r *http.Request, referenceID string, amount int64, channel models.PaymentChannel) (string, error) {
	payload := map[string]any{
		"reference": referenceID,
		"amount":    amount,
		"address":   channel.Address,
		"channel":   channel.Name,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	qr, err := qrcode.New(base64.URLEncoding.EncodeToString(jsonData), qrcode.Medium)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return "", err
	}

	qrImage := base64.StdEncoding.EncodeToString(buf.Bytes())

	if s.redis != nil {
		key := fmt.Sprintf("deposit_qr:%s", referenceID)
		if err := s.redis.Set(r.Context(), key, qrImage, 15*time.Minute).Err(); err != nil {
			log.Printf("[DEPOSIT] Failed to cache QR for %s: %v", referenceID, err)
		}
	}

	return qrImage, nil
}

// ListTransactions returns the authenticated user's transactions, newest first
// @Summary List transactions
// @Description List the authenticated user's deposits, rewards and adjustments
// @Tags wallet
// @Produce json
// @Success 200 {array} models.Transaction "Transactions"
// @Failure 401 {string} string "Unauthorized"
// @Router /wallet/transactions [get]
func (s *DepositService) ListTransactions(w http.ResponseWriter, r *http.Request) {
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
		SELECT id, reference_id, account_id, amount, kind, method, status, metadata, created_at, updated_at
		FROM transactions WHERE account_id = $1 ORDER BY created_at DESC LIMIT 100`, accountID)
	if err != nil {
		log.Printf("[DEPOSIT] Transaction listing failed for account %s: %v", accountID, err)
		SendErrorResponse(w, "Failed to fetch transactions", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	txns := make([]models.Transaction, 0)
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.ReferenceID, &t.AccountID, &t.Amount, &t.Kind,
			&t.Method, &t.Status, &t.Metadata, &t.CreatedAt, &t.UpdatedAt); err != nil {
			log.Printf("[DEPOSIT] Row scan failed: %v", err)
			continue
		}
		txns = append(txns, t)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(txns)
}

// ListChannels returns the active payment channels, ordered by position
// @Summary List payment channels
// @Description List active deposit payment channels
// @Tags wallet
// @Produce json
// @Success 200 {array} models.PaymentChannel "Payment channels"
// @Router /payment-channels [get]
func (s *DepositService) ListChannels(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.Query(`
		SELECT id, name, kind, address, instructions, logo_url, active, position
		FROM payment_channels WHERE active = true ORDER BY position ASC`)
	if err != nil {
		log.Printf("[DEPOSIT] Channel listing failed: %v", err)
		SendErrorResponse(w, "Failed to fetch payment channels", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	channels := make([]models.PaymentChannel, 0)
	for rows.Next() {
		var c models.PaymentChannel
		if err := rows.Scan(&c.ID, &c.Name, &c.Kind, &c.Address, &c.Instructions,
			&c.LogoURL, &c.Active, &c.Position); err != nil {
			continue
		}
		channels = append(channels, c)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(channels)
}

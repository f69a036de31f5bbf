package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math/big"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/gemstore/backend/internal/audit"
	"github.com/gemstore/backend/internal/config"
	"github.com/gemstore/backend/internal/models"
)

var (
	ErrCodeInvalid = errors.New("invalid code")
	ErrCodeUsed    = errors.New("code already used")
	ErrCodeExpired = errors.New("code expired")
)

// RedeemService issues and redeems single-use voucher codes. Codes are
// stored hashed; the plaintext is returned exactly once at generation.
type RedeemService struct {
	db     *sql.DB
	redis  *redis.Client
	ledger *LedgerService
	audit  *audit.Logger
	config *config.VoucherConfig
	helper *ValidationHelper
}

// GenerateCodesRequest represents a voucher batch generation payload
// @Description Voucher generation request structure
type GenerateCodesRequest struct {
	Amount int64 `json:"amount" validate:"required,gt=0" example:"100"` // Diamonds per code
	Count  int   `json:"count" validate:"required,gt=0" example:"10"`   // Number of codes
}

// RedeemRequest represents a voucher redemption payload
// @Description Voucher redemption request structure
type RedeemRequest struct {
	Code string `json:"code" validate:"required,min=6,max=32"`
}

func NewRedeemService(db *sql.DB, redisClient *redis.Client, ledger *LedgerService, auditLogger *audit.Logger) *RedeemService {
	return &RedeemService{
		db:     db,
		redis:  redisClient,
		ledger: ledger,
		audit:  auditLogger,
		config: config.LoadVoucherConfig(),
		helper: NewValidationHelper(),
	}
}

// GenerateCodes creates a batch of voucher codes
// @Summary Generate voucher codes
// @Description Generate a batch of single-use voucher codes (admin only)
// @Tags admin
// @Accept json
// @Produce json
// @Param request body GenerateCodesRequest true "Batch parameters"
// @Success 201 {object} map[string]interface{} "Generated codes"
// @Failure 400 {string} string "Invalid request"
// @Failure 429 {string} string "Rate limit exceeded"
// @Router /admin/vouchers [post]
func (s *RedeemService) GenerateCodes(w http.ResponseWriter, r *http.Request) {
	adminID, _ := r.Context().Value("userID").(string)

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req GenerateCodesRequest
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

	if req.Count > s.config.MaxBatchSize {
		SendErrorResponse(w, fmt.Sprintf("Batch size exceeds maximum of %d", s.config.MaxBatchSize), http.StatusBadRequest, nil)
		return
	}

	if err := s.checkRateLimit(r.Context(), adminID, req.Count); err != nil {
		log.Printf("[REDEEM] Rate limit exceeded for admin %s: %v", adminID, err)
		SendErrorResponse(w, "Rate limit exceeded", http.StatusTooManyRequests, nil)
		return
	}

	expiresAt := time.Now().Add(s.config.CodeTTL)
	codes := make([]string, 0, req.Count)

	tx, err := s.db.Begin()
	if err != nil {
		SendErrorResponse(w, "Failed to generate codes", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	for i := 0; i < req.Count; i++ {
		code := s.generateSecureCode()
		_, err := tx.Exec(`
			INSERT INTO redeem_codes (code_hash, amount, created_by, expires_at, used, created_at)
			VALUES ($1, $2, $3, $4, false, NOW())`,
			s.hashCode(code), req.Amount, adminID, expiresAt)
		if err != nil {
			log.Printf("[REDEEM] Code insert failed: %v", err)
			SendErrorResponse(w, "Failed to generate codes", http.StatusInternalServerError, nil)
			return
		}
		codes = append(codes, code)
	}

	if err = tx.Commit(); err != nil {
		SendErrorResponse(w, "Failed to generate codes", http.StatusInternalServerError, nil)
		return
	}

	s.incrementRateLimit(r.Context(), adminID, req.Count)
	s.audit.LogAdminAction(adminID, "VOUCHER_GENERATE", fmt.Sprintf("count=%d amount=%d", req.Count, req.Amount))
	log.Printf("[REDEEM] Admin %s generated %d codes worth %d each", adminID, req.Count, req.Amount)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"codes":     codes,
		"amount":    req.Amount,
		"expiresAt": expiresAt,
	})
}

// Redeem consumes a voucher code and credits the account
// @Summary Redeem voucher
// @Description Redeem a single-use voucher code for its diamond amount
// @Tags wallet
// @Accept json
// @Produce json
// @Param request body RedeemRequest true "Voucher code"
// @Success 200 {object} map[string]interface{} "Voucher redeemed"
// @Failure 400 {string} string "Invalid, used or expired code"
// @Router /wallet/redeem [post]
func (s *RedeemService) Redeem(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req RedeemRequest
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
		SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		return
	}
	if suspended {
		SendErrorResponse(w, "Account suspended", http.StatusForbidden, nil)
		return
	}

	amount, balance, err := s.consume(r.Context(), accountID, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, ErrCodeInvalid), errors.Is(err, ErrCodeUsed), errors.Is(err, ErrCodeExpired):
			SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		default:
			log.Printf("[REDEEM] Redemption failed for account %s: %v", accountID, err)
			SendErrorResponse(w, "Failed to redeem code", http.StatusInternalServerError, nil)
		}
		return
	}

	log.Printf("[REDEEM] Account %s redeemed a code worth %d", accountID, amount)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"amount":  amount,
		"balance": balance,
	})
}

// consume marks the code used and credits the account in one transaction.
// The row lock serializes concurrent redemptions of the same code.
func (s *RedeemService) consume(ctx context.Context, accountID, code string) (int64, int64, error) {
	hashed := s.hashCode(code)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback()

	var amount int64
	var used bool
	var expiresAt time.Time
	err = tx.QueryRowContext(ctx, `
		SELECT amount, used, expires_at
		FROM redeem_codes
		WHERE code_hash = $1
		FOR UPDATE`, hashed).Scan(&amount, &used, &expiresAt)
	if err == sql.ErrNoRows {
		return 0, 0, ErrCodeInvalid
	}
	if err != nil {
		return 0, 0, err
	}

	if used {
		return 0, 0, ErrCodeUsed
	}
	if time.Now().After(expiresAt) {
		return 0, 0, ErrCodeExpired
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE redeem_codes SET used = true, used_by = $1, used_at = NOW()
		WHERE code_hash = $2`, accountID, hashed)
	if err != nil {
		return 0, 0, err
	}

	referenceID := uuid.New().String()
	updated, err := s.ledger.AtomicUpdateTx(tx, accountID, func(a *models.Account) error {
		a.Balance += amount
		a.TotalDeposited += amount
		return nil
	})
	if err != nil {
		s.audit.LogError(referenceID, accountID, err)
		return 0, 0, err
	}

	if err := s.ledger.RecordEntry(tx, referenceID, accountID, amount, "CREDIT", updated.Balance); err != nil {
		return 0, 0, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transactions (reference_id, account_id, amount, kind, method, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())`,
		referenceID, accountID, amount, models.TxKindVoucher, "voucher", models.TxStatusCompleted)
	if err != nil {
		return 0, 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, err
	}

	s.audit.LogBalanceChange(referenceID, accountID, amount, "VOUCHER_REDEEM")
	return amount, updated.Balance, nil
}

// CleanupExpiredCodes purges expired and long-consumed codes.
func (s *RedeemService) CleanupExpiredCodes(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM redeem_codes
		WHERE (expires_at < $1 AND used = false) OR (used = true AND used_at < $2)
	`, time.Now(), time.Now().Add(-90*24*time.Hour))
	return err
}

func (s *RedeemService) generateSecureCode() string {
	const charset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	code := make([]byte, s.config.CodeLength)
	charsetLen := big.NewInt(int64(len(charset)))

	for i := range code {
		n, _ := rand.Int(rand.Reader, charsetLen)
		code[i] = charset[n.Int64()]
	}

	return string(code)
}

func (s *RedeemService) hashCode(code string) string {
	hash := sha256.Sum256([]byte(code))
	return hex.EncodeToString(hash[:])
}

func (s *RedeemService) checkRateLimit(ctx context.Context, adminID string, count int) error {
	if s.redis == nil {
		return nil
	}

	key := fmt.Sprintf("voucher:ratelimit:%s", adminID)
	current, err := s.redis.Get(ctx, key).Int()
	if err != nil && err != redis.Nil {
		return err
	}

	if current+count > s.config.MaxGenerationPerUser {
		return errors.New("rate limit exceeded")
	}

	return nil
}

func (s *RedeemService) incrementRateLimit(ctx context.Context, adminID string, count int) {
	if s.redis == nil {
		return
	}

	key := fmt.Sprintf("voucher:ratelimit:%s", adminID)
	pipe := s.redis.Pipeline()
	pipe.IncrBy(ctx, key, int64(count))
	pipe.Expire(ctx, key, s.config.RateLimitWindow)
	pipe.Exec(ctx)
}

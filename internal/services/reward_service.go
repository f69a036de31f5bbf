package services

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/gemstore/backend/internal/audit"
	"github.com/gemstore/backend/internal/models"
)

type RewardService struct {
	db     *sql.DB
	ledger *LedgerService
	cfg    configProvider
	audit  *audit.Logger
}

func NewRewardService(db *sql.DB, ledger *LedgerService, cfg configProvider, auditLogger *audit.Logger) *RewardService {
	return &RewardService{
		db:     db,
		ledger: ledger,
		cfg:    cfg,
		audit:  auditLogger,
	}
}

// ClaimAdReward credits the account for a watched rewarded ad
// @Summary Claim ad reward
// @Description Credit the per-ad reward, bounded by the configured daily limit
// @Tags rewards
// @Produce json
// @Success 200 {object} map[string]interface{} "Reward credited"
// @Failure 403 {string} string "Ads disabled"
// @Failure 429 {string} string "Daily limit reached"
// @Failure 500 {string} string "Internal server error"
// @Router /rewards/ad [post]
func (s *RewardService) ClaimAdReward(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	cfg, err := s.cfg.Current(r.Context())
	if err != nil {
		log.Printf("[REWARD] Config load failed: %v", err)
		SendErrorResponse(w, "Failed to claim reward", http.StatusInternalServerError, nil)
		return
	}
	if !cfg.AdsEnabled {
		SendErrorResponse(w, "Rewarded ads are disabled", http.StatusForbidden, nil)
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

	referenceID := uuid.New().String()
	today := time.Now().Format("2006-01-02")

	tx, err := s.db.Begin()
	if err != nil {
		SendErrorResponse(w, "Failed to claim reward", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	updated, err := s.ledger.AtomicUpdateTx(tx, accountID, func(a *models.Account) error {
		if a.AdsDate != today {
			a.AdsDate = today
			a.AdsToday = 0
		}
		if a.AdsToday >= cfg.AdDailyLimit {
			return ErrDailyLimitReached
		}
		a.AdsToday++
		a.AdsWatched++
		a.Balance += cfg.AdRewardAmount
		a.TotalEarned += cfg.AdRewardAmount
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrDailyLimitReached) {
			log.Printf("[REWARD] Daily ad limit reached for account %s", accountID)
			SendErrorResponse(w, "Daily ad limit reached", http.StatusTooManyRequests, nil)
			return
		}
		log.Printf("[REWARD] Reward credit failed for account %s: %v", accountID, err)
		s.audit.LogError(referenceID, accountID, err)
		SendErrorResponse(w, "Failed to claim reward", http.StatusInternalServerError, nil)
		return
	}

	if err := s.ledger.RecordEntry(tx, referenceID, accountID, cfg.AdRewardAmount, "CREDIT", updated.Balance); err != nil {
		log.Printf("[REWARD] Ledger entry failed for %s: %v", referenceID, err)
		SendErrorResponse(w, "Failed to claim reward", http.StatusInternalServerError, nil)
		return
	}

	_, err = tx.Exec(`
		INSERT INTO transactions (reference_id, account_id, amount, kind, method, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())`,
		referenceID, accountID, cfg.AdRewardAmount, models.TxKindAdReward, "rewarded_ad", models.TxStatusCompleted)
	if err != nil {
		log.Printf("[REWARD] Transaction insert failed for %s: %v", referenceID, err)
		SendErrorResponse(w, "Failed to claim reward", http.StatusInternalServerError, nil)
		return
	}

	if err = tx.Commit(); err != nil {
		SendErrorResponse(w, "Failed to claim reward", http.StatusInternalServerError, nil)
		return
	}

	s.audit.LogBalanceChange(referenceID, accountID, cfg.AdRewardAmount, "AD_REWARD")
	log.Printf("[REWARD] Ad reward credited to account %s (%d/%d today)", accountID, updated.AdsToday, cfg.AdDailyLimit)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"amount":     cfg.AdRewardAmount,
		"balance":    updated.Balance,
		"adsToday":   updated.AdsToday,
		"dailyLimit": cfg.AdDailyLimit,
	})
}

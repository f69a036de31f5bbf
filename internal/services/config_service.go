package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/gemstore/backend/internal/audit"
	"github.com/gemstore/backend/internal/config"
	"github.com/gemstore/backend/internal/models"
)

// configProvider supplies the current application configuration.
type configProvider interface {
	Current(ctx context.Context) (models.AppConfig, error)
}

const configCacheKey = "app_config"
const configCacheTTL = 5 * time.Minute

type ConfigService struct {
	db    *sql.DB
	redis *redis.Client
	audit *audit.Logger
}

func NewConfigService(db *sql.DB, redisClient *redis.Client, auditLogger *audit.Logger) *ConfigService {
	return &ConfigService{
		db:    db,
		redis: redisClient,
		audit: auditLogger,
	}
}

// Current returns the stored configuration merged over the defaults.
// Keys absent from the stored document keep their default values.
func (s *ConfigService) Current(ctx context.Context) (models.AppConfig, error) {
	cfg := config.DefaultApp()

	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, configCacheKey).Bytes(); err == nil {
			if err := json.Unmarshal(cached, &cfg); err == nil {
				return cfg, nil
			}
		}
	}

	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM app_config WHERE id = 1").Scan(&data)
	if err != nil && err != sql.ErrNoRows {
		return cfg, err
	}
	if err == nil {
		// Unmarshalling onto the defaults merges stored keys over them
		if err := json.Unmarshal(data, &cfg); err != nil {
			log.Printf("[CONFIG] Stored config is malformed, serving defaults: %v", err)
			return config.DefaultApp(), nil
		}
	}

	if s.redis != nil {
		if blob, err := json.Marshal(cfg); err == nil {
			s.redis.Set(ctx, configCacheKey, blob, configCacheTTL)
		}
	}

	return cfg, nil
}

// GetConfig serves the public application configuration
// @Summary Get app configuration
// @Description Get feature toggles, reward parameters and contact details
// @Tags config
// @Produce json
// @Success 200 {object} models.AppConfig "Configuration"
// @Router /config [get]
func (s *ConfigService) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.Current(r.Context())
	if err != nil {
		log.Printf("[CONFIG] Config load failed: %v", err)
		SendErrorResponse(w, "Failed to fetch configuration", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cfg)
}

// UpdateConfig replaces the stored configuration document
// @Summary Update app configuration
// @Description Replace the configuration singleton (admin only)
// @Tags admin
// @Accept json
// @Produce json
// @Param request body models.AppConfig true "New configuration"
// @Success 200 {object} models.AppConfig "Updated configuration"
// @Failure 400 {string} string "Invalid request"
// @Failure 500 {string} string "Internal server error"
// @Router /admin/config [put]
func (s *ConfigService) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	adminID, _ := r.Context().Value("userID").(string)

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	cfg := config.DefaultApp()
	if err := dec.Decode(&cfg); err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if cfg.AdRewardAmount < 0 || cfg.AdDailyLimit < 0 || cfg.MinDepositAmount < 0 {
		SendErrorResponse(w, "Amounts must not be negative", http.StatusBadRequest, nil)
		return
	}

	blob, err := json.Marshal(cfg)
	if err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	_, err = s.db.ExecContext(r.Context(), `
		INSERT INTO app_config (id, data, updated_at) VALUES (1, $1, NOW())
		ON CONFLICT (id) DO UPDATE SET data = $1, updated_at = NOW()`, blob)
	if err != nil {
		log.Printf("[CONFIG] Config update failed: %v", err)
		SendErrorResponse(w, "Failed to update configuration", http.StatusInternalServerError, nil)
		return
	}

	if s.redis != nil {
		s.redis.Del(r.Context(), configCacheKey)
	}

	s.audit.LogAdminAction(adminID, "CONFIG_UPDATE", string(blob))
	log.Printf("[CONFIG] Configuration updated by admin %s", adminID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cfg)
}

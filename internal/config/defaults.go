package config

import (
	"os"
	"strconv"
	"time"

	"github.com/gemstore/backend/internal/models"
)

// DefaultApp returns the built-in configuration the stored record is
// merged over. A missing or partial configuration row still yields a
// fully populated AppConfig.
func DefaultApp() models.AppConfig {
	return models.AppConfig{
		StoreEnabled:     true,
		ChatEnabled:      true,
		AdsEnabled:       true,
		AdRewardAmount:   5,
		AdDailyLimit:     10,
		MinDepositAmount: 50,
		ContactEmail:     "support@gemstore.example",
	}
}

type VoucherConfig struct {
	CodeLength           int
	CodeTTL              time.Duration
	MaxGenerationPerUser int
	RateLimitWindow      time.Duration
	MaxBatchSize         int
}

func LoadVoucherConfig() *VoucherConfig {
	return &VoucherConfig{
		CodeLength:           getEnvAsInt("VOUCHER_CODE_LENGTH", 12),
		CodeTTL:              getEnvAsDuration("VOUCHER_CODE_TTL", 30*24*time.Hour),
		MaxGenerationPerUser: getEnvAsInt("VOUCHER_MAX_GEN_PER_USER", 500),
		RateLimitWindow:      getEnvAsDuration("VOUCHER_RATE_LIMIT_WINDOW", 1*time.Hour),
		MaxBatchSize:         getEnvAsInt("VOUCHER_MAX_BATCH", 100),
	}
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultVal
}

package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// User roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a storefront user profile
type User struct {
	ID          int        `json:"id" db:"id"`
	Email       string     `json:"email" db:"email"`
	DisplayName string     `json:"displayName" db:"display_name"`
	AccountID   string     `json:"accountId" db:"account_id"`
	Role        string     `json:"role" db:"role"`
	Suspended   bool       `json:"suspended" db:"suspended"`
	GameID      string     `json:"gameId" db:"game_id"`
	AvatarURL   string     `json:"avatarUrl" db:"avatar_url"`
	LastLogin   *time.Time `json:"last_login,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Account is the balance snapshot mutated only through the ledger service.
// Version implements optimistic locking: a write conditioned on the version
// read loses to any concurrent write and is retried.
type Account struct {
	AccountID      string    `json:"account_id" db:"account_id"`
	Balance        int64     `json:"balance" db:"balance"` // in diamonds
	Version        int       `json:"version" db:"version"`
	TotalDeposited int64     `json:"total_deposited" db:"total_deposited"`
	TotalSpent     int64     `json:"total_spent" db:"total_spent"`
	TotalEarned    int64     `json:"total_earned" db:"total_earned"`
	AdsWatched     int       `json:"ads_watched" db:"ads_watched"`
	AdsToday       int       `json:"ads_today" db:"ads_today"`
	AdsDate        string    `json:"ads_date" db:"ads_date"` // YYYY-MM-DD of the AdsToday counter
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

type LedgerEntry struct {
	ID          int       `json:"id" db:"id"`
	ReferenceID string    `json:"reference_id" db:"reference_id"`
	AccountID   string    `json:"account_id" db:"account_id"`
	Amount      int64     `json:"amount" db:"amount"`
	EntryType   string    `json:"entry_type" db:"entry_type"` // DEBIT or CREDIT
	Balance     int64     `json:"balance" db:"balance"`       // running balance after the entry
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Metadata type for JSONB fields
type Metadata map[string]any

// Value implements driver.Valuer for Metadata
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner for Metadata
func (m *Metadata) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}

	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}

	return json.Unmarshal(b, m)
}

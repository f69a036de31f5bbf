package models

import "time"

// Transaction kinds. Deposits credit balance and total_deposited on
// approval; ad rewards credit balance and total_earned immediately;
// vouchers and adjustments are created already completed.
const (
	TxKindDeposit    = "deposit"
	TxKindAdReward   = "ad_reward"
	TxKindVoucher    = "voucher"
	TxKindAdjustment = "adjustment"
)

const (
	TxStatusPending   = "pending"
	TxStatusCompleted = "completed"
	TxStatusFailed    = "failed"
)

// Transaction records one balance credit: a wallet deposit, an ad-watch
// reward, a voucher redemption, or an admin adjustment.
type Transaction struct {
	ID          int       `json:"id" db:"id"`
	ReferenceID string    `json:"reference_id" db:"reference_id"`
	AccountID   string    `json:"account_id" db:"account_id"`
	Amount      int64     `json:"amount" db:"amount"` // in diamonds
	Kind        string    `json:"kind" db:"kind"`
	Method      string    `json:"method" db:"method"` // payment channel name, or a synthetic marker
	Status      string    `json:"status" db:"status"`
	Metadata    Metadata  `json:"metadata,omitempty" db:"metadata"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

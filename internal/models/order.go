package models

import "time"

// Order statuses. Transitions are admin-driven: pending->completed or
// pending->failed; a failed transition refunds the snapshot price.
const (
	OrderStatusPending   = "pending"
	OrderStatusCompleted = "completed"
	OrderStatusFailed    = "failed"
)

// Order records one purchase attempt against balance. The offer fields are a
// snapshot taken at purchase time; later catalog edits do not affect them.
type Order struct {
	ID            int       `json:"id" db:"id"`
	OrderCode     string    `json:"order_code" db:"order_code"`
	AccountID     string    `json:"account_id" db:"account_id"`
	OfferKind     string    `json:"offer_kind" db:"offer_kind"`
	OfferName     string    `json:"offer_name" db:"offer_name"`
	OfferPrice    int64     `json:"offer_price" db:"offer_price"`
	OfferQuantity int64     `json:"offer_quantity" db:"offer_quantity"`
	Status        string    `json:"status" db:"status"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

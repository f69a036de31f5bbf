package models

import "time"

// Offer kinds carried in the catalog. Specials additionally honor the
// Active flag at purchase time; the other kinds are always purchasable
// while present in the catalog.
const (
	OfferKindDiamondPack = "diamond_pack"
	OfferKindLevelPack   = "level_pack"
	OfferKindMembership  = "membership"
	OfferKindPremiumApp  = "premium_app"
	OfferKindSpecial     = "special"
)

// Offer is a purchasable catalog item. Owned and edited by the admin
// layer; read-only to the purchase flow.
type Offer struct {
	ID        int       `json:"id" db:"id"`
	Kind      string    `json:"kind" db:"kind"`
	Name      string    `json:"name" db:"name"`
	Price     int64     `json:"price" db:"price"`       // in diamonds
	Quantity  int64     `json:"quantity" db:"quantity"` // in-game reward quantity, 0 where not applicable
	Active    bool      `json:"active" db:"active"`
	Position  int       `json:"position" db:"position"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// PaymentChannel is a deposit method shown on the wallet screen.
type PaymentChannel struct {
	ID           int       `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Kind         string    `json:"kind" db:"kind"` // "wallet" or "bank"
	Address      string    `json:"address" db:"address"`
	Instructions string    `json:"instructions" db:"instructions"`
	LogoURL      string    `json:"logo_url" db:"logo_url"`
	Active       bool      `json:"active" db:"active"`
	Position     int       `json:"position" db:"position"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

package coupon

import (
	"errors"
	"time"
)

type Type string

const (
	Percentage Type = "percentage"
	Fixed      Type = "fixed"
)

// Reasons a coupon can fail its eligibility checks. They are user-facing:
// handlers render them verbatim so the client can tell which precondition
// failed.
var (
	ErrNotFound    = errors.New("coupon not found")
	ErrExpired     = errors.New("coupon expired")
	ErrExhausted   = errors.New("coupon usage limit reached")
	ErrMinPurchase = errors.New("minimum purchase not met")
)

type Coupon struct {
	ID          string     `json:"id" db:"coupon_id"`
	Code        string     `json:"code" db:"code"`
	Type        Type       `json:"type" db:"type"`
	Amount      int        `json:"amount" db:"amount"`
	Active      bool       `json:"active" db:"active"`
	ExpiresAt   *time.Time `json:"expiresAt" db:"expires_at"`
	MaxUses     int        `json:"maxUses" db:"max_uses"`
	UsedCount   int        `json:"usedCount" db:"used_count"`
	MinPurchase int        `json:"minPurchase" db:"min_purchase"`
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time  `json:"updatedAt" db:"updated_at"`
	Version     int        `json:"-" db:"version"`
}

type CouponNew struct {
	Code        string     `json:"code" validate:"omitempty,min=3,max=32"`
	Type        Type       `json:"type" validate:"required,oneof=percentage fixed"`
	Amount      int        `json:"amount" validate:"required,gt=0"`
	ExpiresAt   *time.Time `json:"expiresAt"`
	MaxUses     int        `json:"maxUses" validate:"gte=0"`
	MinPurchase int        `json:"minPurchase" validate:"gte=0"`
}

type CouponUp struct {
	Amount      *int       `json:"amount" validate:"omitempty,gt=0"`
	ExpiresAt   *time.Time `json:"expiresAt"`
	MaxUses     *int       `json:"maxUses" validate:"omitempty,gte=0"`
	MinPurchase *int       `json:"minPurchase" validate:"omitempty,gte=0"`
}

// Validation is the outcome of checking a code against a purchase amount.
type Validation struct {
	Valid    bool   `json:"valid"`
	Discount int    `json:"discount"`
	Reason   string `json:"reason,omitempty"`
}

// Check reports the discount the coupon yields on a purchase of amount at
// time now, or the reason it does not qualify. It never mutates the coupon:
// the usage counter moves only through Redeem. An inactive coupon fails the
// same way as a missing one so that soft-disabled codes are not probeable.
func Check(c Coupon, amount int, now time.Time) (int, error) {
	if !c.Active {
		return 0, ErrNotFound
	}
	if c.ExpiresAt != nil && c.ExpiresAt.Before(now) {
		return 0, ErrExpired
	}
	if c.MaxUses > 0 && c.UsedCount >= c.MaxUses {
		return 0, ErrExhausted
	}
	if amount < c.MinPurchase {
		return 0, ErrMinPurchase
	}

	if c.Type == Percentage {
		return amount * c.Amount / 100, nil
	}
	return c.Amount, nil
}

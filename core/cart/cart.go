package cart

import (
	"time"
)

type Cart struct {
	UserID     string    `json:"-" db:"user_id"`
	CouponCode *string   `json:"couponCode" db:"coupon_code"`
	Subtotal   int       `json:"subtotal" db:"subtotal"`
	Discount   int       `json:"discount" db:"discount"`
	Total      int       `json:"total" db:"total"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time `json:"updatedAt" db:"updated_at"`
	Version    int       `json:"-" db:"version"`
	Items      []Item    `json:"items" db:"-"`
}

type Item struct {
	UserID    string    `json:"-" db:"user_id"`
	CourseID  string    `json:"courseId" db:"course_id"`
	UnitPrice int       `json:"unitPrice" db:"unit_price"`
	Quantity  int       `json:"quantity" db:"quantity"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

type ItemNew struct {
	CourseID string `json:"courseId" validate:"required"`
	Quantity int    `json:"quantity" validate:"omitempty,gte=1"`
}

type QuantityUp struct {
	Quantity int `json:"quantity" validate:"required,gte=1"`
}

type CouponApply struct {
	Code string `json:"code" validate:"required"`
}

package cart

import (
	"time"

	"github.com/learnly-dev/learnly/core/coupon"
)

// Pricing is the derived state of a cart: everything in here is a pure
// function of the items and the attached coupon, recomputed on every
// mutation so that stale totals are never observable.
type Pricing struct {
	Subtotal    int
	Discount    int
	Total       int
	CouponValid bool
}

// Price derives the cart totals. A nil coupon means no discount. A coupon
// that fails its checks against the current subtotal yields a zero discount
// and CouponValid false; dropping the attachment is the caller's call, not
// an error. Price is idempotent: same inputs, same output.
func Price(items []Item, cpn *coupon.Coupon, now time.Time) Pricing {
	var p Pricing
	for _, it := range items {
		p.Subtotal += it.UnitPrice * it.Quantity
	}

	if cpn != nil {
		if discount, err := coupon.Check(*cpn, p.Subtotal, now); err == nil {
			p.Discount = discount
			p.CouponValid = true
		}
	}

	p.Total = p.Subtotal - p.Discount
	if p.Total < 0 {
		p.Total = 0
	}

	return p
}

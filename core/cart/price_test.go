package cart

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/learnly-dev/learnly/core/coupon"
)

var now = time.Date(2023, time.March, 10, 12, 0, 0, 0, time.UTC)

func TestPriceWithoutCoupon(t *testing.T) {
	items := []Item{
		{CourseID: "a", UnitPrice: 100, Quantity: 1},
		{CourseID: "b", UnitPrice: 25, Quantity: 4},
	}

	got := Price(items, nil, now)
	want := Pricing{Subtotal: 200, Discount: 0, Total: 200}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected pricing (-want +got):\n%s", diff)
	}
}

func TestPricePercentageTracksSubtotal(t *testing.T) {
	cpn := coupon.Coupon{Code: "SAVE10", Type: coupon.Percentage, Amount: 10, Active: true}

	items := []Item{{CourseID: "a", UnitPrice: 100, Quantity: 1}}
	got := Price(items, &cpn, now)
	want := Pricing{Subtotal: 100, Discount: 10, Total: 90, CouponValid: true}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected pricing (-want +got):\n%s", diff)
	}

	items[0].Quantity = 2
	got = Price(items, &cpn, now)
	want = Pricing{Subtotal: 200, Discount: 20, Total: 180, CouponValid: true}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected pricing after quantity bump (-want +got):\n%s", diff)
	}
}

func TestPriceFixedDiscount(t *testing.T) {
	cpn := coupon.Coupon{Code: "TENOFF", Type: coupon.Fixed, Amount: 10, Active: true}

	items := []Item{{CourseID: "a", UnitPrice: 100, Quantity: 3}}
	got := Price(items, &cpn, now)
	want := Pricing{Subtotal: 300, Discount: 10, Total: 290, CouponValid: true}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected pricing (-want +got):\n%s", diff)
	}
}

func TestPriceNeverNegative(t *testing.T) {
	cpn := coupon.Coupon{Code: "HUGE", Type: coupon.Fixed, Amount: 500, Active: true}

	items := []Item{{CourseID: "a", UnitPrice: 100, Quantity: 1}}
	got := Price(items, &cpn, now)

	if got.Total != 0 {
		t.Fatalf("expected total clamped to 0, but got %d", got.Total)
	}
	if got.Discount != 500 {
		t.Fatalf("expected discount 500, but got %d", got.Discount)
	}
}

func TestPriceDropsIneligibleCoupon(t *testing.T) {
	cpn := coupon.Coupon{Code: "MIN200", Type: coupon.Fixed, Amount: 50, Active: true, MinPurchase: 200}

	items := []Item{
		{CourseID: "a", UnitPrice: 100, Quantity: 1},
		{CourseID: "b", UnitPrice: 150, Quantity: 1},
	}

	got := Price(items, &cpn, now)
	want := Pricing{Subtotal: 250, Discount: 50, Total: 200, CouponValid: true}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected pricing (-want +got):\n%s", diff)
	}

	got = Price(items[:1], &cpn, now)
	want = Pricing{Subtotal: 100, Discount: 0, Total: 100, CouponValid: false}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("expected coupon dropped below minimum purchase (-want +got):\n%s", diff)
	}
}

func TestPriceIdempotent(t *testing.T) {
	cpn := coupon.Coupon{Code: "SAVE20", Type: coupon.Percentage, Amount: 20, Active: true}
	items := []Item{
		{CourseID: "a", UnitPrice: 40, Quantity: 2},
		{CourseID: "b", UnitPrice: 15, Quantity: 1},
	}

	first := Price(items, &cpn, now)
	second := Price(items, &cpn, now)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("pricing is not idempotent (-first +second):\n%s", diff)
	}
}

func TestPriceEmptyCart(t *testing.T) {
	got := Price(nil, nil, now)
	want := Pricing{}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected pricing of empty cart (-want +got):\n%s", diff)
	}
}

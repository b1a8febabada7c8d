package test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/learnly-dev/learnly/core/cart"
	"github.com/learnly-dev/learnly/core/coupon"
)

type cartTest struct {
	*TestEnv
}

func TestCart(t *testing.T) {
	env, err := NewTestEnv(t, "cart_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	rt := &cartTest{env}
	ct := &courseTest{env}

	c1 := ct.createCourseOK(t, 100)
	c2 := ct.createCourseOK(t, 50)

	if err := Login(rt.Server, rt.UserEmail, rt.UserPass); err != nil {
		t.Fatal(err)
	}
	defer Logout(rt.Server)

	crt := rt.showCartOK(t)
	rt.checkTotals(t, crt, 0, 0, 0)

	crt = rt.createItemOK(t, c1.ID, 1)
	rt.checkTotals(t, crt, 100, 0, 100)

	// Re-adding the same course merges into one line item.
	crt = rt.createItemOK(t, c1.ID, 2)
	if len(crt.Items) != 1 {
		t.Fatalf("expected a single merged line item, but got %d", len(crt.Items))
	}
	if crt.Items[0].Quantity != 3 {
		t.Fatalf("expected merged quantity 3, but got %d", crt.Items[0].Quantity)
	}
	rt.checkTotals(t, crt, 300, 0, 300)

	crt = rt.createItemOK(t, c2.ID, 1)
	rt.checkTotals(t, crt, 350, 0, 350)

	crt = rt.updateItemOK(t, c1.ID, 1)
	rt.checkTotals(t, crt, 150, 0, 150)

	rt.updateItemBad(t, c1.ID, 0)
	rt.updateItemBad(t, c1.ID, -2)

	crt = rt.deleteItemOK(t, c2.ID)
	rt.checkTotals(t, crt, 100, 0, 100)

	rt.clearCartOK(t)
	crt = rt.showCartOK(t)
	if len(crt.Items) != 0 {
		t.Fatalf("expected empty cart after clear, but got %d items", len(crt.Items))
	}
	rt.checkTotals(t, crt, 0, 0, 0)
}

func TestCartCoupon(t *testing.T) {
	env, err := NewTestEnv(t, "cart_coupon_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	rt := &cartTest{env}
	ct := &courseTest{env}
	kt := &couponTest{env}

	c1 := ct.createCourseOK(t, 100)

	kt.createCouponOK(t, coupon.CouponNew{
		Code:   "SAVE10",
		Type:   coupon.Percentage,
		Amount: 10,
	})
	kt.createCouponOK(t, coupon.CouponNew{
		Code:        "MIN200",
		Type:        coupon.Fixed,
		Amount:      50,
		MinPurchase: 200,
	})

	if err := Login(rt.Server, rt.UserEmail, rt.UserPass); err != nil {
		t.Fatal(err)
	}
	defer Logout(rt.Server)

	crt := rt.createItemOK(t, c1.ID, 1)
	rt.checkTotals(t, crt, 100, 0, 100)

	// Below the minimum purchase: the cart must stay untouched and the
	// reason must reach the client.
	rt.applyCouponBad(t, "MIN200", "minimum purchase not met")
	crt = rt.showCartOK(t)
	rt.checkTotals(t, crt, 100, 0, 100)

	rt.applyCouponBad(t, "NOPE", "coupon not found")

	crt = rt.applyCouponOK(t, "save10")
	rt.checkTotals(t, crt, 100, 10, 90)

	// Percentage discounts follow the live subtotal.
	crt = rt.createItemOK(t, c1.ID, 1)
	rt.checkTotals(t, crt, 200, 20, 180)

	crt = rt.removeCouponOK(t)
	rt.checkTotals(t, crt, 200, 0, 200)

	// A fixed coupon above its minimum survives until the subtotal
	// drops below it, then detaches silently.
	crt = rt.applyCouponOK(t, "MIN200")
	rt.checkTotals(t, crt, 200, 50, 150)

	crt = rt.updateItemOK(t, c1.ID, 1)
	rt.checkTotals(t, crt, 100, 0, 100)
	if crt.CouponCode != nil {
		t.Fatalf("expected coupon silently dropped, but still attached: %q", *crt.CouponCode)
	}
}

func (rt *cartTest) checkTotals(t *testing.T, crt cart.Cart, subtotal int, discount int, total int) {
	t.Helper()

	if crt.Subtotal != subtotal {
		t.Fatalf("expected subtotal %d, but got %d", subtotal, crt.Subtotal)
	}
	if crt.Discount != discount {
		t.Fatalf("expected discount %d, but got %d", discount, crt.Discount)
	}
	if crt.Total != total {
		t.Fatalf("expected total %d, but got %d", total, crt.Total)
	}
}

func (rt *cartTest) showCartOK(t *testing.T) cart.Cart {
	w, err := rt.Client().Get(rt.URL + "/cart")
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusOK {
		t.Fatalf("can't fetch cart: status code %s", w.Status)
	}

	return rt.decodeCart(t, w)
}

func (rt *cartTest) createItemOK(t *testing.T, courseID string, quantity int) cart.Cart {
	body := fmt.Sprintf(`{"courseId":%q,"quantity":%d}`, courseID, quantity)

	r, err := http.NewRequest(http.MethodPut, rt.URL+"/cart/items", bytes.NewBufferString(body))
	if err != nil {
		t.Fatal(err)
	}

	w, err := rt.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusOK {
		t.Fatalf("can't add cart item: status code %s", w.Status)
	}

	return rt.decodeCart(t, w)
}

func (rt *cartTest) updateItemOK(t *testing.T, courseID string, quantity int) cart.Cart {
	body := fmt.Sprintf(`{"quantity":%d}`, quantity)

	r, err := http.NewRequest(http.MethodPut, rt.URL+"/cart/items/"+courseID, bytes.NewBufferString(body))
	if err != nil {
		t.Fatal(err)
	}

	w, err := rt.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusOK {
		t.Fatalf("can't update cart item: status code %s", w.Status)
	}

	return rt.decodeCart(t, w)
}

func (rt *cartTest) updateItemBad(t *testing.T, courseID string, quantity int) {
	body := fmt.Sprintf(`{"quantity":%d}`, quantity)

	r, err := http.NewRequest(http.MethodPut, rt.URL+"/cart/items/"+courseID, bytes.NewBufferString(body))
	if err != nil {
		t.Fatal(err)
	}

	w, err := rt.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected quantity %d to be rejected, but got status code %s", quantity, w.Status)
	}
}

func (rt *cartTest) deleteItemOK(t *testing.T, courseID string) cart.Cart {
	r, err := http.NewRequest(http.MethodDelete, rt.URL+"/cart/items/"+courseID, nil)
	if err != nil {
		t.Fatal(err)
	}

	w, err := rt.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusOK {
		t.Fatalf("can't delete cart item: status code %s", w.Status)
	}

	return rt.decodeCart(t, w)
}

func (rt *cartTest) applyCouponOK(t *testing.T, code string) cart.Cart {
	body := fmt.Sprintf(`{"code":%q}`, code)

	r, err := http.NewRequest(http.MethodPut, rt.URL+"/cart/coupon", bytes.NewBufferString(body))
	if err != nil {
		t.Fatal(err)
	}

	w, err := rt.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusOK {
		t.Fatalf("can't apply coupon: status code %s", w.Status)
	}

	return rt.decodeCart(t, w)
}

func (rt *cartTest) applyCouponBad(t *testing.T, code string, reason string) {
	body := fmt.Sprintf(`{"code":%q}`, code)

	r, err := http.NewRequest(http.MethodPut, rt.URL+"/cart/coupon", bytes.NewBufferString(body))
	if err != nil {
		t.Fatal(err)
	}

	w, err := rt.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected coupon %q to be rejected, but got status code %s", code, w.Status)
	}

	var er struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(w.Body).Decode(&er); err != nil {
		t.Fatalf("cannot unmarshal error response: %v", err)
	}

	if er.Error != reason {
		t.Fatalf("expected reason %q, but got %q", reason, er.Error)
	}
}

func (rt *cartTest) removeCouponOK(t *testing.T) cart.Cart {
	r, err := http.NewRequest(http.MethodDelete, rt.URL+"/cart/coupon", nil)
	if err != nil {
		t.Fatal(err)
	}

	w, err := rt.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusOK {
		t.Fatalf("can't remove coupon: status code %s", w.Status)
	}

	return rt.decodeCart(t, w)
}

func (rt *cartTest) clearCartOK(t *testing.T) {
	r, err := http.NewRequest(http.MethodDelete, rt.URL+"/cart", nil)
	if err != nil {
		t.Fatal(err)
	}

	w, err := rt.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusNoContent {
		t.Fatalf("can't clear cart: status code %s", w.Status)
	}
}

func (rt *cartTest) decodeCart(t *testing.T, w *http.Response) cart.Cart {
	t.Helper()

	var crt cart.Cart
	if err := json.NewDecoder(w.Body).Decode(&crt); err != nil {
		t.Fatalf("cannot unmarshal cart: %v", err)
	}

	return crt
}

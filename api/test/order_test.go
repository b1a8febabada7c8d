package test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"path"
	"testing"
	"time"

	"github.com/plutov/paypal/v4"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"

	"github.com/learnly-dev/learnly/core/coupon"
	"github.com/learnly-dev/learnly/core/course"
)

type orderTest struct {
	*TestEnv
}

func TestOrder(t *testing.T) {
	env, err := NewTestEnv(t, "order_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	ot := &orderTest{env}
	ct := &courseTest{env}
	rt := &cartTest{env}
	kt := &couponTest{env}

	c1 := ct.createCourseOK(t, 100)
	c2 := ct.createCourseOK(t, 50)
	c3 := ct.createCourseOK(t, 80)

	save10 := kt.createCouponOK(t, coupon.CouponNew{
		Code:   "SAVE10",
		Type:   coupon.Percentage,
		Amount: 10,
	})

	ct.listCoursesOwnedOK(t, []course.Course{})

	if err := Login(ot.Server, ot.UserEmail, ot.UserPass); err != nil {
		t.Fatal(err)
	}
	rt.createItemOK(t, c1.ID, 1)
	rt.createItemOK(t, c2.ID, 1)

	crt := rt.applyCouponOK(t, "SAVE10")
	rt.checkTotals(t, crt, 150, 15, 135)
	if err := Logout(ot.Server); err != nil {
		t.Fatal(err)
	}

	// The charge must match the discounted cart total, not the subtotal.
	ot.Paypal.expectedItems = 2
	ot.Paypal.expectedTotal = 135
	ot.testPaypal(t)

	ct.listCoursesOwnedOK(t, []course.Course{c1, c2})

	if err := Login(ot.Server, ot.UserEmail, ot.UserPass); err != nil {
		t.Fatal(err)
	}
	crt = rt.showCartOK(t)
	if len(crt.Items) != 0 {
		t.Fatalf("expected cart flushed after fulfillment, but got %d items", len(crt.Items))
	}
	rt.checkTotals(t, crt, 0, 0, 0)
	if err := Logout(ot.Server); err != nil {
		t.Fatal(err)
	}

	// Fulfillment is what consumes the coupon use.
	got := kt.showCouponOK(t, save10.ID)
	if got.UsedCount != 1 {
		t.Fatalf("expected used count 1 after fulfillment, but got %d", got.UsedCount)
	}

	if err := Login(ot.Server, ot.UserEmail, ot.UserPass); err != nil {
		t.Fatal(err)
	}
	rt.createItemOK(t, c3.ID, 1)
	if err := Logout(ot.Server); err != nil {
		t.Fatal(err)
	}

	ot.Stripe.expectedTotal = 80
	ot.testStripe(t)

	ct.listCoursesOwnedOK(t, []course.Course{c1, c2, c3})

	ot.listOrdersOK(t, 2)
}

func (ot *orderTest) testPaypal(t *testing.T) {
	if err := Login(ot.Server, ot.UserEmail, ot.UserPass); err != nil {
		t.Fatal(err)
	}
	defer Logout(ot.Server)

	r, err := http.NewRequest(http.MethodPost, ot.URL+"/orders/paypal", nil)
	if err != nil {
		t.Fatal(err)
	}

	w, err := ot.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusOK {
		t.Fatalf("can't create paypal order: status code %s", w.Status)
	}

	var ord paypal.Order
	if err := json.NewDecoder(w.Body).Decode(&ord); err != nil {
		t.Fatalf("cannot unmarshal paypal order: %v", err)
	}

	r, err = http.NewRequest(http.MethodPost, ot.URL+"/orders/paypal/"+ord.ID+"/capture", nil)
	if err != nil {
		t.Fatal(err)
	}

	w, err = ot.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusNoContent {
		t.Fatalf("can't capture paypal order: status code %s", w.Status)
	}
}

func (ot *orderTest) testStripe(t *testing.T) {
	if err := Login(ot.Server, ot.UserEmail, ot.UserPass); err != nil {
		t.Fatal(err)
	}
	defer Logout(ot.Server)

	r, err := http.NewRequest(http.MethodPost, ot.URL+"/orders/stripe", nil)
	if err != nil {
		t.Fatal(err)
	}

	w, err := ot.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusOK {
		t.Fatalf("can't create stripe order: status code %s", w.Status)
	}

	urlBytes, err := io.ReadAll(w.Body)
	if err != nil {
		t.Fatal(err)
	}

	var url string
	if err := json.Unmarshal(urlBytes, &url); err != nil {
		t.Fatal(err)
	}

	obj := map[string]any{
		"id":   path.Base(url),
		"mode": stripe.CheckoutSessionModePayment,
	}

	raw, err := json.Marshal(obj)
	if err != nil {
		t.Fatal(err)
	}

	evt := stripe.Event{
		APIVersion: "2022-11-15",
		Type:       "checkout.session.completed",
		Data: &stripe.EventData{
			Raw: json.RawMessage(raw),
		},
	}

	b, err := json.Marshal(evt)
	if err != nil {
		t.Fatal(err)
	}

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   b,
		Secret:    ot.WebhookSecret,
		Timestamp: time.Now(),
	})

	r, err = http.NewRequest(http.MethodPost, ot.URL+"/orders/stripe/capture", bytes.NewBuffer(b))
	if err != nil {
		t.Fatal(err)
	}
	r.Header.Set("Stripe-Signature", signed.Header)

	w, err = ot.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusNoContent {
		t.Fatalf("can't trigger stripe webhook: status code %s", w.Status)
	}
}

func (ot *orderTest) listOrdersOK(t *testing.T, want int) {
	if err := Login(ot.Server, ot.UserEmail, ot.UserPass); err != nil {
		t.Fatal(err)
	}
	defer Logout(ot.Server)

	w, err := ot.Client().Get(ot.URL + "/orders")
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusOK {
		t.Fatalf("can't list orders: status code %s", w.Status)
	}

	var ords []struct {
		Status     string  `json:"status"`
		CouponCode *string `json:"couponCode"`
		Subtotal   int     `json:"subtotal"`
		Discount   int     `json:"discount"`
		Total      int     `json:"total"`
	}
	if err := json.NewDecoder(w.Body).Decode(&ords); err != nil {
		t.Fatalf("cannot unmarshal orders: %v", err)
	}

	if len(ords) != want {
		t.Fatalf("expected %d orders, but got %d", want, len(ords))
	}

	for _, ord := range ords {
		if ord.Status != "success" {
			t.Fatalf("expected every order fulfilled, but got status %q", ord.Status)
		}
		if ord.Total != ord.Subtotal-ord.Discount {
			t.Fatalf("expected total %d, but got %d", ord.Subtotal-ord.Discount, ord.Total)
		}
		if ord.Discount > 0 && ord.CouponCode == nil {
			t.Fatalf("expected a coupon code on the discounted order")
		}
	}
}

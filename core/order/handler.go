package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/plutov/paypal/v4"
	"github.com/stripe/stripe-go/v74"
	stripecl "github.com/stripe/stripe-go/v74/client"
	"github.com/stripe/stripe-go/v74/webhook"

	"github.com/learnly-dev/learnly/api/web"
	"github.com/learnly-dev/learnly/api/weberr"
	"github.com/learnly-dev/learnly/config"
	"github.com/learnly-dev/learnly/core/cart"
	"github.com/learnly-dev/learnly/core/claims"
	"github.com/learnly-dev/learnly/core/coupon"
	"github.com/learnly-dev/learnly/core/course"
	"github.com/learnly-dev/learnly/database"
	"github.com/learnly-dev/learnly/validate"
)

// checkout loads the priced cart the payment will be built from. The
// totals on the cart row are authoritative: every cart mutation recomputes
// them, so no repricing happens here.
func checkout(ctx context.Context, db *sqlx.DB, userID string) (cart.Cart, []course.Course, error) {
	crt, err := cart.Fetch(ctx, db, userID)
	if err != nil {
		return cart.Cart{}, nil, fmt.Errorf("fetching cart: %w", err)
	}

	if crt.Items, err = cart.FetchItems(ctx, db, userID); err != nil {
		return cart.Cart{}, nil, fmt.Errorf("fetching cart items: %w", err)
	}

	courses := make([]course.Course, 0, len(crt.Items))
	for _, it := range crt.Items {
		c, err := course.Fetch(ctx, db, it.CourseID)
		if err != nil {
			return cart.Cart{}, nil, fmt.Errorf("fetching course[%s]: %w", it.CourseID, err)
		}

		courses = append(courses, c)
	}

	return crt, courses, nil
}

func prepare(ctx context.Context, db *sqlx.DB, userID string, providerID string, crt cart.Cart) error {
	err := database.Transaction(db, func(tx sqlx.ExtContext) error {
		now := time.Now().UTC()
		ord := Order{
			ID:         validate.GenerateID(),
			UserID:     userID,
			ProviderID: providerID,
			Status:     Pending,
			CouponCode: crt.CouponCode,
			Subtotal:   crt.Subtotal,
			Discount:   crt.Discount,
			Total:      crt.Total,
			CreatedAt:  now,
			UpdatedAt:  now,
		}

		if err := Create(ctx, tx, ord); err != nil {
			return fmt.Errorf("creating order: %w", err)
		}

		for _, cit := range crt.Items {
			it := Item{
				OrderID:   ord.ID,
				CourseID:  cit.CourseID,
				Price:     cit.UnitPrice,
				Quantity:  cit.Quantity,
				CreatedAt: now,
			}

			if err := CreateItem(ctx, tx, it); err != nil {
				return fmt.Errorf("creating item: %w", err)
			}
		}

		return nil
	})

	if err != nil {
		return fmt.Errorf("creating the order bound to payment[%s] for user[%s]: %w", providerID, userID, err)
	}
	return nil
}

// fulfill flips the order to success, consumes one use of the coupon the
// order was priced with and flushes the cart, all in one transaction. The
// coupon redeems here, at payment time, so abandoned carts never burn
// quota. Redeem is conditional at the storage layer, so a coupon that hit
// its cap since checkout simply consumes nothing.
func fulfill(ctx context.Context, db *sqlx.DB, providerID string) error {
	ord, err := FetchByProviderID(ctx, db, providerID)
	if err != nil {
		return fmt.Errorf("fetching the order bound to payment[%s]: %w", providerID, err)
	}

	err = database.Transaction(db, func(tx sqlx.ExtContext) error {
		up := StatusUp{
			ID:        ord.ID,
			Status:    Success,
			UpdatedAt: time.Now().UTC(),
		}

		if err = UpdateStatus(ctx, tx, up); err != nil {
			return fmt.Errorf("updating status: %w", err)
		}

		if ord.CouponCode != nil {
			if _, err := coupon.Redeem(ctx, tx, *ord.CouponCode); err != nil {
				return fmt.Errorf("redeeming coupon: %w", err)
			}
		}

		if err = cart.Delete(ctx, tx, ord.UserID); err != nil {
			return fmt.Errorf("flushing cart: %w", err)
		}

		return nil
	})

	if err != nil {
		return fmt.Errorf("fulfilling the order[%s] bound to payment[%s]: %w", ord.ID, providerID, err)
	}
	return nil
}

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		ords, err := ListByUser(ctx, db, clm.UserID)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, ords, http.StatusOK)
	}
}

func HandlePaypalCheckout(db *sqlx.DB, pp *paypal.Client) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		crt, courses, err := checkout(ctx, db, clm.UserID)
		if err != nil {
			return fmt.Errorf("fetching details of cart items: %w", err)
		}

		if len(crt.Items) == 0 {
			err := errors.New("no items to checkout")
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		items := make([]paypal.Item, 0, len(crt.Items))
		for i, it := range crt.Items {
			items = append(items, paypal.Item{
				Quantity:    strconv.Itoa(it.Quantity),
				Name:        courses[i].Name,
				Description: courses[i].Description,

				UnitAmount: &paypal.Money{
					Currency: "USD",
					Value:    strconv.Itoa(it.UnitPrice),
				},
			})
		}

		breakdown := &paypal.PurchaseUnitAmountBreakdown{
			ItemTotal: &paypal.Money{
				Currency: "USD",
				Value:    strconv.Itoa(crt.Subtotal),
			},
		}
		if crt.Discount > 0 {
			breakdown.Discount = &paypal.Money{
				Currency: "USD",
				Value:    strconv.Itoa(crt.Discount),
			}
		}

		units := []paypal.PurchaseUnitRequest{{
			Items: items,

			Amount: &paypal.PurchaseUnitAmount{
				Currency:  "USD",
				Value:     strconv.Itoa(crt.Total),
				Breakdown: breakdown,
			},
		}}

		app := &paypal.ApplicationContext{}

		ord, err := pp.CreateOrder(ctx, "CAPTURE", units, nil, app)
		if err != nil {
			return fmt.Errorf("creating paypal order: %w", err)
		}

		if err := prepare(ctx, db, clm.UserID, ord.ID, crt); err != nil {
			return fmt.Errorf("creating the order on the database: %w", err)
		}

		return web.Respond(ctx, w, ord, http.StatusOK)
	}
}

func HandlePaypalCapture(db *sqlx.DB, pp *paypal.Client) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		providerID := web.Param(r, "id")

		resp, err := pp.CaptureOrder(ctx, providerID, paypal.CaptureOrderRequest{})
		if err != nil {
			return fmt.Errorf("capturing paypal order[%s]: %w", providerID, err)
		}

		if resp.Status != "COMPLETED" {
			return fmt.Errorf("captured order[%s] with status[%s] different from 'COMPLETED'", providerID, resp.Status)
		}

		if err := fulfill(ctx, db, providerID); err != nil {
			return fmt.Errorf("the order was payed but its fulfillment failed: %w", err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func HandleStripeCheckout(db *sqlx.DB, strp *stripecl.API, cfg config.Stripe) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		crt, courses, err := checkout(ctx, db, clm.UserID)
		if err != nil {
			return fmt.Errorf("fetching details of cart items: %w", err)
		}

		if len(crt.Items) == 0 {
			err := errors.New("no items to checkout")
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		// Stripe needs a pre-registered coupon object for session-level
		// discounts, so a discounted cart is charged as one consolidated
		// line at the already-discounted total.
		var li []*stripe.CheckoutSessionLineItemParams
		if crt.Discount > 0 {
			li = []*stripe.CheckoutSessionLineItemParams{{
				Quantity: stripe.Int64(1),

				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:    stripe.String("usd"),
					TaxBehavior: stripe.String("inclusive"),
					UnitAmount:  stripe.Int64(int64(crt.Total) * 100),

					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(fmt.Sprintf("Courses (%d items)", len(crt.Items))),
						Description: stripe.String(fmt.Sprintf("Includes a discount of %d USD", crt.Discount)),
					},
				},
			}}
		} else {
			li = make([]*stripe.CheckoutSessionLineItemParams, 0, len(crt.Items))
			for i, it := range crt.Items {
				li = append(li, &stripe.CheckoutSessionLineItemParams{
					Quantity: stripe.Int64(int64(it.Quantity)),

					PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
						Currency:    stripe.String("usd"),
						TaxBehavior: stripe.String("inclusive"),
						UnitAmount:  stripe.Int64(int64(it.UnitPrice) * 100),

						ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
							Name:        stripe.String(courses[i].Name),
							Description: stripe.String(courses[i].Description),
						},
					},
				})
			}
		}

		params := &stripe.CheckoutSessionParams{
			SuccessURL: stripe.String(cfg.SuccessURL),
			CancelURL:  stripe.String(cfg.CancelURL),
			Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
			LineItems:  li,
		}

		s, err := strp.CheckoutSessions.New(params)
		if err != nil {
			return fmt.Errorf("creating stripe session: %w", err)
		}

		if err := prepare(ctx, db, clm.UserID, s.ID, crt); err != nil {
			return fmt.Errorf("creating the order on the database: %w", err)
		}

		return web.Respond(ctx, w, s.URL, http.StatusOK)
	}
}

func HandleStripeCapture(db *sqlx.DB, cfg config.Stripe) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("cannot read the request body: %w", err))
		}

		sig := r.Header.Get("Stripe-Signature")
		if sig == "" {
			return weberr.BadRequest(errors.New("received stripe event is not signed"))
		}

		event, err := webhook.ConstructEvent(b, sig, cfg.WebhookSecret)
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("cannot construct stripe event: %w", err))
		}

		if event.Type != "checkout.session.completed" {
			return web.Respond(ctx, w, nil, http.StatusNoContent)
		}

		var session stripe.CheckoutSession
		if err = json.Unmarshal(event.Data.Raw, &session); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode stripe event: %w", err))
		}

		if session.Mode != stripe.CheckoutSessionModePayment {
			return web.Respond(ctx, w, nil, http.StatusNoContent)
		}

		if err := fulfill(ctx, db, session.ID); err != nil {
			return fmt.Errorf("the order was payed but its fulfillment failed: %w", err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/learnly-dev/learnly/api/web"
	"github.com/learnly-dev/learnly/api/weberr"
	"github.com/learnly-dev/learnly/core/claims"
	"github.com/learnly-dev/learnly/core/coupon"
	"github.com/learnly-dev/learnly/core/course"
	"github.com/learnly-dev/learnly/database"
	"github.com/learnly-dev/learnly/validate"
)

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		crt, err := FetchOrCreate(ctx, db, clm.UserID)
		if err != nil {
			return fmt.Errorf("fetching cart: %w", err)
		}

		if crt.Items, err = FetchItems(ctx, db, clm.UserID); err != nil {
			return fmt.Errorf("fetching cart items: %w", err)
		}

		return web.Respond(ctx, w, crt, http.StatusOK)
	}
}

func HandleCreateItem(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var in ItemNew
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(in); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		if in.Quantity == 0 {
			in.Quantity = 1
		}

		c, err := course.Fetch(ctx, db, in.CourseID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching course[%s]: %w", in.CourseID, err)
		}

		if _, err := FetchOrCreate(ctx, db, clm.UserID); err != nil {
			return fmt.Errorf("fetching cart: %w", err)
		}

		var crt Cart
		err = database.Transaction(db, func(tx sqlx.ExtContext) error {
			now := time.Now().UTC()
			it := Item{
				UserID:    clm.UserID,
				CourseID:  c.ID,
				UnitPrice: c.Price,
				Quantity:  in.Quantity,
				CreatedAt: now,
				UpdatedAt: now,
			}

			if err := UpsertItem(ctx, tx, it); err != nil {
				return err
			}

			crt, err = reprice(ctx, tx, clm.UserID, now)
			return err
		})
		if err != nil {
			return fmt.Errorf("adding item to cart: %w", err)
		}

		return web.Respond(ctx, w, crt, http.StatusOK)
	}
}

func HandleUpdateItem(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		courseID := web.Param(r, "course_id")
		if err := validate.CheckID(courseID); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		var qu QuantityUp
		if err := web.Decode(w, r, &qu); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(qu); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		var crt Cart
		err = database.Transaction(db, func(tx sqlx.ExtContext) error {
			if err := SetItemQuantity(ctx, tx, clm.UserID, courseID, qu.Quantity); err != nil {
				return err
			}

			crt, err = reprice(ctx, tx, clm.UserID, time.Now().UTC())
			return err
		})
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("updating cart item: %w", err)
		}

		return web.Respond(ctx, w, crt, http.StatusOK)
	}
}

func HandleDeleteItem(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		courseID := web.Param(r, "course_id")
		if err := validate.CheckID(courseID); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		var crt Cart
		err = database.Transaction(db, func(tx sqlx.ExtContext) error {
			if err := DeleteItem(ctx, tx, clm.UserID, courseID); err != nil {
				return err
			}

			crt, err = reprice(ctx, tx, clm.UserID, time.Now().UTC())
			return err
		})
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("removing item from cart: %w", err)
		}

		return web.Respond(ctx, w, crt, http.StatusOK)
	}
}

// HandleApplyCoupon validates the code against the current subtotal and
// attaches it. An ineligible coupon leaves the cart untouched and surfaces
// the exact reason to the caller.
func HandleApplyCoupon(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var ca CouponApply
		if err := web.Decode(w, r, &ca); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(ca); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		crt, err := FetchOrCreate(ctx, db, clm.UserID)
		if err != nil {
			return fmt.Errorf("fetching cart: %w", err)
		}

		items, err := FetchItems(ctx, db, clm.UserID)
		if err != nil {
			return fmt.Errorf("fetching cart items: %w", err)
		}

		subtotal := Price(items, nil, time.Now().UTC()).Subtotal

		cpn, err := coupon.FetchByCode(ctx, db, ca.Code)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				reason := coupon.ErrNotFound
				return weberr.NewError(reason, reason.Error(), http.StatusUnprocessableEntity)
			}
			return fmt.Errorf("fetching coupon: %w", err)
		}

		now := time.Now().UTC()
		if _, err := coupon.Check(cpn, subtotal, now); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		err = database.Transaction(db, func(tx sqlx.ExtContext) error {
			crt.CouponCode = &cpn.Code
			if err := Update(ctx, tx, crt); err != nil {
				return err
			}

			crt, err = reprice(ctx, tx, clm.UserID, now)
			return err
		})
		if err != nil {
			return fmt.Errorf("applying coupon to cart: %w", err)
		}

		return web.Respond(ctx, w, crt, http.StatusOK)
	}
}

func HandleRemoveCoupon(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		crt, err := FetchOrCreate(ctx, db, clm.UserID)
		if err != nil {
			return fmt.Errorf("fetching cart: %w", err)
		}

		err = database.Transaction(db, func(tx sqlx.ExtContext) error {
			crt.CouponCode = nil
			if err := Update(ctx, tx, crt); err != nil {
				return err
			}

			crt, err = reprice(ctx, tx, clm.UserID, time.Now().UTC())
			return err
		})
		if err != nil {
			return fmt.Errorf("removing coupon from cart: %w", err)
		}

		return web.Respond(ctx, w, crt, http.StatusOK)
	}
}

func HandleDelete(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		if err := Delete(ctx, db, clm.UserID); err != nil {
			return fmt.Errorf("clearing cart: %w", err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

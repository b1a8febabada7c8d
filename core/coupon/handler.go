package coupon

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
	"github.com/learnly-dev/learnly/random"
	"github.com/learnly-dev/learnly/validate"
)

type ValidateReq struct {
	Code   string `json:"code" validate:"required"`
	Amount int    `json:"amount" validate:"gte=0"`
}

// Validate resolves the code and runs the eligibility checks against the
// passed amount. A missing row and an ineligible coupon both come back as
// a structured result, never as an error.
func Validate(ctx context.Context, db sqlx.ExtContext, code string, amount int, now time.Time) (Validation, error) {
	c, err := FetchByCode(ctx, db, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Validation{Reason: ErrNotFound.Error()}, nil
		}
		return Validation{}, err
	}

	discount, err := Check(c, amount, now)
	if err != nil {
		return Validation{Reason: err.Error()}, nil
	}

	return Validation{Valid: true, Discount: discount}, nil
}

func HandleValidate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var vr ValidateReq
		if err := web.Decode(w, r, &vr); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(vr); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		val, err := Validate(ctx, db, vr.Code, vr.Amount, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("validating coupon: %w", err)
		}

		return web.Respond(ctx, w, val, http.StatusOK)
	}
}

func HandleCreate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var cn CouponNew
		if err := web.Decode(w, r, &cn); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(cn); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		if cn.Type == Percentage && cn.Amount > 100 {
			err := errors.New("percentage amount cannot exceed 100")
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		if cn.Code == "" {
			cn.Code = random.String(10)
		}

		now := time.Now().UTC()
		c := Coupon{
			ID:          validate.GenerateID(),
			Code:        Normalize(cn.Code),
			Type:        cn.Type,
			Amount:      cn.Amount,
			Active:      true,
			ExpiresAt:   cn.ExpiresAt,
			MaxUses:     cn.MaxUses,
			MinPurchase: cn.MinPurchase,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		if err := Create(ctx, db, c); err != nil {
			return fmt.Errorf("creating coupon: %w", err)
		}

		return web.Respond(ctx, w, c, http.StatusCreated)
	}
}

func HandleUpdate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		var cu CouponUp
		if err := web.Decode(w, r, &cu); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(cu); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		c, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			return err
		}

		if cu.Amount != nil {
			c.Amount = *cu.Amount
		}
		if cu.ExpiresAt != nil {
			c.ExpiresAt = cu.ExpiresAt
		}
		if cu.MaxUses != nil {
			c.MaxUses = *cu.MaxUses
		}
		if cu.MinPurchase != nil {
			c.MinPurchase = *cu.MinPurchase
		}

		if c.Type == Percentage && c.Amount > 100 {
			err := errors.New("percentage amount cannot exceed 100")
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		c.UpdatedAt = time.Now().UTC()

		if err := Update(ctx, db, c); err != nil {
			return fmt.Errorf("updating coupon[%s]: %w", id, err)
		}

		return web.Respond(ctx, w, c, http.StatusOK)
	}
}

// HandleToggle flips the active flag. Deactivation is the preferred way to
// retire a coupon that historical orders still reference.
func HandleToggle(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		c, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			return err
		}

		c.Active = !c.Active
		c.UpdatedAt = time.Now().UTC()

		if err := Update(ctx, db, c); err != nil {
			return fmt.Errorf("toggling coupon[%s]: %w", id, err)
		}

		return web.Respond(ctx, w, c, http.StatusOK)
	}
}

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		c, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			return err
		}

		return web.Respond(ctx, w, c, http.StatusOK)
	}
}

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		cs, err := List(ctx, db)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, cs, http.StatusOK)
	}
}

func HandleDelete(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		if err := Delete(ctx, db, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("deleting coupon[%s]: %w", id, err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

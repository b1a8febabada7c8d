package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/learnly-dev/learnly/core/coupon"
)

func Fetch(ctx context.Context, db sqlx.ExtContext, userID string) (Cart, error) {
	const q = `SELECT * FROM carts WHERE user_id = $1`

	var crt Cart
	if err := sqlx.GetContext(ctx, db, &crt, q, userID); err != nil {
		return Cart{}, fmt.Errorf("selecting cart of user[%s]: %w", userID, err)
	}

	return crt, nil
}

// FetchOrCreate returns the user's cart, lazily creating an empty one on
// first touch.
func FetchOrCreate(ctx context.Context, db sqlx.ExtContext, userID string) (Cart, error) {
	crt, err := Fetch(ctx, db, userID)
	if err == nil {
		return crt, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Cart{}, err
	}

	now := time.Now().UTC()
	crt = Cart{
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	const q = `
	INSERT INTO carts
		(user_id, created_at, updated_at)
	VALUES
		(:user_id, :created_at, :updated_at)
	ON CONFLICT (user_id) DO NOTHING`

	if _, err := sqlx.NamedExecContext(ctx, db, q, crt); err != nil {
		return Cart{}, fmt.Errorf("inserting cart of user[%s]: %w", userID, err)
	}

	return crt, nil
}

func Update(ctx context.Context, db sqlx.ExtContext, crt Cart) error {
	const q = `
	UPDATE carts SET
		coupon_code = :coupon_code,
		subtotal    = :subtotal,
		discount    = :discount,
		total       = :total,
		updated_at  = :updated_at,
		version     = version + 1
	WHERE user_id = :user_id`

	if _, err := sqlx.NamedExecContext(ctx, db, q, crt); err != nil {
		return fmt.Errorf("updating cart of user[%s]: %w", crt.UserID, err)
	}

	return nil
}

func FetchItems(ctx context.Context, db sqlx.ExtContext, userID string) ([]Item, error) {
	const q = `SELECT * FROM cart_items WHERE user_id = $1 ORDER BY created_at`

	its := []Item{}
	if err := sqlx.SelectContext(ctx, db, &its, q, userID); err != nil {
		return nil, fmt.Errorf("selecting cart items of user[%s]: %w", userID, err)
	}

	return its, nil
}

// UpsertItem adds a line item, merging with an existing line for the same
// course by summing quantities. The cart never holds two rows for one
// course.
func UpsertItem(ctx context.Context, db sqlx.ExtContext, it Item) error {
	const q = `
	INSERT INTO cart_items
		(user_id, course_id, unit_price, quantity, created_at, updated_at)
	VALUES
		(:user_id, :course_id, :unit_price, :quantity, :created_at, :updated_at)
	ON CONFLICT (user_id, course_id) DO UPDATE SET
		quantity   = cart_items.quantity + excluded.quantity,
		unit_price = excluded.unit_price,
		updated_at = excluded.updated_at`

	if _, err := sqlx.NamedExecContext(ctx, db, q, it); err != nil {
		return fmt.Errorf("upserting cart item[%s]: %w", it.CourseID, err)
	}

	return nil
}

func SetItemQuantity(ctx context.Context, db sqlx.ExtContext, userID string, courseID string, quantity int) error {
	const q = `
	UPDATE cart_items SET quantity = $3, updated_at = $4
	WHERE user_id = $1 AND course_id = $2`

	res, err := db.ExecContext(ctx, q, userID, courseID, quantity, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("updating quantity of cart item[%s]: %w", courseID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating quantity of cart item[%s]: %w", courseID, err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}

	return nil
}

func DeleteItem(ctx context.Context, db sqlx.ExtContext, userID string, courseID string) error {
	const q = `DELETE FROM cart_items WHERE user_id = $1 AND course_id = $2`

	res, err := db.ExecContext(ctx, q, userID, courseID)
	if err != nil {
		return fmt.Errorf("deleting cart item[%s]: %w", courseID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting cart item[%s]: %w", courseID, err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// Delete empties the cart: items gone, coupon detached, totals zeroed.
func Delete(ctx context.Context, db sqlx.ExtContext, userID string) error {
	const di = `DELETE FROM cart_items WHERE user_id = $1`
	if _, err := db.ExecContext(ctx, di, userID); err != nil {
		return fmt.Errorf("deleting cart items of user[%s]: %w", userID, err)
	}

	const dc = `
	UPDATE carts SET
		coupon_code = NULL,
		subtotal    = 0,
		discount    = 0,
		total       = 0,
		updated_at  = $2,
		version     = version + 1
	WHERE user_id = $1`

	if _, err := db.ExecContext(ctx, dc, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("resetting cart of user[%s]: %w", userID, err)
	}

	return nil
}

// reprice reloads the cart, re-resolves its coupon and persists the freshly
// derived totals. A coupon that stopped qualifying (the subtotal fell below
// its minimum, it expired, it was deactivated) is detached silently. Meant
// to run inside the transaction of the mutation that made totals stale.
func reprice(ctx context.Context, tx sqlx.ExtContext, userID string, now time.Time) (Cart, error) {
	crt, err := Fetch(ctx, tx, userID)
	if err != nil {
		return Cart{}, err
	}

	items, err := FetchItems(ctx, tx, userID)
	if err != nil {
		return Cart{}, err
	}

	var cpn *coupon.Coupon
	if crt.CouponCode != nil {
		c, err := coupon.FetchByCode(ctx, tx, *crt.CouponCode)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return Cart{}, err
		}
		if err == nil {
			cpn = &c
		}
	}

	p := Price(items, cpn, now)
	if !p.CouponValid {
		crt.CouponCode = nil
	}

	crt.Subtotal = p.Subtotal
	crt.Discount = p.Discount
	crt.Total = p.Total
	crt.UpdatedAt = now

	if err := Update(ctx, tx, crt); err != nil {
		return Cart{}, err
	}

	crt.Items = items
	return crt, nil
}

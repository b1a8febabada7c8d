package coupon

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Codes are stored upper-cased, so lookups normalize the same way and
// remain case-insensitive without a functional index.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func Create(ctx context.Context, db sqlx.ExtContext, c Coupon) error {
	const q = `
	INSERT INTO coupons
		(coupon_id, code, type, amount, active, expires_at, max_uses, used_count, min_purchase, created_at, updated_at)
	VALUES
		(:coupon_id, :code, :type, :amount, :active, :expires_at, :max_uses, :used_count, :min_purchase, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, c); err != nil {
		return fmt.Errorf("inserting coupon: %w", err)
	}

	return nil
}

func Update(ctx context.Context, db sqlx.ExtContext, c Coupon) error {
	const q = `
	UPDATE coupons SET
		amount       = :amount,
		active       = :active,
		expires_at   = :expires_at,
		max_uses     = :max_uses,
		min_purchase = :min_purchase,
		updated_at   = :updated_at,
		version      = version + 1
	WHERE coupon_id = :coupon_id AND version = :version`

	if _, err := sqlx.NamedExecContext(ctx, db, q, c); err != nil {
		return fmt.Errorf("updating coupon[%s]: %w", c.ID, err)
	}

	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (Coupon, error) {
	const q = `SELECT * FROM coupons WHERE coupon_id = $1`

	var c Coupon
	if err := sqlx.GetContext(ctx, db, &c, q, id); err != nil {
		return Coupon{}, fmt.Errorf("selecting coupon[%s]: %w", id, err)
	}

	return c, nil
}

func FetchByCode(ctx context.Context, db sqlx.ExtContext, code string) (Coupon, error) {
	const q = `SELECT * FROM coupons WHERE code = $1`

	var c Coupon
	if err := sqlx.GetContext(ctx, db, &c, q, Normalize(code)); err != nil {
		return Coupon{}, fmt.Errorf("selecting coupon by code: %w", err)
	}

	return c, nil
}

func List(ctx context.Context, db sqlx.ExtContext) ([]Coupon, error) {
	const q = `SELECT * FROM coupons ORDER BY created_at`

	cs := []Coupon{}
	if err := sqlx.SelectContext(ctx, db, &cs, q); err != nil {
		return nil, fmt.Errorf("selecting coupons: %w", err)
	}

	return cs, nil
}

func Delete(ctx context.Context, db sqlx.ExtContext, id string) error {
	const q = `DELETE FROM coupons WHERE coupon_id = $1`

	res, err := db.ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("deleting coupon[%s]: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting coupon[%s]: %w", id, err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// Redeem consumes one use of the coupon. The guard runs at write time so
// two concurrent redemptions can never push used_count past max_uses.
// It reports whether a use was actually consumed.
func Redeem(ctx context.Context, db sqlx.ExtContext, code string) (bool, error) {
	const q = `
	UPDATE coupons SET used_count = used_count + 1
	WHERE code = $1 AND (max_uses = 0 OR used_count < max_uses)`

	res, err := db.ExecContext(ctx, q, Normalize(code))
	if err != nil {
		return false, fmt.Errorf("redeeming coupon: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("redeeming coupon: %w", err)
	}

	return n > 0, nil
}

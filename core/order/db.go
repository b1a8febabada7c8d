package order

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

func Create(ctx context.Context, db sqlx.ExtContext, ord Order) error {
	const q = `
	INSERT INTO orders
		(order_id, user_id, provider_id, status, coupon_code, subtotal, discount, total, created_at, updated_at)
	VALUES
		(:order_id, :user_id, :provider_id, :status, :coupon_code, :subtotal, :discount, :total, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, ord); err != nil {
		return fmt.Errorf("inserting order: %w", err)
	}

	return nil
}

func CreateItem(ctx context.Context, db sqlx.ExtContext, it Item) error {
	const q = `
	INSERT INTO order_items
		(order_id, course_id, price, quantity, created_at)
	VALUES
		(:order_id, :course_id, :price, :quantity, :created_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, it); err != nil {
		return fmt.Errorf("inserting order item: %w", err)
	}

	return nil
}

func UpdateStatus(ctx context.Context, db sqlx.ExtContext, up StatusUp) error {
	const q = `
	UPDATE orders SET status = :status, updated_at = :updated_at
	WHERE order_id = :order_id`

	if _, err := sqlx.NamedExecContext(ctx, db, q, up); err != nil {
		return fmt.Errorf("updating status of order[%s]: %w", up.ID, err)
	}

	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (Order, error) {
	const q = `SELECT * FROM orders WHERE order_id = $1`

	var ord Order
	if err := sqlx.GetContext(ctx, db, &ord, q, id); err != nil {
		return Order{}, fmt.Errorf("selecting order[%s]: %w", id, err)
	}

	return ord, nil
}

func FetchByProviderID(ctx context.Context, db sqlx.ExtContext, providerID string) (Order, error) {
	const q = `SELECT * FROM orders WHERE provider_id = $1`

	var ord Order
	if err := sqlx.GetContext(ctx, db, &ord, q, providerID); err != nil {
		return Order{}, fmt.Errorf("selecting order bound to payment[%s]: %w", providerID, err)
	}

	return ord, nil
}

func ListByUser(ctx context.Context, db sqlx.ExtContext, userID string) ([]Order, error) {
	const q = `SELECT * FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	ords := []Order{}
	if err := sqlx.SelectContext(ctx, db, &ords, q, userID); err != nil {
		return nil, fmt.Errorf("selecting orders of user[%s]: %w", userID, err)
	}

	return ords, nil
}

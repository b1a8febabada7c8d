package course

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

func Create(ctx context.Context, db sqlx.ExtContext, c Course) error {
	const q = `
	INSERT INTO courses
		(course_id, name, description, image_url, price, created_at, updated_at)
	VALUES
		(:course_id, :name, :description, :image_url, :price, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, c); err != nil {
		return fmt.Errorf("inserting course: %w", err)
	}

	return nil
}

func Update(ctx context.Context, db sqlx.ExtContext, c Course) error {
	const q = `
	UPDATE courses SET
		name        = :name,
		description = :description,
		image_url   = :image_url,
		price       = :price,
		updated_at  = :updated_at,
		version     = version + 1
	WHERE course_id = :course_id AND version = :version`

	if _, err := sqlx.NamedExecContext(ctx, db, q, c); err != nil {
		return fmt.Errorf("updating course[%s]: %w", c.ID, err)
	}

	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (Course, error) {
	const q = `SELECT * FROM courses WHERE course_id = $1`

	var c Course
	if err := sqlx.GetContext(ctx, db, &c, q, id); err != nil {
		return Course{}, fmt.Errorf("selecting course[%s]: %w", id, err)
	}

	return c, nil
}

func List(ctx context.Context, db sqlx.ExtContext) ([]Course, error) {
	const q = `SELECT * FROM courses ORDER BY created_at`

	cs := []Course{}
	if err := sqlx.SelectContext(ctx, db, &cs, q); err != nil {
		return nil, fmt.Errorf("selecting courses: %w", err)
	}

	return cs, nil
}

// ListOwned returns the courses the user bought through a fulfilled order.
func ListOwned(ctx context.Context, db sqlx.ExtContext, userID string) ([]Course, error) {
	const q = `
	SELECT DISTINCT courses.* FROM courses
	JOIN order_items ON order_items.course_id = courses.course_id
	JOIN orders ON orders.order_id = order_items.order_id
	WHERE orders.user_id = $1 AND orders.status = 'success'`

	cs := []Course{}
	if err := sqlx.SelectContext(ctx, db, &cs, q, userID); err != nil {
		return nil, fmt.Errorf("selecting courses owned by user[%s]: %w", userID, err)
	}

	return cs, nil
}

// Owned reports whether the user bought the course through a fulfilled order.
func Owned(ctx context.Context, db sqlx.ExtContext, courseID string, userID string) (bool, error) {
	const q = `
	SELECT COUNT(*) FROM order_items
	JOIN orders ON orders.order_id = order_items.order_id
	WHERE order_items.course_id = $1 AND orders.user_id = $2 AND orders.status = 'success'`

	var n int
	if err := sqlx.GetContext(ctx, db, &n, q, courseID, userID); err != nil {
		return false, fmt.Errorf("checking ownership of course[%s]: %w", courseID, err)
	}

	return n > 0, nil
}

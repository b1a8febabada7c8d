package lesson

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

func Create(ctx context.Context, db sqlx.ExtContext, l Lesson) error {
	const q = `
	INSERT INTO lessons
		(lesson_id, course_id, index, name, description, free, url, image_url, created_at, updated_at)
	VALUES
		(:lesson_id, :course_id, :index, :name, :description, :free, :url, :image_url, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, l); err != nil {
		return fmt.Errorf("inserting lesson: %w", err)
	}

	return nil
}

func Update(ctx context.Context, db sqlx.ExtContext, l Lesson) error {
	const q = `
	UPDATE lessons SET
		index       = :index,
		name        = :name,
		description = :description,
		free        = :free,
		url         = :url,
		image_url   = :image_url,
		updated_at  = :updated_at,
		version     = version + 1
	WHERE lesson_id = :lesson_id AND version = :version`

	if _, err := sqlx.NamedExecContext(ctx, db, q, l); err != nil {
		return fmt.Errorf("updating lesson[%s]: %w", l.ID, err)
	}

	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (Lesson, error) {
	const q = `SELECT * FROM lessons WHERE lesson_id = $1`

	var l Lesson
	if err := sqlx.GetContext(ctx, db, &l, q, id); err != nil {
		return Lesson{}, fmt.Errorf("selecting lesson[%s]: %w", id, err)
	}

	return l, nil
}

func List(ctx context.Context, db sqlx.ExtContext) ([]Lesson, error) {
	const q = `SELECT * FROM lessons ORDER BY course_id, index`

	ls := []Lesson{}
	if err := sqlx.SelectContext(ctx, db, &ls, q); err != nil {
		return nil, fmt.Errorf("selecting lessons: %w", err)
	}

	return ls, nil
}

func ListByCourse(ctx context.Context, db sqlx.ExtContext, courseID string) ([]Lesson, error) {
	const q = `SELECT * FROM lessons WHERE course_id = $1 ORDER BY index`

	ls := []Lesson{}
	if err := sqlx.SelectContext(ctx, db, &ls, q, courseID); err != nil {
		return nil, fmt.Errorf("selecting lessons of course[%s]: %w", courseID, err)
	}

	return ls, nil
}

func UpsertProgress(ctx context.Context, db sqlx.ExtContext, p Progress) error {
	const q = `
	INSERT INTO lessons_progress
		(lesson_id, user_id, progress, created_at, updated_at)
	VALUES
		(:lesson_id, :user_id, :progress, :created_at, :updated_at)
	ON CONFLICT (lesson_id, user_id) DO UPDATE SET
		progress   = excluded.progress,
		updated_at = excluded.updated_at`

	if _, err := sqlx.NamedExecContext(ctx, db, q, p); err != nil {
		return fmt.Errorf("upserting progress on lesson[%s]: %w", p.LessonID, err)
	}

	return nil
}

func ListProgressByCourse(ctx context.Context, db sqlx.ExtContext, courseID string, userID string) ([]Progress, error) {
	const q = `
	SELECT lessons_progress.* FROM lessons_progress
	JOIN lessons ON lessons.lesson_id = lessons_progress.lesson_id
	WHERE lessons.course_id = $1 AND lessons_progress.user_id = $2`

	ps := []Progress{}
	if err := sqlx.SelectContext(ctx, db, &ps, q, courseID, userID); err != nil {
		return nil, fmt.Errorf("selecting progress on course[%s]: %w", courseID, err)
	}

	return ps, nil
}

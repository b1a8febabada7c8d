package lesson

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
	"github.com/learnly-dev/learnly/core/course"
	"github.com/learnly-dev/learnly/validate"
)

func HandleCreate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var ln LessonNew
		if err := web.Decode(w, r, &ln); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(ln); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		if _, err := course.Fetch(ctx, db, ln.CourseID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			return err
		}

		now := time.Now().UTC()
		l := Lesson{
			ID:          validate.GenerateID(),
			CourseID:    ln.CourseID,
			Index:       ln.Index,
			Name:        ln.Name,
			Description: ln.Description,
			Free:        ln.Free,
			URL:         ln.URL,
			ImageURL:    ln.ImageURL,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		if err := Create(ctx, db, l); err != nil {
			return fmt.Errorf("creating lesson: %w", err)
		}

		return web.Respond(ctx, w, l, http.StatusCreated)
	}
}

func HandleUpdate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		var lu LessonUp
		if err := web.Decode(w, r, &lu); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(lu); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		l, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			return err
		}

		if lu.Index != nil {
			l.Index = *lu.Index
		}
		if lu.Name != nil {
			l.Name = *lu.Name
		}
		if lu.Description != nil {
			l.Description = *lu.Description
		}
		if lu.Free != nil {
			l.Free = *lu.Free
		}
		if lu.URL != nil {
			l.URL = *lu.URL
		}
		if lu.ImageURL != nil {
			l.ImageURL = *lu.ImageURL
		}
		l.UpdatedAt = time.Now().UTC()

		if err := Update(ctx, db, l); err != nil {
			return fmt.Errorf("updating lesson[%s]: %w", id, err)
		}

		return web.Respond(ctx, w, l, http.StatusOK)
	}
}

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		l, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			return err
		}

		return web.Respond(ctx, w, l, http.StatusOK)
	}
}

// HandleShowFree returns the playable content of a lesson flagged as a
// free preview.
func HandleShowFree(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		l, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			return err
		}

		if !l.Free {
			return weberr.NotAuthorized(errors.New("lesson is not a free preview"))
		}

		full := struct {
			Lesson
			URL string `json:"url"`
		}{l, l.URL}

		return web.Respond(ctx, w, full, http.StatusOK)
	}
}

// HandleShowFull returns the playable content of a lesson to users owning
// its course.
func HandleShowFull(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		l, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			return err
		}

		if !l.Free {
			owned, err := course.Owned(ctx, db, l.CourseID, clm.UserID)
			if err != nil {
				return err
			}
			if !owned {
				return weberr.NotAuthorized(errors.New("user does not own the course"))
			}
		}

		full := struct {
			Lesson
			URL string `json:"url"`
		}{l, l.URL}

		return web.Respond(ctx, w, full, http.StatusOK)
	}
}

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		ls, err := List(ctx, db)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, ls, http.StatusOK)
	}
}

func HandleListByCourse(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		courseID := web.Param(r, "course_id")
		if err := validate.CheckID(courseID); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		ls, err := ListByCourse(ctx, db, courseID)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, ls, http.StatusOK)
	}
}

func HandleUpdateProgress(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		var pu ProgressUp
		if err := web.Decode(w, r, &pu); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(pu); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		if _, err := Fetch(ctx, db, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			return err
		}

		now := time.Now().UTC()
		p := Progress{
			LessonID:  id,
			UserID:    clm.UserID,
			Progress:  pu.Progress,
			CreatedAt: now,
			UpdatedAt: now,
		}

		if err := UpsertProgress(ctx, db, p); err != nil {
			return fmt.Errorf("updating progress: %w", err)
		}

		return web.Respond(ctx, w, p, http.StatusOK)
	}
}

func HandleListProgressByCourse(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		courseID := web.Param(r, "course_id")
		if err := validate.CheckID(courseID); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		ps, err := ListProgressByCourse(ctx, db, courseID, clm.UserID)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, ps, http.StatusOK)
	}
}

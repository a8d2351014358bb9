package progress

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/api/web"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/api/weberr"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/cache"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/core/claims"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/core/content"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/core/enrollment"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/validate"
	"github.com/jmoiron/sqlx"
)

func summaryKey(userID string, courseID string) string {
	return fmt.Sprintf("progress:summary:%s:%s", userID, courseID)
}

// HandleRecord is the generic write endpoint; the typed endpoints below
// are wrappers that derive the same shape from their policies.
func HandleRecord(db *sqlx.DB, c *cache.Cache) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var up EntryUp
		if err := web.Decode(w, r, &up); err != nil {
			return weberr.BadRequest(err)
		}
		return record(ctx, w, db, c, up)
	}
}

func HandleVideo(db *sqlx.DB, c *cache.Cache) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var v VideoUp
		if err := web.Decode(w, r, &v); err != nil {
			return weberr.BadRequest(err)
		}

		if err := validate.Check(v); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}
		return record(ctx, w, db, c, v.EntryUp())
	}
}

func HandleQuiz(db *sqlx.DB, c *cache.Cache) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var q QuizUp
		if err := web.Decode(w, r, &q); err != nil {
			return weberr.BadRequest(err)
		}

		if err := validate.Check(q); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}
		return record(ctx, w, db, c, q.EntryUp())
	}
}

func HandleDocument(db *sqlx.DB, c *cache.Cache) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var d DocumentUp
		if err := web.Decode(w, r, &d); err != nil {
			return weberr.BadRequest(err)
		}

		if err := validate.Check(d); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}
		return record(ctx, w, db, c, d.EntryUp())
	}
}

func record(ctx context.Context, w http.ResponseWriter, db *sqlx.DB, c *cache.Cache, up EntryUp) error {
	clm, err := claims.Get(ctx)
	if err != nil {
		return weberr.NotAuthorized(errors.New("user not authenticated"))
	}

	if err := validate.Check(up); err != nil {
		return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
	}

	now := time.Now().UTC()
	e := Entry{
		UserID:           clm.UserID,
		ContentID:        up.ContentID,
		ModuleID:         up.ModuleID,
		CourseID:         up.CourseID,
		Progress:         up.Progress,
		Completed:        up.Completed,
		LastPosition:     up.LastPosition,
		TimeSpentSeconds: up.TimeSpentSeconds,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if up.Completed {
		e.CompletedAt = &now
	}

	if err := Upsert(ctx, db, e); err != nil {
		return err
	}

	c.Delete(ctx, summaryKey(clm.UserID, up.CourseID))

	e, err = Fetch(ctx, db, clm.UserID, up.ContentID)
	if err != nil {
		return err
	}
	return web.Respond(ctx, w, e, http.StatusOK)
}

// HandleShowContent returns the entry. Content the user simply hasn't
// touched yet reads as the zero "not started" state, never a 404.
func HandleShowContent(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		contentID := web.Param(r, "content_id")
		if err := validate.CheckID(contentID); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		e, err := Fetch(ctx, db, clm.UserID, contentID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return web.Respond(ctx, w, Entry{UserID: clm.UserID, ContentID: contentID}, http.StatusOK)
			}
			return err
		}

		return web.Respond(ctx, w, e, http.StatusOK)
	}
}

func HandleListByModule(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		moduleID := web.Param(r, "module_id")
		if err := validate.CheckID(moduleID); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		es, err := FetchByModule(ctx, db, clm.UserID, moduleID)
		if err != nil {
			return err
		}
		return web.Respond(ctx, w, es, http.StatusOK)
	}
}

func HandleListByCourse(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		courseID := web.Param(r, "course_id")
		if err := validate.CheckID(courseID); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		es, err := FetchByCourse(ctx, db, clm.UserID, courseID)
		if err != nil {
			return err
		}
		return web.Respond(ctx, w, es, http.StatusOK)
	}
}

func HandleListByUser(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		es, err := FetchByUser(ctx, db, clm.UserID)
		if err != nil {
			return err
		}
		return web.Respond(ctx, w, es, http.StatusOK)
	}
}

// HandleSummary computes the course roll-up, serving from the cache when
// possible and mirroring the result onto the enrollment row.
func HandleSummary(db *sqlx.DB, c *cache.Cache) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		courseID := web.Param(r, "course_id")
		if err := validate.CheckID(courseID); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		key := summaryKey(clm.UserID, courseID)

		var s Summary
		if c.Get(ctx, key, &s) {
			return web.Respond(ctx, w, s, http.StatusOK)
		}

		total, err := content.CountByCourse(ctx, db, courseID)
		if err != nil {
			return err
		}

		es, err := FetchByCourse(ctx, db, clm.UserID, courseID)
		if err != nil {
			return err
		}

		s = Summarize(courseID, total, es)

		// best effort on both; the summary itself is already correct
		c.Set(ctx, key, s)
		_ = enrollment.MirrorProgress(ctx, db, clm.UserID, courseID, s.OverallProgress)

		return web.Respond(ctx, w, s, http.StatusOK)
	}
}

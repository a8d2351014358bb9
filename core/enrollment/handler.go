package enrollment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/api/web"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/api/weberr"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/core/claims"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/core/course"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/database"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/validate"
	"github.com/jmoiron/sqlx"
)

// HandleEnroll enrolls the current user directly. Only free courses may
// be enrolled this way; paid courses go through checkout and are granted
// by the payment webhook.
func HandleEnroll(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var en EnrollmentNew
		if err := web.Decode(w, r, &en); err != nil {
			return weberr.BadRequest(err)
		}

		if err := validate.Check(en); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		crs, err := course.Fetch(ctx, db, en.CourseID)
		if err != nil {
			if errors.Is(err, course.ErrNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}

		if !crs.Published {
			return weberr.NotFound(errors.New("course is not published"))
		}

		if crs.Price > 0 {
			err := errors.New("course requires payment")
			return weberr.Unprocessable(err, err.Error())
		}

		now := time.Now().UTC()
		e := Enrollment{
			ID:         validate.GenerateID(),
			UserID:     clm.UserID,
			CourseID:   crs.ID,
			Status:     Active,
			Progress:   0,
			EnrolledAt: now,
			UpdatedAt:  now,
		}

		if err := Create(ctx, db, e); err != nil {
			if database.IsUniqueViolation(err) {
				return weberr.Conflict(err, "already enrolled in this course")
			}
			return err
		}

		return web.Respond(ctx, w, e, http.StatusCreated)
	}
}

// HandleCheck is read-only: it answers whether the current user holds an
// enrollment for the course, with the row when present.
func HandleCheck(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		courseID := web.Param(r, "course_id")
		if err := validate.CheckID(courseID); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		e, err := FetchByUserCourse(ctx, db, clm.UserID, courseID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return web.Respond(ctx, w, CheckResult{IsEnrolled: false}, http.StatusOK)
			}
			return err
		}

		return web.Respond(ctx, w, CheckResult{IsEnrolled: true, Enrollment: &e}, http.StatusOK)
	}
}

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		es, err := FetchAllByUser(ctx, db, clm.UserID)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, es, http.StatusOK)
	}
}

func HandleUpdateStatus(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		e, err := fetchOwned(ctx, db, web.Param(r, "id"))
		if err != nil {
			return err
		}

		var up StatusUp
		if err := web.Decode(w, r, &up); err != nil {
			return weberr.BadRequest(err)
		}

		if err := validate.Check(up); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		if !CanTransition(e.Status, up.Status) {
			err := fmt.Errorf("cannot transition enrollment from %q to %q", e.Status, up.Status)
			return weberr.Unprocessable(err, err.Error())
		}

		if err := UpdateStatus(ctx, db, e.ID, up.Status, time.Now().UTC()); err != nil {
			return err
		}

		e, err = Fetch(ctx, db, e.ID)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, e, http.StatusOK)
	}
}

// HandleUpdateProgress overwrites the course-level progress number. The
// caller is responsible for aggregating correctly; this endpoint does
// not re-derive the value from content progress. Completed enrollments
// are left untouched.
func HandleUpdateProgress(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		e, err := fetchOwned(ctx, db, web.Param(r, "id"))
		if err != nil {
			return err
		}

		var up ProgressUp
		if err := web.Decode(w, r, &up); err != nil {
			return weberr.BadRequest(err)
		}

		if err := validate.Check(up); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		if err := UpdateProgress(ctx, db, e.ID, up.Progress, time.Now().UTC()); err != nil {
			return err
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func HandleRegisterAccess(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		e, err := fetchOwned(ctx, db, web.Param(r, "id"))
		if err != nil {
			return err
		}

		if err := RegisterAccess(ctx, db, e.ID, time.Now().UTC()); err != nil {
			return err
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func fetchOwned(ctx context.Context, db *sqlx.DB, id string) (Enrollment, error) {
	if err := validate.CheckID(id); err != nil {
		return Enrollment{}, weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
	}

	clm, err := claims.Get(ctx)
	if err != nil {
		return Enrollment{}, weberr.NotAuthorized(errors.New("user not authenticated"))
	}

	e, err := Fetch(ctx, db, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Enrollment{}, weberr.NotFound(err)
		}
		return Enrollment{}, err
	}

	if e.UserID != clm.UserID && !claims.IsAdmin(ctx) {
		return Enrollment{}, weberr.Forbidden(errors.New("enrollment belongs to another user"))
	}
	return e, nil
}

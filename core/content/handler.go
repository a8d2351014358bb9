package content

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/api/web"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/api/weberr"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/core/claims"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/core/course"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/core/enrollment"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/validate"
	"github.com/jmoiron/sqlx"
)

func HandleCreateModule(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var mn ModuleNew
		if err := web.Decode(w, r, &mn); err != nil {
			return weberr.BadRequest(err)
		}

		if err := validate.Check(mn); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		if err := checkInstructs(ctx, db, mn.CourseID); err != nil {
			return err
		}

		now := time.Now().UTC()
		m := Module{
			ID:          validate.GenerateID(),
			CourseID:    mn.CourseID,
			Index:       mn.Index,
			Name:        mn.Name,
			Description: mn.Description,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		if err := CreateModule(ctx, db, m); err != nil {
			return err
		}

		return web.Respond(ctx, w, m, http.StatusCreated)
	}
}

func HandleListModules(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		courseID := web.Param(r, "course_id")
		if err := validate.CheckID(courseID); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		ms, err := FetchModulesByCourse(ctx, db, courseID)
		if err != nil {
			return err
		}
		return web.Respond(ctx, w, ms, http.StatusOK)
	}
}

func HandleCreateItem(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var in ItemNew
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(err)
		}

		if err := validate.Check(in); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		m, err := FetchModule(ctx, db, in.ModuleID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}

		if err := checkInstructs(ctx, db, m.CourseID); err != nil {
			return err
		}

		now := time.Now().UTC()
		it := Item{
			ID:              validate.GenerateID(),
			ModuleID:        m.ID,
			CourseID:        m.CourseID,
			Index:           in.Index,
			Name:            in.Name,
			Kind:            in.Kind,
			Free:            in.Free,
			URL:             in.URL,
			DurationSeconds: in.DurationSeconds,
			CreatedAt:       now,
			UpdatedAt:       now,
		}

		if err := CreateItem(ctx, db, it); err != nil {
			return err
		}

		return web.Respond(ctx, w, it, http.StatusCreated)
	}
}

func HandleUpdateItem(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		var iu ItemUp
		if err := web.Decode(w, r, &iu); err != nil {
			return weberr.BadRequest(err)
		}

		if err := validate.Check(iu); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		it, err := FetchItem(ctx, db, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}

		if err := checkInstructs(ctx, db, it.CourseID); err != nil {
			return err
		}

		if iu.Index != nil {
			it.Index = *iu.Index
		}
		if iu.Name != nil {
			it.Name = *iu.Name
		}
		if iu.Free != nil {
			it.Free = *iu.Free
		}
		if iu.URL != nil {
			it.URL = *iu.URL
		}
		if iu.DurationSeconds != nil {
			it.DurationSeconds = iu.DurationSeconds
		}

		it.UpdatedAt = time.Now().UTC()
		if err := UpdateItem(ctx, db, it); err != nil {
			return err
		}

		return web.Respond(ctx, w, it, http.StatusOK)
	}
}

func HandleListByModule(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		moduleID := web.Param(r, "module_id")
		if err := validate.CheckID(moduleID); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		its, err := FetchItemsByModule(ctx, db, moduleID)
		if err != nil {
			return err
		}
		return web.Respond(ctx, w, its, http.StatusOK)
	}
}

func HandleListByCourse(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		courseID := web.Param(r, "course_id")
		if err := validate.CheckID(courseID); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		its, err := FetchItemsByCourse(ctx, db, courseID)
		if err != nil {
			return err
		}
		return web.Respond(ctx, w, its, http.StatusOK)
	}
}

// HandleShowItem returns the item with its media URL. Free items are
// open; everything else requires a non-cancelled enrollment or authorship.
func HandleShowItem(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		it, err := FetchItem(ctx, db, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}

		full := struct {
			Item
			URL string `json:"url"`
		}{it, it.URL}

		if it.Free {
			return web.Respond(ctx, w, full, http.StatusOK)
		}

		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		crs, err := course.Fetch(ctx, db, it.CourseID)
		if err != nil {
			return err
		}

		if crs.InstructorID != clm.UserID && !claims.IsAdmin(ctx) {
			e, err := enrollment.FetchByUserCourse(ctx, db, clm.UserID, it.CourseID)
			if err != nil {
				if errors.Is(err, enrollment.ErrNotFound) {
					return weberr.Forbidden(errors.New("content requires enrollment"))
				}
				return err
			}
			if e.Status == enrollment.Cancelled {
				return weberr.Forbidden(errors.New("enrollment was cancelled"))
			}
		}

		return web.Respond(ctx, w, full, http.StatusOK)
	}
}

func checkInstructs(ctx context.Context, db *sqlx.DB, courseID string) error {
	clm, err := claims.Get(ctx)
	if err != nil {
		return weberr.NotAuthorized(errors.New("user not authenticated"))
	}

	crs, err := course.Fetch(ctx, db, courseID)
	if err != nil {
		if errors.Is(err, course.ErrNotFound) {
			return weberr.NotFound(err)
		}
		return err
	}

	if crs.InstructorID != clm.UserID && clm.Role != claims.RoleAdmin {
		return weberr.Forbidden(errors.New("course belongs to another instructor"))
	}
	return nil
}

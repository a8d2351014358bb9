package user

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/api/web"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/api/weberr"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/core/claims"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/database"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/validate"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

func HandleShowCurrent(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		u, err := Fetch(ctx, db, clm.UserID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}

		return web.Respond(ctx, w, u, http.StatusOK)
	}
}

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		if !claims.IsAdmin(ctx) && !claims.IsUser(ctx, id) {
			return weberr.Forbidden(errors.New("cannot read other users"))
		}

		u, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}

		return web.Respond(ctx, w, u, http.StatusOK)
	}
}

// HandleCreate lets admins provision users with an explicit role,
// typically instructor accounts.
func HandleCreate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var un UserNew
		if err := web.Decode(w, r, &un); err != nil {
			return weberr.BadRequest(err)
		}

		if err := validate.Check(un); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(un.Password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		u := User{
			ID:           validate.GenerateID(),
			Name:         un.Name,
			Email:        un.Email,
			Role:         un.Role,
			PasswordHash: hash,
			Active:       true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		if err := Create(ctx, db, u); err != nil {
			if database.IsUniqueViolation(err) {
				return weberr.Conflict(err, "a user with this email already exists")
			}
			return err
		}

		return web.Respond(ctx, w, u, http.StatusCreated)
	}
}

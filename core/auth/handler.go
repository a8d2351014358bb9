package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/api/web"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/api/weberr"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/core/claims"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/core/user"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/database"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/validate"
	"github.com/alexedwards/scs/v2"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

func HandleSignup(db *sqlx.DB, session *scs.SessionManager, activationRequired bool) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var us user.UserSignup
		if err := web.Decode(w, r, &us); err != nil {
			return weberr.BadRequest(err)
		}

		if err := validate.Check(us); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(us.Password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		u := user.User{
			ID:           validate.GenerateID(),
			Name:         us.Name,
			Email:        us.Email,
			Role:         claims.RoleUser,
			PasswordHash: hash,
			Active:       !activationRequired,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		if err := user.Create(ctx, db, u); err != nil {
			if database.IsUniqueViolation(err) {
				return weberr.Conflict(err, "a user with this email already exists")
			}
			return err
		}

		if u.Active {
			if err := Login(ctx, session, u.ID, u.Role); err != nil {
				return err
			}
		}

		return web.Respond(ctx, w, u, http.StatusCreated)
	}
}

func HandleLogin(db *sqlx.DB, session *scs.SessionManager) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var ul user.UserLogin
		if err := web.Decode(w, r, &ul); err != nil {
			return weberr.BadRequest(err)
		}

		if err := validate.Check(ul); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		u, err := user.FetchByEmail(ctx, db, ul.Email)
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				return weberr.NotAuthorized(errors.New("invalid credentials"))
			}
			return err
		}

		if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(ul.Password)); err != nil {
			return weberr.NotAuthorized(errors.New("invalid credentials"))
		}

		if !u.Active {
			return weberr.Forbidden(errors.New("account is not activated"))
		}

		if err := Login(ctx, session, u.ID, u.Role); err != nil {
			return err
		}

		return web.Respond(ctx, w, u, http.StatusOK)
	}
}

func HandleLogout(session *scs.SessionManager) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		if err := Logout(ctx, session); err != nil {
			return err
		}
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

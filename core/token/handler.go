package token

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/api/background"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/api/web"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/api/weberr"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/core/auth"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/core/user"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/validate"
	"github.com/alexedwards/scs/v2"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

type TokenNew struct {
	Email string `json:"email" validate:"required,email"`
	Scope string `json:"scope" validate:"required,oneof=activation recovery"`
}

type Activation struct {
	Token string `json:"token" validate:"required"`
}

type Recovery struct {
	Token           string `json:"token" validate:"required"`
	Password        string `json:"password" validate:"required,gte=8,lte=72"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

// HandleToken mails a fresh single-use token. The response is 202 even
// when no account matches, so the endpoint can't be used to probe
// registered emails.
func HandleToken(db *sqlx.DB, mailer Mailer, timeout time.Duration, bg *background.Background) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var tn TokenNew
		if err := web.Decode(w, r, &tn); err != nil {
			return weberr.BadRequest(err)
		}

		if err := validate.Check(tn); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		u, err := user.FetchByEmail(ctx, db, tn.Email)
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				return web.Respond(ctx, w, nil, http.StatusAccepted)
			}
			return err
		}

		plain, tk, err := Generate(u.ID, tn.Scope, timeout)
		if err != nil {
			return err
		}

		if err := DeleteByUser(ctx, db, u.ID, tn.Scope); err != nil {
			return err
		}
		if err := Create(ctx, db, tk); err != nil {
			return err
		}

		bg.Add(func() error {
			if tn.Scope == ScopeActivation {
				return mailer.SendActivationToken(u.Email, plain)
			}
			return mailer.SendRecoveryToken(u.Email, plain)
		})

		return web.Respond(ctx, w, nil, http.StatusAccepted)
	}
}

func HandleActivation(db *sqlx.DB, session *scs.SessionManager) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var act Activation
		if err := web.Decode(w, r, &act); err != nil {
			return weberr.BadRequest(err)
		}

		if err := validate.Check(act); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		u, err := FetchUser(ctx, db, act.Token, ScopeActivation)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
			}
			return err
		}

		u.Active = true
		u.UpdatedAt = time.Now().UTC()
		if err := user.Update(ctx, db, u); err != nil {
			return err
		}

		if err := DeleteByUser(ctx, db, u.ID, ScopeActivation); err != nil {
			return err
		}

		if err := auth.Login(ctx, session, u.ID, u.Role); err != nil {
			return err
		}

		return web.Respond(ctx, w, u, http.StatusOK)
	}
}

func HandleRecovery(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var rec Recovery
		if err := web.Decode(w, r, &rec); err != nil {
			return weberr.BadRequest(err)
		}

		if err := validate.Check(rec); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		u, err := FetchUser(ctx, db, rec.Token, ScopeRecovery)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
			}
			return err
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(rec.Password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}

		u.PasswordHash = hash
		u.UpdatedAt = time.Now().UTC()
		if err := user.Update(ctx, db, u); err != nil {
			return err
		}

		if err := DeleteByUser(ctx, db, u.ID, ScopeRecovery); err != nil {
			return err
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

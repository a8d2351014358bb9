package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/api/web"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/api/weberr"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/core/claims"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/core/user"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/random"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/validate"
	"github.com/alexedwards/scs/v2"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
)

const oauthStateKey = "oauth_state"

type Provider struct {
	conf     *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

type ProviderConfig struct {
	Name        string
	Client      string
	Secret      string
	URL         string
	RedirectURL string
}

// MakeProviders discovers each issuer and prepares its oauth2 config.
func MakeProviders(ctx context.Context, cfgs []ProviderConfig) (map[string]Provider, error) {
	provs := make(map[string]Provider, len(cfgs))
	for _, cfg := range cfgs {
		p, err := oidc.NewProvider(ctx, cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("discovering provider[%s]: %w", cfg.Name, err)
		}

		provs[cfg.Name] = Provider{
			conf: &oauth2.Config{
				ClientID:     cfg.Client,
				ClientSecret: cfg.Secret,
				Endpoint:     p.Endpoint(),
				RedirectURL:  cfg.RedirectURL,
				Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
			},
			verifier: p.Verifier(&oidc.Config{ClientID: cfg.Client}),
		}
	}
	return provs, nil
}

func HandleOauthLogin(session *scs.SessionManager, provs map[string]Provider) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		prov, ok := provs[web.Param(r, "provider")]
		if !ok {
			return weberr.NotFound(errors.New("unknown oauth provider"))
		}

		state, err := random.StringSecure(32)
		if err != nil {
			return fmt.Errorf("generating oauth state: %w", err)
		}
		session.Put(ctx, oauthStateKey, state)

		http.Redirect(w, r, prov.conf.AuthCodeURL(state), http.StatusTemporaryRedirect)
		return nil
	}
}

func HandleOauthCallback(db *sqlx.DB, session *scs.SessionManager, provs map[string]Provider, redirectURL string) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		prov, ok := provs[web.Param(r, "provider")]
		if !ok {
			return weberr.NotFound(errors.New("unknown oauth provider"))
		}

		state := session.PopString(ctx, oauthStateKey)
		if state == "" || state != r.URL.Query().Get("state") {
			return weberr.BadRequest(errors.New("oauth state mismatch"))
		}

		token, err := prov.conf.Exchange(ctx, r.URL.Query().Get("code"))
		if err != nil {
			return fmt.Errorf("exchanging oauth code: %w", err)
		}

		rawID, ok := token.Extra("id_token").(string)
		if !ok {
			return weberr.BadRequest(errors.New("oauth token has no id_token"))
		}

		idToken, err := prov.verifier.Verify(ctx, rawID)
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("verifying id token: %w", err))
		}

		var ext struct {
			Email string `json:"email"`
			Name  string `json:"name"`
		}
		if err := idToken.Claims(&ext); err != nil {
			return fmt.Errorf("extracting id token claims: %w", err)
		}

		u, err := user.FetchByEmail(ctx, db, ext.Email)
		if err != nil {
			if !errors.Is(err, user.ErrNotFound) {
				return err
			}

			// first login through this provider
			pass, err := random.StringSecure(32)
			if err != nil {
				return err
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
			if err != nil {
				return err
			}

			now := time.Now().UTC()
			u = user.User{
				ID:           validate.GenerateID(),
				Name:         ext.Name,
				Email:        ext.Email,
				Role:         claims.RoleUser,
				PasswordHash: hash,
				Active:       true,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if err := user.Create(ctx, db, u); err != nil {
				return err
			}
		}

		if err := Login(ctx, session, u.ID, u.Role); err != nil {
			return err
		}

		http.Redirect(w, r, redirectURL, http.StatusTemporaryRedirect)
		return nil
	}
}

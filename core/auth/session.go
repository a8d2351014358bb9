package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/api/web"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/core/claims"
	"github.com/alexedwards/scs/v2"
)

const SessionCookie = "session"

const (
	userIDKey = "user_id"
	roleKey   = "user_role"
)

// LoadAndSave adapts the scs session manager to the web.Handler chain.
// The session token is read from the Authorization bearer header first,
// falling back to the session cookie, and committed lazily on the first
// write so handlers stay free to set their own headers.
func LoadAndSave(session *scs.SessionManager) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			token := bearerToken(r)
			if token == "" {
				if cookie, err := r.Cookie(SessionCookie); err == nil {
					token = cookie.Value
				}
			}

			ctx, err := session.Load(ctx, token)
			if err != nil {
				return fmt.Errorf("loading session: %w", err)
			}

			if uid := session.GetString(ctx, userIDKey); uid != "" {
				ctx = claims.Set(ctx, claims.Claims{
					UserID: uid,
					Role:   session.GetString(ctx, roleKey),
				})
			}

			sw := &sessionWriter{ResponseWriter: w, ctx: ctx, session: session}

			if err := handler(ctx, sw, r); err != nil {
				return err
			}

			sw.commit()
			return nil
		}
		return h
	}
	return m
}

// Login binds the authenticated user to the session under a fresh token.
func Login(ctx context.Context, session *scs.SessionManager, userID string, role string) error {
	if err := session.RenewToken(ctx); err != nil {
		return fmt.Errorf("renewing session token: %w", err)
	}

	session.Put(ctx, userIDKey, userID)
	session.Put(ctx, roleKey, role)
	return nil
}

func Logout(ctx context.Context, session *scs.SessionManager) error {
	if err := session.Destroy(ctx); err != nil {
		return fmt.Errorf("destroying session: %w", err)
	}
	return nil
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

type sessionWriter struct {
	http.ResponseWriter
	ctx     context.Context
	session *scs.SessionManager
	done    bool
}

func (sw *sessionWriter) WriteHeader(code int) {
	sw.commit()
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *sessionWriter) Write(b []byte) (int, error) {
	sw.commit()
	return sw.ResponseWriter.Write(b)
}

func (sw *sessionWriter) commit() {
	if sw.done {
		return
	}
	sw.done = true

	switch sw.session.Status(sw.ctx) {
	case scs.Modified:
		token, expiry, err := sw.session.Commit(sw.ctx)
		if err != nil {
			return
		}
		http.SetCookie(sw.ResponseWriter, &http.Cookie{
			Name:     SessionCookie,
			Value:    token,
			Path:     "/",
			Expires:  expiry,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	case scs.Destroyed:
		http.SetCookie(sw.ResponseWriter, &http.Cookie{
			Name:     SessionCookie,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

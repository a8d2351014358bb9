package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/api/web"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/api/weberr"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/core/claims"
)

func Authenticate() web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			if _, err := claims.Get(ctx); err != nil {
				return weberr.NotAuthorized(errors.New("user not authenticated"))
			}
			return handler(ctx, w, r)
		}
		return h
	}
	return m
}

func Admin() web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			clm, err := claims.Get(ctx)
			if err != nil {
				return weberr.NotAuthorized(errors.New("user not authenticated"))
			}
			if clm.Role != claims.RoleAdmin {
				return weberr.Forbidden(errors.New("admin role required"))
			}
			return handler(ctx, w, r)
		}
		return h
	}
	return m
}

// Instructor admits instructors and admins.
func Instructor() web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			if _, err := claims.Get(ctx); err != nil {
				return weberr.NotAuthorized(errors.New("user not authenticated"))
			}
			if !claims.IsInstructor(ctx) {
				return weberr.Forbidden(errors.New("instructor role required"))
			}
			return handler(ctx, w, r)
		}
		return h
	}
	return m
}

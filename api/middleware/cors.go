package middleware

import (
	"context"
	"net/http"

	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/api/web"
)

func Cors(origin string) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, Stripe-Signature")
			w.Header().Set("Access-Control-Allow-Credentials", "true")

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}

package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/api/web"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/api/weberr"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/rate"
)

// Limit throttles requests per remote host using the shared limiter.
func Limit(limiter *rate.Limiter) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}

			if !limiter.Check(host) {
				err := errors.New("rate limit exceeded")
				return weberr.NewError(err, err.Error(), http.StatusTooManyRequests)
			}

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}

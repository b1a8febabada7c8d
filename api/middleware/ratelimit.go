package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/learnly-dev/learnly/api/web"
	"github.com/learnly-dev/learnly/api/weberr"
	"github.com/learnly-dev/learnly/rate"
)

// RateLimit caps the request rate per remote host. It guards endpoints
// that would otherwise allow cheap enumeration, like coupon validation.
func RateLimit(lim *rate.Limiter) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}

			if !lim.Check(host) {
				err := errors.New("too many requests")
				return weberr.NewError(err, err.Error(), http.StatusTooManyRequests)
			}

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}

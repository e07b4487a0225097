package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	pkghttp "github.com/serenvoice/gateway/pkg/http"
)

// RateLimitByIP throttles requests per client IP. It sits in front of the
// per-session limiters so a client cannot dodge them by dropping its cookie.
func RateLimitByIP(requestsPerMinute int, ipConfig *pkghttp.IPConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return pkghttp.ExtractClientIP(r, ipConfig), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteTooManyRequests(w, "Too many requests. Please slow down.", int(time.Minute.Seconds()))
		}),
	)
}

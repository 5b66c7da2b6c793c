package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/verifai/verifai/internal/infra/ratelimit"
	"github.com/verifai/verifai/internal/security"
)

// RateLimit applies a fixed-window limit keyed by the authenticated user,
// falling back to client IP for unauthenticated paths. Every response gets
// the X-RateLimit-* headers; rejected requests also get Retry-After.
func RateLimit(limiter *ratelimit.Limiter, max int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/health", "/ready", "/live":
				next.ServeHTTP(w, r)
				return
			}

			identity := "ip:" + security.ClientIP(r)
			if u, ok := UserFromContext(r.Context()); ok {
				identity = "user:" + u.ID
			}

			res := limiter.Check(r.Context(), identity, max, window)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetTime.Unix(), 10))

			if !res.Allowed {
				retryAfter := int((time.Until(res.ResetTime) + time.Second - 1) / time.Second)
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				writeError(w, http.StatusTooManyRequests, "rate_limit_exceeded",
					fmt.Sprintf("Rate limit exceeded. Try again in %d seconds.", retryAfter))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

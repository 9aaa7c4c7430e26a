package ratelimit

import (
	"net/http"
	"strconv"
)

// DefaultRetryAfterSeconds is the default value for the Retry-After header
// when a rate limit is exceeded.
const DefaultRetryAfterSeconds = 1

// tooManyRequestsBody matches the {"message": ...} shape of every API error.
const tooManyRequestsBody = `{"message":"Too many requests"}` + "\n"

// RateLimitMiddleware creates HTTP middleware that enforces per-client limits.
// keyFunc extracts the client key, usually the remote IP; requests with an
// empty key pass through. A nil limiter disables the middleware.
//
// Rejected requests get 429 Too Many Requests with:
//   - Retry-After header with the recommended wait time in seconds
//   - X-RateLimit-Remaining header set to 0
func RateLimitMiddleware(limiter *RateLimiter, keyFunc func(r *http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			rateLimiter := limiter.GetLimiter(key)
			if !rateLimiter.Allow() {
				w.Header().Set("Retry-After", strconv.Itoa(DefaultRetryAfterSeconds))
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(tooManyRequestsBody))
				return
			}

			remaining := int(rateLimiter.Tokens())
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			next.ServeHTTP(w, r)
		})
	}
}

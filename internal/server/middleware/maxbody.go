package middleware

import (
	"net/http"
)

// DefaultMaxBodyBytes applies when no limit is configured. Series are
// passed as text and can be long, hence more than the usual 1 MB.
const DefaultMaxBodyBytes = 8 << 20

// MaxBody limits the body of requests that carry one. Handlers see a read
// error once the limit is crossed.
func MaxBody(maxSize int64) Middleware {
	if maxSize <= 0 {
		maxSize = DefaultMaxBodyBytes
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch:
				r.Body = http.MaxBytesReader(w, r.Body, maxSize)
			}
			next.ServeHTTP(w, r)
		})
	}
}

package middleware

import (
	"net/http"
	"time"
)

// FailureKindHeader carries the invocation failure kind on 400 answers
// from the script-backed endpoints.
const FailureKindHeader = "X-Failure-Kind"

type RequestObserver interface {
	ObserveRequest(method, route string, status int, d time.Duration)
}

// Metrics reports every request to obs, labelled by matched route so
// path values such as {agu} do not explode cardinality.
func Metrics(obs RequestObserver) Middleware {
	return func(next http.Handler) http.Handler {
		if obs == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := wrap(w)

			next.ServeHTTP(rw, r)

			obs.ObserveRequest(r.Method, route(r), rw.status, time.Since(start))
		})
	}
}

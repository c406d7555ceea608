package api

import (
	"crypto/subtle"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/kilianp07/civicdispatch/infra/logger"
)

// bearerAuth rejects requests without the expected bearer token. An empty
// token disables the check.
func bearerAuth(token string) func(http.Handler) http.Handler {
	want := []byte("Bearer " + token)
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(r.Header.Get("Authorization"))
			if subtle.ConstantTimeCompare(got, want) != 1 {
				writeError(w, r, http.StatusUnauthorized, errUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// recoverJSON turns a handler panic into a JSON 500 and logs the stack.
func recoverJSON(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					panic(v)
				}
				log.Errorf("panic recovered request_id=%s %s %s: %v\n%s",
					middleware.GetReqID(r.Context()), r.Method, r.URL.Path, v, debug.Stack())
				writeError(w, r, http.StatusInternalServerError, errPanic)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

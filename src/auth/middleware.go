package auth

import (
	"context"
	"net/http"
	"strconv"
)

// Middleware resolves the caller from the X-User-ID header stamped by the
// gateway and puts the id on the request context. Requests without a valid
// id never reach the handlers.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("X-User-ID")

		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), UserKey, uint(id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

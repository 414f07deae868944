package middleware

import (
	"context"
	"net/http"

	"github.com/shashiranjanraj/drivegate/pkg/response"
)

// Authenticator ties a request to a caller. It returns the context the rest
// of the chain should see, typically carrying the resolved session.
type Authenticator interface {
	Authenticate(r *http.Request) (context.Context, error)
}

// Auth rejects requests the authenticator refuses, answering with the
// classified error body (401 for auth failures).
func Auth(a Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, err := a.Authenticate(r)
			if err != nil {
				response.Fail(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

package middleware

import (
	"context"
	"net/http"
	"strings"
)

type principalContextKey struct{}

// PrincipalFromContext returns what the validator of RequireBearer returned.
func PrincipalFromContext(ctx context.Context) (any, bool) {
	v := ctx.Value(principalContextKey{})
	return v, v != nil
}

// BearerValidator checks a bearer token and returns the principal to store
// in the request context.
type BearerValidator func(ctx context.Context, token string) (any, error)

// RequireBearer answers 401 unless the request carries a bearer token that
// validate accepts.
func RequireBearer(validate BearerValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if validate == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			principal, err := validate(r.Context(), token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), principalContextKey{}, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(value string) (string, bool) {
	const bearer = "bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}
	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}
	return token, true
}

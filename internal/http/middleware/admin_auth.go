package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type adminCtxKey struct{}

var errNoBearerToken = errors.New("middleware: missing bearer token")

// AdminJWT guards the admin appointment endpoints with an HMAC-signed JWT
// minted from the shared admin secret. An empty secret disables admin access
// entirely rather than leaving the endpoints open.
func AdminJWT(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				http.Error(w, "admin access is not configured", http.StatusUnauthorized)
				return
			}
			claims, err := verifyAdminToken(secret, r.Header.Get("Authorization"))
			if err != nil {
				http.Error(w, "invalid or missing admin token", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), adminCtxKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// verifyAdminToken checks that the Authorization header carries a bearer
// token signed with the admin secret. Only HMAC algorithms are accepted, so a
// token signed with an asymmetric key cannot be verified against the secret
// as if it were a public key.
func verifyAdminToken(secret, header string) (jwt.RegisteredClaims, error) {
	var claims jwt.RegisteredClaims
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return claims, errNoBearerToken
	}
	parsed, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return []byte(secret), nil },
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
	)
	if err != nil {
		return claims, err
	}
	if !parsed.Valid {
		return claims, jwt.ErrTokenUnverifiable
	}
	return claims, nil
}

// AdminClaimsFromContext returns the verified admin claims, if any.
func AdminClaimsFromContext(ctx context.Context) (jwt.RegisteredClaims, bool) {
	claims, ok := ctx.Value(adminCtxKey{}).(jwt.RegisteredClaims)
	return claims, ok
}

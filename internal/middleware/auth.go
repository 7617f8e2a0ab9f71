package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/neliaxa/backend/internal/auth"
	"github.com/neliaxa/backend/internal/authz"
	"github.com/neliaxa/backend/internal/http/respond"
)

type contextKey struct{}

var claimsKey contextKey

// ClaimsFrom extracts the authenticated claims stashed by RequireSession or
// RequireChallenge.
func ClaimsFrom(ctx context.Context) (auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(auth.Claims)
	return claims, ok
}

func bearerToken(r *http.Request) (string, bool) {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func rejectToken(w http.ResponseWriter, err error) {
	if errors.Is(err, auth.ErrExpiredToken) {
		respond.Error(w, http.StatusUnauthorized, "expired_token")
		return
	}
	respond.Error(w, http.StatusUnauthorized, "invalid_token")
}

// RequireSession gates an endpoint on a valid full session token. Challenge
// tokens are rejected here: a pending second factor proves nothing yet.
func RequireSession(tokens *auth.TokenManager, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			respond.Error(w, http.StatusUnauthorized, "missing_token")
			return
		}
		claims, err := tokens.ParseSession(raw)
		if err != nil {
			rejectToken(w, err)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	}
}

// RequireChallenge gates the second-factor verification endpoint on a valid
// pending-second-factor token; full session tokens are rejected.
func RequireChallenge(tokens *auth.TokenManager, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			respond.Error(w, http.StatusUnauthorized, "missing_token")
			return
		}
		claims, err := tokens.ParseChallenge(raw)
		if err != nil {
			rejectToken(w, err)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	}
}

// RequirePermission runs after RequireSession and checks the role's grant
// set. An insufficient role is a 403, never confused with a missing token.
func RequirePermission(perm authz.Permission, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFrom(r.Context())
		if !ok {
			respond.Error(w, http.StatusUnauthorized, "missing_token")
			return
		}
		if !authz.Allowed(claims.Role, perm) {
			respond.Error(w, http.StatusForbidden, "forbidden")
			return
		}
		next(w, r)
	}
}

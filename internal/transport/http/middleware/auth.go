package middleware

import (
	"context"
	"net/http"
	"strings"

	"hrims/internal/domain/auth"
	"hrims/internal/domain/role"
	"hrims/internal/transport/http/api"
)

type ctxKey string

const (
	ctxKeyIdentity ctxKey = "identity"
	ctxKeySession  ctxKey = "session"
)

// TokenVerifier is satisfied by *auth.Service.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// SessionProvider is satisfied by *role.SessionManager.
type SessionProvider interface {
	Current(ctx context.Context, identity role.Identity) role.SessionState
}

// Auth turns a valid bearer token into an Identity on the context. Requests
// without one pass through anonymous; RequireAuth decides what that means.
func Auth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := verifier.Verify(token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyIdentity, claims.Identity())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !found || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// RequireAuth rejects anonymous requests and attaches the caller's
// SessionState, resolved through sessions.
func RequireAuth(sessions SessionProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := GetIdentity(r.Context())
			if !ok || !identity.IsAuthenticated {
				api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", GetRequestID(r.Context()))
				return
			}
			state := sessions.Current(r.Context(), identity)
			ctx := context.WithValue(r.Context(), ctxKeySession, state)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetIdentity(ctx context.Context) (role.Identity, bool) {
	identity, ok := ctx.Value(ctxKeyIdentity).(role.Identity)
	return identity, ok
}

func GetSession(ctx context.Context) (role.SessionState, bool) {
	state, ok := ctx.Value(ctxKeySession).(role.SessionState)
	return state, ok
}

// WithSession is used by tests and internal callers that already hold a
// resolved session.
func WithSession(ctx context.Context, state role.SessionState) context.Context {
	ctx = context.WithValue(ctx, ctxKeyIdentity, state.Identity)
	return context.WithValue(ctx, ctxKeySession, state)
}

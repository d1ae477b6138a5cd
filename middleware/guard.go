package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/pinauth"
)

type authContextKey struct{}

// AuthContextFromContext extracts the resolved [pinauth.AuthContext] injected
// by a guard, if any.
func AuthContextFromContext(ctx context.Context) (*pinauth.AuthContext, bool) {
	ac, ok := ctx.Value(authContextKey{}).(*pinauth.AuthContext)
	return ac, ok
}

// Guard returns middleware that resolves the bearer session token and rejects
// requests below minState with 401.
func Guard(engine *pinauth.Engine, minState pinauth.AuthState) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ac, err := engine.ResolveSession(r.Context(), token)
			if err != nil || ac.State < minState {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), authContextKey{}, ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePinVerified admits any live session, even one whose second factor is
// still outstanding.
func RequirePinVerified(engine *pinauth.Engine) func(http.Handler) http.Handler {
	return Guard(engine, pinauth.AuthStatePinVerified)
}

// RequireTwoFA admits only fully-authenticated sessions.
func RequireTwoFA(engine *pinauth.Engine) func(http.Handler) http.Handler {
	return Guard(engine, pinauth.AuthStateFullyAuthenticated)
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}

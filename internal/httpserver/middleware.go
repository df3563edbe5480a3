package httpserver

import (
	"context"
	"net/http"
	"strings"

	"sx-futures/internal/httputil"
	"sx-futures/internal/sessions"

	"golang.org/x/crypto/bcrypt"
)

type ctxKey string

const accountIDKey ctxKey = "account_id"

// WithSession resolves the guest session token from the Authorization header
// (or the X-Session-Token fallback the browser client uses for websockets)
// and stashes the account id on the request context.
func WithSession(svc *sessions.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				token = r.Header.Get("X-Session-Token")
			}
			if token == "" {
				httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "session token required; call POST /v1/users/guest first"})
				return
			}
			accountID, err := svc.Parse(token)
			if err != nil {
				httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "invalid session token"})
				return
			}
			ctx := context.WithValue(r.Context(), accountIDKey, accountID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	authz := r.Header.Get("Authorization")
	parts := strings.SplitN(authz, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

func AccountID(r *http.Request) (string, bool) {
	v := r.Context().Value(accountIDKey)
	if v == nil {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

// InternalAuth guards operator endpoints. The configured value is a bcrypt
// hash of the token, never the token itself.
func InternalAuth(tokenHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokenHash == "" {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, httputil.ErrorResponse{Error: "internal token is not configured"})
				return
			}
			provided := strings.TrimSpace(r.Header.Get("X-Internal-Token"))
			if provided == "" || bcrypt.CompareHashAndPassword([]byte(tokenHash), []byte(provided)) != nil {
				httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "invalid internal token"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

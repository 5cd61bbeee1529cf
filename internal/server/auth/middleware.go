package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/flocksync/internal/common"
)

type contextKey string

const (
	userIDKey   contextKey = "userID"
	churchIDKey contextKey = "churchID"
)

// RequireToken rejects requests that lack a valid bearer token and stores
// the token's user and church ids in the request context for downstream
// handlers.
func RequireToken(secretKey []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get(common.AuthHeaderName)
			if !strings.HasPrefix(header, common.BearerPrefix) {
				writeUnauthorized(w)
				return
			}

			claims, err := ParseToken(strings.TrimPrefix(header, common.BearerPrefix), secretKey)
			if err != nil {
				writeUnauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
			ctx = context.WithValue(ctx, churchIDKey, claims.ChurchID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
}

// UserIDFromContext returns the user id injected by RequireToken.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok
}

// ChurchIDFromContext returns the church id injected by RequireToken.
func ChurchIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(churchIDKey).(string)
	return id, ok
}

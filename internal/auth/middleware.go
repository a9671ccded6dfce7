package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/megano/internal/session"
)

type ctxKey struct{}

// UserIDFromContext returns the id set by RequireUser.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(ctxKey{}).(int64)
	return id, ok && id > 0
}

func WithUserID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// Resolve returns the user of r: the session user first, then a valid
// Authorization bearer token.
func (t *Tokens) Resolve(r *http.Request) (int64, bool) {
	if id := session.FromContext(r.Context()).UserID(); id > 0 {
		return id, true
	}

	header := r.Header.Get("Authorization")
	raw, found := strings.CutPrefix(header, "Bearer ")
	if !found || raw == "" {
		return 0, false
	}
	claims, err := t.Validate(strings.TrimSpace(raw))
	if err != nil {
		log.Warn().Err(err).Msg("auth: rejected bearer token")
		return 0, false
	}
	return claims.UserID, true
}

// RequireUser rejects anonymous requests with 401.
func (t *Tokens) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := t.Resolve(r)
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Authentication required"}`))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), id)))
	})
}

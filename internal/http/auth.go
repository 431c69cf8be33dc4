package http

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"tripledger/internal/storage"
)

type contextKey string

const userIDKey contextKey = "user_id"

// SessionCookieName is the cookie holding the session token.
const SessionCookieName = "tripledger_session"

// SessionResolver validates session tokens against the session store.
type SessionResolver interface {
	SessionUser(ctx context.Context, token string) (uuid.UUID, error)
}

// authMiddleware resolves the session cookie into a user ID in the request
// context. Invalid or expired sessions get their cookie cleared; the
// request continues unauthenticated.
func authMiddleware(sessions SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			userID, err := sessions.SessionUser(r.Context(), cookie.Value)
			if err != nil {
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookieName,
					Value:    "",
					Path:     "/",
					MaxAge:   -1,
					HttpOnly: true,
				})
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requireAuth rejects unauthenticated requests with 401.
func requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := userID(r.Context()); !ok {
			respondError(w, r, storage.ErrInvalidSession)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func userID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDKey).(uuid.UUID)
	return id, ok
}

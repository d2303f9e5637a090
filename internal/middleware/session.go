package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
)

type contextKey string

const (
	sessionKeyContextKey contextKey = "cart_session_key"
	userIDContextKey     contextKey = "user_id"
)

const cartSessionName = "cart_session"

// SessionMiddleware binds every request to a cart session key stored in a
// signed cookie. Re-saving the cookie on each request gives the session a
// sliding expiry that mirrors the cart's TTL behavior.
type SessionMiddleware struct {
	store  sessions.Store
	maxAge int
}

// NewSessionMiddleware creates a new session middleware
func NewSessionMiddleware(store sessions.Store, maxAge int) *SessionMiddleware {
	return &SessionMiddleware{store: store, maxAge: maxAge}
}

// EnsureCartSession assigns a session key to first-time visitors and
// refreshes the cookie for returning ones. It also lifts the authenticated
// user id set by the upstream auth proxy into the request context.
func (m *SessionMiddleware) EnsureCartSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := m.store.Get(r, cartSessionName)
		if err != nil {
			// A tampered or stale cookie yields a fresh session below.
			session, _ = m.store.New(r, cartSessionName)
		}

		key, ok := session.Values["key"].(string)
		if !ok || key == "" {
			key = uuid.NewString()
			session.Values["key"] = key
		}

		session.Options.MaxAge = m.maxAge
		session.Options.HttpOnly = true
		session.Options.Path = "/"
		session.Options.SameSite = http.SameSiteLaxMode
		if err := session.Save(r, w); err != nil {
			http.Error(w, "failed to save session", http.StatusInternalServerError)
			return
		}

		ctx := context.WithValue(r.Context(), sessionKeyContextKey, key)
		if header := r.Header.Get("X-User-ID"); header != "" {
			if id, err := strconv.Atoi(header); err == nil && id > 0 {
				ctx = context.WithValue(ctx, userIDContextKey, id)
			}
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetSessionKey returns the request's cart session key, or "" if the
// session middleware did not run
func GetSessionKey(ctx context.Context) string {
	if key, ok := ctx.Value(sessionKeyContextKey).(string); ok {
		return key
	}
	return ""
}

// GetUserID returns the authenticated user's id, or nil for guests
func GetUserID(ctx context.Context) *int {
	if id, ok := ctx.Value(userIDContextKey).(int); ok {
		return &id
	}
	return nil
}

// UserSessionKey derives the stable cart key for an authenticated user, so
// a user's cart survives across devices and cookie resets
func UserSessionKey(userID int) string {
	return "user:" + strconv.Itoa(userID)
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/sessions"
)

func newTestMiddleware() *SessionMiddleware {
	store := sessions.NewCookieStore([]byte("test-secret-key-32-bytes-long!!!"))
	return NewSessionMiddleware(store, 3600)
}

func TestEnsureCartSessionAssignsKey(t *testing.T) {
	m := newTestMiddleware()

	var gotKey string
	handler := m.EnsureCartSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = GetSessionKey(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/cart", nil))

	if gotKey == "" {
		t.Fatal("no session key assigned")
	}
	if len(rec.Result().Cookies()) == 0 {
		t.Error("no session cookie set")
	}
}

func TestEnsureCartSessionKeyIsStable(t *testing.T) {
	m := newTestMiddleware()

	var keys []string
	handler := m.EnsureCartSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keys = append(keys, GetSessionKey(r.Context()))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/cart", nil))

	// Replay the cookie on a second request.
	req := httptest.NewRequest("GET", "/api/cart", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if len(keys) != 2 {
		t.Fatalf("handler ran %d times, want 2", len(keys))
	}
	if keys[0] != keys[1] {
		t.Errorf("session key changed across requests: %q vs %q", keys[0], keys[1])
	}
}

func TestEnsureCartSessionUserHeader(t *testing.T) {
	m := newTestMiddleware()

	tests := []struct {
		name   string
		header string
		want   *int
	}{
		{"no header", "", nil},
		{"valid id", "42", intPtr(42)},
		{"garbage", "abc", nil},
		{"zero", "0", nil},
		{"negative", "-5", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *int
			handler := m.EnsureCartSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = GetUserID(r.Context())
			}))

			req := httptest.NewRequest("GET", "/api/cart", nil)
			if tt.header != "" {
				req.Header.Set("X-User-ID", tt.header)
			}
			handler.ServeHTTP(httptest.NewRecorder(), req)

			if (got == nil) != (tt.want == nil) {
				t.Fatalf("GetUserID() = %v, want %v", got, tt.want)
			}
			if got != nil && *got != *tt.want {
				t.Errorf("GetUserID() = %d, want %d", *got, *tt.want)
			}
		})
	}
}

func TestGetSessionKeyWithoutMiddleware(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	if key := GetSessionKey(req.Context()); key != "" {
		t.Errorf("GetSessionKey() = %q, want empty without middleware", key)
	}
}

func TestUserSessionKey(t *testing.T) {
	if got := UserSessionKey(42); got != "user:42" {
		t.Errorf("UserSessionKey(42) = %q, want user:42", got)
	}
}

func intPtr(v int) *int { return &v }

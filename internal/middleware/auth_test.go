package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cyberclock/server/internal/model"
)

// --- モック定義 ---

type mockAuthenticator struct {
	authenticateTokenFn func(ctx context.Context, token string) (*model.User, error)
	validateSessionFn   func(ctx context.Context, sessionID string) (*model.Session, *model.User, error)
}

func (m *mockAuthenticator) AuthenticateToken(ctx context.Context, token string) (*model.User, error) {
	if m.authenticateTokenFn != nil {
		return m.authenticateTokenFn(ctx, token)
	}
	return nil, model.ErrUpstreamAuthFailure
}

func (m *mockAuthenticator) ValidateSession(ctx context.Context, sessionID string) (*model.Session, *model.User, error) {
	if m.validateSessionFn != nil {
		return m.validateSessionFn(ctx, sessionID)
	}
	return nil, nil, model.ErrSessionNotFound
}

var _ Authenticator = (*mockAuthenticator)(nil)

// --- テスト ---

func TestAuthMiddleware_ValidSessionCookie_InjectsUser(t *testing.T) {
	authn := &mockAuthenticator{
		validateSessionFn: func(ctx context.Context, sessionID string) (*model.Session, *model.User, error) {
			if sessionID != "valid-session" {
				return nil, nil, model.ErrSessionNotFound
			}
			return &model.Session{ID: sessionID, UserID: "github:7", ExpiresAt: time.Now().Add(time.Hour)},
				&model.User{ID: "github:7", Name: "Tester"}, nil
		},
	}

	mw := NewAuthMiddleware(authn)

	var capturedUserID string
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := UserIDFromContext(r.Context())
		if err != nil {
			t.Errorf("expected user in context, got %v", err)
		}
		capturedUserID = userID
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/counter", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: "valid-session"})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if capturedUserID != "github:7" {
		t.Errorf("userID = %q, want github:7", capturedUserID)
	}
}

func TestAuthMiddleware_BearerToken_TakesPrecedenceOverCookie(t *testing.T) {
	cookieChecked := false
	authn := &mockAuthenticator{
		authenticateTokenFn: func(ctx context.Context, token string) (*model.User, error) {
			if token != "device-token" {
				return nil, model.ErrUpstreamAuthFailure
			}
			return &model.User{ID: "google:abc"}, nil
		},
		validateSessionFn: func(ctx context.Context, sessionID string) (*model.Session, *model.User, error) {
			cookieChecked = true
			return nil, nil, model.ErrSessionNotFound
		},
	}

	mw := NewAuthMiddleware(authn)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/counter", nil)
	req.Header.Set("Authorization", "Bearer device-token")
	req.AddCookie(&http.Cookie{Name: "session", Value: "some-session"})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if cookieChecked {
		t.Error("session cookie should not be checked when bearer token is present")
	}
}

func TestAuthMiddleware_InvalidBearerToken_RejectsWithoutCookieFallback(t *testing.T) {
	authn := &mockAuthenticator{
		authenticateTokenFn: func(ctx context.Context, token string) (*model.User, error) {
			return nil, model.ErrUpstreamAuthFailure
		},
	}

	mw := NewAuthMiddleware(authn)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/counter", nil)
	req.Header.Set("Authorization", "Bearer bad-token")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestAuthMiddleware_NoCredentials_APIClient_Returns401JSON(t *testing.T) {
	mw := NewAuthMiddleware(&mockAuthenticator{})

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/counter", nil)
	req.Header.Set("Accept", "application/json")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}

	var body struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse error body: %v", err)
	}
	if body.Code != "UNAUTHORIZED" {
		t.Errorf("code = %q, want UNAUTHORIZED", body.Code)
	}
}

func TestAuthMiddleware_NoCredentials_HypermediaRequest_RedirectsToLogin(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(r *http.Request)
	}{
		{"htmx request", func(r *http.Request) { r.Header.Set("HX-Request", "true") }},
		{"browser accept header", func(r *http.Request) { r.Header.Set("Accept", "text/html,application/xhtml+xml") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw := NewAuthMiddleware(&mockAuthenticator{})
			handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler should not be called")
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/counter", nil)
			tt.setup(req)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != http.StatusFound {
				t.Errorf("status = %d, want %d", w.Code, http.StatusFound)
			}
			if got := w.Header().Get("Location"); got != LoginPath {
				t.Errorf("Location = %q, want %q", got, LoginPath)
			}
		})
	}
}

func TestAuthMiddleware_ExpiredSession_Rejects(t *testing.T) {
	authn := &mockAuthenticator{
		validateSessionFn: func(ctx context.Context, sessionID string) (*model.Session, *model.User, error) {
			return nil, nil, model.ErrSessionExpired
		},
	}

	mw := NewAuthMiddleware(authn)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/counter", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: "expired-session"})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestAuthMiddleware_PublicPath_Bypasses(t *testing.T) {
	paths := []string{"/auth/github/signin", "/auth/login", "/healthz", "/metrics", "/styles/app.css"}

	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			mw := NewAuthMiddleware(&mockAuthenticator{})
			called := false
			handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, path, nil)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if !called {
				t.Errorf("handler should be called for public path %s", path)
			}
		})
	}
}

func TestIsPublicPath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/auth/github/signin", true},
		{"/auth/device/poll", true},
		{"/healthz", true},
		{"/metrics", true},
		{"/styles/main.css", true},
		{"/api/v1/counter", false},
		{"/", false},
	}

	for _, tt := range tests {
		if got := IsPublicPath(tt.path); got != tt.want {
			t.Errorf("IsPublicPath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"valid bearer", "Bearer abc123", "abc123"},
		{"lowercase scheme", "bearer abc123", "abc123"},
		{"no header", "", ""},
		{"basic auth", "Basic dXNlcjpwYXNz", ""},
		{"scheme only", "Bearer", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if got := extractBearerToken(req); got != tt.want {
				t.Errorf("extractBearerToken() = %q, want %q", got, tt.want)
			}
		})
	}
}

package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/blogman/internal/auth"
	"github.com/hitoshi/blogman/internal/model"
)

type mockVerifier struct {
	verifyFn func(ctx context.Context, token string) (*model.TokenClaims, error)
}

func (m *mockVerifier) VerifyToken(ctx context.Context, token string) (*model.TokenClaims, error) {
	if m.verifyFn != nil {
		return m.verifyFn(ctx, token)
	}
	return nil, auth.ErrInvalidToken
}

var _ TokenVerifier = (*mockVerifier)(nil)

// acceptToken は "good" のみを user-1 として受け付けるVerifierを返す。
func acceptToken() *mockVerifier {
	return &mockVerifier{
		verifyFn: func(_ context.Context, token string) (*model.TokenClaims, error) {
			if token == "good" {
				return &model.TokenClaims{UserID: "user-1", TokenID: "jti-1", ExpiresAt: time.Now().Add(time.Hour)}, nil
			}
			return nil, fmt.Errorf("%w: bad signature", auth.ErrInvalidToken)
		},
	}
}

func TestAuthMiddleware_ValidToken_InjectsIdentity(t *testing.T) {
	var gotUserID string
	var gotClaims *model.TokenClaims
	handler := NewAuthMiddleware(acceptToken())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, _ = UserIDFromContext(r.Context())
		gotClaims, _ = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/posts/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotUserID != "user-1" {
		t.Errorf("userID = %q, want user-1", gotUserID)
	}
	if gotClaims == nil || gotClaims.TokenID != "jti-1" {
		t.Errorf("claims = %+v, want TokenID jti-1", gotClaims)
	}
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"wrong scheme", "Basic dXNlcjpwYXNz"},
		{"empty bearer", "Bearer "},
		{"invalid token", "Bearer bad"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := NewAuthMiddleware(acceptToken())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			}))

			req := httptest.NewRequest(http.MethodGet, "/posts/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
			if called {
				t.Error("handler must not be called")
			}
			if w.Header().Get("WWW-Authenticate") == "" {
				t.Error("expected WWW-Authenticate header")
			}

			var body ErrorResponseBody
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			if body.Code != model.ErrCodeUnauthorized || body.Error == "" {
				t.Errorf("body = %+v", body)
			}
		})
	}
}

func TestAuthMiddleware_RevokedToken_Returns401(t *testing.T) {
	verifier := &mockVerifier{
		verifyFn: func(context.Context, string) (*model.TokenClaims, error) {
			return nil, auth.ErrTokenRevoked
		},
	}
	handler := NewAuthMiddleware(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer revoked")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestAuthMiddleware_StoreFailure_Returns500(t *testing.T) {
	verifier := &mockVerifier{
		verifyFn: func(context.Context, string) (*model.TokenClaims, error) {
			return nil, errors.New("redis: connection refused")
		},
	}
	handler := NewAuthMiddleware(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"Bearer  abc ", "abc", true},
		{"Bearer", "", false},
		{"Token abc", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		got, ok := BearerToken(req)
		if got != tt.want || ok != tt.ok {
			t.Errorf("BearerToken(%q) = %q, %v; want %q, %v", tt.header, got, ok, tt.want, tt.ok)
		}
	}
}

func TestUserIDFromContext_Missing(t *testing.T) {
	if _, err := UserIDFromContext(context.Background()); err == nil {
		t.Error("expected error for missing user ID")
	}
	if _, err := ClaimsFromContext(context.Background()); err == nil {
		t.Error("expected error for missing claims")
	}
}

func TestContextWithUserID(t *testing.T) {
	ctx := ContextWithUserID(context.Background(), "user-9")
	got, err := UserIDFromContext(ctx)
	if err != nil || got != "user-9" {
		t.Errorf("UserIDFromContext() = %q, %v; want user-9, nil", got, err)
	}
}

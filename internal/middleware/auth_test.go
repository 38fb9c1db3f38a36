package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MikhailRaia/files-sharing/internal/auth"
	"github.com/MikhailRaia/files-sharing/internal/model"
	"github.com/MikhailRaia/files-sharing/internal/session"
	"github.com/MikhailRaia/files-sharing/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockUserLookup struct {
	GetFunc func(ctx context.Context, uid string) (model.User, error)
}

func (m *mockUserLookup) Get(ctx context.Context, uid string) (model.User, error) {
	return m.GetFunc(ctx, uid)
}

func newTestAuth() *AuthMiddleware {
	users := &mockUserLookup{GetFunc: func(ctx context.Context, uid string) (model.User, error) {
		if uid == "bob" {
			return model.User{UID: "bob", DisplayName: "Bob"}, nil
		}
		return model.User{}, storage.ErrNotFound
	}}
	return NewAuthMiddleware(auth.NewJWTService("secret"), users)
}

func captureSession(t *testing.T, a *AuthMiddleware, r *http.Request) *session.UserSession {
	t.Helper()

	var got *session.UserSession
	h := a.LoadSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = session.FromContext(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), r)
	require.NotNil(t, got)
	return got
}

func TestAuthMiddleware_LoadSession(t *testing.T) {
	a := newTestAuth()
	jwt := auth.NewJWTService("secret")

	bobToken, err := jwt.GenerateToken("bob")
	require.NoError(t, err)
	ghostToken, err := jwt.GenerateToken("ghost")
	require.NoError(t, err)

	tests := []struct {
		name    string
		prepare func(r *http.Request)
		wantUID string
	}{
		{
			name:    "anonymous",
			prepare: func(r *http.Request) {},
		},
		{
			name:    "cookie",
			prepare: func(r *http.Request) { r.AddCookie(&http.Cookie{Name: AuthCookieName, Value: bobToken}) },
			wantUID: "bob",
		},
		{
			name:    "bearer",
			prepare: func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+bobToken) },
			wantUID: "bob",
		},
		{
			name:    "invalid token",
			prepare: func(r *http.Request) { r.AddCookie(&http.Cookie{Name: AuthCookieName, Value: "garbage"}) },
		},
		{
			name:    "unknown user",
			prepare: func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+ghostToken) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.prepare(r)

			sess := captureSession(t, a, r)
			assert.Equal(t, tt.wantUID, sess.UIDOrEmpty())
		})
	}
}

func TestAuthMiddleware_RequireAuth(t *testing.T) {
	a := newTestAuth()
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	rec := httptest.NewRecorder()
	a.LoadSession(a.RequireAuth(ok)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	issued := httptest.NewRecorder()
	token, err := a.IssueCookie(issued, "bob")
	require.NoError(t, err)
	cookies := issued.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, token, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	a.LoadSession(a.RequireAuth(ok)).ServeHTTP(rec, r)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestClearCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	ClearCookie(rec)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, AuthCookieName, cookies[0].Name)
	assert.Less(t, cookies[0].MaxAge, 0)
}

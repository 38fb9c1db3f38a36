package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/MikhailRaia/files-sharing/internal/auth"
	"github.com/MikhailRaia/files-sharing/internal/model"
	"github.com/MikhailRaia/files-sharing/internal/session"
	"github.com/rs/zerolog/log"
)

// AuthCookieName is the cookie carrying the session token.
const AuthCookieName = "auth_token"

// UserLookup loads users referenced by session tokens.
type UserLookup interface {
	Get(ctx context.Context, uid string) (model.User, error)
}

// AuthMiddleware resolves the session of a request from its JWT.
type AuthMiddleware struct {
	jwtService *auth.JWTService
	users      UserLookup
}

// NewAuthMiddleware creates an AuthMiddleware with the provided JWT service.
func NewAuthMiddleware(jwtService *auth.JWTService, users UserLookup) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtService,
		users:      users,
	}
}

// LoadSession stores the request's session in its context. Requests without
// a valid token get an anonymous session.
func (a *AuthMiddleware) LoadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := session.Anonymous()

		if token := tokenFromRequest(r); token != "" {
			claims, err := a.jwtService.ValidateToken(token)
			if err != nil {
				log.Debug().Err(err).Msg("Invalid session token")
			} else if user, err := a.users.Get(r.Context(), claims.UserID); err != nil {
				log.Debug().Err(err).Str("userID", claims.UserID).Msg("Session user not found")
			} else {
				sess = session.New(&user)
			}
		}

		next.ServeHTTP(w, r.WithContext(session.WithSession(r.Context(), sess)))
	})
}

// RequireAuth rejects anonymous requests. It must run after LoadSession.
func (a *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !session.FromContext(r.Context()).IsLoggedIn() {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// IssueCookie signs a token for uid and sets it as the session cookie.
func (a *AuthMiddleware) IssueCookie(w http.ResponseWriter, uid string) (string, error) {
	token, err := a.jwtService.GenerateToken(uid)
	if err != nil {
		return "", err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(a.jwtService.TTL() / time.Second),
	})
	return token, nil
}

// ClearCookie removes the session cookie.
func ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

func tokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(AuthCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

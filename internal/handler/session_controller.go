package handler

import (
	"context"
	"net/http"

	"github.com/MikhailRaia/files-sharing/internal/l10n"
	"github.com/MikhailRaia/files-sharing/internal/middleware"
	"github.com/MikhailRaia/files-sharing/internal/model"
	"github.com/rs/zerolog/log"
)

// PasswordChecker verifies login credentials.
type PasswordChecker interface {
	CheckPassword(ctx context.Context, uid, password string) (model.User, bool)
}

// CookieIssuer hands out session cookies.
type CookieIssuer interface {
	IssueCookie(w http.ResponseWriter, uid string) (string, error)
}

type SessionController struct {
	users   PasswordChecker
	cookies CookieIssuer
	tr      *l10n.Table
}

func NewSessionController(users PasswordChecker, cookies CookieIssuer, tr *l10n.Table) *SessionController {
	return &SessionController{
		users:   users,
		cookies: cookies,
		tr:      tr,
	}
}

type loginResponse struct {
	UID   string `json:"uid"`
	Token string `json:"token"`
}

func (c *SessionController) Login(w http.ResponseWriter, r *http.Request) {
	values, err := formOrJSON(r, "user", "password")
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	user, ok := c.users.CheckPassword(r.Context(), values["user"], values["password"])
	if !ok {
		log.Info().Str("user", values["user"]).Msg("Login failed")
		writeError(w, http.StatusUnauthorized, c.tr.T("Login failed"))
		return
	}

	token, err := c.cookies.IssueCookie(w, user.UID)
	if err != nil {
		log.Error().Err(err).Str("user", user.UID).Msg("Failed to issue session")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{UID: user.UID, Token: token})
}

func (c *SessionController) Logout(w http.ResponseWriter, r *http.Request) {
	middleware.ClearCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

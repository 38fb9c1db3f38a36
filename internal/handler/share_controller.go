package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MikhailRaia/files-sharing/internal/auth"
	"github.com/MikhailRaia/files-sharing/internal/l10n"
	"github.com/MikhailRaia/files-sharing/internal/model"
	"github.com/MikhailRaia/files-sharing/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// shareAuthCookie remembers that a visitor unlocked a password protected
// link share.
const shareAuthCookie = "share_auth"

// PublicShares looks up link shares.
type PublicShares interface {
	ByToken(ctx context.Context, token string) (model.Share, error)
	CheckPassword(share model.Share, password string) bool
}

// LinkBuilder builds public share URLs.
type LinkBuilder interface {
	LinkToPublicShare(token string) string
}

// PublicShareView is what anonymous visitors learn about a link share.
type PublicShareView struct {
	Token       string     `json:"token"`
	ItemType    string     `json:"item_type"`
	Name        string     `json:"name"`
	Owner       string     `json:"owner"`
	Permissions int        `json:"permissions"`
	Expiration  *time.Time `json:"expiration,omitempty"`
	URL         string     `json:"url"`
}

// ShareController serves public link shares.
type ShareController struct {
	shares PublicShares
	urls   LinkBuilder
	tokens *auth.JWTService
	tr     *l10n.Table
}

func NewShareController(shares PublicShares, urls LinkBuilder, tokens *auth.JWTService, tr *l10n.Table) *ShareController {
	return &ShareController{
		shares: shares,
		urls:   urls,
		tokens: tokens,
		tr:     tr,
	}
}

func (c *ShareController) ShowShare(w http.ResponseWriter, r *http.Request) {
	share, ok := c.lookup(w, r)
	if !ok {
		return
	}

	if share.HasPassword() && !c.isAuthenticated(r, share.Token) {
		writeError(w, http.StatusUnauthorized, c.tr.T("This share is password-protected"))
		return
	}

	writeJSON(w, http.StatusOK, PublicShareView{
		Token:       share.Token,
		ItemType:    share.ItemType,
		Name:        share.FileTarget,
		Owner:       share.Owner,
		Permissions: share.Permissions,
		Expiration:  share.Expiration,
		URL:         c.urls.LinkToPublicShare(share.Token),
	})
}

func (c *ShareController) Authenticate(w http.ResponseWriter, r *http.Request) {
	share, ok := c.lookup(w, r)
	if !ok {
		return
	}

	values, err := formOrJSON(r, "password")
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if !c.shares.CheckPassword(share, values["password"]) {
		log.Info().Int64("shareID", share.ID).Msg("Wrong link share password")
		writeError(w, http.StatusForbidden, c.tr.T("Wrong password"))
		return
	}

	token, err := c.tokens.GenerateToken(linkSubject(share.Token))
	if err != nil {
		log.Error().Err(err).Msg("Failed to issue share token")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     shareAuthCookie,
		Value:    token,
		Path:     "/s/" + share.Token,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(c.tokens.TTL() / time.Second),
	})
	w.WriteHeader(http.StatusNoContent)
}

func (c *ShareController) lookup(w http.ResponseWriter, r *http.Request) (model.Share, bool) {
	token := chi.URLParam(r, "token")
	if token == "" {
		w.WriteHeader(http.StatusBadRequest)
		return model.Share{}, false
	}

	share, err := c.shares.ByToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, c.tr.T("Share not found"))
			return model.Share{}, false
		}
		log.Error().Err(err).Msg("Failed to load link share")
		w.WriteHeader(http.StatusInternalServerError)
		return model.Share{}, false
	}
	return share, true
}

func (c *ShareController) isAuthenticated(r *http.Request, token string) bool {
	cookie, err := r.Cookie(shareAuthCookie)
	if err != nil {
		return false
	}
	claims, err := c.tokens.ValidateToken(cookie.Value)
	if err != nil {
		return false
	}
	return claims.UserID == linkSubject(token)
}

func linkSubject(token string) string {
	return "link:" + token
}

package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/MikhailRaia/files-sharing/internal/l10n"
	"github.com/MikhailRaia/files-sharing/internal/metrics"
	"github.com/MikhailRaia/files-sharing/internal/model"
	"github.com/MikhailRaia/files-sharing/internal/session"
	"github.com/MikhailRaia/files-sharing/internal/share"
	"github.com/MikhailRaia/files-sharing/internal/storage"
	"github.com/rs/zerolog/log"
)

// Shares is the share operations the API exposes.
type Shares interface {
	ItemsSharedWithUser(ctx context.Context, itemType, uid string) ([]model.Share, error)
	SharedBy(ctx context.Context, owner string) ([]model.Share, error)
	Create(ctx context.Context, owner string, req model.CreateShareRequest) (model.Share, error)
	Delete(ctx context.Context, owner string, id int64) error
}

// ShareView is a share as returned by the API.
type ShareView struct {
	model.Share
	URL string `json:"url,omitempty"`
}

// ShareList is the body of a share listing.
type ShareList struct {
	Message string      `json:"message"`
	Shares  []ShareView `json:"shares"`
}

// ShareAPIController lets a logged in user manage their shares.
type ShareAPIController struct {
	session *session.UserSession
	shares  Shares
	urls    LinkBuilder
	metrics *metrics.Metrics
	tr      *l10n.Table
}

func NewShareAPIController(sess *session.UserSession, shares Shares, urls LinkBuilder, m *metrics.Metrics, tr *l10n.Table) *ShareAPIController {
	return &ShareAPIController{
		session: sess,
		shares:  shares,
		urls:    urls,
		metrics: m,
		tr:      tr,
	}
}

// List returns the user's own shares, or with shared_with_me=true the shares
// other users granted them.
func (c *ShareAPIController) List(w http.ResponseWriter, r *http.Request) {
	uid, ok := c.requireUser(w)
	if !ok {
		return
	}

	var (
		shares []model.Share
		err    error
	)
	if r.URL.Query().Get("shared_with_me") == "true" {
		shares, err = c.shares.ItemsSharedWithUser(r.Context(), "", uid)
	} else {
		shares, err = c.shares.SharedBy(r.Context(), uid)
	}
	if err != nil {
		log.Error().Err(err).Str("user", uid).Msg("Failed to list shares")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	views := make([]ShareView, 0, len(shares))
	for _, s := range shares {
		views = append(views, c.view(s))
	}

	writeJSON(w, http.StatusOK, ShareList{
		Message: c.tr.N("{count} share", "{count} shares", len(views)),
		Shares:  views,
	})
}

func (c *ShareAPIController) Create(w http.ResponseWriter, r *http.Request) {
	uid, ok := c.requireUser(w)
	if !ok {
		return
	}

	var req model.CreateShareRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, c.tr.T("Error while sharing"))
		return
	}

	created, err := c.shares.Create(r.Context(), uid, req)
	if err != nil {
		switch {
		case errors.Is(err, share.ErrAlreadyShared):
			writeError(w, http.StatusConflict, c.tr.T("Error while sharing"))
		case errors.Is(err, share.ErrLinksDisabled), errors.Is(err, share.ErrRemoteDisabled):
			writeError(w, http.StatusForbidden, c.tr.T("Access forbidden"))
		case errors.Is(err, share.ErrInvalidShare), errors.Is(err, share.ErrPasswordRequired):
			writeError(w, http.StatusBadRequest, c.tr.T("Error while sharing"))
		default:
			log.Error().Err(err).Str("user", uid).Msg("Failed to create share")
			writeError(w, http.StatusInternalServerError, c.tr.T("Error while sharing"))
		}
		return
	}

	c.metrics.ShareCreated(created.ShareType.String())
	writeJSON(w, http.StatusCreated, c.view(created))
}

func (c *ShareAPIController) Delete(w http.ResponseWriter, r *http.Request) {
	uid, ok := c.requireUser(w)
	if !ok {
		return
	}

	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, c.tr.T("Invalid share"))
		return
	}

	if err := c.shares.Delete(r.Context(), uid, id); err != nil {
		switch {
		case errors.Is(err, share.ErrForbidden):
			writeError(w, http.StatusForbidden, c.tr.T("Access forbidden"))
		case errors.Is(err, storage.ErrNotFound):
			writeError(w, http.StatusNotFound, c.tr.T("Share not found"))
		default:
			log.Error().Err(err).Int64("shareID", id).Msg("Failed to delete share")
			writeError(w, http.StatusInternalServerError, c.tr.T("Error while unsharing"))
		}
		return
	}

	c.metrics.ShareDeleted()
	w.WriteHeader(http.StatusNoContent)
}

func (c *ShareAPIController) requireUser(w http.ResponseWriter) (string, bool) {
	if !c.session.IsLoggedIn() {
		writeError(w, http.StatusUnauthorized, c.tr.T("Not logged in"))
		return "", false
	}
	return c.session.UIDOrEmpty(), true
}

func (c *ShareAPIController) view(s model.Share) ShareView {
	v := ShareView{Share: s}
	if s.ShareType == model.ShareTypeLink && s.Token != "" {
		v.URL = c.urls.LinkToPublicShare(s.Token)
	}
	return v
}

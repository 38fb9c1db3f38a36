package handler

import (
	"context"
	"net/http"

	"github.com/MikhailRaia/files-sharing/internal/events"
	"github.com/MikhailRaia/files-sharing/internal/l10n"
	"github.com/MikhailRaia/files-sharing/internal/model"
	"github.com/MikhailRaia/files-sharing/internal/session"
	"github.com/rs/zerolog/log"
)

// MountLister returns the mounts contributed to a user's view.
type MountLister interface {
	MountsForUser(ctx context.Context, uid string) ([]model.Mount, error)
}

// Publisher emits hook events.
type Publisher interface {
	Publish(ctx context.Context, topic events.Topic, payload any) error
}

// MountsController sets up the user's filesystem view and lists its mounts.
type MountsController struct {
	session *session.UserSession
	hooks   Publisher
	mounts  MountLister
	tr      *l10n.Table
}

func NewMountsController(sess *session.UserSession, hooks Publisher, mounts MountLister, tr *l10n.Table) *MountsController {
	return &MountsController{
		session: sess,
		hooks:   hooks,
		mounts:  mounts,
		tr:      tr,
	}
}

func (c *MountsController) List(w http.ResponseWriter, r *http.Request) {
	if !c.session.IsLoggedIn() {
		writeError(w, http.StatusUnauthorized, c.tr.T("Not logged in"))
		return
	}
	uid := c.session.UIDOrEmpty()

	if err := c.hooks.Publish(r.Context(), events.FilesystemSetup, events.FilesystemSetupPayload{UID: uid}); err != nil {
		log.Warn().Err(err).Str("user", uid).Msg("Filesystem setup hook failed")
	}

	mounts, err := c.mounts.MountsForUser(r.Context(), uid)
	if err != nil {
		log.Error().Err(err).Str("user", uid).Msg("Failed to list mounts")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if mounts == nil {
		mounts = []model.Mount{}
	}
	writeJSON(w, http.StatusOK, mounts)
}

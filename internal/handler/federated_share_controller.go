package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/MikhailRaia/files-sharing/internal/external"
	"github.com/MikhailRaia/files-sharing/internal/l10n"
	"github.com/MikhailRaia/files-sharing/internal/model"
	"github.com/rs/zerolog/log"
)

// ExternalShareAdder records shares announced by remote instances.
type ExternalShareAdder interface {
	AddShare(ctx context.Context, req external.AddShareRequest) (model.ExternalShare, error)
}

// UserExistence reports whether a local account exists.
type UserExistence interface {
	Exists(ctx context.Context, uid string) (bool, error)
}

// FederatedShareController receives share offers from remote instances.
type FederatedShareController struct {
	incomingEnabled bool
	shares          ExternalShareAdder
	users           UserExistence
	tr              *l10n.Table
}

func NewFederatedShareController(incomingEnabled bool, shares ExternalShareAdder, users UserExistence, tr *l10n.Table) *FederatedShareController {
	return &FederatedShareController{
		incomingEnabled: incomingEnabled,
		shares:          shares,
		users:           users,
		tr:              tr,
	}
}

type federatedShareResponse struct {
	ID int64 `json:"id"`
}

// Receive stores an offered share as open for the local recipient given in
// shareWith.
func (c *FederatedShareController) Receive(w http.ResponseWriter, r *http.Request) {
	if !c.incomingEnabled {
		writeError(w, http.StatusServiceUnavailable, c.tr.T("Sharing is disabled"))
		return
	}

	values, err := formOrJSON(r, "remote", "remoteId", "token", "name", "owner", "shareWith")
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	recipient := values["shareWith"]
	exists, err := c.users.Exists(r.Context(), recipient)
	if err != nil {
		log.Error().Err(err).Str("user", recipient).Msg("Failed to look up share recipient")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if recipient == "" || !exists {
		writeError(w, http.StatusBadRequest, c.tr.T("Invalid share"))
		return
	}

	created, err := c.shares.AddShare(r.Context(), external.AddShareRequest{
		Remote:   values["remote"],
		RemoteID: values["remoteId"],
		Token:    values["token"],
		Name:     values["name"],
		Owner:    values["owner"],
		User:     recipient,
	})
	if err != nil {
		if errors.Is(err, external.ErrInvalidShare) {
			writeError(w, http.StatusBadRequest, c.tr.T("Invalid share"))
			return
		}
		log.Error().Err(err).Str("user", recipient).Msg("Failed to receive remote share")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, federatedShareResponse{ID: created.ID})
}

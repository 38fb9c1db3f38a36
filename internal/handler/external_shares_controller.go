package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/MikhailRaia/files-sharing/internal/external"
	"github.com/MikhailRaia/files-sharing/internal/httpclient"
	"github.com/MikhailRaia/files-sharing/internal/l10n"
	"github.com/MikhailRaia/files-sharing/internal/metrics"
	"github.com/MikhailRaia/files-sharing/internal/model"
	"github.com/MikhailRaia/files-sharing/internal/storage"
	"github.com/rs/zerolog/log"
)

// ExternalShares is the per-user view of shares offered by remote instances.
type ExternalShares interface {
	OpenShares(ctx context.Context) ([]model.ExternalShare, error)
	AcceptShare(ctx context.Context, id int64) error
	DeclineShare(ctx context.Context, id int64) error
}

// RemoteGetter fetches documents from remote instances.
type RemoteGetter interface {
	Get(ctx context.Context, target string) (httpclient.Response, error)
}

// ExternalSharesController lets a user accept or decline shares offered by
// remote instances.
type ExternalSharesController struct {
	incomingEnabled bool
	shares          ExternalShares
	remote          RemoteGetter
	metrics         *metrics.Metrics
	tr              *l10n.Table
}

func NewExternalSharesController(incomingEnabled bool, shares ExternalShares, remote RemoteGetter, m *metrics.Metrics, tr *l10n.Table) *ExternalSharesController {
	return &ExternalSharesController{
		incomingEnabled: incomingEnabled,
		shares:          shares,
		remote:          remote,
		metrics:         m,
		tr:              tr,
	}
}

func (c *ExternalSharesController) Index(w http.ResponseWriter, r *http.Request) {
	shares, err := c.shares.OpenShares(r.Context())
	if err != nil {
		c.writeManagerError(w, err)
		return
	}
	if shares == nil {
		shares = []model.ExternalShare{}
	}
	writeJSON(w, http.StatusOK, shares)
}

func (c *ExternalSharesController) Accept(w http.ResponseWriter, r *http.Request) {
	c.act(w, r, "accept", c.shares.AcceptShare)
}

func (c *ExternalSharesController) Decline(w http.ResponseWriter, r *http.Request) {
	c.act(w, r, "decline", c.shares.DeclineShare)
}

func (c *ExternalSharesController) act(w http.ResponseWriter, r *http.Request, action string, fn func(context.Context, int64) error) {
	if !c.incomingEnabled {
		writeError(w, http.StatusNotFound, c.tr.T("Sharing is disabled"))
		return
	}

	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, c.tr.T("Invalid share"))
		return
	}

	if err := fn(r.Context(), id); err != nil {
		c.writeManagerError(w, err)
		return
	}

	c.metrics.ExternalShareAction(action)
	writeJSON(w, http.StatusOK, map[string]any{})
}

// TestRemote reports which protocol, if any, reaches an instance at the
// remote given in the query string. The body is "https", "http" or false.
func (c *ExternalSharesController) TestRemote(w http.ResponseWriter, r *http.Request) {
	remote := strings.TrimSpace(r.URL.Query().Get("remote"))
	remote = strings.TrimRight(remote, "/")
	if remote == "" || strings.Contains(remote, "://") {
		writeJSON(w, http.StatusOK, false)
		return
	}

	for _, protocol := range []string{"https", "http"} {
		if c.isInstance(r.Context(), protocol+"://"+remote) {
			writeJSON(w, http.StatusOK, protocol)
			return
		}
	}
	writeJSON(w, http.StatusOK, false)
}

func (c *ExternalSharesController) isInstance(ctx context.Context, base string) bool {
	resp, err := c.remote.Get(ctx, base+"/status.php")
	if err != nil || !resp.OK() {
		return false
	}

	var status struct {
		Installed bool `json:"installed"`
	}
	if err := json.Unmarshal(resp.Body, &status); err != nil {
		log.Debug().Err(err).Str("remote", base).Msg("Remote status is not JSON")
		return false
	}
	return status.Installed
}

func (c *ExternalSharesController) writeManagerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, external.ErrNoUser):
		writeError(w, http.StatusUnauthorized, c.tr.T("Not logged in"))
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, c.tr.T("Share not found"))
	default:
		log.Error().Err(err).Msg("External share operation failed")
		w.WriteHeader(http.StatusInternalServerError)
	}
}

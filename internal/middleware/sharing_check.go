package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MikhailRaia/files-sharing/internal/config"
	"github.com/MikhailRaia/files-sharing/internal/l10n"
	"github.com/MikhailRaia/files-sharing/internal/session"
	"github.com/rs/zerolog/log"
)

var ErrSharingDisabled = errors.New("sharing is disabled")

// Controller names the middleware treats specially.
const (
	ShareControllerName          = "ShareController"
	ExternalSharesControllerName = "ExternalSharesController"
)

// AppChecker tells whether an app is enabled for a user.
type AppChecker interface {
	IsEnabledForUser(ctx context.Context, app, uid string) bool
}

// SharingCheckMiddleware hides the sharing endpoints when sharing is turned
// off for the current user, when federated shares are disabled for the
// external shares controller, or when links are disabled for the public
// share controller.
type SharingCheckMiddleware struct {
	appName    string
	apps       AppChecker
	policy     config.SharingConfig
	session    *session.UserSession
	controller string
	tr         *l10n.Table
}

func NewSharingCheckMiddleware(appName string, apps AppChecker, policy config.SharingConfig, sess *session.UserSession, controller string, tr *l10n.Table) *SharingCheckMiddleware {
	return &SharingCheckMiddleware{
		appName:    appName,
		apps:       apps,
		policy:     policy,
		session:    sess,
		controller: controller,
		tr:         tr,
	}
}

// Check returns ErrSharingDisabled when the controller must not be reached.
func (m *SharingCheckMiddleware) Check(ctx context.Context) error {
	if !m.isSharingEnabled(ctx) {
		return ErrSharingDisabled
	}

	switch m.controller {
	case ExternalSharesControllerName:
		if !m.policy.IncomingServer2Srv {
			return ErrSharingDisabled
		}
	case ShareControllerName:
		if !m.isLinkSharingEnabled() {
			return ErrSharingDisabled
		}
	}
	return nil
}

func (m *SharingCheckMiddleware) isSharingEnabled(ctx context.Context) bool {
	return m.apps.IsEnabledForUser(ctx, m.appName, m.session.UIDOrEmpty())
}

func (m *SharingCheckMiddleware) isLinkSharingEnabled() bool {
	return m.policy.Enabled && m.policy.AllowLinks
}

func (m *SharingCheckMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := m.Check(r.Context()); err != nil {
			log.Debug().
				Str("controller", m.controller).
				Str("uid", m.session.UIDOrEmpty()).
				Msg("Sharing check rejected request")

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": m.tr.T("Sharing is disabled")})
			return
		}
		next.ServeHTTP(w, r)
	})
}

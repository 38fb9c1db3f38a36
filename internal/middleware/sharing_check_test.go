package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MikhailRaia/files-sharing/internal/config"
	"github.com/MikhailRaia/files-sharing/internal/model"
	"github.com/MikhailRaia/files-sharing/internal/session"
	"github.com/stretchr/testify/assert"
)

type mockAppChecker struct {
	IsEnabledForUserFunc func(ctx context.Context, app, uid string) bool
}

func (m *mockAppChecker) IsEnabledForUser(ctx context.Context, app, uid string) bool {
	return m.IsEnabledForUserFunc(ctx, app, uid)
}

func TestSharingCheckMiddleware(t *testing.T) {
	enabled := &mockAppChecker{IsEnabledForUserFunc: func(ctx context.Context, app, uid string) bool {
		return app == "files_sharing"
	}}
	disabled := &mockAppChecker{IsEnabledForUserFunc: func(ctx context.Context, app, uid string) bool { return false }}

	tests := []struct {
		name       string
		apps       AppChecker
		policy     func(p *config.SharingConfig)
		controller string
		wantStatus int
	}{
		{name: "app enabled", apps: enabled, controller: "ShareAPIController", wantStatus: http.StatusOK},
		{name: "app disabled", apps: disabled, controller: "ShareAPIController", wantStatus: http.StatusNotFound},
		{
			name: "incoming federation disabled", apps: enabled, controller: ExternalSharesControllerName,
			policy:     func(p *config.SharingConfig) { p.IncomingServer2Srv = false },
			wantStatus: http.StatusNotFound,
		},
		{
			name: "incoming federation disabled elsewhere", apps: enabled, controller: ShareControllerName,
			policy:     func(p *config.SharingConfig) { p.IncomingServer2Srv = false },
			wantStatus: http.StatusOK,
		},
		{
			name: "links disabled", apps: enabled, controller: ShareControllerName,
			policy:     func(p *config.SharingConfig) { p.AllowLinks = false },
			wantStatus: http.StatusNotFound,
		},
		{
			name: "share api disabled", apps: enabled, controller: ShareControllerName,
			policy:     func(p *config.SharingConfig) { p.Enabled = false },
			wantStatus: http.StatusNotFound,
		},
		{
			name: "links disabled elsewhere", apps: enabled, controller: ExternalSharesControllerName,
			policy:     func(p *config.SharingConfig) { p.AllowLinks = false },
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := config.Default().Sharing
			if tt.policy != nil {
				tt.policy(&policy)
			}
			m := NewSharingCheckMiddleware("files_sharing", tt.apps, policy, session.New(&model.User{UID: "bob"}), tt.controller, nil)

			rec := httptest.NewRecorder()
			m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusNotFound {
				assert.ErrorIs(t, m.Check(context.Background()), ErrSharingDisabled)
				assert.Contains(t, rec.Body.String(), "Sharing is disabled")
			}
		})
	}
}

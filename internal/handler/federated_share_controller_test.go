package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/MikhailRaia/files-sharing/internal/external"
	"github.com/MikhailRaia/files-sharing/internal/model"
	"github.com/stretchr/testify/assert"
)

type mockShareAdder struct {
	AddShareFunc func(ctx context.Context, req external.AddShareRequest) (model.ExternalShare, error)
}

func (m *mockShareAdder) AddShare(ctx context.Context, req external.AddShareRequest) (model.ExternalShare, error) {
	return m.AddShareFunc(ctx, req)
}

type mockUserExistence map[string]bool

func (m mockUserExistence) Exists(ctx context.Context, uid string) (bool, error) {
	return m[uid], nil
}

func TestFederatedShareController_Receive(t *testing.T) {
	var received []external.AddShareRequest
	adder := &mockShareAdder{AddShareFunc: func(ctx context.Context, req external.AddShareRequest) (model.ExternalShare, error) {
		if req.Token == "" {
			return model.ExternalShare{}, external.ErrInvalidShare
		}
		received = append(received, req)
		return model.ExternalShare{ID: 42, User: req.User}, nil
	}}
	users := mockUserExistence{"bob": true}

	tests := []struct {
		name       string
		incoming   bool
		form       url.Values
		wantStatus int
		wantBody   string
	}{
		{
			name:       "received",
			incoming:   true,
			form:       url.Values{"remote": {"https://remote"}, "remoteId": {"7"}, "token": {"tok"}, "name": {"docs"}, "owner": {"alice"}, "shareWith": {"bob"}},
			wantStatus: http.StatusCreated,
			wantBody:   `{"id":42}`,
		},
		{
			name:       "unknown recipient",
			incoming:   true,
			form:       url.Values{"remote": {"https://remote"}, "token": {"tok"}, "name": {"docs"}, "shareWith": {"carol"}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing token",
			incoming:   true,
			form:       url.Values{"remote": {"https://remote"}, "name": {"docs"}, "shareWith": {"bob"}},
			wantStatus: http.StatusBadRequest,
			wantBody:   "Invalid share",
		},
		{
			name:       "incoming disabled",
			incoming:   false,
			form:       url.Values{"shareWith": {"bob"}},
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewFederatedShareController(tt.incoming, adder, users, nil)
			req := httptest.NewRequest(http.MethodPost, "/ocs/v1.php/cloud/shares", strings.NewReader(tt.form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			rr := httptest.NewRecorder()

			c.Receive(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.wantBody)
		})
	}

	if assert.Len(t, received, 1) {
		assert.Equal(t, "bob", received[0].User)
		assert.Equal(t, "7", received[0].RemoteID)
		assert.False(t, received[0].Accepted)
	}
}

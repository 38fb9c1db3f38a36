package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MikhailRaia/files-sharing/internal/l10n"
	"github.com/MikhailRaia/files-sharing/internal/model"
	"github.com/MikhailRaia/files-sharing/internal/session"
	"github.com/MikhailRaia/files-sharing/internal/share"
	"github.com/MikhailRaia/files-sharing/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newShareAPIRouter(sess *session.UserSession, shares Shares, tr *l10n.Table) http.Handler {
	c := NewShareAPIController(sess, shares, staticLinks("http://localhost:8080"), nil, tr)

	r := chi.NewRouter()
	r.Get("/api/shares", c.List)
	r.Post("/api/shares", c.Create)
	r.Delete("/api/shares/{id}", c.Delete)
	return r
}

func alice() *session.UserSession {
	return session.New(&model.User{UID: "alice"})
}

func TestShareAPIController_List(t *testing.T) {
	shares := &mockShares{
		SharedByFunc: func(ctx context.Context, owner string) ([]model.Share, error) {
			return []model.Share{
				{ID: 1, Owner: owner, ShareType: model.ShareTypeUser, ShareWith: "bob"},
				{ID: 2, Owner: owner, ShareType: model.ShareTypeLink, Token: "tok"},
			}, nil
		},
		ItemsSharedWithUserFunc: func(ctx context.Context, itemType, uid string) ([]model.Share, error) {
			return []model.Share{{ID: 9, Owner: "bob", ShareWith: uid}}, nil
		},
	}

	t.Run("own shares", func(t *testing.T) {
		router := newShareAPIRouter(alice(), shares, nil)
		req := httptest.NewRequest(http.MethodGet, "/api/shares", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		var list ShareList
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
		assert.Equal(t, "2 shares", list.Message)
		require.Len(t, list.Shares, 2)
		assert.Empty(t, list.Shares[0].URL)
		assert.Equal(t, "http://localhost:8080/s/tok", list.Shares[1].URL)
	})

	t.Run("shared with me", func(t *testing.T) {
		router := newShareAPIRouter(alice(), shares, nil)
		req := httptest.NewRequest(http.MethodGet, "/api/shares?shared_with_me=true", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		var list ShareList
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
		assert.Equal(t, "1 share", list.Message)
		require.Len(t, list.Shares, 1)
		assert.Equal(t, int64(9), list.Shares[0].ID)
	})

	t.Run("translated message", func(t *testing.T) {
		es := l10n.NewTable("es", l10n.English, nil, map[string][]string{
			l10n.PluralKey("{count} share", "{count} shares"): {"{count} recurso compartido", "{count} recursos compartidos"},
		})
		router := newShareAPIRouter(alice(), shares, es)
		req := httptest.NewRequest(http.MethodGet, "/api/shares", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Contains(t, rr.Body.String(), "2 recursos compartidos")
	})

	t.Run("anonymous", func(t *testing.T) {
		router := newShareAPIRouter(session.Anonymous(), shares, nil)
		req := httptest.NewRequest(http.MethodGet, "/api/shares", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestShareAPIController_Create(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		createErr   error
		wantStatus  int
	}{
		{name: "created", contentType: "application/json", body: `{"item_type":"file","item_source":4,"share_type":0,"share_with":"bob"}`, wantStatus: http.StatusCreated},
		{name: "wrong content type", contentType: "text/plain", body: `{}`, wantStatus: http.StatusBadRequest},
		{name: "malformed json", contentType: "application/json", body: `{`, wantStatus: http.StatusBadRequest},
		{name: "invalid share", contentType: "application/json", body: `{}`, createErr: share.ErrInvalidShare, wantStatus: http.StatusBadRequest},
		{name: "duplicate", contentType: "application/json", body: `{}`, createErr: share.ErrAlreadyShared, wantStatus: http.StatusConflict},
		{name: "links disabled", contentType: "application/json", body: `{}`, createErr: share.ErrLinksDisabled, wantStatus: http.StatusForbidden},
		{name: "storage failure", contentType: "application/json", body: `{}`, createErr: errors.New("db down"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shares := &mockShares{CreateFunc: func(ctx context.Context, owner string, req model.CreateShareRequest) (model.Share, error) {
				if tt.createErr != nil {
					return model.Share{}, tt.createErr
				}
				return model.Share{ID: 10, Owner: owner, ItemType: req.ItemType, ItemSource: req.ItemSource, ShareWith: req.ShareWith}, nil
			}}
			router := newShareAPIRouter(alice(), shares, nil)

			req := httptest.NewRequest(http.MethodPost, "/api/shares", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			rr := httptest.NewRecorder()

			router.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantStatus == http.StatusCreated {
				assert.Contains(t, rr.Body.String(), `"uid_owner":"alice"`)
			} else {
				assert.Contains(t, rr.Body.String(), "Error while sharing")
			}
		})
	}
}

func TestShareAPIController_Delete(t *testing.T) {
	shares := &mockShares{DeleteFunc: func(ctx context.Context, owner string, id int64) error {
		switch id {
		case 1:
			return nil
		case 2:
			return share.ErrForbidden
		case 3:
			return storage.ErrNotFound
		}
		return errors.New("db down")
	}}
	router := newShareAPIRouter(alice(), shares, nil)

	tests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{name: "deleted", path: "/api/shares/1", wantStatus: http.StatusNoContent},
		{name: "not the owner", path: "/api/shares/2", wantStatus: http.StatusForbidden},
		{name: "unknown", path: "/api/shares/3", wantStatus: http.StatusNotFound},
		{name: "failure", path: "/api/shares/4", wantStatus: http.StatusInternalServerError},
		{name: "bad id", path: "/api/shares/x", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodDelete, tt.path, nil)
			rr := httptest.NewRecorder()

			router.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
		})
	}
}

package handler

import (
	"context"

	"github.com/MikhailRaia/files-sharing/internal/httpclient"
	"github.com/MikhailRaia/files-sharing/internal/model"
)

type mockShares struct {
	ItemsSharedWithUserFunc func(ctx context.Context, itemType, uid string) ([]model.Share, error)
	SharedByFunc            func(ctx context.Context, owner string) ([]model.Share, error)
	CreateFunc              func(ctx context.Context, owner string, req model.CreateShareRequest) (model.Share, error)
	DeleteFunc              func(ctx context.Context, owner string, id int64) error
}

func (m *mockShares) ItemsSharedWithUser(ctx context.Context, itemType, uid string) ([]model.Share, error) {
	return m.ItemsSharedWithUserFunc(ctx, itemType, uid)
}

func (m *mockShares) SharedBy(ctx context.Context, owner string) ([]model.Share, error) {
	return m.SharedByFunc(ctx, owner)
}

func (m *mockShares) Create(ctx context.Context, owner string, req model.CreateShareRequest) (model.Share, error) {
	return m.CreateFunc(ctx, owner, req)
}

func (m *mockShares) Delete(ctx context.Context, owner string, id int64) error {
	return m.DeleteFunc(ctx, owner, id)
}

type mockPublicShares struct {
	ByTokenFunc       func(ctx context.Context, token string) (model.Share, error)
	CheckPasswordFunc func(share model.Share, password string) bool
}

func (m *mockPublicShares) ByToken(ctx context.Context, token string) (model.Share, error) {
	return m.ByTokenFunc(ctx, token)
}

func (m *mockPublicShares) CheckPassword(share model.Share, password string) bool {
	return m.CheckPasswordFunc(share, password)
}

type mockExternalShares struct {
	OpenSharesFunc   func(ctx context.Context) ([]model.ExternalShare, error)
	AcceptShareFunc  func(ctx context.Context, id int64) error
	DeclineShareFunc func(ctx context.Context, id int64) error
}

func (m *mockExternalShares) OpenShares(ctx context.Context) ([]model.ExternalShare, error) {
	return m.OpenSharesFunc(ctx)
}

func (m *mockExternalShares) AcceptShare(ctx context.Context, id int64) error {
	return m.AcceptShareFunc(ctx, id)
}

func (m *mockExternalShares) DeclineShare(ctx context.Context, id int64) error {
	return m.DeclineShareFunc(ctx, id)
}

type mockRemoteGetter struct {
	GetFunc func(ctx context.Context, target string) (httpclient.Response, error)
}

func (m *mockRemoteGetter) Get(ctx context.Context, target string) (httpclient.Response, error) {
	return m.GetFunc(ctx, target)
}

type staticLinks string

func (s staticLinks) LinkToPublicShare(token string) string {
	return string(s) + "/s/" + token
}

package external

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/MikhailRaia/files-sharing/internal/httpclient"
	"github.com/MikhailRaia/files-sharing/internal/mount"
	"github.com/MikhailRaia/files-sharing/internal/notification"
	"github.com/MikhailRaia/files-sharing/internal/storage"
	"github.com/MikhailRaia/files-sharing/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type remoteCall struct {
	Path  string
	Token string
}

type fakeRemote struct {
	mu     sync.Mutex
	calls  []remoteCall
	server *httptest.Server
}

func newFakeRemote(t *testing.T) *fakeRemote {
	t.Helper()

	r := &fakeRemote{}
	r.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		_ = req.ParseForm()
		r.mu.Lock()
		r.calls = append(r.calls, remoteCall{Path: req.URL.Path, Token: req.PostForm.Get("token")})
		r.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(r.server.Close)
	return r
}

func (r *fakeRemote) Calls() []remoteCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]remoteCall{}, r.calls...)
}

type testEnv struct {
	store         *memory.Storage
	mounts        *mount.Manager
	notifications *notification.Manager
	remote        *fakeRemote
	helper        *httpclient.Helper
	loader        *mount.Loader
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	loader := mount.NewLoader()
	loader.Register(StorageClass, NewRemoteStorage)

	return &testEnv{
		store:         memory.NewStorage(),
		mounts:        mount.NewManager(),
		notifications: notification.NewManager(),
		remote:        newFakeRemote(t),
		helper:        httpclient.NewHelper(httpclient.NewClientService(time.Second)),
		loader:        loader,
	}
}

func (e *testEnv) manager(uid *string) *Manager {
	return NewManager(e.store, e.mounts, e.loader, e.helper, e.notifications, uid)
}

func strPtr(s string) *string { return &s }

func TestManager_NoUser(t *testing.T) {
	env := newTestEnv(t)
	m := env.manager(nil)
	ctx := context.Background()

	_, err := m.AddShare(ctx, AddShareRequest{Remote: env.remote.server.URL, Token: "t", Name: "docs"})
	assert.ErrorIs(t, err, ErrNoUser)

	_, err = m.GetShare(ctx, 1)
	assert.ErrorIs(t, err, ErrNoUser)

	_, err = m.OpenShares(ctx)
	assert.ErrorIs(t, err, ErrNoUser)

	assert.ErrorIs(t, m.AcceptShare(ctx, 1), ErrNoUser)
	assert.ErrorIs(t, m.DeclineShare(ctx, 1), ErrNoUser)
	assert.ErrorIs(t, m.RemoveShare(ctx, "/docs"), ErrNoUser)
	assert.Nil(t, m.UID())

	assert.ErrorIs(t, env.manager(strPtr("")).AcceptShare(ctx, 1), ErrNoUser)
}

func TestManager_AddShareInvalid(t *testing.T) {
	env := newTestEnv(t)
	m := env.manager(strPtr("bob"))

	tests := []struct {
		name string
		req  AddShareRequest
	}{
		{name: "no remote", req: AddShareRequest{Token: "t", Name: "docs"}},
		{name: "no token", req: AddShareRequest{Remote: env.remote.server.URL, Name: "docs"}},
		{name: "no name", req: AddShareRequest{Remote: env.remote.server.URL, Token: "t", Name: " / "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.AddShare(context.Background(), tt.req)
			assert.ErrorIs(t, err, ErrInvalidShare)
		})
	}
}

func TestManager_AddExplicitUserWithoutSession(t *testing.T) {
	env := newTestEnv(t)
	m := env.manager(nil)

	share, err := m.AddShare(context.Background(), AddShareRequest{
		Remote: env.remote.server.URL + "/", RemoteID: "7", Token: "tok", Name: "docs", Owner: "alice", User: "bob",
	})
	require.NoError(t, err)
	assert.Equal(t, "bob", share.User)
	assert.Equal(t, env.remote.server.URL, share.Remote)
	assert.Equal(t, "{{TemporaryMountPointName#docs}}", share.MountPoint)
	assert.Len(t, env.notifications.List(context.Background(), "bob"), 1)
}

func TestManager_AcceptShareMountFails(t *testing.T) {
	env := newTestEnv(t)
	env.loader = mount.NewLoader()
	m := env.manager(strPtr("bob"))
	ctx := context.Background()

	share, err := m.AddShare(ctx, AddShareRequest{Remote: env.remote.server.URL, RemoteID: "7", Token: "tok", Name: "docs", Owner: "alice"})
	require.NoError(t, err)

	err = m.AcceptShare(ctx, share.ID)
	assert.ErrorIs(t, err, mount.ErrUnknownStorageClass)

	open, err := m.OpenShares(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1, "share must stay open when it cannot be mounted")
	assert.False(t, open[0].Accepted)

	_, ok := env.mounts.Find("/bob/files/docs")
	assert.False(t, ok)
	assert.Empty(t, env.remote.Calls())
}

func TestManager_AcceptShare(t *testing.T) {
	env := newTestEnv(t)
	m := env.manager(strPtr("bob"))
	ctx := context.Background()

	share, err := m.AddShare(ctx, AddShareRequest{Remote: env.remote.server.URL, RemoteID: "7", Token: "tok", Name: "docs", Owner: "alice"})
	require.NoError(t, err)

	open, err := m.OpenShares(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)

	require.NoError(t, m.AcceptShare(ctx, share.ID))

	open, err = m.OpenShares(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)

	got, err := m.GetShare(ctx, share.ID)
	require.NoError(t, err)
	assert.True(t, got.Accepted)
	assert.Equal(t, "/docs", got.MountPoint)

	entry, ok := env.mounts.Find("/bob/files/docs/readme.txt")
	require.True(t, ok)
	remote, ok := entry.Storage.(*RemoteStorage)
	require.True(t, ok)
	assert.Equal(t, "tok", remote.Token)

	calls := env.remote.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "/ocs/v1.php/cloud/shares/7/accept", calls[0].Path)
	assert.Equal(t, "tok", calls[0].Token)

	assert.Empty(t, env.notifications.List(ctx, "bob"))
}

func TestManager_AcceptPicksUniqueMountPoint(t *testing.T) {
	env := newTestEnv(t)
	m := env.manager(strPtr("bob"))
	ctx := context.Background()

	first, err := m.AddShare(ctx, AddShareRequest{Remote: env.remote.server.URL, Token: "a", Name: "docs", Accepted: true})
	require.NoError(t, err)
	assert.Equal(t, "/docs", first.MountPoint)

	second, err := m.AddShare(ctx, AddShareRequest{Remote: env.remote.server.URL, Token: "b", Name: "docs"})
	require.NoError(t, err)
	require.NoError(t, m.AcceptShare(ctx, second.ID))

	got, err := m.GetShare(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, "/docs (2)", got.MountPoint)
	assert.Len(t, env.mounts.ForUser("bob"), 2)
}

func TestManager_DeclineShare(t *testing.T) {
	env := newTestEnv(t)
	m := env.manager(strPtr("bob"))
	ctx := context.Background()

	share, err := m.AddShare(ctx, AddShareRequest{Remote: env.remote.server.URL, RemoteID: "9", Token: "tok", Name: "docs"})
	require.NoError(t, err)

	require.NoError(t, m.DeclineShare(ctx, share.ID))

	_, err = m.GetShare(ctx, share.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	calls := env.remote.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "/ocs/v1.php/cloud/shares/9/decline", calls[0].Path)
	assert.Empty(t, env.notifications.List(ctx, "bob"))
}

func TestManager_OtherUsersShareIsHidden(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	share, err := env.manager(strPtr("bob")).AddShare(ctx, AddShareRequest{Remote: env.remote.server.URL, Token: "tok", Name: "docs"})
	require.NoError(t, err)

	carol := env.manager(strPtr("carol"))
	_, err = carol.GetShare(ctx, share.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, carol.AcceptShare(ctx, share.ID), storage.ErrNotFound)
}

func TestManager_RemoveShare(t *testing.T) {
	env := newTestEnv(t)
	m := env.manager(strPtr("bob"))
	ctx := context.Background()

	_, err := m.AddShare(ctx, AddShareRequest{Remote: env.remote.server.URL, RemoteID: "3", Token: "tok", Name: "docs", Accepted: true})
	require.NoError(t, err)
	require.Len(t, env.mounts.ForUser("bob"), 1)

	assert.ErrorIs(t, m.RemoveShare(ctx, "/missing"), storage.ErrNotFound)
	require.NoError(t, m.RemoveShare(ctx, "docs"))

	assert.Empty(t, env.mounts.ForUser("bob"))
	accepted, err := m.AcceptedShares(ctx)
	require.NoError(t, err)
	assert.Empty(t, accepted)

	calls := env.remote.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "/ocs/v1.php/cloud/shares/3/decline", calls[0].Path)
}

func TestManager_RemoveUserShares(t *testing.T) {
	env := newTestEnv(t)
	m := env.manager(nil)
	ctx := context.Background()

	_, err := m.AddShare(ctx, AddShareRequest{Remote: env.remote.server.URL, RemoteID: "1", Token: "a", Name: "one", User: "bob", Accepted: true})
	require.NoError(t, err)
	_, err = m.AddShare(ctx, AddShareRequest{Remote: env.remote.server.URL, RemoteID: "2", Token: "b", Name: "two", User: "bob"})
	require.NoError(t, err)
	_, err = m.AddShare(ctx, AddShareRequest{Remote: env.remote.server.URL, Token: "c", Name: "three", User: "carol"})
	require.NoError(t, err)

	require.NoError(t, m.RemoveUserShares(ctx, "bob"))

	left, err := env.store.ExternalSharesForUser(ctx, "bob", nil)
	require.NoError(t, err)
	assert.Empty(t, left)
	assert.Empty(t, env.mounts.ForUser("bob"))

	others, err := env.store.ExternalSharesForUser(ctx, "carol", nil)
	require.NoError(t, err)
	assert.Len(t, others, 1)
	assert.Len(t, env.remote.Calls(), 2)
}

func TestManager_MountAccepted(t *testing.T) {
	env := newTestEnv(t)
	m := env.manager(strPtr("bob"))
	ctx := context.Background()

	_, err := m.AddShare(ctx, AddShareRequest{Remote: env.remote.server.URL, Token: "a", Name: "docs", Accepted: true})
	require.NoError(t, err)

	require.NoError(t, env.mounts.Remove("/bob/files/docs"))
	require.NoError(t, m.MountAccepted(ctx))
	require.NoError(t, m.MountAccepted(ctx))
	assert.Len(t, env.mounts.ForUser("bob"), 1)
}

func TestRemoteStorage(t *testing.T) {
	_, err := NewRemoteStorage(map[string]string{"remote": "https://r"})
	assert.Error(t, err)

	a, err := NewRemoteStorage(map[string]string{"remote": "https://r", "token": "x"})
	require.NoError(t, err)
	b, err := NewRemoteStorage(map[string]string{"remote": "https://r", "token": "y"})
	require.NoError(t, err)

	assert.Contains(t, a.ID(), "shared::")
	assert.NotEqual(t, a.ID(), b.ID())
}

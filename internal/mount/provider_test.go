package mount

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/MikhailRaia/files-sharing/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSharedItems struct {
	ItemsSharedWithUserFunc func(ctx context.Context, itemType, uid string) ([]model.Share, error)
}

func (m *mockSharedItems) ItemsSharedWithUser(ctx context.Context, itemType, uid string) ([]model.Share, error) {
	return m.ItemsSharedWithUserFunc(ctx, itemType, uid)
}

type mockETags struct {
	ETagFunc func(ctx context.Context, uid string, shareID int64) (string, error)
}

func (m *mockETags) ETag(ctx context.Context, uid string, shareID int64) (string, error) {
	return m.ETagFunc(ctx, uid, shareID)
}

type staticProvider []model.Mount

func (p staticProvider) MountsForUser(ctx context.Context, uid string) ([]model.Mount, error) {
	return p, nil
}

func TestShareProvider_MountsForUser(t *testing.T) {
	shares := []model.Share{
		{ID: 1, ItemType: model.ItemTypeFolder, ItemSource: 100, FileTarget: "/docs", Owner: "alice", Permissions: model.PermissionRead},
		{ID: 2, ItemType: model.ItemTypeFolder, ItemSource: 100, FileTarget: "/docs", Owner: "alice", Permissions: model.PermissionUpdate},
		{ID: 3, ItemType: model.ItemTypeFile, ItemSource: 200, FileTarget: "/report.pdf", Owner: "carol", Permissions: model.PermissionRead},
		{ID: 4, ItemType: "calendar", ItemSource: 300, FileTarget: "/cal", Owner: "carol", Permissions: model.PermissionRead},
	}

	provider := NewShareProvider(
		&mockSharedItems{ItemsSharedWithUserFunc: func(ctx context.Context, itemType, uid string) ([]model.Share, error) {
			assert.Equal(t, "bob", uid)
			return shares, nil
		}},
		&mockETags{ETagFunc: func(ctx context.Context, uid string, shareID int64) (string, error) {
			if shareID == 1 {
				return "123", nil
			}
			return "", nil
		}},
		"Shared",
	)

	mounts, err := provider.MountsForUser(context.Background(), "bob")
	require.NoError(t, err)
	require.Len(t, mounts, 2)

	assert.Equal(t, "/bob/files/Shared/docs", mounts[0].MountPoint)
	assert.Equal(t, model.PermissionRead|model.PermissionUpdate, mounts[0].Permissions)
	assert.Equal(t, int64(1), mounts[0].ShareID)
	assert.Equal(t, "123", mounts[0].ETag)
	assert.Equal(t, "alice", mounts[0].Owner)

	assert.Equal(t, "/bob/files/Shared/report.pdf", mounts[1].MountPoint)
	assert.Equal(t, "shared::200", mounts[1].StorageID)
}

func TestShareProvider_NewestMarkWins(t *testing.T) {
	tests := []struct {
		name  string
		marks map[int64]string
		want  string
	}{
		{name: "later share newer", marks: map[int64]string{7: "1700000000", 9: "1800000000"}, want: "1800000000"},
		{name: "first share newer", marks: map[int64]string{7: "1800000000", 9: "1700000000"}, want: "1800000000"},
		{name: "only later share marked", marks: map[int64]string{9: "1800000000"}, want: "1800000000"},
		{name: "none marked", marks: map[int64]string{}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := NewShareProvider(
				&mockSharedItems{ItemsSharedWithUserFunc: func(ctx context.Context, itemType, uid string) ([]model.Share, error) {
					return []model.Share{
						{ID: 7, ItemType: model.ItemTypeFile, ItemSource: 70, FileTarget: "/plan.txt", Permissions: model.PermissionRead},
						{ID: 9, ItemType: model.ItemTypeFile, ItemSource: 70, FileTarget: "/plan.txt", Permissions: model.PermissionUpdate},
					}, nil
				}},
				&mockETags{ETagFunc: func(ctx context.Context, uid string, shareID int64) (string, error) {
					return tt.marks[shareID], nil
				}},
				"",
			)

			mounts, err := provider.MountsForUser(context.Background(), "bob")
			require.NoError(t, err)
			require.Len(t, mounts, 1)
			assert.Equal(t, int64(7), mounts[0].ShareID)
			assert.Equal(t, tt.want, mounts[0].ETag)
		})
	}
}

func TestShareProvider_ErrorsPropagate(t *testing.T) {
	provider := NewShareProvider(
		&mockSharedItems{ItemsSharedWithUserFunc: func(ctx context.Context, itemType, uid string) ([]model.Share, error) {
			return nil, errors.New("db down")
		}},
		&mockETags{},
		"",
	)

	_, err := provider.MountsForUser(context.Background(), "bob")
	assert.Error(t, err)
}

func TestShareProvider_ETagFailureIsNotFatal(t *testing.T) {
	provider := NewShareProvider(
		&mockSharedItems{ItemsSharedWithUserFunc: func(ctx context.Context, itemType, uid string) ([]model.Share, error) {
			return []model.Share{{ID: 1, ItemType: model.ItemTypeFile, ItemSource: 1, FileTarget: "/a"}}, nil
		}},
		&mockETags{ETagFunc: func(ctx context.Context, uid string, shareID int64) (string, error) {
			return "", errors.New("no prefs")
		}},
		"",
	)

	mounts, err := provider.MountsForUser(context.Background(), "bob")
	require.NoError(t, err)
	require.Len(t, mounts, 1)
	assert.Equal(t, "/bob/files/a", mounts[0].MountPoint)
	assert.Empty(t, mounts[0].ETag)
}

func TestCollection(t *testing.T) {
	c := NewCollection()
	assert.Empty(t, c.Providers())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RegisterProvider(staticProvider{{MountPoint: "/x"}})
		}()
	}
	wg.Wait()
	assert.Len(t, c.Providers(), 10)

	mounts, err := c.MountsForUser(context.Background(), "bob")
	require.NoError(t, err)
	assert.Len(t, mounts, 10)
}

func TestCollection_SnapshotIsStable(t *testing.T) {
	c := NewCollection()
	c.RegisterProvider(staticProvider{})

	snapshot := c.Providers()
	c.RegisterProvider(staticProvider{})

	assert.Len(t, snapshot, 1)
	assert.Len(t, c.Providers(), 2)
}

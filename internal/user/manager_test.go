package user

import (
	"context"
	"testing"

	"github.com/MikhailRaia/files-sharing/internal/storage"
	"github.com/MikhailRaia/files-sharing/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_CreateUser(t *testing.T) {
	m := NewManager(memory.NewStorage())
	ctx := context.Background()

	user, err := m.CreateUser(ctx, "alice", "", "pw")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.DisplayName)
	assert.NotEqual(t, "pw", user.PasswordHash)

	_, err = m.CreateUser(ctx, "alice", "Alice", "pw")
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)

	_, err = m.CreateUser(ctx, "a/b", "", "pw")
	assert.ErrorIs(t, err, ErrInvalidUID)

	_, err = m.CreateUser(ctx, "  ", "", "pw")
	assert.ErrorIs(t, err, ErrInvalidUID)
}

func TestManager_ExistsAndPassword(t *testing.T) {
	m := NewManager(memory.NewStorage())
	ctx := context.Background()
	_, err := m.CreateUser(ctx, "alice", "Alice", "pw")
	require.NoError(t, err)

	exists, err := m.Exists(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = m.Exists(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, exists)

	user, ok := m.CheckPassword(ctx, "alice", "pw")
	assert.True(t, ok)
	assert.Equal(t, "alice", user.UID)

	_, ok = m.CheckPassword(ctx, "alice", "nope")
	assert.False(t, ok)

	_, ok = m.CheckPassword(ctx, "bob", "pw")
	assert.False(t, ok)
}

func TestManager_Search(t *testing.T) {
	m := NewManager(memory.NewStorage())
	ctx := context.Background()
	for _, uid := range []string{"alice", "alicia", "bob"} {
		_, err := m.CreateUser(ctx, uid, "", "pw")
		require.NoError(t, err)
	}

	users, err := m.Search(ctx, "ali", 0)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0].UID)

	users, err = m.Search(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

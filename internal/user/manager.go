// Package user manages accounts.
package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MikhailRaia/files-sharing/internal/auth"
	"github.com/MikhailRaia/files-sharing/internal/model"
	"github.com/MikhailRaia/files-sharing/internal/storage"
	"github.com/rs/zerolog/log"
)

var ErrInvalidUID = errors.New("invalid user id")

// Manager creates, finds and authenticates users.
type Manager struct {
	store storage.UserStorage
}

func NewManager(store storage.UserStorage) *Manager {
	return &Manager{store: store}
}

// CreateUser stores a new user with a hashed password.
func (m *Manager) CreateUser(ctx context.Context, uid, displayName, password string) (model.User, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" || strings.ContainsAny(uid, "/\\") {
		return model.User{}, fmt.Errorf("%w: %q", ErrInvalidUID, uid)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return model.User{}, err
	}

	if displayName == "" {
		displayName = uid
	}
	user := model.User{UID: uid, DisplayName: displayName, PasswordHash: hash}
	if err := m.store.CreateUser(ctx, user); err != nil {
		return model.User{}, err
	}

	log.Info().Str("uid", uid).Msg("User created")
	return user, nil
}

// Get returns the user with uid.
func (m *Manager) Get(ctx context.Context, uid string) (model.User, error) {
	return m.store.GetUser(ctx, uid)
}

// Exists reports whether uid is a known user.
func (m *Manager) Exists(ctx context.Context, uid string) (bool, error) {
	_, err := m.store.GetUser(ctx, uid)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// CheckPassword returns the user when password matches.
func (m *Manager) CheckPassword(ctx context.Context, uid, password string) (model.User, bool) {
	user, err := m.store.GetUser(ctx, uid)
	if err != nil {
		return model.User{}, false
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return model.User{}, false
	}
	return user, true
}

// Search returns users matching pattern.
func (m *Manager) Search(ctx context.Context, pattern string, limit int) ([]model.User, error) {
	return m.store.SearchUsers(ctx, pattern, limit)
}

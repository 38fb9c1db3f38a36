package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/MikhailRaia/files-sharing/internal/model"
	"github.com/MikhailRaia/files-sharing/internal/storage"
)

// Storage implements storage.Storage in memory for testing and development.
type Storage struct {
	mutex sync.RWMutex
	// txMu serialises transactions with every writer outside a transaction.
	txMu sync.Mutex

	shares         map[int64]model.Share
	nextShareID    int64
	users          map[string]model.User
	groups         map[string]model.Group
	members        map[string]map[string]bool // gid -> uid set
	external       map[int64]model.ExternalShare
	nextExternalID int64
	preferences    map[prefKey]string
}

type prefKey struct {
	uid, app, key string
}

type txKey struct{}

type tx struct {
	undo []func()
}

// NewStorage creates a new in-memory storage instance.
func NewStorage() *Storage {
	return &Storage{
		shares:      make(map[int64]model.Share),
		users:       make(map[string]model.User),
		groups:      make(map[string]model.Group),
		members:     make(map[string]map[string]bool),
		external:    make(map[int64]model.ExternalShare),
		preferences: make(map[prefKey]string),
	}
}

// InTx runs fn while holding the transaction lock. Changes made through the
// transaction context are undone when fn returns an error.
func (s *Storage) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*tx); ok {
		return fn(ctx)
	}

	t := &tx{}
	txCtx, hooks := storage.WithTxHooks(context.WithValue(ctx, txKey{}, t))
	if err := s.runTx(txCtx, t, fn); err != nil {
		hooks.Rollback()
		return err
	}

	hooks.Commit(ctx)
	return nil
}

// runTx holds the transaction lock only for fn and its undo, so hooks run
// after it is released and may use the storage themselves.
func (s *Storage) runTx(ctx context.Context, t *tx, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := fn(ctx); err != nil {
		s.mutex.Lock()
		for i := len(t.undo) - 1; i >= 0; i-- {
			t.undo[i]()
		}
		s.mutex.Unlock()
		return err
	}
	return nil
}

// write applies fn under the write lock. fn returns an undo function, or nil
// when it changed nothing.
func (s *Storage) write(ctx context.Context, fn func() (func(), error)) error {
	t, inTx := ctx.Value(txKey{}).(*tx)
	if !inTx {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	undo, err := fn()
	if err != nil {
		return err
	}
	if inTx && undo != nil {
		t.undo = append(t.undo, undo)
	}
	return nil
}

// CreateShare stores a share and assigns its ID.
func (s *Storage) CreateShare(ctx context.Context, share model.Share) (model.Share, error) {
	err := s.write(ctx, func() (func(), error) {
		if share.Token != "" {
			for _, existing := range s.shares {
				if existing.Token == share.Token {
					return nil, fmt.Errorf("share token: %w", storage.ErrAlreadyExists)
				}
			}
		}

		s.nextShareID++
		share.ID = s.nextShareID
		s.shares[share.ID] = share

		id := share.ID
		return func() { delete(s.shares, id) }, nil
	})
	if err != nil {
		return model.Share{}, err
	}
	return share, nil
}

// GetShare returns the share with the given ID.
func (s *Storage) GetShare(ctx context.Context, id int64) (model.Share, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	share, ok := s.shares[id]
	if !ok {
		return model.Share{}, storage.ErrNotFound
	}
	return share, nil
}

// GetShareByToken returns the link share identified by token.
func (s *Storage) GetShareByToken(ctx context.Context, token string) (model.Share, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	for _, share := range s.shares {
		if share.ShareType == model.ShareTypeLink && share.Token == token {
			return share, nil
		}
	}
	return model.Share{}, storage.ErrNotFound
}

// DeleteShare removes a share.
func (s *Storage) DeleteShare(ctx context.Context, id int64) error {
	return s.write(ctx, func() (func(), error) {
		share, ok := s.shares[id]
		if !ok {
			return nil, storage.ErrNotFound
		}
		delete(s.shares, id)
		return func() { s.shares[id] = share }, nil
	})
}

// SharesForRecipients returns shares granted to userID directly or through groupIDs.
func (s *Storage) SharesForRecipients(ctx context.Context, itemType, userID string, groupIDs []string) ([]model.Share, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	groupSet := make(map[string]bool, len(groupIDs))
	for _, gid := range groupIDs {
		groupSet[gid] = true
	}

	result := []model.Share{}
	for _, share := range s.shares {
		if itemType != "" && share.ItemType != itemType {
			continue
		}
		switch share.ShareType {
		case model.ShareTypeUser:
			if share.ShareWith == userID {
				result = append(result, share)
			}
		case model.ShareTypeGroup:
			if groupSet[share.ShareWith] {
				result = append(result, share)
			}
		}
	}

	sortShares(result)
	return result, nil
}

// SharesByOwner returns all shares created by owner.
func (s *Storage) SharesByOwner(ctx context.Context, owner string) ([]model.Share, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	result := []model.Share{}
	for _, share := range s.shares {
		if share.Owner == owner {
			result = append(result, share)
		}
	}

	sortShares(result)
	return result, nil
}

func sortShares(shares []model.Share) {
	sort.Slice(shares, func(i, j int) bool { return shares[i].ID < shares[j].ID })
}

// CreateUser stores a new account.
func (s *Storage) CreateUser(ctx context.Context, user model.User) error {
	return s.write(ctx, func() (func(), error) {
		if _, exists := s.users[user.UID]; exists {
			return nil, fmt.Errorf("user %q: %w", user.UID, storage.ErrAlreadyExists)
		}
		s.users[user.UID] = user
		return func() { delete(s.users, user.UID) }, nil
	})
}

// GetUser returns the account with the given uid.
func (s *Storage) GetUser(ctx context.Context, uid string) (model.User, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	user, ok := s.users[uid]
	if !ok {
		return model.User{}, storage.ErrNotFound
	}
	return user, nil
}

// SearchUsers returns accounts whose uid or display name contains pattern.
func (s *Storage) SearchUsers(ctx context.Context, pattern string, limit int) ([]model.User, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	pattern = strings.ToLower(pattern)
	result := []model.User{}
	for _, user := range s.users {
		if strings.Contains(strings.ToLower(user.UID), pattern) ||
			strings.Contains(strings.ToLower(user.DisplayName), pattern) {
			result = append(result, user)
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].UID < result[j].UID })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// CreateGroup stores a new group.
func (s *Storage) CreateGroup(ctx context.Context, group model.Group) error {
	return s.write(ctx, func() (func(), error) {
		if _, exists := s.groups[group.GID]; exists {
			return nil, fmt.Errorf("group %q: %w", group.GID, storage.ErrAlreadyExists)
		}
		s.groups[group.GID] = group
		s.members[group.GID] = make(map[string]bool)
		return func() {
			delete(s.groups, group.GID)
			delete(s.members, group.GID)
		}, nil
	})
}

// GetGroup returns the group with the given gid.
func (s *Storage) GetGroup(ctx context.Context, gid string) (model.Group, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	group, ok := s.groups[gid]
	if !ok {
		return model.Group{}, storage.ErrNotFound
	}
	return group, nil
}

// AddMember adds uid to gid. Adding an existing member is a no-op.
func (s *Storage) AddMember(ctx context.Context, gid, uid string) error {
	return s.write(ctx, func() (func(), error) {
		members, ok := s.members[gid]
		if !ok {
			return nil, fmt.Errorf("group %q: %w", gid, storage.ErrNotFound)
		}
		if members[uid] {
			return nil, nil
		}
		members[uid] = true
		return func() { delete(members, uid) }, nil
	})
}

// RemoveMember removes uid from gid.
func (s *Storage) RemoveMember(ctx context.Context, gid, uid string) error {
	return s.write(ctx, func() (func(), error) {
		members, ok := s.members[gid]
		if !ok {
			return nil, fmt.Errorf("group %q: %w", gid, storage.ErrNotFound)
		}
		if !members[uid] {
			return nil, nil
		}
		delete(members, uid)
		return func() { members[uid] = true }, nil
	})
}

// IsMember reports whether uid belongs to gid.
func (s *Storage) IsMember(ctx context.Context, gid, uid string) (bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.members[gid][uid], nil
}

// GroupsForUser returns the sorted gids uid belongs to.
func (s *Storage) GroupsForUser(ctx context.Context, uid string) ([]string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	result := []string{}
	for gid, members := range s.members {
		if members[uid] {
			result = append(result, gid)
		}
	}
	sort.Strings(result)
	return result, nil
}

// Members returns the sorted uids of gid.
func (s *Storage) Members(ctx context.Context, gid string) ([]string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	members, ok := s.members[gid]
	if !ok {
		return nil, storage.ErrNotFound
	}
	result := make([]string, 0, len(members))
	for uid := range members {
		result = append(result, uid)
	}
	sort.Strings(result)
	return result, nil
}

// AddExternalShare stores a share offered by a remote instance.
func (s *Storage) AddExternalShare(ctx context.Context, share model.ExternalShare) (model.ExternalShare, error) {
	err := s.write(ctx, func() (func(), error) {
		s.nextExternalID++
		share.ID = s.nextExternalID
		s.external[share.ID] = share

		id := share.ID
		return func() { delete(s.external, id) }, nil
	})
	if err != nil {
		return model.ExternalShare{}, err
	}
	return share, nil
}

// GetExternalShare returns the external share with the given ID.
func (s *Storage) GetExternalShare(ctx context.Context, id int64) (model.ExternalShare, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	share, ok := s.external[id]
	if !ok {
		return model.ExternalShare{}, storage.ErrNotFound
	}
	return share, nil
}

// ExternalSharesForUser lists external shares of uid, optionally filtered by acceptance.
func (s *Storage) ExternalSharesForUser(ctx context.Context, uid string, accepted *bool) ([]model.ExternalShare, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	result := []model.ExternalShare{}
	for _, share := range s.external {
		if share.User != uid {
			continue
		}
		if accepted != nil && share.Accepted != *accepted {
			continue
		}
		result = append(result, share)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// AcceptExternalShare marks a share accepted and records its mount point.
func (s *Storage) AcceptExternalShare(ctx context.Context, id int64, mountPoint string) error {
	return s.write(ctx, func() (func(), error) {
		share, ok := s.external[id]
		if !ok {
			return nil, storage.ErrNotFound
		}
		previous := share
		share.Accepted = true
		share.MountPoint = mountPoint
		s.external[id] = share
		return func() { s.external[id] = previous }, nil
	})
}

// DeleteExternalShare removes an external share.
func (s *Storage) DeleteExternalShare(ctx context.Context, id int64) error {
	return s.write(ctx, func() (func(), error) {
		share, ok := s.external[id]
		if !ok {
			return nil, storage.ErrNotFound
		}
		delete(s.external, id)
		return func() { s.external[id] = share }, nil
	})
}

// SetUserValue stores a preference.
func (s *Storage) SetUserValue(ctx context.Context, uid, appID, key, value string) error {
	return s.write(ctx, func() (func(), error) {
		k := prefKey{uid: uid, app: appID, key: key}
		previous, existed := s.preferences[k]
		s.preferences[k] = value
		return func() {
			if existed {
				s.preferences[k] = previous
			} else {
				delete(s.preferences, k)
			}
		}, nil
	})
}

// GetUserValue returns a preference and whether it is set.
func (s *Storage) GetUserValue(ctx context.Context, uid, appID, key string) (string, bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	value, ok := s.preferences[prefKey{uid: uid, app: appID, key: key}]
	return value, ok, nil
}

// UserValues returns every preference of uid for appID.
func (s *Storage) UserValues(ctx context.Context, uid, appID string) (map[string]string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	result := make(map[string]string)
	for k, v := range s.preferences {
		if k.uid == uid && k.app == appID {
			result[k.key] = v
		}
	}
	return result, nil
}

// Ping always succeeds for the in-memory storage.
func (s *Storage) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for the in-memory storage.
func (s *Storage) Close() {}

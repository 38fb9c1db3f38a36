// Package group manages groups and memberships and emits membership events.
package group

import (
	"context"
	"fmt"

	"github.com/MikhailRaia/files-sharing/internal/events"
	"github.com/MikhailRaia/files-sharing/internal/model"
	"github.com/MikhailRaia/files-sharing/internal/storage"
	"github.com/rs/zerolog/log"
)

// Publisher emits membership events.
type Publisher interface {
	Publish(ctx context.Context, topic events.Topic, payload any) error
}

// Manager is the group manager. Membership changes run in one transaction:
// the pre event, the change and the post event either all take effect or
// none does.
type Manager struct {
	groups storage.GroupStorage
	users  storage.UserStorage
	tx     storage.Transactor
	bus    Publisher
}

func NewManager(groups storage.GroupStorage, users storage.UserStorage, tx storage.Transactor, bus Publisher) *Manager {
	return &Manager{
		groups: groups,
		users:  users,
		tx:     tx,
		bus:    bus,
	}
}

func (m *Manager) CreateGroup(ctx context.Context, gid, displayName string) (model.Group, error) {
	if gid == "" {
		return model.Group{}, fmt.Errorf("empty group id")
	}
	if displayName == "" {
		displayName = gid
	}
	group := model.Group{GID: gid, DisplayName: displayName}
	if err := m.groups.CreateGroup(ctx, group); err != nil {
		return model.Group{}, err
	}
	return group, nil
}

func (m *Manager) Get(ctx context.Context, gid string) (model.Group, error) {
	return m.groups.GetGroup(ctx, gid)
}

func (m *Manager) GroupsForUser(ctx context.Context, uid string) ([]string, error) {
	return m.groups.GroupsForUser(ctx, uid)
}

func (m *Manager) IsInGroup(ctx context.Context, uid, gid string) (bool, error) {
	return m.groups.IsMember(ctx, gid, uid)
}

func (m *Manager) Members(ctx context.Context, gid string) ([]string, error) {
	return m.groups.Members(ctx, gid)
}

// AddUser adds uid to gid, publishing GroupPreAddUser before and
// GroupPostAddUser after the change. Adding an existing member does nothing.
func (m *Manager) AddUser(ctx context.Context, gid, uid string) error {
	return m.changeMembership(ctx, gid, uid, true)
}

// RemoveUser removes uid from gid, publishing GroupPreRemoveUser and
// GroupPostRemoveUser. Removing a non-member does nothing.
func (m *Manager) RemoveUser(ctx context.Context, gid, uid string) error {
	return m.changeMembership(ctx, gid, uid, false)
}

func (m *Manager) changeMembership(ctx context.Context, gid, uid string, add bool) error {
	pre, post := events.GroupPreRemoveUser, events.GroupPostRemoveUser
	if add {
		pre, post = events.GroupPreAddUser, events.GroupPostAddUser
	}

	err := m.tx.InTx(ctx, func(ctx context.Context) error {
		group, err := m.groups.GetGroup(ctx, gid)
		if err != nil {
			return fmt.Errorf("group %q: %w", gid, err)
		}
		user, err := m.users.GetUser(ctx, uid)
		if err != nil {
			return fmt.Errorf("user %q: %w", uid, err)
		}

		member, err := m.groups.IsMember(ctx, gid, uid)
		if err != nil {
			return err
		}
		if member == add {
			return nil
		}

		payload := events.GroupMembership{Group: group, User: user}
		if err := m.bus.Publish(ctx, pre, payload); err != nil {
			return err
		}

		if add {
			err = m.groups.AddMember(ctx, gid, uid)
		} else {
			err = m.groups.RemoveMember(ctx, gid, uid)
		}
		if err != nil {
			return err
		}

		return m.bus.Publish(ctx, post, payload)
	})
	if err != nil {
		return err
	}

	log.Info().Str("gid", gid).Str("uid", uid).Bool("added", add).Msg("Group membership changed")
	return nil
}

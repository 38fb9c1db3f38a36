// Package appmanager tracks which apps are enabled, globally or for groups.
package appmanager

import (
	"context"
	"sync"
)

// GroupLister resolves the groups of a user.
type GroupLister interface {
	GroupsForUser(ctx context.Context, uid string) ([]string, error)
}

type state struct {
	enabled bool
	groups  map[string]bool // empty means every user
}

type Manager struct {
	groups GroupLister

	mu   sync.RWMutex
	apps map[string]state
}

func NewManager(groups GroupLister) *Manager {
	return &Manager{
		groups: groups,
		apps:   make(map[string]state),
	}
}

// Enable turns app on for everyone.
func (m *Manager) Enable(app string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.apps[app] = state{enabled: true}
}

// EnableForGroups turns app on only for members of groups.
func (m *Manager) EnableForGroups(app string, groups []string) {
	set := make(map[string]bool, len(groups))
	for _, g := range groups {
		set[g] = true
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.apps[app] = state{enabled: true, groups: set}
}

func (m *Manager) Disable(app string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.apps, app)
}

// IsInstalled reports whether app is enabled for anyone.
func (m *Manager) IsInstalled(app string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.apps[app].enabled
}

// IsEnabledForUser reports whether app is usable by uid. An empty uid is
// only allowed for apps without group restrictions.
func (m *Manager) IsEnabledForUser(ctx context.Context, app, uid string) bool {
	m.mu.RLock()
	st := m.apps[app]
	m.mu.RUnlock()

	if !st.enabled {
		return false
	}
	if len(st.groups) == 0 {
		return true
	}
	if uid == "" || m.groups == nil {
		return false
	}

	groups, err := m.groups.GroupsForUser(ctx, uid)
	if err != nil {
		return false
	}
	for _, g := range groups {
		if st.groups[g] {
			return true
		}
	}
	return false
}

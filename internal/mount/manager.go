package mount

import (
	"errors"
	"path"
	"sort"
	"strings"
	"sync"
)

var (
	ErrMountExists   = errors.New("mount point already in use")
	ErrMountNotFound = errors.New("mount point not found")
)

// Entry is a mounted storage.
type Entry struct {
	MountPoint string
	Storage    Storage
}

// Manager is the global table of active mounts keyed by mount point.
type Manager struct {
	mu     sync.RWMutex
	mounts map[string]Entry
}

func NewManager() *Manager {
	return &Manager{mounts: make(map[string]Entry)}
}

func cleanMountPoint(p string) string {
	return path.Clean("/" + p)
}

// Add mounts storage at mountPoint.
func (m *Manager) Add(mountPoint string, storage Storage) error {
	mountPoint = cleanMountPoint(mountPoint)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.mounts[mountPoint]; ok {
		return ErrMountExists
	}
	m.mounts[mountPoint] = Entry{MountPoint: mountPoint, Storage: storage}
	return nil
}

// Remove unmounts mountPoint.
func (m *Manager) Remove(mountPoint string) error {
	mountPoint = cleanMountPoint(mountPoint)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.mounts[mountPoint]; !ok {
		return ErrMountNotFound
	}
	delete(m.mounts, mountPoint)
	return nil
}

// Find returns the mount with the longest mount point containing p.
func (m *Manager) Find(p string) (Entry, bool) {
	p = cleanMountPoint(p)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var best Entry
	found := false
	for mp, entry := range m.mounts {
		if p != mp && !strings.HasPrefix(p, strings.TrimSuffix(mp, "/")+"/") {
			continue
		}
		if !found || len(mp) > len(best.MountPoint) {
			best = entry
			found = true
		}
	}
	return best, found
}

// ForUser returns the mounts below /<uid>/ ordered by mount point.
func (m *Manager) ForUser(uid string) []Entry {
	prefix := "/" + uid + "/"

	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []Entry{}
	for mp, entry := range m.mounts {
		if strings.HasPrefix(mp, prefix) {
			result = append(result, entry)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].MountPoint < result[j].MountPoint })
	return result
}

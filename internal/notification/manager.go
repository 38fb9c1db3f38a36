// Package notification keeps per-user notifications such as pending
// federated shares.
package notification

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Notification is addressed to one user and points at an object of an app.
type Notification struct {
	ID        string            `json:"id"`
	App       string            `json:"app"`
	User      string            `json:"user"`
	Object    string            `json:"object_type"`
	ObjectID  string            `json:"object_id"`
	Subject   string            `json:"subject"`
	Params    map[string]string `json:"params,omitempty"`
	Processed bool              `json:"processed"`
	CreatedAt time.Time         `json:"created_at"`
}

type Manager struct {
	mu    sync.RWMutex
	items map[string]Notification
	now   func() time.Time
}

func NewManager() *Manager {
	return &Manager{
		items: make(map[string]Notification),
		now:   time.Now,
	}
}

// Notify stores n and assigns its ID.
func (m *Manager) Notify(ctx context.Context, n Notification) (Notification, error) {
	n.ID = uuid.New().String()
	n.CreatedAt = m.now()
	n.Processed = false

	m.mu.Lock()
	m.items[n.ID] = n
	m.mu.Unlock()

	return n, nil
}

// MarkProcessed flags every notification of user about the given object and
// returns how many were changed.
func (m *Manager) MarkProcessed(ctx context.Context, app, user, object, objectID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for id, n := range m.items {
		if n.Processed || n.App != app || n.User != user || n.Object != object || n.ObjectID != objectID {
			continue
		}
		n.Processed = true
		m.items[id] = n
		count++
	}
	return count
}

// List returns the unprocessed notifications of user, oldest first.
func (m *Manager) List(ctx context.Context, user string) []Notification {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []Notification{}
	for _, n := range m.items {
		if n.User == user && !n.Processed {
			result = append(result, n)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

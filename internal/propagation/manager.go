// Package propagation records share change marks so that mounted shares get
// a fresh ETag after they are shared with a user.
package propagation

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MikhailRaia/files-sharing/internal/events"
	"github.com/MikhailRaia/files-sharing/internal/model"
	"github.com/MikhailRaia/files-sharing/internal/storage"
	"github.com/rs/zerolog/log"
)

// AppID is the preference namespace holding change marks.
const AppID = "files_sharing"

const sharePrefix = "share:"

// PreferenceStore is the subset of the preference storage used for marks.
type PreferenceStore interface {
	SetUserValue(ctx context.Context, uid, appID, key, value string) error
	GetUserValue(ctx context.Context, uid, appID, key string) (string, bool, error)
	UserValues(ctx context.Context, uid, appID string) (map[string]string, error)
}

// Publisher emits propagation events.
type Publisher interface {
	Publish(ctx context.Context, topic events.Topic, payload any) error
}

// Manager propagates share changes to recipients.
type Manager struct {
	prefs PreferenceStore
	bus   Publisher
	pool  *WorkerPool
	now   func() time.Time

	mu    sync.RWMutex
	users map[string]map[string]string // prepared users: key -> mark
}

func NewManager(prefs PreferenceStore, bus Publisher) *Manager {
	return &Manager{
		prefs: prefs,
		bus:   bus,
		now:   time.Now,
		users: make(map[string]map[string]string),
	}
}

// AttachPool makes PropagateSharesToUser queue marks on pool instead of
// writing them synchronously.
func (m *Manager) AttachPool(pool *WorkerPool) {
	m.pool = pool
}

// ShareKey is the preference key of the change mark for a share.
func ShareKey(shareID int64) string {
	return sharePrefix + strconv.FormatInt(shareID, 10)
}

// PropagateSharesToUser marks every share as changed for uid and publishes
// events.PropagationChanged. Inside a storage transaction the marks are
// written with it, while the cache update and the event wait for the
// commit.
func (m *Manager) PropagateSharesToUser(ctx context.Context, shares []model.Share, uid string) error {
	if len(shares) == 0 {
		return nil
	}

	mark := strconv.FormatInt(m.now().Unix(), 10)
	marks := make(map[string]string, len(shares))
	payload := events.PropagationPayload{UID: uid}
	for _, s := range shares {
		marks[ShareKey(s.ID)] = mark
		payload.ShareIDs = append(payload.ShareIDs, s.ID)
		payload.Targets = append(payload.Targets, s.FileTarget)
	}

	if m.pool == nil {
		if err := m.WriteMarks(ctx, uid, marks); err != nil {
			return err
		}
		storage.AfterCommit(ctx, func(ctx context.Context) {
			m.announce(ctx, payload)
		})
		return nil
	}

	if !storage.InTransaction(ctx) {
		if err := m.pool.Submit(uid, marks); err != nil {
			return fmt.Errorf("error queueing propagation for %q: %w", uid, err)
		}
		m.announce(ctx, payload)
		return nil
	}

	storage.AfterCommit(ctx, func(ctx context.Context) {
		if err := m.pool.Submit(uid, marks); err != nil {
			log.Error().Err(err).Str("uid", uid).Msg("Failed to queue propagation")
			return
		}
		m.announce(ctx, payload)
	})
	return nil
}

func (m *Manager) announce(ctx context.Context, payload events.PropagationPayload) {
	log.Info().
		Str("uid", payload.UID).
		Int("shares", len(payload.ShareIDs)).
		Msg("Shares propagated to user")

	if err := m.bus.Publish(ctx, events.PropagationChanged, payload); err != nil {
		log.Error().Err(err).Str("uid", payload.UID).Msg("Failed to publish propagation change")
	}
}

// WriteMarks persists marks for uid and refreshes the prepared cache once
// the write is committed.
func (m *Manager) WriteMarks(ctx context.Context, uid string, marks map[string]string) error {
	for key, value := range marks {
		if err := m.prefs.SetUserValue(ctx, uid, AppID, key, value); err != nil {
			return fmt.Errorf("error writing mark %s for %q: %w", key, uid, err)
		}
	}

	storage.AfterCommit(ctx, func(context.Context) {
		m.cacheMarks(uid, marks)
	})
	return nil
}

func (m *Manager) cacheMarks(uid string, marks map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cached, ok := m.users[uid]; ok {
		for key, value := range marks {
			cached[key] = value
		}
	}
}

// GlobalSetup handles events.FilesystemSetup: it loads the user's marks so
// later ETag lookups are served from memory.
func (m *Manager) GlobalSetup(ctx context.Context, payload any) error {
	setup, ok := payload.(events.FilesystemSetupPayload)
	if !ok {
		return fmt.Errorf("unexpected filesystem setup payload %T", payload)
	}
	if setup.UID == "" {
		return nil
	}

	values, err := m.prefs.UserValues(ctx, setup.UID, AppID)
	if err != nil {
		return fmt.Errorf("error loading marks for %q: %w", setup.UID, err)
	}

	marks := make(map[string]string, len(values))
	for key, value := range values {
		if strings.HasPrefix(key, sharePrefix) {
			marks[key] = value
		}
	}

	m.mu.Lock()
	m.users[setup.UID] = marks
	m.mu.Unlock()

	log.Debug().Str("uid", setup.UID).Int("marks", len(marks)).Msg("Propagator prepared")
	return nil
}

// IsPrepared reports whether GlobalSetup ran for uid.
func (m *Manager) IsPrepared(uid string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.users[uid]
	return ok
}

// ETag returns the change mark of a share for uid, or an empty string if the
// share was never propagated.
func (m *Manager) ETag(ctx context.Context, uid string, shareID int64) (string, error) {
	key := ShareKey(shareID)

	m.mu.RLock()
	cached, prepared := m.users[uid]
	value, found := cached[key]
	m.mu.RUnlock()
	if prepared {
		if !found {
			return "", nil
		}
		return value, nil
	}

	value, _, err := m.prefs.GetUserValue(ctx, uid, AppID, key)
	if err != nil {
		return "", fmt.Errorf("error reading mark %s for %q: %w", key, uid, err)
	}
	return value, nil
}

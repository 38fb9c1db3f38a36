package app

import (
	"sync"

	"github.com/MikhailRaia/files-sharing/internal/model"
)

type joinKey struct {
	gid string
	uid string
}

// joinTracker holds the shares a user saw before joining a group until the
// join completes.
type joinTracker struct {
	mu     sync.Mutex
	before map[joinKey][]model.Share
}

func newJoinTracker() *joinTracker {
	return &joinTracker{before: make(map[joinKey][]model.Share)}
}

func (t *joinTracker) remember(gid, uid string, shares []model.Share) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.before[joinKey{gid: gid, uid: uid}] = shares
}

// take returns and forgets the snapshot of (gid, uid).
func (t *joinTracker) take(gid, uid string) ([]model.Share, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := joinKey{gid: gid, uid: uid}
	shares, ok := t.before[key]
	delete(t.before, key)
	return shares, ok
}

func (t *joinTracker) pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.before)
}

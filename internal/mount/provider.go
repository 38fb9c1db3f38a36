// Package mount builds the per-user mount table from registered providers.
package mount

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"sync"

	"github.com/MikhailRaia/files-sharing/internal/model"
	"github.com/rs/zerolog/log"
)

// Provider contributes mounts to a user's filesystem.
type Provider interface {
	MountsForUser(ctx context.Context, uid string) ([]model.Mount, error)
}

// Collection is an append-only list of providers.
type Collection struct {
	mu        sync.RWMutex
	providers []Provider
}

func NewCollection() *Collection {
	return &Collection{}
}

func (c *Collection) RegisterProvider(p Provider) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.providers = append(c.providers, p)
}

// Providers returns a snapshot of the registered providers.
func (c *Collection) Providers() []Provider {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return append([]Provider(nil), c.providers...)
}

// MountsForUser concatenates the mounts of every provider in registration order.
func (c *Collection) MountsForUser(ctx context.Context, uid string) ([]model.Mount, error) {
	result := []model.Mount{}
	for _, p := range c.Providers() {
		mounts, err := p.MountsForUser(ctx, uid)
		if err != nil {
			return nil, err
		}
		result = append(result, mounts...)
	}
	return result, nil
}

// SharedItems lists the shares visible to a user.
type SharedItems interface {
	ItemsSharedWithUser(ctx context.Context, itemType, uid string) ([]model.Share, error)
}

// ETagSource returns the change mark of a share for a user.
type ETagSource interface {
	ETag(ctx context.Context, uid string, shareID int64) (string, error)
}

// ShareProvider mounts the shares a user received.
type ShareProvider struct {
	shares      SharedItems
	etags       ETagSource
	shareFolder string
}

func NewShareProvider(shares SharedItems, etags ETagSource, shareFolder string) *ShareProvider {
	if shareFolder == "" {
		shareFolder = "/"
	}
	return &ShareProvider{
		shares:      shares,
		etags:       etags,
		shareFolder: shareFolder,
	}
}

// MountsForUser returns one mount per shared item. Several shares of the same
// item collapse into a single mount carrying the union of their permissions.
func (p *ShareProvider) MountsForUser(ctx context.Context, uid string) ([]model.Mount, error) {
	shares, err := p.shares.ItemsSharedWithUser(ctx, "", uid)
	if err != nil {
		return nil, fmt.Errorf("error listing shares for %q: %w", uid, err)
	}

	order := []int64{}
	grouped := make(map[int64]*model.Mount, len(shares))
	for _, s := range shares {
		if !s.IsFileLike() {
			continue
		}
		etag, err := p.etags.ETag(ctx, uid, s.ID)
		if err != nil {
			log.Warn().Err(err).Int64("shareID", s.ID).Str("uid", uid).Msg("Failed to read share etag")
		}

		if m, ok := grouped[s.ItemSource]; ok {
			m.Permissions |= s.Permissions
			if newerMark(etag, m.ETag) {
				m.ETag = etag
			}
			continue
		}

		grouped[s.ItemSource] = &model.Mount{
			MountPoint:  p.MountPoint(uid, s.FileTarget),
			StorageID:   fmt.Sprintf("shared::%d", s.ItemSource),
			ShareID:     s.ID,
			ItemSource:  s.ItemSource,
			Owner:       s.Owner,
			Permissions: s.Permissions,
			ETag:        etag,
		}
		order = append(order, s.ItemSource)
	}

	result := make([]model.Mount, 0, len(order))
	for _, source := range order {
		result = append(result, *grouped[source])
	}
	return result, nil
}

// newerMark reports whether mark a is more recent than b. Marks are unix
// timestamps; an empty mark is older than any other.
func newerMark(a, b string) bool {
	if a == "" {
		return false
	}
	if b == "" {
		return true
	}
	ai, errA := strconv.ParseInt(a, 10, 64)
	bi, errB := strconv.ParseInt(b, 10, 64)
	if errA != nil || errB != nil {
		return a > b
	}
	return ai > bi
}

// MountPoint places target inside the user's share folder.
func (p *ShareProvider) MountPoint(uid, target string) string {
	return path.Join("/", uid, "files", p.shareFolder, target)
}

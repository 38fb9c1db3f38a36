// Package share implements the local share model: creating and removing
// shares and listing what is visible to a user.
package share

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MikhailRaia/files-sharing/internal/auth"
	"github.com/MikhailRaia/files-sharing/internal/config"
	"github.com/MikhailRaia/files-sharing/internal/generator"
	"github.com/MikhailRaia/files-sharing/internal/model"
	"github.com/MikhailRaia/files-sharing/internal/storage"
	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidShare     = errors.New("invalid share")
	ErrForbidden        = errors.New("forbidden")
	ErrLinksDisabled    = errors.New("link sharing is disabled")
	ErrRemoteDisabled   = errors.New("federated sharing is disabled")
	ErrPasswordRequired = errors.New("password required for link shares")
	ErrAlreadyShared    = errors.New("item already shared with recipient")
)

// GroupLister resolves the groups of a user.
type GroupLister interface {
	GroupsForUser(ctx context.Context, uid string) ([]string, error)
	Get(ctx context.Context, gid string) (model.Group, error)
}

// UserChecker tells whether a user exists.
type UserChecker interface {
	Exists(ctx context.Context, uid string) (bool, error)
}

// Service implements share operations on top of storage.
type Service struct {
	store  storage.ShareStorage
	groups GroupLister
	users  UserChecker
	policy config.SharingConfig
	now    func() time.Time
}

func NewService(store storage.ShareStorage, groups GroupLister, users UserChecker, policy config.SharingConfig) *Service {
	return &Service{
		store:  store,
		groups: groups,
		users:  users,
		policy: policy,
		now:    time.Now,
	}
}

// ItemsSharedWithUser returns the unexpired shares of itemType granted to uid
// directly or through one of its groups, ordered by ID.
func (s *Service) ItemsSharedWithUser(ctx context.Context, itemType, uid string) ([]model.Share, error) {
	groups, err := s.groups.GroupsForUser(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("error listing groups of %q: %w", uid, err)
	}

	all, err := s.store.SharesForRecipients(ctx, itemType, uid, groups)
	if err != nil {
		return nil, fmt.Errorf("error listing shares of %q: %w", uid, err)
	}

	now := s.now()
	result := make([]model.Share, 0, len(all))
	for _, share := range all {
		if share.Owner == uid || IsExpired(share, now) {
			continue
		}
		result = append(result, share)
	}
	return result, nil
}

// SharedBy returns every share created by owner.
func (s *Service) SharedBy(ctx context.Context, owner string) ([]model.Share, error) {
	return s.store.SharesByOwner(ctx, owner)
}

// ByToken returns the unexpired link share identified by token.
func (s *Service) ByToken(ctx context.Context, token string) (model.Share, error) {
	share, err := s.store.GetShareByToken(ctx, token)
	if err != nil {
		return model.Share{}, err
	}
	if IsExpired(share, s.now()) {
		return model.Share{}, storage.ErrNotFound
	}
	return share, nil
}

// CheckPassword reports whether password unlocks a link share. Shares
// without a password are always unlocked.
func (s *Service) CheckPassword(share model.Share, password string) bool {
	if !share.HasPassword() {
		return true
	}
	return auth.CheckPassword(share.Password, password)
}

// IsExpired reports whether share has an expiration at or before now.
func IsExpired(share model.Share, now time.Time) bool {
	return share.Expiration != nil && !share.Expiration.After(now)
}

// Create validates req and stores a new share owned by owner.
func (s *Service) Create(ctx context.Context, owner string, req model.CreateShareRequest) (model.Share, error) {
	share := model.Share{
		ItemType:    req.ItemType,
		ItemSource:  req.ItemSource,
		FileTarget:  normalizeTarget(req.FileTarget),
		ShareType:   req.ShareType,
		ShareWith:   strings.TrimSpace(req.ShareWith),
		Owner:       owner,
		Permissions: req.Permissions,
		Expiration:  req.Expiration,
		CreatedAt:   s.now(),
	}

	if share.ItemType != model.ItemTypeFile && share.ItemType != model.ItemTypeFolder {
		return model.Share{}, fmt.Errorf("%w: unknown item type %q", ErrInvalidShare, share.ItemType)
	}
	if share.ItemSource <= 0 || share.FileTarget == "/" {
		return model.Share{}, fmt.Errorf("%w: missing item", ErrInvalidShare)
	}

	perms, err := s.permissions(share.ItemType, share.ShareType, req.Permissions)
	if err != nil {
		return model.Share{}, err
	}
	share.Permissions = perms

	if err := s.validateRecipient(ctx, &share, req.Password); err != nil {
		return model.Share{}, err
	}
	if err := s.validateExpiration(&share); err != nil {
		return model.Share{}, err
	}
	if err := s.checkDuplicate(ctx, share); err != nil {
		return model.Share{}, err
	}

	created, err := s.store.CreateShare(ctx, share)
	if err != nil {
		return model.Share{}, fmt.Errorf("error saving share: %w", err)
	}

	log.Info().
		Int64("shareID", created.ID).
		Str("owner", owner).
		Str("type", created.ShareType.String()).
		Str("shareWith", created.ShareWith).
		Msg("Share created")

	return created, nil
}

func (s *Service) permissions(itemType string, shareType model.ShareType, requested int) (int, error) {
	perms := requested
	if perms == 0 {
		perms = model.PermissionAll
	}
	if perms < 0 || perms > model.PermissionAll || perms&model.PermissionRead == 0 {
		return 0, fmt.Errorf("%w: permissions %d", ErrInvalidShare, requested)
	}

	if itemType == model.ItemTypeFile {
		perms &^= model.PermissionCreate | model.PermissionDelete
	}
	if shareType == model.ShareTypeLink {
		perms &= model.PermissionRead | model.PermissionCreate | model.PermissionUpdate
		if itemType == model.ItemTypeFile {
			perms = model.PermissionRead
		}
	}
	if !s.policy.AllowResharing {
		perms &^= model.PermissionShare
	}
	return perms, nil
}

func (s *Service) validateRecipient(ctx context.Context, share *model.Share, password string) error {
	switch share.ShareType {
	case model.ShareTypeUser:
		if share.ShareWith == "" || share.ShareWith == share.Owner {
			return fmt.Errorf("%w: cannot share with %q", ErrInvalidShare, share.ShareWith)
		}
		exists, err := s.users.Exists(ctx, share.ShareWith)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: user %q does not exist", ErrInvalidShare, share.ShareWith)
		}
	case model.ShareTypeGroup:
		if _, err := s.groups.Get(ctx, share.ShareWith); err != nil {
			return fmt.Errorf("%w: group %q: %v", ErrInvalidShare, share.ShareWith, err)
		}
	case model.ShareTypeLink:
		if !s.policy.AllowLinks {
			return ErrLinksDisabled
		}
		if password == "" && s.policy.EnforceLinkPassword {
			return ErrPasswordRequired
		}
		share.ShareWith = ""
		if password != "" {
			hash, err := auth.HashPassword(password)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidShare, err)
			}
			share.Password = hash
		}
		token, err := generator.ShareToken()
		if err != nil {
			return fmt.Errorf("error generating token: %w", err)
		}
		share.Token = token
	case model.ShareTypeRemote:
		if !s.policy.OutgoingServer2Srv {
			return ErrRemoteDisabled
		}
		if !strings.Contains(share.ShareWith, "@") {
			return fmt.Errorf("%w: remote recipient must be user@host", ErrInvalidShare)
		}
	default:
		return fmt.Errorf("%w: unknown share type %d", ErrInvalidShare, share.ShareType)
	}
	return nil
}

func (s *Service) validateExpiration(share *model.Share) error {
	now := s.now()
	if share.Expiration != nil && !share.Expiration.After(now) {
		return fmt.Errorf("%w: expiration date is in the past", ErrInvalidShare)
	}
	if share.ShareType != model.ShareTypeLink || s.policy.DefaultExpireDays <= 0 {
		return nil
	}

	limit := now.AddDate(0, 0, s.policy.DefaultExpireDays)
	if share.Expiration == nil {
		share.Expiration = &limit
		return nil
	}
	if s.policy.EnforceExpireDate && share.Expiration.After(limit) {
		return fmt.Errorf("%w: expiration date exceeds %d days", ErrInvalidShare, s.policy.DefaultExpireDays)
	}
	return nil
}

func (s *Service) checkDuplicate(ctx context.Context, share model.Share) error {
	if share.ShareType == model.ShareTypeLink {
		return nil
	}
	existing, err := s.store.SharesByOwner(ctx, share.Owner)
	if err != nil {
		return err
	}
	for _, e := range existing {
		if e.ItemSource == share.ItemSource && e.ShareType == share.ShareType && e.ShareWith == share.ShareWith {
			return ErrAlreadyShared
		}
	}
	return nil
}

// Delete removes a share owned by owner.
func (s *Service) Delete(ctx context.Context, owner string, id int64) error {
	share, err := s.store.GetShare(ctx, id)
	if err != nil {
		return err
	}
	if share.Owner != owner {
		return ErrForbidden
	}
	if err := s.store.DeleteShare(ctx, id); err != nil {
		return err
	}

	log.Info().Int64("shareID", id).Str("owner", owner).Msg("Share deleted")
	return nil
}

func normalizeTarget(target string) string {
	target = strings.TrimSpace(target)
	target = strings.TrimRight(target, "/")
	if !strings.HasPrefix(target, "/") {
		target = "/" + target
	}
	return target
}

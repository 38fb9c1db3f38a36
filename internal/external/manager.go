// Package external manages shares offered to local users by remote
// instances.
package external

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/MikhailRaia/files-sharing/internal/httpclient"
	"github.com/MikhailRaia/files-sharing/internal/model"
	"github.com/MikhailRaia/files-sharing/internal/mount"
	"github.com/MikhailRaia/files-sharing/internal/notification"
	"github.com/MikhailRaia/files-sharing/internal/storage"
	"github.com/rs/zerolog/log"
)

var (
	ErrNoUser       = errors.New("no user in session")
	ErrInvalidShare = errors.New("invalid external share")
)

const (
	notificationApp    = "files_sharing"
	notificationObject = "remote_share"
)

// Mounts is the global mount table.
type Mounts interface {
	Add(mountPoint string, s mount.Storage) error
	Remove(mountPoint string) error
}

// StorageLoader builds storages by class.
type StorageLoader interface {
	Load(class string, options map[string]string) (mount.Storage, error)
}

// HTTPPoster posts forms to remote instances.
type HTTPPoster interface {
	Post(ctx context.Context, target string, fields url.Values) (httpclient.Response, error)
}

// Notifier records and resolves user notifications.
type Notifier interface {
	Notify(ctx context.Context, n notification.Notification) (notification.Notification, error)
	MarkProcessed(ctx context.Context, app, user, object, objectID string) int
}

// Manager handles the external shares of one user. The user may be absent,
// in which case every per-user operation fails with ErrNoUser.
type Manager struct {
	store         storage.ExternalShareStorage
	mounts        Mounts
	loader        StorageLoader
	http          HTTPPoster
	notifications Notifier
	uid           *string
}

func NewManager(store storage.ExternalShareStorage, mounts Mounts, loader StorageLoader, httpHelper HTTPPoster, notifications Notifier, uid *string) *Manager {
	return &Manager{
		store:         store,
		mounts:        mounts,
		loader:        loader,
		http:          httpHelper,
		notifications: notifications,
		uid:           uid,
	}
}

// UID returns the user the manager acts for, or nil.
func (m *Manager) UID() *string {
	return m.uid
}

func (m *Manager) user() (string, error) {
	if m.uid == nil || *m.uid == "" {
		return "", ErrNoUser
	}
	return *m.uid, nil
}

// AddShareRequest describes a share announced by a remote instance.
type AddShareRequest struct {
	Remote   string
	RemoteID string
	Token    string
	Password string
	Name     string
	Owner    string
	User     string
	Accepted bool
}

// AddShare records an incoming share. Unaccepted shares raise a notification
// for the recipient; accepted ones are mounted right away. An empty User
// means the manager's user.
func (m *Manager) AddShare(ctx context.Context, req AddShareRequest) (model.ExternalShare, error) {
	uid := req.User
	if uid == "" {
		var err error
		if uid, err = m.user(); err != nil {
			return model.ExternalShare{}, err
		}
	}
	name := cleanName(req.Name)
	if req.Remote == "" || req.Token == "" || name == "" {
		return model.ExternalShare{}, fmt.Errorf("%w: remote, token and name are required", ErrInvalidShare)
	}

	share := model.ExternalShare{
		Remote:     strings.TrimRight(req.Remote, "/"),
		RemoteID:   req.RemoteID,
		ShareToken: req.Token,
		Password:   req.Password,
		Name:       name,
		Owner:      req.Owner,
		User:       uid,
		Accepted:   req.Accepted,
	}

	if req.Accepted {
		mp, err := m.uniqueMountPoint(ctx, uid, share.Name)
		if err != nil {
			return model.ExternalShare{}, err
		}
		share.MountPoint = mp
	} else {
		share.MountPoint = "{{TemporaryMountPointName#" + share.Name + "}}"
	}

	created, err := m.store.AddExternalShare(ctx, share)
	if err != nil {
		return model.ExternalShare{}, fmt.Errorf("error saving external share: %w", err)
	}

	if created.Accepted {
		if err := m.mount(created); err != nil {
			return model.ExternalShare{}, err
		}
	} else if _, err := m.notifications.Notify(ctx, notification.Notification{
		App:      notificationApp,
		User:     uid,
		Object:   notificationObject,
		ObjectID: strconv.FormatInt(created.ID, 10),
		Subject:  "remote_share",
		Params: map[string]string{
			"owner":  created.Owner,
			"remote": created.Remote,
			"name":   created.Name,
		},
	}); err != nil {
		log.Warn().Err(err).Int64("shareID", created.ID).Msg("Failed to notify user about remote share")
	}

	log.Info().
		Int64("shareID", created.ID).
		Str("user", uid).
		Str("remote", created.Remote).
		Bool("accepted", created.Accepted).
		Msg("External share added")

	return created, nil
}

// GetShare returns a share of the manager's user.
func (m *Manager) GetShare(ctx context.Context, id int64) (model.ExternalShare, error) {
	uid, err := m.user()
	if err != nil {
		return model.ExternalShare{}, err
	}

	share, err := m.store.GetExternalShare(ctx, id)
	if err != nil {
		return model.ExternalShare{}, err
	}
	if share.User != uid {
		return model.ExternalShare{}, storage.ErrNotFound
	}
	return share, nil
}

// OpenShares returns the shares waiting for the user's decision.
func (m *Manager) OpenShares(ctx context.Context) ([]model.ExternalShare, error) {
	uid, err := m.user()
	if err != nil {
		return nil, err
	}
	open := false
	return m.store.ExternalSharesForUser(ctx, uid, &open)
}

// AcceptedShares returns the shares the user has mounted.
func (m *Manager) AcceptedShares(ctx context.Context) ([]model.ExternalShare, error) {
	uid, err := m.user()
	if err != nil {
		return nil, err
	}
	accepted := true
	return m.store.ExternalSharesForUser(ctx, uid, &accepted)
}

// AcceptShare mounts an open share and tells the remote about it.
func (m *Manager) AcceptShare(ctx context.Context, id int64) error {
	share, err := m.GetShare(ctx, id)
	if err != nil {
		return err
	}
	if share.Accepted {
		return nil
	}

	mp, err := m.uniqueMountPoint(ctx, share.User, share.Name)
	if err != nil {
		return err
	}
	share.MountPoint = mp
	if err := m.mount(share); err != nil {
		return fmt.Errorf("error mounting external share: %w", err)
	}

	if err := m.store.AcceptExternalShare(ctx, id, mp); err != nil {
		if rmErr := m.mounts.Remove(absoluteMountPoint(share.User, mp)); rmErr != nil {
			log.Warn().Err(rmErr).Int64("shareID", id).Msg("Failed to remove mount of unaccepted share")
		}
		return fmt.Errorf("error accepting external share: %w", err)
	}
	share.Accepted = true

	m.notifyRemote(ctx, share, "accept")
	m.processNotification(ctx, share)

	log.Info().Int64("shareID", id).Str("user", share.User).Str("mountPoint", mp).Msg("External share accepted")
	return nil
}

// DeclineShare rejects an open share and forgets it.
func (m *Manager) DeclineShare(ctx context.Context, id int64) error {
	share, err := m.GetShare(ctx, id)
	if err != nil {
		return err
	}

	m.notifyRemote(ctx, share, "decline")
	if err := m.store.DeleteExternalShare(ctx, id); err != nil {
		return fmt.Errorf("error deleting external share: %w", err)
	}
	m.processNotification(ctx, share)

	log.Info().Int64("shareID", id).Str("user", share.User).Msg("External share declined")
	return nil
}

// RemoveShare unmounts the accepted share at mountPoint, which is relative
// to the user's files folder.
func (m *Manager) RemoveShare(ctx context.Context, mountPoint string) error {
	shares, err := m.AcceptedShares(ctx)
	if err != nil {
		return err
	}

	mountPoint = path.Clean("/" + mountPoint)
	for _, share := range shares {
		if share.MountPoint != mountPoint {
			continue
		}
		if err := m.mounts.Remove(absoluteMountPoint(share.User, share.MountPoint)); err != nil && !errors.Is(err, mount.ErrMountNotFound) {
			return err
		}
		m.notifyRemote(ctx, share, "decline")
		if err := m.store.DeleteExternalShare(ctx, share.ID); err != nil {
			return fmt.Errorf("error deleting external share: %w", err)
		}

		log.Info().Int64("shareID", share.ID).Str("user", share.User).Str("mountPoint", mountPoint).Msg("External share removed")
		return nil
	}
	return storage.ErrNotFound
}

// RemoveUserShares drops every external share of uid, for example when the
// user is deleted.
func (m *Manager) RemoveUserShares(ctx context.Context, uid string) error {
	shares, err := m.store.ExternalSharesForUser(ctx, uid, nil)
	if err != nil {
		return err
	}

	var errs []error
	for _, share := range shares {
		if share.Accepted {
			if err := m.mounts.Remove(absoluteMountPoint(uid, share.MountPoint)); err != nil && !errors.Is(err, mount.ErrMountNotFound) {
				errs = append(errs, err)
			}
		}
		m.notifyRemote(ctx, share, "decline")
		if err := m.store.DeleteExternalShare(ctx, share.ID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MountAccepted mounts every accepted share of the user.
func (m *Manager) MountAccepted(ctx context.Context) error {
	shares, err := m.AcceptedShares(ctx)
	if err != nil {
		return err
	}
	for _, share := range shares {
		if err := m.mount(share); err != nil && !errors.Is(err, mount.ErrMountExists) {
			return err
		}
	}
	return nil
}

func (m *Manager) mount(share model.ExternalShare) error {
	mp := absoluteMountPoint(share.User, share.MountPoint)
	s, err := m.loader.Load(StorageClass, map[string]string{
		"remote":     share.Remote,
		"token":      share.ShareToken,
		"password":   share.Password,
		"owner":      share.Owner,
		"mountpoint": mp,
	})
	if err != nil {
		return err
	}
	return m.mounts.Add(mp, s)
}

// notifyRemote reports action to the sharing instance. Failures are logged
// only; the local change stands regardless.
func (m *Manager) notifyRemote(ctx context.Context, share model.ExternalShare, action string) bool {
	if share.RemoteID == "" {
		return false
	}

	target := share.Remote + "/ocs/v1.php/cloud/shares/" + url.PathEscape(share.RemoteID) + "/" + action
	resp, err := m.http.Post(ctx, target, url.Values{
		"token":  {share.ShareToken},
		"format": {"json"},
	})
	if err != nil {
		log.Warn().Err(err).Int64("shareID", share.ID).Str("action", action).Msg("Failed to notify remote")
		return false
	}
	if !resp.OK() {
		log.Warn().Int("status", resp.StatusCode).Int64("shareID", share.ID).Str("action", action).Msg("Remote rejected notification")
		return false
	}
	return true
}

func (m *Manager) processNotification(ctx context.Context, share model.ExternalShare) {
	m.notifications.MarkProcessed(ctx, notificationApp, share.User, notificationObject, strconv.FormatInt(share.ID, 10))
}

// uniqueMountPoint picks /<name>, /<name> (2), ... not used by another
// accepted share of uid.
func (m *Manager) uniqueMountPoint(ctx context.Context, uid, name string) (string, error) {
	accepted := true
	shares, err := m.store.ExternalSharesForUser(ctx, uid, &accepted)
	if err != nil {
		return "", err
	}

	used := make(map[string]bool, len(shares))
	for _, s := range shares {
		used[s.MountPoint] = true
	}

	candidate := "/" + name
	for i := 2; used[candidate]; i++ {
		candidate = fmt.Sprintf("/%s (%d)", name, i)
	}
	return candidate, nil
}

func absoluteMountPoint(uid, mountPoint string) string {
	return path.Join("/", uid, "files", mountPoint)
}

func cleanName(name string) string {
	name = path.Base(path.Clean("/" + strings.TrimSpace(name)))
	if name == "/" || name == "." {
		return ""
	}
	return name
}

package storage

import (
	"context"
	"errors"

	"github.com/MikhailRaia/files-sharing/internal/model"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// ShareStorage persists local shares.
type ShareStorage interface {
	CreateShare(ctx context.Context, share model.Share) (model.Share, error)
	GetShare(ctx context.Context, id int64) (model.Share, error)
	GetShareByToken(ctx context.Context, token string) (model.Share, error)
	DeleteShare(ctx context.Context, id int64) error

	// SharesForRecipients returns shares of itemType granted directly to userID
	// or to any of groupIDs, ordered by ID.
	SharesForRecipients(ctx context.Context, itemType, userID string, groupIDs []string) ([]model.Share, error)
	SharesByOwner(ctx context.Context, owner string) ([]model.Share, error)
}

// UserStorage persists accounts.
type UserStorage interface {
	CreateUser(ctx context.Context, user model.User) error
	GetUser(ctx context.Context, uid string) (model.User, error)
	SearchUsers(ctx context.Context, pattern string, limit int) ([]model.User, error)
}

// GroupStorage persists groups and memberships.
type GroupStorage interface {
	CreateGroup(ctx context.Context, group model.Group) error
	GetGroup(ctx context.Context, gid string) (model.Group, error)
	AddMember(ctx context.Context, gid, uid string) error
	RemoveMember(ctx context.Context, gid, uid string) error
	IsMember(ctx context.Context, gid, uid string) (bool, error)
	GroupsForUser(ctx context.Context, uid string) ([]string, error)
	Members(ctx context.Context, gid string) ([]string, error)
}

// ExternalShareStorage persists shares received from remote instances.
type ExternalShareStorage interface {
	AddExternalShare(ctx context.Context, share model.ExternalShare) (model.ExternalShare, error)
	GetExternalShare(ctx context.Context, id int64) (model.ExternalShare, error)
	ExternalSharesForUser(ctx context.Context, uid string, accepted *bool) ([]model.ExternalShare, error)
	AcceptExternalShare(ctx context.Context, id int64, mountPoint string) error
	DeleteExternalShare(ctx context.Context, id int64) error
}

// PreferenceStorage persists per-user application values.
type PreferenceStorage interface {
	SetUserValue(ctx context.Context, uid, appID, key, value string) error
	GetUserValue(ctx context.Context, uid, appID, key string) (string, bool, error)
	UserValues(ctx context.Context, uid, appID string) (map[string]string, error)
}

// Transactor runs fn so that every storage call made with the context it
// receives belongs to one unit of work.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Storage is the full set of persistence capabilities a backend provides.
type Storage interface {
	ShareStorage
	UserStorage
	GroupStorage
	ExternalShareStorage
	PreferenceStorage
	Transactor

	Ping(ctx context.Context) error
	Close()
}

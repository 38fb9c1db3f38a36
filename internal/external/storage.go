package external

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/MikhailRaia/files-sharing/internal/mount"
)

// StorageClass is the loader class of remote share storages.
const StorageClass = "files_sharing.external"

// RemoteStorage is a mounted share living on a remote instance.
type RemoteStorage struct {
	Remote     string
	Token      string
	Password   string
	Owner      string
	MountPoint string
}

// ID identifies the storage by token and remote.
func (s *RemoteStorage) ID() string {
	sum := md5.Sum([]byte(s.Token + "@" + s.Remote))
	return "shared::" + hex.EncodeToString(sum[:])
}

// NewRemoteStorage is the loader factory for StorageClass.
func NewRemoteStorage(options map[string]string) (mount.Storage, error) {
	if options["remote"] == "" || options["token"] == "" {
		return nil, fmt.Errorf("remote and token are required")
	}
	return &RemoteStorage{
		Remote:     options["remote"],
		Token:      options["token"],
		Password:   options["password"],
		Owner:      options["owner"],
		MountPoint: options["mountpoint"],
	}, nil
}

package model

// ExternalShare is a share offered to a local user by a remote instance.
type ExternalShare struct {
	ID         int64  `json:"id"`
	Remote     string `json:"remote"`
	RemoteID   string `json:"remote_id"`
	ShareToken string `json:"share_token"`
	Password   string `json:"-"`
	Name       string `json:"name"`
	Owner      string `json:"owner"`
	User       string `json:"user"`
	MountPoint string `json:"mountpoint"`
	Accepted   bool   `json:"accepted"`
}

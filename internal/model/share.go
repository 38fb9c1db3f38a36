package model

import "time"

// ShareType identifies the kind of recipient a share is granted to.
type ShareType int

const (
	ShareTypeUser   ShareType = 0
	ShareTypeGroup  ShareType = 1
	ShareTypeLink   ShareType = 3
	ShareTypeRemote ShareType = 6
)

func (t ShareType) String() string {
	switch t {
	case ShareTypeUser:
		return "user"
	case ShareTypeGroup:
		return "group"
	case ShareTypeLink:
		return "link"
	case ShareTypeRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// Permission bits granted by a share.
const (
	PermissionRead   = 1
	PermissionUpdate = 2
	PermissionCreate = 4
	PermissionDelete = 8
	PermissionShare  = 16
	PermissionAll    = PermissionRead | PermissionUpdate | PermissionCreate | PermissionDelete | PermissionShare
)

// Item types a share can point at.
const (
	ItemTypeFile   = "file"
	ItemTypeFolder = "folder"
)

// Share is a grant of access to a file or folder.
type Share struct {
	ID          int64      `json:"id"`
	ItemType    string     `json:"item_type"`
	ItemSource  int64      `json:"item_source"`
	FileTarget  string     `json:"file_target"`
	ShareType   ShareType  `json:"share_type"`
	ShareWith   string     `json:"share_with,omitempty"`
	Owner       string     `json:"uid_owner"`
	Permissions int        `json:"permissions"`
	Token       string     `json:"token,omitempty"`
	Password    string     `json:"-"`
	Expiration  *time.Time `json:"expiration,omitempty"`
	CreatedAt   time.Time  `json:"stime"`
}

// HasPassword reports whether a link share is password protected.
func (s Share) HasPassword() bool {
	return s.Password != ""
}

// IsFileLike reports whether the share points at a file or a folder.
func (s Share) IsFileLike() bool {
	return s.ItemType == ItemTypeFile || s.ItemType == ItemTypeFolder
}

// CreateShareRequest is the body accepted by the share API.
type CreateShareRequest struct {
	ItemType    string     `json:"item_type"`
	ItemSource  int64      `json:"item_source"`
	FileTarget  string     `json:"file_target"`
	ShareType   ShareType  `json:"share_type"`
	ShareWith   string     `json:"share_with"`
	Permissions int        `json:"permissions"`
	Password    string     `json:"password,omitempty"`
	Expiration  *time.Time `json:"expiration,omitempty"`
}

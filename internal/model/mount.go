package model

// Mount is a virtual filesystem entry contributed to a user's view.
type Mount struct {
	MountPoint  string `json:"mount_point"`
	StorageID   string `json:"storage_id"`
	ShareID     int64  `json:"share_id,omitempty"`
	ItemSource  int64  `json:"item_source,omitempty"`
	Owner       string `json:"owner"`
	Permissions int    `json:"permissions"`
	ETag        string `json:"etag,omitempty"`
}

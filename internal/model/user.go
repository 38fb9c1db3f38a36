package model

// User represents an account on this instance.
type User struct {
	UID          string `json:"uid"`
	DisplayName  string `json:"display_name"`
	PasswordHash string `json:"-"`
}

// Group represents a named set of users.
type Group struct {
	GID         string `json:"gid"`
	DisplayName string `json:"display_name"`
}

// Preference is a per-user, per-app key/value pair.
type Preference struct {
	UserID string `json:"user_id"`
	AppID  string `json:"app_id"`
	Key    string `json:"key"`
	Value  string `json:"value"`
}

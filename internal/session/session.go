// Package session carries the authenticated user of a request.
package session

import (
	"context"

	"github.com/MikhailRaia/files-sharing/internal/model"
)

type contextKey string

const sessionKey contextKey = "userSession"

// UserSession is the per-request login state. The zero value is anonymous.
type UserSession struct {
	user *model.User
}

func New(user *model.User) *UserSession {
	return &UserSession{user: user}
}

// Anonymous returns a session without a user.
func Anonymous() *UserSession {
	return &UserSession{}
}

// User returns the logged-in user or nil.
func (s *UserSession) User() *model.User {
	if s == nil {
		return nil
	}
	return s.user
}

func (s *UserSession) IsLoggedIn() bool {
	return s.User() != nil
}

// UID returns the user's ID, or nil when nobody is logged in.
func (s *UserSession) UID() *string {
	u := s.User()
	if u == nil {
		return nil
	}
	uid := u.UID
	return &uid
}

// UIDOrEmpty returns the user's ID or an empty string.
func (s *UserSession) UIDOrEmpty() string {
	if uid := s.UID(); uid != nil {
		return *uid
	}
	return ""
}

func WithSession(ctx context.Context, s *UserSession) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// FromContext returns the session stored in ctx, or an anonymous one.
func FromContext(ctx context.Context) *UserSession {
	if s, ok := ctx.Value(sessionKey).(*UserSession); ok && s != nil {
		return s
	}
	return Anonymous()
}

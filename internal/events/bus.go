// Package events provides the in-process publish/subscribe bus used to
// connect hooks between components.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MikhailRaia/files-sharing/internal/model"
)

// Topic names an event.
type Topic string

const (
	GroupPreAddUser     Topic = "group.preAddUser"
	GroupPostAddUser    Topic = "group.postAddUser"
	GroupPreRemoveUser  Topic = "group.preRemoveUser"
	GroupPostRemoveUser Topic = "group.postRemoveUser"
	FilesystemSetup     Topic = "filesystem.setup"
	PropagationChanged  Topic = "propagation.changed"
)

// GroupMembership is the payload of the group topics.
type GroupMembership struct {
	Group model.Group
	User  model.User
}

// FilesystemSetupPayload is published when a user's filesystem view is built.
type FilesystemSetupPayload struct {
	UID string
}

// PropagationPayload is published after shares were propagated to a user.
type PropagationPayload struct {
	UID      string
	ShareIDs []int64
	Targets  []string
}

// Handler reacts to a published payload.
type Handler func(ctx context.Context, payload any) error

// Bus dispatches payloads synchronously to the handlers of a topic in
// subscription order.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Topic][]Handler
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[Topic][]Handler)}
}

// Subscribe appends h to the handlers of topic.
func (b *Bus) Subscribe(topic Topic, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[topic] = append(b.handlers[topic], h)
}

// Publish calls every handler of topic. All handlers run even when one fails;
// the failures are joined.
func (b *Bus) Publish(ctx context.Context, topic Topic, payload any) error {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[topic]...)
	b.mu.RUnlock()

	var errs []error
	for _, h := range handlers {
		if err := h(ctx, payload); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", topic, err))
		}
	}
	return errors.Join(errs...)
}

// Subscribers returns the number of handlers registered for topic.
func (b *Bus) Subscribers(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.handlers[topic])
}

// Typed adapts a handler for a concrete payload type. Payloads of another
// type are rejected.
func Typed[T any](fn func(ctx context.Context, payload T) error) Handler {
	return func(ctx context.Context, payload any) error {
		p, ok := payload.(T)
		if !ok {
			return fmt.Errorf("unexpected payload %T", payload)
		}
		return fn(ctx, p)
	}
}

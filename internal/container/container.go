// Package container is the service registry of an application module.
//
// Factories are registered by name on a Container. Services are resolved
// through a Scope, which constructs each service at most once and caches it.
// The root scope lives as long as the container and holds application-level
// singletons; every request gets its own scope.
package container

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
)

var (
	ErrServiceNotFound     = errors.New("service not found")
	ErrCircularDependency  = errors.New("circular dependency")
	ErrServiceType         = errors.New("service has unexpected type")
	ErrMiddlewareInterface = errors.New("service is not a middleware")
)

// Factory constructs a service. It may query other services from s.
type Factory func(s *Scope) (any, error)

// Middleware wraps the handling of a request.
type Middleware interface {
	Handler(next http.Handler) http.Handler
}

// Capability reports feature flags for client discovery.
type Capability interface {
	Capabilities(ctx context.Context) map[string]any
}

// Container binds service names to factories.
type Container struct {
	appName string

	mu           sync.RWMutex
	factories    map[string]Factory
	middleware   []string
	capabilities []Capability

	root *Scope
}

// New creates a container and registers the AppName parameter.
func New(appName string) *Container {
	c := &Container{
		appName:   appName,
		factories: make(map[string]Factory),
	}
	c.root = c.NewScope(context.Background())
	c.RegisterParameter("AppName", appName)
	return c
}

// AppName returns the name of the module owning the container.
func (c *Container) AppName() string {
	return c.appName
}

// RegisterService binds name to f. A later registration replaces an earlier one.
func (c *Container) RegisterService(name string, f Factory) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.factories[name] = f
}

// RegisterParameter binds name to a fixed value.
func (c *Container) RegisterParameter(name string, value any) {
	c.RegisterService(name, func(*Scope) (any, error) {
		return value, nil
	})
}

// Registered reports whether a factory is bound to name.
func (c *Container) Registered(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.factories[name]
	return ok
}

// RegisterMiddleware appends a middleware service to the chain executed
// around every request of the module.
func (c *Container) RegisterMiddleware(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.middleware = append(c.middleware, name)
}

// Middlewares returns the middleware service names in registration order.
func (c *Container) Middlewares() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return append([]string(nil), c.middleware...)
}

// RegisterCapability associates a capability reporter with the module.
func (c *Container) RegisterCapability(capability Capability) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.capabilities = append(c.capabilities, capability)
}

// Capabilities merges the documents of every registered capability. Later
// capabilities override top-level keys of earlier ones.
func (c *Container) Capabilities(ctx context.Context) map[string]any {
	c.mu.RLock()
	capabilities := append([]Capability(nil), c.capabilities...)
	c.mu.RUnlock()

	result := make(map[string]any)
	for _, capability := range capabilities {
		for k, v := range capability.Capabilities(ctx) {
			result[k] = v
		}
	}
	return result
}

// Root returns the application-lifetime scope.
func (c *Container) Root() *Scope {
	return c.root
}

// NewScope creates a scope bound to ctx, usually one per request.
func (c *Container) NewScope(ctx context.Context) *Scope {
	return &Scope{
		ctx:       ctx,
		container: c,
		instances: make(map[string]any),
		resolving: make(map[string]bool),
	}
}

func (c *Container) factory(name string) (Factory, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, ok := c.factories[name]
	return f, ok
}

// Resolve queries name from s and asserts its type.
func Resolve[T any](s *Scope, name string) (T, error) {
	var zero T

	v, err := s.Query(name)
	if err != nil {
		return zero, err
	}

	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %q is %T", ErrServiceType, name, v)
	}
	return typed, nil
}

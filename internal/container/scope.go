package container

import (
	"context"
	"fmt"
	"net/http"
	"sync"
)

// Scope caches the services constructed during its lifetime. A scope is
// owned by one goroutine: concurrent queries for a name that is still being
// constructed are reported as circular.
type Scope struct {
	ctx       context.Context
	container *Container

	mu        sync.Mutex
	instances map[string]any
	resolving map[string]bool
}

// Context returns the context the scope was created with.
func (s *Scope) Context() context.Context {
	return s.ctx
}

// Container returns the container the scope resolves from.
func (s *Scope) Container() *Container {
	return s.container
}

// Set stores a scope-local value under name. It shadows any factory.
func (s *Scope) Set(name string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.instances[name] = value
}

// Query returns the service bound to name, constructing it on first use.
func (s *Scope) Query(name string) (any, error) {
	s.mu.Lock()
	if v, ok := s.instances[name]; ok {
		s.mu.Unlock()
		return v, nil
	}
	if s.resolving[name] {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrCircularDependency, name)
	}

	f, ok := s.container.factory(name)
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrServiceNotFound, name)
	}
	s.resolving[name] = true
	s.mu.Unlock()

	v, err := f(s)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.resolving, name)
	if err != nil {
		return nil, fmt.Errorf("construct %q: %w", name, err)
	}
	s.instances[name] = v
	return v, nil
}

// Chain wraps h with every registered middleware. The first registered
// middleware runs outermost.
func (s *Scope) Chain(h http.Handler) (http.Handler, error) {
	names := s.container.Middlewares()
	for i := len(names) - 1; i >= 0; i-- {
		v, err := s.Query(names[i])
		if err != nil {
			return nil, err
		}
		mw, ok := v.(Middleware)
		if !ok {
			return nil, fmt.Errorf("%w: %q is %T", ErrMiddlewareInterface, names[i], v)
		}
		h = mw.Handler(h)
	}
	return h, nil
}

package handler

import "example.com/internal/container"

type Controller struct {
	scope *container.Scope
}

func (c *Controller) lookups() {
	_, _ = c.scope.Query("UserManager")                 // want "Scope.Query is only allowed in the composition root"
	_, _ = container.Resolve[int](c.scope, "UserManager") // want "container.Resolve is only allowed in the composition root"
}

type Scope struct{}

func (s *Scope) Query(name string) (any, error) {
	return nil, nil
}

func unrelated(s *Scope) {
	_, _ = s.Query("UserManager")
}

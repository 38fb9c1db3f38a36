package app

import "example.com/internal/container"

const userSession = "UserSession"

func constantNames(s *container.Scope) {
	_, _ = s.Query("ShareController")
	_, _ = s.Query(userSession)
	_, _ = container.Resolve[string](s, "AppName")
}

func passedThrough(s *container.Scope, name string) func() {
	_, _ = s.Query(name)
	return func() {
		_, _ = container.Resolve[string](s, name)
	}
}

func computedNames(s *container.Scope, suffix string) {
	name := "Share" + suffix
	_, _ = s.Query(name)                      // want "service name passed to Scope.Query must be a constant or a parameter"
	_, _ = container.Resolve[string](s, name) // want "service name passed to container.Resolve must be a constant or a parameter"
	_, _ = s.Query("Share" + suffix)          // want "service name passed to Scope.Query must be a constant or a parameter"
}

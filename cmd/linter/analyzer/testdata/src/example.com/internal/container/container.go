package container

type Scope struct{}

func (s *Scope) Query(name string) (any, error) {
	return nil, nil
}

func Resolve[T any](s *Scope, name string) (T, error) {
	var zero T
	v, err := s.Query(name)
	if err != nil {
		return zero, err
	}
	typed, _ := v.(T)
	return typed, nil
}

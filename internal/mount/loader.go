package mount

import (
	"errors"
	"fmt"
	"sync"
)

var ErrUnknownStorageClass = errors.New("unknown storage class")

// Storage is a backend that can be mounted.
type Storage interface {
	ID() string
}

// StorageFactory builds a storage from mount options.
type StorageFactory func(options map[string]string) (Storage, error)

// Loader instantiates storages by class name.
type Loader struct {
	mu        sync.RWMutex
	factories map[string]StorageFactory
}

func NewLoader() *Loader {
	return &Loader{factories: make(map[string]StorageFactory)}
}

// Register binds class to factory. A later registration replaces an earlier one.
func (l *Loader) Register(class string, factory StorageFactory) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.factories[class] = factory
}

func (l *Loader) Load(class string, options map[string]string) (Storage, error) {
	l.mu.RLock()
	factory, ok := l.factories[class]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStorageClass, class)
	}

	storage, err := factory(options)
	if err != nil {
		return nil, fmt.Errorf("error loading %s storage: %w", class, err)
	}
	return storage, nil
}

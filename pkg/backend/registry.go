package backend

import (
	"fmt"
	"sync"
)

var (
	mu       sync.RWMutex
	backends = make(map[string]Backend)
)

// Register registers a backend under its name.
// If a backend with the same name is already registered, it returns an error.
func Register(b Backend) error {
	if b == nil {
		return fmt.Errorf("cannot register nil backend")
	}

	name := b.Name()
	if name == "" {
		return fmt.Errorf("backend name cannot be empty")
	}

	mu.Lock()
	defer mu.Unlock()

	if _, exists := backends[name]; exists {
		return fmt.Errorf("backend %q is already registered", name)
	}

	backends[name] = b
	return nil
}

// Unregister removes a backend from the registry.
func Unregister(name string) error {
	mu.Lock()
	defer mu.Unlock()

	if _, exists := backends[name]; !exists {
		return fmt.Errorf("backend %q is not registered", name)
	}

	delete(backends, name)
	return nil
}

// Get retrieves a backend by name.
func Get(name string) (Backend, error) {
	mu.RLock()
	defer mu.RUnlock()

	b, exists := backends[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, name)
	}
	return b, nil
}

// List returns all registered backend names.
func List() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	return names
}

// Package userconfig holds per-caller work-item backend configuration.
// This is the gateway's only cross-request mutable state: volatile,
// process-lifetime and best-effort: no persistence and no expiry.
package userconfig

import "sync"

// Config is the work-item backend configuration one caller registered.
type Config struct {
	// Token is the personal access token for the work-item API.
	Token string

	// Organization is the work-item organization.
	Organization string

	// Project is the work-item project within the organization.
	Project string
}

// Store maps caller handles to their work-item configuration.
//
// Implementations must make Get and Set for the same handle mutually
// exclusive: a configuration update and a concurrent creation read must
// never observe a torn value. Different handles need no coordination.
type Store interface {
	// Get returns the configuration stored for handle, if any.
	Get(handle string) (Config, bool)

	// Set stores (or overwrites) the configuration for handle.
	Set(handle string, cfg Config)
}

// MemoryStore is the in-memory Store implementation.
type MemoryStore struct {
	mu      sync.RWMutex
	configs map[string]Config
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		configs: make(map[string]Config),
	}
}

// Get returns the configuration stored for handle, if any.
func (s *MemoryStore) Get(handle string) (Config, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.configs[handle]
	return cfg, ok
}

// Set stores (or overwrites) the configuration for handle.
func (s *MemoryStore) Set(handle string, cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.configs[handle] = cfg
}

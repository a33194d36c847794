package config

import (
	"sync"
	"time"
)

// Snapshot is a Config together with the version it was installed under.
type Snapshot struct {
	Config      *Config
	Version     uint64
	InstalledAt time.Time
}

// Store holds the live configuration snapshot shared by every reader and
// by the reload coordinator. Reads take a shared lock only long enough to
// copy the pointer, so a slow reload never blocks readers.
type Store struct {
	mu          sync.RWMutex
	current     *Config
	version     uint64
	installedAt time.Time
}

// NewStore creates a Store seeded with the startup configuration as
// version 1. initial must not be nil.
func NewStore(initial *Config) *Store {
	if initial == nil {
		panic("config: NewStore called with nil config")
	}
	return &Store{
		current:     initial,
		version:     1,
		installedAt: time.Now(),
	}
}

// Current returns the active configuration (thread-safe). The returned
// value is shared and must be treated as read-only.
func (s *Store) Current() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Snapshot returns the active configuration along with its version.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Config: s.current, Version: s.version, InstalledAt: s.installedAt}
}

// Version returns the version of the active configuration.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Replace installs cfg as the active configuration and returns its version.
// Readers holding the previous *Config keep seeing the old value. A nil cfg
// is ignored and the current version is returned unchanged.
func (s *Store) Replace(cfg *Config) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg == nil {
		return s.version
	}
	s.current = cfg
	s.version++
	s.installedAt = time.Now()
	return s.version
}

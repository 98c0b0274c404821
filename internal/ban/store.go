// Package ban provides the file-backed IP ban store. Bans expire lazily: an
// entry whose expiry has passed is treated as absent and pruned on the next
// lookup rather than by a timer.
package ban

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Store maps banned IP addresses to their expiry instant. The authoritative
// copy lives in memory; the backing file is rewritten on mutation only so
// admission checks never re-parse it. The on-disk format is a single JSON
// object of IP to expiry epoch seconds and is consumed by external tooling.
type Store struct {
	mu       sync.Mutex
	path     string
	duration time.Duration
	entries  map[string]float64

	now func() time.Time
}

// Open loads the ban store from path, creating an empty store file when none
// exists.
//
// Precondition: path must be writable; duration must be positive.
// Postcondition: Returns a Store ready for lookups, or a non-nil error.
func Open(path string, duration time.Duration) (*Store, error) {
	s := &Store{
		path:     path,
		duration: duration,
		entries:  make(map[string]float64),
		now:      time.Now,
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if err := s.persist(); err != nil {
			return nil, fmt.Errorf("initializing ban store: %w", err)
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading ban store %s: %w", path, err)
	}

	if err := json.Unmarshal(raw, &s.entries); err != nil {
		return nil, fmt.Errorf("parsing ban store %s: %w", path, err)
	}
	return s, nil
}

// IsBanned reports whether ip currently holds an unexpired ban. An expired
// entry found during the lookup is pruned and the pruned store persisted.
//
// Postcondition: Returns (banned, nil), or a non-nil error on persist failure.
func (s *Store) IsBanned(ip string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, ok := s.entries[ip]
	if !ok {
		return false, nil
	}
	if float64(s.now().UnixNano())/1e9 > expiry {
		delete(s.entries, ip)
		if err := s.persist(); err != nil {
			return false, fmt.Errorf("pruning expired ban for %s: %w", ip, err)
		}
		return false, nil
	}
	return true, nil
}

// Ban records a ban on ip lasting the store's configured duration from now.
//
// Postcondition: The entry is persisted before this method returns.
func (s *Store) Ban(ip string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry := s.now().Add(s.duration)
	s.entries[ip] = float64(expiry.UnixNano()) / 1e9
	if err := s.persist(); err != nil {
		return fmt.Errorf("persisting ban for %s: %w", ip, err)
	}
	return nil
}

// Len returns the number of live entries, counting expired ones not yet
// pruned.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// persist rewrites the backing file from the in-memory map.
// Caller must hold s.mu.
func (s *Store) persist() error {
	raw, err := json.Marshal(s.entries)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, raw, 0o644)
}

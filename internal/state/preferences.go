// internal/state/preferences.go
package state

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// PreferenceStore is a JSON-file-backed string key/value store.
type PreferenceStore struct {
	path string
	mu   sync.RWMutex
}

// NewPreferenceStore creates a store backed by the file at path.
func NewPreferenceStore(path string) *PreferenceStore {
	return &PreferenceStore{path: path}
}

// Path returns the file path used by this store.
func (s *PreferenceStore) Path() string {
	return s.path
}

// Get returns the value for key. A missing or unreadable file reads as empty.
func (s *PreferenceStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefs := s.loadOrEmpty()
	v, ok := prefs[key]
	return v, ok
}

// Set stores value under key.
func (s *PreferenceStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefs := s.loadOrEmpty()
	prefs[key] = value
	return s.save(prefs)
}

// Delete removes key. Deleting a missing key is not an error.
func (s *PreferenceStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefs := s.loadOrEmpty()
	if _, ok := prefs[key]; !ok {
		return nil
	}
	delete(prefs, key)
	return s.save(prefs)
}

// Keys returns the stored keys in sorted order.
func (s *PreferenceStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefs := s.loadOrEmpty()
	keys := make([]string, 0, len(prefs))
	for k := range prefs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *PreferenceStore) loadOrEmpty() map[string]string {
	prefs, err := s.load()
	if err != nil {
		slog.Warn("preferences unreadable, treating as empty", "path", s.path, "error", err)
		return map[string]string{}
	}
	return prefs
}

// load reads the JSON file. Returns an empty map if the file doesn't exist.
func (s *PreferenceStore) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read preferences file: %w", err)
	}

	prefs := map[string]string{}
	if err := json.Unmarshal(data, &prefs); err != nil {
		return nil, fmt.Errorf("unmarshal preferences: %w", err)
	}
	return prefs, nil
}

// save writes prefs to disk using atomic write (temp file + rename).
func (s *PreferenceStore) save(prefs map[string]string) error {
	data, err := json.MarshalIndent(prefs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal preferences: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create preferences dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write temp preferences file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp preferences file: %w", err)
	}
	return nil
}

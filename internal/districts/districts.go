// Package districts holds the hot-reloadable routing tables: the district
// keyword lists used to classify inbound order texts and the global blacklist
// of terms that disqualify a message outright.
package districts

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// District is one geographic region orders can be routed to. Keywords are
// matched as case-insensitive substrings; ThreadID is the forum topic that
// receives this district's orders.
type District struct {
	Key      string   `yaml:"key"`
	Title    string   `yaml:"title"`
	ThreadID int      `yaml:"thread_id"`
	Keywords []string `yaml:"keywords"`
}

// Table is one immutable snapshot of the routing configuration. Districts
// keep their file order; classification tie-breaks depend on it.
type Table struct {
	Districts []District `yaml:"districts"`
	Blacklist []string   `yaml:"blacklist"`
}

// ByKey returns the district with the given key, or false if none matches.
func (t Table) ByKey(key string) (District, bool) {
	for _, d := range t.Districts {
		if d.Key == key {
			return d, true
		}
	}
	return District{}, false
}

// Parse unmarshals YAML bytes into a validated Table.
func Parse(data []byte) (Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Table{}, fmt.Errorf("districts: parse: %w", err)
	}
	if err := t.validate(); err != nil {
		return Table{}, err
	}
	return t, nil
}

// Load reads a YAML table from path.
func Load(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("districts: read %s: %w", path, err)
	}
	return Parse(data)
}

// validate checks that districts are well-formed. An empty table is legal:
// it degrades to "nothing matches", not an error.
func (t Table) validate() error {
	var errs []string
	seen := make(map[string]bool)
	for i, d := range t.Districts {
		if d.Key == "" {
			errs = append(errs, fmt.Sprintf("districts[%d].key is required", i))
			continue
		}
		if seen[d.Key] {
			errs = append(errs, fmt.Sprintf("districts[%d]: duplicate key %q", i, d.Key))
		}
		seen[d.Key] = true
	}
	if len(errs) > 0 {
		return fmt.Errorf("districts: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Store owns the current Table and supports swap-in-place reloads. Readers
// always get the table active at call time, never a startup snapshot.
type Store struct {
	mu   sync.RWMutex
	tbl  Table
	path string
}

// NewStore creates a Store seeded with the given table.
func NewStore(tbl Table) *Store {
	return &Store{tbl: tbl}
}

// Open loads the table from path and returns a Store that remembers the
// path for later Reload calls.
func Open(path string) (*Store, error) {
	tbl, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Store{tbl: tbl, path: path}, nil
}

// Current returns the active table snapshot.
func (s *Store) Current() Table {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tbl
}

// Swap replaces the active table.
func (s *Store) Swap(tbl Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tbl = tbl
}

// Reload re-reads the table from the path the Store was opened with and
// swaps it in. The old table stays active if the reload fails.
func (s *Store) Reload() error {
	s.mu.RLock()
	path := s.path
	s.mu.RUnlock()
	if path == "" {
		return fmt.Errorf("districts: store has no backing file")
	}
	tbl, err := Load(path)
	if err != nil {
		return err
	}
	s.Swap(tbl)
	return nil
}

// SetKeywords replaces one district's keyword list in the active table and,
// when the store has a backing file, persists the result. Used by the admin
// panel's keyword editor.
func (s *Store) SetKeywords(key string, keywords []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	for i := range s.tbl.Districts {
		if s.tbl.Districts[i].Key == key {
			s.tbl.Districts[i].Keywords = keywords
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("districts: unknown district %q", key)
	}
	return s.saveLocked()
}

// SetBlacklist replaces the blacklist in the active table and persists it.
func (s *Store) SetBlacklist(terms []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tbl.Blacklist = terms
	return s.saveLocked()
}

// saveLocked writes the active table back to the backing file, if any.
// Caller must hold the write lock.
func (s *Store) saveLocked() error {
	if s.path == "" {
		return nil
	}
	data, err := yaml.Marshal(s.tbl)
	if err != nil {
		return fmt.Errorf("districts: marshal: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("districts: write %s: %w", s.path, err)
	}
	return nil
}

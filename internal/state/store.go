// Package state persists tracked-agent records, one file per pane key.
//
// Writers are independent processes (each agent's status hook runs on its
// own), so the store avoids any cross-process locking: every record lives in
// its own file and every write is an atomic rename. Concurrent upserts to
// different keys never interfere; racing writes to the same key resolve by
// last-write-wins. The only corruption guarded against is a torn write.
package state

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/timvw/muxtrack/internal/model"
)

// Store is a durable PaneKey -> AgentState mapping backed by a directory of
// JSON files.
type Store struct {
	dir string
	now func() time.Time
}

// NewStore returns a store rooted at dir. The directory is created lazily on
// first write.
func NewStore(dir string) *Store {
	return &Store{dir: dir, now: time.Now}
}

// Dir returns the directory the store writes into.
func (s *Store) Dir() string {
	return s.dir
}

// path maps a key to its record file. A short content hash keeps filenames
// unique without escaping session/window names; the full key is recoverable
// from the record itself.
func (s *Store) path(key model.PaneKey) string {
	sum := sha256.Sum256([]byte(key.Canonical()))
	name := fmt.Sprintf("%s-%s.json", sanitizeName(key.Mux), hex.EncodeToString(sum[:6]))
	return filepath.Join(s.dir, name)
}

// Upsert writes the complete record for its key, replacing any previous one.
// UpdatedTS is stamped here so it increases monotonically no matter which
// process writes. The write is atomic: a temp file in the same directory is
// written, synced, and renamed over the destination, so a concurrent reader
// never observes a partial record.
func (s *Store) Upsert(st model.AgentState) error {
	if err := st.Validate(); err != nil {
		return fmt.Errorf("invalid agent state: %w", err)
	}
	st.UpdatedTS = s.now()

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("failed to create state dir: %w", err)
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode agent state: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(s.dir, ".agent-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path(st.Key)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace record: %w", err)
	}
	// Best effort: make the rename itself durable.
	if dirf, err := os.Open(s.dir); err == nil {
		dirf.Sync()
		dirf.Close()
	}
	return nil
}

// Get returns the record for key, or nil when no record exists.
func (s *Store) Get(key model.PaneKey) (*model.AgentState, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read record: %w", err)
	}
	var st model.AgentState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to decode record for %s: %w", key, err)
	}
	return &st, nil
}

// LoadAll returns every decodable record. A missing directory is an empty
// store. Individual unreadable or corrupt files are skipped rather than
// failing the whole listing; one torn record must not blind the dashboard
// to every healthy agent.
func (s *Store) LoadAll() ([]model.AgentState, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state dir: %w", err)
	}

	var states []model.AgentState
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			continue
		}
		var st model.AgentState
		if err := json.Unmarshal(data, &st); err != nil {
			continue
		}
		states = append(states, st)
	}
	return states, nil
}

// Delete removes the record for key. Deleting an absent record is not an
// error; reconciliation and a racing hook may both settle the same key.
func (s *Store) Delete(key model.PaneKey) error {
	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

// sanitizeName restricts a backend name to a filename-safe alphabet.
func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "unknown"
	}
	return b.String()
}

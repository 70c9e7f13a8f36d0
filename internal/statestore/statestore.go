// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package statestore persists session-state snapshots to the filesystem,
// keyed by a sanitized name (C8 in spec.md's component table).
package statestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/groupsio/capharness/internal/worker"
)

const schemaVersion = 1

// ErrNotFound is returned by Load when no snapshot exists under name.
var ErrNotFound = errors.New("statestore: no saved state found")

// Record is one persisted snapshot, wrapping the worker snapshot with
// schema/timestamp metadata (spec.md §4.8).
type Record struct {
	ID            string          `json:"id"`
	SchemaVersion int             `json:"schema_version"`
	SavedAt       string          `json:"saved_at"`
	Snapshot      worker.Snapshot `json:"snapshot"`
}

// Store is a directory of JSON snapshot files.
type Store struct {
	dir string
}

func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("statestore: create %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// Sanitize maps an arbitrary session name to a safe filename stem.
func Sanitize(name string) string {
	s := unsafeName.ReplaceAllString(name, "_")
	s = strings.Trim(s, "_")
	if s == "" {
		s = "session"
	}
	return s
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, Sanitize(name)+".json")
}

// Save writes snap under name, overwriting any previous save.
func (s *Store) Save(name string, snap worker.Snapshot, savedAt string) (Record, error) {
	rec := Record{
		ID:            uuid.New().String(),
		SchemaVersion: schemaVersion,
		SavedAt:       savedAt,
		Snapshot:      snap,
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return Record{}, fmt.Errorf("statestore: encode %s: %w", name, err)
	}
	if err := os.WriteFile(s.path(name), data, 0o644); err != nil {
		return Record{}, fmt.Errorf("statestore: write %s: %w", name, err)
	}
	return rec, nil
}

// Load reads the snapshot saved under name, or ErrNotFound if absent.
func (s *Store) Load(name string) (Record, error) {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("statestore: read %s: %w", name, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("statestore: decode %s: %w", name, err)
	}
	return rec, nil
}

// List returns the sanitized names of every saved session, sorted.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("statestore: list: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes the snapshot saved under name. Deleting a name that
// doesn't exist is not an error.
func (s *Store) Delete(name string) error {
	if err := os.Remove(s.path(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("statestore: delete %s: %w", name, err)
	}
	return nil
}

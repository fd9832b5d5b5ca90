/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotFound indicates no persisted session state exists yet.
var ErrNotFound = errors.New("audio session state not found")

// Store persists the audio session state across restarts.
type Store interface {
	Load() (AudioState, error)
	Save(AudioState) error
}

// FileStore persists session state as JSON on local disk.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed session store at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the persisted state.
func (s *FileStore) Load() (AudioState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return AudioState{}, ErrNotFound
		}
		return AudioState{}, fmt.Errorf("read session state: %w", err)
	}

	var state AudioState
	if err := json.Unmarshal(data, &state); err != nil {
		return AudioState{}, fmt.Errorf("decode session state: %w", err)
	}
	return state, nil
}

// Save writes the state atomically via a temp file rename.
func (s *FileStore) Save(state AudioState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create session state dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write session state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace session state: %w", err)
	}
	return nil
}

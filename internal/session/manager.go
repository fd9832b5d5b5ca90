/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package session owns the process-wide audio session state: mute, volume,
// and the global mute override that wins over every per-card mute.
package session

import (
	"sync"

	"github.com/rs/zerolog"
)

// AudioState is the process-wide audio session record.
type AudioState struct {
	Muted      bool    `json:"muted"`
	Volume     float64 `json:"volume"`
	LastMuted  bool    `json:"last_muted"`
	GlobalMute bool    `json:"global_mute"`
}

// DefaultState is the state used when no persisted state can be restored.
func DefaultState() AudioState {
	return AudioState{Muted: false, Volume: 1.0, GlobalMute: false}
}

// Manager mutates and persists the audio session state and notifies
// subscribers synchronously on every mutation. In-memory state stays
// authoritative for the session even when persistence fails.
type Manager struct {
	store  Store
	logger zerolog.Logger

	mu      sync.Mutex
	state   AudioState
	subs    map[int]func(AudioState)
	nextSub int
}

// NewManager restores persisted state through store, falling back to
// DefaultState when nothing can be loaded.
func NewManager(store Store, logger zerolog.Logger) *Manager {
	m := &Manager{
		store:  store,
		logger: logger,
		state:  DefaultState(),
		subs:   make(map[int]func(AudioState)),
	}

	if store != nil {
		state, err := store.Load()
		if err != nil {
			logger.Debug().Err(err).Msg("audio session restore failed, using defaults")
		} else {
			m.state = state
		}
	}

	return m
}

// State returns a snapshot of the current session state.
func (m *Manager) State() AudioState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe registers a listener invoked with the new state on every
// mutation. The returned function removes the listener.
func (m *Manager) Subscribe(fn func(AudioState)) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// SetMute sets the session mute flag, remembering the previous value so
// RestoreLastMuteState can revert it.
func (m *Manager) SetMute(muted bool) {
	m.mutate(func(s *AudioState) {
		s.LastMuted = s.Muted
		s.Muted = muted
	})
}

// ToggleMute flips the session mute flag.
func (m *Manager) ToggleMute() {
	m.mutate(func(s *AudioState) {
		s.LastMuted = s.Muted
		s.Muted = !s.Muted
	})
}

// SetVolume sets the session volume, clamped to [0, 1].
func (m *Manager) SetVolume(volume float64) {
	if volume < 0 {
		volume = 0
	}
	if volume > 1 {
		volume = 1
	}
	m.mutate(func(s *AudioState) {
		s.Volume = volume
	})
}

// SetGlobalMute sets the global mute override. While enabled, every
// registered player's effective mute is forced to true.
func (m *Manager) SetGlobalMute(enabled bool) {
	m.mutate(func(s *AudioState) {
		s.GlobalMute = enabled
	})
}

// RestoreLastMuteState reverts the mute flag to its value before the most
// recent SetMute/ToggleMute.
func (m *Manager) RestoreLastMuteState() {
	m.mutate(func(s *AudioState) {
		s.Muted = s.LastMuted
	})
}

// Reset restores the default session state.
func (m *Manager) Reset() {
	m.mutate(func(s *AudioState) {
		*s = DefaultState()
	})
}

// mutate applies fn, persists the result, and notifies subscribers before
// returning. Subscribers run outside the lock so they may call back into
// the manager.
func (m *Manager) mutate(fn func(*AudioState)) {
	m.mu.Lock()
	fn(&m.state)
	state := m.state
	subs := make([]func(AudioState), 0, len(m.subs))
	for _, sub := range m.subs {
		subs = append(subs, sub)
	}
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.Save(state); err != nil {
			m.logger.Warn().Err(err).Msg("failed to persist audio session state")
		}
	}

	for _, sub := range subs {
		sub(state)
	}
}

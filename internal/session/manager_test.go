/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package session

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

type failingStore struct {
	loadErr error
	saveErr error
	saved   []AudioState
}

func (f *failingStore) Load() (AudioState, error) {
	return AudioState{}, f.loadErr
}

func (f *failingStore) Save(state AudioState) error {
	f.saved = append(f.saved, state)
	return f.saveErr
}

func TestManagerFallsBackToDefaultsOnRestoreFailure(t *testing.T) {
	store := &failingStore{loadErr: errors.New("disk gone")}
	m := NewManager(store, zerolog.Nop())

	if got := m.State(); got != DefaultState() {
		t.Fatalf("expected default state, got %+v", got)
	}
}

func TestManagerKeepsInMemoryStateWhenSaveFails(t *testing.T) {
	store := &failingStore{loadErr: ErrNotFound, saveErr: errors.New("disk full")}
	m := NewManager(store, zerolog.Nop())

	m.SetMute(true)

	if !m.State().Muted {
		t.Fatal("in-memory state must stay authoritative when persistence fails")
	}
}

func TestManagerNotifiesSynchronously(t *testing.T) {
	m := NewManager(nil, zerolog.Nop())

	var seen []AudioState
	m.Subscribe(func(s AudioState) { seen = append(seen, s) })

	m.SetMute(true)
	m.SetVolume(0.5)

	if len(seen) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(seen))
	}
	if !seen[0].Muted {
		t.Fatal("first notification should carry the mute")
	}
	if seen[1].Volume != 0.5 {
		t.Fatalf("second notification should carry the volume, got %v", seen[1].Volume)
	}
}

func TestUnsubscribeStopsNotifications(t *testing.T) {
	m := NewManager(nil, zerolog.Nop())

	calls := 0
	unsubscribe := m.Subscribe(func(AudioState) { calls++ })
	m.SetMute(true)
	unsubscribe()
	m.SetMute(false)

	if calls != 1 {
		t.Fatalf("expected 1 call after unsubscribe, got %d", calls)
	}
}

func TestToggleAndRestoreLastMuteState(t *testing.T) {
	m := NewManager(nil, zerolog.Nop())

	m.ToggleMute()
	if !m.State().Muted {
		t.Fatal("toggle from default should mute")
	}

	m.ToggleMute()
	if m.State().Muted {
		t.Fatal("second toggle should unmute")
	}

	// The navigation-away pattern: remember, force, restore.
	m.SetMute(true)
	m.SetMute(false)
	m.RestoreLastMuteState()
	if !m.State().Muted {
		t.Fatal("restore should bring back the pre-change mute")
	}
}

func TestSetVolumeClamps(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-0.5, 0},
		{0, 0},
		{0.4, 0.4},
		{1, 1},
		{3.2, 1},
	}
	m := NewManager(nil, zerolog.Nop())
	for _, tt := range tests {
		m.SetVolume(tt.in)
		if got := m.State().Volume; got != tt.want {
			t.Fatalf("SetVolume(%v): got %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestGlobalMuteIsIndependentOfSessionMute(t *testing.T) {
	m := NewManager(nil, zerolog.Nop())

	m.SetGlobalMute(true)
	state := m.State()
	if !state.GlobalMute {
		t.Fatal("global mute should be set")
	}
	if state.Muted {
		t.Fatal("global mute must not flip the session mute flag")
	}

	m.SetGlobalMute(false)
	if m.State().GlobalMute {
		t.Fatal("global mute should be cleared")
	}
}

func TestResetRestoresDefaults(t *testing.T) {
	m := NewManager(nil, zerolog.Nop())
	m.SetMute(true)
	m.SetVolume(0.2)
	m.SetGlobalMute(true)

	m.Reset()

	if got := m.State(); got != DefaultState() {
		t.Fatalf("expected defaults after reset, got %+v", got)
	}
}

func TestMutationsArePersisted(t *testing.T) {
	store := &failingStore{loadErr: ErrNotFound}
	m := NewManager(store, zerolog.Nop())

	m.SetMute(true)
	m.SetVolume(0.7)

	if len(store.saved) != 2 {
		t.Fatalf("expected 2 saves, got %d", len(store.saved))
	}
	last := store.saved[len(store.saved)-1]
	if !last.Muted || last.Volume != 0.7 {
		t.Fatalf("unexpected persisted state %+v", last)
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "audio.json")
	store := NewFileStore(path)

	if _, err := store.Load(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound before first save, got %v", err)
	}

	want := AudioState{Muted: true, Volume: 0.3, LastMuted: false, GlobalMute: true}
	if err := store.Save(want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestManagerRestoresPersistedState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audio.json")
	store := NewFileStore(path)

	first := NewManager(store, zerolog.Nop())
	first.SetMute(true)
	first.SetVolume(0.6)

	second := NewManager(store, zerolog.Nop())
	state := second.State()
	if !state.Muted || state.Volume != 0.6 {
		t.Fatalf("expected restored state, got %+v", state)
	}
}

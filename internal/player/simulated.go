/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package player provides a deterministic stand-in for the native media
// layer, used by the simulator and by tests. It reports not-ready until its
// configured load delay has elapsed, like a real player buffering a URL.
package player

import (
	"sync"
	"time"

	"github.com/friendsincode/versefeed/internal/media"
)

// Simulated implements media.Handle without any native decoding.
type Simulated struct {
	mu         sync.Mutex
	url        string
	durationMS int64
	positionMS int64
	loadAt     time.Time
	playing    bool
	muted      bool
	now        func() time.Time
}

// NewSimulated creates a simulated player for url that becomes loaded after
// loadDelay.
func NewSimulated(url string, durationMS int64, loadDelay time.Duration) *Simulated {
	now := time.Now
	return &Simulated{
		url:        url,
		durationMS: durationMS,
		loadAt:     now().Add(loadDelay),
		now:        now,
	}
}

func (s *Simulated) loaded() bool {
	return !s.now().Before(s.loadAt)
}

// Play starts playback, or reports not ready while still loading.
func (s *Simulated) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded() {
		return media.ErrNotReady
	}
	s.playing = true
	return nil
}

// Pause stops playback.
func (s *Simulated) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = false
	return nil
}

// SetMuted sets the player mute flag.
func (s *Simulated) SetMuted(muted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.muted = muted
	return nil
}

// Seek moves the playhead, clamped to the media duration.
func (s *Simulated) Seek(positionMS int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded() {
		return media.ErrNotReady
	}
	if positionMS < 0 {
		positionMS = 0
	}
	if positionMS > s.durationMS {
		positionMS = s.durationMS
	}
	s.positionMS = positionMS
	return nil
}

// Status returns the player's self-report.
func (s *Simulated) Status() media.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return media.Status{
		IsLoaded:   s.loaded(),
		IsPlaying:  s.playing,
		PositionMS: s.positionMS,
		DurationMS: s.durationMS,
	}
}

// Muted reports the last mute value applied to the player.
func (s *Simulated) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

// Advance moves the playhead forward while playing; the simulator calls it
// once per tick to imitate native progress callbacks.
func (s *Simulated) Advance(elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.playing {
		return
	}
	s.positionMS += elapsed.Milliseconds()
	if s.positionMS >= s.durationMS {
		s.positionMS = s.durationMS
		s.playing = false
	}
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package registry enforces the single-active-player invariant: it maps
// media keys to the player handles contributed by mounted cards and
// guarantees that starting playback on one key pauses any other.
package registry

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/versefeed/internal/events"
	"github.com/friendsincode/versefeed/internal/media"
	"github.com/friendsincode/versefeed/internal/session"
	"github.com/friendsincode/versefeed/internal/telemetry"
)

// PlaybackState is the per-key state retained by the registry. Entries are
// created lazily on first registration and kept for the whole session; only
// the handle entry is removed on unmount.
type PlaybackState struct {
	IsPlaying      bool
	Muted          bool
	Progress       float64
	OverlayVisible bool
	Failed         bool
}

type entry struct {
	handle     media.Handle
	generation uint64
}

// Options tunes the deferred start retry policy.
type Options struct {
	// MaxStartAttempts bounds play attempts against a not-ready player
	// before the key is marked failed.
	MaxStartAttempts int
	// RetryInterval is the fixed delay between start attempts.
	RetryInterval time.Duration
}

// DefaultOptions returns the production retry policy.
func DefaultOptions() Options {
	return Options{MaxStartAttempts: 40, RetryInterval: 250 * time.Millisecond}
}

// Registry is the process-wide single-active-player registry.
type Registry struct {
	session *session.Manager
	bus     *events.Bus
	logger  zerolog.Logger
	opts    Options

	unsubscribe func()

	mu         sync.Mutex
	handles    map[media.Key]*entry
	states     map[media.Key]*PlaybackState
	active     media.Key
	generation uint64
}

// New creates a registry bound to the audio session manager. Every session
// mutation re-applies the effective mute to all registered handles so the
// next key to activate is already correctly muted.
func New(sessionMgr *session.Manager, bus *events.Bus, opts Options, logger zerolog.Logger) *Registry {
	if opts.MaxStartAttempts < 1 {
		opts.MaxStartAttempts = DefaultOptions().MaxStartAttempts
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = DefaultOptions().RetryInterval
	}

	r := &Registry{
		session: sessionMgr,
		bus:     bus,
		logger:  logger,
		opts:    opts,
		handles: make(map[media.Key]*entry),
		states:  make(map[media.Key]*PlaybackState),
	}

	if sessionMgr != nil {
		r.unsubscribe = sessionMgr.Subscribe(func(state session.AudioState) {
			r.applySessionState(state)
		})
	}

	return r
}

// Close detaches the registry from the session manager.
func (r *Registry) Close() {
	if r.unsubscribe != nil {
		r.unsubscribe()
		r.unsubscribe = nil
	}
}

// Register replaces any prior handle for key. If key is currently active,
// the new handle inherits "should be playing": this covers a card
// remounting under list virtualization while its key is still logically
// active.
func (r *Registry) Register(key media.Key, handle media.Handle) {
	r.mu.Lock()
	r.generation++
	gen := r.generation
	if _, exists := r.handles[key]; !exists {
		telemetry.RegisteredHandles.Inc()
	}
	r.handles[key] = &entry{handle: handle, generation: gen}
	state := r.stateLocked(key)
	muted := r.effectiveMuteLocked(state)
	isActive := r.active == key
	r.mu.Unlock()

	r.call(key, "setMuted", func() error { return handle.SetMuted(muted) })

	if isActive {
		r.logger.Debug().Str("key", string(key)).Msg("active key remounted, resuming playback")
		r.startPlayback(key, gen, 1)
	}
}

// Unregister removes the handle for key. If key was active, the active key
// becomes none; promotion of another key is the visibility tracker's call.
// The per-key playback state is retained.
func (r *Registry) Unregister(key media.Key) {
	r.mu.Lock()
	if _, exists := r.handles[key]; exists {
		telemetry.RegisteredHandles.Dec()
	}
	delete(r.handles, key)
	wasActive := r.active == key
	if wasActive {
		r.active = ""
	}
	if state, ok := r.states[key]; ok {
		state.IsPlaying = false
	}
	r.mu.Unlock()

	if wasActive {
		r.publish(events.EventPlaybackDeactivated, key, events.Payload{"reason": "unregistered"})
	}
}

// Activate makes key the single active player: the previous active key is
// paused first, then key's handle is played. Activating the already-active
// key is a no-op.
func (r *Registry) Activate(key media.Key) {
	r.mu.Lock()
	if r.active == key {
		r.mu.Unlock()
		return
	}

	prev := r.active
	var prevHandle media.Handle
	if prev != "" {
		if state, ok := r.states[prev]; ok {
			state.IsPlaying = false
		}
		if ent, ok := r.handles[prev]; ok {
			prevHandle = ent.handle
		}
	}

	// Intent is authoritative immediately; native confirmation arrives
	// later through the status funnel.
	r.active = key
	state := r.stateLocked(key)
	state.IsPlaying = true
	state.Failed = false
	muted := r.effectiveMuteLocked(state)

	ent, hasHandle := r.handles[key]
	var gen uint64
	var handle media.Handle
	if hasHandle {
		gen = ent.generation
		handle = ent.handle
	}
	r.mu.Unlock()

	// Pause is issued before play; completion order is not guaranteed.
	if prevHandle != nil {
		r.call(prev, "pause", prevHandle.Pause)
	}

	if hasHandle {
		r.call(key, "setMuted", func() error { return handle.SetMuted(muted) })
		r.startPlayback(key, gen, 1)
	} else {
		// Playback starts when the card registers its handle.
		r.logger.Debug().Str("key", string(key)).Msg("activated key with no handle yet")
	}

	telemetry.ActivationsTotal.Inc()
	r.publish(events.EventPlaybackActivated, key, events.Payload{"previous": string(prev)})
}

// Deactivate pauses key if it is the active key and clears the active key.
func (r *Registry) Deactivate(key media.Key) {
	r.mu.Lock()
	if r.active != key {
		r.mu.Unlock()
		return
	}
	r.active = ""
	if state, ok := r.states[key]; ok {
		state.IsPlaying = false
	}
	var handle media.Handle
	if ent, ok := r.handles[key]; ok {
		handle = ent.handle
	}
	r.mu.Unlock()

	if handle != nil {
		r.call(key, "pause", handle.Pause)
	}

	telemetry.DeactivationsTotal.Inc()
	r.publish(events.EventPlaybackDeactivated, key, nil)
}

// PauseAll pauses every registered handle and clears the active key. Used
// on screen blur and navigation away, and before an autoplay switch.
func (r *Registry) PauseAll() {
	r.mu.Lock()
	prev := r.active
	r.active = ""
	paused := make(map[media.Key]media.Handle, len(r.handles))
	for key, ent := range r.handles {
		paused[key] = ent.handle
	}
	for _, state := range r.states {
		state.IsPlaying = false
	}
	r.mu.Unlock()

	for key, handle := range paused {
		r.call(key, "pause", handle.Pause)
	}

	if prev != "" {
		r.publish(events.EventPlaybackDeactivated, prev, events.Payload{"reason": "pause_all"})
	}
}

// ActiveKey returns the currently active key, or "" when none.
func (r *Registry) ActiveKey() media.Key {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// StateOf returns a snapshot of key's playback state.
func (r *Registry) StateOf(key media.Key) PlaybackState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if state, ok := r.states[key]; ok {
		return *state
	}
	return PlaybackState{}
}

// States returns a snapshot of all known per-key states.
func (r *Registry) States() map[media.Key]PlaybackState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[media.Key]PlaybackState, len(r.states))
	for key, state := range r.states {
		out[key] = *state
	}
	return out
}

// SetMuted records key's requested mute and applies the effective mute to
// its handle. The global mute override still wins.
func (r *Registry) SetMuted(key media.Key, muted bool) {
	r.mu.Lock()
	state := r.stateLocked(key)
	state.Muted = muted
	effective := r.effectiveMuteLocked(state)
	var handle media.Handle
	if ent, ok := r.handles[key]; ok {
		handle = ent.handle
	}
	r.mu.Unlock()

	if handle != nil {
		r.call(key, "setMuted", func() error { return handle.SetMuted(effective) })
	}
}

// SetOverlayVisible records whether key's card is showing its controls
// overlay.
func (r *Registry) SetOverlayVisible(key media.Key, visible bool) {
	r.mu.Lock()
	r.stateLocked(key).OverlayVisible = visible
	r.mu.Unlock()
}

// HandleStatus is the single funnel for native player status callbacks. It
// updates the key's progress and emits a progress event; the stored
// isPlaying intent is not overwritten by self-reports.
func (r *Registry) HandleStatus(key media.Key, status media.Status) {
	r.mu.Lock()
	if _, registered := r.handles[key]; !registered {
		// A late callback from an unmounted card must not mutate state.
		r.mu.Unlock()
		return
	}
	state := r.stateLocked(key)
	if status.DurationMS > 0 {
		state.Progress = float64(status.PositionMS) / float64(status.DurationMS)
		if state.Progress > 1 {
			state.Progress = 1
		}
	}
	progress := state.Progress
	r.mu.Unlock()

	r.publish(events.EventPlaybackProgress, key, events.Payload{
		"progress":    progress,
		"position_ms": status.PositionMS,
		"duration_ms": status.DurationMS,
		"is_playing":  status.IsPlaying,
	})
}

// HandleError reports a native decode/network error for key. The registry
// clears its bookkeeping so the visibility algorithm is free to promote
// another candidate; user-facing messaging is the owning card's problem.
func (r *Registry) HandleError(key media.Key, cause error) {
	r.mu.Lock()
	state := r.stateLocked(key)
	state.Failed = true
	state.IsPlaying = false
	wasActive := r.active == key
	if wasActive {
		r.active = ""
	}
	r.mu.Unlock()

	r.logger.Warn().Err(cause).Str("key", string(key)).Msg("native playback error")
	r.publish(events.EventPlaybackFailed, key, events.Payload{"error": cause.Error()})
}

// startPlayback issues play against key's handle, retrying on a bounded
// schedule while the player reports not loaded. Generation and active-key
// checks make late retries harmless after a remount or switch.
func (r *Registry) startPlayback(key media.Key, gen uint64, attempt int) {
	r.mu.Lock()
	ent, ok := r.handles[key]
	if !ok || ent.generation != gen || r.active != key {
		r.mu.Unlock()
		return
	}
	handle := ent.handle
	r.mu.Unlock()

	err := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				r.logger.Error().Interface("panic", p).Str("key", string(key)).Msg("player handle panicked in play")
				err = nil
			}
		}()
		return handle.Play()
	}()

	if err == nil {
		return
	}

	if !errors.Is(err, media.ErrNotReady) {
		r.logger.Warn().Err(err).Str("key", string(key)).Msg("play failed")
		return
	}

	if attempt >= r.opts.MaxStartAttempts {
		r.mu.Lock()
		state := r.stateLocked(key)
		state.Failed = true
		state.IsPlaying = false
		if r.active == key {
			r.active = ""
		}
		r.mu.Unlock()

		telemetry.StartFailuresTotal.Inc()
		r.logger.Warn().Str("key", string(key)).Int("attempts", attempt).Msg("gave up starting playback")
		r.publish(events.EventPlaybackFailed, key, events.Payload{"error": "player never became ready"})
		return
	}

	telemetry.StartRetriesTotal.Inc()
	time.AfterFunc(r.opts.RetryInterval, func() {
		r.startPlayback(key, gen, attempt+1)
	})
}

// applySessionState fans a session mutation out to every registered handle,
// active or not.
func (r *Registry) applySessionState(state session.AudioState) {
	r.mu.Lock()
	targets := make(map[media.Key]media.Handle, len(r.handles))
	mutes := make(map[media.Key]bool, len(r.handles))
	for key, ent := range r.handles {
		targets[key] = ent.handle
		perKey := r.states[key] != nil && r.states[key].Muted
		mutes[key] = perKey || state.Muted || state.GlobalMute
	}
	r.mu.Unlock()

	for key, handle := range targets {
		muted := mutes[key]
		h := handle
		r.call(key, "setMuted", func() error { return h.SetMuted(muted) })
	}
}

func (r *Registry) stateLocked(key media.Key) *PlaybackState {
	state, ok := r.states[key]
	if !ok {
		state = &PlaybackState{}
		r.states[key] = state
	}
	return state
}

func (r *Registry) effectiveMuteLocked(state *PlaybackState) bool {
	if state.Muted {
		return true
	}
	if r.session == nil {
		return false
	}
	s := r.session.State()
	return s.Muted || s.GlobalMute
}

// call invokes a handle operation, swallowing errors and panics: a stale
// handle must never throw into an event handler.
func (r *Registry) call(key media.Key, op string, fn func() error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error().Interface("panic", p).Str("key", string(key)).Str("op", op).Msg("player handle panicked")
		}
	}()
	if err := fn(); err != nil {
		r.logger.Debug().Err(err).Str("key", string(key)).Str("op", op).Msg("handle call failed")
	}
}

func (r *Registry) publish(eventType events.EventType, key media.Key, extra events.Payload) {
	if r.bus == nil {
		return
	}
	payload := events.Payload{"key": string(key)}
	for k, v := range extra {
		payload[k] = v
	}
	r.bus.Publish(eventType, payload)
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package visibility turns scroll offsets and card layouts into autoplay
// decisions. The algorithm is hysteresis based: an active video holds its
// slot while reasonably visible, challengers need a high visibility ratio,
// and switches are debounced to survive fast flings.
package visibility

import (
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/friendsincode/versefeed/internal/media"
	"github.com/friendsincode/versefeed/internal/registry"
	"github.com/friendsincode/versefeed/internal/telemetry"
)

// Layout is the last reported on-screen geometry of one card. Entries are
// overwritten on every layout event and removed on unmount; stale entries
// never influence decisions.
type Layout struct {
	Top      float64
	Height   float64
	Kind     media.Kind
	Playable bool
}

// Config holds the autoplay tuning thresholds. The defaults are product
// tuned, not derived, so they are configuration rather than constants.
type Config struct {
	// HoldThreshold keeps the active video playing while at least this
	// fraction of it is visible.
	HoldThreshold float64
	// SwitchInThreshold is the minimum ratio for a challenger outside the
	// center band; a weak candidate must not steal activation.
	SwitchInThreshold float64
	// PauseThreshold deactivates playback when no video reaches it.
	PauseThreshold float64
	// AudioPauseThreshold pauses a playing audio card scrolled below it.
	// Audio never autoplays from scroll; it starts only on explicit tap.
	AudioPauseThreshold float64
	// CenterBand is the fraction of the viewport height, centered, in which
	// an item's center makes it a preferred candidate.
	CenterBand float64
	// MinSwitchInterval debounces switches during fast flings.
	MinSwitchInterval time.Duration
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		HoldThreshold:       0.25,
		SwitchInThreshold:   0.70,
		PauseThreshold:      0.12,
		AudioPauseThreshold: 0.30,
		CenterBand:          0.30,
		MinSwitchInterval:   900 * time.Millisecond,
	}
}

// Tracker is the per-feed-screen visibility tracker.
type Tracker struct {
	cfg      Config
	registry *registry.Registry
	logger   zerolog.Logger
	now      func() time.Time

	mu             sync.Mutex
	layouts        map[media.Key]Layout
	viewportHeight float64
	lastSwitch     time.Time
}

// NewTracker creates a tracker driving the given registry.
func NewTracker(cfg Config, reg *registry.Registry, viewportHeight float64, logger zerolog.Logger) *Tracker {
	if cfg.MinSwitchInterval <= 0 {
		cfg.MinSwitchInterval = DefaultConfig().MinSwitchInterval
	}
	return &Tracker{
		cfg:            cfg,
		registry:       reg,
		logger:         logger,
		now:            time.Now,
		layouts:        make(map[media.Key]Layout),
		viewportHeight: viewportHeight,
	}
}

// SetViewportHeight updates the viewport height after a rotation or layout
// change.
func (t *Tracker) SetViewportHeight(height float64) {
	t.mu.Lock()
	t.viewportHeight = height
	t.mu.Unlock()
}

// SetLayout records the latest geometry for key.
func (t *Tracker) SetLayout(key media.Key, layout Layout) {
	t.mu.Lock()
	t.layouts[key] = layout
	t.mu.Unlock()
}

// RemoveLayout forgets key's geometry. Called on card unmount.
func (t *Tracker) RemoveLayout(key media.Key) {
	t.mu.Lock()
	delete(t.layouts, key)
	t.mu.Unlock()
}

// NoteManualActivation resets the debounce clock after a user tap so the
// scroll algorithm does not immediately undo a manual choice.
func (t *Tracker) NoteManualActivation() {
	t.mu.Lock()
	t.lastSwitch = t.now()
	t.mu.Unlock()
}

type candidate struct {
	key    media.Key
	ratio  float64
	center float64
}

// OnScroll runs the autoplay decision for the given scroll offset. It is
// cheap enough to be called once per frame; the caller throttles frequency.
func (t *Tracker) OnScroll(offsetY float64) {
	t.mu.Lock()
	layouts := make(map[media.Key]Layout, len(t.layouts))
	for key, layout := range t.layouts {
		layouts[key] = layout
	}
	viewportHeight := t.viewportHeight
	t.mu.Unlock()

	if viewportHeight <= 0 {
		return
	}

	viewTop := offsetY
	viewBottom := offsetY + viewportHeight

	t.pauseOffscreenAudio(layouts, viewTop, viewBottom)

	active := t.registry.ActiveKey()

	// Hold rule: while the active item is still reasonably visible, no
	// challenger may take over, however visible it is. Audio holds down to
	// its own pause threshold, so a tapped audio card is not stolen from by
	// ambient video autoplay.
	if active != "" {
		if layout, ok := layouts[active]; ok {
			threshold := t.cfg.HoldThreshold
			if layout.Kind == media.KindAudio {
				threshold = t.cfg.AudioPauseThreshold
			}
			if visibleRatio(layout, viewTop, viewBottom) >= threshold {
				telemetry.SwitchesSuppressedTotal.WithLabelValues("hold").Inc()
				return
			}
		}
	}

	videos := collectVideoCandidates(layouts, viewTop, viewBottom)

	target := t.pickTarget(videos, viewTop, viewportHeight)

	if target == "" {
		best := 0.0
		if len(videos) > 0 {
			best = lo.MaxBy(videos, func(a, b candidate) bool { return a.ratio > b.ratio }).ratio
		}
		// Only the active video is paused here; playing audio answers to
		// the audio threshold alone.
		if active != "" && best < t.cfg.PauseThreshold && layouts[active].Kind == media.KindVideo {
			t.logger.Debug().Str("key", string(active)).Msg("active video scrolled out of view")
			t.registry.Deactivate(active)
		}
		return
	}

	if target == active {
		return
	}

	t.mu.Lock()
	now := t.now()
	if now.Sub(t.lastSwitch) < t.cfg.MinSwitchInterval {
		t.mu.Unlock()
		telemetry.SwitchesSuppressedTotal.WithLabelValues("debounce").Inc()
		return
	}
	t.lastSwitch = now
	t.mu.Unlock()

	t.logger.Debug().
		Str("from", string(active)).
		Str("to", string(target)).
		Msg("autoplay switch")

	t.registry.PauseAll()
	t.registry.Activate(target)
}

// pickTarget prefers the item whose center lies in the narrow center band
// and is closest to the viewport center; failing that, the single most
// visible item, but only above the switch-in threshold.
func (t *Tracker) pickTarget(videos []candidate, viewTop, viewportHeight float64) media.Key {
	if len(videos) == 0 {
		return ""
	}

	viewCenter := viewTop + viewportHeight/2
	halfBand := viewportHeight * t.cfg.CenterBand / 2

	banded := lo.Filter(videos, func(c candidate, _ int) bool {
		return math.Abs(c.center-viewCenter) <= halfBand
	})
	if len(banded) > 0 {
		best := lo.MinBy(banded, func(a, b candidate) bool {
			return math.Abs(a.center-viewCenter) < math.Abs(b.center-viewCenter)
		})
		return best.key
	}

	best := lo.MaxBy(videos, func(a, b candidate) bool { return a.ratio > b.ratio })
	if best.ratio >= t.cfg.SwitchInThreshold {
		return best.key
	}
	return ""
}

// pauseOffscreenAudio applies the one-threshold audio rule: a playing audio
// card scrolled below the threshold is paused.
func (t *Tracker) pauseOffscreenAudio(layouts map[media.Key]Layout, viewTop, viewBottom float64) {
	for key, layout := range layouts {
		if layout.Kind != media.KindAudio {
			continue
		}
		if visibleRatio(layout, viewTop, viewBottom) >= t.cfg.AudioPauseThreshold {
			continue
		}
		if t.registry.ActiveKey() == key {
			t.logger.Debug().Str("key", string(key)).Msg("pausing off-screen audio")
			t.registry.Deactivate(key)
		}
	}
}

func collectVideoCandidates(layouts map[media.Key]Layout, viewTop, viewBottom float64) []candidate {
	candidates := make([]candidate, 0, len(layouts))
	for key, layout := range layouts {
		if layout.Kind != media.KindVideo || !layout.Playable || layout.Height <= 0 {
			continue
		}
		candidates = append(candidates, candidate{
			key:    key,
			ratio:  visibleRatio(layout, viewTop, viewBottom),
			center: layout.Top + layout.Height/2,
		})
	}
	return candidates
}

// visibleRatio is the fraction of the item's height inside the viewport.
func visibleRatio(layout Layout, viewTop, viewBottom float64) float64 {
	if layout.Height <= 0 {
		return 0
	}
	top := math.Max(layout.Top, viewTop)
	bottom := math.Min(layout.Top+layout.Height, viewBottom)
	if bottom <= top {
		return 0
	}
	return (bottom - top) / layout.Height
}

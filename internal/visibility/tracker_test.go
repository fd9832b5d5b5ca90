/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package visibility

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/versefeed/internal/events"
	"github.com/friendsincode/versefeed/internal/media"
	"github.com/friendsincode/versefeed/internal/registry"
)

type nopHandle struct{}

func (nopHandle) Play() error          { return nil }
func (nopHandle) Pause() error         { return nil }
func (nopHandle) SetMuted(bool) error  { return nil }
func (nopHandle) Seek(int64) error     { return nil }
func (nopHandle) Status() media.Status { return media.Status{IsLoaded: true} }

// testClock lets tests move the tracker's debounce clock by hand.
type testClock struct {
	t time.Time
}

func (c *testClock) now() time.Time          { return c.t }
func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestTracker(t *testing.T) (*Tracker, *registry.Registry, *testClock) {
	t.Helper()
	reg := registry.New(nil, events.NewBus(), registry.DefaultOptions(), zerolog.Nop())
	t.Cleanup(reg.Close)

	tr := NewTracker(DefaultConfig(), reg, 800, zerolog.Nop())
	clock := &testClock{t: time.Unix(1_700_000_000, 0)}
	tr.now = clock.now
	return tr, reg, clock
}

func videoLayout(top, height float64) Layout {
	return Layout{Top: top, Height: height, Kind: media.KindVideo, Playable: true}
}

func TestScrollActivatesCenteredVideo(t *testing.T) {
	tr, reg, _ := newTestTracker(t)
	reg.Register("a", nopHandle{})
	tr.SetLayout("a", videoLayout(0, 800))

	tr.OnScroll(0)

	if reg.ActiveKey() != "a" {
		t.Fatalf("expected a active, got %q", reg.ActiveKey())
	}
}

func TestFullScrollScenario(t *testing.T) {
	// Two full-height videos with a 20px gap. Sweeping the offset must
	// activate the first, hold it through a partial scroll, then hand over.
	tr, reg, clock := newTestTracker(t)
	reg.Register("a", nopHandle{})
	reg.Register("b", nopHandle{})
	tr.SetLayout("a", videoLayout(0, 800))
	tr.SetLayout("b", videoLayout(820, 800))

	tr.OnScroll(0)
	if reg.ActiveKey() != "a" {
		t.Fatalf("offset 0: expected a, got %q", reg.ActiveKey())
	}

	// a is still 48.75% visible: the hold rule keeps it even though b is
	// approaching the center.
	clock.advance(time.Second)
	tr.OnScroll(410)
	if reg.ActiveKey() != "a" {
		t.Fatalf("offset 410: expected a held, got %q", reg.ActiveKey())
	}

	// a drops to 10% visible, b is centered and 87.5% visible.
	clock.advance(time.Second)
	tr.OnScroll(720)
	if reg.ActiveKey() != "b" {
		t.Fatalf("offset 720: expected b, got %q", reg.ActiveKey())
	}
}

func TestHoldRuleBlocksMoreVisibleChallenger(t *testing.T) {
	tr, reg, clock := newTestTracker(t)
	reg.Register("a", nopHandle{})
	reg.Register("b", nopHandle{})
	tr.SetLayout("a", videoLayout(0, 400))
	tr.SetLayout("b", videoLayout(420, 400))

	tr.OnScroll(0)
	if reg.ActiveKey() != "a" {
		t.Fatalf("expected a active, got %q", reg.ActiveKey())
	}

	// a keeps 50% visibility while b is fully visible and centered. The
	// hold rule still protects a.
	clock.advance(time.Second)
	tr.OnScroll(200)
	if reg.ActiveKey() != "a" {
		t.Fatalf("hold rule violated, active is %q", reg.ActiveKey())
	}
}

func TestDebounceSuppressesRapidSwitch(t *testing.T) {
	tr, reg, clock := newTestTracker(t)
	reg.Register("a", nopHandle{})
	reg.Register("b", nopHandle{})
	tr.SetLayout("a", videoLayout(0, 800))
	tr.SetLayout("b", videoLayout(820, 800))

	tr.OnScroll(0)
	clock.advance(time.Second)
	tr.OnScroll(720)
	if reg.ActiveKey() != "b" {
		t.Fatalf("expected b active, got %q", reg.ActiveKey())
	}

	// Fling back within the debounce window: b keeps playing.
	clock.advance(100 * time.Millisecond)
	tr.OnScroll(0)
	if reg.ActiveKey() != "b" {
		t.Fatalf("switch should have been debounced, active is %q", reg.ActiveKey())
	}

	// After the window elapses the same scroll position takes effect.
	clock.advance(time.Second)
	tr.OnScroll(0)
	if reg.ActiveKey() != "a" {
		t.Fatalf("expected a active after debounce window, got %q", reg.ActiveKey())
	}
}

func TestPauseWhenNothingVisibleEnough(t *testing.T) {
	tr, reg, clock := newTestTracker(t)
	reg.Register("a", nopHandle{})
	tr.SetLayout("a", videoLayout(0, 800))

	tr.OnScroll(0)
	if reg.ActiveKey() != "a" {
		t.Fatalf("expected a active, got %q", reg.ActiveKey())
	}

	// 5% visible: below both hold and pause thresholds.
	clock.advance(time.Second)
	tr.OnScroll(760)
	if reg.ActiveKey() != "" {
		t.Fatalf("expected playback paused, active is %q", reg.ActiveKey())
	}
}

func TestWeakChallengerDoesNotActivate(t *testing.T) {
	tr, reg, _ := newTestTracker(t)
	reg.Register("a", nopHandle{})
	// 12.5% visible at the bottom edge, center far outside the band.
	tr.SetLayout("a", videoLayout(700, 800))

	tr.OnScroll(0)

	if reg.ActiveKey() != "" {
		t.Fatalf("weak candidate must not autoplay, active is %q", reg.ActiveKey())
	}
}

func TestCenterBandPrefersClosestToCenter(t *testing.T) {
	tr, reg, _ := newTestTracker(t)
	reg.Register("near", nopHandle{})
	reg.Register("far", nopHandle{})
	// Centers at 350 and 480; viewport center is 400, band is +-120.
	tr.SetLayout("near", videoLayout(150, 400))
	tr.SetLayout("far", videoLayout(280, 400))

	tr.OnScroll(0)

	if reg.ActiveKey() != "near" {
		t.Fatalf("expected the center-closest item, got %q", reg.ActiveKey())
	}
}

func TestAudioNeverAutoplaysFromScroll(t *testing.T) {
	tr, reg, _ := newTestTracker(t)
	reg.Register("song", nopHandle{})
	tr.SetLayout("song", Layout{Top: 300, Height: 140, Kind: media.KindAudio, Playable: true})

	tr.OnScroll(0)

	if reg.ActiveKey() != "" {
		t.Fatalf("audio must only start on tap, active is %q", reg.ActiveKey())
	}
}

func TestPlayingAudioPausesWhenScrolledAway(t *testing.T) {
	tr, reg, clock := newTestTracker(t)
	reg.Register("song", nopHandle{})
	tr.SetLayout("song", Layout{Top: 0, Height: 140, Kind: media.KindAudio, Playable: true})

	// User tapped the audio card.
	reg.Activate("song")
	tr.NoteManualActivation()

	// Fully visible: keeps playing.
	tr.OnScroll(0)
	if reg.ActiveKey() != "song" {
		t.Fatalf("visible audio should keep playing, active is %q", reg.ActiveKey())
	}

	// Scrolled entirely above the viewport: below the audio threshold.
	clock.advance(time.Second)
	tr.OnScroll(200)
	if reg.ActiveKey() != "" {
		t.Fatalf("off-screen audio should pause, active is %q", reg.ActiveKey())
	}
}

func TestPlayingAudioHoldsAgainstVideoCandidate(t *testing.T) {
	tr, reg, clock := newTestTracker(t)
	reg.Register("song", nopHandle{})
	reg.Register("vid", nopHandle{})
	tr.SetLayout("song", Layout{Top: 0, Height: 140, Kind: media.KindAudio, Playable: true})
	// Video centered in the band, a perfect autoplay candidate.
	tr.SetLayout("vid", videoLayout(150, 600))

	// User taps the audio card.
	reg.Activate("song")
	tr.NoteManualActivation()

	// Long past the debounce window, with no scroll movement: the fully
	// visible audio keeps its slot.
	clock.advance(2 * time.Second)
	tr.OnScroll(0)
	if reg.ActiveKey() != "song" {
		t.Fatalf("visible tapped audio must hold against video autoplay, active is %q", reg.ActiveKey())
	}

	// Only once the audio drops below its threshold may the video take over.
	clock.advance(2 * time.Second)
	tr.OnScroll(110)
	if reg.ActiveKey() != "vid" {
		t.Fatalf("expected video takeover after audio scrolled away, active is %q", reg.ActiveKey())
	}
}

func TestUnplayableVideoNeverAutoplays(t *testing.T) {
	tr, reg, _ := newTestTracker(t)
	reg.Register("broken", nopHandle{})
	tr.SetLayout("broken", Layout{Top: 0, Height: 800, Kind: media.KindVideo, Playable: false})

	tr.OnScroll(0)

	if reg.ActiveKey() != "" {
		t.Fatalf("unplayable item must not autoplay, active is %q", reg.ActiveKey())
	}
}

func TestRemovedLayoutIsForgotten(t *testing.T) {
	tr, reg, _ := newTestTracker(t)
	reg.Register("a", nopHandle{})
	tr.SetLayout("a", videoLayout(0, 800))
	tr.RemoveLayout("a")

	tr.OnScroll(0)

	if reg.ActiveKey() != "" {
		t.Fatalf("unmounted card must not be a candidate, active is %q", reg.ActiveKey())
	}
}

func TestManualActivationResetsDebounce(t *testing.T) {
	tr, reg, clock := newTestTracker(t)
	reg.Register("a", nopHandle{})
	reg.Register("b", nopHandle{})
	tr.SetLayout("a", videoLayout(0, 800))
	tr.SetLayout("b", videoLayout(820, 800))

	clock.advance(time.Second)
	// User taps b while a's slot is on screen.
	reg.Activate("b")
	tr.NoteManualActivation()

	// An immediate scroll frame that would promote a is debounced, so the
	// tap is not undone.
	tr.OnScroll(0)
	if reg.ActiveKey() != "b" {
		t.Fatalf("manual choice should survive the next frame, active is %q", reg.ActiveKey())
	}
}

func TestZeroViewportIsIgnored(t *testing.T) {
	tr, reg, _ := newTestTracker(t)
	reg.Register("a", nopHandle{})
	tr.SetLayout("a", videoLayout(0, 800))
	tr.SetViewportHeight(0)

	tr.OnScroll(0)

	if reg.ActiveKey() != "" {
		t.Fatalf("no decisions before layout is known, active is %q", reg.ActiveKey())
	}
}

func TestVisibleRatio(t *testing.T) {
	tests := []struct {
		name               string
		layout             Layout
		viewTop, viewBot   float64
		want               float64
	}{
		{"fully visible", videoLayout(100, 400), 0, 800, 1.0},
		{"half above", videoLayout(-200, 400), 0, 800, 0.5},
		{"half below", videoLayout(600, 400), 0, 800, 0.5},
		{"fully above", videoLayout(-500, 400), 0, 800, 0},
		{"fully below", videoLayout(900, 400), 0, 800, 0},
		{"zero height", videoLayout(100, 0), 0, 800, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := visibleRatio(tt.layout, tt.viewTop, tt.viewBot); got != tt.want {
				t.Fatalf("visibleRatio = %v, want %v", got, tt.want)
			}
		})
	}
}

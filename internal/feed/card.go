/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package feed binds content items to the coordination engine: each card
// wires its item and player handle into the registry and visibility tracker
// and relays user gestures instead of driving its player directly.
package feed

import (
	"github.com/rs/zerolog"

	"github.com/friendsincode/versefeed/internal/events"
	"github.com/friendsincode/versefeed/internal/media"
	"github.com/friendsincode/versefeed/internal/registry"
	"github.com/friendsincode/versefeed/internal/visibility"
)

// Card is the registration glue for one rendered content item.
type Card struct {
	item    media.Item
	handle  media.Handle
	reg     *registry.Registry
	tracker *visibility.Tracker
	bus     *events.Bus
	logger  zerolog.Logger
	mounted bool
}

// NewCard creates a card for item backed by handle.
func NewCard(item media.Item, handle media.Handle, reg *registry.Registry, tracker *visibility.Tracker, bus *events.Bus, logger zerolog.Logger) *Card {
	return &Card{
		item:    item,
		handle:  handle,
		reg:     reg,
		tracker: tracker,
		bus:     bus,
		logger:  logger.With().Str("key", string(item.MediaKey)).Logger(),
	}
}

// Item returns the card's content item.
func (c *Card) Item() media.Item {
	return c.item
}

// Key returns the card's media key.
func (c *Card) Key() media.Key {
	return c.item.MediaKey
}

// Mount registers the card's handle with the registry. If the key is still
// logically active, registration resumes playback.
func (c *Card) Mount() {
	if c.mounted {
		return
	}
	c.mounted = true
	c.reg.Register(c.item.MediaKey, c.handle)
}

// SetLayout reports the card's on-screen geometry to the tracker.
func (c *Card) SetLayout(top, height float64) {
	c.tracker.SetLayout(c.item.MediaKey, visibility.Layout{
		Top:      top,
		Height:   height,
		Kind:     c.item.PlayableKind(),
		Playable: c.item.Playable(),
	})
}

// Unmount removes the card's layout and handle. Pending async playback
// calls against the old handle resolve as no-ops.
func (c *Card) Unmount() {
	if !c.mounted {
		return
	}
	c.mounted = false
	c.tracker.RemoveLayout(c.item.MediaKey)
	c.reg.Unregister(c.item.MediaKey)
}

// Tap handles an explicit play/pause gesture. Manual intent always
// overrides automatic visibility decisions, and it resets the autoplay
// debounce so the next scroll tick cannot immediately undo it.
func (c *Card) Tap() {
	key := c.item.MediaKey
	if c.reg.ActiveKey() == key {
		c.reg.Deactivate(key)
	} else {
		c.reg.Activate(key)
	}
	c.tracker.NoteManualActivation()
}

// ToggleMute flips the card's requested mute. The global mute override
// still wins while enabled.
func (c *Card) ToggleMute() {
	state := c.reg.StateOf(c.item.MediaKey)
	c.reg.SetMuted(c.item.MediaKey, !state.Muted)
}

// SetOverlayVisible records whether the card's control overlay is showing.
func (c *Card) SetOverlayVisible(visible bool) {
	c.reg.SetOverlayVisible(c.item.MediaKey, visible)
}

// Like dispatches a like interaction to the external interaction subsystem.
func (c *Card) Like() {
	c.interact(events.EventCardLiked, nil)
}

// Comment dispatches a comment interaction.
func (c *Card) Comment(body string) {
	c.interact(events.EventCardCommented, events.Payload{"body": body})
}

// Download dispatches a download request to the download subsystem.
func (c *Card) Download() {
	c.interact(events.EventCardDownloaded, nil)
}

func (c *Card) interact(eventType events.EventType, extra events.Payload) {
	if c.bus == nil {
		return
	}
	payload := events.Payload{
		"key":        string(c.item.MediaKey),
		"content_id": c.item.ID,
	}
	for k, v := range extra {
		payload[k] = v
	}
	c.bus.Publish(eventType, payload)
}

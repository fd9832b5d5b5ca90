/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package media defines the shared types of the playback coordination
// engine: media keys, player handles, and feed items.
package media

import (
	"errors"
	"net/url"
	"time"
)

// Key identifies one playable slot of content within one screen/section
// context. The same catalog item rendered in two sections carries two
// distinct keys with independent playback state.
type Key string

// Kind enumerates feed content kinds.
type Kind string

const (
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
	KindEbook Kind = "ebook"
	KindHymn  Kind = "hymn"
)

// ErrNotReady is returned by a handle whose underlying player has not
// finished loading its media yet. Callers are expected to retry.
var ErrNotReady = errors.New("player not loaded")

// Status is the latest self-report from a native player. It reflects what
// the player last said about itself, not whether the registry's most recent
// command succeeded.
type Status struct {
	IsLoaded   bool
	IsPlaying  bool
	PositionMS int64
	DurationMS int64
}

// Handle is the capability surface a card contributes for its key. The
// registry holds a non-owning reference; the card that registered the
// handle owns its lifetime and removes it on unmount.
type Handle interface {
	Play() error
	Pause() error
	SetMuted(muted bool) error
	Seek(positionMS int64) error
	Status() Status
}

// Item is one entry of the content feed.
type Item struct {
	ID        string    `yaml:"id"`
	MediaKey  Key       `yaml:"media_key"`
	URL       string    `yaml:"url"`
	Kind      Kind      `yaml:"kind"`
	Title     string    `yaml:"title"`
	Artist    string    `yaml:"artist"`
	CreatedAt time.Time `yaml:"created_at"`
}

// Playable reports whether the item can ever become a playback candidate.
// Items with an empty or unparseable URL are rendered but never autoplay.
func (i Item) Playable() bool {
	if i.Kind != KindVideo && i.Kind != KindAudio && i.Kind != KindHymn {
		return false
	}
	if i.URL == "" {
		return false
	}
	u, err := url.Parse(i.URL)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}

// PlayableKind maps hymns onto audio playback rules. Visibility decisions
// only distinguish video from audio.
func (i Item) PlayableKind() Kind {
	if i.Kind == KindHymn {
		return KindAudio
	}
	return i.Kind
}

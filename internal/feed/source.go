/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package feed

import (
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/friendsincode/versefeed/internal/events"
	"github.com/friendsincode/versefeed/internal/media"
)

// Source holds the ordered list of content items for one feed screen. The
// coordination engine treats it as read-only input; replacing the list
// emits a feed update so cards can re-derive their layouts.
type Source struct {
	bus *events.Bus

	mu    sync.RWMutex
	items []media.Item
}

// NewSource creates a source over items.
func NewSource(items []media.Item, bus *events.Bus) *Source {
	return &Source{bus: bus, items: items}
}

// Items returns a copy of the current item list.
func (s *Source) Items() []media.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]media.Item, len(s.items))
	copy(out, s.items)
	return out
}

// Replace swaps the item list and notifies listeners.
func (s *Source) Replace(items []media.Item) {
	s.mu.Lock()
	s.items = items
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.Publish(events.EventFeedUpdated, events.Payload{"count": len(items)})
	}
}

type manifest struct {
	Items []media.Item `yaml:"items"`
}

// LoadManifest reads a YAML feed manifest. Items without a media key get a
// generated feed-scoped key so two sections showing the same content keep
// independent playback state.
func LoadManifest(path string) ([]media.Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	for i := range m.Items {
		item := &m.Items[i]
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		if item.MediaKey == "" {
			item.MediaKey = media.Key(fmt.Sprintf("feed:%s", item.ID))
		}
		switch item.Kind {
		case media.KindVideo, media.KindAudio, media.KindEbook, media.KindHymn:
		case "":
			return nil, fmt.Errorf("manifest item %q missing kind", item.ID)
		default:
			return nil, fmt.Errorf("manifest item %q has unknown kind %q", item.ID, item.Kind)
		}
	}

	return m.Items, nil
}

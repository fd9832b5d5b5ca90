/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package catalog persists the content library (sermons, music, ebooks,
// hymns) that feed screens draw their ordered item lists from.
package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/friendsincode/versefeed/internal/media"
)

// Item is one catalog record.
type Item struct {
	ID         string `gorm:"primaryKey"`
	MediaKey   string `gorm:"uniqueIndex"`
	Title      string
	Artist     string
	Kind       string
	URL        string
	DurationMS int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Service provides catalog access.
type Service struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// New creates a catalog service.
func New(db *gorm.DB, logger zerolog.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// Migrate creates or updates the catalog schema.
func (s *Service) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&Item{}); err != nil {
		return fmt.Errorf("migrate catalog: %w", err)
	}
	return nil
}

// List returns the feed's ordered item list, newest first.
func (s *Service) List(ctx context.Context) ([]media.Item, error) {
	var records []Item
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list catalog items: %w", err)
	}

	items := make([]media.Item, 0, len(records))
	for _, rec := range records {
		items = append(items, media.Item{
			ID:        rec.ID,
			MediaKey:  media.Key(rec.MediaKey),
			URL:       rec.URL,
			Kind:      media.Kind(rec.Kind),
			Title:     rec.Title,
			Artist:    rec.Artist,
			CreatedAt: rec.CreatedAt,
		})
	}
	return items, nil
}

// Import upserts items into the catalog, keyed by media key.
func (s *Service) Import(ctx context.Context, items []media.Item) (int, error) {
	imported := 0
	for _, item := range items {
		rec := Item{
			ID:       item.ID,
			MediaKey: string(item.MediaKey),
			Title:    item.Title,
			Artist:   item.Artist,
			Kind:     string(item.Kind),
			URL:      item.URL,
		}
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if rec.MediaKey == "" {
			rec.MediaKey = fmt.Sprintf("feed:%s", rec.ID)
		}
		if !item.CreatedAt.IsZero() {
			rec.CreatedAt = item.CreatedAt
		}

		err := s.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "media_key"}},
				UpdateAll: true,
			}).
			Create(&rec).Error
		if err != nil {
			s.logger.Warn().Err(err).Str("media_key", rec.MediaKey).Msg("failed to import catalog item")
			continue
		}
		imported++
	}
	return imported, nil
}

// Count returns the number of catalog records.
func (s *Service) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&Item{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count catalog items: %w", err)
	}
	return count, nil
}

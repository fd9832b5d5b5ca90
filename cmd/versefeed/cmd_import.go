package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/friendsincode/versefeed/internal/catalog"
	"github.com/friendsincode/versefeed/internal/db"
	"github.com/friendsincode/versefeed/internal/feed"
)

var importManifest string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a feed manifest into the content catalog",
	RunE:  runImport,
}

func init() {
	importCmd.Flags().StringVar(&importManifest, "manifest", "", "YAML feed manifest to import")
	_ = importCmd.MarkFlagRequired("manifest")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	items, err := feed.LoadManifest(importManifest)
	if err != nil {
		return err
	}

	database, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if err := db.Close(database); err != nil {
			logger.Error().Err(err).Msg("failed to close database")
		}
	}()

	catalogSvc := catalog.New(database, logger)
	ctx := context.Background()
	if err := catalogSvc.Migrate(ctx); err != nil {
		return err
	}

	imported, err := catalogSvc.Import(ctx, items)
	if err != nil {
		return err
	}

	total, err := catalogSvc.Count(ctx)
	if err != nil {
		return err
	}

	logger.Info().Int("imported", imported).Int64("total", total).Msg("manifest imported")
	return nil
}

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/friendsincode/versefeed/internal/events"
	"github.com/friendsincode/versefeed/internal/feed"
	"github.com/friendsincode/versefeed/internal/media"
	"github.com/friendsincode/versefeed/internal/player"
	"github.com/friendsincode/versefeed/internal/registry"
	"github.com/friendsincode/versefeed/internal/session"
	"github.com/friendsincode/versefeed/internal/visibility"
)

var (
	simulateManifest string
	simulateStep     float64
	simulateInterval time.Duration
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a scripted feed scroll session",
	Long:  "Mount cards for a feed manifest, sweep the scroll offset, and log every autoplay decision the engine makes",
	RunE:  runSimulate,
}

func init() {
	simulateCmd.Flags().StringVar(&simulateManifest, "manifest", "", "YAML feed manifest (built-in sample feed if empty)")
	simulateCmd.Flags().Float64Var(&simulateStep, "step", 120, "scroll step in pixels per tick")
	simulateCmd.Flags().DurationVar(&simulateInterval, "interval", 250*time.Millisecond, "simulated time between scroll ticks")
	rootCmd.AddCommand(simulateCmd)
}

func cardHeight(kind media.Kind) float64 {
	switch kind {
	case media.KindVideo:
		return 560
	case media.KindAudio, media.KindHymn:
		return 140
	default:
		return 420
	}
}

func sampleItems() []media.Item {
	return []media.Item{
		{ID: "s1", MediaKey: "feed:s1", URL: "https://cdn.example.com/sermons/grace.mp4", Kind: media.KindVideo, Title: "Sunday Sermon: Grace"},
		{ID: "m1", MediaKey: "feed:m1", URL: "https://cdn.example.com/music/psalm23.mp3", Kind: media.KindAudio, Title: "Psalm 23", Artist: "Choir"},
		{ID: "s2", MediaKey: "feed:s2", URL: "https://cdn.example.com/sermons/hope.mp4", Kind: media.KindVideo, Title: "Midweek: Hope"},
		{ID: "b1", MediaKey: "feed:b1", URL: "", Kind: media.KindEbook, Title: "Daily Devotional"},
		{ID: "h1", MediaKey: "feed:h1", URL: "https://cdn.example.com/hymns/amazing.mp3", Kind: media.KindHymn, Title: "Amazing Grace"},
		{ID: "s3", MediaKey: "feed:s3", URL: "https://cdn.example.com/sermons/faith.mp4", Kind: media.KindVideo, Title: "Evening: Faith"},
	}
}

func runSimulate(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	items := sampleItems()
	if simulateManifest != "" {
		loaded, err := feed.LoadManifest(simulateManifest)
		if err != nil {
			return err
		}
		items = loaded
	}

	bus := events.NewBus()
	sessionMgr := session.NewManager(session.NewFileStore(cfg.SessionStatePath), logger)
	reg := registry.New(sessionMgr, bus, registry.Options{
		MaxStartAttempts: cfg.MaxStartAttempts,
		RetryInterval:    cfg.StartRetryInterval,
	}, logger)
	defer reg.Close()

	tracker := visibility.NewTracker(visibility.Config{
		HoldThreshold:       cfg.HoldThreshold,
		SwitchInThreshold:   cfg.SwitchInThreshold,
		PauseThreshold:      cfg.PauseThreshold,
		AudioPauseThreshold: cfg.AudioPauseThreshold,
		CenterBand:          cfg.CenterBand,
		MinSwitchInterval:   cfg.MinSwitchInterval,
	}, reg, cfg.ViewportHeight, logger)

	source := feed.NewSource(items, bus)

	type mountedCard struct {
		card    *feed.Card
		simP    *player.Simulated
		key     media.Key
		topEdge float64
		height  float64
	}

	cards := make([]mountedCard, 0, len(items))
	top := 0.0
	for i, item := range source.Items() {
		height := cardHeight(item.Kind)
		simP := player.NewSimulated(item.URL, 90_000, time.Duration(100+50*i)*time.Millisecond)
		card := feed.NewCard(item, simP, reg, tracker, bus, logger)
		card.Mount()
		card.SetLayout(top, height)
		cards = append(cards, mountedCard{card: card, simP: simP, key: item.MediaKey, topEdge: top, height: height})
		top += height + 24
	}
	contentHeight := top

	logger.Info().
		Int("cards", len(cards)).
		Float64("content_height", contentHeight).
		Float64("viewport", cfg.ViewportHeight).
		Msg("simulation starting")

	maxOffset := contentHeight - cfg.ViewportHeight
	if maxOffset < 0 {
		maxOffset = 0
	}

	lastActive := media.Key("")
	for offset := 0.0; offset <= maxOffset; offset += simulateStep {
		tracker.OnScroll(offset)

		for _, mc := range cards {
			mc.simP.Advance(simulateInterval)
			reg.HandleStatus(mc.key, mc.simP.Status())
		}

		if active := reg.ActiveKey(); active != lastActive {
			fmt.Printf("offset %6.0f  active: %s\n", offset, activeLabel(active))
			lastActive = active
		}

		time.Sleep(simulateInterval)
	}

	reg.PauseAll()
	for _, mc := range cards {
		mc.card.Unmount()
	}

	logger.Info().Msg("simulation finished")
	return nil
}

func activeLabel(key media.Key) string {
	if key == "" {
		return "(none)"
	}
	return string(key)
}

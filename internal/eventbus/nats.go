/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package eventbus bridges in-process playback events onto NATS so the
// interaction, comment, and download subsystems can consume them out of
// process.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/friendsincode/versefeed/internal/events"
)

// Bridge republishes internal bus events to NATS subjects.
type Bridge struct {
	conn          *nats.Conn
	logger        zerolog.Logger
	subjectPrefix string
	wg            sync.WaitGroup
}

// NewBridge connects to NATS. Publishing is fire-and-forget; the bridge
// reconnects indefinitely.
func NewBridge(url, subjectPrefix string, logger zerolog.Logger) (*Bridge, error) {
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	return &Bridge{
		conn:          conn,
		logger:        logger,
		subjectPrefix: subjectPrefix,
	}, nil
}

// Forward subscribes to the given event types on bus and republishes each
// payload as JSON on "<prefix>.<type>" until ctx is cancelled.
func (b *Bridge) Forward(ctx context.Context, bus *events.Bus, types ...events.EventType) {
	for _, eventType := range types {
		b.wg.Add(1)
		go b.forwardType(ctx, bus, eventType)
	}
}

func (b *Bridge) forwardType(ctx context.Context, bus *events.Bus, eventType events.EventType) {
	defer b.wg.Done()

	sub := bus.Subscribe(eventType)
	defer bus.Unsubscribe(eventType, sub)

	subject := fmt.Sprintf("%s.%s", b.subjectPrefix, eventType)

	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-sub:
			if !ok {
				return
			}
			data, err := json.Marshal(payload)
			if err != nil {
				b.logger.Warn().Err(err).Str("subject", subject).Msg("failed to encode event")
				continue
			}
			if err := b.conn.Publish(subject, data); err != nil {
				b.logger.Warn().Err(err).Str("subject", subject).Msg("failed to publish event")
			}
		}
	}
}

// Close drains outstanding forwards and closes the connection.
func (b *Bridge) Close() {
	b.wg.Wait()
	b.conn.Close()
}

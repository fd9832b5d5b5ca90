/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisStateKey = "versefeed:session:audio"

// RedisStore persists session state in Redis, letting the same account
// resume its mute/volume preferences across devices.
type RedisStore struct {
	client *redis.Client
}

// RedisConfig contains Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisStore creates a Redis-backed session store and verifies the
// connection.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// Load reads the persisted state.
func (s *RedisStore) Load() (AudioState, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	data, err := s.client.Get(ctx, redisStateKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return AudioState{}, ErrNotFound
		}
		return AudioState{}, fmt.Errorf("read session state: %w", err)
	}

	var state AudioState
	if err := json.Unmarshal(data, &state); err != nil {
		return AudioState{}, fmt.Errorf("decode session state: %w", err)
	}
	return state, nil
}

// Save writes the state with no expiry.
func (s *RedisStore) Save(state AudioState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session state: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.client.Set(ctx, redisStateKey, data, 0).Err(); err != nil {
		return fmt.Errorf("write session state: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

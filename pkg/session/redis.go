// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis defaults.
const (
	DefaultKeyPrefix    = "rpauth:session"
	DefaultTTL          = 10 * time.Minute
	DefaultDialTimeout  = 5 * time.Second
	DefaultReadTimeout  = 3 * time.Second
	DefaultWriteTimeout = 3 * time.Second
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int

	// KeyPrefix namespaces session hashes: "<KeyPrefix>:<session id>".
	KeyPrefix string

	// TTL is refreshed on every write. Defaults to DefaultTTL.
	TTL time.Duration

	// Timeouts (defaults: Dial=5s, Read=3s, Write=3s).
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// RedisProvider stores each session as a Redis hash with a sliding TTL.
type RedisProvider struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
}

// NewRedisProvider connects to Redis and verifies the connection.
func NewRedisProvider(ctx context.Context, cfg RedisConfig) (*RedisProvider, error) {
	if cfg.Addr == "" {
		return nil, errors.New("invalid redis configuration: address is required")
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisProviderWithClient(client, cfg.KeyPrefix, cfg.TTL), nil
}

// NewRedisProviderWithClient creates a RedisProvider with a pre-configured client.
// This is useful for testing with miniredis.
func NewRedisProviderWithClient(client redis.UniversalClient, keyPrefix string, ttl time.Duration) *RedisProvider {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisProvider{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}
}

// Session returns the store for id. No Redis call is made until it is used.
func (p *RedisProvider) Session(id string) (Store, error) {
	if id == "" {
		return nil, ErrInvalidSessionID
	}
	return &redisStore{
		client: p.client,
		key:    fmt.Sprintf("%s:%s", p.keyPrefix, id),
		ttl:    p.ttl,
	}, nil
}

// Ping checks Redis connectivity (health check).
func (p *RedisProvider) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Close closes the Redis client connection.
func (p *RedisProvider) Close() error {
	return p.client.Close()
}

type redisStore struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

func (s *redisStore) Get(ctx context.Context, field string) (string, bool, error) {
	v, err := s.client.HGet(ctx, s.key, field).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get session value: %w", err)
	}
	return v, true, nil
}

func (s *redisStore) Set(ctx context.Context, field, value string) error {
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.key, field, value)
	pipe.Expire(ctx, s.key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to set session value: %w", err)
	}
	return nil
}

func (s *redisStore) Delete(ctx context.Context, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	if err := s.client.HDel(ctx, s.key, fields...).Err(); err != nil {
		return fmt.Errorf("failed to delete session values: %w", err)
	}
	return nil
}

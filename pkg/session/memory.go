// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for a single session.
// It is safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	values  map[string]string
	now     func() time.Time
	updated time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return newMemoryStore(time.Now)
}

func newMemoryStore(now func() time.Time) *MemoryStore {
	return &MemoryStore{values: make(map[string]string), now: now, updated: now()}
}

// Get returns the value stored under key.
func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

// Set stores value under key, replacing any previous value.
func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	s.updated = s.now()
	return nil
}

// Delete removes keys; absent keys are ignored.
func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.values, k)
	}
	s.updated = s.now()
	return nil
}

// Len returns the number of stored keys.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

func (s *MemoryStore) expired(now time.Time, ttl time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return now.Sub(s.updated) >= ttl
}

// MemoryProvider keeps one MemoryStore per session ID in process memory.
// Like the Redis backend, a session expires ttl after its last write.
type MemoryProvider struct {
	mu        sync.Mutex
	sessions  map[string]*MemoryStore
	ttl       time.Duration
	now       func() time.Time
	lastSweep time.Time
}

// MemoryOption configures a MemoryProvider.
type MemoryOption func(*MemoryProvider)

// WithMemoryTTL sets how long a session lives after its last write.
// Non-positive values keep DefaultTTL.
func WithMemoryTTL(ttl time.Duration) MemoryOption {
	return func(p *MemoryProvider) {
		if ttl > 0 {
			p.ttl = ttl
		}
	}
}

func withClock(now func() time.Time) MemoryOption {
	return func(p *MemoryProvider) {
		p.now = now
	}
}

// NewMemoryProvider creates an empty MemoryProvider.
func NewMemoryProvider(opts ...MemoryOption) *MemoryProvider {
	p := &MemoryProvider{
		sessions: make(map[string]*MemoryStore),
		ttl:      DefaultTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.lastSweep = p.now()
	return p
}

// Session returns the store for id, creating it on first use or after expiry.
func (p *MemoryProvider) Session(id string) (Store, error) {
	if id == "" {
		return nil, ErrInvalidSessionID
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	p.sweepLocked(now)

	s, ok := p.sessions[id]
	if !ok || s.expired(now, p.ttl) {
		s = newMemoryStore(p.now)
		p.sessions[id] = s
	}
	return s, nil
}

// Len returns the number of sessions currently held, expired or not.
func (p *MemoryProvider) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

// sweepLocked drops expired sessions at most once per ttl. p.mu must be held.
func (p *MemoryProvider) sweepLocked(now time.Time) {
	if now.Sub(p.lastSweep) < p.ttl {
		return
	}
	p.lastSweep = now
	for id, s := range p.sessions {
		if s.expired(now, p.ttl) {
			delete(p.sessions, id)
		}
	}
}

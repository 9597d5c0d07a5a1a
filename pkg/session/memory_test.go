// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	s := NewMemoryStore()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "a", "1"))
	require.NoError(t, s.Set(ctx, "b", ""))
	require.NoError(t, s.Set(ctx, "a", "2"))

	v, ok, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2", v)

	v, ok, err = s.Get(ctx, "b")
	require.NoError(t, err)
	assert.True(t, ok, "empty values are still present")
	assert.Empty(t, v)

	require.NoError(t, s.Delete(ctx, "a", "b", "never-set"))
	require.NoError(t, s.Delete(ctx, "a"))
	assert.Zero(t, s.Len())
}

func TestMemoryStore_Concurrent(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	s := NewMemoryStore()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i)
			assert.NoError(t, s.Set(ctx, key, key))
			_, _, err := s.Get(ctx, key)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, s.Len())
}

func TestMemoryProvider(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	p := NewMemoryProvider()

	_, err := p.Session("")
	require.ErrorIs(t, err, ErrInvalidSessionID)

	first, err := p.Session("one")
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, "oauth_state", "abc"))

	again, err := p.Session("one")
	require.NoError(t, err)
	v, ok, err := again.Get(ctx, "oauth_state")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc", v)

	other, err := p.Session("two")
	require.NoError(t, err)
	_, ok, err = other.Get(ctx, "oauth_state")
	require.NoError(t, err)
	assert.False(t, ok, "sessions are isolated")
}

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemoryProvider_Expiry(t *testing.T) {
	t.Parallel()

	const ttl = time.Minute

	tests := []struct {
		name      string
		steps     []time.Duration
		touch     bool
		wantFound bool
	}{
		{name: "fresh session is kept", steps: []time.Duration{30 * time.Second}, wantFound: true},
		{name: "session expires after ttl", steps: []time.Duration{ttl}, wantFound: false},
		{name: "write extends lifetime", steps: []time.Duration{40 * time.Second, 40 * time.Second}, touch: true, wantFound: true},
		{name: "reads do not extend lifetime", steps: []time.Duration{40 * time.Second, 40 * time.Second}, wantFound: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := t.Context()
			clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
			p := NewMemoryProvider(WithMemoryTTL(ttl), withClock(clock.Now))

			s, err := p.Session("a")
			require.NoError(t, err)
			require.NoError(t, s.Set(ctx, "oauth_state", "abc"))

			for i, step := range tt.steps {
				clock.Advance(step)
				if i == len(tt.steps)-1 {
					break
				}
				current, err := p.Session("a")
				require.NoError(t, err)
				if tt.touch {
					require.NoError(t, current.Set(ctx, "oauth_state", "abc"))
				} else {
					_, _, err = current.Get(ctx, "oauth_state")
					require.NoError(t, err)
				}
			}

			got, err := p.Session("a")
			require.NoError(t, err)
			_, ok, err := got.Get(ctx, "oauth_state")
			require.NoError(t, err)
			assert.Equal(t, tt.wantFound, ok)
		})
	}
}

func TestMemoryProvider_SweepsExpiredSessions(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	p := NewMemoryProvider(WithMemoryTTL(time.Minute), withClock(clock.Now))

	for i := range 5 {
		s, err := p.Session(fmt.Sprintf("abandoned-%d", i))
		require.NoError(t, err)
		require.NoError(t, s.Set(ctx, "oauth_state", "x"))
	}
	require.Equal(t, 5, p.Len())

	clock.Advance(2 * time.Minute)

	s, err := p.Session("new")
	require.NoError(t, err)
	assert.Zero(t, s.(*MemoryStore).Len())
	assert.Equal(t, 1, p.Len(), "expired sessions are dropped")
}

func TestWithMemoryTTL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ttl  time.Duration
		want time.Duration
	}{
		{name: "positive", ttl: time.Minute, want: time.Minute},
		{name: "zero keeps default", ttl: 0, want: DefaultTTL},
		{name: "negative keeps default", ttl: -time.Second, want: DefaultTTL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, NewMemoryProvider(WithMemoryTTL(tt.ttl)).ttl)
		})
	}
}

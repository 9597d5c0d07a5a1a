// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package session provides the key/value stores that hold per-browser
// authorization state between the redirect to the provider and the callback.
package session

import (
	"context"
	"errors"
)

// ErrInvalidSessionID is returned when a provider is asked for an empty session ID.
var ErrInvalidSessionID = errors.New("session ID must not be empty")

// Store is a string key/value store scoped to a single browser session.
// Get reports whether the key was present. Delete ignores missing keys.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// Provider hands out the Store for a session ID.
type Provider interface {
	Session(id string) (Store, error)
}

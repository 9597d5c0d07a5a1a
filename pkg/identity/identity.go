// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package identity maps provider-specific user-info payloads onto the
// canonical identity used by the relying party.
//
// Normalization is pure: it performs no I/O and returns the same Identity for
// the same input. Providers disagree on where they put the email address and
// how they express authorization, so every attribute is resolved by scanning
// an ordered list of candidate fields, top-level first and then inside a
// nested "claims" object.
package identity

import (
	"encoding/json"
	"fmt"
)

// Identity is the canonical projection of a user-info payload.
type Identity struct {
	// Email is lower-cased and trimmed. Always non-empty.
	Email string

	// PrivilegeLevel is nil when the payload carries no recognizable level.
	PrivilegeLevel *int

	// Role is lower-cased and trimmed; empty when absent.
	Role string

	// Raw is the unmodified payload the identity was derived from.
	Raw map[string]any
}

// HasPrivilegeLevel reports whether a privilege level was resolved.
func (i *Identity) HasPrivilegeLevel() bool {
	return i != nil && i.PrivilegeLevel != nil
}

// String returns a compact representation without the raw payload.
func (i *Identity) String() string {
	if i == nil {
		return "<nil>"
	}
	level := "none"
	if i.PrivilegeLevel != nil {
		level = fmt.Sprintf("%d", *i.PrivilegeLevel)
	}
	return fmt.Sprintf("Identity{Email:%q, PrivilegeLevel:%s, Role:%q}", i.Email, level, i.Role)
}

// MarshalJSON renders the identity with snake_case keys; absent attributes are null.
func (i *Identity) MarshalJSON() ([]byte, error) {
	if i == nil {
		return []byte("null"), nil
	}

	var role *string
	if i.Role != "" {
		role = &i.Role
	}

	return json.Marshal(&struct {
		Email          string         `json:"email"`
		PrivilegeLevel *int           `json:"privilege_level"`
		Role           *string        `json:"role"`
		Raw            map[string]any `json:"raw"`
	}{
		Email:          i.Email,
		PrivilegeLevel: i.PrivilegeLevel,
		Role:           role,
		Raw:            i.Raw,
	})
}

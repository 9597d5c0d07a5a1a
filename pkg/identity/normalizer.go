// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	autherrors "github.com/stacklok/rpauth/pkg/errors"
)

// claimsKey is the nested object some providers put their claims under.
const claimsKey = "claims"

// Candidate fields, in resolution order.
var (
	emailFields       = []string{"email", "upn"}
	claimsEmailFields = []string{"email", "upn"}

	privilegeFields       = []string{"privilege_level", "privilegeLevel", "privilege", "level", "role_level", "roleLevel", "role"}
	claimsPrivilegeFields = []string{"privilege_level", "role_level", "role"}

	roleFields       = []string{"role", "role_name", "roleName"}
	claimsRoleFields = []string{"role", "role_name"}
)

// PrivilegePolicy maps lower-cased role names to privilege levels.
type PrivilegePolicy map[string]int

// DefaultPrivilegePolicy returns the built-in role table:
// administrative roles map to 1 and regular members to 2.
func DefaultPrivilegePolicy() PrivilegePolicy {
	return PrivilegePolicy{
		"admin":       1,
		"superadmin":  1,
		"super_admin": 1,
		"owner":       1,
		"user":        2,
		"tutor":       2,
		"member":      2,
	}
}

// Normalizer converts raw user-info payloads into Identity values.
type Normalizer struct {
	policy PrivilegePolicy
}

// NormalizerOption configures a Normalizer.
type NormalizerOption func(*Normalizer)

// WithPrivilegePolicy replaces the role-name table. Keys are matched after
// lower-casing and trimming the candidate value.
func WithPrivilegePolicy(policy PrivilegePolicy) NormalizerOption {
	return func(n *Normalizer) {
		n.policy = make(PrivilegePolicy, len(policy))
		for role, level := range policy {
			n.policy[strings.ToLower(strings.TrimSpace(role))] = level
		}
	}
}

// NewNormalizer returns a Normalizer using DefaultPrivilegePolicy unless overridden.
func NewNormalizer(opts ...NormalizerOption) *Normalizer {
	n := &Normalizer{policy: DefaultPrivilegePolicy()}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

var defaultNormalizer = NewNormalizer()

// Normalize normalizes raw with the default policy.
func Normalize(raw map[string]any) (*Identity, error) {
	return defaultNormalizer.Normalize(raw)
}

// ResolvePrivilegeLevel resolves a privilege level with the default policy.
func ResolvePrivilegeLevel(raw map[string]any) (int, bool) {
	return defaultNormalizer.ResolvePrivilegeLevel(raw)
}

// ResolveRole resolves the role name.
func ResolveRole(raw map[string]any) (string, bool) {
	return defaultNormalizer.ResolveRole(raw)
}

// Normalize returns the canonical identity for raw, or a missing_email error
// when no email-like field holds a non-empty string.
func (n *Normalizer) Normalize(raw map[string]any) (*Identity, error) {
	email, ok := ResolveEmail(raw)
	if !ok {
		return nil, autherrors.New(autherrors.KindMissingEmail,
			"UserInfo payload did not include a valid email", nil)
	}

	id := &Identity{
		Email: email,
		Raw:   raw,
	}
	if level, ok := n.ResolvePrivilegeLevel(raw); ok {
		id.PrivilegeLevel = &level
	}
	if role, ok := n.ResolveRole(raw); ok {
		id.Role = role
	}
	return id, nil
}

// ResolveEmail returns the first non-empty string among email, upn,
// claims.email and claims.upn, lower-cased and trimmed.
func ResolveEmail(raw map[string]any) (string, bool) {
	for _, v := range candidates(raw, emailFields, claimsEmailFields) {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return normalizeString(s), true
		}
	}
	return "", false
}

// ResolvePrivilegeLevel scans the privilege candidates in order. An integer
// or all-digit string resolves directly; any other string is looked up in
// the policy. The first candidate that resolves wins.
func (n *Normalizer) ResolvePrivilegeLevel(raw map[string]any) (int, bool) {
	for _, v := range candidates(raw, privilegeFields, claimsPrivilegeFields) {
		if level, ok := asInteger(v); ok {
			return level, true
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		if isDigits(s) {
			if level, err := strconv.Atoi(s); err == nil {
				return level, true
			}
			continue
		}
		if level, ok := n.policy[normalizeString(s)]; ok {
			return level, true
		}
	}
	return 0, false
}

// ResolveRole returns the first non-empty string among role, role_name,
// roleName, claims.role and claims.role_name, lower-cased and trimmed.
func (*Normalizer) ResolveRole(raw map[string]any) (string, bool) {
	for _, v := range candidates(raw, roleFields, claimsRoleFields) {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return normalizeString(s), true
		}
	}
	return "", false
}

// candidates collects present values for the top-level fields followed by
// the nested claims fields. Missing keys and nulls are skipped.
func candidates(raw map[string]any, topLevel, nested []string) []any {
	out := make([]any, 0, len(topLevel)+len(nested))
	for _, key := range topLevel {
		if v, ok := raw[key]; ok && v != nil {
			out = append(out, v)
		}
	}
	claims, ok := raw[claimsKey].(map[string]any)
	if !ok {
		return out
	}
	for _, key := range nested {
		if v, ok := claims[key]; ok && v != nil {
			out = append(out, v)
		}
	}
	return out
}

// asInteger accepts Go integer types, integral json.Number values and
// integral float64 values (what encoding/json produces without UseNumber).
func asInteger(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	case float64:
		if math.Trunc(n) != n || math.IsInf(n, 0) || n > math.MaxInt32 || n < math.MinInt32 {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func normalizeString(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

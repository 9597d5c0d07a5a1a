// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package authflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// TokenSet is the result of a successful code exchange or refresh.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	TokenType    string

	// ExpiresIn is the access token lifetime in seconds; zero when not reported.
	ExpiresIn int64

	IDToken string
	Scope   string

	// Raw is the decoded token response, including fields not mapped above.
	Raw map[string]any

	// issuedAt is when the response was parsed, used by OAuth2Token.
	issuedAt time.Time
}

// HasRefreshToken reports whether the provider issued a refresh token.
func (t *TokenSet) HasRefreshToken() bool {
	return t != nil && t.RefreshToken != ""
}

// OAuth2Token converts the set into an *oauth2.Token.
func (t *TokenSet) OAuth2Token() *oauth2.Token {
	if t == nil {
		return nil
	}
	tok := &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		ExpiresIn:    t.ExpiresIn,
	}
	if t.ExpiresIn > 0 {
		tok.Expiry = t.issuedAt.Add(time.Duration(t.ExpiresIn) * time.Second)
	}
	extra := make(map[string]any, len(t.Raw))
	for k, v := range t.Raw {
		extra[k] = v
	}
	return tok.WithExtra(extra)
}

// String redacts every token value.
func (t *TokenSet) String() string {
	if t == nil {
		return "<nil>"
	}
	return fmt.Sprintf("TokenSet{AccessToken:%q, RefreshToken:%q, IDToken:%q, TokenType:%q, ExpiresIn:%d, Scope:%q}",
		redact(t.AccessToken), redact(t.RefreshToken), redact(t.IDToken), t.TokenType, t.ExpiresIn, t.Scope)
}

// MarshalJSON redacts every token value and omits the raw payload.
// Use Raw directly when the tokens themselves must be serialized.
func (t *TokenSet) MarshalJSON() ([]byte, error) {
	if t == nil {
		return []byte("null"), nil
	}
	return json.Marshal(&struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token,omitempty"`
		IDToken      string `json:"id_token,omitempty"`
		TokenType    string `json:"token_type,omitempty"`
		ExpiresIn    int64  `json:"expires_in,omitempty"`
		Scope        string `json:"scope,omitempty"`
	}{
		AccessToken:  redact(t.AccessToken),
		RefreshToken: redact(t.RefreshToken),
		IDToken:      redact(t.IDToken),
		TokenType:    t.TokenType,
		ExpiresIn:    t.ExpiresIn,
		Scope:        t.Scope,
	})
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "REDACTED"
}

// newTokenSet maps a decoded token response onto a TokenSet.
// Missing or mistyped fields are left at their zero value.
func newTokenSet(raw map[string]any, now time.Time) *TokenSet {
	return &TokenSet{
		AccessToken:  stringField(raw, "access_token"),
		RefreshToken: stringField(raw, "refresh_token"),
		TokenType:    stringField(raw, "token_type"),
		ExpiresIn:    secondsField(raw, "expires_in"),
		IDToken:      stringField(raw, "id_token"),
		Scope:        stringField(raw, "scope"),
		Raw:          raw,
		issuedAt:     now,
	}
}

func stringField(raw map[string]any, key string) string {
	s, _ := raw[key].(string)
	return s
}

// secondsField accepts a JSON number or a numeric string; some providers send either.
func secondsField(raw map[string]any, key string) int64 {
	switch v := raw[key].(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		if f, err := v.Float64(); err == nil && f <= math.MaxInt64 {
			return int64(f)
		}
	case float64:
		return int64(v)
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return i
		}
	}
	return 0
}

// decodeObject parses body as a JSON object, preserving numbers as json.Number.
func decodeObject(body []byte) (map[string]any, bool) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil || out == nil {
		return nil, false
	}
	if dec.More() {
		return nil, false
	}
	return out, true
}

// errorBodyMessage renders a provider error body: re-encoded JSON when the body
// parses as an object, the raw text otherwise.
func errorBodyMessage(body []byte) string {
	if obj, ok := decodeObject(body); ok {
		if encoded, err := json.Marshal(obj); err == nil {
			return string(encoded)
		}
	}
	return string(body)
}

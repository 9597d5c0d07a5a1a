// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package authflow

import (
	"context"
	"fmt"
	"net/url"

	"github.com/stacklok/rpauth/pkg/identity"
	"github.com/stacklok/rpauth/pkg/session"
)

// LegacyClient exposes the flow through flat maps for integrations written
// against the original array-based API.
//
// Deprecated: Use Client and Flow directly.
type LegacyClient struct {
	client *Client
	store  session.Store
}

// NewLegacyClient validates cfg and binds the client to a session store.
//
// Deprecated: Use ConfigFromMap, NewClient and Client.NewFlow.
func NewLegacyClient(cfg map[string]any, store session.Store, opts ...ClientOption) (*LegacyClient, error) {
	config, err := ConfigFromMap(cfg)
	if err != nil {
		return nil, err
	}
	client, err := NewClient(config, opts...)
	if err != nil {
		return nil, err
	}
	return &LegacyClient{client: client, store: store}, nil
}

// GetAuthorizationURL accepts the option keys state, code_verifier, scope,
// extra (map[string]string or map[string]any) and persist (bool), and returns
// url, state, code_verifier and code_challenge.
func (l *LegacyClient) GetAuthorizationURL(ctx context.Context, opts map[string]any) (map[string]string, error) {
	var options []AuthorizationOption
	if s, ok := opts["state"]; ok && s != nil {
		options = append(options, WithState(fmt.Sprint(s)))
	}
	if v, ok := opts["code_verifier"]; ok && v != nil {
		options = append(options, WithCodeVerifier(fmt.Sprint(v)))
	}
	if s, ok := opts["scope"]; ok && s != nil {
		options = append(options, WithScope(fmt.Sprint(s)))
	}
	switch extra := opts["extra"].(type) {
	case map[string]string:
		options = append(options, WithExtraParams(extra))
	case map[string]any:
		converted := make(map[string]string, len(extra))
		for k, v := range extra {
			converted[k] = fmt.Sprint(v)
		}
		options = append(options, WithExtraParams(converted))
	}
	if persist, ok := opts["persist"].(bool); ok && !persist {
		options = append(options, WithoutPersist())
	}

	req, err := l.client.NewFlow(l.store).BuildAuthorizationURL(ctx, options...)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"url":            req.URL,
		"state":          req.State,
		"code_verifier":  req.CodeVerifier,
		"code_challenge": req.CodeChallenge,
	}, nil
}

// ExchangeCodeForTokens returns the raw token response.
func (l *LegacyClient) ExchangeCodeForTokens(ctx context.Context, code, verifier string) (map[string]any, error) {
	tokens, err := l.client.NewFlow(l.store).ExchangeCodeForTokens(ctx, code, verifier)
	if err != nil {
		return nil, err
	}
	return tokens.Raw, nil
}

// RefreshAccessToken returns the raw token response.
func (l *LegacyClient) RefreshAccessToken(ctx context.Context, refreshToken string) (map[string]any, error) {
	tokens, err := l.client.RefreshAccessToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	return tokens.Raw, nil
}

// GetUserInfo returns the raw user-info payload.
func (l *LegacyClient) GetUserInfo(ctx context.Context, accessToken string) (map[string]any, error) {
	return l.client.GetUserInfo(ctx, accessToken)
}

// GetNormalizedUserInfo returns email, privilege_level, role and raw.
func (l *LegacyClient) GetNormalizedUserInfo(ctx context.Context, accessToken string) (map[string]any, error) {
	user, err := l.client.GetNormalizedUserInfo(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	return identityMap(user), nil
}

// HandleCallback returns tokens, user and raw_user.
func (l *LegacyClient) HandleCallback(ctx context.Context, query url.Values, clearPKCE bool) (map[string]any, error) {
	outcome, err := l.client.NewFlow(l.store).HandleCallback(ctx, query, clearPKCE)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"tokens":   outcome.Tokens.Raw,
		"user":     identityMap(outcome.User),
		"raw_user": outcome.RawUser,
	}, nil
}

func identityMap(id *identity.Identity) map[string]any {
	m := map[string]any{
		"email":           id.Email,
		"privilege_level": nil,
		"role":            nil,
		"raw":             id.Raw,
	}
	if id.PrivilegeLevel != nil {
		m["privilege_level"] = *id.PrivilegeLevel
	}
	if id.Role != "" {
		m["role"] = id.Role
	}
	return m
}

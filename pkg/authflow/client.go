// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package authflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	autherrors "github.com/stacklok/rpauth/pkg/errors"
	"github.com/stacklok/rpauth/pkg/identity"
	"github.com/stacklok/rpauth/pkg/logger"
	"github.com/stacklok/rpauth/pkg/networking"
)

// Client performs the session-independent operations of the flow.
// It is safe for concurrent use.
type Client struct {
	config     *Config
	transport  Transport
	normalizer *identity.Normalizer
	logger     *slog.Logger
	now        func() time.Time
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTransport replaces the default hardened networking.Client.
func WithTransport(t Transport) ClientOption {
	return func(c *Client) {
		c.transport = t
	}
}

// WithNormalizer sets the identity normalizer used for user info.
func WithNormalizer(n *identity.Normalizer) ClientOption {
	return func(c *Client) {
		c.normalizer = n
	}
}

// WithLogger sets the logger. Without it the client does not log.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a Client for a validated configuration.
func NewClient(cfg *Config, opts ...ClientOption) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		config: cfg,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.transport == nil {
		t, err := networking.NewClient()
		if err != nil {
			return nil, fmt.Errorf("failed to create HTTP transport: %w", err)
		}
		c.transport = t
	}
	if c.normalizer == nil {
		c.normalizer = identity.NewNormalizer()
	}
	if c.logger == nil {
		c.logger = logger.Discard()
	}

	return c, nil
}

// Config returns the client's configuration.
func (c *Client) Config() *Config {
	return c.config
}

// exchangeCode posts an authorization_code grant.
func (c *Client) exchangeCode(ctx context.Context, code, verifier string) (*TokenSet, error) {
	params := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {c.config.RedirectURI},
		"client_id":     {c.config.ClientID},
		"code_verifier": {verifier},
	}
	if c.config.ClientSecret != "" {
		params.Set("client_secret", c.config.ClientSecret)
	}

	c.logger.Debug("exchanging authorization code for tokens",
		"token_endpoint", c.config.TokenURL,
		"has_client_secret", c.config.ClientSecret != "",
	)

	tokens, err := c.tokenRequest(ctx, params,
		autherrors.KindTokenExchangeFailed, "Token endpoint error",
		autherrors.KindTokenResponseInvalidJSON, "Token endpoint returned invalid JSON")
	if err != nil {
		return nil, err
	}

	c.logger.Info("authorization code exchange successful",
		"has_refresh_token", tokens.HasRefreshToken(),
		"expires_in", tokens.ExpiresIn,
	)
	return tokens, nil
}

// RefreshAccessToken exchanges a refresh token for a new TokenSet.
func (c *Client) RefreshAccessToken(ctx context.Context, refreshToken string) (*TokenSet, error) {
	params := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {c.config.ClientID},
	}
	if c.config.ClientSecret != "" {
		params.Set("client_secret", c.config.ClientSecret)
	}

	c.logger.Debug("refreshing tokens", "token_endpoint", c.config.TokenURL)

	tokens, err := c.tokenRequest(ctx, params,
		autherrors.KindRefreshExchangeFailed, "Refresh token error",
		autherrors.KindRefreshResponseInvalidJSON, "Refresh token response was not valid JSON")
	if err != nil {
		return nil, err
	}

	c.logger.Info("token refresh successful",
		"has_new_refresh_token", tokens.HasRefreshToken(),
		"expires_in", tokens.ExpiresIn,
	)
	return tokens, nil
}

// tokenRequest posts params to the token endpoint and maps the response onto
// the given error kinds.
func (c *Client) tokenRequest(
	ctx context.Context,
	params url.Values,
	statusKind autherrors.Kind, statusPrefix string,
	jsonKind autherrors.Kind, jsonMessage string,
) (*TokenSet, error) {
	resp, err := c.transport.PostForm(ctx, c.config.TokenURL, params, nil)
	if err != nil {
		c.logger.Warn("token request failed", "grant_type", params.Get("grant_type"), "error", err)
		return nil, err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		c.logger.Warn("token endpoint returned error status",
			"grant_type", params.Get("grant_type"),
			"status", resp.StatusCode,
		)
		return nil, autherrors.NewStatusError(statusKind, resp.StatusCode,
			fmt.Sprintf("%s (%d): %s", statusPrefix, resp.StatusCode, errorBodyMessage(resp.Body)))
	}

	raw, ok := decodeObject(resp.Body)
	if !ok {
		return nil, autherrors.New(jsonKind, jsonMessage, nil)
	}
	return newTokenSet(raw, c.now()), nil
}

// GetUserInfo fetches the raw user-info payload with a bearer token.
func (c *Client) GetUserInfo(ctx context.Context, accessToken string) (map[string]any, error) {
	if !c.config.HasUserInfoURL() {
		return nil, autherrors.New(autherrors.KindUserInfoURLMissing, "UserInfo URL has not been configured", nil)
	}

	resp, err := c.transport.Get(ctx, c.config.UserInfoURL, map[string]string{
		"Authorization": "Bearer " + accessToken,
	})
	if err != nil {
		c.logger.Warn("userinfo request failed", "error", err)
		return nil, err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		c.logger.Warn("userinfo endpoint returned error status", "status", resp.StatusCode)
		return nil, autherrors.NewStatusError(autherrors.KindUserInfoRequestFailed, resp.StatusCode,
			fmt.Sprintf("UserInfo endpoint error (%d): %s", resp.StatusCode, errorBodyMessage(resp.Body)))
	}

	raw, ok := decodeObject(resp.Body)
	if !ok {
		return nil, autherrors.New(autherrors.KindUserInfoInvalidJSON, "UserInfo response was not valid JSON", nil)
	}

	c.logger.Debug("fetched userinfo", "claims", len(raw))
	return raw, nil
}

// GetNormalizedUserInfo fetches user info and normalizes it.
func (c *Client) GetNormalizedUserInfo(ctx context.Context, accessToken string) (*identity.Identity, error) {
	raw, err := c.GetUserInfo(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	return c.normalizer.Normalize(raw)
}

// Normalize applies the client's normalizer to a raw payload.
func (c *Client) Normalize(raw map[string]any) (*identity.Identity, error) {
	return c.normalizer.Normalize(raw)
}

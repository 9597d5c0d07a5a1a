// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package authflow

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	autherrors "github.com/stacklok/rpauth/pkg/errors"
	"github.com/stacklok/rpauth/pkg/networking"
)

// DefaultScope is requested when the configuration does not name one.
const DefaultScope = "openid profile email"

// Configuration keys accepted by ConfigFromMap and ConfigFromViper.
const (
	KeyClientID          = "clientId"
	KeyClientSecret      = "clientSecret"
	KeyAuthorizeURL      = "authorizeUrl"
	KeyTokenURL          = "tokenUrl"
	KeyUserInfoURL       = "userInfoUrl"
	KeyRedirectURI       = "redirectUri"
	KeyScope             = "scope"
	KeyAllowInsecureHTTP = "allowInsecureHttp"
)

var requiredKeys = []string{KeyClientID, KeyAuthorizeURL, KeyTokenURL, KeyRedirectURI}

// Config is the validated relying-party configuration.
// Treat it as read-only once constructed.
type Config struct {
	ClientID     string
	ClientSecret string
	AuthorizeURL string
	TokenURL     string
	RedirectURI  string

	// UserInfoURL is optional; GetUserInfo fails without it.
	UserInfoURL string

	// Scope is the default scope for authorization requests.
	Scope string

	// AllowInsecureHTTP permits http:// URLs whose host is a loopback name.
	AllowInsecureHTTP bool
}

// ConfigFromMap validates a flat configuration mapping.
func ConfigFromMap(m map[string]any) (*Config, error) {
	for _, key := range requiredKeys {
		s, ok := m[key].(string)
		if !ok || s == "" {
			return nil, autherrors.NewConfigError(key, fmt.Sprintf("%s is required", key))
		}
	}

	allowInsecure, err := parseBool(m[KeyAllowInsecureHTTP])
	if err != nil {
		return nil, autherrors.NewConfigError(KeyAllowInsecureHTTP,
			fmt.Sprintf("%s must be a boolean", KeyAllowInsecureHTTP))
	}

	cfg := &Config{
		ClientID:          m[KeyClientID].(string),
		ClientSecret:      stringValue(m[KeyClientSecret]),
		AuthorizeURL:      trimURL(m[KeyAuthorizeURL].(string)),
		TokenURL:          trimURL(m[KeyTokenURL].(string)),
		RedirectURI:       strings.TrimSpace(m[KeyRedirectURI].(string)),
		UserInfoURL:       trimURL(stringValue(m[KeyUserInfoURL])),
		Scope:             DefaultScope,
		AllowInsecureHTTP: allowInsecure,
	}
	if scope, ok := m[KeyScope]; ok && scope != nil {
		cfg.Scope = stringValue(scope)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ConfigFromViper reads the configuration keys from v and validates them.
// Keys are looked up case-insensitively, so RPAUTH_CLIENTID style environment
// bindings work alongside config files.
func ConfigFromViper(v *viper.Viper) (*Config, error) {
	m := make(map[string]any)
	for _, key := range []string{
		KeyClientID, KeyClientSecret, KeyAuthorizeURL, KeyTokenURL,
		KeyUserInfoURL, KeyRedirectURI, KeyScope, KeyAllowInsecureHTTP,
	} {
		if v.IsSet(key) {
			m[key] = v.Get(key)
		}
	}
	return ConfigFromMap(m)
}

// Validate checks the required fields and the security rules for every URL.
func (c *Config) Validate() error {
	if c.ClientID == "" {
		return autherrors.NewConfigError(KeyClientID, KeyClientID+" is required")
	}

	urls := []struct {
		field, value string
		required     bool
	}{
		{KeyAuthorizeURL, c.AuthorizeURL, true},
		{KeyTokenURL, c.TokenURL, true},
		{KeyRedirectURI, c.RedirectURI, true},
		{KeyUserInfoURL, c.UserInfoURL, false},
	}
	for _, u := range urls {
		if u.value == "" {
			if u.required {
				return autherrors.NewConfigError(u.field, u.field+" is required")
			}
			continue
		}
		if err := assertSecureURL(u.field, u.value, c.AllowInsecureHTTP); err != nil {
			return err
		}
	}
	return nil
}

// HasUserInfoURL reports whether a user-info endpoint is configured.
func (c *Config) HasUserInfoURL() bool {
	return c.UserInfoURL != ""
}

func assertSecureURL(field, raw string, allowInsecure bool) error {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return autherrors.NewConfigError(field, field+" must be a valid absolute URL")
	}

	switch strings.ToLower(parsed.Scheme) {
	case networking.HttpsScheme:
		return nil
	case networking.HttpScheme:
		if allowInsecure && networking.IsLoopbackHost(parsed.Hostname()) {
			return nil
		}
		return autherrors.NewConfigError(field,
			field+" must use https (set allowInsecureHttp=true for localhost development)")
	default:
		return autherrors.NewConfigError(field, field+" must use http or https")
	}
}

func trimURL(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), "/")
}

func stringValue(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}

func parseBool(v any) (bool, error) {
	switch b := v.(type) {
	case nil:
		return false, nil
	case bool:
		return b, nil
	case string:
		if strings.TrimSpace(b) == "" {
			return false, nil
		}
		return strconv.ParseBool(strings.TrimSpace(b))
	default:
		return false, fmt.Errorf("unsupported type %T", v)
	}
}

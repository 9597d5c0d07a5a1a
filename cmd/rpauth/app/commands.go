// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app provides the rpauth command-line application.
package app

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/rpauth/pkg/authflow"
	"github.com/stacklok/rpauth/pkg/logger"
	"github.com/stacklok/rpauth/pkg/networking"
)

const (
	envPrefix = "RPAUTH"

	keyCABundle        = "caBundle"
	keyBlockPrivateIPs = "blockPrivateIps"
)

// providerFlags maps CLI flags onto configuration keys.
var providerFlags = []struct {
	flag, key, usage string
}{
	{"client-id", authflow.KeyClientID, "OAuth client ID"},
	{"client-secret", authflow.KeyClientSecret, "OAuth client secret (confidential clients only)"},
	{"authorize-url", authflow.KeyAuthorizeURL, "Authorization endpoint URL"},
	{"token-url", authflow.KeyTokenURL, "Token endpoint URL"},
	{"userinfo-url", authflow.KeyUserInfoURL, "User-info endpoint URL"},
	{"redirect-uri", authflow.KeyRedirectURI, "Registered redirect URI"},
	{"scope", authflow.KeyScope, "Default scope (default \"" + authflow.DefaultScope + "\")"},
	{"ca-bundle", keyCABundle, "Additional PEM CA bundle to trust"},
}

// NewRootCmd creates the root command. Each call has its own configuration
// state, so commands can be built and executed independently in tests.
func NewRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	var configFile string

	rootCmd := &cobra.Command{
		Use:               "rpauth",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		Short:             "rpauth is an OAuth 2.0 Authorization Code + PKCE relying party",
		Long: `rpauth drives the OAuth 2.0 Authorization Code flow with PKCE against an
identity provider and normalizes the returned user profile.

Configuration is read from flags, RPAUTH_* environment variables (for example
RPAUTH_CLIENTID) and an optional config file, in that order of precedence.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("debug") {
				viper.Set("debug", true)
				logger.Initialize()
			}
			if configFile == "" {
				return nil
			}
			v.SetConfigFile(configFile)
			if err := v.ReadInConfig(); err != nil {
				return fmt.Errorf("failed to read config file: %w", err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	bindFlag := func(key, name string) {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			logger.Errorf("failed to bind flag: %v", err)
		}
	}

	flags.Bool("debug", false, "Enable debug logging")
	flags.StringVar(&configFile, "config", "", "Path to a config file (yaml, json or toml)")
	for _, f := range providerFlags {
		flags.String(f.flag, "", f.usage)
		bindFlag(f.key, f.flag)
	}
	flags.Bool("allow-insecure-http", false, "Allow http:// endpoints on loopback hosts")
	bindFlag(authflow.KeyAllowInsecureHTTP, "allow-insecure-http")
	flags.Bool("block-private-ips", false, "Refuse connections to private and loopback addresses")
	bindFlag(keyBlockPrivateIPs, "block-private-ips")

	rootCmd.AddCommand(newAuthorizeURLCmd(v))
	rootCmd.AddCommand(newExchangeCmd(v))
	rootCmd.AddCommand(newRefreshCmd(v))
	rootCmd.AddCommand(newUserInfoCmd(v))
	rootCmd.AddCommand(newServeCmd(v))

	return rootCmd
}

// newClient builds an authflow.Client from the resolved configuration.
func newClient(v *viper.Viper) (*authflow.Client, error) {
	cfg, err := authflow.ConfigFromViper(v)
	if err != nil {
		return nil, err
	}

	builder := networking.NewHttpClientBuilder()
	if path := strings.TrimSpace(v.GetString(keyCABundle)); path != "" {
		builder.WithCABundle(path)
	}
	if v.GetBool(keyBlockPrivateIPs) {
		builder.WithPrivateIPs(false)
	}
	hc, err := builder.Build()
	if err != nil {
		return nil, err
	}
	transport, err := networking.NewClient(networking.WithHTTPDoer(hc))
	if err != nil {
		return nil, err
	}

	return authflow.NewClient(cfg,
		authflow.WithTransport(transport),
		authflow.WithLogger(logger.Named("authflow")),
	)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

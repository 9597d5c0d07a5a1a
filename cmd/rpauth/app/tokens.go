// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/rpauth/pkg/authflow"
)

func newExchangeCmd(v *viper.Viper) *cobra.Command {
	var (
		code       string
		verifier   string
		showTokens bool
	)

	cmd := &cobra.Command{
		Use:   "exchange",
		Short: "Exchange an authorization code for tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient(v)
			if err != nil {
				return err
			}
			tokens, err := client.NewFlow(nil).ExchangeCodeForTokens(cmd.Context(), code, verifier)
			if err != nil {
				return err
			}
			return writeTokens(cmd, tokens, showTokens)
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "Authorization code from the callback")
	cmd.Flags().StringVar(&verifier, "code-verifier", "", "PKCE code verifier printed by authorize-url")
	cmd.Flags().BoolVar(&showTokens, "show-tokens", false, "Print the raw token response instead of a redacted summary")
	_ = cmd.MarkFlagRequired("code")
	_ = cmd.MarkFlagRequired("code-verifier")

	return cmd
}

func newRefreshCmd(v *viper.Viper) *cobra.Command {
	var (
		refreshToken string
		showTokens   bool
	)

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Exchange a refresh token for a new access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient(v)
			if err != nil {
				return err
			}
			tokens, err := client.RefreshAccessToken(cmd.Context(), refreshToken)
			if err != nil {
				return err
			}
			return writeTokens(cmd, tokens, showTokens)
		},
	}

	cmd.Flags().StringVar(&refreshToken, "refresh-token", "", "Refresh token")
	cmd.Flags().BoolVar(&showTokens, "show-tokens", false, "Print the raw token response instead of a redacted summary")
	_ = cmd.MarkFlagRequired("refresh-token")

	return cmd
}

func writeTokens(cmd *cobra.Command, tokens *authflow.TokenSet, showTokens bool) error {
	if showTokens {
		return writeJSON(cmd.OutOrStdout(), tokens.Raw)
	}
	return writeJSON(cmd.OutOrStdout(), tokens)
}

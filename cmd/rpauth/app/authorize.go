// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/rpauth/pkg/authflow"
)

type authorizeURLOutput struct {
	URL           string `json:"url"`
	State         string `json:"state"`
	CodeVerifier  string `json:"code_verifier"`
	CodeChallenge string `json:"code_challenge"`
}

func newAuthorizeURLCmd(v *viper.Viper) *cobra.Command {
	var (
		state    string
		verifier string
		scope    string
		extra    map[string]string
	)

	cmd := &cobra.Command{
		Use:   "authorize-url",
		Short: "Print an authorization URL with fresh state and PKCE values",
		Long: `Builds the URL to send the user's browser to. The state and code verifier are
printed so they can be passed to "rpauth exchange" after the redirect.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient(v)
			if err != nil {
				return err
			}

			opts := []authflow.AuthorizationOption{
				authflow.WithoutPersist(),
				authflow.WithState(state),
				authflow.WithCodeVerifier(verifier),
				authflow.WithScope(scope),
			}
			if len(extra) > 0 {
				opts = append(opts, authflow.WithExtraParams(extra))
			}

			req, err := client.NewFlow(nil).BuildAuthorizationURL(cmd.Context(), opts...)
			if err != nil {
				return err
			}

			return writeJSON(cmd.OutOrStdout(), authorizeURLOutput{
				URL:           req.URL,
				State:         req.State,
				CodeVerifier:  req.CodeVerifier,
				CodeChallenge: req.CodeChallenge,
			})
		},
	}

	cmd.Flags().StringVar(&state, "state", "", "Use this state instead of a random one")
	cmd.Flags().StringVar(&verifier, "code-verifier", "", "Use this PKCE code verifier instead of a random one")
	cmd.Flags().StringVar(&scope, "request-scope", "", "Scope for this request (overrides the configured scope)")
	cmd.Flags().StringToStringVar(&extra, "param", nil, "Extra authorization query parameter (key=value, repeatable)")

	return cmd
}

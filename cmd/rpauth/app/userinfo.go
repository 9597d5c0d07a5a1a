// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newUserInfoCmd(v *viper.Viper) *cobra.Command {
	var (
		accessToken string
		normalize   bool
	)

	cmd := &cobra.Command{
		Use:   "userinfo",
		Short: "Fetch the user-info payload for an access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient(v)
			if err != nil {
				return err
			}
			if normalize {
				user, err := client.GetNormalizedUserInfo(cmd.Context(), accessToken)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), user)
			}
			raw, err := client.GetUserInfo(cmd.Context(), accessToken)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), raw)
		},
	}

	cmd.Flags().StringVar(&accessToken, "access-token", "", "Bearer access token")
	cmd.Flags().BoolVar(&normalize, "normalize", false, "Print the normalized identity instead of the raw payload")
	_ = cmd.MarkFlagRequired("access-token")

	return cmd
}

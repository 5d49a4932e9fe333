package main

import (
	"fmt"
	"time"

	"github.com/brroMonta/gifting/pkg/util"
	"github.com/spf13/cobra"
)

var (
	tokenEmail  string
	tokenExpiry time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token <owner-id>",
	Short: "Sign an owner API token with the configured JWT secret",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		expiry := tokenExpiry
		if expiry == 0 {
			expiry = cfg.JWT.TokenExpiry
		}

		token, err := util.GenerateToken(args[0], tokenEmail, cfg.JWT.Secret, cfg.JWT.Issuer, expiry)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "email claim")
	tokenCmd.Flags().DurationVar(&tokenExpiry, "expiry", 0, "token lifetime (default JWT_TOKEN_EXPIRY)")
	rootCmd.AddCommand(tokenCmd)
}

package main

import (
	"fmt"
	"time"

	"github.com/silverfox/cao-engine/internal/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Operator session token management",
}

var authIssueTokenCmd = &cobra.Command{
	Use:   "issue-token [operator]",
	Short: "Mint a signed operator session token for the HTTP API",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuthIssueToken,
}

func init() {
	rootCmd.PersistentFlags().String("operator-jwt-key", "", "HMAC signing key (overrides OPERATOR_JWT_KEY)")
	_ = viper.BindPFlag("operator_jwt_key", rootCmd.PersistentFlags().Lookup("operator-jwt-key"))

	authIssueTokenCmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime")
	_ = viper.BindPFlag("auth.issue_token.ttl", authIssueTokenCmd.Flags().Lookup("ttl"))

	authCmd.AddCommand(authIssueTokenCmd)
	rootCmd.AddCommand(authCmd)
}

func runAuthIssueToken(cmd *cobra.Command, args []string) error {
	jwtKey := viper.GetString("operator_jwt_key")
	if jwtKey == "" {
		return fmt.Errorf("signing key not set (pass --operator-jwt-key or set OPERATOR_JWT_KEY)")
	}

	operator := args[0]
	ttl := viper.GetDuration("auth.issue_token.ttl")

	token, err := middleware.IssueToken(jwtKey, operator, ttl)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}

	fmt.Println(token)
	return nil
}

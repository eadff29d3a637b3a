package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"magpie/internal/pkg/jwt"
)

var (
	tokenClient string
	tokenTTL    time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an access token for the control API",
	Long: `Issue a signed JWT that the browser shim (or any other client) can
present as a Bearer token when the control API has authentication enabled.`,
	RunE: runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().StringVar(&tokenClient, "client", "shim", "client identifier embedded in the token")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 720*time.Hour, "token lifetime")
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is not configured, tokens would never validate")
	}

	token, err := jwt.NewJWT(cfg.Auth.JWTSecret, tokenTTL).GenerateToken(tokenClient)
	if err != nil {
		return fmt.Errorf("failed to sign token: %w", err)
	}

	fmt.Println(token)
	return nil
}

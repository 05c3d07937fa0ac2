package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/amanas96/slot-swapper/internal/config"
	"github.com/amanas96/slot-swapper/internal/identity"
	"github.com/spf13/cobra"
)

// NewTokenCommand выпускает токен для локальной разработки
func NewTokenCommand() *cobra.Command {
	var (
		userID string
		secret string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development bearer token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config.LoadDotEnv()
			if secret == "" {
				secret = os.Getenv("JWT_SECRET")
			}
			if secret == "" {
				return fmt.Errorf("JWT_SECRET is required but not set")
			}

			token, err := identity.NewVerifier(secret).IssueToken(userID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id to put into the token")
	cmd.Flags().StringVar(&secret, "secret", "", "signing secret (defaults to JWT_SECRET)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime, 0 for no expiry")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

//go:build devauth

package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/terraconstructs/estate/internal/identity"
)

var (
	devSubject string
	devEmail   string
	devName    string
	devTTL     time.Duration
)

var devCmd = &cobra.Command{
	Use:   "dev",
	Short: "Development helpers (devauth builds only)",
}

var devTokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an HS256 token accepted when auth.dev.secret is set",
	Example: `  estateapi dev token --sub E1 --email a@x.com
  curl -H "Authorization: Bearer $(estateapi dev token --sub E1 --email a@x.com)" localhost:8080/auth/register -X POST`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Auth.Dev.Secret == "" {
			return errors.New("auth.dev.secret is not configured")
		}
		token, err := identity.MintDevToken(cfg.Auth.Dev.Secret, identity.DevTokenRequest{
			Subject: devSubject,
			Email:   devEmail,
			Name:    devName,
			TTL:     devTTL,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	devTokenCmd.Flags().StringVar(&devSubject, "sub", "", "Subject (external id) of the token (required)")
	devTokenCmd.Flags().StringVar(&devEmail, "email", "", "Email claim")
	devTokenCmd.Flags().StringVar(&devName, "name", "", "Display name claim")
	devTokenCmd.Flags().DurationVar(&devTTL, "ttl", time.Hour, "Token lifetime")
	_ = devTokenCmd.MarkFlagRequired("sub")

	devCmd.AddCommand(devTokenCmd)
	rootCmd.AddCommand(devCmd)
}

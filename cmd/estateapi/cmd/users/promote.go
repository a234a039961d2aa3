package users

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/terraconstructs/estate/cmd/estateapi/cmd/cmdutil"
	"github.com/terraconstructs/estate/internal/services/iam"
)

var (
	promoteEmailFlag string
	promoteRoleFlag  string
	syncClaimsFlag   bool
	useDirectoryFlag bool
)

var promoteCmd = &cobra.Command{
	Use:   "promote",
	Short: "Assign a role to a principal by email",
	Long: `Assigns a role to the principal bound to an email address.

With --lookup (or --sync-claims) the email is confirmed with the identity
provider first, and a principal that never registered is created from the
provider record with the requested role.`,
	Example: `  estateapi users promote --email owner@example.com --role admin --sync-claims`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if promoteEmailFlag == "" {
			return fmt.Errorf("--email flag is required")
		}

		ctx := cmd.Context()
		bundle, err := cmdutil.NewIAMServiceBundle(ctx, cfg, logger, cmdutil.IAMServiceOptions{
			Directory: useDirectoryFlag || syncClaimsFlag,
		})
		if err != nil {
			return err
		}
		defer bundle.Close()

		result, err := bundle.Service.PromoteByEmail(ctx, iam.PromoteRequest{
			Email:      promoteEmailFlag,
			Role:       promoteRoleFlag,
			SyncClaims: syncClaimsFlag,
		})
		if err != nil {
			if result != nil && result.Principal != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Role stored for %s but claim sync failed\n", result.Principal.Email)
			}
			return fmt.Errorf("promote %s: %w", promoteEmailFlag, err)
		}

		p := result.Principal
		out := cmd.OutOrStdout()
		switch {
		case result.Created:
			fmt.Fprintf(out, "Created principal %s (%s) with role %s\n", p.Email, p.ID, p.Role)
		case result.Changed:
			fmt.Fprintf(out, "Updated %s (%s) to role %s\n", p.Email, p.ID, p.Role)
		default:
			fmt.Fprintf(out, "%s (%s) already has role %s\n", p.Email, p.ID, p.Role)
		}
		if result.ClaimsSynced {
			fmt.Fprintln(out, "Custom claims updated; the user must refresh their token to see them")
		}
		return nil
	},
}

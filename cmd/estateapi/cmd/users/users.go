package users

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/terraconstructs/estate/internal/config"
	"github.com/terraconstructs/estate/internal/logging"
)

var (
	cfg    *config.Config
	logger = logging.Default()
)

// Configure hands the loaded configuration and logger to the subcommands.
// The root command calls it from PersistentPreRunE.
func Configure(c *config.Config, l *slog.Logger) {
	cfg = c
	logger = l
}

// UsersCmd is the parent command for principal administration
var UsersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage principals",
	Long:  `Operator commands for listing principals and assigning roles directly against the store.`,
}

func init() {
	listCmd.Flags().StringVar(&listRoleFlag, "role", "", "Only list principals holding this role (user, agent, admin)")

	promoteCmd.Flags().StringVar(&promoteEmailFlag, "email", "", "Email address of the principal (required)")
	promoteCmd.Flags().StringVar(&promoteRoleFlag, "role", "admin", "Role to assign (user, agent, admin)")
	promoteCmd.Flags().BoolVar(&syncClaimsFlag, "sync-claims", false, "Also write {role, admin} custom claims to the identity provider")
	promoteCmd.Flags().BoolVar(&useDirectoryFlag, "lookup", false, "Confirm the email with the identity provider and create the principal if missing")

	UsersCmd.AddCommand(listCmd)
	UsersCmd.AddCommand(promoteCmd)
}

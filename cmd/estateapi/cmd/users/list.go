package users

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/terraconstructs/estate/cmd/estateapi/cmd/cmdutil"
	"github.com/terraconstructs/estate/internal/auth"
	"github.com/terraconstructs/estate/internal/db/models"
)

var listRoleFlag string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List principals with a per-role summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := cmdutil.OpenStore(cfg.Database)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := cmd.Context()
		var principals []models.Principal
		if listRoleFlag != "" {
			role, err := auth.ParseRole(listRoleFlag)
			if err != nil {
				return err
			}
			principals, err = store.Principals.ListByRole(ctx, role)
			if err != nil {
				return err
			}
		} else {
			principals, err = store.Principals.ListAll(ctx)
			if err != nil {
				return err
			}
		}

		out := cmd.OutOrStdout()
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tEMAIL\tROLE\tFAVORITES\tLAST LOGIN")
		counts := make(map[auth.Role]int)
		for _, p := range principals {
			counts[p.Role]++
			lastLogin := "never"
			if p.LastLoginAt != nil {
				lastLogin = p.LastLoginAt.UTC().Format(time.RFC3339)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", p.ID, p.Email, p.Role, len(p.Favorites), lastLogin)
		}
		if err := tw.Flush(); err != nil {
			return err
		}

		fmt.Fprintf(out, "\n%d principal(s):", len(principals))
		for _, role := range auth.ValidRoles {
			fmt.Fprintf(out, " %s=%d", role, counts[role])
		}
		fmt.Fprintln(out)
		return nil
	},
}

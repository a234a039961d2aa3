package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/terraconstructs/estate/cmd/estateapi/cmd/users"
	"github.com/terraconstructs/estate/internal/config"
	"github.com/terraconstructs/estate/internal/logging"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

var (
	cfg        *config.Config
	logger     = logging.Default()
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "estateapi",
	Short: "Estate identity and access API server",
	Long: `estateapi federates identity provider tokens into local principals and
enforces role-based access for the estate application.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		logger = logging.New(cfg.Logging, Version)
		slog.SetDefault(logger)
		users.Configure(cfg, logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file (default: estateapi.yaml in ., ~/.config/estateapi, /etc/estateapi)")

	rootCmd.AddCommand(users.UsersCmd)
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/terraconstructs/estate/cmd/estateapi/cmd/cmdutil"
	"github.com/terraconstructs/estate/internal/auth"
	"github.com/terraconstructs/estate/internal/identity"
	"github.com/terraconstructs/estate/internal/server"
	"github.com/terraconstructs/estate/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

var autoMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the estate API server",
	Long:  `Starts the HTTP server with the registration, profile, favorites and administration routes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		shutdownTracing, err := telemetry.Init(ctx, cfg.Observability, Version, logger)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := shutdownTracing(shutdownCtx); err != nil {
				logger.Warn("tracer shutdown failed", "error", err)
			}
		}()

		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		bundle, err := cmdutil.NewIAMServiceBundle(ctx, cfg, logger, cmdutil.IAMServiceOptions{
			Verify:  true,
			Metrics: telemetry.NewAuthMetrics(registry),
		})
		if err != nil {
			return err
		}
		defer bundle.Close()

		logger.Info("connected to principal store", "driver", cfg.Database.Driver)
		if bundle.DevMode != identity.DevOff {
			logger.Warn("development authentication active", "mode", bundle.DevMode.String())
		}

		if autoMigrate {
			if err := bundle.Store.Migrate(ctx, logger); err != nil {
				return fmt.Errorf("auto-migrate: %w", err)
			}
		}

		policy, err := auth.NewPolicyTable()
		if err != nil {
			return err
		}

		routerOpts := server.RouterOptions{
			IAMService:       bundle.Service,
			Policy:           policy,
			Logger:           logger,
			IdentityProvider: bundle.Provider,
			CORSOrigins:      cfg.Server.CORSOrigins,
			RateLimit:        cfg.RateLimit,
			HTTPMetrics:      telemetry.NewHTTPMetrics(registry),
			MetricsHandler:   promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		}

		var handler http.Handler
		if cfg.Server.H2C {
			handler, err = server.NewH2CHandler(routerOpts)
		} else {
			handler, err = server.NewRouter(routerOpts)
		}
		if err != nil {
			return err
		}

		srv := &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      handler,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("starting server", "addr", cfg.Server.Addr, "identity_provider", bundle.Provider, "h2c", cfg.Server.H2C)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(shutdown)

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			logger.Info("shutting down gracefully", "signal", sig.String())

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				_ = srv.Close()
				return fmt.Errorf("graceful shutdown failed: %w", err)
			}

			logger.Info("server stopped")
			return nil
		}
	},
}

func init() {
	serveCmd.Flags().BoolVar(&autoMigrate, "auto-migrate", false, "Apply pending migrations (or MongoDB indexes) before serving")
	rootCmd.AddCommand(serveCmd)
}

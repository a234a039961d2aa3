package cmdutil

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/terraconstructs/estate/internal/auth"
	"github.com/terraconstructs/estate/internal/config"
	"github.com/terraconstructs/estate/internal/identity"
	"github.com/terraconstructs/estate/internal/services/iam"
	"github.com/terraconstructs/estate/internal/telemetry"
)

// IAMServiceOptions controls how the CLI constructs the IAM service.
type IAMServiceOptions struct {
	// Verify builds the token verifier. Operator commands leave it off.
	Verify bool
	// Directory connects the provider admin API for lookups and claim sync.
	Directory bool
	Metrics   *telemetry.AuthMetrics
}

// IAMServiceBundle bundles the service with its store so callers can close
// the connection and reuse the repository.
type IAMServiceBundle struct {
	Service iam.Service
	Store   *Store
	DevMode identity.DevMode
	// Provider names the verifier in use, as reported by /api/health.
	Provider string
}

// Close releases the underlying database connection.
func (b *IAMServiceBundle) Close() {
	if b == nil {
		return
	}
	b.Store.Close()
}

// NewIAMServiceBundle centralizes IAM service construction for CLI commands.
func NewIAMServiceBundle(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts IAMServiceOptions) (*IAMServiceBundle, error) {
	mode, err := identity.ResolveDevMode(cfg.Auth.Dev)
	if err != nil {
		return nil, err
	}

	store, err := OpenStore(cfg.Database)
	if err != nil {
		return nil, err
	}

	bundle := &IAMServiceBundle{Store: store, DevMode: mode, Provider: cfg.Identity.Mode}
	deps := iam.IAMServiceDependencies{
		Principals: store.Principals,
		Metrics:    opts.Metrics,
		Logger:     logger,
	}

	if opts.Verify {
		verifier, provider, err := NewVerifier(ctx, cfg, mode)
		if err != nil {
			store.Close()
			return nil, err
		}
		deps.Verifier = verifier
		bundle.Provider = provider
	} else {
		deps.Verifier = identity.VerifierFunc(func(context.Context, string) (*identity.Claims, error) {
			return nil, fmt.Errorf("%w: token verification is not configured for operator commands", auth.ErrInvalidToken)
		})
	}

	if opts.Directory {
		directory, err := NewDirectory(ctx, cfg.Identity)
		if err != nil {
			store.Close()
			return nil, err
		}
		deps.Directory = directory
	}

	svc, err := iam.NewIAMService(deps, iam.IAMServiceConfig{
		StoreTimeout: cfg.Store.Timeout,
		DevBypass:    opts.Verify && mode == identity.DevBypass,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create IAM service: %w", err)
	}
	bundle.Service = svc
	return bundle, nil
}

// NewVerifier builds the token verifier for the configured identity mode,
// bounded by the verify timeout and fronted by the verification cache.
// It returns nil under the development bypass.
func NewVerifier(ctx context.Context, cfg *config.Config, mode identity.DevMode) (identity.Verifier, string, error) {
	var (
		base     identity.Verifier
		provider = cfg.Identity.Mode
		err      error
	)

	switch mode {
	case identity.DevBypass:
		return nil, "dev-bypass", nil
	case identity.DevTokens:
		base, err = identity.NewDevVerifier(cfg.Auth.Dev.Secret)
		provider = "dev-tokens"
	default:
		id := cfg.Identity
		switch id.Mode {
		case config.ModeOIDC:
			base, err = identity.NewOIDCVerifier(ctx, id.Issuer, id.Audience)
		case config.ModeIntrospection:
			base, err = identity.NewIntrospectionVerifier(ctx, id.Issuer, id.ClientID, id.ClientSecret)
		default:
			base = identity.NewFirebaseVerifier(ctx, id)
		}
	}
	if err != nil {
		return nil, "", fmt.Errorf("configure %s verifier: %w", provider, err)
	}

	var verifier identity.Verifier = identity.WithTimeout(base, cfg.Identity.VerifyTimeout)
	if cfg.Identity.CacheSize > 0 {
		verifier = identity.NewCachingVerifier(verifier, cfg.Identity.CacheSize, identity.DefaultCacheTTL)
	}
	return verifier, provider, nil
}

// NewDirectory connects the provider admin API. Only firebase mode has one.
func NewDirectory(ctx context.Context, cfg config.IdentityConfig) (identity.Directory, error) {
	if cfg.Mode != config.ModeFirebase {
		return nil, fmt.Errorf("identity mode %q has no user directory; only firebase supports lookups and claim sync", cfg.Mode)
	}
	admin, err := identity.NewFirebaseAdmin(ctx, cfg.ProjectID, cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("connect firebase admin: %w", err)
	}
	return admin, nil
}

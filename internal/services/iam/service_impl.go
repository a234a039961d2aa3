package iam

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/terraconstructs/estate/internal/auth"
	"github.com/terraconstructs/estate/internal/identity"
	"github.com/terraconstructs/estate/internal/logging"
	"github.com/terraconstructs/estate/internal/repository"
	"github.com/terraconstructs/estate/internal/telemetry"
)

// DefaultStoreTimeout bounds one principal store call on the request path.
const DefaultStoreTimeout = 5 * time.Second

// MaxListingIDLength bounds favorites entries.
const MaxListingIDLength = 128

// iamService implements the Service interface.
type iamService struct {
	principals repository.PrincipalRepository
	verifier   identity.Verifier
	directory  identity.Directory
	policy     *auth.PolicyTable
	metrics    *telemetry.AuthMetrics
	logger     *slog.Logger
	validate   *validator.Validate

	storeTimeout time.Duration
	devBypass    bool
	now          func() time.Time
}

// IAMServiceDependencies contains the collaborators of the IAM service.
// Verifier and Principals are required; the rest are optional.
type IAMServiceDependencies struct {
	Principals repository.PrincipalRepository
	Verifier   identity.Verifier
	// Directory enables provider lookups and claim sync for PromoteByEmail.
	Directory identity.Directory
	// Policy defaults to the embedded route policy.
	Policy  *auth.PolicyTable
	Metrics *telemetry.AuthMetrics
	Logger  *slog.Logger
}

// IAMServiceConfig contains tunables for IAM service construction.
type IAMServiceConfig struct {
	StoreTimeout time.Duration
	// DevBypass authenticates every request as identity.DevPrincipal.
	// Callers only set it after identity.ResolveDevMode returned DevBypass.
	DevBypass bool
	Now       func() time.Time
}

// NewIAMService creates a new IAM service.
func NewIAMService(deps IAMServiceDependencies, cfg IAMServiceConfig) (Service, error) {
	if deps.Principals == nil {
		return nil, errors.New("iam: principal repository is required")
	}
	if deps.Verifier == nil && !cfg.DevBypass {
		return nil, errors.New("iam: token verifier is required")
	}

	policy := deps.Policy
	if policy == nil {
		var err error
		policy, err = auth.NewPolicyTable()
		if err != nil {
			return nil, fmt.Errorf("iam: load route policy: %w", err)
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	s := &iamService{
		principals:   deps.Principals,
		verifier:     deps.Verifier,
		directory:    deps.Directory,
		policy:       policy,
		metrics:      deps.Metrics,
		logger:       logger.With("component", "iam"),
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		storeTimeout: cfg.StoreTimeout,
		devBypass:    cfg.DevBypass,
		now:          cfg.Now,
	}
	if s.storeTimeout <= 0 {
		s.storeTimeout = DefaultStoreTimeout
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.devBypass {
		s.logger.Warn("development authentication bypass active: every request is authenticated as admin",
			"principal", identity.DevPrincipal.Email)
	}
	return s, nil
}

// storeContext bounds a store call by the configured store timeout.
func (s *iamService) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.storeTimeout)
}

// Ping reports whether the principal store answers.
func (s *iamService) Ping(ctx context.Context) error {
	ctx, cancel := s.storeContext(ctx)
	defer cancel()
	return s.principals.Ping(ctx)
}

// validationError flattens validator output into an ErrInvalidRequest.
func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", auth.ErrInvalidRequest, err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", auth.ErrInvalidRequest, strings.Join(msgs, "; "))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	Server        ServerConfig        `mapstructure:"server" yaml:"server"`
	Database      DatabaseConfig      `mapstructure:"database" yaml:"database"`
	Identity      IdentityConfig      `mapstructure:"identity" yaml:"identity"`
	Store         StoreConfig         `mapstructure:"store" yaml:"store"`
	Auth          AuthConfig          `mapstructure:"auth" yaml:"auth"`
	RateLimit     RateLimitConfig     `mapstructure:"ratelimit" yaml:"ratelimit"`
	Logging       LoggingConfig       `mapstructure:"logging" yaml:"logging"`
	Observability ObservabilityConfig `mapstructure:"observability" yaml:"observability"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr         string        `mapstructure:"addr" yaml:"addr" validate:"required"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout" validate:"gt=0"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout" validate:"gt=0"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout" validate:"gt=0"`
	// H2C serves HTTP/2 over cleartext for deployments behind an h2c-speaking proxy.
	H2C         bool     `mapstructure:"h2c" yaml:"h2c"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// Database drivers.
const (
	DriverSQL   = "sql"
	DriverMongo = "mongo"
)

// DatabaseConfig selects and configures the principal store.
type DatabaseConfig struct {
	// Driver is "sql" (PostgreSQL or SQLite, detected from URL) or "mongo".
	Driver         string `mapstructure:"driver" yaml:"driver" validate:"oneof=sql mongo"`
	URL            string `mapstructure:"url" yaml:"url" validate:"required"`
	MaxConnections int    `mapstructure:"max_connections" yaml:"max_connections" validate:"gt=0"`
	// Name is the MongoDB database name.
	Name string `mapstructure:"name" yaml:"name"`
}

// Identity provider modes.
const (
	ModeFirebase      = "firebase"
	ModeOIDC          = "oidc"
	ModeIntrospection = "introspection"
)

// IdentityConfig configures token verification.
//
// firebase: issuer and audience are derived from ProjectID; CredentialsFile
// enables custom-claims administration.
// oidc: Issuer and Audience are required.
// introspection: Issuer, ClientID and ClientSecret are required.
type IdentityConfig struct {
	Mode            string        `mapstructure:"mode" yaml:"mode" validate:"oneof=firebase oidc introspection"`
	ProjectID       string        `mapstructure:"project_id" yaml:"project_id"`
	Issuer          string        `mapstructure:"issuer" yaml:"issuer"`
	Audience        string        `mapstructure:"audience" yaml:"audience"`
	ClientID        string        `mapstructure:"client_id" yaml:"client_id"`
	ClientSecret    string        `mapstructure:"client_secret" yaml:"client_secret"`
	CredentialsFile string        `mapstructure:"credentials_file" yaml:"credentials_file"`
	VerifyTimeout   time.Duration `mapstructure:"verify_timeout" yaml:"verify_timeout" validate:"gt=0"`
	// CacheSize bounds the verification cache; 0 disables it.
	CacheSize int `mapstructure:"cache_size" yaml:"cache_size" validate:"gte=0"`
}

// FirebaseIssuer returns the securetoken issuer for the configured project.
func (c IdentityConfig) FirebaseIssuer() string {
	return "https://securetoken.google.com/" + c.ProjectID
}

// StoreConfig bounds principal store calls.
type StoreConfig struct {
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"`
}

// AuthConfig holds authentication switches.
type AuthConfig struct {
	Dev DevAuthConfig `mapstructure:"dev" yaml:"dev"`
}

// DevAuthConfig configures the development authentication profile. It is only
// honoured by binaries built with the devauth tag; other builds refuse to start
// when any field is set.
type DevAuthConfig struct {
	Enabled          bool   `mapstructure:"enabled" yaml:"enabled"`
	SkipVerification bool   `mapstructure:"skip_verification" yaml:"skip_verification"`
	Secret           string `mapstructure:"secret" yaml:"secret"`
}

// Requested reports whether any development switch is set.
func (c DevAuthConfig) Requested() bool {
	return c.Enabled || c.SkipVerification || c.Secret != ""
}

// RateLimitConfig limits registration attempts per client address.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second" validate:"gte=0"`
	Burst             int     `mapstructure:"burst" yaml:"burst" validate:"gte=0"`
}

// LoggingConfig controls the process logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=text json"`
}

// ObservabilityConfig enables OTLP trace export when Endpoint is set.
type ObservabilityConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name" yaml:"service_name"`
}

const envPrefix = "ESTATE"

// Load reads configuration from defaults, an optional config file, and
// ESTATE_* environment variables (in increasing precedence).
// An empty configPath searches the default locations.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v)

	if err := readConfigFile(v, configPath); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setupViper(v *viper.Viper) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults double as the key registry AutomaticEnv needs for Unmarshal.
	v.SetDefault("server.addr", "localhost:8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.h2c", false)
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000", "http://127.0.0.1:3000"})

	v.SetDefault("database.driver", DriverSQL)
	v.SetDefault("database.url", "file:estate.db?cache=shared")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.name", "estate")

	v.SetDefault("identity.mode", ModeFirebase)
	v.SetDefault("identity.project_id", "")
	v.SetDefault("identity.issuer", "")
	v.SetDefault("identity.audience", "")
	v.SetDefault("identity.client_id", "")
	v.SetDefault("identity.client_secret", "")
	v.SetDefault("identity.credentials_file", "")
	v.SetDefault("identity.verify_timeout", 5*time.Second)
	v.SetDefault("identity.cache_size", 1024)

	v.SetDefault("store.timeout", 5*time.Second)

	v.SetDefault("auth.dev.enabled", false)
	v.SetDefault("auth.dev.skip_verification", false)
	v.SetDefault("auth.dev.secret", "")

	v.SetDefault("ratelimit.requests_per_second", 1.0)
	v.SetDefault("ratelimit.burst", 5)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("observability.otlp_endpoint", "")
	v.SetDefault("observability.service_name", "estateapi")
}

func readConfigFile(v *viper.Viper, configPath string) error {
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file %s: %w", configPath, err)
		}
		return nil
	}

	v.SetConfigName("estateapi")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "estateapi"))
	}
	v.AddConfigPath("/etc/estateapi")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags and the cross-field rules of each identity mode.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	id := c.Identity
	switch id.Mode {
	case ModeFirebase:
		if id.ProjectID == "" {
			return fmt.Errorf("identity.project_id is required for firebase mode")
		}
	case ModeOIDC:
		if id.Issuer == "" || id.Audience == "" {
			return fmt.Errorf("identity.issuer and identity.audience are required for oidc mode")
		}
	case ModeIntrospection:
		if id.Issuer == "" || id.ClientID == "" || id.ClientSecret == "" {
			return fmt.Errorf("identity.issuer, identity.client_id and identity.client_secret are required for introspection mode")
		}
	}

	if c.Database.Driver == DriverMongo && c.Database.Name == "" {
		return fmt.Errorf("database.name is required for the mongo driver")
	}

	return nil
}

// Redacted returns a copy with secrets masked, suitable for printing.
func (c Config) Redacted() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "********"
	}
	c.Identity.ClientSecret = mask(c.Identity.ClientSecret)
	c.Auth.Dev.Secret = mask(c.Auth.Dev.Secret)
	c.Database.URL = redactURL(c.Database.URL)
	return c
}

func redactURL(raw string) string {
	schemeEnd := strings.Index(raw, "://")
	at := strings.LastIndex(raw, "@")
	if schemeEnd < 0 || at < schemeEnd {
		return raw
	}
	return raw[:schemeEnd+3] + "********" + raw[at:]
}

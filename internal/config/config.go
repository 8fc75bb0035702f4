package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/straye-as/project-access-api/internal/domain"
	"github.com/straye-as/project-access-api/internal/secrets"
	"go.uber.org/zap"
)

// Config holds all application configuration
type Config struct {
	App         AppConfig
	Database    DatabaseConfig
	Auth        AuthConfig
	Portal      PortalConfig
	Authz       AuthzConfig
	Storage     StorageConfig
	AuditExport AuditExportConfig
	Secrets     SecretsConfig
	Logging     LoggingConfig
	Metrics     MetricsConfig
	Server      ServerConfig
	CORS        CORSConfig
	Security    SecurityConfig
	RateLimit   RateLimitConfig
}

type AppConfig struct {
	Name        string
	Environment string
	Port        int
}

type DatabaseConfig struct {
	Host            string
	Port            int
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
}

// AuthConfig holds credentials used to establish the caller identity.
type AuthConfig struct {
	// JWTSecret signs and verifies HS256 session tokens
	JWTSecret string
	// JWTIssuer is checked against the iss claim when set
	JWTIssuer string
	// APIKey identifies trusted backend jobs (service principal)
	APIKey string
}

// PortalConfig controls portal token lifetimes and the renewal sweep.
type PortalConfig struct {
	// TokenLifetimeDays is the default lifetime of a new token
	TokenLifetimeDays int
	// RenewalLeadDays is the window before expiry in which auto-renewing tokens are extended
	RenewalLeadDays int
	// RenewalPeriodDays is how far an auto-renewing token is extended per sweep
	RenewalPeriodDays int
	// RenewalCron is the cron expression of the renewal sweep (5 fields)
	RenewalCron string
	// RenewalTimeout is the max duration of one sweep in seconds
	RenewalTimeout int
}

// AuthzConfig selects the versioned rule table.
type AuthzConfig struct {
	PolicyVersion string
}

type StorageConfig struct {
	Mode                  string
	LocalBasePath         string
	CloudConnectionString string
	CloudContainer        string
}

// AuditExportConfig controls the periodic audit export job.
type AuditExportConfig struct {
	Enabled bool
	Cron    string
	Prefix  string
	Timeout int
	// SettleSeconds holds back records younger than this so in-flight writes are not skipped
	SettleSeconds int
}

type SecretsConfig struct {
	// Source determines where secrets are loaded from: "environment", "vault", or "auto"
	// "auto" uses environment in development, vault in staging/production
	Source       string
	KeyVaultName string
	CacheEnabled bool
	CacheTTL     int // seconds
}

type LoggingConfig struct {
	Level  string
	Format string
}

type MetricsConfig struct {
	Enabled bool
	Path    string
}

type ServerConfig struct {
	ReadTimeout    int
	WriteTimeout   int
	RequestTimeout int
	EnableSwagger  bool
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	// MaxAge is the max age (in seconds) for preflight cache
	MaxAge int
}

// SecurityConfig holds security header configuration
type SecurityConfig struct {
	EnableHSTS            bool
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
	ContentSecurityPolicy string
	FrameOptions          string
	ContentTypeNosniff    bool
	ReferrerPolicy        string
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled bool
	// RequestsPerMinute applies per IP to every API request
	RequestsPerMinute int
	// PortalRequestsPerMinute applies per IP to portal validation and portal-authenticated requests
	PortalRequestsPerMinute int
	WhitelistPaths          []string
}

// ConnectionString builds PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

// ConnMaxLifetimeDuration returns connection max lifetime as duration
func (d *DatabaseConfig) ConnMaxLifetimeDuration() time.Duration {
	return time.Duration(d.ConnMaxLifetime) * time.Second
}

// ReadTimeoutDuration returns read timeout as duration
func (s *ServerConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// WriteTimeoutDuration returns write timeout as duration
func (s *ServerConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

// TokenLifetime returns the default portal token lifetime
func (p *PortalConfig) TokenLifetime() time.Duration {
	return time.Duration(p.TokenLifetimeDays) * 24 * time.Hour
}

// RenewalLead returns the renewal lead window
func (p *PortalConfig) RenewalLead() time.Duration {
	return time.Duration(p.RenewalLeadDays) * 24 * time.Hour
}

// RenewalPeriod returns the extension applied per renewal
func (p *PortalConfig) RenewalPeriod() time.Duration {
	return time.Duration(p.RenewalPeriodDays) * 24 * time.Hour
}

// RenewalTimeoutDuration returns the sweep timeout
func (p *PortalConfig) RenewalTimeoutDuration() time.Duration {
	return time.Duration(p.RenewalTimeout) * time.Second
}

// TimeoutDuration returns the export job timeout
func (a *AuditExportConfig) TimeoutDuration() time.Duration {
	return time.Duration(a.Timeout) * time.Second
}

// SettleDuration returns how old a record must be before it is exported
func (a *AuditExportConfig) SettleDuration() time.Duration {
	return time.Duration(a.SettleSeconds) * time.Second
}

// Validate rejects configurations that would break runtime invariants.
func (c *Config) Validate() error {
	if c.Portal.TokenLifetimeDays <= 0 {
		return errors.New("portal.tokenLifetimeDays must be positive")
	}
	if c.Portal.RenewalLeadDays <= 0 {
		return errors.New("portal.renewalLeadDays must be positive")
	}
	// A renewed token must leave the lead window, otherwise every sweep extends it again.
	if c.Portal.RenewalPeriodDays <= c.Portal.RenewalLeadDays {
		return fmt.Errorf("portal.renewalPeriodDays (%d) must exceed portal.renewalLeadDays (%d)",
			c.Portal.RenewalPeriodDays, c.Portal.RenewalLeadDays)
	}
	if c.Authz.PolicyVersion == "" {
		return errors.New("authz.policyVersion is required")
	}
	if !slices.Contains(domain.PolicyVersions(), c.Authz.PolicyVersion) {
		return fmt.Errorf("authz.policyVersion %q is not one of %s",
			c.Authz.PolicyVersion, strings.Join(domain.PolicyVersions(), ", "))
	}
	if c.AuditExport.SettleSeconds < 0 {
		return errors.New("auditExport.settleSeconds must not be negative")
	}
	return nil
}

// Load loads configuration from file and environment variables.
// It does not contact a secret vault; use LoadWithSecrets for that.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables override config file
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Auth.APIKey == "" {
		cfg.Auth.APIKey = v.GetString("ADMIN_API_KEY")
	}
	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = v.GetString("JWT_SECRET")
	}
	if cfg.Secrets.KeyVaultName == "" {
		cfg.Secrets.KeyVaultName = v.GetString("AZURE_KEY_VAULT_NAME")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// LoadWithSecrets loads configuration and resolves secrets from the configured source.
// Key Vault is used when USE_AZURE_KEY_VAULT=true and the environment is staging or production.
func LoadWithSecrets(ctx context.Context, logger *zap.Logger) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	useKeyVault := strings.ToLower(os.Getenv("USE_AZURE_KEY_VAULT")) == "true"
	isValidEnv := cfg.App.Environment == "staging" || cfg.App.Environment == "production"

	if !useKeyVault {
		logger.Info("USE_AZURE_KEY_VAULT not enabled, using environment variables for secrets",
			zap.String("environment", cfg.App.Environment),
		)
		return cfg, nil
	}

	if !isValidEnv {
		logger.Warn("USE_AZURE_KEY_VAULT is enabled but environment is not staging or production, using environment variables",
			zap.String("environment", cfg.App.Environment),
		)
		return cfg, nil
	}

	if cfg.Secrets.KeyVaultName == "" {
		return nil, fmt.Errorf("AZURE_KEY_VAULT_NAME is required when USE_AZURE_KEY_VAULT=true")
	}

	resolver, err := secrets.NewResolver(&secrets.ResolverConfig{
		Source:       secrets.SourceVault,
		VaultName:    cfg.Secrets.KeyVaultName,
		Environment:  cfg.App.Environment,
		CacheEnabled: cfg.Secrets.CacheEnabled,
		CacheTTL:     time.Duration(cfg.Secrets.CacheTTL) * time.Second,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize secrets resolver: %w", err)
	}

	if err := applySecrets(ctx, cfg, resolver); err != nil {
		return nil, err
	}

	logger.Info("Secrets loaded from vault",
		zap.String("key_vault_name", cfg.Secrets.KeyVaultName),
	)
	return cfg, nil
}

// applySecrets overwrites credential fields with values from the resolver.
// Every binding falls back to its environment variable when set.
func applySecrets(ctx context.Context, cfg *Config, resolver *secrets.Resolver) error {
	bindings := []struct {
		secret string
		env    string
		target *string
		must   bool
	}{
		{"POSTGRES-MAIN-HOST", "DATABASE_HOST", &cfg.Database.Host, false},
		{"POSTGRES-MAIN-USER", "DATABASE_USER", &cfg.Database.User, false},
		{"POSTGRES-MAIN-PASSWORD", "DATABASE_PASSWORD", &cfg.Database.Password, true},
		{"session-jwt-secret", "JWT_SECRET", &cfg.Auth.JWTSecret, true},
		{"admin-api-key", "ADMIN_API_KEY", &cfg.Auth.APIKey, false},
		{"storage-connection-string", "STORAGE_CLOUDCONNECTIONSTRING", &cfg.Storage.CloudConnectionString, false},
	}

	for _, b := range bindings {
		value, err := resolver.GetOrEnv(ctx, b.secret, b.env)
		if err != nil || value == "" {
			if b.must {
				return fmt.Errorf("required secret %s not available: %w", b.secret, err)
			}
			continue
		}
		*b.target = value
	}

	if name := os.Getenv("DEFAULT_DATABASE"); name != "" {
		cfg.Database.Name = name
	}
	if sslMode := os.Getenv("DATABASE_SSLMODE"); sslMode != "" {
		cfg.Database.SSLMode = sslMode
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "Project Access API")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.port", 8080)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "project_access")
	v.SetDefault("database.user", "project_access")
	v.SetDefault("database.password", "project_access")
	v.SetDefault("database.sslMode", "disable")
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.connMaxLifetime", 300)

	v.SetDefault("auth.jwtIssuer", "")

	v.SetDefault("portal.tokenLifetimeDays", 7)
	v.SetDefault("portal.renewalLeadDays", 7)
	v.SetDefault("portal.renewalPeriodDays", 30)
	v.SetDefault("portal.renewalCron", "15 * * * *")
	v.SetDefault("portal.renewalTimeout", 120)

	v.SetDefault("authz.policyVersion", "scoped-v2")

	v.SetDefault("storage.mode", "local")
	v.SetDefault("storage.localBasePath", "./storage")
	v.SetDefault("storage.cloudContainer", "audit-exports")

	v.SetDefault("auditExport.enabled", false)
	v.SetDefault("auditExport.cron", "30 2 * * *")
	v.SetDefault("auditExport.prefix", "audit")
	v.SetDefault("auditExport.timeout", 600)
	v.SetDefault("auditExport.settleSeconds", 300)

	v.SetDefault("secrets.source", "auto")
	v.SetDefault("secrets.cacheEnabled", true)
	v.SetDefault("secrets.cacheTTL", 300)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)
	v.SetDefault("server.requestTimeout", 60)
	v.SetDefault("server.enableSwagger", true)

	v.SetDefault("cors.allowedOrigins", []string{})
	v.SetDefault("cors.allowedMethods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowedHeaders", []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-ID", "X-Portal-Token", "X-Portal-Code"})
	v.SetDefault("cors.exposedHeaders", []string{"Location", "X-Request-ID"})
	v.SetDefault("cors.allowCredentials", true)
	v.SetDefault("cors.maxAge", 300)

	v.SetDefault("security.enableHSTS", false)
	v.SetDefault("security.hstsMaxAge", 31536000)
	v.SetDefault("security.hstsIncludeSubdomains", true)
	v.SetDefault("security.contentSecurityPolicy", "default-src 'self'")
	v.SetDefault("security.frameOptions", "DENY")
	v.SetDefault("security.contentTypeNosniff", true)
	v.SetDefault("security.referrerPolicy", "strict-origin-when-cross-origin")

	v.SetDefault("rateLimit.enabled", true)
	v.SetDefault("rateLimit.requestsPerMinute", 120)
	// Short codes have a small keyspace; keep guessing expensive.
	v.SetDefault("rateLimit.portalRequestsPerMinute", 30)
	v.SetDefault("rateLimit.whitelistPaths", []string{"/health", "/health/db", "/metrics"})
}

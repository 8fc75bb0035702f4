package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
)

// Source selects where secrets come from
type Source string

const (
	// SourceEnvironment reads secrets from environment variables
	SourceEnvironment Source = "environment"
	// SourceVault reads secrets from Azure Key Vault
	SourceVault Source = "vault"
	// SourceAuto picks environment in development and vault everywhere else
	SourceAuto Source = "auto"
)

// ErrSecretNotFound is returned when a secret has no value in the configured source
var ErrSecretNotFound = errors.New("secret not found")

// Store fetches a single secret by name
type Store interface {
	Get(ctx context.Context, name string) (string, error)
}

// ResolverConfig holds configuration for the secrets resolver
type ResolverConfig struct {
	Source       Source
	VaultName    string
	Environment  string
	CacheEnabled bool
	CacheTTL     time.Duration
}

// Resolver resolves named secrets from the configured store
type Resolver struct {
	source Source
	store  Store
	logger *zap.Logger
}

// envStore reads secrets from the process environment
type envStore struct{}

func (envStore) Get(_ context.Context, name string) (string, error) {
	if value := os.Getenv(name); value != "" {
		return value, nil
	}
	return "", fmt.Errorf("%w: environment variable %s", ErrSecretNotFound, name)
}

// NewResolver creates a resolver backed by the environment or Key Vault
func NewResolver(cfg *ResolverConfig, logger *zap.Logger) (*Resolver, error) {
	source := resolveSource(cfg.Source, cfg.Environment)

	var store Store = envStore{}
	if source == SourceVault {
		kv, err := NewKeyVaultStore(&KeyVaultConfig{
			VaultName:    cfg.VaultName,
			CacheEnabled: cfg.CacheEnabled,
			CacheTTL:     cfg.CacheTTL,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize key vault store: %w", err)
		}
		store = kv
	}

	logger.Info("Secrets resolver initialized",
		zap.String("source", string(source)),
		zap.String("environment", cfg.Environment),
	)

	return &Resolver{source: source, store: store, logger: logger}, nil
}

// NewResolverWithStore creates a resolver over an existing store
func NewResolverWithStore(source Source, store Store, logger *zap.Logger) *Resolver {
	return &Resolver{source: source, store: store, logger: logger}
}

func resolveSource(source Source, environment string) Source {
	if source != SourceAuto && source != "" {
		return source
	}
	switch environment {
	case "development", "local", "test", "":
		return SourceEnvironment
	default:
		return SourceVault
	}
}

// Get fetches a secret from the configured store
func (r *Resolver) Get(ctx context.Context, name string) (string, error) {
	return r.store.Get(ctx, name)
}

// GetOrEnv prefers an explicitly set environment variable over the configured store
func (r *Resolver) GetOrEnv(ctx context.Context, name, envName string) (string, error) {
	if value := os.Getenv(envName); value != "" {
		r.logger.Debug("Using environment override for secret",
			zap.String("secret_name", name),
			zap.String("env_name", envName),
		)
		return value, nil
	}
	return r.store.Get(ctx, name)
}

// Source returns the resolved source
func (r *Resolver) Source() Source {
	return r.source
}

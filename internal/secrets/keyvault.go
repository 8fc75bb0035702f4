package secrets

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
	"go.uber.org/zap"
)

// KeyVaultConfig holds configuration for the Key Vault store
type KeyVaultConfig struct {
	VaultName    string
	CacheEnabled bool
	CacheTTL     time.Duration
}

// KeyVaultStore reads secrets from Azure Key Vault with an optional TTL cache
type KeyVaultStore struct {
	client       *azsecrets.Client
	logger       *zap.Logger
	cacheEnabled bool
	cacheTTL     time.Duration

	mu    sync.Mutex
	cache map[string]cachedSecret
}

type cachedSecret struct {
	value     string
	expiresAt time.Time
}

// NewKeyVaultStore creates a Key Vault store using DefaultAzureCredential
// (environment credentials, managed identity, or Azure CLI login).
func NewKeyVaultStore(cfg *KeyVaultConfig, logger *zap.Logger) (*KeyVaultStore, error) {
	if cfg.VaultName == "" {
		return nil, fmt.Errorf("vault name is required")
	}

	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}

	vaultURL := fmt.Sprintf("https://%s.vault.azure.net/", cfg.VaultName)
	client, err := azsecrets.NewClient(vaultURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Key Vault client: %w", err)
	}

	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = 5 * time.Minute
	}

	logger.Info("Azure Key Vault store initialized", zap.String("vault_url", vaultURL))

	return &KeyVaultStore{
		client:       client,
		logger:       logger,
		cacheEnabled: cfg.CacheEnabled,
		cacheTTL:     ttl,
		cache:        make(map[string]cachedSecret),
	}, nil
}

// Get retrieves the latest version of a secret
func (s *KeyVaultStore) Get(ctx context.Context, name string) (string, error) {
	if value, ok := s.cached(name); ok {
		return value, nil
	}

	resp, err := s.client.GetSecret(ctx, name, "", nil)
	if err != nil {
		s.logger.Error("Failed to get secret from Key Vault",
			zap.String("secret_name", name),
			zap.Error(err),
		)
		return "", fmt.Errorf("failed to get secret %q: %w", name, err)
	}
	if resp.Value == nil || *resp.Value == "" {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, name)
	}

	if s.cacheEnabled {
		s.mu.Lock()
		s.cache[name] = cachedSecret{value: *resp.Value, expiresAt: time.Now().Add(s.cacheTTL)}
		s.mu.Unlock()
	}
	return *resp.Value, nil
}

func (s *KeyVaultStore) cached(name string) (string, bool) {
	if !s.cacheEnabled {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.cache[name]
	if !ok {
		return "", false
	}
	if time.Now().After(entry.expiresAt) {
		delete(s.cache, name)
		return "", false
	}
	return entry.value, true
}

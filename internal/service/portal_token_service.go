package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/project-access-api/internal/access"
	"github.com/straye-as/project-access-api/internal/auth"
	"github.com/straye-as/project-access-api/internal/config"
	"github.com/straye-as/project-access-api/internal/domain"
	"github.com/straye-as/project-access-api/internal/metrics"
	"github.com/straye-as/project-access-api/internal/repository"
	"go.uber.org/zap"
)

const (
	secretBytes        = 32
	shortCodeLength    = 8
	shortCodeAlphabet  = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	shortCodeAttempts  = 5
	accessLogPageLimit = 100
)

// PortalValidationResult is the outcome of validating a portal credential.
// An invalid credential is a result, not an error.
type PortalValidationResult struct {
	IsValid      bool
	TokenID      uuid.UUID
	ProjectID    uuid.UUID
	Class        domain.PortalTokenClass
	DocumentTabs []string
	ExpiresAt    time.Time
}

// Grant returns the portal grant of a valid result, nil otherwise
func (r *PortalValidationResult) Grant() *auth.PortalGrant {
	if r == nil || !r.IsValid {
		return nil
	}
	return &auth.PortalGrant{
		TokenID:      r.TokenID,
		ProjectID:    r.ProjectID,
		Class:        r.Class,
		DocumentTabs: append([]string{}, r.DocumentTabs...),
		ExpiresAt:    r.ExpiresAt,
	}
}

// ToDTO converts the result for API responses
func (r *PortalValidationResult) ToDTO() domain.PortalValidationDTO {
	if r == nil || !r.IsValid {
		return domain.PortalValidationDTO{IsValid: false}
	}
	projectID := r.ProjectID
	expiresAt := r.ExpiresAt
	return domain.PortalValidationDTO{
		IsValid:      true,
		ProjectID:    &projectID,
		Class:        string(r.Class),
		DocumentTabs: r.DocumentTabs,
		ExpiresAt:    &expiresAt,
	}
}

// PortalTokenService issues, validates, revokes and renews portal tokens
type PortalTokenService struct {
	ops       scopedOps[domain.PortalToken]
	tokenRepo *repository.PortalTokenRepository
	cfg       config.PortalConfig
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewPortalTokenService creates a new portal token service
func NewPortalTokenService(
	writer *Writer,
	authorizer *access.Authorizer,
	tokenRepo *repository.PortalTokenRepository,
	cfg config.PortalConfig,
	m *metrics.Metrics,
	logger *zap.Logger,
) *PortalTokenService {
	repo := repository.NewScopedRepository[domain.PortalToken](writer.DB(), access.ResourcePortalToken)
	return &PortalTokenService{
		ops:       newScopedOps(writer, authorizer, repo, logger),
		tokenRepo: tokenRepo,
		cfg:       cfg,
		metrics:   m,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source used for expiry decisions
func (s *PortalTokenService) SetClock(now func() time.Time) {
	s.now = func() time.Time { return now().UTC() }
}

// Create issues a token for a project. The plaintext secret is returned once
// and only its hash is stored. Returns nil when the caller may not issue tokens.
func (s *PortalTokenService) Create(ctx context.Context, projectID uuid.UUID, req *domain.CreatePortalTokenRequest) (*domain.PortalTokenCreatedDTO, error) {
	if !req.Class.IsValid() {
		return nil, fmt.Errorf("%w: unknown token class %q", ErrInvalidInput, req.Class)
	}
	if req.Class == domain.PortalTokenContractor && len(req.DocumentTabs) > 0 {
		return nil, fmt.Errorf("%w: contractor tokens do not carry document tabs", ErrInvalidInput)
	}

	p := auth.PrincipalOrAnonymous(ctx)
	if !p.IsAuthenticated() {
		return nil, nil
	}

	secret, err := generateSecret()
	if err != nil {
		return nil, err
	}
	code, err := s.uniqueShortCode(ctx)
	if err != nil {
		return nil, err
	}

	lifetime := s.cfg.TokenLifetime()
	if req.ExpiresInDays > 0 {
		lifetime = time.Duration(req.ExpiresInDays) * 24 * time.Hour
	}

	token := &domain.PortalToken{
		ProjectID:    projectID,
		Class:        req.Class,
		TokenHash:    hashSecret(secret),
		ShortCode:    code,
		Label:        strings.TrimSpace(req.Label),
		DocumentTabs: req.DocumentTabs,
		Active:       true,
		ExpiresAt:    s.now().Add(lifetime),
		AutoRenew:    req.AutoRenew,
		CreatedBy:    p.UserID,
	}

	created, err := s.ops.create(ctx, projectID, token, Pipeline[domain.PortalToken]{})
	if err != nil || created == nil {
		return nil, err
	}

	s.logger.Info("portal token issued",
		zap.String("token_id", created.ID.String()),
		zap.String("project_id", projectID.String()),
		zap.String("class", string(created.Class)),
		zap.Time("expires_at", created.ExpiresAt))

	return &domain.PortalTokenCreatedDTO{Token: created, Secret: secret}, nil
}

// Validate checks a secret or short code. A valid token gets its access counter
// incremented and an access log row; an invalid one has no side effects.
// Errors are returned only for store failures.
func (s *PortalTokenService) Validate(ctx context.Context, credential string, meta auth.RequestMeta) (*PortalValidationResult, error) {
	token, err := s.lookup(ctx, strings.TrimSpace(credential))
	if err != nil {
		return nil, fmt.Errorf("failed to look up portal token: %w", err)
	}

	now := s.now()
	if token == nil || !token.IsValidAt(now) {
		s.metrics.ObservePortalValidation(false)
		return &PortalValidationResult{IsValid: false}, nil
	}

	recorded, err := s.tokenRepo.RecordAccess(ctx, token, now, meta.IPAddress, meta.UserAgent)
	if err != nil {
		return nil, fmt.Errorf("failed to record portal access: %w", err)
	}
	if !recorded {
		s.metrics.ObservePortalValidation(false)
		return &PortalValidationResult{IsValid: false}, nil
	}

	s.metrics.ObservePortalValidation(true)
	return &PortalValidationResult{
		IsValid:      true,
		TokenID:      token.ID,
		ProjectID:    token.ProjectID,
		Class:        token.Class,
		DocumentTabs: token.DocumentTabs,
		ExpiresAt:    token.ExpiresAt,
	}, nil
}

// ValidateGrant validates a credential presented on an API request
func (s *PortalTokenService) ValidateGrant(ctx context.Context, credential string) (*auth.PortalGrant, error) {
	result, err := s.Validate(ctx, credential, auth.RequestMetaFromContext(ctx))
	if err != nil {
		return nil, err
	}
	return result.Grant(), nil
}

// List returns the tokens of a project visible to the caller
func (s *PortalTokenService) List(ctx context.Context, projectID uuid.UUID) ([]domain.PortalToken, error) {
	return s.ops.list(ctx, "created_at DESC", "project_id = ?", projectID)
}

// Revoke deactivates a token. It reports false when nothing was revoked.
func (s *PortalTokenService) Revoke(ctx context.Context, tokenID uuid.UUID) (bool, error) {
	token, err := s.ops.update(ctx, tokenID, map[string]interface{}{"active": false}, Pipeline[domain.PortalToken]{})
	if err != nil || token == nil {
		return false, err
	}
	s.logger.Info("portal token revoked",
		zap.String("token_id", tokenID.String()),
		zap.String("project_id", token.ProjectID.String()))
	return true, nil
}

// AccessLog returns recent validations of a token the caller may read
func (s *PortalTokenService) AccessLog(ctx context.Context, tokenID uuid.UUID) ([]domain.PortalAccessLog, error) {
	token, err := s.ops.get(ctx, tokenID)
	if err != nil || token == nil {
		return nil, err
	}
	logs, err := s.tokenRepo.AccessLog(ctx, tokenID, accessLogPageLimit)
	if err != nil {
		return nil, err
	}
	if logs == nil {
		logs = []domain.PortalAccessLog{}
	}
	return logs, nil
}

// RenewExpiring extends auto-renewing tokens close to expiry. Tokens that have
// already expired are never revived.
func (s *PortalTokenService) RenewExpiring(ctx context.Context) (int64, error) {
	now := s.now()
	renewed, err := s.tokenRepo.RenewExpiring(ctx, now, s.cfg.RenewalLead(), s.cfg.RenewalPeriod())
	if err != nil {
		return renewed, fmt.Errorf("failed to renew portal tokens: %w", err)
	}
	s.metrics.AddPortalRenewals(renewed)
	if renewed > 0 {
		s.logger.Info("portal tokens renewed",
			zap.Int64("count", renewed),
			zap.Duration("period", s.cfg.RenewalPeriod()))
	}
	return renewed, nil
}

func (s *PortalTokenService) lookup(ctx context.Context, credential string) (*domain.PortalToken, error) {
	switch {
	case len(credential) == secretBytes*2 && isHex(credential):
		return s.tokenRepo.FindByHash(ctx, hashSecret(strings.ToLower(credential)))
	case len(credential) == shortCodeLength:
		return s.tokenRepo.FindByShortCode(ctx, credential)
	}
	return nil, nil
}

func (s *PortalTokenService) uniqueShortCode(ctx context.Context) (string, error) {
	for i := 0; i < shortCodeAttempts; i++ {
		code, err := generateShortCode()
		if err != nil {
			return "", err
		}
		taken, err := s.tokenRepo.ShortCodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check short code: %w", err)
		}
		if !taken {
			return code, nil
		}
	}
	return "", ErrShortCodeExhausted
}

func generateSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func generateShortCode() (string, error) {
	var sb strings.Builder
	max := big.NewInt(int64(len(shortCodeAlphabet)))
	for i := 0; i < shortCodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate short code: %w", err)
		}
		sb.WriteByte(shortCodeAlphabet[n.Int64()])
	}
	return sb.String(), nil
}

func hashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

func isHex(s string) bool {
	_, err := hex.DecodeString(s)
	return err == nil
}

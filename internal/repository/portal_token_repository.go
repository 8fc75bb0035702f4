package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/project-access-api/internal/domain"
	"gorm.io/gorm"
)

// PortalTokenRepository handles the credential side of portal tokens: lookups by
// secret hash or short code, access accounting and the renewal sweep. Scoped
// listing and revocation go through a ScopedRepository.
type PortalTokenRepository struct {
	db *gorm.DB
}

func NewPortalTokenRepository(db *gorm.DB) *PortalTokenRepository {
	return &PortalTokenRepository{db: db}
}

// WithTx returns a copy of the repository bound to tx
func (r *PortalTokenRepository) WithTx(tx *gorm.DB) *PortalTokenRepository {
	return &PortalTokenRepository{db: tx}
}

// FindByHash returns the token whose secret hashes to tokenHash, nil when unknown
func (r *PortalTokenRepository) FindByHash(ctx context.Context, tokenHash string) (*domain.PortalToken, error) {
	var token domain.PortalToken
	err := r.db.WithContext(ctx).First(&token, "token_hash = ?", tokenHash).Error
	return notFound(&token, err)
}

// FindByShortCode returns the token with the given short code, ignoring case
func (r *PortalTokenRepository) FindByShortCode(ctx context.Context, code string) (*domain.PortalToken, error) {
	var token domain.PortalToken
	err := r.db.WithContext(ctx).First(&token, "short_code = ?", strings.ToUpper(code)).Error
	return notFound(&token, err)
}

// ShortCodeExists reports whether a short code is taken
func (r *PortalTokenRepository) ShortCodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.PortalToken{}).Where("short_code = ?", code).Count(&count).Error
	return count > 0, err
}

// RecordAccess atomically increments the access counter of a token that is
// still valid at now and appends an access log row. It returns false when the
// token stopped being valid between lookup and increment.
func (r *PortalTokenRepository) RecordAccess(ctx context.Context, token *domain.PortalToken, now time.Time, ipAddress, userAgent string) (bool, error) {
	recorded := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&domain.PortalToken{}).
			Where("id = ? AND active = ? AND expires_at > ?", token.ID, true, now).
			Updates(map[string]interface{}{
				"access_count":     gorm.Expr("access_count + 1"),
				"last_accessed_at": now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}

		entry := &domain.PortalAccessLog{
			TokenID:    token.ID,
			ProjectID:  token.ProjectID,
			AccessedAt: now,
			IPAddress:  ipAddress,
			UserAgent:  userAgent,
		}
		if err := tx.Create(entry).Error; err != nil {
			return err
		}
		recorded = true
		return nil
	})
	return recorded, err
}

// RenewExpiring extends every auto-renewing, active token whose expiry falls in
// (now, now+lead] by period. Expired tokens are never touched, and a renewed
// token leaves the window as long as period exceeds lead.
func (r *PortalTokenRepository) RenewExpiring(ctx context.Context, now time.Time, lead, period time.Duration) (int64, error) {
	var due []domain.PortalToken
	err := r.db.WithContext(ctx).
		Select("id", "expires_at").
		Where("auto_renew = ? AND active = ? AND expires_at > ? AND expires_at <= ?", true, true, now, now.Add(lead)).
		Find(&due).Error
	if err != nil {
		return 0, err
	}

	var renewed int64
	for _, token := range due {
		// The window is re-checked so a concurrent sweep cannot extend twice.
		result := r.db.WithContext(ctx).Model(&domain.PortalToken{}).
			Where("id = ? AND active = ? AND expires_at > ? AND expires_at <= ?", token.ID, true, now, now.Add(lead)).
			Updates(map[string]interface{}{
				"expires_at":      token.ExpiresAt.Add(period),
				"renewal_count":   gorm.Expr("renewal_count + 1"),
				"last_renewed_at": now,
			})
		if result.Error != nil {
			return renewed, result.Error
		}
		renewed += result.RowsAffected
	}
	return renewed, nil
}

// AccessLog returns the most recent access log rows of a token
func (r *PortalTokenRepository) AccessLog(ctx context.Context, tokenID uuid.UUID, limit int) ([]domain.PortalAccessLog, error) {
	var entries []domain.PortalAccessLog
	err := r.db.WithContext(ctx).
		Where("token_id = ?", tokenID).
		Order("accessed_at DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/straye-as/project-access-api/internal/domain"
	"go.uber.org/zap"
)

// RoleStore reads global roles. GetRole returns (nil, nil) when the user has no role row.
type RoleStore interface {
	GetRole(ctx context.Context, userID uuid.UUID) (*domain.UserRole, error)
}

// RoleResolver resolves the global role of a user on every call. Roles are never
// cached, so an admin demotion takes effect on the next request.
type RoleResolver struct {
	store  RoleStore
	logger *zap.Logger
}

// NewRoleResolver creates a new role resolver
func NewRoleResolver(store RoleStore, logger *zap.Logger) *RoleResolver {
	return &RoleResolver{store: store, logger: logger}
}

// ResolveRole returns the user's global role. A missing row, an unknown value or a
// lookup failure all resolve to user.
func (r *RoleResolver) ResolveRole(ctx context.Context, userID uuid.UUID) domain.Role {
	row, err := r.store.GetRole(ctx, userID)
	if err != nil {
		r.logger.Error("role lookup failed, resolving to least privilege",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		return domain.RoleUser
	}
	if row == nil || !row.Role.IsValid() {
		return domain.RoleUser
	}
	return row.Role
}

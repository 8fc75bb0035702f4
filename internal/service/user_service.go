package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/straye-as/project-access-api/internal/access"
	"github.com/straye-as/project-access-api/internal/auth"
	"github.com/straye-as/project-access-api/internal/domain"
	"github.com/straye-as/project-access-api/internal/mapper"
	"github.com/straye-as/project-access-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const entityUserRole = "user_role"

// UserService handles profiles and global roles
type UserService struct {
	writer     *Writer
	userRepo   *repository.UserRepository
	roleRepo   *repository.UserRoleRepository
	authorizer *access.Authorizer
	logger     *zap.Logger
}

// NewUserService creates a new user service
func NewUserService(
	writer *Writer,
	userRepo *repository.UserRepository,
	roleRepo *repository.UserRoleRepository,
	authorizer *access.Authorizer,
	logger *zap.Logger,
) *UserService {
	return &UserService{
		writer:     writer,
		userRepo:   userRepo,
		roleRepo:   roleRepo,
		authorizer: authorizer,
		logger:     logger,
	}
}

// Signup creates the profile of the authenticated caller together with its
// role. The first user ever to sign up becomes admin; the admin seed row makes
// that decision race-free.
func (s *UserService) Signup(ctx context.Context, req *domain.SignupRequest) (*domain.UserDTO, error) {
	p := auth.PrincipalOrAnonymous(ctx)
	if !p.IsAuthenticated() {
		return nil, ErrUnauthorized
	}

	user := &domain.User{
		ID:          p.UserID,
		Email:       strings.ToLower(strings.TrimSpace(req.Email)),
		DisplayName: strings.TrimSpace(req.DisplayName),
		Confirmed:   req.Confirmed,
	}

	pipeline := Pipeline[domain.UserRole]{
		Validate: func(ctx context.Context, m *Mutation[domain.UserRole]) error {
			existing, err := s.userRepo.GetByID(ctx, user.ID)
			if err != nil {
				return fmt.Errorf("failed to look up user: %w", err)
			}
			if existing != nil {
				return ErrUserExists
			}
			return nil
		},
		Persist: func(ctx context.Context, tx *gorm.DB, m *Mutation[domain.UserRole]) (int64, error) {
			if err := s.userRepo.WithTx(tx).Create(ctx, user); err != nil {
				return 0, err
			}
			seeded, err := s.roleRepo.WithTx(tx).ClaimAdminSeed(ctx, user.ID)
			if err != nil {
				return 0, fmt.Errorf("failed to claim admin seed: %w", err)
			}
			role := &domain.UserRole{UserID: user.ID, Role: domain.RoleUser}
			if seeded {
				role.Role = domain.RoleAdmin
			}
			if err := s.roleRepo.WithTx(tx).Upsert(ctx, role); err != nil {
				return 0, err
			}
			m.After = role
			return 1, nil
		},
	}

	m := &Mutation[domain.UserRole]{
		Principal:  p,
		ChangeType: domain.ChangeCreated,
		EntityType: entityUserRole,
		EntityID:   user.ID,
	}
	if _, err := Run(ctx, s.writer, pipeline, m); err != nil {
		if errors.Is(err, ErrInvariantViolation) {
			return nil, ErrUserExists
		}
		return nil, err
	}

	s.logger.Info("user signed up",
		zap.String("user_id", user.ID.String()),
		zap.String("role", string(m.After.Role)))

	dto := mapper.ToUserDTO(user, m.After.Role)
	return &dto, nil
}

// Me returns the profile of the authenticated caller, nil when it has none
func (s *UserService) Me(ctx context.Context) (*domain.UserDTO, error) {
	p := auth.PrincipalOrAnonymous(ctx)
	if !p.IsAuthenticated() {
		return nil, nil
	}
	user, err := s.userRepo.GetByID(ctx, p.UserID)
	if err != nil || user == nil {
		return nil, err
	}
	dto := mapper.ToUserDTO(user, p.Role)
	return &dto, nil
}

// SetRole changes the global role of a user. Only admins may do this; other
// callers get (nil, nil). The last admin cannot be demoted.
func (s *UserService) SetRole(ctx context.Context, targetID uuid.UUID, role domain.Role) (*domain.UserDTO, error) {
	if !role.IsValid() {
		return nil, ErrInvalidRole
	}

	p := auth.PrincipalOrAnonymous(ctx)
	allowed := s.authorizer.Authorize(ctx, p, access.Request{
		Resource:  access.ResourceUserRole,
		Operation: access.OpUpdate,
		OwnerID:   targetID,
	})
	if !allowed {
		return nil, nil
	}

	user, err := s.userRepo.GetByID(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return nil, ErrNotFound
	}

	pipeline := Pipeline[domain.UserRole]{
		Validate: func(ctx context.Context, m *Mutation[domain.UserRole]) error {
			if m.Before == nil || m.Before.Role != domain.RoleAdmin || role == domain.RoleAdmin {
				return nil
			}
			admins, err := s.roleRepo.CountAdmins(ctx)
			if err != nil {
				return fmt.Errorf("failed to count admins: %w", err)
			}
			if admins <= 1 {
				return fmt.Errorf("%w: cannot demote the last admin", ErrInvariantViolation)
			}
			return nil
		},
		Persist: func(ctx context.Context, tx *gorm.DB, m *Mutation[domain.UserRole]) (int64, error) {
			updated := &domain.UserRole{UserID: targetID, Role: role, GrantedBy: p.ActorID()}
			if err := s.roleRepo.WithTx(tx).Upsert(ctx, updated); err != nil {
				return 0, err
			}
			m.After = updated
			return 1, nil
		},
	}

	before, err := s.roleRepo.GetRole(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up role: %w", err)
	}
	m := &Mutation[domain.UserRole]{
		Principal:  p,
		ChangeType: domain.ChangeUpdated,
		EntityType: entityUserRole,
		EntityID:   targetID,
		Before:     before,
	}
	if before == nil {
		m.ChangeType = domain.ChangeCreated
	}

	if _, err := Run(ctx, s.writer, pipeline, m); err != nil {
		return nil, err
	}

	s.logger.Info("user role changed",
		zap.String("user_id", targetID.String()),
		zap.String("role", string(role)),
		zap.String("changed_by", p.UserID.String()))

	dto := mapper.ToUserDTO(user, role)
	return &dto, nil
}

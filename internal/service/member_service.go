package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/straye-as/project-access-api/internal/access"
	"github.com/straye-as/project-access-api/internal/auth"
	"github.com/straye-as/project-access-api/internal/domain"
	"github.com/straye-as/project-access-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MemberService manages project memberships and positions
type MemberService struct {
	ops           scopedOps[domain.ProjectMember]
	memberRepo    *repository.MemberRepository
	userRepo      *repository.UserRepository
	notifications *NotificationService
	logger        *zap.Logger
}

// NewMemberService creates a new MemberService instance
func NewMemberService(
	writer *Writer,
	authorizer *access.Authorizer,
	memberRepo *repository.MemberRepository,
	userRepo *repository.UserRepository,
	notifications *NotificationService,
	logger *zap.Logger,
) *MemberService {
	repo := repository.NewScopedRepository[domain.ProjectMember](writer.DB(), access.ResourceProjectMember)
	return &MemberService{
		ops:           newScopedOps(writer, authorizer, repo, logger),
		memberRepo:    memberRepo,
		userRepo:      userRepo,
		notifications: notifications,
		logger:        logger,
	}
}

// List returns the members of a project visible to the caller
func (s *MemberService) List(ctx context.Context, projectID uuid.UUID) ([]domain.ProjectMember, error) {
	return s.ops.list(ctx, "created_at ASC", "project_id = ?", projectID)
}

// Add invites a user into a project and notifies them
func (s *MemberService) Add(ctx context.Context, projectID uuid.UUID, req *domain.AddMemberRequest) (*domain.ProjectMember, error) {
	if !req.Role.IsValid() {
		return nil, fmt.Errorf("%w: unknown member role %q", ErrInvalidInput, req.Role)
	}
	if req.Position != "" && !req.Position.IsValid() {
		return nil, fmt.Errorf("%w: unknown position %q", ErrInvalidInput, req.Position)
	}

	p := auth.PrincipalOrAnonymous(ctx)
	member := &domain.ProjectMember{
		ProjectID: projectID,
		UserID:    req.UserID,
		Role:      req.Role,
		InvitedBy: p.ActorID(),
	}
	member.SetPosition(req.Position)

	return s.ops.create(ctx, projectID, member, Pipeline[domain.ProjectMember]{
		Validate: func(ctx context.Context, m *Mutation[domain.ProjectMember]) error {
			user, err := s.userRepo.GetByID(ctx, req.UserID)
			if err != nil {
				return fmt.Errorf("failed to look up user: %w", err)
			}
			if user == nil {
				return fmt.Errorf("%w: user %s", ErrNotFound, req.UserID)
			}
			return checkPositionVacant(ctx, s.memberRepo, projectID, req.Position, uuid.Nil)
		},
		Notify: func(ctx context.Context, tx *gorm.DB, m *Mutation[domain.ProjectMember]) error {
			entityID := m.After.ID
			return s.notifications.NotifyUser(ctx, tx, m.After.UserID, ProjectNotice{
				ProjectID:  projectID,
				Type:       domain.NotificationMemberAdded,
				Title:      "Added to project",
				Message:    fmt.Sprintf("You were added to the project as %s", m.After.Role),
				EntityType: string(access.ResourceProjectMember),
				EntityID:   &entityID,
			})
		},
	})
}

// AssignPosition sets or clears a member's position. Primary and secondary can
// each be held by one member per project; a second holder is an invariant
// violation and nothing is written.
func (s *MemberService) AssignPosition(ctx context.Context, memberID uuid.UUID, position domain.Position) (*domain.ProjectMember, error) {
	if position != "" && !position.IsValid() {
		return nil, fmt.Errorf("%w: unknown position %q", ErrInvalidInput, position)
	}

	var exclusive interface{}
	if position.Exclusive() {
		exclusive = position
	}
	updates := map[string]interface{}{
		"position":           position,
		"exclusive_position": exclusive,
	}

	member, err := s.ops.update(ctx, memberID, updates, Pipeline[domain.ProjectMember]{
		Derive: func(ctx context.Context, tx *gorm.DB, m *Mutation[domain.ProjectMember]) error {
			return checkPositionVacant(ctx, s.memberRepo.WithTx(tx), m.Before.ProjectID, position, memberID)
		},
	})
	if err != nil || member == nil {
		return nil, err
	}

	s.logger.Info("member position assigned",
		zap.String("member_id", memberID.String()),
		zap.String("project_id", member.ProjectID.String()),
		zap.String("position", string(position)))
	return member, nil
}

// Remove deletes a membership. Members may remove themselves.
func (s *MemberService) Remove(ctx context.Context, memberID uuid.UUID) (bool, error) {
	return s.ops.remove(ctx, memberID, Pipeline[domain.ProjectMember]{})
}

func checkPositionVacant(ctx context.Context, repo *repository.MemberRepository, projectID uuid.UUID, position domain.Position, self uuid.UUID) error {
	if !position.Exclusive() {
		return nil
	}
	holder, err := repo.PositionHolder(ctx, projectID, position)
	if err != nil {
		return fmt.Errorf("failed to look up position holder: %w", err)
	}
	if holder != nil && holder.ID != self {
		return fmt.Errorf("%w: position %s is already held in this project", ErrInvariantViolation, position)
	}
	return nil
}

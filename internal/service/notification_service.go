package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/straye-as/project-access-api/internal/access"
	"github.com/straye-as/project-access-api/internal/auth"
	"github.com/straye-as/project-access-api/internal/domain"
	"github.com/straye-as/project-access-api/internal/mapper"
	"github.com/straye-as/project-access-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// NotificationService handles business logic for notifications
type NotificationService struct {
	notificationRepo *repository.NotificationRepository
	memberRepo       *repository.MemberRepository
	authorizer       *access.Authorizer
	logger           *zap.Logger
}

// NewNotificationService creates a new NotificationService instance
func NewNotificationService(
	notificationRepo *repository.NotificationRepository,
	memberRepo *repository.MemberRepository,
	authorizer *access.Authorizer,
	logger *zap.Logger,
) *NotificationService {
	return &NotificationService{
		notificationRepo: notificationRepo,
		memberRepo:       memberRepo,
		authorizer:       authorizer,
		logger:           logger,
	}
}

// ProjectNotice is a notification sent to the members of a project
type ProjectNotice struct {
	ProjectID  uuid.UUID
	Actor      *uuid.UUID
	Type       domain.NotificationType
	Title      string
	Message    string
	EntityType string
	EntityID   *uuid.UUID
}

// NotifyProjectMembers creates one notification per project member except the
// actor, using tx. It returns the number of notifications created.
func (s *NotificationService) NotifyProjectMembers(ctx context.Context, tx *gorm.DB, notice ProjectNotice) (int, error) {
	userIDs, err := s.memberRepo.WithTx(tx).ListUserIDs(ctx, notice.ProjectID, notice.Actor)
	if err != nil {
		return 0, fmt.Errorf("failed to list project members: %w", err)
	}
	if len(userIDs) == 0 {
		return 0, nil
	}

	projectID := notice.ProjectID
	notifications := make([]*domain.Notification, 0, len(userIDs))
	for _, userID := range userIDs {
		notifications = append(notifications, &domain.Notification{
			UserID:     userID,
			ProjectID:  &projectID,
			Type:       notice.Type,
			Title:      notice.Title,
			Message:    notice.Message,
			EntityType: notice.EntityType,
			EntityID:   notice.EntityID,
		})
	}

	if err := s.notificationRepo.WithTx(tx).CreateBatch(ctx, notifications); err != nil {
		return 0, fmt.Errorf("failed to create notifications: %w", err)
	}

	s.logger.Debug("project notifications created",
		zap.String("project_id", projectID.String()),
		zap.String("type", string(notice.Type)),
		zap.Int("count", len(notifications)))
	return len(notifications), nil
}

// NotifyUser creates a single notification using tx
func (s *NotificationService) NotifyUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, notice ProjectNotice) error {
	projectID := notice.ProjectID
	notification := &domain.Notification{
		UserID:     userID,
		ProjectID:  &projectID,
		Type:       notice.Type,
		Title:      notice.Title,
		Message:    notice.Message,
		EntityType: notice.EntityType,
		EntityID:   notice.EntityID,
	}
	if err := s.notificationRepo.WithTx(tx).Create(ctx, notification); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// List returns the caller's notifications with pagination
func (s *NotificationService) List(ctx context.Context, page, pageSize int, unreadOnly bool, notificationType string) (*domain.PaginatedResponse, error) {
	p := auth.PrincipalOrAnonymous(ctx)
	scope, err := s.authorizer.Scope(ctx, p, access.ResourceNotification, access.OpRead)
	if err != nil {
		s.logger.Warn("notification scope lookup failed", zap.Error(err))
		scope = access.Scope{}
	}
	if scope.All && p.IsAuthenticated() {
		// the inbox is always the caller's own, admins included
		scope = access.Scope{SelfColumn: "user_id", SelfID: p.UserID}
	}

	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > repository.MaxPageSize {
		pageSize = repository.MaxPageSize
	}
	if page < 1 {
		page = 1
	}

	notifications, total, err := s.notificationRepo.List(ctx, scope, page, pageSize, unreadOnly, notificationType)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	resp := mapper.ToPaginatedResponse(mapper.ToNotificationDTOs(notifications), total, page, pageSize)
	return &resp, nil
}

// MarkAsRead marks one of the caller's notifications read. It reports false
// when the notification does not exist or belongs to someone else.
func (s *NotificationService) MarkAsRead(ctx context.Context, notificationID uuid.UUID) (bool, error) {
	p := auth.PrincipalOrAnonymous(ctx)
	scope, err := s.authorizer.Scope(ctx, p, access.ResourceNotification, access.OpUpdate)
	if err != nil || scope.Empty() {
		return false, nil
	}
	if scope.All && p.IsAuthenticated() {
		scope = access.Scope{SelfColumn: "user_id", SelfID: p.UserID}
	}

	rows, err := s.notificationRepo.MarkAsRead(ctx, scope, notificationID)
	if err != nil {
		return false, fmt.Errorf("failed to mark notification as read: %w", err)
	}
	return rows > 0, nil
}

// UnreadCount returns the number of unread notifications of the caller
func (s *NotificationService) UnreadCount(ctx context.Context) (*domain.UnreadCountDTO, error) {
	p := auth.PrincipalOrAnonymous(ctx)
	if !p.IsAuthenticated() {
		return nil, ErrUnauthorized
	}

	count, err := s.notificationRepo.CountUnread(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return &domain.UnreadCountDTO{Count: count}, nil
}

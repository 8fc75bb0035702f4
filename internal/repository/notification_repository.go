package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/project-access-api/internal/access"
	"github.com/straye-as/project-access-api/internal/domain"
	"gorm.io/gorm"
)

type NotificationRepository struct {
	db      *gorm.DB
	binding access.Binding
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	binding, _ := access.BindingFor(access.ResourceNotification)
	return &NotificationRepository{db: db, binding: binding}
}

// WithTx returns a copy of the repository bound to tx
func (r *NotificationRepository) WithTx(tx *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: tx, binding: r.binding}
}

func (r *NotificationRepository) Create(ctx context.Context, notification *domain.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

// CreateBatch inserts notifications in one statement
func (r *NotificationRepository) CreateBatch(ctx context.Context, notifications []*domain.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(notifications).Error
}

func (r *NotificationRepository) List(ctx context.Context, scope access.Scope, page, pageSize int, unreadOnly bool, notificationType string) ([]domain.Notification, int64, error) {
	var notifications []domain.Notification
	var total int64

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		pageSize = 20
	}

	query := ApplyAccessScope(r.db.WithContext(ctx).Model(&domain.Notification{}), r.binding, scope)

	if unreadOnly {
		query = query.Where("read = ?", false)
	}

	if notificationType != "" {
		query = query.Where("type = ?", notificationType)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Offset(offset).Limit(pageSize).Order("created_at DESC").Find(&notifications).Error

	return notifications, total, err
}

// MarkAsRead marks one notification read if scope admits it
func (r *NotificationRepository) MarkAsRead(ctx context.Context, scope access.Scope, id uuid.UUID) (int64, error) {
	now := time.Now().UTC()
	result := ApplyAccessScope(r.db.WithContext(ctx).Model(&domain.Notification{}), r.binding, scope).
		Where("id = ?", id).
		Updates(map[string]interface{}{"read": true, "read_at": now})
	return result.RowsAffected, result.Error
}

func (r *NotificationRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Count(&count).Error
	return count, err
}

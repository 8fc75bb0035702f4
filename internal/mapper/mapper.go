package mapper

import (
	"encoding/json"
	"math"

	"github.com/straye-as/project-access-api/internal/domain"
)

const timeLayout = "2006-01-02T15:04:05Z"

// ToUserDTO converts User and its role to UserDTO
func ToUserDTO(user *domain.User, role domain.Role) domain.UserDTO {
	return domain.UserDTO{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Role:        role,
		Confirmed:   user.Confirmed,
		CreatedAt:   user.CreatedAt.UTC().Format(timeLayout),
	}
}

// ToAuditRecordDTO converts AuditRecord to AuditRecordDTO
func ToAuditRecordDTO(record *domain.AuditRecord) domain.AuditRecordDTO {
	changed := record.ChangedFields
	if changed == nil {
		changed = []string{}
	}
	return domain.AuditRecordDTO{
		ID:            record.ID,
		EntityType:    record.EntityType,
		EntityID:      record.EntityID,
		ProjectID:     record.ProjectID,
		ChangeType:    record.ChangeType,
		OldValues:     rawJSON(record.OldValues),
		NewValues:     rawJSON(record.NewValues),
		ChangedFields: changed,
		ChangedBy:     record.ChangedBy,
		ActorKind:     record.ActorKind,
		RequestID:     record.RequestID,
		ChangedAt:     record.ChangedAt.UTC().Format(timeLayout),
	}
}

// ToAuditRecordDTOs converts a slice of audit records
func ToAuditRecordDTOs(records []domain.AuditRecord) []domain.AuditRecordDTO {
	dtos := make([]domain.AuditRecordDTO, len(records))
	for i := range records {
		dtos[i] = ToAuditRecordDTO(&records[i])
	}
	return dtos
}

// ToNotificationDTO converts Notification to NotificationDTO
func ToNotificationDTO(notification *domain.Notification) domain.NotificationDTO {
	return domain.NotificationDTO{
		ID:         notification.ID,
		ProjectID:  notification.ProjectID,
		Type:       notification.Type,
		Title:      notification.Title,
		Message:    notification.Message,
		Read:       notification.Read,
		CreatedAt:  notification.CreatedAt.UTC().Format(timeLayout),
		EntityID:   notification.EntityID,
		EntityType: notification.EntityType,
	}
}

// ToNotificationDTOs converts a slice of notifications
func ToNotificationDTOs(notifications []domain.Notification) []domain.NotificationDTO {
	dtos := make([]domain.NotificationDTO, len(notifications))
	for i := range notifications {
		dtos[i] = ToNotificationDTO(&notifications[i])
	}
	return dtos
}

// ToProcurementHistoryDTOs converts status history rows
func ToProcurementHistoryDTOs(history []domain.ProcurementStatusHistory) []domain.ProcurementHistoryDTO {
	dtos := make([]domain.ProcurementHistoryDTO, len(history))
	for i, h := range history {
		dtos[i] = domain.ProcurementHistoryDTO{
			FromStatus: h.FromStatus,
			ToStatus:   h.ToStatus,
			ChangedBy:  h.ChangedBy,
			ActorKind:  h.ActorKind,
			ChangedAt:  h.ChangedAt.UTC().Format(timeLayout),
		}
	}
	return dtos
}

// ToPaginatedResponse wraps a page of data
func ToPaginatedResponse(data interface{}, total int64, page, pageSize int) domain.PaginatedResponse {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(pageSize)))
	}
	return domain.PaginatedResponse{
		Data:       data,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}

func rawJSON(s *string) json.RawMessage {
	if s == nil || *s == "" {
		return json.RawMessage("null")
	}
	return json.RawMessage(*s)
}

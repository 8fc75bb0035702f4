package mapper_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/project-access-api/internal/domain"
	"github.com/straye-as/project-access-api/internal/mapper"
	"github.com/stretchr/testify/assert"
)

func TestToAuditRecordDTO_DeleteRecord(t *testing.T) {
	old := `{"name":"Shop 4"}`
	record := &domain.AuditRecord{
		ID:         uuid.New(),
		EntityType: "tenant",
		ChangeType: domain.ChangeDeleted,
		OldValues:  &old,
		ActorKind:  "service",
		ChangedAt:  time.Date(2026, 3, 1, 12, 30, 0, 0, time.FixedZone("CET", 3600)),
	}

	dto := mapper.ToAuditRecordDTO(record)

	assert.Nil(t, dto.EntityID)
	assert.JSONEq(t, old, string(dto.OldValues))
	assert.Equal(t, "null", string(dto.NewValues))
	assert.Equal(t, []string{}, dto.ChangedFields)
	assert.Equal(t, "2026-03-01T11:30:00Z", dto.ChangedAt)
}

func TestToUserDTO(t *testing.T) {
	user := &domain.User{Email: "alice@example.com", DisplayName: "Alice", Confirmed: true}
	user.ID = uuid.New()
	user.CreatedAt = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	dto := mapper.ToUserDTO(user, domain.RoleModerator)

	assert.Equal(t, user.ID, dto.ID)
	assert.Equal(t, domain.RoleModerator, dto.Role)
	assert.Equal(t, "2026-01-02T03:04:05Z", dto.CreatedAt)
}

func TestToProcurementHistoryDTOs(t *testing.T) {
	from := domain.ProcurementOrdered
	history := []domain.ProcurementStatusHistory{
		{ToStatus: domain.ProcurementPending, ActorKind: "authenticated"},
		{FromStatus: &from, ToStatus: domain.ProcurementDelivered, ActorKind: "anonymous"},
	}

	dtos := mapper.ToProcurementHistoryDTOs(history)

	assert.Len(t, dtos, 2)
	assert.Nil(t, dtos[0].FromStatus)
	assert.Equal(t, domain.ProcurementOrdered, *dtos[1].FromStatus)
	assert.Equal(t, "anonymous", dtos[1].ActorKind)
}

func TestToPaginatedResponse(t *testing.T) {
	tests := []struct {
		total    int64
		pageSize int
		want     int
	}{
		{0, 20, 0},
		{20, 20, 1},
		{21, 20, 2},
		{5, 0, 0},
	}

	for _, tt := range tests {
		resp := mapper.ToPaginatedResponse([]int{}, tt.total, 1, tt.pageSize)
		assert.Equal(t, tt.want, resp.TotalPages, "total=%d pageSize=%d", tt.total, tt.pageSize)
	}
}

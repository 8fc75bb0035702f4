package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/project-access-api/internal/access"
	"github.com/straye-as/project-access-api/internal/domain"
	"gorm.io/gorm"
)

// AuditRecordFilter represents filter options for querying audit records
type AuditRecordFilter struct {
	ProjectID  *uuid.UUID
	EntityType string
	EntityID   *uuid.UUID
	ChangeType *domain.ChangeType
	ChangedBy  *uuid.UUID
	StartTime  *time.Time
	EndTime    *time.Time
	Sort       SortConfig
}

// auditSortFields maps sortable API fields to audit_records columns
var auditSortFields = map[string]string{
	"changedAt":  "changed_at",
	"entityType": "entity_type",
	"changeType": "change_type",
}

// AuditRecordRepository handles audit record data access. Records are
// append-only: the repository has no update or delete methods.
type AuditRecordRepository struct {
	db      *gorm.DB
	binding access.Binding
}

// NewAuditRecordRepository creates a new audit record repository
func NewAuditRecordRepository(db *gorm.DB) *AuditRecordRepository {
	binding, _ := access.BindingFor(access.ResourceAuditRecord)
	return &AuditRecordRepository{db: db, binding: binding}
}

// WithTx returns a copy of the repository bound to tx
func (r *AuditRecordRepository) WithTx(tx *gorm.DB) *AuditRecordRepository {
	return &AuditRecordRepository{db: tx, binding: r.binding}
}

// Create inserts a new audit record
func (r *AuditRecordRepository) Create(ctx context.Context, record *domain.AuditRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// List retrieves audit records visible under scope with pagination and optional filters
func (r *AuditRecordRepository) List(ctx context.Context, scope access.Scope, filter *AuditRecordFilter, page, pageSize int) ([]domain.AuditRecord, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	query := ApplyAccessScope(r.db.WithContext(ctx).Model(&domain.AuditRecord{}), r.binding, scope)
	query = r.applyFilters(query, filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var sort SortConfig
	if filter != nil {
		sort = filter.Sort
	}

	var records []domain.AuditRecord
	err := query.
		Order(BuildOrderClause(sort, auditSortFields, "changed_at")).
		Order("id ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&records).Error
	return records, total, err
}

// ListByEntity retrieves the history of one entity visible under scope, oldest first
func (r *AuditRecordRepository) ListByEntity(ctx context.Context, scope access.Scope, entityType string, entityID uuid.UUID, limit int) ([]domain.AuditRecord, error) {
	var records []domain.AuditRecord
	err := ApplyAccessScope(r.db.WithContext(ctx).Model(&domain.AuditRecord{}), r.binding, scope).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("changed_at ASC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// AuditCursor is a position in the audit trail ordered by (changed_at, id)
type AuditCursor struct {
	ChangedAt time.Time
	ID        uuid.UUID
}

// ListAfter returns up to limit records positioned after cursor and changed no
// later than cutoff, ordered by (changed_at, id). A cursor without id starts
// strictly after its timestamp.
func (r *AuditRecordRepository) ListAfter(ctx context.Context, cursor AuditCursor, cutoff time.Time, limit int) ([]domain.AuditRecord, error) {
	query := r.db.WithContext(ctx).Where("changed_at <= ?", cutoff)
	if cursor.ID == uuid.Nil {
		query = query.Where("changed_at > ?", cursor.ChangedAt)
	} else {
		query = query.Where("changed_at > ? OR (changed_at = ? AND id > ?)", cursor.ChangedAt, cursor.ChangedAt, cursor.ID)
	}

	var records []domain.AuditRecord
	err := query.
		Order("changed_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// CountByChangeType counts the records visible under scope, grouped by change type
func (r *AuditRecordRepository) CountByChangeType(ctx context.Context, scope access.Scope, filter *AuditRecordFilter) (map[domain.ChangeType]int64, error) {
	type result struct {
		ChangeType domain.ChangeType
		Count      int64
	}

	query := ApplyAccessScope(r.db.WithContext(ctx).Model(&domain.AuditRecord{}), r.binding, scope)
	query = r.applyFilters(query, filter)

	var results []result
	err := query.
		Select("change_type, COUNT(*) as count").
		Group("change_type").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[domain.ChangeType]int64)
	for _, r := range results {
		counts[r.ChangeType] = r.Count
	}
	return counts, nil
}

// applyFilters applies optional filters to the query
func (r *AuditRecordRepository) applyFilters(query *gorm.DB, filter *AuditRecordFilter) *gorm.DB {
	if filter == nil {
		return query
	}

	if filter.ProjectID != nil {
		query = query.Where("project_id = ?", *filter.ProjectID)
	}

	if filter.EntityType != "" {
		query = query.Where("entity_type = ?", filter.EntityType)
	}

	if filter.EntityID != nil {
		query = query.Where("entity_id = ?", *filter.EntityID)
	}

	if filter.ChangeType != nil {
		query = query.Where("change_type = ?", *filter.ChangeType)
	}

	if filter.ChangedBy != nil {
		query = query.Where("changed_by = ?", *filter.ChangedBy)
	}

	if filter.StartTime != nil {
		query = query.Where("changed_at >= ?", *filter.StartTime)
	}

	if filter.EndTime != nil {
		query = query.Where("changed_at <= ?", *filter.EndTime)
	}

	return query
}

package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/project-access-api/internal/access"
	"github.com/straye-as/project-access-api/internal/auth"
	"github.com/straye-as/project-access-api/internal/config"
	"github.com/straye-as/project-access-api/internal/domain"
	"github.com/straye-as/project-access-api/internal/mapper"
	"github.com/straye-as/project-access-api/internal/metrics"
	"github.com/straye-as/project-access-api/internal/repository"
	"github.com/straye-as/project-access-api/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const exportBatchSize = 1000

// snapshot keys that change on every write and are not reported as changed fields
var volatileFields = map[string]bool{
	"createdAt": true,
	"updatedAt": true,
}

// AuditService writes and reads the immutable audit trail
type AuditService struct {
	auditRepo  *repository.AuditRecordRepository
	exportRepo *repository.AuditExportRepository
	authorizer *access.Authorizer
	storage    storage.Storage
	prefix     string
	settle     time.Duration
	metrics    *metrics.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// NewAuditService creates a new audit service. store may be nil when exports are disabled.
func NewAuditService(
	auditRepo *repository.AuditRecordRepository,
	exportRepo *repository.AuditExportRepository,
	authorizer *access.Authorizer,
	store storage.Storage,
	exportCfg config.AuditExportConfig,
	m *metrics.Metrics,
	logger *zap.Logger,
) *AuditService {
	return &AuditService{
		auditRepo:  auditRepo,
		exportRepo: exportRepo,
		authorizer: authorizer,
		storage:    store,
		prefix:     exportCfg.Prefix,
		settle:     exportCfg.SettleDuration(),
		metrics:    m,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source
func (s *AuditService) SetClock(now func() time.Time) {
	s.now = func() time.Time { return now().UTC() }
}

// AuditEntry is the input of one audit record
type AuditEntry struct {
	EntityType string
	EntityID   uuid.UUID
	ProjectID  *uuid.UUID
	ChangeType domain.ChangeType
	OldValues  interface{}
	NewValues  interface{}
	Principal  *auth.Principal
	Meta       auth.RequestMeta
}

// Record writes exactly one audit record using tx. Deletes store no entity id
// so the record does not reference a row that no longer exists.
func (s *AuditService) Record(ctx context.Context, tx *gorm.DB, entry AuditEntry) (*domain.AuditRecord, error) {
	oldJSON, oldMap, err := snapshot(entry.OldValues)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot old values: %w", err)
	}
	newJSON, newMap, err := snapshot(entry.NewValues)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot new values: %w", err)
	}

	record := &domain.AuditRecord{
		EntityType:    entry.EntityType,
		ProjectID:     entry.ProjectID,
		ChangeType:    entry.ChangeType,
		ChangedFields: []string{},
		ChangedBy:     entry.Principal.ActorID(),
		ActorKind:     entry.Principal.KindString(),
		IPAddress:     entry.Meta.IPAddress,
		UserAgent:     entry.Meta.UserAgent,
		RequestID:     entry.Meta.RequestID,
		ChangedAt:     s.now(),
	}

	switch entry.ChangeType {
	case domain.ChangeCreated:
		id := entry.EntityID
		record.EntityID = &id
		record.NewValues = newJSON
	case domain.ChangeUpdated:
		id := entry.EntityID
		record.EntityID = &id
		record.OldValues = oldJSON
		record.NewValues = newJSON
		record.ChangedFields = changedFields(oldMap, newMap)
	case domain.ChangeDeleted:
		record.OldValues = oldJSON
	default:
		return nil, fmt.Errorf("%w: unknown change type %q", ErrInvalidInput, entry.ChangeType)
	}

	if err := s.auditRepo.WithTx(tx).Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create audit record: %w", err)
	}
	return record, nil
}

// ListForProject returns audit records of a project visible to the caller
func (s *AuditService) ListForProject(ctx context.Context, projectID uuid.UUID, filter repository.AuditRecordFilter, page, pageSize int) (*domain.PaginatedResponse, error) {
	p := auth.PrincipalOrAnonymous(ctx)
	scope, err := s.authorizer.Scope(ctx, p, access.ResourceAuditRecord, access.OpRead)
	if err != nil {
		s.logger.Warn("audit scope lookup failed", zap.Error(err))
		scope = access.Scope{}
	}

	filter.ProjectID = &projectID
	records, total, err := s.auditRepo.List(ctx, scope, &filter, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit records: %w", err)
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > repository.MaxPageSize {
		pageSize = repository.MaxPageSize
	}
	resp := mapper.ToPaginatedResponse(mapper.ToAuditRecordDTOs(records), total, page, pageSize)
	return &resp, nil
}

// SummaryForProject counts the visible audit records of a project by change type.
// Sorting in filter is ignored.
func (s *AuditService) SummaryForProject(ctx context.Context, projectID uuid.UUID, filter repository.AuditRecordFilter) (*domain.AuditSummaryDTO, error) {
	p := auth.PrincipalOrAnonymous(ctx)
	scope, err := s.authorizer.Scope(ctx, p, access.ResourceAuditRecord, access.OpRead)
	if err != nil {
		s.logger.Warn("audit scope lookup failed", zap.Error(err))
		scope = access.Scope{}
	}

	filter.ProjectID = &projectID
	counts, err := s.auditRepo.CountByChangeType(ctx, scope, &filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count audit records: %w", err)
	}

	summary := &domain.AuditSummaryDTO{
		ProjectID: projectID,
		Created:   counts[domain.ChangeCreated],
		Updated:   counts[domain.ChangeUpdated],
		Deleted:   counts[domain.ChangeDeleted],
	}
	summary.Total = summary.Created + summary.Updated + summary.Deleted
	return summary, nil
}

// ListByEntity returns the visible history of one entity, oldest first
func (s *AuditService) ListByEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit int) ([]domain.AuditRecordDTO, error) {
	p := auth.PrincipalOrAnonymous(ctx)
	scope, err := s.authorizer.Scope(ctx, p, access.ResourceAuditRecord, access.OpRead)
	if err != nil {
		s.logger.Warn("audit scope lookup failed", zap.Error(err))
		scope = access.Scope{}
	}

	if limit < 1 || limit > repository.MaxPageSize {
		limit = repository.MaxPageSize
	}
	records, err := s.auditRepo.ListByEntity(ctx, scope, entityType, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list entity history: %w", err)
	}
	return mapper.ToAuditRecordDTOs(records), nil
}

// AuditExportResult describes one export run
type AuditExportResult struct {
	Records    int
	StorageKey string
	Until      time.Time
}

// ExportPending exports every settled record after the last export's watermark
func (s *AuditService) ExportPending(ctx context.Context) (*AuditExportResult, error) {
	cursor, err := s.exportRepo.LatestCursor(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read export watermark: %w", err)
	}
	return s.exportFrom(ctx, cursor)
}

// ExportSince writes the settled records changed after since as JSON Lines to
// storage and stores the new watermark. Nothing is written when no records are pending.
func (s *AuditService) ExportSince(ctx context.Context, since time.Time) (*AuditExportResult, error) {
	return s.exportFrom(ctx, repository.AuditCursor{ChangedAt: since})
}

// exportFrom pages by (changed_at, id) so records sharing a timestamp are never
// split across the watermark. Records younger than the settle window are left for
// the next run, since changed_at is stamped before the writing transaction commits.
func (s *AuditService) exportFrom(ctx context.Context, cursor repository.AuditCursor) (*AuditExportResult, error) {
	if s.storage == nil {
		return nil, fmt.Errorf("audit export storage not configured")
	}

	now := s.now()
	cutoff := now.Add(-s.settle)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	count := 0
	for {
		records, err := s.auditRepo.ListAfter(ctx, cursor, cutoff, exportBatchSize)
		if err != nil {
			return nil, fmt.Errorf("failed to read audit records: %w", err)
		}
		for i := range records {
			if err := enc.Encode(mapper.ToAuditRecordDTO(&records[i])); err != nil {
				return nil, fmt.Errorf("failed to encode audit record: %w", err)
			}
		}
		count += len(records)
		if len(records) > 0 {
			last := records[len(records)-1]
			cursor = repository.AuditCursor{ChangedAt: last.ChangedAt, ID: last.ID}
		}
		if len(records) < exportBatchSize {
			break
		}
	}

	result := &AuditExportResult{Records: count, Until: cursor.ChangedAt}
	if count == 0 {
		return result, nil
	}

	key := fmt.Sprintf("%s/%s-%s.jsonl", s.prefix, now.Format("2006/01/02/150405"), cursor.ID)
	if _, err := s.storage.Put(ctx, key, "application/x-ndjson", &buf); err != nil {
		return nil, fmt.Errorf("failed to store audit export: %w", err)
	}

	untilID := cursor.ID
	export := &domain.AuditExport{
		Until:       cursor.ChangedAt,
		UntilID:     &untilID,
		RecordCount: count,
		StorageKey:  key,
		ExportedAt:  now,
	}
	if err := s.exportRepo.Create(ctx, export); err != nil {
		return nil, fmt.Errorf("failed to store export watermark: %w", err)
	}

	s.metrics.AddAuditExported(count)
	s.logger.Info("audit records exported",
		zap.Int("count", count),
		zap.String("storage_key", key),
		zap.Time("until", cursor.ChangedAt))

	result.StorageKey = key
	return result, nil
}

// snapshot marshals v to JSON and also returns it as a map when it is an object
func snapshot(v interface{}) (*string, map[string]interface{}, error) {
	if v == nil {
		return nil, nil, nil
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Ptr && rv.IsNil() {
		return nil, nil, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, nil, err
	}
	s := string(data)

	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		m = nil
	}
	return &s, m, nil
}

// changedFields lists the keys whose values differ between two snapshots, sorted
func changedFields(oldMap, newMap map[string]interface{}) []string {
	fields := []string{}
	for key, newVal := range newMap {
		if volatileFields[key] {
			continue
		}
		if oldVal, exists := oldMap[key]; !exists || !reflect.DeepEqual(oldVal, newVal) {
			fields = append(fields, key)
		}
	}
	for key := range oldMap {
		if volatileFields[key] {
			continue
		}
		if _, exists := newMap[key]; !exists {
			fields = append(fields, key)
		}
	}
	sort.Strings(fields)
	return fields
}

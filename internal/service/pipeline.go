package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/straye-as/project-access-api/internal/auth"
	"github.com/straye-as/project-access-api/internal/domain"
	"github.com/straye-as/project-access-api/internal/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Mutation carries one write through a Pipeline. Before is the row as it was
// (nil for creates), After the row as persisted (nil for deletes).
type Mutation[T any] struct {
	Principal  *auth.Principal
	Meta       auth.RequestMeta
	ChangeType domain.ChangeType
	EntityType string
	EntityID   uuid.UUID
	ProjectID  *uuid.UUID
	Before     *T
	After      *T
}

// Step is one transactional stage of the write path
type Step[T any] func(ctx context.Context, tx *gorm.DB, m *Mutation[T]) error

// Pipeline is the ordered write path of one entity:
// validate, derive, persist, audit, propagate, notify.
//
// Persist reports rows affected; zero is a silent denial and stops the run.
// Audit and Notify run in savepoints and never abort the primary write.
// Propagate errors roll the whole transaction back. A nil Audit records the
// mutation through the Writer's AuditService.
type Pipeline[T any] struct {
	Validate  func(ctx context.Context, m *Mutation[T]) error
	Derive    Step[T]
	Persist   func(ctx context.Context, tx *gorm.DB, m *Mutation[T]) (int64, error)
	Audit     Step[T]
	Propagate Step[T]
	Notify    Step[T]
}

// Writer runs pipelines in database transactions
type Writer struct {
	db      *gorm.DB
	audit   *AuditService
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewWriter creates a new pipeline writer
func NewWriter(db *gorm.DB, audit *AuditService, m *metrics.Metrics, logger *zap.Logger) *Writer {
	return &Writer{
		db:      db,
		audit:   audit,
		metrics: m,
		logger:  logger,
	}
}

// DB returns the database the writer opens transactions on
func (w *Writer) DB() *gorm.DB {
	return w.db
}

// Run executes p for m inside one transaction. It reports whether the mutation
// was persisted; false with a nil error means nothing was written.
func Run[T any](ctx context.Context, w *Writer, p Pipeline[T], m *Mutation[T]) (bool, error) {
	if p.Persist == nil {
		return false, fmt.Errorf("pipeline for %s has no persist step", m.EntityType)
	}
	if m.Principal == nil {
		m.Principal = auth.PrincipalOrAnonymous(ctx)
	}
	if m.Meta == (auth.RequestMeta{}) {
		m.Meta = auth.RequestMetaFromContext(ctx)
	}

	if p.Validate != nil {
		if err := p.Validate(ctx, m); err != nil {
			return false, err
		}
	}

	persisted := false
	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if p.Derive != nil {
			if err := p.Derive(ctx, tx, m); err != nil {
				return err
			}
		}

		rows, err := p.Persist(ctx, tx, m)
		if err != nil {
			return err
		}
		if rows == 0 {
			return nil
		}
		persisted = true
		if m.EntityID == uuid.Nil {
			m.EntityID = mutationEntityID(m)
		}

		audit := p.Audit
		if audit == nil {
			audit = recordAudit[T](w.audit)
		}
		if err := tx.Transaction(func(sp *gorm.DB) error { return audit(ctx, sp, m) }); err != nil {
			w.logger.Error("audit record failed, primary write kept",
				zap.String("entity_type", m.EntityType),
				zap.String("entity_id", m.EntityID.String()),
				zap.String("change_type", string(m.ChangeType)),
				zap.Error(err))
			w.metrics.IncAuditFailure(m.EntityType)
		}

		if p.Propagate != nil {
			if err := p.Propagate(ctx, tx, m); err != nil {
				return fmt.Errorf("failed to propagate %s change: %w", m.EntityType, err)
			}
		}

		if p.Notify != nil {
			if err := tx.Transaction(func(sp *gorm.DB) error { return p.Notify(ctx, sp, m) }); err != nil {
				w.logger.Warn("notification fan-out failed",
					zap.String("entity_type", m.EntityType),
					zap.String("entity_id", m.EntityID.String()),
					zap.Error(err))
				w.metrics.IncNotificationFailure(m.EntityType)
			}
		}
		return nil
	})
	if err != nil {
		return false, translateWriteError(err)
	}
	return persisted, nil
}

// auditSideEffect records a row written by another entity's pipeline. Like the
// primary audit it runs in a savepoint and never aborts the write.
func (w *Writer) auditSideEffect(ctx context.Context, tx *gorm.DB, entry AuditEntry) {
	err := tx.Transaction(func(sp *gorm.DB) error {
		_, err := w.audit.Record(ctx, sp, entry)
		return err
	})
	if err != nil {
		w.logger.Error("side effect audit failed, primary write kept",
			zap.String("entity_type", entry.EntityType),
			zap.String("entity_id", entry.EntityID.String()),
			zap.Error(err))
		w.metrics.IncAuditFailure(entry.EntityType)
	}
}

func recordAudit[T any](audit *AuditService) Step[T] {
	return func(ctx context.Context, tx *gorm.DB, m *Mutation[T]) error {
		entry := AuditEntry{
			EntityType: m.EntityType,
			EntityID:   m.EntityID,
			ProjectID:  m.ProjectID,
			ChangeType: m.ChangeType,
			Principal:  m.Principal,
			Meta:       m.Meta,
		}
		if m.Before != nil {
			entry.OldValues = m.Before
		}
		if m.After != nil {
			entry.NewValues = m.After
		}
		_, err := audit.Record(ctx, tx, entry)
		return err
	}
}

type identifiable interface {
	GetID() uuid.UUID
}

func mutationEntityID[T any](m *Mutation[T]) uuid.UUID {
	for _, v := range []*T{m.After, m.Before} {
		if v == nil {
			continue
		}
		if e, ok := any(v).(identifiable); ok {
			return e.GetID()
		}
	}
	return uuid.Nil
}

// translateWriteError maps constraint violations to service errors
func translateWriteError(err error) error {
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrInvariantViolation, err)
	case errors.Is(err, gorm.ErrForeignKeyViolated), errors.Is(err, gorm.ErrCheckConstraintViolated):
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return err
}

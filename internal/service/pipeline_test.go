package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/straye-as/project-access-api/internal/access"
	"github.com/straye-as/project-access-api/internal/domain"
	"github.com/straye-as/project-access-api/internal/metrics"
	"github.com/straye-as/project-access-api/internal/service"
	"github.com/straye-as/project-access-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func contactPipeline(contact *domain.Contact) service.Pipeline[domain.Contact] {
	return service.Pipeline[domain.Contact]{
		Persist: func(ctx context.Context, tx *gorm.DB, m *service.Mutation[domain.Contact]) (int64, error) {
			if err := tx.Create(contact).Error; err != nil {
				return 0, err
			}
			m.After = contact
			return 1, nil
		},
	}
}

func newContactMutation() *service.Mutation[domain.Contact] {
	return &service.Mutation[domain.Contact]{
		ChangeType: domain.ChangeCreated,
		EntityType: "contact",
	}
}

func TestRun_AuditFailureKeepsPrimaryWrite(t *testing.T) {
	env := newTestEnv(t, access.PolicyScoped)
	m := metrics.NewMetrics(prometheus.NewRegistry())
	writer := service.NewWriter(env.db, env.audit, m, zap.NewNop())

	contact := &domain.Contact{Name: "Site Electrician"}
	pipeline := contactPipeline(contact)
	pipeline.Audit = func(ctx context.Context, tx *gorm.DB, _ *service.Mutation[domain.Contact]) error {
		// the savepoint must roll back this partial write
		if err := tx.Create(&domain.AuditRecord{EntityType: "contact", ChangeType: domain.ChangeCreated}).Error; err != nil {
			return err
		}
		return errors.New("audit sink unavailable")
	}

	persisted, err := service.Run(asService(), writer, pipeline, newContactMutation())
	require.NoError(t, err)
	assert.True(t, persisted)

	assert.Equal(t, int64(1), testutil.CountRows(t, env.db, &domain.Contact{}, "id = ?", contact.ID))
	assert.Equal(t, int64(0), testutil.CountRows(t, env.db, &domain.AuditRecord{}))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.AuditFailures.WithLabelValues("contact")))
}

func TestRun_PropagateFailureRollsBack(t *testing.T) {
	env := newTestEnv(t, access.PolicyScoped)

	contact := &domain.Contact{Name: "Quantity Surveyor"}
	pipeline := contactPipeline(contact)
	pipeline.Propagate = func(ctx context.Context, tx *gorm.DB, _ *service.Mutation[domain.Contact]) error {
		return errors.New("downstream counter missing")
	}

	persisted, err := service.Run(asService(), env.writer, pipeline, newContactMutation())
	require.Error(t, err)
	assert.False(t, persisted)
	assert.Contains(t, err.Error(), "failed to propagate contact change")

	assert.Equal(t, int64(0), testutil.CountRows(t, env.db, &domain.Contact{}))
	assert.Equal(t, int64(0), testutil.CountRows(t, env.db, &domain.AuditRecord{}))
}

func TestRun_NotifyFailureKeepsWrite(t *testing.T) {
	env := newTestEnv(t, access.PolicyScoped)
	m := metrics.NewMetrics(prometheus.NewRegistry())
	writer := service.NewWriter(env.db, env.audit, m, zap.NewNop())

	contact := &domain.Contact{Name: "Fire Engineer"}
	pipeline := contactPipeline(contact)
	pipeline.Notify = func(ctx context.Context, tx *gorm.DB, _ *service.Mutation[domain.Contact]) error {
		return errors.New("inbox offline")
	}

	persisted, err := service.Run(asService(), writer, pipeline, newContactMutation())
	require.NoError(t, err)
	assert.True(t, persisted)
	assert.Equal(t, int64(1), testutil.CountRows(t, env.db, &domain.Contact{}))
	assert.Equal(t, int64(1), testutil.CountRows(t, env.db, &domain.AuditRecord{}, "entity_id = ?", contact.ID))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.NotificationFailures.WithLabelValues("contact")))
}

func TestRun_ZeroRowsIsSilent(t *testing.T) {
	env := newTestEnv(t, access.PolicyScoped)

	called := false
	pipeline := service.Pipeline[domain.Contact]{
		Persist: func(ctx context.Context, tx *gorm.DB, m *service.Mutation[domain.Contact]) (int64, error) {
			return 0, nil
		},
		Notify: func(ctx context.Context, tx *gorm.DB, m *service.Mutation[domain.Contact]) error {
			called = true
			return nil
		},
	}

	persisted, err := service.Run(asService(), env.writer, pipeline, newContactMutation())
	require.NoError(t, err)
	assert.False(t, persisted)
	assert.False(t, called)
	assert.Equal(t, int64(0), testutil.CountRows(t, env.db, &domain.AuditRecord{}))
}

func TestRun_ValidateRunsBeforeTransaction(t *testing.T) {
	env := newTestEnv(t, access.PolicyScoped)

	pipeline := contactPipeline(&domain.Contact{Name: "Never Written"})
	pipeline.Validate = func(ctx context.Context, m *service.Mutation[domain.Contact]) error {
		return service.ErrInvalidInput
	}

	_, err := service.Run(asService(), env.writer, pipeline, newContactMutation())
	assert.ErrorIs(t, err, service.ErrInvalidInput)
	assert.Equal(t, int64(0), testutil.CountRows(t, env.db, &domain.Contact{}))
}

func TestRun_DuplicateKeyIsInvariantViolation(t *testing.T) {
	env := newTestEnv(t, access.PolicyScoped)

	contact := &domain.Contact{Name: "Architect"}
	_, err := service.Run(asService(), env.writer, contactPipeline(contact), newContactMutation())
	require.NoError(t, err)

	duplicate := &domain.Contact{BaseModel: domain.BaseModel{ID: contact.ID}, Name: "Architect Again"}
	_, err = service.Run(asService(), env.writer, contactPipeline(duplicate), newContactMutation())
	assert.ErrorIs(t, err, service.ErrInvariantViolation)
}

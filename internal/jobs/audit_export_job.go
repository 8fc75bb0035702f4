package jobs

import (
	"context"
	"time"

	"github.com/straye-as/project-access-api/internal/auth"
	"github.com/straye-as/project-access-api/internal/service"
	"go.uber.org/zap"
)

// AuditExportJobName is the name of the audit export job
const AuditExportJobName = "audit_export"

// AuditExporter writes the audit records changed since the last export to storage.
type AuditExporter interface {
	ExportPending(ctx context.Context) (*service.AuditExportResult, error)
}

// AuditExportJob ships audit records to object storage.
type AuditExportJob struct {
	exporter AuditExporter
	logger   *zap.Logger
	timeout  time.Duration
}

// NewAuditExportJob creates a new export job
func NewAuditExportJob(exporter AuditExporter, logger *zap.Logger, timeout time.Duration) *AuditExportJob {
	return &AuditExportJob{
		exporter: exporter,
		logger:   logger,
		timeout:  timeout,
	}
}

// Run executes one export. A run with nothing new writes no object.
func (j *AuditExportJob) Run() *service.AuditExportResult {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	ctx = auth.WithPrincipal(ctx, auth.ServicePrincipal())

	start := time.Now()
	result, err := j.exporter.ExportPending(ctx)
	if err != nil {
		j.logger.Error("audit export failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)))
		return nil
	}

	if result.Records == 0 {
		j.logger.Debug("audit export found nothing new")
		return result
	}
	j.logger.Info("audit export completed",
		zap.Int("records", result.Records),
		zap.String("storage_key", result.StorageKey),
		zap.Time("until", result.Until),
		zap.Duration("duration", time.Since(start)))
	return result
}

// RegisterAuditExportJob registers the export with the scheduler.
func RegisterAuditExportJob(scheduler *Scheduler, exporter AuditExporter, logger *zap.Logger, cronExpr string, timeout time.Duration) error {
	job := NewAuditExportJob(exporter, logger, timeout)
	return scheduler.AddJob(AuditExportJobName, cronExpr, func() { job.Run() })
}

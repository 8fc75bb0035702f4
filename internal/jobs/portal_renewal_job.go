package jobs

import (
	"context"
	"time"

	"github.com/straye-as/project-access-api/internal/auth"
	"go.uber.org/zap"
)

// PortalRenewalJobName is the name of the portal token renewal sweep
const PortalRenewalJobName = "portal_renewal"

// PortalTokenRenewer extends auto-renewing portal tokens that are close to expiry.
type PortalTokenRenewer interface {
	RenewExpiring(ctx context.Context) (int64, error)
}

// PortalRenewalJob runs the renewal sweep as the service principal.
type PortalRenewalJob struct {
	renewer PortalTokenRenewer
	logger  *zap.Logger
	timeout time.Duration
}

// NewPortalRenewalJob creates a new renewal job
func NewPortalRenewalJob(renewer PortalTokenRenewer, logger *zap.Logger, timeout time.Duration) *PortalRenewalJob {
	return &PortalRenewalJob{
		renewer: renewer,
		logger:  logger,
		timeout: timeout,
	}
}

// Run executes one sweep and returns the number of renewed tokens
func (j *PortalRenewalJob) Run() int64 {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	ctx = auth.WithPrincipal(ctx, auth.ServicePrincipal())

	start := time.Now()
	renewed, err := j.renewer.RenewExpiring(ctx)
	if err != nil {
		j.logger.Error("portal token renewal failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)))
		return 0
	}

	j.logger.Info("portal token renewal completed",
		zap.Int64("renewed", renewed),
		zap.Duration("duration", time.Since(start)))
	return renewed
}

// RegisterPortalRenewalJob registers the renewal sweep with the scheduler.
func RegisterPortalRenewalJob(scheduler *Scheduler, renewer PortalTokenRenewer, logger *zap.Logger, cronExpr string, timeout time.Duration) error {
	job := NewPortalRenewalJob(renewer, logger, timeout)
	return scheduler.AddJob(PortalRenewalJobName, cronExpr, func() { job.Run() })
}

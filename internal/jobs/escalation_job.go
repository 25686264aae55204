package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pnp-dms/docflow-api/internal/service"
)

// EscalationJobName is the name of the overdue escalation sweep job
const EscalationJobName = "escalation_sweep"

// EscalationSweeper defines the interface for the overdue escalation sweep.
// This interface allows the job to hold a narrow handle on the service.
type EscalationSweeper interface {
	// Sweep scans for overdue documents and workflow stages as of now,
	// bumping priorities, notifying assignees, and pre-alerting next stages.
	Sweep(ctx context.Context, now time.Time) (*service.SweepResult, error)
}

// EscalationJob runs the periodic overdue sweep over all active documents.
type EscalationJob struct {
	sweeper EscalationSweeper
	logger  *zap.Logger
	timeout time.Duration
}

// NewEscalationJob creates a new escalation sweep job.
// The timeout controls how long a single sweep is allowed to run.
func NewEscalationJob(sweeper EscalationSweeper, logger *zap.Logger, timeout time.Duration) *EscalationJob {
	return &EscalationJob{
		sweeper: sweeper,
		logger:  logger,
		timeout: timeout,
	}
}

// Run executes the escalation sweep.
// This is called by the scheduler according to the cron expression.
func (j *EscalationJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	j.logger.Info("starting escalation sweep job")

	result, err := j.sweeper.Sweep(ctx, start)
	if err != nil {
		j.logger.Error("escalation sweep failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)))
		return
	}

	j.logger.Info("escalation sweep job completed",
		zap.Int("documents_bumped", result.DocumentsBumped),
		zap.Int("stages_notified", result.StagesNotified),
		zap.Int("stages_escalated", result.StagesEscalated),
		zap.Duration("duration", time.Since(start)))
}

// RegisterEscalationJob registers the escalation sweep job with the scheduler.
// The cronExpr should be a valid cron expression (e.g., "0 * * * *" for every hour).
func RegisterEscalationJob(scheduler *Scheduler, sweeper EscalationSweeper, logger *zap.Logger, cronExpr string, timeout time.Duration) error {
	job := NewEscalationJob(sweeper, logger, timeout)
	return scheduler.AddJob(EscalationJobName, cronExpr, job.Run)
}

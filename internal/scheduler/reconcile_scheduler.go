package scheduler

import (
	"context"
	"time"

	"github.com/brroMonta/gifting/internal/app/service"
	"github.com/brroMonta/gifting/pkg/logger"
	"github.com/robfig/cron/v3"
)

const reconcileTimeout = 5 * time.Minute

// ReconcileScheduler periodically repairs drifted or orphaned share projections.
type ReconcileScheduler struct {
	cron       *cron.Cron
	spec       string
	reconciler service.ReconcileService
}

// NewReconcileScheduler creates the scheduler. An empty spec disables it.
func NewReconcileScheduler(reconciler service.ReconcileService, spec string) *ReconcileScheduler {
	return &ReconcileScheduler{
		cron:       cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		spec:       spec,
		reconciler: reconciler,
	}
}

// Start registers the job and starts the cron loop.
func (s *ReconcileScheduler) Start() error {
	if s.spec == "" {
		logger.Info("Reconcile scheduler disabled", nil)
		return nil
	}

	if _, err := s.cron.AddFunc(s.spec, s.RunOnce); err != nil {
		logger.Error("Failed to add cron job for reconciliation", err, map[string]interface{}{
			"spec": s.spec,
		})
		return err
	}

	s.cron.Start()
	logger.Info("Reconcile scheduler started", map[string]interface{}{
		"spec": s.spec,
	})
	return nil
}

// RunOnce runs a single reconciliation pass.
func (s *ReconcileScheduler) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
	defer cancel()

	logger.Debug("Starting scheduled reconciliation", nil)
	if _, err := s.reconciler.Run(ctx); err != nil {
		logger.Error("Scheduled reconciliation failed", err)
	}
}

// Stop waits for a running job to finish.
func (s *ReconcileScheduler) Stop() {
	logger.Info("Stopping reconcile scheduler...", nil)
	<-s.cron.Stop().Done()
	logger.Info("Reconcile scheduler stopped", nil)
}

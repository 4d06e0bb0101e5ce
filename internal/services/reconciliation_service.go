package services

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/FoleyBridge-Solutions/tr-pay-sub002/internal/models"
	"github.com/FoleyBridge-Solutions/tr-pay-sub002/internal/repositories"
)

// ReconciliationService runs the full scheduled pass: settlement resolution
// over processing payments, post-settlement return monitoring, and the
// corrections log. One run report accumulates across all three jobs.
type ReconciliationService struct {
	resolver    *SettlementResolver
	monitor     *ReturnMonitor
	corrections *CorrectionLogger
	runs        repositories.RunRepository
	log         *logrus.Logger

	defaultReturnWindowDays     int
	defaultCorrectionWindowDays int
}

func NewReconciliationService(
	resolver *SettlementResolver,
	monitor *ReturnMonitor,
	corrections *CorrectionLogger,
	runs repositories.RunRepository,
	returnWindowDays int,
	correctionWindowDays int,
	log *logrus.Logger,
) *ReconciliationService {
	return &ReconciliationService{
		resolver:                    resolver,
		monitor:                     monitor,
		corrections:                 corrections,
		runs:                        runs,
		defaultReturnWindowDays:     returnWindowDays,
		defaultCorrectionWindowDays: correctionWindowDays,
		log:                         log,
	}
}

// RunOptions controls one full reconciliation invocation.
type RunOptions struct {
	DryRun bool
	// PaymentID limits the resolver to a single payment when nonzero.
	PaymentID int64
	// WindowDays overrides the post-settlement return window when nonzero.
	WindowDays int
}

// Run executes all three jobs and returns the accumulated report. In
// dry-run mode no run row is persisted; the report is log-and-return only.
func (s *ReconciliationService) Run(opts RunOptions) (*models.RunReport, error) {
	report := &models.RunReport{
		RunID:  uuid.NewString(),
		DryRun: opts.DryRun,
	}

	var run *models.ReconciliationRun
	if !opts.DryRun {
		run = &models.ReconciliationRun{
			RunID:     report.RunID,
			DryRun:    false,
			StartedAt: time.Now(),
		}
		if err := s.runs.CreateRun(run); err != nil {
			// Run history is telemetry; its failure must not block the
			// reconciliation itself.
			run = nil
			report.Warnings++
			s.log.WithField("error", err.Error()).Warn("failed to persist run record")
		}
	}

	s.log.WithFields(logrus.Fields{
		"run_id":  report.RunID,
		"dry_run": opts.DryRun,
	}).Info("reconciliation run started")

	s.resolver.Run(ResolveOptions{DryRun: opts.DryRun, PaymentID: opts.PaymentID}, report)

	windowDays := opts.WindowDays
	if windowDays <= 0 {
		windowDays = s.defaultReturnWindowDays
	}
	s.monitor.Run(windowDays, opts.DryRun, report)

	s.corrections.Run(s.defaultCorrectionWindowDays, report)

	if run != nil {
		if err := s.runs.FinishRun(run, report); err != nil {
			report.Warnings++
			s.log.WithField("error", err.Error()).Warn("failed to finalize run record")
		}
	}

	s.log.WithFields(logrus.Fields{
		"run_id":    report.RunID,
		"checked":   report.Checked,
		"settled":   report.Settled,
		"returned":  report.Returned,
		"in_flight": report.InFlight,
		"stale":     report.Stale,
		"errors":    report.Errors,
		"warnings":  report.Warnings,
	}).Info("reconciliation run finished")

	return report, nil
}

// GetRun looks up a persisted run summary for the ops endpoint.
func (s *ReconciliationService) GetRun(runID string) (*models.ReconciliationRun, error) {
	return s.runs.GetRunByRunID(runID)
}

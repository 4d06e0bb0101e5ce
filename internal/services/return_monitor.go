package services

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/FoleyBridge-Solutions/tr-pay-sub002/internal/kotapay"
	"github.com/FoleyBridge-Solutions/tr-pay-sub002/internal/matching"
	"github.com/FoleyBridge-Solutions/tr-pay-sub002/internal/models"
	"github.com/FoleyBridge-Solutions/tr-pay-sub002/internal/repositories"
)

// ReturnMonitor re-checks already-completed payments against a fresh
// returns report. A bank can dispute a settled debit for weeks after it
// cleared; this is the one place a completed payment moves to failed.
type ReturnMonitor struct {
	payments repositories.PaymentRepository
	reports  kotapay.ReportSource
	effects  *SideEffectCoordinator
	log      *logrus.Logger
}

func NewReturnMonitor(
	payments repositories.PaymentRepository,
	reports kotapay.ReportSource,
	effects *SideEffectCoordinator,
	log *logrus.Logger,
) *ReturnMonitor {
	return &ReturnMonitor{
		payments: payments,
		reports:  reports,
		effects:  effects,
		log:      log,
	}
}

// Run scans completed payments settled within the trailing window for late
// returns, adding its counters into the given run report.
func (m *ReturnMonitor) Run(windowDays int, dryRun bool, report *models.RunReport) {
	now := time.Now()
	windowStart := now.AddDate(0, 0, -windowDays)

	completed, err := m.payments.GetCompletedSince(windowStart)
	if err != nil {
		report.Errors++
		m.log.WithField("error", err.Error()).Error("failed to load completed payments for return monitoring")
		return
	}
	if len(completed) == 0 {
		m.log.WithField("window_days", windowDays).Info("no completed payments inside the return window")
		return
	}

	// Fetch from the earliest in-window settlement so every payment's
	// potential return date is covered.
	since := now
	for _, p := range completed {
		if p.ProcessedAt != nil && p.ProcessedAt.Before(since) {
			since = *p.ProcessedAt
		}
	}

	returns, err := m.reports.GetReturnsReport(since)
	if err != nil {
		report.Errors++
		m.log.WithField("error", err.Error()).Error("returns report fetch failed, skipping post-settlement monitoring this run")
		return
	}

	matcher := matching.NewReturnMatcher(returns, m.log)
	for _, p := range completed {
		if row, ok := matcher.FindReturn(p); ok {
			report.Errors += applyReturn(m.payments, m.effects, m.log, p, row, dryRun, report)
		}
	}
}

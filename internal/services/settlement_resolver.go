package services

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/FoleyBridge-Solutions/tr-pay-sub002/internal/config"
	"github.com/FoleyBridge-Solutions/tr-pay-sub002/internal/kotapay"
	"github.com/FoleyBridge-Solutions/tr-pay-sub002/internal/matching"
	"github.com/FoleyBridge-Solutions/tr-pay-sub002/internal/models"
	"github.com/FoleyBridge-Solutions/tr-pay-sub002/internal/repositories"
)

const effectiveDateFormat = "2006-01-02"

// SettlementResolver is the scheduled pass over processing payments: the
// returns report decides failure, the settlement index decides completion,
// and with neither the payment stays in flight. Every rule abstains over
// guessing; a payment left in flight costs nothing, a wrong transition
// corrupts financial state.
type SettlementResolver struct {
	payments repositories.PaymentRepository
	reports  kotapay.ReportSource
	effects  *SideEffectCoordinator
	cfg      config.ReconciliationConfig
	log      *logrus.Logger
}

func NewSettlementResolver(
	payments repositories.PaymentRepository,
	reports kotapay.ReportSource,
	effects *SideEffectCoordinator,
	cfg config.ReconciliationConfig,
	log *logrus.Logger,
) *SettlementResolver {
	return &SettlementResolver{
		payments: payments,
		reports:  reports,
		effects:  effects,
		cfg:      cfg,
		log:      log,
	}
}

// ResolveOptions controls a single resolver pass.
type ResolveOptions struct {
	DryRun bool
	// PaymentID limits the pass to one payment when nonzero.
	PaymentID int64
}

// Run executes the resolver over every due processing payment, adding its
// counters into the given run report.
func (s *SettlementResolver) Run(opts ResolveOptions, report *models.RunReport) {
	payments, err := s.loadPayments(opts)
	if err != nil {
		report.Errors++
		s.log.WithField("error", err.Error()).Error("failed to load processing payments")
		return
	}
	if len(payments) == 0 {
		s.log.Info("no processing payments due for a status check")
		return
	}

	now := time.Now()

	matcher := s.buildReturnMatcher(payments, now, report)
	index := s.buildSettlementIndex(now, report)

	for _, p := range payments {
		s.resolvePayment(p, matcher, index, now, opts.DryRun, report)
	}
}

func (s *SettlementResolver) loadPayments(opts ResolveOptions) ([]*models.Payment, error) {
	if opts.PaymentID != 0 {
		p, err := s.payments.GetByID(opts.PaymentID)
		if err != nil {
			return nil, err
		}
		if p.Status != models.StatusProcessing {
			s.log.WithFields(logrus.Fields{
				"payment_id": p.ID,
				"status":     p.Status,
			}).Warn("requested payment is not processing, nothing to resolve")
			return nil, nil
		}
		return []*models.Payment{p}, nil
	}
	return s.payments.GetProcessing()
}

// buildReturnMatcher fetches the returns report covering every payment in
// the pass. A fetch failure degrades to an empty matcher: fewer matches are
// possible, false positives are not.
func (s *SettlementResolver) buildReturnMatcher(payments []*models.Payment, now time.Time, report *models.RunReport) *matching.ReturnMatcher {
	since := now
	for _, p := range payments {
		if p.CreatedAt.Before(since) {
			since = p.CreatedAt
		}
	}

	returns, err := s.reports.GetReturnsReport(since)
	if err != nil {
		report.Errors++
		s.log.WithField("error", err.Error()).Error("returns report fetch failed, continuing without return matching")
		return matching.NewReturnMatcher(nil, s.log)
	}
	return matching.NewReturnMatcher(returns, s.log)
}

// buildSettlementIndex builds the run's settlement index. A summary fetch
// failure aborts the batch-matching phase only; returns are still checked.
func (s *SettlementResolver) buildSettlementIndex(now time.Time, report *models.RunReport) *matching.SettlementIndex {
	start := now.AddDate(0, 0, -s.cfg.BatchLookbackDays)
	// Effective dates run ahead of the processing date, so the range
	// extends past today to pick up future-dated batches.
	end := now.AddDate(0, 0, 2)

	index, err := matching.BuildSettlementIndex(s.reports, start, end, s.log)
	if err != nil {
		report.Errors++
		s.log.WithField("error", err.Error()).Error("batch summary fetch failed, skipping batch matching this run")
		return nil
	}
	report.Errors += index.DetailErrors
	return index
}

func (s *SettlementResolver) resolvePayment(
	p *models.Payment,
	matcher *matching.ReturnMatcher,
	index *matching.SettlementIndex,
	now time.Time,
	dryRun bool,
	report *models.RunReport,
) {
	report.Checked++

	// A return always wins over a settlement entry: the debit was pulled
	// into a batch and then bounced.
	if row, ok := matcher.FindReturn(p); ok {
		report.Errors += applyReturn(s.payments, s.effects, s.log, p, row, dryRun, report)
		return
	}

	// A previous run may have discovered the settlement batch already and
	// stamped it while its effective date was still in the future.
	if discovered := p.Metadata.Settlement; discovered != nil && !discovered.Confirmed() {
		if isFutureEffectiveDate(discovered.EffectiveDate, now) {
			report.InFlight++
			s.log.WithFields(logrus.Fields{
				"payment_id":     p.ID,
				"batch_id":       discovered.BatchID,
				"effective_date": discovered.EffectiveDate,
			}).Info("settlement batch known but still future-dated")
			return
		}
		s.settle(p, discovered.BatchID, discovered.EffectiveDate, now, dryRun, report)
		return
	}

	if index != nil {
		if entry, ok := index.FindSettlement(p); ok {
			if isFutureEffectiveDate(entry.EffectiveDate, now) {
				s.recordDiscovery(p, entry, dryRun, report)
				return
			}
			s.settle(p, entry.BatchID, entry.EffectiveDate, now, dryRun, report)
			return
		}
	}

	report.InFlight++
	if age := now.Sub(p.CreatedAt); age > time.Duration(s.cfg.StaleAgeDays)*24*time.Hour {
		report.Stale++
		s.log.WithFields(logrus.Fields{
			"payment_id": p.ID,
			"age_days":   int(age.Hours() / 24),
		}).Warn("payment unresolved past stale threshold, needs manual review")
	}
}

// recordDiscovery persists the future-dated batch id and effective date so
// the next run resolves this payment without another index scan.
func (s *SettlementResolver) recordDiscovery(p *models.Payment, entry *matching.SettledEntry, dryRun bool, report *models.RunReport) {
	report.InFlight++

	s.log.WithFields(logrus.Fields{
		"payment_id":     p.ID,
		"batch_id":       entry.BatchID,
		"effective_date": entry.EffectiveDate,
		"dry_run":        dryRun,
	}).Info("matched future-dated settlement batch, not settling yet")

	if dryRun {
		return
	}

	p.Metadata.Settlement = &models.SettlementOutcome{
		BatchID:       entry.BatchID,
		EffectiveDate: entry.EffectiveDate,
	}
	if err := s.payments.UpdateMetadata(p); err != nil {
		report.Errors++
		s.log.WithFields(logrus.Fields{
			"payment_id": p.ID,
			"error":      err.Error(),
		}).Error("failed to persist discovered settlement batch")
	}
}

func (s *SettlementResolver) settle(p *models.Payment, batchID, effectiveDate string, now time.Time, dryRun bool, report *models.RunReport) {
	s.log.WithFields(logrus.Fields{
		"payment_id":     p.ID,
		"batch_id":       batchID,
		"effective_date": effectiveDate,
		"amount":         p.Amount.StringFixed(2),
		"dry_run":        dryRun,
	}).Info("payment settled")

	report.Settled++
	if dryRun {
		return
	}

	confirmedAt := now
	outcome := &models.SettlementOutcome{
		BatchID:       batchID,
		EffectiveDate: effectiveDate,
		ConfirmedAt:   &confirmedAt,
	}
	if existing := p.Metadata.Settlement; existing != nil && existing.LedgerKey != "" {
		outcome.LedgerKey = existing.LedgerKey
	}

	err := s.payments.MarkCompleted(p, outcome)
	if err == repositories.ErrInvalidTransition {
		s.log.WithFields(logrus.Fields{
			"payment_id": p.ID,
			"status":     p.Status,
		}).Warn("payment already left processing, skipping settlement")
		return
	}
	if err != nil {
		report.Errors++
		s.log.WithFields(logrus.Fields{
			"payment_id": p.ID,
			"error":      err.Error(),
		}).Error("failed to mark payment completed")
		return
	}

	report.Errors += s.effects.Settle(p)
}

// isFutureEffectiveDate reports whether the batch effective date lies after
// today. Unknown or unparseable dates count as passed: an entry in a
// processed batch without a usable effective date has settled.
func isFutureEffectiveDate(effectiveDate string, now time.Time) bool {
	if effectiveDate == "" {
		return false
	}
	d, err := time.Parse(effectiveDateFormat, effectiveDate)
	if err != nil {
		return false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return d.After(today)
}

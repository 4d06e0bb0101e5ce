package services

import (
	"errors"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/FoleyBridge-Solutions/tr-pay-sub002/internal/kotapay"
	"github.com/FoleyBridge-Solutions/tr-pay-sub002/internal/models"
	"github.com/FoleyBridge-Solutions/tr-pay-sub002/internal/repositories"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func amt(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// fakePaymentRepo mirrors the status-guard semantics of the SQL repository
// so transition rules get exercised the same way in tests.
type fakePaymentRepo struct {
	payments map[int64]*models.Payment

	markCompletedCalls  int
	markFailedCalls     int
	updateMetadataCalls int

	markCompletedErr  error
	updateMetadataErr error
}

func newFakePaymentRepo(payments ...*models.Payment) *fakePaymentRepo {
	repo := &fakePaymentRepo{payments: make(map[int64]*models.Payment)}
	for _, p := range payments {
		repo.payments[p.ID] = p
	}
	return repo
}

func (r *fakePaymentRepo) GetByID(id int64) (*models.Payment, error) {
	p, ok := r.payments[id]
	if !ok {
		return nil, repositories.ErrPaymentNotFound
	}
	return p, nil
}

func (r *fakePaymentRepo) GetProcessing() ([]*models.Payment, error) {
	var out []*models.Payment
	for _, p := range r.payments {
		if p.Status == models.StatusProcessing {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakePaymentRepo) GetCompletedSince(since time.Time) ([]*models.Payment, error) {
	var out []*models.Payment
	for _, p := range r.payments {
		if p.Status == models.StatusCompleted && p.ProcessedAt != nil && !p.ProcessedAt.Before(since) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakePaymentRepo) MarkFailed(p *models.Payment, outcome *models.ReturnOutcome) error {
	r.markFailedCalls++
	if p.Status != models.StatusProcessing && p.Status != models.StatusCompleted {
		return repositories.ErrInvalidTransition
	}
	p.Metadata.Return = outcome
	p.Status = models.StatusFailed
	at := outcome.ReturnedAt
	p.FailedAt = &at
	return nil
}

func (r *fakePaymentRepo) MarkCompleted(p *models.Payment, outcome *models.SettlementOutcome) error {
	r.markCompletedCalls++
	if r.markCompletedErr != nil {
		return r.markCompletedErr
	}
	if p.Status != models.StatusProcessing {
		return repositories.ErrInvalidTransition
	}
	p.Metadata.Settlement = outcome
	p.Status = models.StatusCompleted
	var processedAt time.Time
	if outcome.ConfirmedAt != nil {
		processedAt = *outcome.ConfirmedAt
	} else {
		processedAt = time.Now()
	}
	p.ProcessedAt = &processedAt
	return nil
}

func (r *fakePaymentRepo) UpdateMetadata(p *models.Payment) error {
	r.updateMetadataCalls++
	return r.updateMetadataErr
}

type trackingCall struct {
	planID int64
	amount decimal.Decimal
}

type fakePlanRepo struct {
	settled  []trackingCall
	reverted []trackingCall

	settleErr error
	revertErr error
}

func (r *fakePlanRepo) GetByID(id int64) (*models.PaymentPlan, error) {
	return nil, repositories.ErrPlanNotFound
}

func (r *fakePlanRepo) SettleTracking(planID int64, amount decimal.Decimal) error {
	r.settled = append(r.settled, trackingCall{planID, amount})
	return r.settleErr
}

func (r *fakePlanRepo) RevertTracking(planID int64, amount decimal.Decimal) error {
	r.reverted = append(r.reverted, trackingCall{planID, amount})
	return r.revertErr
}

type fakeRunRepo struct {
	created   []*models.ReconciliationRun
	finished  []*models.RunReport
	createErr error
}

func (r *fakeRunRepo) CreateRun(run *models.ReconciliationRun) error {
	if r.createErr != nil {
		return r.createErr
	}
	run.ID = int64(len(r.created) + 1)
	r.created = append(r.created, run)
	return nil
}

func (r *fakeRunRepo) FinishRun(run *models.ReconciliationRun, report *models.RunReport) error {
	r.finished = append(r.finished, report)
	return nil
}

func (r *fakeRunRepo) GetRunByRunID(runID string) (*models.ReconciliationRun, error) {
	for _, run := range r.created {
		if run.RunID == runID {
			return run, nil
		}
	}
	return nil, repositories.ErrRunNotFound
}

type fakeLedgerWriter struct {
	writes   []*models.LedgerPayload
	writeErr error
}

func (w *fakeLedgerWriter) WriteDeferredPayment(payload *models.LedgerPayload) (string, error) {
	if w.writeErr != nil {
		return "", w.writeErr
	}
	w.writes = append(w.writes, payload)
	return "LEDGER-TEST-KEY", nil
}

type fakeNotifier struct {
	alerts   []string
	receipts []int64
}

func (n *fakeNotifier) AdminAlert(subject string, fields map[string]interface{}) {
	n.alerts = append(n.alerts, subject)
}

func (n *fakeNotifier) Receipt(paymentID int64) {
	n.receipts = append(n.receipts, paymentID)
}

// fakeReports serves canned vendor reports and injectable failures.
type fakeReports struct {
	returns    *kotapay.ReturnsReport
	returnsErr error

	summaries    *kotapay.BatchSummaryReport
	summariesErr error
	details      map[string]*kotapay.BatchDetailReport

	corrections    *kotapay.CorrectionsReport
	correctionsErr error
}

func (f *fakeReports) GetReturnsReport(since time.Time) (*kotapay.ReturnsReport, error) {
	if f.returnsErr != nil {
		return nil, f.returnsErr
	}
	if f.returns == nil {
		return &kotapay.ReturnsReport{}, nil
	}
	return f.returns, nil
}

func (f *fakeReports) GetProcessedBatches(start, end time.Time) (*kotapay.BatchSummaryReport, error) {
	if f.summariesErr != nil {
		return nil, f.summariesErr
	}
	if f.summaries == nil {
		return &kotapay.BatchSummaryReport{}, nil
	}
	return f.summaries, nil
}

func (f *fakeReports) GetBatchDetail(batchID string) (*kotapay.BatchDetailReport, error) {
	if detail, ok := f.details[batchID]; ok {
		return detail, nil
	}
	return &kotapay.BatchDetailReport{}, nil
}

func (f *fakeReports) GetCorrectionsReport(since time.Time) (*kotapay.CorrectionsReport, error) {
	if f.correctionsErr != nil {
		return nil, f.correctionsErr
	}
	if f.corrections == nil {
		return &kotapay.CorrectionsReport{}, nil
	}
	return f.corrections, nil
}

var errVendorDown = errors.New("vendor unavailable")

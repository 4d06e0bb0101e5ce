package services

import (
	"testing"

	"github.com/FoleyBridge-Solutions/tr-pay-sub002/internal/config"
	"github.com/FoleyBridge-Solutions/tr-pay-sub002/internal/kotapay"
	"github.com/FoleyBridge-Solutions/tr-pay-sub002/internal/models"
	"github.com/FoleyBridge-Solutions/tr-pay-sub002/internal/repositories"
)

func newService(reports *fakeReports, runs *fakeRunRepo, payments ...*models.Payment) *ReconciliationService {
	log := testLogger()
	repo := newFakePaymentRepo(payments...)
	effects := NewSideEffectCoordinator(repo, &fakePlanRepo{}, &fakeLedgerWriter{}, &fakeNotifier{}, log)
	cfg := config.ReconciliationConfig{
		ReturnWindowDays:     60,
		BatchLookbackDays:    14,
		CorrectionWindowDays: 30,
		StaleAgeDays:         7,
	}
	resolver := NewSettlementResolver(repo, reports, effects, cfg, log)
	monitor := NewReturnMonitor(repo, reports, effects, log)
	corrections := NewCorrectionLogger(reports, log)
	return NewReconciliationService(resolver, monitor, corrections, runs,
		cfg.ReturnWindowDays, cfg.CorrectionWindowDays, log)
}

func TestServiceRunPersistsRunRecord(t *testing.T) {
	runs := &fakeRunRepo{}
	p := processingPayment(1, "80.00")
	p.Metadata.KotapayAccountNameID = "ACCT-9"

	svc := newService(settledBatch("B7", yesterday(),
		kotapay.BatchEntryRow{ExternalID: "ACCT-9", PayeeName: "JOHN SMITH", CreditAmount: amt("80.00")},
	), runs, p)

	report, err := svc.Run(RunOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.RunID == "" {
		t.Error("expected a generated run id")
	}
	if report.Settled != 1 {
		t.Errorf("expected 1 settled, got %d", report.Settled)
	}
	if len(runs.created) != 1 || len(runs.finished) != 1 {
		t.Errorf("expected the run record created and finalized, got %d/%d", len(runs.created), len(runs.finished))
	}

	got, err := svc.GetRun(report.RunID)
	if err != nil {
		t.Fatalf("expected the run retrievable: %v", err)
	}
	if got.RunID != report.RunID {
		t.Errorf("run id mismatch: %s vs %s", got.RunID, report.RunID)
	}
}

func TestServiceDryRunSkipsRunRecord(t *testing.T) {
	runs := &fakeRunRepo{}
	svc := newService(&fakeReports{}, runs)

	report, err := svc.Run(RunOptions{DryRun: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.DryRun {
		t.Error("report must carry the dry run flag")
	}
	if len(runs.created) != 0 || len(runs.finished) != 0 {
		t.Error("dry run must persist no run record")
	}
}

func TestServiceRunHistoryFailureIsOnlyAWarning(t *testing.T) {
	runs := &fakeRunRepo{createErr: errVendorDown}
	p := processingPayment(1, "80.00")
	p.Metadata.KotapayAccountNameID = "ACCT-9"

	svc := newService(settledBatch("B7", yesterday(),
		kotapay.BatchEntryRow{ExternalID: "ACCT-9", PayeeName: "JOHN SMITH", CreditAmount: amt("80.00")},
	), runs, p)

	report, err := svc.Run(RunOptions{})
	if err != nil {
		t.Fatalf("run history failure must not abort the run: %v", err)
	}
	if report.Warnings != 1 {
		t.Errorf("expected 1 warning, got %d", report.Warnings)
	}
	if report.Settled != 1 {
		t.Errorf("reconciliation must still run, got settled=%d", report.Settled)
	}
}

func TestServiceCorrectionsFailureIsOnlyAWarning(t *testing.T) {
	runs := &fakeRunRepo{}
	svc := newService(&fakeReports{correctionsErr: errVendorDown}, runs)

	report, err := svc.Run(RunOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Warnings != 1 {
		t.Errorf("expected 1 warning, got %d", report.Warnings)
	}
	if report.Errors != 0 {
		t.Errorf("a corrections fetch failure is not an error, got %d", report.Errors)
	}
}

func TestServiceUnknownRunLookup(t *testing.T) {
	svc := newService(&fakeReports{}, &fakeRunRepo{})

	if _, err := svc.GetRun("nope"); err != repositories.ErrRunNotFound {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

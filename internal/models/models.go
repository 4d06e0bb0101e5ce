package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus constants. The reconciler only ever moves a payment
// forward: processing -> completed or failed, completed -> failed (a
// post-settlement bank return). Nothing moves back to processing.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// LocalReferencePrefix marks transaction references that were generated
// locally because the vendor never returned one at submission time.
const LocalReferencePrefix = "LOCAL-"

// Payment is an ACH debit tracked by the portal. The reconciler reads most
// fields and writes only Status, timestamps and the Metadata outcome fields.
type Payment struct {
	ID             int64           `db:"id"`
	TransactionRef string          `db:"transaction_ref"`
	Amount         decimal.Decimal `db:"amount"`
	Status         string          `db:"status"`
	PlanID         *int64          `db:"plan_id"`
	CustomerName   string          `db:"customer_name"`
	Metadata       Metadata        `db:"metadata"`
	CreatedAt      time.Time       `db:"created_at"`
	ProcessedAt    *time.Time      `db:"processed_at"`
	FailedAt       *time.Time      `db:"failed_at"`
}

// HasVendorReference reports whether the payment carries a real
// vendor-assigned transaction reference rather than a local fallback.
func (p *Payment) HasVendorReference() bool {
	return p.TransactionRef != "" && !strings.HasPrefix(p.TransactionRef, LocalReferencePrefix)
}

// CorrelationID is the vendor report identifier stored at debit-submission
// time. Empty for legacy payments submitted before the portal recorded it.
func (p *Payment) CorrelationID() string {
	return p.Metadata.KotapayAccountNameID
}

// CanTransition reports whether moving the payment to the given status is a
// permitted forward transition.
func (p *Payment) CanTransition(to string) bool {
	switch p.Status {
	case StatusProcessing:
		return to == StatusCompleted || to == StatusFailed
	case StatusCompleted:
		return to == StatusFailed
	default:
		return false
	}
}

// Metadata is the typed form of the payment's key/value bag. Only the keys
// the reconciler reads or writes are modeled; the portal's other keys pass
// through the JSON column untouched by this service because updates are
// whole-column writes of this struct merged over the stored value.
type Metadata struct {
	// Set at submission time.
	KotapayAccountNameID  string         `json:"kotapay_account_name_id,omitempty"`
	EffectiveDate         string         `json:"effective_date,omitempty"`
	RoutingNumber         string         `json:"routing_number,omitempty"`
	AccountNumber         string         `json:"account_number,omitempty"`
	DeferredLedgerPayload *LedgerPayload `json:"deferred_ledger_payload,omitempty"`

	// Written by the resolver.
	Return     *ReturnOutcome     `json:"ach_return,omitempty"`
	Settlement *SettlementOutcome `json:"ach_settlement,omitempty"`
}

// ReturnOutcome records a matched ACH return.
type ReturnOutcome struct {
	Code       string    `json:"code"`
	Reason     string    `json:"reason"`
	ReturnedAt time.Time `json:"returned_at"`
}

// SettlementOutcome records a confirmed settlement. BatchID and
// EffectiveDate may be stamped one run before ConfirmedAt when the batch is
// future-dated: the discovery is persisted so the next run resolves in O(1).
type SettlementOutcome struct {
	BatchID       string     `json:"batch_id"`
	EffectiveDate string     `json:"effective_date,omitempty"`
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty"`
	LedgerKey     string     `json:"ledger_key,omitempty"`
}

// Confirmed reports whether the settlement has actually been applied, as
// opposed to a persisted future-dated batch discovery.
func (s *SettlementOutcome) Confirmed() bool {
	return s != nil && s.ConfirmedAt != nil
}

// LedgerPayload is the deferred write destined for the legacy
// practice-management ledger, captured when the debit was submitted.
type LedgerPayload struct {
	PatientAccount string          `json:"patient_account"`
	Amount         decimal.Decimal `json:"amount"`
	Memo           string          `json:"memo,omitempty"`
	InvoiceNumbers []string        `json:"invoice_numbers,omitempty"`
}

// PaymentPlan tracks a customer's installment plan. PendingAmount holds
// increments for debits submitted but not yet settled; AppliedAmount holds
// increments for settled debits. A return moves a payment's increment out
// of pending, freeing the allocation for a retry.
type PaymentPlan struct {
	ID            int64           `db:"id"`
	PendingAmount decimal.Decimal `db:"pending_amount"`
	AppliedAmount decimal.Decimal `db:"applied_amount"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

// ReconciliationRun is the persisted summary of one scheduled pass.
type ReconciliationRun struct {
	ID         int64      `db:"id"`
	RunID      string     `db:"run_id"`
	DryRun     bool       `db:"dry_run"`
	Checked    int        `db:"checked_count"`
	Settled    int        `db:"settled_count"`
	Returned   int        `db:"returned_count"`
	InFlight   int        `db:"in_flight_count"`
	Stale      int        `db:"stale_count"`
	Errors     int        `db:"error_count"`
	Warnings   int        `db:"warning_count"`
	StartedAt  time.Time  `db:"started_at"`
	FinishedAt *time.Time `db:"finished_at"`
}

// RunReport accumulates counters for one invocation. Each job adds into the
// same report; it is printed and persisted once at the end of the run.
type RunReport struct {
	RunID    string `json:"run_id"`
	DryRun   bool   `json:"dry_run"`
	Checked  int    `json:"checked"`
	Settled  int    `json:"settled"`
	Returned int    `json:"returned"`
	InFlight int    `json:"in_flight"`
	Stale    int    `json:"stale"`
	Errors   int    `json:"errors"`
	Warnings int    `json:"warnings"`
}

func (r *RunReport) String() string {
	return fmt.Sprintf("run %s: checked=%d settled=%d returned=%d in_flight=%d stale=%d errors=%d warnings=%d dry_run=%v",
		r.RunID, r.Checked, r.Settled, r.Returned, r.InFlight, r.Stale, r.Errors, r.Warnings, r.DryRun)
}

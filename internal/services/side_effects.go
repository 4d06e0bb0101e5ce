package services

import (
	"github.com/sirupsen/logrus"

	"github.com/FoleyBridge-Solutions/tr-pay-sub002/internal/ledger"
	"github.com/FoleyBridge-Solutions/tr-pay-sub002/internal/models"
	"github.com/FoleyBridge-Solutions/tr-pay-sub002/internal/notify"
	"github.com/FoleyBridge-Solutions/tr-pay-sub002/internal/repositories"
)

// SideEffectCoordinator applies the bookkeeping that follows a resolution:
// the deferred legacy-ledger write and the plan-tracking bucket moves.
// Everything here is best-effort relative to the already-persisted payment
// status; a failed ledger write never unwinds a settlement, because the ACH
// debit genuinely did settle.
type SideEffectCoordinator struct {
	payments repositories.PaymentRepository
	plans    repositories.PlanRepository
	ledger   ledger.Writer
	notifier notify.Notifier
	log      *logrus.Logger
}

func NewSideEffectCoordinator(
	payments repositories.PaymentRepository,
	plans repositories.PlanRepository,
	writer ledger.Writer,
	notifier notify.Notifier,
	log *logrus.Logger,
) *SideEffectCoordinator {
	return &SideEffectCoordinator{
		payments: payments,
		plans:    plans,
		ledger:   writer,
		notifier: notifier,
		log:      log,
	}
}

// Settle runs the post-settlement side effects: deferred ledger write,
// plan tracking pending -> applied, receipt. Returns the number of errors
// encountered; the settlement itself stands regardless.
func (c *SideEffectCoordinator) Settle(p *models.Payment) int {
	errs := 0

	payload := p.Metadata.DeferredLedgerPayload
	alreadyWritten := p.Metadata.Settlement != nil && p.Metadata.Settlement.LedgerKey != ""
	if payload != nil && !alreadyWritten {
		key, err := c.ledger.WriteDeferredPayment(payload)
		if err != nil {
			errs++
			c.log.WithFields(logrus.Fields{
				"payment_id": p.ID,
				"error":      err.Error(),
			}).Error("deferred ledger write failed, will retry on a later run")
			c.notifier.AdminAlert("ledger write failed", map[string]interface{}{
				"payment_id": p.ID,
				"amount":     p.Amount.StringFixed(2),
			})
		} else {
			p.Metadata.Settlement.LedgerKey = key
			if err := c.payments.UpdateMetadata(p); err != nil {
				errs++
				c.log.WithFields(logrus.Fields{
					"payment_id": p.ID,
					"error":      err.Error(),
				}).Error("failed to stamp ledger entry key")
			}
		}
	}

	if p.PlanID != nil {
		if err := c.plans.SettleTracking(*p.PlanID, p.Amount); err != nil {
			errs++
			c.log.WithFields(logrus.Fields{
				"payment_id": p.ID,
				"plan_id":    *p.PlanID,
				"error":      err.Error(),
			}).Error("failed to move plan tracking to applied")
		}
	}

	c.notifier.Receipt(p.ID)
	return errs
}

// Revert runs the post-return side effects: plan tracking released from
// pending, admin alert. No-op on the plan side when the payment has no plan
// linkage.
func (c *SideEffectCoordinator) Revert(p *models.Payment) int {
	errs := 0

	if p.PlanID != nil {
		if err := c.plans.RevertTracking(*p.PlanID, p.Amount); err != nil {
			errs++
			c.log.WithFields(logrus.Fields{
				"payment_id": p.ID,
				"plan_id":    *p.PlanID,
				"error":      err.Error(),
			}).Error("failed to release plan tracking")
		}
	}

	fields := map[string]interface{}{
		"payment_id": p.ID,
		"amount":     p.Amount.StringFixed(2),
	}
	if p.Metadata.Return != nil {
		fields["return_code"] = p.Metadata.Return.Code
		fields["return_reason"] = p.Metadata.Return.Reason
	}
	c.notifier.AdminAlert("ach payment returned", fields)
	return errs
}

package services

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/FoleyBridge-Solutions/tr-pay-sub002/internal/kotapay"
	"github.com/FoleyBridge-Solutions/tr-pay-sub002/internal/models"
	"github.com/FoleyBridge-Solutions/tr-pay-sub002/internal/repositories"
)

// applyReturn records a matched ACH return against a payment: the failed
// transition, outcome stamping and side effects. Shared by the resolver
// (processing payments) and the return monitor (completed payments); it
// returns the number of errors encountered.
func applyReturn(
	payments repositories.PaymentRepository,
	effects *SideEffectCoordinator,
	log *logrus.Logger,
	p *models.Payment,
	row *kotapay.ReturnRow,
	dryRun bool,
	report *models.RunReport,
) int {
	log.WithFields(logrus.Fields{
		"payment_id":    p.ID,
		"amount":        p.Amount.StringFixed(2),
		"return_code":   row.ReturnCode,
		"return_reason": row.ReturnReason,
		"dry_run":       dryRun,
	}).Info("payment returned")

	report.Returned++
	if dryRun {
		return 0
	}

	outcome := &models.ReturnOutcome{
		Code:       row.ReturnCode,
		Reason:     row.ReturnReason,
		ReturnedAt: time.Now(),
	}

	err := payments.MarkFailed(p, outcome)
	if err == repositories.ErrInvalidTransition {
		log.WithFields(logrus.Fields{
			"payment_id": p.ID,
			"status":     p.Status,
		}).Warn("payment already failed, skipping return application")
		return 0
	}
	if err != nil {
		log.WithFields(logrus.Fields{
			"payment_id": p.ID,
			"error":      err.Error(),
		}).Error("failed to mark payment failed")
		return 1
	}

	return effects.Revert(p)
}

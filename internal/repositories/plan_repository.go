package repositories

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/FoleyBridge-Solutions/tr-pay-sub002/internal/models"
)

var ErrPlanNotFound = errors.New("payment plan not found")

// PlanRepository maintains the pending/applied tracking buckets on payment
// plans. Both mutations lock the plan row for the duration of the
// transaction so concurrent resolution of payments sharing a plan cannot
// lose updates.
type PlanRepository interface {
	GetByID(id int64) (*models.PaymentPlan, error)
	SettleTracking(planID int64, amount decimal.Decimal) error
	RevertTracking(planID int64, amount decimal.Decimal) error
}

type planRepository struct {
	db *sql.DB
}

func NewPlanRepository(db *sql.DB) PlanRepository {
	return &planRepository{db: db}
}

func (r *planRepository) GetByID(id int64) (*models.PaymentPlan, error) {
	plan := &models.PaymentPlan{}
	var pending, applied string

	query := `
		SELECT id, pending_amount, applied_amount, created_at, updated_at
		FROM payment_plans
		WHERE id = ?
	`
	err := r.db.QueryRow(query, id).Scan(
		&plan.ID,
		&pending,
		&applied,
		&plan.CreatedAt,
		&plan.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, err
	}

	if plan.PendingAmount, err = parseAmount(pending); err != nil {
		return nil, fmt.Errorf("plan %d: %w", id, err)
	}
	if plan.AppliedAmount, err = parseAmount(applied); err != nil {
		return nil, fmt.Errorf("plan %d: %w", id, err)
	}
	return plan, nil
}

// SettleTracking moves a settled payment's increment from the plan's
// pending bucket to its applied bucket.
func (r *planRepository) SettleTracking(planID int64, amount decimal.Decimal) error {
	return r.adjustTracking(planID, amount, true)
}

// RevertTracking removes a returned payment's increment from the plan's
// pending bucket, freeing the allocation for a future attempt.
func (r *planRepository) RevertTracking(planID int64, amount decimal.Decimal) error {
	return r.adjustTracking(planID, amount, false)
}

func (r *planRepository) adjustTracking(planID int64, amount decimal.Decimal, apply bool) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning plan transaction: %w", err)
	}
	defer tx.Rollback()

	var pending string
	err = tx.QueryRow(`SELECT pending_amount FROM payment_plans WHERE id = ? FOR UPDATE`, planID).Scan(&pending)
	if err == sql.ErrNoRows {
		return ErrPlanNotFound
	}
	if err != nil {
		return err
	}

	pendingAmount, err := parseAmount(pending)
	if err != nil {
		return fmt.Errorf("plan %d: %w", planID, err)
	}

	// Released increments can exceed the tracked pending total when the
	// portal changed the plan mid-flight; the bucket floors at zero.
	released := decimal.Min(amount, pendingAmount)
	newPending := pendingAmount.Sub(released)

	if apply {
		_, err = tx.Exec(`
			UPDATE payment_plans
			SET pending_amount = ?, applied_amount = applied_amount + ?, updated_at = NOW()
			WHERE id = ?
		`, newPending.StringFixed(2), amount.StringFixed(2), planID)
	} else {
		_, err = tx.Exec(`
			UPDATE payment_plans
			SET pending_amount = ?, updated_at = NOW()
			WHERE id = ?
		`, newPending.StringFixed(2), planID)
	}
	if err != nil {
		return err
	}

	return tx.Commit()
}

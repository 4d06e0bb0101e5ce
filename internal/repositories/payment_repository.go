package repositories

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/FoleyBridge-Solutions/tr-pay-sub002/internal/models"
)

var ErrPaymentNotFound = errors.New("payment not found")

// ErrInvalidTransition is returned when a status update's guard matched no
// row: the payment already left the expected state, likely in a concurrent
// or previous run. Callers treat it as "already handled".
var ErrInvalidTransition = errors.New("payment not in expected status")

type PaymentRepository interface {
	GetByID(id int64) (*models.Payment, error)
	GetProcessing() ([]*models.Payment, error)
	GetCompletedSince(since time.Time) ([]*models.Payment, error)
	MarkFailed(p *models.Payment, outcome *models.ReturnOutcome) error
	MarkCompleted(p *models.Payment, outcome *models.SettlementOutcome) error
	UpdateMetadata(p *models.Payment) error
}

type paymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

const paymentColumns = `
	id, transaction_ref, amount, status, plan_id, customer_name,
	metadata, created_at, processed_at, failed_at
`

func (r *paymentRepository) GetByID(id int64) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = ?`
	p, err := scanPayment(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *paymentRepository) GetProcessing() ([]*models.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE status = ?
		ORDER BY id
	`
	return r.queryPayments(query, models.StatusProcessing)
}

func (r *paymentRepository) GetCompletedSince(since time.Time) ([]*models.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE status = ? AND processed_at >= ?
		ORDER BY id
	`
	return r.queryPayments(query, models.StatusCompleted, since)
}

// MarkFailed transitions the payment to failed with the matched return
// outcome stamped into its metadata. The status guard makes the write
// idempotent: a payment that already failed is left untouched.
func (r *paymentRepository) MarkFailed(p *models.Payment, outcome *models.ReturnOutcome) error {
	p.Metadata.Return = outcome
	metadata, err := json.Marshal(p.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling payment metadata: %w", err)
	}

	query := `
		UPDATE payments
		SET status = ?, failed_at = ?, metadata = ?
		WHERE id = ? AND status IN (?, ?)
	`
	result, err := r.db.Exec(query,
		models.StatusFailed,
		outcome.ReturnedAt,
		metadata,
		p.ID,
		models.StatusProcessing,
		models.StatusCompleted,
	)
	if err != nil {
		return err
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrInvalidTransition
	}

	p.Status = models.StatusFailed
	at := outcome.ReturnedAt
	p.FailedAt = &at
	return nil
}

// MarkCompleted transitions the payment to completed. Only a processing
// payment may settle; completed and failed rows never move here.
func (r *paymentRepository) MarkCompleted(p *models.Payment, outcome *models.SettlementOutcome) error {
	p.Metadata.Settlement = outcome
	metadata, err := json.Marshal(p.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling payment metadata: %w", err)
	}

	var processedAt time.Time
	if outcome.ConfirmedAt != nil {
		processedAt = *outcome.ConfirmedAt
	} else {
		processedAt = time.Now()
	}

	query := `
		UPDATE payments
		SET status = ?, processed_at = ?, metadata = ?
		WHERE id = ? AND status = ?
	`
	result, err := r.db.Exec(query,
		models.StatusCompleted,
		processedAt,
		metadata,
		p.ID,
		models.StatusProcessing,
	)
	if err != nil {
		return err
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrInvalidTransition
	}

	p.Status = models.StatusCompleted
	p.ProcessedAt = &processedAt
	return nil
}

// UpdateMetadata persists the payment's metadata without touching status,
// used to stamp a discovered future-dated batch or a ledger entry key.
func (r *paymentRepository) UpdateMetadata(p *models.Payment) error {
	metadata, err := json.Marshal(p.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling payment metadata: %w", err)
	}

	_, err = r.db.Exec(`UPDATE payments SET metadata = ? WHERE id = ?`, metadata, p.ID)
	return err
}

func (r *paymentRepository) queryPayments(query string, args ...interface{}) ([]*models.Payment, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPayment(row rowScanner) (*models.Payment, error) {
	p := &models.Payment{}
	var (
		amount   string
		planID   sql.NullInt64
		metadata []byte
	)

	err := row.Scan(
		&p.ID,
		&p.TransactionRef,
		&amount,
		&p.Status,
		&planID,
		&p.CustomerName,
		&metadata,
		&p.CreatedAt,
		&p.ProcessedAt,
		&p.FailedAt,
	)
	if err != nil {
		return nil, err
	}

	if p.Amount, err = parseAmount(amount); err != nil {
		return nil, fmt.Errorf("payment %d: %w", p.ID, err)
	}
	if planID.Valid {
		p.PlanID = &planID.Int64
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &p.Metadata); err != nil {
			return nil, fmt.Errorf("payment %d: decoding metadata: %w", p.ID, err)
		}
	}
	return p, nil
}

package ledger

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/FoleyBridge-Solutions/tr-pay-sub002/internal/models"
)

// Writer posts a settled payment into the legacy practice-management
// ledger. The write is best-effort: a failure after settlement is recorded
// locally and retried on a later run, it never unwinds the settlement.
type Writer interface {
	WriteDeferredPayment(payload *models.LedgerPayload) (string, error)
}

// MySQLWriter writes into the legacy schema directly: one payment row plus
// an optional memo row, correlated by a generated entry key.
type MySQLWriter struct {
	db  *sql.DB
	log *logrus.Logger
}

func NewMySQLWriter(db *sql.DB, log *logrus.Logger) *MySQLWriter {
	return &MySQLWriter{db: db, log: log}
}

func (w *MySQLWriter) WriteDeferredPayment(payload *models.LedgerPayload) (string, error) {
	if payload == nil {
		return "", fmt.Errorf("nil ledger payload")
	}

	entryKey := uuid.NewString()

	tx, err := w.db.Begin()
	if err != nil {
		return "", fmt.Errorf("beginning ledger transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO ledger_payments (entry_key, patient_account, amount, posted_at)
		VALUES (?, ?, ?, ?)
	`, entryKey, payload.PatientAccount, payload.Amount.StringFixed(2), time.Now())
	if err != nil {
		return "", fmt.Errorf("inserting ledger payment: %w", err)
	}

	memo := payload.Memo
	if len(payload.InvoiceNumbers) > 0 {
		if memo != "" {
			memo += " "
		}
		memo += "Invoices: " + strings.Join(payload.InvoiceNumbers, ", ")
	}
	if memo != "" {
		_, err = tx.Exec(`
			INSERT INTO ledger_memos (entry_key, patient_account, memo, posted_at)
			VALUES (?, ?, ?, ?)
		`, entryKey, payload.PatientAccount, memo, time.Now())
		if err != nil {
			return "", fmt.Errorf("inserting ledger memo: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing ledger write: %w", err)
	}

	w.log.WithFields(logrus.Fields{
		"entry_key":       entryKey,
		"patient_account": payload.PatientAccount,
		"amount":          payload.Amount.StringFixed(2),
	}).Info("wrote deferred payment to legacy ledger")
	return entryKey, nil
}

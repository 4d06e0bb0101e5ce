package kotapay

import (
	"bytes"
	"encoding/json"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ReturnRow is one entry of the vendor's ACH returns report. Sign
// conventions on the amount fields vary between report versions; callers
// must go through Amount() rather than reading the fields directly.
type ReturnRow struct {
	ExternalID    string          `json:"account_name_id"`
	PayeeName     string          `json:"individual_name"`
	DebitAmount   decimal.Decimal `json:"debit_amount"`
	CreditAmount  decimal.Decimal `json:"credit_amount"`
	RoutingNumber string          `json:"routing_number"`
	AccountNumber string          `json:"account_number"`
	ReturnCode    string          `json:"return_code"`
	ReturnReason  string          `json:"return_reason"`
	ReturnDate    string          `json:"return_date"`
}

// Amount returns the row's amount: the absolute value of the debit field
// when populated and nonzero, else of the credit field.
func (r *ReturnRow) Amount() decimal.Decimal {
	if !r.DebitAmount.IsZero() {
		return r.DebitAmount.Abs()
	}
	return r.CreditAmount.Abs()
}

// BatchSummaryRow is one entry of the processed-batches summary report.
type BatchSummaryRow struct {
	BatchID           string `json:"batch_id"`
	Description       string `json:"company_entry_description"`
	DiscretionaryData string `json:"company_discretionary_data"`
	EffectiveDate     string `json:"effective_entry_date"`
}

// BatchEntryRow is one entry of a single batch's detail report.
type BatchEntryRow struct {
	ExternalID    string          `json:"account_name_id"`
	PayeeName     string          `json:"individual_name"`
	CreditAmount  decimal.Decimal `json:"credit_amount"`
	RoutingNumber string          `json:"routing_number"`
}

// CorrectionRow is one entry of the corrections (NOC) report.
type CorrectionRow struct {
	ExternalID    string `json:"account_name_id"`
	ChangeCode    string `json:"change_code"`
	CorrectedData string `json:"corrected_data"`
	Reason        string `json:"reason"`
}

type ReturnsReport struct {
	Rows []ReturnRow
}

type BatchSummaryReport struct {
	Rows []BatchSummaryRow
}

type BatchDetailReport struct {
	Rows []BatchEntryRow
}

type CorrectionsReport struct {
	Rows     []CorrectionRow
	RowCount int
}

// rawReport is the wire shape of every report endpoint. Rows should be an
// array but certain report types come back as a flat-file string when the
// vendor falls back to its legacy renderer, so it is captured raw and
// coerced afterwards.
type rawReport struct {
	Rows     json.RawMessage `json:"rows"`
	RowCount int             `json:"row_count"`
}

// decodeRows coerces a raw rows payload into typed rows. Anything that is
// not array-shaped degrades to an empty slice with a warning; resolution
// must see "nothing found" rather than a crashed run.
func decodeRows[T any](raw json.RawMessage, report string, log *logrus.Logger) []T {
	if len(raw) == 0 {
		return nil
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		log.WithFields(logrus.Fields{
			"report": report,
			"shape":  previewShape(trimmed),
		}).Warn("report rows field is not a list, treating as empty")
		return nil
	}

	var rows []T
	if err := json.Unmarshal(trimmed, &rows); err != nil {
		log.WithFields(logrus.Fields{
			"report": report,
			"error":  err.Error(),
		}).Warn("report rows failed to decode, treating as empty")
		return nil
	}
	return rows
}

func previewShape(raw []byte) string {
	if len(raw) == 0 {
		return "empty"
	}
	switch raw[0] {
	case '"':
		return "string"
	case '{':
		return "object"
	default:
		return "scalar"
	}
}

package kotapay

import (
	"encoding/json"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
)

func discardLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestDecodeRowsArray(t *testing.T) {
	raw := json.RawMessage(`[
		{"account_name_id": "E1", "individual_name": "JOHN SMITH", "credit_amount": "100.00"},
		{"account_name_id": "E2", "individual_name": "JANE DOE", "credit_amount": "55.50"}
	]`)

	rows := decodeRows[BatchEntryRow](raw, "batch-detail", discardLogger())
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].ExternalID != "E1" {
		t.Errorf("expected external id E1, got %s", rows[0].ExternalID)
	}
	if rows[1].CreditAmount.StringFixed(2) != "55.50" {
		t.Errorf("expected amount 55.50, got %s", rows[1].CreditAmount.StringFixed(2))
	}
}

func TestDecodeRowsNonArrayShapes(t *testing.T) {
	// The legacy renderer can hand back a flat-file string, an object, or
	// nothing at all where the rows array belongs. All of them must read
	// as an empty report, never as a decode crash.
	tests := []struct {
		name string
		raw  string
	}{
		{"flat file string", `"101 091000019 FBS    2608280830A094101"`},
		{"object", `{"message": "no rows"}`},
		{"scalar", `0`},
		{"null", `null`},
		{"whitespace", `   `},
		{"empty", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := decodeRows[ReturnRow](json.RawMessage(tt.raw), "returns", discardLogger())
			if len(rows) != 0 {
				t.Errorf("expected no rows, got %d", len(rows))
			}
		})
	}
}

func TestDecodeRowsMalformedArray(t *testing.T) {
	raw := json.RawMessage(`[{"account_name_id": "E1", "credit_amount": }]`)
	rows := decodeRows[BatchEntryRow](raw, "batch-detail", discardLogger())
	if rows != nil {
		t.Errorf("expected nil rows for malformed array, got %v", rows)
	}
}

func TestReturnRowAmountSignConventions(t *testing.T) {
	tests := []struct {
		name   string
		row    string
		expect string
	}{
		{"debit preferred", `{"debit_amount": "100.00", "credit_amount": "5.00"}`, "100.00"},
		{"negative debit", `{"debit_amount": "-250.00"}`, "250.00"},
		{"credit fallback", `{"credit_amount": "-75.25"}`, "75.25"},
		{"zero debit falls through", `{"debit_amount": "0", "credit_amount": "60.00"}`, "60.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var row ReturnRow
			if err := json.Unmarshal([]byte(tt.row), &row); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got := row.Amount().StringFixed(2); got != tt.expect {
				t.Errorf("expected %s, got %s", tt.expect, got)
			}
		})
	}
}

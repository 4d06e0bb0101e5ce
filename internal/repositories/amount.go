package repositories

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// parseAmount converts a DECIMAL column scanned as a string. MySQL DECIMAL
// values round-trip exactly through strings, never through float64.
func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	return d, nil
}

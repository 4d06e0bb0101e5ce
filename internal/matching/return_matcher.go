package matching

import (
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/FoleyBridge-Solutions/tr-pay-sub002/internal/kotapay"
	"github.com/FoleyBridge-Solutions/tr-pay-sub002/internal/models"
)

// amountTolerance is the maximum difference for two amounts to be regarded
// as the same debit. One cent, matching the vendor's observed rounding.
var amountTolerance = decimal.New(1, -2)

// AmountsMatch reports whether two amounts are within one cent of each
// other.
func AmountsMatch(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(amountTolerance)
}

// ReturnMatcher finds the return report row for a payment, if any. Matching
// is tiered: authoritative external-id lookup, then a routing/account scan,
// then a name-prefix scan. The fallbacks abstain whenever more than one row
// could be the match.
type ReturnMatcher struct {
	rows []kotapay.ReturnRow
	byID map[string]*kotapay.ReturnRow
	log  *logrus.Logger
}

func NewReturnMatcher(report *kotapay.ReturnsReport, log *logrus.Logger) *ReturnMatcher {
	m := &ReturnMatcher{
		byID: make(map[string]*kotapay.ReturnRow),
		log:  log,
	}
	if report != nil {
		m.rows = report.Rows
	}
	for i := range m.rows {
		row := &m.rows[i]
		if row.ExternalID == "" {
			continue
		}
		if _, ok := m.byID[row.ExternalID]; ok {
			m.log.WithFields(logrus.Fields{
				"external_id": row.ExternalID,
			}).Warn("duplicate external id in returns report, keeping first row")
			continue
		}
		m.byID[row.ExternalID] = row
	}
	return m
}

// FindReturn returns the single return row matching the payment, or false
// when there is none or the evidence is ambiguous.
func (m *ReturnMatcher) FindReturn(p *models.Payment) (*kotapay.ReturnRow, bool) {
	if id := p.CorrelationID(); id != "" {
		if row, ok := m.byID[id]; ok {
			return row, true
		}
		// An id-bearing payment absent from the id index is simply not
		// in this report. Fallback scans are for legacy payments only.
		return nil, false
	}

	if p.Metadata.RoutingNumber != "" || p.Metadata.AccountNumber != "" {
		if row, ok := m.findByBankAccount(p); ok {
			return row, true
		}
		return nil, false
	}

	return m.findByNamePrefix(p)
}

// findByBankAccount scans for a row with the payment's amount and an exact
// routing or account number match. Bank account numbers are assumed unique
// enough that the first hit needs no disambiguation.
func (m *ReturnMatcher) findByBankAccount(p *models.Payment) (*kotapay.ReturnRow, bool) {
	for i := range m.rows {
		row := &m.rows[i]
		if !AmountsMatch(p.Amount, row.Amount()) {
			continue
		}

		routingMatch := p.Metadata.RoutingNumber != "" && row.RoutingNumber != "" &&
			p.Metadata.RoutingNumber == row.RoutingNumber
		accountMatch := p.Metadata.AccountNumber != "" && row.AccountNumber != "" &&
			p.Metadata.AccountNumber == row.AccountNumber
		if !routingMatch && !accountMatch {
			continue
		}

		m.log.WithFields(logrus.Fields{
			"payment_id":  p.ID,
			"amount":      p.Amount.StringFixed(2),
			"return_code": row.ReturnCode,
			"matched_by":  "bank_account",
		}).Info("matched return via bank account fallback")
		return row, true
	}
	return nil, false
}

func (m *ReturnMatcher) findByNamePrefix(p *models.Payment) (*kotapay.ReturnRow, bool) {
	prefix := NamePrefix(p.CustomerName, DefaultPrefixLength)
	if len(prefix) < MinPrefixLength {
		return nil, false
	}

	var candidates []*kotapay.ReturnRow
	for i := range m.rows {
		row := &m.rows[i]
		if !AmountsMatch(p.Amount, row.Amount()) {
			continue
		}
		if NamePrefix(row.PayeeName, len(prefix)) != prefix {
			continue
		}
		candidates = append(candidates, row)
	}

	switch len(candidates) {
	case 0:
		return nil, false
	case 1:
		m.log.WithFields(logrus.Fields{
			"payment_id":  p.ID,
			"amount":      p.Amount.StringFixed(2),
			"name_prefix": prefix,
			"return_code": candidates[0].ReturnCode,
			"matched_by":  "name_prefix",
		}).Info("matched return via name prefix fallback")
		return candidates[0], true
	default:
		m.log.WithFields(logrus.Fields{
			"payment_id":  p.ID,
			"amount":      p.Amount.StringFixed(2),
			"name_prefix": prefix,
			"candidates":  len(candidates),
		}).Warn("ambiguous return match, leaving for manual review")
		return nil, false
	}
}

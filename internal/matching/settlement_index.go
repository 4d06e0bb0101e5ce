package matching

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/FoleyBridge-Solutions/tr-pay-sub002/internal/kotapay"
	"github.com/FoleyBridge-Solutions/tr-pay-sub002/internal/models"
)

// collectionDescriptions are the batch entry descriptions KotaPay uses for
// batches that pull funds from customers. Anything else (disbursements,
// internal funding transfers) can never settle a customer debit.
var collectionDescriptions = map[string]bool{
	"BILLING":       true,
	"PAYMENT":       true,
	"ADMIN-PAYMENT": true,
	"DOWN-PAYMENT":  true,
}

// offsetEntryName identifies each batch's own offset/clearing entry, which
// balances the batch and is not a collection.
const offsetEntryName = "KOTAPAY OFFSET"

// SettledEntry is a batch detail row enriched with its parent batch's id
// and effective date.
type SettledEntry struct {
	ExternalID    string
	PayeeName     string
	CreditAmount  decimal.Decimal
	RoutingNumber string
	BatchID       string
	EffectiveDate string
}

// SettlementIndex holds every settled collection entry for the run's date
// range, indexed two ways. Rebuilt from scratch every run and read-only
// afterwards.
type SettlementIndex struct {
	byExternalID map[string]*SettledEntry
	byNameAmount map[string][]*SettledEntry
	entries      []*SettledEntry
	log          *logrus.Logger

	// DetailErrors counts per-batch detail fetches that failed. The
	// affected batches simply contribute no entries.
	DetailErrors int
	// DuplicateIDs counts external ids seen more than once; the first
	// occurrence wins.
	DuplicateIDs int
}

// nameAmountKey builds the composite lookup key. Both the builder and the
// lookup go through this constructor so the format cannot drift.
func nameAmountKey(name string, amount decimal.Decimal) string {
	return NormalizeName(name) + "|" + amount.StringFixed(2)
}

// IsCollectionBatch reports whether a batch summary row describes a
// collection batch.
func IsCollectionBatch(row *kotapay.BatchSummaryRow) bool {
	desc := strings.ToUpper(strings.TrimSpace(row.Description))
	if collectionDescriptions[desc] {
		return true
	}
	return strings.Contains(strings.ToUpper(row.DiscretionaryData), "BILLING")
}

// BuildSettlementIndex fetches processed-batch summaries for the date range
// and indexes every settled collection entry. A summary fetch failure is
// fatal (there is nothing to index); a single batch's detail failure is
// logged and counted, and the other batches still index.
func BuildSettlementIndex(src kotapay.ReportSource, start, end time.Time, log *logrus.Logger) (*SettlementIndex, error) {
	summaries, err := src.GetProcessedBatches(start, end)
	if err != nil {
		return nil, err
	}

	idx := &SettlementIndex{
		byExternalID: make(map[string]*SettledEntry),
		byNameAmount: make(map[string][]*SettledEntry),
		log:          log,
	}

	for i := range summaries.Rows {
		batch := &summaries.Rows[i]
		if !IsCollectionBatch(batch) {
			log.WithFields(logrus.Fields{
				"batch_id":    batch.BatchID,
				"description": batch.Description,
			}).Debug("skipping non-collection batch")
			continue
		}

		detail, err := src.GetBatchDetail(batch.BatchID)
		if err != nil {
			idx.DetailErrors++
			log.WithFields(logrus.Fields{
				"batch_id": batch.BatchID,
				"error":    err.Error(),
			}).Error("batch detail fetch failed, skipping batch")
			continue
		}

		for j := range detail.Rows {
			idx.addEntry(batch, &detail.Rows[j])
		}
	}

	log.WithFields(logrus.Fields{
		"entries":       len(idx.entries),
		"detail_errors": idx.DetailErrors,
		"duplicate_ids": idx.DuplicateIDs,
	}).Info("settlement index built")
	return idx, nil
}

func (idx *SettlementIndex) addEntry(batch *kotapay.BatchSummaryRow, row *kotapay.BatchEntryRow) {
	if NormalizeName(row.PayeeName) == offsetEntryName {
		return
	}
	if !row.CreditAmount.IsPositive() {
		return
	}

	entry := &SettledEntry{
		ExternalID:    row.ExternalID,
		PayeeName:     row.PayeeName,
		CreditAmount:  row.CreditAmount,
		RoutingNumber: row.RoutingNumber,
		BatchID:       batch.BatchID,
		EffectiveDate: batch.EffectiveDate,
	}

	if entry.ExternalID != "" {
		if first, ok := idx.byExternalID[entry.ExternalID]; ok {
			idx.DuplicateIDs++
			idx.log.WithFields(logrus.Fields{
				"external_id":     entry.ExternalID,
				"first_batch":     first.BatchID,
				"duplicate_batch": entry.BatchID,
			}).Warn("duplicate external id in settlement index, keeping first entry")
		} else {
			idx.byExternalID[entry.ExternalID] = entry
		}
	}

	key := nameAmountKey(entry.PayeeName, entry.CreditAmount)
	idx.byNameAmount[key] = append(idx.byNameAmount[key], entry)
	idx.entries = append(idx.entries, entry)
}

// Size returns the number of indexed entries.
func (idx *SettlementIndex) Size() int {
	return len(idx.entries)
}

// FindSettlement returns the single settled entry matching the payment, or
// false when there is none or the evidence is ambiguous. Same tiering as
// return matching: external id, then name+amount (narrowed by routing
// number when several entries collide), then name prefix.
func (idx *SettlementIndex) FindSettlement(p *models.Payment) (*SettledEntry, bool) {
	if id := p.CorrelationID(); id != "" {
		if entry, ok := idx.byExternalID[id]; ok {
			return entry, true
		}
		return nil, false
	}

	if entry, ok := idx.findByNameAmount(p); ok {
		return entry, true
	}
	return idx.findByNamePrefix(p)
}

func (idx *SettlementIndex) findByNameAmount(p *models.Payment) (*SettledEntry, bool) {
	candidates := idx.byNameAmount[nameAmountKey(p.CustomerName, p.Amount)]
	if len(candidates) == 0 {
		return nil, false
	}

	if len(candidates) > 1 && p.Metadata.RoutingNumber != "" {
		narrowed := make([]*SettledEntry, 0, len(candidates))
		for _, entry := range candidates {
			if entry.RoutingNumber != "" && entry.RoutingNumber == p.Metadata.RoutingNumber {
				narrowed = append(narrowed, entry)
			}
		}
		if len(narrowed) > 0 {
			candidates = narrowed
		}
	}

	if len(candidates) > 1 {
		idx.log.WithFields(logrus.Fields{
			"payment_id": p.ID,
			"amount":     p.Amount.StringFixed(2),
			"candidates": len(candidates),
		}).Warn("ambiguous settlement match, leaving for manual review")
		return nil, false
	}

	entry := candidates[0]
	idx.log.WithFields(logrus.Fields{
		"payment_id": p.ID,
		"amount":     p.Amount.StringFixed(2),
		"batch_id":   entry.BatchID,
		"matched_by": "name_amount",
	}).Info("matched settlement via name and amount fallback")
	return entry, true
}

func (idx *SettlementIndex) findByNamePrefix(p *models.Payment) (*SettledEntry, bool) {
	prefix := NamePrefix(p.CustomerName, DefaultPrefixLength)
	if len(prefix) < MinPrefixLength {
		return nil, false
	}

	var candidates []*SettledEntry
	for _, entry := range idx.entries {
		if !AmountsMatch(p.Amount, entry.CreditAmount) {
			continue
		}
		if NamePrefix(entry.PayeeName, len(prefix)) != prefix {
			continue
		}
		candidates = append(candidates, entry)
	}

	switch len(candidates) {
	case 0:
		return nil, false
	case 1:
		entry := candidates[0]
		idx.log.WithFields(logrus.Fields{
			"payment_id":  p.ID,
			"amount":      p.Amount.StringFixed(2),
			"name_prefix": prefix,
			"batch_id":    entry.BatchID,
			"matched_by":  "name_prefix",
		}).Info("matched settlement via name prefix fallback")
		return entry, true
	default:
		idx.log.WithFields(logrus.Fields{
			"payment_id":  p.ID,
			"amount":      p.Amount.StringFixed(2),
			"name_prefix": prefix,
			"candidates":  len(candidates),
		}).Warn("ambiguous settlement match, leaving for manual review")
		return nil, false
	}
}

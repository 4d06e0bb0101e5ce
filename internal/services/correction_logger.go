package services

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/FoleyBridge-Solutions/tr-pay-sub002/internal/kotapay"
	"github.com/FoleyBridge-Solutions/tr-pay-sub002/internal/models"
)

// CorrectionLogger surfaces NOC (notification of change) advisories for
// manual follow-up. Strictly informational: corrections tell the office to
// update account details for future debits, they never change the state of
// an existing payment.
type CorrectionLogger struct {
	reports kotapay.ReportSource
	log     *logrus.Logger
}

func NewCorrectionLogger(reports kotapay.ReportSource, log *logrus.Logger) *CorrectionLogger {
	return &CorrectionLogger{reports: reports, log: log}
}

// Run logs every correction in the trailing window. A fetch failure is a
// warning, never a run failure.
func (c *CorrectionLogger) Run(windowDays int, report *models.RunReport) {
	since := time.Now().AddDate(0, 0, -windowDays)

	corrections, err := c.reports.GetCorrectionsReport(since)
	if err != nil {
		report.Warnings++
		c.log.WithField("error", err.Error()).Warn("corrections report fetch failed, skipping")
		return
	}

	for i := range corrections.Rows {
		row := &corrections.Rows[i]
		c.log.WithFields(logrus.Fields{
			"external_id":    row.ExternalID,
			"change_code":    row.ChangeCode,
			"corrected_data": row.CorrectedData,
			"reason":         row.Reason,
		}).Info("correction notice received")
	}

	c.log.WithFields(logrus.Fields{
		"window_days": windowDays,
		"row_count":   corrections.RowCount,
		"rows_logged": len(corrections.Rows),
	}).Info("corrections pass complete")
}

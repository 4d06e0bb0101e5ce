package notify

import (
	"github.com/sirupsen/logrus"
)

// Notifier delivers fire-and-forget notifications. Delivery failures are
// the implementation's problem to log; callers never see an error because
// a missed alert must not change reconciliation behavior.
type Notifier interface {
	AdminAlert(subject string, fields map[string]interface{})
	Receipt(paymentID int64)
}

// LogNotifier records notifications as structured log entries. The log
// collector forwards admin alerts to the on-call channel.
type LogNotifier struct {
	log *logrus.Logger
}

func NewLogNotifier(log *logrus.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) AdminAlert(subject string, fields map[string]interface{}) {
	entry := n.log.WithField("alert", subject)
	for k, v := range fields {
		entry = entry.WithField(k, v)
	}
	entry.Warn("admin alert")
}

func (n *LogNotifier) Receipt(paymentID int64) {
	n.log.WithField("payment_id", paymentID).Info("receipt queued")
}

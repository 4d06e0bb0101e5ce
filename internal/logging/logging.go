package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger builds the service-wide logrus logger. JSON output so the
// scheduler's log collector can index the structured match/skip fields.
func NewLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)

	return logger
}

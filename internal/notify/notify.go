// Package notify holds the alert side channel used when a batch cannot be
// stored. Implementations never return errors to the caller.
package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogNotifier writes alerts to the log. It is the fallback for local runs.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs the message at error level.
func (n *LogNotifier) Notify(_ context.Context, topic, message string) {
	n.logger.Error("alert", zap.String("topic", topic), zap.String("message", message))
}

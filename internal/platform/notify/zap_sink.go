package notify

import (
	"go.uber.org/zap"

	"github.com/kasaflow/kasaflow/internal/ledger/domain"
)

// ZapSink is the default NotificationSink: it turns success/failure signals
// into structured log lines. The ledger never waits on or inspects the
// outcome, so a richer sink (mail, webhook) can drop in behind the same
// interface.
type ZapSink struct {
	logger *zap.Logger
}

func NewZapSink(logger *zap.Logger) *ZapSink {
	return &ZapSink{logger: logger}
}

func (s *ZapSink) Notify(kind domain.NotificationKind, message string) {
	switch kind {
	case domain.NotifyFailure:
		s.logger.Error("notification", zap.String("kind", string(kind)), zap.String("message", message))
	case domain.NotifyWarning:
		s.logger.Warn("notification", zap.String("kind", string(kind)), zap.String("message", message))
	default:
		s.logger.Info("notification", zap.String("kind", string(kind)), zap.String("message", message))
	}
}

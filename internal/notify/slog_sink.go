package notify

import (
	"log/slog"

	"github.com/miradorstack/mirador-remediate/internal/models"
)

// LogSink records every lifecycle event through structured logging, so each
// transition leaves a log record even with no websocket clients attached.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink constructs a logging sink.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Name identifies the sink in broker diagnostics.
func (s *LogSink) Name() string { return "log" }

// Publish writes the event as an info record.
func (s *LogSink) Publish(evt models.Event) {
	s.logger.Info("lifecycle event",
		slog.String("event", string(evt.Type)),
		slog.String("service_id", evt.ServiceID))
}

package meter

import (
	"errors"

	"go.uber.org/zap"

	"github.com/magiconsole/magi"
)

// LogMeter logs pipeline events using zap.
type LogMeter struct {
	Logger *zap.Logger
}

var _ magi.Meter = (*LogMeter)(nil)

// NewLogMeter creates a LogMeter with the given logger.
// If logger is nil, a no-op logger is used.
func NewLogMeter(logger *zap.Logger) *LogMeter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMeter{Logger: logger.With(zap.String("component", "pipeline"))}
}

func (m *LogMeter) OnAttempt(e magi.AttemptEvent) {
	m.Logger.Debug("attempt",
		zap.String("request_id", e.RequestID),
		zap.Stringer("source", e.Source),
		zap.String("provider", e.Provider),
		zap.Int("attempt", e.AttemptNum),
		zap.Int64("estimated_tokens", e.EstimatedIn),
	)
}

// OnResult logs successes at info. A failed primary is a warning since
// the chain still has links left; any later failure is an error.
func (m *LogMeter) OnResult(e magi.ResultEvent) {
	fields := []zap.Field{
		zap.String("request_id", e.RequestID),
		zap.Stringer("source", e.Source),
		zap.String("provider", e.Provider),
		zap.String("model", e.Model),
		zap.Int64("duration_ms", e.Duration.Milliseconds()),
	}

	switch {
	case e.Success:
		m.Logger.Info("result", append(fields,
			zap.Int64("prompt_tokens", e.Usage.PromptTokens),
			zap.Int64("completion_tokens", e.Usage.CompletionTokens),
		)...)
	case errors.Is(e.Error, magi.ErrStrategyUnhealthy):
		m.Logger.Debug("skipped", append(fields, zap.Error(e.Error))...)
	case e.Source == magi.SourcePrimary:
		m.Logger.Warn("result_error", append(fields, zap.Error(e.Error))...)
	default:
		m.Logger.Error("result_error", append(fields, zap.Error(e.Error))...)
	}
}

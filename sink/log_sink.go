package sink

import (
	"campus-chat/domain/event"
	"context"
	"log/slog"
)

// LogSink writes every domain event to the structured log.
type LogSink struct {
	log   *slog.Logger
	level slog.Level
}

func NewLogSink(log *slog.Logger, level slog.Level) *LogSink {
	return &LogSink{log: log, level: level}
}

func (s *LogSink) Consume(ctx context.Context, e event.DomainEvent) error {
	s.log.Log(ctx, s.level, "Domain event",
		"event", e.Name(),
		"at", e.OccurredAt(),
		"audience", len(e.Audience()))
	return nil
}

package services

import (
	"campus-chat/contract"
	"campus-chat/domain/event"
	"context"
	"log/slog"
)

// Publisher delivers events to the synchronous sinks in order, then offers them
// to the asynchronous pipeline. Synchronous sinks run inside the emitting
// operation, under the lock of the entity that changed.
type Publisher struct {
	log   *slog.Logger
	sinks []contract.EventSink
	async chan<- event.DomainEvent
}

func NewPublisher(log *slog.Logger, async chan<- event.DomainEvent, sinks ...contract.EventSink) *Publisher {
	return &Publisher{log: log, sinks: sinks, async: async}
}

func (p *Publisher) Publish(ctx context.Context, events ...event.DomainEvent) {
	for _, evt := range events {
		p.Replay(ctx, evt)
		if p.async == nil {
			continue
		}
		// Never block the caller: a full pipeline drops the notification,
		// derived state has already been updated above.
		select {
		case p.async <- evt:
		default:
			p.log.Warn("Event channel full, dropping event", "event", evt.Name())
		}
	}
}

// Replay feeds the synchronous sinks only. Used when rebuilding derived state at startup.
func (p *Publisher) Replay(ctx context.Context, evt event.DomainEvent) {
	for _, sink := range p.sinks {
		if err := sink.Consume(ctx, evt); err != nil {
			p.log.Error("Synchronous sink failed", "event", evt.Name(), "error", err)
		}
	}
}

package workers

import (
	"campus-chat/contract"
	"campus-chat/domain/event"
	"context"
	"log/slog"
	"sync"
	"time"
)

// EventFanout delivers asynchronous domain events to the permanent sinks and
// to the sinks subscribed by the users each event concerns.
//
// It provides best-effort fan-out with no guarantees regarding delivery,
// ordering, durability, or retries. Derived state never depends on it.
type EventFanout struct {
	log            *slog.Logger
	events         <-chan event.DomainEvent
	permanentSinks []contract.EventSink
	registry       contract.IRegistry
	sinkTimeout    time.Duration
}

func NewEventFanoutWorker(
	log *slog.Logger,
	events <-chan event.DomainEvent,
	registry contract.IRegistry,
	sinkTimeout time.Duration,
	permanentSinks ...contract.EventSink,
) *EventFanout {
	return &EventFanout{
		log:            log,
		events:         events,
		permanentSinks: permanentSinks,
		registry:       registry,
		sinkTimeout:    sinkTimeout,
	}
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping event fanout")
			return ctx.Err()
		case evt := <-w.events:
			w.Fanout(ctx, evt)
		}
	}
}

// Fanout hands evt to every sink concurrently, each bounded by the sink
// timeout, and returns once they all returned.
func (w *EventFanout) Fanout(ctx context.Context, evt event.DomainEvent) {
	sinks := append([]contract.EventSink(nil), w.permanentSinks...)
	if w.registry != nil {
		sinks = append(sinks, w.registry.GetSinksForUsers(evt.Audience())...)
	}

	var wg sync.WaitGroup
	for _, sink := range sinks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
			defer cancel()
			if err := sink.Consume(sinkCtx, evt); err != nil {
				w.log.Debug("Sink failed to consume event", "event", evt.Name(), "error", err)
			}
		}()
	}
	wg.Wait()
}

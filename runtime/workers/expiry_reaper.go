package workers

import (
	"campus-chat/domain"
	"campus-chat/domain/event"
	"campus-chat/projection"
	"context"
	"log/slog"
	"time"
)

// Publisher is the part of the event publisher the reaper needs.
type Publisher interface {
	Publish(ctx context.Context, events ...event.DomainEvent)
}

// ExpiryReaper retires stories from the badge cache once their TTL has elapsed
// and announces each one with a StoryExpired event. Stories themselves are
// never modified: expiry is computed from the clock at read time.
type ExpiryReaper struct {
	log       *slog.Logger
	badges    *projection.StoryBadges
	publisher Publisher
	clock     domain.Clock
	interval  time.Duration
}

func NewExpiryReaper(log *slog.Logger, badges *projection.StoryBadges, publisher Publisher, clock domain.Clock, interval time.Duration) *ExpiryReaper {
	return &ExpiryReaper{log: log, badges: badges, publisher: publisher, clock: clock, interval: interval}
}

// Tick retires what expired at now. Calling it twice with the same now
// retires nothing the second time.
func (r *ExpiryReaper) Tick(ctx context.Context, now time.Time) []domain.StoryID {
	expired := r.badges.Sweep(now)
	if len(expired) == 0 {
		return nil
	}
	ids := make([]domain.StoryID, 0, len(expired))
	events := make([]event.DomainEvent, 0, len(expired))
	for _, e := range expired {
		ids = append(ids, e.StoryID)
		events = append(events, e)
	}
	r.publisher.Publish(ctx, events...)
	r.log.Debug("Stories expired", "count", len(ids))
	return ids
}

func (r *ExpiryReaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.Tick(ctx, r.clock())
		}
	}
}

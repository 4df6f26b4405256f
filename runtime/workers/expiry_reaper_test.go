package workers

import (
	"campus-chat/domain"
	"campus-chat/domain/event"
	"campus-chat/projection"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []event.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...event.DomainEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func seedStory(t *testing.T, badges *projection.StoryBadges, id domain.StoryID, at time.Time) {
	t.Helper()
	s, err := domain.NewStory(id, "alice", "hello", domain.TextStory, at)
	require.NoError(t, err)
	require.NoError(t, badges.Consume(context.Background(), event.StoryCreated{Story: s}))
}

func TestExpiryReaper_Tick(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	badges := projection.NewStoryBadges()
	publisher := &recordingPublisher{}
	t0 := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	seedStory(t, badges, "s1", t0)
	seedStory(t, badges, "s2", t0.Add(time.Hour))

	reaper := NewExpiryReaper(log, badges, publisher, nil, time.Minute)

	// Before expiry nothing happens
	req.Empty(reaper.Tick(ctx, t0.Add(domain.StoryTTL-time.Second)))

	// At expiry the first story is retired, once
	now := t0.Add(domain.StoryTTL)
	req.Equal([]domain.StoryID{"s1"}, reaper.Tick(ctx, now))
	req.Empty(reaper.Tick(ctx, now))
	req.Equal(1, publisher.count())
	req.Equal(1, badges.ActiveCount("alice"))
	expired, ok := publisher.events[0].(event.StoryExpired)
	req.True(ok)
	req.Equal(domain.UserID("alice"), expired.AuthorID)
}

func TestExpiryReaper_Run(t *testing.T) {
	req := require.New(t)
	badges := projection.NewStoryBadges()
	publisher := &recordingPublisher{}
	t0 := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	seedStory(t, badges, "s1", t0)
	clock := func() time.Time { return t0.Add(48 * time.Hour) }

	reaper := NewExpiryReaper(slog.Default(), badges, publisher, clock, 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- reaper.Run(ctx) }()

	req.Eventually(func() bool { return publisher.count() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	req.ErrorIs(<-done, context.Canceled)
	req.Equal(0, badges.Live())
}

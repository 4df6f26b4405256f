package services

import (
	"campus-chat/domain"
	"campus-chat/domain/event"
	"campus-chat/projection"
	"campus-chat/repositories"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	kv            repositories.KV
	clock         *fakeClock
	events        chan event.DomainEvent
	unread        *projection.UnreadTracker
	badges        *projection.StoryBadges
	conversations *ConversationStore
	messages      *MessageLog
	stories       *StoryStore
	chat          *ChatService
}

func newBadgerKV(t *testing.T, path string) repositories.KV {
	t.Helper()
	db, err := repositories.OpenBadger(path)
	require.NoError(t, err)
	kv := repositories.NewBadgerKV(db, logs.GetLoggerFromLevel(slog.LevelDebug))
	t.Cleanup(func() { _ = kv.Close() })
	return kv
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithKV(t, newBadgerKV(t, ""))
}

func newFixtureWithKV(t *testing.T, kv repositories.KV) *fixture {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	f := &fixture{
		kv:     kv,
		clock:  newFakeClock(),
		events: make(chan event.DomainEvent, 4096),
		unread: projection.NewUnreadTracker(log),
		badges: projection.NewStoryBadges(),
	}
	publisher := NewPublisher(log, f.events, f.unread, f.badges)
	f.conversations = NewConversationStore(log, repositories.NewConversationRepository(kv), publisher, f.clock.Now)
	f.messages = NewMessageLog(log, f.conversations, repositories.NewMessageRepository(kv), publisher, f.clock.Now)
	f.stories = NewStoryStore(log, repositories.NewStoryRepository(kv), publisher, f.clock.Now)
	f.chat = NewChatService(f.conversations, f.messages, f.stories, f.unread, f.badges, f.clock.Now, 0)
	return f
}

// drain returns the names of the events published so far.
func (f *fixture) drain() []string {
	var names []string
	for {
		select {
		case e := <-f.events:
			names = append(names, e.Name())
		default:
			return names
		}
	}
}

func contents(messages []domain.Message) []string {
	out := make([]string, 0, len(messages))
	for _, m := range messages {
		out = append(out, m.Content)
	}
	return out
}

func projectionKey(u domain.UserID, c domain.ConversationID) projection.Key {
	return projection.Key{User: u, Conversation: c}
}

// Package projection maintains derived views built from domain events.
// Views are rebuilt from the authoritative stores, never the other way round.
package projection

import (
	"campus-chat/domain"
	"campus-chat/domain/event"
	"context"
	"log/slog"
	"sync"
)

type Key struct {
	User         domain.UserID
	Conversation domain.ConversationID
}

// Mismatch is a counter that disagreed with a recount of the log.
type Mismatch struct {
	Key
	Tracked  int
	Expected int
}

// ReadLog is the message log seen from the tracker.
type ReadLog interface {
	MarkAllRead(ctx context.Context, conversationID domain.ConversationID, userID domain.UserID) error
}

// UnreadTracker materializes, per user and conversation, the number of messages
// sent by someone else that the user has not read. It is fed synchronously under
// the conversation lock, so a counter always matches the log once the emitting
// operation returns.
type UnreadTracker struct {
	log      *slog.Logger
	mu       sync.RWMutex
	counters map[Key]int
}

func NewUnreadTracker(log *slog.Logger) *UnreadTracker {
	return &UnreadTracker{log: log, counters: make(map[Key]int)}
}

func (t *UnreadTracker) Consume(_ context.Context, e event.DomainEvent) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch evt := e.(type) {
	case event.MessageAppended:
		for _, recipient := range evt.Recipients {
			t.counters[Key{User: recipient, Conversation: evt.Message.ConversationID}]++
		}
	case event.MessagesRead:
		key := Key{User: evt.User, Conversation: evt.ConversationID}
		remaining := t.counters[key] - evt.NewlyRead
		if evt.AllRead {
			if remaining != 0 {
				t.log.Warn("Unread counter drifted, resetting",
					"user", evt.User, "conversation", evt.ConversationID, "value", remaining)
			}
			t.counters[key] = 0
			break
		}
		if remaining < 0 {
			t.log.Warn("Unread counter went negative, clamping",
				"user", evt.User, "conversation", evt.ConversationID, "value", remaining)
			remaining = 0
		}
		t.counters[key] = remaining
	case event.MemberAdded:
		t.counters[Key{User: evt.User, Conversation: evt.ConversationID}] = evt.Unread
	case event.MemberRemoved:
		delete(t.counters, Key{User: evt.User, Conversation: evt.ConversationID})
	}
	return nil
}

func (t *UnreadTracker) UnreadCount(userID domain.UserID, conversationID domain.ConversationID) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.counters[Key{User: userID, Conversation: conversationID}]
}

// MarkAllRead marks the conversation read up to its latest message through the log.
// The log publishes an AllRead event under the conversation lock, which zeroes the counter.
func (t *UnreadTracker) MarkAllRead(ctx context.Context, log ReadLog, userID domain.UserID, conversationID domain.ConversationID) error {
	return log.MarkAllRead(ctx, conversationID, userID)
}

// Check compares a counter with a recount. With repair set, the counter is
// overwritten by the recount. Callers hold the conversation lock.
func (t *UnreadTracker) Check(key Key, expected int, repair bool) (Mismatch, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tracked := t.counters[key]
	if tracked == expected {
		return Mismatch{}, false
	}
	if repair {
		t.counters[key] = expected
	}
	return Mismatch{Key: key, Tracked: tracked, Expected: expected}, true
}

func (t *UnreadTracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.counters)
}

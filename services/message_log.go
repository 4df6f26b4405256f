package services

import (
	"campus-chat/domain"
	"campus-chat/domain/event"
	"campus-chat/errors"
	"campus-chat/projection"
	"campus-chat/repositories"
	"context"
	"fmt"
	"iter"
	"log/slog"
	"sort"
)

const defaultPageSize = 128

type IMessageLog interface {
	Append(ctx context.Context, conversationID domain.ConversationID, senderID domain.UserID, content string) (domain.Message, error)
	ListSince(ctx context.Context, conversationID domain.ConversationID, cursor *domain.Cursor) (iter.Seq[domain.Message], error)
	MarkRead(ctx context.Context, conversationID domain.ConversationID, userID domain.UserID, upto domain.MessageID) error
	MarkAllRead(ctx context.Context, conversationID domain.ConversationID, userID domain.UserID) error
	Latest(ctx context.Context, conversationID domain.ConversationID) (domain.Message, bool, error)
}

// MessageLog is the ordered, append-only log of every conversation.
type MessageLog struct {
	log           *slog.Logger
	conversations *ConversationStore
	repository    repositories.IMessageRepository
	publisher     *Publisher
	clock         domain.Clock
	pageSize      int
}

func NewMessageLog(log *slog.Logger, conversations *ConversationStore, repository repositories.IMessageRepository, publisher *Publisher, clock domain.Clock) *MessageLog {
	return &MessageLog{
		log:           log,
		conversations: conversations,
		repository:    repository,
		publisher:     publisher,
		clock:         clock,
		pageSize:      defaultPageSize,
	}
}

// Append adds a message at the tail of the conversation. Its sequence follows
// the previous one and its createdAt never precedes the previous createdAt.
func (l *MessageLog) Append(ctx context.Context, conversationID domain.ConversationID, senderID domain.UserID, content string) (domain.Message, error) {
	if err := domain.ValidateContent(content); err != nil {
		return domain.Message{}, err
	}

	var appended domain.Message
	err := l.conversations.table.withConversation(conversationID, func(state *conversationState) error {
		if !state.conv.IsMember(senderID) {
			return fmt.Errorf("%w: %s in %s", errors.ErrNotAMember, senderID, conversationID)
		}

		m := domain.Message{
			ID:             domain.NewMessageID(),
			ConversationID: conversationID,
			SenderID:       senderID,
			Content:        content,
			CreatedAt:      l.clock(),
			Sequence:       1,
			ReadBy:         domain.NewUserSet(),
		}
		if n := len(state.messages); n > 0 {
			last := state.messages[n-1]
			m.Sequence = last.Sequence + 1
			if m.CreatedAt.Before(last.CreatedAt) {
				m.CreatedAt = last.CreatedAt
			}
		}

		if err := l.repository.StoreMessages(ctx, m); err != nil {
			return fmt.Errorf("store message %s: %w", m.ID, err)
		}
		state.messages = append(state.messages, m)
		state.index[m.ID] = len(state.messages) - 1
		// The message is durable at this point. A lost activity write is
		// recomputed from the log at load.
		if err := l.conversations.touchLocked(ctx, state, m.CreatedAt); err != nil {
			l.log.Warn("Conversation activity not persisted", "conversation", conversationID, "error", err)
			state.conv.LastActivityAt = m.CreatedAt
		}

		recipients := make([]domain.UserID, 0, len(state.conv.Participants))
		for _, u := range state.conv.Participants.Sorted() {
			if u != senderID {
				recipients = append(recipients, u)
			}
		}
		appended = m.Clone()
		l.publisher.Publish(ctx, event.MessageAppended{Message: m.Clone(), Recipients: recipients})
		return nil
	})
	return appended, err
}

// ListSince returns the messages after cursor, in log order. The sequence is
// bounded by the log length at call time and reads it in pages, releasing the
// conversation lock between pages. It may be iterated again.
func (l *MessageLog) ListSince(_ context.Context, conversationID domain.ConversationID, cursor *domain.Cursor) (iter.Seq[domain.Message], error) {
	var after uint64
	if cursor != nil {
		seq, err := cursor.Sequence()
		if err != nil {
			return nil, err
		}
		after = seq
	}

	var upto uint64
	err := l.conversations.table.withConversation(conversationID, func(state *conversationState) error {
		upto = uint64(len(state.messages))
		return nil
	})
	if err != nil {
		return nil, err
	}

	return func(yield func(domain.Message) bool) {
		next := after
		for next < upto {
			page := l.page(conversationID, next, upto)
			if len(page) == 0 {
				return
			}
			for _, m := range page {
				if !yield(m) {
					return
				}
				next = m.Sequence
			}
		}
	}, nil
}

// page copies the messages with sequence in (after, upto], at most pageSize of them.
func (l *MessageLog) page(conversationID domain.ConversationID, after, upto uint64) []domain.Message {
	var page []domain.Message
	_ = l.conversations.table.withConversation(conversationID, func(state *conversationState) error {
		end := min(after+uint64(l.pageSize), upto, uint64(len(state.messages)))
		for i := after; i < end; i++ {
			page = append(page, state.messages[i].Clone())
		}
		return nil
	})
	return page
}

// MarkRead marks as read for userID every message up to and including upto.
// Messages already read, and the user's own messages, are left untouched.
func (l *MessageLog) MarkRead(ctx context.Context, conversationID domain.ConversationID, userID domain.UserID, upto domain.MessageID) error {
	return l.conversations.table.withConversation(conversationID, func(state *conversationState) error {
		if !state.conv.IsMember(userID) {
			return fmt.Errorf("%w: %s in %s", errors.ErrNotAMember, userID, conversationID)
		}
		idx, ok := state.index[upto]
		if !ok {
			return fmt.Errorf("%w: %s", errors.ErrMessageNotFound, upto)
		}
		return l.markReadLocked(ctx, state, userID, idx, false)
	})
}

// MarkAllRead marks the conversation read up to its latest message.
// An empty conversation is left as is.
func (l *MessageLog) MarkAllRead(ctx context.Context, conversationID domain.ConversationID, userID domain.UserID) error {
	return l.conversations.table.withConversation(conversationID, func(state *conversationState) error {
		if !state.conv.IsMember(userID) {
			return fmt.Errorf("%w: %s in %s", errors.ErrNotAMember, userID, conversationID)
		}
		if len(state.messages) == 0 {
			return nil
		}
		return l.markReadLocked(ctx, state, userID, len(state.messages)-1, true)
	})
}

// markReadLocked marks messages up to idx. With all set the event is published
// even when nothing changed, so the counter is reset to zero.
func (l *MessageLog) markReadLocked(ctx context.Context, state *conversationState, userID domain.UserID, idx int, all bool) error {
	var updated []domain.Message
	for i := 0; i <= idx; i++ {
		if state.messages[i].IsUnreadFor(userID) {
			m := state.messages[i].Clone()
			m.ReadBy[userID] = struct{}{}
			updated = append(updated, m)
		}
	}
	if len(updated) == 0 && !all {
		return nil
	}
	if len(updated) > 0 {
		if err := l.repository.StoreMessages(ctx, updated...); err != nil {
			return fmt.Errorf("store read receipts: %w", err)
		}
	}
	for _, m := range updated {
		state.messages[m.Sequence-1] = m
	}
	l.publisher.Publish(ctx, event.MessagesRead{
		ConversationID: state.conv.ID,
		User:           userID,
		UptoMessageID:  state.messages[idx].ID,
		NewlyRead:      len(updated),
		AllRead:        all,
		At:             l.clock(),
	})
	return nil
}

func (l *MessageLog) Latest(_ context.Context, conversationID domain.ConversationID) (domain.Message, bool, error) {
	var (
		latest domain.Message
		found  bool
	)
	err := l.conversations.table.withConversation(conversationID, func(state *conversationState) error {
		if n := len(state.messages); n > 0 {
			latest, found = state.messages[n-1].Clone(), true
		}
		return nil
	})
	return latest, found, err
}

// CountUnread recounts from the log the messages unread by userID.
func (l *MessageLog) CountUnread(_ context.Context, conversationID domain.ConversationID, userID domain.UserID) (int, error) {
	count := 0
	err := l.conversations.table.withConversation(conversationID, func(state *conversationState) error {
		if !state.conv.IsMember(userID) {
			return fmt.Errorf("%w: %s in %s", errors.ErrNotAMember, userID, conversationID)
		}
		for _, m := range state.messages {
			if m.IsUnreadFor(userID) {
				count++
			}
		}
		return nil
	})
	return count, err
}

// ReconcileUnread compares every participant's counter with a recount of the
// log, conversation by conversation under its lock. With repair set, drifting
// counters are overwritten.
func (l *MessageLog) ReconcileUnread(tracker *projection.UnreadTracker, repair bool) []projection.Mismatch {
	var mismatches []projection.Mismatch
	for _, state := range l.conversations.table.all() {
		state.mu.Lock()
		for _, u := range state.conv.Participants.Sorted() {
			expected := 0
			for _, m := range state.messages {
				if m.IsUnreadFor(u) {
					expected++
				}
			}
			if m, ok := tracker.Check(projection.Key{User: u, Conversation: state.conv.ID}, expected, repair); ok {
				mismatches = append(mismatches, m)
			}
		}
		state.mu.Unlock()
	}
	sort.Slice(mismatches, func(i, j int) bool {
		if mismatches[i].Conversation == mismatches[j].Conversation {
			return mismatches[i].User < mismatches[j].User
		}
		return mismatches[i].Conversation < mismatches[j].Conversation
	})
	return mismatches
}

// Load attaches the persisted logs to the loaded conversations.
// A log with a sequence gap is rejected.
func (l *MessageLog) Load(ctx context.Context) error {
	logs, err := l.repository.LoadMessages(ctx)
	if err != nil {
		return fmt.Errorf("load messages: %w", err)
	}
	total := 0
	for conversationID, messages := range logs {
		state, ok := l.conversations.table.lookup(conversationID)
		if !ok {
			l.log.Warn("Skipping messages of unknown conversation", "conversation", conversationID, "count", len(messages))
			continue
		}
		state.mu.Lock()
		for i, m := range messages {
			if m.Sequence != uint64(i+1) {
				state.mu.Unlock()
				return fmt.Errorf("conversation %s: expected sequence %d, found %d", conversationID, i+1, m.Sequence)
			}
			state.index[m.ID] = i
		}
		state.messages = messages
		if n := len(messages); n > 0 && messages[n-1].CreatedAt.After(state.conv.LastActivityAt) {
			state.conv.LastActivityAt = messages[n-1].CreatedAt
		}
		state.mu.Unlock()
		total += len(messages)
	}
	l.log.Info("Messages loaded", "count", total, "conversations", len(logs))
	return nil
}

package services

import (
	"campus-chat/domain"
	"campus-chat/domain/event"
	"campus-chat/errors"
	"campus-chat/repositories"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

type IConversationStore interface {
	CreateDirect(ctx context.Context, a, b domain.UserID) (domain.Conversation, error)
	CreateGroup(ctx context.Context, creator domain.UserID, name string, members []domain.UserID, description string) (domain.Conversation, error)
	AddMember(ctx context.Context, groupID domain.ConversationID, userID domain.UserID) error
	RemoveMember(ctx context.Context, groupID domain.ConversationID, userID domain.UserID) error
	Touch(ctx context.Context, id domain.ConversationID) error
	Get(ctx context.Context, id domain.ConversationID) (domain.Conversation, error)
	ListForUser(ctx context.Context, userID domain.UserID) ([]domain.Conversation, error)
}

// ConversationStore owns conversations and their membership.
// It shares its table with the MessageLog so that both lock the same
// per-conversation mutex.
type ConversationStore struct {
	log        *slog.Logger
	table      *conversationTable
	pairs      *keyedMutex
	repository repositories.IConversationRepository
	publisher  *Publisher
	clock      domain.Clock
}

func NewConversationStore(log *slog.Logger, repository repositories.IConversationRepository, publisher *Publisher, clock domain.Clock) *ConversationStore {
	return &ConversationStore{
		log:        log,
		table:      newConversationTable(),
		pairs:      newKeyedMutex(),
		repository: repository,
		publisher:  publisher,
		clock:      clock,
	}
}

// CreateDirect returns the direct conversation of the pair, creating it on first use.
// Concurrent calls for the same pair observe a single conversation.
func (s *ConversationStore) CreateDirect(ctx context.Context, a, b domain.UserID) (domain.Conversation, error) {
	candidate, err := domain.NewDirect(domain.NewConversationID(), a, b, s.clock())
	if err != nil {
		return domain.Conversation{}, err
	}
	pairKey := domain.DirectPairKey(a, b)

	unlock := s.pairs.Lock(pairKey)
	defer unlock()

	if state, ok := s.table.lookupDirect(pairKey); ok {
		c := snapshot(state)
		if !c.IsMember(a) || !c.IsMember(b) {
			return domain.Conversation{}, fmt.Errorf("%w: pair %s indexed to %s", errors.ErrConflict, pairKey, c.ID)
		}
		return c, nil
	}

	owner, claimed, err := s.repository.ClaimDirect(ctx, pairKey, candidate.ID)
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("claim direct %s: %w", pairKey, err)
	}
	if !claimed {
		return s.adopt(ctx, owner, a, b)
	}

	if err := s.repository.StoreConversation(ctx, candidate); err != nil {
		return domain.Conversation{}, fmt.Errorf("store conversation %s: %w", candidate.ID, err)
	}
	state := s.table.insert(candidate)
	s.log.Debug("Direct conversation created", "conversation", candidate.ID, "pair", pairKey)

	state.mu.Lock()
	defer state.mu.Unlock()
	s.publisher.Publish(ctx, event.ConversationCreated{Conversation: state.conv.Clone(), At: state.conv.CreatedAt})
	return state.conv.Clone(), nil
}

// adopt returns the direct conversation owning a claimed pair. A claim whose
// conversation was never stored is completed under the claimed id.
func (s *ConversationStore) adopt(ctx context.Context, owner domain.ConversationID, a, b domain.UserID) (domain.Conversation, error) {
	var c domain.Conversation
	if state, ok := s.table.lookup(owner); ok {
		c = snapshot(state)
	} else {
		stored, err := s.repository.GetConversation(ctx, owner)
		switch {
		case stderrors.Is(err, repositories.ErrKeyNotFound):
			if stored, err = domain.NewDirect(owner, a, b, s.clock()); err != nil {
				return domain.Conversation{}, err
			}
			if err := s.repository.StoreConversation(ctx, stored); err != nil {
				return domain.Conversation{}, fmt.Errorf("store conversation %s: %w", owner, err)
			}
			s.log.Warn("Completed a dangling direct claim", "conversation", owner)
		case err != nil:
			return domain.Conversation{}, fmt.Errorf("get conversation %s: %w", owner, err)
		}
		c = stored
	}
	if c.Kind != domain.Direct || !c.IsMember(a) || !c.IsMember(b) {
		return domain.Conversation{}, fmt.Errorf("%w: pair %s claimed by %s", errors.ErrConflict, domain.DirectPairKey(a, b), owner)
	}
	return snapshot(s.table.insert(c)), nil
}

func (s *ConversationStore) CreateGroup(ctx context.Context, creator domain.UserID, name string, members []domain.UserID, description string) (domain.Conversation, error) {
	c, err := domain.NewGroup(domain.NewConversationID(), creator, name, description, members, s.clock())
	if err != nil {
		return domain.Conversation{}, err
	}
	if err := s.repository.StoreConversation(ctx, c); err != nil {
		return domain.Conversation{}, fmt.Errorf("store conversation %s: %w", c.ID, err)
	}
	state := s.table.insert(c)
	s.log.Debug("Group created", "conversation", c.ID, "members", len(c.Participants))

	state.mu.Lock()
	defer state.mu.Unlock()
	s.publisher.Publish(ctx, event.ConversationCreated{Conversation: state.conv.Clone(), At: c.CreatedAt})
	return state.conv.Clone(), nil
}

// AddMember is a no-op for an existing member. The new member's unread counter
// is recomputed from the log, so earlier messages count as unread.
func (s *ConversationStore) AddMember(ctx context.Context, groupID domain.ConversationID, userID domain.UserID) error {
	if userID.IsBlank() {
		return errors.ErrInvalidParticipant
	}
	return s.table.withConversation(groupID, func(state *conversationState) error {
		if state.conv.Kind != domain.Group {
			return fmt.Errorf("%w: %s", errors.ErrNotAGroup, groupID)
		}
		if state.conv.IsMember(userID) {
			return nil
		}

		updated := state.conv.Clone()
		updated.Participants[userID] = struct{}{}
		if err := s.repository.StoreConversation(ctx, updated); err != nil {
			return fmt.Errorf("store conversation %s: %w", groupID, err)
		}
		state.conv = updated
		s.table.index(userID, groupID)

		unread := 0
		for _, m := range state.messages {
			if m.IsUnreadFor(userID) {
				unread++
			}
		}
		s.publisher.Publish(ctx, event.MemberAdded{ConversationID: groupID, User: userID, Unread: unread, At: s.clock()})
		return nil
	})
}

// RemoveMember is a no-op for a non-member. The last member cannot leave.
func (s *ConversationStore) RemoveMember(ctx context.Context, groupID domain.ConversationID, userID domain.UserID) error {
	return s.table.withConversation(groupID, func(state *conversationState) error {
		if state.conv.Kind != domain.Group {
			return fmt.Errorf("%w: %s", errors.ErrNotAGroup, groupID)
		}
		if !state.conv.IsMember(userID) {
			return nil
		}
		if len(state.conv.Participants) == 1 {
			return fmt.Errorf("%w: %s", errors.ErrLastMember, groupID)
		}

		updated := state.conv.Clone()
		delete(updated.Participants, userID)
		if err := s.repository.StoreConversation(ctx, updated); err != nil {
			return fmt.Errorf("store conversation %s: %w", groupID, err)
		}
		state.conv = updated
		s.table.unindex(userID, groupID)
		s.publisher.Publish(ctx, event.MemberRemoved{ConversationID: groupID, User: userID, At: s.clock()})
		return nil
	})
}

// Touch moves lastActivityAt forward to now. It never moves it backward.
func (s *ConversationStore) Touch(ctx context.Context, id domain.ConversationID) error {
	return s.table.withConversation(id, func(state *conversationState) error {
		return s.touchLocked(ctx, state, s.clock())
	})
}

func (s *ConversationStore) touchLocked(ctx context.Context, state *conversationState, at time.Time) error {
	if !at.After(state.conv.LastActivityAt) {
		return nil
	}
	touched := state.conv
	touched.LastActivityAt = at
	if err := s.repository.StoreConversation(ctx, touched); err != nil {
		return fmt.Errorf("store conversation %s: %w", touched.ID, err)
	}
	state.conv = touched
	return nil
}

func (s *ConversationStore) Get(_ context.Context, id domain.ConversationID) (domain.Conversation, error) {
	var c domain.Conversation
	err := s.table.withConversation(id, func(state *conversationState) error {
		c = state.conv.Clone()
		return nil
	})
	return c, err
}

// ListForUser returns the user's conversations, most recent activity first.
func (s *ConversationStore) ListForUser(_ context.Context, userID domain.UserID) ([]domain.Conversation, error) {
	states := s.table.forUser(userID)
	conversations := make([]domain.Conversation, 0, len(states))
	for _, state := range states {
		c := snapshot(state)
		// Membership may have changed since the index was read.
		if c.IsMember(userID) {
			conversations = append(conversations, c)
		}
	}
	sort.Slice(conversations, func(i, j int) bool {
		a, b := conversations[i], conversations[j]
		if a.LastActivityAt.Equal(b.LastActivityAt) {
			return a.ID < b.ID
		}
		return a.LastActivityAt.After(b.LastActivityAt)
	})
	return conversations, nil
}

// Load rebuilds the table from the repository. Called once before serving.
func (s *ConversationStore) Load(ctx context.Context) error {
	conversations, err := s.repository.LoadConversations(ctx)
	if err != nil {
		return fmt.Errorf("load conversations: %w", err)
	}
	for _, c := range conversations {
		s.table.insert(c)
	}
	s.log.Info("Conversations loaded", "count", len(conversations))
	return nil
}

func snapshot(state *conversationState) domain.Conversation {
	state.mu.Lock()
	defer state.mu.Unlock()
	return state.conv.Clone()
}

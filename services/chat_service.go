package services

import (
	"campus-chat/domain"
	"campus-chat/errors"
	"campus-chat/projection"
	"context"
	"fmt"
	"strings"
)

const DefaultPageLimit = 50

// MessageTarget is where a message goes: an existing conversation, a user
// (through their direct conversation) or a group.
type MessageTarget interface {
	isMessageTarget()
}

type ToConversation struct{ ConversationID domain.ConversationID }

type ToUser struct{ RecipientID domain.UserID }

type ToGroup struct{ GroupID domain.ConversationID }

func (ToConversation) isMessageTarget() {}
func (ToUser) isMessageTarget()         {}
func (ToGroup) isMessageTarget()        {}

// ParseMessageTarget requires exactly one of the three ids.
func ParseMessageTarget(conversationID, recipientID, groupID string) (MessageTarget, error) {
	var targets []MessageTarget
	if id := strings.TrimSpace(conversationID); id != "" {
		targets = append(targets, ToConversation{ConversationID: domain.ConversationID(id)})
	}
	if id := strings.TrimSpace(recipientID); id != "" {
		targets = append(targets, ToUser{RecipientID: domain.UserID(id)})
	}
	if id := strings.TrimSpace(groupID); id != "" {
		targets = append(targets, ToGroup{GroupID: domain.ConversationID(id)})
	}
	if len(targets) != 1 {
		return nil, errors.ErrInvalidTarget
	}
	return targets[0], nil
}

type InboxEntry struct {
	Conversation domain.Conversation
	LastMessage  *domain.Message
	Unread       int
}

type MessagePage struct {
	Messages   []domain.Message
	NextCursor *domain.Cursor
}

type IChatService interface {
	SendMessage(ctx context.Context, senderID domain.UserID, target MessageTarget, content string) (domain.Message, error)
	ListMessages(ctx context.Context, requesterID domain.UserID, conversationID domain.ConversationID, cursor *domain.Cursor, limit int) (MessagePage, error)
	MarkRead(ctx context.Context, userID domain.UserID, conversationID domain.ConversationID) error
	UnreadCount(ctx context.Context, userID domain.UserID, conversationID domain.ConversationID) (int, error)
	CreateGroup(ctx context.Context, creatorID domain.UserID, name string, memberIDs []domain.UserID, description string) (domain.Conversation, error)
	CreateDirect(ctx context.Context, userID, recipientID domain.UserID) (domain.Conversation, error)
	AddMember(ctx context.Context, requesterID domain.UserID, groupID domain.ConversationID, userID domain.UserID) error
	RemoveMember(ctx context.Context, requesterID domain.UserID, groupID domain.ConversationID, userID domain.UserID) error
	Inbox(ctx context.Context, userID domain.UserID) ([]InboxEntry, error)
	CreateStory(ctx context.Context, authorID domain.UserID, content string, kind domain.StoryKind) (domain.Story, error)
	ViewStory(ctx context.Context, storyID domain.StoryID, viewerID domain.UserID) error
	ActiveStories(ctx context.Context) []domain.Story
	StoriesByAuthor(ctx context.Context, authorID domain.UserID) []domain.Story
	DeleteStory(ctx context.Context, storyID domain.StoryID, requesterID domain.UserID) error
	StoryBadge(ctx context.Context, authorID domain.UserID) int
}

// ChatService is the entry point of the API layer. It resolves targets,
// enforces membership on reads and delegates to the stores.
type ChatService struct {
	conversations *ConversationStore
	messages      *MessageLog
	stories       *StoryStore
	unread        *projection.UnreadTracker
	badges        *projection.StoryBadges
	clock         domain.Clock
	pageLimit     int
}

func NewChatService(
	conversations *ConversationStore,
	messages *MessageLog,
	stories *StoryStore,
	unread *projection.UnreadTracker,
	badges *projection.StoryBadges,
	clock domain.Clock,
	pageLimit int,
) *ChatService {
	if pageLimit <= 0 {
		pageLimit = DefaultPageLimit
	}
	return &ChatService{
		conversations: conversations,
		messages:      messages,
		stories:       stories,
		unread:        unread,
		badges:        badges,
		clock:         clock,
		pageLimit:     pageLimit,
	}
}

func (s *ChatService) SendMessage(ctx context.Context, senderID domain.UserID, target MessageTarget, content string) (domain.Message, error) {
	conversationID, err := s.resolve(ctx, senderID, target)
	if err != nil {
		return domain.Message{}, err
	}
	return s.messages.Append(ctx, conversationID, senderID, content)
}

func (s *ChatService) resolve(ctx context.Context, senderID domain.UserID, target MessageTarget) (domain.ConversationID, error) {
	switch t := target.(type) {
	case ToConversation:
		return t.ConversationID, nil
	case ToUser:
		c, err := s.conversations.CreateDirect(ctx, senderID, t.RecipientID)
		if err != nil {
			return "", err
		}
		return c.ID, nil
	case ToGroup:
		c, err := s.conversations.Get(ctx, t.GroupID)
		if err != nil {
			return "", err
		}
		if c.Kind != domain.Group {
			return "", fmt.Errorf("%w: %s", errors.ErrNotAGroup, t.GroupID)
		}
		return c.ID, nil
	default:
		return "", errors.ErrInvalidTarget
	}
}

// ListMessages returns up to limit messages after cursor. NextCursor points at
// the last returned message, or repeats cursor when nothing new was found.
func (s *ChatService) ListMessages(ctx context.Context, requesterID domain.UserID, conversationID domain.ConversationID, cursor *domain.Cursor, limit int) (MessagePage, error) {
	if err := s.requireMember(ctx, requesterID, conversationID); err != nil {
		return MessagePage{}, err
	}
	if limit <= 0 || limit > s.pageLimit {
		limit = s.pageLimit
	}
	seq, err := s.messages.ListSince(ctx, conversationID, cursor)
	if err != nil {
		return MessagePage{}, err
	}

	page := MessagePage{Messages: make([]domain.Message, 0, limit), NextCursor: cursor}
	for m := range seq {
		page.Messages = append(page.Messages, m)
		if len(page.Messages) == limit {
			break
		}
	}
	if n := len(page.Messages); n > 0 {
		next := domain.CursorAt(page.Messages[n-1].Sequence)
		page.NextCursor = &next
	}
	return page, nil
}

func (s *ChatService) MarkRead(ctx context.Context, userID domain.UserID, conversationID domain.ConversationID) error {
	return s.unread.MarkAllRead(ctx, s.messages, userID, conversationID)
}

func (s *ChatService) UnreadCount(ctx context.Context, userID domain.UserID, conversationID domain.ConversationID) (int, error) {
	if err := s.requireMember(ctx, userID, conversationID); err != nil {
		return 0, err
	}
	return s.unread.UnreadCount(userID, conversationID), nil
}

func (s *ChatService) requireMember(ctx context.Context, userID domain.UserID, conversationID domain.ConversationID) error {
	c, err := s.conversations.Get(ctx, conversationID)
	if err != nil {
		return err
	}
	if !c.IsMember(userID) {
		return fmt.Errorf("%w: %s in %s", errors.ErrNotAMember, userID, conversationID)
	}
	return nil
}

func (s *ChatService) CreateGroup(ctx context.Context, creatorID domain.UserID, name string, memberIDs []domain.UserID, description string) (domain.Conversation, error) {
	return s.conversations.CreateGroup(ctx, creatorID, name, memberIDs, description)
}

func (s *ChatService) CreateDirect(ctx context.Context, userID, recipientID domain.UserID) (domain.Conversation, error) {
	return s.conversations.CreateDirect(ctx, userID, recipientID)
}

// AddMember is open to any current member of the group.
func (s *ChatService) AddMember(ctx context.Context, requesterID domain.UserID, groupID domain.ConversationID, userID domain.UserID) error {
	if err := s.requireMember(ctx, requesterID, groupID); err != nil {
		return err
	}
	return s.conversations.AddMember(ctx, groupID, userID)
}

// RemoveMember lets a member leave, or the group creator remove anyone.
func (s *ChatService) RemoveMember(ctx context.Context, requesterID domain.UserID, groupID domain.ConversationID, userID domain.UserID) error {
	c, err := s.conversations.Get(ctx, groupID)
	if err != nil {
		return err
	}
	if requesterID != userID && requesterID != c.CreatedBy {
		return fmt.Errorf("%w: %s cannot remove %s from %s", errors.ErrForbidden, requesterID, userID, groupID)
	}
	return s.conversations.RemoveMember(ctx, groupID, userID)
}

// Inbox lists the user's conversations in activity order with their last
// message and unread count.
func (s *ChatService) Inbox(ctx context.Context, userID domain.UserID) ([]InboxEntry, error) {
	conversations, err := s.conversations.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	entries := make([]InboxEntry, 0, len(conversations))
	for _, c := range conversations {
		entry := InboxEntry{Conversation: c, Unread: s.unread.UnreadCount(userID, c.ID)}
		last, ok, err := s.messages.Latest(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		if ok {
			entry.LastMessage = &last
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *ChatService) CreateStory(ctx context.Context, authorID domain.UserID, content string, kind domain.StoryKind) (domain.Story, error) {
	return s.stories.Create(ctx, authorID, content, kind)
}

func (s *ChatService) ViewStory(ctx context.Context, storyID domain.StoryID, viewerID domain.UserID) error {
	return s.stories.RecordView(ctx, storyID, viewerID)
}

func (s *ChatService) ActiveStories(_ context.Context) []domain.Story {
	return s.stories.ActiveFor(s.clock)
}

func (s *ChatService) StoriesByAuthor(_ context.Context, authorID domain.UserID) []domain.Story {
	return s.stories.ByAuthor(authorID)
}

func (s *ChatService) DeleteStory(ctx context.Context, storyID domain.StoryID, requesterID domain.UserID) error {
	return s.stories.Delete(ctx, storyID, requesterID)
}

func (s *ChatService) StoryBadge(_ context.Context, authorID domain.UserID) int {
	return s.badges.ActiveCount(authorID)
}

// Package event defines the domain events emitted by the stores.
// Synchronous sinks maintain derived state from them; asynchronous sinks
// only observe.
package event

import (
	"campus-chat/domain"
	"time"
)

type DomainEvent interface {
	Name() string
	OccurredAt() time.Time
	// Audience lists the users the event concerns, used to route it to subscribers.
	Audience() []domain.UserID
}

type ConversationCreated struct {
	Conversation domain.Conversation
	At           time.Time
}

func (e ConversationCreated) Name() string          { return "ConversationCreated" }
func (e ConversationCreated) OccurredAt() time.Time { return e.At }
func (e ConversationCreated) Audience() []domain.UserID {
	return e.Conversation.Participants.Sorted()
}

// MessageAppended carries the participants other than the sender at append time.
type MessageAppended struct {
	Message    domain.Message
	Recipients []domain.UserID
}

func (e MessageAppended) Name() string              { return "MessageAppended" }
func (e MessageAppended) OccurredAt() time.Time     { return e.Message.CreatedAt }
func (e MessageAppended) Audience() []domain.UserID { return e.Recipients }

// MessagesRead reports how many messages switched to read for User.
// AllRead is set when nothing is left unread for User in the conversation.
type MessagesRead struct {
	ConversationID domain.ConversationID
	User           domain.UserID
	UptoMessageID  domain.MessageID
	NewlyRead      int
	AllRead        bool
	At             time.Time
}

func (e MessagesRead) Name() string              { return "MessagesRead" }
func (e MessagesRead) OccurredAt() time.Time     { return e.At }
func (e MessagesRead) Audience() []domain.UserID { return []domain.UserID{e.User} }

// MemberAdded carries the unread count of the new member recomputed from the log.
type MemberAdded struct {
	ConversationID domain.ConversationID
	User           domain.UserID
	Unread         int
	At             time.Time
}

func (e MemberAdded) Name() string              { return "MemberAdded" }
func (e MemberAdded) OccurredAt() time.Time     { return e.At }
func (e MemberAdded) Audience() []domain.UserID { return []domain.UserID{e.User} }

type MemberRemoved struct {
	ConversationID domain.ConversationID
	User           domain.UserID
	At             time.Time
}

func (e MemberRemoved) Name() string              { return "MemberRemoved" }
func (e MemberRemoved) OccurredAt() time.Time     { return e.At }
func (e MemberRemoved) Audience() []domain.UserID { return []domain.UserID{e.User} }

type StoryCreated struct {
	Story domain.Story
}

func (e StoryCreated) Name() string              { return "StoryCreated" }
func (e StoryCreated) OccurredAt() time.Time     { return e.Story.CreatedAt }
func (e StoryCreated) Audience() []domain.UserID { return []domain.UserID{e.Story.AuthorID} }

type StoryViewed struct {
	StoryID  domain.StoryID
	AuthorID domain.UserID
	ViewerID domain.UserID
	At       time.Time
}

func (e StoryViewed) Name() string              { return "StoryViewed" }
func (e StoryViewed) OccurredAt() time.Time     { return e.At }
func (e StoryViewed) Audience() []domain.UserID { return []domain.UserID{e.AuthorID} }

type StoryDeleted struct {
	StoryID  domain.StoryID
	AuthorID domain.UserID
	At       time.Time
}

func (e StoryDeleted) Name() string              { return "StoryDeleted" }
func (e StoryDeleted) OccurredAt() time.Time     { return e.At }
func (e StoryDeleted) Audience() []domain.UserID { return []domain.UserID{e.AuthorID} }

// StoryExpired is emitted once per story by the expiry reaper.
type StoryExpired struct {
	StoryID  domain.StoryID
	AuthorID domain.UserID
	At       time.Time
}

func (e StoryExpired) Name() string              { return "StoryExpired" }
func (e StoryExpired) OccurredAt() time.Time     { return e.At }
func (e StoryExpired) Audience() []domain.UserID { return []domain.UserID{e.AuthorID} }

// Package domain contains the core concepts of the messaging system:
// conversations, messages and stories, and the rules that keep them valid.
// No runtime, storage or transport logic belongs here.
package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UserID is an opaque identifier supplied by the already-authenticated caller.
type UserID string

type ConversationID string

type MessageID string

type StoryID string

func NewConversationID() ConversationID { return ConversationID(uuid.NewString()) }

func NewMessageID() MessageID { return MessageID(uuid.NewString()) }

func NewStoryID() StoryID { return StoryID(uuid.NewString()) }

func (u UserID) IsBlank() bool {
	return strings.TrimSpace(string(u)) == ""
}

// Clock returns the current instant. Stores never call time.Now directly.
type Clock func() time.Time

func SystemClock() time.Time {
	return time.Now().UTC()
}

// UserSet is a set of users, encoded as a map so that membership tests are O(1).
type UserSet map[UserID]struct{}

func NewUserSet(ids ...UserID) UserSet {
	s := make(UserSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s UserSet) Has(id UserID) bool {
	_, ok := s[id]
	return ok
}

func (s UserSet) Clone() UserSet {
	c := make(UserSet, len(s))
	for id := range s {
		c[id] = struct{}{}
	}
	return c
}

// Sorted returns the members in lexical order, for stable output.
func (s UserSet) Sorted() []UserID {
	ids := make([]UserID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

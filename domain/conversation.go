package domain

import (
	"campus-chat/errors"
	"fmt"
	"strings"
	"time"
)

type ConversationKind string

const (
	Direct ConversationKind = "direct"
	Group  ConversationKind = "group"
)

// Conversation is a Direct (exactly two participants) or Group (at least one) thread.
// Only Participants and LastActivityAt change after creation.
type Conversation struct {
	ID             ConversationID
	Kind           ConversationKind
	Participants   UserSet
	Name           string
	Description    string
	CreatedBy      UserID
	CreatedAt      time.Time
	LastActivityAt time.Time
}

func NewDirect(id ConversationID, a, b UserID, at time.Time) (Conversation, error) {
	if a.IsBlank() || b.IsBlank() || a == b {
		return Conversation{}, errors.ErrInvalidParticipant
	}
	return Conversation{
		ID:             id,
		Kind:           Direct,
		Participants:   NewUserSet(a, b),
		CreatedBy:      a,
		CreatedAt:      at,
		LastActivityAt: at,
	}, nil
}

// NewGroup deduplicates members, drops blank ids and always includes the creator.
func NewGroup(id ConversationID, creator UserID, name, description string, members []UserID, at time.Time) (Conversation, error) {
	if creator.IsBlank() {
		return Conversation{}, errors.ErrInvalidParticipant
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Conversation{}, errors.ErrInvalidName
	}
	participants := NewUserSet(creator)
	for _, m := range members {
		if !m.IsBlank() {
			participants[m] = struct{}{}
		}
	}
	return Conversation{
		ID:             id,
		Kind:           Group,
		Participants:   participants,
		Name:           name,
		Description:    strings.TrimSpace(description),
		CreatedBy:      creator,
		CreatedAt:      at,
		LastActivityAt: at,
	}, nil
}

func (c Conversation) IsMember(u UserID) bool {
	return c.Participants.Has(u)
}

func (c Conversation) Clone() Conversation {
	c.Participants = c.Participants.Clone()
	return c
}

// DirectPairKey identifies a direct conversation by its unordered pair of participants.
// The first id is length-prefixed so ids containing the separator cannot collide.
func DirectPairKey(a, b UserID) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%s|%s", len(a), a, b)
}

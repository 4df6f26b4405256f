package domain

import (
	"campus-chat/errors"
	"strings"
	"time"
)

// Message belongs to exactly one conversation. Content never changes once appended;
// only ReadBy grows.
type Message struct {
	ID             MessageID
	ConversationID ConversationID
	SenderID       UserID
	Content        string
	CreatedAt      time.Time
	Sequence       uint64
	ReadBy         UserSet
}

func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return errors.ErrEmptyContent
	}
	return nil
}

// IsUnreadFor reports whether the message counts towards u's unread counter.
func (m Message) IsUnreadFor(u UserID) bool {
	return m.SenderID != u && !m.ReadBy.Has(u)
}

func (m Message) Clone() Message {
	m.ReadBy = m.ReadBy.Clone()
	return m
}

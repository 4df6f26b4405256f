package repositories

import (
	"campus-chat/domain"
	"time"

	"github.com/samber/lo"
	"github.com/vmihailenco/msgpack/v5"
)

// Records are the msgpack shapes stored in the KV. They decouple the
// persisted layout from the domain types.

type conversationRecord struct {
	ID             string    `msgpack:"id"`
	Kind           string    `msgpack:"kind"`
	Participants   []string  `msgpack:"participants"`
	Name           string    `msgpack:"name,omitempty"`
	Description    string    `msgpack:"description,omitempty"`
	CreatedBy      string    `msgpack:"created_by"`
	CreatedAt      time.Time `msgpack:"created_at"`
	LastActivityAt time.Time `msgpack:"last_activity_at"`
}

type messageRecord struct {
	ID             string    `msgpack:"id"`
	ConversationID string    `msgpack:"conversation_id"`
	SenderID       string    `msgpack:"sender_id"`
	Content        string    `msgpack:"content"`
	CreatedAt      time.Time `msgpack:"created_at"`
	Sequence       uint64    `msgpack:"sequence"`
	ReadBy         []string  `msgpack:"read_by"`
}

type storyRecord struct {
	ID        string     `msgpack:"id"`
	AuthorID  string     `msgpack:"author_id"`
	Content   string     `msgpack:"content"`
	Kind      string     `msgpack:"kind"`
	CreatedAt time.Time  `msgpack:"created_at"`
	ExpiresAt time.Time  `msgpack:"expires_at"`
	ViewerIDs []string   `msgpack:"viewer_ids"`
	DeletedAt *time.Time `msgpack:"deleted_at,omitempty"`
}

func fromUserSet(s domain.UserSet) []string {
	return lo.Map(s.Sorted(), func(id domain.UserID, _ int) string { return string(id) })
}

func toUserSet(ids []string) domain.UserSet {
	return domain.NewUserSet(lo.Map(ids, func(id string, _ int) domain.UserID { return domain.UserID(id) })...)
}

func encodeConversation(c domain.Conversation) ([]byte, error) {
	return msgpack.Marshal(conversationRecord{
		ID:             string(c.ID),
		Kind:           string(c.Kind),
		Participants:   fromUserSet(c.Participants),
		Name:           c.Name,
		Description:    c.Description,
		CreatedBy:      string(c.CreatedBy),
		CreatedAt:      c.CreatedAt,
		LastActivityAt: c.LastActivityAt,
	})
}

func decodeConversation(b []byte) (domain.Conversation, error) {
	var r conversationRecord
	if err := msgpack.Unmarshal(b, &r); err != nil {
		return domain.Conversation{}, err
	}
	return domain.Conversation{
		ID:             domain.ConversationID(r.ID),
		Kind:           domain.ConversationKind(r.Kind),
		Participants:   toUserSet(r.Participants),
		Name:           r.Name,
		Description:    r.Description,
		CreatedBy:      domain.UserID(r.CreatedBy),
		CreatedAt:      r.CreatedAt.UTC(),
		LastActivityAt: r.LastActivityAt.UTC(),
	}, nil
}

func encodeMessage(m domain.Message) ([]byte, error) {
	return msgpack.Marshal(messageRecord{
		ID:             string(m.ID),
		ConversationID: string(m.ConversationID),
		SenderID:       string(m.SenderID),
		Content:        m.Content,
		CreatedAt:      m.CreatedAt,
		Sequence:       m.Sequence,
		ReadBy:         fromUserSet(m.ReadBy),
	})
}

func decodeMessage(b []byte) (domain.Message, error) {
	var r messageRecord
	if err := msgpack.Unmarshal(b, &r); err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:             domain.MessageID(r.ID),
		ConversationID: domain.ConversationID(r.ConversationID),
		SenderID:       domain.UserID(r.SenderID),
		Content:        r.Content,
		CreatedAt:      r.CreatedAt.UTC(),
		Sequence:       r.Sequence,
		ReadBy:         toUserSet(r.ReadBy),
	}, nil
}

func encodeStory(s domain.Story) ([]byte, error) {
	return msgpack.Marshal(storyRecord{
		ID:        string(s.ID),
		AuthorID:  string(s.AuthorID),
		Content:   s.Content,
		Kind:      string(s.Kind),
		CreatedAt: s.CreatedAt,
		ExpiresAt: s.ExpiresAt,
		ViewerIDs: fromUserSet(s.ViewerIDs),
		DeletedAt: s.DeletedAt,
	})
}

func decodeStory(b []byte) (domain.Story, error) {
	var r storyRecord
	if err := msgpack.Unmarshal(b, &r); err != nil {
		return domain.Story{}, err
	}
	story := domain.Story{
		ID:        domain.StoryID(r.ID),
		AuthorID:  domain.UserID(r.AuthorID),
		Content:   r.Content,
		Kind:      domain.StoryKind(r.Kind),
		CreatedAt: r.CreatedAt.UTC(),
		ExpiresAt: r.ExpiresAt.UTC(),
		ViewerIDs: toUserSet(r.ViewerIDs),
	}
	if r.DeletedAt != nil {
		story.DeletedAt = lo.ToPtr(r.DeletedAt.UTC())
	}
	return story, nil
}

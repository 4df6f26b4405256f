package repositories

import (
	"campus-chat/domain"
	"context"
	"fmt"
)

const messagePrefix = "msg:"

type IMessageRepository interface {
	StoreMessages(ctx context.Context, messages ...domain.Message) error
	// LoadMessages returns every stored message grouped by conversation, each
	// group in sequence order.
	LoadMessages(ctx context.Context) (map[domain.ConversationID][]domain.Message, error)
}

type MessageRepository struct {
	kv KV
}

func NewMessageRepository(kv KV) MessageRepository {
	return MessageRepository{kv: kv}
}

// messageKey is formatted as "msg:{conversation}:{sequence padded}" so that a
// prefix scan returns a conversation's log in order (lexicographical order on
// the 20-digit zero padding).
func messageKey(conversationID domain.ConversationID, sequence uint64) string {
	return fmt.Sprintf("%s%s:%020d", messagePrefix, conversationID, sequence)
}

func (r MessageRepository) StoreMessages(ctx context.Context, messages ...domain.Message) error {
	for _, m := range messages {
		bytes, err := encodeMessage(m)
		if err != nil {
			return err
		}
		if err = r.kv.Put(ctx, messageKey(m.ConversationID, m.Sequence), bytes); err != nil {
			return err
		}
	}
	return nil
}

func (r MessageRepository) LoadMessages(ctx context.Context) (map[domain.ConversationID][]domain.Message, error) {
	logs := make(map[domain.ConversationID][]domain.Message)
	err := r.kv.Scan(ctx, messagePrefix, func(key string, value []byte) error {
		m, err := decodeMessage(value)
		if err != nil {
			return fmt.Errorf("decoding %s: %w", key, err)
		}
		logs[m.ConversationID] = append(logs[m.ConversationID], m)
		return nil
	})
	return logs, err
}

package repositories

import (
	"campus-chat/domain"
	"context"
	"errors"
	"fmt"
)

const (
	conversationPrefix = "conv:"
	directPrefix       = "direct:"
)

type IConversationRepository interface {
	StoreConversation(ctx context.Context, c domain.Conversation) error
	GetConversation(ctx context.Context, id domain.ConversationID) (domain.Conversation, error)
	// ClaimDirect binds a direct pair to id unless another conversation already owns it,
	// in which case the owner is returned with claimed false.
	ClaimDirect(ctx context.Context, pairKey string, id domain.ConversationID) (owner domain.ConversationID, claimed bool, err error)
	LoadConversations(ctx context.Context) ([]domain.Conversation, error)
}

type ConversationRepository struct {
	kv KV
}

func NewConversationRepository(kv KV) ConversationRepository {
	return ConversationRepository{kv: kv}
}

func conversationKey(id domain.ConversationID) string {
	return conversationPrefix + string(id)
}

func (r ConversationRepository) StoreConversation(ctx context.Context, c domain.Conversation) error {
	bytes, err := encodeConversation(c)
	if err != nil {
		return err
	}
	return r.kv.Put(ctx, conversationKey(c.ID), bytes)
}

func (r ConversationRepository) GetConversation(ctx context.Context, id domain.ConversationID) (domain.Conversation, error) {
	bytes, err := r.kv.Get(ctx, conversationKey(id))
	if err != nil {
		return domain.Conversation{}, err
	}
	return decodeConversation(bytes)
}

func (r ConversationRepository) ClaimDirect(ctx context.Context, pairKey string, id domain.ConversationID) (domain.ConversationID, bool, error) {
	key := directPrefix + pairKey
	claimed, err := r.kv.CompareAndSwap(ctx, key, nil, []byte(id))
	if err != nil {
		return "", false, err
	}
	if claimed {
		return id, true, nil
	}
	owner, err := r.kv.Get(ctx, key)
	if errors.Is(err, ErrKeyNotFound) {
		return "", false, fmt.Errorf("direct pair %s lost its owner", pairKey)
	}
	if err != nil {
		return "", false, err
	}
	return domain.ConversationID(owner), false, nil
}

func (r ConversationRepository) LoadConversations(ctx context.Context) ([]domain.Conversation, error) {
	var conversations []domain.Conversation
	err := r.kv.Scan(ctx, conversationPrefix, func(key string, value []byte) error {
		c, err := decodeConversation(value)
		if err != nil {
			return fmt.Errorf("decoding %s: %w", key, err)
		}
		conversations = append(conversations, c)
		return nil
	})
	return conversations, err
}

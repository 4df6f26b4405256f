package repositories

import (
	"campus-chat/domain"
	"context"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func TestConversationRepository_RoundTrip(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewConversationRepository(newBadgerKV(t))
	at := time.Now().UTC()

	group, err := domain.NewGroup(domain.NewConversationID(), "alice", "study", "finals", []domain.UserID{"bob"}, at)
	req.NoError(err)
	req.NoError(repository.StoreConversation(ctx, group))

	fetched, err := repository.GetConversation(ctx, group.ID)
	req.NoError(err)
	req.Equal(group, fetched)

	loaded, err := repository.LoadConversations(ctx)
	req.NoError(err)
	req.Len(loaded, 1)
}

func TestConversationRepository_ClaimDirect(t *testing.T) {
	for name, newKV := range backends {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			ctx := context.Background()
			repository := NewConversationRepository(newKV(t))
			pair := domain.DirectPairKey("alice", "bob")

			// Given a first claim wins
			owner, claimed, err := repository.ClaimDirect(ctx, pair, "c-1")
			req.NoError(err)
			req.True(claimed)
			req.Equal(domain.ConversationID("c-1"), owner)

			// When a second conversation claims the same pair
			owner, claimed, err = repository.ClaimDirect(ctx, pair, "c-2")

			// Then the first owner is returned
			req.NoError(err)
			req.False(claimed)
			req.Equal(domain.ConversationID("c-1"), owner)
		})
	}
}

func TestMessageRepository_LoadInSequenceOrder(t *testing.T) {
	for name, newKV := range backends {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			ctx := context.Background()
			repository := NewMessageRepository(newKV(t))
			at := time.Now().UTC()
			conversationID := domain.NewConversationID()

			// Given messages stored out of order, one of them read by bob
			for _, seq := range []uint64{10, 2, 1} {
				readBy := domain.NewUserSet()
				if seq == 2 {
					readBy = domain.NewUserSet("bob")
				}
				req.NoError(repository.StoreMessages(ctx, domain.Message{
					ID:             domain.NewMessageID(),
					ConversationID: conversationID,
					SenderID:       "alice",
					Content:        "hi",
					CreatedAt:      at.Add(time.Duration(seq) * time.Second),
					Sequence:       seq,
					ReadBy:         readBy,
				}))
			}

			// When loading
			logs, err := repository.LoadMessages(ctx)
			req.NoError(err)

			// Then the log is ordered by sequence with read state restored
			messages := logs[conversationID]
			req.Len(messages, 3)
			req.Equal([]uint64{1, 2, 10}, lo.Map(messages, func(m domain.Message, _ int) uint64 { return m.Sequence }))
			req.True(messages[1].ReadBy.Has("bob"))
			req.False(messages[0].ReadBy.Has("bob"))
		})
	}
}

func TestStoryRepository_RoundTripKeepsDeletion(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewStoryRepository(newBadgerKV(t))
	at := time.Now().UTC()

	story, err := domain.NewStory(domain.NewStoryID(), "alice", "hello", domain.ImageStory, at)
	req.NoError(err)
	story.ViewerIDs = domain.NewUserSet("bob")
	story.DeletedAt = lo.ToPtr(at.Add(time.Hour))
	req.NoError(repository.StoreStory(ctx, story))

	stories, err := repository.LoadStories(ctx)
	req.NoError(err)
	req.Len(stories, 1)
	req.Equal(story, stories[0])
}

package services

import (
	"campus-chat/domain"
	"campus-chat/repositories"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func (f *fixture) load(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.conversations.Load(ctx))
	require.NoError(t, f.messages.Load(ctx))
	require.NoError(t, f.stories.Load(ctx))
	f.messages.ReconcileUnread(f.unread, true)
}

func TestLoad_RestoresStateAndCounters(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	before := newFixture(t)

	// Given some history written by a first instance
	g, err := before.chat.CreateGroup(ctx, "alice", "club", []domain.UserID{"bob", "carol"}, "")
	req.NoError(err)
	for _, c := range []string{"a", "b", "c"} {
		_, err := before.chat.SendMessage(ctx, "alice", ToConversation{ConversationID: g.ID}, c)
		req.NoError(err)
	}
	req.NoError(before.chat.MarkRead(ctx, "bob", g.ID))
	_, err = before.chat.SendMessage(ctx, "carol", ToUser{RecipientID: "bob"}, "psst")
	req.NoError(err)
	live, err := before.chat.CreateStory(ctx, "alice", "now", domain.TextStory)
	req.NoError(err)
	before.clock.Advance(-domain.StoryTTL - time.Hour)
	_, err = before.chat.CreateStory(ctx, "alice", "old", domain.TextStory)
	req.NoError(err)

	// When a second instance loads the same store
	after := newFixtureWithKV(t, before.kv)
	after.load(t)

	// Then history, read state and counters are back
	page, err := after.chat.ListMessages(ctx, "carol", g.ID, nil, 0)
	req.NoError(err)
	req.Equal([]string{"a", "b", "c"}, contents(page.Messages))
	for user, expected := range map[domain.UserID]int{"alice": 0, "bob": 0, "carol": 3} {
		count, err := after.chat.UnreadCount(ctx, user, g.ID)
		req.NoError(err)
		req.Equal(expected, count, "user %s", user)
	}

	direct, err := after.chat.CreateDirect(ctx, "bob", "carol")
	req.NoError(err)
	count, err := after.chat.UnreadCount(ctx, "bob", direct.ID)
	req.NoError(err)
	req.Equal(1, count)

	// Appends continue the restored sequence
	m, err := after.chat.SendMessage(ctx, "bob", ToConversation{ConversationID: g.ID}, "d")
	req.NoError(err)
	req.Equal(uint64(4), m.Sequence)

	// Only the live story feeds the badge
	req.Len(after.chat.StoriesByAuthor(ctx, "alice"), 2)
	req.Equal(1, after.chat.StoryBadge(ctx, "alice"))
	active := after.chat.ActiveStories(ctx)
	req.Len(active, 1)
	req.Equal(live.ID, active[0].ID)
}

func TestLoad_ActivityFollowsTheLog(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	before := newFixture(t)
	g := newGroup(t, before, "bob")
	before.clock.Advance(time.Minute)
	m, err := before.messages.Append(ctx, g, "alice", "hi")
	req.NoError(err)

	// Given a conversation record older than its last message
	stale, err := before.conversations.Get(ctx, g)
	req.NoError(err)
	stale.LastActivityAt = stale.CreatedAt
	req.NoError(repositories.NewConversationRepository(before.kv).StoreConversation(ctx, stale))

	// When another instance loads the store
	after := newFixtureWithKV(t, before.kv)
	after.load(t)

	// Then the activity is taken from the log
	c, err := after.conversations.Get(ctx, g)
	req.NoError(err)
	req.True(m.CreatedAt.Equal(c.LastActivityAt))
}

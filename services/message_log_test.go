package services

import (
	"campus-chat/domain"
	"campus-chat/errors"
	"campus-chat/mocks"
	"campus-chat/projection"
	"context"
	"fmt"
	"math/rand"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newGroup(t *testing.T, f *fixture, members ...domain.UserID) domain.ConversationID {
	t.Helper()
	g, err := f.conversations.CreateGroup(context.Background(), "alice", "group", members, "")
	require.NoError(t, err)
	return g.ID
}

func TestMessageLog_AppendValidates(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	g := newGroup(t, f, "bob")

	_, err := f.messages.Append(ctx, g, "alice", "  \n ")
	req.ErrorIs(err, errors.ErrEmptyContent)
	_, err = f.messages.Append(ctx, g, "mallory", "hello")
	req.ErrorIs(err, errors.ErrNotAMember)
	_, err = f.messages.Append(ctx, "missing", "alice", "hello")
	req.ErrorIs(err, errors.ErrConversationNotFound)
}

func TestMessageLog_CreatedAtNeverGoesBackward(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	g := newGroup(t, f)

	first, err := f.messages.Append(ctx, g, "alice", "one")
	req.NoError(err)

	// When the clock steps back
	f.clock.Advance(-time.Minute)
	second, err := f.messages.Append(ctx, g, "alice", "two")
	req.NoError(err)

	// Then the log order is kept
	req.Equal(uint64(2), second.Sequence)
	req.Equal(first.CreatedAt, second.CreatedAt)
}

func TestMessageLog_ConcurrentAppendsAreGapFree(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	users := []domain.UserID{"alice", "bob", "carol", "dave"}
	g := newGroup(t, f, users...)

	var wg sync.WaitGroup
	for _, u := range users {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				_, err := f.messages.Append(ctx, g, u, fmt.Sprintf("%s-%d", u, i))
				req.NoError(err)
			}
		}()
	}
	wg.Wait()

	seq, err := f.messages.ListSince(ctx, g, nil)
	req.NoError(err)
	var expected uint64 = 1
	for m := range seq {
		req.Equal(expected, m.Sequence)
		expected++
	}
	req.Equal(uint64(101), expected)
	req.Empty(f.messages.ReconcileUnread(f.unread, false))
}

func TestMessageLog_ListSinceIsBoundedAndRestartable(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	f.messages.pageSize = 2
	g := newGroup(t, f)
	for _, c := range []string{"a", "b", "c", "d", "e"} {
		_, err := f.messages.Append(ctx, g, "alice", c)
		req.NoError(err)
	}

	cursor := domain.CursorAt(1)
	seq, err := f.messages.ListSince(ctx, g, &cursor)
	req.NoError(err)

	// When messages are appended after the call
	_, err = f.messages.Append(ctx, g, "alice", "late")
	req.NoError(err)

	// Then the sequence stays bounded and can be walked twice
	req.Equal([]string{"b", "c", "d", "e"}, contents(slices.Collect(seq)))
	req.Equal([]string{"b", "c", "d", "e"}, contents(slices.Collect(seq)))

	// And early exit is honoured
	var firstOnly []domain.Message
	for m := range seq {
		firstOnly = append(firstOnly, m)
		break
	}
	req.Equal([]string{"b"}, contents(firstOnly))
}

func TestMessageLog_ListSinceYieldsCopies(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	g := newGroup(t, f, "bob")
	_, err := f.messages.Append(ctx, g, "alice", "hi")
	req.NoError(err)

	seq, err := f.messages.ListSince(ctx, g, nil)
	req.NoError(err)
	for m := range seq {
		m.ReadBy["bob"] = struct{}{}
	}

	req.Equal(1, f.unread.UnreadCount("bob", g))
	count, err := f.messages.CountUnread(ctx, g, "bob")
	req.NoError(err)
	req.Equal(1, count)
}

func TestMessageLog_MarkRead(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	g := newGroup(t, f, "bob")

	m1, err := f.messages.Append(ctx, g, "alice", "1")
	req.NoError(err)
	_, err = f.messages.Append(ctx, g, "bob", "2")
	req.NoError(err)
	m3, err := f.messages.Append(ctx, g, "alice", "3")
	req.NoError(err)
	_, err = f.messages.Append(ctx, g, "alice", "4")
	req.NoError(err)
	f.drain()

	// When bob reads up to the third message, twice
	req.NoError(f.messages.MarkRead(ctx, g, "bob", m3.ID))
	req.NoError(f.messages.MarkRead(ctx, g, "bob", m1.ID))

	// Then only the first read changed anything
	req.Equal([]string{"MessagesRead"}, f.drain())
	req.Equal(1, f.unread.UnreadCount("bob", g))

	seq, err := f.messages.ListSince(ctx, g, nil)
	req.NoError(err)
	for m := range seq {
		switch m.Sequence {
		case 1, 3:
			req.True(m.ReadBy.Has("bob"))
		default:
			req.False(m.ReadBy.Has("bob"))
		}
	}

	req.ErrorIs(f.messages.MarkRead(ctx, g, "bob", "missing"), errors.ErrMessageNotFound)
	req.ErrorIs(f.messages.MarkRead(ctx, g, "mallory", m1.ID), errors.ErrNotAMember)
}

func TestMessageLog_MarkAllReadZeroesDriftedCounter(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	g := newGroup(t, f, "bob")
	_, err := f.messages.Append(ctx, g, "alice", "1")
	req.NoError(err)
	req.NoError(f.messages.MarkAllRead(ctx, g, "bob"))

	// Given bob's counter drifting although everything is read
	f.unread.Check(projection.Key{User: "bob", Conversation: g}, 3, true)
	req.Equal(3, f.unread.UnreadCount("bob", g))

	// When bob marks the conversation read again
	req.NoError(f.chat.MarkRead(ctx, "bob", g))

	// Then the counter is back to zero
	req.Equal(0, f.unread.UnreadCount("bob", g))
	count, err := f.messages.CountUnread(ctx, g, "bob")
	req.NoError(err)
	req.Zero(count)
}

func TestMessageLog_FailedAppendIsInvisible(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	kv := mocks.NewMockKV(ctrl)
	f := newFixtureWithKV(t, kv)

	kv.EXPECT().Put(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	g := newGroup(t, f, "bob")
	before, err := f.conversations.Get(ctx, g)
	req.NoError(err)

	// Given the message write failing, the conversation is never written
	f.clock.Advance(time.Second)
	kv.EXPECT().Put(gomock.Any(), fmt.Sprintf("msg:%s:%020d", g, 1), gomock.Any()).Return(fmt.Errorf("io error"))

	_, err = f.messages.Append(ctx, g, "alice", "lost")

	// Then no message, counter nor activity is visible
	req.Error(err)
	_, found, err := f.messages.Latest(ctx, g)
	req.NoError(err)
	req.False(found)
	req.Equal(0, f.unread.UnreadCount("bob", g))
	after, err := f.conversations.Get(ctx, g)
	req.NoError(err)
	req.Equal(before.LastActivityAt, after.LastActivityAt)
}

func TestMessageLog_LostActivityWriteKeepsMessage(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	kv := mocks.NewMockKV(ctrl)
	f := newFixtureWithKV(t, kv)

	kv.EXPECT().Put(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	g := newGroup(t, f, "bob")

	// Given the message stored and the activity write failing
	f.clock.Advance(time.Second)
	gomock.InOrder(
		kv.EXPECT().Put(gomock.Any(), fmt.Sprintf("msg:%s:%020d", g, 1), gomock.Any()).Return(nil),
		kv.EXPECT().Put(gomock.Any(), "conv:"+string(g), gomock.Any()).Return(fmt.Errorf("io error")),
	)

	m, err := f.messages.Append(ctx, g, "alice", "kept")

	// Then the append succeeds and the conversation reflects it
	req.NoError(err)
	latest, found, err := f.messages.Latest(ctx, g)
	req.NoError(err)
	req.True(found)
	req.Equal(m.ID, latest.ID)
	req.Equal(1, f.unread.UnreadCount("bob", g))
	c, err := f.conversations.Get(ctx, g)
	req.NoError(err)
	req.Equal(m.CreatedAt, c.LastActivityAt)
}

// Random sends, reads and membership changes never let a counter drift from the log.
func TestMessageLog_RandomHistoryKeepsCountersExact(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	rng := rand.New(rand.NewSource(7))
	users := []domain.UserID{"alice", "bob", "carol", "dave", "erin"}
	g := newGroup(t, f, "bob", "carol")
	direct, err := f.conversations.CreateDirect(ctx, "alice", "dave")
	req.NoError(err)
	conversations := []domain.ConversationID{g, direct.ID}

	for i := 0; i < 400; i++ {
		u := users[rng.Intn(len(users))]
		c := conversations[rng.Intn(len(conversations))]
		switch rng.Intn(5) {
		case 0, 1:
			_, _ = f.messages.Append(ctx, c, u, "msg")
		case 2:
			_ = f.messages.MarkAllRead(ctx, c, u)
		case 3:
			if latest, ok, _ := f.messages.Latest(ctx, c); ok {
				_ = f.messages.MarkRead(ctx, c, u, latest.ID)
			}
		case 4:
			if rng.Intn(2) == 0 {
				_ = f.conversations.AddMember(ctx, g, u)
			} else {
				_ = f.conversations.RemoveMember(ctx, g, u)
			}
		}
	}

	req.Empty(f.messages.ReconcileUnread(f.unread, false))
}

func TestMessageLog_ReconcileRepairs(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	g := newGroup(t, f, "bob")
	_, err := f.messages.Append(ctx, g, "alice", "hi")
	req.NoError(err)

	// Given a counter knocked out of sync
	f.unread.Check(projectionKey("bob", g), 5, true)

	mismatches := f.messages.ReconcileUnread(f.unread, true)
	req.Len(mismatches, 1)
	req.Equal(5, mismatches[0].Tracked)
	req.Equal(1, mismatches[0].Expected)
	req.Empty(f.messages.ReconcileUnread(f.unread, false))
}

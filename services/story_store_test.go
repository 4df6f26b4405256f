package services

import (
	"campus-chat/domain"
	"campus-chat/errors"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStoryStore_ActiveWindow(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)

	story, err := f.stories.Create(ctx, "alice", "sunset", domain.ImageStory)
	req.NoError(err)
	created := story.CreatedAt

	at := func(d time.Duration) domain.Clock {
		return func() time.Time { return created.Add(d) }
	}
	req.Len(f.stories.ActiveFor(at(0)), 1)
	req.Len(f.stories.ActiveFor(at(domain.StoryTTL-time.Nanosecond)), 1)
	req.Empty(f.stories.ActiveFor(at(domain.StoryTTL)))
	req.Empty(f.stories.ActiveFor(at(domain.StoryTTL+time.Hour)))

	// Expired stories stay visible to their author
	req.Len(f.stories.ByAuthor("alice"), 1)
}

func TestStoryStore_CreateValidates(t *testing.T) {
	f := newFixture(t)
	_, err := f.stories.Create(context.Background(), "alice", " ", domain.TextStory)
	require.ErrorIs(t, err, errors.ErrEmptyContent)
	_, err = f.stories.Create(context.Background(), "alice", "x", domain.StoryKind("video"))
	require.ErrorIs(t, err, errors.ErrInvalidKind)
}

func TestStoryStore_RecordViewIsIdempotent(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	story, err := f.stories.Create(ctx, "alice", "hello", domain.TextStory)
	req.NoError(err)

	// When bob views it concurrently many times, and alice views her own story
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.stories.RecordView(ctx, story.ID, "bob")
		}()
	}
	wg.Wait()
	req.NoError(f.stories.RecordView(ctx, story.ID, "alice"))

	// Then bob appears once and alice never
	got, err := f.stories.Get(ctx, story.ID)
	req.NoError(err)
	req.Equal([]domain.UserID{"bob"}, got.ViewerIDs.Sorted())
}

func TestStoryStore_RecordViewOnExpired(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	story, err := f.stories.Create(ctx, "alice", "hello", domain.TextStory)
	req.NoError(err)
	req.NoError(f.stories.RecordView(ctx, story.ID, "bob"))

	// Given the story exactly at its expiry
	f.clock.Advance(domain.StoryTTL)

	// Then a new viewer is refused and viewers are unchanged
	req.ErrorIs(f.stories.RecordView(ctx, story.ID, "carol"), errors.ErrExpired)
	got, err := f.stories.Get(ctx, story.ID)
	req.NoError(err)
	req.Equal([]domain.UserID{"bob"}, got.ViewerIDs.Sorted())

	// An already recorded view stays a success
	req.NoError(f.stories.RecordView(ctx, story.ID, "bob"))
	req.ErrorIs(f.stories.RecordView(ctx, "missing", "bob"), errors.ErrStoryNotFound)
}

func TestStoryStore_Delete(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	story, err := f.stories.Create(ctx, "alice", "hello", domain.TextStory)
	req.NoError(err)
	req.Equal(1, f.chat.StoryBadge(ctx, "alice"))

	req.ErrorIs(f.stories.Delete(ctx, story.ID, "bob"), errors.ErrForbidden)
	req.NoError(f.stories.Delete(ctx, story.ID, "alice"))
	req.NoError(f.stories.Delete(ctx, story.ID, "alice"))

	req.Empty(f.stories.ActiveFor(f.clock.Now))
	req.Empty(f.stories.ByAuthor("alice"))
	req.Equal(0, f.chat.StoryBadge(ctx, "alice"))
	req.ErrorIs(f.stories.RecordView(ctx, story.ID, "bob"), errors.ErrStoryNotFound)

	// The tombstone is kept
	got, err := f.stories.Get(ctx, story.ID)
	req.NoError(err)
	req.Equal(domain.StoryDeleted, got.StatusAt(f.clock.Now()))
}

func TestStoryStore_Ordering(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	older, err := f.stories.Create(ctx, "alice", "older", domain.TextStory)
	req.NoError(err)
	f.clock.Advance(time.Minute)
	newer, err := f.stories.Create(ctx, "bob", "newer", domain.TextStory)
	req.NoError(err)

	active := f.stories.ActiveFor(f.clock.Now)
	req.Len(active, 2)
	req.Equal(newer.ID, active[0].ID)
	req.Equal(older.ID, active[1].ID)
}

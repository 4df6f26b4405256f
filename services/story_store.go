package services

import (
	"campus-chat/domain"
	"campus-chat/domain/event"
	"campus-chat/errors"
	"campus-chat/repositories"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

type IStoryStore interface {
	Create(ctx context.Context, authorID domain.UserID, content string, kind domain.StoryKind) (domain.Story, error)
	RecordView(ctx context.Context, id domain.StoryID, viewerID domain.UserID) error
	ActiveFor(now domain.Clock) []domain.Story
	ByAuthor(authorID domain.UserID) []domain.Story
	Delete(ctx context.Context, id domain.StoryID, requesterID domain.UserID) error
	Get(ctx context.Context, id domain.StoryID) (domain.Story, error)
}

type storyState struct {
	mu    sync.Mutex
	story domain.Story
}

// StoryStore owns stories. Expiry is derived from the clock at query time;
// deletion is kept as a tombstone so that views and badges stay consistent.
type StoryStore struct {
	log        *slog.Logger
	mu         sync.RWMutex
	byID       map[domain.StoryID]*storyState
	repository repositories.IStoryRepository
	publisher  *Publisher
	clock      domain.Clock
}

func NewStoryStore(log *slog.Logger, repository repositories.IStoryRepository, publisher *Publisher, clock domain.Clock) *StoryStore {
	return &StoryStore{
		log:        log,
		byID:       make(map[domain.StoryID]*storyState),
		repository: repository,
		publisher:  publisher,
		clock:      clock,
	}
}

func (s *StoryStore) Create(ctx context.Context, authorID domain.UserID, content string, kind domain.StoryKind) (domain.Story, error) {
	story, err := domain.NewStory(domain.NewStoryID(), authorID, content, kind, s.clock())
	if err != nil {
		return domain.Story{}, err
	}
	if err := s.repository.StoreStory(ctx, story); err != nil {
		return domain.Story{}, fmt.Errorf("store story %s: %w", story.ID, err)
	}

	state := &storyState{story: story}
	state.mu.Lock()
	defer state.mu.Unlock()

	s.mu.Lock()
	s.byID[story.ID] = state
	s.mu.Unlock()

	s.publisher.Publish(ctx, event.StoryCreated{Story: story.Clone()})
	return story.Clone(), nil
}

func (s *StoryStore) lookup(id domain.StoryID) (*storyState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errors.ErrStoryNotFound, id)
	}
	return state, nil
}

// RecordView adds viewerID to the viewers. Viewing one's own story, or viewing
// twice, changes nothing.
func (s *StoryStore) RecordView(ctx context.Context, id domain.StoryID, viewerID domain.UserID) error {
	if viewerID.IsBlank() {
		return errors.ErrInvalidParticipant
	}
	state, err := s.lookup(id)
	if err != nil {
		return err
	}
	state.mu.Lock()
	defer state.mu.Unlock()

	story := state.story
	switch {
	case story.IsDeleted():
		return fmt.Errorf("%w: %s", errors.ErrStoryNotFound, id)
	case viewerID == story.AuthorID, story.ViewerIDs.Has(viewerID):
		return nil
	}
	now := s.clock()
	if story.IsExpiredAt(now) {
		return fmt.Errorf("%w: %s", errors.ErrExpired, id)
	}

	updated := story.Clone()
	updated.ViewerIDs[viewerID] = struct{}{}
	if err := s.repository.StoreStory(ctx, updated); err != nil {
		return fmt.Errorf("store story %s: %w", id, err)
	}
	state.story = updated
	s.publisher.Publish(ctx, event.StoryViewed{StoryID: id, AuthorID: story.AuthorID, ViewerID: viewerID, At: now})
	return nil
}

// ActiveFor returns the stories live at now(), newest first.
func (s *StoryStore) ActiveFor(now domain.Clock) []domain.Story {
	at := now()
	return s.collect(func(story domain.Story) bool { return story.IsLiveAt(at) })
}

// ByAuthor returns the author's stories not deleted, expired ones included, newest first.
func (s *StoryStore) ByAuthor(authorID domain.UserID) []domain.Story {
	return s.collect(func(story domain.Story) bool {
		return story.AuthorID == authorID && !story.IsDeleted()
	})
}

func (s *StoryStore) collect(keep func(domain.Story) bool) []domain.Story {
	s.mu.RLock()
	states := make([]*storyState, 0, len(s.byID))
	for _, state := range s.byID {
		states = append(states, state)
	}
	s.mu.RUnlock()

	stories := make([]domain.Story, 0, len(states))
	for _, state := range states {
		state.mu.Lock()
		if keep(state.story) {
			stories = append(stories, state.story.Clone())
		}
		state.mu.Unlock()
	}
	sort.Slice(stories, func(i, j int) bool {
		a, b := stories[i], stories[j]
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID < b.ID
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return stories
}

// Delete tombstones the story. Only its author may delete it; deleting twice is a no-op.
func (s *StoryStore) Delete(ctx context.Context, id domain.StoryID, requesterID domain.UserID) error {
	state, err := s.lookup(id)
	if err != nil {
		return err
	}
	state.mu.Lock()
	defer state.mu.Unlock()

	if state.story.AuthorID != requesterID {
		return fmt.Errorf("%w: %s cannot delete story %s", errors.ErrForbidden, requesterID, id)
	}
	if state.story.IsDeleted() {
		return nil
	}

	now := s.clock()
	deleted := state.story.Clone()
	deleted.DeletedAt = &now
	if err := s.repository.StoreStory(ctx, deleted); err != nil {
		return fmt.Errorf("store story %s: %w", id, err)
	}
	state.story = deleted
	s.publisher.Publish(ctx, event.StoryDeleted{StoryID: id, AuthorID: deleted.AuthorID, At: now})
	return nil
}

// Get returns the story, deleted or not.
func (s *StoryStore) Get(_ context.Context, id domain.StoryID) (domain.Story, error) {
	state, err := s.lookup(id)
	if err != nil {
		return domain.Story{}, err
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	return state.story.Clone(), nil
}

// Load restores persisted stories and replays the live ones into the
// synchronous sinks, without notifying subscribers.
func (s *StoryStore) Load(ctx context.Context) error {
	stories, err := s.repository.LoadStories(ctx)
	if err != nil {
		return fmt.Errorf("load stories: %w", err)
	}
	now := s.clock()
	live := 0
	s.mu.Lock()
	for _, story := range stories {
		s.byID[story.ID] = &storyState{story: story}
	}
	s.mu.Unlock()
	for _, story := range stories {
		if story.IsLiveAt(now) {
			s.publisher.Replay(ctx, event.StoryCreated{Story: story.Clone()})
			live++
		}
	}
	s.log.Info("Stories loaded", "count", len(stories), "live", live)
	return nil
}

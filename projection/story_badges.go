package projection

import (
	"campus-chat/domain"
	"campus-chat/domain/event"
	"context"
	"sort"
	"sync"
	"time"
)

type liveStory struct {
	author    domain.UserID
	expiresAt time.Time
}

// StoryBadges counts live stories per author for badge display.
// It is a cache: stories leave it when deleted or when the expiry reaper sweeps
// them, so between two sweeps it may still count an expired story.
type StoryBadges struct {
	mu        sync.Mutex
	live      map[domain.StoryID]liveStory
	perAuthor map[domain.UserID]int
	retired   uint64
}

func NewStoryBadges() *StoryBadges {
	return &StoryBadges{
		live:      make(map[domain.StoryID]liveStory),
		perAuthor: make(map[domain.UserID]int),
	}
}

func (b *StoryBadges) Consume(_ context.Context, e event.DomainEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch evt := e.(type) {
	case event.StoryCreated:
		if _, ok := b.live[evt.Story.ID]; ok || evt.Story.IsDeleted() {
			return nil
		}
		b.live[evt.Story.ID] = liveStory{author: evt.Story.AuthorID, expiresAt: evt.Story.ExpiresAt}
		b.perAuthor[evt.Story.AuthorID]++
	case event.StoryDeleted:
		b.drop(evt.StoryID)
	}
	return nil
}

// Sweep retires every story whose expiry is not after now and returns one
// StoryExpired per retired story, oldest expiry first. A second sweep at the
// same instant returns nothing.
func (b *StoryBadges) Sweep(now time.Time) []event.StoryExpired {
	b.mu.Lock()
	defer b.mu.Unlock()

	var expired []event.StoryExpired
	for id, s := range b.live {
		if now.Before(s.expiresAt) {
			continue
		}
		expired = append(expired, event.StoryExpired{StoryID: id, AuthorID: s.author, At: s.expiresAt})
	}
	sort.Slice(expired, func(i, j int) bool {
		if expired[i].At.Equal(expired[j].At) {
			return expired[i].StoryID < expired[j].StoryID
		}
		return expired[i].At.Before(expired[j].At)
	})
	for _, e := range expired {
		b.drop(e.StoryID)
		b.retired++
	}
	return expired
}

func (b *StoryBadges) drop(id domain.StoryID) {
	s, ok := b.live[id]
	if !ok {
		return
	}
	delete(b.live, id)
	if b.perAuthor[s.author]--; b.perAuthor[s.author] <= 0 {
		delete(b.perAuthor, s.author)
	}
}

func (b *StoryBadges) ActiveCount(author domain.UserID) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.perAuthor[author]
}

func (b *StoryBadges) Live() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.live)
}

func (b *StoryBadges) Retired() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.retired
}

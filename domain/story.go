package domain

import (
	"campus-chat/errors"
	"fmt"
	"time"
)

// StoryTTL is the fixed lifetime of a story.
const StoryTTL = 24 * time.Hour

type StoryKind string

const (
	TextStory  StoryKind = "text"
	ImageStory StoryKind = "image"
)

func ParseStoryKind(s string) (StoryKind, error) {
	switch StoryKind(s) {
	case TextStory, ImageStory:
		return StoryKind(s), nil
	}
	return "", fmt.Errorf("%w: %q", errors.ErrInvalidKind, s)
}

type StoryStatus string

const (
	StoryActive  StoryStatus = "active"
	StoryExpired StoryStatus = "expired"
	StoryDeleted StoryStatus = "deleted"
)

// Story is ephemeral content. Expired and deleted stories are kept: expiry only
// stops new views, deletion hides the story from listings.
type Story struct {
	ID        StoryID
	AuthorID  UserID
	Content   string
	Kind      StoryKind
	CreatedAt time.Time
	ExpiresAt time.Time
	ViewerIDs UserSet
	DeletedAt *time.Time
}

func NewStory(id StoryID, author UserID, content string, kind StoryKind, at time.Time) (Story, error) {
	if author.IsBlank() {
		return Story{}, errors.ErrInvalidParticipant
	}
	if err := ValidateContent(content); err != nil {
		return Story{}, err
	}
	if _, err := ParseStoryKind(string(kind)); err != nil {
		return Story{}, err
	}
	return Story{
		ID:        id,
		AuthorID:  author,
		Content:   content,
		Kind:      kind,
		CreatedAt: at,
		ExpiresAt: at.Add(StoryTTL),
		ViewerIDs: NewUserSet(),
	}, nil
}

func (s Story) IsExpiredAt(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

func (s Story) IsDeleted() bool {
	return s.DeletedAt != nil
}

// IsLiveAt reports whether the story is listed as active at now.
func (s Story) IsLiveAt(now time.Time) bool {
	return !s.IsDeleted() && !s.IsExpiredAt(now)
}

func (s Story) StatusAt(now time.Time) StoryStatus {
	switch {
	case s.IsDeleted():
		return StoryDeleted
	case s.IsExpiredAt(now):
		return StoryExpired
	default:
		return StoryActive
	}
}

func (s Story) Clone() Story {
	s.ViewerIDs = s.ViewerIDs.Clone()
	if s.DeletedAt != nil {
		at := *s.DeletedAt
		s.DeletedAt = &at
	}
	return s
}

package repositories

import (
	"campus-chat/domain"
	"context"
	"fmt"
)

const storyPrefix = "story:"

type IStoryRepository interface {
	StoreStory(ctx context.Context, s domain.Story) error
	LoadStories(ctx context.Context) ([]domain.Story, error)
}

type StoryRepository struct {
	kv KV
}

func NewStoryRepository(kv KV) StoryRepository {
	return StoryRepository{kv: kv}
}

func (r StoryRepository) StoreStory(ctx context.Context, s domain.Story) error {
	bytes, err := encodeStory(s)
	if err != nil {
		return err
	}
	return r.kv.Put(ctx, storyPrefix+string(s.ID), bytes)
}

func (r StoryRepository) LoadStories(ctx context.Context) ([]domain.Story, error) {
	var stories []domain.Story
	err := r.kv.Scan(ctx, storyPrefix, func(key string, value []byte) error {
		s, err := decodeStory(value)
		if err != nil {
			return fmt.Errorf("decoding %s: %w", key, err)
		}
		stories = append(stories, s)
		return nil
	})
	return stories, err
}

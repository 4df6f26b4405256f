// Package observability counts what flows through the system and samples the
// process, for the /stats endpoint and the inspect tool.
package observability

import (
	"campus-chat/domain/event"
	"context"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// MonitoringStats is the snapshot served by /stats.
type MonitoringStats struct {
	MessagesAppended     uint64 `json:"messages_appended"`
	MessagesRead         uint64 `json:"messages_read"`
	ConversationsCreated uint64 `json:"conversations_created"`
	MembershipChanges    uint64 `json:"membership_changes"`
	StoriesCreated       uint64 `json:"stories_created"`
	StoryViews           uint64 `json:"story_views"`
	StoriesDeleted       uint64 `json:"stories_deleted"`
	StoriesExpired       uint64 `json:"stories_expired"`
	LiveStories          int    `json:"live_stories"`

	// Process
	Pid           int32   `json:"pid"`
	RssBytes      uint64  `json:"rss_bytes"`
	CPUPercent    float64 `json:"cpu_percent"`
	AllocMemMb    uint64  `json:"alloc_mem_mb"`
	NumGC         uint32  `json:"num_gc"`
	NumGoroutines int     `json:"num_goroutines"`
	SampledAt     string  `json:"sampled_at,omitempty"`
}

// ProcessSample is one reading of the process resources.
type ProcessSample struct {
	Pid        int32
	RssBytes   uint64
	CPUPercent float64
	At         time.Time
}

// MonitoringManager is an asynchronous event sink keeping counters per event type.
type MonitoringManager struct {
	log *slog.Logger

	messagesAppended     atomic.Uint64
	messagesRead         atomic.Uint64
	conversationsCreated atomic.Uint64
	membershipChanges    atomic.Uint64
	storiesCreated       atomic.Uint64
	storyViews           atomic.Uint64
	storiesDeleted       atomic.Uint64
	storiesExpired       atomic.Uint64

	mu          sync.RWMutex
	sample      ProcessSample
	liveStories func() int
}

func NewMonitoringManager(log *slog.Logger, liveStories func() int) *MonitoringManager {
	return &MonitoringManager{log: log, liveStories: liveStories}
}

func (mm *MonitoringManager) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.MessageAppended:
		mm.messagesAppended.Add(1)
	case event.MessagesRead:
		mm.messagesRead.Add(uint64(evt.NewlyRead))
	case event.ConversationCreated:
		mm.conversationsCreated.Add(1)
	case event.MemberAdded, event.MemberRemoved:
		mm.membershipChanges.Add(1)
	case event.StoryCreated:
		mm.storiesCreated.Add(1)
	case event.StoryViewed:
		mm.storyViews.Add(1)
	case event.StoryDeleted:
		mm.storiesDeleted.Add(1)
	case event.StoryExpired:
		mm.storiesExpired.Add(1)
	}
	return nil
}

// Record stores the latest process sample.
func (mm *MonitoringManager) Record(sample ProcessSample) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.sample = sample
}

func (mm *MonitoringManager) GetLatest() MonitoringStats {
	mm.mu.RLock()
	sample := mm.sample
	mm.mu.RUnlock()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	stats := MonitoringStats{
		MessagesAppended:     mm.messagesAppended.Load(),
		MessagesRead:         mm.messagesRead.Load(),
		ConversationsCreated: mm.conversationsCreated.Load(),
		MembershipChanges:    mm.membershipChanges.Load(),
		StoriesCreated:       mm.storiesCreated.Load(),
		StoryViews:           mm.storyViews.Load(),
		StoriesDeleted:       mm.storiesDeleted.Load(),
		StoriesExpired:       mm.storiesExpired.Load(),
		Pid:                  sample.Pid,
		RssBytes:             sample.RssBytes,
		CPUPercent:           sample.CPUPercent,
		AllocMemMb:           mem.Alloc / 1024 / 1024,
		NumGC:                mem.NumGC,
		NumGoroutines:        runtime.NumGoroutine(),
	}
	if !sample.At.IsZero() {
		stats.SampledAt = sample.At.Format(time.RFC3339)
	}
	if mm.liveStories != nil {
		stats.LiveStories = mm.liveStories()
	}
	return stats
}

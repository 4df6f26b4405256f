// Package runtime wires the stores, projections and workers together and owns
// their lifecycle. It contains no business rule.
package runtime

import (
	"campus-chat/contract"
	"campus-chat/domain"
	"campus-chat/domain/event"
	"campus-chat/observability"
	"campus-chat/projection"
	"campus-chat/repositories"
	"campus-chat/runtime/workers"
	"campus-chat/services"
	"campus-chat/sink"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type Settings struct {
	BufferSize     int
	SinkTimeout    time.Duration
	ReaperInterval time.Duration
	SampleInterval time.Duration
	PageLimit      int
}

func (s Settings) withDefaults() Settings {
	if s.BufferSize <= 0 {
		s.BufferSize = 1024
	}
	if s.SinkTimeout <= 0 {
		s.SinkTimeout = time.Second
	}
	if s.ReaperInterval <= 0 {
		s.ReaperInterval = time.Minute
	}
	if s.SampleInterval <= 0 {
		s.SampleInterval = 5 * time.Second
	}
	return s
}

type Orchestrator struct {
	mu         sync.Mutex
	started    bool
	log        *slog.Logger
	supervisor contract.ISupervisor
	registry   contract.IRegistry
	events     chan event.DomainEvent
	settings   Settings
	clock      domain.Clock

	publisher     *services.Publisher
	conversations *services.ConversationStore
	messages      *services.MessageLog
	stories       *services.StoryStore
	chat          *services.ChatService
	unread        *projection.UnreadTracker
	badges        *projection.StoryBadges
	monitoring    *observability.MonitoringManager
	reaper        *workers.ExpiryReaper
}

func NewOrchestrator(log *slog.Logger, kv repositories.KV, supervisor *workers.Supervisor,
	registry *Registry, clock domain.Clock, settings Settings) *Orchestrator {
	settings = settings.withDefaults()
	events := make(chan event.DomainEvent, settings.BufferSize)
	unread := projection.NewUnreadTracker(log)
	badges := projection.NewStoryBadges()
	publisher := services.NewPublisher(log, events, unread, badges)

	conversations := services.NewConversationStore(log, repositories.NewConversationRepository(kv), publisher, clock)
	messages := services.NewMessageLog(log, conversations, repositories.NewMessageRepository(kv), publisher, clock)
	stories := services.NewStoryStore(log, repositories.NewStoryRepository(kv), publisher, clock)

	return &Orchestrator{
		log:           log,
		supervisor:    supervisor,
		registry:      registry,
		events:        events,
		settings:      settings,
		clock:         clock,
		publisher:     publisher,
		conversations: conversations,
		messages:      messages,
		stories:       stories,
		chat:          services.NewChatService(conversations, messages, stories, unread, badges, clock, settings.PageLimit),
		unread:        unread,
		badges:        badges,
		monitoring:    observability.NewMonitoringManager(log, badges.Live),
		reaper:        workers.NewExpiryReaper(log, badges, publisher, clock, settings.ReaperInterval),
	}
}

// Load restores the stores from persistence and rebuilds the unread counters.
func (o *Orchestrator) Load(ctx context.Context) error {
	if err := o.conversations.Load(ctx); err != nil {
		return err
	}
	if err := o.messages.Load(ctx); err != nil {
		return err
	}
	if err := o.stories.Load(ctx); err != nil {
		return err
	}
	rebuilt := o.messages.ReconcileUnread(o.unread, true)
	o.log.Info("Unread counters rebuilt", "counters", len(rebuilt))
	return nil
}

// Start loads the persisted state, then runs the workers in the background
// until ctx is canceled or Stop is called.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.started {
		return fmt.Errorf("orchestrator already started")
	}
	if err := o.Load(ctx); err != nil {
		return err
	}

	fanout := workers.NewEventFanoutWorker(o.log, o.events, o.registry, o.settings.SinkTimeout,
		sink.NewLogSink(o.log, slog.LevelDebug), o.monitoring)
	sampler := workers.NewProcessSampler(o.log, o.monitoring, o.clock, o.settings.SampleInterval)
	o.supervisor.Add(fanout, o.reaper, sampler)

	go o.supervisor.Run(ctx)
	o.started = true
	o.log.Info("Orchestrator started")
	return nil
}

func (o *Orchestrator) Stop() {
	o.supervisor.Stop()
}

func (o *Orchestrator) ChatService() *services.ChatService {
	return o.chat
}

func (o *Orchestrator) Monitoring() *observability.MonitoringManager {
	return o.monitoring
}

// ExpireStories runs one reaper tick at now.
func (o *Orchestrator) ExpireStories(ctx context.Context, now time.Time) []domain.StoryID {
	return o.reaper.Tick(ctx, now)
}

// Reconcile reports unread counters drifting from the log, repairing them when asked.
func (o *Orchestrator) Reconcile(repair bool) []projection.Mismatch {
	return o.messages.ReconcileUnread(o.unread, repair)
}

// RegisterParticipant routes the events concerning userID to sink.
func (o *Orchestrator) RegisterParticipant(userID domain.UserID, sink contract.EventSink) {
	o.registry.Subscribe(userID, sink)
}

func (o *Orchestrator) UnregisterParticipant(userID domain.UserID) {
	o.registry.Unsubscribe(userID)
}

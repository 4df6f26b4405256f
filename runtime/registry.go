package runtime

import (
	"campus-chat/contract"
	"campus-chat/domain"
	"sync"
)

// Registry maps connected users to the sink receiving their notifications.
// A user has at most one active sink; subscribing again replaces it.
type Registry struct {
	mu       sync.RWMutex
	Sessions map[domain.UserID]contract.EventSink
}

func NewRegistry() *Registry {
	return &Registry{Sessions: make(map[domain.UserID]contract.EventSink)}
}

// GetSinksForUsers resolves the users to their active sinks, skipping offline ones.
func (r *Registry) GetSinksForUsers(userIDs []domain.UserID) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sinks []contract.EventSink
	for _, id := range userIDs {
		if sink, ok := r.Sessions[id]; ok {
			sinks = append(sinks, sink)
		}
	}
	return sinks
}

func (r *Registry) Subscribe(userID domain.UserID, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Sessions[userID] = sink
}

func (r *Registry) Unsubscribe(userID domain.UserID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.Sessions, userID)
}

package services

import (
	"campus-chat/domain"
	"campus-chat/errors"
	"fmt"
	"sync"
)

// conversationState is the unit of locking: a conversation and its message log.
// messages[i].Sequence == i+1.
type conversationState struct {
	mu       sync.Mutex
	conv     domain.Conversation
	messages []domain.Message
	index    map[domain.MessageID]int
}

// conversationTable indexes conversation states. A conversation lock may be held
// while taking the table lock, never the other way round.
type conversationTable struct {
	mu     sync.RWMutex
	byID   map[domain.ConversationID]*conversationState
	direct map[string]domain.ConversationID
	byUser map[domain.UserID]map[domain.ConversationID]struct{}
}

func newConversationTable() *conversationTable {
	return &conversationTable{
		byID:   make(map[domain.ConversationID]*conversationState),
		direct: make(map[string]domain.ConversationID),
		byUser: make(map[domain.UserID]map[domain.ConversationID]struct{}),
	}
}

func (t *conversationTable) lookup(id domain.ConversationID) (*conversationState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.byID[id]
	return s, ok
}

func (t *conversationTable) lookupDirect(pairKey string) (*conversationState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.direct[pairKey]
	if !ok {
		return nil, false
	}
	s, ok := t.byID[id]
	return s, ok
}

// withConversation runs fn holding the conversation lock.
func (t *conversationTable) withConversation(id domain.ConversationID, fn func(s *conversationState) error) error {
	s, ok := t.lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s", errors.ErrConversationNotFound, id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s)
}

// insert registers a conversation unless its id is already known, and returns
// the state owning the id.
func (t *conversationTable) insert(c domain.Conversation) *conversationState {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.byID[c.ID]; ok {
		return existing
	}
	s := &conversationState{conv: c, index: make(map[domain.MessageID]int)}
	t.byID[c.ID] = s
	if c.Kind == domain.Direct {
		ids := c.Participants.Sorted()
		if len(ids) == 2 {
			t.direct[domain.DirectPairKey(ids[0], ids[1])] = c.ID
		}
	}
	for u := range c.Participants {
		t.indexLocked(u, c.ID)
	}
	return s
}

func (t *conversationTable) index(u domain.UserID, id domain.ConversationID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.indexLocked(u, id)
}

func (t *conversationTable) indexLocked(u domain.UserID, id domain.ConversationID) {
	set, ok := t.byUser[u]
	if !ok {
		set = make(map[domain.ConversationID]struct{})
		t.byUser[u] = set
	}
	set[id] = struct{}{}
}

func (t *conversationTable) unindex(u domain.UserID, id domain.ConversationID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if set, ok := t.byUser[u]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(t.byUser, u)
		}
	}
}

func (t *conversationTable) forUser(u domain.UserID) []*conversationState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	states := make([]*conversationState, 0, len(t.byUser[u]))
	for id := range t.byUser[u] {
		if s, ok := t.byID[id]; ok {
			states = append(states, s)
		}
	}
	return states
}

func (t *conversationTable) all() []*conversationState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	states := make([]*conversationState, 0, len(t.byID))
	for _, s := range t.byID {
		states = append(states, s)
	}
	return states
}

// keyedMutex serializes work per key and forgets keys nobody holds.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		if m.refs--; m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

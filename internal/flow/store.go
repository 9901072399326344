// Package flow implements the conversational flow engine for DriverDesk:
// per-driver dialogue state, request validation, and the step machine
// that turns inbound webhook messages into replies and side effects.
package flow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/treelogistics/driverdesk/internal/models"
)

// DefaultTTL is how long a conversation may stay idle before it expires.
// A lookup after the TTL behaves as if no state exists.
const DefaultTTL = 30 * time.Minute

// Store holds one ConversationState per driver identifier with
// insert-or-replace semantics and TTL-aware reads.
type Store interface {
	// Get returns the state for id, or nil if absent or expired.
	// Expired entries are purged as a side effect of the lookup.
	Get(ctx context.Context, id string) (*models.ConversationState, error)

	// Put fully replaces the state for id, stamping LastActivityAt.
	// StartedAt is stamped on first insertion and preserved on replace.
	Put(ctx context.Context, id string, state *models.ConversationState) error

	// Merge shallow-merges a partial update into the existing state and
	// stamps LastActivityAt. Merging into an absent id is a logged no-op.
	Merge(ctx context.Context, id string, patch models.StatePatch) error

	// Delete removes the state for id. Deleting an absent id is a no-op.
	Delete(ctx context.Context, id string) error

	// ClearAll removes every stored state.
	ClearAll(ctx context.Context) error

	// ActiveCount returns the number of unexpired states.
	ActiveCount(ctx context.Context) (int, error)
}

// MemoryStore is the default in-memory Store. It is non-durable by
// design: a process restart loses in-flight conversations. The mutex
// makes it safe for overlapping webhook invocations; two concurrent
// messages from the same driver remain last-write-wins.
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]*models.ConversationState
	ttl    time.Duration
	now    func() time.Time
}

// NewMemoryStore creates an in-memory flow store with the default TTL.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithTTL(DefaultTTL)
}

// NewMemoryStoreWithTTL creates an in-memory flow store with a custom TTL.
func NewMemoryStoreWithTTL(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		states: make(map[string]*models.ConversationState),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*models.ConversationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[id]
	if !ok {
		return nil, nil
	}
	if s.now().Sub(state.LastActivityAt) > s.ttl {
		slog.Debug("MemoryStore flow expired", "id", id, "lastActivity", state.LastActivityAt)
		delete(s.states, id)
		return nil, nil
	}
	return state.Clone(), nil
}

func (s *MemoryStore) Put(ctx context.Context, id string, state *models.ConversationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	stored := state.Clone()
	stored.LastActivityAt = now
	if existing, ok := s.states[id]; ok && !existing.StartedAt.IsZero() {
		stored.StartedAt = existing.StartedAt
	} else if stored.StartedAt.IsZero() {
		stored.StartedAt = now
	}
	s.states[id] = stored
	slog.Debug("MemoryStore flow stored", "id", id, "step", stored.Step)
	return nil
}

func (s *MemoryStore) Merge(ctx context.Context, id string, patch models.StatePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[id]
	if !ok {
		slog.Debug("MemoryStore merge into absent flow ignored", "id", id)
		return nil
	}
	patch.Apply(state)
	state.LastActivityAt = s.now()
	slog.Debug("MemoryStore flow merged", "id", id, "step", state.Step)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.states[id]; ok {
		delete(s.states, id)
		slog.Debug("MemoryStore flow cleared", "id", id)
	}
	return nil
}

func (s *MemoryStore) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	slog.Info("MemoryStore clearing all flows", "count", len(s.states))
	s.states = make(map[string]*models.ConversationState)
	return nil
}

func (s *MemoryStore) ActiveCount(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	now := s.now()
	for id, state := range s.states {
		if now.Sub(state.LastActivityAt) > s.ttl {
			delete(s.states, id)
			continue
		}
		count++
	}
	return count, nil
}

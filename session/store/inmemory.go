package store

import (
	"context"
	"fmt"
	"sync"

	relayerr "github.com/hypersoc/relay/errors"
	"github.com/hypersoc/relay/session"
)

// InMemoryStore implements session storage using in-memory storage. Expired
// records are only discarded when the resolver replaces them; growth is
// bounded by the number of distinct conversations seen.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]*session.Record
}

// NewInMemoryStore creates a new in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		records: make(map[string]*session.Record),
	}
}

// Save saves a session record to the store.
func (s *InMemoryStore) Save(ctx context.Context, record *session.Record) error {
	if record == nil || record.ConversationID == "" {
		return fmt.Errorf("session record cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.ConversationID] = record.Clone()
	return nil
}

// Load loads a session record from the store.
func (s *InMemoryStore) Load(ctx context.Context, conversationID string) (*session.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, exists := s.records[conversationID]
	if !exists {
		return nil, fmt.Errorf("conversation %s: %w", conversationID, relayerr.ErrSessionNotFound)
	}
	return record.Clone(), nil
}

// Delete removes a session record from the store.
func (s *InMemoryStore) Delete(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, conversationID)
	return nil
}

// Count returns the number of stored session records.
func (s *InMemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

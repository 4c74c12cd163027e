package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	relayerr "github.com/hypersoc/relay/errors"
)

// fakeThreads counts thread creations and hands out sequential ids.
type fakeThreads struct {
	mu    sync.Mutex
	calls int
	delay time.Duration
}

func (f *fakeThreads) CreateThread(ctx context.Context) (string, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return fmt.Sprintf("thread-%d", f.calls), nil
}

func (f *fakeThreads) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// mapStore is a minimal store for resolver tests.
type mapStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

func newMapStore() *mapStore {
	return &mapStore{records: make(map[string]*Record)}
}

func (s *mapStore) Save(ctx context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.ConversationID] = record.Clone()
	return nil
}

func (s *mapStore) Load(ctx context.Context, conversationID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[conversationID]
	if !ok {
		return nil, fmt.Errorf("conversation %s: %w", conversationID, relayerr.ErrSessionNotFound)
	}
	return record.Clone(), nil
}

func (s *mapStore) Delete(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, conversationID)
	return nil
}

func (s *mapStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

func TestResolveCreatesDistinctThreadsPerConversation(t *testing.T) {
	threads := &fakeThreads{}
	resolver := NewResolver(threads, WithStore(newMapStore()))
	ctx := context.Background()

	first, err := resolver.Resolve(ctx, "conv-1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	second, err := resolver.Resolve(ctx, "conv-2")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if first == second {
		t.Errorf("Expected distinct threads for distinct conversations, both got %q", first)
	}
	if threads.count() != 2 {
		t.Errorf("Expected two thread creations, got %d", threads.count())
	}
}

func TestResolveReusesLiveSession(t *testing.T) {
	threads := &fakeThreads{}
	resolver := NewResolver(threads, WithStore(newMapStore()))
	ctx := context.Background()

	first, err := resolver.Resolve(ctx, "conv-1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	second, err := resolver.Resolve(ctx, "conv-1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if first != second {
		t.Errorf("Expected same thread on reuse, got %q then %q", first, second)
	}
	if threads.count() != 1 {
		t.Errorf("Expected a single thread creation, got %d", threads.count())
	}
}

func TestResolveRefreshesLastUsed(t *testing.T) {
	threads := &fakeThreads{}
	store := newMapStore()
	resolver := NewResolver(threads, WithStore(store))
	ctx := context.Background()

	if _, err := resolver.Resolve(ctx, "conv-1"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	// Age the record to just inside the window, then resolve again.
	aged := time.Now().Add(-29 * time.Minute)
	store.records["conv-1"].LastUsed = aged

	if _, err := resolver.Resolve(ctx, "conv-1"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !store.records["conv-1"].LastUsed.After(aged) {
		t.Errorf("Expected LastUsed to be refreshed on reuse")
	}
}

func TestResolveDiscardsExpiredSession(t *testing.T) {
	threads := &fakeThreads{}
	store := newMapStore()
	resolver := NewResolver(threads, WithStore(store))
	ctx := context.Background()

	first, err := resolver.Resolve(ctx, "conv-1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	store.records["conv-1"].LastUsed = time.Now().Add(-31 * time.Minute)

	second, err := resolver.Resolve(ctx, "conv-1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if first == second {
		t.Errorf("Expected a fresh thread after expiry, still got %q", first)
	}
	if threads.count() != 2 {
		t.Errorf("Expected exactly one additional thread creation, got %d total", threads.count())
	}
}

func TestResolveSerializesConcurrentFirstPrompts(t *testing.T) {
	threads := &fakeThreads{delay: 5 * time.Millisecond}
	resolver := NewResolver(threads, WithStore(newMapStore()))
	ctx := context.Background()

	const workers = 16
	results := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			threadID, err := resolver.Resolve(ctx, "conv-new")
			if err != nil {
				t.Errorf("Resolve failed: %v", err)
				return
			}
			results[i] = threadID
		}(i)
	}
	wg.Wait()

	if threads.count() != 1 {
		t.Errorf("Expected exactly one thread creation under contention, got %d", threads.count())
	}
	for i := 1; i < workers; i++ {
		if results[i] != results[0] {
			t.Errorf("Expected all resolutions to agree, got %q and %q", results[0], results[i])
		}
	}
}

func TestResolveRejectsEmptyConversationID(t *testing.T) {
	resolver := NewResolver(&fakeThreads{}, WithStore(newMapStore()))
	if _, err := resolver.Resolve(context.Background(), ""); err == nil {
		t.Errorf("Expected error for empty conversation id")
	}
}

func TestResolveRequiresStore(t *testing.T) {
	resolver := NewResolver(&fakeThreads{})
	if _, err := resolver.Resolve(context.Background(), "conv-1"); err == nil {
		t.Errorf("Expected error when store is not configured")
	}
}

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	relayerr "github.com/hypersoc/relay/errors"
	"github.com/hypersoc/relay/pkg/logging"
)

// DefaultExpiryWindow is how long a session stays live without reuse.
const DefaultExpiryWindow = 30 * time.Minute

// ThreadCreator creates remote threads; satisfied by agent.Client.
type ThreadCreator interface {
	CreateThread(ctx context.Context) (string, error)
}

// Resolver is the single source of truth for the conversation → thread
// mapping. Resolution is an atomic check-then-act per conversation id: two
// concurrent prompts for the same conversation never race to create two
// distinct remote threads. Resolutions for distinct conversations do not
// block each other.
type Resolver struct {
	store   Store
	threads ThreadCreator
	window  time.Duration
	logger  *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithStore sets the backing store.
func WithStore(s Store) ResolverOption {
	return func(r *Resolver) {
		r.store = s
	}
}

// WithExpiryWindow overrides the session expiry window.
func WithExpiryWindow(window time.Duration) ResolverOption {
	return func(r *Resolver) {
		if window > 0 {
			r.window = window
		}
	}
}

// WithLogger overrides the logger used by the resolver.
func WithLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewResolver creates a resolver that maps conversations onto threads
// created through the given ThreadCreator.
func NewResolver(threads ThreadCreator, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		threads: threads,
		window:  DefaultExpiryWindow,
		locks:   make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logging.WithComponent("session_resolver")
	}
	return r
}

// Resolve returns the live thread id for the conversation, refreshing its
// last-used timestamp. An expired record is discarded and treated as a
// miss; on a miss a new remote thread is created and recorded.
func (r *Resolver) Resolve(ctx context.Context, conversationID string) (string, error) {
	if conversationID == "" {
		return "", fmt.Errorf("conversation id cannot be empty")
	}
	if err := r.ensureStore(); err != nil {
		return "", err
	}

	lock := r.keyLock(conversationID)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now()

	record, err := r.store.Load(ctx, conversationID)
	switch {
	case err == nil && record.LiveAt(now, r.window):
		idle := now.Sub(record.LastUsed)
		record.LastUsed = now
		if err := r.store.Save(ctx, record); err != nil {
			return "", fmt.Errorf("failed to refresh session: %w", err)
		}
		r.logger.Debug("reusing existing thread",
			"conversation_id", conversationID,
			"thread_id", record.ThreadID,
			"minutes_since_last_use", int(idle.Minutes()))
		return record.ThreadID, nil

	case err == nil:
		r.logger.Info("thread expired, creating new one",
			"conversation_id", conversationID,
			"thread_id", record.ThreadID)
		if err := r.store.Delete(ctx, conversationID); err != nil {
			return "", fmt.Errorf("failed to discard expired session: %w", err)
		}

	case !errors.Is(err, relayerr.ErrSessionNotFound):
		return "", fmt.Errorf("failed to load session: %w", err)
	}

	r.logger.Info("creating new thread for conversation", "conversation_id", conversationID)
	threadID, err := r.threads.CreateThread(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create thread: %w", err)
	}

	record = &Record{
		ConversationID: conversationID,
		ThreadID:       threadID,
		LastUsed:       now,
	}
	if err := r.store.Save(ctx, record); err != nil {
		return "", fmt.Errorf("failed to save session: %w", err)
	}
	return threadID, nil
}

// Count returns the number of tracked sessions, live or expired.
func (r *Resolver) Count(ctx context.Context) (int, error) {
	if err := r.ensureStore(); err != nil {
		return 0, err
	}
	return r.store.Count(ctx)
}

func (r *Resolver) ensureStore() error {
	if r.store == nil {
		return fmt.Errorf("session resolver store is not configured")
	}
	return nil
}

// keyLock returns the mutex serializing resolutions for one conversation.
// The lock map grows with distinct conversation ids seen, matching the
// store's own growth.
func (r *Resolver) keyLock(conversationID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[conversationID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[conversationID] = lock
	}
	return lock
}

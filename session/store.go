package session

import "context"

// Store defines the interface for session storage backends that operate on
// serializable session records, keyed by conversation id.
type Store interface {
	Save(ctx context.Context, record *Record) error
	Load(ctx context.Context, conversationID string) (*Record, error)
	Delete(ctx context.Context, conversationID string) error
	Count(ctx context.Context) (int, error)
}

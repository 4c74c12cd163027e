package agent

import (
	"context"
	"iter"
	"time"

	"github.com/hypersoc/relay/message"
)

// Client is the capability set the relay requires from the remote agent
// service: thread creation, message posting, run execution with polling and
// message retrieval. Implementations live under contrib/agentclient; tests
// substitute fakes.
type Client interface {
	// CreateThread creates a new conversation thread and returns its id.
	CreateThread(ctx context.Context) (string, error)

	// PostMessage submits a message on the thread and returns the message id.
	PostMessage(ctx context.Context, threadID string, role message.Role, text string) (string, error)

	// RunAndPoll starts a run of the agent against the thread and polls it
	// until it reaches a terminal status or ctx is cancelled.
	RunAndPoll(ctx context.Context, threadID, agentID string, opts RunOptions) (*Run, error)

	// ListMessages yields the thread's messages newest-first as a lazy,
	// finite, non-restartable stream.
	ListMessages(ctx context.Context, threadID string, opts ListOptions) iter.Seq2[*message.ThreadMessage, error]
}

// RunOptions controls run polling.
type RunOptions struct {
	// PollInterval is the delay between status checks. Zero means
	// DefaultPollInterval.
	PollInterval time.Duration
}

// ListOptions controls message retrieval.
type ListOptions struct {
	// Limit bounds the page of messages fetched. Zero means DefaultListLimit.
	Limit int
}

const (
	// DefaultPollInterval is the run polling cadence.
	DefaultPollInterval = 1500 * time.Millisecond

	// DefaultListLimit is the page size used when fetching recent messages.
	DefaultListLimit = 5
)

// Interval returns the configured poll interval or the default.
func (o RunOptions) Interval() time.Duration {
	if o.PollInterval <= 0 {
		return DefaultPollInterval
	}
	return o.PollInterval
}

// PageLimit returns the configured list limit or the default.
func (o ListOptions) PageLimit() int {
	if o.Limit <= 0 {
		return DefaultListLimit
	}
	return o.Limit
}

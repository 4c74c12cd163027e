package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/hypersoc/relay/agent"
	"github.com/hypersoc/relay/config"
	relayerr "github.com/hypersoc/relay/errors"
	"github.com/hypersoc/relay/message"
	"github.com/hypersoc/relay/pkg/logging"
	"github.com/hypersoc/relay/pkg/telemetry"
	"github.com/hypersoc/relay/session"
)

// DefaultConversationID keys prompts that arrive without any conversation
// context, such as bare HTTP triggers.
const DefaultConversationID = "default-conversation"

// placeholder name assigned by the chat platform when the sender is unknown
const placeholderUserName = "User"

// UserContext carries the optional conversational context of one prompt. It
// is transient: used to derive the session key and annotate the outgoing
// prompt, never persisted.
type UserContext struct {
	ConversationID      string
	ChannelID           string
	UserID              string
	UserName            string
	IsGroupConversation bool
}

// Orchestrator drives one user prompt end to end against the remote agent:
// session resolution, prompt augmentation, message post, run execution under
// a deadline, and response selection.
type Orchestrator struct {
	cfg      *config.Config
	client   agent.Client
	resolver *session.Resolver
	logger   *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger overrides the logger used by the orchestrator.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New creates an orchestrator over the given agent client and session
// resolver.
func New(cfg *config.Config, client agent.Client, resolver *session.Resolver, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg,
		client:   client,
		resolver: resolver,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logging.WithComponent("orchestrator")
	}
	return o
}

// Run handles one prompt and always returns a user-facing string; no error
// escapes to the caller. The chat and notification senders display the
// returned string verbatim.
func (o *Orchestrator) Run(ctx context.Context, prompt string, userCtx *UserContext) string {
	return o.Execute(ctx, prompt, userCtx).Render()
}

// Execute handles one prompt and returns the tagged outcome. Used directly
// by callers that need to distinguish failures before rendering.
func (o *Orchestrator) Execute(ctx context.Context, prompt string, userCtx *UserContext) Outcome {
	start := time.Now()

	if problems := o.cfg.Problems(); len(problems) > 0 {
		o.logger.Error("configuration issues", "problems", problems)
		return configError(problems)
	}

	conversationID := deriveConversationID(userCtx)
	o.logger.Info("invoking agent",
		"endpoint", o.cfg.AgentEndpoint,
		"agent_id", config.Redact(o.cfg.AgentID),
		"conversation_id", conversationID,
		"prompt_preview", preview(prompt, 60))

	ctx, span := telemetry.Start(ctx, "orchestrator.run",
		attribute.String("conversation_id", conversationID))

	outcome := o.execute(ctx, prompt, conversationID, userCtx)
	telemetry.End(span, outcome.Err)

	duration := time.Since(start)
	if outcome.OK() {
		o.logger.Info("agent run succeeded", "duration_ms", duration.Milliseconds(), "chars", len(outcome.Text))
	} else {
		o.logger.Error("agent run failed",
			"duration_ms", duration.Milliseconds(),
			"outcome", string(outcome.Kind),
			"error", outcome.Err)
	}
	return outcome
}

func (o *Orchestrator) execute(ctx context.Context, prompt, conversationID string, userCtx *UserContext) Outcome {
	threadID, err := o.resolver.Resolve(ctx, conversationID)
	if err != nil {
		return agentError(err)
	}
	o.logger.Info("using thread for conversation", "conversation_id", conversationID, "thread_id", threadID)

	contextual := augmentPrompt(prompt, userCtx)
	messageID, err := o.client.PostMessage(ctx, threadID, message.RoleUser, contextual)
	if err != nil {
		return agentError(err)
	}
	o.logger.Debug("user message posted", "thread_id", threadID, "message_id", messageID)

	if out, ok := o.executeRun(ctx, threadID); !ok {
		return out
	}

	return o.selectResponse(ctx, threadID)
}

// executeRun races the polled run against the configured wall-clock
// timeout. When the deadline fires first the in-flight run is abandoned:
// its context is cancelled best-effort and the orchestrator stops waiting.
func (o *Orchestrator) executeRun(ctx context.Context, threadID string) (Outcome, bool) {
	runCtx, cancel := context.WithTimeout(ctx, o.cfg.RunTimeout)
	defer cancel()

	type runResult struct {
		run *agent.Run
		err error
	}
	done := make(chan runResult, 1)
	go func() {
		run, err := o.client.RunAndPoll(runCtx, threadID, o.cfg.AgentID, agent.RunOptions{
			PollInterval: o.cfg.PollInterval,
		})
		done <- runResult{run: run, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			if errors.Is(res.err, context.DeadlineExceeded) || errors.Is(runCtx.Err(), context.DeadlineExceeded) {
				return timeoutError(o.timeoutErr()), false
			}
			return agentError(res.err), false
		}
		o.logger.Info("agent run completed", "run_id", res.run.ID, "status", string(res.run.Status))
		return Outcome{}, true

	case <-runCtx.Done():
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			o.logger.Warn("agent run abandoned on timeout", "thread_id", threadID)
			return timeoutError(o.timeoutErr()), false
		}
		return agentError(runCtx.Err()), false
	}
}

// selectResponse fetches the most recent page of messages (newest first)
// and selects the first assistant message carrying text. Remaining messages
// are still counted for diagnostics.
func (o *Orchestrator) selectResponse(ctx context.Context, threadID string) Outcome {
	var (
		text           string
		messageCount   int
		assistantCount int
	)

	for msg, err := range o.client.ListMessages(ctx, threadID, agent.ListOptions{Limit: o.cfg.MessageLimit}) {
		if err != nil {
			return agentError(err)
		}
		messageCount++
		o.logger.Debug("scanning message",
			"position", messageCount,
			"role", string(msg.Role),
			"message_id", msg.ID)

		if msg.Role != message.RoleAssistant || !msg.HasContent() {
			continue
		}
		assistantCount++
		if text == "" {
			text = msg.Text()
		}
	}

	o.logger.Info("message fetch summary",
		"thread_id", threadID,
		"total_messages", messageCount,
		"assistant_messages", assistantCount,
		"found_response", text != "")

	if text == "" {
		o.logger.Warn("no assistant response found", "thread_id", threadID)
		return noResponse()
	}
	return success(text)
}

func (o *Orchestrator) timeoutErr() error {
	return fmt.Errorf("%w after %ds", relayerr.ErrRunTimeout, int(o.cfg.RunTimeout.Seconds()))
}

// deriveConversationID picks the session key from the context: conversation
// id, else channel id, else the fixed default.
func deriveConversationID(userCtx *UserContext) string {
	if userCtx != nil {
		if userCtx.ConversationID != "" {
			return userCtx.ConversationID
		}
		if userCtx.ChannelID != "" {
			return userCtx.ChannelID
		}
	}
	return DefaultConversationID
}

// augmentPrompt prepends a bracketed context annotation when the sender is
// known. The annotation is opaque text for the agent's grounding, not
// structured metadata.
func augmentPrompt(prompt string, userCtx *UserContext) string {
	if userCtx == nil || userCtx.UserName == "" || userCtx.UserName == placeholderUserName {
		return prompt
	}
	if userCtx.IsGroupConversation {
		return fmt.Sprintf("[User: %s in group conversation] %s", userCtx.UserName, prompt)
	}
	return fmt.Sprintf("[User: %s in personal chat] %s", userCtx.UserName, prompt)
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

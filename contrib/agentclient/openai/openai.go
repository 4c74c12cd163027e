package openai

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hypersoc/relay/agent"
	"github.com/hypersoc/relay/identity"
	"github.com/hypersoc/relay/message"
)

// Config holds agent service connection configuration.
type Config struct {
	// Endpoint is the agent service base URL.
	Endpoint string
	// APIKey authenticates directly when set.
	APIKey string
	// Credential supplies bearer tokens when no API key is configured.
	Credential identity.CredentialProvider
}

// WithEndpoint sets the service endpoint.
func (cfg *Config) WithEndpoint(endpoint string) *Config {
	cfg.Endpoint = endpoint
	return cfg
}

// WithAPIKey sets the API key.
func (cfg *Config) WithAPIKey(apiKey string) *Config {
	cfg.APIKey = apiKey
	return cfg
}

// WithCredential sets the credential provider.
func (cfg *Config) WithCredential(cred identity.CredentialProvider) *Config {
	cfg.Credential = cred
	return cfg
}

// Client implements agent.Client against the thread/run API using the
// official SDK.
type Client struct {
	config *Config
	client openai.Client
}

// New creates a new adapter over the remote agent service.
func New(config *Config) *Client {
	options := []option.RequestOption{}
	if config.Endpoint != "" {
		options = append(options, option.WithBaseURL(config.Endpoint))
	}
	if config.APIKey != "" {
		options = append(options, option.WithAPIKey(config.APIKey))
	}
	if config.Credential != nil {
		cred := config.Credential
		options = append(options, option.WithMiddleware(func(req *http.Request, next option.MiddlewareNext) (*http.Response, error) {
			token, err := cred.Token(req.Context())
			if err != nil {
				return nil, fmt.Errorf("failed to acquire credential: %w", err)
			}
			req.Header.Set("Authorization", "Bearer "+token)
			return next(req)
		}))
	}

	return &Client{
		config: config,
		client: openai.NewClient(options...),
	}
}

// CreateThread implements agent.Client.
func (c *Client) CreateThread(ctx context.Context) (string, error) {
	thread, err := c.client.Beta.Threads.New(ctx, openai.BetaThreadNewParams{})
	if err != nil {
		return "", fmt.Errorf("failed to create thread: %w", err)
	}
	return thread.ID, nil
}

// PostMessage implements agent.Client.
func (c *Client) PostMessage(ctx context.Context, threadID string, role message.Role, text string) (string, error) {
	msgRole := openai.BetaThreadMessageNewParamsRoleUser
	if role == message.RoleAssistant {
		msgRole = openai.BetaThreadMessageNewParamsRoleAssistant
	}

	msg, err := c.client.Beta.Threads.Messages.New(ctx, threadID, openai.BetaThreadMessageNewParams{
		Role: msgRole,
		Content: openai.BetaThreadMessageNewParamsContentUnion{
			OfString: openai.String(text),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to post message: %w", err)
	}
	return msg.ID, nil
}

// RunAndPoll implements agent.Client. The SDK polls the run until it reaches
// a terminal status; ctx cancellation aborts the in-flight poll loop.
func (c *Client) RunAndPoll(ctx context.Context, threadID, agentID string, opts agent.RunOptions) (*agent.Run, error) {
	intervalMs := int(opts.Interval() / time.Millisecond)
	run, err := c.client.Beta.Threads.Runs.NewAndPoll(ctx, threadID, openai.BetaThreadRunNewParams{
		AssistantID: agentID,
	}, intervalMs)
	if err != nil {
		return nil, fmt.Errorf("agent run failed: %w", err)
	}
	return &agent.Run{
		ID:     run.ID,
		Status: agent.RunStatus(run.Status),
	}, nil
}

// ListMessages implements agent.Client. The service returns messages in
// reverse chronological order; one bounded page is fetched and yielded
// lazily.
func (c *Client) ListMessages(ctx context.Context, threadID string, opts agent.ListOptions) iter.Seq2[*message.ThreadMessage, error] {
	return func(yield func(*message.ThreadMessage, error) bool) {
		page, err := c.client.Beta.Threads.Messages.List(ctx, threadID, openai.BetaThreadMessageListParams{
			Limit: openai.Int(int64(opts.PageLimit())),
			Order: openai.BetaThreadMessageListParamsOrderDesc,
		})
		if err != nil {
			yield(nil, fmt.Errorf("failed to list messages: %w", err))
			return
		}
		for i := range page.Data {
			if !yield(decodeMessage(&page.Data[i]), nil) {
				return
			}
		}
	}
}

func decodeMessage(msg *openai.Message) *message.ThreadMessage {
	out := &message.ThreadMessage{
		ID:        msg.ID,
		Role:      message.Role(msg.Role),
		CreatedAt: time.Unix(msg.CreatedAt, 0),
	}
	for _, part := range msg.Content {
		switch part.Type {
		case "text":
			out.Content = append(out.Content, message.Content{
				Type: message.ContentTypeText,
				Text: part.Text.Value,
			})
		case "image_file":
			out.Content = append(out.Content, message.Content{
				Type: message.ContentTypeImage,
			})
		}
	}
	return out
}

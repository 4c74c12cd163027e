package orchestrator

import (
	"fmt"
	"strings"

	relayerr "github.com/hypersoc/relay/errors"
)

// Kind tags the outcome of one orchestration run. Callers at the chat
// boundary receive a rendered string either way; the tag keeps the failure
// taxonomy intact until that final step.
type Kind string

const (
	KindSuccess     Kind = "success"
	KindConfigError Kind = "config_error"
	KindTimeout     Kind = "timeout"
	KindNoResponse  Kind = "no_response"
	KindAgentError  Kind = "agent_error"
)

// Outcome is the normalized result of one orchestration run.
type Outcome struct {
	Kind Kind
	// Text is the assistant's reply on success.
	Text string
	// Err carries the underlying failure for timeout and agent errors.
	Err error
	// Problems lists missing settings for configuration errors.
	Problems []string
}

func success(text string) Outcome {
	return Outcome{Kind: KindSuccess, Text: text}
}

func configError(problems []string) Outcome {
	return Outcome{Kind: KindConfigError, Err: relayerr.ErrConfig, Problems: problems}
}

func timeoutError(err error) Outcome {
	return Outcome{Kind: KindTimeout, Err: err}
}

func noResponse() Outcome {
	return Outcome{Kind: KindNoResponse, Err: relayerr.ErrNoResponse}
}

func agentError(err error) Outcome {
	return Outcome{Kind: KindAgentError, Err: err}
}

// Render converts the outcome to the user-facing reply string. Every
// outcome renders; nothing escapes as an error to the chat caller.
func (o Outcome) Render() string {
	switch o.Kind {
	case KindSuccess:
		return o.Text
	case KindConfigError:
		return "Configuration error: " + strings.Join(o.Problems, ", ")
	case KindNoResponse:
		return "No assistant response found."
	case KindTimeout, KindAgentError:
		msg := "Unknown error"
		if o.Err != nil {
			msg = o.Err.Error()
		}
		return fmt.Sprintf("Agent error: %s", msg)
	default:
		return "Agent error: Unknown error"
	}
}

// OK reports whether the run produced an assistant reply.
func (o Outcome) OK() bool {
	return o.Kind == KindSuccess
}

package errors

import "errors"

// Sentinel errors for the relay's failure taxonomy
var (
	// ErrConfig indicates that required configuration is missing; nothing
	// is attempted against the agent service when this is returned
	ErrConfig = errors.New("configuration incomplete")

	// ErrRunTimeout indicates that an agent run exceeded its deadline.
	// The text is user-facing: the orchestrator renders it into the reply
	ErrRunTimeout = errors.New("Agent run timed out")

	// ErrNoResponse indicates that a run completed but produced no
	// assistant message
	ErrNoResponse = errors.New("no assistant response found")

	// ErrSessionNotFound indicates that no live session exists for a
	// conversation
	ErrSessionNotFound = errors.New("session not found")

	// ErrCredential indicates that the identity provider could not supply
	// a usable credential
	ErrCredential = errors.New("credential unavailable")
)

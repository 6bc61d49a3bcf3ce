// Package provider defines the uniform LLM back-end abstraction used by
// every role in the iteration controller (prompt-writer, SQL-writer, judge).
package provider

import "context"

// Role identifies which conversational part a Message plays.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a chat-style conversation.
type Message struct {
	Role    Role
	Content string
}

// Provider is the capability set every LLM back-end exposes. There is no
// shared base type across back-ends; each variant satisfies this interface
// directly (tagged-variant polymorphism, no inheritance).
type Provider interface {
	// IsAvailable reports whether credentials are present and the client
	// was constructed successfully.
	IsAvailable() bool

	// Name is a human-readable identifier including the model id, e.g.
	// "anthropic:claude-sonnet-4-5-20250929".
	Name() string

	// GenerateSQL produces a cleaned SQL statement for question, given the
	// schema document. When conversation is non-empty it is authoritative
	// (the controller always supplies it); otherwise a minimal legacy
	// prompt is synthesized from question and schemaDocs. Returns a non-nil
	// error on a failed call (HTTP timeout, HTTP error, malformed response);
	// an empty completion comes back as ("", nil). The controller treats
	// either as a failed per-attempt SQL-writer call.
	GenerateSQL(ctx context.Context, question, schemaDocs string, conversation []Message) (string, error)

	// GenerateText runs a free-form chat completion and returns raw text.
	GenerateText(ctx context.Context, messages []Message, temperature float64, maxTokens int) (string, error)
}

// Error is the sentinel error type every back-end wraps its failures in,
// so the controller can distinguish retryable provider failures from
// programmer/configuration errors without string-matching.
type Error struct {
	Code      string
	Message   string
	retryable bool
}

func NewError(code, message string, retryable bool) *Error {
	return &Error{Code: code, Message: message, retryable: retryable}
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// Retryable reports whether the controller should treat this failure as a
// transient, retry-worthy condition (HTTP timeout, rate limit, overload) as
// opposed to a permanent one (bad API key, malformed request).
func (e *Error) Retryable() bool {
	return e.retryable
}

package message

import "time"

// Role represents the role of the message sender
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ContentType identifies the kind of a message content segment.
type ContentType string

const (
	ContentTypeText  ContentType = "text"
	ContentTypeImage ContentType = "image_file"
)

// Content is one segment of a thread message. Agent replies can carry
// several segments; only text segments contribute to the relayed reply.
type Content struct {
	Type ContentType `json:"type"`
	Text string      `json:"text,omitempty"`
}

// ThreadMessage represents a single message on a remote agent thread.
type ThreadMessage struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   []Content `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Text joins all text-typed content segments with newlines. Non-text
// segments are skipped. Returns "" when the message carries no text.
func (m *ThreadMessage) Text() string {
	var out string
	for _, c := range m.Content {
		if c.Type != ContentTypeText || c.Text == "" {
			continue
		}
		if out != "" {
			out += "\n"
		}
		out += c.Text
	}
	return out
}

// HasContent reports whether the message carries any content segments.
func (m *ThreadMessage) HasContent() bool {
	return len(m.Content) > 0
}

// NewText builds a single-segment text message, mainly used by tests and
// fakes that simulate the agent service's feed.
func NewText(role Role, text string) *ThreadMessage {
	return &ThreadMessage{
		Role:      role,
		Content:   []Content{{Type: ContentTypeText, Text: text}},
		CreatedAt: time.Now(),
	}
}

// Clone creates a deep copy of the message.
func Clone(msg *ThreadMessage) *ThreadMessage {
	if msg == nil {
		return nil
	}
	cloned := *msg
	if msg.Content != nil {
		cloned.Content = make([]Content, len(msg.Content))
		copy(cloned.Content, msg.Content)
	}
	return &cloned
}

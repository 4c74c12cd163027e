package bot

import "strings"

// Activity types handled by the relay.
const (
	ActivityTypeMessage            = "message"
	ActivityTypeConversationUpdate = "conversationUpdate"
)

// conversation types as reported by the chat platform
const conversationTypePersonal = "personal"

// Account identifies a chat participant.
type Account struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Conversation identifies the conversation an activity belongs to.
type Conversation struct {
	ID               string `json:"id"`
	ConversationType string `json:"conversationType"`
}

// Mention is an entity attached to a message activity.
type Mention struct {
	Type      string   `json:"type"`
	Text      string   `json:"text"`
	Mentioned *Account `json:"mentioned,omitempty"`
}

// Activity is one inbound turn from the chat platform.
type Activity struct {
	Type         string        `json:"type"`
	Text         string        `json:"text"`
	From         *Account      `json:"from,omitempty"`
	Conversation *Conversation `json:"conversation,omitempty"`
	ChannelID    string        `json:"channelId"`
	Entities     []Mention     `json:"entities,omitempty"`
	MembersAdded []Account     `json:"membersAdded,omitempty"`
}

// Mentions returns the mention entities attached to the activity.
func (a *Activity) Mentions() []Mention {
	var mentions []Mention
	for _, e := range a.Entities {
		if e.Type == "mention" {
			mentions = append(mentions, e)
		}
	}
	return mentions
}

// StrippedText returns the activity text with bot mentions removed.
func (a *Activity) StrippedText() string {
	text := a.Text
	for _, m := range a.Mentions() {
		if m.Text != "" {
			text = strings.Replace(text, m.Text, "", 1)
		}
	}
	return strings.TrimSpace(text)
}

// IsGroup reports whether the activity arrived in a group or channel
// conversation rather than a personal chat.
func (a *Activity) IsGroup() bool {
	return a.Conversation == nil || a.Conversation.ConversationType != conversationTypePersonal
}

// Reply is the outbound message sent back on the conversation.
type Reply struct {
	Type     string    `json:"type"`
	Text     string    `json:"text"`
	Entities []Mention `json:"entities,omitempty"`
}

// NewReply builds a plain text reply.
func NewReply(text string) *Reply {
	return &Reply{Type: ActivityTypeMessage, Text: text}
}

// NewMentionReply builds a reply that mentions the user at its front.
func NewMentionReply(user Account, text string) *Reply {
	at := "<at>" + user.Name + "</at>"
	return &Reply{
		Type: ActivityTypeMessage,
		Text: at + " " + text,
		Entities: []Mention{{
			Type:      "mention",
			Text:      at,
			Mentioned: &Account{ID: user.ID, Name: user.Name},
		}},
	}
}

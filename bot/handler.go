package bot

import (
	"context"
	"log/slog"

	"github.com/hypersoc/relay/orchestrator"
	"github.com/hypersoc/relay/pkg/logging"
)

const (
	welcomeText = "Welcome to HyperSOC AI Assistant! I'm your intelligent security operations companion, powered by advanced AI agents that help analyze threats, investigate incidents, and provide security insights. Ask me anything about your security posture or threat landscape."

	helpText = "Hi! Please ask me a question about security operations and I'll help you with AI-powered insights."

	// sender name the platform uses when the real name is unknown
	placeholderUserName = "User"
)

// Runner handles one prompt and returns the reply text; satisfied by
// orchestrator.Orchestrator.
type Runner interface {
	Run(ctx context.Context, prompt string, userCtx *orchestrator.UserContext) string
}

// Handler turns inbound activities into agent prompts and formats the
// replies for the conversation they arrived on.
type Handler struct {
	runner Runner
	logger *slog.Logger
}

// NewHandler creates a turn handler over the given runner.
func NewHandler(runner Runner, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = logging.WithComponent("bot")
	}
	return &Handler{runner: runner, logger: logger}
}

// HandleTurn processes one activity and returns the reply to send, or nil
// when the activity warrants none.
func (h *Handler) HandleTurn(ctx context.Context, activity *Activity) *Reply {
	if activity == nil {
		return nil
	}

	switch activity.Type {
	case ActivityTypeConversationUpdate:
		if len(activity.MembersAdded) > 0 {
			return NewReply(welcomeText)
		}
		return nil
	case ActivityTypeMessage:
		return h.handleMessage(ctx, activity)
	default:
		return nil
	}
}

func (h *Handler) handleMessage(ctx context.Context, activity *Activity) *Reply {
	text := activity.StrippedText()
	user := Account{Name: placeholderUserName}
	if activity.From != nil {
		user = *activity.From
		if user.Name == "" {
			user.Name = placeholderUserName
		}
	}
	isGroup := activity.IsGroup()

	if text == "" {
		return h.reply(user, isGroup, helpText)
	}

	h.logger.Info("processing message",
		"user_name", user.Name,
		"is_group", isGroup,
		"chars", len(text))

	userCtx := &orchestrator.UserContext{
		ChannelID:           activity.ChannelID,
		UserID:              user.ID,
		UserName:            user.Name,
		IsGroupConversation: isGroup,
	}
	if activity.Conversation != nil {
		userCtx.ConversationID = activity.Conversation.ID
	}

	response := h.runner.Run(ctx, text, userCtx)
	return h.reply(user, isGroup, response)
}

// reply mentions the user in group conversations; personal chats get the
// bare text.
func (h *Handler) reply(user Account, isGroup bool, text string) *Reply {
	if isGroup && user.ID != "" && user.Name != placeholderUserName {
		return NewMentionReply(user, text)
	}
	return NewReply(text)
}

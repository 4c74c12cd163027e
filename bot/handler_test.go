package bot

import (
	"context"
	"strings"
	"testing"

	"github.com/hypersoc/relay/orchestrator"
)

// fakeRunner records the prompt and context it was handed.
type fakeRunner struct {
	calls    int
	prompt   string
	userCtx  *orchestrator.UserContext
	response string
}

func (f *fakeRunner) Run(ctx context.Context, prompt string, userCtx *orchestrator.UserContext) string {
	f.calls++
	f.prompt = prompt
	f.userCtx = userCtx
	return f.response
}

func messageActivity(text string) *Activity {
	return &Activity{
		Type:         ActivityTypeMessage,
		Text:         text,
		ChannelID:    "msteams",
		From:         &Account{ID: "user-1", Name: "Dana"},
		Conversation: &Conversation{ID: "conv-1", ConversationType: "personal"},
	}
}

func TestHandleTurnWelcomesNewMembers(t *testing.T) {
	handler := NewHandler(&fakeRunner{}, nil)

	reply := handler.HandleTurn(context.Background(), &Activity{
		Type:         ActivityTypeConversationUpdate,
		MembersAdded: []Account{{ID: "user-1", Name: "Dana"}},
	})
	if reply == nil {
		t.Fatal("Expected a welcome reply")
	}
	if !strings.Contains(reply.Text, "Welcome") {
		t.Errorf("Expected welcome text, got %q", reply.Text)
	}
}

func TestHandleTurnIgnoresOtherUpdates(t *testing.T) {
	handler := NewHandler(&fakeRunner{}, nil)

	if reply := handler.HandleTurn(context.Background(), &Activity{Type: ActivityTypeConversationUpdate}); reply != nil {
		t.Errorf("Expected no reply for member-less update, got %q", reply.Text)
	}
	if reply := handler.HandleTurn(context.Background(), &Activity{Type: "typing"}); reply != nil {
		t.Errorf("Expected no reply for unhandled activity type, got %q", reply.Text)
	}
}

func TestHandleTurnStripsMentions(t *testing.T) {
	runner := &fakeRunner{response: "ok"}
	handler := NewHandler(runner, nil)

	activity := messageActivity("<at>SOC Bot</at> what changed overnight?")
	activity.Entities = []Mention{{Type: "mention", Text: "<at>SOC Bot</at>"}}

	handler.HandleTurn(context.Background(), activity)
	if runner.prompt != "what changed overnight?" {
		t.Errorf("Expected mention stripped from prompt, got %q", runner.prompt)
	}
}

func TestHandleTurnBuildsUserContext(t *testing.T) {
	runner := &fakeRunner{response: "ok"}
	handler := NewHandler(runner, nil)

	activity := messageActivity("status?")
	activity.Conversation.ConversationType = "channel"
	handler.HandleTurn(context.Background(), activity)

	if runner.userCtx == nil {
		t.Fatal("Expected user context to be passed to the runner")
	}
	if runner.userCtx.ConversationID != "conv-1" {
		t.Errorf("Expected conversation id conv-1, got %q", runner.userCtx.ConversationID)
	}
	if runner.userCtx.UserName != "Dana" {
		t.Errorf("Expected user name Dana, got %q", runner.userCtx.UserName)
	}
	if !runner.userCtx.IsGroupConversation {
		t.Errorf("Expected channel conversation to be marked as group")
	}
}

func TestHandleTurnMentionsUserInGroupReply(t *testing.T) {
	runner := &fakeRunner{response: "all clear"}
	handler := NewHandler(runner, nil)

	activity := messageActivity("status?")
	activity.Conversation.ConversationType = "groupChat"
	reply := handler.HandleTurn(context.Background(), activity)

	if reply == nil {
		t.Fatal("Expected a reply")
	}
	if !strings.HasPrefix(reply.Text, "<at>Dana</at> ") {
		t.Errorf("Expected mention prefix in group reply, got %q", reply.Text)
	}
	if len(reply.Entities) != 1 || reply.Entities[0].Mentioned == nil || reply.Entities[0].Mentioned.ID != "user-1" {
		t.Errorf("Expected mention entity for user-1, got %+v", reply.Entities)
	}
}

func TestHandleTurnPersonalReplyHasNoMention(t *testing.T) {
	runner := &fakeRunner{response: "all clear"}
	handler := NewHandler(runner, nil)

	reply := handler.HandleTurn(context.Background(), messageActivity("status?"))
	if reply == nil {
		t.Fatal("Expected a reply")
	}
	if reply.Text != "all clear" {
		t.Errorf("Expected bare response in personal chat, got %q", reply.Text)
	}
	if len(reply.Entities) != 0 {
		t.Errorf("Expected no mention entities, got %+v", reply.Entities)
	}
}

func TestHandleTurnHelpsOnEmptyPrompt(t *testing.T) {
	runner := &fakeRunner{}
	handler := NewHandler(runner, nil)

	reply := handler.HandleTurn(context.Background(), messageActivity("   "))
	if reply == nil {
		t.Fatal("Expected a help reply")
	}
	if !strings.Contains(reply.Text, "ask me a question") {
		t.Errorf("Expected help text, got %q", reply.Text)
	}
	if runner.calls != 0 {
		t.Errorf("Expected no agent call for empty prompt, got %d", runner.calls)
	}
}

package server

import (
	"context"
	"encoding/json"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hypersoc/relay/agent"
	"github.com/hypersoc/relay/bot"
	"github.com/hypersoc/relay/config"
	"github.com/hypersoc/relay/message"
	"github.com/hypersoc/relay/orchestrator"
	"github.com/hypersoc/relay/session"
	"github.com/hypersoc/relay/session/store"
)

// fakeAgent answers every prompt with a fixed assistant message.
type fakeAgent struct {
	response string
}

func (f *fakeAgent) CreateThread(ctx context.Context) (string, error) {
	return "thread-1", nil
}

func (f *fakeAgent) PostMessage(ctx context.Context, threadID string, role message.Role, text string) (string, error) {
	return "msg-1", nil
}

func (f *fakeAgent) RunAndPoll(ctx context.Context, threadID, agentID string, opts agent.RunOptions) (*agent.Run, error) {
	return &agent.Run{ID: "run-1", Status: agent.RunStatusCompleted}, nil
}

func (f *fakeAgent) ListMessages(ctx context.Context, threadID string, opts agent.ListOptions) iter.Seq2[*message.ThreadMessage, error] {
	return func(yield func(*message.ThreadMessage, error) bool) {
		yield(message.NewText(message.RoleAssistant, f.response), nil)
	}
}

func testServer(cfg *config.Config) *Server {
	client := &fakeAgent{response: "all clear"}
	resolver := session.NewResolver(client, session.WithStore(store.NewInMemoryStore()))
	orch := orchestrator.New(cfg, client, resolver)
	handler := bot.NewHandler(orch, nil)
	return New(cfg, orch, handler, nil, resolver, nil)
}

func testConfig() *config.Config {
	return &config.Config{
		AgentEndpoint: "https://agents.example.com",
		AgentID:       "asst_0123456789",
		ClientID:      "11111111-2222-3333-4444-555555555555",
		RunTimeout:    time.Second,
		PollInterval:  time.Millisecond,
		MessageLimit:  5,
	}
}

func TestHealthEndpoint(t *testing.T) {
	router := testServer(testConfig()).Routes()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("Expected ok status, got %v", body["status"])
	}
}

func TestHealthReportsDegradedConfig(t *testing.T) {
	cfg := testConfig()
	cfg.AgentID = ""
	router := testServer(cfg).Routes()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var body map[string]any
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["status"] != "degraded" {
		t.Errorf("Expected degraded status, got %v", body["status"])
	}
	issues, _ := body["config_issues"].([]any)
	if len(issues) != 1 || issues[0] != "AGENT_ID missing" {
		t.Errorf("Expected AGENT_ID issue, got %v", body["config_issues"])
	}
}

func TestDiagnosticsRedactsSecrets(t *testing.T) {
	router := testServer(testConfig()).Routes()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/diagnostics", nil))

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	agentID, _ := body["agent_id"].(string)
	if !strings.Contains(agentID, "***") {
		t.Errorf("Expected redacted agent id, got %q", agentID)
	}
	if strings.Contains(agentID, "asst_0123456789") {
		t.Errorf("Expected agent id to be obscured, got %q", agentID)
	}
}

func TestMessagesEndpointRepliesToPrompt(t *testing.T) {
	router := testServer(testConfig()).Routes()

	activity := `{"type":"message","text":"status?","channelId":"msteams",` +
		`"from":{"id":"user-1","name":"Dana"},` +
		`"conversation":{"id":"conv-1","conversationType":"personal"}}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/messages", strings.NewReader(activity)))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var reply bot.Reply
	if err := json.Unmarshal(rec.Body.Bytes(), &reply); err != nil {
		t.Fatalf("Failed to decode reply: %v", err)
	}
	if reply.Text != "all clear" {
		t.Errorf("Expected agent response, got %q", reply.Text)
	}
}

func TestMessagesEndpointNoContentForUnhandledActivity(t *testing.T) {
	router := testServer(testConfig()).Routes()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/messages", strings.NewReader(`{"type":"typing"}`)))

	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204 for unhandled activity, got %d", rec.Code)
	}
}

func TestMessagesEndpointRejectsBadPayload(t *testing.T) {
	router := testServer(testConfig()).Routes()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/messages", strings.NewReader("{not json")))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed payload, got %d", rec.Code)
	}
}

func TestNotificationEndpointWithoutNotifier(t *testing.T) {
	router := testServer(testConfig()).Routes()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/notifications", strings.NewReader(`{"prompt":"incident summary"}`)))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var body notificationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if body.Response != "all clear" {
		t.Errorf("Expected agent response, got %q", body.Response)
	}
	if body.Delivered != 0 {
		t.Errorf("Expected zero deliveries without a notifier, got %d", body.Delivered)
	}
}

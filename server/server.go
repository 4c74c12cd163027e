package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hypersoc/relay/bot"
	"github.com/hypersoc/relay/config"
	"github.com/hypersoc/relay/notify"
	"github.com/hypersoc/relay/orchestrator"
	"github.com/hypersoc/relay/pkg/logging"
	"github.com/hypersoc/relay/session"
)

// Server exposes the relay's trigger surface: bot turns, notification
// triggers, health and diagnostics.
type Server struct {
	cfg      *config.Config
	orch     *orchestrator.Orchestrator
	handler  *bot.Handler
	notifier *notify.Notifier
	resolver *session.Resolver
	logger   *slog.Logger
	started  time.Time
}

// New creates the HTTP server over the relay's components. The notifier may
// be nil when no installation source is configured; the notification
// trigger then returns the agent response without fan-out.
func New(
	cfg *config.Config,
	orch *orchestrator.Orchestrator,
	handler *bot.Handler,
	notifier *notify.Notifier,
	resolver *session.Resolver,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = logging.WithComponent("server")
	}
	return &Server{
		cfg:      cfg,
		orch:     orch,
		handler:  handler,
		notifier: notifier,
		resolver: resolver,
		logger:   logger,
		started:  time.Now(),
	}
}

// Routes builds the chi router for the trigger surface.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/api/messages", s.handleMessages)
	r.Post("/api/notifications", s.handleNotification)
	r.Get("/healthz", s.handleHealth)
	r.Get("/api/diagnostics", s.handleDiagnostics)

	return r
}

// handleMessages receives one chat activity and returns the bot's reply.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	var activity bot.Activity
	if err := json.NewDecoder(r.Body).Decode(&activity); err != nil {
		s.logger.Error("failed to decode activity", "error", err)
		http.Error(w, "invalid activity payload", http.StatusBadRequest)
		return
	}

	s.logger.Info("incoming activity",
		"type", activity.Type,
		"channel_id", activity.ChannelID,
		"has_text", activity.Text != "")

	reply := s.handler.HandleTurn(r.Context(), &activity)
	if reply == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.writeJSON(w, http.StatusOK, reply)
}

type notificationRequest struct {
	Prompt string `json:"prompt"`
}

type notificationResponse struct {
	Response  string `json:"response"`
	Delivered int    `json:"delivered"`
}

// handleNotification runs the prompt through the agent and fans the
// response out to all installed targets.
func (s *Server) handleNotification(w http.ResponseWriter, r *http.Request) {
	var req notificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid notification payload", http.StatusBadRequest)
		return
	}

	response := s.orch.Run(r.Context(), req.Prompt, nil)

	delivered := 0
	if s.notifier != nil {
		var err error
		delivered, err = s.notifier.Broadcast(r.Context(), notify.NewPayload(response))
		if err != nil {
			s.logger.Error("broadcast finished with errors", "error", err, "delivered", delivered)
		}
	}

	s.writeJSON(w, http.StatusOK, notificationResponse{
		Response:  response,
		Delivered: delivered,
	})
}

// handleHealth reports process liveness and configuration presence.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	problems := s.cfg.Problems()
	if len(problems) > 0 {
		status = "degraded"
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":         status,
		"uptime_seconds": int(time.Since(s.started).Seconds()),
		"config_issues":  problems,
	})
}

// handleDiagnostics echoes redacted configuration and session counts.
func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	sessionCount := 0
	if s.resolver != nil {
		if count, err := s.resolver.Count(r.Context()); err == nil {
			sessionCount = count
		} else {
			s.logger.Error("failed to count sessions", "error", err)
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"agent_endpoint": s.cfg.AgentEndpoint,
		"agent_id":       config.Redact(s.cfg.AgentID),
		"client_id":      config.Redact(s.cfg.ClientID),
		"session_count":  sessionCount,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

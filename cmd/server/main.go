package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hypersoc/relay/bot"
	"github.com/hypersoc/relay/config"
	openaiclient "github.com/hypersoc/relay/contrib/agentclient/openai"
	"github.com/hypersoc/relay/identity"
	"github.com/hypersoc/relay/notify"
	"github.com/hypersoc/relay/orchestrator"
	"github.com/hypersoc/relay/pkg/logging"
	"github.com/hypersoc/relay/pkg/telemetry"
	"github.com/hypersoc/relay/server"
	"github.com/hypersoc/relay/session"
	"github.com/hypersoc/relay/session/store"
)

// Version is injected at build time
var Version = "dev"

func main() {
	cfg := config.Load()
	log := logging.WithComponent("main")

	if problems := cfg.Problems(); len(problems) > 0 {
		// The service still starts so health and diagnostics can report the
		// missing settings; prompts will return configuration errors.
		log.Warn("starting with incomplete agent configuration", "problems", problems)
	}

	ctx := context.Background()
	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    "hypersoc-relay",
		ServiceVersion: Version,
		Disable:        cfg.TelemetryDisabled,
	})
	if err != nil {
		log.Error("failed to initialise telemetry", "error", err)
		os.Exit(1)
	}
	defer shutdownTelemetry(context.Background())

	clientCfg := &openaiclient.Config{
		Endpoint: cfg.AgentEndpoint,
		APIKey:   cfg.APIKey,
	}
	if cfg.APIKey == "" && cfg.ClientID != "" {
		clientCfg.Credential = identity.NewManagedIdentity(cfg.ClientID)
	}
	client := openaiclient.New(clientCfg)

	var sessions session.Store
	if cfg.RedisAddr != "" {
		redisStore := store.NewRedisStore(&store.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.SessionWindow,
		})
		defer redisStore.Close()
		sessions = redisStore
		log.Info("using redis session store", "addr", cfg.RedisAddr)
	} else {
		sessions = store.NewInMemoryStore()
		log.Info("using in-memory session store")
	}

	resolver := session.NewResolver(client,
		session.WithStore(sessions),
		session.WithExpiryWindow(cfg.SessionWindow),
	)

	orch := orchestrator.New(cfg, client, resolver)
	handler := bot.NewHandler(orch, nil)

	// No installation source is wired by default; the notification trigger
	// still answers with the agent response.
	var notifier *notify.Notifier

	srv := server.New(cfg, orch, handler, notifier, resolver, nil)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("relay listening", "addr", cfg.HTTPAddr, "version", Version)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		log.Error("http server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "error", err)
	}
}

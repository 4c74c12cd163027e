package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the relay's runtime configuration, loaded from the
// environment. The agent settings are presence-checked by the orchestrator
// before any network call; nothing beyond non-emptiness is verified.
type Config struct {
	// AgentEndpoint is the remote agent service base URL.
	AgentEndpoint string
	// AgentID identifies the agent to run against each thread.
	AgentID string
	// ClientID is the user-assigned managed identity used to authenticate.
	ClientID string
	// APIKey, when set, authenticates directly instead of the managed
	// identity flow.
	APIKey string

	// HTTPAddr is the listen address for the trigger surface.
	HTTPAddr string
	// RunTimeout bounds the wall-clock duration of one agent run.
	RunTimeout time.Duration
	// PollInterval is the run status polling cadence.
	PollInterval time.Duration
	// SessionWindow is how long a session stays live without reuse.
	SessionWindow time.Duration
	// MessageLimit bounds the page of recent messages fetched after a run.
	MessageLimit int

	// RedisAddr enables the Redis session backend when non-empty.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// TelemetryDisabled turns off trace exporting.
	TelemetryDisabled bool
}

// Load reads configuration from the environment, after loading a .env file
// when one is present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		AgentEndpoint: os.Getenv("AGENT_ENDPOINT"),
		AgentID:       os.Getenv("AGENT_ID"),
		ClientID:      os.Getenv("CLIENT_ID"),
		APIKey:        os.Getenv("AGENT_API_KEY"),

		HTTPAddr:      envString("RELAY_HTTP_ADDR", ":8080"),
		RunTimeout:    envDuration("RELAY_RUN_TIMEOUT", 120*time.Second),
		PollInterval:  envDuration("RELAY_POLL_INTERVAL", 1500*time.Millisecond),
		SessionWindow: envDuration("RELAY_SESSION_WINDOW", 30*time.Minute),
		MessageLimit:  envInt("RELAY_MESSAGE_LIMIT", 5),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),

		TelemetryDisabled: envBool("RELAY_TELEMETRY_DISABLED", false),
	}
}

// Problems returns the list of missing required agent settings. An empty
// list means the orchestrator may proceed; anything else is a configuration
// error reported without attempting a network call.
func (c *Config) Problems() []string {
	var problems []string
	if c.AgentEndpoint == "" {
		problems = append(problems, "AGENT_ENDPOINT missing")
	}
	if c.AgentID == "" {
		problems = append(problems, "AGENT_ID missing")
	}
	if c.ClientID == "" && c.APIKey == "" {
		problems = append(problems, "CLIENT_ID missing")
	}
	return problems
}

// Validate checks the full configuration at startup.
func (c *Config) Validate() error {
	v := NewValidator()
	v.RequireNonEmpty("AGENT_ENDPOINT", c.AgentEndpoint)
	v.RequireNonEmpty("AGENT_ID", c.AgentID)
	v.RequirePositive("RELAY_MESSAGE_LIMIT", c.MessageLimit)
	if c.RunTimeout <= 0 {
		v.RequirePositive("RELAY_RUN_TIMEOUT", int(c.RunTimeout))
	}
	if c.RedisAddr != "" {
		v.ValidateDBNumber("REDIS_DB", c.RedisDB)
	}
	return v.Error()
}

// Redact obscures a secret for diagnostics output, keeping the first and
// last four characters of values long enough to show safely.
func Redact(value string) string {
	if value == "" {
		return "<empty>"
	}
	if len(value) <= 8 {
		return "***"
	}
	return value[:4] + "***" + value[len(value)-4:]
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// Package config parses and validates the executor's startup configuration:
// CLI flags with uppercased environment variable fallbacks, grounded on the
// teacher's cmd/tarsy/main.go getEnv helper. This package does not read a
// .env file itself; cmd/executor loads one via github.com/joho/godotenv
// before calling Parse.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
)

// Mode selects whether the executor accepts direct client connections
// (standalone) or initiates a persistent connection to an orchestrator
// (managed).
type Mode string

const (
	ModeStandalone Mode = "standalone"
	ModeManaged    Mode = "managed"
)

var (
	ErrInvalidMode             = errors.New(`mode must be "standalone" or "managed"`)
	ErrMissingOrchestratorURL  = errors.New("managed mode requires --orchestrator-url (or ORCHESTRATOR_URL)")
	ErrMissingSharedSecret     = errors.New("managed mode requires --api-key (or API_KEY)")
	ErrInvalidMemoryLimit      = errors.New("--max-memory must be >= 1 when set")
)

// Config is the executor's validated startup configuration.
type Config struct {
	BindAddress     string
	Mode            Mode
	OrchestratorURL string
	SharedSecret    string
	MaxMemoryGB     int
	ExecutorID      string
	LogLevel        string
}

// Validate enforces spec.md §6.3/§4.8's mode-conditional requirements.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeStandalone, ModeManaged:
	default:
		return ErrInvalidMode
	}
	if c.Mode == ModeManaged {
		if c.OrchestratorURL == "" {
			return ErrMissingOrchestratorURL
		}
		if c.SharedSecret == "" {
			return ErrMissingSharedSecret
		}
	}
	if c.MaxMemoryGB != 0 && c.MaxMemoryGB < 1 {
		return ErrInvalidMemoryLimit
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}

// Parse builds a Config from CLI flags (args excludes the program name,
// i.e. os.Args[1:]), falling back to uppercased environment variables for
// every flag's default. Call godotenv.Load beforehand if local overrides
// from a .env file should participate in those defaults.
func Parse(args []string) (Config, error) {
	fs := flag.NewFlagSet("aqueducts-executor", flag.ContinueOnError)

	bindAddress := fs.String("bind-address", getEnv("BIND_ADDRESS", "0.0.0.0:3031"), "address the standalone HTTP/WebSocket server binds to")
	mode := fs.String("mode", getEnv("MODE", string(ModeStandalone)), `"standalone" or "managed"`)
	orchestratorURL := fs.String("orchestrator-url", getEnv("ORCHESTRATOR_URL", ""), "orchestrator WebSocket URL (managed mode)")
	apiKey := fs.String("api-key", getEnv("API_KEY", ""), "shared secret required of inbound connections, and sent to the orchestrator in managed mode")
	maxMemory := fs.Int("max-memory", getEnvInt("MAX_MEMORY", 0), "memory cap in GB, validated to be >= 1 when set; 0 means unset. The value is not applied to the query engine")
	executorID := fs.String("executor-id", getEnv("EXECUTOR_ID", ""), "identifier this executor presents to the orchestrator (managed mode)")
	logLevel := fs.String("log-level", getEnv("LOG_LEVEL", "info"), "slog level: debug, info, warn, error")

	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("parse flags: %w", err)
	}

	cfg := Config{
		BindAddress:     *bindAddress,
		Mode:            Mode(*mode),
		OrchestratorURL: *orchestratorURL,
		SharedSecret:    *apiKey,
		MaxMemoryGB:     *maxMemory,
		ExecutorID:      *executorID,
		LogLevel:        *logLevel,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

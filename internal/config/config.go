// Package config loads process configuration from .env, flags, and
// environment variables, with environment variables taking precedence.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

const (
	defaultPort               = 3001
	defaultAuditRetentionDays = 30
)

// Config is the process-wide value struct every worker and the
// coordinator load at startup.
type Config struct {
	Port               int
	LLMAPIKey          string
	WorkspaceRoot      string
	AuditRetentionDays int
	TestMode           bool
	S3                 S3Config
	PostgresDSN        string
}

// S3Config mirrors artifact.S3Config's fields, loaded independently so
// internal/config has no dependency on internal/artifact.
type S3Config struct {
	Enabled   bool
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

var (
	portFlag     *int
	registerOnce sync.Once
)

// registerFlags registers -port exactly once per process, since the
// standard flag package panics on a redefinition; this keeps Load safe
// to call repeatedly (tests, or a second worker in the same process).
func registerFlags() {
	registerOnce.Do(func() {
		portFlag = flag.Int("port", 0, "worker listen port")
	})
}

// Load reads .env (if present), then flags, then environment variables.
// production == true makes a missing LLM_API_KEY a fail-fast
// ConfigurationError.
func Load(production bool) (*Config, error) {
	_ = godotenv.Load()

	registerFlags()
	if !flag.Parsed() {
		flag.Parse()
	}

	port := envInt("PORT", 0)
	if port == 0 {
		port = *portFlag
	}
	if port == 0 {
		port = defaultPort
	}

	apiKey := strings.TrimSpace(os.Getenv("LLM_API_KEY"))
	if apiKey == "" && production {
		return nil, &ConfigurationError{Reason: "LLM_API_KEY is required in production"}
	}

	workspaceRoot := strings.TrimSpace(os.Getenv("WORKSPACE_ROOT"))
	if workspaceRoot == "" {
		workspaceRoot = os.TempDir()
	}

	return &Config{
		Port:               port,
		LLMAPIKey:          apiKey,
		WorkspaceRoot:      workspaceRoot,
		AuditRetentionDays: envInt("AUDIT_RETENTION_DAYS", defaultAuditRetentionDays),
		TestMode:           envBool("CLONE_TEST_MODE", apiKey == ""),
		S3:                 loadS3Config(),
		PostgresDSN:        strings.TrimSpace(os.Getenv("POSTGRES_DSN")),
	}, nil
}

func loadS3Config() S3Config {
	endpoint := strings.TrimSpace(os.Getenv("ARTIFACT_S3_ENDPOINT"))
	return S3Config{
		Enabled:   endpoint != "",
		Endpoint:  endpoint,
		Region:    firstNonEmpty(os.Getenv("ARTIFACT_S3_REGION"), "us-east-1"),
		AccessKey: strings.TrimSpace(os.Getenv("ARTIFACT_S3_ACCESS_KEY")),
		SecretKey: strings.TrimSpace(os.Getenv("ARTIFACT_S3_SECRET_KEY")),
		Bucket:    firstNonEmpty(os.Getenv("ARTIFACT_S3_BUCKET"), "cloneforge-artifacts"),
		UseSSL:    envBool("ARTIFACT_S3_USE_SSL", true),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func envInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}

// ConfigurationError is a fail-fast startup error.
type ConfigurationError struct{ Reason string }

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config: %s", e.Reason)
}

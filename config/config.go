// Package config provides configuration management for the chat relay.
// It covers the HTTP listener, the upstream completion service, CORS,
// circuit breaking, metrics and logging, loaded from YAML with environment
// variable expansion and validated with struct tags.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete relay configuration.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	LLM            LLMConfig            `yaml:"llm"`
	CORS           CORSConfig           `yaml:"cors"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	Metrics        MetricsConfig        `yaml:"metrics"`
	Logging        LoggingConfig        `yaml:"logging"`
}

// ServerConfig holds server-specific configuration for the HTTP server.
// It defines timeouts, limits, and operational parameters.
type ServerConfig struct {
	// Port specifies the HTTP server port (default: 8080)
	Port int `yaml:"port" validate:"gte=0,lte=65535"`

	// Path is where the chat endpoint is mounted (default: /api/chat)
	Path string `yaml:"path" validate:"required,startswith=/"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body (default: 30s)
	ReadTimeout time.Duration `yaml:"read_timeout" validate:"gte=0"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. It must outlast the completion call (default: 120s)
	WriteTimeout time.Duration `yaml:"write_timeout" validate:"gte=0"`

	// MaxHeaderBytes controls the maximum number of bytes the server will
	// read parsing the request header's keys and values (default: 1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes" validate:"gte=0"`

	// MaxBodyBytes caps the request body read by the chat endpoint. An
	// oversized body fails like any other unreadable body (default: 6MB)
	MaxBodyBytes int64 `yaml:"max_body_bytes" validate:"gte=0"`

	// ShutdownTimeout specifies how long to wait for the server to shutdown
	// gracefully before forcing termination (default: 30s)
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gte=0"`
}

// LLMConfig describes the upstream chat-completion service and the fixed
// generation parameters sent with every call.
type LLMConfig struct {
	// Provider selects the client implementation: "openai" speaks the chat
	// completions wire format directly, "gemini" uses the Gemini API and
	// "gollm" delegates to any backend gollm supports.
	Provider string `yaml:"provider" validate:"required,oneof=openai gemini gollm"`

	// Backend is the gollm provider name (e.g. "openai", "anthropic",
	// "ollama"). Only used when Provider is "gollm".
	Backend string `yaml:"backend" validate:"required_if=Provider gollm"`

	// Model is the model identifier sent upstream (default: gpt-4o)
	Model string `yaml:"model" validate:"required"`

	// Endpoint is the base URL of an OpenAI-compatible API
	// (default: https://api.openai.com/v1)
	Endpoint string `yaml:"endpoint" validate:"omitempty,url"`

	// APIKey is a literal credential. Prefer APIKeyEnv so the key is read
	// from the environment on every call.
	APIKey string `yaml:"api_key"`

	// APIKeyEnv names the environment variable holding the credential
	// (default: OPENAI_API_KEY)
	APIKeyEnv string `yaml:"api_key_env"`

	// Temperature is the sampling temperature (default: 0.8)
	Temperature float64 `yaml:"temperature" validate:"gte=0,lte=2"`

	// MaxTokens caps the generated reply length (default: 500)
	MaxTokens int `yaml:"max_tokens" validate:"gt=0"`

	// Timeout bounds a single completion call. Zero waits for as long as
	// the upstream and the hosting platform allow.
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`

	// CountTokens enables prompt token accounting with tiktoken.
	CountTokens bool `yaml:"count_tokens"`
}

// CORSConfig holds the cross-origin headers sent by the chat endpoint.
type CORSConfig struct {
	AllowOrigin  string `yaml:"allow_origin" validate:"required"`
	AllowHeaders string `yaml:"allow_headers"`
	AllowMethods string `yaml:"allow_methods"`

	// OnMethodNotAllowed adds Access-Control-Allow-Origin to 405 responses.
	// Off by default: the endpoint has always answered 405 without it.
	OnMethodNotAllowed bool `yaml:"on_method_not_allowed"`
}

// CircuitBreakerConfig configures the optional breaker around the
// completion call. A tripped breaker fails fast through the usual 500 path.
type CircuitBreakerConfig struct {
	Enabled bool `yaml:"enabled"`

	// MaxRequests is maximum number of requests allowed to pass through when in half-open state
	MaxRequests uint32 `yaml:"max_requests"`

	// Interval is the cyclic period of the closed state for the circuit breaker
	Interval time.Duration `yaml:"interval" validate:"gte=0"`

	// Timeout is the period of the open state until it becomes half-open
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`

	// FailureThreshold is the number of consecutive failures needed to trip the circuit
	FailureThreshold uint32 `yaml:"failure_threshold" validate:"required_if=Enabled true"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path" validate:"omitempty,startswith=/"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	// Level sets logging verbosity: debug, info, warn, error
	Level string `yaml:"level" validate:"oneof=debug info warn error"`

	// Format specifies log output format: json or text
	Format string `yaml:"format" validate:"oneof=json text"`
}

// DefaultConfig returns the configuration the endpoint runs with when no
// file overrides it.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			Path:            "/api/chat",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			MaxHeaderBytes:  1 << 20,
			MaxBodyBytes:    6 << 20,
			ShutdownTimeout: 30 * time.Second,
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o",
			Endpoint:    "https://api.openai.com/v1",
			APIKeyEnv:   "OPENAI_API_KEY",
			Temperature: 0.8,
			MaxTokens:   500,
		},
		CORS: CORSConfig{
			AllowOrigin:  "*",
			AllowHeaders: "Content-Type",
			AllowMethods: "POST, OPTIONS",
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:          false,
			MaxRequests:      1,
			Interval:         60 * time.Second,
			Timeout:          30 * time.Second,
			FailureThreshold: 5,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadDotEnv loads a .env file into the process environment if one exists.
// Variables that are already set win over the file.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// LoadFile loads configuration from a YAML file
func LoadFile(filename string) (*Config, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// expandEnvVars resolves ${VAR} and ${VAR:-default} references. Unset
// variables without a default expand to the empty string.
func expandEnvVars(s string) (string, error) {
	if strings.Count(s, "${") > strings.Count(s, "}") {
		return "", fmt.Errorf("unterminated variable reference")
	}

	return os.Expand(s, func(key string) string {
		if i := strings.Index(key, ":-"); i >= 0 {
			if val := os.Getenv(key[:i]); val != "" {
				return val
			}
			return key[i+2:]
		}
		return os.Getenv(key)
	}), nil
}

// Load loads configuration from an io.Reader
func Load(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expandedData, err := expandEnvVars(string(data))
	if err != nil {
		return nil, fmt.Errorf("expand environment variables: %w", err)
	}

	// Start with defaults
	config := DefaultConfig()

	// An empty document keeps every default
	if strings.TrimSpace(expandedData) != "" {
		if err := yaml.Unmarshal([]byte(expandedData), config); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return config, nil
}

// HealthPath is where the liveness endpoint is mounted.
const HealthPath = "/health"

var validate = validator.New()

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid %s: %q fails %q", fe.Namespace(), fmt.Sprint(fe.Value()), fe.Tag())
		}
		return err
	}

	if c.LLM.APIKey == "" && c.LLM.APIKeyEnv == "" && c.LLM.Provider != "gollm" {
		return fmt.Errorf("one of llm.api_key or llm.api_key_env is required")
	}

	if c.Server.Path == HealthPath {
		return fmt.Errorf("server.path %s is reserved for health checks", HealthPath)
	}

	if c.Metrics.Enabled && c.Metrics.Path == "" {
		return fmt.Errorf("metrics enabled but metrics.path is empty")
	}
	if c.Metrics.Enabled && c.Metrics.Path == c.Server.Path {
		return fmt.Errorf("metrics path %s collides with the chat path", c.Metrics.Path)
	}

	return nil
}

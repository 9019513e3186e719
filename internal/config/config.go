// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. A .env file in the working directory
//  3. Default values (sensible defaults for quick start)
//
// Everything is keyed by the environment variable names, so a .env entry and
// a real environment variable for the same setting always agree. Loading
// never writes to the process environment.
//
// Security: the OpenAI and Context7 API keys are never logged raw; see
// MarshalJSON and maskSecret.
//
// Error Handling:
//   - Uses sentinel errors for Go-idiomatic error checking with errors.Is()
//   - Wrap with context using fmt.Errorf("%w: details", ErrXxx)
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates the OpenAI API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidBaseURL indicates the OpenAI-compatible endpoint URL is invalid.
	ErrInvalidBaseURL = errors.New("invalid base URL")

	// ErrInvalidTheme indicates the theme name is not one of the known themes.
	ErrInvalidTheme = errors.New("invalid theme")

	// ErrInvalidHistoryFile indicates the history file path is invalid.
	ErrInvalidHistoryFile = errors.New("invalid history file path")

	// ErrInvalidMaxHistory indicates the history window is out of range.
	ErrInvalidMaxHistory = errors.New("invalid max history messages")
)

const (
	// DefaultBaseURL is the stock OpenAI endpoint. Point OPENAI_BASE_URL at
	// any OpenAI-compatible server to use a different backend.
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultModelName is the model used when OPENAI_MODEL is unset.
	DefaultModelName = "gpt-4o-mini"

	// DefaultHistoryFileName is the history file created in the user's home
	// directory when CONTEXT7_HISTORY_FILE is unset.
	DefaultHistoryFileName = ".context7_history.json"

	// DefaultMaxHistoryMessages is the default number of messages sent to the
	// model per turn.
	DefaultMaxHistoryMessages int32 = 100

	// MaxAllowedHistoryMessages is the absolute maximum to prevent OOM.
	MaxAllowedHistoryMessages int32 = 10000

	// MinHistoryMessages is the minimum allowed value for MaxHistoryMessages.
	MinHistoryMessages int32 = 10
)

// DefaultSystemPrompt steers the model toward the Context7 documentation
// tools. RAG_SYSTEM_PROMPT replaces it wholesale; an empty override falls
// back here.
const DefaultSystemPrompt = "You are a helpful assistant with access to Context7, " +
	"a documentation retrieval service. When the user asks about a library, " +
	"framework, or API, use the Context7 tools to look up current documentation " +
	"before answering, and ground your answer in what the tools return. " +
	"Answer directly from your own knowledge when no lookup is needed."

// Config stores application configuration.
// SECURITY: Sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (API keys, tokens), update MarshalJSON.
type Config struct {
	// OpenAI-compatible backend
	APIKey    string `mapstructure:"openai_api_key" json:"openai_api_key"` // SENSITIVE: masked in MarshalJSON
	BaseURL   string `mapstructure:"openai_base_url" json:"openai_base_url"`
	ModelName string `mapstructure:"openai_model" json:"openai_model"`

	// Conversation behavior
	SystemPrompt       string `mapstructure:"rag_system_prompt" json:"rag_system_prompt"`
	MaxHistoryMessages int32  `mapstructure:"context7_max_history" json:"context7_max_history"`

	// Terminal appearance (see themes.go)
	Theme string `mapstructure:"context7_theme" json:"context7_theme"`

	// Persistence
	HistoryFile string `mapstructure:"context7_history_file" json:"context7_history_file"`

	// Context7 MCP server
	Context7APIKey string `mapstructure:"context7_api_key" json:"context7_api_key"` // SENSITIVE: masked in MarshalJSON
	NodeOptions    string `mapstructure:"context7_node_options" json:"context7_node_options"`

	// Diagnostics
	Debug        bool   `mapstructure:"context7_debug" json:"context7_debug"`
	OTLPEndpoint string `mapstructure:"context7_otlp_endpoint" json:"context7_otlp_endpoint"`
}

// Load loads configuration.
// Priority: Environment variables > .env file > Default values
func Load() (*Config, error) {
	// Configure Viper to pick up a dotenv file from the working directory
	viper.SetConfigName(".env")
	viper.SetConfigType("dotenv")
	viper.AddConfigPath(".")

	// Set default values
	setDefaults()

	// Bind environment variables
	bindEnvVariables()

	// Read the .env file (if it exists)
	if err := viper.ReadInConfig(); err != nil {
		// No .env file is the common case; anything else is worth a line
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			slog.Debug("skipping unreadable .env file", "error", err)
		}
	}

	// Use Unmarshal to automatically map to struct (type-safe)
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// Empty overrides of the system prompt fall back to the default
	if strings.TrimSpace(cfg.SystemPrompt) == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}

	cfg.HistoryFile = expandPath(cfg.HistoryFile)

	// CRITICAL: Validate immediately (fail-fast)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	viper.SetDefault("openai_base_url", DefaultBaseURL)
	viper.SetDefault("openai_model", DefaultModelName)
	viper.SetDefault("rag_system_prompt", DefaultSystemPrompt)
	viper.SetDefault("context7_theme", ThemeCyberpunk)
	viper.SetDefault("context7_history_file", "~/"+DefaultHistoryFileName)
	viper.SetDefault("context7_max_history", DefaultMaxHistoryMessages)
	viper.SetDefault("context7_debug", false)
}

// bindEnvVariables binds every setting to its environment variable.
// Keys are spelled exactly like the variables so .env entries and real
// environment variables name the same thing.
func bindEnvVariables() {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail)
	// If this panics, it's a BUG in our code, not a runtime error
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("openai_api_key", "OPENAI_API_KEY")
	mustBind("openai_base_url", "OPENAI_BASE_URL")
	mustBind("openai_model", "OPENAI_MODEL")
	mustBind("rag_system_prompt", "RAG_SYSTEM_PROMPT")
	mustBind("context7_theme", "CONTEXT7_THEME")
	mustBind("context7_history_file", "CONTEXT7_HISTORY_FILE")
	mustBind("context7_api_key", "CONTEXT7_API_KEY")
	mustBind("context7_node_options", "CONTEXT7_NODE_OPTIONS")
	mustBind("context7_debug", "CONTEXT7_DEBUG")
	mustBind("context7_otlp_endpoint", "CONTEXT7_OTLP_ENDPOINT")
	mustBind("context7_max_history", "CONTEXT7_MAX_HISTORY")
}

// expandPath expands a leading "~/" to the user's home directory.
// If the home directory cannot be resolved, the path is returned unchanged.
func expandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}

// maskedValue is the placeholder for masked sensitive data.
// Using ████████ (full block U+2588) to avoid substring matching against
// real key material.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Shows first 2 and last 2 characters, masks the rest.
// SECURITY: For secrets <=8 chars, fully masks to prevent substring attacks.
//
// THREAT MODEL: This defends against accidental logging of real secrets.
// It is NOT cryptographically secure - if logs are compromised, rotate secrets.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	// For longer secrets, show first/last 2 chars for debug utility
	// Example: "sk-proj-f3a9...xq" → "sk<████████>xq"
	prefix := make([]byte, 2)
	suffix := make([]byte, 2)
	copy(prefix, s[:2])
	copy(suffix, s[len(s)-2:])
	return string(prefix) + "<" + maskedValue + ">" + string(suffix)
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
//
// Sensitive fields masked:
//   - APIKey
//   - Context7APIKey
//
// When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.APIKey = maskSecret(a.APIKey)
	a.Context7APIKey = maskSecret(a.Context7APIKey)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// MaskedAPIKey returns the OpenAI API key masked for display.
func (c *Config) MaskedAPIKey() string {
	return maskSecret(c.APIKey)
}

// FullModelName returns the provider-qualified model name for Genkit.
// Example: "openai/gpt-4o-mini". If ModelName already contains a "/",
// it is returned as-is.
func (c *Config) FullModelName() string {
	if strings.Contains(c.ModelName, "/") {
		return c.ModelName
	}
	return "openai/" + c.ModelName
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}

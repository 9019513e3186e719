package config

import (
	"fmt"
	"strings"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	// 0. Check for nil config
	if c == nil {
		return ErrConfigNil
	}

	// 1. API Key validation (required for all model calls)
	if c.APIKey == "" {
		return fmt.Errorf("%w: OPENAI_API_KEY is required\n"+
			"Set it in your shell (export OPENAI_API_KEY=sk-...) or put it in a "+
			".env file in the working directory",
			ErrMissingAPIKey)
	}

	// 2. Model and endpoint validation
	if c.ModelName == "" {
		return fmt.Errorf("%w: OPENAI_MODEL cannot be empty", ErrInvalidModelName)
	}

	if c.BaseURL == "" {
		return fmt.Errorf("%w: OPENAI_BASE_URL cannot be empty", ErrInvalidBaseURL)
	}

	// 3. Theme validation
	if !ValidTheme(c.Theme) {
		return fmt.Errorf("%w %q: valid themes are %s",
			ErrInvalidTheme, c.Theme, strings.Join(ThemeNames(), ", "))
	}

	// 4. Persistence validation
	if c.HistoryFile == "" {
		return fmt.Errorf("%w: CONTEXT7_HISTORY_FILE cannot be empty", ErrInvalidHistoryFile)
	}

	// 5. History window bounds
	if c.MaxHistoryMessages < MinHistoryMessages || c.MaxHistoryMessages > MaxAllowedHistoryMessages {
		return fmt.Errorf("%w: must be between %d and %d, got %d",
			ErrInvalidMaxHistory, MinHistoryMessages, MaxAllowedHistoryMessages, c.MaxHistoryMessages)
	}

	return nil
}

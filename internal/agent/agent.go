// Package agent runs conversation turns against an OpenAI-compatible model
// through Genkit, with the Context7 documentation toolset attached over MCP.
//
// The agent is stateless between turns: the transcript lives in
// [history.Store] and is re-read for every call. Model access goes through
// the narrow [Runner] seam so tests can substitute a stub; the production
// runner wraps genkit.Generate with streaming, tools, and the system prompt.
//
// A turn never panics and never lets a framework error escape raw: failures
// are logged, wrapped in [ErrChatFailed], and rendered as a readable string
// the terminal can print as-is.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"

	"github.com/koopa0/context7-agent/internal/history"
)

// Agent name and description constants
const (
	// Name is the unique identifier for the Context7 agent.
	Name = "context7"

	// Description describes the agent's capabilities.
	Description = "A documentation assistant that answers questions using the Context7 retrieval tools."

	// DefaultMaxTurns bounds the agentic tool-calling loop per request.
	DefaultMaxTurns = 5

	// DefaultMaxHistoryMessages is the transcript window sent with each turn.
	DefaultMaxHistoryMessages = 100

	// NoInputMessage is returned, without any model call, when the user
	// submits empty or whitespace-only input.
	NoInputMessage = "Please enter a question or a command. Type /help to see what I can do."

	// fallbackResponseMessage is the message returned when the model produces an empty response.
	fallbackResponseMessage = "I apologize, but I couldn't generate a response. Please try rephrasing your question."
)

// Sentinel errors for agent operations.
var (
	// ErrEmptyInput indicates the user submitted nothing to answer.
	ErrEmptyInput = errors.New("empty input")

	// ErrChatFailed indicates the model call failed after retries. The
	// string returned alongside it is already formatted for display.
	ErrChatFailed = errors.New("chat failed")
)

// Config contains all required parameters for the agent.
type Config struct {
	Genkit *genkit.Genkit
	Store  *history.Store
	Logger *slog.Logger
	Tools  []ai.Tool // Active Context7 tools fetched from the MCP host

	// Configuration values
	ModelName          string // Provider-qualified model name (e.g., "openai/gpt-4o-mini")
	SystemPrompt       string
	MaxTurns           int // Maximum agentic loop turns
	MaxHistoryMessages int // Transcript window per request

	// Resilience configuration
	RetryConfig RetryConfig   // Model retry settings (zero-value uses defaults)
	RateLimiter *rate.Limiter // Optional: proactive rate limiting (nil = use default)

	// Runner overrides the production Genkit runner. Tests use this; when
	// nil, New builds a runner from Genkit/ModelName/Tools.
	Runner Runner
}

// validate checks if all required parameters are present.
func (cfg Config) validate() error {
	if cfg.Runner == nil && cfg.Genkit == nil {
		return errors.New("genkit instance is required")
	}
	if cfg.Store == nil {
		return errors.New("history store is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// Agent answers user questions, calling documentation tools as needed.
//
// All configuration values are captured immutably at construction time
// to ensure thread-safe concurrent access.
type Agent struct {
	// Immutable configuration (captured at construction)
	maxHistory int

	// Resilience (captured at construction)
	retryConfig RetryConfig
	rateLimiter *rate.Limiter

	// Dependencies (read-only after construction)
	runner Runner
	store  *history.Store
	logger *slog.Logger
}

// New creates a new Agent with required configuration.
//
// Example:
//
//	agent, err := agent.New(agent.Config{
//	    Genkit:       g,
//	    Store:        store,
//	    Logger:       logger,
//	    Tools:        tools, // From the MCP connector
//	    ModelName:    cfg.FullModelName(),
//	    SystemPrompt: cfg.SystemPrompt,
//	})
func New(cfg Config) (*Agent, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// Apply defaults for optional configuration values
	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}

	maxHistory := cfg.MaxHistoryMessages
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistoryMessages
	}

	retryConfig := cfg.RetryConfig
	if retryConfig.MaxRetries == 0 {
		retryConfig = DefaultRetryConfig()
	}

	// Use provided rate limiter or create default.
	// Default: 2 requests/sec sustained, burst of 5, sized for one
	// interactive user.
	rl := cfg.RateLimiter
	if rl == nil {
		rl = rate.NewLimiter(2, 5)
	}

	runner := cfg.Runner
	if runner == nil {
		runner = newGenkitRunner(cfg.Genkit, cfg.ModelName, cfg.SystemPrompt, cfg.Tools, maxTurns)
	}

	a := &Agent{
		maxHistory:  maxHistory,
		retryConfig: retryConfig,
		rateLimiter: rl,
		runner:      runner,
		store:       cfg.Store,
		logger:      cfg.Logger,
	}

	toolNames := make([]string, len(cfg.Tools))
	for i, t := range cfg.Tools {
		toolNames[i] = t.Name()
	}
	a.logger.Info("agent initialized",
		"model", cfg.ModelName,
		"tools", strings.Join(toolNames, ", "),
		"max_turns", maxTurns)

	return a, nil
}

// Chat runs one blocking conversation turn.
//
// The returned string is always safe to print: the model's answer on
// success, a fixed prompt on empty input, or a readable failure summary.
// The error reports what happened underneath; callers use it to decide
// whether the exchange belongs in the transcript.
func (a *Agent) Chat(ctx context.Context, text string) (string, error) {
	res, err := a.converse(ctx, text, nil)
	return res.Text, err
}

// ChatStream runs one conversation turn, delivering response fragments and
// tool invocation notices to onChunk as the model produces them. The full
// result is returned once the turn completes. Error semantics match Chat.
func (a *Agent) ChatStream(ctx context.Context, text string, onChunk ChunkCallback) (Result, error) {
	return a.converse(ctx, text, onChunk)
}

// converse is the shared turn implementation behind Chat and ChatStream.
func (a *Agent) converse(ctx context.Context, text string, onChunk ChunkCallback) (Result, error) {
	query := strings.TrimSpace(text)
	if query == "" {
		return Result{Text: NoInputMessage}, ErrEmptyInput
	}

	transcript := a.store.Recent(a.maxHistory)

	var res Result
	err := a.executeWithRetry(ctx, func(ctx context.Context) error {
		var runErr error
		if onChunk != nil {
			res, runErr = a.runner.RunStream(ctx, query, transcript, onChunk)
		} else {
			res, runErr = a.runner.Run(ctx, query, transcript)
		}
		return runErr
	})
	if err != nil {
		// Cancellation is the caller's doing, not a chat failure
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Result{}, err
		}
		a.logger.Error("chat turn failed", "error", err)
		return Result{Text: failureMessage(err)}, fmt.Errorf("%w: %v", ErrChatFailed, err)
	}

	if strings.TrimSpace(res.Text) == "" {
		res.Text = fallbackResponseMessage
	}
	return res, nil
}

// failureMessage renders a model failure for direct display in the
// terminal. It embeds the underlying detail so the user can tell a quota
// problem from a network one.
func failureMessage(err error) string {
	return fmt.Sprintf("Chat error: %v. Please check your API key and internet connection.", err)
}

// historyMessages converts transcript entries to model messages. Entries
// with unknown roles are skipped.
func historyMessages(transcript []history.Message) []*ai.Message {
	msgs := make([]*ai.Message, 0, len(transcript))
	for _, m := range transcript {
		switch m.Role {
		case history.RoleUser:
			msgs = append(msgs, ai.NewUserMessage(ai.NewTextPart(m.Content)))
		case history.RoleAssistant:
			msgs = append(msgs, ai.NewModelMessage(ai.NewTextPart(m.Content)))
		}
	}
	return msgs
}

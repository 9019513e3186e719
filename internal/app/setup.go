package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/tracing"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/koopa0/context7-agent/internal/agent"
	"github.com/koopa0/context7-agent/internal/config"
	"github.com/koopa0/context7-agent/internal/history"
	"github.com/koopa0/context7-agent/internal/log"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup; call Close() to release.
func Setup(ctx context.Context, cfg *config.Config) (_ *App, retErr error) {
	if cfg == nil {
		return nil, config.ErrConfigNil
	}

	a := &App{
		Config: cfg,
		Logger: provideLogger(cfg),
	}
	slog.SetDefault(a.Logger)

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				a.Logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	// Tracing must be registered before Genkit initialization so the span
	// processor sees every flow span.
	a.TracerShutdown = provideTracing(ctx, cfg, a.Logger)

	g, err := provideGenkit(ctx, cfg, a.Logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	store, err := provideStore(cfg, a.Logger)
	if err != nil {
		return nil, err
	}
	a.Store = store

	tools, err := provideMCP(ctx, a)
	if err != nil {
		return nil, err
	}

	ag, err := provideAgent(a, tools)
	if err != nil {
		return nil, err
	}
	a.Agent = ag

	// Set up lifecycle management
	appCtx, cancel := context.WithCancel(ctx)
	a.ctx = appCtx
	a.cancel = cancel

	return a, nil
}

// provideLogger builds the application-wide structured logger. Debug mode
// lowers the level and records source locations.
func provideLogger(cfg *config.Config) log.Logger {
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	return log.New(log.Config{Level: level, AddSource: cfg.Debug})
}

// provideTracing exports agent turn spans over OTLP HTTP when
// CONTEXT7_OTLP_ENDPOINT is set. Returns the flush function; a broken
// exporter only costs the traces, never startup.
func provideTracing(ctx context.Context, cfg *config.Config, logger log.Logger) func() {
	if cfg.OTLPEndpoint == "" {
		return func() {}
	}

	// Local collectors (e.g. localhost:4318) terminate TLS themselves.
	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		logger.Warn("creating OTLP exporter, tracing disabled", "error", err)
		return func() {}
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	logger.Debug("OTLP tracing enabled", "endpoint", cfg.OTLPEndpoint)

	shutdown := tracing.TracerProvider().Shutdown

	//nolint:contextcheck // Independent context: shutdown runs during teardown when parent is canceled
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideGenkit initializes Genkit against the configured OpenAI-compatible
// backend. Call ordering in Setup ensures tracing is set up first.
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, error) {
	g := genkit.Init(ctx,
		genkit.WithPlugins(&openai.OpenAI{
			APIKey: cfg.APIKey,
			Opts:   []option.RequestOption{option.WithBaseURL(cfg.BaseURL)},
		}),
	)
	if g == nil {
		return nil, errors.New("initializing genkit with openai provider")
	}

	logger.Info("initialized Genkit with openai provider",
		"model", cfg.ModelName, "base_url", cfg.BaseURL)
	return g, nil
}

// provideStore opens the history store and loads any existing state. A
// missing or corrupt file starts fresh; losing history must not block the
// session.
func provideStore(cfg *config.Config, logger log.Logger) (*history.Store, error) {
	store, err := history.New(cfg.HistoryFile, logger)
	if err != nil {
		return nil, fmt.Errorf("creating history store: %w", err)
	}
	if err := store.Load(); err != nil {
		logger.Warn("loading conversation history", "path", store.Path(), "error", err)
	}
	return store, nil
}

// provideMCP starts the Context7 MCP server subprocess and fetches its
// toolset. The connector is stored on a before Connect so a failure later
// in Setup still shuts the subprocess down. A server that cannot start
// aborts startup; the agent is useless without its retrieval tools.
func provideMCP(ctx context.Context, a *App) ([]ai.Tool, error) {
	connector, err := agent.NewConnector(agent.MCPConfig{
		Logger:      a.Logger,
		APIKey:      a.Config.Context7APIKey,
		NodeOptions: a.Config.NodeOptions,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Context7 connector: %w", err)
	}
	a.MCP = connector

	if err := connector.Connect(ctx, a.Genkit); err != nil {
		return nil, fmt.Errorf("starting Context7 MCP server: %w (run `context7 doctor` to check Node.js and npx)", err)
	}

	tools, err := connector.Tools(ctx, a.Genkit)
	if err != nil {
		return nil, fmt.Errorf("listing Context7 tools: %w", err)
	}
	a.Logger.Info("Context7 tools ready", "count", len(tools))

	return tools, nil
}

// provideAgent assembles the chat agent from the configured model, the
// conversation store, and the Context7 toolset.
func provideAgent(a *App, tools []ai.Tool) (*agent.Agent, error) {
	cfg := a.Config
	return agent.New(agent.Config{
		Genkit:             a.Genkit,
		Store:              a.Store,
		Logger:             a.Logger,
		Tools:              tools,
		ModelName:          cfg.FullModelName(),
		SystemPrompt:       cfg.SystemPrompt,
		MaxHistoryMessages: int(cfg.MaxHistoryMessages),
	})
}

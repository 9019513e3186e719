// Package app assembles the application: configuration, logging, tracing,
// the history store, the Context7 MCP connector, and the chat agent.
//
// Setup builds an App step by step and releases everything already built
// when a later step fails. Close tears the App down in reverse order.
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/genkit"

	"github.com/koopa0/context7-agent/internal/agent"
	"github.com/koopa0/context7-agent/internal/config"
	"github.com/koopa0/context7-agent/internal/history"
)

// disconnectTimeout bounds how long Close waits for the MCP subprocess.
const disconnectTimeout = 5 * time.Second

// App is the core application container.
type App struct {
	// Configuration
	Config *config.Config
	Logger *slog.Logger

	// Core services
	Genkit *genkit.Genkit
	Store  *history.Store
	MCP    *agent.Connector
	Agent  *agent.Agent

	// TracerShutdown flushes buffered spans. Non-nil after Setup, a no-op
	// when tracing is disabled.
	TracerShutdown func()

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
}

// Close gracefully shuts down all resources.
// Safe to call on a partially initialized App and safe to call twice.
func (a *App) Close() error {
	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("shutting down application")

	// 1. Cancel context so in-flight turns stop
	if a.cancel != nil {
		a.cancel()
	}

	// 2. Stop the Context7 MCP server subprocess
	if a.MCP != nil {
		ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
		if err := a.MCP.Disconnect(ctx); err != nil {
			logger.Warn("disconnecting Context7 MCP server", "error", err)
		}
		cancel()
	}

	// 3. Flush any buffered trace spans
	if a.TracerShutdown != nil {
		a.TracerShutdown()
		a.TracerShutdown = nil
	}

	return nil
}

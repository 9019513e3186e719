package app

import (
	"context"
	"fmt"

	"github.com/koopa0/context7-agent/internal/agent"
	"github.com/koopa0/context7-agent/internal/config"
)

// Runtime bundles an initialized App with the chat flow and the teardown
// hooks shared by every entry point.
type Runtime struct {
	App  *App
	Flow *agent.Flow

	// Cleanup releases all resources and logs instead of returning errors;
	// meant for defer. Shutdown is the error-returning equivalent.
	Cleanup  func()
	Shutdown func() error
}

// NewRuntime creates a fully initialized runtime with all components ready
// for use.
//
// Usage:
//
//	runtime, err := app.NewRuntime(ctx, cfg)
//	if err != nil { ... }
//	defer runtime.Cleanup()
//	// Use runtime.Flow for agent interactions
func NewRuntime(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	application, err := Setup(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing application: %w", err)
	}

	flow := agent.NewFlow(application.Genkit, application.Agent)

	return &Runtime{
		App:  application,
		Flow: flow,
		Cleanup: func() {
			if err := application.Close(); err != nil {
				application.Logger.Warn("closing application", "error", err)
			}
		},
		Shutdown: application.Close,
	}, nil
}

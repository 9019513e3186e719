package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "charm.land/bubbletea/v2"
	"github.com/spf13/cobra"

	"github.com/koopa0/context7-agent/internal/app"
	"github.com/koopa0/context7-agent/internal/config"
	"github.com/koopa0/context7-agent/internal/history"
	"github.com/koopa0/context7-agent/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start the interactive chat (default)",
	RunE:  runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

// runChat initializes and starts the interactive chat with the Bubble Tea TUI.
func runChat(_ *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		printConfigGuidance(err)
		return err
	}

	runtime, err := app.NewRuntime(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing runtime: %w", err)
	}
	defer runtime.Cleanup()

	// Record this session in the store; failing to persist the session row
	// must not block the chat.
	sess := history.NewSession("Chat Session")
	if err := runtime.App.Store.AddSession(sess); err != nil {
		slog.Warn("recording session", "error", err)
	}
	sessionID, _ := sess["id"].(string)

	model, err := tui.New(ctx, runtime.Flow, runtime.App.Store, cfg.Theme, sessionID)
	if err != nil {
		return fmt.Errorf("creating terminal interface: %w", err)
	}

	program := tea.NewProgram(model, tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		// SIGINT/SIGTERM cancel ctx and surface here as a killed program;
		// an interrupted session is still a clean exit.
		if ctx.Err() != nil {
			fmt.Println("Goodbye!")
			return nil
		}
		return fmt.Errorf("terminal interface exited: %w", err)
	}

	fmt.Println("Goodbye!")
	return nil
}

// printConfigGuidance explains on stderr how to fix a failed configuration
// load. The error itself is printed by main.
func printConfigGuidance(err error) {
	fmt.Fprintln(os.Stderr, "Configuration problem:", err)
	fmt.Fprintln(os.Stderr, "")

	switch {
	case errors.Is(err, config.ErrMissingAPIKey):
		fmt.Fprintln(os.Stderr, "Context7 Agent requires an OpenAI API key.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "To set your API key:")
		fmt.Fprintln(os.Stderr, "  export OPENAI_API_KEY=your-api-key")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Or create a .env file in the working directory:")
		fmt.Fprintln(os.Stderr, "  OPENAI_API_KEY=your-api-key")
	case errors.Is(err, config.ErrInvalidTheme):
		fmt.Fprintln(os.Stderr, "Valid themes: cyberpunk, ocean, forest, sunset")
	default:
		fmt.Fprintln(os.Stderr, "Check the environment variables and the .env file.")
	}
}

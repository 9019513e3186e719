package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/koopa0/context7-agent/internal/agent"
	"github.com/koopa0/context7-agent/internal/app"
	"github.com/koopa0/context7-agent/internal/config"
	"github.com/koopa0/context7-agent/internal/history"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question and print the answer",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
}

func runAsk(_ *cobra.Command, args []string) error {
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

	// Merge all arguments into the question
	question := strings.Join(args, " ")

	answer, err := runtime.App.Agent.Chat(ctx, question)
	switch {
	case err == nil:
	case errors.Is(err, agent.ErrChatFailed), errors.Is(err, agent.ErrEmptyInput):
		// The answer already carries a printable failure summary
	default:
		return fmt.Errorf("asking: %w", err)
	}

	fmt.Println(renderAnswer(answer))

	// Only successful exchanges belong in the transcript
	if err == nil {
		store := runtime.App.Store
		store.Append(history.Message{Role: history.RoleUser, Content: question})
		store.Append(history.Message{Role: history.RoleAssistant, Content: answer})
		if saveErr := store.Save(); saveErr != nil {
			slog.Warn("saving conversation history", "error", saveErr)
		}
	}

	return nil
}

// renderAnswer formats the model's markdown for the terminal, falling back
// to the raw text when the renderer cannot start.
func renderAnswer(text string) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimSpace(out)
}

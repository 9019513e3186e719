package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/koopa0/context7-agent/internal/config"
)

// Version information (injected at build time via ldflags).
var (
	AppVersion = "0.1.0"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version and configuration status",
	RunE:  runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func runVersion(_ *cobra.Command, _ []string) error {
	fmt.Printf("Context7 Agent v%s\n", AppVersion)
	fmt.Printf("Build:  %s\n", BuildTime)
	fmt.Printf("Commit: %s\n", GitCommit)

	cfg, err := config.Load()
	if err != nil {
		fmt.Println()
		fmt.Println("Not configured yet. Set OPENAI_API_KEY to get started:")
		fmt.Println("  export OPENAI_API_KEY=your-api-key")
		return nil
	}

	fmt.Println()
	fmt.Printf("Model:   %s\n", cfg.FullModelName())
	fmt.Printf("Theme:   %s\n", cfg.Theme)
	fmt.Printf("API key: %s\n", cfg.MaskedAPIKey())
	return nil
}

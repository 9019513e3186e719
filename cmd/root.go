// Package cmd wires the context7 command line: the interactive chat TUI,
// one-shot questions, environment diagnostics, and version reporting.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "context7",
	Short: "Context7 Agent - documentation chat in your terminal",
	Long: `Context7 Agent is a terminal chat client backed by the Context7
documentation service. It answers questions about libraries, frameworks,
and APIs, looking up current documentation through the Context7 MCP server
before it responds.

Running context7 with no arguments starts the interactive chat.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// No arguments enters chat mode
		return runChat(cmd, args)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

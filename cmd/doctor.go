package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"os/exec"
	"slices"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/koopa0/context7-agent/internal/agent"
	"github.com/koopa0/context7-agent/internal/config"
	"github.com/koopa0/context7-agent/internal/log"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Verify Node.js, npx, and the Context7 MCP server",
	Long: `Doctor checks everything the chat needs to run: a Node.js
installation, the npx launcher, and the Context7 MCP server itself.
It starts the server exactly the way chat does, then lists the tools
the server advertises together with their parameters.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

// doctorProbeTimeout bounds the whole probe; npx may need to download the
// server package on first run.
const doctorProbeTimeout = 60 * time.Second

func runDoctor(_ *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), doctorProbeTimeout)
	defer cancel()

	fmt.Println("Verifying Context7 MCP integration...")
	fmt.Println()

	if err := checkNodeRuntime(ctx); err != nil {
		return err
	}

	return probeMCPServer(ctx)
}

// checkNodeRuntime verifies node and npx in parallel.
func checkNodeRuntime(ctx context.Context) error {
	var nodeVersion string

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := exec.CommandContext(ctx, "node", "--version").Output()
		if err != nil {
			return fmt.Errorf("node --version: %w", err)
		}
		nodeVersion = strings.TrimSpace(string(out))
		return nil
	})
	g.Go(func() error {
		if _, err := exec.LookPath("npx"); err != nil {
			return fmt.Errorf("npx not found: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		fmt.Println("Node.js not found or not in PATH")
		fmt.Println("Install from: https://nodejs.org/")
		return err
	}

	fmt.Printf("Node.js %s found\n", nodeVersion)
	fmt.Println("npx found")
	return nil
}

// probeMCPServer starts the Context7 server with the same command line and
// environment the chat uses, then lists its tools over a direct MCP client
// session.
func probeMCPServer(ctx context.Context) error {
	// Only the optional Context7 settings matter here; a missing OpenAI key
	// must not block the probe.
	var apiKey, nodeOptions string
	if cfg, err := config.Load(); err == nil {
		apiKey = cfg.Context7APIKey
		nodeOptions = cfg.NodeOptions
	}

	connector, err := agent.NewConnector(agent.MCPConfig{
		Logger:      log.NewNop(),
		APIKey:      apiKey,
		NodeOptions: nodeOptions,
	})
	if err != nil {
		return err
	}

	command, args := connector.CommandLine()
	fmt.Printf("Starting %s %s\n", command, strings.Join(args, " "))

	serverCmd := exec.CommandContext(ctx, command, args...)
	serverCmd.Env = connector.Env()

	client := mcp.NewClient(&mcp.Implementation{
		Name:    "context7-doctor",
		Version: AppVersion,
	}, nil)

	session, err := client.Connect(ctx, &mcp.CommandTransport{Command: serverCmd}, nil)
	if err != nil {
		fmt.Println("Context7 MCP server failed to start")
		return fmt.Errorf("connecting to Context7 MCP server: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			slog.Warn("closing MCP session", "error", err)
		}
	}()

	fmt.Println("Context7 MCP server running")
	fmt.Println()

	result, err := session.ListTools(ctx, nil)
	if err != nil {
		return fmt.Errorf("listing tools: %w", err)
	}

	fmt.Printf("Tools advertised (%d):\n", len(result.Tools))
	for _, tool := range result.Tools {
		fmt.Printf("  %s: %s\n", tool.Name, firstLine(tool.Description))
		for _, param := range schemaParams(tool.InputSchema) {
			fmt.Printf("      %s\n", param)
		}
	}

	return nil
}

// schemaParams flattens a tool's input schema into printable parameter
// lines, sorted by name.
func schemaParams(schema *jsonschema.Schema) []string {
	if schema == nil || len(schema.Properties) == 0 {
		return nil
	}

	required := make(map[string]bool, len(schema.Required))
	for _, name := range schema.Required {
		required[name] = true
	}

	names := slices.Sorted(maps.Keys(schema.Properties))

	params := make([]string, 0, len(names))
	for _, name := range names {
		prop := schema.Properties[name]

		line := name
		switch {
		case prop != nil && prop.Type != "":
			line += " (" + prop.Type
			if required[name] {
				line += ", required"
			}
			line += ")"
		case required[name]:
			line += " (required)"
		}
		if prop != nil && prop.Description != "" {
			line += ": " + firstLine(prop.Description)
		}
		params = append(params, line)
	}
	return params
}

// firstLine truncates multi-line descriptions for one-line display.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

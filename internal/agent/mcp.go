package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/mcp"
)

// MCP server identity and defaults.
const (
	// ServerName identifies the Context7 connection on the MCP host.
	ServerName = "context7"

	// DefaultRunnerCommand launches the server package. npx resolves and
	// caches the package without a global install.
	DefaultRunnerCommand = "npx"

	// DefaultPackageSpec is the published Context7 MCP server.
	DefaultPackageSpec = "@upstash/context7-mcp@latest"

	mcpHostName    = "context7-agent"
	mcpHostVersion = "1.0.0"
)

// ErrRunnerNotFound indicates the package runner (npx) is not installed.
var ErrRunnerNotFound = errors.New("package runner not found")

// MCPConfig configures the Context7 server connection.
type MCPConfig struct {
	Logger *slog.Logger

	Command     string // package runner; default "npx"
	PackageSpec string // server package; default DefaultPackageSpec
	APIKey      string // optional Context7 API key, passed as --api-key
	NodeOptions string // optional NODE_OPTIONS for the child (e.g. memory limits)
}

// Connector owns the session-scoped connection to the Context7 MCP server.
//
// The server is spawned once at startup and kept for the whole session;
// every turn reuses the same child process and its warm package cache.
// Disconnect tears the child down at shutdown.
type Connector struct {
	host    *mcp.MCPHost
	command string
	args    []string
	env     []string
	logger  *slog.Logger
}

// NewConnector builds a connector. No process is spawned until Connect.
func NewConnector(cfg MCPConfig) (*Connector, error) {
	if cfg.Logger == nil {
		return nil, errors.New("logger is required")
	}

	command := cfg.Command
	if command == "" {
		command = DefaultRunnerCommand
	}
	packageSpec := cfg.PackageSpec
	if packageSpec == "" {
		packageSpec = DefaultPackageSpec
	}

	args := []string{"-y", packageSpec}
	if cfg.APIKey != "" {
		args = append(args, "--api-key", cfg.APIKey)
	}

	// The child inherits the FULL parent environment; overrides are
	// appended, never substituted. npx needs PATH, HOME, and the npm
	// cache variables exactly as the user has them.
	env := os.Environ()
	if cfg.NodeOptions != "" {
		env = append(env, "NODE_OPTIONS="+cfg.NodeOptions)
	}

	return &Connector{
		command: command,
		args:    args,
		env:     env,
		logger:  cfg.Logger,
	}, nil
}

// CommandLine returns the spawn command and its arguments. The doctor
// command reuses this to probe the same server the session would run.
func (c *Connector) CommandLine() (string, []string) {
	args := make([]string, len(c.args))
	copy(args, c.args)
	return c.command, args
}

// Env returns the child process environment.
func (c *Connector) Env() []string {
	env := make([]string, len(c.env))
	copy(env, c.env)
	return env
}

// Preflight verifies the package runner exists before anything is spawned,
// so a missing Node.js installation surfaces as guidance instead of a
// cryptic exec failure.
func (c *Connector) Preflight() error {
	if _, err := exec.LookPath(c.command); err != nil {
		return fmt.Errorf("%w: %q is not on PATH\n"+
			"Install Node.js 18 or newer from https://nodejs.org/ and ensure %s is available",
			ErrRunnerNotFound, c.command, c.command)
	}
	return nil
}

// Connect spawns the Context7 server over stdio and registers it with a
// fresh MCP host.
func (c *Connector) Connect(ctx context.Context, g *genkit.Genkit) error {
	if err := c.Preflight(); err != nil {
		return err
	}

	c.logger.Info("starting Context7 MCP server",
		"command", c.command,
		"package", c.args[len(c.args)-1])

	host, err := mcp.NewMCPHost(g, mcp.MCPHostOptions{
		Name:    mcpHostName,
		Version: mcpHostVersion,
	})
	if err != nil {
		return fmt.Errorf("creating MCP host: %w", err)
	}

	if err := host.Connect(ctx, g, ServerName, mcp.MCPClientOptions{
		Name: ServerName,
		Stdio: &mcp.StdioConfig{
			Command: c.command,
			Args:    c.args,
			Env:     c.env,
		},
	}); err != nil {
		return fmt.Errorf("connecting to Context7 MCP server: %w", err)
	}

	c.host = host
	c.logger.Info("Context7 MCP server connected")
	return nil
}

// Tools returns the active tools exposed by the connected server.
func (c *Connector) Tools(ctx context.Context, g *genkit.Genkit) ([]ai.Tool, error) {
	if c.host == nil {
		return nil, errors.New("not connected")
	}
	tools, err := c.host.GetActiveTools(ctx, g)
	if err != nil {
		return nil, fmt.Errorf("listing Context7 tools: %w", err)
	}
	return tools, nil
}

// Reconnect re-establishes a dropped server connection.
func (c *Connector) Reconnect(ctx context.Context) error {
	if c.host == nil {
		return errors.New("not connected")
	}
	if err := c.host.Reconnect(ctx, ServerName); err != nil {
		return fmt.Errorf("reconnecting to Context7 MCP server: %w", err)
	}
	return nil
}

// Disconnect stops the server child process. Safe to call when never
// connected.
func (c *Connector) Disconnect(ctx context.Context) error {
	if c.host == nil {
		return nil
	}
	if err := c.host.Disconnect(ctx, ServerName); err != nil {
		return fmt.Errorf("disconnecting Context7 MCP server: %w", err)
	}
	c.host = nil
	return nil
}

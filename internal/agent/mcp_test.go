package agent

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/context7-agent/internal/log"
)

func newTestConnector(t *testing.T, cfg MCPConfig) *Connector {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}
	c, err := NewConnector(cfg)
	require.NoError(t, err)
	return c
}

func TestNewConnectorRequiresLogger(t *testing.T) {
	_, err := NewConnector(MCPConfig{})
	assert.Error(t, err)
}

func TestNewConnectorDefaults(t *testing.T) {
	c := newTestConnector(t, MCPConfig{})

	cmd, args := c.CommandLine()
	assert.Equal(t, DefaultRunnerCommand, cmd)
	assert.Equal(t, []string{"-y", DefaultPackageSpec}, args)
}

func TestNewConnectorAPIKeyFlag(t *testing.T) {
	c := newTestConnector(t, MCPConfig{APIKey: "ctx7-secret"})

	_, args := c.CommandLine()
	assert.Equal(t, []string{"-y", DefaultPackageSpec, "--api-key", "ctx7-secret"}, args)
}

func TestNewConnectorOverrides(t *testing.T) {
	c := newTestConnector(t, MCPConfig{
		Command:     "/usr/local/bin/npx",
		PackageSpec: "@upstash/context7-mcp@2.0.0",
	})

	cmd, args := c.CommandLine()
	assert.Equal(t, "/usr/local/bin/npx", cmd)
	assert.Equal(t, []string{"-y", "@upstash/context7-mcp@2.0.0"}, args)
}

func TestNewConnectorInheritsEnvironment(t *testing.T) {
	t.Setenv("CONTEXT7_MCP_TEST_MARKER", "inherited")

	c := newTestConnector(t, MCPConfig{})

	assert.Contains(t, c.Env(), "CONTEXT7_MCP_TEST_MARKER=inherited",
		"child process must see the full parent environment")
	assert.GreaterOrEqual(t, len(c.Env()), len(os.Environ()))
}

func TestNewConnectorNodeOptions(t *testing.T) {
	c := newTestConnector(t, MCPConfig{NodeOptions: "--max-old-space-size=512"})

	env := c.Env()
	require.NotEmpty(t, env)
	assert.Equal(t, "NODE_OPTIONS=--max-old-space-size=512", env[len(env)-1],
		"override is appended so it wins over any inherited value")
}

func TestNewConnectorWithoutNodeOptions(t *testing.T) {
	c := newTestConnector(t, MCPConfig{})

	assert.Equal(t, os.Environ(), c.Env(),
		"nothing appended when no overrides are configured")
}

func TestConnectorAccessorsCopy(t *testing.T) {
	c := newTestConnector(t, MCPConfig{APIKey: "k"})

	_, args := c.CommandLine()
	args[0] = "mutated"
	_, again := c.CommandLine()
	assert.Equal(t, "-y", again[0], "CommandLine must return a copy")

	env := c.Env()
	require.NotEmpty(t, env)
	env[0] = "MUTATED=1"
	assert.NotEqual(t, "MUTATED=1", c.Env()[0], "Env must return a copy")
}

func TestPreflightMissingRunner(t *testing.T) {
	c := newTestConnector(t, MCPConfig{Command: "definitely-not-a-real-binary-context7"})

	err := c.Preflight()

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRunnerNotFound)
	assert.Contains(t, err.Error(), "nodejs.org", "error must point at the install page")
}

func TestDisconnectWithoutConnect(t *testing.T) {
	c := newTestConnector(t, MCPConfig{})

	assert.NoError(t, c.Disconnect(t.Context()), "disconnect before connect is a no-op")
}

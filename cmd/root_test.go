package cmd

import (
	"testing"
)

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "context7" {
		t.Errorf("root command use = %q, want %q", rootCmd.Use, "context7")
	}
	if rootCmd.RunE == nil {
		t.Error("root command has no default action; bare context7 should start chat")
	}
}

func TestRootCommand_Subcommands(t *testing.T) {
	want := []string{"ask", "chat", "doctor", "version"}

	registered := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		registered[c.Name()] = true
	}

	for _, name := range want {
		if !registered[name] {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestVersionDefaults(t *testing.T) {
	if AppVersion == "" {
		t.Error("AppVersion is empty")
	}
	if BuildTime == "" {
		t.Error("BuildTime is empty; ldflags injection needs a non-empty default")
	}
	if GitCommit == "" {
		t.Error("GitCommit is empty; ldflags injection needs a non-empty default")
	}
}

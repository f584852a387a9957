package main

import (
	"bytes"
	"testing"
)

func TestNewRootCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()
	if cmd.Use != "imagehound" {
		t.Errorf("Use = %q, want imagehound", cmd.Use)
	}

	want := []string{"target", "scan", "check", "stream", "history", "stats", "init", "version"}
	for _, name := range want {
		found := false
		for _, sub := range cmd.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}

	if cmd.PersistentFlags().Lookup("verbose") == nil {
		t.Error("persistent flag --verbose not registered")
	}
	if cmd.PersistentFlags().Lookup("config") == nil {
		t.Error("persistent flag --config not registered")
	}
	if cmd.PersistentFlags().Lookup("data-dir") == nil {
		t.Error("persistent flag --data-dir not registered")
	}
}

func TestRootCmdHelp(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs([]string{"--help"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("help failed: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("imagehound")) {
		t.Errorf("help output missing program name:\n%s", buf.String())
	}
}

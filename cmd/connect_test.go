package cmd

import (
	"testing"
)

func TestConnectCmd_Structure(t *testing.T) {
	if connectCmd == nil {
		t.Fatal("connectCmd should not be nil")
	}

	if connectCmd.Use != "connect" {
		t.Errorf("connectCmd.Use = %q, want %q", connectCmd.Use, "connect")
	}

	if connectCmd.Short == "" {
		t.Error("connectCmd.Short should not be empty")
	}

	if connectCmd.Flags().Lookup("connection") == nil {
		t.Error("connectCmd should register a --connection flag")
	}

	found := false
	for _, cmd := range rootCmd.Commands() {
		if cmd.Use == "connect" {
			found = true
			break
		}
	}
	if !found {
		t.Error("connect command should be registered with root command")
	}
}

func TestConnectCmd_RequiresConnectionFlag(t *testing.T) {
	err := connectCmd.RunE(connectCmd, nil)
	if err == nil {
		t.Fatal("expected an error when --connection is not set")
	}
}

package cmd

import (
	"testing"
)

func TestValidateCmd_Structure(t *testing.T) {
	if validateCmd == nil {
		t.Fatal("validateCmd should not be nil")
	}
	if validateCmd.Flags().Lookup("connection") == nil {
		t.Error("validateCmd should register a --connection flag")
	}
	if validateCmd.Flags().Lookup("file") == nil {
		t.Error("validateCmd should register a --file flag")
	}

	found := false
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == "validate" {
			found = true
			break
		}
	}
	if !found {
		t.Error("validate command should be registered with root command")
	}
}

func TestValidateCmd_RequiresConnection(t *testing.T) {
	err := validateCmd.RunE(validateCmd, []string{"SELECT 1;"})
	if err == nil {
		t.Fatal("expected an error when --connection is not set")
	}
}

func TestGetSQLInput_FromArgs(t *testing.T) {
	got, err := getSQLInput(validateCmd, []string{"  SELECT 1;  "}, plainProfile(t))
	if err != nil {
		t.Fatalf("getSQLInput: %v", err)
	}
	if got != "SELECT 1;" {
		t.Errorf("getSQLInput = %q, want trimmed SELECT 1;", got)
	}
}

func TestGetSQLInput_NoArgsNoFile(t *testing.T) {
	cmd := validateCmd
	cmd.Flags().Set("file", "")
	if _, err := getSQLInput(cmd, nil, plainProfile(t)); err == nil {
		t.Fatal("expected an error when neither an argument nor --file is given")
	}
}

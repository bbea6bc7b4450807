package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func TestAuthCommandStructure(t *testing.T) {
	t.Run("auth command exists", func(t *testing.T) {
		if authCmd == nil {
			t.Fatal("authCmd should not be nil")
		}
	})

	t.Run("auth command properties", func(t *testing.T) {
		if authCmd.Use != "auth" {
			t.Errorf("expected Use 'auth', got %q", authCmd.Use)
		}
		if authCmd.Short == "" {
			t.Error("expected Short description to be set")
		}
		if authCmd.Long == "" {
			t.Error("expected Long description to be set")
		}
	})

	t.Run("auth has subcommands", func(t *testing.T) {
		subcommands := authCmd.Commands()
		if len(subcommands) == 0 {
			t.Error("expected auth to have subcommands")
		}

		expectedSubcommands := []string{"login", "status"}
		foundCommands := make(map[string]bool)
		for _, cmd := range subcommands {
			foundCommands[cmd.Name()] = true
		}

		for _, expected := range expectedSubcommands {
			if !foundCommands[expected] {
				t.Errorf("expected subcommand %q to be registered", expected)
			}
		}
	})

	t.Run("cert-dir persistent flag exists", func(t *testing.T) {
		flag := authCmd.PersistentFlags().Lookup("cert-dir")
		if flag == nil {
			t.Fatal("expected --cert-dir flag to exist")
		}
		if flag.DefValue != "certificates" {
			t.Errorf("expected --cert-dir default 'certificates', got %q", flag.DefValue)
		}
	})
}

func TestAuthCommandHelp(t *testing.T) {
	var buf bytes.Buffer

	// Create a copy of the auth command for testing
	testCmd := &cobra.Command{
		Use:   authCmd.Use,
		Short: authCmd.Short,
		Long:  authCmd.Long,
	}

	testCmd.SetOut(&buf)
	testCmd.SetArgs([]string{"--help"})

	err := testCmd.Execute()
	if err != nil {
		t.Fatalf("Error executing help: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "auth") {
		t.Error("help output should contain 'auth'")
	}
	if !strings.Contains(output, "Spotify") {
		t.Error("help output should contain 'Spotify'")
	}
}

func TestAuthIsRegistered(t *testing.T) {
	commands := rootCmd.Commands()
	found := false
	for _, cmd := range commands {
		if cmd.Name() == "auth" {
			found = true
			break
		}
	}

	if !found {
		t.Error("expected 'auth' command to be registered on root")
	}
}

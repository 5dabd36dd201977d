package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/itisfoundation/osparc-tables/internal/config"
)

// TestConfigCmd tests the config command group
func TestConfigCmd(t *testing.T) {
	cmd := newConfigCmd()
	if cmd == nil {
		t.Fatal("newConfigCmd() returned nil")
	}

	if cmd.Use != "config" {
		t.Errorf("Expected Use='config', got '%s'", cmd.Use)
	}

	subcommands := cmd.Commands()
	expectedSubs := []string{"init", "show", "test", "path"}

	if len(subcommands) != len(expectedSubs) {
		t.Errorf("Expected %d subcommands, got %d", len(expectedSubs), len(subcommands))
	}

	foundSubs := make(map[string]bool)
	for _, sub := range subcommands {
		foundSubs[sub.Name()] = true
		if sub.Short == "" {
			t.Errorf("Subcommand '%s' has no short description", sub.Name())
		}
		if sub.RunE == nil {
			t.Errorf("Subcommand '%s' has no RunE", sub.Name())
		}
	}

	for _, expected := range expectedSubs {
		if !foundSubs[expected] {
			t.Errorf("Subcommand '%s' not found", expected)
		}
	}
}

// TestConfigInit tests the config init command structure
func TestConfigInit(t *testing.T) {
	cmd := newConfigInitCmd()

	if cmd.Use != "init" {
		t.Errorf("Expected Use='init', got '%s'", cmd.Use)
	}

	forceFlag := cmd.Flags().Lookup("force")
	if forceFlag == nil {
		t.Fatal("--force flag not found")
	}
	if forceFlag.Shorthand != "f" {
		t.Errorf("Expected --force shorthand 'f', got '%s'", forceFlag.Shorthand)
	}
}

// TestConfigInitForceOverwrites tests that --force replaces an existing file
func TestConfigInitForceOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apiconfig")

	old := config.Default()
	old.APIKey = "old-key"
	if err := config.SaveAPIConfig(old, path); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	stdin := "\nnew-key\nnew-secret\n\n\nn\nn\n"
	if _, err := runCLI(t, stdin, "--config", path, "config", "init", "--force"); err != nil {
		t.Fatalf("config init failed: %v", err)
	}

	loaded, err := config.LoadAPIConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if loaded.APIKey != "new-key" {
		t.Errorf("APIKey mismatch: expected 'new-key', got '%s'", loaded.APIKey)
	}
	if loaded.APISecret != "new-secret" {
		t.Errorf("APISecret mismatch: expected 'new-secret', got '%s'", loaded.APISecret)
	}
	if loaded.APIBaseURL != config.Default().APIBaseURL {
		t.Errorf("APIBaseURL mismatch: expected default, got '%s'", loaded.APIBaseURL)
	}
}

// TestConfigInitRejectsInvalidProxy tests validation before saving
func TestConfigInitRejectsInvalidProxy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apiconfig")

	stdin := "\nkey\nsecret\n\n\ny\nsocks\nn\n"
	_, err := runCLI(t, stdin, "--config", path, "config", "init")
	if err == nil {
		t.Fatal("Expected an error for an unsupported proxy mode")
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Error("Invalid configuration was written")
	}
}

// TestConfigShowFlagsOverride tests flag priority in config show
func TestConfigShowFlagsOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apiconfig")
	cfg := config.Default()
	cfg.APIBaseURL = "https://file.example"
	if err := config.SaveAPIConfig(cfg, path); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	t.Setenv("OSPARC_API_URL", "https://env.example")
	t.Setenv("OSPARC_API_KEY", "")
	out, err := runCLI(t, "", "--config", path, "--api-url", "https://flag.example", "config", "show")
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	if !strings.Contains(out, "https://flag.example") {
		t.Errorf("Expected flag URL in output, got:\n%s", out)
	}
	if !strings.Contains(out, "API Key:      <not set>") {
		t.Errorf("Expected unset API key in output, got:\n%s", out)
	}
}

// TestConfigPath tests the config path command
func TestConfigPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apiconfig")

	out, err := runCLI(t, "", "--config", path, "config", "path")
	if err != nil {
		t.Fatalf("config path failed: %v", err)
	}
	if !strings.HasPrefix(out, path+"\n") {
		t.Errorf("Expected path first, got:\n%s", out)
	}
	if !strings.Contains(out, "does not exist") {
		t.Errorf("Expected missing file notice, got:\n%s", out)
	}
}

// TestMasked tests that credentials are never echoed
func TestMasked(t *testing.T) {
	if got := masked(""); got != "<not set>" {
		t.Errorf("masked(\"\") = %q", got)
	}
	if got := masked("abcd"); got != "<set (4 chars)>" {
		t.Errorf("masked(\"abcd\") = %q", got)
	}
}

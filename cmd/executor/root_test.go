package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Faith-Rounds/flash-arb-bot/internal/config"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestValidate_OK(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bot.toml", "[bot]\nname = \"arb\"\nmystery = 1\n")

	out, err := execute(t, "validate", "--config", path)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if !strings.Contains(out, "ok") || !strings.Contains(out, "gas_price 200000000") {
		t.Errorf("unexpected output: %s", out)
	}
	if !strings.Contains(out, "warning:") {
		t.Errorf("expected unknown key warning: %s", out)
	}
}

func TestValidate_Failure(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bot.toml", "[bot\nname = ")

	if _, err := execute(t, "validate", "-c", path); err == nil {
		t.Fatal("expected validate to fail on malformed config")
	}
}

func TestConfigPath_Precedence(t *testing.T) {
	dir := t.TempDir()
	envPath := writeFile(t, dir, "env.toml", "[bot]\nname = \"from-env\"\n")
	flagPath := writeFile(t, dir, "flag.toml", "[bot]\nname = \"from-flag\"\n")

	t.Setenv(config.EnvPath, envPath)

	out, err := execute(t, "validate")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "from-env") {
		t.Errorf("expected env path to be used: %s", out)
	}

	out, err = execute(t, "validate", "--config", flagPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "from-flag") {
		t.Errorf("expected flag to override env: %s", out)
	}
}

func TestConfigPath_Default(t *testing.T) {
	// Empty env values are ignored, so the default applies.
	t.Setenv(config.EnvPath, "")

	out, err := execute(t, "validate")
	if err == nil {
		// Only possible when the test runs from a directory that has the file.
		return
	}
	if !strings.Contains(err.Error(), config.DefaultPath) && !strings.Contains(out, config.DefaultPath) {
		t.Errorf("expected default path in error, got %v", err)
	}
}

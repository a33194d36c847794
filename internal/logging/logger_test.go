package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Faith-Rounds/flash-arb-bot/internal/config"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"DEBUG": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"":      slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"bogus": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	slog.New(NewHandler(&buf, "text", slog.LevelInfo)).Info("hello", "k", "v")
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Errorf("expected text output, got %q", buf.String())
	}

	buf.Reset()
	slog.New(NewHandler(&buf, "json", slog.LevelInfo)).Info("hello")
	if !strings.Contains(buf.String(), `"msg":"hello"`) {
		t.Errorf("expected json output, got %q", buf.String())
	}
}

func TestNew_LevelVarControlsVerbosity(t *testing.T) {
	var level slog.LevelVar
	logger, closer, err := New(config.LoggingConfig{Level: "warn", Output: "stderr"}, &level)
	if err != nil {
		t.Fatal(err)
	}
	defer closer.Close()

	if logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be disabled at warn level")
	}

	level.Set(ParseLevel("debug"))
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug should be enabled after level change")
	}
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "executor.log")
	var level slog.LevelVar

	logger, closer, err := New(config.LoggingConfig{
		Level: "info", Format: "json", Output: path,
		MaxSizeMB: 1, MaxBackups: 1, MaxAgeDays: 1,
	}, &level)
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("written to file")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("expected log line in file, got %q", data)
	}
}

package main

import (
	"strings"
	"testing"
	"time"

	"github.com/Faith-Rounds/flash-arb-bot/internal/auth"
	"github.com/Faith-Rounds/flash-arb-bot/internal/config"
)

func TestMintToken_AcceptedByAuth(t *testing.T) {
	cfg := config.AuthConfig{
		Enabled:   true,
		JWTSecret: "token-test-secret",
		Issuer:    "flash-arb-ops",
		Audience:  "executor",
		Scope:     "config:reload",
	}

	token, err := mintToken(cfg, "alice", time.Hour, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	claims, err := auth.Validate(token, cfg)
	if err != nil {
		t.Fatalf("minted token rejected: %v", err)
	}
	if claims.Subject != "alice" {
		t.Errorf("sub = %q, want alice", claims.Subject)
	}
}

func TestMintToken_Errors(t *testing.T) {
	if _, err := mintToken(config.AuthConfig{}, "ops", time.Hour, time.Now()); err == nil {
		t.Error("expected error without secret")
	}
	if _, err := mintToken(config.AuthConfig{JWTSecret: "x"}, "ops", 0, time.Now()); err == nil {
		t.Error("expected error for zero ttl")
	}
}

func TestTokenCommand(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bot.toml", `[bot]
name = "arb"

[admin]
enabled = true
ip_allowlist = ["127.0.0.0/8"]

[admin.auth]
enabled = true
jwt_secret = "cmd-secret"
issuer = "flash-arb-ops"
audience = "executor"
`)

	out, err := execute(t, "token", "--config", path, "--subject", "bob", "--ttl", "5m")
	if err != nil {
		t.Fatal(err)
	}

	token := strings.TrimSpace(out)
	if strings.Count(token, ".") != 2 {
		t.Fatalf("expected a JWT, got %q", token)
	}
	if _, err := auth.Validate(token, config.AuthConfig{
		JWTSecret: "cmd-secret",
		Issuer:    "flash-arb-ops",
		Audience:  "executor",
		Scope:     "config:reload",
	}); err != nil {
		t.Errorf("token not valid for default scope: %v", err)
	}
}

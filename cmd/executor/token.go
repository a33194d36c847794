package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/Faith-Rounds/flash-arb-bot/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// newTokenCmd mints a bearer token for POST /admin/reload, signed with the
// jwt_secret from the config file.
func newTokenCmd(v *viper.Viper) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print an admin bearer token for the configured [admin.auth] settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath(v))
			if err != nil {
				return err
			}
			token, err := mintToken(cfg.Admin.Auth, subject, ttl, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "ops", "token subject (sub claim)")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}

func mintToken(auth config.AuthConfig, subject string, ttl time.Duration, now time.Time) (string, error) {
	if auth.JWTSecret == "" {
		return "", errors.New("admin.auth.jwt_secret is not set")
	}
	if ttl <= 0 {
		return "", errors.New("ttl must be positive")
	}

	claims := jwt.MapClaims{
		"sub":   subject,
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
		"scope": auth.Scope,
	}
	if auth.Issuer != "" {
		claims["iss"] = auth.Issuer
	}
	if auth.Audience != "" {
		claims["aud"] = auth.Audience
	}

	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(auth.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return s, nil
}

// Package auth guards mutating admin endpoints with HS256 JWT bearer tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/Faith-Rounds/flash-arb-bot/internal/apierror"
	"github.com/Faith-Rounds/flash-arb-bot/internal/config"
	"github.com/Faith-Rounds/flash-arb-bot/internal/metrics"
	"github.com/golang-jwt/jwt/v5"
)

type contextKey struct{}

// Claims are the validated token claims stored in the request context.
type Claims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// Scopes splits the space-separated OAuth2 scope claim.
func (c *Claims) Scopes() []string {
	return strings.Fields(c.Scope)
}

// FromContext returns the claims attached by Middleware, if any.
func FromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(contextKey{}).(*Claims)
	return c, ok
}

// ScopeError indicates the token is valid but lacks the required scope.
type ScopeError struct {
	MissingScope string
}

func (e *ScopeError) Error() string {
	return fmt.Sprintf("missing required scope: %s", e.MissingScope)
}

// Middleware validates the bearer token on every request it wraps. When
// cfg.Enabled is false requests pass through untouched.
func Middleware(cfg config.AuthConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !cfg.Enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, ok := bearerToken(r)
			if !ok {
				metrics.AdminRejections.WithLabelValues("missing_token").Inc()
				apierror.WriteJSON(w, r, http.StatusUnauthorized, apierror.AuthMissingToken, apierror.MsgMissingToken)
				return
			}

			claims, err := Validate(tokenStr, cfg)
			if err != nil {
				logger.Warn("admin auth failure", "error", err, "path", r.URL.Path)
				var se *ScopeError
				if errors.As(err, &se) {
					metrics.AdminRejections.WithLabelValues("insufficient_scope").Inc()
					apierror.WriteJSON(w, r, http.StatusForbidden, apierror.AuthInsufficientScope, err.Error())
				} else {
					metrics.AdminRejections.WithLabelValues("invalid_token").Inc()
					apierror.WriteJSON(w, r, http.StatusUnauthorized, apierror.AuthInvalidToken, err.Error())
				}
				return
			}

			ctx := context.WithValue(r.Context(), contextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Validate parses tokenStr and checks signature, expiry, issuer, audience
// and scope against cfg. Issuer and audience are only checked when set.
func Validate(tokenStr string, cfg config.AuthConfig) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return []byte(cfg.JWTSecret), nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	if cfg.Scope != "" && !slices.Contains(claims.Scopes(), cfg.Scope) {
		return nil, &ScopeError{MissingScope: cfg.Scope}
	}
	return claims, nil
}

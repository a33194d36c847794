// Package admin provides the admin API: inspection of the active
// configuration and an on-demand reload. All endpoints are protected by an
// IP allowlist; the reload endpoint is additionally rate limited and, when
// configured, requires a JWT bearer token.
package admin

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/url"

	"github.com/Faith-Rounds/flash-arb-bot/internal/apierror"
	"github.com/Faith-Rounds/flash-arb-bot/internal/auth"
	"github.com/Faith-Rounds/flash-arb-bot/internal/config"
	"github.com/Faith-Rounds/flash-arb-bot/internal/metrics"
	"github.com/Faith-Rounds/flash-arb-bot/internal/ratelimit"
	"github.com/Faith-Rounds/flash-arb-bot/internal/reload"
)

const redacted = "***"

// SnapshotSource abstracts config access for testability.
type SnapshotSource interface {
	Snapshot() config.Snapshot
}

// Reloader runs a synchronous reload.
type Reloader interface {
	Reload(t reload.Trigger) error
}

// Handler provides admin API endpoints.
type Handler struct {
	configs     SnapshotSource
	reloader    Reloader
	limiter     *ratelimit.Limiter
	auth        config.AuthConfig
	allowedNets []*net.IPNet
	logger      *slog.Logger
}

// New creates an admin Handler from the startup admin settings. The
// allowlist CIDRs are validated by config loading; unparsable entries are
// skipped.
func New(configs SnapshotSource, reloader Reloader, limiter *ratelimit.Limiter, cfg config.AdminConfig, logger *slog.Logger) *Handler {
	nets := make([]*net.IPNet, 0, len(cfg.IPAllowlist))
	for _, cidr := range cfg.IPAllowlist {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			continue
		}
		nets = append(nets, ipNet)
	}
	return &Handler{
		configs:     configs,
		reloader:    reloader,
		limiter:     limiter,
		auth:        cfg.Auth,
		allowedNets: nets,
		logger:      logger,
	}
}

// RegisterRoutes adds admin routes to the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("GET /admin/config", h.guard(http.HandlerFunc(h.configHandler)))

	var reloadHandler http.Handler = http.HandlerFunc(h.reloadHandler)
	reloadHandler = auth.Middleware(h.auth, h.logger)(reloadHandler)
	reloadHandler = h.limiter.Middleware()(reloadHandler)
	mux.Handle("POST /admin/reload", h.guard(reloadHandler))
}

// guard rejects clients outside the allowlist.
func (h *Handler) guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ratelimit.ClientIP(r)
		if !h.isAllowed(ip) {
			h.logger.Warn("admin access denied", "client_ip", ip, "path", r.URL.Path)
			metrics.AdminRejections.WithLabelValues("forbidden").Inc()
			apierror.WriteJSON(w, r, http.StatusForbidden, apierror.Forbidden, apierror.MsgForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) isAllowed(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	for _, n := range h.allowedNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

type configResponse struct {
	Version uint64         `json:"version"`
	Config  *config.Config `json:"config"`
}

func (h *Handler) configHandler(w http.ResponseWriter, r *http.Request) {
	snap := h.configs.Snapshot()
	writeJSON(w, http.StatusOK, configResponse{
		Version: snap.Version,
		Config:  redact(snap.Config),
	})
}

// redact returns a copy of cfg with secrets masked. cfg itself is shared
// with readers and is never modified.
func redact(cfg *config.Config) *config.Config {
	out := *cfg
	if out.Admin.Auth.JWTSecret != "" {
		out.Admin.Auth.JWTSecret = redacted
	}
	out.Bot.RPCURL = redactURL(out.Bot.RPCURL)
	return &out
}

// redactURL keeps the scheme and host of an RPC endpoint. Credentials, path
// and query often carry provider API keys.
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return redacted
	}
	clean := url.URL{Scheme: u.Scheme, Host: u.Host}
	if u.User != nil || (u.Path != "" && u.Path != "/") || u.RawQuery != "" {
		return clean.String() + "/" + redacted
	}
	return clean.String()
}

type reloadResponse struct {
	Status  string `json:"status"`
	Version uint64 `json:"version"`
}

func (h *Handler) reloadHandler(w http.ResponseWriter, r *http.Request) {
	subject := ""
	if claims, ok := auth.FromContext(r.Context()); ok {
		subject = claims.Subject
	}
	h.logger.Info("admin reload requested",
		"client_ip", ratelimit.ClientIP(r),
		"subject", subject,
		"request_id", r.Header.Get("X-Request-ID"),
	)

	before := h.configs.Snapshot().Version
	if err := h.reloader.Reload(reload.TriggerAdmin); err != nil {
		apierror.WriteJSON(w, r, http.StatusUnprocessableEntity, apierror.ReloadFailed, err.Error())
		return
	}

	after := h.configs.Snapshot().Version
	status := "reloaded"
	if after == before {
		status = "unchanged"
	}
	writeJSON(w, http.StatusOK, reloadResponse{Status: status, Version: after})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

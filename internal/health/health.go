// Package health provides the liveness, monitoring and reload status
// HTTP handlers. They only read shared state and report "ok" as long as the
// process is serving, whatever the outcome of the last reload.
package health

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/Faith-Rounds/flash-arb-bot/internal/config"
	"github.com/Faith-Rounds/flash-arb-bot/internal/reload"
)

// Pre-serialized monitoring response avoids json.Encoder allocation.
var monitoringBody = []byte(`{"health":"ok","monitoring":"active"}` + "\n")

// SnapshotSource abstracts config access for testability.
type SnapshotSource interface {
	Snapshot() config.Snapshot
}

// StatusSource abstracts reload state access for testability.
type StatusSource interface {
	Status() reload.Status
}

// Handler provides /health, /metrics and /status endpoints.
type Handler struct {
	configs SnapshotSource
	reloads StatusSource
	started time.Time
	logger  *slog.Logger
}

// New creates a health Handler. started is the process start time used to
// compute uptime.
func New(configs SnapshotSource, reloads StatusSource, started time.Time, logger *slog.Logger) *Handler {
	return &Handler{configs: configs, reloads: reloads, started: started, logger: logger}
}

// RegisterRoutes adds the health routes to the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.liveness)
	mux.HandleFunc("GET /metrics", h.monitoring)
	mux.HandleFunc("GET /status", h.status)
}

type livenessResponse struct {
	Status    string `json:"status"`
	Uptime    int64  `json:"uptime"`
	StartedAt int64  `json:"started_at"`
}

func (h *Handler) liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, livenessResponse{
		Status:    "ok",
		Uptime:    int64(time.Since(h.started).Seconds()),
		StartedAt: h.started.Unix(),
	})
}

func (h *Handler) monitoring(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(monitoringBody) //nolint:errcheck
}

type statusResponse struct {
	Status            string        `json:"status"`
	Bot               string        `json:"bot"`
	ConfigVersion     uint64        `json:"config_version"`
	ConfigInstalledAt time.Time     `json:"config_installed_at"`
	Reload            reload.Status `json:"reload"`
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	snap := h.configs.Snapshot()
	st := h.reloads.Status()
	if st.LastError != "" {
		h.logger.Debug("status requested with failing reload", "last_error", st.LastError)
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Status:            "ok",
		Bot:               snap.Config.Bot.Name,
		ConfigVersion:     snap.Version,
		ConfigInstalledAt: snap.InstalledAt,
		Reload:            st,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// Package reload implements live configuration reloading. A Watcher
// (fsnotify) and a SignalBridge (SIGHUP on Unix) both produce reload
// requests that funnel into a single Coordinator, which re-reads the file
// and swaps the result into the shared config.Store.
//
// Reloads are serialized. A request that arrives while a reload is running
// is held as a single pending request and processed once the running reload
// finishes, so a burst of triggers always ends with the latest file
// contents applied.
package reload

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/Faith-Rounds/flash-arb-bot/internal/config"
	"github.com/Faith-Rounds/flash-arb-bot/internal/metrics"
)

// Trigger identifies what asked for a reload. It only labels logs and
// metrics; every trigger takes the same reload path.
type Trigger string

const (
	TriggerFile     Trigger = "file"
	TriggerSignal   Trigger = "signal"
	TriggerSchedule Trigger = "schedule"
	TriggerAdmin    Trigger = "admin"
)

// Coordinator is the only place that performs a reload.
type Coordinator struct {
	path   string
	store  *config.Store
	state  *State
	logger *slog.Logger
	load   func(path string) (*config.Config, error)

	mu       sync.Mutex // held for the whole reload
	requests chan Trigger

	cbMu      sync.RWMutex
	callbacks []func(*config.Config)
}

// NewCoordinator creates a Coordinator that reloads path into store and
// records activity in state.
func NewCoordinator(path string, store *config.Store, state *State, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		path:     path,
		store:    store,
		state:    state,
		logger:   logger,
		load:     config.Load,
		requests: make(chan Trigger, 1),
	}
}

// Path returns the watched configuration file path.
func (c *Coordinator) Path() string { return c.path }

// State returns the reload activity tracker.
func (c *Coordinator) State() *State { return c.state }

// OnReload registers a callback that is invoked with the new config
// after a successful reload.
func (c *Coordinator) OnReload(fn func(*config.Config)) {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	c.callbacks = append(c.callbacks, fn)
}

// Request asks for a reload without waiting for it. If a request is
// already pending the new one is folded into it.
func (c *Coordinator) Request(t Trigger) {
	select {
	case c.requests <- t:
		c.logger.Debug("reload requested", "trigger", t)
	default:
		metrics.ReloadsCoalesced.Inc()
		c.logger.Debug("reload already pending, coalescing request", "trigger", t)
	}
}

// Run processes requests until ctx is cancelled. It always returns nil so
// it can sit in an errgroup next to the HTTP server.
func (c *Coordinator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-c.requests:
			c.Reload(t) //nolint:errcheck // failures are logged and recorded in State
		}
	}
}

// Reload re-reads the configuration file and, if it parses, swaps it into
// the store and notifies callbacks. On failure the current configuration
// stays active and the error is returned. Safe for concurrent use; calls
// are serialized.
func (c *Coordinator) Reload(t Trigger) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.Begin()
	metrics.ReloadInProgress.Set(1)
	start := time.Now()

	// A panicking callback must not leave the reload marked in progress.
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("config reload panicked", "path", c.path, "trigger", t, "panic", r)
			c.finish(fmt.Errorf("reload panicked: %v", r))
			panic(r)
		}
	}()

	c.logger.Info("reloading configuration", "path", c.path, "trigger", t)

	newCfg, err := c.load(c.path)
	metrics.ReloadDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.logger.Error("config reload failed, keeping current",
			"path", c.path, "trigger", t, "error", err)
		metrics.ReloadsTotal.WithLabelValues(string(t), "failure").Inc()
		c.finish(err)
		return err
	}

	for _, w := range newCfg.Warnings {
		c.logger.Warn("config warning", "message", w)
	}

	old := c.store.Current()
	if reflect.DeepEqual(old, newCfg) {
		c.logger.Info("configuration unchanged", "path", c.path, "version", c.store.Version())
		metrics.ReloadsTotal.WithLabelValues(string(t), "unchanged").Inc()
		c.finish(nil)
		return nil
	}

	version := c.store.Replace(newCfg)
	metrics.ConfigVersion.Set(float64(version))
	metrics.LastReloadSuccess.SetToCurrentTime()
	metrics.ReloadsTotal.WithLabelValues(string(t), "success").Inc()

	c.logChanges(old, newCfg)

	c.cbMu.RLock()
	callbacks := make([]func(*config.Config), len(c.callbacks))
	copy(callbacks, c.callbacks)
	c.cbMu.RUnlock()

	for _, cb := range callbacks {
		cb(newCfg)
	}

	c.finish(nil)
	c.logger.Info("configuration reloaded successfully", "version", version, "trigger", t)
	return nil
}

func (c *Coordinator) finish(err error) {
	c.state.End(err)
	metrics.ReloadInProgress.Set(0)
}

// logChanges logs a summary of what changed between the old and new config.
func (c *Coordinator) logChanges(old, new *config.Config) {
	if old.Bot.Name != new.Bot.Name {
		c.logger.Info("bot name changed", "old", old.Bot.Name, "new", new.Bot.Name)
	}
	if old.Bot.GasPrice != new.Bot.GasPrice {
		c.logger.Info("gas price changed", "old", old.Bot.GasPrice, "new", new.Bot.GasPrice)
	}
	if old.Bot.RPCURL != new.Bot.RPCURL {
		c.logger.Info("rpc url changed")
	}
	if old.Logging.Level != new.Logging.Level {
		c.logger.Info("log level changed", "old", old.Logging.Level, "new", new.Logging.Level)
	}
	if old.Admin.ReloadPerMinute != new.Admin.ReloadPerMinute || old.Admin.ReloadBurst != new.Admin.ReloadBurst {
		c.logger.Info("admin reload limit changed",
			"old_per_minute", old.Admin.ReloadPerMinute,
			"new_per_minute", new.Admin.ReloadPerMinute,
			"old_burst", old.Admin.ReloadBurst,
			"new_burst", new.Admin.ReloadBurst,
		)
	}

	// These sections are only read at startup.
	if old.Server != new.Server {
		c.logger.Warn("server settings changed; requires restart to take effect")
	}
	if old.Logging.Format != new.Logging.Format || old.Logging.Output != new.Logging.Output {
		c.logger.Warn("log output settings changed; requires restart to take effect")
	}
	if !reflect.DeepEqual(old.Reload, new.Reload) {
		c.logger.Warn("reload settings changed; requires restart to take effect")
	}
	if old.Admin.Enabled != new.Admin.Enabled || !reflect.DeepEqual(old.Admin.IPAllowlist, new.Admin.IPAllowlist) ||
		old.Admin.Auth != new.Admin.Auth {
		c.logger.Warn("admin settings changed; requires restart to take effect")
	}
}

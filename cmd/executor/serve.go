package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Faith-Rounds/flash-arb-bot/internal/admin"
	"github.com/Faith-Rounds/flash-arb-bot/internal/config"
	"github.com/Faith-Rounds/flash-arb-bot/internal/health"
	"github.com/Faith-Rounds/flash-arb-bot/internal/logging"
	"github.com/Faith-Rounds/flash-arb-bot/internal/metrics"
	"github.com/Faith-Rounds/flash-arb-bot/internal/middleware"
	"github.com/Faith-Rounds/flash-arb-bot/internal/ratelimit"
	"github.com/Faith-Rounds/flash-arb-bot/internal/reload"
	"github.com/Faith-Rounds/flash-arb-bot/internal/tlsutil"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/automaxprocs/maxprocs"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the executor and serve health, status and admin endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, v)
		},
	}
}

func runServe(cmd *cobra.Command, v *viper.Viper) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return run(ctx, serveOptions{
		configPath: configPath(v),
		started:    time.Now(),
		listen:     net.Listen,
	})
}

type serveOptions struct {
	configPath string
	started    time.Time

	// listen is swapped in tests to observe whether a bind happened.
	listen func(network, addr string) (net.Listener, error)

	// ready, if set, receives the bound listener address once serving.
	ready func(addr net.Addr)
}

// run starts the executor and blocks until ctx is cancelled or the server
// fails. The initial config load happens before anything else, so a bad
// config never results in a bound port.
func run(ctx context.Context, opts serveOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading initial config: %w", err)
	}

	var level slog.LevelVar
	logger, logCloser, err := logging.New(cfg.Logging, &level)
	if err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}
	defer logCloser.Close()

	undoProcs, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		logger.Debug(fmt.Sprintf(format, args...))
	}))
	defer undoProcs()
	if err != nil {
		logger.Warn("could not adjust GOMAXPROCS", "error", err)
	}

	for _, w := range cfg.Warnings {
		logger.Warn("config warning", "message", w)
	}
	logger.Info("configuration loaded",
		"path", opts.configPath,
		"bot", cfg.Bot.Name,
		"gas_price", cfg.Bot.GasPrice,
		"addr", cfg.Server.Addr,
		"watch", cfg.Reload.WatchEnabled(),
		"schedule", cfg.Reload.Schedule,
		"admin_enabled", cfg.Admin.Enabled,
	)

	metrics.Init()

	store := config.NewStore(cfg)
	metrics.ConfigVersion.Set(float64(store.Version()))
	state := reload.NewState()
	coord := reload.NewCoordinator(opts.configPath, store, state, logger)

	var limiter *ratelimit.Limiter
	if cfg.Admin.Enabled {
		limiter = ratelimit.New(cfg.Admin.ReloadPerMinute, cfg.Admin.ReloadBurst, logger)
		defer limiter.Stop()
	}

	coord.OnReload(func(c *config.Config) {
		level.Set(logging.ParseLevel(c.Logging.Level))
		if limiter != nil {
			limiter.UpdateConfig(c.Admin.ReloadPerMinute, c.Admin.ReloadBurst)
		}
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Every trigger goes through the bridge so there is one path into the
	// coordinator.
	bridge := reload.NewSignalBridge(logger)
	bridge.Start(ctx, coord.Request)

	if cfg.Reload.WatchEnabled() {
		w := reload.NewWatcher(opts.configPath, cfg.Reload.Debounce, logger)
		if err := w.Start(ctx, func() { bridge.NotifySelf(reload.TriggerFile) }); err != nil {
			logger.Error("config file watcher unavailable, continuing without file-triggered reload",
				"path", opts.configPath, "error", err)
		}
	}

	if cfg.Reload.Schedule != "" {
		sched, err := reload.NewScheduler(cfg.Reload.Schedule, logger)
		if err != nil {
			return err
		}
		sched.Start(ctx, bridge.NotifySelf)
	}

	var certs *tlsutil.CertLoader
	if cfg.Server.TLSEnabled() {
		certs, err = tlsutil.New(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile, cfg.Reload.Debounce, logger)
		if err != nil {
			return err
		}
		if err := certs.Start(ctx); err != nil {
			logger.Error("certificate watcher unavailable, rotation requires restart", "error", err)
		}
	}

	ln, err := opts.listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("binding %s: %w", cfg.Server.Addr, err)
	}
	if certs != nil {
		ln = tls.NewListener(ln, certs.TLSConfig())
	}

	srv := &http.Server{
		Handler:      newHandler(cfg, store, state, coord, limiter, opts.started, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return coord.Run(gctx)
	})

	g.Go(func() error {
		logger.Info("starting executor", "addr", ln.Addr().String(), "tls", certs != nil)
		if opts.ready != nil {
			opts.ready(ln.Addr())
		}
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("draining in-flight requests", "timeout", cfg.Server.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("forced shutdown: %w", err)
		}
		return nil
	})

	err = g.Wait()
	if err != nil {
		logger.Error("executor stopped with error", "error", err)
		return err
	}
	logger.Info("executor stopped gracefully")
	return nil
}

// newHandler assembles the mux and middleware chain:
// RequestID → Logging → Recovery → SecurityHeaders → mux.
func newHandler(
	cfg *config.Config,
	store *config.Store,
	state *reload.State,
	coord *reload.Coordinator,
	limiter *ratelimit.Limiter,
	started time.Time,
	logger *slog.Logger,
) http.Handler {
	mux := http.NewServeMux()
	health.New(store, state, started, logger).RegisterRoutes(mux)
	mux.Handle("GET "+cfg.Server.PrometheusPath, metrics.Handler())

	known := []string{"/health", "/metrics", "/status", cfg.Server.PrometheusPath}
	if cfg.Admin.Enabled {
		admin.New(store, coord, limiter, cfg.Admin, logger).RegisterRoutes(mux)
		known = append(known, "/admin/config", "/admin/reload")
		logger.Info("admin endpoints registered", "allowlist", cfg.Admin.IPAllowlist, "auth", cfg.Admin.Auth.Enabled)
	}

	return middleware.Chain(mux,
		middleware.RequestID,
		middleware.Logging(logger, known...),
		middleware.Recovery(logger),
		middleware.SecurityHeaders,
	)
}

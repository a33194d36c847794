package reload

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
)

// SignalBridge turns the external reload signal into reload requests. The
// file watcher and the scheduler push through NotifySelf, so every trigger
// reaches the Coordinator through the same forwarding loop.
type SignalBridge struct {
	signals []os.Signal
	self    chan Trigger
	logger  *slog.Logger
}

// NewSignalBridge creates a bridge listening for sigs, or for the
// platform's reload signal (SIGHUP on Unix, none on Windows) when sigs is
// empty.
func NewSignalBridge(logger *slog.Logger, sigs ...os.Signal) *SignalBridge {
	if len(sigs) == 0 {
		sigs = reloadSignals()
	}
	return &SignalBridge{
		signals: sigs,
		self:    make(chan Trigger, 1),
		logger:  logger,
	}
}

// Start subscribes to the reload signal before returning, then forwards
// every signal and self-notification to onRequest until ctx is cancelled.
func (b *SignalBridge) Start(ctx context.Context, onRequest func(Trigger)) {
	var sigCh chan os.Signal
	if len(b.signals) > 0 {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, b.signals...)
		b.logger.Info("reload signal handler registered", "signals", signalNames(b.signals))
	} else {
		b.logger.Info("no reload signal on this platform, using file watcher and admin API only")
	}

	go func() {
		if sigCh != nil {
			defer signal.Stop(sigCh)
		}
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-sigCh:
				b.logger.Info("reload signal received", "signal", sig.String())
				b.forward(onRequest, TriggerSignal)
			case t := <-b.self:
				b.forward(onRequest, t)
			}
		}
	}()
}

// NotifySelf raises a reload notification from inside the process. It
// never blocks; if a notification is already queued this one is dropped,
// since the queued one will re-read the same file.
func (b *SignalBridge) NotifySelf(t Trigger) {
	select {
	case b.self <- t:
	default:
		b.logger.Debug("reload notification already queued", "trigger", t)
	}
}

func (b *SignalBridge) forward(onRequest func(Trigger), t Trigger) {
	if onRequest == nil {
		b.logger.Warn("reload notification ignored, no handler", "trigger", t)
		return
	}
	onRequest(t)
}

func signalNames(sigs []os.Signal) []string {
	names := make([]string, len(sigs))
	for i, s := range sigs {
		names[i] = s.String()
	}
	return names
}

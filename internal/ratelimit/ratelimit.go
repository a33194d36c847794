// Package ratelimit provides per-client-IP token bucket limiting for the
// admin endpoints.
package ratelimit

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Faith-Rounds/flash-arb-bot/internal/apierror"
	"github.com/Faith-Rounds/flash-arb-bot/internal/metrics"
	"golang.org/x/time/rate"
)

const staleAfter = 3 * time.Minute

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter tracks one token bucket per client IP. Rates are expressed per
// minute because admin reloads are rare.
type Limiter struct {
	mu        sync.Mutex
	clients   map[string]*client
	perMinute float64
	burst     int
	logger    *slog.Logger
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// New creates a Limiter allowing perMinute requests per client with the
// given burst, and starts a goroutine that evicts idle clients.
func New(perMinute float64, burst int, logger *slog.Logger) *Limiter {
	l := &Limiter{
		clients:   make(map[string]*client),
		perMinute: perMinute,
		burst:     burst,
		logger:    logger,
		stopCh:    make(chan struct{}),
	}
	go l.cleanup()
	return l
}

// Stop terminates the cleanup goroutine. Safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

// UpdateConfig applies new limits. Existing buckets are dropped so the new
// limits take effect on the next request.
func (l *Limiter) UpdateConfig(perMinute float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.perMinute == perMinute && l.burst == burst {
		return
	}
	l.perMinute = perMinute
	l.burst = burst
	l.clients = make(map[string]*client)
	l.logger.Info("admin rate limit updated", "per_minute", perMinute, "burst", burst)
}

// Allow reports whether a request from ip may proceed.
func (l *Limiter) Allow(ip string) bool {
	return l.limiterFor(ip).Allow()
}

// Middleware rejects requests over the limit with 429 and a Retry-After
// header.
func (l *Limiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			if !l.Allow(ip) {
				l.logger.Warn("rate limit exceeded", "client_ip", ip, "path", r.URL.Path)
				metrics.AdminRejections.WithLabelValues("rate_limited").Inc()
				w.Header().Set("Retry-After", l.retryAfter())
				apierror.WriteJSON(w, r, http.StatusTooManyRequests, apierror.RateLimitExceeded, apierror.MsgRateLimitExceeded)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the host part of r.RemoteAddr.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (l *Limiter) retryAfter() string {
	l.mu.Lock()
	perMinute := l.perMinute
	l.mu.Unlock()
	if perMinute <= 0 {
		return "60"
	}
	secs := 60 / perMinute
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatFloat(secs, 'f', 0, 64)
}

func (l *Limiter) limiterFor(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if c, ok := l.clients[ip]; ok {
		c.lastSeen = time.Now()
		return c.limiter
	}

	limiter := rate.NewLimiter(rate.Limit(l.perMinute/60), l.burst)
	l.clients[ip] = &client{limiter: limiter, lastSeen: time.Now()}
	return limiter
}

func (l *Limiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.evictIdle(time.Now())
		case <-l.stopCh:
			return
		}
	}
}

func (l *Limiter) evictIdle(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, c := range l.clients {
		if now.Sub(c.lastSeen) > staleAfter {
			delete(l.clients, ip)
		}
	}
}

package reload

import (
	"sync"
	"sync/atomic"
	"time"
)

// State records reload activity for observers. The in-progress flag is
// advisory: it reports what the Coordinator is doing and is never used to
// decide whether a reload may run.
type State struct {
	reloading atomic.Bool

	mu          sync.RWMutex
	attempts    uint64
	failures    uint64
	lastAttempt time.Time
	lastSuccess time.Time
	lastErr     string
}

// Status is a point-in-time copy of State.
type Status struct {
	Reloading   bool      `json:"reloading"`
	Attempts    uint64    `json:"attempts"`
	Failures    uint64    `json:"failures"`
	LastAttempt time.Time `json:"last_attempt"`
	LastSuccess time.Time `json:"last_success"`
	LastError   string    `json:"last_error,omitempty"`
}

// NewState returns an idle State.
func NewState() *State {
	return &State{}
}

// Begin marks a reload attempt as started.
func (s *State) Begin() {
	s.mu.Lock()
	s.attempts++
	s.lastAttempt = time.Now()
	s.mu.Unlock()
	s.reloading.Store(true)
}

// End marks the current attempt as finished. A nil err records a success
// and clears the last error.
func (s *State) End(err error) {
	s.mu.Lock()
	if err != nil {
		s.failures++
		s.lastErr = err.Error()
	} else {
		s.lastSuccess = time.Now()
		s.lastErr = ""
	}
	s.mu.Unlock()
	s.reloading.Store(false)
}

// InProgress reports whether a reload is currently running.
func (s *State) InProgress() bool {
	return s.reloading.Load()
}

// Status returns a copy of the recorded reload activity.
func (s *State) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{
		Reloading:   s.reloading.Load(),
		Attempts:    s.attempts,
		Failures:    s.failures,
		LastAttempt: s.lastAttempt,
		LastSuccess: s.lastSuccess,
		LastError:   s.lastErr,
	}
}

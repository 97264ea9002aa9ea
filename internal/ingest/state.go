package ingest

import (
	"sync"
	"time"

	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/metrics"
)

type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateBackingOff
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateBackingOff:
		return "backing-off"
	default:
		return "disconnected"
	}
}

func (s ConnState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status is a point-in-time view of one source's connection.
type Status struct {
	Source         string    `json:"source"`
	State          ConnState `json:"state"`
	LastHeartbeat  time.Time `json:"lastHeartbeat"`
	BackoffSeconds float64   `json:"backoffSeconds"`
	Stale          bool      `json:"stale"`
	Message        string    `json:"message,omitempty"`
	LastError      string    `json:"lastError,omitempty"`
}

// Notifier receives every status transition.
type Notifier interface {
	Notify(Status)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Status)

func (f NotifierFunc) Notify(s Status) { f(s) }

// Tracker records the connection state of one source. The stream channel
// writes it; the polling channel and the status API read it.
type Tracker struct {
	mu       sync.Mutex
	status   Status
	notifier Notifier
	now      func() time.Time
}

func NewTracker(source string, notifier Notifier) *Tracker {
	t := &Tracker{notifier: notifier, now: time.Now}
	t.status = Status{Source: source, LastHeartbeat: t.now()}
	return t
}

func (t *Tracker) Snapshot() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *Tracker) LastHeartbeat() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status.LastHeartbeat
}

// Heartbeat refreshes the liveness timestamp and clears staleness.
func (t *Tracker) Heartbeat() {
	t.mu.Lock()
	t.status.LastHeartbeat = t.now()
	wasStale := t.status.Stale
	t.status.Stale = false
	t.status.Message = ""
	s := t.status
	t.mu.Unlock()

	if wasStale {
		metrics.StreamStale.WithLabelValues(s.Source).Set(0)
		t.publish(s)
	}
}

// Connected marks a successful connect, resets the heartbeat and ends any
// staleness episode. next is the wait the following failure would use.
func (t *Tracker) Connected(next time.Duration) {
	var wasStale bool
	t.update(func(s *Status) {
		wasStale = s.Stale
		s.State = StateConnected
		s.BackoffSeconds = next.Seconds()
		s.LastHeartbeat = t.now()
		s.Stale = false
		s.Message = ""
		s.LastError = ""
	})
	if wasStale {
		metrics.StreamStale.WithLabelValues(t.Snapshot().Source).Set(0)
	}
}

func (t *Tracker) Connecting() {
	t.update(func(s *Status) { s.State = StateConnecting })
}

func (t *Tracker) BackingOff(wait time.Duration, cause error) {
	t.update(func(s *Status) {
		s.State = StateBackingOff
		s.BackoffSeconds = wait.Seconds()
		if cause != nil {
			s.LastError = cause.Error()
		}
	})
}

func (t *Tracker) Disconnected() {
	t.update(func(s *Status) { s.State = StateDisconnected })
}

// MarkStale publishes an informational staleness message. It is a no-op
// when the source is already marked stale.
func (t *Tracker) MarkStale(message string) bool {
	t.mu.Lock()
	if t.status.Stale {
		t.mu.Unlock()
		return false
	}
	t.status.Stale = true
	t.status.Message = message
	s := t.status
	t.mu.Unlock()

	metrics.StreamStale.WithLabelValues(s.Source).Set(1)
	t.publish(s)
	return true
}

func (t *Tracker) update(fn func(*Status)) {
	t.mu.Lock()
	fn(&t.status)
	s := t.status
	t.mu.Unlock()

	metrics.StreamState.WithLabelValues(s.Source).Set(float64(s.State))
	t.publish(s)
}

func (t *Tracker) publish(s Status) {
	if t.notifier != nil {
		t.notifier.Notify(s)
	}
}

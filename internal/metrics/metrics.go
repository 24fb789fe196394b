// Package metrics provides lightweight, lock-free counters for tracking
// what the listener's sessions did.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks runtime metrics for one insitu process.
// A nil Collector is safe to use — all methods become no-ops.
type Collector struct {
	sessionsActive   atomic.Int64
	sessionsTotal    atomic.Int64
	bytesIn          atomic.Int64
	bytesOut         atomic.Int64
	parseFailures    atomic.Int64
	callbacksOpened  atomic.Int64
	callbackFailures atomic.Int64
	echoes           atomic.Int64
	errorsTotal      atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	lastError    time.Time
	lastErrorMsg string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Session metrics ──────────────────────────────────────────────────

// SessionOpened increments both the active and total counters.
func (c *Collector) SessionOpened() {
	if c == nil {
		return
	}
	c.sessionsActive.Add(1)
	c.sessionsTotal.Add(1)
}

// SessionClosed decrements the active session counter.
func (c *Collector) SessionClosed() {
	if c == nil {
		return
	}
	c.sessionsActive.Add(-1)
}

// ActiveSessions returns the number of sessions currently running.
func (c *Collector) ActiveSessions() int64 {
	if c == nil {
		return 0
	}
	return c.sessionsActive.Load()
}

// TotalSessions returns the lifetime session count.
func (c *Collector) TotalSessions() int64 {
	if c == nil {
		return 0
	}
	return c.sessionsTotal.Load()
}

// ── I/O metrics ──────────────────────────────────────────────────────

// BytesReceived records n bytes read from an inbound connection.
func (c *Collector) BytesReceived(n int64) {
	if c == nil {
		return
	}
	c.bytesIn.Add(n)
}

// BytesSent records n bytes echoed to an inbound connection.
func (c *Collector) BytesSent(n int64) {
	if c == nil {
		return
	}
	c.bytesOut.Add(n)
}

// TotalBytesIn returns total bytes received.
func (c *Collector) TotalBytesIn() int64 {
	if c == nil {
		return 0
	}
	return c.bytesIn.Load()
}

// TotalBytesOut returns total bytes sent.
func (c *Collector) TotalBytesOut() int64 {
	if c == nil {
		return 0
	}
	return c.bytesOut.Load()
}

// ── Protocol metrics ─────────────────────────────────────────────────

// ParseFailed records a control message that held no valid port.
func (c *Collector) ParseFailed() {
	if c == nil {
		return
	}
	c.parseFailures.Add(1)
}

// CallbackOpened records a successful callback connection.
func (c *Collector) CallbackOpened() {
	if c == nil {
		return
	}
	c.callbacksOpened.Add(1)
}

// CallbackFailed records a callback connection that could not be made.
func (c *Collector) CallbackFailed() {
	if c == nil {
		return
	}
	c.callbackFailures.Add(1)
}

// Echoed records a completed echo.
func (c *Collector) Echoed() {
	if c == nil {
		return
	}
	c.echoes.Add(1)
}

// ParseFailures returns the number of rejected control messages.
func (c *Collector) ParseFailures() int64 {
	if c == nil {
		return 0
	}
	return c.parseFailures.Load()
}

// CallbacksOpened returns the number of callback connections made.
func (c *Collector) CallbacksOpened() int64 {
	if c == nil {
		return 0
	}
	return c.callbacksOpened.Load()
}

// CallbackFailures returns the number of failed callback dials.
func (c *Collector) CallbackFailures() int64 {
	if c == nil {
		return 0
	}
	return c.callbackFailures.Load()
}

// Echoes returns the number of completed echoes.
func (c *Collector) Echoes() int64 {
	if c == nil {
		return 0
	}
	return c.echoes.Load()
}

// ── Error metrics ────────────────────────────────────────────────────

// RecordError increments the error counter and stores the message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.errorsTotal.Add(1)
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ErrorCount returns the total number of errors recorded.
func (c *Collector) ErrorCount() int64 {
	if c == nil {
		return 0
	}
	return c.errorsTotal.Load()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime           string `json:"uptime"`
	SessionsActive   int64  `json:"sessions_active"`
	SessionsTotal    int64  `json:"sessions_total"`
	BytesIn          int64  `json:"bytes_in"`
	BytesOut         int64  `json:"bytes_out"`
	ParseFailures    int64  `json:"parse_failures"`
	CallbacksOpened  int64  `json:"callbacks_opened"`
	CallbackFailures int64  `json:"callback_failures"`
	Echoes           int64  `json:"echoes"`
	ErrorsTotal      int64  `json:"errors_total"`
	LastError        string `json:"last_error,omitempty"`
	LastErrorMessage string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:           time.Since(c.startTime).Truncate(time.Second).String(),
		SessionsActive:   c.sessionsActive.Load(),
		SessionsTotal:    c.sessionsTotal.Load(),
		BytesIn:          c.bytesIn.Load(),
		BytesOut:         c.bytesOut.Load(),
		ParseFailures:    c.parseFailures.Load(),
		CallbacksOpened:  c.callbacksOpened.Load(),
		CallbackFailures: c.callbackFailures.Load(),
		Echoes:           c.echoes.Load(),
		ErrorsTotal:      c.errorsTotal.Load(),
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}

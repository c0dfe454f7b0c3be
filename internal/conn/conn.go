// Package conn tracks transport liveness as an explicit state machine with
// progressive retry backoff. It is driven purely by transport status
// callbacks and owns every timer it starts, so teardown is deterministic.
package conn

import (
	"math/rand"
	"sync"
	"time"
)

// Status is the connection state visible to the UI.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// State is a snapshot of the controller.
type State struct {
	Status    Status
	Attempts  int
	NextDelay time.Duration
	// Countdown is the remaining delay before the next automatic attempt,
	// zero when none is pending.
	Countdown time.Duration
	// ShowSuccess is true during the transient connected indicator window.
	ShowSuccess bool
}

const (
	startupWatchdog = 10 * time.Second
	successShowFor  = 3 * time.Second
)

// delayLadder is the progressive backoff for the first attempts; beyond it
// the delay is uniform random in [15s, 30s).
var delayLadder = []time.Duration{
	3 * time.Second,
	5 * time.Second,
	10 * time.Second,
	15 * time.Second,
}

// NextDelay returns the retry delay for the given attempt count.
func NextDelay(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts < len(delayLadder) {
		return delayLadder[attempts]
	}
	jitter := time.Duration(rand.Int63n(int64(15 * time.Second)))
	return 15*time.Second + jitter
}

// Options configure a Controller.
type Options struct {
	// Reconnect requests a fresh connection attempt from the transport. Nil
	// means the transport cannot be re-driven; the startup watchdog then
	// lands in StatusError instead of StatusDisconnected.
	Reconnect func()
	// OnChange is invoked after every state transition.
	OnChange func(State)

	// Watchdog and SuccessFor override the defaults, for tests.
	Watchdog   time.Duration
	SuccessFor time.Duration
}

// Controller is the connection-liveness state machine. All transitions are
// serialized by an internal mutex; timer callbacks re-enter through the same
// public transitions.
type Controller struct {
	reconnect  func()
	onChange   func(State)
	watchdog   time.Duration
	successFor time.Duration

	mu           sync.Mutex
	closed       bool
	status       Status
	attempts     int
	nextDelay    time.Duration
	deadline     time.Time // countdown target, zero when idle
	showSuccess  bool
	watchTimer   *time.Timer
	retryTimer   *time.Timer
	successTimer *time.Timer
}

// New builds a Controller in the connecting state with the startup watchdog
// armed.
func New(opts Options) *Controller {
	c := &Controller{
		reconnect:  opts.Reconnect,
		onChange:   opts.OnChange,
		watchdog:   opts.Watchdog,
		successFor: opts.SuccessFor,
		status:     StatusConnecting,
	}
	if c.watchdog <= 0 {
		c.watchdog = startupWatchdog
	}
	if c.successFor <= 0 {
		c.successFor = successShowFor
	}
	c.mu.Lock()
	c.watchTimer = time.AfterFunc(c.watchdog, c.watchdogFired)
	c.mu.Unlock()
	return c
}

// State returns a snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller) stateLocked() State {
	s := State{
		Status:      c.status,
		Attempts:    c.attempts,
		NextDelay:   c.nextDelay,
		ShowSuccess: c.showSuccess,
	}
	if !c.deadline.IsZero() {
		if left := time.Until(c.deadline); left > 0 {
			s.Countdown = left
		}
	}
	return s
}

// Connecting records that the transport is attempting a connection.
func (c *Controller) Connecting() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.status = StatusConnecting
	c.cancelRetryLocked()
	c.notifyLocked()
}

// Connected records a successful connection: the attempt counter resets and
// a transient success indicator shows for a few seconds.
func (c *Controller) Connected() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.status = StatusConnected
	c.attempts = 0
	c.nextDelay = 0
	c.showSuccess = true
	c.cancelRetryLocked()
	c.stopWatchdogLocked()
	if c.successTimer != nil {
		c.successTimer.Stop()
	}
	c.successTimer = time.AfterFunc(c.successFor, c.successExpired)
	c.notifyLocked()
}

// Disconnected records a lost connection and schedules the next automatic
// attempt on the progressive delay ladder.
func (c *Controller) Disconnected() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.status = StatusDisconnected
	c.showSuccess = false
	c.stopWatchdogLocked()
	delay := NextDelay(c.attempts)
	c.attempts++
	c.nextDelay = delay
	c.deadline = time.Now().Add(delay)
	if c.retryTimer != nil {
		c.retryTimer.Stop()
	}
	c.retryTimer = time.AfterFunc(delay, c.retryFired)
	c.notifyLocked()
}

// Errored records a terminal transport error for this surface.
func (c *Controller) Errored() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.status = StatusError
	c.showSuccess = false
	c.stopWatchdogLocked()
	c.cancelRetryLocked()
	c.notifyLocked()
}

// ReconnectNow is the user-triggered reconnect: cancel any watchdog or
// countdown and request a fresh attempt immediately. The attempt counter is
// left alone; only an actual success resets it.
func (c *Controller) ReconnectNow() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.stopWatchdogLocked()
	c.cancelRetryLocked()
	c.status = StatusConnecting
	reconnect := c.reconnect
	c.notifyLocked()
	if reconnect != nil {
		reconnect()
	}
}

// Close cancels all timers. No callbacks fire after Close returns the
// controller to its caller.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.stopWatchdogLocked()
	c.cancelRetryLocked()
	if c.successTimer != nil {
		c.successTimer.Stop()
		c.successTimer = nil
	}
}

func (c *Controller) watchdogFired() {
	c.mu.Lock()
	if c.closed || c.status != StatusConnecting {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	// Still connecting when the startup watchdog fired: give up on the
	// silent attempt.
	if c.reconnect != nil {
		c.Disconnected()
	} else {
		c.mu.Lock()
		if !c.closed {
			c.attempts++
		}
		c.mu.Unlock()
		c.Errored()
	}
}

func (c *Controller) retryFired() {
	c.mu.Lock()
	if c.closed || c.status != StatusDisconnected {
		c.mu.Unlock()
		return
	}
	c.status = StatusConnecting
	c.deadline = time.Time{}
	reconnect := c.reconnect
	c.notifyLocked()
	if reconnect != nil {
		reconnect()
	}
}

func (c *Controller) successExpired() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.showSuccess = false
	c.notifyLocked()
}

func (c *Controller) stopWatchdogLocked() {
	if c.watchTimer != nil {
		c.watchTimer.Stop()
		c.watchTimer = nil
	}
}

func (c *Controller) cancelRetryLocked() {
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	c.deadline = time.Time{}
}

// notifyLocked snapshots state, releases the lock, and invokes OnChange.
func (c *Controller) notifyLocked() {
	s := c.stateLocked()
	onChange := c.onChange
	c.mu.Unlock()
	if onChange != nil {
		onChange(s)
	}
}

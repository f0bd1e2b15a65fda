// SPDX-FileCopyrightText: 2019 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

package node

import (
	"sync"
	"time"
)

// DefaultWatchdogTimeout is the period within which the main loop must kick
// the watchdog.
const DefaultWatchdogTimeout = 500 * time.Millisecond

// Watchdog calls a function if not kicked within its timeout.
type Watchdog struct {
	timeout time.Duration

	// mu covers the fields below it.
	mu      sync.Mutex
	t       *time.Timer
	expired int
	stopped bool
}

// NewWatchdog creates and arms a Watchdog that calls bark if it is not
// kicked within timeout.
//
// bark is called from its own goroutine. A timeout that is not positive
// selects DefaultWatchdogTimeout.
func NewWatchdog(timeout time.Duration, bark func()) *Watchdog {
	if timeout <= 0 {
		timeout = DefaultWatchdogTimeout
	}
	w := Watchdog{timeout: timeout}
	w.t = time.AfterFunc(timeout, func() {
		w.mu.Lock()
		if w.stopped {
			w.mu.Unlock()
			return
		}
		w.expired++
		w.mu.Unlock()
		if bark != nil {
			bark()
		}
	})
	return &w
}

// Kick restarts the timeout.
func (w *Watchdog) Kick() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.t.Reset(w.timeout)
}

// Expired returns the number of times the watchdog has expired.
func (w *Watchdog) Expired() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.expired
}

// Stop disarms the watchdog.
func (w *Watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
	w.t.Stop()
}

// SPDX-FileCopyrightText: 2019 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

// Package node provides the cooperative main loop of the depth node.
//
// Each pass of the loop kicks the watchdog, polls the sensor and services
// the report emitter.
package node

import (
	"context"
	"time"
)

// DefaultLoopPeriod is the nominal period of the main loop, matching the
// timebase tick.
const DefaultLoopPeriod = time.Millisecond

// Poller advances acquisition without blocking.
//
// It is satisfied by *depth.Sensor.
type Poller interface {
	Poll() bool
}

// Servicer emits reports when due.
//
// It is satisfied by *report.Emitter.
type Servicer interface {
	Service() (bool, error)
}

// Kicker is a watchdog.
type Kicker interface {
	Kick()
}

// Node is the main loop of the depth node.
type Node struct {
	sensor  Poller
	emitter Servicer
	wd      Kicker
	onError func(error)
	cycles  uint64
	reports uint64
}

// Option modifies the construction of a Node.
type Option func(*Node)

// WithWatchdog provides the watchdog kicked on each pass of the loop.
func WithWatchdog(w Kicker) Option {
	return func(n *Node) {
		n.wd = w
	}
}

// WithErrorHandler provides the handler for errors returned by the emitter.
//
// By default such errors are ignored.
func WithErrorHandler(h func(error)) Option {
	return func(n *Node) {
		n.onError = h
	}
}

// New creates a Node.
//
// The emitter may be nil if the node only acquires.
func New(sensor Poller, emitter Servicer, options ...Option) *Node {
	n := Node{sensor: sensor, emitter: emitter}
	for _, option := range options {
		option(&n)
	}
	return &n
}

// Step performs one pass of the main loop.
//
// Returns whether the pass completed an acquisition cycle and whether it
// emitted a report.
func (n *Node) Step() (cycled, reported bool) {
	if n.wd != nil {
		n.wd.Kick()
	}
	if n.sensor.Poll() {
		n.cycles++
		cycled = true
	}
	if n.emitter == nil {
		return cycled, false
	}
	reported, err := n.emitter.Service()
	if reported {
		n.reports++
	}
	if err != nil && n.onError != nil {
		n.onError(err)
	}
	return cycled, reported
}

// Run steps the loop every period until the context is done.
func (n *Node) Run(ctx context.Context, period time.Duration) error {
	if period <= 0 {
		period = DefaultLoopPeriod
	}
	t := time.NewTicker(period)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			n.Step()
		}
	}
}

// Cycles returns the number of acquisition cycles completed by the loop.
func (n *Node) Cycles() uint64 {
	return n.cycles
}

// Reports returns the number of reports emitted by the loop.
func (n *Node) Reports() uint64 {
	return n.reports
}

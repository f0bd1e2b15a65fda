// SPDX-FileCopyrightText: 2019 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

// Package timebase provides the monotonic tick counters used to pace
// conversions and report emission.
//
// Ticks are unsigned 32-bit counts that wrap. Durations are always computed
// as the modular difference of two tick values so a wrap between the two
// samples is harmless, provided the interval being measured is shorter than
// the full counter range.
package timebase

import (
	"context"
	"sync/atomic"
	"time"
)

// Ticks is a count of clock periods.
type Ticks uint32

// DefaultPeriod is the tick period of the node clock.
const DefaultPeriod = time.Millisecond

// Clock is a source of monotonic ticks.
type Clock interface {
	// Now returns the current tick count.
	Now() Ticks

	// Period returns the duration of one tick.
	Period() time.Duration
}

// Elapsed returns the number of ticks from since to now, allowing for the
// counter having wrapped in between.
func Elapsed(since, now Ticks) Ticks {
	return now - since
}

// Expired returns true once at least d ticks have elapsed from since to now.
func Expired(since, now, d Ticks) bool {
	return Elapsed(since, now) >= d
}

// TicksFor returns the number of ticks of the given period required to cover
// d, rounding up. Any positive duration requires at least one tick.
func TicksFor(d, period time.Duration) Ticks {
	if d <= 0 || period <= 0 {
		return 0
	}
	return Ticks((d + period - 1) / period)
}

// System is a Clock derived from the monotonic system time.
type System struct {
	origin time.Time
	period time.Duration
	offset Ticks
}

// SystemOption modifies the construction of a System clock.
type SystemOption func(*System)

// WithPeriod sets the tick period of the clock.
func WithPeriod(period time.Duration) SystemOption {
	return func(s *System) {
		if period > 0 {
			s.period = period
		}
	}
}

// WithOffset sets the initial tick count of the clock.
//
// Mostly useful to exercise counter wrap without waiting 49 days.
func WithOffset(t Ticks) SystemOption {
	return func(s *System) {
		s.offset = t
	}
}

// NewSystem creates a System clock starting at zero, or the provided offset.
func NewSystem(options ...SystemOption) *System {
	s := System{
		origin: time.Now(),
		period: DefaultPeriod,
	}
	for _, option := range options {
		option(&s)
	}
	return &s
}

// Now returns the number of periods since the clock was created.
func (s *System) Now() Ticks {
	return s.offset + Ticks(uint64(time.Since(s.origin)/s.period))
}

// Period returns the tick period.
func (s *System) Period() time.Duration {
	return s.period
}

// Counter is a Clock advanced explicitly, as a timer interrupt advances the
// tick count on a microcontroller.
//
// It is safe to advance the counter from one goroutine while reading it from
// others.
type Counter struct {
	n      atomic.Uint32
	period time.Duration
}

// NewCounter creates a Counter with the given tick period, starting at the
// provided tick.
func NewCounter(period time.Duration, start Ticks) *Counter {
	if period <= 0 {
		period = DefaultPeriod
	}
	c := Counter{period: period}
	c.n.Store(uint32(start))
	return &c
}

// Now returns the current count.
func (c *Counter) Now() Ticks {
	return Ticks(c.n.Load())
}

// Period returns the tick period.
func (c *Counter) Period() time.Duration {
	return c.period
}

// Tick advances the count by one.
func (c *Counter) Tick() {
	c.n.Add(1)
}

// Advance advances the count by n ticks.
func (c *Counter) Advance(n Ticks) {
	c.n.Add(uint32(n))
}

// AdvanceBy advances the count by the number of ticks covering d.
func (c *Counter) AdvanceBy(d time.Duration) {
	c.Advance(TicksFor(d, c.period))
}

// Set sets the count.
func (c *Counter) Set(t Ticks) {
	c.n.Store(uint32(t))
}

// Run advances the counter once per period until the context is done.
func (c *Counter) Run(ctx context.Context) error {
	t := time.NewTicker(c.period)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			c.Tick()
		}
	}
}

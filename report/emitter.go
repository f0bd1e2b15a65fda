// SPDX-FileCopyrightText: 2019 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

package report

import (
	"errors"
	"time"

	"github.com/deepwire/depth"
	"github.com/deepwire/depth/timebase"
)

// DefaultPeriod is the nominal interval between reports.
const DefaultPeriod = 500 * time.Millisecond

// Source provides the reading to report.
//
// It is satisfied by *depth.Sensor.
type Source interface {
	Latest() (depth.Reading, error)
}

// Sink consumes reports.
//
// Emit is called from the main loop so must not block.
type Sink interface {
	Emit(r depth.Reading) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(r depth.Reading) error

// Emit calls f(r).
func (f SinkFunc) Emit(r depth.Reading) error {
	return f(r)
}

// Emitter reports the latest reading to its sinks at a fixed cadence,
// independent of the acquisition cadence.
//
// The Emitter is serviced cooperatively from the main loop and is not safe
// for concurrent use.
type Emitter struct {
	src     Source
	clock   timebase.Clock
	period  timebase.Ticks
	sinks   []Sink
	last    timebase.Ticks
	emitted uint64
}

// NewEmitter creates an Emitter reporting from src to the sinks every period.
//
// A period that is not positive selects DefaultPeriod. The first report is
// due one period after creation.
func NewEmitter(src Source, clock timebase.Clock, period time.Duration, sinks ...Sink) *Emitter {
	if period <= 0 {
		period = DefaultPeriod
	}
	p := timebase.TicksFor(period, clock.Period())
	return &Emitter{
		src:    src,
		clock:  clock,
		period: p,
		sinks:  sinks,
		last:   clock.Now(),
	}
}

// Service emits the latest reading if a report is due.
//
// Returns true if a report was emitted. A due report is skipped if no reading
// is available yet. The same reading is reported repeatedly if no new cycle
// has completed. Sink errors do not prevent the other sinks being served
// and are returned joined.
func (e *Emitter) Service() (bool, error) {
	now := e.clock.Now()
	if !timebase.Expired(e.last, now, e.period) {
		return false, nil
	}
	e.last = now
	r, err := e.src.Latest()
	if errors.Is(err, depth.ErrNoReading) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	var errs []error
	for _, s := range e.sinks {
		if err := s.Emit(r); err != nil {
			errs = append(errs, err)
		}
	}
	e.emitted++
	return true, errors.Join(errs...)
}

// Emitted returns the number of reports emitted.
func (e *Emitter) Emitted() uint64 {
	return e.emitted
}

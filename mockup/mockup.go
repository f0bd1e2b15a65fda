// SPDX-FileCopyrightText: 2019 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

// Package mockup provides a simulated MS5541 sensor for testing drivers
// without hardware.
//
// The simulation implements spi.Port and decodes the device command
// protocol, so it can be attached to an spi.Controller in place of a real
// port.
package mockup

import (
	"bytes"
	"sync"
	"time"

	"github.com/deepwire/depth/timebase"
)

var (
	resetSequence      = []byte{0x15, 0x55, 0x40}
	convertPressure    = []byte{0x0f, 0x40}
	convertTemperature = []byte{0x0f, 0x20}
)

// calibrationAddress maps the second byte of a calibration read command to
// the word index.
var calibrationAddress = map[byte]int{0x50: 0, 0x60: 1, 0x90: 2, 0xa0: 3}

// Counts records the traffic seen by a simulated sensor.
type Counts struct {
	Transfers   int
	Resets      int
	Conversions int
	WordReads   int
	// EarlyReads are results read before the conversion completed.
	EarlyReads  int
	BadCommands int
}

type conversion int

const (
	idle conversion = iota
	convertingPressure
	convertingTemperature
)

// MS5541 is a simulated MS5541 sensor.
type MS5541 struct {
	clock     timebase.Clock
	convTicks timebase.Ticks

	// mu covers the fields below it.
	mu      sync.Mutex
	words   [4]uint16
	d1      uint16
	d2      uint16
	cpha    int
	cmd     []byte
	conv    conversion
	started timebase.Ticks
	out     []byte
	fail    []error
	counts  Counts
}

// Option modifies the construction of a simulated sensor.
type Option func(*MS5541)

// WithClock times conversions against the clock.
//
// Results read before the conversion time has elapsed are counted as early
// reads and return all ones. Without a clock conversions complete instantly.
func WithClock(c timebase.Clock, convTime time.Duration) Option {
	return func(m *MS5541) {
		m.clock = c
		m.convTicks = timebase.TicksFor(convTime, c.Period())
	}
}

// WithRaw sets the initial raw codes returned by conversions.
func WithRaw(d1, d2 uint16) Option {
	return func(m *MS5541) {
		m.d1 = d1
		m.d2 = d2
	}
}

// New creates a simulated sensor with the given calibration words.
func New(words [4]uint16, options ...Option) *MS5541 {
	m := MS5541{words: words}
	for _, option := range options {
		option(&m)
	}
	return &m
}

// SetRaw sets the raw codes returned by subsequent conversions.
func (m *MS5541) SetRaw(d1, d2 uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.d1 = d1
	m.d2 = d2
}

// FailNext queues errors to be returned by the next transfers, one per
// transfer. A nil entry lets its transfer succeed.
func (m *MS5541) FailNext(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = append(m.fail, errs...)
}

// Counts returns a snapshot of the traffic counters.
func (m *MS5541) Counts() Counts {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts
}

// SetClockPhase sets the phase of subsequent transfers.
//
// Phase 0 shifts command bytes in; phase 1 shifts result bytes out.
func (m *MS5541) SetClockPhase(cpha int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cpha = cpha
	return nil
}

// Transfer shifts a byte through the simulated device.
func (m *MS5541) Transfer(out byte) (byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts.Transfers++
	if len(m.fail) > 0 {
		err := m.fail[0]
		m.fail = m.fail[1:]
		if err != nil {
			return 0, err
		}
	}
	if m.cpha == 1 {
		return m.shiftOut(), nil
	}
	m.shiftIn(out)
	return 0, nil
}

func (m *MS5541) shiftOut() byte {
	if len(m.out) == 0 && m.conv != idle {
		m.latch()
	}
	if len(m.out) == 0 {
		return 0xff
	}
	b := m.out[0]
	m.out = m.out[1:]
	return b
}

// latch loads the result of the conversion in progress for readout.
func (m *MS5541) latch() {
	v := m.d1
	if m.conv == convertingTemperature {
		v = m.d2
	}
	if m.clock != nil && !timebase.Expired(m.started, m.clock.Now(), m.convTicks) {
		m.counts.EarlyReads++
		v = 0xffff
	}
	m.load(v)
	m.conv = idle
}

func (m *MS5541) load(v uint16) {
	m.out = []byte{byte(v >> 8), byte(v)}
}

func (m *MS5541) shiftIn(b byte) {
	m.cmd = append(m.cmd, b)
	if m.cmd[0] == resetSequence[0] {
		if len(m.cmd) < len(resetSequence) {
			return
		}
		if bytes.Equal(m.cmd, resetSequence) {
			m.counts.Resets++
			m.conv = idle
			m.out = nil
		} else {
			m.counts.BadCommands++
		}
		m.cmd = nil
		return
	}
	if len(m.cmd) < 2 {
		return
	}
	switch {
	case bytes.Equal(m.cmd, convertPressure):
		m.startConversion(convertingPressure)
	case bytes.Equal(m.cmd, convertTemperature):
		m.startConversion(convertingTemperature)
	case m.cmd[0] == 0x1d:
		if idx, ok := calibrationAddress[m.cmd[1]]; ok {
			m.counts.WordReads++
			m.conv = idle
			m.load(m.words[idx])
		} else {
			m.counts.BadCommands++
		}
	default:
		m.counts.BadCommands++
	}
	m.cmd = nil
}

func (m *MS5541) startConversion(c conversion) {
	m.counts.Conversions++
	m.conv = c
	m.out = nil
	if m.clock != nil {
		m.started = m.clock.Now()
	}
}

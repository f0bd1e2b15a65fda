// SPDX-FileCopyrightText: 2019 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

// Package depth is a driver for the MS5541 pressure and temperature sensor.
//
// The Sensor acquires readings without blocking. A cooperative loop calls Poll
// periodically and each call advances the acquisition by at most one bus
// transaction. A cycle converts pressure then temperature, and requires at
// least four calls to Poll. The fourth returns true when the new Reading is
// available from Latest.
//
// Blocking direct reads are also provided for one-off use.
package depth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/deepwire/depth/spi"
	"github.com/deepwire/depth/timebase"
)

type phase int

const (
	phaseStartPressure phase = iota
	phaseAwaitPressure
	phaseStartTemperature
	phaseAwaitTemperature
)

func (p phase) String() string {
	switch p {
	case phaseStartPressure:
		return "start pressure"
	case phaseAwaitPressure:
		return "read pressure"
	case phaseStartTemperature:
		return "start temperature"
	case phaseAwaitTemperature:
		return "read temperature"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Sensor is an MS5541 attached to a port on an SPI bus.
type Sensor struct {
	bus       spi.Bus
	port      int
	clock     timebase.Clock
	convTime  time.Duration
	convTicks timebase.Ticks
	coeffs    Coefficients

	// busMu is held for the duration of each bus transaction, and covers the
	// cycle state below it.
	busMu   sync.Mutex
	phase   phase
	started timebase.Ticks
	raw     RawSample

	// mu covers the fields below it.
	mu     sync.RWMutex
	latest Reading
	valid  bool
	stats  Stats
	closed bool
}

// Stats are counters describing the acquisition history of a Sensor.
type Stats struct {
	// Cycles is the number of completed acquisition cycles.
	Cycles uint64

	// BusErrors is the number of cycles abandoned due to bus errors.
	BusErrors uint64

	// DirectReads is the number of completed blocking conversions.
	DirectReads uint64

	// LastError is the most recent bus error seen by Poll, if any.
	LastError error
}

// New creates a Sensor on the bus and resets the device.
//
// The calibration is taken from the options, else DefaultCoefficients.
func New(bus spi.Bus, options ...Option) (*Sensor, error) {
	if bus == nil {
		return nil, fmt.Errorf("%w: nil bus", ErrInvalidArgument)
	}
	so := SensorOptions{
		convTime: DefaultConversionTime,
		coeffs:   DefaultCoefficients,
	}
	for _, option := range options {
		option.applySensorOption(&so)
	}
	if so.port < 0 {
		return nil, fmt.Errorf("%w: %d", spi.ErrInvalidPort, so.port)
	}
	if so.convTime <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidConversionTime, so.convTime)
	}
	if so.clock == nil {
		so.clock = timebase.NewSystem()
	}
	s := Sensor{
		bus:       bus,
		port:      so.port,
		clock:     so.clock,
		convTime:  so.convTime,
		convTicks: timebase.TicksFor(so.convTime, so.clock.Period()),
		coeffs:    so.coeffs,
	}
	if so.fromDevice {
		c, err := s.ReadCoefficients(context.Background())
		if err != nil {
			return nil, err
		}
		s.coeffs = c
	}
	if err := s.coeffs.Validate(); err != nil {
		return nil, err
	}
	if err := s.reset(); err != nil {
		return nil, fmt.Errorf("reset: %w", err)
	}
	return &s, nil
}

// Coefficients returns the calibration coefficients in use.
func (s *Sensor) Coefficients() Coefficients {
	return s.coeffs
}

// ConversionTicks returns the number of clock ticks allowed per conversion.
func (s *Sensor) ConversionTicks() timebase.Ticks {
	return s.convTicks
}

// Poll advances the acquisition cycle by at most one step.
//
// Returns true when the call completed a cycle and a new Reading has been
// committed. Never blocks. If a direct read holds the bus the call returns
// false without doing anything. A bus error abandons the cycle, which
// restarts on the next call.
func (s *Sensor) Poll() bool {
	if !s.busMu.TryLock() {
		return false
	}
	defer s.busMu.Unlock()
	if s.isClosed() {
		return false
	}
	switch s.phase {
	case phaseStartPressure, phaseStartTemperature:
		cmd := convertPressure
		if s.phase == phaseStartTemperature {
			cmd = convertTemperature
		}
		if err := s.write(cmd); err != nil {
			s.abandon(err)
			return false
		}
		s.started = s.clock.Now()
		s.phase++
	case phaseAwaitPressure, phaseAwaitTemperature:
		if !timebase.Expired(s.started, s.clock.Now(), s.convTicks) {
			return false
		}
		v, err := s.readWord()
		if err != nil {
			s.abandon(err)
			return false
		}
		if s.phase == phaseAwaitPressure {
			s.raw.Pressure = v
			s.phase = phaseStartTemperature
			return false
		}
		s.raw.Temperature = v
		s.phase = phaseStartPressure
		s.commit(Compute(s.raw, s.coeffs))
		return true
	}
	return false
}

// Latest returns the most recently committed reading.
//
// Returns ErrNoReading until the first cycle completes.
func (s *Sensor) Latest() (Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.valid {
		return Reading{}, ErrNoReading
	}
	return s.latest, nil
}

// Stats returns a snapshot of the sensor counters.
func (s *Sensor) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// Reset resets the device, restarts the acquisition cycle and discards the
// latest reading.
func (s *Sensor) Reset() error {
	s.busMu.Lock()
	defer s.busMu.Unlock()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.latest = Reading{}
	s.valid = false
	s.mu.Unlock()
	s.phase = phaseStartPressure
	return s.reset()
}

// Close stops the sensor.
//
// Subsequent polls do nothing and direct reads return ErrClosed. The latest
// reading remains available. The bus is not closed.
func (s *Sensor) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.closed = true
	return nil
}

func (s *Sensor) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

func (s *Sensor) commit(r Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Cycles++
	r.Seq = s.stats.Cycles
	s.latest = r
	s.valid = true
}

// abandon drops the cycle in progress following a bus error.
func (s *Sensor) abandon(err error) {
	err = fmt.Errorf("%s: %w", s.phase, err)
	s.phase = phaseStartPressure
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.BusErrors++
	s.stats.LastError = err
}

var (
	// ErrInvalidArgument indicates an argument is outside its valid domain.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidChannel indicates a channel other than Pressure or
	// Temperature.
	ErrInvalidChannel = fmt.Errorf("%w: channel", ErrInvalidArgument)

	// ErrInvalidConversionTime indicates a conversion time that is not
	// positive.
	ErrInvalidConversionTime = fmt.Errorf("%w: conversion time", ErrInvalidArgument)

	// ErrNoReading indicates no acquisition cycle has completed yet.
	ErrNoReading = errors.New("no reading available")

	// ErrUncalibrated indicates the calibration coefficients are unset, or
	// the device calibration is blank.
	ErrUncalibrated = errors.New("uncalibrated")

	// ErrInvalidCoefficients indicates a coefficient exceeds its field
	// width.
	ErrInvalidCoefficients = errors.New("invalid coefficients")

	// ErrClosed indicates the sensor has been closed.
	ErrClosed = errors.New("already closed")
)

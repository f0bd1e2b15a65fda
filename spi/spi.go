// SPDX-FileCopyrightText: 2019 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

// Package spi provides the byte oriented SPI bus used to talk to the depth
// sensor, and a bit bashed SPI port built on GPIO lines.
package spi

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/gpiod"
)

// Line is a single GPIO line.
//
// It is satisfied by *gpiod.Line.
type Line interface {
	SetValue(int) error
	Value() (int, error)
	Close() error
}

// SPI is a Port driving a device connected by GPIO lines.
//
// This is the basis for bit bashed SPI interfaces using GPIO pins. It is not
// related to the SPI device drivers provided by Linux.
type SPI struct {
	// time between clock edges (i.e. half the cycle time)
	Tclk time.Duration
	Sclk Line
	// Ssz is the active low select, or nil if the device has none.
	Ssz  Line
	Mosi Line
	Miso Line

	mu     sync.Mutex
	cpol   int
	cpha   int
	closed bool
}

// New requests the lines from the chip and creates a SPI.
//
// A negative ssz indicates the device has no select line.
func New(c *gpiod.Chip, sclk, ssz, mosi, miso int, options ...Option) (*SPI, error) {
	s := SPI{}
	s.applyOptions(options)
	var err error
	var l *gpiod.Line
	defer func() {
		if err != nil {
			s.Close()
		}
	}()
	if ssz >= 0 {
		// hold the device deselected until needed...
		l, err = c.RequestLine(ssz, gpiod.AsOutput(1))
		if err != nil {
			return nil, err
		}
		s.Ssz = l
	}
	l, err = c.RequestLine(sclk, gpiod.AsOutput(s.cpol))
	if err != nil {
		return nil, err
	}
	s.Sclk = l
	l, err = c.RequestLine(miso, gpiod.AsInput)
	if err != nil {
		return nil, err
	}
	s.Miso = l
	if miso == mosi {
		err = errors.New("shared mosi/miso line not supported")
		return nil, err
	}
	l, err = c.RequestLine(mosi, gpiod.AsOutput(0))
	if err != nil {
		return nil, err
	}
	s.Mosi = l
	return &s, nil
}

// NewFromLines creates a SPI from lines already requested by the caller.
//
// The SPI takes ownership of the lines. ssz may be nil.
func NewFromLines(sclk, ssz, mosi, miso Line, options ...Option) *SPI {
	s := SPI{Sclk: sclk, Ssz: ssz, Mosi: mosi, Miso: miso}
	s.applyOptions(options)
	return &s
}

func (s *SPI) applyOptions(options []Option) {
	for _, option := range options {
		option(s)
	}
	if s.Tclk == 0 {
		// default to 1MHz full cycle.
		s.Tclk = 500 * time.Nanosecond
	}
}

// Close releases allocated resources.
func (s *SPI) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.closed = true
	if s.Sclk != nil {
		s.Sclk.Close()
	}
	if s.Miso != nil {
		s.Miso.Close()
	}
	if s.Mosi != nil {
		s.Mosi.Close()
	}
	if s.Ssz != nil {
		s.Ssz.Close()
	}
	return nil
}

// SetClockPhase sets the cpha for subsequent transfers.
func (s *SPI) SetClockPhase(cpha int) error {
	if cpha != 0 && cpha != 1 {
		return fmt.Errorf("%w: %d", ErrInvalidPhase, cpha)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.cpha = cpha
	return nil
}

// Transfer clocks a byte out on Mosi, MSB first, while clocking a byte in
// from Miso.
func (s *SPI) Transfer(out byte) (in byte, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	if s.Ssz != nil {
		if err = s.Ssz.SetValue(0); err != nil {
			return 0, err
		}
		defer func() {
			if serr := s.Ssz.SetValue(1); err == nil {
				err = serr
			}
		}()
	}
	for i := 7; i >= 0; i-- {
		v, err := s.clockBit(int(out>>uint(i)) & 1)
		if err != nil {
			return 0, err
		}
		in = in<<1 | byte(v)
	}
	return in, nil
}

// clockBit clocks out one bit and clocks in another.
//
// Starts and ends with the clock idle.
func (s *SPI) clockBit(v int) (int, error) {
	if s.cpha == 0 {
		if err := s.Mosi.SetValue(v); err != nil {
			return 0, err
		}
		time.Sleep(s.Tclk)
		if err := s.setClock(true); err != nil {
			return 0, err
		}
		in, err := s.Miso.Value()
		if err != nil {
			return 0, err
		}
		time.Sleep(s.Tclk)
		return in, s.setClock(false)
	}
	if err := s.setClock(true); err != nil {
		return 0, err
	}
	if err := s.Mosi.SetValue(v); err != nil {
		return 0, err
	}
	time.Sleep(s.Tclk)
	if err := s.setClock(false); err != nil {
		return 0, err
	}
	in, err := s.Miso.Value()
	if err != nil {
		return 0, err
	}
	time.Sleep(s.Tclk)
	return in, nil
}

func (s *SPI) setClock(active bool) error {
	v := s.cpol
	if active {
		v ^= 1
	}
	return s.Sclk.SetValue(v)
}

// Option specifies a construction option for the SPI.
type Option func(*SPI)

// WithCPOL sets the cpol for the SPI.
func WithCPOL(cpol int) Option {
	return func(s *SPI) {
		s.cpol = cpol & 1
	}
}

// WithCPHA sets the initial cpha for the SPI.
func WithCPHA(cpha int) Option {
	return func(s *SPI) {
		s.cpha = cpha & 1
	}
}

// WithTclk sets the clock period for the SPI.
//
// Note that this is the half-cycle period.
func WithTclk(tclk time.Duration) Option {
	return func(s *SPI) {
		s.Tclk = tclk
	}
}

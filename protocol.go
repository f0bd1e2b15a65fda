// SPDX-FileCopyrightText: 2019 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

package depth

import (
	"fmt"
	"time"
)

// MS5541 command sequences.
//
// The device has no chip select; every command is preceded by the reset
// sequence to resynchronise its serial interface.
var (
	resetSequence = []byte{0x15, 0x55, 0x40}

	convertPressure    = []byte{0x0f, 0x40}
	convertTemperature = []byte{0x0f, 0x20}

	readCalibration = [4][]byte{
		{0x1d, 0x50},
		{0x1d, 0x60},
		{0x1d, 0x90},
		{0x1d, 0xa0},
	}
)

// DefaultConversionTime is the time the MS5541 requires to complete a
// conversion of either channel.
const DefaultConversionTime = 35 * time.Millisecond

// Channel identifies one of the two sensor ADC channels.
type Channel int

const (
	// Pressure selects the D1 (pressure) channel.
	Pressure Channel = iota + 1

	// Temperature selects the D2 (temperature) channel.
	Temperature
)

func (c Channel) String() string {
	switch c {
	case Pressure:
		return "pressure"
	case Temperature:
		return "temperature"
	}
	return fmt.Sprintf("channel(%d)", int(c))
}

func (c Channel) convertCommand() ([]byte, error) {
	switch c {
	case Pressure:
		return convertPressure, nil
	case Temperature:
		return convertTemperature, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrInvalidChannel, int(c))
}

// write sends the reset sequence followed by cmd.
//
// Commands are clocked on the rising edge.
func (s *Sensor) write(cmd []byte) error {
	if err := s.bus.SetClockPhase(s.port, 0); err != nil {
		return err
	}
	for _, b := range resetSequence {
		if _, err := s.bus.Exchange(s.port, b); err != nil {
			return err
		}
	}
	for _, b := range cmd {
		if _, err := s.bus.Exchange(s.port, b); err != nil {
			return err
		}
	}
	return nil
}

// readWord reads a 16-bit result, MSB first.
//
// Results are clocked out on the rising edge so are sampled on the falling
// edge.
func (s *Sensor) readWord() (uint16, error) {
	if err := s.bus.SetClockPhase(s.port, 1); err != nil {
		return 0, err
	}
	hi, err := s.bus.Exchange(s.port, 0)
	if err != nil {
		return 0, err
	}
	lo, err := s.bus.Exchange(s.port, 0)
	if err != nil {
		return 0, err
	}
	return uint16(hi)<<8 | uint16(lo), nil
}

// reset sends the reset sequence alone.
func (s *Sensor) reset() error {
	return s.write(nil)
}

// readCalibrationWords reads the four calibration words from the device.
func (s *Sensor) readCalibrationWords() ([4]uint16, error) {
	var w [4]uint16
	for i, cmd := range readCalibration {
		if err := s.write(cmd); err != nil {
			return w, fmt.Errorf("read W%d: %w", i+1, err)
		}
		v, err := s.readWord()
		if err != nil {
			return w, fmt.Errorf("read W%d: %w", i+1, err)
		}
		w[i] = v
	}
	return w, nil
}

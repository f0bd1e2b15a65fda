// SPDX-FileCopyrightText: 2019 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

package depth

import (
	"context"
	"fmt"
	"time"
)

// ReadRaw performs a blocking conversion of the channel and returns the raw
// code.
//
// The bus is held for the full conversion time, so Poll is a no-op until the
// read completes. Any cycle in progress is abandoned and restarts on the
// next Poll.
func (s *Sensor) ReadRaw(ctx context.Context, ch Channel) (uint16, error) {
	cmd, err := ch.convertCommand()
	if err != nil {
		return 0, err
	}
	s.busMu.Lock()
	defer s.busMu.Unlock()
	if s.isClosed() {
		return 0, ErrClosed
	}
	s.phase = phaseStartPressure
	return s.convert(ctx, cmd)
}

// RawPressure performs a blocking conversion of the pressure channel.
func (s *Sensor) RawPressure(ctx context.Context) (uint16, error) {
	return s.ReadRaw(ctx, Pressure)
}

// RawTemperature performs a blocking conversion of the temperature channel.
func (s *Sensor) RawTemperature(ctx context.Context) (uint16, error) {
	return s.ReadRaw(ctx, Temperature)
}

// Read performs blocking conversions of both channels and returns the
// calibrated reading.
//
// The reading is not committed, so does not affect Latest.
func (s *Sensor) Read(ctx context.Context) (Reading, error) {
	s.busMu.Lock()
	defer s.busMu.Unlock()
	if s.isClosed() {
		return Reading{}, ErrClosed
	}
	s.phase = phaseStartPressure
	var raw RawSample
	var err error
	if raw.Pressure, err = s.convert(ctx, convertPressure); err != nil {
		return Reading{}, err
	}
	if raw.Temperature, err = s.convert(ctx, convertTemperature); err != nil {
		return Reading{}, err
	}
	return Compute(raw, s.coeffs), nil
}

// ReadCoefficients reads the calibration coefficients from the device.
//
// Blank device calibration, all zeros or all ones, returns ErrUncalibrated.
func (s *Sensor) ReadCoefficients(ctx context.Context) (Coefficients, error) {
	s.busMu.Lock()
	defer s.busMu.Unlock()
	if s.isClosed() {
		return Coefficients{}, ErrClosed
	}
	s.phase = phaseStartPressure
	if err := ctx.Err(); err != nil {
		return Coefficients{}, err
	}
	w, err := s.readCalibrationWords()
	if err != nil {
		return Coefficients{}, err
	}
	if w == [4]uint16{} || w == [4]uint16{0xffff, 0xffff, 0xffff, 0xffff} {
		return Coefficients{}, fmt.Errorf("%w: device calibration %04x", ErrUncalibrated, w)
	}
	c := CoefficientsFromWords(w)
	return c, c.Validate()
}

// convert starts a conversion, sleeps for the conversion time and reads the
// result.
//
// The final command byte is left in flight while the conversion timer
// starts.
func (s *Sensor) convert(ctx context.Context, cmd []byte) (uint16, error) {
	if err := s.write(cmd[:len(cmd)-1]); err != nil {
		return 0, err
	}
	if err := s.bus.WriteNoBlock(s.port, cmd[len(cmd)-1]); err != nil {
		return 0, err
	}
	t := time.NewTimer(s.convTime)
	defer t.Stop()
	if _, err := s.bus.Wait(s.port); err != nil {
		return 0, err
	}
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-t.C:
	}
	v, err := s.readWord()
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	s.stats.DirectReads++
	s.mu.Unlock()
	return v, nil
}

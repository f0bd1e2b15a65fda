// SPDX-FileCopyrightText: 2019 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

package depth

import (
	"time"

	"github.com/deepwire/depth/timebase"
)

// Option defines the interface required to provide a Sensor option.
type Option interface {
	applySensorOption(*SensorOptions)
}

// SensorOptions contains the options for a Sensor.
type SensorOptions struct {
	port       int
	convTime   time.Duration
	clock      timebase.Clock
	coeffs     Coefficients
	fromDevice bool
}

// PortOption selects the bus port the sensor is attached to.
type PortOption int

// WithPort selects the bus port the sensor is attached to.
//
// The default is port 0.
func WithPort(port int) PortOption {
	return PortOption(port)
}

func (o PortOption) applySensorOption(so *SensorOptions) {
	so.port = int(o)
}

// ConversionTimeOption sets the time allowed for each conversion.
type ConversionTimeOption time.Duration

// WithConversionTime sets the time allowed for each conversion.
//
// The default is DefaultConversionTime. The time is rounded up to a whole
// number of clock ticks.
func WithConversionTime(d time.Duration) ConversionTimeOption {
	return ConversionTimeOption(d)
}

func (o ConversionTimeOption) applySensorOption(so *SensorOptions) {
	so.convTime = time.Duration(o)
}

// ClockOption provides the tick source used to time conversions.
type ClockOption struct {
	clock timebase.Clock
}

// WithClock provides the tick source used to time conversions.
//
// The default is a millisecond timebase.System clock.
func WithClock(c timebase.Clock) ClockOption {
	return ClockOption{c}
}

func (o ClockOption) applySensorOption(so *SensorOptions) {
	so.clock = o.clock
}

// CoefficientsOption provides the calibration coefficients for the sensor.
type CoefficientsOption Coefficients

// WithCoefficients provides the calibration coefficients for the sensor.
//
// This option overrides any previous DeviceCalibration option.
func WithCoefficients(c Coefficients) CoefficientsOption {
	return CoefficientsOption(c)
}

func (o CoefficientsOption) applySensorOption(so *SensorOptions) {
	so.coeffs = Coefficients(o)
	so.fromDevice = false
}

// DeviceCalibrationOption indicates the calibration coefficients be read
// from the device.
type DeviceCalibrationOption struct{}

// WithDeviceCalibration indicates the calibration coefficients be read from
// the device when the sensor is created.
//
// This option overrides any previous Coefficients option.
func WithDeviceCalibration() DeviceCalibrationOption {
	return DeviceCalibrationOption{}
}

func (o DeviceCalibrationOption) applySensorOption(so *SensorOptions) {
	so.fromDevice = true
}

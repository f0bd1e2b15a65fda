// SPDX-FileCopyrightText: 2019 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

package depth

import (
	"fmt"
	"math"

	"github.com/deepwire/depth/units"
)

// Reading is a calibrated pressure and temperature pair from a single
// acquisition cycle.
type Reading struct {
	// Seq is the number of the cycle that produced the reading, counting
	// from 1. Zero for readings not produced by a cycle.
	Seq uint64

	// Raw is the sample the reading was computed from.
	Raw RawSample

	// Millibars is the compensated pressure in 1 mbar units.
	Millibars int32

	// DeciCelsius is the compensated temperature in 0.1 °C units.
	DeciCelsius int32
}

// Pressure returns the pressure in millibars.
func (r Reading) Pressure() float64 {
	return float64(r.Millibars)
}

// PSI returns the pressure in pounds per square inch.
func (r Reading) PSI() float64 {
	return units.MbarToPSI(r.Pressure())
}

// Celsius returns the temperature in degrees Celsius.
func (r Reading) Celsius() float64 {
	return float64(r.DeciCelsius) / 10
}

// Millibar returns the pressure in millibars, saturated to [0, 65535].
func (r Reading) Millibar() uint16 {
	switch {
	case r.Millibars < 0:
		return 0
	case r.Millibars > math.MaxUint16:
		return math.MaxUint16
	}
	return uint16(r.Millibars)
}

// MilliPSI returns the pressure in thousandths of a psi, rounded to nearest
// and saturated to the range of a uint32.
func (r Reading) MilliPSI() uint32 {
	v := math.Round(r.PSI() * 1000)
	switch {
	case v < 0:
		return 0
	case v > math.MaxUint32:
		return math.MaxUint32
	}
	return uint32(v)
}

// CentiCelsius returns the temperature in hundredths of a degree Celsius,
// saturated to the range of an int16.
func (r Reading) CentiCelsius() int16 {
	v := int64(r.DeciCelsius) * 10
	switch {
	case v < math.MinInt16:
		return math.MinInt16
	case v > math.MaxInt16:
		return math.MaxInt16
	}
	return int16(v)
}

func (r Reading) String() string {
	return fmt.Sprintf("%d mbar %.1f°C", r.Millibars, r.Celsius())
}

// SPDX-FileCopyrightText: 2019 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

// Package units provides conversions between the pressure, length and angle
// units used by the depth node.
package units

import "math"

const (
	// PSIPerMillibar is the number of pounds per square inch in one millibar.
	PSIPerMillibar = 0.014503773773

	// MetersPerFoot is the number of meters in one international foot.
	MetersPerFoot = 0.3048

	// DegreesPerRadian is the number of degrees in one radian.
	DegreesPerRadian = 180 / math.Pi
)

// MbarToPSI converts a pressure in millibars to pounds per square inch.
func MbarToPSI(mbar float64) float64 {
	return mbar * PSIPerMillibar
}

// PSIToMbar converts a pressure in pounds per square inch to millibars.
func PSIToMbar(psi float64) float64 {
	return psi / PSIPerMillibar
}

// FeetToMeters converts a length in feet to meters.
func FeetToMeters(ft float64) float64 {
	return ft * MetersPerFoot
}

// MetersToFeet converts a length in meters to feet.
func MetersToFeet(m float64) float64 {
	return m / MetersPerFoot
}

// DegreesToRadians converts an angle in degrees to radians.
func DegreesToRadians(deg float64) float64 {
	return deg / DegreesPerRadian
}

// RadiansToDegrees converts an angle in radians to degrees.
func RadiansToDegrees(rad float64) float64 {
	return rad * DegreesPerRadian
}

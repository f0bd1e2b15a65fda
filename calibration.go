// SPDX-FileCopyrightText: 2019 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

package depth

import "fmt"

// Coefficients are the factory calibration constants of an MS5541.
type Coefficients struct {
	// C1 is the pressure sensitivity (15 bits).
	C1 uint16
	// C2 is the pressure offset (12 bits).
	C2 uint16
	// C3 is the temperature coefficient of pressure sensitivity (10 bits).
	C3 uint16
	// C4 is the temperature coefficient of pressure offset (10 bits).
	C4 uint16
	// C5 is the reference temperature (11 bits).
	C5 uint16
	// C6 is the temperature coefficient of the temperature (6 bits).
	C6 uint16
}

// DefaultCoefficients are the calibration constants used when neither
// explicit coefficients nor device calibration are provided.
var DefaultCoefficients = Coefficients{
	C1: 18556,
	C2: 1882,
	C3: 590,
	C4: 520,
	C5: 1206,
	C6: 41,
}

var coefficientLimits = [6]uint16{0x7fff, 0xfff, 0x3ff, 0x3ff, 0x7ff, 0x3f}

// CoefficientsFromWords unpacks the coefficients from the four calibration
// words W1..W4 stored in the device.
func CoefficientsFromWords(w [4]uint16) Coefficients {
	return Coefficients{
		C1: (w[0] >> 1) & 0x7fff,
		C2: (w[2]&0x3f)<<6 | w[3]&0x3f,
		C3: (w[3] >> 6) & 0x3ff,
		C4: (w[2] >> 6) & 0x3ff,
		C5: (w[0]&1)<<10 | (w[1]>>6)&0x3ff,
		C6: w[1] & 0x3f,
	}
}

// Words packs the coefficients into the four calibration words W1..W4.
func (c Coefficients) Words() [4]uint16 {
	return [4]uint16{
		c.C1<<1 | (c.C5>>10)&1,
		(c.C5&0x3ff)<<6 | c.C6&0x3f,
		(c.C4&0x3ff)<<6 | (c.C2>>6)&0x3f,
		(c.C3&0x3ff)<<6 | c.C2&0x3f,
	}
}

// Validate checks the coefficients are set and each fits its field.
func (c Coefficients) Validate() error {
	if c == (Coefficients{}) {
		return ErrUncalibrated
	}
	for i, v := range c.values() {
		if v > coefficientLimits[i] {
			return fmt.Errorf("%w: C%d %d exceeds %d",
				ErrInvalidCoefficients, i+1, v, coefficientLimits[i])
		}
	}
	return nil
}

func (c Coefficients) values() [6]uint16 {
	return [6]uint16{c.C1, c.C2, c.C3, c.C4, c.C5, c.C6}
}

// RawSample is a pair of raw ADC codes.
type RawSample struct {
	// Pressure is the D1 code.
	Pressure uint16
	// Temperature is the D2 code.
	Temperature uint16
}

// Compute converts a raw sample to calibrated pressure and temperature.
//
// This is the integer compensation of the MS5541 datasheet including the
// second order correction of both temperature and pressure. All divisions by powers of two are
// arithmetic shifts so round toward negative infinity.
func Compute(raw RawSample, c Coefficients) Reading {
	d1 := int64(raw.Pressure)
	d2 := int64(raw.Temperature)
	c1, c2, c3 := int64(c.C1), int64(c.C2), int64(c.C3)
	c4, c5, c6 := int64(c.C4), int64(c.C5), int64(c.C6)

	ut1 := 8*c5 + 10000
	dT := d2 - ut1
	temp := 200 + (dT*(c6+100))>>11
	off := c2 + ((c4-250)*dT)>>12 + 10000
	sens := c1/2 + ((c3+200)*dT)>>13 + 3000
	p := (sens*(d1-off))>>12 + 1000

	var t2, p2 int64
	switch {
	case temp < 200:
		t2 = (11 * (c6 + 24) * (200 - temp) * (200 - temp)) >> 20
		p2 = (3 * t2 * (p - 3500)) >> 14
	case temp > 450:
		t2 = (3 * (c6 + 24) * (450 - temp) * (450 - temp)) >> 20
		p2 = (t2 * (p - 10000)) >> 13
	}
	temp -= t2
	p -= p2
	return Reading{
		Raw:         raw,
		Millibars:   int32(p),
		DeciCelsius: int32(temp),
	}
}

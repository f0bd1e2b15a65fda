// SPDX-FileCopyrightText: 2019 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

// Package report formats depth readings as $PVRDT sentences and emits them at
// a fixed cadence.
package report

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	nmea "github.com/adrianmo/go-nmea"

	"github.com/deepwire/depth"
)

const (
	// TypeVRDT is the sentence type of the depth report.
	TypeVRDT = "VRDT"

	// Prefix is the start of every depth report.
	Prefix = "$P" + TypeVRDT
)

// ErrMalformed indicates a line is not a valid depth report.
var ErrMalformed = errors.New("malformed sentence")

// VRDT is a parsed depth report.
type VRDT struct {
	nmea.BaseSentence
	// Millibar is the pressure in millibars.
	Millibar int64
	// CentiCelsius is the temperature in hundredths of a degree Celsius.
	CentiCelsius int64
}

func init() {
	if err := nmea.RegisterParser(TypeVRDT, parseVRDT); err != nil {
		panic(err)
	}
}

func parseVRDT(s nmea.BaseSentence) (nmea.Sentence, error) {
	p := nmea.NewParser(s)
	p.AssertType(TypeVRDT)
	if len(s.Fields) != 2 {
		return nil, fmt.Errorf("%w: %d fields", ErrMalformed, len(s.Fields))
	}
	return VRDT{
		BaseSentence: s,
		Millibar:     p.Int64(0, "pressure"),
		CentiCelsius: p.Int64(1, "temperature"),
	}, p.Err()
}

// Format returns the report line for the reading, including the trailing
// CRLF.
//
// The pressure is in whole millibars and the temperature in hundredths of a
// degree Celsius, both saturated to their fixed point ranges. If checksum is
// set the line carries an NMEA checksum.
func Format(r depth.Reading, checksum bool) string {
	body := fmt.Sprintf("P%s,%d,%d", TypeVRDT, r.Millibar(), r.CentiCelsius())
	if checksum {
		return "$" + body + "*" + nmea.Checksum(body) + "\r\n"
	}
	return "$" + body + "\r\n"
}

// Parse parses a report line, with or without a checksum.
//
// A checksum, if present, must be valid.
func Parse(line string) (VRDT, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, Prefix+",") {
		return VRDT{}, fmt.Errorf("%w: %q", ErrMalformed, line)
	}
	if strings.Contains(line, "*") {
		s, err := nmea.Parse(line)
		if err != nil {
			return VRDT{}, err
		}
		v, ok := s.(VRDT)
		if !ok {
			return VRDT{}, fmt.Errorf("%w: %q", ErrMalformed, line)
		}
		return v, nil
	}
	fields := strings.Split(line[len(Prefix)+1:], ",")
	if len(fields) != 2 {
		return VRDT{}, fmt.Errorf("%w: %d fields", ErrMalformed, len(fields))
	}
	var v VRDT
	var err error
	if v.Millibar, err = strconv.ParseInt(strings.TrimSpace(fields[0]), 10, 64); err != nil {
		return VRDT{}, fmt.Errorf("%w: pressure: %v", ErrMalformed, err)
	}
	if v.CentiCelsius, err = strconv.ParseInt(strings.TrimSpace(fields[1]), 10, 64); err != nil {
		return VRDT{}, fmt.Errorf("%w: temperature: %v", ErrMalformed, err)
	}
	v.BaseSentence = nmea.BaseSentence{
		Talker: "P",
		Type:   TypeVRDT,
		Fields: fields,
		Raw:    line,
	}
	return v, nil
}

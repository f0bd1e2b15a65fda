// SPDX-FileCopyrightText: 2019 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

// Package rpi maps Raspberry Pi header pins to GPIO lines and describes how
// the depth board is wired to the header.
package rpi

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// j8 maps J8 header pin numbers to BCM GPIO numbers.
var j8 = map[int]int{
	3: 2, 5: 3, 7: 4, 8: 14, 10: 15, 11: 17, 12: 18, 13: 27,
	15: 22, 16: 23, 18: 24, 19: 10, 21: 9, 22: 25, 23: 11, 24: 8,
	26: 7, 27: 0, 28: 1, 29: 5, 31: 6, 32: 12, 33: 13, 35: 19,
	36: 16, 37: 26, 38: 20, 40: 21,
}

const (
	minGPIO = 2
	maxGPIO = 27
)

// ErrInvalid indicates the pin name does not match a usable pin.
var ErrInvalid = errors.New("invalid pin name")

// Pin maps a pin name to a BCM GPIO number.
//
// Pin names are case insensitive and may be of the form J8pX, GPIOX, or X,
// where X is the header pin number for J8pX and the BCM number otherwise.
// GPIO0 and GPIO1 are reserved for the HAT ID EEPROM so are rejected.
func Pin(s string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if strings.HasPrefix(s, "j8p") {
		n, err := strconv.Atoi(s[3:])
		if err != nil {
			return 0, fmt.Errorf("%w: %s", ErrInvalid, s)
		}
		v, ok := j8[n]
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrInvalid, s)
		}
		return rangeCheck(s, v)
	}
	s = strings.TrimPrefix(s, "gpio")
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalid, s)
	}
	return rangeCheck(s, v)
}

func rangeCheck(s string, v int) (int, error) {
	if v < minGPIO || v > maxGPIO {
		return 0, fmt.Errorf("%w: %s", ErrInvalid, s)
	}
	return v, nil
}

// MustPin converts the string to the corresponding pin number or panics if that
// is not possible.
func MustPin(s string) int {
	v, err := Pin(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Wiring identifies the GPIO lines connecting the depth board.
//
// Enable and LED are -1 if not connected.
type Wiring struct {
	Sclk   int
	Mosi   int
	Miso   int
	Enable int
	LED    int
}

// DepthBoard is the standard depth board wiring, using the SPI0 header pins
// bit bashed.
var DepthBoard = Wiring{
	Sclk:   MustPin("J8p23"),
	Mosi:   MustPin("J8p19"),
	Miso:   MustPin("J8p21"),
	Enable: MustPin("J8p22"),
	LED:    MustPin("J8p12"),
}

// ParseWiring resolves the pin names of a Wiring.
//
// An empty enable or led name indicates the line is not connected.
func ParseWiring(sclk, mosi, miso, enable, led string) (Wiring, error) {
	w := Wiring{Enable: -1, LED: -1}
	var err error
	if w.Sclk, err = Pin(sclk); err != nil {
		return Wiring{}, fmt.Errorf("sclk: %w", err)
	}
	if w.Mosi, err = Pin(mosi); err != nil {
		return Wiring{}, fmt.Errorf("mosi: %w", err)
	}
	if w.Miso, err = Pin(miso); err != nil {
		return Wiring{}, fmt.Errorf("miso: %w", err)
	}
	if enable != "" {
		if w.Enable, err = Pin(enable); err != nil {
			return Wiring{}, fmt.Errorf("enable: %w", err)
		}
	}
	if led != "" {
		if w.LED, err = Pin(led); err != nil {
			return Wiring{}, fmt.Errorf("led: %w", err)
		}
	}
	if err := w.checkDistinct(); err != nil {
		return Wiring{}, err
	}
	return w, nil
}

func (w Wiring) checkDistinct() error {
	seen := map[int]string{}
	for _, p := range []struct {
		name string
		pin  int
	}{
		{"sclk", w.Sclk}, {"mosi", w.Mosi}, {"miso", w.Miso},
		{"enable", w.Enable}, {"led", w.LED},
	} {
		if p.pin < 0 {
			continue
		}
		if other, ok := seen[p.pin]; ok {
			return fmt.Errorf("%w: %s and %s share GPIO%d", ErrInvalid, other, p.name, p.pin)
		}
		seen[p.pin] = p.name
	}
	return nil
}

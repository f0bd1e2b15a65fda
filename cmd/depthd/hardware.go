// SPDX-FileCopyrightText: 2019 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/warthog618/config"
	"github.com/warthog618/gpiod"

	"github.com/deepwire/depth"
	"github.com/deepwire/depth/device/rpi"
	"github.com/deepwire/depth/mockup"
	"github.com/deepwire/depth/spi"
	"github.com/deepwire/depth/spi/spidev"
	"github.com/deepwire/depth/timebase"
)

// hardware is the bus and board lines backing the sensor.
type hardware struct {
	bus    *spi.Controller
	chip   *gpiod.Chip
	enable *gpiod.Line
	led    *gpiod.Line
}

// openHardware opens the bus selected by spi.driver.
//
// The clock is used to pace conversions of the mock sensor.
func openHardware(ctx context.Context, cfg *config.Config, clock timebase.Clock) (*hardware, error) {
	switch drv := cfg.MustGet("spi.driver").String(); drv {
	case "bitbash":
		return openBitbash(cfg)
	case "spidev":
		return openSpidev(ctx, cfg)
	case "mock":
		m := mockup.New(depth.DefaultCoefficients.Words(),
			mockup.WithClock(clock, cfg.MustGet("conversion.time").Duration()),
			mockup.WithRaw(
				uint16(cfg.MustGet("mock.pressure").Int()),
				uint16(cfg.MustGet("mock.temperature").Int())))
		return &hardware{bus: spi.NewController(m)}, nil
	default:
		return nil, fmt.Errorf("unknown spi driver: %s", drv)
	}
}

func openBitbash(cfg *config.Config) (hw *hardware, err error) {
	w, err := rpi.ParseWiring(
		cfg.MustGet("gpio.sclk").String(),
		cfg.MustGet("gpio.mosi").String(),
		cfg.MustGet("gpio.miso").String(),
		cfg.MustGet("gpio.enable").String(),
		cfg.MustGet("gpio.led").String())
	if err != nil {
		return nil, err
	}
	c, err := gpiod.NewChip(cfg.MustGet("gpio.chip").String(), gpiod.WithConsumer("depthd"))
	if err != nil {
		return nil, err
	}
	hw = &hardware{chip: c}
	defer func() {
		if err != nil {
			hw.Close()
		}
	}()
	if w.Enable >= 0 {
		// power the sensor before the first transfer
		hw.enable, err = c.RequestLine(w.Enable, gpiod.AsOutput(1))
		if err != nil {
			return nil, err
		}
	}
	if w.LED >= 0 {
		hw.led, err = c.RequestLine(w.LED, gpiod.AsOutput(0))
		if err != nil {
			return nil, err
		}
	}
	s, err := spi.New(c, w.Sclk, -1, w.Mosi, w.Miso,
		spi.WithTclk(cfg.MustGet("gpio.tclk").Duration()))
	if err != nil {
		return nil, err
	}
	hw.bus = spi.NewController(s)
	return hw, nil
}

func openSpidev(ctx context.Context, cfg *config.Config) (*hardware, error) {
	path := cfg.MustGet("spi.device").String()
	if wait := cfg.MustGet("spi.wait").Duration(); wait > 0 {
		wctx, cancel := context.WithTimeout(ctx, wait)
		err := spidev.WaitForDevice(wctx, path)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("waiting for %s: %w", path, err)
		}
	}
	d, err := spidev.Open(path,
		spidev.WithSpeed(uint32(cfg.MustGet("spi.speed").Int())))
	if err != nil {
		return nil, err
	}
	return &hardware{bus: spi.NewController(d)}, nil
}

// blink flashes the status LED, if the board has one.
func (hw *hardware) blink(d time.Duration) {
	if hw.led == nil {
		return
	}
	hw.led.SetValue(1)
	time.AfterFunc(d, func() {
		hw.led.SetValue(0)
	})
}

// Close releases the bus and board lines.
func (hw *hardware) Close() error {
	var errs []error
	if hw.bus != nil {
		errs = append(errs, hw.bus.Close())
	}
	if hw.led != nil {
		errs = append(errs, hw.led.Close())
	}
	if hw.enable != nil {
		hw.enable.SetValue(0)
		errs = append(errs, hw.enable.Close())
	}
	if hw.chip != nil {
		errs = append(errs, hw.chip.Close())
	}
	err := errors.Join(errs...)
	if err != nil {
		log.Printf("close: %v", err)
	}
	return err
}

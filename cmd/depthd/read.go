// SPDX-FileCopyrightText: 2019 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/warthog618/config"

	"github.com/deepwire/depth"
	"github.com/deepwire/depth/envsense"
	"github.com/deepwire/depth/node"
	"github.com/deepwire/depth/timebase"
)

func init() {
	readCmd.Flags().BoolVarP(&readOpts.Raw, "raw", "r", false, "also display the raw conversion results")
	monitorCmd.Flags().DurationVarP(&readOpts.Interval, "interval", "i", time.Second, "interval between readings")
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(coeffsCmd)
	rootCmd.AddCommand(monitorCmd)
}

var readOpts = struct {
	Raw      bool
	Interval time.Duration
}{}

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Perform a single blocking reading",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		err := read(cmd)
		if err != nil {
			logErr(cmd, err)
		}
		return err
	},
}

var coeffsCmd = &cobra.Command{
	Use:   "coeffs",
	Short: "Read the calibration coefficients from the sensor",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		err := coeffs(cmd)
		if err != nil {
			logErr(cmd, err)
		}
		return err
	},
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Sample the sensor and display readings",
	Long: `Sample the sensor continuously and display the latest reading every
interval, until interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		err := monitor(cmd)
		if err != nil {
			logErr(cmd, err)
		}
		return err
	},
}

type session struct {
	cfg    *config.Config
	clock  *timebase.System
	hw     *hardware
	sensor *depth.Sensor
}

func openSession(ctx context.Context, cmd *cobra.Command) (*session, error) {
	cfg := loadConfig(cmd)
	clock := timebase.NewSystem()
	hw, err := openHardware(ctx, cfg, clock)
	if err != nil {
		return nil, err
	}
	opts, err := sensorOptions(cfg)
	if err != nil {
		hw.Close()
		return nil, err
	}
	s, err := depth.New(hw.bus, append(opts, depth.WithClock(clock))...)
	if err != nil {
		hw.Close()
		return nil, err
	}
	return &session{cfg: cfg, clock: clock, hw: hw, sensor: s}, nil
}

func (s *session) Close() {
	s.sensor.Close()
	s.hw.Close()
}

func read(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	s, err := openSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.Close()
	r, err := s.sensor.Read(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("pressure:    %d mbar (%.4f psi, %d mpsi)\n", r.Millibars, r.PSI(), r.MilliPSI())
	fmt.Printf("temperature: %.1f°C (%d c°C)\n", r.Celsius(), r.CentiCelsius())
	if readOpts.Raw {
		fmt.Printf("D1: %d\nD2: %d\n", r.Raw.Pressure, r.Raw.Temperature)
	}
	return nil
}

func coeffs(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	s, err := openSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.Close()
	c, err := s.sensor.ReadCoefficients(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("C1: %d\nC2: %d\nC3: %d\nC4: %d\nC5: %d\nC6: %d\n",
		c.C1, c.C2, c.C3, c.C4, c.C5, c.C6)
	for i, w := range c.Words() {
		fmt.Printf("W%d: 0x%04x\n", i+1, w)
	}
	return nil
}

func monitor(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	s, err := openSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.Close()
	dev := envsense.New(s.sensor, s.cfg.MustGet("spi.driver").String())
	envs, err := dev.SenseContinuous(readOpts.Interval)
	if err != nil {
		return err
	}
	defer dev.Halt()
	n := node.New(s.sensor, nil)
	go n.Run(ctx, s.cfg.MustGet("loop.period").Duration())
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-envs:
			if !ok {
				return nil
			}
			fmt.Printf("%s: %s %s\n", dev, e.Pressure, e.Temperature)
		}
	}
}

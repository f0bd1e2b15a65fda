// SPDX-FileCopyrightText: 2019 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux

// A daemon that samples an MS5541 depth sensor and reports readings.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "depthd",
	Short: "depthd samples a depth sensor and reports readings",
	Long: `depthd samples an MS5541 pressure sensor and reports depth and water
temperature as $PVRDT sentences on the tether, and optionally via MQTT.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	log.SetPrefix("depthd: ")
	pf := rootCmd.PersistentFlags()
	pf.StringP("config-file", "c", "depthd.json", "configuration file")
	pf.String("spi-driver", "bitbash", "sensor bus driver: bitbash, spidev, or mock")
	pf.String("spi-device", "/dev/spidev0.0", "spidev device path")
	pf.String("gpio-chip", "gpiochip0", "GPIO chip for the bitbash driver")
	pf.Int("port", 0, "bus port of the sensor")
	pf.String("calibration-source", "default", "calibration source: default, device, or config")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func logErr(cmd *cobra.Command, err error) {
	fmt.Fprintf(os.Stderr, "depthd %s: %s\n", cmd.Name(), err)
}

func die(msg string) {
	fmt.Fprintln(os.Stderr, "depthd:", msg)
	os.Exit(1)
}

// SPDX-FileCopyrightText: 2019 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/warthog618/config"
	"github.com/warthog618/config/blob"
	"github.com/warthog618/config/blob/decoder/json"
	"github.com/warthog618/config/dict"
	"github.com/warthog618/config/env"

	"github.com/deepwire/depth"
)

var defaultConfig = map[string]interface{}{
	"config.file":        "depthd.json",
	"port":               0,
	"conversion.time":    "35ms",
	"loop.period":        "1ms",
	"report.period":      "500ms",
	"report.checksum":    false,
	"spi.driver":         "bitbash",
	"spi.device":         "/dev/spidev0.0",
	"spi.speed":          500000,
	"spi.wait":           "0s",
	"gpio.chip":          "gpiochip0",
	"gpio.sclk":          "J8p23",
	"gpio.mosi":          "J8p19",
	"gpio.miso":          "J8p21",
	"gpio.enable":        "J8p22",
	"gpio.led":           "J8p12",
	"gpio.tclk":          "500ns",
	"serial.port":        "",
	"serial.baud":        115200,
	"mqtt.broker":        "",
	"mqtt.topic":         "depth/reading",
	"mqtt.clientid":      "depthd",
	"mqtt.qos":           0,
	"mqtt.timeout":       "1s",
	"metrics.addr":       "",
	"watchdog.timeout":   "500ms",
	"calibration.source": "default",
	"calibration.w1":     0,
	"calibration.w2":     0,
	"calibration.w3":     0,
	"calibration.w4":     0,
	"mock.pressure":      12000,
	"mock.temperature":   20000,
}

// loadConfig layers the command line flags over the environment, the config
// file and the defaults.
//
// Flag names map to config keys with dashes replaced by dots, so
// --spi-driver sets spi.driver, as does DEPTHD_SPI_DRIVER.
func loadConfig(cmd *cobra.Command) *config.Config {
	flags := map[string]interface{}{}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		flags[strings.ReplaceAll(f.Name, "-", ".")] = f.Value.String()
	})
	cfg := config.New(
		dict.New(dict.WithMap(flags)),
		env.New(env.WithEnvPrefix("DEPTHD_")),
		config.WithDefault(dict.New(dict.WithMap(defaultConfig))))
	cfg.Append(
		blob.NewConfigFile(cfg, "config.file", "depthd.json", json.NewDecoder()))
	return cfg.GetConfig("", config.WithMust())
}

// sensorOptions returns the sensor options selected by the config.
func sensorOptions(cfg *config.Config) ([]depth.Option, error) {
	opts := []depth.Option{
		depth.WithPort(int(cfg.MustGet("port").Int())),
		depth.WithConversionTime(cfg.MustGet("conversion.time").Duration()),
	}
	switch src := cfg.MustGet("calibration.source").String(); src {
	case "default":
	case "device":
		opts = append(opts, depth.WithDeviceCalibration())
	case "config":
		var w [4]uint16
		for i := range w {
			w[i] = uint16(cfg.MustGet(fmt.Sprintf("calibration.w%d", i+1)).Int())
		}
		opts = append(opts, depth.WithCoefficients(depth.CoefficientsFromWords(w)))
	default:
		return nil, fmt.Errorf("unknown calibration source: %s", src)
	}
	return opts, nil
}

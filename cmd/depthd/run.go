// SPDX-FileCopyrightText: 2019 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/jacobsa/go-serial/serial"
	"github.com/spf13/cobra"
	"github.com/warthog618/config"

	"github.com/deepwire/depth"
	"github.com/deepwire/depth/node"
	"github.com/deepwire/depth/report"
	"github.com/deepwire/depth/timebase"
)

func init() {
	runCmd.Flags().String("report-period", "500ms", "period between reports")
	runCmd.Flags().Bool("report-checksum", false, "append a checksum to report sentences")
	runCmd.Flags().StringP("serial-port", "s", "", "tether serial port (default stdout)")
	runCmd.Flags().Int("serial-baud", 115200, "tether baud rate")
	runCmd.Flags().String("mqtt-broker", "", "MQTT broker url, e.g. tcp://localhost:1883")
	runCmd.Flags().String("mqtt-topic", "depth/reading", "MQTT topic")
	runCmd.Flags().String("metrics-addr", "", "address to serve prometheus metrics on, e.g. :9100")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Sample the sensor and report readings",
	Long: `Sample the sensor continuously and report the latest reading every
report period on the tether serial port, and optionally via MQTT.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		err := run(cmd)
		if err != nil && !errors.Is(err, context.Canceled) {
			logErr(cmd, err)
			return err
		}
		return nil
	},
}

func run(cmd *cobra.Command) error {
	cfg := loadConfig(cmd)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clock := timebase.NewSystem()
	hw, err := openHardware(ctx, cfg, clock)
	if err != nil {
		return err
	}
	defer hw.Close()
	opts, err := sensorOptions(cfg)
	if err != nil {
		return err
	}
	s, err := depth.New(hw.bus, append(opts, depth.WithClock(clock))...)
	if err != nil {
		return err
	}
	defer s.Close()
	hw.blink(250 * time.Millisecond)
	log.Printf("sensor ready, %+v", s.Coefficients())

	m := newMetrics(s)
	sinks := []report.Sink{m}
	tether, err := openTether(cfg)
	if err != nil {
		return err
	}
	defer tether.Close()
	sinks = append(sinks, report.NewWriterSink(tether, cfg.MustGet("report.checksum").Bool()))
	if broker := cfg.MustGet("mqtt.broker").String(); broker != "" {
		ms, closer, err := openMQTT(cfg, broker)
		if err != nil {
			return err
		}
		defer closer()
		sinks = append(sinks, ms)
	}
	if addr := cfg.MustGet("metrics.addr").String(); addr != "" {
		srv := m.serve(addr)
		defer srv.Close()
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	wd := node.NewWatchdog(cfg.MustGet("watchdog.timeout").Duration(), func() {
		m.barks.Inc()
		cancel(errors.New("main loop watchdog expired"))
	})
	defer wd.Stop()
	em := report.NewEmitter(s, clock, cfg.MustGet("report.period").Duration(), sinks...)
	n := node.New(s, em,
		node.WithWatchdog(wd),
		node.WithErrorHandler(func(err error) {
			m.sinkErrors.Inc()
			log.Printf("report: %v", err)
		}))
	n.Run(ctx, cfg.MustGet("loop.period").Duration())
	st := s.Stats()
	log.Printf("stopped after %d cycles, %d reports, %d bus errors",
		st.Cycles, em.Emitted(), st.BusErrors)
	return context.Cause(ctx)
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error {
	return nil
}

// openTether opens the serial port reports are written to, or stdout if
// none is configured.
func openTether(cfg *config.Config) (io.WriteCloser, error) {
	port := cfg.MustGet("serial.port").String()
	if port == "" {
		return nopCloser{os.Stdout}, nil
	}
	p, err := serial.Open(serial.OpenOptions{
		PortName:        port,
		BaudRate:        uint(cfg.MustGet("serial.baud").Int()),
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
		ParityMode:      serial.PARITY_NONE,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", port, err)
	}
	return p, nil
}

func openMQTT(cfg *config.Config, broker string) (*report.MQTTSink, func(), error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(cfg.MustGet("mqtt.clientid").String()).
		SetAutoReconnect(true).
		SetWriteTimeout(cfg.MustGet("mqtt.timeout").Duration())
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	ms := report.NewMQTTSink(client,
		cfg.MustGet("mqtt.topic").String(),
		byte(cfg.MustGet("mqtt.qos").Int()),
		false,
		cfg.MustGet("mqtt.timeout").Duration())
	closer := func() {
		if err := ms.Flush(); err != nil {
			log.Printf("mqtt: %v", err)
		}
		client.Disconnect(250)
	}
	return ms, closer, nil
}

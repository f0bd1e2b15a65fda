// SPDX-FileCopyrightText: 2019 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux

package main

import (
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/deepwire/depth"
)

// metrics exports the node state to prometheus.
type metrics struct {
	reg         *prometheus.Registry
	pressure    prometheus.Gauge
	temperature prometheus.Gauge
	reports     prometheus.Counter
	sinkErrors  prometheus.Counter
	barks       prometheus.Counter
}

func newMetrics(s *depth.Sensor) *metrics {
	m := metrics{
		reg: prometheus.NewRegistry(),
		pressure: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "depth_pressure_mbar",
			Help: "Most recently reported pressure in millibar.",
		}),
		temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "depth_temperature_celsius",
			Help: "Most recently reported water temperature.",
		}),
		reports: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "depth_reports_total",
			Help: "Number of readings reported.",
		}),
		sinkErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "depth_sink_errors_total",
			Help: "Number of reports that failed to reach a sink.",
		}),
		barks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "depth_watchdog_expiries_total",
			Help: "Number of times the main loop watchdog expired.",
		}),
	}
	m.reg.MustRegister(m.pressure, m.temperature, m.reports, m.sinkErrors, m.barks)
	m.reg.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "depth_cycles_total",
			Help: "Number of completed acquisition cycles.",
		}, func() float64 {
			return float64(s.Stats().Cycles)
		}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "depth_bus_errors_total",
			Help: "Number of acquisition cycles abandoned on a bus error.",
		}, func() float64 {
			return float64(s.Stats().BusErrors)
		}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "depth_direct_reads_total",
			Help: "Number of blocking reads performed.",
		}, func() float64 {
			return float64(s.Stats().DirectReads)
		}))
	return &m
}

// Emit records the reading.
func (m *metrics) Emit(r depth.Reading) error {
	m.pressure.Set(float64(r.Millibars))
	m.temperature.Set(r.Celsius())
	m.reports.Inc()
	return nil
}

// serve exports the metrics over HTTP in the background.
func (m *metrics) serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics: %v", err)
		}
	}()
	return srv
}

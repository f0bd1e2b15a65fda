// SPDX-FileCopyrightText: 2019 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

// Package envsense exposes depth readings as a periph.io environmental
// sensor.
package envsense

import (
	"errors"
	"sync"
	"time"

	"periph.io/x/conn/v3/physic"

	"github.com/deepwire/depth"
)

// Source provides readings.
//
// It is satisfied by *depth.Sensor.
type Source interface {
	Latest() (depth.Reading, error)
}

// Dev is a physic.SenseEnv reporting the latest committed reading of a
// Source.
//
// Dev does not drive acquisition; the Source must be polled elsewhere.
type Dev struct {
	src  Source
	name string

	// mu covers the fields below it.
	mu   sync.Mutex
	stop chan struct{}
	wg   sync.WaitGroup
}

var _ physic.SenseEnv = &Dev{}

// ErrInvalidInterval indicates a continuous sensing interval that is not
// positive.
var ErrInvalidInterval = errors.New("invalid interval")

// New creates a Dev reporting from src.
func New(src Source, name string) *Dev {
	return &Dev{src: src, name: name}
}

func (d *Dev) String() string {
	return "MS5541{" + d.name + "}"
}

// Sense returns the latest reading.
//
// Humidity is not sensed. Returns depth.ErrNoReading until the first cycle
// completes.
func (d *Dev) Sense(e *physic.Env) error {
	r, err := d.src.Latest()
	if err != nil {
		return err
	}
	fromReading(r, e)
	return nil
}

func fromReading(r depth.Reading, e *physic.Env) {
	e.Temperature = physic.ZeroCelsius + physic.Temperature(r.DeciCelsius)*physic.Celsius/10
	e.Pressure = physic.Pressure(r.Millibars) * 100 * physic.Pascal
	e.Humidity = 0
}

// SenseContinuous returns a channel receiving the latest reading every
// interval.
//
// Any previous continuous sensing is halted. Intervals with no reading
// available are skipped.
func (d *Dev) SenseContinuous(interval time.Duration) (<-chan physic.Env, error) {
	if interval <= 0 {
		return nil, ErrInvalidInterval
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.halt()
	c := make(chan physic.Env, 16)
	d.stop = make(chan struct{})
	d.wg.Add(1)
	go d.sensePeriodic(interval, c, d.stop)
	return c, nil
}

// Precision returns the resolution of the reported values.
func (d *Dev) Precision(e *physic.Env) {
	e.Temperature = physic.Kelvin / 10
	e.Pressure = 100 * physic.Pascal
	e.Humidity = 0
}

// Halt stops any continuous sensing.
func (d *Dev) Halt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.halt()
	return nil
}

func (d *Dev) halt() {
	if d.stop == nil {
		return
	}
	close(d.stop)
	d.stop = nil
	d.wg.Wait()
}

func (d *Dev) sensePeriodic(interval time.Duration, c chan<- physic.Env, stop <-chan struct{}) {
	defer d.wg.Done()
	defer close(c)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			var e physic.Env
			if err := d.Sense(&e); err != nil {
				continue
			}
			select {
			case c <- e:
			case <-stop:
				return
			}
		}
	}
}

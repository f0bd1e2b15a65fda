// SPDX-FileCopyrightText: 2019 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux

// Package spidev provides an SPI port using the Linux spidev driver.
package spidev

import (
	"fmt"
	"os"
	"sync"
	"unsafe"

	"github.com/deepwire/depth/spi"
)

// Device is a spi.Port backed by a /dev/spidevB.C character device.
type Device struct {
	path string

	// mu covers the fields below it.
	mu     sync.Mutex
	f      *os.File
	mode   uint8
	speed  uint32
	bits   uint8
	closed bool
}

// Path returns the device path for the given bus and chip select.
func Path(bus, cs int) string {
	return fmt.Sprintf("/dev/spidev%d.%d", bus, cs)
}

// Open opens the spidev device at path and configures it.
func Open(path string, options ...Option) (*Device, error) {
	d := Device{
		path:  path,
		speed: 500000,
		bits:  8,
	}
	for _, option := range options {
		option(&d)
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	d.f = f
	fd := f.Fd()
	if err = doIoctl(fd, wrModeIoctl, unsafe.Pointer(&d.mode)); err != nil {
		f.Close()
		return nil, fmt.Errorf("set mode: %w", err)
	}
	if err = doIoctl(fd, wrBitsPerWordIoctl, unsafe.Pointer(&d.bits)); err != nil {
		f.Close()
		return nil, fmt.Errorf("set bits per word: %w", err)
	}
	if err = doIoctl(fd, wrMaxSpeedHzIoctl, unsafe.Pointer(&d.speed)); err != nil {
		f.Close()
		return nil, fmt.Errorf("set speed: %w", err)
	}
	return &d, nil
}

// Close closes the device.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return spi.ErrClosed
	}
	d.closed = true
	return d.f.Close()
}

// String returns the device path.
func (d *Device) String() string {
	return d.path
}

// SetClockPhase updates the CPHA bit of the device mode.
func (d *Device) SetClockPhase(cpha int) error {
	if cpha != 0 && cpha != 1 {
		return fmt.Errorf("%w: %d", spi.ErrInvalidPhase, cpha)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return spi.ErrClosed
	}
	mode := d.mode &^ modeCPHA
	if cpha == 1 {
		mode |= modeCPHA
	}
	if mode == d.mode {
		return nil
	}
	if err := doIoctl(d.f.Fd(), wrModeIoctl, unsafe.Pointer(&mode)); err != nil {
		return fmt.Errorf("set mode: %w", err)
	}
	d.mode = mode
	return nil
}

// Transfer performs a single byte full duplex transfer.
func (d *Device) Transfer(out byte) (byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, spi.ErrClosed
	}
	tx := [1]byte{out}
	var rx [1]byte
	t := transfer{
		txBuf:       uint64(uintptr(unsafe.Pointer(&tx[0]))),
		rxBuf:       uint64(uintptr(unsafe.Pointer(&rx[0]))),
		len:         1,
		speedHz:     d.speed,
		bitsPerWord: d.bits,
	}
	if err := doIoctl(d.f.Fd(), messageIoctl, unsafe.Pointer(&t)); err != nil {
		return 0, err
	}
	return rx[0], nil
}

// Option specifies a construction option for the Device.
type Option func(*Device)

// WithSpeed sets the maximum clock speed of the device.
func WithSpeed(hz uint32) Option {
	return func(d *Device) {
		d.speed = hz
	}
}

// WithCPOL sets the clock polarity of the device.
func WithCPOL(cpol int) Option {
	return func(d *Device) {
		d.mode &^= modeCPOL
		if cpol != 0 {
			d.mode |= modeCPOL
		}
	}
}

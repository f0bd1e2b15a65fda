// SPDX-FileCopyrightText: 2019 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

package spi

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

var (
	// ErrInvalidPort indicates the port number does not identify a port on
	// the bus.
	ErrInvalidPort = errors.New("invalid port")

	// ErrInvalidPhase indicates a clock phase other than 0 or 1.
	ErrInvalidPhase = errors.New("invalid clock phase")

	// ErrNoTransfer indicates a Wait on a port with no transfer started.
	ErrNoTransfer = errors.New("no transfer in progress")

	// ErrClosed indicates the bus or port has been closed.
	ErrClosed = errors.New("closed")
)

// Port is a single SPI device attachment capable of full duplex byte
// transfers.
type Port interface {
	// Transfer shifts out one byte and returns the byte shifted in.
	Transfer(out byte) (byte, error)

	// SetClockPhase selects the edge on which data is sampled.
	//
	// 0 samples on the leading edge, 1 on the trailing edge.
	SetClockPhase(cpha int) error
}

// Bus is a byte oriented SPI bus addressed by port number.
type Bus interface {
	// Exchange sends a byte and returns the byte received, blocking until the
	// transfer completes.
	Exchange(port int, out byte) (byte, error)

	// WriteNoBlock starts sending a byte without waiting for it to complete.
	//
	// The transfer is completed by a subsequent Wait on the same port.
	WriteNoBlock(port int, out byte) error

	// Wait blocks until the transfer started by WriteNoBlock completes and
	// returns the byte received.
	Wait(port int) (byte, error)

	// SetClockPhase sets the clock phase used for subsequent transfers on the
	// port.
	SetClockPhase(port int, cpha int) error
}

// Controller is a Bus driving a set of Ports, one transfer at a time.
type Controller struct {
	ports []Port

	// sem is held for the duration of a transfer or a port reconfiguration.
	sem chan struct{}

	// mu covers the fields below it.
	mu      sync.Mutex
	pending []*transfer
	closed  bool
}

type transfer struct {
	done chan struct{}
	in   byte
	err  error
}

// NewController creates a Controller for the ports.
//
// Ports are numbered from 0 in the order provided.
func NewController(ports ...Port) *Controller {
	return &Controller{
		ports:   ports,
		sem:     make(chan struct{}, 1),
		pending: make([]*transfer, len(ports)),
	}
}

// Ports returns the number of ports on the bus.
func (c *Controller) Ports() int {
	return len(c.ports)
}

// Exchange sends a byte on the port and returns the byte received.
//
// The transfer runs on the calling goroutine. Any uncollected result of an
// earlier transfer on the port is discarded.
func (c *Controller) Exchange(port int, out byte) (byte, error) {
	if err := c.checkPort(port); err != nil {
		return 0, err
	}
	c.sem <- struct{}{}
	defer func() { <-c.sem }()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, ErrClosed
	}
	c.pending[port] = nil
	c.mu.Unlock()
	return c.ports[port].Transfer(out)
}

// WriteNoBlock starts sending a byte on the port.
//
// It blocks only while another transfer holds the bus. Any uncollected
// result of an earlier transfer on the port is discarded.
func (c *Controller) WriteNoBlock(port int, out byte) error {
	if err := c.checkPort(port); err != nil {
		return err
	}
	c.sem <- struct{}{}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		<-c.sem
		return ErrClosed
	}
	t := &transfer{done: make(chan struct{})}
	c.pending[port] = t
	c.mu.Unlock()
	go func() {
		t.in, t.err = c.ports[port].Transfer(out)
		close(t.done)
		<-c.sem
	}()
	return nil
}

// Wait waits for the transfer on the port to complete.
func (c *Controller) Wait(port int) (byte, error) {
	if err := c.checkPort(port); err != nil {
		return 0, err
	}
	c.mu.Lock()
	t := c.pending[port]
	c.pending[port] = nil
	c.mu.Unlock()
	if t == nil {
		return 0, ErrNoTransfer
	}
	<-t.done
	return t.in, t.err
}

// SetClockPhase sets the clock phase of the port.
//
// Blocks until any transfer in progress completes.
func (c *Controller) SetClockPhase(port int, cpha int) error {
	if err := c.checkPort(port); err != nil {
		return err
	}
	if cpha != 0 && cpha != 1 {
		return fmt.Errorf("%w: %d", ErrInvalidPhase, cpha)
	}
	c.sem <- struct{}{}
	defer func() { <-c.sem }()
	if c.isClosed() {
		return ErrClosed
	}
	return c.ports[port].SetClockPhase(cpha)
}

// Close closes the controller and any ports that are io.Closers.
//
// Blocks until any transfer in progress completes.
func (c *Controller) Close() error {
	c.sem <- struct{}{}
	defer func() { <-c.sem }()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.closed = true
	c.mu.Unlock()
	var errs []error
	for _, p := range c.ports {
		if cl, ok := p.(io.Closer); ok {
			if err := cl.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (c *Controller) checkPort(port int) error {
	if port < 0 || port >= len(c.ports) {
		return fmt.Errorf("%w: %d", ErrInvalidPort, port)
	}
	return nil
}

func (c *Controller) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// SPDX-FileCopyrightText: 2019 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

package spi_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/deepwire/depth/spi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoPort returns the complement of each byte sent to it.
type echoPort struct {
	mu     sync.Mutex
	delay  time.Duration
	sent   []byte
	cpha   int
	active int
	max    int
	err    error
	closed bool
}

func (p *echoPort) Transfer(out byte) (byte, error) {
	p.mu.Lock()
	p.active++
	if p.active > p.max {
		p.max = p.active
	}
	p.mu.Unlock()
	time.Sleep(p.delay)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active--
	if p.err != nil {
		return 0, p.err
	}
	p.sent = append(p.sent, out)
	return ^out, nil
}

func (p *echoPort) SetClockPhase(cpha int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cpha = cpha
	return nil
}

func (p *echoPort) Close() error {
	p.closed = true
	return nil
}

func TestControllerExchange(t *testing.T) {
	p0 := &echoPort{}
	p1 := &echoPort{}
	c := spi.NewController(p0, p1)
	assert.Equal(t, 2, c.Ports())

	in, err := c.Exchange(0, 0x0f)
	assert.Nil(t, err)
	assert.Equal(t, byte(0xf0), in)
	in, err = c.Exchange(1, 0x55)
	assert.Nil(t, err)
	assert.Equal(t, byte(0xaa), in)
	assert.Equal(t, []byte{0x0f}, p0.sent)
	assert.Equal(t, []byte{0x55}, p1.sent)
}

// nullPort returns each byte sent to it.
type nullPort struct{}

func (nullPort) Transfer(out byte) (byte, error) {
	return out, nil
}

func (nullPort) SetClockPhase(int) error {
	return nil
}

func TestControllerExchangeInline(t *testing.T) {
	c := spi.NewController(nullPort{})
	allocs := testing.AllocsPerRun(100, func() {
		c.Exchange(0, 0x55)
	})
	assert.Zero(t, allocs)

	// discards an uncollected write
	require.Nil(t, c.WriteNoBlock(0, 0x0f))
	v, err := c.Exchange(0, 0xaa)
	require.Nil(t, err)
	assert.Equal(t, byte(0xaa), v)
	_, err = c.Wait(0)
	assert.ErrorIs(t, err, spi.ErrNoTransfer)

	require.Nil(t, c.Close())
	_, err = c.Exchange(0, 0xaa)
	assert.ErrorIs(t, err, spi.ErrClosed)
}

func TestControllerInvalidPort(t *testing.T) {
	c := spi.NewController(&echoPort{})
	_, err := c.Exchange(1, 0)
	assert.ErrorIs(t, err, spi.ErrInvalidPort)
	_, err = c.Exchange(-1, 0)
	assert.ErrorIs(t, err, spi.ErrInvalidPort)
	assert.ErrorIs(t, c.WriteNoBlock(3, 0), spi.ErrInvalidPort)
	_, err = c.Wait(3)
	assert.ErrorIs(t, err, spi.ErrInvalidPort)
	assert.ErrorIs(t, c.SetClockPhase(3, 0), spi.ErrInvalidPort)
}

func TestControllerWriteNoBlock(t *testing.T) {
	p := &echoPort{delay: 20 * time.Millisecond}
	c := spi.NewController(p)
	start := time.Now()
	require.Nil(t, c.WriteNoBlock(0, 0x1d))
	assert.Less(t, time.Since(start), 20*time.Millisecond)
	in, err := c.Wait(0)
	assert.Nil(t, err)
	assert.Equal(t, byte(0xe2), in)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	// result collected only once
	_, err = c.Wait(0)
	assert.ErrorIs(t, err, spi.ErrNoTransfer)
}

func TestControllerWaitWithoutWrite(t *testing.T) {
	c := spi.NewController(&echoPort{})
	_, err := c.Wait(0)
	assert.ErrorIs(t, err, spi.ErrNoTransfer)
}

func TestControllerSerializes(t *testing.T) {
	p := &echoPort{delay: time.Millisecond}
	c := spi.NewController(p)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(b byte) {
			defer wg.Done()
			_, err := c.Exchange(0, b)
			assert.Nil(t, err)
		}(byte(i))
	}
	wg.Wait()
	assert.Len(t, p.sent, 8)
	assert.Equal(t, 1, p.max)
}

func TestControllerTransferError(t *testing.T) {
	portErr := errors.New("port failed")
	c := spi.NewController(&echoPort{err: portErr})
	_, err := c.Exchange(0, 0)
	assert.Equal(t, portErr, err)
}

func TestControllerSetClockPhase(t *testing.T) {
	p := &echoPort{}
	c := spi.NewController(p)
	assert.Nil(t, c.SetClockPhase(0, 1))
	assert.Equal(t, 1, p.cpha)
	assert.ErrorIs(t, c.SetClockPhase(0, 2), spi.ErrInvalidPhase)
	assert.Equal(t, 1, p.cpha)
}

func TestControllerClose(t *testing.T) {
	p := &echoPort{}
	c := spi.NewController(p)
	assert.Nil(t, c.Close())
	assert.True(t, p.closed)
	assert.Equal(t, spi.ErrClosed, c.Close())
	_, err := c.Exchange(0, 0)
	assert.Equal(t, spi.ErrClosed, err)
	assert.Equal(t, spi.ErrClosed, c.SetClockPhase(0, 1))
}

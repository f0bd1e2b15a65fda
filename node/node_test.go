// SPDX-FileCopyrightText: 2019 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

package node_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/deepwire/depth"
	"github.com/deepwire/depth/mockup"
	"github.com/deepwire/depth/node"
	"github.com/deepwire/depth/report"
	"github.com/deepwire/depth/spi"
	"github.com/deepwire/depth/timebase"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scenarioCoefficients = depth.Coefficients{C1: 1000, C3: 1023, C4: 1023}

func TestNodeLoop(t *testing.T) {
	clk := timebase.NewCounter(time.Millisecond, 0)
	m := mockup.New(scenarioCoefficients.Words(),
		mockup.WithRaw(0x2000, 0x1800),
		mockup.WithClock(clk, depth.DefaultConversionTime))
	s, err := depth.New(spi.NewController(m),
		depth.WithClock(clk),
		depth.WithDeviceCalibration())
	require.Nil(t, err)
	var buf bytes.Buffer
	e := report.NewEmitter(s, clk, report.DefaultPeriod, report.NewWriterSink(&buf, false))
	kicks := &kicker{}
	n := node.New(s, e, node.WithWatchdog(kicks))

	for i := 0; i < 2000; i++ {
		n.Step()
		clk.Tick()
	}
	// each cycle takes 72 ticks, the first completing at tick 71
	assert.Equal(t, uint64(27), n.Cycles())
	assert.Equal(t, uint64(3), n.Reports())
	assert.Equal(t, int64(2000), kicks.n.Load())
	assert.Equal(t, strings.Repeat("$PVRDT,234,30\r\n", 3), buf.String())
	assert.Zero(t, m.Counts().EarlyReads)
}

func TestNodeWithoutEmitter(t *testing.T) {
	p := &poller{every: 4}
	n := node.New(p, nil)
	for i := 0; i < 12; i++ {
		n.Step()
	}
	assert.Equal(t, uint64(3), n.Cycles())
	assert.Zero(t, n.Reports())
}

func TestNodeErrorHandler(t *testing.T) {
	sinkErr := errors.New("sink failed")
	var got []error
	n := node.New(&poller{}, servicer{true, sinkErr},
		node.WithErrorHandler(func(err error) { got = append(got, err) }))
	cycled, reported := n.Step()
	assert.False(t, cycled)
	assert.True(t, reported)
	assert.Equal(t, []error{sinkErr}, got)

	// ignored without a handler
	n = node.New(&poller{}, servicer{false, sinkErr})
	_, reported = n.Step()
	assert.False(t, reported)
}

func TestNodeRun(t *testing.T) {
	p := &poller{}
	n := node.New(p, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := n.Run(ctx, 0)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Greater(t, p.polls, 0)
}

func TestWatchdog(t *testing.T) {
	var barks atomic.Int32
	w := node.NewWatchdog(30*time.Millisecond, func() { barks.Add(1) })
	for i := 0; i < 10; i++ {
		time.Sleep(5 * time.Millisecond)
		w.Kick()
	}
	assert.Zero(t, w.Expired())
	assert.Eventually(t, func() bool {
		return w.Expired() == 1
	}, time.Second, time.Millisecond)
	assert.Equal(t, int32(1), barks.Load())

	w.Kick()
	w.Stop()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, w.Expired())
}

// A broker that stalls for longer than the watchdog timeout must not stall
// the loop.
func TestNodeStalledSink(t *testing.T) {
	stall := make(chan struct{})
	defer close(stall)
	clk := timebase.NewCounter(time.Millisecond, 0)
	sink := report.NewMQTTSink(stalledPublisher(stall), "vehicle/depth", 0, false, time.Second)
	e := report.NewEmitter(source{}, clk, time.Millisecond, sink)
	wd := node.NewWatchdog(50*time.Millisecond, nil)
	defer wd.Stop()
	var errs []error
	n := node.New(&poller{}, e,
		node.WithWatchdog(wd),
		node.WithErrorHandler(func(err error) { errs = append(errs, err) }))

	for i := 0; i < 20; i++ {
		clk.Tick()
		start := time.Now()
		n.Step()
		assert.Less(t, time.Since(start), 25*time.Millisecond)
		time.Sleep(5 * time.Millisecond)
	}
	assert.Zero(t, wd.Expired())
	assert.Equal(t, uint64(20), n.Reports())
	require.NotEmpty(t, errs)
	assert.ErrorIs(t, errs[0], report.ErrPublishBacklog)
}

type source struct{}

func (source) Latest() (depth.Reading, error) {
	return depth.Reading{Millibars: 1013}, nil
}

type stalledPublisher <-chan struct{}

func (p stalledPublisher) Publish(string, byte, bool, interface{}) mqtt.Token {
	<-p
	return &mqtt.DummyToken{}
}

type kicker struct {
	n atomic.Int64
}

func (k *kicker) Kick() {
	k.n.Add(1)
}

type poller struct {
	polls int
	every int
}

func (p *poller) Poll() bool {
	p.polls++
	return p.every > 0 && p.polls%p.every == 0
}

type servicer struct {
	reported bool
	err      error
}

func (s servicer) Service() (bool, error) {
	return s.reported, s.err
}

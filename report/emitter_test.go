// SPDX-FileCopyrightText: 2019 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

package report_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/deepwire/depth"
	"github.com/deepwire/depth/report"
	"github.com/deepwire/depth/timebase"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type source struct {
	r   depth.Reading
	err error
}

func (s *source) Latest() (depth.Reading, error) {
	return s.r, s.err
}

func TestEmitter(t *testing.T) {
	clk := timebase.NewCounter(time.Millisecond, 1000)
	src := &source{err: depth.ErrNoReading}
	var buf bytes.Buffer
	e := report.NewEmitter(src, clk, 0, report.NewWriterSink(&buf, false))

	// not due
	clk.Advance(499)
	ok, err := e.Service()
	assert.False(t, ok)
	assert.Nil(t, err)

	// due but nothing to report
	clk.Tick()
	ok, err = e.Service()
	assert.False(t, ok)
	assert.Nil(t, err)
	assert.Zero(t, buf.Len())

	// slot was consumed
	src.r = depth.Reading{Seq: 1, Millibars: 229, DeciCelsius: 3}
	src.err = nil
	ok, err = e.Service()
	assert.False(t, ok)
	assert.Nil(t, err)

	clk.Advance(500)
	ok, err = e.Service()
	assert.True(t, ok)
	assert.Nil(t, err)
	assert.Equal(t, "$PVRDT,229,30\r\n", buf.String())

	// repeats the same reading
	clk.Advance(500)
	ok, err = e.Service()
	assert.True(t, ok)
	assert.Nil(t, err)
	assert.Equal(t, "$PVRDT,229,30\r\n$PVRDT,229,30\r\n", buf.String())
	assert.Equal(t, uint64(2), e.Emitted())
}

func TestEmitterPeriod(t *testing.T) {
	clk := timebase.NewCounter(10*time.Millisecond, 0)
	src := &source{r: depth.Reading{Millibars: 1}}
	count := 0
	e := report.NewEmitter(src, clk, 100*time.Millisecond,
		report.SinkFunc(func(depth.Reading) error {
			count++
			return nil
		}))
	for i := 0; i < 100; i++ {
		clk.Tick()
		_, err := e.Service()
		require.Nil(t, err)
	}
	assert.Equal(t, 10, count)
}

func TestEmitterErrors(t *testing.T) {
	clk := timebase.NewCounter(time.Millisecond, 0)
	srcErr := errors.New("source failed")
	src := &source{err: srcErr}
	sinkErr := errors.New("sink failed")
	served := 0
	e := report.NewEmitter(src, clk, report.DefaultPeriod,
		report.SinkFunc(func(depth.Reading) error { return sinkErr }),
		report.SinkFunc(func(depth.Reading) error {
			served++
			return nil
		}))

	clk.Advance(500)
	ok, err := e.Service()
	assert.False(t, ok)
	assert.Equal(t, srcErr, err)

	src.err = nil
	clk.Advance(500)
	ok, err = e.Service()
	assert.True(t, ok)
	assert.ErrorIs(t, err, sinkErr)
	assert.Equal(t, 1, served)
}

func TestEmitterWrap(t *testing.T) {
	clk := timebase.NewCounter(time.Millisecond, 0xffffff00)
	src := &source{r: depth.Reading{Millibars: 1}}
	e := report.NewEmitter(src, clk, report.DefaultPeriod)
	clk.Advance(499)
	ok, _ := e.Service()
	assert.False(t, ok)
	clk.Advance(1)
	ok, _ = e.Service()
	assert.True(t, ok)
}

type token struct {
	done    chan struct{}
	err     error
	timeout bool
}

func (t *token) Wait() bool {
	<-t.done
	return true
}

func (t *token) WaitTimeout(time.Duration) bool {
	return !t.timeout
}

func (t *token) Done() <-chan struct{} {
	return t.done
}

func (t *token) Error() error {
	return t.err
}

// publisher is a fake broker connection. Publish blocks while stall is open.
type publisher struct {
	stall <-chan struct{}

	mu       sync.Mutex
	topic    string
	qos      byte
	retained bool
	payload  interface{}
	tok      *token
	count    int
}

func (p *publisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	if p.stall != nil {
		<-p.stall
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.qos = qos
	p.retained = retained
	p.payload = payload
	p.count++
	return p.tok
}

func (p *publisher) setToken(tok *token) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tok = tok
}

func emitAndFlush(s *report.MQTTSink, r depth.Reading) error {
	return errors.Join(s.Emit(r), s.Flush())
}

func TestMQTTSink(t *testing.T) {
	done := make(chan struct{})
	close(done)
	pub := &publisher{tok: &token{done: done}}
	s := report.NewMQTTSink(pub, "vehicle/depth", 1, true, time.Second)
	r := depth.Compute(depth.RawSample{Pressure: 12000, Temperature: 20000}, depth.DefaultCoefficients)
	r.Seq = 7
	require.Nil(t, emitAndFlush(s, r))
	pub.mu.Lock()
	assert.Equal(t, "vehicle/depth", pub.topic)
	assert.Equal(t, byte(1), pub.qos)
	assert.True(t, pub.retained)
	b, ok := pub.payload.([]byte)
	pub.mu.Unlock()
	require.True(t, ok)

	var p report.Payload
	require.Nil(t, json.Unmarshal(b, &p))
	assert.Equal(t, report.NewPayload(r), p)
	assert.Equal(t, uint64(7), p.Seq)
	assert.Equal(t, int32(1285), p.Millibar)
	assert.InDelta(t, 22.4, p.Celsius, 1e-9)
	assert.Equal(t, uint16(12000), p.RawPressure)

	pubErr := errors.New("not connected")
	pub.setToken(&token{done: done, err: pubErr})
	assert.ErrorIs(t, emitAndFlush(s, r), pubErr)

	pub.setToken(&token{done: done, timeout: true})
	assert.ErrorIs(t, emitAndFlush(s, r), report.ErrPublishTimeout)

	// errors are reported once
	pub.setToken(&token{done: done})
	assert.Nil(t, emitAndFlush(s, r))
}

func TestMQTTSinkStalledBroker(t *testing.T) {
	stall := make(chan struct{})
	pub := &publisher{tok: &token{}, stall: stall}
	s := report.NewMQTTSink(pub, "vehicle/depth", 0, false, time.Second)
	r := depth.Reading{Millibars: 1285}

	start := time.Now()
	for i := 0; i < report.DefaultMaxInFlight; i++ {
		assert.Nil(t, s.Emit(r))
	}
	assert.ErrorIs(t, s.Emit(r), report.ErrPublishBacklog)
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	close(stall)
	assert.Nil(t, s.Flush())
	pub.mu.Lock()
	assert.Equal(t, report.DefaultMaxInFlight, pub.count)
	pub.mu.Unlock()

	// backlog drained
	assert.Nil(t, emitAndFlush(s, r))
}

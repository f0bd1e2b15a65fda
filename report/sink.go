// SPDX-FileCopyrightText: 2019 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

package report

import (
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/deepwire/depth"
)

// WriterSink writes report lines to an io.Writer, such as the tether UART.
type WriterSink struct {
	w        io.Writer
	checksum bool
}

// NewWriterSink creates a WriterSink.
func NewWriterSink(w io.Writer, checksum bool) *WriterSink {
	return &WriterSink{w: w, checksum: checksum}
}

// Emit writes the report line for the reading.
func (s *WriterSink) Emit(r depth.Reading) error {
	_, err := io.WriteString(s.w, Format(r, s.checksum))
	return err
}

// Publisher publishes MQTT messages.
//
// It is satisfied by mqtt.Client.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// ErrPublishTimeout indicates the broker did not acknowledge a publish in
// time.
var ErrPublishTimeout = errors.New("publish timeout")

// Payload is the JSON encoding of a reading published by the MQTTSink.
type Payload struct {
	Seq            uint64  `json:"seq"`
	Millibar       int32   `json:"pressure_mbar"`
	PSI            float64 `json:"pressure_psi"`
	Celsius        float64 `json:"temperature_c"`
	RawPressure    uint16  `json:"raw_pressure"`
	RawTemperature uint16  `json:"raw_temperature"`
}

// NewPayload returns the payload for a reading.
func NewPayload(r depth.Reading) Payload {
	return Payload{
		Seq:            r.Seq,
		Millibar:       r.Millibars,
		PSI:            r.PSI(),
		Celsius:        r.Celsius(),
		RawPressure:    r.Raw.Pressure,
		RawTemperature: r.Raw.Temperature,
	}
}

// DefaultMaxInFlight is the default limit on publishes awaiting the broker.
const DefaultMaxInFlight = 4

// ErrPublishBacklog indicates a reading was dropped as too many publishes
// were still awaiting the broker.
var ErrPublishBacklog = errors.New("publish backlog full")

// MQTTSink publishes readings as JSON to an MQTT topic.
//
// Publishing runs in the background so Emit never waits on the broker.
// Failures are reported by subsequent calls to Emit or Flush.
type MQTTSink struct {
	pub      Publisher
	topic    string
	qos      byte
	retained bool
	timeout  time.Duration
	inflight chan struct{}
	wg       sync.WaitGroup

	// mu covers errs.
	mu   sync.Mutex
	errs []error
}

// NewMQTTSink creates an MQTTSink publishing to topic.
//
// Each publish waits at most timeout for the broker.
func NewMQTTSink(pub Publisher, topic string, qos byte, retained bool, timeout time.Duration) *MQTTSink {
	return &MQTTSink{
		pub:      pub,
		topic:    topic,
		qos:      qos,
		retained: retained,
		timeout:  timeout,
		inflight: make(chan struct{}, DefaultMaxInFlight),
	}
}

// Emit starts publishing the reading and returns without waiting for the
// broker.
//
// Returns the errors of earlier publishes that have since failed, or
// ErrPublishBacklog if the reading had to be dropped.
func (s *MQTTSink) Emit(r depth.Reading) error {
	payload, err := json.Marshal(NewPayload(r))
	if err != nil {
		return err
	}
	select {
	case s.inflight <- struct{}{}:
	default:
		return errors.Join(s.takeErrors(), ErrPublishBacklog)
	}
	s.wg.Add(1)
	go s.publish(payload)
	return s.takeErrors()
}

// Flush waits for publishes in flight and returns any errors not yet
// reported.
func (s *MQTTSink) Flush() error {
	s.wg.Wait()
	return s.takeErrors()
}

func (s *MQTTSink) publish(payload []byte) {
	defer s.wg.Done()
	defer func() { <-s.inflight }()
	token := s.pub.Publish(s.topic, s.qos, s.retained, payload)
	err := ErrPublishTimeout
	if token.WaitTimeout(s.timeout) {
		err = token.Error()
	}
	if err == nil {
		return
	}
	s.mu.Lock()
	s.errs = append(s.errs, err)
	s.mu.Unlock()
}

func (s *MQTTSink) takeErrors() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := errors.Join(s.errs...)
	s.errs = nil
	return err
}

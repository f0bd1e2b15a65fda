// SPDX-FileCopyrightText: 2019 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

package mockup_test

import (
	"errors"
	"testing"
	"time"

	"github.com/deepwire/depth/mockup"
	"github.com/deepwire/depth/timebase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var words = [4]uint16{0x1234, 0x5678, 0x9abc, 0xdef0}

func send(t *testing.T, m *mockup.MS5541, bb ...byte) {
	t.Helper()
	require.Nil(t, m.SetClockPhase(0))
	for _, b := range bb {
		_, err := m.Transfer(b)
		require.Nil(t, err)
	}
}

func readWord(t *testing.T, m *mockup.MS5541) uint16 {
	t.Helper()
	require.Nil(t, m.SetClockPhase(1))
	hi, err := m.Transfer(0)
	require.Nil(t, err)
	lo, err := m.Transfer(0)
	require.Nil(t, err)
	return uint16(hi)<<8 | uint16(lo)
}

func TestReset(t *testing.T) {
	m := mockup.New(words)
	send(t, m, 0x15, 0x55, 0x40)
	send(t, m, 0x15, 0x55, 0x41)
	c := m.Counts()
	assert.Equal(t, 1, c.Resets)
	assert.Equal(t, 1, c.BadCommands)
	assert.Equal(t, 6, c.Transfers)
}

func TestCalibrationWords(t *testing.T) {
	m := mockup.New(words)
	for i, addr := range []byte{0x50, 0x60, 0x90, 0xa0} {
		send(t, m, 0x15, 0x55, 0x40, 0x1d, addr)
		assert.Equal(t, words[i], readWord(t, m))
	}
	send(t, m, 0x1d, 0x70)
	c := m.Counts()
	assert.Equal(t, 4, c.WordReads)
	assert.Equal(t, 1, c.BadCommands)
}

func TestConversions(t *testing.T) {
	m := mockup.New(words, mockup.WithRaw(0x2000, 0x1800))
	send(t, m, 0x15, 0x55, 0x40, 0x0f, 0x40)
	assert.Equal(t, uint16(0x2000), readWord(t, m))
	send(t, m, 0x15, 0x55, 0x40, 0x0f, 0x20)
	assert.Equal(t, uint16(0x1800), readWord(t, m))
	// nothing further to read
	assert.Equal(t, uint16(0xffff), readWord(t, m))

	m.SetRaw(1, 2)
	send(t, m, 0x0f, 0x20)
	assert.Equal(t, uint16(2), readWord(t, m))
	assert.Equal(t, 3, m.Counts().Conversions)
}

func TestConversionTiming(t *testing.T) {
	clk := timebase.NewCounter(time.Millisecond, 0)
	m := mockup.New(words,
		mockup.WithRaw(100, 200),
		mockup.WithClock(clk, 35*time.Millisecond))
	send(t, m, 0x0f, 0x40)
	clk.Advance(34)
	assert.Equal(t, uint16(0xffff), readWord(t, m))
	assert.Equal(t, 1, m.Counts().EarlyReads)

	send(t, m, 0x0f, 0x40)
	clk.Advance(35)
	assert.Equal(t, uint16(100), readWord(t, m))
	assert.Equal(t, 1, m.Counts().EarlyReads)
}

func TestFailNext(t *testing.T) {
	m := mockup.New(words)
	failure := errors.New("bus fault")
	m.FailNext(nil, failure)
	_, err := m.Transfer(0x15)
	assert.Nil(t, err)
	_, err = m.Transfer(0x55)
	assert.Equal(t, failure, err)
	_, err = m.Transfer(0x40)
	assert.Nil(t, err)
}

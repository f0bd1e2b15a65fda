// SPDX-FileCopyrightText: 2019 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux

package spidev

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIoctls(t *testing.T) {
	assert.Equal(t, uintptr(32), unsafe.Sizeof(transfer{}))
	assert.Equal(t, ioctl(0x40206b00), messageIoctl)
	assert.Equal(t, ioctl(0x40016b01), wrModeIoctl)
	assert.Equal(t, ioctl(0x40016b03), wrBitsPerWordIoctl)
	assert.Equal(t, ioctl(0x40046b04), wrMaxSpeedHzIoctl)
}

func TestPath(t *testing.T) {
	assert.Equal(t, "/dev/spidev0.0", Path(0, 0))
	assert.Equal(t, "/dev/spidev1.2", Path(1, 2))
}

func TestOpenMissing(t *testing.T) {
	d, err := Open(filepath.Join(t.TempDir(), "spidev9.9"))
	assert.True(t, os.IsNotExist(err))
	assert.Nil(t, d)
}

func TestOpenNotSpidev(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spidev0.0")
	require.Nil(t, os.WriteFile(path, nil, 0600))
	d, err := Open(path)
	assert.NotNil(t, err)
	assert.Nil(t, d)
}

func TestOptions(t *testing.T) {
	d := Device{}
	WithSpeed(1000000)(&d)
	WithCPOL(1)(&d)
	assert.Equal(t, uint32(1000000), d.speed)
	assert.Equal(t, uint8(modeCPOL), d.mode)
	WithCPOL(0)(&d)
	assert.Equal(t, uint8(0), d.mode)
}

func TestMatchesDevice(t *testing.T) {
	assert.True(t, matchesDevice(map[string]string{"DEVNAME": "spidev0.0"}, "spidev0.0"))
	assert.True(t, matchesDevice(map[string]string{"DEVNAME": "/dev/spidev0.0"}, "spidev0.0"))
	assert.False(t, matchesDevice(map[string]string{"DEVNAME": "spidev0.1"}, "spidev0.0"))
	assert.False(t, matchesDevice(map[string]string{}, "spidev0.0"))
}

func TestWaitForDeviceExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spidev0.0")
	require.Nil(t, os.WriteFile(path, nil, 0600))
	assert.Nil(t, WaitForDevice(context.Background(), path))
}

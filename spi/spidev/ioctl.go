// SPDX-FileCopyrightText: 2019 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux

package spidev

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// ioctl constants
const (
	iocNRBits    = 8
	iocTypeBits  = 8
	iocSizeBits  = 14
	iocNRShift   = 0
	iocTypeShift = iocNRShift + iocNRBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits
	iocWrite     = 1

	spiIOCMagic = 'k'
)

// Mode bits.
const (
	modeCPHA = 0x01
	modeCPOL = 0x02
)

type ioctl uintptr

func iow(t, nr, size uintptr) ioctl {
	return ioctl((iocWrite << iocDirShift) |
		(size << iocSizeShift) |
		(t << iocTypeShift) |
		(nr << iocNRShift))
}

// transfer mirrors struct spi_ioc_transfer.
type transfer struct {
	txBuf          uint64
	rxBuf          uint64
	len            uint32
	speedHz        uint32
	delayUsecs     uint16
	bitsPerWord    uint8
	csChange       uint8
	txNbits        uint8
	rxNbits        uint8
	wordDelayUsecs uint8
	pad            uint8
}

var (
	messageIoctl       = iow(spiIOCMagic, 0, unsafe.Sizeof(transfer{}))
	wrModeIoctl        = iow(spiIOCMagic, 1, 1)
	wrBitsPerWordIoctl = iow(spiIOCMagic, 3, 1)
	wrMaxSpeedHzIoctl  = iow(spiIOCMagic, 4, 4)
)

func doIoctl(fd uintptr, req ioctl, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, uintptr(req), uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

// SPDX-FileCopyrightText: 2019 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux

package spidev

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pilebones/go-udev/netlink"
)

// WaitForDevice waits until the device node at path exists.
//
// Returns immediately if the node already exists, else waits for the udev add
// event for the node, such as when the spidev module is loaded after the
// node has started.
func WaitForDevice(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		return fmt.Errorf("unable to connect to Netlink Kobject UEvent socket: %w", err)
	}
	defer conn.Close()
	action := "add"
	matcher := &netlink.RuleDefinition{Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "spidev",
		}}
	queue := make(chan netlink.UEvent, 8)
	errs := make(chan error, 1)
	quit := conn.Monitor(queue, errs, matcher)
	defer close(quit)
	// the node may have been created while connecting
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	name := filepath.Base(path)
	for {
		select {
		case evt := <-queue:
			if matchesDevice(evt.Env, name) {
				return nil
			}
		case err := <-errs:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func matchesDevice(env map[string]string, name string) bool {
	devname := env["DEVNAME"]
	return devname == name || filepath.Base(devname) == name
}

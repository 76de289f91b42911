// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux

package main

import (
	"fmt"

	"github.com/vishvananda/netlink"
)

// checkLink verifies the interface exists before it is baked into a rule.
func checkLink(name string) error {
	if _, err := netlink.LinkByName(name); err != nil {
		return fmt.Errorf("interface %q: %w", name, err)
	}
	return nil
}

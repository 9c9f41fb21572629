//go:build linux

// SPDX-License-Identifier: GPL-3.0-or-later

package sysnet

import "golang.org/x/sys/unix"

const (
	haveIPv6TrafficClass = true
	ipv6TrafficClass     = unix.IPV6_TCLASS
)

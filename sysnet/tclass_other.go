//go:build unix && !linux && !darwin && !freebsd && !netbsd

// SPDX-License-Identifier: GPL-3.0-or-later

package sysnet

const (
	haveIPv6TrafficClass = false
	ipv6TrafficClass     = 0
)

//go:build darwin

// SPDX-License-Identifier: GPL-3.0-or-later

package sysnet

// IPV6_TCLASS from <netinet6/in6.h>.
const (
	haveIPv6TrafficClass = true
	ipv6TrafficClass     = 36
)

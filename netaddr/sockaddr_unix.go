//go:build unix

// SPDX-License-Identifier: GPL-3.0-or-later

package netaddr

import "golang.org/x/sys/unix"

const (
	afInet  = unix.AF_INET
	afInet6 = unix.AF_INET6
)

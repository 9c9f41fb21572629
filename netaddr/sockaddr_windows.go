//go:build windows

// SPDX-License-Identifier: GPL-3.0-or-later

package netaddr

import "golang.org/x/sys/windows"

const (
	afInet  = windows.AF_INET
	afInet6 = windows.AF_INET6
)

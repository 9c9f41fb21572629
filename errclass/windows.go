//go:build windows

// SPDX-License-Identifier: GPL-3.0-or-later

package errclass

import "golang.org/x/sys/windows"

const (
	errEAGAIN       = windows.WSAEWOULDBLOCK
	errEWOULDBLOCK  = windows.WSAEWOULDBLOCK
	errEINPROGRESS  = windows.WSAEINPROGRESS
	errEALREADY     = windows.WSAEALREADY
	errEINTR        = windows.WSAEINTR
	errENOPROTOOPT  = windows.WSAENOPROTOOPT
	errEAFNOSUPPORT = windows.WSAEAFNOSUPPORT
	errECONNREFUSED = windows.WSAECONNREFUSED
)

// inProgressIsWouldBlock is true because Winsock reports
// a pending non-blocking connect with WSAEWOULDBLOCK.
const inProgressIsWouldBlock = true

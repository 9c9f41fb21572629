//go:build unix

// SPDX-License-Identifier: GPL-3.0-or-later

package errclass

import "golang.org/x/sys/unix"

const (
	errEAGAIN       = unix.EAGAIN
	errEWOULDBLOCK  = unix.EWOULDBLOCK
	errEINPROGRESS  = unix.EINPROGRESS
	errEALREADY     = unix.EALREADY
	errEINTR        = unix.EINTR
	errENOPROTOOPT  = unix.ENOPROTOOPT
	errEAFNOSUPPORT = unix.EAFNOSUPPORT
	errECONNREFUSED = unix.ECONNREFUSED
)

// inProgressIsWouldBlock is false because Unix
// reports a pending connect with EINPROGRESS.
const inProgressIsWouldBlock = false

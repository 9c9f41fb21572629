// SPDX-License-Identifier: GPL-3.0-or-later

/*
Package errclass classifies socket errors.

It extends [github.com/rbmk-project/common/errclass] with the classes
the dual-stack sockets need to make decisions: whether an operation
would block, whether a non-blocking connect is in progress, and which
native error number a failure carries.

# Design Principles

1. Preserve original error in `err` in the structured logs.

2. Add the classified error as the `errClass` field.

3. Use [errors.Is] and [errors.As] for classification.

4. Map the nil error to an empty string.

# Socket Errors

- [EWOULDBLOCK] for EAGAIN, EWOULDBLOCK and WSAEWOULDBLOCK

- [EINPROGRESS] for EINPROGRESS, EALREADY and their Winsock variants

- [ENOPROTOOPT] for an unsupported socket option

- [EAFNOSUPPORT] for an unsupported address family

The actual system error constants are defined in platform-specific files:

- unix.go for Unix-like systems using x/sys/unix

- windows.go for Windows systems using x/sys/windows

Everything else is classified by [errclass.New].
*/
package errclass

import (
	"errors"
	"syscall"

	"github.com/rbmk-project/common/errclass"
)

const (
	// EWOULDBLOCK indicates that a non-blocking operation would block.
	EWOULDBLOCK = "EWOULDBLOCK"

	// EINPROGRESS indicates that a non-blocking connect is in progress.
	EINPROGRESS = "EINPROGRESS"

	// ENOPROTOOPT is the protocol option not available error.
	ENOPROTOOPT = "ENOPROTOOPT"

	// EAFNOSUPPORT is the address family not supported error.
	EAFNOSUPPORT = "EAFNOSUPPORT"

	// EINTR is the interrupted system call error.
	EINTR = errclass.EINTR

	// EADDRINUSE is the address in use error.
	EADDRINUSE = errclass.EADDRINUSE

	// EADDRNOTAVAIL is the address not available error.
	EADDRNOTAVAIL = errclass.EADDRNOTAVAIL

	// ECONNREFUSED is the connection refused error.
	ECONNREFUSED = errclass.ECONNREFUSED

	// EGENERIC is the generic, unclassified error.
	EGENERIC = errclass.EGENERIC
)

// errorsIsList lists the socket errors we classify locally.
//
// EAGAIN and EWOULDBLOCK share a value on most systems, so
// this is a list rather than a map keyed by error.
var errorsIsList = []struct {
	err   error
	class string
}{
	{errEWOULDBLOCK, EWOULDBLOCK},
	{errEAGAIN, EWOULDBLOCK},
	{errEINPROGRESS, EINPROGRESS},
	{errEALREADY, EINPROGRESS},
	{errENOPROTOOPT, ENOPROTOOPT},
	{errEAFNOSUPPORT, EAFNOSUPPORT},
}

// New returns the class of the given error, falling back
// to [errclass.New] for errors that are not socket specific.
func New(err error) string {
	if err == nil {
		return ""
	}
	for _, entry := range errorsIsList {
		if errors.Is(err, entry.err) {
			return entry.class
		}
	}
	return errclass.New(err)
}

// IsWouldBlock returns whether err means the operation would block.
func IsWouldBlock(err error) bool {
	return errors.Is(err, errEWOULDBLOCK) || errors.Is(err, errEAGAIN)
}

// IsInProgress returns whether err means a non-blocking
// connect has been started and has not completed yet.
func IsInProgress(err error) bool {
	return errors.Is(err, errEINPROGRESS) || errors.Is(err, errEALREADY) ||
		(inProgressIsWouldBlock && IsWouldBlock(err))
}

// IsInterrupted returns whether err is an interrupted system call.
func IsInterrupted(err error) bool {
	return errors.Is(err, errEINTR)
}

// Errno returns the native error number carried by err,
// or zero when err does not wrap a [syscall.Errno].
func Errno(err error) int {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return int(errno)
	}
	return 0
}

// ErrnoText returns the text of the native error carried by
// err, or the empty string when err does not wrap one.
func ErrnoText(err error) string {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno.Error()
	}
	return ""
}

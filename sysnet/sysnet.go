//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Platform socket interface.
//

/*
Package sysnet abstracts the native socket API of the operating system.

The [Platform] interface exposes the small set of socket primitives the
dual-stack sockets need. [Default] returns the implementation for the
current operating system, which uses [golang.org/x/sys/unix] on Unix-like
systems and [golang.org/x/sys/windows] on Windows. The rest of this module
is written against [Platform] and is unaware of the platform differences.

Errors returned by a [Platform] are the native [syscall.Errno] values
(e.g., EAGAIN on Unix and WSAEWOULDBLOCK on Windows); use the errclass
package to classify them.
*/
package sysnet

import (
	"errors"
	"time"

	"github.com/rbmk-project/dualstack/netaddr"
)

// Handle is a native socket descriptor.
type Handle uintptr

// Family is a socket address family.
type Family int

const (
	// FamilyInet4 is the IPv4 socket family.
	FamilyInet4 Family = iota + 1

	// FamilyInet6 is the IPv6 socket family.
	FamilyInet6
)

// String implements [fmt.Stringer].
func (f Family) String() string {
	switch f {
	case FamilyInet4:
		return "inet4"
	case FamilyInet6:
		return "inet6"
	default:
		return "unknown"
	}
}

// Kind is the socket type.
type Kind int

const (
	// KindDatagram is a datagram (UDP) socket.
	KindDatagram Kind = iota + 1

	// KindStream is a stream (TCP) socket.
	KindStream
)

// String implements [fmt.Stringer].
func (k Kind) String() string {
	switch k {
	case KindDatagram:
		return "dgram"
	case KindStream:
		return "stream"
	default:
		return "unknown"
	}
}

// Option is a socket option settable with [Platform.SetOption].
type Option int

const (
	// OptBroadcast is SO_BROADCAST.
	OptBroadcast Option = iota + 1

	// OptRecvBuffer is SO_RCVBUF.
	OptRecvBuffer

	// OptTOS is IP_TOS.
	OptTOS

	// OptTrafficClass is IPV6_TCLASS.
	OptTrafficClass

	// OptReuseAddr is SO_REUSEADDR.
	OptReuseAddr

	// OptV6Only is IPV6_V6ONLY.
	OptV6Only
)

// String implements [fmt.Stringer].
func (o Option) String() string {
	switch o {
	case OptBroadcast:
		return "SO_BROADCAST"
	case OptRecvBuffer:
		return "SO_RCVBUF"
	case OptTOS:
		return "IP_TOS"
	case OptTrafficClass:
		return "IPV6_TCLASS"
	case OptReuseAddr:
		return "SO_REUSEADDR"
	case OptV6Only:
		return "IPV6_V6ONLY"
	default:
		return "unknown"
	}
}

// ErrOptionUnsupported indicates that the platform does not offer
// an option or does not offer it with safe semantics.
var ErrOptionUnsupported = errors.New("socket option not supported")

// Platform is the native socket API.
//
// Implementations must be safe for concurrent use. Unless otherwise
// noted, methods return the native error on failure.
type Platform interface {
	// Socket creates a new socket.
	Socket(family Family, kind Kind) (Handle, error)

	// Bind binds the socket to a local address.
	Bind(h Handle, addr netaddr.Sockaddr) error

	// SetOption sets an integer socket option. It returns
	// [ErrOptionUnsupported] when the platform lacks the option.
	SetOption(h Handle, opt Option, value int) error

	// SetNonblock toggles the non-blocking mode.
	SetNonblock(h Handle, nonblocking bool) error

	// SendTo sends a datagram to the given address.
	SendTo(h Handle, buf []byte, addr netaddr.Sockaddr) (int, error)

	// RecvFrom receives a datagram and its source address.
	RecvFrom(h Handle, buf []byte) (int, netaddr.Sockaddr, error)

	// Send writes to a connected stream socket.
	Send(h Handle, buf []byte) (int, error)

	// Recv reads from a connected stream socket.
	Recv(h Handle, buf []byte) (int, error)

	// Listen marks a stream socket as listening.
	Listen(h Handle, backlog int) error

	// Accept accepts a new connection on a listening socket.
	Accept(h Handle) (Handle, netaddr.Sockaddr, error)

	// Connect connects the socket to the given address.
	Connect(h Handle, addr netaddr.Sockaddr) error

	// LocalAddr returns the address the socket is bound to.
	LocalAddr(h Handle) (netaddr.Sockaddr, error)

	// Close closes the socket.
	Close(h Handle) error

	// Poll waits up to timeout for any of the given sockets to become
	// readable and returns the per-socket readiness. A negative timeout
	// waits forever and a zero timeout does not block.
	Poll(handles []Handle, timeout time.Duration) ([]bool, error)
}

// Default returns the [Platform] of the running operating system.
func Default() Platform {
	return defaultPlatform
}

// pollMillis converts a poll timeout to milliseconds, rounding up
// to avoid turning a short positive timeout into a non-blocking poll.
func pollMillis(timeout time.Duration) int {
	switch {
	case timeout < 0:
		return -1
	case timeout == 0:
		return 0
	}
	ms := (timeout + time.Millisecond - 1) / time.Millisecond
	if ms > 1<<31-1 {
		ms = 1<<31 - 1
	}
	return int(ms)
}

// SPDX-License-Identifier: GPL-3.0-or-later

package netsock

import "github.com/rbmk-project/dualstack/netaddr"

// Tunnel is a datagram transport carried over something that is not
// a native UDP socket. Tunnel addresses use the [netaddr.AFTunnel] family.
//
// Implementations must be safe for concurrent use.
type Tunnel interface {
	// SendTo sends a datagram to the given peer.
	SendTo(buf []byte, dest netaddr.Sockaddr) (int, error)

	// RecvFrom receives a queued datagram. In non-blocking mode it
	// returns an error wrapping [ErrWouldBlock] when nothing is queued.
	RecvFrom(buf []byte) (int, netaddr.Sockaddr, error)

	// SetNonBlocking toggles the non-blocking mode of RecvFrom.
	SetNonBlocking(nonblocking bool)

	// Pending returns whether a datagram is queued.
	Pending() bool

	// Notify returns a channel that is signalled when a datagram
	// is queued. The channel is never closed.
	Notify() <-chan struct{}

	// LocalAddr returns the address the tunnel listens on.
	LocalAddr() netaddr.Sockaddr

	// Close closes the tunnel and its peers.
	Close() error
}

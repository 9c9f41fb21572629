//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Conversion between Addr and socket addresses.
//

package netaddr

import (
	"errors"
	"fmt"
)

// AFTunnel is the private address family number tagging tunnel
// socket addresses, which otherwise use the IPv4 shape.
const AFTunnel = 0xee

// AFInet is the platform's AF_INET value.
const AFInet = afInet

// AFInet6 is the platform's AF_INET6 value.
const AFInet6 = afInet6

// Sockaddr is the socket address exchanged with the platform socket
// layer. It mirrors sockaddr_in and sockaddr_in6: for [AFInet] and
// [AFTunnel] only the first four bytes of Addr are significant.
type Sockaddr struct {
	// Family is [AFInet], [AFInet6], or [AFTunnel].
	Family int

	// Addr contains the address bytes.
	Addr [16]byte

	// Port is the port in host byte order.
	Port uint16
}

// ErrUnknownFamily indicates an address whose family cannot be
// represented or decoded.
var ErrUnknownFamily = errors.New("unknown address family")

// ToSockaddr converts an [Addr] to a [Sockaddr].
//
// The [TypeLinkBroadcast] flag is ignored: the caller is responsible for
// rewriting the destination of broadcast traffic.
func ToSockaddr(addr Addr) (Sockaddr, error) {
	var sa Sockaddr
	switch addr.Family() {
	case TypeIPv4:
		sa.Family = AFInet
		copy(sa.Addr[:4], addr.IP[:4])
	case TypeTunnel:
		sa.Family = AFTunnel
		copy(sa.Addr[:4], addr.IP[:4])
	case TypeIPv6:
		sa.Family = AFInet6
		sa.Addr = addr.IP
	default:
		return Sockaddr{}, fmt.Errorf("%w: cannot convert address of type %d", ErrUnknownFamily, addr.Type)
	}
	sa.Port = addr.Port
	return sa, nil
}

// FromSockaddr converts a [Sockaddr] to an [Addr].
func FromSockaddr(sa Sockaddr) (Addr, error) {
	var addr Addr
	switch sa.Family {
	case AFInet:
		addr.Type = TypeIPv4
		copy(addr.IP[:4], sa.Addr[:4])
	case AFTunnel:
		addr.Type = TypeTunnel
		copy(addr.IP[:4], sa.Addr[:4])
	case AFInet6:
		addr.Type = TypeIPv6
		addr.IP = sa.Addr
	default:
		return Addr{}, fmt.Errorf("%w: cannot convert socket address of family %d", ErrUnknownFamily, sa.Family)
	}
	addr.Port = sa.Port
	return addr, nil
}

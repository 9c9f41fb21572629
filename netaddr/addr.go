//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Address model.
//

package netaddr

import (
	"bytes"
	"cmp"
	"net"
	"net/netip"
)

// Type is the family bitmask of an [Addr] or of a socket.
type Type uint32

const (
	// TypeInvalid is the zero family.
	TypeInvalid Type = 0

	// TypeIPv4 is the IPv4 family.
	TypeIPv4 Type = 1

	// TypeIPv6 is the IPv6 family.
	TypeIPv6 Type = 2

	// TypeLinkBroadcast asks the sender to rewrite the destination to
	// the link broadcast (IPv4) or all-nodes multicast (IPv6) address.
	TypeLinkBroadcast Type = 4

	// TypeTunnel is the tunneled transport family.
	TypeTunnel Type = 8

	// TypeAll contains all the families.
	TypeAll = TypeIPv4 | TypeIPv6 | TypeTunnel
)

// Family returns the type without the [TypeLinkBroadcast] flag.
func (t Type) Family() Type {
	return t &^ TypeLinkBroadcast
}

// Has returns whether t contains all the bits in other.
func (t Type) Has(other Type) bool {
	return other != 0 && t&other == other
}

// Addr is a network address.
//
// The zero value is an invalid address. Addr is comparable and two
// addresses are equal only when type, all the 16 address bytes, and
// port are equal.
type Addr struct {
	// Type is the address family, possibly including [TypeLinkBroadcast].
	Type Type

	// IP contains the address. Only the first four bytes are
	// significant for [TypeIPv4] and [TypeTunnel].
	IP [16]byte

	// Port is the port in host byte order.
	Port uint16
}

// Family returns the address family without the broadcast flag.
func (a Addr) Family() Type {
	return a.Type.Family()
}

// IsBroadcast returns whether the [TypeLinkBroadcast] flag is set.
func (a Addr) IsBroadcast() bool {
	return a.Type&TypeLinkBroadcast != 0
}

// WithBroadcast returns a copy of a with the [TypeLinkBroadcast] flag set.
func (a Addr) WithBroadcast() Addr {
	a.Type |= TypeLinkBroadcast
	return a
}

// Compare returns an integer comparing two addresses. The result is
// zero if and only if a == b. Addresses are ordered by type, then by
// address bytes, then by port.
func Compare(a, b Addr) int {
	if c := cmp.Compare(a.Type, b.Type); c != 0 {
		return c
	}
	if c := bytes.Compare(a.IP[:], b.IP[:]); c != 0 {
		return c
	}
	return cmp.Compare(a.Port, b.Port)
}

// IPAddr returns the IP address as a [netip.Addr].
//
// The result is invalid when the family is neither IPv4, IPv6, nor tunnel.
func (a Addr) IPAddr() netip.Addr {
	switch a.Family() {
	case TypeIPv4, TypeTunnel:
		return netip.AddrFrom4([4]byte(a.IP[:4]))
	case TypeIPv6:
		return netip.AddrFrom16(a.IP)
	default:
		return netip.Addr{}
	}
}

// AddrPort returns the address and port as a [netip.AddrPort].
func (a Addr) AddrPort() netip.AddrPort {
	return netip.AddrPortFrom(a.IPAddr(), a.Port)
}

// FromAddrPort constructs an [Addr] from a [netip.AddrPort].
//
// IPv4 and IPv4-mapped IPv6 addresses become [TypeIPv4], other valid
// addresses become [TypeIPv6], and invalid addresses yield the zero [Addr].
func FromAddrPort(ap netip.AddrPort) Addr {
	ip := ap.Addr()
	switch {
	case ip.Is4() || ip.Is4In6():
		var out Addr
		out.Type = TypeIPv4
		v4 := ip.Unmap().As4()
		copy(out.IP[:4], v4[:])
		out.Port = ap.Port()
		return out
	case ip.Is6():
		return Addr{Type: TypeIPv6, IP: ip.As16(), Port: ap.Port()}
	default:
		return Addr{}
	}
}

// FromNetAddr converts a [net.Addr] to an [Addr].
//
// If the input is nil or neither a [*net.TCPAddr] nor [*net.UDPAddr],
// returns the zero [Addr].
func FromNetAddr(addr net.Addr) Addr {
	if tcp, ok := addr.(*net.TCPAddr); ok && tcp != nil {
		return FromAddrPort(tcp.AddrPort())
	}
	if udp, ok := addr.(*net.UDPAddr); ok && udp != nil {
		return FromAddrPort(udp.AddrPort())
	}
	return Addr{}
}

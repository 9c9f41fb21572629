//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Address to text conversion.
//

package netaddr

import (
	"fmt"
	"strconv"
)

// Format returns the textual representation of the address, optionally
// including the port. IPv4 and tunnel addresses are dotted quads, IPv6
// addresses are eight lower-case hex groups wrapped in brackets. Addresses
// of unknown type render as "unknown type N" rather than failing.
func (a Addr) Format(includePort bool) string {
	var s string
	switch a.Family() {
	case TypeIPv4, TypeTunnel:
		s = fmt.Sprintf("%d.%d.%d.%d", a.IP[0], a.IP[1], a.IP[2], a.IP[3])

	case TypeIPv6:
		s = fmt.Sprintf("[%x:%x:%x:%x:%x:%x:%x:%x]",
			uint16(a.IP[0])<<8|uint16(a.IP[1]), uint16(a.IP[2])<<8|uint16(a.IP[3]),
			uint16(a.IP[4])<<8|uint16(a.IP[5]), uint16(a.IP[6])<<8|uint16(a.IP[7]),
			uint16(a.IP[8])<<8|uint16(a.IP[9]), uint16(a.IP[10])<<8|uint16(a.IP[11]),
			uint16(a.IP[12])<<8|uint16(a.IP[13]), uint16(a.IP[14])<<8|uint16(a.IP[15]))

	default:
		return "unknown type " + strconv.FormatUint(uint64(a.Type), 10)
	}
	if includePort {
		s += ":" + strconv.FormatUint(uint64(a.Port), 10)
	}
	return s
}

// String implements [fmt.Stringer] and is equivalent to Format(true).
func (a Addr) String() string {
	return a.Format(true)
}

// String implements [fmt.Stringer].
func (t Type) String() string {
	switch t {
	case TypeInvalid:
		return "invalid"
	case TypeIPv4:
		return "ipv4"
	case TypeIPv6:
		return "ipv6"
	case TypeTunnel:
		return "tunnel"
	case TypeLinkBroadcast:
		return "broadcast"
	default:
		return "0x" + strconv.FormatUint(uint64(t), 16)
	}
}

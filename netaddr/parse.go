//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Text to address conversion.
//

package netaddr

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"github.com/rbmk-project/common/runtimex"
)

// ErrMalformedAddress indicates that a string is not a valid address.
var ErrMalformedAddress = errors.New("malformed address")

// malformed wraps [ErrMalformedAddress] with the offending input.
func malformed(input, reason string) error {
	return fmt.Errorf("%w: %q: %s", ErrMalformedAddress, input, reason)
}

// Parse parses `a.b.c.d[:port]` or `[ipv6][:port]` into an [Addr].
//
// Each IPv4 octet must be a base-10 integer within 0..255 and the port
// must be within 0..65535. The IPv6 address inside the brackets must be
// a valid IPv6 literal without zone. Trailing garbage is an error.
//
// On failure, the returned error wraps [ErrMalformedAddress].
func Parse(s string) (Addr, error) {
	if strings.HasPrefix(s, "[") {
		return parseIPv6(s)
	}
	return parseIPv4(s)
}

// MustParse is like [Parse] but panics on error.
func MustParse(s string) Addr {
	return runtimex.Try1(Parse(s))
}

// parseIPv6 parses the bracketed form.
func parseIPv6(s string) (Addr, error) {
	end := strings.IndexByte(s, ']')
	if end < 0 {
		return Addr{}, malformed(s, "missing closing bracket")
	}
	ip, err := netip.ParseAddr(s[1:end])
	if err != nil {
		return Addr{}, malformed(s, err.Error())
	}
	if !ip.Is6() || ip.Zone() != "" {
		return Addr{}, malformed(s, "not an IPv6 address")
	}
	addr := Addr{Type: TypeIPv6, IP: ip.As16()}

	rest := s[end+1:]
	if rest == "" {
		return addr, nil
	}
	if rest[0] != ':' {
		return Addr{}, malformed(s, "unexpected data after address")
	}
	port, err := parseDecimal(rest[1:], 0xffff)
	if err != nil {
		return Addr{}, malformed(s, "invalid port")
	}
	addr.Port = uint16(port)
	return addr, nil
}

// parseIPv4 parses the dotted quad form.
func parseIPv4(s string) (Addr, error) {
	addr := Addr{Type: TypeIPv4}
	rest := s
	for idx := 0; idx < 4; idx++ {
		if idx > 0 {
			if !strings.HasPrefix(rest, ".") {
				return Addr{}, malformed(s, "expected '.'")
			}
			rest = rest[1:]
		}
		digits := leadingDigits(rest)
		value, err := parseDecimal(rest[:digits], 0xff)
		if err != nil {
			return Addr{}, malformed(s, "invalid octet")
		}
		addr.IP[idx] = byte(value)
		rest = rest[digits:]
	}

	if rest == "" {
		return addr, nil
	}
	if rest[0] != ':' {
		return Addr{}, malformed(s, "unexpected data after address")
	}
	port, err := parseDecimal(rest[1:], 0xffff)
	if err != nil {
		return Addr{}, malformed(s, "invalid port")
	}
	addr.Port = uint16(port)
	return addr, nil
}

// leadingDigits returns the number of leading ASCII digits in s.
func leadingDigits(s string) int {
	var n int
	for n < len(s) && s[n] >= '0' && s[n] <= '9' {
		n++
	}
	return n
}

// errInvalidNumber is the internal error returned by parseDecimal.
var errInvalidNumber = errors.New("invalid number")

// parseDecimal parses a non-empty, digits-only, base-10 string whose
// value must not exceed max. Leading zeros are accepted.
func parseDecimal(s string, max uint32) (uint32, error) {
	if s == "" || leadingDigits(s) != len(s) {
		return 0, errInvalidNumber
	}
	var value uint32
	for idx := 0; idx < len(s); idx++ {
		value = value*10 + uint32(s[idx]-'0')
		if value > max {
			return 0, errInvalidNumber
		}
	}
	return value, nil
}

// SplitHostPort splits `host[:port]` or `[host][:port]` into the host
// and the port. A missing port is zero. The host inside brackets is
// returned without the brackets. Unlike [net.SplitHostPort], the port is
// optional and a bare host is accepted.
func SplitHostPort(s string) (host string, port uint16, err error) {
	if strings.HasPrefix(s, "[") {
		end := strings.IndexByte(s, ']')
		if end < 0 {
			return "", 0, malformed(s, "missing closing bracket")
		}
		host, rest := s[1:end], s[end+1:]
		switch {
		case rest == "":
			return host, 0, nil
		case rest[0] != ':':
			return "", 0, malformed(s, "unexpected data after host")
		}
		value, err := parseDecimal(rest[1:], 0xffff)
		if err != nil {
			return "", 0, malformed(s, "invalid port")
		}
		return host, uint16(value), nil
	}

	host, rest, found := strings.Cut(s, ":")
	if !found {
		return host, 0, nil
	}
	value, err := parseDecimal(rest, 0xffff)
	if err != nil {
		return "", 0, malformed(s, "invalid port")
	}
	return host, uint16(value), nil
}

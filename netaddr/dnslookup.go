//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Lookup using a specific DNS server.
//

package netaddr

import (
	"context"
	"errors"
	"fmt"
	"net/netip"

	"github.com/miekg/dns"
	"github.com/rbmk-project/dnscore"
)

// ErrDNSNoAnswer indicates that a DNS response carried no records
// of the requested type.
var ErrDNSNoAnswer = errors.New("dns: no answer")

// NewDNSLookupFunc returns a [LookupFunc] that queries the given server
// using the given [*dnscore.Transport]. The "ip4" network sends an A
// query, "ip6" sends an AAAA query, and "ip" sends both, returning the
// IPv4 addresses before the IPv6 ones.
func NewDNSLookupFunc(txp *dnscore.Transport, server *dnscore.ServerAddr) LookupFunc {
	return func(ctx context.Context, network, host string) ([]netip.Addr, error) {
		var qtypes []uint16
		switch network {
		case "ip4":
			qtypes = []uint16{dns.TypeA}
		case "ip6":
			qtypes = []uint16{dns.TypeAAAA}
		default:
			qtypes = []uint16{dns.TypeA, dns.TypeAAAA}
		}

		var (
			addrs []netip.Addr
			errv  []error
		)
		for _, qtype := range qtypes {
			found, err := dnsQuery(ctx, txp, server, host, qtype)
			if err != nil {
				errv = append(errv, err)
				continue
			}
			addrs = append(addrs, found...)
		}
		if len(addrs) <= 0 {
			return nil, errors.Join(errv...)
		}
		return addrs, nil
	}
}

// dnsQuery sends a single query and extracts the A or AAAA records.
func dnsQuery(ctx context.Context, txp *dnscore.Transport,
	server *dnscore.ServerAddr, host string, qtype uint16) ([]netip.Addr, error) {
	query, err := dnscore.NewQuery(host, qtype)
	if err != nil {
		return nil, err
	}
	resp, err := txp.Query(ctx, server, query)
	if err != nil {
		return nil, err
	}
	if resp.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("dns: %s", dns.RcodeToString[resp.Rcode])
	}

	var addrs []netip.Addr
	for _, rr := range resp.Answer {
		switch rr := rr.(type) {
		case *dns.A:
			if ip, ok := netip.AddrFromSlice(rr.A.To4()); ok && qtype == dns.TypeA {
				addrs = append(addrs, ip)
			}
		case *dns.AAAA:
			if ip, ok := netip.AddrFromSlice(rr.AAAA.To16()); ok && qtype == dns.TypeAAAA {
				addrs = append(addrs, ip)
			}
		}
	}
	if len(addrs) <= 0 {
		return nil, ErrDNSNoAnswer
	}
	return addrs, nil
}

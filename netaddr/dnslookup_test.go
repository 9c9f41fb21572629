// SPDX-License-Identifier: GPL-3.0-or-later

package netaddr_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/rbmk-project/dnscore"
	"github.com/rbmk-project/dualstack/netaddr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startDNSServer starts a DNS-over-UDP server on the loopback
// answering with the given records and returns its address.
func startDNSServer(t *testing.T, a, aaaa []string) string {
	pconn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	handler := dns.HandlerFunc(func(rw dns.ResponseWriter, query *dns.Msg) {
		resp := &dns.Msg{}
		resp.SetReply(query)
		q0 := query.Question[0]
		header := dns.RR_Header{
			Name:   q0.Name,
			Rrtype: q0.Qtype,
			Class:  dns.ClassINET,
			Ttl:    60,
		}
		switch q0.Qtype {
		case dns.TypeA:
			for _, addr := range a {
				resp.Answer = append(resp.Answer, &dns.A{Hdr: header, A: net.ParseIP(addr)})
			}
		case dns.TypeAAAA:
			for _, addr := range aaaa {
				resp.Answer = append(resp.Answer, &dns.AAAA{Hdr: header, AAAA: net.ParseIP(addr)})
			}
		}
		if len(resp.Answer) <= 0 {
			resp.Rcode = dns.RcodeNameError
		}
		rw.WriteMsg(resp)
	})

	started := make(chan struct{})
	server := &dns.Server{
		PacketConn:        pconn,
		Handler:           handler,
		NotifyStartedFunc: func() { close(started) },
	}
	go server.ActivateAndServe()
	<-started
	t.Cleanup(func() { server.Shutdown() })
	return pconn.LocalAddr().String()
}

func TestNewDNSLookupFunc(t *testing.T) {
	endpoint := startDNSServer(t, []string{"10.0.0.1"}, []string{"2001:db8::1"})
	serverAddr := &dnscore.ServerAddr{
		Protocol: dnscore.ProtocolUDP,
		Address:  endpoint,
	}
	reso := &netaddr.Resolver{
		LookupFunc: netaddr.NewDNSLookupFunc(&dnscore.Transport{}, serverAddr),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	t.Run("A query", func(t *testing.T) {
		addr, err := reso.Resolve(ctx, "example.com:8303", netaddr.TypeIPv4)
		require.NoError(t, err)
		assert.Equal(t, netaddr.MustParse("10.0.0.1:8303"), addr)
	})

	t.Run("AAAA query", func(t *testing.T) {
		addr, err := reso.Resolve(ctx, "example.com:8303", netaddr.TypeIPv6)
		require.NoError(t, err)
		assert.Equal(t, netaddr.MustParse("[2001:db8::1]:8303"), addr)
	})

	t.Run("any family prefers IPv4", func(t *testing.T) {
		addr, err := reso.Resolve(ctx, "example.com", netaddr.TypeAll)
		require.NoError(t, err)
		assert.Equal(t, netaddr.TypeIPv4, addr.Type)
	})
}

func TestNewDNSLookupFuncNoRecords(t *testing.T) {
	endpoint := startDNSServer(t, nil, nil)
	serverAddr := &dnscore.ServerAddr{
		Protocol: dnscore.ProtocolUDP,
		Address:  endpoint,
	}
	reso := &netaddr.Resolver{
		LookupFunc: netaddr.NewDNSLookupFunc(&dnscore.Transport{}, serverAddr),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := reso.Resolve(ctx, "nxdomain.example.com", netaddr.TypeAll)
	assert.ErrorIs(t, err, netaddr.ErrResolutionFailed)
}

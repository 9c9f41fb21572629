//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Definition of Network.
//

package netsock

import (
	"context"
	"log/slog"
	"time"

	"github.com/rbmk-project/dualstack/netaddr"
	"github.com/rbmk-project/dualstack/sysnet"
)

const (
	// DefaultRecvBufferSize is the default SO_RCVBUF of datagram sockets.
	DefaultRecvBufferSize = 65536

	// DefaultTrafficClass is the default IP_TOS and IPV6_TCLASS
	// of datagram sockets, which is IPTOS_LOWDELAY.
	DefaultTrafficClass = 0x10
)

// Network creates dual-stack sockets.
//
// The zero value is ready to use.
//
// A [*Network] is safe for concurrent use by multiple goroutines as long as
// you don't modify its fields after construction and the underlying fields you
// may set (e.g., NewTunnel) are also safe.
type Network struct {
	// Logger is the optional structured logger for emitting
	// structured diagnostic events. If this field is nil, we
	// will not be emitting structured logs.
	Logger *slog.Logger

	// NewTunnel is the optional function creating the tunnel of datagram
	// sockets whose bind address includes [netaddr.TypeTunnel]. If this
	// field is nil, the tunnel family is unavailable.
	NewTunnel func(ctx context.Context, bind netaddr.Addr) (Tunnel, error)

	// Platform is the optional native socket API. If this
	// field is nil, we use [sysnet.Default].
	Platform sysnet.Platform

	// RecvBufferSize is the optional SO_RCVBUF of datagram sockets. If
	// this field is zero, we use [DefaultRecvBufferSize].
	RecvBufferSize int

	// Stats contains the optional traffic counters. If this field
	// is nil, traffic is not counted. Use [NewNetwork] to get a
	// [*Network] with fresh counters.
	Stats *Stats

	// TimeNow is an optional function that returns the current time.
	// If this field is nil, the [time.Now] function will be used.
	TimeNow func() time.Time

	// TrafficClass is the optional traffic class of datagram sockets. If
	// this field is zero, we use [DefaultTrafficClass].
	TrafficClass int
}

// NewNetwork returns a new [*Network] with fresh [*Stats].
func NewNetwork() *Network {
	return &Network{Stats: &Stats{}}
}

// DefaultNetwork is the default [*Network] used by this package.
var DefaultNetwork = &Network{}

// platform returns the [sysnet.Platform] to use.
func (nx *Network) platform() sysnet.Platform {
	if nx.Platform != nil {
		return nx.Platform
	}
	return sysnet.Default()
}

// timeNow is a function that returns the current time.
func (nx *Network) timeNow() time.Time {
	if nx.TimeNow != nil {
		return nx.TimeNow()
	}
	return time.Now()
}

// recvBufferSize returns the SO_RCVBUF value to use.
func (nx *Network) recvBufferSize() int {
	if nx.RecvBufferSize > 0 {
		return nx.RecvBufferSize
	}
	return DefaultRecvBufferSize
}

// trafficClass returns the IP_TOS and IPV6_TCLASS value to use.
func (nx *Network) trafficClass() int {
	if nx.TrafficClass > 0 {
		return nx.TrafficClass
	}
	return DefaultTrafficClass
}

//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Definition of Socket.
//

package netsock

import (
	"context"
	"errors"

	"github.com/rbmk-project/dualstack/closepool"
	"github.com/rbmk-project/dualstack/netaddr"
	"github.com/rbmk-project/dualstack/sysnet"
)

// familyOrder is the order in which we visit the families.
var familyOrder = []netaddr.Type{netaddr.TypeIPv4, netaddr.TypeIPv6, netaddr.TypeTunnel}

// descriptor is an optional native socket descriptor.
type descriptor struct {
	handle sysnet.Handle
	valid  bool
}

// Socket is a dual-stack socket owning up to one IPv4 descriptor,
// one IPv6 descriptor, and one [Tunnel].
//
// Construct using [*Network.NewUDP] or [*Network.NewTCP]. A socket
// whose [*Socket.Type] is empty is valid and owns nothing.
type Socket struct {
	ctx    context.Context // only used for logging
	ipv4   descriptor
	ipv6   descriptor
	kind   sysnet.Kind
	mask   netaddr.Type
	nx     *Network
	pool   closepool.Pool
	tunnel Tunnel
}

// newSocket creates an empty [*Socket].
func (nx *Network) newSocket(ctx context.Context, kind sysnet.Kind) *Socket {
	return &Socket{ctx: ctx, kind: kind, nx: nx}
}

// attach makes the given descriptor active.
func (s *Socket) attach(family netaddr.Type, handle sysnet.Handle) {
	switch family {
	case netaddr.TypeIPv4:
		s.ipv4 = descriptor{handle: handle, valid: true}
	case netaddr.TypeIPv6:
		s.ipv6 = descriptor{handle: handle, valid: true}
	default:
		return
	}
	s.mask |= family
	platform := s.nx.platform()
	s.pool.AddFunc(func() error {
		return platform.Close(handle)
	})
}

// attachTunnel makes the given tunnel active.
func (s *Socket) attachTunnel(tunnel Tunnel) {
	s.tunnel = tunnel
	s.mask |= netaddr.TypeTunnel
	s.pool.Add(tunnel)
}

// slot returns the descriptor of the given raw family.
func (s *Socket) slot(family netaddr.Type) descriptor {
	switch family {
	case netaddr.TypeIPv4:
		return s.ipv4
	case netaddr.TypeIPv6:
		return s.ipv6
	default:
		return descriptor{}
	}
}

// rawHandles returns the active native descriptors.
func (s *Socket) rawHandles() []sysnet.Handle {
	var handles []sysnet.Handle
	for _, d := range []descriptor{s.ipv4, s.ipv6} {
		if d.valid {
			handles = append(handles, d.handle)
		}
	}
	return handles
}

// Type returns the families with an active descriptor.
func (s *Socket) Type() netaddr.Type {
	return s.mask
}

// Close closes every active descriptor and the tunnel, leaving an
// empty socket. The returned error joins the failures of all the
// descriptors. Closing an empty socket is a no-op.
func (s *Socket) Close() error {
	if s.pool.Len() <= 0 {
		return nil
	}
	mask := s.mask
	t0 := s.nx.emitCloseStart(s.ctx, s.kind, mask)
	err := s.pool.Close()
	s.ipv4, s.ipv6, s.tunnel, s.mask = descriptor{}, descriptor{}, nil, 0
	s.nx.emitCloseDone(s.ctx, s.kind, mask, t0, err)
	return err
}

// SetNonBlocking makes every active descriptor non-blocking.
func (s *Socket) SetNonBlocking() error {
	return s.setNonblock(true)
}

// SetBlocking makes every active descriptor blocking.
func (s *Socket) SetBlocking() error {
	return s.setNonblock(false)
}

func (s *Socket) setNonblock(nonblocking bool) error {
	var errv []error
	platform := s.nx.platform()
	for _, family := range familyOrder {
		if family == netaddr.TypeTunnel {
			if s.tunnel != nil {
				s.tunnel.SetNonBlocking(nonblocking)
			}
			continue
		}
		if d := s.slot(family); d.valid {
			if err := platform.SetNonblock(d.handle, nonblocking); err != nil {
				err = newSysError("setnonblock", family, err)
				s.nx.emitWarning(s.ctx, "setNonblockFailed", family, err)
				errv = append(errv, err)
			}
		}
	}
	return errors.Join(errv...)
}

// LocalAddr returns the local address of the descriptor of the given
// family, which is useful to discover the port chosen by the system.
func (s *Socket) LocalAddr(family netaddr.Type) (netaddr.Addr, error) {
	if family == netaddr.TypeTunnel {
		if s.tunnel == nil {
			return netaddr.Addr{}, errUnavailable(family)
		}
		return netaddr.FromSockaddr(s.tunnel.LocalAddr())
	}
	d := s.slot(family)
	if !d.valid {
		return netaddr.Addr{}, errUnavailable(family)
	}
	sa, err := s.nx.platform().LocalAddr(d.handle)
	if err != nil {
		return netaddr.Addr{}, newSysError("getsockname", family, err)
	}
	return netaddr.FromSockaddr(sa)
}

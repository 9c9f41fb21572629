//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Socket factory.
//

package netsock

import (
	"context"
	"errors"
	"log/slog"

	"github.com/rbmk-project/dualstack/netaddr"
	"github.com/rbmk-project/dualstack/sysnet"
)

// NewUDP creates a datagram [*Socket] bound to the given address.
//
// Each family in bind.Type is created independently, and a family that
// cannot be created or bound is logged and omitted. The returned socket
// is never nil, may own no descriptor at all, and is non-blocking.
func (nx *Network) NewUDP(ctx context.Context, bind netaddr.Addr) *Socket {
	sock := nx.newSocket(ctx, sysnet.KindDatagram)
	for _, family := range familyOrder {
		if !bind.Type.Has(family) {
			continue
		}
		if family == netaddr.TypeTunnel {
			nx.openTunnel(ctx, sock, bind)
			continue
		}
		nx.openDescriptor(ctx, sock, family, bind)
	}
	_ = sock.SetNonBlocking() // failures are logged per family
	return sock
}

// NewTCP creates a stream [*Socket] bound to the given address.
//
// Like [*Network.NewUDP], each family is created independently. The
// tunnel family is not available for stream sockets. The returned
// socket is never nil and is blocking.
func (nx *Network) NewTCP(ctx context.Context, bind netaddr.Addr) *Socket {
	sock := nx.newSocket(ctx, sysnet.KindStream)
	for _, family := range []netaddr.Type{netaddr.TypeIPv4, netaddr.TypeIPv6} {
		if bind.Type.Has(family) {
			nx.openDescriptor(ctx, sock, family, bind)
		}
	}
	return sock
}

// localAddrFor returns the bind address restricted to the given family.
func localAddrFor(family netaddr.Type, bind netaddr.Addr) netaddr.Addr {
	local := netaddr.Addr{Type: family, Port: bind.Port}
	switch family {
	case netaddr.TypeIPv6:
		local.IP = bind.IP
	default:
		copy(local.IP[:4], bind.IP[:4])
	}
	return local
}

// openDescriptor creates, configures, and binds the descriptor
// of the given family and attaches it to the socket on success.
func (nx *Network) openDescriptor(ctx context.Context, sock *Socket, family netaddr.Type, bind netaddr.Addr) {
	local := localAddrFor(family, bind)
	t0 := nx.emitSocketStart(ctx, sock.kind, local)
	handle, err := nx.createAndBind(ctx, sock.kind, local)
	nx.emitSocketDone(ctx, sock.kind, local, t0, err)
	if err == nil {
		sock.attach(family, handle)
	}
}

// createAndBind creates a descriptor and binds it to local.
func (nx *Network) createAndBind(ctx context.Context, kind sysnet.Kind, local netaddr.Addr) (sysnet.Handle, error) {
	family := local.Family()
	sysFamily := sysnet.FamilyInet4
	if family == netaddr.TypeIPv6 {
		sysFamily = sysnet.FamilyInet6
	}

	platform := nx.platform()
	handle, err := platform.Socket(sysFamily, kind)
	if err != nil {
		err = &SysError{Op: "socket", Family: family, Kind: ErrSocketCreateFailed, Err: err}
		nx.emitWarning(ctx, "socketCreateFailed", family, err)
		return 0, err
	}

	switch {
	case family == netaddr.TypeIPv6:
		nx.setOption(ctx, handle, family, sysnet.OptV6Only, 1)
	case kind == sysnet.KindStream:
		nx.setOption(ctx, handle, family, sysnet.OptReuseAddr, 1)
	}

	sa, err := netaddr.ToSockaddr(local)
	if err == nil {
		err = platform.Bind(handle, sa)
	}
	if err != nil {
		platform.Close(handle)
		err = &SysError{Op: "bind", Family: family, Kind: ErrBindFailed, Err: err}
		nx.emitWarning(ctx, "bindFailed", family, err, slog.String("localAddr", local.String()))
		return 0, err
	}

	if kind == sysnet.KindDatagram {
		nx.setOption(ctx, handle, family, sysnet.OptBroadcast, 1)
		nx.setOption(ctx, handle, family, sysnet.OptRecvBuffer, nx.recvBufferSize())
		if family == netaddr.TypeIPv6 {
			nx.setOption(ctx, handle, family, sysnet.OptTrafficClass, nx.trafficClass())
		} else {
			nx.setOption(ctx, handle, family, sysnet.OptTOS, nx.trafficClass())
		}
	}
	return handle, nil
}

// setOption sets a socket option, logging failures. Options the
// platform does not offer are skipped.
func (nx *Network) setOption(ctx context.Context,
	handle sysnet.Handle, family netaddr.Type, opt sysnet.Option, value int) {
	err := nx.platform().SetOption(handle, opt, value)
	switch {
	case err == nil:
	case errors.Is(err, sysnet.ErrOptionUnsupported):
		if nx.Logger != nil {
			nx.Logger.DebugContext(
				ctx,
				"setOptionSkipped",
				slog.String("family", family.String()),
				slog.String("option", opt.String()),
			)
		}
	default:
		err = newSysError("setsockopt", family, err)
		nx.emitWarning(ctx, "setOptionFailed", family, err, slog.String("option", opt.String()))
	}
}

// openTunnel creates the tunnel and attaches it to the socket on success.
func (nx *Network) openTunnel(ctx context.Context, sock *Socket, bind netaddr.Addr) {
	local := localAddrFor(netaddr.TypeTunnel, bind)
	t0 := nx.emitSocketStart(ctx, sock.kind, local)
	tunnel, err := nx.newTunnel(ctx, local)
	nx.emitSocketDone(ctx, sock.kind, local, t0, err)
	if err != nil {
		nx.emitWarning(ctx, "socketCreateFailed", netaddr.TypeTunnel, err)
		return
	}
	sock.attachTunnel(tunnel)
}

func (nx *Network) newTunnel(ctx context.Context, local netaddr.Addr) (Tunnel, error) {
	if nx.NewTunnel == nil {
		return nil, errUnavailable(netaddr.TypeTunnel)
	}
	tunnel, err := nx.NewTunnel(ctx, local)
	if err != nil {
		return nil, &SysError{Op: "listen", Family: netaddr.TypeTunnel, Kind: ErrSocketCreateFailed, Err: err}
	}
	return tunnel, nil
}

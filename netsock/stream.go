//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Stream transport operations.
//

package netsock

import (
	"errors"
	"log/slog"

	"github.com/rbmk-project/dualstack/errclass"
	"github.com/rbmk-project/dualstack/netaddr"
)

// rawFamilies are the families backed by a native descriptor.
var rawFamilies = []netaddr.Type{netaddr.TypeIPv4, netaddr.TypeIPv6}

// Listen marks every active descriptor as listening. It fails only
// when no descriptor could listen, joining the per-family failures.
func (s *Socket) Listen(backlog int) error {
	var (
		errv      []error
		listening bool
	)
	platform := s.nx.platform()
	for _, family := range rawFamilies {
		d := s.slot(family)
		if !d.valid {
			continue
		}
		if err := platform.Listen(d.handle, backlog); err != nil {
			err = newSysError("listen", family, err)
			s.nx.emitWarning(s.ctx, "listenFailed", family, err)
			errv = append(errv, err)
			continue
		}
		listening = true
	}
	switch {
	case listening:
		return nil
	case len(errv) <= 0:
		return errUnavailable(s.mask)
	default:
		return errors.Join(errv...)
	}
}

// Accept accepts a connection, trying the IPv4 descriptor before
// the IPv6 one. The returned socket owns only the new descriptor.
//
// On a blocking socket owning both families, Accept blocks on IPv4;
// use a non-blocking socket and [*Socket.WaitReadable] to serve both.
func (s *Socket) Accept() (*Socket, netaddr.Addr, error) {
	var errv []error
	platform := s.nx.platform()
	for _, family := range rawFamilies {
		d := s.slot(family)
		if !d.valid {
			continue
		}
		handle, sa, err := platform.Accept(d.handle)
		if err != nil {
			errv = append(errv, newSysError("accept", family, err))
			continue
		}
		remote, err := netaddr.FromSockaddr(sa)
		if err != nil {
			platform.Close(handle)
			errv = append(errv, err)
			continue
		}
		conn := s.nx.newSocket(s.ctx, s.kind)
		conn.attach(family, handle)
		return conn, remote, nil
	}
	if len(errv) <= 0 {
		return nil, netaddr.Addr{}, errUnavailable(s.mask)
	}
	return nil, netaddr.Addr{}, errors.Join(errv...)
}

// connectFamily returns the family to use for reaching the given address.
func (s *Socket) connectFamily(remote netaddr.Addr) (netaddr.Type, error) {
	for _, family := range rawFamilies {
		if remote.Type.Has(family) && s.slot(family).valid {
			return family, nil
		}
	}
	return 0, errUnavailable(remote.Family())
}

// Connect connects to the given address using the descriptor of
// the address family, preferring IPv4 when both are selected.
func (s *Socket) Connect(remote netaddr.Addr) error {
	family, err := s.connectFamily(remote)
	if err != nil {
		return err
	}
	target := sendTarget(family, remote)
	sa, err := netaddr.ToSockaddr(target)
	if err != nil {
		return err
	}

	t0 := s.nx.emitConnectStart(s.ctx, target)
	err = s.nx.platform().Connect(s.slot(family).handle, sa)
	if err != nil {
		if errclass.IsInProgress(err) {
			err = &SysError{Op: "connect", Family: family, Kind: ErrInProgress, Err: err}
		} else {
			err = newSysError("connect", family, err)
		}
	}
	s.nx.emitConnectDone(s.ctx, target, t0, err)
	return err
}

// ConnectNonBlocking starts connecting without waiting for the handshake
// and then restores blocking mode. An error wrapping [ErrInProgress] means
// the handshake is still running.
func (s *Socket) ConnectNonBlocking(remote netaddr.Addr) error {
	if err := s.SetNonBlocking(); err != nil {
		return err
	}
	err := s.Connect(remote)
	if berr := s.SetBlocking(); berr != nil && err == nil {
		err = berr
	}
	return err
}

// streamFamily returns the first active raw family.
func (s *Socket) streamFamily() (netaddr.Type, descriptor, error) {
	for _, family := range rawFamilies {
		if d := s.slot(family); d.valid {
			return family, d, nil
		}
	}
	return 0, descriptor{}, errUnavailable(s.mask)
}

// Send writes buf to a connected stream socket.
func (s *Socket) Send(buf []byte) (int, error) {
	family, d, err := s.streamFamily()
	if err != nil {
		return 0, err
	}
	n, err := s.nx.platform().Send(d.handle, buf)
	if err != nil {
		err = newSysError("send", family, err)
		if !errors.Is(err, ErrWouldBlock) {
			s.nx.emitWarning(s.ctx, "sendFailed", family, err)
		}
		return 0, err
	}
	s.nx.Stats.addSent(n)
	return n, nil
}

// Recv reads into buf from a connected stream socket. A zero
// count with a nil error means the peer closed the connection.
func (s *Socket) Recv(buf []byte) (int, error) {
	family, d, err := s.streamFamily()
	if err != nil {
		return 0, err
	}
	n, err := s.nx.platform().Recv(d.handle, buf)
	if err != nil {
		err = newSysError("recv", family, err)
		if !errors.Is(err, ErrWouldBlock) {
			s.nx.emitWarning(s.ctx, "recvFailed", family, err, slog.Int("ioBufferSize", len(buf)))
		}
		return 0, err
	}
	if n > 0 {
		s.nx.Stats.addRecv(n)
	}
	return n, nil
}

//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Datagram transport operations.
//

package netsock

import (
	"errors"
	"log/slog"
	"net/netip"

	"github.com/rbmk-project/dualstack/netaddr"
)

var (
	// broadcastIPv4 is the destination of IPv4 link-broadcast traffic.
	broadcastIPv4 = [4]byte{255, 255, 255, 255}

	// broadcastIPv6 is the destination of IPv6 link-broadcast traffic.
	broadcastIPv6 = netip.MustParseAddr("ff02::1").As16()
)

// SendTo sends buf to every family selected by dest.Type, visiting IPv4,
// IPv6, and the tunnel in this order. A link-broadcast destination is
// sent to 255.255.255.255 over IPv4 and to ff02::1 over IPv6, keeping the
// destination port. A family without an active descriptor fails with
// [ErrProtocolUnavailable] and is never replaced by another family.
//
// The returned count is the one of the last family that succeeded. The
// error is non-nil only when no family succeeded.
func (s *Socket) SendTo(dest netaddr.Addr, buf []byte) (int, error) {
	var (
		count int
		errv  []error
		sent  bool
	)
	for _, family := range familyOrder {
		if !dest.Type.Has(family) {
			continue
		}
		n, err := s.sendFamily(family, dest, buf)
		if err != nil {
			s.nx.emitWarning(s.ctx, "sendToFailed", family, err, slog.String("remoteAddr", dest.String()))
			errv = append(errv, err)
			continue
		}
		s.nx.Stats.addSent(n)
		count, sent = n, true
	}
	if sent {
		return count, nil
	}
	if len(errv) <= 0 {
		return 0, errUnavailable(dest.Type)
	}
	return 0, errors.Join(errv...)
}

// sendTarget returns the effective destination for the given family.
func sendTarget(family netaddr.Type, dest netaddr.Addr) netaddr.Addr {
	target := netaddr.Addr{Type: family, Port: dest.Port}
	switch {
	case family == netaddr.TypeIPv4 && dest.IsBroadcast():
		copy(target.IP[:4], broadcastIPv4[:])
	case family == netaddr.TypeIPv6 && dest.IsBroadcast():
		target.IP = broadcastIPv6
	case family == netaddr.TypeIPv6:
		target.IP = dest.IP
	default:
		copy(target.IP[:4], dest.IP[:4])
	}
	return target
}

// sendFamily sends buf over the descriptor of the given family.
func (s *Socket) sendFamily(family netaddr.Type, dest netaddr.Addr, buf []byte) (int, error) {
	sa, err := netaddr.ToSockaddr(sendTarget(family, dest))
	if err != nil {
		return 0, err
	}

	if family == netaddr.TypeTunnel {
		if s.tunnel == nil {
			return 0, errUnavailable(family)
		}
		n, err := s.tunnel.SendTo(buf, sa)
		if err != nil {
			return 0, newSysError("sendto", family, err)
		}
		return n, nil
	}

	d := s.slot(family)
	if !d.valid {
		return 0, errUnavailable(family)
	}
	n, err := s.nx.platform().SendTo(d.handle, buf, sa)
	if err != nil {
		return 0, newSysError("sendto", family, err)
	}
	return n, nil
}

// RecvFrom receives a datagram into buf, trying IPv4, IPv6, and the
// tunnel in this order, and returns the first datagram found along with
// its source address.
//
// A socket without active descriptors returns (0, nil) without blocking.
// When every active family fails, the error wraps [ErrWouldBlock] if all
// the failures are would-block failures and otherwise joins the other
// failures. When no data is available but not every family failed, the
// result is (0, nil).
func (s *Socket) RecvFrom(buf []byte) (int, netaddr.Addr, error) {
	var (
		attempted int
		errv      []error
	)
	for _, family := range familyOrder {
		if !s.mask.Has(family) {
			continue
		}
		attempted++
		n, from, err := s.recvFamily(family, buf)
		if err != nil {
			errv = append(errv, err)
			continue
		}
		if n > 0 {
			s.nx.Stats.addRecv(n)
			return n, from, nil
		}
	}
	if attempted > 0 && len(errv) == attempted {
		return 0, netaddr.Addr{}, s.recvError(errv)
	}
	return 0, netaddr.Addr{}, nil
}

// recvError reduces the per-family receive failures to a single error.
func (s *Socket) recvError(errv []error) error {
	var hard []error
	for _, err := range errv {
		if !errors.Is(err, ErrWouldBlock) {
			hard = append(hard, err)
		}
	}
	if len(hard) <= 0 {
		return ErrWouldBlock
	}
	err := errors.Join(hard...)
	s.nx.emitWarning(s.ctx, "recvFromFailed", s.mask, err)
	return err
}

// recvFamily receives from the descriptor of the given family.
func (s *Socket) recvFamily(family netaddr.Type, buf []byte) (int, netaddr.Addr, error) {
	var (
		err  error
		n    int
		from netaddr.Sockaddr
	)
	if family == netaddr.TypeTunnel {
		n, from, err = s.tunnel.RecvFrom(buf)
	} else {
		n, from, err = s.nx.platform().RecvFrom(s.slot(family).handle, buf)
	}
	if err != nil {
		return 0, netaddr.Addr{}, newSysError("recvfrom", family, err)
	}
	if n <= 0 {
		return 0, netaddr.Addr{}, nil
	}
	addr, err := netaddr.FromSockaddr(from)
	if err != nil {
		return 0, netaddr.Addr{}, err
	}
	return n, addr, nil
}

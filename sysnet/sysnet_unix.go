//go:build unix

// SPDX-License-Identifier: GPL-3.0-or-later

package sysnet

import (
	"time"

	"github.com/rbmk-project/dualstack/errclass"
	"github.com/rbmk-project/dualstack/netaddr"
	"golang.org/x/sys/unix"
)

// defaultPlatform is the Unix [Platform].
var defaultPlatform Platform = unixPlatform{}

// unixPlatform implements [Platform] using [golang.org/x/sys/unix].
type unixPlatform struct{}

var _ Platform = unixPlatform{}

// fd converts a [Handle] back to a file descriptor.
func fd(h Handle) int {
	return int(h)
}

// Socket implements [Platform].
func (unixPlatform) Socket(family Family, kind Kind) (Handle, error) {
	var domain, typ int
	switch family {
	case FamilyInet4:
		domain = unix.AF_INET
	case FamilyInet6:
		domain = unix.AF_INET6
	default:
		return 0, unix.EAFNOSUPPORT
	}
	switch kind {
	case KindDatagram:
		typ = unix.SOCK_DGRAM
	case KindStream:
		typ = unix.SOCK_STREAM
	default:
		return 0, unix.EPROTONOSUPPORT
	}
	sock, err := unix.Socket(domain, typ, 0)
	if err != nil {
		return 0, err
	}
	unix.CloseOnExec(sock)
	return Handle(sock), nil
}

// Bind implements [Platform].
func (unixPlatform) Bind(h Handle, addr netaddr.Sockaddr) error {
	sa, err := toUnixSockaddr(addr)
	if err != nil {
		return err
	}
	return unix.Bind(fd(h), sa)
}

// SetOption implements [Platform].
func (unixPlatform) SetOption(h Handle, opt Option, value int) error {
	var level, name int
	switch opt {
	case OptBroadcast:
		level, name = unix.SOL_SOCKET, unix.SO_BROADCAST
	case OptRecvBuffer:
		level, name = unix.SOL_SOCKET, unix.SO_RCVBUF
	case OptTOS:
		level, name = unix.IPPROTO_IP, unix.IP_TOS
	case OptTrafficClass:
		if !haveIPv6TrafficClass {
			return ErrOptionUnsupported
		}
		level, name = unix.IPPROTO_IPV6, ipv6TrafficClass
	case OptReuseAddr:
		level, name = unix.SOL_SOCKET, unix.SO_REUSEADDR
	case OptV6Only:
		level, name = unix.IPPROTO_IPV6, unix.IPV6_V6ONLY
	default:
		return ErrOptionUnsupported
	}
	return unix.SetsockoptInt(fd(h), level, name, value)
}

// SetNonblock implements [Platform].
func (unixPlatform) SetNonblock(h Handle, nonblocking bool) error {
	return unix.SetNonblock(fd(h), nonblocking)
}

// SendTo implements [Platform].
func (unixPlatform) SendTo(h Handle, buf []byte, addr netaddr.Sockaddr) (int, error) {
	sa, err := toUnixSockaddr(addr)
	if err != nil {
		return 0, err
	}
	if err := unix.Sendto(fd(h), buf, 0, sa); err != nil {
		return 0, err
	}
	return len(buf), nil
}

// RecvFrom implements [Platform].
func (unixPlatform) RecvFrom(h Handle, buf []byte) (int, netaddr.Sockaddr, error) {
	n, from, err := unix.Recvfrom(fd(h), buf, 0)
	if err != nil {
		return 0, netaddr.Sockaddr{}, err
	}
	addr, err := fromUnixSockaddr(from)
	if err != nil {
		return 0, netaddr.Sockaddr{}, err
	}
	return n, addr, nil
}

// Send implements [Platform].
func (unixPlatform) Send(h Handle, buf []byte) (int, error) {
	n, err := unix.Write(fd(h), buf)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Recv implements [Platform].
func (unixPlatform) Recv(h Handle, buf []byte) (int, error) {
	n, err := unix.Read(fd(h), buf)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Listen implements [Platform].
func (unixPlatform) Listen(h Handle, backlog int) error {
	return unix.Listen(fd(h), backlog)
}

// Accept implements [Platform].
func (unixPlatform) Accept(h Handle) (Handle, netaddr.Sockaddr, error) {
	nfd, from, err := unix.Accept(fd(h))
	if err != nil {
		return 0, netaddr.Sockaddr{}, err
	}
	unix.CloseOnExec(nfd)
	addr, err := fromUnixSockaddr(from)
	if err != nil {
		unix.Close(nfd)
		return 0, netaddr.Sockaddr{}, err
	}
	return Handle(nfd), addr, nil
}

// Connect implements [Platform].
func (unixPlatform) Connect(h Handle, addr netaddr.Sockaddr) error {
	sa, err := toUnixSockaddr(addr)
	if err != nil {
		return err
	}
	return unix.Connect(fd(h), sa)
}

// LocalAddr implements [Platform].
func (unixPlatform) LocalAddr(h Handle) (netaddr.Sockaddr, error) {
	sa, err := unix.Getsockname(fd(h))
	if err != nil {
		return netaddr.Sockaddr{}, err
	}
	return fromUnixSockaddr(sa)
}

// Close implements [Platform].
func (unixPlatform) Close(h Handle) error {
	return unix.Close(fd(h))
}

// Poll implements [Platform].
func (unixPlatform) Poll(handles []Handle, timeout time.Duration) ([]bool, error) {
	fds := make([]unix.PollFd, len(handles))
	for idx, h := range handles {
		fds[idx] = unix.PollFd{Fd: int32(h), Events: unix.POLLIN}
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		_, err := unix.Poll(fds, pollMillis(timeout))
		if errclass.IsInterrupted(err) {
			if timeout > 0 {
				if timeout = time.Until(deadline); timeout <= 0 {
					return make([]bool, len(handles)), nil
				}
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		break
	}

	ready := make([]bool, len(handles))
	for idx := range fds {
		ready[idx] = fds[idx].Revents&(unix.POLLIN|unix.POLLERR|unix.POLLHUP) != 0
	}
	return ready, nil
}

// toUnixSockaddr converts a [netaddr.Sockaddr] to a [unix.Sockaddr].
func toUnixSockaddr(addr netaddr.Sockaddr) (unix.Sockaddr, error) {
	switch addr.Family {
	case netaddr.AFInet:
		return &unix.SockaddrInet4{Port: int(addr.Port), Addr: [4]byte(addr.Addr[:4])}, nil
	case netaddr.AFInet6:
		return &unix.SockaddrInet6{Port: int(addr.Port), Addr: addr.Addr}, nil
	default:
		return nil, unix.EAFNOSUPPORT
	}
}

// fromUnixSockaddr converts a [unix.Sockaddr] to a [netaddr.Sockaddr].
func fromUnixSockaddr(sa unix.Sockaddr) (netaddr.Sockaddr, error) {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		out := netaddr.Sockaddr{Family: netaddr.AFInet, Port: uint16(sa.Port)}
		copy(out.Addr[:4], sa.Addr[:])
		return out, nil
	case *unix.SockaddrInet6:
		return netaddr.Sockaddr{Family: netaddr.AFInet6, Addr: sa.Addr, Port: uint16(sa.Port)}, nil
	default:
		return netaddr.Sockaddr{}, unix.EAFNOSUPPORT
	}
}

//go:build windows

// SPDX-License-Identifier: GPL-3.0-or-later

package sysnet

import (
	"sync"
	"time"
	"unsafe"

	"github.com/rbmk-project/dualstack/netaddr"
	"golang.org/x/sys/windows"
)

// defaultPlatform is the Windows [Platform].
var defaultPlatform Platform = windowsPlatform{}

// windowsPlatform implements [Platform] using [golang.org/x/sys/windows].
type windowsPlatform struct{}

var _ Platform = windowsPlatform{}

// Winsock entry points that x/sys/windows does not wrap.
var (
	modws2_32       = windows.NewLazySystemDLL("ws2_32.dll")
	procIoctlsocket = modws2_32.NewProc("ioctlsocket")
	procAccept      = modws2_32.NewProc("accept")
	procWSAPoll     = modws2_32.NewProc("WSAPoll")
)

const (
	fionbio        = 0x8004667e
	ipv6TClass     = 39
	pollErr        = 0x0001
	pollHup        = 0x0002
	pollRdNorm     = 0x0100
	socketError    = ^uintptr(0)
	invalidSocket  = ^uintptr(0)
	winsockVersion = 0x0202
)

// wsaPollFd is the WSAPOLLFD structure.
type wsaPollFd struct {
	fd      uintptr
	events  int16
	revents int16
}

// wsaStartup initializes Winsock once per process.
var wsaStartup = sync.OnceValue(func() error {
	var data windows.WSAData
	return windows.WSAStartup(winsockVersion, &data)
})

// sock converts a [Handle] back to a [windows.Handle].
func sock(h Handle) windows.Handle {
	return windows.Handle(h)
}

// Socket implements [Platform].
func (windowsPlatform) Socket(family Family, kind Kind) (Handle, error) {
	if err := wsaStartup(); err != nil {
		return 0, err
	}
	var domain, typ, proto int
	switch family {
	case FamilyInet4:
		domain = windows.AF_INET
	case FamilyInet6:
		domain = windows.AF_INET6
	default:
		return 0, windows.WSAEAFNOSUPPORT
	}
	switch kind {
	case KindDatagram:
		typ, proto = windows.SOCK_DGRAM, windows.IPPROTO_UDP
	case KindStream:
		typ, proto = windows.SOCK_STREAM, windows.IPPROTO_TCP
	default:
		return 0, windows.WSAEPROTONOSUPPORT
	}
	s, err := windows.Socket(domain, typ, proto)
	if err != nil {
		return 0, err
	}
	return Handle(s), nil
}

// Bind implements [Platform].
func (windowsPlatform) Bind(h Handle, addr netaddr.Sockaddr) error {
	sa, err := toWindowsSockaddr(addr)
	if err != nil {
		return err
	}
	return windows.Bind(sock(h), sa)
}

// SetOption implements [Platform].
func (windowsPlatform) SetOption(h Handle, opt Option, value int) error {
	var level, name int
	switch opt {
	case OptBroadcast:
		level, name = windows.SOL_SOCKET, windows.SO_BROADCAST
	case OptRecvBuffer:
		level, name = windows.SOL_SOCKET, windows.SO_RCVBUF
	case OptTOS:
		level, name = windows.IPPROTO_IP, windows.IP_TOS
	case OptTrafficClass:
		level, name = windows.IPPROTO_IPV6, ipv6TClass
	case OptV6Only:
		level, name = windows.IPPROTO_IPV6, windows.IPV6_V6ONLY
	default:
		// SO_REUSEADDR on Windows allows stealing a bound port.
		return ErrOptionUnsupported
	}
	return windows.SetsockoptInt(sock(h), level, name, value)
}

// SetNonblock implements [Platform].
func (windowsPlatform) SetNonblock(h Handle, nonblocking bool) error {
	var mode uint32
	if nonblocking {
		mode = 1
	}
	r1, _, e1 := procIoctlsocket.Call(uintptr(h), fionbio, uintptr(unsafe.Pointer(&mode)))
	if r1 == socketError {
		return e1
	}
	return nil
}

// SendTo implements [Platform].
func (windowsPlatform) SendTo(h Handle, buf []byte, addr netaddr.Sockaddr) (int, error) {
	sa, err := toWindowsSockaddr(addr)
	if err != nil {
		return 0, err
	}
	if err := windows.Sendto(sock(h), buf, 0, sa); err != nil {
		return 0, err
	}
	return len(buf), nil
}

// RecvFrom implements [Platform].
func (windowsPlatform) RecvFrom(h Handle, buf []byte) (int, netaddr.Sockaddr, error) {
	n, from, err := windows.Recvfrom(sock(h), buf, 0)
	if err != nil {
		return 0, netaddr.Sockaddr{}, err
	}
	addr, err := fromWindowsSockaddr(from)
	if err != nil {
		return 0, netaddr.Sockaddr{}, err
	}
	return n, addr, nil
}

// Send implements [Platform].
func (windowsPlatform) Send(h Handle, buf []byte) (int, error) {
	if len(buf) <= 0 {
		return 0, nil
	}
	wsabuf := windows.WSABuf{Len: uint32(len(buf)), Buf: &buf[0]}
	var sent uint32
	if err := windows.WSASend(sock(h), &wsabuf, 1, &sent, 0, nil, nil); err != nil {
		return 0, err
	}
	return int(sent), nil
}

// Recv implements [Platform].
func (windowsPlatform) Recv(h Handle, buf []byte) (int, error) {
	if len(buf) <= 0 {
		return 0, nil
	}
	wsabuf := windows.WSABuf{Len: uint32(len(buf)), Buf: &buf[0]}
	var received, flags uint32
	if err := windows.WSARecv(sock(h), &wsabuf, 1, &received, &flags, nil, nil); err != nil {
		return 0, err
	}
	return int(received), nil
}

// Listen implements [Platform].
func (windowsPlatform) Listen(h Handle, backlog int) error {
	return windows.Listen(sock(h), backlog)
}

// Accept implements [Platform].
func (windowsPlatform) Accept(h Handle) (Handle, netaddr.Sockaddr, error) {
	var rsa windows.RawSockaddrAny
	size := int32(unsafe.Sizeof(rsa))
	r1, _, e1 := procAccept.Call(uintptr(h), uintptr(unsafe.Pointer(&rsa)), uintptr(unsafe.Pointer(&size)))
	if r1 == invalidSocket {
		return 0, netaddr.Sockaddr{}, e1
	}
	from, err := rsa.Sockaddr()
	if err != nil {
		windows.Closesocket(windows.Handle(r1))
		return 0, netaddr.Sockaddr{}, err
	}
	addr, err := fromWindowsSockaddr(from)
	if err != nil {
		windows.Closesocket(windows.Handle(r1))
		return 0, netaddr.Sockaddr{}, err
	}
	return Handle(r1), addr, nil
}

// Connect implements [Platform].
func (windowsPlatform) Connect(h Handle, addr netaddr.Sockaddr) error {
	sa, err := toWindowsSockaddr(addr)
	if err != nil {
		return err
	}
	return windows.Connect(sock(h), sa)
}

// LocalAddr implements [Platform].
func (windowsPlatform) LocalAddr(h Handle) (netaddr.Sockaddr, error) {
	sa, err := windows.Getsockname(sock(h))
	if err != nil {
		return netaddr.Sockaddr{}, err
	}
	return fromWindowsSockaddr(sa)
}

// Close implements [Platform].
func (windowsPlatform) Close(h Handle) error {
	return windows.Closesocket(sock(h))
}

// Poll implements [Platform].
func (windowsPlatform) Poll(handles []Handle, timeout time.Duration) ([]bool, error) {
	ready := make([]bool, len(handles))
	if len(handles) <= 0 {
		if timeout > 0 {
			time.Sleep(timeout)
		}
		return ready, nil
	}
	fds := make([]wsaPollFd, len(handles))
	for idx, h := range handles {
		fds[idx] = wsaPollFd{fd: uintptr(h), events: pollRdNorm}
	}
	r1, _, e1 := procWSAPoll.Call(
		uintptr(unsafe.Pointer(&fds[0])),
		uintptr(len(fds)),
		uintptr(pollMillis(timeout)),
	)
	if r1 == socketError {
		return nil, e1
	}
	for idx := range fds {
		ready[idx] = fds[idx].revents&(pollRdNorm|pollErr|pollHup) != 0
	}
	return ready, nil
}

// toWindowsSockaddr converts a [netaddr.Sockaddr] to a [windows.Sockaddr].
func toWindowsSockaddr(addr netaddr.Sockaddr) (windows.Sockaddr, error) {
	switch addr.Family {
	case netaddr.AFInet:
		return &windows.SockaddrInet4{Port: int(addr.Port), Addr: [4]byte(addr.Addr[:4])}, nil
	case netaddr.AFInet6:
		return &windows.SockaddrInet6{Port: int(addr.Port), Addr: addr.Addr}, nil
	default:
		return nil, windows.WSAEAFNOSUPPORT
	}
}

// fromWindowsSockaddr converts a [windows.Sockaddr] to a [netaddr.Sockaddr].
func fromWindowsSockaddr(sa windows.Sockaddr) (netaddr.Sockaddr, error) {
	switch sa := sa.(type) {
	case *windows.SockaddrInet4:
		out := netaddr.Sockaddr{Family: netaddr.AFInet, Port: uint16(sa.Port)}
		copy(out.Addr[:4], sa.Addr[:])
		return out, nil
	case *windows.SockaddrInet6:
		return netaddr.Sockaddr{Family: netaddr.AFInet6, Addr: sa.Addr, Port: uint16(sa.Port)}, nil
	default:
		return netaddr.Sockaddr{}, windows.WSAEAFNOSUPPORT
	}
}

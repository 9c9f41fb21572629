//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// WebSocket tunnel.
//

package wstunnel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/rbmk-project/dualstack/closepool"
	"github.com/rbmk-project/dualstack/errclass"
	"github.com/rbmk-project/dualstack/netaddr"
	"github.com/rbmk-project/dualstack/netsock"
)

const (
	// DefaultPath is the default HTTP path accepting peers.
	DefaultPath = "/"

	// DefaultSubprotocol is the default WebSocket subprotocol.
	DefaultSubprotocol = "binary"

	// DefaultInboxSize is the default number of queued datagrams.
	DefaultInboxSize = 256

	// MaxDatagramSize is the largest datagram carried by the tunnel.
	MaxDatagramSize = 65536

	// writeTimeout bounds the time spent writing to a peer.
	writeTimeout = 5 * time.Second
)

// ErrUnknownPeer indicates that no peer matches the destination.
var ErrUnknownPeer = errors.New("wstunnel: unknown peer")

// Listener creates WebSocket tunnels.
//
// The zero value is ready to use.
type Listener struct {
	// InboxSize is the optional number of datagrams queued before
	// new ones are dropped. If zero, we use [DefaultInboxSize].
	InboxSize int

	// Logger is the optional structured logger.
	Logger *slog.Logger

	// OriginPatterns are the optional cross-origin hosts
	// allowed to connect (see [websocket.AcceptOptions]).
	OriginPatterns []string

	// Path is the optional HTTP path. If empty, we use [DefaultPath].
	Path string

	// Subprotocol is the optional WebSocket subprotocol. If
	// empty, we use [DefaultSubprotocol].
	Subprotocol string
}

func (l *Listener) inboxSize() int {
	if l.InboxSize > 0 {
		return l.InboxSize
	}
	return DefaultInboxSize
}

func (l *Listener) path() string {
	if l.Path != "" {
		return l.Path
	}
	return DefaultPath
}

func (l *Listener) subprotocol() string {
	if l.Subprotocol != "" {
		return l.Subprotocol
	}
	return DefaultSubprotocol
}

// NewTunnel is like [*Listener.Listen] but returns a [netsock.Tunnel],
// which allows using it as the NewTunnel field of a [*netsock.Network].
func (l *Listener) NewTunnel(ctx context.Context, bind netaddr.Addr) (netsock.Tunnel, error) {
	tunnel, err := l.Listen(ctx, bind)
	if err != nil {
		return nil, err
	}
	return tunnel, nil
}

// Listen starts accepting peers on the IPv4 address and port of bind,
// whose family may be either [netaddr.TypeTunnel] or [netaddr.TypeIPv4].
func (l *Listener) Listen(ctx context.Context, bind netaddr.Addr) (*Tunnel, error) {
	switch bind.Family() {
	case netaddr.TypeTunnel, netaddr.TypeIPv4:
	default:
		return nil, fmt.Errorf("%w: cannot tunnel over %s", netaddr.ErrUnknownFamily, bind.Type)
	}
	address := net.JoinHostPort(bind.Format(false), strconv.Itoa(int(bind.Port)))

	lc := &net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp4", address)
	if err != nil {
		return nil, err
	}
	local := netaddr.FromNetAddr(ln.Addr())
	local.Type = netaddr.TypeTunnel
	sa, err := netaddr.ToSockaddr(local)
	if err != nil {
		ln.Close()
		return nil, err
	}

	tctx, cancel := context.WithCancel(context.Background())
	t := &Tunnel{
		cancel: cancel,
		ctx:    tctx,
		inbox:  make(chan datagram, l.inboxSize()),
		local:  sa,
		logger: l.Logger,
		notify: make(chan struct{}, 1),
		path:   l.path(),
		opts: &websocket.AcceptOptions{
			Subprotocols:    []string{l.subprotocol()},
			OriginPatterns:  l.OriginPatterns,
			CompressionMode: websocket.CompressionDisabled,
		},
		peers: map[netip.AddrPort]*websocket.Conn{},
	}

	mux := http.NewServeMux()
	mux.Handle(l.path(), t)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	t.pool.Add(srv)
	go srv.Serve(ln)

	t.logInfo("tunnelListening", slog.String("localAddr", ln.Addr().String()))
	return t, nil
}

// datagram is a queued datagram.
type datagram struct {
	from    netip.AddrPort
	payload []byte
}

// Tunnel is a WebSocket [netsock.Tunnel].
//
// Construct using [*Listener.Listen].
type Tunnel struct {
	cancel      context.CancelFunc
	closed      bool
	ctx         context.Context
	inbox       chan datagram
	local       netaddr.Sockaddr
	logger      *slog.Logger
	mu          sync.Mutex
	nonblocking atomic.Bool
	notify      chan struct{}
	opts        *websocket.AcceptOptions
	path        string
	peers       map[netip.AddrPort]*websocket.Conn
	pool        closepool.Pool
}

var _ netsock.Tunnel = &Tunnel{}

// ServeHTTP implements [http.Handler] by accepting a peer.
func (t *Tunnel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	remote, err := netip.ParseAddrPort(r.RemoteAddr)
	if err != nil {
		http.Error(w, "bad remote address", http.StatusBadRequest)
		return
	}
	remote = netip.AddrPortFrom(remote.Addr().Unmap(), remote.Port())

	conn, err := websocket.Accept(w, r, t.opts)
	if err != nil {
		t.logWarn("peerAcceptFailed", err, slog.String("remoteAddr", remote.String()))
		return
	}
	conn.SetReadLimit(MaxDatagramSize)
	if !t.addPeer(remote, conn) {
		conn.CloseNow()
		return
	}
	defer t.removePeer(remote, conn)

	t.logInfo("peerConnected", slog.String("remoteAddr", remote.String()))
	for {
		typ, payload, err := conn.Read(t.ctx)
		if err != nil {
			t.logInfo("peerDisconnected",
				slog.String("remoteAddr", remote.String()),
				slog.Any("err", err),
				slog.String("errClass", errclass.New(err)),
			)
			return
		}
		if typ != websocket.MessageBinary {
			continue
		}
		t.enqueue(datagram{from: remote, payload: payload})
	}
}

// addPeer registers a peer replacing any previous peer with the same address.
func (t *Tunnel) addPeer(remote netip.AddrPort, conn *websocket.Conn) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return false
	}
	if prev := t.peers[remote]; prev != nil {
		prev.CloseNow()
	}
	t.peers[remote] = conn
	return true
}

// removePeer unregisters and closes a peer.
func (t *Tunnel) removePeer(remote netip.AddrPort, conn *websocket.Conn) {
	t.mu.Lock()
	if t.peers[remote] == conn {
		delete(t.peers, remote)
	}
	t.mu.Unlock()
	conn.CloseNow()
}

// enqueue queues a datagram, dropping it when the inbox is full.
func (t *Tunnel) enqueue(dgram datagram) {
	select {
	case t.inbox <- dgram:
	default:
		t.logWarn("tunnelInboxFull", errors.New("inbox full"), slog.String("remoteAddr", dgram.from.String()))
		return
	}
	select {
	case t.notify <- struct{}{}:
	default:
	}
}

// SendTo implements [netsock.Tunnel].
func (t *Tunnel) SendTo(buf []byte, dest netaddr.Sockaddr) (int, error) {
	if dest.Family != netaddr.AFTunnel {
		return 0, fmt.Errorf("%w: %d", netaddr.ErrUnknownFamily, dest.Family)
	}
	remote := netip.AddrPortFrom(netip.AddrFrom4([4]byte(dest.Addr[:4])), dest.Port)

	t.mu.Lock()
	conn := t.peers[remote]
	t.mu.Unlock()
	if conn == nil {
		return 0, fmt.Errorf("%w: %s", ErrUnknownPeer, remote)
	}

	ctx, cancel := context.WithTimeout(t.ctx, writeTimeout)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageBinary, buf); err != nil {
		return 0, err
	}
	return len(buf), nil
}

// RecvFrom implements [netsock.Tunnel]. Datagrams larger than
// buf are truncated, like it happens with UDP sockets.
func (t *Tunnel) RecvFrom(buf []byte) (int, netaddr.Sockaddr, error) {
	var dgram datagram
	if t.nonblocking.Load() {
		select {
		case dgram = <-t.inbox:
		default:
			return 0, netaddr.Sockaddr{}, netsock.ErrWouldBlock
		}
	} else {
		select {
		case dgram = <-t.inbox:
		case <-t.ctx.Done():
			return 0, netaddr.Sockaddr{}, net.ErrClosed
		}
	}
	from := netaddr.Sockaddr{Family: netaddr.AFTunnel, Port: dgram.from.Port()}
	ip4 := dgram.from.Addr().As4()
	copy(from.Addr[:4], ip4[:])
	return copy(buf, dgram.payload), from, nil
}

// SetNonBlocking implements [netsock.Tunnel].
func (t *Tunnel) SetNonBlocking(nonblocking bool) {
	t.nonblocking.Store(nonblocking)
}

// Pending implements [netsock.Tunnel].
func (t *Tunnel) Pending() bool {
	return len(t.inbox) > 0
}

// Notify implements [netsock.Tunnel].
func (t *Tunnel) Notify() <-chan struct{} {
	return t.notify
}

// LocalAddr implements [netsock.Tunnel].
func (t *Tunnel) LocalAddr() netaddr.Sockaddr {
	return t.local
}

// URL returns the ws:// URL peers should use with [Dial].
func (t *Tunnel) URL() string {
	addr, _ := netaddr.FromSockaddr(t.local)
	return "ws://" + addr.Format(true) + t.path
}

// Close implements [netsock.Tunnel]. It stops accepting
// peers and disconnects the connected ones.
func (t *Tunnel) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	for _, conn := range t.peers {
		t.pool.AddFunc(func() error {
			// the read loop may have closed it already
			if err := conn.CloseNow(); !errors.Is(err, net.ErrClosed) {
				return err
			}
			return nil
		})
	}
	t.mu.Unlock()

	t.cancel()
	err := t.pool.Close()
	t.logInfo("tunnelClosed", slog.Any("err", err), slog.String("errClass", errclass.New(err)))
	return err
}

func (t *Tunnel) logInfo(msg string, attrs ...slog.Attr) {
	if t.logger != nil {
		t.logger.LogAttrs(t.ctx, slog.LevelInfo, msg, attrs...)
	}
}

func (t *Tunnel) logWarn(msg string, err error, attrs ...slog.Attr) {
	if t.logger != nil {
		attrs = append(attrs,
			slog.String("subsystem", "websocket"),
			slog.Any("err", err),
			slog.String("errClass", errclass.New(err)),
		)
		t.logger.LogAttrs(t.ctx, slog.LevelWarn, msg, attrs...)
	}
}

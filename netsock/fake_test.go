// SPDX-License-Identifier: GPL-3.0-or-later

package netsock_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rbmk-project/dualstack/netaddr"
	"github.com/rbmk-project/dualstack/netsock"
	"github.com/rbmk-project/dualstack/sysnet"
	"github.com/stretchr/testify/require"
)

// errMocked is the error returned by the fakes.
var errMocked = errors.New("mocked error")

// failingPlatform is the native platform except
// that socket creation fails for one family.
type failingPlatform struct {
	sysnet.Platform
	family sysnet.Family
}

// Socket implements [sysnet.Platform].
func (p failingPlatform) Socket(family sysnet.Family, kind sysnet.Kind) (sysnet.Handle, error) {
	if family == p.family {
		return 0, errMocked
	}
	return p.Platform.Socket(family, kind)
}

// fakeOption is a socket option set on a [*fakePlatform].
type fakeOption struct {
	handle sysnet.Handle
	opt    sysnet.Option
	value  int
}

// fakeDatagram is a datagram sent through a fake.
type fakeDatagram struct {
	handle  sysnet.Handle
	addr    netaddr.Sockaddr
	payload []byte
}

// fakePlatform is an in-memory [sysnet.Platform].
type fakePlatform struct {
	closed      []sysnet.Handle
	failBind    map[sysnet.Family]error
	failNonblk  error
	families    map[sysnet.Handle]sysnet.Family
	inbox       map[sysnet.Family][]fakeDatagram
	mu          sync.Mutex
	next        sysnet.Handle
	nonblocking map[sysnet.Handle]bool
	options     []fakeOption
	pollErr     error
	readable    map[sysnet.Handle]bool
	recvErr     map[sysnet.Family]error
	sent        []fakeDatagram
}

var _ sysnet.Platform = &fakePlatform{}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		failBind:    map[sysnet.Family]error{},
		families:    map[sysnet.Handle]sysnet.Family{},
		inbox:       map[sysnet.Family][]fakeDatagram{},
		next:        100,
		nonblocking: map[sysnet.Handle]bool{},
		readable:    map[sysnet.Handle]bool{},
		recvErr:     map[sysnet.Family]error{},
	}
}

func (p *fakePlatform) Socket(family sysnet.Family, kind sysnet.Kind) (sysnet.Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	p.families[p.next] = family
	return p.next, nil
}

func (p *fakePlatform) Bind(h sysnet.Handle, addr netaddr.Sockaddr) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failBind[p.families[h]]
}

func (p *fakePlatform) SetOption(h sysnet.Handle, opt sysnet.Option, value int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.options = append(p.options, fakeOption{h, opt, value})
	return nil
}

func (p *fakePlatform) SetNonblock(h sysnet.Handle, nonblocking bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failNonblk != nil {
		return p.failNonblk
	}
	p.nonblocking[h] = nonblocking
	return nil
}

func (p *fakePlatform) SendTo(h sysnet.Handle, buf []byte, addr netaddr.Sockaddr) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, fakeDatagram{h, addr, bytes.Clone(buf)})
	return len(buf), nil
}

func (p *fakePlatform) RecvFrom(h sysnet.Handle, buf []byte) (int, netaddr.Sockaddr, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.recvErr[p.families[h]]; err != nil {
		return 0, netaddr.Sockaddr{}, err
	}
	family := p.families[h]
	queue := p.inbox[family]
	if len(queue) <= 0 {
		return 0, netaddr.Sockaddr{}, netsock.ErrWouldBlock
	}
	dgram := queue[0]
	p.inbox[family] = queue[1:]
	return copy(buf, dgram.payload), dgram.addr, nil
}

func (p *fakePlatform) Send(h sysnet.Handle, buf []byte) (int, error) {
	return len(buf), nil
}

func (p *fakePlatform) Recv(h sysnet.Handle, buf []byte) (int, error) {
	return 0, netsock.ErrWouldBlock
}

func (p *fakePlatform) Listen(h sysnet.Handle, backlog int) error {
	return nil
}

func (p *fakePlatform) Accept(h sysnet.Handle) (sysnet.Handle, netaddr.Sockaddr, error) {
	return 0, netaddr.Sockaddr{}, netsock.ErrWouldBlock
}

func (p *fakePlatform) Connect(h sysnet.Handle, addr netaddr.Sockaddr) error {
	return nil
}

func (p *fakePlatform) LocalAddr(h sysnet.Handle) (netaddr.Sockaddr, error) {
	return netaddr.Sockaddr{}, errMocked
}

func (p *fakePlatform) Close(h sysnet.Handle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = append(p.closed, h)
	return nil
}

func (p *fakePlatform) Poll(handles []sysnet.Handle, timeout time.Duration) ([]bool, error) {
	p.mu.Lock()
	if err := p.pollErr; err != nil {
		p.mu.Unlock()
		return nil, err
	}
	ready := make([]bool, len(handles))
	var found bool
	for idx, h := range handles {
		ready[idx] = p.readable[h]
		found = found || ready[idx]
	}
	p.mu.Unlock()
	if !found && timeout > 0 {
		time.Sleep(timeout)
	}
	return ready, nil
}

// optionsOf returns the options set on the given handle.
func (p *fakePlatform) optionsOf(h sysnet.Handle) map[sysnet.Option]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := map[sysnet.Option]int{}
	for _, entry := range p.options {
		if entry.handle == h {
			out[entry.opt] = entry.value
		}
	}
	return out
}

// deliver queues a datagram for the sockets of the given family.
func (p *fakePlatform) deliver(family sysnet.Family, payload []byte, from netaddr.Addr) {
	sa, err := netaddr.ToSockaddr(from)
	if err != nil {
		panic(err)
	}
	p.mu.Lock()
	p.inbox[family] = append(p.inbox[family], fakeDatagram{addr: sa, payload: payload})
	p.mu.Unlock()
}

// setReadable marks every handle of the given family as readable.
func (p *fakePlatform) setReadable(family sysnet.Family) {
	handles := p.handlesOf(family)
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, h := range handles {
		p.readable[h] = true
	}
}

// handlesOf returns the handles created for the given family.
func (p *fakePlatform) handlesOf(family sysnet.Family) []sysnet.Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []sysnet.Handle
	for h := sysnet.Handle(101); h <= p.next; h++ {
		if p.families[h] == family {
			out = append(out, h)
		}
	}
	return out
}

// fakeTunnel is an in-memory [netsock.Tunnel].
type fakeTunnel struct {
	closed      bool
	local       netaddr.Sockaddr
	mu          sync.Mutex
	nonblocking bool
	notify      chan struct{}
	queue       []fakeDatagram
	sent        []fakeDatagram
}

var _ netsock.Tunnel = &fakeTunnel{}

func newFakeTunnel(local netaddr.Sockaddr) *fakeTunnel {
	return &fakeTunnel{local: local, notify: make(chan struct{}, 1)}
}

// push queues a datagram as if it came from the given peer.
func (ft *fakeTunnel) push(payload []byte, from netaddr.Sockaddr) {
	ft.mu.Lock()
	ft.queue = append(ft.queue, fakeDatagram{addr: from, payload: payload})
	ft.mu.Unlock()
	select {
	case ft.notify <- struct{}{}:
	default:
	}
}

func (ft *fakeTunnel) SendTo(buf []byte, dest netaddr.Sockaddr) (int, error) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.sent = append(ft.sent, fakeDatagram{addr: dest, payload: bytes.Clone(buf)})
	return len(buf), nil
}

func (ft *fakeTunnel) RecvFrom(buf []byte) (int, netaddr.Sockaddr, error) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	if len(ft.queue) <= 0 {
		return 0, netaddr.Sockaddr{}, netsock.ErrWouldBlock
	}
	dgram := ft.queue[0]
	ft.queue = ft.queue[1:]
	return copy(buf, dgram.payload), dgram.addr, nil
}

func (ft *fakeTunnel) SetNonBlocking(nonblocking bool) {
	ft.mu.Lock()
	ft.nonblocking = nonblocking
	ft.mu.Unlock()
}

func (ft *fakeTunnel) Pending() bool {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return len(ft.queue) > 0
}

func (ft *fakeTunnel) Notify() <-chan struct{} {
	return ft.notify
}

func (ft *fakeTunnel) LocalAddr() netaddr.Sockaddr {
	return ft.local
}

func (ft *fakeTunnel) Close() error {
	ft.mu.Lock()
	ft.closed = true
	ft.mu.Unlock()
	return nil
}

// newJSONLogger returns a logger writing JSON lines without timestamps.
func newJSONLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	}))
}

// parseLogs parses the JSON lines written by [newJSONLogger].
func parseLogs(t *testing.T, buf *bytes.Buffer) []map[string]any {
	var logs []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		logs = append(logs, entry)
	}
	return logs
}

// findLogs returns the log entries with the given message.
func findLogs(logs []map[string]any, msg string) []map[string]any {
	var out []map[string]any
	for _, entry := range logs {
		if entry["msg"] == msg {
			out = append(out, entry)
		}
	}
	return out
}

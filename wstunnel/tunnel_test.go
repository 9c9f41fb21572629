// SPDX-License-Identifier: GPL-3.0-or-later

package wstunnel_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rbmk-project/dualstack/netaddr"
	"github.com/rbmk-project/dualstack/netsock"
	"github.com/rbmk-project/dualstack/wstunnel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loopbackTunnel is the tunnel-family loopback address with an ephemeral port.
func loopbackTunnel() netaddr.Addr {
	addr := netaddr.MustParse("127.0.0.1:0")
	addr.Type = netaddr.TypeTunnel
	return addr
}

// waitPending waits for the tunnel to queue a datagram.
func waitPending(t *testing.T, tunnel *wstunnel.Tunnel) {
	deadline := time.After(5 * time.Second)
	for !tunnel.Pending() {
		select {
		case <-tunnel.Notify():
		case <-deadline:
			t.Fatal("timed out waiting for a datagram")
		}
	}
}

// syncBuffer is a [bytes.Buffer] safe for use by the server goroutines.
type syncBuffer struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func (sb *syncBuffer) Write(data []byte) (int, error) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.buf.Write(data)
}

// entries returns the JSON log lines written so far.
func (sb *syncBuffer) entries() []map[string]any {
	sb.mu.Lock()
	text := strings.TrimSpace(sb.buf.String())
	sb.mu.Unlock()
	var out []map[string]any
	for _, line := range strings.Split(text, "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if json.Unmarshal([]byte(line), &entry) == nil {
			out = append(out, entry)
		}
	}
	return out
}

// countMsg counts the log entries with the given message.
func countMsg(entries []map[string]any, msg string) int {
	var count int
	for _, entry := range entries {
		if entry["msg"] == msg {
			count++
		}
	}
	return count
}

func TestTunnel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	t.Run("exchange datagrams with a peer", func(t *testing.T) {
		tunnel, err := (&wstunnel.Listener{}).Listen(ctx, loopbackTunnel())
		require.NoError(t, err)
		defer tunnel.Close()

		local := tunnel.LocalAddr()
		assert.Equal(t, netaddr.AFTunnel, local.Family)
		assert.NotZero(t, local.Port)

		peer, err := wstunnel.Dial(ctx, tunnel.URL())
		require.NoError(t, err)
		defer peer.Close()
		assert.Equal(t, wstunnel.DefaultSubprotocol, peer.Subprotocol())

		require.NoError(t, peer.Send(ctx, []byte("hello")))
		waitPending(t, tunnel)

		tunnel.SetNonBlocking(true)
		buf := make([]byte, 1024)
		n, from, err := tunnel.RecvFrom(buf)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(buf[:n]))
		assert.Equal(t, netaddr.AFTunnel, from.Family)
		assert.Equal(t, []byte{127, 0, 0, 1}, from.Addr[:4])
		assert.False(t, tunnel.Pending())

		n, err = tunnel.SendTo([]byte("world"), from)
		require.NoError(t, err)
		assert.Equal(t, 5, n)
		reply, err := peer.Recv(ctx)
		require.NoError(t, err)
		assert.Equal(t, "world", string(reply))
	})

	t.Run("truncates datagrams larger than the buffer", func(t *testing.T) {
		tunnel, err := (&wstunnel.Listener{}).Listen(ctx, loopbackTunnel())
		require.NoError(t, err)
		defer tunnel.Close()

		peer, err := wstunnel.Dial(ctx, tunnel.URL())
		require.NoError(t, err)
		defer peer.Close()

		require.NoError(t, peer.Send(ctx, []byte("hello, world")))
		waitPending(t, tunnel)

		buf := make([]byte, 5)
		n, _, err := tunnel.RecvFrom(buf)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(buf[:n]))
	})

	t.Run("full inbox drops datagrams", func(t *testing.T) {
		logs := &syncBuffer{}
		listener := &wstunnel.Listener{
			InboxSize: 1,
			Logger:    slog.New(slog.NewJSONHandler(logs, nil)),
		}
		tunnel, err := listener.Listen(ctx, loopbackTunnel())
		require.NoError(t, err)
		defer tunnel.Close()

		peer, err := wstunnel.Dial(ctx, tunnel.URL())
		require.NoError(t, err)
		defer peer.Close()

		for _, payload := range []string{"one", "two", "three"} {
			require.NoError(t, peer.Send(ctx, []byte(payload)))
		}
		require.Eventually(t, func() bool {
			return countMsg(logs.entries(), "tunnelInboxFull") >= 2
		}, 5*time.Second, 10*time.Millisecond)

		tunnel.SetNonBlocking(true)
		buf := make([]byte, 1024)
		n, _, err := tunnel.RecvFrom(buf)
		require.NoError(t, err)
		assert.Equal(t, "one", string(buf[:n]))
		_, _, err = tunnel.RecvFrom(buf)
		assert.ErrorIs(t, err, netsock.ErrWouldBlock)

		entries := logs.entries()
		assert.Equal(t, 2, countMsg(entries, "tunnelInboxFull"))
		for _, entry := range entries {
			if entry["msg"] == "tunnelInboxFull" {
				assert.Equal(t, "WARN", entry["level"])
				assert.Equal(t, "websocket", entry["subsystem"])
				assert.Contains(t, entry, "errClass")
			}
		}
	})

	t.Run("non-blocking receive without data", func(t *testing.T) {
		tunnel, err := (&wstunnel.Listener{}).Listen(ctx, loopbackTunnel())
		require.NoError(t, err)
		defer tunnel.Close()

		tunnel.SetNonBlocking(true)
		_, _, err = tunnel.RecvFrom(make([]byte, 16))
		assert.ErrorIs(t, err, netsock.ErrWouldBlock)
	})

	t.Run("send errors", func(t *testing.T) {
		tunnel, err := (&wstunnel.Listener{}).Listen(ctx, loopbackTunnel())
		require.NoError(t, err)
		defer tunnel.Close()

		unknown := netaddr.Sockaddr{Family: netaddr.AFTunnel, Port: 1}
		copy(unknown.Addr[:4], []byte{192, 0, 2, 1})
		_, err = tunnel.SendTo([]byte("hello"), unknown)
		assert.ErrorIs(t, err, wstunnel.ErrUnknownPeer)

		_, err = tunnel.SendTo([]byte("hello"), netaddr.Sockaddr{Family: netaddr.AFInet6})
		assert.ErrorIs(t, err, netaddr.ErrUnknownFamily)
	})

	t.Run("listen rejects IPv6", func(t *testing.T) {
		addr, err := netaddr.Parse("[::1]:0")
		require.NoError(t, err)
		_, err = (&wstunnel.Listener{}).Listen(ctx, addr)
		assert.ErrorIs(t, err, netaddr.ErrUnknownFamily)
	})

	t.Run("close disconnects peers", func(t *testing.T) {
		tunnel, err := (&wstunnel.Listener{Path: "/tunnel"}).Listen(ctx, loopbackTunnel())
		require.NoError(t, err)
		assert.Contains(t, tunnel.URL(), "/tunnel")

		peer, err := wstunnel.Dial(ctx, tunnel.URL())
		require.NoError(t, err)
		defer peer.Close()

		require.NoError(t, peer.Send(ctx, []byte("hello")))
		waitPending(t, tunnel)

		require.NoError(t, tunnel.Close())
		require.NoError(t, tunnel.Close())

		_, err = peer.Recv(ctx)
		assert.Error(t, err)

		_, err = wstunnel.Dial(ctx, tunnel.URL())
		assert.Error(t, err)
	})

	t.Run("blocking receive after close", func(t *testing.T) {
		tunnel, err := (&wstunnel.Listener{}).Listen(ctx, loopbackTunnel())
		require.NoError(t, err)
		require.NoError(t, tunnel.Close())

		_, _, err = tunnel.RecvFrom(make([]byte, 16))
		assert.ErrorIs(t, err, net.ErrClosed)
	})
}

func TestListener_NewTunnel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	nx := &netsock.Network{
		NewTunnel: (&wstunnel.Listener{}).NewTunnel,
		Stats:     &netsock.Stats{},
	}
	bind := netaddr.MustParse("127.0.0.1:0")
	bind.Type = netaddr.TypeIPv4 | netaddr.TypeTunnel
	sock := nx.NewUDP(ctx, bind)
	defer sock.Close()
	require.Equal(t, netaddr.TypeIPv4|netaddr.TypeTunnel, sock.Type())

	local, err := sock.LocalAddr(netaddr.TypeTunnel)
	require.NoError(t, err)
	assert.Equal(t, netaddr.TypeTunnel, local.Type)

	peer, err := wstunnel.Dial(ctx, "ws://"+local.String()+wstunnel.DefaultPath)
	require.NoError(t, err)
	defer peer.Close()

	require.NoError(t, peer.Send(ctx, []byte("hello")))
	require.True(t, sock.WaitReadable(5*time.Second))

	buf := make([]byte, 1024)
	n, from, err := sock.RecvFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
	assert.Equal(t, netaddr.TypeTunnel, from.Type)
	assert.Equal(t, "127.0.0.1", from.Format(false))

	_, err = sock.SendTo(from, []byte("world"))
	require.NoError(t, err)
	reply, err := peer.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, "world", string(reply))

	assert.Equal(t, netsock.StatsSnapshot{
		SentBytes:   5,
		SentPackets: 1,
		RecvBytes:   5,
		RecvPackets: 1,
	}, nx.Stats.Snapshot())
}

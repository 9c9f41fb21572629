// SPDX-License-Identifier: GPL-3.0-or-later

package wstunnel

import (
	"context"

	"github.com/coder/websocket"
)

// Peer is a client connected to a [*Tunnel].
type Peer struct {
	conn *websocket.Conn
}

// Dial connects to the tunnel at the given ws:// URL using
// the [DefaultSubprotocol].
func Dial(ctx context.Context, url string) (*Peer, error) {
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		Subprotocols:    []string{DefaultSubprotocol},
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(MaxDatagramSize)
	return &Peer{conn: conn}, nil
}

// Subprotocol returns the negotiated subprotocol.
func (p *Peer) Subprotocol() string {
	return p.conn.Subprotocol()
}

// Send sends a datagram to the tunnel.
func (p *Peer) Send(ctx context.Context, payload []byte) error {
	return p.conn.Write(ctx, websocket.MessageBinary, payload)
}

// Recv receives the next datagram from the tunnel, skipping text messages.
func (p *Peer) Recv(ctx context.Context) ([]byte, error) {
	for {
		typ, payload, err := p.conn.Read(ctx)
		if err != nil {
			return nil, err
		}
		if typ == websocket.MessageBinary {
			return payload, nil
		}
	}
}

// Close closes the connection to the tunnel.
func (p *Peer) Close() error {
	return p.conn.Close(websocket.StatusNormalClosure, "")
}

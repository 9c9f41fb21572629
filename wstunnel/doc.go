// SPDX-License-Identifier: GPL-3.0-or-later

/*
Package wstunnel implements a [netsock.Tunnel] carried over WebSocket.

A [*Listener] accepts WebSocket peers on an IPv4 address and exposes them
as a datagram transport: each binary message is one datagram, and the
peer is addressed by the `host:port` of its TCP connection, tagged with
the [netaddr.TypeTunnel] family. Use [*Listener.NewTunnel] as the
NewTunnel field of a [*netsock.Network] to add the tunnel family to the
datagram sockets it creates.

[Dial] connects to a tunnel as a [*Peer], which is what browser-based
clients do using the WebSocket API.
*/
package wstunnel

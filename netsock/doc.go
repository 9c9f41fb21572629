// SPDX-License-Identifier: GPL-3.0-or-later

/*
Package netsock implements dual-stack UDP and TCP sockets.

A [*Socket] owns up to one IPv4 descriptor, one IPv6 descriptor, and one
[Tunnel], and exposes them as a single handle addressed with [netaddr.Addr].
Families are created independently: a socket requesting both IPv4 and IPv6
on a host without IPv6 support is still usable over IPv4.

# Features

- [*Network.NewUDP] and [*Network.NewTCP] create sockets bound to a local
address, configuring broadcast, receive buffer, and traffic class.

- [*Socket.SendTo] and [*Socket.RecvFrom] exchange datagrams with every
family selected by the destination, rewriting link-broadcast destinations
to 255.255.255.255 and ff02::1.

- [*Socket.WaitReadable] waits for any owned descriptor to become readable.

- [*Stats] counts the bytes and packets exchanged by every socket created
by the same [*Network].

# Diagnostics

A [*Network] with a non-nil Logger emits structured events through the
[log/slog] package: `socketStart`, `socketDone`, `connectStart`, `connectDone`,
`closeStart`, and `closeDone` events, plus one warning per recoverable
failure carrying the `subsystem`, `errno`, `errText`, `err`, and `errClass`
fields.

# Concurrency

A [*Socket] has no internal locks. Concurrent use of SendTo and RecvFrom is
as safe as the underlying operating system sockets, and [*Stats] counters
are updated atomically.
*/
package netsock

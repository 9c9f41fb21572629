// SPDX-License-Identifier: GPL-3.0-or-later

/*
Package netaddr implements the unified network address used by the
dual-stack sockets in this module.

An [Addr] is a small comparable value holding a family [Type], a
16-byte address buffer, and a port. The family is one of [TypeIPv4],
[TypeIPv6], and [TypeTunnel], optionally combined with the
[TypeLinkBroadcast] flag.

# Text Format

[Parse] accepts `a.b.c.d[:port]` for IPv4 and `[ipv6][:port]` for IPv6.
[Addr.Format] produces the same forms, rendering IPv6 as eight lower-case
hex groups without zero compression (e.g., `[0:0:0:0:0:0:0:1]:8080`).

# Socket Addresses

[ToSockaddr] and [FromSockaddr] convert to and from [Sockaddr], the shape
exchanged with the platform socket layer. The tunnel family uses the IPv4
shape tagged with the private [AFTunnel] family number.

# Name Resolution

[*Resolver] resolves `host[:port]` strings restricted to a family filter
using either the system resolver or a custom lookup function, such as
the one returned by [NewDNSLookupFunc].
*/
package netaddr

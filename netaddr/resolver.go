//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Host name resolution.
//

package netaddr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"time"

	"github.com/rbmk-project/dualstack/errclass"
)

// ErrResolutionFailed indicates that name resolution did not
// produce any usable address.
var ErrResolutionFailed = errors.New("resolution failed")

// LookupFunc resolves a host name to IP addresses. The network is
// "ip", "ip4", or "ip6", as in [*net.Resolver.LookupNetIP].
type LookupFunc func(ctx context.Context, network, host string) ([]netip.Addr, error)

// Resolver resolves host names into [Addr].
//
// The zero value is ready to use and uses the system resolver.
type Resolver struct {
	// LookupFunc is the optional function to resolve a host name
	// to IP addresses. If this field is nil, we use the default
	// [*net.Resolver] from the [net] package.
	LookupFunc LookupFunc

	// Logger is the optional structured logger for emitting
	// structured diagnostic events. If this field is nil, we
	// will not be emitting structured logs.
	Logger *slog.Logger

	// TimeNow is an optional function that returns the current time.
	// If this field is nil, the [time.Now] function will be used.
	TimeNow func() time.Time
}

// DefaultResolver is the default [*Resolver] used by [Resolve].
var DefaultResolver = &Resolver{}

// Resolve is equivalent to DefaultResolver.Resolve(ctx, hostname, filter).
func Resolve(ctx context.Context, hostname string, filter Type) (Addr, error) {
	return DefaultResolver.Resolve(ctx, hostname, filter)
}

// timeNow is a function that returns the current time.
func (r *Resolver) timeNow() time.Time {
	if r.TimeNow != nil {
		return r.TimeNow()
	}
	return time.Now()
}

// lookupNetwork maps a family filter to the network for [LookupFunc].
func lookupNetwork(filter Type) string {
	switch filter {
	case TypeIPv4:
		return "ip4"
	case TypeIPv6:
		return "ip6"
	default:
		return "ip"
	}
}

// Resolve resolves `host[:port]` or `[host][:port]` into an [Addr].
//
// The filter restricts the lookup to IPv4 ([TypeIPv4]) or IPv6 ([TypeIPv6])
// addresses; any other value allows both. The first usable address wins.
//
// On failure, the returned error wraps [ErrResolutionFailed] or, when the
// port cannot be parsed, [ErrMalformedAddress].
func (r *Resolver) Resolve(ctx context.Context, hostname string, filter Type) (Addr, error) {
	host, port, err := SplitHostPort(hostname)
	if err != nil {
		return Addr{}, err
	}
	network := lookupNetwork(filter)

	t0 := r.emitLookupHostStart(ctx, host, network)
	addrs, err := r.doLookup(ctx, network, host)
	r.emitLookupHostDone(ctx, host, network, t0, addrs, err)

	if err != nil {
		err = fmt.Errorf("%w: %s: %w", ErrResolutionFailed, host, err)
		r.emitResolutionFailed(ctx, host, filter, err)
		return Addr{}, err
	}
	for _, ip := range addrs {
		addr := FromAddrPort(netip.AddrPortFrom(ip, port))
		if addr.Type == TypeInvalid {
			continue
		}
		if filter == TypeIPv4 || filter == TypeIPv6 {
			if addr.Type != filter {
				continue
			}
		}
		return addr, nil
	}
	err = fmt.Errorf("%w: %s: no usable addresses", ErrResolutionFailed, host)
	r.emitResolutionFailed(ctx, host, filter, err)
	return Addr{}, err
}

// doLookup performs the actual lookup.
func (r *Resolver) doLookup(ctx context.Context, network, host string) ([]netip.Addr, error) {
	// if there is a custom LookupFunc, use it
	if r.LookupFunc != nil {
		return r.LookupFunc(ctx, network, host)
	}

	// otherwise fallback to the system resolver
	reso := &net.Resolver{}
	return reso.LookupNetIP(ctx, network, host)
}

// emitLookupHostStart emits a structured event before the lookup.
func (r *Resolver) emitLookupHostStart(ctx context.Context, host, network string) time.Time {
	t0 := r.timeNow()
	if r.Logger != nil {
		r.Logger.InfoContext(
			ctx,
			"lookupHostStart",
			slog.String("dnsLookupDomain", host),
			slog.String("dnsLookupNetwork", network),
			slog.Time("t", t0),
		)
	}
	return t0
}

// emitLookupHostDone emits a structured event after the lookup.
func (r *Resolver) emitLookupHostDone(ctx context.Context,
	host, network string, t0 time.Time, addrs []netip.Addr, err error) {
	if r.Logger != nil {
		var resolved []string
		for _, addr := range addrs {
			resolved = append(resolved, addr.String())
		}
		r.Logger.InfoContext(
			ctx,
			"lookupHostDone",
			slog.String("dnsLookupDomain", host),
			slog.String("dnsLookupNetwork", network),
			slog.Any("dnsResolvedAddrs", resolved),
			slog.Any("err", err),
			slog.String("errClass", errclass.New(err)),
			slog.Time("t0", t0),
			slog.Time("t", r.timeNow()),
		)
	}
}

// emitResolutionFailed emits a warning when a host cannot be resolved.
func (r *Resolver) emitResolutionFailed(ctx context.Context, host string, filter Type, err error) {
	if r.Logger != nil {
		r.Logger.LogAttrs(
			ctx,
			slog.LevelWarn,
			"resolutionFailed",
			slog.String("dnsLookupDomain", host),
			slog.String("dnsLookupNetwork", lookupNetwork(filter)),
			slog.String("subsystem", "resolver"),
			slog.Int("errno", errclass.Errno(err)),
			slog.String("errText", errclass.ErrnoText(err)),
			slog.Any("err", err),
			slog.String("errClass", errclass.New(err)),
			slog.Time("t", r.timeNow()),
		)
	}
}

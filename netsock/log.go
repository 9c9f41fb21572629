// SPDX-License-Identifier: GPL-3.0-or-later

package netsock

import (
	"context"
	"log/slog"
	"time"

	"github.com/rbmk-project/dualstack/errclass"
	"github.com/rbmk-project/dualstack/netaddr"
	"github.com/rbmk-project/dualstack/sysnet"
)

// logSubsystem is the subsystem of the warnings we emit.
const logSubsystem = "net"

// protocolName returns the protocol name used in the structured logs.
func protocolName(kind sysnet.Kind) string {
	if kind == sysnet.KindStream {
		return "tcp"
	}
	return "udp"
}

// emitWarning emits a warning about a recoverable failure.
func (nx *Network) emitWarning(ctx context.Context,
	msg string, family netaddr.Type, err error, attrs ...slog.Attr) {
	if nx.Logger != nil {
		attrs = append(attrs,
			slog.String("subsystem", logSubsystem),
			familyAttr(family),
			slog.Int("errno", errclass.Errno(err)),
			slog.String("errText", errclass.ErrnoText(err)),
			slog.Any("err", err),
			slog.String("errClass", errclass.New(err)),
			slog.Time("t", nx.timeNow()),
		)
		nx.Logger.LogAttrs(ctx, slog.LevelWarn, msg, attrs...)
	}
}

// emitSocketStart emits a structured event before creating a descriptor.
func (nx *Network) emitSocketStart(ctx context.Context, kind sysnet.Kind, local netaddr.Addr) time.Time {
	t0 := nx.timeNow()
	if nx.Logger != nil {
		nx.Logger.InfoContext(
			ctx,
			"socketStart",
			slog.String("family", local.Family().String()),
			slog.String("localAddr", local.String()),
			slog.String("protocol", protocolName(kind)),
			slog.Time("t", t0),
		)
	}
	return t0
}

// emitSocketDone emits a structured event after creating a descriptor.
func (nx *Network) emitSocketDone(ctx context.Context,
	kind sysnet.Kind, local netaddr.Addr, t0 time.Time, err error) {
	if nx.Logger != nil {
		nx.Logger.InfoContext(
			ctx,
			"socketDone",
			slog.Any("err", err),
			slog.String("errClass", errclass.New(err)),
			slog.String("family", local.Family().String()),
			slog.String("localAddr", local.String()),
			slog.String("protocol", protocolName(kind)),
			slog.Time("t0", t0),
			slog.Time("t", nx.timeNow()),
		)
	}
}

// emitConnectStart emits a structured event before connecting.
func (nx *Network) emitConnectStart(ctx context.Context, remote netaddr.Addr) time.Time {
	t0 := nx.timeNow()
	if nx.Logger != nil {
		nx.Logger.InfoContext(
			ctx,
			"connectStart",
			slog.String("family", remote.Family().String()),
			slog.String("protocol", "tcp"),
			slog.String("remoteAddr", remote.String()),
			slog.Time("t", t0),
		)
	}
	return t0
}

// emitConnectDone emits a structured event after connecting.
func (nx *Network) emitConnectDone(ctx context.Context,
	remote netaddr.Addr, t0 time.Time, err error) {
	if nx.Logger != nil {
		nx.Logger.InfoContext(
			ctx,
			"connectDone",
			slog.Any("err", err),
			slog.String("errClass", errclass.New(err)),
			slog.String("family", remote.Family().String()),
			slog.String("protocol", "tcp"),
			slog.String("remoteAddr", remote.String()),
			slog.Time("t0", t0),
			slog.Time("t", nx.timeNow()),
		)
	}
}

// emitCloseStart emits a structured event before closing a socket.
func (nx *Network) emitCloseStart(ctx context.Context, kind sysnet.Kind, mask netaddr.Type) time.Time {
	t0 := nx.timeNow()
	if nx.Logger != nil {
		nx.Logger.InfoContext(
			ctx,
			"closeStart",
			slog.String("families", formatMask(mask)),
			slog.String("protocol", protocolName(kind)),
			slog.Time("t", t0),
		)
	}
	return t0
}

// emitCloseDone emits a structured event after closing a socket.
func (nx *Network) emitCloseDone(ctx context.Context,
	kind sysnet.Kind, mask netaddr.Type, t0 time.Time, err error) {
	if nx.Logger != nil {
		nx.Logger.InfoContext(
			ctx,
			"closeDone",
			slog.Any("err", err),
			slog.String("errClass", errclass.New(err)),
			slog.String("families", formatMask(mask)),
			slog.String("protocol", protocolName(kind)),
			slog.Time("t0", t0),
			slog.Time("t", nx.timeNow()),
		)
	}
}

// familyAttr returns the "family" attribute for a single family
// and the "families" attribute for a mask of several families.
func familyAttr(mask netaddr.Type) slog.Attr {
	switch mask {
	case netaddr.TypeIPv4, netaddr.TypeIPv6, netaddr.TypeTunnel:
		return slog.String("family", mask.String())
	default:
		return slog.String("families", formatMask(mask))
	}
}

// familyName renders a mask for error messages.
func familyName(mask netaddr.Type) string {
	if name := formatMask(mask); name != "" {
		return name
	}
	return mask.String()
}

// formatMask renders the families in a mask (e.g., "ipv4,ipv6").
func formatMask(mask netaddr.Type) string {
	var out string
	for _, family := range familyOrder {
		if mask.Has(family) {
			if out != "" {
				out += ","
			}
			out += family.String()
		}
	}
	return out
}

// SPDX-License-Identifier: GPL-3.0-or-later

package netsock

import "sync/atomic"

// Stats contains the traffic counters shared by the sockets
// created by a [*Network]. There is no way to reset them.
//
// The zero value is ready to use.
type Stats struct {
	sentBytes   atomic.Uint64
	sentPackets atomic.Uint64
	recvBytes   atomic.Uint64
	recvPackets atomic.Uint64
}

// StatsSnapshot is a point-in-time copy of [*Stats].
type StatsSnapshot struct {
	SentBytes   uint64
	SentPackets uint64
	RecvBytes   uint64
	RecvPackets uint64
}

// Snapshot returns the current value of the counters.
func (s *Stats) Snapshot() StatsSnapshot {
	if s == nil {
		return StatsSnapshot{}
	}
	return StatsSnapshot{
		SentBytes:   s.sentBytes.Load(),
		SentPackets: s.sentPackets.Load(),
		RecvBytes:   s.recvBytes.Load(),
		RecvPackets: s.recvPackets.Load(),
	}
}

// addSent counts a packet of count bytes sent.
func (s *Stats) addSent(count int) {
	if s != nil {
		s.sentBytes.Add(uint64(count))
		s.sentPackets.Add(1)
	}
}

// addRecv counts a packet of count bytes received.
func (s *Stats) addRecv(count int) {
	if s != nil {
		s.recvBytes.Add(uint64(count))
		s.recvPackets.Add(1)
	}
}

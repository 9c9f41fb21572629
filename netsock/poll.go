//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Readiness poll.
//

package netsock

import (
	"slices"
	"time"

	"github.com/rbmk-project/dualstack/netaddr"
	"github.com/rbmk-project/dualstack/sysnet"
)

// tunnelPollSlice bounds each native poll when a tunnel is also active.
const tunnelPollSlice = 10 * time.Millisecond

// WaitReadable waits up to timeout for any active descriptor to become
// readable. A negative timeout waits forever and a zero timeout returns
// immediately. A socket without active descriptors returns false at once.
func (s *Socket) WaitReadable(timeout time.Duration) bool {
	handles := s.rawHandles()
	switch {
	case len(handles) <= 0 && s.tunnel == nil:
		return false
	case s.tunnel != nil && s.tunnel.Pending():
		return true
	case len(handles) <= 0:
		return s.waitTunnel(timeout)
	case s.tunnel == nil:
		return s.poll(handles, timeout)
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		slice := tunnelPollSlice
		switch {
		case timeout == 0:
			slice = 0
		case timeout > 0:
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return false
			}
			slice = min(slice, remaining)
		}
		if s.poll(handles, slice) || s.tunnel.Pending() {
			return true
		}
		if timeout == 0 {
			return false
		}
	}
}

// poll waits for any of the native descriptors to become readable.
func (s *Socket) poll(handles []sysnet.Handle, timeout time.Duration) bool {
	ready, err := s.nx.platform().Poll(handles, timeout)
	if err != nil {
		families := s.mask &^ netaddr.TypeTunnel
		s.nx.emitWarning(s.ctx, "pollFailed", families, newSysError("poll", families, err))
		return false
	}
	return slices.Contains(ready, true)
}

// waitTunnel waits for the tunnel to queue a datagram.
func (s *Socket) waitTunnel(timeout time.Duration) bool {
	if timeout == 0 {
		return s.tunnel.Pending()
	}
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	for {
		select {
		case <-s.tunnel.Notify():
			if s.tunnel.Pending() {
				return true
			}
		case <-expired:
			return s.tunnel.Pending()
		}
	}
}

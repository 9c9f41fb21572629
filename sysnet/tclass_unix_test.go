//go:build unix

// SPDX-License-Identifier: GPL-3.0-or-later

package sysnet

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrafficClassOption(t *testing.T) {
	p := Default()
	h, err := p.Socket(FamilyInet6, KindDatagram)
	if err != nil {
		t.Skip("IPv6 sockets not available:", err)
	}
	defer p.Close(h)

	err = p.SetOption(h, OptTrafficClass, 0x10)
	if haveIPv6TrafficClass {
		assert.NoError(t, err)
	} else {
		assert.ErrorIs(t, err, ErrOptionUnsupported)
	}
}

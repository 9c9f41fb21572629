// SPDX-License-Identifier: GPL-3.0-or-later

package netsock

import (
	"errors"
	"fmt"

	"github.com/rbmk-project/dualstack/errclass"
	"github.com/rbmk-project/dualstack/netaddr"
)

var (
	// ErrProtocolUnavailable indicates that the socket has no
	// active descriptor for the requested family.
	ErrProtocolUnavailable = errors.New("protocol unavailable")

	// ErrSocketCreateFailed indicates that the operating system
	// refused to create a socket for a family.
	ErrSocketCreateFailed = errors.New("socket creation failed")

	// ErrBindFailed indicates that a socket could not be bound.
	ErrBindFailed = errors.New("bind failed")

	// ErrWouldBlock indicates that a non-blocking operation would block.
	ErrWouldBlock = errors.New("operation would block")

	// ErrInProgress indicates that a non-blocking connect is in progress.
	ErrInProgress = errors.New("operation in progress")
)

// SysError is a failure of a native socket operation.
type SysError struct {
	// Op is the failed operation (e.g., "bind").
	Op string

	// Family is the family of the descriptor.
	Family netaddr.Type

	// Kind is the optional sentinel describing the failure
	// (e.g., [ErrBindFailed]).
	Kind error

	// Err is the underlying native error.
	Err error
}

var _ error = &SysError{}

// Error implements error.
func (e *SysError) Error() string {
	if e.Kind != nil {
		return fmt.Sprintf("%s %s: %s: %s", e.Op, familyName(e.Family), e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Op, familyName(e.Family), e.Err)
}

// Unwrap allows [errors.Is] and [errors.As] to match
// both the Kind sentinel and the native error.
func (e *SysError) Unwrap() []error {
	if e.Kind != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Err}
}

// newSysError wraps a native error, marking would-block failures.
func newSysError(op string, family netaddr.Type, err error) *SysError {
	var kind error
	if !errors.Is(err, ErrWouldBlock) && errclass.IsWouldBlock(err) {
		kind = ErrWouldBlock
	}
	return &SysError{Op: op, Family: family, Kind: kind, Err: err}
}

// errUnavailable returns [ErrProtocolUnavailable] for the given family.
func errUnavailable(family netaddr.Type) error {
	return fmt.Errorf("%w: %s", ErrProtocolUnavailable, familyName(family))
}

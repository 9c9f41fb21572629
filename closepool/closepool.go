// SPDX-License-Identifier: GPL-3.0-or-later

// Package closepool collects the resources owned by a socket
// and releases them in a single operation.
package closepool

import (
	"errors"
	"io"
	"slices"
	"sync"
)

// CloserFunc adapts a function to [io.Closer].
type CloserFunc func() error

var _ io.Closer = CloserFunc(nil)

// Close implements [io.Closer].
func (fx CloserFunc) Close() error {
	return fx()
}

// Pool collects a set of [io.Closer] to release together.
//
// The zero value is ready to use.
type Pool struct {
	// handles contains the [io.Closer] to close.
	handles []io.Closer

	// mu provides mutual exclusion.
	mu sync.Mutex
}

// Add adds a given [io.Closer] to the pool.
func (p *Pool) Add(conn io.Closer) {
	p.mu.Lock()
	p.handles = append(p.handles, conn)
	p.mu.Unlock()
}

// AddFunc adds a close function to the pool.
func (p *Pool) AddFunc(fx func() error) {
	p.Add(CloserFunc(fx))
}

// Len returns the number of resources still owned by the pool.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.handles)
}

// Close releases all the resources in the pool iterating in backward
// order, so that a tunnel registered after the descriptors it shares
// a socket with is released first. The pool is empty afterwards and
// calling Close again is a no-op. The returned error is the join of
// all the errors that occurred when releasing resources.
func (p *Pool) Close() error {
	// Lock and copy the [io.Closer] to close.
	p.mu.Lock()
	conns := p.handles
	p.handles = nil
	p.mu.Unlock()

	// Close all the [io.Closer].
	var errv []error
	for _, conn := range slices.Backward(conns) {
		if err := conn.Close(); err != nil {
			errv = append(errv, err)
		}
	}
	return errors.Join(errv...)
}

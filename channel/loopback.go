/*
Copyright (c) VITA-49 Agent Contributors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package channel

import (
	"errors"
	"sync"
)

// ErrClosed is returned by Enqueue/TryRead once the channel has been closed.
var ErrClosed = errors.New("channel: closed")

// Loopback is an in-process, buffered Channel. A NewLoopbackPair gives the
// manager and a worker goroutine a private pipe standing in for the forked
// child's pipe pair in the original daemon. It is also the transport used by
// manager/worker unit tests.
type Loopback struct {
	mu       sync.Mutex
	inbox    [][]byte
	ready    chan struct{}
	closed   bool
	peer     *Loopback // Enqueue appends directly into the peer's inbox
}

// NewLoopbackPair returns two connected Loopback channels: writes to one
// appear as reads on the other.
func NewLoopbackPair() (a, b *Loopback) {
	a = &Loopback{ready: make(chan struct{}, 1)}
	b = &Loopback{ready: make(chan struct{}, 1)}
	a.peer, b.peer = b, a
	return a, b
}

func (l *Loopback) deliver(msg []byte) {
	l.mu.Lock()
	l.inbox = append(l.inbox, msg)
	l.mu.Unlock()
	select {
	case l.ready <- struct{}{}:
	default:
	}
}

// Enqueue appends a copy of msg to the peer's inbox before returning;
// Loopback has no real network so FlushWrites is a no-op.
func (l *Loopback) Enqueue(msg []byte) error {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return ErrClosed
	}
	cp := make([]byte, len(msg))
	copy(cp, msg)
	l.peer.deliver(cp)
	return nil
}

// TryRead returns the oldest buffered message, if any.
func (l *Loopback) TryRead() ([]byte, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.inbox) == 0 {
		if l.closed {
			return nil, false, ErrClosed
		}
		return nil, false, nil
	}
	msg := l.inbox[0]
	l.inbox = l.inbox[1:]
	return msg, true, nil
}

// Readiness returns the signal channel woken on every delivered message.
func (l *Loopback) Readiness() <-chan struct{} { return l.ready }

// FlushWrites is a no-op: Loopback delivers synchronously on Enqueue.
func (l *Loopback) FlushWrites() error { return nil }

// Close marks the channel closed; further Enqueue/TryRead calls fail once the
// inbox has drained.
func (l *Loopback) Close() error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	select {
	case l.ready <- struct{}{}:
	default:
	}
	return nil
}

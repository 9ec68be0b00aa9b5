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

// Package channel provides the transport abstraction the manager and worker
// poll loops talk over: a queued, byte-message pipe with a readiness signal
// that plugs into the expect engine's poll tick. Two
// implementations are provided: Unix (a real net.UnixConn, the control-plane
// wire transport) and Loopback (an in-process pair used between manager and
// worker, and in tests).
package channel

import "context"

// Channel is the minimal interface the dispatcher, expect engine, and worker
// loop require: enqueue a framed message for later flush, try a non-blocking
// read, and learn when a read or flush is ready via Readiness. Grounded on the
// teacher's poll-then-act style seen throughout ptp/ptp4u/server (the UDP
// server's read loop) generalized to a message-queue abstraction matching the
// C original's per-fd send/receive queues.
type Channel interface {
	// Enqueue buffers a message for transmission; it does not block on the
	// network. FlushWrites drains the queue.
	Enqueue(msg []byte) error
	// TryRead returns the next fully framed message without blocking, or
	// (nil, false, nil) if none is ready.
	TryRead() (msg []byte, ok bool, err error)
	// Readiness returns a channel that is sent a value whenever a read or
	// flush might make progress, so a poll loop can select on it instead of
	// spinning.
	Readiness() <-chan struct{}
	// FlushWrites attempts to write all queued messages; partial writes are
	// retried on the next call.
	FlushWrites() error
	// Close releases the underlying transport.
	Close() error
}

// RunUntilClosed drains a Channel's readiness signal until ctx is canceled,
// invoking onReadable each time a message might be available. This is the
// shape the expect engine and the worker's main loop both build on.
func RunUntilClosed(ctx context.Context, ch Channel, onReadable func()) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-ch.Readiness():
			onReadable()
		}
	}
}

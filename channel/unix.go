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
	"encoding/binary"
	"net"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// Unix is a Channel backed by a connected net.UnixConn (SOCK_SEQPACKET or
// SOCK_STREAM), used for the real southbound/northbound control-client
// sockets. Messages are framed with a 4-byte big-endian length prefix so
// SOCK_STREAM sockets can be used as well as SOCK_SEQPACKET.
type Unix struct {
	conn  *net.UnixConn
	ready chan struct{}

	mu     sync.Mutex
	writeQ [][]byte
	inbox  [][]byte
}

// NewUnix wraps an already-connected net.UnixConn. Grounded on ptp/ptp4u's
// socket-tuning helpers, the send and receive buffer sizes are raised via
// golang.org/x/sys/unix so a burst of paginated fragments doesn't stall.
func NewUnix(conn *net.UnixConn) (*Unix, error) {
	if raw, err := conn.SyscallConn(); err == nil {
		_ = raw.Control(func(fd uintptr) {
			_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF, 1<<20)
			_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, 1<<20)
		})
	}
	u := &Unix{conn: conn, ready: make(chan struct{}, 1)}
	go u.readLoop()
	return u, nil
}

func (u *Unix) readLoop() {
	hdr := make([]byte, 4)
	for {
		if _, err := readFull(u.conn, hdr); err != nil {
			close(u.ready)
			return
		}
		n := binary.BigEndian.Uint32(hdr)
		body := make([]byte, n)
		if _, err := readFull(u.conn, body); err != nil {
			close(u.ready)
			return
		}
		u.pushInbox(body)
	}
}

func (u *Unix) pushInbox(msg []byte) {
	u.mu.Lock()
	u.inbox = append(u.inbox, msg)
	u.mu.Unlock()
	select {
	case u.ready <- struct{}{}:
	default:
	}
}

func readFull(conn *net.UnixConn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// Enqueue buffers msg, length-prefixed, for the next FlushWrites. The 4-byte
// length prefix here is a transport-level framing detail, independent of
// §4.4's packet_size_words: that field is part of msg itself (the packet's
// own header), already a word count of the encoded packet, so this prefix
// only tells the reader how many raw bytes to buffer before handing msg to
// protocol.DecodePacket.
func (u *Unix) Enqueue(msg []byte) error {
	framed := make([]byte, 4+len(msg))
	binary.BigEndian.PutUint32(framed[0:4], uint32(len(msg)))
	copy(framed[4:], msg)

	u.mu.Lock()
	u.writeQ = append(u.writeQ, framed)
	u.mu.Unlock()
	return nil
}

// TryRead returns the next framed message already read off the socket, if any.
func (u *Unix) TryRead() ([]byte, bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.inbox) == 0 {
		return nil, false, nil
	}
	msg := u.inbox[0]
	u.inbox = u.inbox[1:]
	return msg, true, nil
}

// FlushWrites writes every queued message, applying a short deadline so a
// stalled peer cannot block the poll loop indefinitely.
func (u *Unix) FlushWrites() error {
	u.mu.Lock()
	pending := u.writeQ
	u.writeQ = nil
	u.mu.Unlock()

	_ = u.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	for i, msg := range pending {
		if _, err := u.conn.Write(msg); err != nil {
			u.mu.Lock()
			u.writeQ = append(append([][]byte{}, pending[i:]...), u.writeQ...)
			u.mu.Unlock()
			return err
		}
	}
	return nil
}

// Readiness signals whenever a new message has been read off the socket; it
// is closed once the peer disconnects or a socket read fails.
func (u *Unix) Readiness() <-chan struct{} { return u.ready }

// Close closes the underlying connection.
func (u *Unix) Close() error { return u.conn.Close() }

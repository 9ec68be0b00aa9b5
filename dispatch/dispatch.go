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

// Package dispatch implements the daemon's southbound (tool → daemon) and
// northbound (worker → tool) message routers.
package dispatch

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/sbtech/vita49-agent/manager"
	"github.com/sbtech/vita49-agent/protocol"
)

// Southbound parses a raw message received from a tool and routes it: Control
// packets go straight to the manager's local handler; Discovery/Enumeration/
// Access always go to the manager regardless of any SID; Release goes to the
// manager AND (if a worker is live for that SID) the worker; all other
// Command verbs and Context packets are routed to the worker owning the
// packet's Stream ID, dropped with a log line if unmatched.
func Southbound(ctx context.Context, d *manager.Daemon, from *manager.ControlClient, raw []byte, log *logrus.Entry) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	if protocol.IsControlPacket(raw) {
		ctrl, err := protocol.ParseControl(raw)
		if err != nil {
			log.WithError(err).Warn("dropping malformed control packet")
			return
		}
		resp := d.HandleControl(ctrl)
		if err := enqueueAndFlush(from, resp.Format()); err != nil {
			log.WithError(err).Warn("failed to reply to control packet")
		}
		return
	}

	pkt, err := protocol.DecodePacket(raw)
	if err != nil {
		log.WithError(err).Warn("dropping malformed packet")
		return
	}

	switch p := pkt.(type) {
	case *protocol.CommandPacket:
		dispatchCommand(ctx, d, from, p, log)
	case *protocol.ContextPacket:
		forwardToWorker(d, p.StreamID, raw, log)
	}
}

func dispatchCommand(ctx context.Context, d *manager.Daemon, from *manager.ControlClient, req *protocol.CommandPacket, log *logrus.Entry) {
	switch req.Request {
	case protocol.ReqDiscovery:
		reply(from, d.HandleDiscovery(req), log)
	case protocol.ReqEnumeration:
		reply(from, d.HandleEnumeration(req), log)
	case protocol.ReqAccess:
		reply(from, d.HandleAccess(ctx, req, from), log)
	case protocol.ReqRelease:
		reply(from, d.HandleRelease(req), log)
	default:
		forwardToWorker(d, req.StreamID, nil, log, req)
	}
}

// forwardToWorker looks up the worker owning sid and enqueues raw (or, if raw
// is nil, a freshly-marshaled pkt) onto its channel. Unmatched SIDs are
// dropped with a warning.
func forwardToWorker(d *manager.Daemon, sid uint32, raw []byte, log *logrus.Entry, pkt ...protocol.Packet) {
	ch, ok := d.WorkerChannel(sid)
	if !ok {
		log.WithField("sid", sid).Warn("dropping packet for unmatched stream id")
		return
	}
	if raw == nil {
		if len(pkt) == 0 {
			return
		}
		var err error
		raw, err = protocol.Format(pkt[0])
		if err != nil {
			log.WithError(err).Warn("failed to re-marshal packet for worker forward")
			return
		}
	}
	if err := ch.Enqueue(raw); err != nil {
		log.WithError(err).Warn("failed to enqueue to worker")
		return
	}
	_ = ch.FlushWrites()
}

func reply(to *manager.ControlClient, resp *protocol.CommandPacket, log *logrus.Entry) {
	buf, err := protocol.Format(resp)
	if err != nil {
		log.WithError(err).Warn("failed to marshal response")
		return
	}
	if err := enqueueAndFlush(to, buf); err != nil {
		log.WithError(err).Warn("failed to send response")
	}
}

func enqueueAndFlush(to *manager.ControlClient, buf []byte) error {
	if to == nil || to.Ch == nil {
		return nil
	}
	if err := to.Ch.Enqueue(buf); err != nil {
		return err
	}
	return to.Ch.FlushWrites()
}

// Northbound delivers a worker-originated message to its destination: unicast
// to the worker's owning ControlClient when one is recorded, or broadcast to
// every connected client otherwise.
func Northbound(d *manager.Daemon, msg []byte, dest *manager.ControlClient, all []*manager.ControlClient, log *logrus.Entry) {
	if dest != nil {
		if err := enqueueAndFlush(dest, msg); err != nil {
			log.WithError(err).Warn("failed to unicast northbound message")
		}
		return
	}
	for _, c := range all {
		if err := enqueueAndFlush(c, msg); err != nil {
			log.WithError(err).Warn("failed to broadcast northbound message")
		}
	}
}

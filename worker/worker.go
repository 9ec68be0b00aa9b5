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

// Package worker implements the per-Stream-ID state machine: Open, Configure,
// Start, Stop, Close, Release, and Timestamp-Control for one accessed
// resource. A Worker runs as its own goroutine reading off a channel.Channel,
// standing in for the forked child process of the original daemon; nothing
// besides that channel is shared with the manager.
package worker

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sbtech/vita49-agent/channel"
	"github.com/sbtech/vita49-agent/protocol"
	"github.com/sbtech/vita49-agent/resource"
)

// State is one position in the worker lifecycle.
type State uint8

// Worker lifecycle states, in their usual order. Handlers check only their own
// preconditions, so Close and Release are accepted from any state.
const (
	StateAllocated State = iota
	StateOpen
	StateArmed
	StateRunning
	StateStopped
	StateClosed
	StateReleased
)

func (s State) String() string {
	switch s {
	case StateAllocated:
		return "allocated"
	case StateOpen:
		return "open"
	case StateArmed:
		return "armed"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateClosed:
		return "closed"
	case StateReleased:
		return "released"
	default:
		return "unknown"
	}
}

// Worker owns one assigned Stream ID bound to one resource.Descriptor for the
// lifetime of an Access.
type Worker struct {
	SID        uint32
	ClientID   uuid.UUID
	Resource   *resource.Descriptor
	Direction  resource.Direction
	State      State
	PacketSize uint32 // bytes, set by Start

	ch  channel.Channel
	log *logrus.Entry

	// accessBits are the resource's access bits claimed at Open and released
	// at Close; nonzero means claimed.
	accessBits uint8

	done chan struct{}
}

// New allocates a Worker bound to res for client, in StateAllocated. The
// caller is responsible for wiring ch (typically one half of a
// channel.NewLoopbackPair) and for starting Run in its own goroutine.
func New(sid uint32, client uuid.UUID, res *resource.Descriptor, ch channel.Channel, log *logrus.Entry) *Worker {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Worker{
		SID:      sid,
		ClientID: client,
		Resource: res,
		ch:       ch,
		log:      log.WithField("sid", sid),
		done:     make(chan struct{}),
	}
}

// Done returns a channel closed once Run has returned, so a caller doing a
// graceful shutdown can wait for the worker to drain without blocking
// indefinitely on it.
func (w *Worker) Done() <-chan struct{} { return w.done }

// Run pumps w's channel until ctx is canceled or the channel closes,
// dispatching each received Command packet to Handle and enqueueing its
// response. This is the worker's entire "process" loop.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)
	defer func() {
		if r := recover(); r != nil {
			w.log.WithField("panic", r).Error("worker goroutine terminated")
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.ch.Readiness():
		}
		for {
			raw, ok, err := w.ch.TryRead()
			if err != nil {
				w.log.WithError(err).Debug("worker channel closed")
				return
			}
			if !ok {
				break
			}
			pkt, err := protocol.DecodePacket(raw)
			if err != nil {
				w.log.WithError(err).Warn("dropping malformed packet")
				continue
			}
			switch p := pkt.(type) {
			case *protocol.CommandPacket:
				resp := w.Handle(p)
				if resp != nil {
					if err := w.reply(resp); err != nil {
						w.log.WithError(err).Warn("failed to enqueue response")
					}
				}
			case *protocol.ContextPacket:
				// Context reports are accepted and currently only logged;
				// no state transition results.
				w.log.WithField("stream_id", p.StreamID).Debug("context report received")
			}
		}
	}
}

func (w *Worker) reply(resp *protocol.CommandPacket) error {
	buf, err := protocol.Format(resp)
	if err != nil {
		return err
	}
	if err := w.ch.Enqueue(buf); err != nil {
		return err
	}
	return w.ch.FlushWrites()
}

// response builds a fresh Result-role CommandPacket for req; never reuse a
// static response value across calls, since ClientID/StreamID echo the
// request.
func response(req *protocol.CommandPacket, result protocol.Result) *protocol.CommandPacket {
	resp := &protocol.CommandPacket{
		Role:    protocol.RoleResult,
		Request: req.Request,
		Result:  result,
	}
	resp.StreamID = req.StreamID
	if req.ClientID != nil {
		cid := *req.ClientID
		resp.ClientID = &cid
	}
	return resp
}

// Handle dispatches a single Command request to the verb-specific handler and
// returns the Result-role response to send back.
func (w *Worker) Handle(req *protocol.CommandPacket) *protocol.CommandPacket {
	switch req.Request {
	case protocol.ReqOpen:
		return w.handleOpen(req)
	case protocol.ReqConfigure:
		return w.handleConfigure(req)
	case protocol.ReqTimestampControl:
		return w.handleTimestampControl(req)
	case protocol.ReqStart:
		return w.handleStart(req)
	case protocol.ReqStop:
		return w.handleStop(req)
	case protocol.ReqClose:
		return w.handleClose(req)
	case protocol.ReqRelease:
		return w.handleRelease(req)
	default:
		return response(req, protocol.ResUnspecified)
	}
}

// handleOpen claims the resource's access bits and advances to StateOpen. Fails with AccessDenied if the bits are already claimed.
func (w *Worker) handleOpen(req *protocol.CommandPacket) *protocol.CommandPacket {
	if w.accessBits != 0 {
		return response(req, protocol.ResAccessDenied)
	}
	w.accessBits = w.Resource.AccessBits
	if w.accessBits == 0 {
		w.accessBits = 1 // default claim marker when the descriptor carries none
	}
	w.State = StateOpen
	return response(req, protocol.ResSuccess)
}

// handleConfigure accepts Configure requests only when TSI=None,
// TSF=SampleCount; anything else is InvalidArg.
func (w *Worker) handleConfigure(req *protocol.CommandPacket) *protocol.CommandPacket {
	if w.State != StateOpen && w.State != StateArmed {
		return response(req, protocol.ResInvalidArg)
	}
	if req.TSI != protocol.TSINone || req.TSF != protocol.TSFSampleCount {
		return response(req, protocol.ResInvalidArg)
	}
	w.State = StateArmed
	return response(req, protocol.ResSuccess)
}

// handleTimestampControl shares Configure's TSI/TSF acceptance rule.
func (w *Worker) handleTimestampControl(req *protocol.CommandPacket) *protocol.CommandPacket {
	if req.TSI != protocol.TSINone || req.TSF != protocol.TSFSampleCount {
		return response(req, protocol.ResInvalidArg)
	}
	return response(req, protocol.ResSuccess)
}

// handleStart requires a prior Configure (StateArmed) and a known packet size
// before arming the trigger and moving to StateRunning.
func (w *Worker) handleStart(req *protocol.CommandPacket) *protocol.CommandPacket {
	if w.State != StateArmed {
		return response(req, protocol.ResInvalidArg)
	}
	if w.Resource.MaxPacketBytes == 0 {
		return response(req, protocol.ResInvalidArg)
	}
	w.PacketSize = uint32(w.Resource.MaxPacketBytes)
	w.State = StateRunning
	return response(req, protocol.ResSuccess)
}

// handleStop requires StateRunning and TimestampInterpretation=Relative, then
// moves to StateStopped at once. TSFractional is not examined: no sample or
// packet count is derived from it.
func (w *Worker) handleStop(req *protocol.CommandPacket) *protocol.CommandPacket {
	if w.State != StateRunning {
		return response(req, protocol.ResInvalidArg)
	}
	if req.TimestampInterpretation == nil || *req.TimestampInterpretation != protocol.TSRelative {
		return response(req, protocol.ResInvalidArg)
	}
	w.State = StateStopped
	return response(req, protocol.ResSuccess)
}

// handleClose resets and releases the claimed pipeline bits.
func (w *Worker) handleClose(req *protocol.CommandPacket) *protocol.CommandPacket {
	w.accessBits = 0
	w.State = StateClosed
	return response(req, protocol.ResSuccess)
}

// handleRelease is normally driven by the manager, which routes a Release to
// both itself and the worker and cancels the worker's goroutine right after
// enqueueing it, so this handler may not run.
func (w *Worker) handleRelease(req *protocol.CommandPacket) *protocol.CommandPacket {
	w.State = StateReleased
	return response(req, protocol.ResSuccess)
}

// Validate returns an error if w carries the manager's reserved SID 0; it
// checks nothing else, never blocks and has no side effects.
func (w *Worker) Validate() error {
	if w.SID == 0 {
		return fmt.Errorf("worker: SID 0 is reserved for the manager")
	}
	return nil
}

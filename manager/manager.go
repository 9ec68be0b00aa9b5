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

// Package manager implements the daemon-side Discovery/Enumeration/Access/
// Release handlers and owns the worker set, replacing the original's
// current-resource-list/current-worker-list/current-channel globals with an
// explicit Daemon context value.
package manager

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/sbtech/vita49-agent/channel"
	"github.com/sbtech/vita49-agent/protocol"
	"github.com/sbtech/vita49-agent/resource"
	"github.com/sbtech/vita49-agent/worker"
)

// ControlClient is a connected tool: its channel, the CID recorded when one
// of its Access requests succeeds, and bookkeeping for which SID (if any) it
// owns. Northbound delivery does not consult CID; broadcasts reach every
// connected client.
type ControlClient struct {
	Ch  channel.Channel
	CID *uuid.UUID
	SID uint32 // 0 until an Access succeeds for this client
}

// workerEntry pairs a worker.Worker with the cancel func for its goroutine and
// the ControlClient whose Access created it; the worker's replies are
// forwarded to that client.
type workerEntry struct {
	// rid is recorded at reservation time, before w exists, so a concurrent
	// Access for the same resource is rejected by the in-use scan even while
	// this worker is still being constructed (spec.md §4.6's atomicity rule).
	rid    uuid.UUID
	w      *worker.Worker
	cancel context.CancelFunc
	owner  *ControlClient
	// local is the manager-held end of the loopback pair connecting the
	// daemon to this worker's goroutine; the dispatcher forwards
	// Configure/Open/Start/Stop/Close/TimestampControl and Context packets
	// through it, and a forwarding goroutine relays what the worker writes
	// back on it to owner.
	local channel.Channel
}

// Daemon is the process-wide manager context: the resource table (read-only
// after load), the worker set keyed by SID, the connected control-client set,
// and the monotonic SID allocator. It replaces the original's global state
// (spec.md §9).
type Daemon struct {
	mu sync.Mutex

	Resources *resource.Table
	workers   map[uint32]*workerEntry
	clients   map[*ControlClient]struct{}
	nextSID   uint32

	log *logrus.Entry

	metricAccess     prometheus.Counter
	metricDenied     prometheus.Counter
	metricActive     prometheus.Gauge
}

// New returns a Daemon bound to resources, with SID allocation starting at 1
// (0 is reserved for the manager itself, spec.md §3).
func New(resources *resource.Table, log *logrus.Entry) *Daemon {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Daemon{
		Resources: resources,
		workers:   map[uint32]*workerEntry{},
		clients:   map[*ControlClient]struct{}{},
		nextSID:   1,
		log:       log,
		metricAccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vita49_access_success_total",
			Help: "Number of successful Access requests.",
		}),
		metricDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vita49_access_denied_total",
			Help: "Number of Access requests rejected with AccessDenied.",
		}),
		metricActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vita49_workers_active",
			Help: "Number of currently allocated workers.",
		}),
	}
}

// Collectors returns the Daemon's prometheus metrics for registration by the
// caller (cmd/v49d wires these into an HTTP handler).
func (d *Daemon) Collectors() []prometheus.Collector {
	return []prometheus.Collector{d.metricAccess, d.metricDenied, d.metricActive}
}

// AddClient registers a newly connected tool.
func (d *Daemon) AddClient(c *ControlClient) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clients[c] = struct{}{}
}

// RemoveClient drops a disconnected tool from the broadcast set.
func (d *Daemon) RemoveClient(c *ControlClient) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.clients, c)
}

// WorkerSIDs returns the SIDs of every currently allocated worker, in no
// particular order; used by the local Control List verb.
func (d *Daemon) WorkerSIDs() []uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]uint32, 0, len(d.workers))
	for sid := range d.workers {
		out = append(out, sid)
	}
	return out
}

// HandleDiscovery answers a Discovery request with the UUIDs of every
// resource in the table, or the subset matching an optional filter RID list
// (spec.md §4.6, Open Question (a): a filter list is treated as an intersection
// against the table; an empty result after filtering is still Success).
func (d *Daemon) HandleDiscovery(req *protocol.CommandPacket) *protocol.CommandPacket {
	resp := respond(req, protocol.ResSuccess)

	var ids []uuid.UUID
	if req.ResourceIDList != nil {
		for _, want := range req.ResourceIDList.Items {
			if _, ok := d.Resources.ByUUID(want); ok {
				ids = append(ids, want)
			}
		}
	} else {
		for _, desc := range d.Resources.All() {
			ids = append(ids, desc.UUID)
		}
	}
	resp.ResourceIDList = &protocol.UUIDList{Items: ids}
	return resp
}

// HandleEnumeration answers with ResourceInfoList entries matching the request's
// RID list (by UUID, falling back to exact name match per spec.md §4.6), or
// every entry when the list is absent.
func (d *Daemon) HandleEnumeration(req *protocol.CommandPacket) *protocol.CommandPacket {
	resp := respond(req, protocol.ResSuccess)

	var matches []*resource.Descriptor
	if req.ResourceIDList != nil {
		for _, want := range req.ResourceIDList.Items {
			if desc, ok := d.Resources.ByUUID(want); ok {
				matches = append(matches, desc)
				continue
			}
			if desc, ok := d.Resources.ByName(want.String()); ok {
				matches = append(matches, desc)
			}
		}
	} else {
		matches = d.Resources.All()
	}

	items := make([]protocol.ResourceInfo, len(matches))
	for i, desc := range matches {
		items[i] = toWireResourceInfo(desc)
	}
	resp.ResourceInfoList = &protocol.ResourceInfoListField{Items: items}
	return resp
}

func toWireResourceInfo(d *resource.Descriptor) protocol.ResourceInfo {
	return protocol.ResourceInfo{
		UUID:           d.UUID,
		Name:           d.Name,
		TXChannels:     d.TXChannels,
		RXChannels:     d.RXChannels,
		RateQ8_8:       d.RateQ8_8,
		MinPacketBytes: d.MinPacketBytes,
		MaxPacketBytes: d.MaxPacketBytes,
	}
}

// HandleAccess validates an Access request (must carry CID and a RID list of
// exactly one UUID), checks whether the resource is already held by another
// CID, and otherwise allocates a SID and spawns a worker goroutine bound to
// it. The in-use check and the reservation of the SID against rid happen
// under one held lock, so two concurrent Access requests for the same
// resource cannot both pass the check before either is visible to the other
// (spec.md §4.6's atomicity rule): the second caller always observes the
// first's reservation and is denied, even while the first's worker goroutine
// is still being constructed.
func (d *Daemon) HandleAccess(ctx context.Context, req *protocol.CommandPacket, from *ControlClient) *protocol.CommandPacket {
	if req.ClientID == nil || req.ResourceIDList == nil || len(req.ResourceIDList.Items) != 1 {
		return respond(req, protocol.ResInvalidArg)
	}
	rid := req.ResourceIDList.Items[0]
	desc, ok := d.Resources.ByUUID(rid)
	if !ok {
		return respond(req, protocol.ResNotFound)
	}

	d.mu.Lock()
	for _, entry := range d.workers {
		if entry.rid == rid {
			d.mu.Unlock()
			d.metricDenied.Inc()
			return respond(req, protocol.ResAccessDenied)
		}
	}
	sid := d.nextSID
	d.nextSID++
	d.workers[sid] = &workerEntry{rid: rid}
	d.mu.Unlock()

	local, remote := channel.NewLoopbackPair()
	wCtx, cancel := context.WithCancel(ctx)
	w := worker.New(sid, *req.ClientID, desc, remote, d.log)
	go w.Run(wCtx)
	// Forward the worker's replies northbound to the client holding the SID.
	go channel.RunUntilClosed(wCtx, local, func() {
		for {
			msg, ok, err := local.TryRead()
			if err != nil || !ok {
				return
			}
			if from != nil && from.Ch != nil {
				_ = from.Ch.Enqueue(msg)
				_ = from.Ch.FlushWrites()
			}
		}
	})

	d.mu.Lock()
	d.workers[sid] = &workerEntry{rid: rid, w: w, cancel: cancel, owner: from, local: local}
	active := len(d.workers)
	d.mu.Unlock()
	d.metricActive.Set(float64(active))
	d.metricAccess.Inc()

	if from != nil {
		from.SID = sid
		from.CID = req.ClientID
	}

	resp := respond(req, protocol.ResSuccess)
	resp.StreamIDAssignment = &sid
	return resp
}

// HandleRelease authorizes (requesting CID must match the worker's), tears
// the worker down, and frees its SID. Unknown SID yields NotFound.
func (d *Daemon) HandleRelease(req *protocol.CommandPacket) *protocol.CommandPacket {
	if req.StreamIDAssignment == nil {
		return respond(req, protocol.ResInvalidArg)
	}
	sid := *req.StreamIDAssignment

	d.mu.Lock()
	entry, ok := d.workers[sid]
	if !ok {
		d.mu.Unlock()
		return respond(req, protocol.ResNotFound)
	}
	if req.ClientID == nil || *req.ClientID != entry.w.ClientID {
		d.mu.Unlock()
		return respond(req, protocol.ResAccessDenied)
	}
	delete(d.workers, sid)
	d.mu.Unlock()

	// Deliver the Release to the worker itself (spec.md §4.5), then cancel
	// its goroutine without waiting; the worker may exit before it handles
	// the Release.
	if buf, err := protocol.Format(req); err == nil {
		_ = entry.local.Enqueue(buf)
		_ = entry.local.FlushWrites()
	}
	entry.cancel()
	d.metricActive.Set(float64(len(d.WorkerSIDs())))

	return respond(req, protocol.ResSuccess)
}

// HandleControl services the local Shutdown/Start/Stop/List verbs used by
// operations tooling (spec.md §4.6).
func (d *Daemon) HandleControl(c *protocol.ControlPacket) *protocol.ControlPacket {
	switch c.Verb {
	case protocol.CtrlList:
		return &protocol.ControlPacket{Verb: protocol.CtrlList, List: &protocol.ControlList{SIDs: d.WorkerSIDs()}}
	case protocol.CtrlStart, protocol.CtrlStop:
		if c.StartStop == nil {
			return &protocol.ControlPacket{Verb: c.Verb, StartStop: &protocol.ControlStartStop{Err: uint32(protocol.ResInvalidArg)}}
		}
		d.mu.Lock()
		_, ok := d.workers[c.StartStop.SID]
		d.mu.Unlock()
		if !ok {
			return &protocol.ControlPacket{Verb: c.Verb, StartStop: &protocol.ControlStartStop{SID: c.StartStop.SID, Err: uint32(protocol.ResNotFound)}}
		}
		return &protocol.ControlPacket{Verb: c.Verb, StartStop: &protocol.ControlStartStop{SID: c.StartStop.SID, Err: uint32(protocol.ResSuccess)}}
	case protocol.CtrlShutdown:
		d.Shutdown(0)
		return &protocol.ControlPacket{Verb: protocol.CtrlShutdown}
	default:
		return &protocol.ControlPacket{Verb: c.Verb}
	}
}

// Shutdown removes every worker from the set and cancels its goroutine. If
// grace is positive, it first waits up to that long for each worker's Run
// loop to return, waiting on all workers concurrently via errgroup, before
// canceling them. Shutdown closes no worker channel, and Run returns only on
// cancellation or a closed channel, so a worker still running at that point
// keeps the wait going for the full grace period.
func (d *Daemon) Shutdown(grace time.Duration) {
	d.mu.Lock()
	entries := make([]*workerEntry, 0, len(d.workers))
	for sid, entry := range d.workers {
		entries = append(entries, entry)
		delete(d.workers, sid)
	}
	d.mu.Unlock()

	if grace > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), grace)
		var g errgroup.Group
		for _, entry := range entries {
			entry := entry
			g.Go(func() error {
				select {
				case <-entry.w.Done():
				case <-ctx.Done():
				}
				return nil
			})
		}
		_ = g.Wait()
		cancel()
	}

	for _, entry := range entries {
		entry.cancel()
	}
}

func respond(req *protocol.CommandPacket, result protocol.Result) *protocol.CommandPacket {
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

// WorkerChannel returns the daemon-held loopback end for sid, so the
// dispatcher can forward Configure/Open/Start/Stop/Close/TimestampControl and
// Context packets to the right worker (spec.md §4.5). Returns false if sid is
// unknown.
func (d *Daemon) WorkerChannel(sid uint32) (channel.Channel, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	entry, ok := d.workers[sid]
	if !ok {
		return nil, false
	}
	return entry.local, true
}

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

package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/sbtech/vita49-agent/channel"
	"github.com/sbtech/vita49-agent/manager"
	"github.com/sbtech/vita49-agent/protocol"
	"github.com/sbtech/vita49-agent/resource"
)

func newTestDaemon() (*manager.Daemon, uuid.UUID) {
	rid := uuid.New()
	tbl := resource.NewTable()
	tbl.Add(&resource.Descriptor{UUID: rid, Name: "radio0", AccessBits: 1, MaxPacketBytes: 1024})
	return manager.New(tbl, nil), rid
}

// newTestClient wires a ControlClient the way the real daemon would: daemonEnd
// is handed to the dispatcher as from.Ch, toolEnd is what a simulated remote
// tool reads replies from (writes to one Loopback half deliver into the
// other's inbox, see channel.NewLoopbackPair).
func newTestClient() (client *manager.ControlClient, toolEnd channel.Channel) {
	toolEnd, daemonEnd := channel.NewLoopbackPair()
	return &manager.ControlClient{Ch: daemonEnd}, toolEnd
}

func recvWithin(t *testing.T, ch channel.Channel, d time.Duration) []byte {
	t.Helper()
	deadline := time.After(d)
	for {
		select {
		case <-ch.Readiness():
		case <-deadline:
			t.Fatal("timed out waiting for a message")
		}
		if msg, ok, err := ch.TryRead(); ok {
			require.NoError(t, err)
			return msg
		}
	}
}

func TestSouthboundAccessRoutesToManager(t *testing.T) {
	d, rid := newTestDaemon()
	from, toolEnd := newTestClient()

	cid := uuid.New()
	req := &protocol.CommandPacket{
		Role: protocol.RoleRequest, Request: protocol.ReqAccess,
		ClientID: &cid, ResourceIDList: &protocol.UUIDList{Items: []uuid.UUID{rid}},
	}
	raw, err := protocol.Format(req)
	require.NoError(t, err)

	Southbound(context.Background(), d, from, raw, nil)

	msg := recvWithin(t, toolEnd, time.Second)
	resp, err := protocol.DecodePacket(msg)
	require.NoError(t, err)
	cp := resp.(*protocol.CommandPacket)
	require.Equal(t, protocol.ResSuccess, cp.Result)
	require.NotNil(t, cp.StreamIDAssignment)
}

func TestSouthboundUnmatchedSIDIsDropped(t *testing.T) {
	d, _ := newTestDaemon()
	from, toolEnd := newTestClient()

	req := &protocol.CommandPacket{Role: protocol.RoleRequest, Request: protocol.ReqStart, Header: protocol.Header{StreamID: 42}}
	raw, err := protocol.Format(req)
	require.NoError(t, err)

	// should not panic and should not produce a reply on the tool side.
	Southbound(context.Background(), d, from, raw, nil)

	_, ok, _ := toolEnd.TryRead()
	require.False(t, ok)
}

func TestSouthboundControlPacketRoutesToManager(t *testing.T) {
	d, _ := newTestDaemon()
	from, toolEnd := newTestClient()

	Southbound(context.Background(), d, from, protocol.FormatList(nil), nil)

	msg := recvWithin(t, toolEnd, time.Second)
	ctrl, err := protocol.ParseControl(msg)
	require.NoError(t, err)
	require.Equal(t, protocol.CtrlList, ctrl.Verb)
	require.NotNil(t, ctrl.List)
}

func TestNorthboundUnicastVsBroadcast(t *testing.T) {
	a, aToolEnd := newTestClient()
	b, bToolEnd := newTestClient()

	Northbound(nil, []byte("hello"), a, []*manager.ControlClient{a, b}, nil)
	msg := recvWithin(t, aToolEnd, time.Second)
	require.Equal(t, "hello", string(msg))
	_, ok, _ := bToolEnd.TryRead()
	require.False(t, ok, "unicast destination must not reach other clients")

	Northbound(nil, []byte("world"), nil, []*manager.ControlClient{a, b}, nil)
	msg = recvWithin(t, aToolEnd, time.Second)
	require.Equal(t, "world", string(msg))
	msg = recvWithin(t, bToolEnd, time.Second)
	require.Equal(t, "world", string(msg))
}

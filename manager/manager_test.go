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

package manager

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/sbtech/vita49-agent/protocol"
	"github.com/sbtech/vita49-agent/resource"
)

func twoResourceTable() *resource.Table {
	tbl := resource.NewTable()
	tbl.Add(&resource.Descriptor{UUID: uuid.MustParse("4cb6f860-107e-42b3-a2bc-cda24cff1b73"), Name: "radio0"})
	tbl.Add(&resource.Descriptor{UUID: uuid.MustParse("f0b6a6de-9e3a-4a36-9c36-8f4a2f6e6d11"), Name: "radio1"})
	return tbl
}

// TestDiscoveryRoundTrip checks that Discovery echoes the client ID and
// returns every resource UUID in the table.
func TestDiscoveryRoundTrip(t *testing.T) {
	tbl := twoResourceTable()
	d := New(tbl, nil)

	cid := uuid.MustParse("4cb6f860-107e-42b3-a2bc-cda24cff1b73")
	req := &protocol.CommandPacket{Role: protocol.RoleRequest, Request: protocol.ReqDiscovery, ClientID: &cid}

	resp := d.HandleDiscovery(req)
	require.Equal(t, protocol.RoleResult, resp.Role)
	require.Equal(t, protocol.ReqDiscovery, resp.Request)
	require.Equal(t, protocol.ResSuccess, resp.Result)
	require.NotNil(t, resp.ClientID)
	require.Equal(t, cid, *resp.ClientID)
	require.NotNil(t, resp.ResourceIDList)
	want := []uuid.UUID{tbl.All()[0].UUID, tbl.All()[1].UUID}
	require.ElementsMatch(t, want, resp.ResourceIDList.Items)
}

// TestAccessThenDoubleAccess checks that a second client's Access to an
// already-claimed resource is rejected with AccessDenied.
func TestAccessThenDoubleAccess(t *testing.T) {
	tbl := twoResourceTable()
	d := New(tbl, nil)
	rid := tbl.All()[0].UUID

	c1 := uuid.New()
	access1 := &protocol.CommandPacket{
		Role: protocol.RoleRequest, Request: protocol.ReqAccess,
		ClientID: &c1, ResourceIDList: &protocol.UUIDList{Items: []uuid.UUID{rid}},
	}
	resp1 := d.HandleAccess(context.Background(), access1, nil)
	require.Equal(t, protocol.ResSuccess, resp1.Result)
	require.NotNil(t, resp1.StreamIDAssignment)
	require.Equal(t, uint32(1), *resp1.StreamIDAssignment)

	c2 := uuid.New()
	access2 := &protocol.CommandPacket{
		Role: protocol.RoleRequest, Request: protocol.ReqAccess,
		ClientID: &c2, ResourceIDList: &protocol.UUIDList{Items: []uuid.UUID{rid}},
	}
	resp2 := d.HandleAccess(context.Background(), access2, nil)
	require.Equal(t, protocol.ResAccessDenied, resp2.Result)
}

// TestReleaseThenReaccessGetsFreshSID checks that the SID freed by Release
// is never reused within the daemon's lifetime.
func TestReleaseThenReaccessGetsFreshSID(t *testing.T) {
	tbl := twoResourceTable()
	d := New(tbl, nil)
	rid := tbl.All()[0].UUID

	c1 := uuid.New()
	access1 := &protocol.CommandPacket{
		Role: protocol.RoleRequest, Request: protocol.ReqAccess,
		ClientID: &c1, ResourceIDList: &protocol.UUIDList{Items: []uuid.UUID{rid}},
	}
	resp1 := d.HandleAccess(context.Background(), access1, nil)
	sid1 := *resp1.StreamIDAssignment

	release := &protocol.CommandPacket{
		Role: protocol.RoleRequest, Request: protocol.ReqRelease,
		ClientID: &c1, StreamIDAssignment: &sid1,
	}
	relResp := d.HandleRelease(release)
	require.Equal(t, protocol.ResSuccess, relResp.Result)

	c2 := uuid.New()
	access2 := &protocol.CommandPacket{
		Role: protocol.RoleRequest, Request: protocol.ReqAccess,
		ClientID: &c2, ResourceIDList: &protocol.UUIDList{Items: []uuid.UUID{rid}},
	}
	resp2 := d.HandleAccess(context.Background(), access2, nil)
	require.Equal(t, protocol.ResSuccess, resp2.Result)
	require.Equal(t, uint32(2), *resp2.StreamIDAssignment, "freed SID must not be immediately reused")
}

func TestReleaseUnknownSIDIsNotFound(t *testing.T) {
	d := New(resource.NewTable(), nil)
	sid := uint32(99)
	release := &protocol.CommandPacket{Role: protocol.RoleRequest, Request: protocol.ReqRelease, StreamIDAssignment: &sid}
	resp := d.HandleRelease(release)
	require.Equal(t, protocol.ResNotFound, resp.Result)
}

func TestReleaseWrongClientIsAccessDenied(t *testing.T) {
	tbl := twoResourceTable()
	d := New(tbl, nil)
	rid := tbl.All()[0].UUID

	c1 := uuid.New()
	access := &protocol.CommandPacket{
		Role: protocol.RoleRequest, Request: protocol.ReqAccess,
		ClientID: &c1, ResourceIDList: &protocol.UUIDList{Items: []uuid.UUID{rid}},
	}
	resp := d.HandleAccess(context.Background(), access, nil)
	sid := *resp.StreamIDAssignment

	other := uuid.New()
	release := &protocol.CommandPacket{
		Role: protocol.RoleRequest, Request: protocol.ReqRelease,
		ClientID: &other, StreamIDAssignment: &sid,
	}
	relResp := d.HandleRelease(release)
	require.Equal(t, protocol.ResAccessDenied, relResp.Result)
}

func TestEnumerationWithoutListReturnsAll(t *testing.T) {
	tbl := twoResourceTable()
	d := New(tbl, nil)

	// A request with no RID list enumerates every resource in the table.
	req := &protocol.CommandPacket{Role: protocol.RoleRequest, Request: protocol.ReqEnumeration}
	resp := d.HandleEnumeration(req)
	require.NotNil(t, resp.ResourceInfoList)
	require.Len(t, resp.ResourceInfoList.Items, 2)
}

func TestControlListReportsActiveWorkers(t *testing.T) {
	tbl := twoResourceTable()
	d := New(tbl, nil)
	rid := tbl.All()[0].UUID
	cid := uuid.New()
	access := &protocol.CommandPacket{
		Role: protocol.RoleRequest, Request: protocol.ReqAccess,
		ClientID: &cid, ResourceIDList: &protocol.UUIDList{Items: []uuid.UUID{rid}},
	}
	d.HandleAccess(context.Background(), access, nil)

	resp := d.HandleControl(&protocol.ControlPacket{Verb: protocol.CtrlList})
	require.NotNil(t, resp.List)
	require.Equal(t, []uint32{1}, resp.List.SIDs)
}

// TestShutdownDrainsWorkersWithinGrace confirms Shutdown with a one-second
// grace period returns within the test's deadline and removes the worker
// from the set.
func TestShutdownDrainsWorkersWithinGrace(t *testing.T) {
	tbl := twoResourceTable()
	d := New(tbl, nil)
	rid := tbl.All()[0].UUID
	cid := uuid.New()
	access := &protocol.CommandPacket{
		Role: protocol.RoleRequest, Request: protocol.ReqAccess,
		ClientID: &cid, ResourceIDList: &protocol.UUIDList{Items: []uuid.UUID{rid}},
	}
	resp := d.HandleAccess(context.Background(), access, nil)
	require.Equal(t, protocol.ResSuccess, resp.Result)

	done := make(chan struct{})
	go func() {
		d.Shutdown(time.Second)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown did not return")
	}
	require.Empty(t, d.WorkerSIDs())
}

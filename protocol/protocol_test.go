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

package protocol

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandRoundTrip(t *testing.T) {
	cid := uuid.New()
	sid := uint32(7)
	req := &CommandPacket{
		Header: Header{
			StreamID: 0,
			TSI:      TSINone,
			TSF:      TSFNone,
		},
		Role:               RoleRequest,
		Request:            ReqAccess,
		Result:             ResSuccess,
		ClientID:           &cid,
		StreamIDAssignment: &sid,
	}

	buf, err := Format(req)
	require.NoError(t, err)
	assert.Equal(t, 0, len(buf)%4)

	got, err := DecodePacket(buf)
	require.NoError(t, err)
	cp, ok := got.(*CommandPacket)
	require.True(t, ok)

	assert.Equal(t, RoleRequest, cp.Role)
	assert.Equal(t, ReqAccess, cp.Request)
	require.NotNil(t, cp.ClientID)
	assert.Equal(t, cid, *cp.ClientID)
	require.NotNil(t, cp.StreamIDAssignment)
	assert.Equal(t, sid, *cp.StreamIDAssignment)
}

func TestCommandWithResourceIDList(t *testing.T) {
	u1 := uuid.New()
	u2 := uuid.New()
	req := &CommandPacket{
		Role:           RoleResult,
		Request:        ReqDiscovery,
		Result:         ResSuccess,
		ResourceIDList: &UUIDList{Items: []uuid.UUID{u1, u2}},
	}

	buf, err := Format(req)
	require.NoError(t, err)

	got, err := DecodePacket(buf)
	require.NoError(t, err)
	cp := got.(*CommandPacket)
	require.NotNil(t, cp.ResourceIDList)
	assert.Equal(t, []uuid.UUID{u1, u2}, cp.ResourceIDList.Items)
}

func TestCommandZeroLengthListStaysPresent(t *testing.T) {
	req := &CommandPacket{
		Role:           RoleResult,
		Request:        ReqDiscovery,
		Result:         ResSuccess,
		ResourceIDList: &UUIDList{Items: nil},
	}
	buf, err := Format(req)
	require.NoError(t, err)

	got, err := DecodePacket(buf)
	require.NoError(t, err)
	cp := got.(*CommandPacket)
	require.NotNil(t, cp.ResourceIDList, "indicator bit must remain set for zero-length list")
	assert.Len(t, cp.ResourceIDList.Items, 0)
}

func TestCommandBadClassID(t *testing.T) {
	req := &CommandPacket{
		Header:  Header{HasCID: true},
		Role:    RoleRequest,
		Request: ReqDiscovery,
	}
	buf, err := Format(req)
	require.NoError(t, err)

	// corrupt the OUI
	buf[8] ^= 0xFF

	_, err = DecodePacket(buf)
	require.Error(t, err)
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, CodeBadClassID, perr.Code)
}

func TestCommandUnknownRequestCode(t *testing.T) {
	req := &CommandPacket{Role: RoleRequest, Request: ReqTimestampControl}
	buf, err := Format(req)
	require.NoError(t, err)

	// bump the request field past the known range (bits 28..21 of word at offset header+0)
	off := (&Header{}).wireSize()
	buf[off] = 0xFF // role/request bits saturated
	buf[off+1] = 0xFF

	_, err = DecodePacket(buf)
	require.Error(t, err)
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, CodeCommandRange, perr.Code)
}

func TestContextRoundTrip(t *testing.T) {
	bw := int64(20_000_000)
	rate := uint64(61_440_000)
	temp := int16(25 << 6)
	ctx := &ContextPacket{
		Header: Header{StreamID: 3},
		ContextFields: ContextFields{
			Bandwidth:   &bw,
			SampleRate:  &rate,
			Temperature: &temp,
		},
	}

	buf, err := Format(ctx)
	require.NoError(t, err)

	got, err := DecodePacket(buf)
	require.NoError(t, err)
	cp := got.(*ContextPacket)
	require.NotNil(t, cp.Bandwidth)
	assert.Equal(t, bw, *cp.Bandwidth)
	require.NotNil(t, cp.SampleRate)
	assert.Equal(t, rate, *cp.SampleRate)
	assert.Nil(t, cp.RFReferenceFrequency)
}

func TestControlRoundTrip(t *testing.T) {
	buf := FormatStartStop(CtrlStop, 5, 0)
	require.True(t, IsControlPacket(buf))

	ctrl, err := ParseControl(buf)
	require.NoError(t, err)
	assert.Equal(t, CtrlStop, ctrl.Verb)
	require.NotNil(t, ctrl.StartStop)
	assert.Equal(t, uint32(5), ctrl.StartStop.SID)
}

func TestControlListRoundTrip(t *testing.T) {
	buf := FormatList([]uint32{1, 2, 3})
	ctrl, err := ParseControl(buf)
	require.NoError(t, err)
	require.NotNil(t, ctrl.List)
	assert.Equal(t, []uint32{1, 2, 3}, ctrl.List.SIDs)
}

func TestControlBadMagic(t *testing.T) {
	buf := make([]byte, 12)
	_, err := ParseControl(buf)
	require.Error(t, err)
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, CodeBadMagic, perr.Code)
}

func TestPaginationRoundTripWithFragmentGaps(t *testing.T) {
	items := make([]ResourceInfo, 200)
	for i := range items {
		items[i] = ResourceInfo{UUID: uuid.New(), Name: "res", TXChannels: 1, RXChannels: 1}
	}
	cid := uuid.New()
	req := &CommandPacket{
		Header:           Header{StreamID: 0},
		Role:             RoleResult,
		Request:          ReqEnumeration,
		Result:           ResSuccess,
		ClientID:         &cid,
		ResourceInfoList: &ResourceInfoListField{Items: items},
	}

	frags, err := FormatPaginated(req, 512)
	require.NoError(t, err)
	require.True(t, len(frags) >= 3, "expected multiple fragments, got %d", len(frags))

	var parsed []*CommandPacket
	for _, raw := range frags {
		p, err := DecodePacket(raw)
		require.NoError(t, err)
		parsed = append(parsed, p.(*CommandPacket))
	}

	for i, p := range parsed {
		isLast := i == len(parsed)-1
		assert.Equal(t, !isLast, p.Paging, "fragment %d paging flag", i)
		assert.Equal(t, uint8(i%16), p.PacketCount)
	}

	merged, err := Reassemble(parsed)
	require.NoError(t, err)
	require.NotNil(t, merged.ResourceInfoList)
	assert.Len(t, merged.ResourceInfoList.Items, 200)
	for i, ri := range merged.ResourceInfoList.Items {
		assert.Equal(t, items[i].UUID, ri.UUID)
	}
}

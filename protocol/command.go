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
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// Indicator bit positions for a Command packet, descending from bit 31. Bits 21..0
// are reserved and must be zero (spec.md §6).
const (
	cmdBitPaging             = 31
	cmdBitClientID           = 30
	cmdBitPriority           = 29
	cmdBitResourceIDList     = 28
	cmdBitResourceInfoList   = 27
	cmdBitStreamIDAssignment = 26
	cmdBitTSInterpretation   = 25
	cmdBitTimestampFormat    = 24
	cmdBitEventPeriod        = 23
	cmdBitContextIndicators  = 22
)

const uuidWireSize = 16

// ResourceInfo is the 48-byte wire form of a resource descriptor, carried inside a
// ResourceInfoList. Field order and sizes are fixed per spec.md §6: 16 UUID + 20
// name + 1 txch + 1 rxch + 4 rate + 2 min + 2 max = 46 bytes, padded to 48.
type ResourceInfo struct {
	UUID           uuid.UUID
	Name           string // truncated/padded to 20 bytes on the wire
	TXChannels     uint8
	RXChannels     uint8
	RateQ8_8       uint32
	MinPacketBytes uint16
	MaxPacketBytes uint16
}

const resourceInfoWireSize = 48
const resourceInfoNameSize = 20

func (r ResourceInfo) marshalTo(buf []byte) {
	copy(buf[0:16], r.UUID[:])
	var name [resourceInfoNameSize]byte
	copy(name[:], r.Name)
	copy(buf[16:36], name[:])
	buf[36] = r.TXChannels
	buf[37] = r.RXChannels
	binary.BigEndian.PutUint32(buf[38:42], r.RateQ8_8)
	binary.BigEndian.PutUint16(buf[42:44], r.MinPacketBytes)
	binary.BigEndian.PutUint16(buf[44:46], r.MaxPacketBytes)
	// buf[46:48] reserved, left zero
}

func unmarshalResourceInfo(buf []byte) (ResourceInfo, error) {
	if len(buf) < resourceInfoWireSize {
		return ResourceInfo{}, newErr(CategoryCommand, CodeShortRead, "resource info")
	}
	var id uuid.UUID
	copy(id[:], buf[0:16])
	nameBuf := buf[16:36]
	end := len(nameBuf)
	for i, b := range nameBuf {
		if b == 0 {
			end = i
			break
		}
	}
	return ResourceInfo{
		UUID:           id,
		Name:           string(nameBuf[:end]),
		TXChannels:     buf[36],
		RXChannels:     buf[37],
		RateQ8_8:       binary.BigEndian.Uint32(buf[38:42]),
		MinPacketBytes: binary.BigEndian.Uint16(buf[42:44]),
		MaxPacketBytes: binary.BigEndian.Uint16(buf[44:46]),
	}, nil
}

// CommandPacket is the parsed form of a VITA-49 Command sub-packet.
type CommandPacket struct {
	Header

	Role    Role
	Request Request
	Result  Result

	// Optional fields, present iff the corresponding indicator bit was set.
	// Pointers (and nil slices inside list wrappers) distinguish "absent" from
	// a zero value; list wrappers distinguish "present but empty" from absent.
	Paging                  bool
	ClientID                *uuid.UUID
	Priority                *uint32
	ResourceIDList          *UUIDList
	ResourceInfoList        *ResourceInfoListField
	StreamIDAssignment      *uint32
	TimestampInterpretation *TimestampInterpretation
	TimestampFormat         *TSF
	EventPeriod             *uint32
	ContextIndicators       *ContextFields
}

// UUIDList wraps a RID/CID list so "present with zero elements" is representable
// distinctly from "absent" (spec.md §4.1 edge case).
type UUIDList struct {
	Items []uuid.UUID
}

// ResourceInfoListField wraps a list of ResourceInfo entries for the same reason.
type ResourceInfoListField struct {
	Items []ResourceInfo
}

func (c *CommandPacket) indicator() uint32 {
	var ind uint32
	if c.Paging {
		ind |= 1 << cmdBitPaging
	}
	if c.ClientID != nil {
		ind |= 1 << cmdBitClientID
	}
	if c.Priority != nil {
		ind |= 1 << cmdBitPriority
	}
	if c.ResourceIDList != nil {
		ind |= 1 << cmdBitResourceIDList
	}
	if c.ResourceInfoList != nil {
		ind |= 1 << cmdBitResourceInfoList
	}
	if c.StreamIDAssignment != nil {
		ind |= 1 << cmdBitStreamIDAssignment
	}
	if c.TimestampInterpretation != nil {
		ind |= 1 << cmdBitTSInterpretation
	}
	if c.TimestampFormat != nil {
		ind |= 1 << cmdBitTimestampFormat
	}
	if c.EventPeriod != nil {
		ind |= 1 << cmdBitEventPeriod
	}
	if c.ContextIndicators != nil {
		ind |= 1 << cmdBitContextIndicators
	}
	return ind
}

// MessageType identifies this packet's type for the Packet interface.
func (c *CommandPacket) MessageType() PacketType { return TypeCommand }

// parseCommandBody parses the Command-specific body that follows the common header.
// h is the already-parsed common header; buf starts at the Command body.
func parseCommandBody(h *Header, buf []byte) (*CommandPacket, int, error) {
	if len(buf) < 4 {
		return nil, 0, newErr(CategoryCommand, CodeShortRead, "role/request/result word")
	}
	w := binary.BigEndian.Uint32(buf[0:4])
	role := Role((w >> 29) & 0x7)
	reqRaw := (w >> 21) & 0xFF
	result := Result((w >> 13) & 0xFF)
	if reqRaw > uint32(ReqTimestampControl) {
		return nil, 0, newErr(CategoryCommand, CodeCommandRange, fmt.Sprintf("request=%d", reqRaw))
	}
	c := &CommandPacket{Header: *h, Role: role, Request: Request(reqRaw), Result: result}
	pos := 4

	if len(buf) < pos+4 {
		return nil, 0, newErr(CategoryCommand, CodeShortRead, "indicator word")
	}
	ind := binary.BigEndian.Uint32(buf[pos : pos+4])
	pos += 4

	if ind&(1<<cmdBitPaging) != 0 {
		c.Paging = true
	}
	if ind&(1<<cmdBitClientID) != 0 {
		if len(buf) < pos+uuidWireSize {
			return nil, 0, newErr(CategoryCommand, CodeShortRead, "client id")
		}
		var id uuid.UUID
		copy(id[:], buf[pos:pos+uuidWireSize])
		c.ClientID = &id
		pos += uuidWireSize
	}
	if ind&(1<<cmdBitPriority) != 0 {
		if len(buf) < pos+4 {
			return nil, 0, newErr(CategoryCommand, CodeShortRead, "priority")
		}
		v := binary.BigEndian.Uint32(buf[pos : pos+4])
		c.Priority = &v
		pos += 4
	}
	if ind&(1<<cmdBitResourceIDList) != 0 {
		list, n, err := parseUUIDList(buf[pos:])
		if err != nil {
			return nil, 0, err
		}
		c.ResourceIDList = list
		pos += n
	}
	if ind&(1<<cmdBitResourceInfoList) != 0 {
		list, n, err := parseResourceInfoList(buf[pos:])
		if err != nil {
			return nil, 0, err
		}
		c.ResourceInfoList = list
		pos += n
	}
	if ind&(1<<cmdBitStreamIDAssignment) != 0 {
		if len(buf) < pos+4 {
			return nil, 0, newErr(CategoryCommand, CodeShortRead, "stream id assignment")
		}
		v := binary.BigEndian.Uint32(buf[pos : pos+4])
		c.StreamIDAssignment = &v
		pos += 4
	}
	if ind&(1<<cmdBitTSInterpretation) != 0 {
		if len(buf) < pos+4 {
			return nil, 0, newErr(CategoryCommand, CodeShortRead, "timestamp interpretation")
		}
		v := TimestampInterpretation(buf[pos])
		c.TimestampInterpretation = &v
		pos += 4
	}
	if ind&(1<<cmdBitTimestampFormat) != 0 {
		if len(buf) < pos+4 {
			return nil, 0, newErr(CategoryCommand, CodeShortRead, "timestamp format")
		}
		v := TSF(buf[pos])
		c.TimestampFormat = &v
		pos += 4
	}
	if ind&(1<<cmdBitEventPeriod) != 0 {
		if len(buf) < pos+4 {
			return nil, 0, newErr(CategoryCommand, CodeShortRead, "event period")
		}
		v := binary.BigEndian.Uint32(buf[pos : pos+4])
		c.EventPeriod = &v
		pos += 4
	}
	if ind&(1<<cmdBitContextIndicators) != 0 {
		cf, n, err := parseContextFields(buf[pos:])
		if err != nil {
			return nil, 0, err
		}
		c.ContextIndicators = cf
		pos += n
	}

	return c, pos, nil
}

func parseUUIDList(buf []byte) (*UUIDList, int, error) {
	if len(buf) < 4 {
		return nil, 0, newErr(CategoryCommand, CodeShortRead, "uuid list count")
	}
	count := binary.BigEndian.Uint32(buf[0:4])
	pos := 4
	need := int(count) * uuidWireSize
	if len(buf)-pos < need {
		return nil, 0, newErr(CategoryCommand, CodeListSize, "uuid list truncated")
	}
	items := make([]uuid.UUID, count)
	for i := range items {
		copy(items[i][:], buf[pos:pos+uuidWireSize])
		pos += uuidWireSize
	}
	return &UUIDList{Items: items}, pos, nil
}

func parseResourceInfoList(buf []byte) (*ResourceInfoListField, int, error) {
	if len(buf) < 4 {
		return nil, 0, newErr(CategoryCommand, CodeShortRead, "resource info list count")
	}
	count := binary.BigEndian.Uint32(buf[0:4])
	pos := 4
	need := int(count) * resourceInfoWireSize
	if len(buf)-pos < need {
		return nil, 0, newErr(CategoryCommand, CodeListSize, "resource info list truncated")
	}
	items := make([]ResourceInfo, count)
	for i := range items {
		ri, err := unmarshalResourceInfo(buf[pos : pos+resourceInfoWireSize])
		if err != nil {
			return nil, 0, err
		}
		items[i] = ri
		pos += resourceInfoWireSize
	}
	return &ResourceInfoListField{Items: items}, pos, nil
}

// bodyLen returns the number of bytes the Command body (after the common header)
// occupies when formatted.
func (c *CommandPacket) bodyLen() int {
	n := 8 // role/request/result word + indicator word
	if c.ClientID != nil {
		n += uuidWireSize
	}
	if c.Priority != nil {
		n += 4
	}
	if c.ResourceIDList != nil {
		n += 4 + len(c.ResourceIDList.Items)*uuidWireSize
	}
	if c.ResourceInfoList != nil {
		n += 4 + len(c.ResourceInfoList.Items)*resourceInfoWireSize
	}
	if c.StreamIDAssignment != nil {
		n += 4
	}
	if c.TimestampInterpretation != nil {
		n += 4
	}
	if c.TimestampFormat != nil {
		n += 4
	}
	if c.EventPeriod != nil {
		n += 4
	}
	if c.ContextIndicators != nil {
		n += c.ContextIndicators.wireSize()
	}
	return n
}

func (c *CommandPacket) marshalBodyTo(buf []byte) int {
	var w uint32
	w |= uint32(c.Role&0x7) << 29
	w |= uint32(c.Request&0xFF) << 21
	w |= uint32(c.Result&0xFF) << 13
	binary.BigEndian.PutUint32(buf[0:4], w)
	binary.BigEndian.PutUint32(buf[4:8], c.indicator())
	pos := 8

	if c.ClientID != nil {
		copy(buf[pos:pos+uuidWireSize], c.ClientID[:])
		pos += uuidWireSize
	}
	if c.Priority != nil {
		binary.BigEndian.PutUint32(buf[pos:pos+4], *c.Priority)
		pos += 4
	}
	if c.ResourceIDList != nil {
		binary.BigEndian.PutUint32(buf[pos:pos+4], uint32(len(c.ResourceIDList.Items)))
		pos += 4
		for _, id := range c.ResourceIDList.Items {
			copy(buf[pos:pos+uuidWireSize], id[:])
			pos += uuidWireSize
		}
	}
	if c.ResourceInfoList != nil {
		binary.BigEndian.PutUint32(buf[pos:pos+4], uint32(len(c.ResourceInfoList.Items)))
		pos += 4
		for _, ri := range c.ResourceInfoList.Items {
			ri.marshalTo(buf[pos : pos+resourceInfoWireSize])
			pos += resourceInfoWireSize
		}
	}
	if c.StreamIDAssignment != nil {
		binary.BigEndian.PutUint32(buf[pos:pos+4], *c.StreamIDAssignment)
		pos += 4
	}
	if c.TimestampInterpretation != nil {
		buf[pos] = byte(*c.TimestampInterpretation)
		pos += 4
	}
	if c.TimestampFormat != nil {
		buf[pos] = byte(*c.TimestampFormat)
		pos += 4
	}
	if c.EventPeriod != nil {
		binary.BigEndian.PutUint32(buf[pos:pos+4], *c.EventPeriod)
		pos += 4
	}
	if c.ContextIndicators != nil {
		pos += c.ContextIndicators.marshalTo(buf[pos:])
	}
	return pos
}

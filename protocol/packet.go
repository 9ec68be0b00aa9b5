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

import "fmt"

// Packet is the typed value produced by DecodePacket and consumed by Format for
// the on-wire Command and Context sub-packets. ControlPacket is deliberately not
// a Packet: it is daemon-local and recognized by magic rather than header type,
// see IsControlPacket/ParseControl/ControlPacket.Format.
type Packet interface {
	MessageType() PacketType
	header() *Header
	bodyLen() int
	marshalBodyTo(buf []byte) int
}

func (c *CommandPacket) header() *Header { return &c.Header }
func (c *ContextPacket) header() *Header { return &c.Header }

// DecodePacket parses a single framed Command or Context packet from buf. Control
// packets must be detected with IsControlPacket and parsed with ParseControl
// before calling DecodePacket.
func DecodePacket(buf []byte) (Packet, error) {
	h, n, err := unmarshalHeader(buf)
	if err != nil {
		return nil, err
	}
	rest := buf[n:int(h.PacketSizeWords)*4]

	switch h.Type {
	case TypeCommand:
		p, _, err := parseCommandBody(h, rest)
		if err != nil {
			return nil, err
		}
		return p, nil
	case TypeContext:
		p, _, err := parseContextBody(h, rest)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, newErr(CategoryCommon, CodeBadHeaderType, fmt.Sprintf("type=%d", h.Type))
	}
}

// Format serializes a Packet to its wire bytes, writing the header last once the
// body length (and therefore packet_size_words) is known, matching the teacher's
// own "header last" marshal convention.
func Format(p Packet) ([]byte, error) {
	h := p.header()
	h.Type = p.MessageType()
	bodyLen := p.bodyLen()
	total := h.wireSize() + bodyLen
	if total%4 != 0 {
		return nil, newErr(CategoryCommon, CodeWordAlignment, fmt.Sprintf("total=%d", total))
	}
	h.PacketSizeWords = uint16(total / 4)

	buf := make([]byte, total)
	n := marshalHeaderTo(h, buf)
	m := p.marshalBodyTo(buf[n:])
	if n+m != total {
		return nil, newErr(CategoryCommon, CodeBadSize, "marshal length mismatch")
	}
	return buf, nil
}

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
)

// ControlPacket is the daemon-local Control packet (spec.md §3): not on-wire
// interop with the VITA-49 Command/Context packets, recognized by ControlMagic
// before any common-header parse is attempted. Grounded exactly on
// include/common/vita49/control.h's v49_control struct.
type ControlPacket struct {
	Verb ControlVerb

	// StartStop is populated for Start/Stop verbs.
	StartStop *ControlStartStop
	// List is populated for the List verb.
	List *ControlList
}

// ControlStartStop mirrors struct v49_ctrl_start_stop.
type ControlStartStop struct {
	SID uint32
	Err uint32
}

// ControlList mirrors struct v49_ctrl_list: a count-prefixed array of worker SIDs.
type ControlList struct {
	SIDs []uint32
}

// IsControlPacket reports whether buf begins with ControlMagic, i.e. whether it
// should be routed to ParseControl instead of the common-header parser.
func IsControlPacket(buf []byte) bool {
	return len(buf) >= 4 && binary.BigEndian.Uint32(buf[0:4]) == ControlMagic
}

// ParseControl parses a length-prefixed local Control packet.
func ParseControl(buf []byte) (*ControlPacket, error) {
	if len(buf) < 12 {
		return nil, newErr(CategoryControl, CodeShortRead, "control header")
	}
	magic := binary.BigEndian.Uint32(buf[0:4])
	if magic != ControlMagic {
		return nil, newErr(CategoryControl, CodeBadMagic, fmt.Sprintf("magic=%#x", magic))
	}
	size := binary.BigEndian.Uint32(buf[4:8])
	if int(size) > len(buf) {
		return nil, newErr(CategoryControl, CodeBadSize, "size exceeds buffer")
	}
	verbRaw := binary.BigEndian.Uint32(buf[8:12])
	if verbRaw > uint32(CtrlList) {
		return nil, newErr(CategoryControl, CodeCommandRange, fmt.Sprintf("verb=%d", verbRaw))
	}
	c := &ControlPacket{Verb: ControlVerb(verbRaw)}
	body := buf[12:size]

	switch c.Verb {
	case CtrlShutdown:
		// no payload
	case CtrlStart, CtrlStop:
		if len(body) < 8 {
			return nil, newErr(CategoryControl, CodeShortRead, "start/stop payload")
		}
		c.StartStop = &ControlStartStop{
			SID: binary.BigEndian.Uint32(body[0:4]),
			Err: binary.BigEndian.Uint32(body[4:8]),
		}
	case CtrlList:
		if len(body) < 4 {
			return nil, newErr(CategoryControl, CodeShortRead, "list count")
		}
		n := binary.BigEndian.Uint32(body[0:4])
		if len(body)-4 < int(n)*4 {
			return nil, newErr(CategoryControl, CodeListSize, "list truncated")
		}
		sids := make([]uint32, n)
		for i := range sids {
			sids[i] = binary.BigEndian.Uint32(body[4+i*4 : 8+i*4])
		}
		c.List = &ControlList{SIDs: sids}
	}
	return c, nil
}

// Format serializes a ControlPacket to its wire form.
func (c *ControlPacket) Format() []byte {
	var body []byte
	switch c.Verb {
	case CtrlShutdown:
		body = nil
	case CtrlStart, CtrlStop:
		body = make([]byte, 8)
		ss := c.StartStop
		if ss == nil {
			ss = &ControlStartStop{}
		}
		binary.BigEndian.PutUint32(body[0:4], ss.SID)
		binary.BigEndian.PutUint32(body[4:8], ss.Err)
	case CtrlList:
		l := c.List
		if l == nil {
			l = &ControlList{}
		}
		body = make([]byte, 4+4*len(l.SIDs))
		binary.BigEndian.PutUint32(body[0:4], uint32(len(l.SIDs)))
		for i, sid := range l.SIDs {
			binary.BigEndian.PutUint32(body[4+i*4:8+i*4], sid)
		}
	}

	size := 12 + len(body)
	out := make([]byte, size)
	binary.BigEndian.PutUint32(out[0:4], ControlMagic)
	binary.BigEndian.PutUint32(out[4:8], uint32(size))
	binary.BigEndian.PutUint32(out[8:12], uint32(c.Verb))
	copy(out[12:], body)
	return out
}

// FormatShutdown builds a Shutdown control packet, matching
// v49_control_format_shutdown.
func FormatShutdown() []byte {
	return (&ControlPacket{Verb: CtrlShutdown}).Format()
}

// FormatStartStop builds a Start or Stop control packet.
func FormatStartStop(verb ControlVerb, sid, errCode uint32) []byte {
	return (&ControlPacket{Verb: verb, StartStop: &ControlStartStop{SID: sid, Err: errCode}}).Format()
}

// FormatList builds a List control packet carrying the given worker SIDs.
func FormatList(sids []uint32) []byte {
	return (&ControlPacket{Verb: CtrlList, List: &ControlList{SIDs: sids}}).Format()
}

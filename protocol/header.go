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

// Package protocol implements the VITA-49 control-plane wire codec: the common
// packet header, the Command/Context sub-packets it carries, the daemon-local
// Control packet, and the pagination scheme used when a body exceeds the MTU.
package protocol

import (
	"encoding/binary"
	"fmt"
)

// Wire constants. DefaultMTU and HeadReservation are taken verbatim from the
// original agent's DAEMON_MBUF_SIZE/DAEMON_MBUF_HEAD; ControlMagic from
// V49_CTRL_MAGIC; the Class ID pair is fixed per spec.
const (
	DefaultMTU      = 5120
	HeadReservation = 256
	ControlMagic    = 0x93d156CF

	ClassIDOUI        uint32 = 0x00112233
	ClassIDInfoCode    uint16 = 0x0001
	ClassIDPacketCode  uint16 = 0x0001
)

const (
	headerWordSize   = 4
	streamIDSize     = 4
	classIDWireSize  = 8
	tsIntegerSize    = 4
	tsFractionalSize = 8
)

// bit positions within the 32-bit header word.
const (
	bitType        = 28 // 4 bits
	bitHasCID      = 27 // 1 bit
	bitTSM         = 26 // 1 bit, reserved, tolerate-on-read / zero-on-write
	bitTSI         = 22 // 2 bits
	bitTSF         = 20 // 2 bits
	bitPacketCount = 16 // 4 bits
)

// ClassID is the fixed Class Identifier sub-field. Any deviation from the fixed
// OUI/class pair is a parse error (spec.md §3).
type ClassID struct {
	OUI        uint32
	InfoCode   uint16
	PacketCode uint16
}

// DefaultClassID returns the single valid Class ID value for this protocol.
func DefaultClassID() ClassID {
	return ClassID{OUI: ClassIDOUI, InfoCode: ClassIDInfoCode, PacketCode: ClassIDPacketCode}
}

func (c ClassID) marshalTo(buf []byte) {
	binary.BigEndian.PutUint32(buf[0:4], c.OUI)
	binary.BigEndian.PutUint16(buf[4:6], c.InfoCode)
	binary.BigEndian.PutUint16(buf[6:8], c.PacketCode)
}

func unmarshalClassID(buf []byte) (ClassID, error) {
	if len(buf) < classIDWireSize {
		return ClassID{}, newErr(CategoryCommon, CodeShortRead, "class id")
	}
	c := ClassID{
		OUI:        binary.BigEndian.Uint32(buf[0:4]),
		InfoCode:   binary.BigEndian.Uint16(buf[4:6]),
		PacketCode: binary.BigEndian.Uint16(buf[6:8]),
	}
	want := DefaultClassID()
	if c != want {
		return ClassID{}, newErr(CategoryCommon, CodeBadClassID,
			fmt.Sprintf("got oui=%#x info=%#x packet=%#x", c.OUI, c.InfoCode, c.PacketCode))
	}
	return c, nil
}

// Header is the common VITA-49 header shared by Command and Context packets.
// Control packets do not carry a Header; they are recognized by ControlMagic
// before any Header parse is attempted.
type Header struct {
	Type            PacketType
	HasCID          bool
	tsm             bool // reserved bit: parsed, never acted on, always zero on write
	TSI             TSI
	TSF             TSF
	PacketCount     uint8 // 4 bits, modulo-16
	PacketSizeWords uint16
	StreamID        uint32
	TSInteger       uint32
	TSFractional    uint64
	ClassID         *ClassID // non-nil iff HasCID
}

// wireSize returns the number of bytes the header (including optional Class ID and
// timestamps) occupies on the wire.
func (h *Header) wireSize() int {
	n := headerWordSize + streamIDSize
	if h.HasCID {
		n += classIDWireSize
	}
	if h.TSI != TSINone {
		n += tsIntegerSize
	}
	if h.TSF != TSFNone {
		n += tsFractionalSize
	}
	return n
}

func packHeaderWord(h *Header) uint32 {
	var w uint32
	w |= uint32(h.Type&0xF) << bitType
	if h.HasCID {
		w |= 1 << bitHasCID
	}
	// tsm is always written zero per the documented tie-break.
	w |= uint32(h.TSI&0x3) << bitTSI
	w |= uint32(h.TSF&0x3) << bitTSF
	w |= uint32(h.PacketCount&0xF) << bitPacketCount
	w |= uint32(h.PacketSizeWords)
	return w
}

func unpackHeaderWord(w uint32) *Header {
	return &Header{
		Type:            PacketType((w >> bitType) & 0xF),
		HasCID:          (w>>bitHasCID)&1 == 1,
		tsm:             (w>>bitTSM)&1 == 1,
		TSI:             TSI((w >> bitTSI) & 0x3),
		TSF:             TSF((w >> bitTSF) & 0x3),
		PacketCount:     uint8((w >> bitPacketCount) & 0xF),
		PacketSizeWords: uint16(w & 0xFFFF),
	}
}

// unmarshalHeader reads the common header (and, if present, the Class ID and
// timestamps) from buf. It returns the header and the number of bytes consumed.
func unmarshalHeader(buf []byte) (*Header, int, error) {
	if len(buf) < headerWordSize {
		return nil, 0, newErr(CategoryCommon, CodeShortRead, "header word")
	}
	h := unpackHeaderWord(binary.BigEndian.Uint32(buf[0:4]))

	if int(h.PacketSizeWords)*4 > len(buf) {
		return nil, 0, newErr(CategoryCommon, CodeBadSize,
			fmt.Sprintf("packet_size_words=%d exceeds buffer len=%d", h.PacketSizeWords, len(buf)))
	}
	if h.Type != TypeCommand && h.Type != TypeContext {
		return nil, 0, newErr(CategoryCommon, CodeBadHeaderType, fmt.Sprintf("type=%d", h.Type))
	}

	pos := headerWordSize
	if len(buf) < pos+streamIDSize {
		return nil, 0, newErr(CategoryCommon, CodeShortRead, "stream id")
	}
	h.StreamID = binary.BigEndian.Uint32(buf[pos : pos+4])
	pos += streamIDSize

	if h.HasCID {
		cid, err := unmarshalClassID(buf[pos:])
		if err != nil {
			return nil, 0, err
		}
		h.ClassID = &cid
		pos += classIDWireSize
	}

	if h.TSI != TSINone {
		if len(buf) < pos+tsIntegerSize {
			return nil, 0, newErr(CategoryCommon, CodeShortRead, "ts_integer")
		}
		h.TSInteger = binary.BigEndian.Uint32(buf[pos : pos+4])
		pos += tsIntegerSize
	}

	if h.TSF != TSFNone {
		if len(buf) < pos+tsFractionalSize {
			return nil, 0, newErr(CategoryCommon, CodeShortRead, "ts_fractional")
		}
		h.TSFractional = binary.BigEndian.Uint64(buf[pos : pos+8])
		pos += tsFractionalSize
		if h.TSF == TSFPicoseconds && h.TSFractional >= 1_000_000_000_000 {
			return nil, 0, newErr(CategoryCommon, CodeFractionOutOfRange,
				"picoseconds fraction must be < 1e12")
		}
	}

	return h, pos, nil
}

// marshalHeaderTo writes the common header (word, stream id, class id, timestamps)
// to buf, which must be at least h.wireSize() bytes.
func marshalHeaderTo(h *Header, buf []byte) int {
	binary.BigEndian.PutUint32(buf[0:4], packHeaderWord(h))
	pos := headerWordSize
	binary.BigEndian.PutUint32(buf[pos:pos+4], h.StreamID)
	pos += streamIDSize
	if h.HasCID {
		cid := h.ClassID
		if cid == nil {
			d := DefaultClassID()
			cid = &d
		}
		cid.marshalTo(buf[pos : pos+8])
		pos += classIDWireSize
	}
	if h.TSI != TSINone {
		binary.BigEndian.PutUint32(buf[pos:pos+4], h.TSInteger)
		pos += tsIntegerSize
	}
	if h.TSF != TSFNone {
		binary.BigEndian.PutUint64(buf[pos:pos+8], h.TSFractional)
		pos += tsFractionalSize
	}
	return pos
}

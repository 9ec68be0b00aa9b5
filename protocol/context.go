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

import "encoding/binary"

// Indicator bit positions for the Context field set, descending from bit 31.
// Bits 24..0 are reserved (spec.md §3: "order of appearance follows bit index,
// most-significant first").
const (
	ctxBitBandwidth    = 31
	ctxBitIFFrequency  = 30
	ctxBitRFFrequency  = 29
	ctxBitRefLevel     = 28
	ctxBitGain         = 27
	ctxBitSampleRate   = 26
	ctxBitTemperature  = 25
)

// ContextFields is the set of context-report fields, driven by its own indicator
// bitmap. It appears both as a standalone ContextPacket body and nested inside a
// CommandPacket's ContextIndicators optional field.
type ContextFields struct {
	Bandwidth            *int64 // Hz
	IFReferenceFrequency *int64 // Hz
	RFReferenceFrequency *int64 // Hz
	ReferenceLevel       *int16 // Q7 dBm
	Gain                 *[2]int16 // Q7 dB, [stage1, stage2]
	SampleRate           *uint64 // Hz
	Temperature          *int16 // Q6 degrees C
}

func (f *ContextFields) indicator() uint32 {
	var ind uint32
	if f.Bandwidth != nil {
		ind |= 1 << ctxBitBandwidth
	}
	if f.IFReferenceFrequency != nil {
		ind |= 1 << ctxBitIFFrequency
	}
	if f.RFReferenceFrequency != nil {
		ind |= 1 << ctxBitRFFrequency
	}
	if f.ReferenceLevel != nil {
		ind |= 1 << ctxBitRefLevel
	}
	if f.Gain != nil {
		ind |= 1 << ctxBitGain
	}
	if f.SampleRate != nil {
		ind |= 1 << ctxBitSampleRate
	}
	if f.Temperature != nil {
		ind |= 1 << ctxBitTemperature
	}
	return ind
}

func (f *ContextFields) wireSize() int {
	n := 4 // indicator word
	if f.Bandwidth != nil {
		n += 8
	}
	if f.IFReferenceFrequency != nil {
		n += 8
	}
	if f.RFReferenceFrequency != nil {
		n += 8
	}
	if f.ReferenceLevel != nil {
		n += 4 // 2-byte Q7 value, padded to a 32-bit word
	}
	if f.Gain != nil {
		n += 4
	}
	if f.SampleRate != nil {
		n += 8
	}
	if f.Temperature != nil {
		n += 4 // 2-byte Q6 value, padded to a 32-bit word
	}
	return n
}

func (f *ContextFields) marshalTo(buf []byte) int {
	binary.BigEndian.PutUint32(buf[0:4], f.indicator())
	pos := 4
	if f.Bandwidth != nil {
		binary.BigEndian.PutUint64(buf[pos:pos+8], uint64(*f.Bandwidth))
		pos += 8
	}
	if f.IFReferenceFrequency != nil {
		binary.BigEndian.PutUint64(buf[pos:pos+8], uint64(*f.IFReferenceFrequency))
		pos += 8
	}
	if f.RFReferenceFrequency != nil {
		binary.BigEndian.PutUint64(buf[pos:pos+8], uint64(*f.RFReferenceFrequency))
		pos += 8
	}
	if f.ReferenceLevel != nil {
		// 2-byte Q7 value in the low half-word, padded to a full 32-bit word.
		binary.BigEndian.PutUint32(buf[pos:pos+4], uint32(uint16(*f.ReferenceLevel)))
		pos += 4
	}
	if f.Gain != nil {
		binary.BigEndian.PutUint16(buf[pos:pos+2], uint16(f.Gain[0]))
		binary.BigEndian.PutUint16(buf[pos+2:pos+4], uint16(f.Gain[1]))
		pos += 4
	}
	if f.SampleRate != nil {
		binary.BigEndian.PutUint64(buf[pos:pos+8], *f.SampleRate)
		pos += 8
	}
	if f.Temperature != nil {
		// 2-byte Q6 value in the low half-word, padded to a full 32-bit word.
		binary.BigEndian.PutUint32(buf[pos:pos+4], uint32(uint16(*f.Temperature)))
		pos += 4
	}
	return pos
}

func parseContextFields(buf []byte) (*ContextFields, int, error) {
	if len(buf) < 4 {
		return nil, 0, newErr(CategoryContext, CodeShortRead, "context indicator word")
	}
	ind := binary.BigEndian.Uint32(buf[0:4])
	pos := 4
	f := &ContextFields{}

	readI64 := func() (int64, error) {
		if len(buf) < pos+8 {
			return 0, newErr(CategoryContext, CodeShortRead, "8-byte field")
		}
		v := int64(binary.BigEndian.Uint64(buf[pos : pos+8]))
		pos += 8
		return v, nil
	}

	if ind&(1<<ctxBitBandwidth) != 0 {
		v, err := readI64()
		if err != nil {
			return nil, 0, err
		}
		f.Bandwidth = &v
	}
	if ind&(1<<ctxBitIFFrequency) != 0 {
		v, err := readI64()
		if err != nil {
			return nil, 0, err
		}
		f.IFReferenceFrequency = &v
	}
	if ind&(1<<ctxBitRFFrequency) != 0 {
		v, err := readI64()
		if err != nil {
			return nil, 0, err
		}
		f.RFReferenceFrequency = &v
	}
	if ind&(1<<ctxBitRefLevel) != 0 {
		if len(buf) < pos+4 {
			return nil, 0, newErr(CategoryContext, CodeShortRead, "reference level")
		}
		v := int16(uint16(binary.BigEndian.Uint32(buf[pos : pos+4])))
		pos += 4
		f.ReferenceLevel = &v
	}
	if ind&(1<<ctxBitGain) != 0 {
		if len(buf) < pos+4 {
			return nil, 0, newErr(CategoryContext, CodeShortRead, "gain")
		}
		g := [2]int16{
			int16(binary.BigEndian.Uint16(buf[pos : pos+2])),
			int16(binary.BigEndian.Uint16(buf[pos+2 : pos+4])),
		}
		pos += 4
		f.Gain = &g
	}
	if ind&(1<<ctxBitSampleRate) != 0 {
		if len(buf) < pos+8 {
			return nil, 0, newErr(CategoryContext, CodeShortRead, "sample rate")
		}
		v := binary.BigEndian.Uint64(buf[pos : pos+8])
		pos += 8
		f.SampleRate = &v
	}
	if ind&(1<<ctxBitTemperature) != 0 {
		if len(buf) < pos+4 {
			return nil, 0, newErr(CategoryContext, CodeShortRead, "temperature")
		}
		v := int16(uint16(binary.BigEndian.Uint32(buf[pos : pos+4])))
		pos += 4
		f.Temperature = &v
	}

	return f, pos, nil
}

// ContextPacket is a standalone Context sub-packet: a Header plus a single
// indicator-bitmap-driven field set.
type ContextPacket struct {
	Header
	ContextFields
}

// MessageType identifies this packet's type for the Packet interface.
func (c *ContextPacket) MessageType() PacketType { return TypeContext }

func parseContextBody(h *Header, buf []byte) (*ContextPacket, int, error) {
	f, n, err := parseContextFields(buf)
	if err != nil {
		return nil, 0, err
	}
	return &ContextPacket{Header: *h, ContextFields: *f}, n, nil
}

func (c *ContextPacket) bodyLen() int { return c.ContextFields.wireSize() }

func (c *ContextPacket) marshalBodyTo(buf []byte) int { return c.ContextFields.marshalTo(buf) }

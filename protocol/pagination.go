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
	"fmt"

	"github.com/google/uuid"
)

// FormatPaginated formats a CommandPacket, splitting it across multiple wire
// packets when the assembled body would exceed mtu-bytes. Only one of
// ResourceIDList/ResourceInfoList is split at a time (the one present); every
// other field is repeated verbatim on every fragment. Fragments share StreamID
// and ClientID so the receiver can reassemble them (spec.md §4.1).
func FormatPaginated(c *CommandPacket, mtu int) ([][]byte, error) {
	base, err := Format(c)
	if err != nil {
		return nil, err
	}
	if len(base) <= mtu {
		return [][]byte{base}, nil
	}

	switch {
	case c.ResourceInfoList != nil:
		return paginateList(c, mtu, len(c.ResourceInfoList.Items), resourceInfoWireSize,
			func(frag *CommandPacket, lo, hi int) {
				items := make([]ResourceInfo, hi-lo)
				copy(items, c.ResourceInfoList.Items[lo:hi])
				frag.ResourceInfoList = &ResourceInfoListField{Items: items}
			})
	case c.ResourceIDList != nil:
		return paginateList(c, mtu, len(c.ResourceIDList.Items), uuidWireSize,
			func(frag *CommandPacket, lo, hi int) {
				items := make([]uuid.UUID, hi-lo)
				copy(items, c.ResourceIDList.Items[lo:hi])
				frag.ResourceIDList = &UUIDList{Items: items}
			})
	default:
		return nil, newErr(CategoryCommand, CodePaging, "body exceeds MTU but carries no paginatable list")
	}
}

func paginateList(c *CommandPacket, mtu, count, elemSize int, assign func(frag *CommandPacket, lo, hi int)) ([][]byte, error) {
	// Figure out the fixed overhead (everything except the list being split) by
	// formatting a zero-element copy.
	probe := *c
	switch {
	case c.ResourceInfoList != nil:
		probe.ResourceInfoList = &ResourceInfoListField{}
	case c.ResourceIDList != nil:
		probe.ResourceIDList = &UUIDList{}
	}
	overheadBuf, err := Format(&probe)
	if err != nil {
		return nil, err
	}
	overhead := len(overheadBuf)
	room := mtu - overhead
	if room < elemSize {
		return nil, newErr(CategoryCommand, CodePaging, fmt.Sprintf("mtu=%d too small for one element of size %d", mtu, elemSize))
	}
	perFragment := room / elemSize

	var out [][]byte
	packetCount := uint8(0)
	for lo := 0; lo < count; lo += perFragment {
		hi := lo + perFragment
		if hi > count {
			hi = count
		}
		frag := *c
		frag.ResourceIDList = nil
		frag.ResourceInfoList = nil
		assign(&frag, lo, hi)
		frag.Paging = hi < count
		frag.PacketCount = packetCount % 16
		packetCount++

		buf, err := Format(&frag)
		if err != nil {
			return nil, err
		}
		out = append(out, buf)
	}
	return out, nil
}

// Reassemble merges a sequence of paginated CommandPacket fragments (as produced
// by FormatPaginated / received off the wire in order) into the single logical
// value they represent. Fragments must share StreamID and ClientID and must have
// Paging set on every fragment but the last (spec.md §4.1, §8).
func Reassemble(fragments []*CommandPacket) (*CommandPacket, error) {
	if len(fragments) == 0 {
		return nil, newErr(CategoryCommand, CodePaging, "no fragments")
	}
	first := fragments[0]
	merged := *first

	var ridItems []uuid.UUID
	var riItems []ResourceInfo
	if first.ResourceIDList != nil {
		ridItems = append(ridItems, first.ResourceIDList.Items...)
	}
	if first.ResourceInfoList != nil {
		riItems = append(riItems, first.ResourceInfoList.Items...)
	}

	for _, f := range fragments[1:] {
		if f.StreamID != first.StreamID {
			return nil, newErr(CategoryCommand, CodePaging, "stream id mismatch across fragments")
		}
		if (f.ClientID == nil) != (first.ClientID == nil) {
			return nil, newErr(CategoryCommand, CodePaging, "client id presence mismatch across fragments")
		}
		if f.ClientID != nil && *f.ClientID != *first.ClientID {
			return nil, newErr(CategoryCommand, CodePaging, "client id mismatch across fragments")
		}
		if f.ResourceIDList != nil {
			ridItems = append(ridItems, f.ResourceIDList.Items...)
		}
		if f.ResourceInfoList != nil {
			riItems = append(riItems, f.ResourceInfoList.Items...)
		}
	}

	last := fragments[len(fragments)-1]
	if last.Paging {
		return nil, newErr(CategoryCommand, CodePaging, "final fragment still has Paging set")
	}
	for _, f := range fragments[:len(fragments)-1] {
		if !f.Paging {
			return nil, newErr(CategoryCommand, CodePaging, "non-final fragment missing Paging")
		}
	}

	merged.Paging = false
	if ridItems != nil || (first.ResourceIDList != nil) {
		merged.ResourceIDList = &UUIDList{Items: ridItems}
	}
	if riItems != nil || (first.ResourceInfoList != nil) {
		merged.ResourceInfoList = &ResourceInfoListField{Items: riItems}
	}
	return &merged, nil
}

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

package sequence

import (
	"github.com/sbtech/vita49-agent/expect"
	"github.com/sbtech/vita49-agent/protocol"
)

func init() {
	register(Sequence{
		Name:    "access",
		Request: protocol.ReqAccess,
		Build: func(a Args) *protocol.CommandPacket {
			req := &protocol.CommandPacket{Role: protocol.RoleRequest, Request: protocol.ReqAccess}
			if a.CID != nil {
				req.ClientID = a.CID
			}
			if a.RID != nil {
				req.ResourceIDList = &protocol.UUIDList{Items: a.RID}
			}
			return req
		},
		Matchers: func(a Args) []expect.Matcher {
			return []expect.Matcher{
				func(p protocol.Packet) (expect.Outcome, any, error) {
					outcome, cp, err := expect.Common(p, protocol.ReqAccess, cidBytes(a.CID))
					if outcome != expect.Match {
						return outcome, nil, err
					}
					if cp.StreamIDAssignment == nil {
						return expect.Fatal, nil, errMissingSID
					}
					return expect.Match, *cp.StreamIDAssignment, nil
				},
			}
		},
	})
}

var errMissingSID = sequenceError("access response missing stream id assignment")

type sequenceError string

func (e sequenceError) Error() string { return string(e) }

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

// Package sequence is the tool-side request/matcher library: one file per
// verb, each registering itself into Registry at init() time. This is the Go
// substitute for the original's linker-section SEQUENCE_MAP table: a
// package-level map populated by side-effecting init funcs instead of a
// build-time symbol-section plugin registry.
package sequence

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sbtech/vita49-agent/expect"
	"github.com/sbtech/vita49-agent/protocol"
)

// Args carries the parsed CLI arguments a Sequence's Build func needs. Not
// every field is meaningful to every verb.
type Args struct {
	CID      *uuid.UUID
	RID      []uuid.UUID
	SID      uint32
	Name     string
	Priority *uint32
	TSInterp *protocol.TimestampInterpretation
	TSFrac   uint64
}

// Sequence is a named request/matcher pair: Build constructs the Command
// request to send, Matchers are run in order by the expect engine against
// responses.
type Sequence struct {
	Name     string
	Request  protocol.Request
	Build    func(a Args) *protocol.CommandPacket
	Matchers func(a Args) []expect.Matcher
}

// Registry is the static table of verbs discoverable by the CLI, populated
// by each verb file's init().
var Registry = map[string]Sequence{}

func register(s Sequence) {
	Registry[s.Name] = s
}

// cidBytes adapts a *uuid.UUID into the *[16]byte expect.Common expects.
func cidBytes(id *uuid.UUID) *[16]byte {
	if id == nil {
		return nil
	}
	b := [16]byte(*id)
	return &b
}

// Names returns every registered verb name, for CLI help text.
func Names() []string {
	out := make([]string, 0, len(Registry))
	for name := range Registry {
		out = append(out, name)
	}
	return out
}

// unknownSequenceError reports a verb name not present in Registry.
type unknownSequenceError string

func (e unknownSequenceError) Error() string { return "sequence: unknown verb " + string(e) }

// Run builds the request for name, enqueues it on eng's channel, and waits
// for the matched response or a Fatal/timeout.
func Run(ctx context.Context, eng *expect.Engine, name string, a Args, timeout time.Duration) (any, error) {
	seq, ok := Registry[name]
	if !ok {
		return nil, unknownSequenceError(name)
	}
	req := seq.Build(a)
	buf, err := protocol.Format(req)
	if err != nil {
		return nil, err
	}
	if err := eng.Ch.Enqueue(buf); err != nil {
		return nil, err
	}
	return eng.Run(ctx, seq.Matchers(a), timeout)
}

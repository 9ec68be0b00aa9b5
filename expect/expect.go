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

// Package expect reproduces the sequence-driving poll loop of the original
// expect.c: a tool sends a Command request, then polls a Channel on a fixed
// tick until a matcher in its declared order accepts, rejects fatally, or the
// deadline expires. Used both by the v49ctl CLI sequences and by tests that
// drive the manager/worker directly.
package expect

import (
	"context"
	"fmt"
	"time"

	"github.com/sbtech/vita49-agent/channel"
	"github.com/sbtech/vita49-agent/protocol"
)

// Tick is the fixed poll interval expect.c used (333 milliseconds).
const Tick = 333 * time.Millisecond

// Outcome is the result of a single Matcher evaluation against one received
// message.
type Outcome uint8

// Possible matcher outcomes.
const (
	// NoMatch means this matcher did not recognize the message; the next
	// matcher in the chain is tried.
	NoMatch Outcome = iota
	// Match means this matcher accepted the message; Run returns its value.
	Match
	// Fatal means this matcher recognized the message as a terminal failure;
	// Run returns the error immediately.
	Fatal
)

// Matcher inspects a decoded packet and returns an outcome plus, for Match,
// the value Run should return, or for Fatal, the error describing why.
type Matcher func(p protocol.Packet) (Outcome, any, error)

// Engine drives matchers against a Channel on the fixed poll Tick.
type Engine struct {
	Ch channel.Channel
}

// New returns an Engine bound to ch.
func New(ch channel.Channel) *Engine {
	return &Engine{Ch: ch}
}

// Run sends nothing itself (the caller Enqueues the request beforehand); it
// drains the channel's send queue, then polls for readable messages every
// Tick, running matchers in declaration order against each decoded message,
// until one matches, one is fatal, ctx is canceled, or timeout elapses.
func (e *Engine) Run(ctx context.Context, matchers []Matcher, timeout time.Duration) (any, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(Tick)
	defer ticker.Stop()

	if err := e.Ch.FlushWrites(); err != nil {
		return nil, fmt.Errorf("expect: flush: %w", err)
	}

	for {
		if v, done, err := e.poll(matchers); done {
			return v, err
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("expect: timed out after %s", timeout)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-e.Ch.Readiness():
		case <-ticker.C:
			_ = e.Ch.FlushWrites()
		}
	}
}

// poll drains every currently-available message, running the matcher chain
// against each; returns (value, true, err) the first time a matcher reaches a
// terminal outcome.
func (e *Engine) poll(matchers []Matcher) (any, bool, error) {
	for {
		raw, ok, err := e.Ch.TryRead()
		if err != nil {
			return nil, true, err
		}
		if !ok {
			return nil, false, nil
		}

		var pkt protocol.Packet
		if !protocol.IsControlPacket(raw) {
			pkt, err = protocol.DecodePacket(raw)
			if err != nil {
				continue // malformed message, skip like expect.c's silent drop
			}
		}

		for _, m := range matchers {
			outcome, val, merr := m(pkt)
			switch outcome {
			case Match:
				return val, true, nil
			case Fatal:
				return nil, true, merr
			case NoMatch:
				continue
			}
		}
	}
}

// Common reproduces expect_common's validation of a Command Result: the
// packet must be a CommandPacket, Role must be RoleResult, Request must equal
// want, ClientID presence/value must be internally consistent, and Result
// must equal ResSuccess (anything else is Fatal).
func Common(p protocol.Packet, want protocol.Request, cid *[16]byte) (Outcome, *protocol.CommandPacket, error) {
	cp, ok := p.(*protocol.CommandPacket)
	if !ok {
		return NoMatch, nil, nil
	}
	if cp.Role != protocol.RoleResult {
		return NoMatch, nil, nil
	}
	if cp.Request != want {
		return NoMatch, nil, nil
	}
	if cid != nil {
		if cp.ClientID == nil {
			return Fatal, nil, fmt.Errorf("expect: response missing client id")
		}
		if [16]byte(*cp.ClientID) != *cid {
			return NoMatch, nil, nil
		}
	}
	if cp.Result != protocol.ResSuccess {
		return Fatal, nil, fmt.Errorf("expect: request %s failed: %s", want, cp.Result)
	}
	return Match, cp, nil
}

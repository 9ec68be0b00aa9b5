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

package expect

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/sbtech/vita49-agent/channel"
	"github.com/sbtech/vita49-agent/protocol"
)

func successResponse(req protocol.Request, cid uuid.UUID) *protocol.CommandPacket {
	return &protocol.CommandPacket{
		Role: protocol.RoleResult, Request: req, Result: protocol.ResSuccess, ClientID: &cid,
	}
}

func TestRunMatchesFirstAcceptingMatcher(t *testing.T) {
	toolEnd, daemonEnd := channel.NewLoopbackPair()
	defer toolEnd.Close()
	defer daemonEnd.Close()

	cid := uuid.New()
	buf, err := protocol.Format(successResponse(protocol.ReqDiscovery, cid))
	require.NoError(t, err)
	require.NoError(t, daemonEnd.Enqueue(buf))

	eng := New(toolEnd)
	matchers := []Matcher{
		func(p protocol.Packet) (Outcome, any, error) {
			return Common(p, protocol.ReqDiscovery, cidPtr(cid))
		},
	}
	val, err := eng.Run(context.Background(), matchers, time.Second)
	require.NoError(t, err)
	cp, ok := val.(*protocol.CommandPacket)
	require.True(t, ok)
	require.Equal(t, protocol.ReqDiscovery, cp.Request)
}

func TestRunFatalOnNonSuccessResult(t *testing.T) {
	toolEnd, daemonEnd := channel.NewLoopbackPair()
	defer toolEnd.Close()
	defer daemonEnd.Close()

	cid := uuid.New()
	resp := successResponse(protocol.ReqAccess, cid)
	resp.Result = protocol.ResAccessDenied
	buf, err := protocol.Format(resp)
	require.NoError(t, err)
	require.NoError(t, daemonEnd.Enqueue(buf))

	eng := New(toolEnd)
	matchers := []Matcher{
		func(p protocol.Packet) (Outcome, any, error) {
			return Common(p, protocol.ReqAccess, cidPtr(cid))
		},
	}
	_, err = eng.Run(context.Background(), matchers, time.Second)
	require.Error(t, err)
}

func TestRunTimesOutWithNoResponse(t *testing.T) {
	toolEnd, _ := channel.NewLoopbackPair()
	defer toolEnd.Close()

	eng := New(toolEnd)
	start := time.Now()
	_, err := eng.Run(context.Background(), nil, 50*time.Millisecond)
	require.Error(t, err)
	require.Less(t, time.Since(start), Tick+500*time.Millisecond)
}

func TestCommonSkipsWrongRequest(t *testing.T) {
	cid := uuid.New()
	resp := successResponse(protocol.ReqDiscovery, cid)
	outcome, _, err := Common(resp, protocol.ReqAccess, cidPtr(cid))
	require.NoError(t, err)
	require.Equal(t, NoMatch, outcome)
}

func TestCommonSkipsMismatchedClientID(t *testing.T) {
	resp := successResponse(protocol.ReqDiscovery, uuid.New())
	other := uuid.New()
	outcome, _, err := Common(resp, protocol.ReqDiscovery, cidPtr(other))
	require.NoError(t, err)
	require.Equal(t, NoMatch, outcome)
}

func cidPtr(id uuid.UUID) *[16]byte {
	b := [16]byte(id)
	return &b
}

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
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/sbtech/vita49-agent/channel"
	"github.com/sbtech/vita49-agent/dispatch"
	"github.com/sbtech/vita49-agent/expect"
	"github.com/sbtech/vita49-agent/manager"
	"github.com/sbtech/vita49-agent/resource"
)

func TestRegistryListsAllVerbs(t *testing.T) {
	want := []string{"discover", "enumerate", "access", "release", "open", "start", "stop", "close", "timestamp"}
	for _, name := range want {
		_, ok := Registry[name]
		require.True(t, ok, "expected %q to be registered", name)
	}
}

// TestDiscoverAgainstLiveManager drives the discover sequence end to end
// through the expect engine against a real manager.Daemon, reached over a
// loopback pair exactly as a Unix socket tool would reach it.
func TestDiscoverAgainstLiveManager(t *testing.T) {
	rid := uuid.New()
	tbl := resource.NewTable()
	tbl.Add(&resource.Descriptor{UUID: rid, Name: "radio0"})
	d := manager.New(tbl, nil)

	toolEnd, daemonEnd := channel.NewLoopbackPair()
	defer toolEnd.Close()
	defer daemonEnd.Close()

	from := &manager.ControlClient{Ch: daemonEnd}
	go func() {
		for {
			msg, ok, err := daemonEnd.TryRead()
			if err != nil {
				return
			}
			if ok {
				dispatch.Southbound(context.Background(), d, from, msg, nil)
			}
			<-daemonEnd.Readiness()
		}
	}()

	eng := expect.New(toolEnd)
	cid := uuid.New()
	val, err := Run(context.Background(), eng, "discover", Args{CID: &cid}, time.Second)
	require.NoError(t, err)
	ids, ok := val.([]string)
	require.True(t, ok)
	require.Equal(t, []string{rid.String()}, ids)
}

func TestRunUnknownSequenceIsError(t *testing.T) {
	toolEnd, _ := channel.NewLoopbackPair()
	defer toolEnd.Close()
	eng := expect.New(toolEnd)
	_, err := Run(context.Background(), eng, "bogus", Args{}, time.Second)
	require.Error(t, err)
}
